package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/jobsearch-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var connectionRowColumns = []string{
	"id", "user_id", "provider_id", "status", "encrypted_access_token", "encrypted_refresh_token",
	"token_expires_at", "last_sync_at", "error_message", "created_at", "updated_at",
}

func TestPostgresStore_GetConnection_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, user_id, provider_id, status, .* FROM job_board_connections WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetConnection(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetConnection(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	created := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	expires := created.Add(time.Hour)
	mock.ExpectQuery(`FROM job_board_connections WHERE id = \$1`).
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows(connectionRowColumns).AddRow(
			"c1", "u1", "indeed", "active", "enc-a", "enc-r",
			&expires, (*time.Time)(nil), "", created, created,
		))

	c, err := s.GetConnection(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "indeed", c.ProviderID)
	assert.Equal(t, model.StatusActive, c.Status)
	require.NotNil(t, c.TokenExpiresAt)
	assert.True(t, c.TokenExpiresAt.Equal(expires))
	assert.Nil(t, c.LastSyncAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetConnectionByProvider_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`WHERE user_id = \$1 AND provider_id = \$2`).
		WithArgs("u1", "dice").
		WillReturnError(errors.New("connection reset"))

	_, err := s.GetConnectionByProvider(context.Background(), "u1", "dice")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "get connection u1/dice")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertConnection(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO job_board_connections .* ON CONFLICT \(user_id, provider_id\) DO UPDATE SET .* RETURNING id, created_at`).
		WithArgs(pgxmock.AnyArg(), "u1", "reed", "active", "enc-a", "", pgxmock.AnyArg(), "", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow("existing-id", created))

	conn := &model.Connection{UserID: "u1", ProviderID: "reed", Status: model.StatusActive, EncryptedAccessToken: "enc-a"}
	require.NoError(t, s.UpsertConnection(context.Background(), conn))
	assert.Equal(t, "existing-id", conn.ID)
	assert.True(t, conn.CreatedAt.Equal(created))
	assert.False(t, conn.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RevokeConnection_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE job_board_connections SET status = 'revoked', encrypted_access_token = ''`).
		WithArgs(pgxmock.AnyArg(), "gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.RevokeConnection(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkConnectionSynced(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE job_board_connections SET last_sync_at = \$1 WHERE id = \$2`).
		WithArgs(at, "c1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.MarkConnectionSynced(context.Background(), "c1", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkConnectionError_SkipsRevoked(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SET status = 'error'.* WHERE id = \$3 AND status <> 'revoked'`).
		WithArgs("token rejected", pgxmock.AnyArg(), "c1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := s.MarkConnectionError(context.Background(), "c1", "token rejected")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveConnectionTokens(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SET status = 'active', encrypted_access_token = \$1.* WHERE id = \$5 AND status <> 'revoked'`).
		WithArgs("enc-a2", "enc-r", pgxmock.AnyArg(), pgxmock.AnyArg(), "c1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	conn := &model.Connection{ID: "c1", Status: model.StatusError, ErrorMessage: "x", EncryptedAccessToken: "enc-a2", EncryptedRefreshToken: "enc-r"}
	require.NoError(t, s.SaveConnectionTokens(context.Background(), conn))
	assert.Equal(t, model.StatusActive, conn.Status)
	assert.Empty(t, conn.ErrorMessage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListConnections(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`WHERE user_id = \$1 ORDER BY provider_id`).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows(connectionRowColumns).
			AddRow("c1", "u1", "dice", "active", "a", "", (*time.Time)(nil), (*time.Time)(nil), "", now, now).
			AddRow("c2", "u1", "seek", "error", "a", "", (*time.Time)(nil), &now, "token rejected", now, now))

	conns, err := s.ListConnections(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, conns, 2)
	assert.Equal(t, "dice", conns[0].ProviderID)
	assert.Equal(t, model.StatusError, conns[1].Status)
	assert.Equal(t, "token rejected", conns[1].ErrorMessage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ExpireConnections(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE job_board_connections SET status = 'expired'`).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := s.ExpireConnections(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertJobs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "staging_jobs"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"staging_jobs"}, jobColumns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "jobs" .* ON CONFLICT \("external_id", "provider_id"\) DO UPDATE SET .*"updated_at" = now\(\)`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectRollback()

	jobs := []model.Listing{
		{ExternalID: "1", ProviderID: "indeed", Title: "Go Dev"},
		{ExternalID: "2", ProviderID: "indeed", Title: "Rust Dev"},
		{ExternalID: "1", ProviderID: "indeed", Title: "Senior Go Dev"},
	}
	n, err := s.UpsertJobs(context.Background(), jobs)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertJobs_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	n, err := s.UpsertJobs(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetJob_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM jobs WHERE provider_id = \$1 AND external_id = \$2`).
		WithArgs("dice", "x").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetJob(context.Background(), "dice", "x")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendSearchHistory(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO search_history`).
		WithArgs(pgxmock.AnyArg(), "u1", "golang", []byte("{}"), []byte(`["dice","indeed"]`), 4, 1, int64(250), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	entry := &model.SearchHistoryEntry{
		UserID:            "u1",
		Query:             "golang",
		ProvidersSearched: []string{"dice", "indeed"},
		ResultCount:       4,
		PremiumCount:      1,
		DurationMs:        250,
	}
	require.NoError(t, s.AppendSearchHistory(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPreference_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM job_preferences WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetPreference(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPreference(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM job_preferences`).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).
			AddRow([]byte(`{"desired_titles":["Backend Engineer"],"remote_preference":"remote","skills":["Go"]}`)))

	p, err := s.GetPreference(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, []string{"Backend Engineer"}, p.DesiredTitles)
	assert.Equal(t, model.RemoteOnly, p.RemotePreference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetResumeSkills_None(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT skills FROM resume_skills`).
		WithArgs("u1").
		WillReturnError(pgx.ErrNoRows)

	skills, err := s.GetResumeSkills(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, skills)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveResumeSkills(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO resume_skills .* ON CONFLICT \(user_id\)`).
		WithArgs("u1", []byte(`["Go","SQL"]`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveResumeSkills(context.Background(), "u1", []string{"Go", "SQL"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ping(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT 1`).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	require.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
