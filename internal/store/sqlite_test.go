package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/jobsearch-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// stepClock returns a clock that advances one second per call.
func stepClock(start time.Time) func() time.Time {
	cur := start
	return func() time.Time {
		cur = cur.Add(time.Second)
		return cur
	}
}

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

// --- Connections ---

func TestSQLite_UpsertConnection_KeepsIDOnConflict(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := &model.Connection{
		UserID:                "u1",
		ProviderID:            "indeed",
		Status:                model.StatusActive,
		EncryptedAccessToken:  "enc-a",
		EncryptedRefreshToken: "enc-r",
		TokenExpiresAt:        ts("2026-05-01T10:00:00Z"),
	}
	require.NoError(t, st.UpsertConnection(ctx, first))
	require.NotEmpty(t, first.ID)

	second := &model.Connection{
		UserID:               "u1",
		ProviderID:           "indeed",
		Status:               model.StatusActive,
		EncryptedAccessToken: "enc-b",
	}
	require.NoError(t, st.UpsertConnection(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	got, err := st.GetConnection(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "enc-b", got.EncryptedAccessToken)
	assert.Empty(t, got.EncryptedRefreshToken)
	assert.Nil(t, got.TokenExpiresAt)
	assert.Equal(t, model.StatusActive, got.Status)

	conns, err := st.ListConnections(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, conns, 1)
}

func TestSQLite_GetConnection_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetConnection(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = st.GetConnectionByProvider(ctx, "u1", "dice")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, st.RevokeConnection(ctx, "missing"), ErrNotFound)
	assert.ErrorIs(t, st.MarkConnectionSynced(ctx, "missing", time.Now()), ErrNotFound)
	assert.ErrorIs(t, st.SaveConnectionTokens(ctx, &model.Connection{ID: "missing"}), ErrNotFound)
}

func TestSQLite_ListConnections_SortedByProvider(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, p := range []string{"seek", "dice", "indeed"} {
		require.NoError(t, st.UpsertConnection(ctx, &model.Connection{UserID: "u1", ProviderID: p, Status: model.StatusActive}))
	}
	require.NoError(t, st.UpsertConnection(ctx, &model.Connection{UserID: "u2", ProviderID: "reed", Status: model.StatusActive}))

	conns, err := st.ListConnections(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, conns, 3)
	assert.Equal(t, "dice", conns[0].ProviderID)
	assert.Equal(t, "indeed", conns[1].ProviderID)
	assert.Equal(t, "seek", conns[2].ProviderID)

	byProvider, err := st.GetConnectionByProvider(ctx, "u2", "reed")
	require.NoError(t, err)
	assert.Equal(t, "u2", byProvider.UserID)
}

func TestSQLite_ConnectionWrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := &model.Connection{UserID: "u1", ProviderID: "dice", Status: model.StatusActive, EncryptedAccessToken: "a", EncryptedRefreshToken: "r"}
	require.NoError(t, st.UpsertConnection(ctx, c))

	synced := ts("2026-03-01T12:00:00Z")
	require.NoError(t, st.MarkConnectionSynced(ctx, c.ID, *synced))
	ok, err := st.MarkConnectionError(ctx, c.ID, "token rejected")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := st.GetConnection(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, got.Status)
	assert.Equal(t, "token rejected", got.ErrorMessage)
	assert.Equal(t, "a", got.EncryptedAccessToken)
	require.NotNil(t, got.LastSyncAt)
	assert.True(t, got.LastSyncAt.Equal(*synced))

	got.EncryptedAccessToken = "a2"
	require.NoError(t, st.SaveConnectionTokens(ctx, got))
	got, err = st.GetConnection(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, got.Status)
	assert.Empty(t, got.ErrorMessage)
	assert.Equal(t, "a2", got.EncryptedAccessToken)
	assert.Equal(t, "r", got.EncryptedRefreshToken)

	require.NoError(t, st.RevokeConnection(ctx, c.ID))
	ok, err = st.MarkConnectionError(ctx, c.ID, "late failure")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, st.SaveConnectionTokens(ctx, got), ErrNotFound)

	got, err = st.GetConnection(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRevoked, got.Status)
	assert.Empty(t, got.EncryptedAccessToken)
	assert.Empty(t, got.EncryptedRefreshToken)
	assert.Empty(t, got.ErrorMessage)
}

func TestSQLite_RefreshableAndExpire(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	soon := now.Add(10 * time.Minute)
	past := now.Add(-time.Hour)
	later := now.Add(48 * time.Hour)

	conns := []*model.Connection{
		{UserID: "u1", ProviderID: "indeed", Status: model.StatusActive, EncryptedRefreshToken: "r", TokenExpiresAt: &soon},
		{UserID: "u1", ProviderID: "dice", Status: model.StatusActive, EncryptedRefreshToken: "r", TokenExpiresAt: &later},
		{UserID: "u1", ProviderID: "reed", Status: model.StatusActive, TokenExpiresAt: &past},
		{UserID: "u2", ProviderID: "seek", Status: model.StatusRevoked, EncryptedRefreshToken: "r", TokenExpiresAt: &past},
		{UserID: "u2", ProviderID: "naukri", Status: model.StatusActive},
	}
	for _, c := range conns {
		require.NoError(t, st.UpsertConnection(ctx, c))
	}

	due, err := st.ListRefreshableConnections(ctx, now.Add(30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "indeed", due[0].ProviderID)

	n, err := st.ExpireConnections(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	reed, err := st.GetConnectionByProvider(ctx, "u1", "reed")
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, reed.Status)

	naukri, err := st.GetConnectionByProvider(ctx, "u2", "naukri")
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, naukri.Status)
}

// --- Jobs ---

func sampleListing(provider, id, title string) model.Listing {
	return model.Listing{
		ExternalID:     id,
		ProviderID:     provider,
		Title:          title,
		Company:        "Acme",
		Location:       "Remote",
		SalaryMin:      model.Float(100000),
		SalaryCurrency: "USD",
		JobType:        model.JobTypeFullTime,
		Remote:         true,
		URL:            "https://example.com/" + id,
		PostedDate:     ts("2026-02-01T09:00:00Z"),
		Premium:        true,
		Payload:        map[string]any{"source": provider},
	}
}

func TestSQLite_UpsertJobs_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := st.UpsertJobs(ctx, []model.Listing{
		sampleListing("indeed", "1", "Go Dev"),
		sampleListing("dice", "1", "Go Dev"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := st.GetJob(ctx, "indeed", "1")
	require.NoError(t, err)
	assert.Equal(t, "Go Dev", got.Title)
	assert.Equal(t, model.JobTypeFullTime, got.JobType)
	assert.True(t, got.Remote)
	assert.True(t, got.Premium)
	require.NotNil(t, got.SalaryMin)
	assert.Equal(t, 100000.0, *got.SalaryMin)
	assert.Nil(t, got.SalaryMax)
	require.NotNil(t, got.PostedDate)
	assert.True(t, got.PostedDate.Equal(*ts("2026-02-01T09:00:00Z")))
	assert.Nil(t, got.ExpiryDate)
	assert.Equal(t, "indeed", got.Payload["source"])

	_, err = st.GetJob(ctx, "indeed", "2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_UpsertJobs_UpdatesOnConflict(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.UpsertJobs(ctx, []model.Listing{sampleListing("indeed", "1", "Go Dev")})
	require.NoError(t, err)

	updated := sampleListing("indeed", "1", "Senior Go Dev")
	updated.SalaryMin = nil
	updated.Payload = nil
	_, err = st.UpsertJobs(ctx, []model.Listing{updated})
	require.NoError(t, err)

	got, err := st.GetJob(ctx, "indeed", "1")
	require.NoError(t, err)
	assert.Equal(t, "Senior Go Dev", got.Title)
	assert.Nil(t, got.SalaryMin)
	assert.Nil(t, got.Payload)

	recent, err := st.ListRecentJobs(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestSQLite_UpsertJobs_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	n, err := st.UpsertJobs(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLite_ListRecentJobs_NewestFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	st.nowFunc = stepClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := st.UpsertJobs(ctx, []model.Listing{sampleListing("indeed", id, "Job "+id)})
		require.NoError(t, err)
	}

	recent, err := st.ListRecentJobs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].ExternalID)
	assert.Equal(t, "b", recent[1].ExternalID)
}

// --- Search history ---

func TestSQLite_SearchHistory(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, q := range []string{"go", "rust", "zig"} {
		require.NoError(t, st.AppendSearchHistory(ctx, &model.SearchHistoryEntry{
			UserID:            "u1",
			Query:             q,
			Filters:           `{"query":"` + q + `"}`,
			ProvidersSearched: []string{"dice", "indeed"},
			ResultCount:       i + 1,
			DurationMs:        120,
			CreatedAt:         base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, st.AppendSearchHistory(ctx, &model.SearchHistoryEntry{UserID: "u2", Query: "other"}))

	got, err := st.ListSearchHistory(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "zig", got[0].Query)
	assert.Equal(t, "rust", got[1].Query)
	assert.Equal(t, []string{"dice", "indeed"}, got[0].ProvidersSearched)
	assert.Equal(t, `{"query":"zig"}`, got[0].Filters)
	assert.Equal(t, 3, got[0].ResultCount)
	assert.NotEmpty(t, got[0].ID)

	other, err := st.ListSearchHistory(ctx, "u2", 0)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "{}", other[0].Filters)
	assert.Empty(t, other[0].ProvidersSearched)
}

// --- Match profile ---

func TestSQLite_Preference(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetPreference(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	pref := &model.Preference{
		UserID:           "u1",
		DesiredTitles:    []string{"Backend Engineer"},
		RemotePreference: model.RemoteOnly,
		SalaryMin:        model.Float(120000),
		JobTypes:         []model.JobType{model.JobTypeFullTime},
		Skills:           []string{"Go"},
		ExcludeKeywords:  []string{"crypto"},
	}
	require.NoError(t, st.SavePreference(ctx, pref))

	pref.Skills = append(pref.Skills, "Postgres")
	require.NoError(t, st.SavePreference(ctx, pref))

	got, err := st.GetPreference(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, pref, got)
}

func TestSQLite_ResumeSkills(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	skills, err := st.GetResumeSkills(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, skills)

	require.NoError(t, st.SaveResumeSkills(ctx, "u1", []string{"Go", "Kafka"}))
	require.NoError(t, st.SaveResumeSkills(ctx, "u1", []string{"Go", "Kafka", "gRPC"}))

	skills, err = st.GetResumeSkills(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "Kafka", "gRPC"}, skills)
}

func TestSQLite_Ping(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Ping(context.Background()))
}
