package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/jobsearch-cli/internal/db"
	"github.com/sells-group/jobsearch-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// preparedStatements are prepared on each new connection. Keys match the
// SQL used by the hot paths below.
var preparedStatements = map[string]string{
	"list_connections": `SELECT ` + connectionColumns + ` FROM job_board_connections WHERE user_id = $1 ORDER BY provider_id`,
	"get_connection":   `SELECT ` + connectionColumns + ` FROM job_board_connections WHERE id = $1`,
	"recent_jobs":      `SELECT ` + jobSelectColumns + ` FROM jobs ORDER BY updated_at DESC LIMIT $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS job_board_connections (
	id                      TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id                 TEXT NOT NULL,
	provider_id             TEXT NOT NULL,
	status                  TEXT NOT NULL DEFAULT 'active',
	encrypted_access_token  TEXT NOT NULL DEFAULT '',
	encrypted_refresh_token TEXT NOT NULL DEFAULT '',
	token_expires_at        TIMESTAMPTZ,
	last_sync_at            TIMESTAMPTZ,
	error_message           TEXT NOT NULL DEFAULT '',
	created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, provider_id)
);

CREATE INDEX IF NOT EXISTS idx_connections_user ON job_board_connections(user_id);
CREATE INDEX IF NOT EXISTS idx_connections_expiry ON job_board_connections(status, token_expires_at);

CREATE TABLE IF NOT EXISTS jobs (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	external_id      TEXT NOT NULL,
	provider_id      TEXT NOT NULL,
	title            TEXT NOT NULL DEFAULT '',
	company          TEXT NOT NULL DEFAULT '',
	location         TEXT NOT NULL DEFAULT '',
	country_code     TEXT NOT NULL DEFAULT '',
	salary_min       DOUBLE PRECISION,
	salary_max       DOUBLE PRECISION,
	salary_currency  TEXT NOT NULL DEFAULT '',
	job_type         TEXT NOT NULL DEFAULT '',
	remote           BOOLEAN NOT NULL DEFAULT false,
	description      TEXT NOT NULL DEFAULT '',
	requirements     TEXT NOT NULL DEFAULT '',
	url              TEXT NOT NULL DEFAULT '',
	posted_date      TIMESTAMPTZ,
	expiry_date      TIMESTAMPTZ,
	is_premium       BOOLEAN NOT NULL DEFAULT false,
	experience_level TEXT NOT NULL DEFAULT '',
	raw_data         JSONB,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (external_id, provider_id)
);

CREATE INDEX IF NOT EXISTS idx_jobs_updated_at ON jobs(updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_jobs_provider ON jobs(provider_id);

CREATE TABLE IF NOT EXISTS search_history (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id            TEXT NOT NULL,
	query              TEXT NOT NULL DEFAULT '',
	filters            JSONB NOT NULL DEFAULT '{}',
	providers_searched JSONB NOT NULL DEFAULT '[]',
	result_count       INTEGER NOT NULL DEFAULT 0,
	premium_count      INTEGER NOT NULL DEFAULT 0,
	duration_ms        BIGINT NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_search_history_user ON search_history(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS job_preferences (
	user_id    TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS resume_skills (
	user_id    TEXT PRIMARY KEY,
	skills     JSONB NOT NULL DEFAULT '[]',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertConnection(ctx context.Context, conn *model.Connection) error {
	now := time.Now().UTC()
	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO job_board_connections (id, user_id, provider_id, status, encrypted_access_token,
			encrypted_refresh_token, token_expires_at, error_message, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		 ON CONFLICT (user_id, provider_id) DO UPDATE SET
			status = EXCLUDED.status,
			encrypted_access_token = EXCLUDED.encrypted_access_token,
			encrypted_refresh_token = EXCLUDED.encrypted_refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at
		 RETURNING id, created_at`,
		conn.ID, conn.UserID, conn.ProviderID, string(conn.Status), conn.EncryptedAccessToken,
		conn.EncryptedRefreshToken, utcPtr(conn.TokenExpiresAt), conn.ErrorMessage, now,
	).Scan(&conn.ID, &conn.CreatedAt)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert connection %s/%s", conn.UserID, conn.ProviderID)
	}
	conn.CreatedAt = conn.CreatedAt.UTC()
	conn.UpdatedAt = now
	return nil
}

func (s *PostgresStore) GetConnection(ctx context.Context, id string) (*model.Connection, error) {
	c, err := scanConnection(s.pool.QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM job_board_connections WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "connection %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get connection %s", id)
	}
	return c, nil
}

func (s *PostgresStore) GetConnectionByProvider(ctx context.Context, userID, providerID string) (*model.Connection, error) {
	c, err := scanConnection(s.pool.QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM job_board_connections WHERE user_id = $1 AND provider_id = $2`,
		userID, providerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "connection %s/%s", userID, providerID)
		}
		return nil, eris.Wrapf(err, "postgres: get connection %s/%s", userID, providerID)
	}
	return c, nil
}

func (s *PostgresStore) ListConnections(ctx context.Context, userID string) ([]model.Connection, error) {
	return s.queryConnections(ctx, "list connections",
		`SELECT `+connectionColumns+` FROM job_board_connections WHERE user_id = $1 ORDER BY provider_id`,
		userID)
}

func (s *PostgresStore) ListRefreshableConnections(ctx context.Context, before time.Time, limit int) ([]model.Connection, error) {
	return s.queryConnections(ctx, "list refreshable connections",
		`SELECT `+connectionColumns+` FROM job_board_connections
		 WHERE status = 'active' AND encrypted_refresh_token <> ''
		   AND token_expires_at IS NOT NULL AND token_expires_at <= $1
		 ORDER BY token_expires_at LIMIT $2`,
		before.UTC(), limitOr(limit, defaultListLimit))
}

func (s *PostgresStore) queryConnections(ctx context.Context, op, query string, args ...any) ([]model.Connection, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s", op)
	}
	defer rows.Close()

	var out []model.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan connection")
		}
		out = append(out, *c)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: %s iterate", op)
}

// SaveConnectionTokens writes freshly issued tokens and reactivates the
// connection. A revoked connection is left untouched and reads as not found.
func (s *PostgresStore) SaveConnectionTokens(ctx context.Context, conn *model.Connection) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE job_board_connections SET status = 'active', encrypted_access_token = $1, encrypted_refresh_token = $2,
			token_expires_at = $3, error_message = '', updated_at = $4
		 WHERE id = $5 AND status <> 'revoked'`,
		conn.EncryptedAccessToken, conn.EncryptedRefreshToken, utcPtr(conn.TokenExpiresAt), now, conn.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save tokens %s", conn.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "active connection %s", conn.ID)
	}
	conn.Status = model.StatusActive
	conn.ErrorMessage = ""
	conn.UpdatedAt = now
	return nil
}

func (s *PostgresStore) RevokeConnection(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE job_board_connections SET status = 'revoked', encrypted_access_token = '', encrypted_refresh_token = '',
			token_expires_at = NULL, updated_at = $1
		 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: revoke connection %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "connection %s", id)
	}
	return nil
}

func (s *PostgresStore) MarkConnectionSynced(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE job_board_connections SET last_sync_at = $1 WHERE id = $2`,
		at.UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark synced %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "connection %s", id)
	}
	return nil
}

// MarkConnectionError flags a connection as errored. It reports false when
// the connection is missing or already revoked.
func (s *PostgresStore) MarkConnectionError(ctx context.Context, id, msg string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE job_board_connections SET status = 'error', error_message = $1, updated_at = $2
		 WHERE id = $3 AND status <> 'revoked'`,
		msg, time.Now().UTC(), id,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: mark error %s", id)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ExpireConnections(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE job_board_connections SET status = 'expired', updated_at = $1
		 WHERE status = 'active' AND encrypted_refresh_token = ''
		   AND token_expires_at IS NOT NULL AND token_expires_at <= $1`,
		now.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: expire connections")
	}
	return tag.RowsAffected(), nil
}

var jobMerge = db.Merge{
	Table:   "jobs",
	Key:     []string{"external_id", "provider_id"},
	Columns: jobColumns,
	Stamp:   "updated_at",
}

func (s *PostgresStore) UpsertJobs(ctx context.Context, jobs []model.Listing) (int64, error) {
	jobs = uniqueJobs(jobs)
	rows := make([][]any, 0, len(jobs))
	for _, j := range jobs {
		row, err := jobRow(j)
		if err != nil {
			return 0, err
		}
		rows = append(rows, row)
	}
	n, err := jobMerge.Run(ctx, s.pool, rows)
	return n, eris.Wrap(err, "postgres: upsert jobs")
}

func (s *PostgresStore) GetJob(ctx context.Context, providerID, externalID string) (*model.Listing, error) {
	l, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobSelectColumns+` FROM jobs WHERE provider_id = $1 AND external_id = $2`,
		providerID, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "job %s:%s", providerID, externalID)
		}
		return nil, eris.Wrapf(err, "postgres: get job %s:%s", providerID, externalID)
	}
	return l, nil
}

func (s *PostgresStore) ListRecentJobs(ctx context.Context, limit int) ([]model.Listing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobSelectColumns+` FROM jobs ORDER BY updated_at DESC LIMIT $1`,
		limitOr(limit, defaultListLimit))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list recent jobs")
	}
	defer rows.Close()

	var out []model.Listing
	for rows.Next() {
		l, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		out = append(out, *l)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list recent jobs iterate")
}

func (s *PostgresStore) AppendSearchHistory(ctx context.Context, entry *model.SearchHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	providers, err := json.Marshal(nonNil(entry.ProvidersSearched))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal providers searched")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO search_history (id, user_id, query, filters, providers_searched, result_count,
			premium_count, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.UserID, entry.Query, historyFilters(entry), providers, entry.ResultCount,
		entry.PremiumCount, entry.DurationMs, entry.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert search history")
}

func (s *PostgresStore) ListSearchHistory(ctx context.Context, userID string, limit int) ([]model.SearchHistoryEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, query, filters, providers_searched, result_count, premium_count, duration_ms, created_at
		 FROM search_history WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limitOr(limit, defaultHistoryLimit))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list search history")
	}
	defer rows.Close()

	var out []model.SearchHistoryEntry
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan search history")
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list search history iterate")
}

func (s *PostgresStore) GetPreference(ctx context.Context, userID string) (*model.Preference, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM job_preferences WHERE user_id = $1`, userID).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "preferences for %s", userID)
		}
		return nil, eris.Wrapf(err, "postgres: get preferences %s", userID)
	}
	var p model.Preference
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal preferences")
	}
	p.UserID = userID
	return &p, nil
}

func (s *PostgresStore) SavePreference(ctx context.Context, pref *model.Preference) error {
	data, err := json.Marshal(pref)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal preferences")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO job_preferences (user_id, data, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET data = $2, updated_at = $3`,
		pref.UserID, data, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save preferences %s", pref.UserID)
}

func (s *PostgresStore) GetResumeSkills(ctx context.Context, userID string) ([]string, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT skills FROM resume_skills WHERE user_id = $1`, userID).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get resume skills %s", userID)
	}
	var skills []string
	if err := json.Unmarshal(data, &skills); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal resume skills")
	}
	return skills, nil
}

func (s *PostgresStore) SaveResumeSkills(ctx context.Context, userID string, skills []string) error {
	data, err := json.Marshal(nonNil(skills))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal resume skills")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO resume_skills (user_id, skills, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET skills = $2, updated_at = $3`,
		userID, data, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save resume skills %s", userID)
}
