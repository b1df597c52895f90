package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/jobsearch-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db      *sql.DB
	nowFunc func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, nowFunc: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS job_board_connections (
	id                      TEXT PRIMARY KEY,
	user_id                 TEXT NOT NULL,
	provider_id             TEXT NOT NULL,
	status                  TEXT NOT NULL DEFAULT 'active',
	encrypted_access_token  TEXT NOT NULL DEFAULT '',
	encrypted_refresh_token TEXT NOT NULL DEFAULT '',
	token_expires_at        DATETIME,
	last_sync_at            DATETIME,
	error_message           TEXT NOT NULL DEFAULT '',
	created_at              DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at              DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (user_id, provider_id)
);

CREATE INDEX IF NOT EXISTS idx_connections_user ON job_board_connections(user_id);

CREATE TABLE IF NOT EXISTS jobs (
	external_id      TEXT NOT NULL,
	provider_id      TEXT NOT NULL,
	title            TEXT NOT NULL DEFAULT '',
	company          TEXT NOT NULL DEFAULT '',
	location         TEXT NOT NULL DEFAULT '',
	country_code     TEXT NOT NULL DEFAULT '',
	salary_min       REAL,
	salary_max       REAL,
	salary_currency  TEXT NOT NULL DEFAULT '',
	job_type         TEXT NOT NULL DEFAULT '',
	remote           BOOLEAN NOT NULL DEFAULT 0,
	description      TEXT NOT NULL DEFAULT '',
	requirements     TEXT NOT NULL DEFAULT '',
	url              TEXT NOT NULL DEFAULT '',
	posted_date      DATETIME,
	expiry_date      DATETIME,
	is_premium       BOOLEAN NOT NULL DEFAULT 0,
	experience_level TEXT NOT NULL DEFAULT '',
	raw_data         TEXT,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (external_id, provider_id)
);

CREATE INDEX IF NOT EXISTS idx_jobs_updated_at ON jobs(updated_at);

CREATE TABLE IF NOT EXISTS search_history (
	id                 TEXT PRIMARY KEY,
	user_id            TEXT NOT NULL,
	query              TEXT NOT NULL DEFAULT '',
	filters            TEXT NOT NULL DEFAULT '{}',
	providers_searched TEXT NOT NULL DEFAULT '[]',
	result_count       INTEGER NOT NULL DEFAULT 0,
	premium_count      INTEGER NOT NULL DEFAULT 0,
	duration_ms        INTEGER NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_search_history_user ON search_history(user_id, created_at);

CREATE TABLE IF NOT EXISTS job_preferences (
	user_id    TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS resume_skills (
	user_id    TEXT PRIMARY KEY,
	skills     TEXT NOT NULL DEFAULT '[]',
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) now() time.Time {
	return s.nowFunc().UTC()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertConnection(ctx context.Context, conn *model.Connection) error {
	now := s.now()
	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_board_connections (id, user_id, provider_id, status, encrypted_access_token,
			encrypted_refresh_token, token_expires_at, error_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, provider_id) DO UPDATE SET
			status = excluded.status,
			encrypted_access_token = excluded.encrypted_access_token,
			encrypted_refresh_token = excluded.encrypted_refresh_token,
			token_expires_at = excluded.token_expires_at,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at`,
		conn.ID, conn.UserID, conn.ProviderID, string(conn.Status), conn.EncryptedAccessToken,
		conn.EncryptedRefreshToken, utcPtr(conn.TokenExpiresAt), conn.ErrorMessage, now, now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert connection %s/%s", conn.UserID, conn.ProviderID)
	}

	// On conflict the existing row keeps its id and created_at.
	err = s.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM job_board_connections WHERE user_id = ? AND provider_id = ?`,
		conn.UserID, conn.ProviderID,
	).Scan(&conn.ID, &conn.CreatedAt)
	if err != nil {
		return eris.Wrapf(err, "sqlite: reload connection %s/%s", conn.UserID, conn.ProviderID)
	}
	conn.CreatedAt = conn.CreatedAt.UTC()
	conn.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) GetConnection(ctx context.Context, id string) (*model.Connection, error) {
	c, err := scanConnection(s.db.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM job_board_connections WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "connection %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get connection %s", id)
	}
	return c, nil
}

func (s *SQLiteStore) GetConnectionByProvider(ctx context.Context, userID, providerID string) (*model.Connection, error) {
	c, err := scanConnection(s.db.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM job_board_connections WHERE user_id = ? AND provider_id = ?`,
		userID, providerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "connection %s/%s", userID, providerID)
		}
		return nil, eris.Wrapf(err, "sqlite: get connection %s/%s", userID, providerID)
	}
	return c, nil
}

func (s *SQLiteStore) ListConnections(ctx context.Context, userID string) ([]model.Connection, error) {
	return s.queryConnections(ctx, "list connections",
		`SELECT `+connectionColumns+` FROM job_board_connections WHERE user_id = ? ORDER BY provider_id`,
		userID)
}

func (s *SQLiteStore) ListRefreshableConnections(ctx context.Context, before time.Time, limit int) ([]model.Connection, error) {
	return s.queryConnections(ctx, "list refreshable connections",
		`SELECT `+connectionColumns+` FROM job_board_connections
		 WHERE status = 'active' AND encrypted_refresh_token <> ''
		   AND token_expires_at IS NOT NULL AND token_expires_at <= ?
		 ORDER BY token_expires_at LIMIT ?`,
		before.UTC(), limitOr(limit, defaultListLimit))
}

func (s *SQLiteStore) queryConnections(ctx context.Context, op, query string, args ...any) ([]model.Connection, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan connection")
		}
		out = append(out, *c)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: %s iterate", op)
}

func (s *SQLiteStore) SaveConnectionTokens(ctx context.Context, conn *model.Connection) error {
	now := s.now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE job_board_connections SET status = 'active', encrypted_access_token = ?, encrypted_refresh_token = ?,
			token_expires_at = ?, error_message = '', updated_at = ?
		 WHERE id = ? AND status <> 'revoked'`,
		conn.EncryptedAccessToken, conn.EncryptedRefreshToken, utcPtr(conn.TokenExpiresAt), now, conn.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save tokens %s", conn.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Wrapf(ErrNotFound, "active connection %s", conn.ID)
	}
	conn.Status = model.StatusActive
	conn.ErrorMessage = ""
	conn.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) RevokeConnection(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE job_board_connections SET status = 'revoked', encrypted_access_token = '', encrypted_refresh_token = '',
			token_expires_at = NULL, updated_at = ?
		 WHERE id = ?`,
		s.now(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: revoke connection %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Wrapf(ErrNotFound, "connection %s", id)
	}
	return nil
}

func (s *SQLiteStore) MarkConnectionSynced(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE job_board_connections SET last_sync_at = ? WHERE id = ?`,
		at.UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark synced %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Wrapf(ErrNotFound, "connection %s", id)
	}
	return nil
}

func (s *SQLiteStore) MarkConnectionError(ctx context.Context, id, msg string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE job_board_connections SET status = 'error', error_message = ?, updated_at = ?
		 WHERE id = ? AND status <> 'revoked'`,
		msg, s.now(), id,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: mark error %s", id)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStore) ExpireConnections(ctx context.Context, now time.Time) (int64, error) {
	now = now.UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE job_board_connections SET status = 'expired', updated_at = ?
		 WHERE status = 'active' AND encrypted_refresh_token = ''
		   AND token_expires_at IS NOT NULL AND token_expires_at <= ?`,
		now, now,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: expire connections")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SQLiteStore) UpsertJobs(ctx context.Context, jobs []model.Listing) (int64, error) {
	jobs = uniqueJobs(jobs)
	if len(jobs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert jobs: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO jobs (external_id, provider_id, title, company, location, country_code,
			salary_min, salary_max, salary_currency, job_type, remote,
			description, requirements, url, posted_date, expiry_date,
			is_premium, experience_level, raw_data, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (external_id, provider_id) DO UPDATE SET
			title = excluded.title, company = excluded.company, location = excluded.location,
			country_code = excluded.country_code, salary_min = excluded.salary_min,
			salary_max = excluded.salary_max, salary_currency = excluded.salary_currency,
			job_type = excluded.job_type, remote = excluded.remote, description = excluded.description,
			requirements = excluded.requirements, url = excluded.url, posted_date = excluded.posted_date,
			expiry_date = excluded.expiry_date, is_premium = excluded.is_premium,
			experience_level = excluded.experience_level, raw_data = excluded.raw_data,
			updated_at = excluded.updated_at`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert jobs: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	now := s.now()
	var total int64
	for _, j := range jobs {
		row, err := jobRow(j)
		if err != nil {
			return 0, err
		}
		res, err := stmt.ExecContext(ctx, append(row, now)...)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert job %s", j.StorageKey())
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert jobs: commit")
	}
	return total, nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, providerID, externalID string) (*model.Listing, error) {
	l, err := scanJob(s.db.QueryRowContext(ctx,
		`SELECT `+jobSelectColumns+` FROM jobs WHERE provider_id = ? AND external_id = ?`,
		providerID, externalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "job %s:%s", providerID, externalID)
		}
		return nil, eris.Wrapf(err, "sqlite: get job %s:%s", providerID, externalID)
	}
	return l, nil
}

func (s *SQLiteStore) ListRecentJobs(ctx context.Context, limit int) ([]model.Listing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobSelectColumns+` FROM jobs ORDER BY updated_at DESC, rowid DESC LIMIT ?`,
		limitOr(limit, defaultListLimit))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list recent jobs")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Listing
	for rows.Next() {
		l, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		out = append(out, *l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list recent jobs iterate")
}

func (s *SQLiteStore) AppendSearchHistory(ctx context.Context, entry *model.SearchHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	providers, err := json.Marshal(nonNil(entry.ProvidersSearched))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal providers searched")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO search_history (id, user_id, query, filters, providers_searched, result_count,
			premium_count, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.Query, string(historyFilters(entry)), string(providers),
		entry.ResultCount, entry.PremiumCount, entry.DurationMs, entry.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: insert search history")
}

func (s *SQLiteStore) ListSearchHistory(ctx context.Context, userID string, limit int) ([]model.SearchHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, query, filters, providers_searched, result_count, premium_count, duration_ms, created_at
		 FROM search_history WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		userID, limitOr(limit, defaultHistoryLimit))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list search history")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.SearchHistoryEntry
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan search history")
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list search history iterate")
}

func (s *SQLiteStore) GetPreference(ctx context.Context, userID string) (*model.Preference, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM job_preferences WHERE user_id = ?`, userID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "preferences for %s", userID)
		}
		return nil, eris.Wrapf(err, "sqlite: get preferences %s", userID)
	}
	var p model.Preference
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal preferences")
	}
	p.UserID = userID
	return &p, nil
}

func (s *SQLiteStore) SavePreference(ctx context.Context, pref *model.Preference) error {
	data, err := json.Marshal(pref)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal preferences")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO job_preferences (user_id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		pref.UserID, string(data), s.now(),
	)
	return eris.Wrapf(err, "sqlite: save preferences %s", pref.UserID)
}

func (s *SQLiteStore) GetResumeSkills(ctx context.Context, userID string) ([]string, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT skills FROM resume_skills WHERE user_id = ?`, userID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get resume skills %s", userID)
	}
	var skills []string
	if err := json.Unmarshal([]byte(data), &skills); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal resume skills")
	}
	return skills, nil
}

func (s *SQLiteStore) SaveResumeSkills(ctx context.Context, userID string, skills []string) error {
	data, err := json.Marshal(nonNil(skills))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal resume skills")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO resume_skills (user_id, skills, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET skills = excluded.skills, updated_at = excluded.updated_at`,
		userID, string(data), s.now(),
	)
	return eris.Wrapf(err, "sqlite: save resume skills %s", userID)
}
