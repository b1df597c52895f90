// Package store persists job board connections, normalized listings, search
// history and user match profiles.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/jobsearch-cli/internal/model"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for the job search engine.
type Store interface {
	// Connections
	UpsertConnection(ctx context.Context, conn *model.Connection) error
	GetConnection(ctx context.Context, id string) (*model.Connection, error)
	GetConnectionByProvider(ctx context.Context, userID, providerID string) (*model.Connection, error)
	ListConnections(ctx context.Context, userID string) ([]model.Connection, error)
	SaveConnectionTokens(ctx context.Context, conn *model.Connection) error
	RevokeConnection(ctx context.Context, id string) error
	MarkConnectionSynced(ctx context.Context, id string, at time.Time) error
	MarkConnectionError(ctx context.Context, id, msg string) (bool, error)
	ListRefreshableConnections(ctx context.Context, before time.Time, limit int) ([]model.Connection, error)
	ExpireConnections(ctx context.Context, now time.Time) (int64, error)

	// Jobs
	UpsertJobs(ctx context.Context, jobs []model.Listing) (int64, error)
	GetJob(ctx context.Context, providerID, externalID string) (*model.Listing, error)
	ListRecentJobs(ctx context.Context, limit int) ([]model.Listing, error)

	// Search history
	AppendSearchHistory(ctx context.Context, entry *model.SearchHistoryEntry) error
	ListSearchHistory(ctx context.Context, userID string, limit int) ([]model.SearchHistoryEntry, error)

	// Match profile
	GetPreference(ctx context.Context, userID string) (*model.Preference, error)
	SavePreference(ctx context.Context, pref *model.Preference) error
	GetResumeSkills(ctx context.Context, userID string) ([]string, error)
	SaveResumeSkills(ctx context.Context, userID string, skills []string) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

const (
	defaultListLimit    = 100
	defaultHistoryLimit = 20
)

// rowScanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const connectionColumns = `id, user_id, provider_id, status, encrypted_access_token, encrypted_refresh_token,
	token_expires_at, last_sync_at, error_message, created_at, updated_at`

func scanConnection(row rowScanner) (*model.Connection, error) {
	var c model.Connection
	var status string
	if err := row.Scan(
		&c.ID, &c.UserID, &c.ProviderID, &status,
		&c.EncryptedAccessToken, &c.EncryptedRefreshToken,
		&c.TokenExpiresAt, &c.LastSyncAt, &c.ErrorMessage,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.Status = model.ConnectionStatus(status)
	c.TokenExpiresAt = utcPtr(c.TokenExpiresAt)
	c.LastSyncAt = utcPtr(c.LastSyncAt)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

// jobColumns is the insert column order of jobRow.
var jobColumns = []string{
	"external_id", "provider_id", "title", "company", "location", "country_code",
	"salary_min", "salary_max", "salary_currency", "job_type", "remote",
	"description", "requirements", "url", "posted_date", "expiry_date",
	"is_premium", "experience_level", "raw_data",
}

const jobSelectColumns = `external_id, provider_id, title, company, location, country_code,
	salary_min, salary_max, salary_currency, job_type, remote,
	description, requirements, url, posted_date, expiry_date,
	is_premium, experience_level, raw_data`

func jobRow(l model.Listing) ([]any, error) {
	var raw []byte
	if l.Payload != nil {
		var err error
		if raw, err = json.Marshal(l.Payload); err != nil {
			return nil, eris.Wrapf(err, "store: marshal payload for %s", l.StorageKey())
		}
	}
	return []any{
		l.ExternalID, l.ProviderID, l.Title, l.Company, l.Location, l.CountryCode,
		l.SalaryMin, l.SalaryMax, l.SalaryCurrency, string(l.JobType), l.Remote,
		l.Description, l.Requirements, l.URL, utcPtr(l.PostedDate), utcPtr(l.ExpiryDate),
		l.Premium, l.ExperienceLevel, raw,
	}, nil
}

func scanJob(row rowScanner) (*model.Listing, error) {
	var l model.Listing
	var jobType string
	var raw []byte
	if err := row.Scan(
		&l.ExternalID, &l.ProviderID, &l.Title, &l.Company, &l.Location, &l.CountryCode,
		&l.SalaryMin, &l.SalaryMax, &l.SalaryCurrency, &jobType, &l.Remote,
		&l.Description, &l.Requirements, &l.URL, &l.PostedDate, &l.ExpiryDate,
		&l.Premium, &l.ExperienceLevel, &raw,
	); err != nil {
		return nil, err
	}
	l.JobType = model.JobType(jobType)
	l.PostedDate = utcPtr(l.PostedDate)
	l.ExpiryDate = utcPtr(l.ExpiryDate)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &l.Payload); err != nil {
			return nil, eris.Wrapf(err, "store: unmarshal payload for %s", l.StorageKey())
		}
	}
	return &l, nil
}

// uniqueJobs drops repeated storage keys, keeping the last copy, so one
// upsert statement never touches a row twice.
func uniqueJobs(jobs []model.Listing) []model.Listing {
	idx := make(map[string]int, len(jobs))
	out := make([]model.Listing, 0, len(jobs))
	for _, j := range jobs {
		key := j.StorageKey()
		if i, ok := idx[key]; ok {
			out[i] = j
			continue
		}
		idx[key] = len(out)
		out = append(out, j)
	}
	return out
}

func historyFilters(entry *model.SearchHistoryEntry) []byte {
	if entry.Filters == "" {
		return []byte("{}")
	}
	return []byte(entry.Filters)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func limitOr(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}

func scanHistory(row rowScanner) (*model.SearchHistoryEntry, error) {
	var e model.SearchHistoryEntry
	var filters, providers []byte
	if err := row.Scan(
		&e.ID, &e.UserID, &e.Query, &filters, &providers,
		&e.ResultCount, &e.PremiumCount, &e.DurationMs, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	e.Filters = string(filters)
	e.CreatedAt = e.CreatedAt.UTC()
	if len(providers) > 0 {
		if err := json.Unmarshal(providers, &e.ProvidersSearched); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal providers searched")
		}
	}
	return &e, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
