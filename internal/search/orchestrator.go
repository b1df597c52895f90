// Package search fans a job search out to every job board a user has
// connected, then merges, dedupes and ranks the results.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/jobsearch-cli/internal/jobboard"
	"github.com/sells-group/jobsearch-cli/internal/metrics"
	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/registry"
	"github.com/sells-group/jobsearch-cli/internal/resilience"
	"github.com/sells-group/jobsearch-cli/internal/vault"
)

var (
	// ErrNoConnection is returned when the user has no active connection to
	// the requested provider.
	ErrNoConnection = eris.New("search: no active connection")
	// ErrJobNotFound is returned when a provider reports a job does not exist.
	ErrJobNotFound = eris.New("search: job not found")
)

// Connections resolves and maintains the user's provider connections.
type Connections interface {
	ActiveConnections(ctx context.Context, userID string) ([]model.Connection, error)
	AccessToken(ctx context.Context, conn *model.Connection) (string, error)
	MarkSynced(ctx context.Context, conn *model.Connection) error
	HandleFetchError(ctx context.Context, conn *model.Connection, err error)
}

// Store persists fetched listings and search history.
type Store interface {
	UpsertJobs(ctx context.Context, jobs []model.Listing) (int64, error)
	AppendSearchHistory(ctx context.Context, entry *model.SearchHistoryEntry) error
	ListSearchHistory(ctx context.Context, userID string, limit int) ([]model.SearchHistoryEntry, error)
}

// Cache holds job details between lookups.
type Cache interface {
	Get(ctx context.Context, providerID, externalID string) (*model.Listing, bool, error)
	Set(ctx context.Context, l *model.Listing) error
}

// Orchestrator runs multi-provider searches.
type Orchestrator struct {
	registry *registry.Registry
	conns    Connections
	store    Store
	cache    Cache
	metrics  *metrics.Metrics
	nowFunc  func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCache enables read-through caching of job details.
func WithCache(c Cache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithMetrics records fetch and search metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock sets the time source used for durations.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.nowFunc = now }
}

// New creates an Orchestrator.
func New(reg *registry.Registry, conns Connections, st Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: reg,
		conns:    conns,
		store:    st,
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SearchAllPlatforms searches every provider the user is actively connected
// to, restricted to req.Providers when given. A provider that fails is
// logged and contributes no listings; only connection lookup errors fail
// the search.
func (o *Orchestrator) SearchAllPlatforms(ctx context.Context, userID string, req model.SearchRequest) (*model.SearchResult, error) {
	start := o.nowFunc()

	targets, err := o.resolve(ctx, userID, req.Providers)
	if err != nil {
		return nil, err
	}
	providers := make([]string, len(targets))
	for i, c := range targets {
		providers[i] = c.ProviderID
	}

	if len(targets) == 0 {
		return &model.SearchResult{
			Jobs:             []model.Listing{},
			ProvidersUsed:    providers,
			SearchDurationMs: o.nowFunc().Sub(start).Milliseconds(),
		}, nil
	}

	zap.L().Debug("search: fanning out",
		zap.String("user_id", userID),
		zap.Strings("providers", providers),
	)

	results := make([][]model.Listing, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i := range targets {
		conn := targets[i]
		g.Go(func() error {
			jobs, err := o.fetch(gctx, &conn, req)
			if err != nil {
				zap.L().Warn("search: provider fetch failed",
					zap.String("user_id", userID),
					zap.String("provider", conn.ProviderID),
					zap.Error(err),
				)
				o.metrics.ProviderFailed(conn.ProviderID, failureReason(err))
				return nil
			}
			results[i] = jobs
			return nil
		})
	}
	_ = g.Wait()

	var all []model.Listing
	for _, jobs := range results {
		all = append(all, jobs...)
	}
	jobs := dedupe(all)
	if !req.WantsPremium() {
		jobs = withoutPremium(jobs)
	}
	rank(jobs)

	res := &model.SearchResult{
		Jobs:          jobs,
		TotalCount:    len(jobs),
		PremiumCount:  countPremium(jobs),
		ProvidersUsed: providers,
	}
	res.SearchDurationMs = o.nowFunc().Sub(start).Milliseconds()

	o.recordHistory(ctx, userID, req, res)
	o.metrics.ObserveSearch(time.Duration(res.SearchDurationMs)*time.Millisecond, res.TotalCount)

	zap.L().Info("search: complete",
		zap.String("user_id", userID),
		zap.Int("providers", len(providers)),
		zap.Int("results", res.TotalCount),
		zap.Int("premium", res.PremiumCount),
		zap.Int64("duration_ms", res.SearchDurationMs),
	)
	return res, nil
}

// SearchProviders is SearchAllPlatforms restricted to providers.
func (o *Orchestrator) SearchProviders(ctx context.Context, userID string, providers []string, req model.SearchRequest) (*model.SearchResult, error) {
	req.Providers = providers
	return o.SearchAllPlatforms(ctx, userID, req)
}

// AvailableProviders lists the supported providers the user is actively
// connected to, sorted by id.
func (o *Orchestrator) AvailableProviders(ctx context.Context, userID string) ([]string, error) {
	targets, err := o.resolve(ctx, userID, nil)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(targets))
	for i, c := range targets {
		out[i] = c.ProviderID
	}
	return out, nil
}

// FetchFromProvider fetches listings from one provider using the user's
// active connection, persisting them and marking the connection synced.
func (o *Orchestrator) FetchFromProvider(ctx context.Context, userID, providerID string, req model.SearchRequest) ([]model.Listing, error) {
	conn, err := o.connectionFor(ctx, userID, providerID)
	if err != nil {
		return nil, err
	}
	return o.fetch(ctx, conn, req)
}

// JobDetails returns one listing, served from the cache when possible. The
// user needs an active connection to the provider either way.
func (o *Orchestrator) JobDetails(ctx context.Context, userID, providerID, externalID string) (*model.Listing, error) {
	conn, err := o.connectionFor(ctx, userID, providerID)
	if err != nil {
		return nil, err
	}

	if o.cache != nil {
		cached, ok, err := o.cache.Get(ctx, providerID, externalID)
		if err != nil {
			zap.L().Warn("search: details cache read failed", zap.Error(err))
		}
		o.metrics.CacheHit(ok)
		if ok {
			return cached, nil
		}
	}

	client, err := o.registry.Client(providerID)
	if err != nil {
		return nil, err
	}
	token, err := o.conns.AccessToken(ctx, conn)
	if err != nil {
		return nil, err
	}

	job, err := client.GetJobDetails(ctx, externalID, token)
	if err != nil {
		o.conns.HandleFetchError(ctx, conn, err)
		return nil, eris.Wrapf(err, "search: details %s:%s", providerID, externalID)
	}
	if job == nil {
		return nil, eris.Wrapf(ErrJobNotFound, "job %s:%s", providerID, externalID)
	}
	job.ProviderID = providerID

	if o.cache != nil {
		if err := o.cache.Set(ctx, job); err != nil {
			zap.L().Warn("search: details cache write failed", zap.Error(err))
		}
	}
	return job, nil
}

// History returns the user's most recent searches.
func (o *Orchestrator) History(ctx context.Context, userID string, limit int) ([]model.SearchHistoryEntry, error) {
	entries, err := o.store.ListSearchHistory(ctx, userID, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "search: history for %s", userID)
	}
	return entries, nil
}

// resolve returns the user's active, supported connections, one per
// provider, filtered by allow when non-empty and sorted by provider id.
func (o *Orchestrator) resolve(ctx context.Context, userID string, allow []string) ([]model.Connection, error) {
	conns, err := o.conns.ActiveConnections(ctx, userID)
	if err != nil {
		return nil, eris.Wrapf(err, "search: active connections for %s", userID)
	}

	var allowed map[string]bool
	if len(allow) > 0 {
		allowed = make(map[string]bool, len(allow))
		for _, p := range allow {
			allowed[p] = true
		}
	}

	seen := make(map[string]bool, len(conns))
	out := make([]model.Connection, 0, len(conns))
	for _, c := range conns {
		if seen[c.ProviderID] || !o.registry.Supports(c.ProviderID) {
			continue
		}
		if allowed != nil && !allowed[c.ProviderID] {
			continue
		}
		seen[c.ProviderID] = true
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, k int) bool { return out[i].ProviderID < out[k].ProviderID })
	return out, nil
}

func (o *Orchestrator) connectionFor(ctx context.Context, userID, providerID string) (*model.Connection, error) {
	targets, err := o.resolve(ctx, userID, []string{providerID})
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, eris.Wrapf(ErrNoConnection, "provider %s", providerID)
	}
	return &targets[0], nil
}

func (o *Orchestrator) fetch(ctx context.Context, conn *model.Connection, req model.SearchRequest) ([]model.Listing, error) {
	client, err := o.registry.Client(conn.ProviderID)
	if err != nil {
		return nil, err
	}
	token, err := o.conns.AccessToken(ctx, conn)
	if err != nil {
		return nil, err
	}

	started := o.nowFunc()
	jobs, err := client.FetchJobs(ctx, req, token)
	o.metrics.ObserveFetch(conn.ProviderID, o.nowFunc().Sub(started), err)
	if err != nil {
		o.conns.HandleFetchError(ctx, conn, err)
		return nil, eris.Wrapf(err, "search: fetch %s", conn.ProviderID)
	}
	for i := range jobs {
		jobs[i].ProviderID = conn.ProviderID
	}

	if len(jobs) > 0 {
		if _, err := o.store.UpsertJobs(ctx, jobs); err != nil {
			zap.L().Warn("search: persist listings failed",
				zap.String("provider", conn.ProviderID),
				zap.Error(err),
			)
		}
	}
	if err := o.conns.MarkSynced(ctx, conn); err != nil {
		zap.L().Warn("search: mark synced failed",
			zap.String("connection_id", conn.ID),
			zap.Error(err),
		)
	}
	return jobs, nil
}

func (o *Orchestrator) recordHistory(ctx context.Context, userID string, req model.SearchRequest, res *model.SearchResult) {
	filters, err := json.Marshal(req)
	if err != nil {
		filters = []byte("{}")
	}
	entry := &model.SearchHistoryEntry{
		UserID:            userID,
		Query:             req.Query,
		Filters:           string(filters),
		ProvidersSearched: res.ProvidersUsed,
		ResultCount:       res.TotalCount,
		PremiumCount:      res.PremiumCount,
		DurationMs:        res.SearchDurationMs,
	}
	if err := o.store.AppendSearchHistory(ctx, entry); err != nil {
		zap.L().Warn("search: save history failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

func failureReason(err error) string {
	var apiErr *jobboard.APIError
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, vault.ErrTokenIntegrity):
		return "token"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	case jobboard.IsAuthError(err):
		return "auth"
	case errors.As(err, &apiErr):
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return "rate_limited"
		}
		return "api"
	default:
		return "error"
	}
}
