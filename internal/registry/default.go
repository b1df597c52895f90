package registry

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/jobsearch-cli/internal/config"
	"github.com/sells-group/jobsearch-cli/internal/jobboard"
	"github.com/sells-group/jobsearch-cli/internal/metrics"
	"github.com/sells-group/jobsearch-cli/internal/resilience"
)

// Constructor builds a job board client.
type Constructor func(...jobboard.Option) jobboard.Client

// Constructors lists every supported job board by provider id.
var Constructors = map[string]Constructor{
	jobboard.LinkedInID:     jobboard.NewLinkedIn,
	jobboard.IndeedID:       jobboard.NewIndeed,
	jobboard.GlassdoorID:    jobboard.NewGlassdoor,
	jobboard.ZipRecruiterID: jobboard.NewZipRecruiter,
	jobboard.MonsterID:      jobboard.NewMonster,
	jobboard.ReedID:         jobboard.NewReed,
	jobboard.SeekID:         jobboard.NewSeek,
	jobboard.NaukriID:       jobboard.NewNaukri,
	jobboard.DiceID:         jobboard.NewDice,
	jobboard.WellfoundID:    jobboard.NewWellfound,
}

// Options configures Default.
type Options struct {
	// Providers holds per-provider overrides keyed by id.
	Providers map[string]config.ProviderConfig
	// Retry replaces the provider retry policy when non-zero.
	Retry config.RetryConfig
	// Metrics, when set, counts retries and breaker transitions.
	Metrics *metrics.Metrics
	// ExecutorOptions are applied to every executor after the defaults.
	ExecutorOptions []resilience.ExecutorOption
}

// Default builds a registry of every supported job board, each client with
// its own Executor, using the embedded catalog for metadata.
func Default(opts Options) (*Registry, error) {
	catalog, err := LoadCatalog()
	if err != nil {
		return nil, err
	}
	meta := make(map[string]Metadata, len(catalog))
	for _, m := range catalog {
		meta[m.ID] = m
	}

	entries := make([]Entry, 0, len(Constructors))
	for id, ctor := range Constructors {
		pc := opts.Providers[id]
		client := ctor(clientOptions(id, ctor, pc, opts)...)

		m, ok := meta[id]
		if !ok {
			m = Metadata{ID: id, Name: id, DisplayName: id, Regions: []string{GlobalRegion}}
		}
		if pc.BaseURL != "" {
			m.BaseURL = pc.BaseURL
		}
		entries = append(entries, Entry{Client: client, Metadata: m})
	}
	return New(entries...)
}

func clientOptions(id string, ctor Constructor, pc config.ProviderConfig, opts Options) []jobboard.Option {
	limits := ctor().DefaultRateLimit().Override(resilience.WindowLimits{
		PerMinute: pc.PerMinute,
		PerHour:   pc.PerHour,
	})

	var execOpts []resilience.ExecutorOption
	if opts.Retry != (config.RetryConfig{}) {
		execOpts = append(execOpts, resilience.WithRetryConfig(resilience.FromRetryConfig(
			opts.Retry.MaxRetries,
			opts.Retry.InitialBackoffMs,
			opts.Retry.MaxBackoffMs,
			opts.Retry.Multiplier,
		)))
	}
	if opts.Metrics != nil {
		logRetry := resilience.RetryLogger(id, "request")
		countRetry := opts.Metrics.RetryHook(id)
		execOpts = append(execOpts, resilience.WithOnRetry(func(attempt int, err error) {
			logRetry(attempt, err)
			countRetry(attempt, err)
		}))
	}
	if opts.Retry.CircuitBreaker {
		execOpts = append(execOpts, resilience.WithBreaker(newBreaker(id, opts.Retry, opts.Metrics)))
	}
	execOpts = append(execOpts, opts.ExecutorOptions...)

	clientOpts := []jobboard.Option{
		jobboard.WithBaseURL(pc.BaseURL),
		jobboard.WithExecutor(resilience.NewExecutor(id, limits, execOpts...)),
	}
	if pc.TimeoutSecs > 0 {
		clientOpts = append(clientOpts, jobboard.WithTimeout(time.Duration(pc.TimeoutSecs)*time.Second))
	}
	return clientOpts
}

// newBreaker trips only on errors that would also be retried.
func newBreaker(id string, rc config.RetryConfig, m *metrics.Metrics) *resilience.Breaker {
	cfg := resilience.BreakerSettings(rc.BreakerThreshold, rc.BreakerCooldownSecs)
	cfg.Counts = resilience.IsRetryableStatus
	cfg.OnChange = func(provider string, from, to resilience.BreakerState) {
		zap.L().Warn("registry: circuit state change",
			zap.String("provider", provider),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		m.SetCircuitState(provider, int(to))
	}
	return resilience.NewBreaker(id, cfg)
}
