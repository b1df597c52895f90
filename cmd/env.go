package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobsearch-cli/internal/cache"
	"github.com/sells-group/jobsearch-cli/internal/connection"
	"github.com/sells-group/jobsearch-cli/internal/match"
	"github.com/sells-group/jobsearch-cli/internal/metrics"
	"github.com/sells-group/jobsearch-cli/internal/oauth"
	"github.com/sells-group/jobsearch-cli/internal/registry"
	"github.com/sells-group/jobsearch-cli/internal/resume"
	"github.com/sells-group/jobsearch-cli/internal/search"
	"github.com/sells-group/jobsearch-cli/internal/store"
	"github.com/sells-group/jobsearch-cli/internal/vault"
	anthropicpkg "github.com/sells-group/jobsearch-cli/pkg/anthropic"
)

// appEnv holds the store, registry and services shared by the commands.
type appEnv struct {
	Store       store.Store
	Registry    *registry.Registry
	Metrics     *metrics.Metrics
	OAuth       *oauth.Service
	Connections *connection.Manager
	Search      *search.Orchestrator
	Matches     *match.Service
	Resumes     *resume.Service
	details     *cache.Details
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.details != nil {
		_ = e.details.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates config for mode, opens and migrates the store and
// wires every service. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &appEnv{Store: st, Metrics: metrics.New()}

	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	v, err := vault.NewFromHex(cfg.Vault.EncryptionKey)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Registry, err = registry.Default(registry.Options{
		Providers: cfg.Providers,
		Retry:     cfg.Retry,
		Metrics:   env.Metrics,
	})
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "build provider registry")
	}

	env.OAuth = oauth.New(cfg.OAuth)
	env.Connections = connection.NewManager(st, v, env.Registry, env.OAuth)

	searchOpts := []search.Option{search.WithMetrics(env.Metrics)}
	if cfg.Redis.Addr != "" {
		details, err := cache.Open(ctx, cfg.Redis)
		if err != nil {
			zap.L().Warn("details cache disabled", zap.Error(err))
		} else {
			env.details = details
			searchOpts = append(searchOpts, search.WithCache(details))
		}
	}
	env.Search = search.New(env.Registry, env.Connections, st, searchOpts...)

	engine, err := match.NewEngine(cfg.Match)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Matches = match.NewService(st, engine, cfg.Match.CandidateLimit, env.Metrics)

	var extractor resume.Extractor = resume.KeywordExtractor{}
	if cfg.Anthropic.Key != "" {
		extractor = resume.NewLLMExtractor(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)
	}
	env.Resumes = resume.NewService(extractor, st)

	zap.L().Debug("environment ready",
		zap.String("store", cfg.Store.Driver),
		zap.Strings("providers", env.Registry.IDs()),
		zap.Strings("oauth_providers", env.OAuth.Providers()),
		zap.Bool("details_cache", env.details != nil),
	)
	return env, nil
}
