// Package api serves the job search engine over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/sells-group/jobsearch-cli/internal/metrics"
	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/oauth"
	"github.com/sells-group/jobsearch-cli/internal/registry"
	"github.com/sells-group/jobsearch-cli/internal/vault"
)

// UserHeader carries the authenticated user id, set by the upstream gateway.
const UserHeader = "X-User-ID"

const requestTimeout = 60 * time.Second

// Searcher runs searches and reads search state.
type Searcher interface {
	SearchAllPlatforms(ctx context.Context, userID string, req model.SearchRequest) (*model.SearchResult, error)
	AvailableProviders(ctx context.Context, userID string) ([]string, error)
	JobDetails(ctx context.Context, userID, providerID, externalID string) (*model.Listing, error)
	History(ctx context.Context, userID string, limit int) ([]model.SearchHistoryEntry, error)
}

// Connections manages provider connections.
type Connections interface {
	CreateConnection(ctx context.Context, userID, providerID, accessToken, refreshToken string, expiresIn int64) (*model.Connection, error)
	ListConnections(ctx context.Context, userID string) ([]model.Connection, error)
	CheckHealth(ctx context.Context, userID string) ([]model.ConnectionHealth, error)
	RefreshConnection(ctx context.Context, userID, connectionID string) (*model.Connection, error)
	DisconnectConnection(ctx context.Context, userID, connectionID string) error
}

// OAuth runs the authorization code flow.
type OAuth interface {
	AuthorizationURL(provider, userID string) (string, error)
	VerifyState(provider, state string) (vault.State, error)
	ExchangeCodeForToken(ctx context.Context, provider, code string) (*oauth.Token, error)
}

// Matcher ranks stored jobs for a user.
type Matcher interface {
	CalculateJobMatches(ctx context.Context, userID string) ([]model.MatchScore, error)
}

// Profiles stores match preferences.
type Profiles interface {
	GetPreference(ctx context.Context, userID string) (*model.Preference, error)
	SavePreference(ctx context.Context, pref *model.Preference) error
}

// Resumes imports résumé skills.
type Resumes interface {
	Import(ctx context.Context, userID, text string) ([]string, error)
}

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services behind the API. Nil optional services disable
// their routes.
type Deps struct {
	Registry    *registry.Registry
	Search      Searcher
	Connections Connections
	OAuth       OAuth
	Matches     Matcher
	Profiles    Profiles
	Resumes     Resumes
	Health      Pinger
	Metrics     *metrics.Metrics
	CORSOrigins []string
}

// Server holds the handlers' dependencies.
type Server struct {
	deps     Deps
	validate *validator.Validate
}

// NewServer creates a Server.
func NewServer(deps Deps) *Server {
	return &Server{deps: deps, validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := s.deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", UserHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if s.deps.Metrics != nil {
		r.Handle("/metrics", s.deps.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		// The callback is reached by the provider redirect; the user comes
		// from the unsigned state token, not the header.
		r.Get("/oauth/{provider}/callback", s.handleOAuthCallback)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)

			r.Get("/oauth/{provider}/authorize", s.handleOAuthAuthorize)

			r.Route("/job-boards", func(r chi.Router) {
				r.Post("/search", s.handleSearch)
				r.Get("/search/history", s.handleHistory)
				r.Get("/providers", s.handleProviders)
				r.Get("/providers/available", s.handleAvailableProviders)
				r.Get("/connections", s.handleListConnections)
				r.Get("/connections/health", s.handleHealthCheck)
				r.Post("/connections/{id}/refresh", s.handleRefreshConnection)
				r.Delete("/connections/{id}", s.handleDisconnect)
				r.Get("/{provider}/jobs/{externalID}", s.handleJobDetails)
			})

			r.Get("/matches", s.handleMatches)
			r.Get("/preferences", s.handleGetPreference)
			r.Put("/preferences", s.handleSavePreference)
			r.Post("/resume", s.handleImportResume)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, envelope{Success: false, Error: "store unavailable"})
			return
		}
	}
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}
