package match

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobsearch-cli/internal/metrics"
	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/store"
)

const defaultCandidateLimit = 100

// ErrPreferencesNotFound is returned when the user has saved no preferences.
var ErrPreferencesNotFound = eris.New("match: preferences not found")

// Store is the persistence the match service reads.
type Store interface {
	GetPreference(ctx context.Context, userID string) (*model.Preference, error)
	GetResumeSkills(ctx context.Context, userID string) ([]string, error)
	ListRecentJobs(ctx context.Context, limit int) ([]model.Listing, error)
}

// Service ranks stored listings for a user.
type Service struct {
	store          Store
	engine         *Engine
	candidateLimit int
	metrics        *metrics.Metrics
}

// NewService creates a Service. candidateLimit <= 0 selects 100.
func NewService(st Store, engine *Engine, candidateLimit int, m *metrics.Metrics) *Service {
	if candidateLimit <= 0 {
		candidateLimit = defaultCandidateLimit
	}
	return &Service{store: st, engine: engine, candidateLimit: candidateLimit, metrics: m}
}

// CalculateJobMatches ranks the most recent stored listings against the
// user's preferences and résumé skills.
func (s *Service) CalculateJobMatches(ctx context.Context, userID string) ([]model.MatchScore, error) {
	matches, err := s.calculate(ctx, userID)
	s.metrics.ObserveMatch(err)
	return matches, err
}

func (s *Service) calculate(ctx context.Context, userID string) ([]model.MatchScore, error) {
	pref, err := s.store.GetPreference(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, eris.Wrapf(ErrPreferencesNotFound, "user %s", userID)
		}
		return nil, eris.Wrapf(err, "match: load preferences for %s", userID)
	}

	resumeSkills, err := s.store.GetResumeSkills(ctx, userID)
	if err != nil {
		return nil, eris.Wrapf(err, "match: load resume skills for %s", userID)
	}

	jobs, err := s.store.ListRecentJobs(ctx, s.candidateLimit)
	if err != nil {
		return nil, eris.Wrap(err, "match: load candidate jobs")
	}

	cands := make([]Candidate, len(jobs))
	for i, j := range jobs {
		cands[i] = NewCandidate(j)
	}
	matches := s.engine.Rank(cands, pref, resumeSkills)

	zap.L().Info("match: ranked jobs",
		zap.String("user_id", userID),
		zap.Int("candidates", len(cands)),
		zap.Int("matches", len(matches)),
	)
	return matches, nil
}
