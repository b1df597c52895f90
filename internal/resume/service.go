package resume

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrEmptyResume is returned when there is no résumé text to read.
var ErrEmptyResume = eris.New("resume: empty resume text")

// Store persists a user's extracted skills.
type Store interface {
	SaveResumeSkills(ctx context.Context, userID string, skills []string) error
}

// Service extracts and stores résumé skills.
type Service struct {
	extractor Extractor
	store     Store
}

// NewService creates a Service.
func NewService(extractor Extractor, st Store) *Service {
	return &Service{extractor: extractor, store: st}
}

// Import extracts skills from text and replaces the user's stored skills.
func (s *Service) Import(ctx context.Context, userID, text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResume
	}
	skills, err := s.extractor.ExtractSkills(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveResumeSkills(ctx, userID, skills); err != nil {
		return nil, eris.Wrapf(err, "resume: save skills for %s", userID)
	}
	zap.L().Info("resume: skills imported",
		zap.String("user_id", userID),
		zap.Int("skills", len(skills)),
	)
	return skills, nil
}
