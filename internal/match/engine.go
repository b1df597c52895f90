// Package match scores persisted job listings against a user's job
// preferences and résumé skills.
package match

import (
	"fmt"
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/jobsearch-cli/internal/config"
	"github.com/sells-group/jobsearch-cli/internal/model"
)

const (
	defaultMinScore   = 0.3
	defaultMaxResults = 50
	weightTolerance   = 1e-6
)

// Weights are the per-criterion weights of the final score.
type Weights struct {
	Title      float64
	Location   float64
	Skills     float64
	Salary     float64
	JobType    float64
	Experience float64
}

// DefaultWeights sum to 1.0.
var DefaultWeights = Weights{
	Title:      0.25,
	Location:   0.20,
	Skills:     0.25,
	Salary:     0.15,
	JobType:    0.10,
	Experience: 0.05,
}

func (w Weights) sum() float64 {
	return w.Title + w.Location + w.Skills + w.Salary + w.JobType + w.Experience
}

// Validate checks weights are non-negative and sum to 1.0.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Title, w.Location, w.Skills, w.Salary, w.JobType, w.Experience} {
		if v < 0 {
			return eris.New("match: negative weight")
		}
	}
	if s := w.sum(); math.Abs(s-1) > weightTolerance {
		return eris.Errorf("match: weights sum to %.4f, want 1.0", s)
	}
	return nil
}

// Candidate is a listing with the skills it asks for.
type Candidate struct {
	Job            model.Listing
	RequiredSkills []string
}

// NewCandidate derives required skills from the listing's requirements.
func NewCandidate(l model.Listing) Candidate {
	return Candidate{Job: l, RequiredSkills: RequiredSkills(l.Requirements)}
}

// Engine computes match scores. It holds no mutable state.
type Engine struct {
	weights    Weights
	minScore   float64
	maxResults int
}

// NewEngine builds an engine from cfg. Zero weights select DefaultWeights.
func NewEngine(cfg config.MatchConfig) (*Engine, error) {
	w := Weights(cfg.Weights)
	if w == (Weights{}) {
		w = DefaultWeights
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{weights: w, minScore: cfg.MinScore, maxResults: cfg.MaxResults}
	if e.minScore <= 0 {
		e.minScore = defaultMinScore
	}
	if e.maxResults <= 0 {
		e.maxResults = defaultMaxResults
	}
	return e, nil
}

// Score returns c's score in [0,1] for pref and the reasons that passed
// their thresholds, in criterion order.
func (e *Engine) Score(c Candidate, pref *model.Preference, resumeSkills []string) (float64, []string) {
	job := c.Job
	var reasons []string

	title := titleScore(job.Title, pref.DesiredTitles)
	switch {
	case title > 0.7:
		reasons = append(reasons, "Strong title match: "+job.Title)
	case title > 0.4:
		reasons = append(reasons, "Good title match: "+job.Title)
	}

	location := locationScore(job, pref.Locations, pref.RemotePreference)
	switch {
	case location > 0.8:
		reasons = append(reasons, "Perfect location match: "+job.Location)
	case location > 0.5:
		reasons = append(reasons, "Good location match: "+job.Location)
	}

	userSkills := append(append([]string(nil), pref.Skills...), resumeSkills...)
	skills := skillsScore(c.RequiredSkills, userSkills)
	pct := int(math.Round(skills * 100))
	switch {
	case skills > 0.7:
		reasons = append(reasons, fmt.Sprintf("Excellent skills match (%d%%)", pct))
	case skills > 0.4:
		reasons = append(reasons, fmt.Sprintf("Good skills match (%d%%)", pct))
	}

	salary := salaryScore(job.SalaryMin, job.SalaryMax, pref.SalaryMin, pref.SalaryMax)
	if salary > 0.8 {
		reasons = append(reasons, "Salary range matches your expectations")
	}

	jobType := jobTypeScore(job.JobType, pref.JobTypes)
	if jobType == 1 {
		reasons = append(reasons, "Perfect job type match: "+string(job.JobType))
	}

	experience := experienceScore(job.ExperienceLevel, pref.ExperienceLevel)

	w := e.weights
	total := title*w.Title +
		location*w.Location +
		skills*w.Skills +
		salary*w.Salary +
		jobType*w.JobType +
		experience*w.Experience
	return math.Min(total, 1), reasons
}

// Rank scores every candidate, drops those at or below the minimum score
// or matching an exclude keyword, and returns the best first. Ties keep
// candidate order.
func (e *Engine) Rank(cands []Candidate, pref *model.Preference, resumeSkills []string) []model.MatchScore {
	out := make([]model.MatchScore, 0, len(cands))
	for _, c := range cands {
		if excluded(c.Job, pref.ExcludeKeywords) {
			continue
		}
		score, reasons := e.Score(c, pref, resumeSkills)
		if score <= e.minScore {
			continue
		}
		if reasons == nil {
			reasons = []string{}
		}
		out = append(out, model.MatchScore{
			JobID:   c.Job.StorageKey(),
			Score:   score,
			Reasons: reasons,
			Job:     c.Job,
		})
	}
	sort.SliceStable(out, func(i, k int) bool { return out[i].Score > out[k].Score })
	if len(out) > e.maxResults {
		out = out[:e.maxResults]
	}
	return out
}
