package match

import (
	"math"
	"strings"

	"golang.org/x/text/cases"

	"github.com/sells-group/jobsearch-cli/internal/model"
)

// lower case-folds s. Casers are stateful, so each call gets its own.
func lower(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// titleScore is the best score of jobTitle against any preferred title.
func titleScore(jobTitle string, preferred []string) float64 {
	job := lower(jobTitle)
	if job == "" || len(preferred) == 0 {
		return 0
	}

	best := 0.0
	jobWords := strings.Fields(job)
	for _, p := range preferred {
		want := lower(p)
		if want == "" {
			continue
		}
		if job == want {
			return 1.0
		}
		if strings.Contains(job, want) || strings.Contains(want, job) {
			best = math.Max(best, 0.8)
		}

		wantWords := strings.Fields(want)
		common := 0
		for _, w := range jobWords {
			for _, x := range wantWords {
				if w == x {
					common++
					break
				}
			}
		}
		overlap := float64(common) / float64(max(len(jobWords), len(wantWords)))
		best = math.Max(best, overlap*0.6)
	}
	return best
}

// locationScore compares the job's location against the user's remote
// preference and preferred locations.
func locationScore(job model.Listing, preferred []string, remote model.RemotePreference) float64 {
	loc := lower(job.Location)

	if job.Remote || strings.Contains(loc, "remote") {
		switch remote {
		case model.RemoteOnly, model.RemoteAny:
			return 1.0
		case model.RemoteHybrid:
			return 0.8
		default:
			return 0.3
		}
	}

	if strings.Contains(loc, "hybrid") {
		switch remote {
		case model.RemoteHybrid, model.RemoteAny:
			return 1.0
		case model.RemoteOnly, model.RemoteOnsite:
			return 0.7
		}
	}

	if loc == "" {
		return 0
	}
	for _, p := range preferred {
		want := lower(p)
		if want == "" {
			continue
		}
		// A preferred "remote" only matched remote jobs above.
		if want == "remote" && remote != model.RemoteOnsite {
			continue
		}
		if strings.Contains(loc, want) || strings.Contains(want, loc) {
			return 1.0
		}
	}
	return 0.2
}

// skillsScore is the fraction of required skills covered by the user's
// skills, matching by substring in either direction.
func skillsScore(required, userSkills []string) float64 {
	if len(required) == 0 {
		return 0.5
	}

	have := make([]string, 0, len(userSkills))
	seen := make(map[string]bool, len(userSkills))
	for _, s := range userSkills {
		s = lower(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		have = append(have, s)
	}

	matched := 0
	for _, r := range required {
		need := lower(r)
		for _, h := range have {
			if strings.Contains(h, need) || strings.Contains(need, h) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(required))
}

func positive(p *float64) (float64, bool) {
	if p == nil || *p <= 0 {
		return 0, false
	}
	return *p, true
}

// salaryScore measures how much of the user's band the job's band covers.
// A missing maximum falls back to the minimum on either side, so a lone
// figure is a zero-width band. A missing minimum is 0.
func salaryScore(jobMin, jobMax, userMin, userMax *float64) float64 {
	jMin, hasJMin := positive(jobMin)
	jMax, hasJMax := positive(jobMax)
	uMin, hasUMin := positive(userMin)
	uMax, hasUMax := positive(userMax)

	switch {
	case !hasJMin && !hasJMax:
		return 0.5
	case !hasUMin && !hasUMax:
		return 0.3
	}

	if !hasJMax {
		jMax = jMin
	}
	if !hasUMax {
		uMax = uMin
	}

	if jMax < uMin || jMin > uMax {
		return 0.1
	}
	width := uMax - uMin
	if width == 0 {
		return 1.0
	}
	overlap := math.Min(jMax, uMax) - math.Max(jMin, uMin)
	return math.Min(overlap/width, 1.0)
}

func normalizeType(s string) string {
	return strings.ReplaceAll(lower(s), "-", "")
}

// jobTypeScore compares job types ignoring case and hyphens.
func jobTypeScore(jobType model.JobType, preferred []model.JobType) float64 {
	if jobType == "" || len(preferred) == 0 {
		return 0.5
	}
	want := normalizeType(string(jobType))
	for _, p := range preferred {
		if normalizeType(string(p)) == want {
			return 1.0
		}
	}
	return 0.2
}

// experienceLevels maps level names to their rank on the seniority scale.
var experienceLevels = map[string]int{
	"entry":          0,
	"entry level":    0,
	"entry-level":    0,
	"junior":         0,
	"mid":            1,
	"mid level":      1,
	"mid-level":      1,
	"intermediate":   1,
	"senior":         2,
	"senior level":   2,
	"senior-level":   2,
	"lead":           3,
	"principal":      3,
	"lead/principal": 3,
	"staff":          3,
	"executive":      4,
	"director":       4,
}

func experienceScore(jobLevel, userLevel string) float64 {
	j, okJ := experienceLevels[lower(jobLevel)]
	u, okU := experienceLevels[lower(userLevel)]
	if !okJ || !okU {
		return 0.5
	}
	switch d := j - u; {
	case d == 0:
		return 1.0
	case d == 1 || d == -1:
		return 0.8
	case d == 2 || d == -2:
		return 0.5
	default:
		return 0.2
	}
}

// excluded reports whether the job's title or description contains any
// of the keywords.
func excluded(job model.Listing, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	text := lower(job.Title) + "\n" + lower(job.Description)
	for _, k := range keywords {
		if k = lower(k); k != "" && strings.Contains(text, k) {
			return true
		}
	}
	return false
}
