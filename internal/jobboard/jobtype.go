package jobboard

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/jobsearch-cli/internal/model"
)

// jobTypeTable maps a board's employment type vocabulary onto model.JobType.
// Lookups are case-insensitive.
type jobTypeTable map[string]model.JobType

// normalize maps raw to a JobType. Missing or unknown values are full-time.
func (t jobTypeTable) normalize(raw string) model.JobType {
	if jt, ok := t[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return jt
	}
	return model.JobTypeFullTime
}

// queryTable maps model.JobType onto a board's query vocabulary.
type queryTable map[model.JobType]string

// param returns the board term for jt, falling back to def.
func (t queryTable) param(jt model.JobType, def string) string {
	if v, ok := t[model.JobType(strings.ToLower(string(jt)))]; ok {
		return v
	}
	return def
}

// levelTable maps a board's seniority vocabulary onto the level names the
// matcher ranks. Keys are lower case with spaces and hyphens as underscores.
type levelTable map[string]string

// normalize maps raw to a level, or "" when unknown.
func (t levelTable) normalize(raw string) string {
	key := strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(strings.TrimSpace(raw)))
	return t[key]
}

var leadingYearsRe = regexp.MustCompile(`^\s*(\d+)`)

// levelFromYears maps a minimum years-of-experience figure onto a level.
func levelFromYears(years int) string {
	switch {
	case years < 0:
		return ""
	case years < 2:
		return "entry"
	case years < 5:
		return "mid"
	case years < 8:
		return "senior"
	case years < 12:
		return "lead"
	default:
		return "executive"
	}
}

// levelFromYearsText reads the leading figure of text such as "3-5 Yrs".
func levelFromYearsText(text string) string {
	m := leadingYearsRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return ""
	}
	return levelFromYears(n)
}

var countryNames = []struct {
	name string
	code string
}{
	{"United States", "US"},
	{"United Kingdom", "GB"},
	{"Canada", "CA"},
	{"Germany", "DE"},
	{"France", "FR"},
	{"India", "IN"},
	{"Australia", "AU"},
}

// countryFromLocation finds a known country name inside a free-form location.
func countryFromLocation(loc string) string {
	for _, c := range countryNames {
		if strings.Contains(loc, c.name) {
			return c.code
		}
	}
	return ""
}
