package jobboard

import (
	"context"
	"net/url"
	"strconv"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/resilience"
)

// MonsterID is the provider id of Monster.
const MonsterID = "monster"

var (
	monsterQueryTypes = queryTable{
		model.JobTypeFullTime:   "Full-Time",
		model.JobTypePartTime:   "Part-Time",
		model.JobTypeContract:   "Contract",
		model.JobTypeTemporary:  "Temporary",
		model.JobTypeInternship: "Internship",
	}
	monsterJobTypes = jobTypeTable{
		"full-time":  model.JobTypeFullTime,
		"part-time":  model.JobTypePartTime,
		"contract":   model.JobTypeContract,
		"temporary":  model.JobTypeTemporary,
		"internship": model.JobTypeInternship,
		"seasonal":   model.JobTypeTemporary,
	}
)

type monster struct {
	base
}

// NewMonster creates a Monster API client.
func NewMonster(opts ...Option) Client {
	return &monster{base: newBase(MonsterID, "https://api.monster.com/v1",
		resilience.WindowLimits{PerMinute: 60, PerHour: 200}, opts)}
}

func (c *monster) FetchJobs(ctx context.Context, req model.SearchRequest, token string) ([]model.Listing, error) {
	q := url.Values{}
	if req.Query != "" {
		q.Add("q", req.Query)
	}
	if req.Location != "" {
		q.Add("where", req.Location)
	}
	if req.Country != "" {
		q.Add("cy", req.Country)
	}
	// tm=1 is telecommute; tm=N with N days filters by age.
	if req.Remote {
		q.Add("tm", "1")
	}
	if req.JobType != "" {
		q.Add("jt", monsterQueryTypes.param(req.JobType, "Full-Time"))
	}
	if req.SalaryMin != nil {
		q.Add("sal", formatAmount(*req.SalaryMin))
	}
	if req.PostedWithin > 0 {
		q.Add("tm", strconv.Itoa(req.PostedWithin))
	}
	q.Add("page", "1")
	q.Add("pageSize", pageSize)
	return c.search(ctx, "/jobs/search", q, token, []string{"results"}, c.normalize)
}

func (c *monster) GetJobDetails(ctx context.Context, id, token string) (*model.Listing, error) {
	return c.details(ctx, jobPath("/jobs/", id), nil, token, c.normalize)
}

func (c *monster) ValidateToken(ctx context.Context, token string) (bool, error) {
	return c.validate(ctx, "/auth/validate", nil, token)
}

func (c *monster) normalize(r rawJob) model.Listing {
	id := r.str("jobId", "id")
	l := model.Listing{
		ExternalID:   id,
		ProviderID:   MonsterID,
		Title:        r.str("title", "jobTitle"),
		Company:      r.str("company.name", "companyName"),
		Location:     r.str("location.displayName", "location"),
		CountryCode:  r.str("location.countryCode"),
		Description:  r.str("description", "jobDescription"),
		Requirements: r.text("requirements", "qualifications"),
		JobType:      monsterJobTypes.normalize(r.str("jobType")),
		Remote:       r.flag("isTelecommute", "remote"),
		URL:          r.str("applyUrl", "url"),
		PostedDate:   r.date("postedDate"),
		ExpiryDate:   r.date("expirationDate"),
		Premium:      r.flag("featured"),
		Payload: r.payload(map[string]any{
			"company_logo":       r.value("company.logoUrl"),
			"apply_requirements": r.value("applyRequirements"),
		}),
	}
	if l.URL == "" {
		l.URL = "https://www.monster.com/job-openings/" + id
	}
	monsterSalary(r).apply(&l, "USD")
	return l
}

func monsterSalary(r rawJob) salary {
	if obj := r.object("salary"); obj.Exists() {
		return salary{
			Min:      obj.num("min", "minValue"),
			Max:      obj.num("max", "maxValue"),
			Currency: obj.str("currency"),
		}
	}
	if s := r.str("salaryRange"); s != "" {
		minV, maxV := parseRange(s)
		return salary{Min: minV, Max: maxV, Currency: "USD"}
	}
	return salary{}
}
