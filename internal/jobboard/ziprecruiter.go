package jobboard

import (
	"context"
	"net/url"
	"strconv"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/resilience"
)

// ZipRecruiterID is the provider id of ZipRecruiter.
const ZipRecruiterID = "ziprecruiter"

var zipRecruiterJobTypes = jobTypeTable{
	"full_time":  model.JobTypeFullTime,
	"part_time":  model.JobTypePartTime,
	"contract":   model.JobTypeContract,
	"temporary":  model.JobTypeTemporary,
	"internship": model.JobTypeInternship,
}

type zipRecruiter struct {
	base
}

// NewZipRecruiter creates a ZipRecruiter API client.
func NewZipRecruiter(opts ...Option) Client {
	return &zipRecruiter{base: newBase(ZipRecruiterID, "https://api.ziprecruiter.com/v2",
		resilience.WindowLimits{PerMinute: 60, PerHour: 500}, opts)}
}

func (c *zipRecruiter) FetchJobs(ctx context.Context, req model.SearchRequest, token string) ([]model.Listing, error) {
	q := url.Values{}
	if req.Query != "" {
		q.Add("search", req.Query)
	}
	if req.Location != "" {
		q.Add("location", req.Location)
	}
	if req.Remote {
		q.Add("refine_by_location_type", "only_remote")
	}
	if req.JobType != "" {
		q.Add("refine_by_employment", string(req.JobType))
	}
	if req.SalaryMin != nil {
		q.Add("refine_by_salary", formatAmount(*req.SalaryMin))
	}
	if req.PostedWithin > 0 {
		q.Add("days_ago", strconv.Itoa(req.PostedWithin))
	}
	q.Add("jobs_per_page", pageSize)
	q.Add("include_match_score", "true")
	return c.search(ctx, "/jobs", q, token, []string{"jobs"}, c.normalize)
}

func (c *zipRecruiter) GetJobDetails(ctx context.Context, id, token string) (*model.Listing, error) {
	return c.details(ctx, jobPath("/jobs/", id), nil, token, c.normalize)
}

func (c *zipRecruiter) ValidateToken(ctx context.Context, token string) (bool, error) {
	return c.validate(ctx, "/auth/verify", nil, token)
}

func (c *zipRecruiter) normalize(r rawJob) model.Listing {
	l := model.Listing{
		ExternalID:   r.str("job_id", "id"),
		ProviderID:   ZipRecruiterID,
		Title:        r.str("name", "title"),
		Company:      r.str("hiring_company.name", "company"),
		Location:     r.str("location", "city_state"),
		CountryCode:  r.str("country"),
		Description:  r.str("snippet", "job_description"),
		Requirements: r.text("job_requirements"),
		JobType:      zipRecruiterJobTypes.normalize(r.str("employment_type")),
		Remote:       r.equals("location_type", "remote") || r.flag("is_remote"),
		URL:          r.str("url", "job_url"),
		PostedDate:   r.date("posted_time"),
		Premium:      r.flag("featured", "is_sponsored"),
		Payload: r.payload(map[string]any{
			"match_score":       r.value("match_score"),
			"urgency_indicator": r.value("urgency_indicator"),
			"easy_apply":        r.value("easy_apply"),
		}),
	}
	if l.CountryCode == "" {
		l.CountryCode = "US"
	}
	zipRecruiterSalary(r).apply(&l, "USD")
	return l
}

func zipRecruiterSalary(r rawJob) salary {
	if obj := r.object("compensation"); obj.Exists() {
		return salary{
			Min:      obj.num("min_annual_salary"),
			Max:      obj.num("max_annual_salary"),
			Currency: obj.str("currency"),
		}
	}
	interval := r.str("salary_interval")
	minV, maxV := r.num("salary_min"), r.num("salary_max")
	if interval != "" && minV != nil && maxV != nil {
		mult := intervalMultiplier(interval)
		return salary{Min: scale(minV, mult), Max: scale(maxV, mult), Currency: "USD"}
	}
	return salary{}
}
