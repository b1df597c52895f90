package jobboard

import (
	"context"
	"net/url"
	"strings"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/resilience"
)

// GlassdoorID is the provider id of Glassdoor.
const GlassdoorID = "glassdoor"

var (
	glassdoorJobTypes = jobTypeTable{
		"full_time": model.JobTypeFullTime,
		"part_time": model.JobTypePartTime,
		"contract":  model.JobTypeContract,
		"temporary": model.JobTypeTemporary,
		"intern":    model.JobTypeInternship,
	}
	glassdoorCountries = map[string]string{
		"US": "1", "UK": "2", "CA": "3", "AU": "4", "IN": "5", "DE": "6", "FR": "7",
	}
)

type glassdoor struct {
	base
}

// NewGlassdoor creates a Glassdoor API client.
func NewGlassdoor(opts ...Option) Client {
	return &glassdoor{base: newBase(GlassdoorID, "https://api.glassdoor.com/api/v1",
		resilience.WindowLimits{PerMinute: 60, PerHour: 1000}, opts)}
}

func (c *glassdoor) FetchJobs(ctx context.Context, req model.SearchRequest, token string) ([]model.Listing, error) {
	q := url.Values{}
	if req.Query != "" {
		q.Add("jobTitle", req.Query)
	}
	if req.Location != "" {
		q.Add("location", req.Location)
	}
	if req.Country != "" {
		id, ok := glassdoorCountries[strings.ToUpper(req.Country)]
		if !ok {
			id = "1"
		}
		q.Add("countryId", id)
	}
	if req.Remote {
		q.Add("remoteWorkType", "1")
	}
	if req.JobType != "" {
		q.Add("employmentType", string(req.JobType))
	}
	if req.SalaryMin != nil {
		q.Add("fromSalary", formatAmount(*req.SalaryMin))
	}
	q.Add("includeRatings", "true")
	q.Add("pageSize", pageSize)
	return c.search(ctx, "/jobs/search", q, token, []string{"jobs"}, c.normalize)
}

func (c *glassdoor) GetJobDetails(ctx context.Context, id, token string) (*model.Listing, error) {
	return c.details(ctx, jobPath("/jobs/", id), url.Values{"includeRatings": {"true"}}, token, c.normalize)
}

func (c *glassdoor) ValidateToken(ctx context.Context, token string) (bool, error) {
	return c.validate(ctx, "/auth/validate", nil, token)
}

func (c *glassdoor) normalize(r rawJob) model.Listing {
	id := r.str("jobId", "id")
	l := model.Listing{
		ExternalID:   id,
		ProviderID:   GlassdoorID,
		Title:        r.str("jobTitle", "title"),
		Company:      r.str("employer.name", "companyName"),
		Location:     r.str("location.name", "location"),
		CountryCode:  r.str("location.countryCode"),
		Description:  r.str("jobDescription", "description"),
		Requirements: r.text("qualifications"),
		JobType:      glassdoorJobTypes.normalize(r.str("employmentType")),
		Remote:       r.equals("remoteWorkType", "1") || r.flag("isRemote"),
		URL:          r.str("jobUrl"),
		PostedDate:   r.date("postedDate"),
		Premium:      r.flag("featured"),
		Payload: r.payload(map[string]any{
			"companyRating": r.value("employer.rating"),
			"reviewCount":   r.value("employer.numberOfReviews"),
		}),
	}
	if l.URL == "" {
		l.URL = "https://www.glassdoor.com/job-listing/" + id
	}
	glassdoorSalary(r).apply(&l, "USD")
	return l
}

func glassdoorSalary(r rawJob) salary {
	if obj := r.object("salary"); obj.Exists() {
		return salary{
			Min:      obj.num("min", "salaryMin"),
			Max:      obj.num("max", "salaryMax"),
			Currency: obj.str("currency"),
		}
	}
	if s := r.str("salaryEstimate"); s != "" {
		minV, maxV := parseRangeK(s)
		return salary{Min: minV, Max: maxV, Currency: "USD"}
	}
	return salary{}
}
