package jobboard

import (
	"context"
	"net/url"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/resilience"
)

// IndeedID is the provider id of Indeed.
const IndeedID = "indeed"

var indeedJobTypes = jobTypeTable{
	"fulltime":   model.JobTypeFullTime,
	"parttime":   model.JobTypePartTime,
	"contract":   model.JobTypeContract,
	"temporary":  model.JobTypeTemporary,
	"internship": model.JobTypeInternship,
}

type indeed struct {
	base
}

// NewIndeed creates an Indeed Publisher API client.
func NewIndeed(opts ...Option) Client {
	return &indeed{base: newBase(IndeedID, "https://apis.indeed.com/v1",
		resilience.WindowLimits{PerMinute: 60, PerHour: 100}, opts)}
}

func (c *indeed) FetchJobs(ctx context.Context, req model.SearchRequest, token string) ([]model.Listing, error) {
	q := url.Values{}
	if req.Query != "" {
		q.Add("q", req.Query)
	}
	if req.Location != "" {
		q.Add("l", req.Location)
	}
	if req.Country != "" {
		q.Add("co", req.Country)
	}
	// Indeed folds remote into the job type filter; both may be sent.
	if req.Remote {
		q.Add("jt", "remote")
	}
	if req.JobType != "" {
		q.Add("jt", string(req.JobType))
	}
	if req.SalaryMin != nil {
		q.Add("salary", formatAmount(*req.SalaryMin))
	}
	q.Add("limit", pageSize)
	return c.search(ctx, "/jobs/search", q, token, []string{"results"}, c.normalize)
}

func (c *indeed) GetJobDetails(ctx context.Context, id, token string) (*model.Listing, error) {
	return c.details(ctx, jobPath("/jobs/", id), nil, token, c.normalize)
}

func (c *indeed) ValidateToken(ctx context.Context, token string) (bool, error) {
	return c.validate(ctx, "/auth/verify", nil, token)
}

func (c *indeed) normalize(r rawJob) model.Listing {
	key := r.str("jobkey", "id")
	l := model.Listing{
		ExternalID:   key,
		ProviderID:   IndeedID,
		Title:        r.str("jobtitle", "title"),
		Company:      r.str("company"),
		Location:     r.str("formattedLocation", "location"),
		CountryCode:  r.str("country"),
		Description:  r.str("snippet", "description"),
		Requirements: r.text("requirements"),
		JobType:      indeedJobTypes.normalize(r.str("jobtype")),
		Remote:       r.flag("remote"),
		URL:          r.str("url"),
		PostedDate:   r.date("date"),
		Premium:      r.flag("sponsored"),
		Payload:      r.payload(nil),
	}
	if l.URL == "" {
		l.URL = "https://www.indeed.com/viewjob?jk=" + url.QueryEscape(key)
	}
	indeedSalary(r).apply(&l, "USD")
	return l
}

func indeedSalary(r rawJob) salary {
	if obj := r.object("salary"); obj.Exists() {
		return salary{Min: obj.num("min"), Max: obj.num("max"), Currency: obj.str("currency")}
	}
	if s := r.str("salary"); s != "" {
		minV, maxV := parseRange(s)
		return salary{Min: minV, Max: maxV, Currency: "USD"}
	}
	return salary{}
}
