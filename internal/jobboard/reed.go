package jobboard

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/resilience"
)

// ReedID is the provider id of Reed.
const ReedID = "reed"

var (
	reedQueryTypes = queryTable{
		model.JobTypeFullTime:   "permanent",
		model.JobTypePartTime:   "part-time",
		model.JobTypeContract:   "contract",
		model.JobTypeTemporary:  "temporary",
		model.JobTypeInternship: "internship",
	}
	reedJobTypes = jobTypeTable{
		"permanent":  model.JobTypeFullTime,
		"contract":   model.JobTypeContract,
		"temporary":  model.JobTypeTemporary,
		"part-time":  model.JobTypePartTime,
		"internship": model.JobTypeInternship,
	}
)

type reed struct {
	base
}

// NewReed creates a Reed (UK) API client. Reed authenticates with HTTP Basic
// using the API key as the username and an empty password.
func NewReed(opts ...Option) Client {
	c := &reed{base: newBase(ReedID, "https://www.reed.co.uk/api/1.0",
		resilience.WindowLimits{PerMinute: 60, PerHour: 200}, opts)}
	c.auth = basicKeyAuth
	return c
}

func basicKeyAuth(r *http.Request, key string) {
	r.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(key+":")))
}

func (c *reed) FetchJobs(ctx context.Context, req model.SearchRequest, token string) ([]model.Listing, error) {
	q := url.Values{}
	if req.Query != "" {
		q.Add("keywords", req.Query)
	}
	if req.Location != "" {
		q.Add("locationName", req.Location)
	}
	if req.Remote {
		q.Add("workFromHome", "true")
	}
	if req.JobType != "" {
		q.Add("employmentType", reedQueryTypes.param(req.JobType, "permanent"))
	}
	if req.SalaryMin != nil {
		q.Add("minimumSalary", formatAmount(*req.SalaryMin))
	}
	if req.SalaryMax != nil {
		q.Add("maximumSalary", formatAmount(*req.SalaryMax))
	}
	if req.PostedWithin > 0 {
		q.Add("postedByDays", strconv.Itoa(req.PostedWithin))
	}
	q.Add("resultsToTake", pageSize)
	return c.search(ctx, "/search", q, token, []string{"results"}, c.normalize)
}

func (c *reed) GetJobDetails(ctx context.Context, id, token string) (*model.Listing, error) {
	return c.details(ctx, jobPath("/jobs/", id), nil, token, c.normalize)
}

func (c *reed) ValidateToken(ctx context.Context, token string) (bool, error) {
	return c.validate(ctx, "/search", url.Values{"resultsToTake": {"1"}}, token)
}

func (c *reed) normalize(r rawJob) model.Listing {
	id := r.str("jobId", "id")
	l := model.Listing{
		ExternalID:   id,
		ProviderID:   ReedID,
		Title:        r.str("jobTitle", "title"),
		Company:      r.str("employerName", "company"),
		Location:     r.str("locationName", "location"),
		CountryCode:  "GB",
		Description:  r.str("jobDescription", "description"),
		Requirements: r.text("requirements"),
		JobType:      reedJobTypes.normalize(r.str("employmentType")),
		Remote:       r.flag("workFromHome"),
		URL:          r.str("jobUrl"),
		PostedDate:   r.date("date"),
		ExpiryDate:   r.date("expirationDate"),
		Premium:      r.flag("featured"),
		Payload: r.payload(map[string]any{
			"applications": r.value("applications"),
			"partTime":     r.value("partTime"),
			"fullTime":     r.value("fullTime"),
			"contractType": r.value("contractType"),
		}),
	}
	if l.URL == "" {
		l.URL = "https://www.reed.co.uk/jobs/" + id
	}
	salary{Min: r.num("minimumSalary"), Max: r.num("maximumSalary"), Currency: "GBP"}.apply(&l, "GBP")
	return l
}
