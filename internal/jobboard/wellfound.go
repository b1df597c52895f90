package jobboard

import (
	"context"
	"net/url"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/resilience"
)

// WellfoundID is the provider id of Wellfound.
const WellfoundID = "wellfound"

// premiumQualityScore is the startup quality score above which listings are
// treated as premium.
const premiumQualityScore = 7

var wellfoundJobTypes = jobTypeTable{
	"full-time":  model.JobTypeFullTime,
	"part-time":  model.JobTypePartTime,
	"contract":   model.JobTypeContract,
	"internship": model.JobTypeInternship,
	"cofounder":  model.JobTypeFullTime,
}

var wellfoundQueryTypes = queryTable{
	model.JobTypeFullTime:   "full-time",
	model.JobTypePartTime:   "part-time",
	model.JobTypeContract:   "contract",
	model.JobTypeInternship: "internship",
}

type wellfound struct {
	base
}

// NewWellfound creates a Wellfound (startup jobs) API client. Search results
// may be grouped by startup, each with its own jobs array.
func NewWellfound(opts ...Option) Client {
	return &wellfound{base: newBase(WellfoundID, "https://api.wellfound.com/v1",
		resilience.WindowLimits{PerMinute: 60, PerHour: 100}, opts)}
}

func (c *wellfound) FetchJobs(ctx context.Context, req model.SearchRequest, token string) ([]model.Listing, error) {
	q := url.Values{}
	if req.Query != "" {
		q.Add("role", req.Query)
	}
	if req.Location != "" {
		q.Add("location", req.Location)
	}
	if req.Remote {
		q.Add("remote", "true")
	}
	if req.JobType != "" {
		q.Add("type", wellfoundQueryTypes.param(req.JobType, "full-time"))
	}
	if req.SalaryMin != nil {
		q.Add("min_salary", formatAmount(*req.SalaryMin))
	}
	q.Add("per_page", pageSize)

	body, err := c.get(ctx, "/jobs", q, token)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, eris.Errorf("jobboard: %s returned invalid json", c.id)
	}

	root := gjson.ParseBytes(body)
	items := root.Get("jobs")
	if !items.IsArray() || len(items.Array()) == 0 {
		items = root.Get("startups")
	}

	var listings []model.Listing
	for _, item := range items.Array() {
		rj := rawJob{item}
		if nested := item.Get("jobs"); nested.IsArray() {
			for _, job := range nested.Array() {
				listings = append(listings, c.normalizeWithStartup(rawJob{job}, rj))
			}
			continue
		}
		listings = append(listings, c.normalize(rj))
	}
	return listings, nil
}

func (c *wellfound) GetJobDetails(ctx context.Context, id, token string) (*model.Listing, error) {
	return c.details(ctx, jobPath("/jobs/", id), nil, token, c.normalize)
}

func (c *wellfound) ValidateToken(ctx context.Context, token string) (bool, error) {
	return c.validate(ctx, "/me", nil, token)
}

func (c *wellfound) normalize(r rawJob) model.Listing {
	return c.normalizeWithStartup(r, r.object("startup"))
}

func (c *wellfound) normalizeWithStartup(r, startup rawJob) model.Listing {
	id := r.str("id", "jobId")
	quality := startup.Get("quality_score")

	l := model.Listing{
		ExternalID:   id,
		ProviderID:   WellfoundID,
		Title:        r.str("title", "role"),
		Company:      firstNonEmpty(startup.str("name"), r.str("company_name")),
		Location:     r.str("location_name", "location"),
		CountryCode:  r.str("country_code"),
		Description:  r.str("description", "job_description"),
		Requirements: r.text("requirements", "skills"),
		JobType:      wellfoundJobTypes.normalize(r.str("job_type")),
		Remote:       r.flag("remote", "remote_ok"),
		URL:          r.str("angellist_url", "url"),
		PostedDate:   r.date("created_at"),
		Premium:      quality.Type == gjson.Number && quality.Num > premiumQualityScore,
		Payload: r.payload(map[string]any{
			"startup_name":     startup.value("name"),
			"startup_size":     startup.value("company_size"),
			"startup_stage":    startup.value("stage"),
			"quality_score":    startup.value("quality_score"),
			"equity_min":       r.value("equity_min"),
			"equity_max":       r.value("equity_max"),
			"visa_sponsorship": r.value("visa_sponsorship"),
		}),
	}
	if l.CountryCode == "" {
		l.CountryCode = "US"
	}
	if l.URL == "" {
		l.URL = "https://wellfound.com/l/" + id
	}
	wellfoundSalary(r).apply(&l, "USD")
	return l
}

func wellfoundSalary(r rawJob) salary {
	minV, maxV := r.num("salary_min"), r.num("salary_max")
	if minV != nil && maxV != nil {
		return salary{Min: minV, Max: maxV, Currency: r.str("currency_code")}
	}
	if s := r.str("salary_range"); s != "" {
		minV, maxV = parseRangeK(s)
		return salary{Min: minV, Max: maxV, Currency: "USD"}
	}
	return salary{}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
