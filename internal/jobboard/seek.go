package jobboard

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/resilience"
)

// SeekID is the provider id of Seek.
const SeekID = "seek"

const seekRemote = "work-from-home"

var (
	seekQueryTypes = queryTable{
		model.JobTypeFullTime:  "full-time",
		model.JobTypePartTime:  "part-time",
		model.JobTypeContract:  "contract-temp",
		model.JobTypeTemporary: "casual-vacation",
	}
	seekJobTypes = jobTypeTable{
		"full-time":       model.JobTypeFullTime,
		"part-time":       model.JobTypePartTime,
		"contract-temp":   model.JobTypeContract,
		"casual-vacation": model.JobTypeTemporary,
		seekRemote:        model.JobTypeFullTime,
	}
	seekSites = map[string]string{
		"AU": "seek-au",
		"NZ": "seek-nz",
		"HK": "jobsdb-hk",
		"SG": "jobsdb-sg",
		"TH": "jobsdb-th",
	}
)

type seek struct {
	base
}

// NewSeek creates a Seek (Australia and APAC) API client.
func NewSeek(opts ...Option) Client {
	return &seek{base: newBase(SeekID, "https://api.seek.com/v4",
		resilience.WindowLimits{PerMinute: 60, PerHour: 300}, opts)}
}

func (c *seek) FetchJobs(ctx context.Context, req model.SearchRequest, token string) ([]model.Listing, error) {
	q := url.Values{}
	if req.Query != "" {
		q.Add("keywords", req.Query)
	}
	if req.Location != "" {
		q.Add("where", req.Location)
	}
	if req.Country != "" {
		site, ok := seekSites[strings.ToUpper(req.Country)]
		if !ok {
			site = "seek-au"
		}
		q.Add("siteKey", site)
	}
	if req.Remote {
		q.Add("workType", seekRemote)
	}
	if req.JobType != "" {
		q.Add("workType", seekQueryTypes.param(req.JobType, "full-time"))
	}
	if req.SalaryMin != nil {
		q.Add("salaryFrom", formatAmount(*req.SalaryMin))
	}
	if req.PostedWithin > 0 {
		q.Add("dateRange", strconv.Itoa(req.PostedWithin))
	}
	q.Add("pageSize", pageSize)
	return c.search(ctx, "/jobs", q, token, []string{"data"}, c.normalize)
}

func (c *seek) GetJobDetails(ctx context.Context, id, token string) (*model.Listing, error) {
	return c.details(ctx, jobPath("/jobs/", id), nil, token, c.normalize)
}

func (c *seek) ValidateToken(ctx context.Context, token string) (bool, error) {
	return c.validate(ctx, "/auth/validate", nil, token)
}

func (c *seek) normalize(r rawJob) model.Listing {
	id := r.str("id", "jobId")
	workType := r.str("workType")
	l := model.Listing{
		ExternalID:   id,
		ProviderID:   SeekID,
		Title:        r.str("title", "jobTitle"),
		Company:      r.str("advertiser.name", "company"),
		Location:     r.str("location.label", "location"),
		CountryCode:  r.str("location.countryCode"),
		Description:  r.str("content", "description"),
		Requirements: r.text("requirements"),
		JobType:      seekJobTypes.normalize(workType),
		Remote:       strings.EqualFold(workType, seekRemote),
		URL:          r.str("url"),
		PostedDate:   r.date("listedAt"),
		Premium:      r.flag("isPremium", "standOut"),
		Payload: r.payload(map[string]any{
			"classification":    r.value("classification"),
			"subClassification": r.value("subClassification"),
			"standOut":          r.value("standOut"),
		}),
	}
	if l.CountryCode == "" {
		l.CountryCode = "AU"
	}
	if l.URL == "" {
		l.URL = "https://www.seek.com.au/job/" + id
	}
	seekSalary(r).apply(&l, "AUD")
	return l
}

func seekSalary(r rawJob) salary {
	if obj := r.object("salary"); obj.Exists() {
		return salary{Min: obj.num("minimum"), Max: obj.num("maximum"), Currency: obj.str("currencyCode")}
	}
	if s := r.str("salaryRange"); s != "" {
		minV, maxV := parseRange(s)
		return salary{Min: minV, Max: maxV, Currency: "AUD"}
	}
	return salary{}
}
