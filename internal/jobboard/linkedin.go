package jobboard

import (
	"context"
	"net/url"
	"strconv"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/resilience"
)

// LinkedInID is the provider id of LinkedIn.
const LinkedInID = "linkedin"

var (
	linkedInQueryTypes = queryTable{
		model.JobTypeFullTime:   "F",
		model.JobTypePartTime:   "P",
		model.JobTypeContract:   "C",
		model.JobTypeTemporary:  "T",
		model.JobTypeInternship: "I",
	}
	linkedInJobTypes = jobTypeTable{
		"f":          model.JobTypeFullTime,
		"p":          model.JobTypePartTime,
		"c":          model.JobTypeContract,
		"t":          model.JobTypeTemporary,
		"i":          model.JobTypeInternship,
		"full_time":  model.JobTypeFullTime,
		"part_time":  model.JobTypePartTime,
		"contract":   model.JobTypeContract,
		"temporary":  model.JobTypeTemporary,
		"internship": model.JobTypeInternship,
	}
	linkedInLevels = levelTable{
		"internship":       "entry",
		"entry_level":      "entry",
		"associate":        "mid",
		"mid_senior_level": "senior",
		"director":         "executive",
		"executive":        "executive",
	}
)

type linkedIn struct {
	base
}

// NewLinkedIn creates a LinkedIn Jobs API client.
func NewLinkedIn(opts ...Option) Client {
	return &linkedIn{base: newBase(LinkedInID, "https://api.linkedin.com/v2",
		resilience.WindowLimits{PerMinute: 30, PerHour: 500}, opts)}
}

func (c *linkedIn) FetchJobs(ctx context.Context, req model.SearchRequest, token string) ([]model.Listing, error) {
	q := url.Values{}
	if req.Query != "" {
		q.Add("keywords", req.Query)
	}
	if req.Location != "" {
		q.Add("location", req.Location)
	}
	if req.Remote {
		q.Add("f_WT", "2")
	}
	if req.JobType != "" {
		q.Add("f_JT", linkedInQueryTypes.param(req.JobType, "F"))
	}
	if req.PostedWithin > 0 {
		q.Add("f_TPR", "r"+strconv.Itoa(req.PostedWithin*86400))
	}
	return c.search(ctx, "/jobs", q, token, []string{"elements", "jobs"}, c.normalize)
}

func (c *linkedIn) GetJobDetails(ctx context.Context, id, token string) (*model.Listing, error) {
	return c.details(ctx, jobPath("/jobs/", id), nil, token, c.normalize)
}

func (c *linkedIn) ValidateToken(ctx context.Context, token string) (bool, error) {
	return c.validate(ctx, "/me", nil, token)
}

func (c *linkedIn) normalize(r rawJob) model.Listing {
	id := r.str("id", "jobId")
	location := r.str("location", "formattedLocation")
	l := model.Listing{
		ExternalID:      id,
		ProviderID:      LinkedInID,
		Title:           r.str("title", "jobTitle"),
		Company:         r.str("companyName", "company.name"),
		Location:        location,
		CountryCode:     countryFromLocation(location),
		Description:     r.str("description.text", "description"),
		Requirements:    r.text("qualifications", "requirements"),
		JobType:         linkedInJobTypes.normalize(r.str("employmentType")),
		Remote:          r.flag("workRemoteAllowed"),
		URL:             r.str("jobUrl"),
		PostedDate:      r.date("listedAt"),
		ExpiryDate:      r.date("expireAt"),
		Premium:         true, // every LinkedIn result is a promoted listing
		ExperienceLevel: linkedInLevels.normalize(r.str("experienceLevel", "seniorityLevel")),
		Payload:         r.payload(nil),
	}
	if l.URL == "" {
		l.URL = "https://www.linkedin.com/jobs/view/" + id
	}
	salary{Min: r.num("salary.min"), Max: r.num("salary.max"), Currency: r.str("salary.currency")}.apply(&l, "USD")
	return l
}
