package jobboard

import (
	"context"
	"math"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/resilience"
)

// NaukriID is the provider id of Naukri.
const NaukriID = "naukri"

const naukriRemote = "work-from-home"

var (
	naukriQueryTypes = queryTable{
		model.JobTypeFullTime:   "permanent",
		model.JobTypeContract:   "contractual",
		model.JobTypeTemporary:  "temporary",
		model.JobTypePartTime:   "part-time",
		model.JobTypeInternship: "internship",
	}
	naukriJobTypes = jobTypeTable{
		"permanent":   model.JobTypeFullTime,
		"contractual": model.JobTypeContract,
		"temporary":   model.JobTypeTemporary,
		"part-time":   model.JobTypePartTime,
		"internship":  model.JobTypeInternship,
	}
)

type naukri struct {
	base
}

// NewNaukri creates a Naukri (India) API client. Naukri quotes salaries in
// lakhs; listings are normalized to rupees.
func NewNaukri(opts ...Option) Client {
	return &naukri{base: newBase(NaukriID, "https://api.naukri.com/v3",
		resilience.WindowLimits{PerMinute: 60, PerHour: 250}, opts)}
}

func (c *naukri) FetchJobs(ctx context.Context, req model.SearchRequest, token string) ([]model.Listing, error) {
	q := url.Values{}
	if req.Query != "" {
		q.Add("keywords", req.Query)
	}
	if req.Location != "" {
		q.Add("location", req.Location)
	}
	if req.Remote {
		q.Add("workMode", naukriRemote)
	}
	if req.JobType != "" {
		q.Add("jobType", naukriQueryTypes.param(req.JobType, "permanent"))
	}
	if req.SalaryMin != nil {
		q.Add("salaryMin", strconv.Itoa(int(math.Floor(*req.SalaryMin/lakh))))
	}
	if req.PostedWithin > 0 {
		q.Add("postedWithin", strconv.Itoa(req.PostedWithin))
	}
	q.Add("pageSize", pageSize)
	return c.search(ctx, "/jobsearch", q, token, []string{"jobDetails"}, c.normalize)
}

func (c *naukri) GetJobDetails(ctx context.Context, id, token string) (*model.Listing, error) {
	return c.details(ctx, jobPath("/jobdetails/", id), nil, token, c.normalize)
}

func (c *naukri) ValidateToken(ctx context.Context, token string) (bool, error) {
	return c.validate(ctx, "/auth/validate", nil, token)
}

func (c *naukri) normalize(r rawJob) model.Listing {
	id := r.str("jobId", "id")
	l := model.Listing{
		ExternalID:      id,
		ProviderID:      NaukriID,
		Title:           r.str("title", "jobTitle"),
		Company:         r.str("companyName", "company"),
		Location:        r.str("placeholders.location", "location"),
		CountryCode:     "IN",
		Description:     r.str("jobDescription", "description"),
		Requirements:    r.text("keySkills", "requirements"),
		JobType:         naukriJobTypes.normalize(r.str("jobType")),
		Remote:          r.equals("workMode", naukriRemote),
		URL:             r.str("jdURL"),
		PostedDate:      r.date("createdDate"),
		Premium:         r.flag("isPremium", "isHot"),
		ExperienceLevel: naukriExperience(r),
		Payload: r.payload(map[string]any{
			"experience":     r.value("experience"),
			"education":      r.value("education"),
			"industry":       r.value("industry"),
			"functionalArea": r.value("functionalArea"),
		}),
	}
	if l.URL == "" {
		l.URL = "https://www.naukri.com/job-listings-" + id
	}
	naukriSalary(r).apply(&l, "INR")
	return l
}

// naukriExperience reads the minimum years either from {"min":3,"max":5}
// or from text like "3-5 Yrs".
func naukriExperience(r rawJob) string {
	if obj := r.object("experience"); obj.Exists() {
		if v := obj.Get("min"); v.Type == gjson.Number {
			return levelFromYears(int(v.Int()))
		}
		return ""
	}
	return levelFromYearsText(r.str("experience", "placeholders.experience"))
}

func naukriSalary(r rawJob) salary {
	if obj := r.object("salary"); obj.Exists() {
		return salary{Min: scale(obj.num("min"), lakh), Max: scale(obj.num("max"), lakh), Currency: "INR"}
	}
	if s := r.str("placeholders.salary"); s != "" {
		minV, maxV := parseLakhs(s)
		return salary{Min: minV, Max: maxV, Currency: "INR"}
	}
	return salary{}
}
