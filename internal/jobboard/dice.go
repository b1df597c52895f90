package jobboard

import (
	"context"
	"net/url"
	"strconv"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/resilience"
)

// DiceID is the provider id of Dice.
const DiceID = "dice"

var (
	diceQueryTypes = queryTable{
		model.JobTypeFullTime:  "FULL_TIME",
		model.JobTypePartTime:  "PART_TIME",
		model.JobTypeContract:  "CONTRACTS",
		model.JobTypeTemporary: "CONTRACTS",
	}
	diceJobTypes = jobTypeTable{
		"full_time":        model.JobTypeFullTime,
		"part_time":        model.JobTypePartTime,
		"contracts":        model.JobTypeContract,
		"contract_to_hire": model.JobTypeContract,
		"third_party":      model.JobTypeContract,
	}
)

type dice struct {
	base
}

// NewDice creates a Dice (technology jobs) API client.
func NewDice(opts ...Option) Client {
	return &dice{base: newBase(DiceID, "https://api.dice.com/v1",
		resilience.WindowLimits{PerMinute: 60, PerHour: 150}, opts)}
}

func (c *dice) FetchJobs(ctx context.Context, req model.SearchRequest, token string) ([]model.Listing, error) {
	q := url.Values{}
	if req.Query != "" {
		q.Add("q", req.Query)
	}
	if req.Location != "" {
		q.Add("location", req.Location)
	}
	if req.Country != "" {
		q.Add("countryCode", req.Country)
	}
	if req.Remote {
		q.Add("remoteOnly", "true")
	}
	if req.JobType != "" {
		q.Add("employmentType", diceQueryTypes.param(req.JobType, "FULL_TIME"))
	}
	if req.SalaryMin != nil {
		q.Add("salary", formatAmount(*req.SalaryMin))
	}
	if req.PostedWithin > 0 {
		q.Add("age", strconv.Itoa(req.PostedWithin))
	}
	q.Add("pageSize", pageSize)
	return c.search(ctx, "/jobs/search", q, token, []string{"data"}, c.normalize)
}

func (c *dice) GetJobDetails(ctx context.Context, id, token string) (*model.Listing, error) {
	return c.details(ctx, jobPath("/jobs/", id), nil, token, c.normalize)
}

func (c *dice) ValidateToken(ctx context.Context, token string) (bool, error) {
	return c.validate(ctx, "/auth/validate", nil, token)
}

func (c *dice) normalize(r rawJob) model.Listing {
	l := model.Listing{
		ExternalID:   r.str("id", "jobId"),
		ProviderID:   DiceID,
		Title:        r.str("title", "jobTitle"),
		Company:      r.str("companyName", "company"),
		Location:     r.str("jobLocation.displayName", "location"),
		CountryCode:  r.str("jobLocation.countryCode"),
		Description:  r.str("summary", "description"),
		Requirements: r.text("skills", "requirements"),
		JobType:      diceJobTypes.normalize(r.str("employmentType")),
		Remote:       r.flag("isRemote") || r.equals("remoteOption", "Remote"),
		URL:          r.str("detailsPageUrl", "url"),
		PostedDate:   r.date("postedDate"),
		Premium:      r.flag("featured"),
		Payload: r.payload(map[string]any{
			"certifications":    r.value("certifications"),
			"clearanceRequired": r.value("clearanceRequired"),
			"travelPercentage":  r.value("travelPercentage"),
		}),
	}
	if l.CountryCode == "" {
		l.CountryCode = "US"
	}
	diceSalary(r).apply(&l, "USD")
	return l
}

func diceSalary(r rawJob) salary {
	if obj := r.object("salary"); obj.Exists() {
		return salary{Min: obj.num("min"), Max: obj.num("max"), Currency: obj.str("currency")}
	}
	if s := r.str("compensationString"); s != "" {
		minV, maxV := parseRangeK(s)
		return salary{Min: minV, Max: maxV, Currency: "USD"}
	}
	return salary{}
}
