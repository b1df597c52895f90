package model

import (
	"time"

	"golang.org/x/text/cases"
)

// JobType is the normalized employment type of a listing.
type JobType string

const (
	JobTypeFullTime   JobType = "full-time"
	JobTypePartTime   JobType = "part-time"
	JobTypeContract   JobType = "contract"
	JobTypeTemporary  JobType = "temporary"
	JobTypeInternship JobType = "internship"
)

// Listing is a job posting normalized from any provider. (ProviderID,
// ExternalID) identifies it in storage.
type Listing struct {
	ExternalID      string         `json:"external_id"`
	ProviderID      string         `json:"provider_id"`
	Title           string         `json:"title"`
	Company         string         `json:"company"`
	Location        string         `json:"location"`
	CountryCode     string         `json:"country_code,omitempty"`
	SalaryMin       *float64       `json:"salary_min,omitempty"`
	SalaryMax       *float64       `json:"salary_max,omitempty"`
	SalaryCurrency  string         `json:"salary_currency,omitempty"`
	JobType         JobType        `json:"job_type,omitempty"`
	Remote          bool           `json:"remote"`
	Description     string         `json:"description"`
	Requirements    string         `json:"requirements,omitempty"`
	URL             string         `json:"url"`
	PostedDate      *time.Time     `json:"posted_date,omitempty"`
	ExpiryDate      *time.Time     `json:"expiry_date,omitempty"`
	Premium         bool           `json:"is_premium"`
	ExperienceLevel string         `json:"experience_level,omitempty"`
	Payload         map[string]any `json:"raw_data,omitempty"`
}

// DedupKey returns the cross-provider identity of a listing: the case-folded
// title and company.
func (l *Listing) DedupKey() string {
	fold := cases.Fold()
	return fold.String(l.Title) + "\x00" + fold.String(l.Company)
}

// StorageKey returns the per-provider identity used for upserts.
func (l *Listing) StorageKey() string {
	return l.ProviderID + ":" + l.ExternalID
}

// Float returns a pointer to v. Used for optional salary fields.
func Float(v float64) *float64 {
	return &v
}
