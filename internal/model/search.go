package model

import "time"

// SearchRequest is the caller's search criteria.
type SearchRequest struct {
	Query          string   `json:"query" validate:"max=200"`
	Location       string   `json:"location,omitempty" validate:"max=200"`
	Country        string   `json:"country,omitempty" validate:"omitempty,len=2"`
	Remote         bool     `json:"remote,omitempty"`
	JobType        JobType  `json:"job_type,omitempty" validate:"omitempty,oneof=full-time part-time contract temporary internship"`
	SalaryMin      *float64 `json:"salary_min,omitempty" validate:"omitempty,gte=0"`
	SalaryMax      *float64 `json:"salary_max,omitempty" validate:"omitempty,gte=0"`
	PostedWithin   int      `json:"posted_within_days,omitempty" validate:"gte=0,lte=365"`
	Providers      []string `json:"providers,omitempty" validate:"omitempty,dive,required"`
	IncludePremium *bool    `json:"include_premium,omitempty"`
}

// WantsPremium reports whether premium listings should be kept. Absent means yes.
func (r SearchRequest) WantsPremium() bool {
	return r.IncludePremium == nil || *r.IncludePremium
}

// SearchResult is the aggregated, deduplicated outcome of a search.
type SearchResult struct {
	Jobs             []Listing `json:"jobs"`
	TotalCount       int       `json:"total_count"`
	PremiumCount     int       `json:"premium_count"`
	ProvidersUsed    []string  `json:"providers_used"`
	SearchDurationMs int64     `json:"search_duration_ms"`
	HasMore          bool      `json:"has_more"`
}

// SearchHistoryEntry is an append-only record of one executed search.
type SearchHistoryEntry struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	Query             string    `json:"query"`
	Filters           string    `json:"filters"`
	ProvidersSearched []string  `json:"providers_searched"`
	ResultCount       int       `json:"result_count"`
	PremiumCount      int       `json:"premium_count"`
	DurationMs        int64     `json:"duration_ms"`
	CreatedAt         time.Time `json:"created_at"`
}
