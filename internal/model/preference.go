package model

// RemotePreference is how a user wants to work.
type RemotePreference string

const (
	RemoteOnly   RemotePreference = "remote"
	RemoteHybrid RemotePreference = "hybrid"
	RemoteOnsite RemotePreference = "onsite"
	RemoteAny    RemotePreference = "any"
)

// Preference is a user's stated job-search profile.
type Preference struct {
	UserID           string           `json:"user_id"`
	DesiredTitles    []string         `json:"desired_titles" validate:"dive,max=200"`
	Locations        []string         `json:"locations" validate:"dive,max=200"`
	RemotePreference RemotePreference `json:"remote_preference" validate:"omitempty,oneof=remote hybrid onsite any"`
	SalaryMin        *float64         `json:"salary_min,omitempty" validate:"omitempty,gte=0"`
	SalaryMax        *float64         `json:"salary_max,omitempty" validate:"omitempty,gte=0"`
	SalaryCurrency   string           `json:"salary_currency,omitempty" validate:"omitempty,len=3"`
	JobTypes         []JobType        `json:"job_types" validate:"dive,oneof=full-time part-time contract temporary internship"`
	Skills           []string         `json:"skills" validate:"dive,max=100"`
	ExperienceLevel  string           `json:"experience_level,omitempty"`
	EducationLevel   string           `json:"education_level,omitempty"`
	Keywords         []string         `json:"keywords,omitempty"`
	ExcludeKeywords  []string         `json:"exclude_keywords,omitempty"`
}

// MatchScore is a scored listing produced by the matcher.
type MatchScore struct {
	JobID   string   `json:"job_id"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
	Job     Listing  `json:"job"`
}
