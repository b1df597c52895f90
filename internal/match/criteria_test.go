package match

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/jobsearch-cli/internal/model"
)

func f(v float64) *float64 { return &v }

func TestTitleScore(t *testing.T) {
	tests := []struct {
		name      string
		job       string
		preferred []string
		want      float64
	}{
		{"exact case-insensitive", "Senior Go Engineer", []string{"senior go engineer"}, 1.0},
		{"job contains preferred", "Senior Go Engineer", []string{"Go Engineer"}, 0.8},
		{"preferred contains job", "Engineer", []string{"Backend Engineer"}, 0.8},
		{"token overlap", "Go Backend Developer", []string{"Backend Engineer Lead"}, 0.2},
		{"best across titles", "Data Engineer", []string{"Designer", "data engineer"}, 1.0},
		{"no titles", "Go Engineer", nil, 0},
		{"empty job title", "", []string{"Go"}, 0},
		{"no overlap", "Chef", []string{"Pilot"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, titleScore(tt.job, tt.preferred), 1e-9)
		})
	}
}

func TestTitleScore_Symmetric(t *testing.T) {
	a := titleScore("Platform Engineer", []string{"PLATFORM ENGINEER"})
	b := titleScore("PLATFORM ENGINEER", []string{"Platform Engineer"})
	assert.Equal(t, a, b)
	assert.Equal(t, 1.0, a)
}

func TestLocationScore(t *testing.T) {
	tests := []struct {
		name      string
		job       model.Listing
		preferred []string
		remote    model.RemotePreference
		want      float64
	}{
		{"remote flag, wants remote", model.Listing{Remote: true, Location: "Austin"}, nil, model.RemoteOnly, 1.0},
		{"remote text, wants any", model.Listing{Location: "Remote - US"}, nil, model.RemoteAny, 1.0},
		{"remote job, wants hybrid", model.Listing{Remote: true}, nil, model.RemoteHybrid, 0.8},
		{"remote job, wants onsite", model.Listing{Remote: true}, nil, model.RemoteOnsite, 0.3},
		{"hybrid job, wants hybrid", model.Listing{Location: "London (Hybrid)"}, nil, model.RemoteHybrid, 1.0},
		{"hybrid job, wants remote", model.Listing{Location: "Hybrid"}, nil, model.RemoteOnly, 0.7},
		{"hybrid job, wants onsite", model.Listing{Location: "Hybrid"}, nil, model.RemoteOnsite, 0.7},
		{"city match", model.Listing{Location: "Austin, TX"}, []string{"austin"}, model.RemoteOnsite, 1.0},
		{"city inside preference", model.Listing{Location: "Austin"}, []string{"Austin, Texas"}, model.RemoteAny, 1.0},
		{"no match floor", model.Listing{Location: "Berlin"}, []string{"Austin"}, model.RemoteOnsite, 0.2},
		{"remote preference skipped", model.Listing{Location: "Berlin"}, []string{"remote"}, model.RemoteOnly, 0.2},
		{"empty location", model.Listing{}, []string{"Austin"}, model.RemoteOnsite, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, locationScore(tt.job, tt.preferred, tt.remote), 1e-9)
		})
	}
}

func TestSkillsScore(t *testing.T) {
	assert.Equal(t, 0.5, skillsScore(nil, []string{"go"}))
	assert.Equal(t, 1.0, skillsScore([]string{"Go", "PostgreSQL"}, []string{"golang", "postgresql"}))
	assert.Equal(t, 0.5, skillsScore([]string{"Kubernetes", "Go"}, []string{"go"}))
	assert.Equal(t, 0.0, skillsScore([]string{"Java"}, nil))
	// Substring either direction.
	assert.Equal(t, 1.0, skillsScore([]string{"AWS Lambda"}, []string{"aws"}))
}

func TestSalaryScore(t *testing.T) {
	tests := []struct {
		name                   string
		jMin, jMax, uMin, uMax *float64
		want                   float64
	}{
		{"neither", nil, nil, nil, nil, 0.5},
		{"user only", nil, nil, f(100000), f(120000), 0.5},
		{"job only", f(100000), f(120000), nil, nil, 0.3},
		{"exact equal", f(100000), f(120000), f(100000), f(120000), 1.0},
		{"half overlap", f(110000), f(150000), f(100000), f(120000), 0.5},
		{"job covers user", f(50000), f(200000), f(100000), f(120000), 1.0},
		{"no overlap", f(50000), f(60000), f(100000), f(120000), 0.1},
		{"zero-width user overlapping", f(90000), f(110000), f(100000), f(100000), 1.0},
		{"user min only inside job band", f(90000), f(150000), f(100000), nil, 1.0},
		{"user min only below job band", f(120000), f(150000), f(100000), nil, 0.1},
		{"user max only", f(40000), f(90000), nil, f(100000), 0.5},
		{"job min only inside band", f(110000), nil, f(100000), f(120000), 0.0},
		{"job max only inside band", nil, f(110000), f(100000), f(120000), 0.5},
		{"job min only at user min", f(100000), nil, f(100000), nil, 1.0},
		{"zero treated as absent", f(0), f(0), f(100000), f(120000), 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, salaryScore(tt.jMin, tt.jMax, tt.uMin, tt.uMax), 1e-9)
		})
	}
}

func TestJobTypeScore(t *testing.T) {
	assert.Equal(t, 1.0, jobTypeScore(model.JobTypeFullTime, []model.JobType{"fulltime"}))
	assert.Equal(t, 1.0, jobTypeScore("Part-Time", []model.JobType{model.JobTypePartTime}))
	assert.Equal(t, 0.2, jobTypeScore(model.JobTypeContract, []model.JobType{model.JobTypeFullTime}))
	assert.Equal(t, 0.5, jobTypeScore("", []model.JobType{model.JobTypeFullTime}))
	assert.Equal(t, 0.5, jobTypeScore(model.JobTypeContract, nil))
}

func TestExperienceScore(t *testing.T) {
	tests := []struct {
		job, user string
		want      float64
	}{
		{"Senior", "senior level", 1.0},
		{"mid level", "senior", 0.8},
		{"entry level", "senior", 0.5},
		{"entry", "executive", 0.2},
		{"lead/principal", "executive", 0.8},
		{"wizard", "senior", 0.5},
		{"", "senior", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.job+"/"+tt.user, func(t *testing.T) {
			assert.Equal(t, tt.want, experienceScore(tt.job, tt.user))
		})
	}
}

func TestExcluded(t *testing.T) {
	job := model.Listing{Title: "Blockchain Engineer", Description: "Work on DeFi protocols"}
	assert.True(t, excluded(job, []string{"blockchain"}))
	assert.True(t, excluded(job, []string{"defi"}))
	assert.False(t, excluded(job, []string{"gambling", ""}))
	assert.False(t, excluded(job, nil))
}

func TestRequiredSkills(t *testing.T) {
	got := RequiredSkills("Go, PostgreSQL; Kubernetes | AWS\n• Terraform\n- go\n")
	assert.Equal(t, []string{"Go", "PostgreSQL", "Kubernetes", "AWS", "Terraform"}, got)
	assert.Empty(t, RequiredSkills(""))
	assert.Empty(t, RequiredSkills("You will be joining a fast-growing team building the next generation of tools"))
}
