package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/jobsearch-cli/internal/model"
)

func ids(jobs []model.Listing) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.ExternalID
	}
	return out
}

func TestDedupe(t *testing.T) {
	tests := []struct {
		name string
		in   []model.Listing
		want []string
	}{
		{
			name: "first seen wins",
			in: []model.Listing{
				{ExternalID: "1", Title: "Go Dev", Company: "Acme"},
				{ExternalID: "2", Title: "go dev", Company: "acme"},
			},
			want: []string{"1"},
		},
		{
			name: "premium replaces in place",
			in: []model.Listing{
				{ExternalID: "1", Title: "Go Dev", Company: "Acme"},
				{ExternalID: "x", Title: "Other", Company: "Acme"},
				{ExternalID: "2", Title: "Go Dev", Company: "Acme", Premium: true},
			},
			want: []string{"2", "x"},
		},
		{
			name: "premium not replaced by later premium",
			in: []model.Listing{
				{ExternalID: "1", Title: "Go Dev", Company: "Acme", Premium: true},
				{ExternalID: "2", Title: "Go Dev", Company: "Acme", Premium: true},
			},
			want: []string{"1"},
		},
		{
			name: "different company kept",
			in: []model.Listing{
				{ExternalID: "1", Title: "Go Dev", Company: "Acme"},
				{ExternalID: "2", Title: "Go Dev", Company: "Globex"},
			},
			want: []string{"1", "2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(dedupe(tt.in)))
		})
	}
}

func TestRank(t *testing.T) {
	jobs := []model.Listing{
		{ExternalID: "old", PostedDate: date("2026-01-01")},
		{ExternalID: "nodate"},
		{ExternalID: "premium-old", Premium: true, PostedDate: date("2026-01-01")},
		{ExternalID: "new", PostedDate: date("2026-03-01")},
		{ExternalID: "premium-new", Premium: true, PostedDate: date("2026-02-01")},
		{ExternalID: "nodate2"},
	}
	rank(jobs)
	assert.Equal(t, []string{"premium-new", "premium-old", "new", "old", "nodate", "nodate2"}, ids(jobs))
}

func TestWithoutPremium(t *testing.T) {
	jobs := []model.Listing{{ExternalID: "1", Premium: true}, {ExternalID: "2"}}
	assert.Equal(t, []string{"2"}, ids(withoutPremium(jobs)))
	assert.Equal(t, 0, countPremium(withoutPremium([]model.Listing{{Premium: true}})))
}
