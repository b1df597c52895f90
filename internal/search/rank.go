package search

import (
	"sort"

	"github.com/sells-group/jobsearch-cli/internal/model"
)

// dedupe collapses listings sharing a case-folded (title, company). A
// premium copy replaces a non-premium one in place; otherwise the first
// copy seen wins.
func dedupe(jobs []model.Listing) []model.Listing {
	idx := make(map[string]int, len(jobs))
	out := make([]model.Listing, 0, len(jobs))
	for _, j := range jobs {
		key := j.DedupKey()
		i, seen := idx[key]
		if !seen {
			idx[key] = len(out)
			out = append(out, j)
			continue
		}
		if j.Premium && !out[i].Premium {
			out[i] = j
		}
	}
	return out
}

// rank orders premium listings first, then by posted date newest first.
// Listings without a date sort after dated ones; ties keep input order.
func rank(jobs []model.Listing) {
	sort.SliceStable(jobs, func(i, k int) bool {
		a, b := jobs[i], jobs[k]
		if a.Premium != b.Premium {
			return a.Premium
		}
		switch {
		case a.PostedDate != nil && b.PostedDate != nil:
			return a.PostedDate.After(*b.PostedDate)
		case a.PostedDate != nil:
			return true
		default:
			return false
		}
	})
}

func withoutPremium(jobs []model.Listing) []model.Listing {
	out := jobs[:0]
	for _, j := range jobs {
		if !j.Premium {
			out = append(out, j)
		}
	}
	return out
}

func countPremium(jobs []model.Listing) int {
	n := 0
	for _, j := range jobs {
		if j.Premium {
			n++
		}
	}
	return n
}
