package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/registry"
)

const dateFmt = "2006-01-02"

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatListings(out io.Writer, jobs []model.Listing) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PROVIDER\tID\tTITLE\tCOMPANY\tLOCATION\tSALARY\tPOSTED\tPREMIUM")
	for _, j := range jobs {
		posted := "-"
		if j.PostedDate != nil {
			posted = j.PostedDate.Format(dateFmt)
		}
		premium := ""
		if j.Premium {
			premium = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			j.ProviderID, j.ExternalID, truncate(j.Title, 50), truncate(j.Company, 30),
			truncate(j.Location, 30), formatSalary(j), posted, premium)
	}
	_ = w.Flush()
}

func formatSalary(j model.Listing) string {
	switch {
	case j.SalaryMin != nil && j.SalaryMax != nil && *j.SalaryMin != *j.SalaryMax:
		return strings.TrimSpace(fmt.Sprintf("%.0f-%.0f %s", *j.SalaryMin, *j.SalaryMax, j.SalaryCurrency))
	case j.SalaryMin != nil:
		return strings.TrimSpace(fmt.Sprintf("%.0f %s", *j.SalaryMin, j.SalaryCurrency))
	case j.SalaryMax != nil:
		return strings.TrimSpace(fmt.Sprintf("up to %.0f %s", *j.SalaryMax, j.SalaryCurrency))
	default:
		return "-"
	}
}

func formatHistory(out io.Writer, entries []model.SearchHistoryEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "WHEN\tQUERY\tPROVIDERS\tRESULTS\tPREMIUM\tDURATION")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%dms\n",
			e.CreatedAt.Format("2006-01-02 15:04"), truncate(e.Query, 40),
			strings.Join(e.ProvidersSearched, ","), e.ResultCount, e.PremiumCount, e.DurationMs)
	}
	_ = w.Flush()
}

func formatProviders(out io.Writer, providers []registry.Metadata) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tREGIONS\tCURRENCY\tRATE/HOUR")
	for _, p := range providers {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			p.ID, p.DisplayName, strings.Join(p.Regions, ","), p.Currency, p.RateLimitPerHour)
	}
	_ = w.Flush()
}

func formatHealth(out io.Writer, health []model.ConnectionHealth) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPROVIDER\tSTATUS\tCONNECTED\tREAUTH\tLAST_SYNC\tERROR")
	for _, h := range health {
		lastSync := "-"
		if h.LastSyncAt != nil {
			lastSync = h.LastSyncAt.Format("2006-01-02 15:04")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\t%s\t%s\n",
			h.ConnectionID, h.ProviderName, h.Status, h.IsConnected, h.RequiresReauth,
			lastSync, truncate(h.ErrorMessage, 40))
	}
	_ = w.Flush()
}

func formatMatches(out io.Writer, matches []model.MatchScore) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SCORE\tJOB\tTITLE\tCOMPANY\tREASONS")
	for _, m := range matches {
		_, _ = fmt.Fprintf(w, "%.2f\t%s\t%s\t%s\t%s\n",
			m.Score, m.JobID, truncate(m.Job.Title, 50), truncate(m.Job.Company, 30),
			strings.Join(m.Reasons, "; "))
	}
	_ = w.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
