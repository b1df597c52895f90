package jobboard

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/jobsearch-cli/internal/model"
)

const lakh = 100000

var (
	// "$50,000 - $80,000"
	salaryRangeRe = regexp.MustCompile(`\$?([\d,]+)\s*-\s*\$?([\d,]+)`)
	// "$80K - $120K"
	salaryRangeKRe = regexp.MustCompile(`(?i)\$?([\d,]+)k?\s*-\s*\$?([\d,]+)k?`)
	// "5-8 Lacs PA"
	salaryLakhsRe = regexp.MustCompile(`(?i)([\d.]+)\s*-\s*([\d.]+)\s*Lacs?`)
)

// salary is an optional min/max pair with currency.
type salary struct {
	Min      *float64
	Max      *float64
	Currency string
}

// parseRange parses a plain "$min - $max" string.
func parseRange(s string) (minV, maxV *float64) {
	m := salaryRangeRe.FindStringSubmatch(s)
	if m == nil {
		return nil, nil
	}
	return parseAmount(m[1], 1), parseAmount(m[2], 1)
}

// parseRangeK parses "$80K - $120K"; amounts are thousands when the string
// contains a k.
func parseRangeK(s string) (minV, maxV *float64) {
	m := salaryRangeKRe.FindStringSubmatch(s)
	if m == nil {
		return nil, nil
	}
	mult := 1.0
	if strings.ContainsAny(s, "kK") {
		mult = 1000
	}
	return parseAmount(m[1], mult), parseAmount(m[2], mult)
}

// parseLakhs parses "5-8 Lacs PA" into rupees.
func parseLakhs(s string) (minV, maxV *float64) {
	m := salaryLakhsRe.FindStringSubmatch(s)
	if m == nil {
		return nil, nil
	}
	return parseAmount(m[1], lakh), parseAmount(m[2], lakh)
}

func parseAmount(s string, mult float64) *float64 {
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || f <= 0 {
		return nil
	}
	f *= mult
	return &f
}

// intervalMultiplier converts a pay interval to an annual factor. Unknown
// intervals are treated as yearly.
func intervalMultiplier(interval string) float64 {
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case "monthly":
		return 12
	case "hourly":
		return 2080
	default:
		return 1
	}
}

func scale(v *float64, mult float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v * mult
	return &f
}

// formatAmount renders a salary floor for a query string.
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// apply copies s onto l, defaulting the currency.
func (s salary) apply(l *model.Listing, defCurrency string) {
	l.SalaryMin, l.SalaryMax = s.Min, s.Max
	l.SalaryCurrency = s.Currency
	if l.SalaryCurrency == "" {
		l.SalaryCurrency = defCurrency
	}
}
