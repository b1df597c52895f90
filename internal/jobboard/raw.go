package jobboard

import (
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// rawJob wraps one board payload with first-present field accessors. Paths
// use gjson syntax ("company.name").
type rawJob struct {
	gjson.Result
}

// str returns the first path holding a non-empty string or number.
func (r rawJob) str(paths ...string) string {
	for _, p := range paths {
		v := r.Get(p)
		switch v.Type {
		case gjson.String:
			if s := strings.TrimSpace(v.Str); s != "" {
				return s
			}
		case gjson.Number:
			return v.Raw
		}
	}
	return ""
}

// text is str that also joins string arrays with ", ".
func (r rawJob) text(paths ...string) string {
	for _, p := range paths {
		v := r.Get(p)
		if v.IsArray() {
			var parts []string
			for _, e := range v.Array() {
				if s := strings.TrimSpace(e.String()); s != "" {
					parts = append(parts, s)
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, ", ")
			}
			continue
		}
		if s := r.str(p); s != "" {
			return s
		}
	}
	return ""
}

// num returns the first path holding a positive number, or a numeric string.
func (r rawJob) num(paths ...string) *float64 {
	for _, p := range paths {
		v := r.Get(p)
		var f float64
		switch v.Type {
		case gjson.Number:
			f = v.Num
		case gjson.String:
			parsed, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v.Str), ",", ""), 64)
			if err != nil {
				continue
			}
			f = parsed
		default:
			continue
		}
		if f > 0 {
			return &f
		}
	}
	return nil
}

// flag reports whether any path is boolean true.
func (r rawJob) flag(paths ...string) bool {
	for _, p := range paths {
		if v := r.Get(p); v.Type == gjson.True {
			return true
		}
	}
	return false
}

// equals reports whether path holds the string or number want.
func (r rawJob) equals(path, want string) bool {
	v := r.Get(path)
	switch v.Type {
	case gjson.String:
		return strings.EqualFold(v.Str, want)
	case gjson.Number:
		return v.Raw == want
	}
	return false
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// date returns the first path holding a parseable timestamp. Numbers are
// epoch milliseconds.
func (r rawJob) date(paths ...string) *time.Time {
	for _, p := range paths {
		v := r.Get(p)
		switch v.Type {
		case gjson.Number:
			if v.Int() > 0 {
				t := time.UnixMilli(v.Int()).UTC()
				return &t
			}
		case gjson.String:
			for _, layout := range dateLayouts {
				if t, err := time.Parse(layout, strings.TrimSpace(v.Str)); err == nil {
					t = t.UTC()
					return &t
				}
			}
		}
	}
	return nil
}

// object returns the nested object at path, or an empty rawJob.
func (r rawJob) object(path string) rawJob {
	if v := r.Get(path); v.IsObject() {
		return rawJob{v}
	}
	return rawJob{}
}

// payload returns the raw job as a map with extra keys merged in. Nil
// extras are skipped.
func (r rawJob) payload(extra map[string]any) map[string]any {
	out, _ := r.Value().(map[string]any)
	if out == nil {
		out = make(map[string]any, len(extra))
	}
	for k, v := range extra {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

// value returns the decoded value at path, or nil when absent.
func (r rawJob) value(path string) any {
	if v := r.Get(path); v.Exists() {
		return v.Value()
	}
	return nil
}
