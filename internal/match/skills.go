package match

import (
	"strings"
)

const maxSkillLen = 60

// RequiredSkills splits free-form requirements text into skill phrases on
// commas, semicolons, pipes, bullets and newlines. Duplicates are dropped
// case-insensitively and overlong fragments are treated as prose.
func RequiredSkills(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case ',', ';', '|', '\n', '\r', '•', '·':
			return true
		}
		return false
	})

	var out []string
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		f = strings.Trim(strings.TrimSpace(f), "-*. \t")
		if f == "" || len(f) > maxSkillLen {
			continue
		}
		key := lower(f)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}
