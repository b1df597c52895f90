// Package resume extracts skills from résumé text and stores them for
// match scoring.
package resume

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"

	"github.com/sells-group/jobsearch-cli/internal/match"
	"github.com/sells-group/jobsearch-cli/pkg/anthropic"
)

const (
	maxResumeChars = 20000
	maxSkills      = 50
	maxSkillLen    = 60
)

const systemPrompt = `You extract professional skills from résumés.
Return ONLY a JSON array of short skill names (technologies, tools, languages,
methodologies, certifications). No prose, no duplicates, at most 50 entries.
Example: ["Go", "PostgreSQL", "Kubernetes", "Agile"]`

// Extractor turns résumé text into a list of skills.
type Extractor interface {
	ExtractSkills(ctx context.Context, text string) ([]string, error)
}

// LLMExtractor asks an Anthropic model for the skill list.
type LLMExtractor struct {
	client anthropic.Client
	model  string
}

// NewLLMExtractor creates an LLMExtractor. An empty model selects
// anthropic.DefaultModel.
func NewLLMExtractor(client anthropic.Client, model string) *LLMExtractor {
	if model == "" {
		model = anthropic.DefaultModel
	}
	return &LLMExtractor{client: client, model: model}
}

// ExtractSkills implements Extractor.
func (e *LLMExtractor) ExtractSkills(ctx context.Context, text string) ([]string, error) {
	if len(text) > maxResumeChars {
		text = text[:maxResumeChars]
	}
	temp := 0.0
	resp, err := e.client.Complete(ctx, anthropic.Prompt{
		Model:       e.model,
		System:      systemPrompt,
		CacheTTL:    "1h",
		Input:       text,
		MaxTokens:   1024,
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "resume: extract skills")
	}
	resp.Usage.Log(e.model, "resume_skills")

	raw := cleanJSONArray(resp.Text)
	if !gjson.Valid(raw) {
		return nil, eris.Errorf("resume: model returned no skill array (stop_reason=%s)", resp.StopReason)
	}
	parsed := gjson.Parse(raw)
	if !parsed.IsArray() {
		return nil, eris.New("resume: model returned no skill array")
	}
	var skills []string
	parsed.ForEach(func(_, v gjson.Result) bool {
		if v.Type == gjson.String {
			skills = append(skills, v.String())
		}
		return true
	})
	return normalize(skills), nil
}

// cleanJSONArray strips markdown fences and surrounding prose.
func cleanJSONArray(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return strings.TrimSpace(text)
	}
	return text[start : end+1]
}

// KeywordExtractor reads the "Skills" section of a plain-text résumé.
// It is used when no Anthropic key is configured.
type KeywordExtractor struct{}

// ExtractSkills implements Extractor.
func (KeywordExtractor) ExtractSkills(_ context.Context, text string) ([]string, error) {
	var section []string
	in := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if rest, ok := skillsHeading(trimmed); ok {
			in = true
			if rest != "" {
				section = append(section, rest)
			}
			continue
		}
		if !in {
			continue
		}
		if trimmed == "" || isHeading(trimmed) {
			if len(section) > 0 {
				break
			}
			continue
		}
		section = append(section, trimmed)
	}
	return normalize(match.RequiredSkills(strings.Join(section, "\n"))), nil
}

// skillsHeading matches lines like "Skills", "Technical Skills:" or
// "Skills: Go, SQL", returning any inline remainder.
func skillsHeading(line string) (string, bool) {
	head, rest, _ := strings.Cut(line, ":")
	h := strings.ToLower(strings.TrimSpace(head))
	if !strings.HasSuffix(h, "skills") || len(h) > 30 {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// isHeading treats a short line ending in ':' or in all caps as the next
// section's title.
func isHeading(line string) bool {
	if strings.HasSuffix(line, ":") && len(line) < 40 {
		return true
	}
	return len(line) < 40 && strings.ToUpper(line) == line && strings.ToLower(line) != line
}

// normalize trims, dedupes case-insensitively and caps the list.
func normalize(skills []string) []string {
	out := make([]string, 0, len(skills))
	seen := make(map[string]bool, len(skills))
	for _, s := range skills {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || len(s) > maxSkillLen || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
		if len(out) == maxSkills {
			break
		}
	}
	return out
}
