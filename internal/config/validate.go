package config

import (
	"encoding/hex"
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks that the fields required by mode are present and sane.
// Modes: serve, search, scheduler, migrate.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "serve", "search", "scheduler":
		problems = append(problems, c.validateStore()...)
		problems = append(problems, c.validateVault()...)
	case "migrate":
		problems = append(problems, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode == "serve" && c.Server.Port <= 0 {
		problems = append(problems, "server.port must be > 0")
	}

	if c.Retry.MaxRetries < 0 || c.Retry.MaxRetries > 10 {
		problems = append(problems, "retry.max_retries must be between 0 and 10")
	}
	if c.Retry.Multiplier < 1 {
		problems = append(problems, "retry.multiplier must be >= 1")
	}

	problems = append(problems, c.validateMatch()...)

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var problems []string
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	case "sqlite":
	default:
		problems = append(problems, "store.driver must be postgres or sqlite")
	}
	return problems
}

func (c *Config) validateVault() []string {
	key := c.Vault.EncryptionKey
	if key == "" {
		return []string{"vault.encryption_key is required"}
	}
	raw, err := hex.DecodeString(key)
	if err != nil || len(raw) != 32 {
		return []string{"vault.encryption_key must be 64 hex characters"}
	}
	return nil
}

func (c *Config) validateMatch() []string {
	var problems []string
	w := c.Match.Weights
	for _, v := range []float64{w.Title, w.Location, w.Skills, w.Salary, w.JobType, w.Experience} {
		if v < 0 {
			problems = append(problems, "match.weights values must be >= 0")
			break
		}
	}
	sum := w.Title + w.Location + w.Skills + w.Salary + w.JobType + w.Experience
	if math.Abs(sum-1.0) > 0.001 {
		problems = append(problems, "match.weights must sum to 1.0")
	}
	if c.Match.MinScore < 0 || c.Match.MinScore > 1 {
		problems = append(problems, "match.min_score must be between 0 and 1")
	}
	if c.Match.MaxResults <= 0 {
		problems = append(problems, "match.max_results must be > 0")
	}
	return problems
}
