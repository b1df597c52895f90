package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 1000, cfg.Retry.InitialBackoffMs)
	assert.Equal(t, 10000, cfg.Retry.MaxBackoffMs)
	assert.InDelta(t, 2.0, cfg.Retry.Multiplier, 0.001)
	assert.False(t, cfg.Retry.CircuitBreaker)
	assert.Equal(t, 5, cfg.Retry.BreakerThreshold)
	assert.Equal(t, 30, cfg.Retry.BreakerCooldownSecs)
	assert.InDelta(t, 0.25, cfg.Match.Weights.Title, 0.001)
	assert.InDelta(t, 0.20, cfg.Match.Weights.Location, 0.001)
	assert.InDelta(t, 0.25, cfg.Match.Weights.Skills, 0.001)
	assert.InDelta(t, 0.15, cfg.Match.Weights.Salary, 0.001)
	assert.InDelta(t, 0.10, cfg.Match.Weights.JobType, 0.001)
	assert.InDelta(t, 0.05, cfg.Match.Weights.Experience, 0.001)
	assert.InDelta(t, 0.3, cfg.Match.MinScore, 0.001)
	assert.Equal(t, 50, cfg.Match.MaxResults)
	assert.Equal(t, 100, cfg.Match.CandidateLimit)
	assert.Equal(t, 30, cfg.Redis.DetailsTTLMinutes)
	assert.Equal(t, "@every 15m", cfg.Scheduler.RefreshSpec)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
  format: console
server:
  port: 9090
providers:
  reed:
    base_url: http://localhost:9999
    per_minute: 5
oauth:
  clients:
    linkedin:
      client_id: abc
      scopes: [r_jobs]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "http://localhost:9999", cfg.Provider("reed").BaseURL)
	assert.Equal(t, 5, cfg.Provider("reed").PerMinute)
	assert.Equal(t, ProviderConfig{}, cfg.Provider("seek"))
	assert.Equal(t, "abc", cfg.OAuth.Clients["linkedin"].ClientID)
	assert.Equal(t, []string{"r_jobs"}, cfg.OAuth.Clients["linkedin"].Scopes)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("JOBSEARCH_STORE_DRIVER", "postgres")
	t.Setenv("JOBSEARCH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadSecretsFromEnv(t *testing.T) {
	chdirTemp(t)

	t.Setenv("JOBSEARCH_VAULT_ENCRYPTION_KEY", testKey)
	t.Setenv("JOBSEARCH_STORE_DATABASE_URL", "postgres://localhost/jobs")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, testKey, cfg.Vault.EncryptionKey)
	assert.Equal(t, "postgres://localhost/jobs", cfg.Store.DatabaseURL)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("JOBSEARCH_SERVER_PORT=4321\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("JOBSEARCH_SERVER_PORT") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4321, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/test"
	cfg.Vault.EncryptionKey = testKey
	cfg.Server.Port = 8080
	cfg.Retry.MaxRetries = 3
	cfg.Retry.Multiplier = 2
	cfg.Match.Weights = MatchWeights{Title: 0.25, Location: 0.20, Skills: 0.25, Salary: 0.15, JobType: 0.10, Experience: 0.05}
	cfg.Match.MinScore = 0.3
	cfg.Match.MaxResults = 50
	return cfg
}

func TestValidateServe_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("serve"))
}

func TestValidate_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""
	cfg.Vault.EncryptionKey = ""

	err := cfg.Validate("search")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "vault.encryption_key is required")
}

func TestValidate_BadKey(t *testing.T) {
	cfg := validDefaults()
	cfg.Vault.EncryptionKey = "abcd"

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "64 hex characters")
}

func TestValidateMigrate_NoVaultNeeded(t *testing.T) {
	cfg := validDefaults()
	cfg.Vault.EncryptionKey = ""
	assert.NoError(t, cfg.Validate("migrate"))
}

func TestValidateSQLite_NoURLNeeded(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = ""
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	// Port only matters for the server.
	assert.NoError(t, cfg.Validate("search"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateMatchWeights(t *testing.T) {
	cfg := validDefaults()

	cfg.Match.Weights.Title = 0.5
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "match.weights must sum to 1.0")

	cfg.Match.Weights.Title = -0.25
	cfg.Match.Weights.Skills = 0.75
	err = cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "match.weights values must be >= 0")

	cfg.Match.Weights.Title = 0.25
	cfg.Match.Weights.Skills = 0.25
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateRetryBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Retry.MaxRetries = 11
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "retry.max_retries")

	cfg.Retry.MaxRetries = 3
	cfg.Retry.Multiplier = 0.5
	err = cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "retry.multiplier")
}
