package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig               `yaml:"store" mapstructure:"store"`
	Vault     VaultConfig               `yaml:"vault" mapstructure:"vault"`
	OAuth     OAuthConfig               `yaml:"oauth" mapstructure:"oauth"`
	Providers map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
	Retry     RetryConfig               `yaml:"retry" mapstructure:"retry"`
	Match     MatchConfig               `yaml:"match" mapstructure:"match"`
	Redis     RedisConfig               `yaml:"redis" mapstructure:"redis"`
	Scheduler SchedulerConfig           `yaml:"scheduler" mapstructure:"scheduler"`
	Anthropic AnthropicConfig           `yaml:"anthropic" mapstructure:"anthropic"`
	Server    ServerConfig              `yaml:"server" mapstructure:"server"`
	Log       LogConfig                 `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// VaultConfig holds the token encryption key (64 hex chars).
type VaultConfig struct {
	EncryptionKey string `yaml:"encryption_key" mapstructure:"encryption_key"`
}

// OAuthConfig holds per-provider OAuth client settings.
type OAuthConfig struct {
	BackendURL string                         `yaml:"backend_url" mapstructure:"backend_url"`
	Clients    map[string]OAuthProviderConfig `yaml:"clients" mapstructure:"clients"`
}

// OAuthProviderConfig is one provider's OAuth application.
type OAuthProviderConfig struct {
	ClientID     string   `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string   `yaml:"client_secret" mapstructure:"client_secret"`
	AuthURL      string   `yaml:"auth_url" mapstructure:"auth_url"`
	TokenURL     string   `yaml:"token_url" mapstructure:"token_url"`
	Scopes       []string `yaml:"scopes" mapstructure:"scopes"`
}

// ProviderConfig overrides a job board client's defaults.
type ProviderConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	PerMinute   int    `yaml:"per_minute" mapstructure:"per_minute"`
	PerHour     int    `yaml:"per_hour" mapstructure:"per_hour"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
}

// RetryConfig configures provider request retries.
type RetryConfig struct {
	MaxRetries          int     `yaml:"max_retries" mapstructure:"max_retries"`
	InitialBackoffMs    int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs        int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier          float64 `yaml:"multiplier" mapstructure:"multiplier"`
	CircuitBreaker      bool    `yaml:"circuit_breaker" mapstructure:"circuit_breaker"`
	BreakerThreshold    int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int     `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// MatchConfig configures the match scoring engine.
type MatchConfig struct {
	Weights        MatchWeights `yaml:"weights" mapstructure:"weights"`
	MinScore       float64      `yaml:"min_score" mapstructure:"min_score"`
	MaxResults     int          `yaml:"max_results" mapstructure:"max_results"`
	CandidateLimit int          `yaml:"candidate_limit" mapstructure:"candidate_limit"`
}

// MatchWeights holds per-criterion weights. They must sum to 1.0.
type MatchWeights struct {
	Title      float64 `yaml:"title" mapstructure:"title"`
	Location   float64 `yaml:"location" mapstructure:"location"`
	Skills     float64 `yaml:"skills" mapstructure:"skills"`
	Salary     float64 `yaml:"salary" mapstructure:"salary"`
	JobType    float64 `yaml:"job_type" mapstructure:"job_type"`
	Experience float64 `yaml:"experience" mapstructure:"experience"`
}

// RedisConfig configures the job details cache. Empty Addr disables it.
type RedisConfig struct {
	Addr              string `yaml:"addr" mapstructure:"addr"`
	Password          string `yaml:"password" mapstructure:"password"`
	DB                int    `yaml:"db" mapstructure:"db"`
	DetailsTTLMinutes int    `yaml:"details_ttl_minutes" mapstructure:"details_ttl_minutes"`
}

// SchedulerConfig configures the background token refresh sweep.
type SchedulerConfig struct {
	RefreshSpec       string  `yaml:"refresh_spec" mapstructure:"refresh_spec"`
	RefreshWindowMins int     `yaml:"refresh_window_mins" mapstructure:"refresh_window_mins"`
	UsersPerSecond    float64 `yaml:"users_per_second" mapstructure:"users_per_second"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("JOBSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("oauth.backend_url", "http://localhost:8080")
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.initial_backoff_ms", 1000)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.breaker_threshold", 5)
	v.SetDefault("retry.breaker_cooldown_secs", 30)
	v.SetDefault("match.weights.title", 0.25)
	v.SetDefault("match.weights.location", 0.20)
	v.SetDefault("match.weights.skills", 0.25)
	v.SetDefault("match.weights.salary", 0.15)
	v.SetDefault("match.weights.job_type", 0.10)
	v.SetDefault("match.weights.experience", 0.05)
	v.SetDefault("match.min_score", 0.3)
	v.SetDefault("match.max_results", 50)
	v.SetDefault("match.candidate_limit", 100)
	v.SetDefault("redis.details_ttl_minutes", 30)
	v.SetDefault("scheduler.refresh_spec", "@every 15m")
	v.SetDefault("scheduler.refresh_window_mins", 30)
	v.SetDefault("scheduler.users_per_second", 5.0)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")

	// Secrets are commonly supplied only through the environment; bind them
	// so Unmarshal sees them without a config file entry.
	for _, key := range []string{"store.database_url", "vault.encryption_key", "anthropic.key", "redis.addr", "redis.password"} {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Provider returns the override block for id, or the zero value.
func (c *Config) Provider(id string) ProviderConfig {
	if c.Providers == nil {
		return ProviderConfig{}
	}
	return c.Providers[id]
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
