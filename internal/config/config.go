package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DefaultPort              = 8080
	DefaultAccessTokenTTL    = 30 * time.Minute
	DefaultRefreshTokenTTL   = 30 * 24 * time.Hour
	DefaultSweepInterval     = time.Hour
	DefaultFederationTimeout = 10 * time.Second
	DefaultRequestsPerMinute = 60
	DefaultPenaltyThreshold  = 10
	DefaultPenaltyDuration   = 5 * time.Minute

	SessionStorePostgres = "postgres"
	SessionStoreRedis    = "redis"
	SessionStoreMemory   = "memory"
)

var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")
	ErrMissingTokenSecret = errors.New("TOKEN_SECRET is required")
	ErrMissingRedisURL    = errors.New("REDIS_URL is required when SESSION_STORE=redis")
	ErrUnknownStore       = errors.New("SESSION_STORE must be postgres, redis or memory")
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Token     TokenConfig
	RateLimit RateLimitConfig
	OAuth     OAuthConfig
	Notify    NotifyConfig
}

type ServerConfig struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	Host        string `env:"HOST" envDefault:"0.0.0.0"`
	Port        int    `env:"PORT" envDefault:"8080"`
	GRPCPort    int    `env:"GRPC_PORT" envDefault:"0"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	CorsOrigins string `env:"CORS_ORIGINS" envDefault:"*"`
}

type DatabaseConfig struct {
	URL string `env:"DATABASE_URL"`
}

type RedisConfig struct {
	URL string `env:"REDIS_URL"`
}

type TokenConfig struct {
	Secret        string        `env:"TOKEN_SECRET"`
	AccessTTL     time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"30m"`
	RefreshTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1h"`
	SessionStore  string        `env:"SESSION_STORE" envDefault:"postgres"`
}

type RateLimitConfig struct {
	RequestsPerMinute int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
	PenaltyThreshold  int           `env:"RATE_LIMIT_PENALTY_THRESHOLD" envDefault:"10"`
	PenaltyDuration   time.Duration `env:"RATE_LIMIT_PENALTY_DURATION" envDefault:"5m"`
	MaxEntries        int           `env:"RATE_LIMIT_MAX_ENTRIES" envDefault:"10000"`
	IdleWindow        time.Duration `env:"RATE_LIMIT_IDLE_WINDOW" envDefault:"10m"`
	BypassPrefixes    []string      `env:"RATE_LIMIT_BYPASS" envSeparator:"," envDefault:"/api/v1/payment/stripe/sponsorship/webhook,/health"`
	AuthMax           int           `env:"AUTH_RATE_LIMIT_MAX" envDefault:"10"`
}

type OAuthConfig struct {
	GitHubClientID     string        `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string        `env:"GITHUB_CLIENT_SECRET"`
	Timeout            time.Duration `env:"FEDERATION_TIMEOUT" envDefault:"10s"`
}

type NotifyConfig struct {
	WebhookURL string        `env:"NOTIFY_WEBHOOK_URL"`
	Timeout    time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"10s"`
}

// Load reads the configuration from the environment. It does not validate it;
// call Validate before wiring anything that depends on secrets.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.Token.SessionStore = strings.ToLower(strings.TrimSpace(cfg.Token.SessionStore))
	if cfg.Token.SessionStore == "" {
		cfg.Token.SessionStore = SessionStorePostgres
	}
	cfg.RateLimit.BypassPrefixes = trimAll(cfg.RateLimit.BypassPrefixes)

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return ErrMissingDatabaseURL
	}
	if c.Token.Secret == "" {
		return ErrMissingTokenSecret
	}
	switch c.Token.SessionStore {
	case SessionStorePostgres, SessionStoreMemory:
	case SessionStoreRedis:
		if c.Redis.URL == "" {
			return ErrMissingRedisURL
		}
	default:
		return ErrUnknownStore
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
