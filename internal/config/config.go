package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"8080"`
	Host        string `env:"HOST" envDefault:"http://localhost:8080"`
	// AllowedHost is the bare hostname for the production host check; derived from Host.
	AllowedHost string `env:"-"`

	PostgresURI    string        `env:"POSTGRES_URI" envDefault:"postgres://localhost:5432/mutual?sslmode=disable"`
	MongoURI       string        `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase  string        `env:"MONGODB_DATABASE" envDefault:"mutual"`
	RedisURI       string        `env:"REDIS_URI" envDefault:"redis://localhost:6379/0"`
	StoreBackend   string        `env:"STORE_BACKEND" envDefault:"postgres"`
	StorageTimeout time.Duration `env:"STORAGE_TIMEOUT" envDefault:"5s"`

	IdentityPepper string        `env:"IDENTITY_PEPPER"`
	EncryptionKey  string        `env:"ENCRYPTION_KEY"`
	JWTSecret      string        `env:"JWT_SECRET" envDefault:"your-secret-key-change-in-production"`
	TokenTTL       time.Duration `env:"TOKEN_TTL" envDefault:"168h"`
	AdminAPIKey    string        `env:"ADMIN_API_KEY"`

	// CORS: from ALLOWED_ORIGINS or FRONTEND_URL; must include the production frontend origin
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	FrontendURL    string   `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	TrustProxy     bool     `env:"TRUST_PROXY" envDefault:"false"`

	CreditPeriod        time.Duration `env:"CREDIT_PERIOD" envDefault:"168h"`
	Retention           time.Duration `env:"RETENTION" envDefault:"336h"`
	MaintenanceInterval time.Duration `env:"MAINTENANCE_INTERVAL" envDefault:"1h"`
	MaintenanceEnabled  bool          `env:"MAINTENANCE_ENABLED" envDefault:"true"`

	RateLimitMax    int           `env:"RATE_LIMIT_MAX" envDefault:"25"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"120s"`
	RateLimitBlock  time.Duration `env:"RATE_LIMIT_BLOCK" envDefault:"24h"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	if cfg.IsProduction() {
		cfg.AllowedHost = bareHost(cfg.Host)
	}
	cfg.AllowedOrigins = normalizeOrigins(cfg.AllowedOrigins, cfg.FrontendURL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q", c.StoreBackend)
	}
	if c.StorageTimeout <= 0 {
		return fmt.Errorf("STORAGE_TIMEOUT must be positive")
	}
	if c.CreditPeriod <= 0 || c.Retention <= 0 || c.MaintenanceInterval <= 0 {
		return fmt.Errorf("CREDIT_PERIOD, RETENTION and MAINTENANCE_INTERVAL must be positive")
	}
	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}
	if c.IsProduction() {
		if c.StoreBackend == BackendMemory {
			return fmt.Errorf("STORE_BACKEND=memory is not allowed in production")
		}
		if c.IdentityPepper == "" {
			return fmt.Errorf("IDENTITY_PEPPER is required in production")
		}
		if c.AdminAPIKey == "" {
			return fmt.Errorf("ADMIN_API_KEY is required in production")
		}
		if c.JWTSecret == "" || c.JWTSecret == "your-secret-key-change-in-production" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
	}
	return nil
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return strings.ToLower(strings.TrimSpace(c.Environment)) == "production"
}

// bareHost strips scheme, path and port from a HOST value.
func bareHost(host string) string {
	for _, prefix := range []string{"https://", "http://"} {
		host = strings.TrimPrefix(host, prefix)
	}
	if idx := strings.Index(host, "/"); idx != -1 {
		host = host[:idx]
	}
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return strings.TrimSpace(host)
}

func normalizeOrigins(origins []string, frontendURL string) []string {
	var out []string
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" && !containsOrigin(out, o) {
			out = append(out, o)
		}
	}
	if len(out) == 0 && strings.TrimSpace(frontendURL) != "" {
		out = append(out, strings.TrimSpace(frontendURL))
	}
	if len(out) == 0 {
		out = []string{"http://localhost:3000"}
	}
	return out
}

func containsOrigin(list []string, o string) bool {
	o = strings.TrimSpace(strings.ToLower(o))
	for _, v := range list {
		if strings.TrimSpace(strings.ToLower(v)) == o {
			return true
		}
	}
	return false
}
