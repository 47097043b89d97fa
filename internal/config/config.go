package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers understood by STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

type Config struct {
	Port                  string   `mapstructure:"PORT"`
	Env                   string   `mapstructure:"ENV"`
	StoreDriver           string   `mapstructure:"STORE_DRIVER"`
	StoreDir              string   `mapstructure:"STORE_DIR"`
	DatabaseURL           string   `mapstructure:"DATABASE_URL"`
	DBMaxConns            int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns            int32    `mapstructure:"DB_MIN_CONNS"`
	MySQLDSN              string   `mapstructure:"MYSQL_DSN"`
	LatencyMinMS          int      `mapstructure:"LATENCY_MIN_MS"`
	LatencyMaxMS          int      `mapstructure:"LATENCY_MAX_MS"`
	AuthUsername          string   `mapstructure:"AUTH_USERNAME"`
	AuthPassword          string   `mapstructure:"AUTH_PASSWORD"`
	AuthSigningKey        string   `mapstructure:"AUTH_SIGNING_KEY"`
	AuthTokenTTLMinutes   int      `mapstructure:"AUTH_TOKEN_TTL_MINUTES"`
	CORSOrigins           []string `mapstructure:"CORS_ORIGINS"`
	PostalBaseURL         string   `mapstructure:"POSTAL_BASE_URL"`
	PostalTimeoutSeconds  int      `mapstructure:"POSTAL_TIMEOUT_SECONDS"`
	RequestTimeoutSeconds int      `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
	RateLimitRPS          float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst        int      `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit             string   `mapstructure:"BODY_LIMIT"`
}

var keys = []string{
	"PORT", "ENV", "STORE_DRIVER", "STORE_DIR", "DATABASE_URL", "DB_MAX_CONNS",
	"DB_MIN_CONNS", "MYSQL_DSN", "LATENCY_MIN_MS", "LATENCY_MAX_MS",
	"AUTH_USERNAME", "AUTH_PASSWORD", "AUTH_SIGNING_KEY", "AUTH_TOKEN_TTL_MINUTES",
	"CORS_ORIGINS", "POSTAL_BASE_URL", "POSTAL_TIMEOUT_SECONDS",
	"REQUEST_TIMEOUT_SECONDS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "BODY_LIMIT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_DRIVER", DriverFile)
	v.SetDefault("STORE_DIR", "./data")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("LATENCY_MIN_MS", 300)
	v.SetDefault("LATENCY_MAX_MS", 600)
	v.SetDefault("AUTH_USERNAME", "admin")
	v.SetDefault("AUTH_PASSWORD", "admin")
	v.SetDefault("AUTH_TOKEN_TTL_MINUTES", 480)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("POSTAL_BASE_URL", "https://viacep.com.br/ws")
	v.SetDefault("POSTAL_TIMEOUT_SECONDS", 5)
	v.SetDefault("REQUEST_TIMEOUT_SECONDS", 30)
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("BODY_LIMIT", "1M")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) LatencyBand() (min, max time.Duration) {
	return time.Duration(c.LatencyMinMS) * time.Millisecond, time.Duration(c.LatencyMaxMS) * time.Millisecond
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.AuthTokenTTLMinutes) * time.Minute
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c *Config) PostalTimeout() time.Duration {
	return time.Duration(c.PostalTimeoutSeconds) * time.Second
}

// Validate checks that the configuration is usable for the selected store
// driver and that production does not run with the development credentials.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverFile:
		if c.StoreDir == "" {
			return fmt.Errorf("STORE_DIR is required when STORE_DRIVER is %q", DriverFile)
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", DriverPostgres)
		}
		if c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
		}
	case DriverMySQL:
		if c.MySQLDSN == "" {
			return fmt.Errorf("MYSQL_DSN is required when STORE_DRIVER is %q", DriverMySQL)
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be one of memory, file, postgres, mysql, got %q", c.StoreDriver)
	}

	if c.LatencyMinMS < 0 || c.LatencyMaxMS < c.LatencyMinMS {
		return fmt.Errorf("invalid latency band [%d, %d] ms", c.LatencyMinMS, c.LatencyMaxMS)
	}
	if c.AuthTokenTTLMinutes <= 0 {
		return fmt.Errorf("AUTH_TOKEN_TTL_MINUTES must be positive, got %d", c.AuthTokenTTLMinutes)
	}

	if c.IsProduction() {
		if len(c.AuthSigningKey) < 32 {
			return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 characters in production")
		}
		if c.AuthPassword == "admin" {
			return fmt.Errorf("AUTH_PASSWORD must be changed from the default in production")
		}
	}
	return nil
}
