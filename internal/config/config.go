package config

import (
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port                string        `mapstructure:"PORT"`
	Env                 string        `mapstructure:"ENV"`
	LogLevel            string        `mapstructure:"LOG_LEVEL"`
	DBDriver            string        `mapstructure:"DB_DRIVER"`
	DatabaseURL         string        `mapstructure:"DATABASE_URL"`
	SQLitePath          string        `mapstructure:"SQLITE_PATH"`
	DBMaxConns          int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32         `mapstructure:"DB_MIN_CONNS"`
	DBSchema            string        `mapstructure:"DB_SCHEMA"`
	AuthIssuer          string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience        string        `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL         string        `mapstructure:"AUTH_JWKS_URL"`
	AuthSigningKey      string        `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins         []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS        float64       `mapstructure:"RATE_LIMIT_RPS"`
	CatalogCacheTTL     time.Duration `mapstructure:"CATALOG_CACHE_TTL"`
	HistoryDefaultLimit int           `mapstructure:"HISTORY_DEFAULT_LIMIT"`
	RequestTimeout      time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	CompletenessWeight float64 `mapstructure:"MATCH_COMPLETENESS_WEIGHT"`
	RelevanceWeight    float64 `mapstructure:"MATCH_RELEVANCE_WEIGHT"`
	MinMatched         int     `mapstructure:"MATCH_MIN_MATCHED"`
	MinConfidence      float64 `mapstructure:"MATCH_MIN_CONFIDENCE"`
}

var envKeys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"DB_DRIVER", "DATABASE_URL", "SQLITE_PATH", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_SCHEMA",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_JWKS_URL", "AUTH_SIGNING_KEY",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "CATALOG_CACHE_TTL", "HISTORY_DEFAULT_LIMIT", "REQUEST_TIMEOUT",
	"MATCH_COMPLETENESS_WEIGHT", "MATCH_RELEVANCE_WEIGHT", "MATCH_MIN_MATCHED", "MATCH_MIN_CONFIDENCE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("SQLITE_PATH", "gastrodx.db")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("CATALOG_CACHE_TTL", "5m")
	v.SetDefault("HISTORY_DEFAULT_LIMIT", 20)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("MATCH_COMPLETENESS_WEIGHT", 0.6)
	v.SetDefault("MATCH_RELEVANCE_WEIGHT", 0.4)
	v.SetDefault("MATCH_MIN_MATCHED", 2)
	v.SetDefault("MATCH_MIN_CONFIDENCE", 40.0)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))

	if cfg.DBDriver != DriverSQLite && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for DB_DRIVER=%s", cfg.DBDriver)
	}

	if cfg.IsDev() {
		log.Println("WARNING: running in DEVELOPMENT mode (ENV=development); admin routes are open.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres, DriverMySQL:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for DB_DRIVER=%s", c.DBDriver)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for DB_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be %q, %q or %q, got %q", DriverPostgres, DriverMySQL, DriverSQLite, c.DBDriver)
	}

	if c.IsProduction() && c.AuthIssuer == "" && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_ISSUER or AUTH_SIGNING_KEY is required in production")
	}

	if c.CompletenessWeight < 0 || c.CompletenessWeight > 1 || c.RelevanceWeight < 0 || c.RelevanceWeight > 1 {
		return fmt.Errorf("match weights must be within [0,1], got %.2f/%.2f", c.CompletenessWeight, c.RelevanceWeight)
	}
	if math.Abs(c.CompletenessWeight+c.RelevanceWeight-1) > 1e-9 {
		return fmt.Errorf("match weights must sum to 1, got %.2f", c.CompletenessWeight+c.RelevanceWeight)
	}
	if c.MinMatched < 0 || c.MinConfidence < 0 {
		return fmt.Errorf("match thresholds must not be negative")
	}
	if c.HistoryDefaultLimit <= 0 {
		return fmt.Errorf("HISTORY_DEFAULT_LIMIT must be positive, got %d", c.HistoryDefaultLimit)
	}
	return nil
}
