package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	LedgerPostgres = "postgres"
	LedgerSQLite   = "sqlite"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	// LedgerDriver selects where access log entries are written. Practitioner
	// and patient records always live in Postgres.
	LedgerDriver string `mapstructure:"LEDGER_DRIVER"`
	SQLitePath   string `mapstructure:"SQLITE_PATH"`

	// Registry sources are local paths or s3://bucket/key locations. The
	// format follows the extension: .csv, .yaml/.yml or .xlsx.
	RegistryAuthorizedSource string `mapstructure:"REGISTRY_AUTHORIZED_SOURCE"`
	RegistryBlacklistSource  string `mapstructure:"REGISTRY_BLACKLIST_SOURCE"`
	RegistryWatch            bool   `mapstructure:"REGISTRY_WATCH"`
	AWSRegion                string `mapstructure:"AWS_REGION"`

	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL    string `mapstructure:"AUTH_JWKS_URL"`
	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`

	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`
	MetricsEnabled bool     `mapstructure:"METRICS_ENABLED"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"LEDGER_DRIVER", "SQLITE_PATH",
	"REGISTRY_AUTHORIZED_SOURCE", "REGISTRY_BLACKLIST_SOURCE", "REGISTRY_WATCH", "AWS_REGION",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_JWKS_URL", "AUTH_SIGNING_KEY",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "METRICS_ENABLED",
}

// Load reads configuration from the environment and an optional .env file
// in the working directory. Commands that serve traffic call Validate;
// offline commands such as "registry check" only need the registry keys.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("LEDGER_DRIVER", LedgerPostgres)
	v.SetDefault("SQLITE_PATH", "medcard-audit.db")
	v.SetDefault("REGISTRY_AUTHORIZED_SOURCE", "data/authorized_doctors.csv")
	v.SetDefault("REGISTRY_BLACKLIST_SOURCE", "data/blacklisted_doctors.csv")
	v.SetDefault("REGISTRY_WATCH", true)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("METRICS_ENABLED", true)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
	cfg.LedgerDriver = strings.ToLower(strings.TrimSpace(cfg.LedgerDriver))
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
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

// Validate checks that the configuration is safe to run. Outside
// development a token verifier (issuer or signing key) must be configured.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch c.LedgerDriver {
	case LedgerPostgres:
	case LedgerSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when LEDGER_DRIVER is %q", LedgerSQLite)
		}
	default:
		return fmt.Errorf("LEDGER_DRIVER must be %q or %q, got %q", LedgerPostgres, LedgerSQLite, c.LedgerDriver)
	}

	if c.RegistryAuthorizedSource == "" && c.RegistryBlacklistSource == "" {
		return fmt.Errorf("at least one of REGISTRY_AUTHORIZED_SOURCE or REGISTRY_BLACKLIST_SOURCE must be set")
	}
	if c.usesS3() && c.AWSRegion == "" {
		return fmt.Errorf("AWS_REGION is required for s3:// registry sources")
	}

	if !c.IsDev() && c.AuthIssuer == "" && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_ISSUER or AUTH_SIGNING_KEY must be set when ENV=%q", c.Env)
	}
	if c.AuthIssuer != "" && c.AuthSigningKey != "" {
		return fmt.Errorf("AUTH_ISSUER and AUTH_SIGNING_KEY are mutually exclusive")
	}

	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}

func (c *Config) usesS3() bool {
	return strings.HasPrefix(c.RegistryAuthorizedSource, "s3://") ||
		strings.HasPrefix(c.RegistryBlacklistSource, "s3://")
}
