package app

import (
	"fmt"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (GROCER_ prefix), flags, or YAML config files.
// It is populated once at startup, validated eagerly, and passed by
// reference; nothing resolves configuration ad hoc per request.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (GROCER_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Debug       bool   `default:"false" usage:"Include extended error detail in responses"`
	Admin       AdminConfig
	RateLimit   RateLimitConfig
	Cache       CacheConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// AdminConfig holds the credentials gating admin routes.
type AdminConfig struct {
	User     string `default:"admin" usage:"Admin username"`
	Password string `usage:"Admin password (GROCER_ADMIN_PASSWORD)" flag:"admin-password"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Threshold int           `default:"100" usage:"Max requests per client per window"`
	Window    time.Duration `default:"1h"  usage:"Sliding window duration"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	CatalogTTL time.Duration `default:"5m" usage:"Catalog response cache TTL" flag:"catalog-ttl"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers for the browser
// storefront.
type CORSConfig struct {
	Origins []string `default:"*" usage:"Allowed CORS origins"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and flags, applies platform defaults, and validates the result.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "GROCER",
		Files:     []string{"config.yaml", "/etc/greengrocer/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set GROCER_DATABASE_URL or DATABASE_URL")
	}
	if cfg.Admin.Password == "" {
		return nil, errors.New("admin password is required: set GROCER_ADMIN_PASSWORD")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's GROCER_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

// Warnings returns non-fatal configuration notes. Out-of-range numeric
// options are coerced back to their defaults here so the rest of the process
// never sees them; the warnings surface in the admin health diagnostic.
func (c *Config) Warnings() []string {
	var warnings []string

	if c.RateLimit.Threshold <= 0 {
		warnings = append(warnings,
			fmt.Sprintf("rate limit threshold %d is not positive; using default 100", c.RateLimit.Threshold))
		c.RateLimit.Threshold = 100
	}
	if c.RateLimit.Window <= 0 {
		warnings = append(warnings, "rate limit window is not positive; using default 1h")
		c.RateLimit.Window = time.Hour
	}
	if c.Cache.CatalogTTL <= 0 {
		warnings = append(warnings, "catalog cache TTL is not positive; using default 5m")
		c.Cache.CatalogTTL = 5 * time.Minute
	} else if c.Cache.CatalogTTL > time.Hour {
		warnings = append(warnings, "catalog cache TTL exceeds 1h; catalog reads may be stale for a long time")
	}
	if len(c.Admin.Password) < 8 {
		warnings = append(warnings, "admin password is shorter than 8 characters")
	}
	if c.Debug {
		warnings = append(warnings, "debug mode is enabled; error responses include internal detail")
	}

	return warnings
}
