// Package config defines service configuration and how it is loaded.
//
// Conventions:
// - Defaults live in New; Load layers a YAML file and ZCALC_ env vars on top.
// - Keys are flat and snake_case so env names map onto them directly.
// - Errors wrap ErrInvalidConfig or ErrLoadConfig.
package config

import (
	"fmt"
	"strings"
	"time"

	repository "github.com/okian/zcalc/internal/adapters/repository"
	"github.com/okian/zcalc/internal/domain/model"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// RequestTimeoutMS bounds each /zscore request, store lookup included.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// DebugResponses adds request diagnostics (key, L, M, S) to response bodies.
	DebugResponses bool `koanf:"debug_responses"`

	// StoreDriver selects the reference store: memory, sqlite, postgres or redis.
	StoreDriver string `koanf:"store_driver"`

	// StoreDSN is a sqlite path, a postgres URL or a redis:// URL.
	StoreDSN string `koanf:"store_dsn"`

	// StoreTable names the SQL table holding reference rows.
	StoreTable string `koanf:"store_table"`

	// StoreKeyPrefix prefixes Redis hash keys.
	StoreKeyPrefix string `koanf:"store_key_prefix"`

	// StoreSeedCSV, when set, is imported into the store at startup.
	StoreSeedCSV string `koanf:"store_seed_csv"`

	// StoreSeedAttribute is the attribute the seed CSV describes.
	StoreSeedAttribute string `koanf:"store_seed_attribute"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		RequestTimeoutMS:   2000,
		StoreDriver:        repository.DriverMemory,
		StoreTable:         "lms_reference",
		StoreKeyPrefix:     "lms",
		StoreSeedAttribute: string(model.HeadCircumference),
	}
}

// RequestTimeout returns RequestTimeoutMS as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// Validate checks the fields that have a closed set of values.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.RequestTimeoutMS <= 0 {
		return fmt.Errorf("%w: request_timeout_ms must be positive, got %d", ErrInvalidConfig, c.RequestTimeoutMS)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	switch c.StoreDriver {
	case repository.DriverMemory:
	case repository.DriverSQLite, repository.DriverPostgres, repository.DriverRedis:
		if c.StoreDSN == "" {
			return fmt.Errorf("%w: store_dsn is required for store_driver %q", ErrInvalidConfig, c.StoreDriver)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	if c.StoreSeedCSV != "" && c.StoreSeedAttribute == "" {
		return fmt.Errorf("%w: store_seed_attribute is required with store_seed_csv", ErrInvalidConfig)
	}
	if c.StoreSeedAttribute != "" {
		if _, err := model.ParseAttribute(c.StoreSeedAttribute); err != nil {
			return fmt.Errorf("%w: store_seed_attribute: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}
