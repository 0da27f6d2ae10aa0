// Package config loads the hubframe service configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/hubframe/origin"
)

// Config is the top-level service configuration.
type Config struct {
	Listen          string        `yaml:"listen"`
	DB              string        `yaml:"db"`
	LogLevel        string        `yaml:"log_level"` // debug | info | warn | error
	StaticDir       string        `yaml:"static_dir"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Content         ContentConfig `yaml:"content"`
	Reports         ReportsConfig `yaml:"reports"`
}

// ContentConfig controls the CMS cache. An empty upstream disables it.
type ContentConfig struct {
	Upstream      string        `yaml:"upstream"`
	TTL           time.Duration `yaml:"ttl"`
	StaleTTL      time.Duration `yaml:"stale_ttl"`
	PurgeInterval time.Duration `yaml:"purge_interval"`
}

// ReportsConfig controls height report ingestion.
type ReportsConfig struct {
	Path          string        `yaml:"path"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
	Retention     time.Duration `yaml:"retention"`
	PurgeInterval time.Duration `yaml:"purge_interval"`
}

// Load reads a YAML configuration file. An empty path yields the defaults.
// HUBFRAME_LISTEN and HUBFRAME_DB override the file.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if v := os.Getenv("HUBFRAME_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("HUBFRAME_DB"); v != "" {
		cfg.DB = v
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.DB == "" {
		c.DB = "data/hubframe.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.Content.TTL <= 0 {
		c.Content.TTL = 5 * time.Minute
	}
	if c.Content.StaleTTL <= 0 {
		c.Content.StaleTTL = 24 * time.Hour
	}
	if c.Content.PurgeInterval <= 0 {
		c.Content.PurgeInterval = time.Hour
	}
	if c.Reports.Path == "" {
		c.Reports.Path = "/wp-json/hubframe/v1/height-report"
	}
	if c.Reports.RatePerSecond <= 0 {
		c.Reports.RatePerSecond = 5
	}
	if c.Reports.Burst <= 0 {
		c.Reports.Burst = 10
	}
	if c.Reports.Retention <= 0 {
		c.Reports.Retention = 30 * 24 * time.Hour
	}
	if c.Reports.PurgeInterval <= 0 {
		c.Reports.PurgeInterval = time.Hour
	}
}

// Validate checks the values that defaults cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Origins(); err != nil {
		errs = append(errs, err)
	}
	if c.Content.Upstream != "" {
		if _, ok := origin.Parse(c.Content.Upstream); !ok {
			errs = append(errs, fmt.Errorf("config: content.upstream %q is not an http(s) URL", c.Content.Upstream))
		}
	}
	if c.Reports.Path[0] != '/' {
		errs = append(errs, fmt.Errorf("config: reports.path %q must start with /", c.Reports.Path))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("config: unknown log_level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}

// Origins parses AllowedOrigins.
func (c *Config) Origins() ([]origin.Origin, error) {
	out := make([]origin.Origin, 0, len(c.AllowedOrigins))
	for _, raw := range c.AllowedOrigins {
		o, ok := origin.Parse(raw)
		if !ok {
			return nil, fmt.Errorf("config: allowed origin %q is not an http(s) origin", raw)
		}
		out = append(out, o)
	}
	return out, nil
}
