package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/academy-ai/aicache/pkg/cachekey"
	"github.com/academy-ai/aicache/pkg/models"
	"github.com/academy-ai/aicache/pkg/params"
	"github.com/academy-ai/aicache/pkg/policy"
)

// Config holds all aicache configuration.
type Config struct {
	Listen    string             `yaml:"listen"`
	DBPath    string             `yaml:"db_path"`
	Log       LogConfig          `yaml:"log"`
	Cache     CacheConfig        `yaml:"cache"`
	Generator GeneratorConfig    `yaml:"generator"`
	Warmup    WarmupConfig       `yaml:"warmup"`
	Audit     models.AuditConfig `yaml:"audit"`
}

// LogConfig controls the zap logger. An empty File logs to stderr.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// CacheConfig controls the response cache. Policies from the file are
// merged over the built-in per-function TTLs.
type CacheConfig struct {
	DefaultTTL      time.Duration            `yaml:"default_ttl"`
	Policies        map[string]time.Duration `yaml:"policies"`
	CleanupInterval time.Duration            `yaml:"cleanup_interval"`
	SingleFlight    bool                     `yaml:"single_flight"`
}

// GeneratorConfig defines the AI-generation endpoints and per-function
// fallback chains.
type GeneratorConfig struct {
	Endpoints []EndpointConfig `yaml:"endpoints"`
	Routes    []RouteConfig    `yaml:"routes"`
	Timeout   time.Duration    `yaml:"timeout"`
}

// EndpointConfig is one AI-generation service.
type EndpointConfig struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

// RouteConfig maps a function to an ordered list of endpoint names.
type RouteConfig struct {
	Function string   `yaml:"function"`
	Targets  []string `yaml:"targets"`
}

// WarmupConfig controls the warmup scheduler.
type WarmupConfig struct {
	Concurrency       int         `yaml:"concurrency"`
	RequestsPerMinute int         `yaml:"requests_per_minute"`
	Jobs              []WarmupJob `yaml:"jobs"`
}

// WarmupJob is a configured (function, parameters) pair to pre-compute.
type WarmupJob struct {
	Function string         `yaml:"function"`
	Params   map[string]any `yaml:"params"`
}

// Value converts the job parameters for keying.
func (j WarmupJob) Value() (params.Value, error) {
	if j.Params == nil {
		return params.Map(nil), nil
	}
	return params.FromAny(j.Params)
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		DBPath: "aicache.db",
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Cache: CacheConfig{
			DefaultTTL:      policy.DefaultTTL,
			Policies:        policy.DefaultPolicies(),
			CleanupInterval: time.Hour,
		},
		Generator: GeneratorConfig{
			Timeout: 2 * time.Minute,
		},
		Warmup: WarmupConfig{
			Concurrency: 4,
		},
		Audit: models.AuditConfig{
			Enabled:       true,
			RetentionDays: 90,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Cache.DefaultTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.default_ttl must be positive, got %v", c.Cache.DefaultTTL))
	}
	for fn, ttl := range c.Cache.Policies {
		if ttl <= 0 {
			errs = append(errs, fmt.Errorf("cache.policies.%s must be positive, got %v", fn, ttl))
		}
	}
	if c.Cache.CleanupInterval < 0 {
		errs = append(errs, errors.New("cache.cleanup_interval must not be negative"))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	endpoints := make(map[string]bool, len(c.Generator.Endpoints))
	for _, ep := range c.Generator.Endpoints {
		if ep.Name == "" || ep.URL == "" {
			errs = append(errs, errors.New("generator.endpoints: name and url are required"))
		}
		endpoints[ep.Name] = true
	}
	for _, r := range c.Generator.Routes {
		for _, target := range r.Targets {
			if !endpoints[target] {
				errs = append(errs, fmt.Errorf("generator.routes.%s: unknown endpoint %q", r.Function, target))
			}
		}
	}

	if c.Warmup.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("warmup.concurrency must be at least 1, got %d", c.Warmup.Concurrency))
	}
	if c.Warmup.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("warmup.requests_per_minute must not be negative"))
	}
	for i, j := range c.Warmup.Jobs {
		if err := cachekey.ValidateFunctionName(j.Function); err != nil {
			errs = append(errs, fmt.Errorf("warmup.jobs[%d]: %w", i, err))
			continue
		}
		if _, err := j.Value(); err != nil {
			errs = append(errs, fmt.Errorf("warmup.jobs[%d] (%s): %w", i, j.Function, err))
		}
	}
	if c.Audit.RetentionDays < 0 {
		errs = append(errs, errors.New("audit.retention_days must not be negative"))
	}
	return errors.Join(errs...)
}

// PolicyTable builds the TTL policy table.
func (c *Config) PolicyTable() (*policy.Table, error) {
	return policy.New(c.Cache.DefaultTTL, c.Cache.Policies)
}
