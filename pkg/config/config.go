// Package config defines the immutable run configuration for statusq and
// the optional YAML profile file that seeds it.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved configuration for one batch run. It is built once
// by the command layer (flags > environment > profile > defaults) and passed
// read-only to the components.
type Config struct {
	// Input is the path of the identifier list file. Required.
	Input string

	// Output is the success document path. Empty prints to stdout.
	Output string

	// ErrorOutput is the failure document path. Empty prints to stdout.
	ErrorOutput string

	// Endpoint is the status API base URL.
	Endpoint string

	// StatusPath is the status API path under Endpoint.
	StatusPath string

	// Workers is the dispatch pool size.
	Workers int

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// RPS limits outgoing requests per second; zero disables the limit.
	RPS float64

	// Burst is the limiter burst size.
	Burst int

	// Progress enables the console progress bar.
	Progress bool

	// CacheRedis is the Redis address for the payload cache; empty disables it.
	CacheRedis string

	// CacheTTL is how long cached payloads stay valid.
	CacheTTL time.Duration

	// PDFPath, when set, writes a PDF summary of the run.
	PDFPath string

	// LogLevel is the minimum log level.
	LogLevel string

	// Pretty enables colored console logging.
	Pretty bool

	// MetricsAddr, when set, serves Prometheus metrics during the run.
	MetricsAddr string
}

// Default returns the baseline configuration before flags and profiles.
func Default() Config {
	return Config{
		Endpoint:   "http://localhost:8080",
		StatusPath: "status",
		Workers:    4,
		Timeout:    30 * time.Second,
		CacheTTL:   60 * time.Second,
		LogLevel:   "info",
	}
}

// Validate checks the configuration before the pool is constructed.
// Violations here are fatal setup errors.
func (c Config) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("input file path is required")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0 (got %d)", c.Workers)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0 (got %s)", c.Timeout)
	}
	if c.RPS < 0 {
		return fmt.Errorf("rps must be >= 0 (got %g)", c.RPS)
	}
	if _, err := c.RequestURL(); err != nil {
		return err
	}
	return nil
}

// RequestURL assembles the full status endpoint URL from Endpoint and
// StatusPath.
func (c Config) RequestURL() (string, error) {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", c.Endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("endpoint must be http or https (got %q)", c.Endpoint)
	}
	return strings.TrimRight(u.String(), "/") + "/" + strings.TrimLeft(c.StatusPath, "/"), nil
}

// Profile is one named settings block in the YAML config file. Zero values
// mean "not set" and leave the current configuration untouched.
// Durations are strings in time.ParseDuration form (e.g. "30s").
type Profile struct {
	Endpoint   string  `yaml:"endpoint"`
	StatusPath string  `yaml:"statusPath"`
	Workers    int     `yaml:"workers"`
	Timeout    string  `yaml:"timeout"`
	RPS        float64 `yaml:"rps"`
	Burst      int     `yaml:"burst"`
	CacheRedis string  `yaml:"cacheRedis"`
	CacheTTL   string  `yaml:"cacheTtl"`
	LogLevel   string  `yaml:"logLevel"`
	Pretty     bool    `yaml:"pretty"`
}

// File is the on-disk YAML configuration.
type File struct {
	CurrentProfile string             `yaml:"currentProfile"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// DefaultFilePath returns the conventional config file location.
func DefaultFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "statusq", "config.yaml")
}

// LoadFile reads the YAML config file at path. A missing file is not an
// error; it yields an empty File.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &f, nil
}

// Resolve picks the named profile, falling back to the file's current
// profile. Unknown names yield the zero Profile.
func (f *File) Resolve(name string) Profile {
	if name == "" {
		name = f.CurrentProfile
	}
	return f.Profiles[name]
}

// Apply overlays the profile's set fields onto the configuration.
// Malformed durations are reported so typos in the profile file surface as
// setup errors instead of being silently ignored.
func (c *Config) Apply(p Profile) error {
	if p.Endpoint != "" {
		c.Endpoint = p.Endpoint
	}
	if p.StatusPath != "" {
		c.StatusPath = p.StatusPath
	}
	if p.Workers > 0 {
		c.Workers = p.Workers
	}
	if p.Timeout != "" {
		d, err := time.ParseDuration(p.Timeout)
		if err != nil {
			return fmt.Errorf("parse profile timeout: %w", err)
		}
		c.Timeout = d
	}
	if p.RPS > 0 {
		c.RPS = p.RPS
	}
	if p.Burst > 0 {
		c.Burst = p.Burst
	}
	if p.CacheRedis != "" {
		c.CacheRedis = p.CacheRedis
	}
	if p.CacheTTL != "" {
		d, err := time.ParseDuration(p.CacheTTL)
		if err != nil {
			return fmt.Errorf("parse profile cacheTtl: %w", err)
		}
		c.CacheTTL = d
	}
	if p.LogLevel != "" {
		c.LogLevel = p.LogLevel
	}
	if p.Pretty {
		c.Pretty = true
	}
	return nil
}
