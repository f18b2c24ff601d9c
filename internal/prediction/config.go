package prediction

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// Config holds the inference service location and request timeout.
type Config struct {
	BaseURL      string `toml:"base_url"`
	DocumentPath string `toml:"document_path"`
	ManualPath   string `toml:"manual_path"`
	Timeout      string `toml:"timeout"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	BaseURL      string
	DocumentPath string
	ManualPath   string
	Timeout      string
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Endpoint joins the base URL with p.
func (c *Config) Endpoint(p string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(p, "/")
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.DocumentPath != "" {
		c.DocumentPath = overlay.DocumentPath
	}
	if overlay.ManualPath != "" {
		c.ManualPath = overlay.ManualPath
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *Config) loadDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:5000"
	}
	if c.DocumentPath == "" {
		c.DocumentPath = "/predict"
	}
	if c.ManualPath == "" {
		c.ManualPath = "/predict_manual"
	}
	if c.Timeout == "" {
		c.Timeout = "2m"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.BaseURL != "" {
		if v := os.Getenv(env.BaseURL); v != "" {
			c.BaseURL = v
		}
	}
	if env.DocumentPath != "" {
		if v := os.Getenv(env.DocumentPath); v != "" {
			c.DocumentPath = v
		}
	}
	if env.ManualPath != "" {
		if v := os.Getenv(env.ManualPath); v != "" {
			c.ManualPath = v
		}
	}
	if env.Timeout != "" {
		if v := os.Getenv(env.Timeout); v != "" {
			c.Timeout = v
		}
	}
}

func (c *Config) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be http or https: %q", c.BaseURL)
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
