package config

import (
	"fmt"
	"os"

	"github.com/JaimeStill/docassist/pkg/formatting"
	"github.com/JaimeStill/docassist/pkg/middleware"
	"github.com/JaimeStill/docassist/pkg/pagination"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "DOCASSIST_CORS_ENABLED",
	Origins:          "DOCASSIST_CORS_ORIGINS",
	AllowedMethods:   "DOCASSIST_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "DOCASSIST_CORS_ALLOWED_HEADERS",
	ExposedHeaders:   "DOCASSIST_CORS_EXPOSED_HEADERS",
	AllowCredentials: "DOCASSIST_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "DOCASSIST_CORS_MAX_AGE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "DOCASSIST_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "DOCASSIST_PAGINATION_MAX_PAGE_SIZE",
}

var authEnv = &middleware.AuthEnv{
	Enabled:  "DOCASSIST_AUTH_ENABLED",
	Issuer:   "DOCASSIST_AUTH_ISSUER",
	ClientID: "DOCASSIST_AUTH_CLIENT_ID",
	JWKSURL:  "DOCASSIST_AUTH_JWKS_URL",
}

// APIConfig holds API routing, upload limits, CORS, pagination, and
// authentication settings.
type APIConfig struct {
	BasePath      string                `toml:"base_path"`
	MaxUploadSize string                `toml:"max_upload_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
	Pagination    pagination.Config     `toml:"pagination"`
	Auth          middleware.AuthConfig `toml:"auth"`
}

// MaxUploadSizeBytes returns MaxUploadSize in bytes.
func (c *APIConfig) MaxUploadSizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxUploadSize)
	if err != nil {
		return 10 * 1024 * 1024
	}
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	if err := c.Auth.Finalize(authEnv); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxUploadSize != "" {
		c.MaxUploadSize = overlay.MaxUploadSize
	}

	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
	c.Auth.Merge(&overlay.Auth)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "10MB"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv("DOCASSIST_API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("DOCASSIST_API_MAX_UPLOAD_SIZE"); v != "" {
		c.MaxUploadSize = v
	}
}

func (c *APIConfig) validate() error {
	size, err := formatting.ParseBytes(c.MaxUploadSize)
	if err != nil {
		return fmt.Errorf("invalid max_upload_size: %w", err)
	}
	if size <= 0 {
		return fmt.Errorf("max_upload_size must be positive")
	}
	return nil
}
