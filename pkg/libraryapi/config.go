// Package libraryapi is the HTTP client adapter for the library REST backend.
// Every request carries the stored session token; every 401 response clears
// the stored credentials before the error reaches the caller.
package libraryapi

import (
	"strings"
	"time"
)

// Default client settings.
const (
	DefaultBaseURL    = "http://localhost:8000/api/"
	DefaultAuthScheme = "Token"
	DefaultTimeout    = 10 * time.Second
)

// Config holds all configuration for the library API client.
type Config struct {
	// BaseURL is the API root; endpoint paths are resolved relative to it.
	BaseURL string

	// AuthScheme prefixes the token in the Authorization header
	// ("Token" for DRF token auth, "Bearer" for JWT backends).
	AuthScheme string

	// Timeout is the HTTP client timeout for each request.
	Timeout time.Duration

	// UserAgent is sent with every request when set.
	UserAgent string
}

// DefaultConfig returns a Config pointing at a local development backend.
func DefaultConfig() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		AuthScheme: DefaultAuthScheme,
		Timeout:    DefaultTimeout,
		UserAgent:  "libra",
	}
}

// WithBaseURL returns a copy of the config with the specified base URL.
func (c Config) WithBaseURL(baseURL string) Config {
	c.BaseURL = baseURL
	return c
}

// WithTimeout returns a copy of the config with the specified timeout.
func (c Config) WithTimeout(timeout time.Duration) Config {
	c.Timeout = timeout
	return c
}

// WithAuthScheme returns a copy of the config with the specified scheme.
func (c Config) WithAuthScheme(scheme string) Config {
	c.AuthScheme = scheme
	return c
}

// endpoint joins the base URL and a relative API path.
func (c Config) endpoint(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
