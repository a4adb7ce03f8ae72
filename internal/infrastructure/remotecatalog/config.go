package remotecatalog

import (
	"errors"
	"strings"
	"time"
)

const (
	// DefaultRequestTimeout bounds every single remote call
	DefaultRequestTimeout = 30 * time.Second
	// DefaultVariationPageSize is the page size used for variation listings
	DefaultVariationPageSize = 100
)

// ErrConfigMissingBaseURL indicates the remote API endpoint is not configured
var ErrConfigMissingBaseURL = errors.New("remotecatalog: base URL is required")

// Config holds the remote catalog API settings
type Config struct {
	// BaseURL is the REST root, e.g. https://shop.example.com/wp-json/wc/v3
	BaseURL string
	// ConsumerKey and ConsumerSecret are the API credentials
	ConsumerKey    string
	ConsumerSecret string
	// RequestTimeout bounds each HTTP request
	RequestTimeout time.Duration
	// VariationPageSize is the per_page value for variation listings
	VariationPageSize int
	// UserAgent is sent with every request
	UserAgent string
}

// NewConfig creates a configuration with defaults
func NewConfig(baseURL, consumerKey, consumerSecret string) *Config {
	return &Config{
		BaseURL:           baseURL,
		ConsumerKey:       consumerKey,
		ConsumerSecret:    consumerSecret,
		RequestTimeout:    DefaultRequestTimeout,
		VariationPageSize: DefaultVariationPageSize,
		UserAgent:         "catalogsync/1.0",
	}
}

// Validate validates the configuration and fills defaults.
// Missing credentials are not a configuration error; they fail the run instead.
func (c *Config) Validate() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.VariationPageSize <= 0 || c.VariationPageSize > 100 {
		c.VariationPageSize = DefaultVariationPageSize
	}
	return nil
}

// HasCredentials returns true when both key and secret are set
func (c *Config) HasCredentials() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != ""
}
