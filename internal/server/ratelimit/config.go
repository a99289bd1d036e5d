package ratelimit

import (
	"time"

	"github.com/roshankumar101/Portal-sub001/internal/config"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern (supports prefix matching)
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// FromConfig builds the limiter configuration from the ratelimit settings.
func FromConfig(cfg config.RateLimitConfig) *Config {
	if !cfg.Enabled {
		return &Config{Enabled: false}
	}
	return &Config{
		Enabled:         true,
		DefaultLimit:    cfg.RequestsPerMinute,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		Whitelist:       make(map[string]bool),
		Blacklist:       make(map[string]bool),
		EndpointConfigs: DefaultEndpointConfigs(cfg.AuthRequestsPerMinute),
	}
}

// DefaultEndpointConfigs returns the endpoint-specific limits. authPerMinute applies
// to every credential endpoint.
func DefaultEndpointConfigs(authPerMinute int) []EndpointConfig {
	burst := max(authPerMinute/2, 1)
	return []EndpointConfig{
		// Credential endpoints (strictest limits)
		{Path: "/auth/login", Method: "POST", Limit: authPerMinute, Window: time.Minute, Burst: burst},
		{Path: "/auth/register", Method: "POST", Limit: authPerMinute, Window: time.Minute, Burst: burst},
		{Path: "/auth/password-reset", Method: "POST", Limit: authPerMinute, Window: time.Minute, Burst: burst},
		{Path: "/auth/password-reset/confirm", Method: "POST", Limit: authPerMinute, Window: time.Minute, Burst: burst},

		// Public email links
		{Path: "/unsubscribe", Method: "GET", Limit: 30, Window: time.Minute, Burst: 10},
		{Path: "/resubscribe", Method: "POST", Limit: 30, Window: time.Minute, Burst: 10},

		// Uploads and fan-out writes
		{Path: "/students/", Method: "POST", Limit: 60, Window: time.Minute, Burst: 20},
		{Path: "/jobs", Method: "POST", Limit: 20, Window: time.Minute, Burst: 5},
	}
}
