// Package config holds the environment-driven configuration for voxvid.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string `env:"VOXVID_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"VOXVID_PORT" envDefault:"5000"`
}

// TTSOpenAIConfig holds credentials and endpoint for the TTS provider.
type TTSOpenAIConfig struct {
	APIKey  string `env:"VOXVID_TTSOPENAI_API_KEY"`
	BaseURL string `env:"VOXVID_TTSOPENAI_BASE_URL" envDefault:"https://api.ttsopenai.com"`
}

// AkoolConfig holds credentials and endpoint for the video provider.
// Missing credentials do not prevent startup; token refresh then fails on
// every call and the operations that need it fail with an auth error.
type AkoolConfig struct {
	ClientID     string `env:"VOXVID_AKOOL_CLIENT_ID"`
	ClientSecret string `env:"VOXVID_AKOOL_CLIENT_SECRET"`
	BaseURL      string `env:"VOXVID_AKOOL_BASE_URL" envDefault:"https://openapi.akool.com"`
}

// StoreConfig locates the persistent job store.
type StoreConfig struct {
	Path string `env:"VOXVID_DB_PATH" envDefault:"voxvid.db"`
}

// RelayConfig tunes the pipeline itself.
type RelayConfig struct {
	// CallbackBaseURL is the externally reachable base URL the providers use
	// to deliver webhooks, e.g. https://relay.example.com
	CallbackBaseURL string `env:"VOXVID_CALLBACK_BASE_URL"`
	// JobTTL is how long an unmatched pending job may live before the
	// sweeper purges it.
	JobTTL time.Duration `env:"VOXVID_JOB_TTL" envDefault:"24h"`
	// SweepInterval is how often the orphan sweeper runs.
	SweepInterval time.Duration `env:"VOXVID_SWEEP_INTERVAL" envDefault:"1h"`
	// ProviderTimeout bounds every outbound provider call.
	ProviderTimeout time.Duration `env:"VOXVID_PROVIDER_TIMEOUT" envDefault:"30s"`
}

// RateLimitConfig tunes the per-endpoint request limiter.
type RateLimitConfig struct {
	GeneratePerMinute int `env:"VOXVID_GENERATE_PER_MINUTE" envDefault:"30"`
	GenerateBurst     int `env:"VOXVID_GENERATE_BURST" envDefault:"10"`
}

type Config struct {
	Server    ServerConfig
	TTSOpenAI TTSOpenAIConfig
	Akool     AkoolConfig
	Store     StoreConfig
	Relay     RelayConfig
	RateLimit RateLimitConfig
	LogLevel  string `env:"VOXVID_LOG_LEVEL" envDefault:"info"`
	LogFile   string `env:"VOXVID_LOG_FILE"`
}

// Load reads configuration from the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields the relay cannot run without. Provider
// credentials are deliberately not required here: their absence degrades the
// corresponding provider calls, not the process.
func (c *Config) Validate() error {
	var missing []string
	if c.Relay.CallbackBaseURL == "" {
		missing = append(missing, "VOXVID_CALLBACK_BASE_URL")
	}
	if c.Store.Path == "" {
		missing = append(missing, "VOXVID_DB_PATH")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	c.Relay.CallbackBaseURL = strings.TrimRight(c.Relay.CallbackBaseURL, "/")
	c.TTSOpenAI.BaseURL = strings.TrimRight(c.TTSOpenAI.BaseURL, "/")
	c.Akool.BaseURL = strings.TrimRight(c.Akool.BaseURL, "/")
	return nil
}

// TTSWebhookURL is the callback handed to the TTS provider.
func (c *Config) TTSWebhookURL() string {
	return c.Relay.CallbackBaseURL + "/api/tts-webhook"
}

// VideoWebhookURL is the callback handed to the video provider, carrying the
// pending job id so the completion can be correlated without guessing.
func (c *Config) VideoWebhookURL(jobID string) string {
	return c.Relay.CallbackBaseURL + "/api/akool-webhook?job=" + jobID
}
