// Package config loads runtime settings from the environment. A .env file
// in the working directory is read first if present; every variable is
// prefixed with NAV_.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable name.
const Prefix = "NAV"

// Config holds all settings for the navigation companion.
type Config struct {
	// Backend API. An empty base URL disables remote synthesis and the
	// guidance pollers; speech then goes straight to the local synthesizer.
	APIBaseURL string `envconfig:"API_BASE_URL" default:""`
	APIPrefix  string `envconfig:"API_PREFIX" default:"/api"`
	Room       string `envconfig:"ROOM" default:"default"`

	// Speech pipeline
	FetchTimeout    time.Duration `envconfig:"FETCH_TIMEOUT" default:"10s"`
	DedupeWindow    time.Duration `envconfig:"DEDUPE_WINDOW" default:"5s"`
	PollInterval    time.Duration `envconfig:"PLAYBACK_POLL_INTERVAL" default:"20ms"`
	ClipDir         string        `envconfig:"CLIP_DIR" default:""` // empty = OS temp dir
	SampleRate      int           `envconfig:"SAMPLE_RATE" default:"24000"`
	LocalTTSCommand string        `envconfig:"LOCAL_TTS_COMMAND" default:""` // empty = espeak-ng / say
	NoSpeech        bool          `envconfig:"NO_SPEECH" default:"false"`

	// Guidance pollers
	DecisionInterval time.Duration `envconfig:"DECISION_INTERVAL" default:"1s"`
	RouteGuidance    bool          `envconfig:"ROUTE_GUIDANCE" default:"false"`
	RouteInterval    time.Duration `envconfig:"ROUTE_INTERVAL" default:"15s"`
	Latitude         float64       `envconfig:"LATITUDE" default:"0"`
	Longitude        float64       `envconfig:"LONGITUDE" default:"0"`
	TravelMode       string        `envconfig:"TRAVEL_MODE" default:"walking"`

	// Observability and history
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"` // off, info, debug
	LogFile        string `envconfig:"LOG_FILE" default:""`
	MetricsAddr    string `envconfig:"METRICS_ADDR" default:""` // e.g. :9464
	JournalPath    string `envconfig:"JOURNAL_PATH" default:""` // empty = in-memory
	JournalMaxRows int    `envconfig:"JOURNAL_MAX_ROWS" default:"5000"`
	HistoryLimit   int    `envconfig:"HISTORY_LIMIT" default:"50"`
}

// Load reads configuration from the environment. It first attempts to
// load a .env file, then processes NAV_* variables and validates them.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without reading a .env file.
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// RemoteEnabled reports whether a backend is configured.
func (c *Config) RemoteEnabled() bool {
	return c.APIBaseURL != ""
}

var travelModes = map[string]bool{
	"walking":   true,
	"driving":   true,
	"bicycling": true,
	"transit":   true,
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.APIBaseURL != "" {
		u, err := url.Parse(c.APIBaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s_API_BASE_URL must be an http(s) URL, got %q", Prefix, c.APIBaseURL))
		}
	}
	if c.Room == "" {
		errs = append(errs, fmt.Errorf("%s_ROOM must not be empty", Prefix))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s_FETCH_TIMEOUT must be positive", Prefix))
	}
	if c.DedupeWindow < 0 {
		errs = append(errs, fmt.Errorf("%s_DEDUPE_WINDOW must not be negative", Prefix))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s_PLAYBACK_POLL_INTERVAL must be positive", Prefix))
	}
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("%s_SAMPLE_RATE %d out of range", Prefix, c.SampleRate))
	}
	if c.DecisionInterval <= 0 || c.RouteInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s_DECISION_INTERVAL and %s_ROUTE_INTERVAL must be positive", Prefix, Prefix))
	}
	if c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
		errs = append(errs, fmt.Errorf("location (%g, %g) out of range", c.Latitude, c.Longitude))
	}
	if !travelModes[c.TravelMode] {
		errs = append(errs, fmt.Errorf("%s_TRAVEL_MODE %q not one of walking, driving, bicycling, transit", Prefix, c.TravelMode))
	}
	if c.HistoryLimit < 0 || c.JournalMaxRows < 0 {
		errs = append(errs, fmt.Errorf("%s_HISTORY_LIMIT and %s_JOURNAL_MAX_ROWS must not be negative", Prefix, Prefix))
	}
	return errors.Join(errs...)
}
