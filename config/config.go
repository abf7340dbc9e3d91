// Package config defines the ratchetwatch client configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level ratchetwatch configuration.
type Config struct {
	API           APIConfig          `json:"api" yaml:"api"`
	PollInterval  time.Duration      `json:"poll_interval" yaml:"poll_interval"`
	Subscriptions SubscriptionConfig `json:"subscriptions" yaml:"subscriptions"`
	Selector      SelectorConfig     `json:"selector" yaml:"selector"`
	Session       SessionConfig      `json:"session" yaml:"session"`
	Log           LogConfig          `json:"log" yaml:"log"`
}

// APIConfig locates the backend. GraphQLURL and WSURL are derived from URL
// when left empty.
type APIConfig struct {
	URL        string        `json:"url" yaml:"url"`
	GraphQLURL string        `json:"graphql_url" yaml:"graphql_url"`
	WSURL      string        `json:"ws_url" yaml:"ws_url"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
	Token      string        `json:"-" yaml:"token"` // overrides the stored session token
}

// SubscriptionConfig controls the push feeds.
type SubscriptionConfig struct {
	MetricsIntervalSeconds int           `json:"metrics_interval_seconds" yaml:"metrics_interval_seconds"`
	ActivityHistory        int           `json:"activity_history" yaml:"activity_history"` // agent activity ring size
	InitialBackoff         time.Duration `json:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff             time.Duration `json:"max_backoff" yaml:"max_backoff"`
}

// SelectorConfig controls the project picker.
type SelectorConfig struct {
	PageSize int `json:"page_size" yaml:"page_size"`
}

// SessionConfig locates the local token store.
type SessionConfig struct {
	Path string `json:"path" yaml:"path"`
}

// LogConfig controls the zap logger. The TUI owns stdout, so logs go to a
// file by default.
type LogConfig struct {
	Level    string `json:"level" yaml:"level"`
	Encoding string `json:"encoding" yaml:"encoding"` // "console" or "json"
	Path     string `json:"path" yaml:"path"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			URL:     "http://localhost:8000",
			Timeout: 15 * time.Second,
		},
		PollInterval: 2 * time.Second,
		Subscriptions: SubscriptionConfig{
			MetricsIntervalSeconds: 5,
			ActivityHistory:        1,
			InitialBackoff:         500 * time.Millisecond,
			MaxBackoff:             30 * time.Second,
		},
		Selector: SelectorConfig{PageSize: 20},
		Session:  SessionConfig{Path: filepath.Join(userDir(os.UserConfigDir), "ratchetwatch", "session.db")},
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
			Path:     filepath.Join(userDir(os.UserCacheDir), "ratchetwatch", "ratchetwatch.log"),
		},
	}
}

func userDir(fn func() (string, error)) string {
	dir, err := fn()
	if err != nil || dir == "" {
		return "."
	}
	return dir
}

// Load reads a YAML config file and returns the parsed configuration laid
// over DefaultConfig.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve fills the derived endpoints: GraphQLURL defaults to URL+"/graphql"
// and WSURL to GraphQLURL with a ws scheme.
func (c *Config) Resolve() {
	c.API.URL = strings.TrimRight(c.API.URL, "/")
	if c.API.GraphQLURL == "" && c.API.URL != "" {
		c.API.GraphQLURL = c.API.URL + "/graphql"
	}
	if c.API.WSURL == "" && c.API.GraphQLURL != "" {
		switch {
		case strings.HasPrefix(c.API.GraphQLURL, "https://"):
			c.API.WSURL = "wss://" + strings.TrimPrefix(c.API.GraphQLURL, "https://")
		case strings.HasPrefix(c.API.GraphQLURL, "http://"):
			c.API.WSURL = "ws://" + strings.TrimPrefix(c.API.GraphQLURL, "http://")
		default:
			c.API.WSURL = c.API.GraphQLURL
		}
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	for name, raw := range map[string]string{
		"api.url":         c.API.URL,
		"api.graphql_url": c.API.GraphQLURL,
		"api.ws_url":      c.API.WSURL,
	} {
		if raw == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
			continue
		}
		if _, err := url.ParseRequestURI(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll_interval must be positive"))
	}
	if c.Subscriptions.MetricsIntervalSeconds <= 0 {
		errs = append(errs, errors.New("subscriptions.metrics_interval_seconds must be positive"))
	}
	if c.Subscriptions.ActivityHistory <= 0 {
		errs = append(errs, errors.New("subscriptions.activity_history must be positive"))
	}
	if c.Subscriptions.MaxBackoff <= 0 {
		errs = append(errs, errors.New("subscriptions.max_backoff must be positive"))
	}
	if c.Selector.PageSize <= 0 {
		errs = append(errs, errors.New("selector.page_size must be positive"))
	}
	if c.Session.Path == "" {
		errs = append(errs, errors.New("session.path is required"))
	}
	switch c.Log.Encoding {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.encoding %q: want console or json", c.Log.Encoding))
	}
	return errors.Join(errs...)
}
