package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Errorf("PollInterval = %v, want 2s", cfg.PollInterval)
	}
	if cfg.Subscriptions.ActivityHistory != 1 {
		t.Errorf("ActivityHistory = %d, want 1", cfg.Subscriptions.ActivityHistory)
	}
	if cfg.API.GraphQLURL != "http://localhost:8000/graphql" || cfg.API.WSURL != "ws://localhost:8000/graphql" {
		t.Errorf("derived urls = %q %q", cfg.API.GraphQLURL, cfg.API.WSURL)
	}
}

func TestLoad_OverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratchetwatch.yaml")
	data := `
api:
  url: https://projects.example.com/
poll_interval: 5s
subscriptions:
  activity_history: 10
log:
  encoding: json
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Resolve()
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
	if cfg.Subscriptions.ActivityHistory != 10 || cfg.Subscriptions.MetricsIntervalSeconds != 5 {
		t.Errorf("subscriptions = %+v", cfg.Subscriptions)
	}
	if cfg.API.WSURL != "wss://projects.example.com/graphql" {
		t.Errorf("WSURL = %q", cfg.API.WSURL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.URL = ""
	cfg.PollInterval = 0
	cfg.Selector.PageSize = -1
	cfg.Log.Encoding = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"api.url", "poll_interval", "selector.page_size", "log.encoding"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestApplyOverrides_Env(t *testing.T) {
	t.Setenv("RATCHETWATCH_API_URL", "http://override:9000")
	t.Setenv("RATCHETWATCH_POLL_INTERVAL", "750ms")

	cfg := DefaultConfig()
	ApplyOverrides(cfg, NewViper())
	if cfg.API.URL != "http://override:9000" {
		t.Errorf("API.URL = %q", cfg.API.URL)
	}
	if cfg.PollInterval != 750*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
	if cfg.Selector.PageSize != 20 {
		t.Errorf("PageSize changed without override: %d", cfg.Selector.PageSize)
	}
}

func TestApplyOverrides_EveryTunable(t *testing.T) {
	t.Setenv("RATCHETWATCH_API_TIMEOUT", "3s")
	t.Setenv("RATCHETWATCH_SESSION_PATH", "/tmp/rw/session.db")
	t.Setenv("RATCHETWATCH_SUBSCRIPTIONS_METRICS_INTERVAL_SECONDS", "9")
	t.Setenv("RATCHETWATCH_SUBSCRIPTIONS_ACTIVITY_HISTORY", "4")
	t.Setenv("RATCHETWATCH_SUBSCRIPTIONS_INITIAL_BACKOFF", "250ms")
	t.Setenv("RATCHETWATCH_SUBSCRIPTIONS_MAX_BACKOFF", "1m")
	t.Setenv("RATCHETWATCH_SELECTOR_PAGE_SIZE", "50")

	cfg := DefaultConfig()
	ApplyOverrides(cfg, NewViper())
	if cfg.API.Timeout != 3*time.Second || cfg.Session.Path != "/tmp/rw/session.db" {
		t.Errorf("api/session = %+v %+v", cfg.API, cfg.Session)
	}
	want := SubscriptionConfig{
		MetricsIntervalSeconds: 9,
		ActivityHistory:        4,
		InitialBackoff:         250 * time.Millisecond,
		MaxBackoff:             time.Minute,
	}
	if cfg.Subscriptions != want {
		t.Errorf("subscriptions = %+v, want %+v", cfg.Subscriptions, want)
	}
	if cfg.Selector.PageSize != 50 {
		t.Errorf("PageSize = %d", cfg.Selector.PageSize)
	}
}
