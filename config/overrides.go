package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. RATCHETWATCH_API_URL.
const EnvPrefix = "RATCHETWATCH"

// NewViper returns a viper instance reading RATCHETWATCH_* variables, with
// dotted keys mapped to underscores.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ApplyOverrides lays values set through v (bound flags or environment)
// over cfg. Keys use the YAML paths, e.g. "api.url".
func ApplyOverrides(cfg *Config, v *viper.Viper) {
	str := func(key string, dst *string) {
		if s := v.GetString(key); v.IsSet(key) && s != "" {
			*dst = s
		}
	}
	str("api.url", &cfg.API.URL)
	str("api.graphql_url", &cfg.API.GraphQLURL)
	str("api.ws_url", &cfg.API.WSURL)
	str("api.token", &cfg.API.Token)
	str("session.path", &cfg.Session.Path)
	str("log.level", &cfg.Log.Level)
	str("log.encoding", &cfg.Log.Encoding)
	str("log.path", &cfg.Log.Path)

	dur := func(key string, dst *time.Duration) {
		if d := v.GetDuration(key); v.IsSet(key) && d > 0 {
			*dst = d
		}
	}
	dur("api.timeout", &cfg.API.Timeout)
	dur("poll_interval", &cfg.PollInterval)
	dur("subscriptions.initial_backoff", &cfg.Subscriptions.InitialBackoff)
	dur("subscriptions.max_backoff", &cfg.Subscriptions.MaxBackoff)

	num := func(key string, dst *int) {
		if n := v.GetInt(key); v.IsSet(key) && n > 0 {
			*dst = n
		}
	}
	num("subscriptions.metrics_interval_seconds", &cfg.Subscriptions.MetricsIntervalSeconds)
	num("subscriptions.activity_history", &cfg.Subscriptions.ActivityHistory)
	num("selector.page_size", &cfg.Selector.PageSize)
}
