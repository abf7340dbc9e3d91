package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/GoCodeAlone/ratchetwatch/config"
	"github.com/GoCodeAlone/ratchetwatch/session"
)

// app carries what every subcommand needs after flags are parsed.
type app struct {
	v          *viper.Viper
	configPath string
}

func newRoot() *cobra.Command {
	a := &app{v: config.NewViper()}

	root := &cobra.Command{
		Use:           "ratchetwatch",
		Short:         "Live terminal view of Ratchet projects",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "path to config file (default $XDG_CONFIG_HOME/ratchetwatch/config.yaml)")
	pf.String("api-url", "", "backend base URL")
	pf.String("graphql-url", "", "GraphQL endpoint (default <api-url>/graphql)")
	pf.String("ws-url", "", "GraphQL subscription endpoint (default derived from graphql-url)")
	pf.String("token", "", "bearer token, overrides the stored session")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-file", "", "log file path, or stderr")
	for key, flag := range map[string]string{
		"api.url":         "api-url",
		"api.graphql_url": "graphql-url",
		"api.ws_url":      "ws-url",
		"api.token":       "token",
		"log.level":       "log-level",
		"log.path":        "log-file",
	} {
		_ = a.v.BindPFlag(key, pf.Lookup(flag))
	}

	watch := a.watchCmd()
	root.Args = watch.Args
	root.RunE = watch.RunE

	root.AddCommand(
		watch,
		a.projectsCmd(),
		a.loginCmd(),
		a.logoutCmd(),
		versionCmd(),
	)
	return root
}

// loadConfig reads the config file, applies flag and environment overrides
// and validates the result. Without --config the default location is used
// when it exists.
func (a *app) loadConfig() (*config.Config, error) {
	path := a.configPath
	if path == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			candidate := filepath.Join(dir, "ratchetwatch", "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
			} else if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("stat config: %w", err)
			}
		}
	}

	cfg := config.DefaultConfig()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	config.ApplyOverrides(cfg, a.v)
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// tokens returns the token chain: explicit token first, then the stored
// session. The caller closes the store.
func tokens(cfg *config.Config) (session.TokenSource, *session.SQLiteStore, error) {
	store, err := session.NewSQLiteStore(cfg.Session.Path)
	if err != nil {
		return nil, nil, err
	}
	return session.Chain{session.Static(cfg.API.Token), store}, store, nil
}
