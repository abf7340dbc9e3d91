package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GoCodeAlone/ratchetwatch/graphql"
	"github.com/GoCodeAlone/ratchetwatch/internal/logging"
	"github.com/GoCodeAlone/ratchetwatch/internal/version"
	"github.com/GoCodeAlone/ratchetwatch/notify"
	"github.com/GoCodeAlone/ratchetwatch/projectapi"
	"github.com/GoCodeAlone/ratchetwatch/selector"
	"github.com/GoCodeAlone/ratchetwatch/tui"
	"github.com/GoCodeAlone/ratchetwatch/update"
	"github.com/GoCodeAlone/ratchetwatch/watch"
)

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [project-id]",
		Short: "Open the live view, optionally on a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			toks, store, err := tokens(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			gql := graphql.NewClient(cfg.API.GraphQLURL, toks, cfg.API.Timeout)
			gql.UserAgent = version.UserAgent()
			ws, err := graphql.NewWSClient(cfg.API.WSURL, toks, logger.Named("ws"))
			if err != nil {
				return err
			}
			ws.UserAgent = version.UserAgent()
			api := projectapi.New(cfg.API.URL, toks, cfg.API.Timeout)

			notifier := notify.New(api, logger.Named("notify"))
			defer notifier.Wait()

			engine := watch.New(watch.Config{
				PollInterval:           cfg.PollInterval,
				MetricsIntervalSeconds: cfg.Subscriptions.MetricsIntervalSeconds,
				ActivityHistory:        cfg.Subscriptions.ActivityHistory,
				ReconnectInitial:       cfg.Subscriptions.InitialBackoff,
				MaxBackoff:             cfg.Subscriptions.MaxBackoff,
			}, gql, ws, notifier, logger.Named("engine"))
			sel := selector.New(api, engine, cfg.Selector.PageSize)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			logger.Info("starting",
				zap.String("version", version.Version),
				zap.String("api", cfg.API.URL),
			)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return engine.Run(gctx) })

			if len(args) == 1 {
				if err := sel.Choose(gctx, args[0]); err != nil {
					cancel()
					_ = g.Wait()
					return err
				}
			}

			model := tui.New(gctx, engine, sel)
			prog := tea.NewProgram(model, tea.WithAltScreen())
			g.Go(func() error {
				<-gctx.Done()
				prog.Quit()
				return nil
			})

			_, runErr := prog.Run()
			model.Close()
			cancel()
			if err := g.Wait(); err != nil {
				logger.Error("engine stopped with error", zap.Error(err))
			}
			logger.Info("stopped")
			return runErr
		},
	}
}

func (a *app) projectsCmd() *cobra.Command {
	var (
		search string
		page   int
	)
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			toks, store, err := tokens(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			sel := selector.New(projectapi.New(cfg.API.URL, toks, cfg.API.Timeout), nil, cfg.Selector.PageSize)
			res, err := sel.Search(cmd.Context(), search, page)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(res.Items) == 0 {
				fmt.Fprintln(out, "no projects")
				return nil
			}
			fmt.Fprintf(out, "%-36s %-30s %-10s %s\n", "ID", "NAME", "STATUS", "TASKS")
			fmt.Fprintln(out, strings.Repeat("-", 88))
			for _, p := range res.Items {
				fmt.Fprintf(out, "%-36s %-30s %-10s %d/%d\n",
					p.ID, truncate(p.Name, 29), p.Status, p.CompletedTasks, p.TotalTasks)
			}
			fmt.Fprintf(out, "page %d of %d (%d projects)\n", res.Page, res.Pages(), res.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "filter by name")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	return cmd
}

func (a *app) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login --token <token>",
		Short: "Store a bearer token for later sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			token := strings.TrimSpace(cfg.API.Token)
			if token == "" {
				return fmt.Errorf("--token is required")
			}
			_, store, err := tokens(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.SaveToken(cmd.Context(), token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "token saved to %s\n", cfg.Session.Path)
			return nil
		},
	}
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			_, store, err := tokens(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.ClearToken(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, version.String())
			if !check {
				return nil
			}
			rel, err := update.NewChecker(version.Version).Latest(cmd.Context())
			if err != nil {
				return err
			}
			if !rel.Newer {
				fmt.Fprintln(out, "up to date")
				return nil
			}
			fmt.Fprintf(out, "newer release available: %s\n", rel.Tag)
			if rel.AssetURL != "" {
				fmt.Fprintf(out, "download: %s\n", rel.AssetURL)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "check GitHub for a newer release")
	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
