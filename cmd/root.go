// Package cmd defines the sitegen command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zdub15/agent-website-generator/internal/app"
	"github.com/zdub15/agent-website-generator/internal/config"
	"github.com/zdub15/agent-website-generator/internal/logging"
	"github.com/zdub15/agent-website-generator/internal/normalize"
	"github.com/zdub15/agent-website-generator/internal/profile"
	"github.com/zdub15/agent-website-generator/internal/site"
)

var cfgFile string

type appKeyType string

const appKey appKeyType = "app"

// App is the slice of the service graph the commands use. Tests inject a mock.
type App interface {
	Close()
	Logger() *zap.Logger
	Profiles() site.ProfileResolver
	Headshots() profile.HeadshotStore
	Normalizer() normalize.Normalizer
	Serve(ctx context.Context) error
}

// newApp is the application factory, replaced in tests.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitegen",
		Short: "Builds agent websites from public profile pages.",
		Long: `sitegen scrapes an insurance agent's public profile page, recovers a
structured profile and a normalized headshot, and serves an API that turns
the profile into a standalone marketing site.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
				_ = appInstance.Logger().Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	cmd.AddCommand(newServeCmd(), newResolveCmd(), newNormalizeCmd())
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	root := newRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
