package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/wigle-openroaming/internal/app"
	"github.com/JakeFAU/wigle-openroaming/internal/config"
	"github.com/JakeFAU/wigle-openroaming/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands use.
type App interface {
	Close()
	GetConfig() config.Config
	GetLogger() *zap.Logger
	GetFetcher() app.Runner
	GetArchiver() app.Archiver
}

// newApp is the application factory. Tests replace it with a fake.
var newApp = func(ctx context.Context, cfgPath string) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	opts := &fetchOptions{}

	cmd := &cobra.Command{
		Use:   "wigle-fetch",
		Short: "Fetch OpenRoaming access points from the WiGLE search API",
		Long: `wigle-fetch reads one bounding box from a coordinates file, pages through
the WiGLE network search results for it and appends every network advertising
an OpenRoaming consortium identifier to a timestamped CSV file.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		Args: cobra.NoArgs,

		// Input is checked before any backend is built.
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := cmd.ValidateRequiredFlags(); err != nil {
				return err
			}
			if err := opts.validate(); err != nil {
				return err
			}
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		RunE: func(cmd *cobra.Command, _ []string) error {
			defer closeApp(cmd.Context())
			return runFetch(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	opts.bind(cmd)

	return cmd
}

// closeApp shuts down the App stored in ctx, if any.
func closeApp(ctx context.Context) {
	if appInstance, ok := ctx.Value(appKey).(App); ok && appInstance != nil {
		appInstance.Close()
	}
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := executeRoot(ctx, newRootCmd())
	stop()
	if code != 0 {
		os.Exit(code)
	}
}

// executeRoot runs root and reports a terminal error on its output stream,
// returning the process exit code.
func executeRoot(ctx context.Context, root *cobra.Command) int {
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.OutOrStdout(), "wigle-fetch:", err)
		return 1
	}
	return 0
}
