// Package cli provides the synchronoux command line interface.
package cli

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/synchronoux/internal/adapters/driven/config/file"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driving"
	"github.com/custodia-labs/synchronoux/internal/logger"
)

var (
	configPath string
	verbose    bool
	logJSON    bool
)

// Services used by the commands. They are built from the configuration the
// first time a command needs them, or injected by tests.
var (
	appConfig        *file.Config
	syncOrchestrator driving.SyncOrchestrator
	historyService   driving.HistoryService
	scheduler        driving.Scheduler
	closeApp         func() error
)

// bootstrap builds the services from the loaded configuration.
var bootstrap = func(ctx context.Context, cfg *file.Config, dir string) (*App, error) {
	return Build(ctx, cfg, dir, newEventPrinter(rootCmd.ErrOrStderr()))
}

var rootCmd = &cobra.Command{
	Use:   "synchronoux",
	Short: "Bidirectional record sync through a middle store",
	Long: `synchronoux moves records between a local database and a shared middle
store (GCS, S3, MinIO or a directory). One side pushes numbered batch files
followed by a terminator; the other waits for the terminator, downloads the
batches and writes them locally.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
		logger.SetJSON(logJSON)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default ~/.synchronoux/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "write logs as JSON lines")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	defer func() {
		if closeApp != nil {
			if err := closeApp(); err != nil {
				logger.Warn("closing stores: %v", err)
			}
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}

// resolvedConfigPath returns --config or the default location.
func resolvedConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	dir, err := file.DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, file.FileName), nil
}

// loadConfig reads and validates the configuration once.
func loadConfig() (*file.Config, error) {
	if appConfig != nil {
		return appConfig, nil
	}
	path, err := resolvedConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := file.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	appConfig = cfg
	return cfg, nil
}

// ensureServices builds the services unless they are already set.
func ensureServices(ctx context.Context) error {
	if syncOrchestrator != nil {
		return nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path, err := resolvedConfigPath()
	if err != nil {
		return err
	}
	app, err := bootstrap(ctx, cfg, filepath.Dir(path))
	if err != nil {
		return err
	}
	if app == nil || app.Sync == nil {
		return errors.New("sync service not configured")
	}
	syncOrchestrator = app.Sync
	historyService = app.History
	scheduler = app.Scheduler
	closeApp = app.Close
	return nil
}
