package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/maltedev/ltb-sync/internal/config"
)

// envFiles are loaded in order; values already set are never overridden.
var envFiles = []string{".env.local", ".env"}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "ltb-sync",
		Short: "Reconcile the inventory with the ltb.ge catalog",
		Long: `ltb-sync refreshes prices and availability of inventory items from the
ltb.ge catalog and extracts new items from single product pages.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			loadEnvFiles()
		},
	}

	root.AddCommand(newServeCommand())
	root.AddCommand(newSyncCommand())
	root.AddCommand(newParseCommand())
	return root
}

func loadEnvFiles() {
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}
}

// loadConfig reads the configuration and builds the logger. JSON output is
// used for the long-running server, text for one-shot commands.
func loadConfig(jsonLogs bool) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	opts := &slog.HandlerOptions{Level: cfg.Logging.SlogLevel()}
	var handler slog.Handler
	if jsonLogs {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
