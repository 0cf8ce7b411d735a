package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/maltedev/ltb-sync/internal/api"
	"github.com/maltedev/ltb-sync/internal/bootstrap"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the outbox relay and the optional scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(true)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			relay, redisClient, err := a.newRelay(ctx)
			if err != nil {
				return err
			}
			if relay != nil {
				defer redisClient.Close()
				go func() {
					if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
						logger.Error("relay stopped with error", "error", err)
					}
				}()
			} else {
				logger.Info("redis not configured, outbox events stay in the database")
			}

			if cfg.Sync.Interval > 0 {
				go a.sync.StartScheduler(ctx, cfg.Sync.Interval)
			}

			handlers := api.NewHandlers(a.sync, a.bootstrap, a, logger)
			server := &http.Server{
				Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
				Handler: api.NewRouter(handlers, api.RouterOptions{AllowedOrigins: cfg.Server.AllowedOrigins}),
			}

			go func() {
				<-ctx.Done()
				logger.Info("shutting down server...")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					logger.Error("server shutdown failed", "error", err)
				}
			}()

			logger.Info("server starting", "port", cfg.Server.Port)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			logger.Info("server stopped")
			return nil
		},
	}
}

func newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one batch sync and print the result as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(false)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.sync.Run(cmd.Context())
			if err != nil {
				if result != nil {
					_ = printJSON(result)
				}
				return err
			}
			return printJSON(result)
		},
	}
}

func newParseCommand() *cobra.Command {
	var tabID string

	cmd := &cobra.Command{
		Use:   "parse <url>",
		Short: "Extract one product page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(false)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := a.bootstrap.Extract(cmd.Context(), bootstrap.Request{URL: args[0], TabID: tabID})
			if err != nil {
				return err
			}
			return printJSON(bootstrap.NewProduct(data))
		},
	}

	cmd.Flags().StringVar(&tabID, "tab-id", "", "destination category; enables photo copying")
	return cmd
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
