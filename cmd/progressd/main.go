// Package main is the entry point of the roadmap progress service.
//
// progressd records completed roadmap nodes, keeps each user's XP, level
// and streak, and unlocks achievements. Subcommands:
//
//	progressd serve             run the HTTP API
//	progressd migrate up        apply pending schema migrations
//	progressd migrate down      roll back the last migration
//	progressd migrate status    list migrations
//	progressd catalog validate  check a roadmap catalog file
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pixelcoders/roadmap-progress/config"
	"github.com/pixelcoders/roadmap-progress/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "progressd",
		Short:         "Roadmap progress and gamification service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadEnvFile(envFile, cmd.Flags().Changed("env-file"))
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "file with environment variables to load before reading config")

	root.AddCommand(newServeCmd(), newMigrateCmd(), newCatalogCmd())
	return root
}

// loadEnvFile populates unset variables from path. A missing default file
// is fine; a missing file the operator asked for is not.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil || (!explicit && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", path, err)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupSlog configures the process logger used during bootstrap and by the
// event bus.
func setupSlog(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	switch logger.ParseLevel(cfg.Logging.Level) {
	case logger.LevelDebug:
		opts.Level = slog.LevelDebug
	case logger.LevelWarn:
		opts.Level = slog.LevelWarn
	case logger.LevelError, logger.LevelFatal:
		opts.Level = slog.LevelError
	}

	if logger.ParseFormat(cfg.Logging.Format) == logger.FormatText {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler).With("service", cfg.App.Name)
	slog.SetDefault(log)

	return log
}

// newAppLogger builds the request-scoped logger used by handlers and commands.
func newAppLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Logging.Level),
		Format: logger.ParseFormat(cfg.Logging.Format),
	}).With(
		logger.String("service", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)
}
