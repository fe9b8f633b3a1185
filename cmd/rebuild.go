package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/GengGao/hackathon-agent/internal/app"
	"github.com/GengGao/hackathon-agent/internal/config"
	"github.com/GengGao/hackathon-agent/internal/log"
)

var rebuildSession string

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Force a rebuild of the retrieval index and print its status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRebuild(cmd.Context(), rebuildSession)
	},
}

func init() {
	rebuildCmd.Flags().StringVar(&rebuildSession, "session", "", "session id to scope the rebuild (empty = global)")
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(ctx context.Context, sessionID string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	level := slog.LevelWarn
	if debugLogging {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	a.Engine.SetSession(sessionID)
	if _, err := a.Engine.Rebuild(ctx, true); err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a.Engine.Status()); err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	return nil
}
