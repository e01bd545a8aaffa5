package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/careloop/careloop/internal/config"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a single reconciliation pass and print a summary",
	RunE:  runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	service, notifier, pool, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	// Best effort: without the notification backend the pass still runs,
	// just without invitations attached.
	if err := notifier.Warm(ctx); err != nil {
		slog.Warn("notification backend unavailable, skipping invitations", "error", err)
	}

	if err := service.Refresh(ctx, true); err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	teams := service.Teams()
	patients := service.Patients()
	flagged := service.FlaggedPatients()

	pending := 0
	for _, t := range teams {
		for _, m := range t.Members {
			if m.Invitation != nil {
				pending++
			}
		}
	}

	fmt.Printf("=== Reconciliation Summary ===\n")
	fmt.Printf("User:                %s\n", cfg.Session.UserID)
	fmt.Printf("Teams:               %d (private included)\n", len(teams))
	fmt.Printf("Patients:            %d\n", len(patients))
	fmt.Printf("Flagged patients:    %d\n", len(flagged))
	fmt.Printf("Pending invitations: %d\n", pending)
	for _, t := range teams {
		fmt.Printf("  - %-20s %-8s members=%d\n", t.Name, t.Type, len(t.Members))
	}

	return nil
}
