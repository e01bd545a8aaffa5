package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/careloop/careloop/internal/api"
	"github.com/careloop/careloop/internal/backend"
	"github.com/careloop/careloop/internal/config"
	"github.com/careloop/careloop/internal/metrics"
	"github.com/careloop/careloop/internal/notification"
	"github.com/careloop/careloop/internal/prefs"
	"github.com/careloop/careloop/internal/team"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the careloop reconciliation server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// buildService wires the backends, the preference store, and the
// orchestrator from configuration. The returned cleanup closes the
// database pool when one was opened.
func buildService(ctx context.Context, cfg *config.Config) (*team.Service, *notification.Client, *pgxpool.Pool, error) {
	teamClient := backend.NewTeamService(backend.Config{
		BaseURL:      cfg.Backend.TeamURL,
		SessionToken: cfg.Backend.SessionToken,
		UserID:       cfg.Session.UserID,
		Timeout:      cfg.Backend.Timeout,
	})
	notifier := notification.NewClient(notification.Config{
		BaseURL:      cfg.Backend.NotificationURL,
		SessionToken: cfg.Backend.SessionToken,
		UserID:       cfg.Session.UserID,
		Timeout:      cfg.Backend.Timeout,
	})

	var flagStore team.FlagStore
	var pool *pgxpool.Pool
	if cfg.Database.URL != "" {
		var err error
		pool, err = pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		slog.Info("connected to preference database")
		flagStore = prefs.NewStore(pool)
	} else {
		slog.Info("no database configured, keeping preferences in memory")
		flagStore = prefs.NewMemory()
	}

	session := team.Session{
		UserID:   cfg.Session.UserID,
		Username: cfg.Session.Username,
		Role:     team.UserRole(cfg.Session.Role),
	}
	return team.NewService(session, teamClient, notifier, flagStore), notifier, pool, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service, notifier, pool, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	m := metrics.New()
	service.SetMetrics(m)
	if pool != nil {
		m.RegisterDBPoolCollector(func() (total, idle, acquired int32) {
			stat := pool.Stat()
			return stat.TotalConns(), stat.IdleConns(), stat.AcquiredConns()
		})
	}

	// First pass: the server stays up even if the backends are down, the
	// graph is retried via the warm loop and POST /refresh.
	if err := service.Refresh(ctx, true); err != nil {
		slog.Error("initial reconciliation failed", "error", err)
	}

	// Warm the notification backend in the background. Once it answers,
	// one forced pass attaches the pending invitations.
	go func() {
		ticker := time.NewTicker(cfg.Refresh.WarmInterval)
		defer ticker.Stop()
		for {
			if notifier.Ready() {
				return
			}
			if err := notifier.Warm(ctx); err != nil {
				slog.Warn("notification backend not ready", "error", err)
			} else {
				slog.Info("notification backend ready, refreshing")
				if err := service.Refresh(ctx, true); err != nil {
					slog.Error("post-warm reconciliation failed", "error", err)
				}
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	router := api.NewRouter(api.RouterDeps{
		Service: service,
		Metrics: m,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}
