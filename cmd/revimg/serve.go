package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/revimg/api"
	"github.com/use-agent/revimg/browser"
	"github.com/use-agent/revimg/search"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reverse image search HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	slog.Info("revimg starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxSessions", cfg.Pool.MaxSessions,
	)
	if cfg.Auth.Enabled && len(cfg.Auth.APIKeys) == 0 {
		slog.Warn("auth enabled without REVIMG_API_KEYS, search endpoints are open")
	}

	searcher, err := search.NewSearcherFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("invalid search configuration: %w", err)
	}

	// ── Session pool (launches MinSessions browsers) ────────────────
	openSession := func(ctx context.Context) (*browser.Session, error) {
		return browser.Open(ctx, cfg.Browser)
	}
	pool, err := browser.NewPool(context.Background(), cfg.Pool, openSession)
	if err != nil {
		return fmt.Errorf("failed to start browser pool: %w", err)
	}
	defer pool.Stop()

	svc := search.NewService(pool, searcher)

	// ── HTTP server ─────────────────────────────────────────────────
	router := api.NewRouter(svc, cfg, time.Now())
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	// ── Graceful shutdown ───────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig.String())
	case err := <-errc:
		return fmt.Errorf("HTTP server error: %w", err)
	}

	// Searches can take a full navigation timeout to finish.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Browser.NavigationTimeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// pool.Stop runs via defer and kills every browser.
	slog.Info("revimg stopped")
	return nil
}
