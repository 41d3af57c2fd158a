package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wmeredith/chathub/internal/broker"
	"github.com/wmeredith/chathub/internal/config"
	"github.com/wmeredith/chathub/internal/connection"
	"github.com/wmeredith/chathub/internal/version"
	"github.com/wmeredith/chathub/internal/wsbridge"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "configs/chathubd.local.yaml", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	logger.Info("starting chathubd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"addr", cfg.Listener.Addr(),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// The broker starts before any connection is accepted.
	brk := broker.New(broker.Config{EventBuffer: cfg.Broker.EventBuffer}, logger)
	brk.Start()

	manager := connection.NewManager(cfg.Listener.Addr(), brk, logger)
	if err := manager.Start(ctx); err != nil {
		logger.Error("failed to start connection manager", "error", err)
		os.Exit(1)
	}

	var bridge *wsbridge.Bridge
	if cfg.WebSocket.Enabled {
		bridge = wsbridge.NewBridge(cfg.WebSocket.Addr(), cfg.WebSocket.Path, brk, logger)
		if err := bridge.Start(ctx); err != nil {
			logger.Error("failed to start websocket bridge", "error", err)
			os.Exit(1)
		}
	}

	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: createHealthHandler(cfg.Health.Path, brk),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Health.Port, "path", cfg.Health.Path)
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	logger.Info("chathubd running",
		"health_url", fmt.Sprintf("http://localhost:%d%s", cfg.Health.Port, cfg.Health.Path),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()

	// Stop the listening sources first so the readers drain out, then close
	// the broker inbox and wait for it to finish draining disconnect
	// notices.
	manager.Stop(stopCtx)
	if bridge != nil {
		bridge.Stop(stopCtx)
	}
	brk.Close()
	select {
	case <-brk.Done():
	case <-stopCtx.Done():
		logger.Warn("broker drain timed out")
	}

	if err := g.Wait(); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("chathubd stopped")
}

// createHealthHandler serves the health and peer-debug endpoints.
func createHealthHandler(healthPath string, brk *broker.Broker) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(healthPath, func(w http.ResponseWriter, r *http.Request) {
		stats := brk.Stats()
		state := brk.State()

		health := struct {
			Status string       `json:"status"`
			State  string       `json:"state"`
			Stats  broker.Stats `json:"stats"`
		}{
			Status: "healthy",
			State:  state,
			Stats:  stats,
		}
		if state != broker.StateRunning {
			health.Status = "stopping"
		}

		w.Header().Set("Content-Type", "application/json")
		if state == broker.StateStopped {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/peers", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		peers, err := brk.Peers(ctx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"count": len(peers),
			"peers": peers,
		})
	})

	return mux
}
