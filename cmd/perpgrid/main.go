// PerpGrid — a deterministic grid trading engine for linear perpetual
// futures.
//
// Architecture:
//
//	main.go              — entry point: loads config, starts engine, waits for SIGINT/SIGTERM
//	engine/engine.go     — orchestrator: wires scanner -> gridmath -> exchange, manages symbol lifecycle
//	gridmath/*.go        — pure grid math core: entry/close grid builders, EMA bands, position algebra
//	backtest/backtest.go — offline simulator replaying historical trade ticks through the same grid math
//	market/scanner.go    — polls the exchange instrument list, filters to tradeable linear swaps
//	market/book.go       — local order book mirror fed by REST snapshots + WebSocket deltas
//	exchange/client.go   — REST client for the exchange's order/position/book endpoints
//	exchange/auth.go     — HMAC-SHA256 request signing for REST and WebSocket auth
//	exchange/ws.go       — WebSocket feeds (market data + user fills/orders) with auto-reconnect
//	risk/manager.go      — enforces global exposure, daily loss, and price-shock kill switch limits
//	store/store.go       — JSON file persistence for balance/position state (survives restarts)
//
// How it makes money:
//
//	The engine maintains a ladder of limit entry orders below (long side) and
//	above (short side) the market, each sized and spaced according to the
//	grid math core. As price moves through the grid, entries fill and widen
//	the position; close orders layered above (long) or below (short) the
//	position's average price realize profit as price reverts. EMA bands
//	keep the grid anchored to trend rather than a fixed reference price.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"perpgrid/internal/api"
	"perpgrid/internal/config"
	"perpgrid/internal/engine"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("PERPGRID_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	eng, err := engine.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(cfg.Dashboard, eng, *cfg, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("dashboard server failed", "error", err)
			}
		}()
		logger.Info("dashboard started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	logger.Info("perpgrid started",
		"symbols", len(cfg.Markets),
		"max_symbols_active", cfg.Risk.MaxSymbolsActive,
		"max_exposure", cfg.Risk.MaxGlobalExposure,
		"dry_run", cfg.DryRun,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop dashboard", "error", err)
		}
	}

	eng.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
