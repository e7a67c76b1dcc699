// Command backtest replays a historical tick CSV through the grid math
// core for a single market and prints the resulting summary.
//
// Usage:
//
//	backtest -config configs/config.yaml -symbol BTCUSDT -ticks data/BTCUSDT.csv
//
// The market's lattice and grid parameters are taken from the named
// symbol's entry in the config file, so a backtest run exercises the
// exact same config a live deployment would.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"perpgrid/internal/backtest"
	"perpgrid/internal/config"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "path to config.yaml")
	symbol := flag.String("symbol", "", "symbol to backtest (must match a markets[].symbol entry)")
	ticksPath := flag.String("ticks", "", "path to a trade-print CSV (timestamp, qty, price columns)")
	flag.Parse()

	if *symbol == "" || *ticksPath == "" {
		fmt.Fprintln(os.Stderr, "usage: backtest -config configs/config.yaml -symbol BTCUSDT -ticks data/BTCUSDT.csv")
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err, "path", *cfgPath)
		os.Exit(1)
	}

	market, ok := findMarket(cfg.Markets, *symbol)
	if !ok {
		logger.Error("symbol not found in config", "symbol", *symbol)
		os.Exit(1)
	}

	ticks, err := backtest.LoadTicksCSV(*ticksPath)
	if err != nil {
		logger.Error("failed to load ticks", "error", err, "path", *ticksPath)
		os.Exit(1)
	}
	logger.Info("loaded ticks", "symbol", *symbol, "count", len(ticks))

	runCfg := backtest.Config{
		Market:              market.Market(),
		Spot:                market.Spot,
		HedgeMode:           market.HedgeMode,
		DoLong:              market.DoLong,
		DoShort:             market.DoShort,
		Long:                market.Long.ToGridmath(),
		Short:               market.Short.ToGridmath(),
		StartingBalance:     market.StartingBalance,
		MakerFeeRate:        market.MakerFeeRate,
		LatencySimulationMs: market.LatencySimMs,
	}

	summary := backtest.Run(ticks, runCfg)
	logger.Info("run complete",
		"fills", len(summary.Fills),
		"total_return", summary.TotalReturn,
		"max_drawdown", summary.MaxDrawdown,
		"win_rate", summary.WinRate,
	)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		logger.Error("failed to encode summary", "error", err)
		os.Exit(1)
	}
}

func findMarket(markets []config.MarketConfig, symbol string) (config.MarketConfig, bool) {
	for _, m := range markets {
		if m.Symbol == symbol {
			return m, true
		}
	}
	return config.MarketConfig{}, false
}
