package api

import (
	"time"

	"perpgrid/internal/config"
)

// DashboardSnapshot represents the complete dashboard state.
type DashboardSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	Symbols []SymbolStatus `json:"symbols"`

	TotalRealized   float64 `json:"total_realized"`
	TotalUnrealized float64 `json:"total_unrealized"`
	TotalPnL        float64 `json:"total_pnl"`

	Risk RiskSnapshot `json:"risk"`

	Config ConfigSummary `json:"config"`

	Scanner ScannerInfo `json:"scanner"`
}

// SymbolStatus represents per-symbol grid trading state.
type SymbolStatus struct {
	Symbol string `json:"symbol"`

	MidPrice    float64   `json:"mid_price"`
	BestBid     float64   `json:"best_bid"`
	BestAsk     float64   `json:"best_ask"`
	Spread      float64   `json:"spread"`
	LastUpdated time.Time `json:"last_updated"`
	IsStale     bool      `json:"is_stale"`

	Balance       float64 `json:"balance"`
	LongPSize     float64 `json:"long_psize"`
	LongPPrice    float64 `json:"long_pprice"`
	ShortPSize    float64 `json:"short_psize"`
	ShortPPrice   float64 `json:"short_pprice"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	RealizedPnL   float64 `json:"realized_pnl"`
	OpenOrders    int     `json:"open_orders"`
}

// RiskSnapshot represents aggregate risk metrics.
type RiskSnapshot struct {
	GlobalExposure    float64 `json:"global_exposure"`
	MaxGlobalExposure float64 `json:"max_global_exposure"`
	ExposurePct       float64 `json:"exposure_pct"`

	KillSwitchActive bool      `json:"kill_switch_active"`
	KillSwitchUntil  time.Time `json:"kill_switch_until,omitempty"`
	KillSwitchReason string    `json:"kill_switch_reason,omitempty"`

	TotalRealizedPnL   float64 `json:"total_realized_pnl"`
	TotalUnrealizedPnL float64 `json:"total_unrealized_pnl"`

	MaxDailyLoss         float64 `json:"max_daily_loss"`
	MaxSymbolsActive     int     `json:"max_symbols_active"`
	CurrentSymbolsActive int     `json:"current_symbols_active"`
}

// ConfigSummary represents risk and scanner configuration shown on the
// dashboard. Per-symbol grid tuning isn't summarized here since it varies
// by symbol; see SymbolStatus for live per-symbol numbers.
type ConfigSummary struct {
	MaxGlobalExposure   float64 `json:"max_global_exposure"`
	MaxSymbolsActive    int     `json:"max_symbols_active"`
	KillSwitchDropPct   float64 `json:"kill_switch_drop_pct"`
	KillSwitchWindowSec int     `json:"kill_switch_window_sec"`
	MaxDailyLoss        float64 `json:"max_daily_loss"`
	CooldownAfterKill   string  `json:"cooldown_after_kill"`

	ScannerPollInterval string `json:"scanner_poll_interval"`
	RequireSwap         bool   `json:"require_swap"`
	RequireLinear        bool   `json:"require_linear"`

	SymbolCount int  `json:"symbol_count"`
	DryRun      bool `json:"dry_run"`
}

// ScannerInfo represents scanner state.
type ScannerInfo struct {
	LastScanTime  time.Time `json:"last_scan_time"`
	SymbolsActive int       `json:"symbols_active"`
}

// NewConfigSummary creates a config summary from the full config.
func NewConfigSummary(cfg config.Config) ConfigSummary {
	return ConfigSummary{
		MaxGlobalExposure:   cfg.Risk.MaxGlobalExposure,
		MaxSymbolsActive:    cfg.Risk.MaxSymbolsActive,
		KillSwitchDropPct:   cfg.Risk.KillSwitchDropPct,
		KillSwitchWindowSec: cfg.Risk.KillSwitchWindowSec,
		MaxDailyLoss:        cfg.Risk.MaxDailyLoss,
		CooldownAfterKill:   cfg.Risk.CooldownAfterKill.String(),

		ScannerPollInterval: cfg.Scanner.PollInterval.String(),
		RequireSwap:         cfg.Scanner.RequireSwap,
		RequireLinear:       cfg.Scanner.RequireLinear,

		SymbolCount: len(cfg.Markets),
		DryRun:      cfg.DryRun,
	}
}
