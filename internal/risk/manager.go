// Package risk enforces portfolio-level risk limits across all active symbols.
//
// The risk manager runs as a standalone goroutine that receives
// ExposureReports from each symbol's engine loop and checks them against
// configured limits:
//
//   - Global exposure:      caps total wallet exposure across all symbols
//   - Symbol count:         caps how many symbols may be traded simultaneously
//   - Daily loss:           triggers kill switch if realized+unrealized PnL exceeds threshold
//   - Rapid price movement: triggers kill switch if mark price moves more than
//     KillSwitchDropPct within KillSwitchWindowSec seconds
//
// When a limit is breached, the manager emits a KillSignal on KillCh(). The
// engine reads this signal and cancels all orders (globally or per-symbol).
// After a kill, the kill switch stays active for CooldownAfterKill duration,
// during which the engine skips placing new entries.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"perpgrid/internal/config"
)

// ExposureReport is sent by each symbol's engine goroutine every grid
// recompute cycle. It contains the current wallet exposure and PnL for
// risk evaluation.
type ExposureReport struct {
	Symbol             string
	LongWalletExposure float64 // fraction of balance committed to the long side
	ShortWalletExposure float64 // fraction of balance committed to the short side
	MarkPrice          float64 // current mark price (used for price-movement detection)
	UnrealizedPnL      float64 // mark-to-market PnL
	RealizedPnL        float64 // locked-in PnL from closed fills
	Timestamp          time.Time
}

// KillSignal tells the engine to cancel all orders. If Symbol is empty, it
// means cancel across ALL symbols (global kill).
type KillSignal struct {
	Symbol string // empty = kill ALL symbols
	Reason string
}

// priceAnchor stores a reference price at a point in time for detecting
// rapid price movements within a rolling window.
type priceAnchor struct {
	price     float64
	timestamp time.Time
}

// Manager enforces risk limits across all active symbols. It aggregates
// exposure reports, checks limits, and emits kill signals when breached.
type Manager struct {
	cfg    config.RiskConfig
	logger *slog.Logger

	mu               sync.RWMutex
	exposures        map[string]ExposureReport // latest report per symbol
	totalExposure    float64                   // sum of all wallet exposure (long+short)
	totalRealizedPnL float64                   // sum of all RealizedPnL
	killSwitchActive bool                      // true while in cooldown
	killSwitchUntil  time.Time                 // when cooldown expires
	priceAnchors     map[string]priceAnchor    // reference prices for movement detection

	reportCh chan ExposureReport // engine goroutines write here
	killCh   chan KillSignal     // engine reads kill signals from here
}

// NewManager creates a risk manager.
func NewManager(cfg config.RiskConfig, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:          cfg,
		logger:       logger.With("component", "risk"),
		exposures:    make(map[string]ExposureReport),
		priceAnchors: make(map[string]priceAnchor),
		reportCh:     make(chan ExposureReport, 100),
		killCh:       make(chan KillSignal, 10),
	}
}

// Run starts the risk monitoring loop.
func (rm *Manager) Run(ctx context.Context) {
	// Periodic check clears kill switch even when no reports arrive
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case report := <-rm.reportCh:
			rm.processReport(report)
		case <-ticker.C:
			rm.clearExpiredKillSwitch()
		}
	}
}

// Report submits an exposure report (non-blocking).
func (rm *Manager) Report(report ExposureReport) {
	select {
	case rm.reportCh <- report:
	default:
		rm.logger.Warn("risk report channel full, dropping report",
			"symbol", report.Symbol)
	}
}

// KillCh returns the channel for reading kill signals.
func (rm *Manager) KillCh() <-chan KillSignal {
	return rm.killCh
}

// RemoveSymbol cleans up state for a stopped symbol and recomputes totals.
func (rm *Manager) RemoveSymbol(symbol string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	delete(rm.exposures, symbol)
	delete(rm.priceAnchors, symbol)

	rm.totalExposure = 0
	rm.totalRealizedPnL = 0
	for _, exp := range rm.exposures {
		rm.totalExposure += exp.LongWalletExposure + exp.ShortWalletExposure
		rm.totalRealizedPnL += exp.RealizedPnL
	}
}

// IsKillSwitchActive returns whether the kill switch is engaged.
func (rm *Manager) IsKillSwitchActive() bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if !rm.killSwitchActive {
		return false
	}
	if time.Now().After(rm.killSwitchUntil) {
		rm.killSwitchActive = false
		rm.logger.Info("kill switch cooldown expired")
		return false
	}
	return true
}

// CanAddSymbol reports whether another symbol may be added without
// breaching MaxSymbolsActive.
func (rm *Manager) CanAddSymbol(symbol string) bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	if _, ok := rm.exposures[symbol]; ok {
		return true
	}
	return len(rm.exposures) < rm.cfg.MaxSymbolsActive
}

// GetRiskSnapshot returns current aggregate risk metrics for the dashboard.
func (rm *Manager) GetRiskSnapshot() RiskSnapshot {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	var totalUnrealizedPnL float64
	for _, exp := range rm.exposures {
		totalUnrealizedPnL += exp.UnrealizedPnL
	}

	var exposurePct float64
	if rm.cfg.MaxGlobalExposure > 0 {
		exposurePct = (rm.totalExposure / rm.cfg.MaxGlobalExposure) * 100
	}

	var killReason string
	if rm.killSwitchActive {
		killReason = "cooldown"
	}

	return RiskSnapshot{
		GlobalExposure:     rm.totalExposure,
		MaxGlobalExposure:  rm.cfg.MaxGlobalExposure,
		ExposurePct:        exposurePct,
		KillSwitchActive:   rm.killSwitchActive,
		KillSwitchUntil:    rm.killSwitchUntil,
		KillSwitchReason:   killReason,
		TotalRealizedPnL:   rm.totalRealizedPnL,
		TotalUnrealizedPnL: totalUnrealizedPnL,
		MaxDailyLoss:       rm.cfg.MaxDailyLoss,
		MaxSymbolsActive:   rm.cfg.MaxSymbolsActive,
		CurrentSymbolsActive: len(rm.exposures),
	}
}

// RiskSnapshot represents aggregate risk metrics for the dashboard.
type RiskSnapshot struct {
	GlobalExposure       float64
	MaxGlobalExposure    float64
	ExposurePct          float64
	KillSwitchActive     bool
	KillSwitchUntil      time.Time
	KillSwitchReason     string
	TotalRealizedPnL     float64
	TotalUnrealizedPnL   float64
	MaxDailyLoss         float64
	MaxSymbolsActive     int
	CurrentSymbolsActive int
}

func (rm *Manager) processReport(report ExposureReport) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.exposures[report.Symbol] = report

	rm.totalExposure = 0
	rm.totalRealizedPnL = 0
	totalUnrealizedPnL := 0.0
	for _, exp := range rm.exposures {
		rm.totalExposure += exp.LongWalletExposure + exp.ShortWalletExposure
		rm.totalRealizedPnL += exp.RealizedPnL
		totalUnrealizedPnL += exp.UnrealizedPnL
	}

	if rm.totalExposure > rm.cfg.MaxGlobalExposure {
		rm.emitKill("", "global exposure limit breached")
	}

	totalPnL := rm.totalRealizedPnL + totalUnrealizedPnL
	if totalPnL < -rm.cfg.MaxDailyLoss {
		rm.emitKill("", "max daily loss breached")
	}

	rm.checkPriceMovement(report)
}

// checkPriceMovement detects rapid price swings using a rolling anchor.
// On each report, it compares mark price to the anchor set at the start of
// the window. If the anchor is older than KillSwitchWindowSec, it resets.
// If price moved more than KillSwitchDropPct from anchor, kill switch fires.
func (rm *Manager) checkPriceMovement(report ExposureReport) {
	window := time.Duration(rm.cfg.KillSwitchWindowSec) * time.Second

	anchor, ok := rm.priceAnchors[report.Symbol]
	if !ok || report.Timestamp.Sub(anchor.timestamp) > window {
		rm.priceAnchors[report.Symbol] = priceAnchor{
			price:     report.MarkPrice,
			timestamp: report.Timestamp,
		}
		return
	}

	if anchor.price == 0 {
		return
	}

	pctChange := (report.MarkPrice - anchor.price) / anchor.price
	if pctChange < 0 {
		pctChange = -pctChange
	}

	if pctChange > rm.cfg.KillSwitchDropPct {
		rm.emitKill(report.Symbol, fmt.Sprintf(
			"rapid price movement: %.1f%% in %ds",
			pctChange*100, rm.cfg.KillSwitchWindowSec,
		))
	}
}

func (rm *Manager) clearExpiredKillSwitch() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.killSwitchActive && time.Now().After(rm.killSwitchUntil) {
		rm.killSwitchActive = false
		rm.logger.Info("kill switch cooldown expired")
	}
}

// emitKill activates the kill switch, starts the cooldown timer, and sends
// a KillSignal to the engine. If the kill channel is full, it drains the
// stale signal first to ensure the latest kill reason is always delivered.
func (rm *Manager) emitKill(symbol, reason string) {
	rm.killSwitchActive = true
	rm.killSwitchUntil = time.Now().Add(rm.cfg.CooldownAfterKill)

	rm.logger.Error("KILL SWITCH",
		"symbol", symbol,
		"reason", reason,
		"cooldown_until", rm.killSwitchUntil,
	)

	sig := KillSignal{Symbol: symbol, Reason: reason}
	select {
	case rm.killCh <- sig:
	default:
		select {
		case <-rm.killCh:
		default:
		}
		rm.killCh <- sig
	}
}
