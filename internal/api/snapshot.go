package api

import (
	"time"

	"perpgrid/internal/config"
	"perpgrid/internal/market"
	"perpgrid/internal/risk"
)

// MarketSnapshotProvider provides snapshot access to engine state.
type MarketSnapshotProvider interface {
	GetSymbolsSnapshot() []SymbolStatus
	GetScanner() *market.Scanner
	GetRiskManager() *risk.Manager
}

// BuildSnapshot aggregates state from all components into a dashboard snapshot.
func BuildSnapshot(
	provider MarketSnapshotProvider,
	cfg config.Config,
) DashboardSnapshot {
	symbols := provider.GetSymbolsSnapshot()

	riskMgr := provider.GetRiskManager()
	riskSnap := riskMgr.GetRiskSnapshot()

	var totalRealized, totalUnrealized float64
	for _, s := range symbols {
		totalRealized += s.RealizedPnL
		totalUnrealized += s.UnrealizedPnL
	}

	scannerInfo := ScannerInfo{
		LastScanTime:  time.Now(),
		SymbolsActive: len(symbols),
	}

	return DashboardSnapshot{
		Timestamp:       time.Now(),
		Symbols:         symbols,
		TotalRealized:   totalRealized,
		TotalUnrealized: totalUnrealized,
		TotalPnL:        totalRealized + totalUnrealized,
		Risk:            convertRiskSnapshot(riskSnap),
		Config:          NewConfigSummary(cfg),
		Scanner:         scannerInfo,
	}
}

// convertRiskSnapshot converts the internal risk snapshot to API format.
func convertRiskSnapshot(snap risk.RiskSnapshot) RiskSnapshot {
	return RiskSnapshot{
		GlobalExposure:       snap.GlobalExposure,
		MaxGlobalExposure:    snap.MaxGlobalExposure,
		ExposurePct:          snap.ExposurePct,
		KillSwitchActive:     snap.KillSwitchActive,
		KillSwitchUntil:      snap.KillSwitchUntil,
		KillSwitchReason:     snap.KillSwitchReason,
		TotalRealizedPnL:     snap.TotalRealizedPnL,
		TotalUnrealizedPnL:   snap.TotalUnrealizedPnL,
		MaxDailyLoss:         snap.MaxDailyLoss,
		MaxSymbolsActive:     snap.MaxSymbolsActive,
		CurrentSymbolsActive: snap.CurrentSymbolsActive,
	}
}
