package risk

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"perpgrid/internal/config"
)

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		MaxGlobalExposure:   5.0,
		MaxSymbolsActive:    5,
		KillSwitchDropPct:   0.10, // 10%
		KillSwitchWindowSec: 60,
		MaxDailyLoss:        50,
		CooldownAfterKill:   5 * time.Minute,
	}
}

func newTestManager() *Manager {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewManager(testRiskConfig(), logger)
}

func TestProcessReportUnderLimits(t *testing.T) {
	t.Parallel()
	rm := newTestManager()

	rm.processReport(ExposureReport{
		Symbol:             "m1",
		LongWalletExposure: 0.5,
		RealizedPnL:        0,
		UnrealizedPnL:      0,
		MarkPrice:          0.50,
		Timestamp:          time.Now(),
	})

	if rm.killSwitchActive {
		t.Error("kill switch should not fire for report under limits")
	}

	select {
	case sig := <-rm.killCh:
		t.Errorf("unexpected kill signal: %+v", sig)
	default:
	}
}

func TestProcessReportGlobalBreach(t *testing.T) {
	t.Parallel()
	rm := newTestManager()

	// Submit multiple symbols that together exceed global limit (5.0)
	for _, sym := range []string{"m1", "m2", "m3", "m4", "m5", "m6"} {
		rm.processReport(ExposureReport{Symbol: sym, LongWalletExposure: 0.9, MarkPrice: 0.50, Timestamp: time.Now()})
	}

	// Total = 5.4 > 5.0 global limit
	if !rm.killSwitchActive {
		t.Error("kill switch should fire for global exposure breach")
	}

	drained := 0
	for {
		select {
		case <-rm.killCh:
			drained++
		default:
			goto done
		}
	}
done:
	if drained == 0 {
		t.Error("expected at least one kill signal")
	}
}

func TestProcessReportDailyLossBreach(t *testing.T) {
	t.Parallel()
	rm := newTestManager()

	rm.processReport(ExposureReport{
		Symbol:        "m1",
		RealizedPnL:   -30,
		UnrealizedPnL: -25,
		MarkPrice:     0.50,
		Timestamp:     time.Now(),
	})

	// total PnL = -30 + -25 = -55 < -50 threshold
	if !rm.killSwitchActive {
		t.Error("kill switch should fire for daily loss breach")
	}
}

func TestCheckPriceMovementNormal(t *testing.T) {
	t.Parallel()
	rm := newTestManager()

	now := time.Now()

	rm.processReport(ExposureReport{Symbol: "m1", MarkPrice: 0.50, Timestamp: now})
	rm.processReport(ExposureReport{Symbol: "m1", MarkPrice: 0.52, Timestamp: now.Add(10 * time.Second)}) // 4% move

	select {
	case <-rm.killCh:
		t.Error("should not fire kill for 4% move")
	default:
	}
}

func TestCheckPriceMovementSpike(t *testing.T) {
	t.Parallel()
	rm := newTestManager()

	now := time.Now()

	rm.processReport(ExposureReport{Symbol: "m1", MarkPrice: 0.50, Timestamp: now})
	rm.processReport(ExposureReport{Symbol: "m1", MarkPrice: 0.35, Timestamp: now.Add(10 * time.Second)}) // 30% drop

	if !rm.killSwitchActive {
		t.Error("kill switch should fire for 30% price spike")
	}
}

func TestCanAddSymbol(t *testing.T) {
	t.Parallel()
	rm := newTestManager()

	for i := 0; i < 5; i++ {
		sym := string(rune('A' + i))
		if !rm.CanAddSymbol(sym) {
			t.Fatalf("CanAddSymbol(%s) = false, want true (under limit)", sym)
		}
		rm.processReport(ExposureReport{Symbol: sym, MarkPrice: 0.50, Timestamp: time.Now()})
	}

	if rm.CanAddSymbol("F") {
		t.Error("CanAddSymbol should be false once MaxSymbolsActive is reached")
	}
	if !rm.CanAddSymbol("A") {
		t.Error("CanAddSymbol should be true for an already-tracked symbol")
	}
}

func TestIsKillSwitchCooldown(t *testing.T) {
	t.Parallel()
	rm := newTestManager()

	rm.cfg.CooldownAfterKill = 100 * time.Millisecond
	rm.processReport(ExposureReport{
		Symbol:             "m1",
		LongWalletExposure: 10, // exceeds global limit
		MarkPrice:          0.50,
		Timestamp:          time.Now(),
	})

	if !rm.IsKillSwitchActive() {
		t.Error("kill switch should be active immediately after breach")
	}

	time.Sleep(150 * time.Millisecond)

	if rm.IsKillSwitchActive() {
		t.Error("kill switch should expire after cooldown")
	}
}

func TestRemoveSymbolRecomputesTotals(t *testing.T) {
	t.Parallel()
	rm := newTestManager()

	now := time.Now()
	rm.processReport(ExposureReport{Symbol: "m1", LongWalletExposure: 0.5, RealizedPnL: 5, MarkPrice: 0.50, Timestamp: now})
	rm.processReport(ExposureReport{Symbol: "m2", LongWalletExposure: 0.75, RealizedPnL: 3, MarkPrice: 0.50, Timestamp: now})

	if got := rm.totalExposure; got != 1.25 {
		t.Fatalf("totalExposure before remove = %v, want 1.25", got)
	}
	if got := rm.totalRealizedPnL; got != 8 {
		t.Fatalf("totalRealizedPnL before remove = %v, want 8", got)
	}

	rm.RemoveSymbol("m2")

	if got := rm.totalExposure; got != 0.5 {
		t.Fatalf("totalExposure after remove = %v, want 0.5", got)
	}
	if got := rm.totalRealizedPnL; got != 5 {
		t.Fatalf("totalRealizedPnL after remove = %v, want 5", got)
	}
}
