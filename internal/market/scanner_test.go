package market

import (
	"testing"

	"perpgrid/internal/config"
)

func testScannerConfig() config.ScannerConfig {
	return config.ScannerConfig{
		RequireSwap:    true,
		RequireLinear:  true,
		ExcludeSymbols: []string{"EXCLUDEUSDT"},
	}
}

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		MaxSymbolsActive: 3,
	}
}

func baseInstrument() instrumentResponse {
	return instrumentResponse{
		Symbol:       "BTCUSDT",
		ContractType: "LinearPerpetual",
		Status:       "Trading",
		PriceStep:    0.5,
		QtyStep:      0.001,
		MinQty:       0.001,
		MinCost:      5,
	}
}

func newTestScanner() *Scanner {
	return &Scanner{
		cfg:     testScannerConfig(),
		riskCfg: testRiskConfig(),
	}
}

func TestFilterInstrumentsPassesValid(t *testing.T) {
	t.Parallel()
	s := newTestScanner()

	result := s.filterInstruments([]instrumentResponse{baseInstrument()})
	if len(result) != 1 {
		t.Fatalf("expected 1 symbol, got %d", len(result))
	}
	if result[0].Symbol != "BTC/USDT:USDT" {
		t.Errorf("Symbol = %q, want normalized form", result[0].Symbol)
	}
	if result[0].Type != "swap" {
		t.Errorf("Type = %q, want swap", result[0].Type)
	}
	if !result[0].Linear {
		t.Error("Linear should be true for LinearPerpetual")
	}
}

func TestFilterInstrumentsRejectsNonSwap(t *testing.T) {
	t.Parallel()
	s := newTestScanner()

	inst := baseInstrument()
	inst.ContractType = "InverseFutures"
	result := s.filterInstruments([]instrumentResponse{inst})

	if len(result) != 0 {
		t.Errorf("expected 0 symbols for non-swap contract, got %d", len(result))
	}
}

func TestFilterInstrumentsRejectsInactive(t *testing.T) {
	t.Parallel()
	s := newTestScanner()

	inst := baseInstrument()
	inst.Status = "Closed"
	result := s.filterInstruments([]instrumentResponse{inst})

	if len(result) != 0 {
		t.Errorf("expected 0 symbols for closed status, got %d", len(result))
	}
}

func TestFilterInstrumentsRejectsExcluded(t *testing.T) {
	t.Parallel()
	s := newTestScanner()

	inst := baseInstrument()
	inst.Symbol = "EXCLUDEUSDT"
	result := s.filterInstruments([]instrumentResponse{inst})

	if len(result) != 0 {
		t.Errorf("expected 0 symbols for excluded symbol, got %d", len(result))
	}
}

func TestFilterInstrumentsExcludedCaseInsensitive(t *testing.T) {
	t.Parallel()
	s := newTestScanner()

	inst := baseInstrument()
	inst.Symbol = "excludeusdt"
	result := s.filterInstruments([]instrumentResponse{inst})

	if len(result) != 0 {
		t.Error("exclusion list should match case-insensitively")
	}
}

func TestFilterInstrumentsMultiple(t *testing.T) {
	t.Parallel()
	s := newTestScanner()

	eth := baseInstrument()
	eth.Symbol = "ETHUSDT"

	result := s.filterInstruments([]instrumentResponse{baseInstrument(), eth})
	if len(result) != 2 {
		t.Fatalf("expected 2 symbols, got %d", len(result))
	}
}

func TestNormalizeSymbol(t *testing.T) {
	t.Parallel()

	if got := normalizeSymbol("BTCUSDT"); got != "BTC/USDT:USDT" {
		t.Errorf("normalizeSymbol(BTCUSDT) = %q", got)
	}
	if got := normalizeSymbol("WEIRD"); got != "WEIRD" {
		t.Errorf("normalizeSymbol(WEIRD) = %q, want unchanged", got)
	}
}
