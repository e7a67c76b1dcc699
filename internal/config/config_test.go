package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validMarket() MarketConfig {
	return MarketConfig{
		Symbol:          "BTCUSDT",
		PriceStep:       0.01,
		QtyStep:         0.001,
		StartingBalance: 1000,
		DoLong:          true,
		Long:            SideConfigYAML{WalletExposureLimit: 1.0},
	}
}

func validConfig() Config {
	return Config{
		DryRun: true,
		Exchange: ExchangeConfig{
			BaseURL: "https://api.example.com",
		},
		Markets: []MarketConfig{validMarket()},
		Risk: RiskConfig{
			MaxGlobalExposure: 2.0,
			MaxSymbolsActive:  5,
		},
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestValidateRequiresBaseURL(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Exchange.BaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should error with no base_url")
	}
}

func TestValidateRequiresCredentialsUnlessDryRun(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.DryRun = false
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should error without key/secret when dry_run is false")
	}

	cfg.Exchange.Key = "k"
	cfg.Exchange.Secret = "s"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil once credentials are set", err)
	}
}

func TestValidateRequiresAtLeastOneMarket(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Markets = nil
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should error with no markets configured")
	}
}

func TestValidateRequiresPositiveLatticeSteps(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Markets[0].QtyStep = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should error with qty_step <= 0")
	}
}

func TestValidateRequiresWalletExposureLimitWhenSideEnabled(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Markets[0].DoShort = true
	cfg.Markets[0].Short = SideConfigYAML{WalletExposureLimit: 0}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should error when do_short is set but short.wallet_exposure_limit is 0")
	}
}

func TestValidateRejectsSecondaryAllocationAtOrAboveOne(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Markets[0].Long.SecondaryAllocation = 1.0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should error when long.secondary_allocation >= 1.0")
	}

	cfg = validConfig()
	cfg.Markets[0].DoShort = true
	cfg.Markets[0].Short = SideConfigYAML{WalletExposureLimit: 1.0, SecondaryAllocation: 1.2}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should error when short.secondary_allocation >= 1.0")
	}
}

func TestValidateRequiresRiskLimits(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Risk.MaxGlobalExposure = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should error with max_global_exposure <= 0")
	}
}

func TestMarketConfigMarketConvertsLatticeFields(t *testing.T) {
	t.Parallel()
	m := validMarket()
	m.Inverse = true
	m.CMult = 5
	m.MinQty = 0.01
	m.MinCost = 10

	spec := m.Market()
	if spec.Inverse != true || spec.CMult != 5 || spec.QtyStep != m.QtyStep || spec.PriceStep != m.PriceStep {
		t.Errorf("Market() = %+v, did not carry over lattice fields from %+v", spec, m)
	}
}

func TestSideConfigYAMLToGridmathConvertsAllFields(t *testing.T) {
	t.Parallel()
	s := SideConfigYAML{
		GridSpan:             0.4,
		WalletExposureLimit:  1.0,
		MaxNEntryOrders:      7,
		InitialQtyPct:        0.01,
		EmaSpanMin:           5,
		EmaSpanMax:           20,
	}
	gm := s.ToGridmath()
	if gm.GridSpan != s.GridSpan || gm.WalletExposureLimit != s.WalletExposureLimit ||
		gm.MaxNEntryOrders != s.MaxNEntryOrders || gm.EmaSpanMin != s.EmaSpanMin || gm.EmaSpanMax != s.EmaSpanMax {
		t.Errorf("ToGridmath() = %+v, did not carry over fields from %+v", gm, s)
	}
}

func TestLoadReadsYAMLAndAppliesEnvOverrides(t *testing.T) {
	yaml := `
dry_run: true
exchange:
  base_url: "https://api.example.com"
markets:
  - symbol: BTCUSDT
    price_step: 0.01
    qty_step: 0.001
    starting_balance: 1000
    do_long: true
    long:
      wallet_exposure_limit: 1.0
risk:
  max_global_exposure: 2.0
  max_symbols_active: 5
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	t.Setenv("PERPGRID_KEY", "env-key")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Exchange.BaseURL != "https://api.example.com" {
		t.Errorf("BaseURL = %q", cfg.Exchange.BaseURL)
	}
	if len(cfg.Markets) != 1 || cfg.Markets[0].Symbol != "BTCUSDT" {
		t.Fatalf("Markets = %+v", cfg.Markets)
	}
	if cfg.Exchange.Key != "env-key" {
		t.Errorf("Key = %q, want env override \"env-key\"", cfg.Exchange.Key)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config failed Validate(): %v", err)
	}
}
