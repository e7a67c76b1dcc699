// Package config defines all configuration for the grid trading engine.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via PERPGRID_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"perpgrid/internal/gridmath"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun    bool            `mapstructure:"dry_run"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
	Markets   []MarketConfig  `mapstructure:"markets"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	Store     StoreConfig     `mapstructure:"store"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// ExchangeConfig holds the API credentials used to sign and submit orders.
// Key/Secret/Passphrase are HMAC credentials issued by the exchange; they
// may also be supplied via env vars so they never need to live in a
// committed config file.
type ExchangeConfig struct {
	Name         string `mapstructure:"name"`
	BaseURL      string `mapstructure:"base_url"`
	WSPublicURL  string `mapstructure:"ws_public_url"`
	WSPrivateURL string `mapstructure:"ws_private_url"`
	Key          string `mapstructure:"key"`
	Secret       string `mapstructure:"secret"`
	Passphrase   string `mapstructure:"passphrase"`

	// WalletPrivateKey is optional. HMAC (Key/Secret) is the default and
	// only auth mode most exchanges need. A small number of exchanges
	// additionally require a one-time EIP-712 signature from the trading
	// wallet to approve an API key before HMAC-signed requests are
	// accepted; set this to enable that approval step.
	WalletPrivateKey string `mapstructure:"wallet_private_key"`
}

// SideConfigYAML mirrors gridmath.SideConfig with mapstructure tags; Load
// converts it into the numeric type the grid math package consumes.
type SideConfigYAML struct {
	GridSpan                        float64 `mapstructure:"grid_span"`
	WalletExposureLimit             float64 `mapstructure:"wallet_exposure_limit"`
	MaxNEntryOrders                 int     `mapstructure:"max_n_entry_orders"`
	InitialQtyPct                   float64 `mapstructure:"initial_qty_pct"`
	InitialEpriceEmaDist            float64 `mapstructure:"initial_eprice_ema_dist"`
	EpricePpriceDiff                float64 `mapstructure:"eprice_pprice_diff"`
	EpriceExpBase                   float64 `mapstructure:"eprice_exp_base"`
	SecondaryAllocation             float64 `mapstructure:"secondary_allocation"`
	SecondaryPpriceDiff             float64 `mapstructure:"secondary_pprice_diff"`
	MinMarkup                       float64 `mapstructure:"min_markup"`
	MarkupRange                     float64 `mapstructure:"markup_range"`
	NCloseOrders                    int     `mapstructure:"n_close_orders"`
	AutoUnstuckWalletExposureThresh float64 `mapstructure:"auto_unstuck_wallet_exposure_threshold"`
	AutoUnstuckEmaDist              float64 `mapstructure:"auto_unstuck_ema_dist"`
	EmaSpanMin                      float64 `mapstructure:"ema_span_min"`
	EmaSpanMax                      float64 `mapstructure:"ema_span_max"`
}

// ToGridmath converts the YAML-shaped config into gridmath.SideConfig.
func (s SideConfigYAML) ToGridmath() gridmath.SideConfig {
	return gridmath.SideConfig{
		GridSpan:                        s.GridSpan,
		WalletExposureLimit:             s.WalletExposureLimit,
		MaxNEntryOrders:                 s.MaxNEntryOrders,
		InitialQtyPct:                   s.InitialQtyPct,
		InitialEpriceEmaDist:            s.InitialEpriceEmaDist,
		EpricePpriceDiff:                s.EpricePpriceDiff,
		EpriceExpBase:                   s.EpriceExpBase,
		SecondaryAllocation:             s.SecondaryAllocation,
		SecondaryPpriceDiff:             s.SecondaryPpriceDiff,
		MinMarkup:                       s.MinMarkup,
		MarkupRange:                     s.MarkupRange,
		NCloseOrders:                    s.NCloseOrders,
		AutoUnstuckWalletExposureThresh: s.AutoUnstuckWalletExposureThresh,
		AutoUnstuckEmaDist:              s.AutoUnstuckEmaDist,
		EmaSpanMin:                      s.EmaSpanMin,
		EmaSpanMax:                      s.EmaSpanMax,
	}
}

// MarketConfig is one symbol's lattice facts and per-side grid tuning.
type MarketConfig struct {
	Symbol          string         `mapstructure:"symbol"`
	Inverse         bool           `mapstructure:"inverse"`
	Spot            bool           `mapstructure:"spot"`
	HedgeMode       bool           `mapstructure:"hedge_mode"`
	PriceStep       float64        `mapstructure:"price_step"`
	QtyStep         float64        `mapstructure:"qty_step"`
	MinQty          float64        `mapstructure:"min_qty"`
	MinCost         float64        `mapstructure:"min_cost"`
	CMult           float64        `mapstructure:"c_mult"`
	StartingBalance float64        `mapstructure:"starting_balance"`
	MakerFeeRate    float64        `mapstructure:"maker_fee_rate"`
	LatencySimMs    int64          `mapstructure:"latency_sim_ms"`
	DoLong          bool           `mapstructure:"do_long"`
	DoShort         bool           `mapstructure:"do_short"`
	Long            SideConfigYAML `mapstructure:"long"`
	Short           SideConfigYAML `mapstructure:"short"`
}

// Market returns the gridmath.MarketSpec lattice facts for this symbol.
func (m MarketConfig) Market() gridmath.MarketSpec {
	return gridmath.MarketSpec{
		Inverse:   m.Inverse,
		QtyStep:   m.QtyStep,
		PriceStep: m.PriceStep,
		MinQty:    m.MinQty,
		MinCost:   m.MinCost,
		CMult:     m.CMult,
	}
}

// RiskConfig sets hard limits that trigger order cancellation (kill switch)
// across all symbols combined.
//
//   - MaxGlobalExposure: max combined wallet exposure across all active symbols.
//   - MaxSymbolsActive: cap on how many symbols the engine trades simultaneously.
//   - KillSwitchDropPct: if a symbol's mark price moves (up or down) by more than this fraction within the window, kill switch fires.
//   - KillSwitchWindowSec: time window for measuring the price move.
//   - MaxDailyLoss: max combined (realized + unrealized) loss before kill switch.
//   - CooldownAfterKill: how long the kill switch stays engaged after firing.
type RiskConfig struct {
	MaxGlobalExposure   float64       `mapstructure:"max_global_exposure"`
	MaxSymbolsActive    int           `mapstructure:"max_symbols_active"`
	KillSwitchDropPct   float64       `mapstructure:"kill_switch_drop_pct"`
	KillSwitchWindowSec int           `mapstructure:"kill_switch_window_sec"`
	MaxDailyLoss        float64       `mapstructure:"max_daily_loss"`
	CooldownAfterKill   time.Duration `mapstructure:"cooldown_after_kill"`
}

// ScannerConfig controls how the engine filters tradeable symbols from the
// exchange's instrument list: linear (non-inverse), active, and swap
// (perpetual, not dated future).
type ScannerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	RequireSwap  bool          `mapstructure:"require_swap"`
	RequireLinear bool         `mapstructure:"require_linear"`
	ExcludeSymbols []string    `mapstructure:"exclude_symbols"`
}

// StoreConfig sets where run state is persisted (JSON files).
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the web dashboard server.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: PERPGRID_KEY, PERPGRID_SECRET, PERPGRID_PASSPHRASE.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("PERPGRID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("PERPGRID_KEY"); key != "" {
		cfg.Exchange.Key = key
	}
	if secret := os.Getenv("PERPGRID_SECRET"); secret != "" {
		cfg.Exchange.Secret = secret
	}
	if pass := os.Getenv("PERPGRID_PASSPHRASE"); pass != "" {
		cfg.Exchange.Passphrase = pass
	}
	if v := os.Getenv("PERPGRID_DRY_RUN"); v == "true" || v == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges, failing loud
// before the engine attempts to trade on a malformed configuration.
func (c *Config) Validate() error {
	if c.Exchange.BaseURL == "" {
		return fmt.Errorf("exchange.base_url is required")
	}
	if !c.DryRun && (c.Exchange.Key == "" || c.Exchange.Secret == "") {
		return fmt.Errorf("exchange.key and exchange.secret are required unless dry_run is true")
	}
	if len(c.Markets) == 0 {
		return fmt.Errorf("at least one entry in markets is required")
	}
	for _, m := range c.Markets {
		if m.Symbol == "" {
			return fmt.Errorf("markets[].symbol is required")
		}
		if m.PriceStep <= 0 || m.QtyStep <= 0 {
			return fmt.Errorf("markets[%s].price_step and qty_step must be > 0", m.Symbol)
		}
		if m.StartingBalance <= 0 {
			return fmt.Errorf("markets[%s].starting_balance must be > 0", m.Symbol)
		}
		if m.DoLong && m.Long.WalletExposureLimit <= 0 {
			return fmt.Errorf("markets[%s].long.wallet_exposure_limit must be > 0 when do_long", m.Symbol)
		}
		if m.DoShort && m.Short.WalletExposureLimit <= 0 {
			return fmt.Errorf("markets[%s].short.wallet_exposure_limit must be > 0 when do_short", m.Symbol)
		}
		if m.Long.SecondaryAllocation >= 1.0 {
			return fmt.Errorf("markets[%s].long.secondary_allocation cannot be >= 1.0", m.Symbol)
		}
		if m.Short.SecondaryAllocation >= 1.0 {
			return fmt.Errorf("markets[%s].short.secondary_allocation cannot be >= 1.0", m.Symbol)
		}
	}
	if c.Risk.MaxGlobalExposure <= 0 {
		return fmt.Errorf("risk.max_global_exposure must be > 0")
	}
	if c.Risk.MaxSymbolsActive <= 0 {
		return fmt.Errorf("risk.max_symbols_active must be > 0")
	}
	return nil
}
