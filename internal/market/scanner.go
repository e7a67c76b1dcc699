package market

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"perpgrid/internal/config"
	"perpgrid/pkg/types"
)

// Scanner periodically polls the exchange's instrument list and filters it
// down to the symbols the engine is allowed to trade: linear (non-inverse)
// perpetual swaps that are active and not explicitly excluded. The engine
// reads ScanResults from Results() and starts/stops per-symbol engine
// goroutines to match the selected set.

// instrumentResponse is the JSON shape returned by the exchange's
// instruments-info endpoint.
type instrumentResponse struct {
	Symbol     string  `json:"symbol"`
	ContractType string `json:"contractType"` // "LinearPerpetual", "InverseFutures", ...
	Status     string  `json:"status"`        // "Trading", "Closed", ...
	PriceScale string  `json:"priceScale"`
	PriceStep  float64 `json:"priceFilter.tickSize,string"`
	QtyStep    float64 `json:"lotSizeFilter.qtyStep,string"`
	MinQty     float64 `json:"lotSizeFilter.minOrderQty,string"`
	MinCost    float64 `json:"lotSizeFilter.minNotionalValue,string"`
}

// ScanResult contains the symbols selected for trading after filtering.
type ScanResult struct {
	Symbols   []types.MarketInfo
	ScannedAt time.Time
}

// Scanner periodically polls the exchange for its tradeable instrument set.
type Scanner struct {
	httpClient *resty.Client
	cfg        config.ScannerConfig
	riskCfg    config.RiskConfig
	logger     *slog.Logger
	resultCh   chan ScanResult
}

// NewScanner creates a symbol scanner.
func NewScanner(cfg config.Config, logger *slog.Logger) *Scanner {
	client := resty.New().
		SetBaseURL(cfg.Exchange.BaseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)

	return &Scanner{
		httpClient: client,
		cfg:        cfg.Scanner,
		riskCfg:    cfg.Risk,
		logger:     logger.With("component", "scanner"),
		resultCh:   make(chan ScanResult, 1),
	}
}

// Results returns the channel the engine reads from.
func (s *Scanner) Results() <-chan ScanResult {
	return s.resultCh
}

// Run starts the polling loop. Blocks until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	s.scan(ctx)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

func (s *Scanner) scan(ctx context.Context) {
	instruments, err := s.fetchInstruments(ctx)
	if err != nil {
		s.logger.Error("scan failed", "error", err)
		return
	}

	filtered := s.filterInstruments(instruments)
	if len(filtered) > s.riskCfg.MaxSymbolsActive {
		filtered = filtered[:s.riskCfg.MaxSymbolsActive]
	}

	result := ScanResult{
		Symbols:   filtered,
		ScannedAt: time.Now(),
	}

	s.logger.Info("scan complete",
		"total", len(instruments),
		"selected", len(filtered),
	)

	select {
	case s.resultCh <- result:
	default:
		select {
		case <-s.resultCh:
		default:
		}
		s.resultCh <- result
	}
}

func (s *Scanner) fetchInstruments(ctx context.Context) ([]instrumentResponse, error) {
	var page []instrumentResponse
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"category": "linear"}).
		SetResult(&page).
		Get("/v5/market/instruments-info")
	if err != nil {
		return nil, fmt.Errorf("fetch instruments: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("fetch instruments: status %d", resp.StatusCode())
	}
	return page, nil
}

// normalizeSymbol converts an exchange-native symbol like "BTCUSDT" into
// the normalized "BTC/USDT:USDT" form used across the rest of the engine.
func normalizeSymbol(native string) string {
	const quote = "USDT"
	if strings.HasSuffix(native, quote) && len(native) > len(quote) {
		base := strings.TrimSuffix(native, quote)
		return fmt.Sprintf("%s/%s:%s", base, quote, quote)
	}
	return native
}

// filterInstruments keeps only linear perpetual swaps that are actively
// trading and not on the configured exclusion list.
func (s *Scanner) filterInstruments(instruments []instrumentResponse) []types.MarketInfo {
	excluded := make(map[string]bool, len(s.cfg.ExcludeSymbols))
	for _, sym := range s.cfg.ExcludeSymbols {
		excluded[strings.ToUpper(strings.TrimSpace(sym))] = true
	}

	var result []types.MarketInfo
	for _, inst := range instruments {
		if s.cfg.RequireSwap && inst.ContractType != "LinearPerpetual" {
			continue
		}
		if s.cfg.RequireLinear && inst.ContractType == "InverseFutures" {
			continue
		}
		if inst.Status != "Trading" {
			continue
		}
		if excluded[strings.ToUpper(inst.Symbol)] {
			continue
		}
		result = append(result, types.MarketInfo{
			Symbol:    normalizeSymbol(inst.Symbol),
			ID:        inst.Symbol,
			Type:      "swap",
			Linear:    inst.ContractType != "InverseFutures",
			Active:    inst.Status == "Trading",
			PriceStep: inst.PriceStep,
			QtyStep:   inst.QtyStep,
			MinQty:    inst.MinQty,
			MinCost:   inst.MinCost,
			CMult:     1,
		})
	}
	return result
}
