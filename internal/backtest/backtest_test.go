package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpgrid/internal/gridmath"
)

func testMarket() gridmath.MarketSpec {
	return gridmath.MarketSpec{
		Inverse:   false,
		QtyStep:   0.001,
		PriceStep: 0.01,
		MinQty:    0.001,
		MinCost:   5,
		CMult:     1,
	}
}

func testSide() gridmath.SideConfig {
	return gridmath.SideConfig{
		GridSpan:                        0.4,
		WalletExposureLimit:             1.0,
		MaxNEntryOrders:                 7,
		InitialQtyPct:                   0.01,
		InitialEpriceEmaDist:            0.001,
		EpricePpriceDiff:                0.001,
		EpriceExpBase:                   1.3,
		SecondaryAllocation:             0.1,
		SecondaryPpriceDiff:             0.1,
		MinMarkup:                       0.002,
		MarkupRange:                     0.01,
		NCloseOrders:                    5,
		AutoUnstuckWalletExposureThresh: 0,
		AutoUnstuckEmaDist:              0,
		EmaSpanMin:                      0.5,
		EmaSpanMax:                      2,
	}
}

func testConfig(doLong, doShort bool) Config {
	return Config{
		Market:              testMarket(),
		Spot:                false,
		HedgeMode:           true,
		DoLong:              doLong,
		DoShort:             doShort,
		Long:                testSide(),
		Short:               testSide(),
		StartingBalance:     1000,
		MakerFeeRate:        0.0002,
		LatencySimulationMs: 500,
	}
}

// buildTicks produces a deterministic oscillating price series, one
// one-second print per index, with no synthetic filler ticks.
func buildTicks(n int) []Tick {
	ticks := make([]Tick, n)
	for i := range ticks {
		price := 100 + 6*math.Sin(float64(i)/15.0)
		ticks[i] = Tick{TimestampMs: int64(i) * 1000, Qty: 1, Price: price}
	}
	return ticks
}

func TestRunReturnsEmptySummaryWhenSeriesShorterThanWarmup(t *testing.T) {
	t.Parallel()
	cfg := testConfig(true, true)
	// EmaSpanMax=2 minutes -> warmup needs round(2*60)=120 ticks.
	res := Run(buildTicks(10), cfg)
	assert.Nil(t, res.Fills)
	assert.Nil(t, res.Stats)
}

func TestRunIsDeterministicAcrossIdenticalInputs(t *testing.T) {
	t.Parallel()
	cfg := testConfig(true, true)
	ticks := buildTicks(600)

	res1 := Run(ticks, cfg)
	res2 := Run(ticks, cfg)

	assert.Equal(t, res1.Fills, res2.Fills, "identical ticks and config must replay to identical fills")
	assert.Equal(t, res1.Stats, res2.Stats, "identical ticks and config must replay to identical stats")
}

func TestRunWithBothSidesDisabledNeverFills(t *testing.T) {
	t.Parallel()
	cfg := testConfig(false, false)
	res := Run(buildTicks(600), cfg)

	assert.Empty(t, res.Fills, "no side enabled means no entry or close grid is ever computed")
	assert.NotEmpty(t, res.Stats, "equity stats still tick even with no trading")
}

func TestRunProducesNonDecreasingTickIndices(t *testing.T) {
	t.Parallel()
	cfg := testConfig(true, true)
	res := Run(buildTicks(900), cfg)
	require.NotNil(t, res.Stats)

	for i := 1; i < len(res.Fills); i++ {
		assert.GreaterOrEqual(t, res.Fills[i].TickIndex, res.Fills[i-1].TickIndex)
	}
	for i := 1; i < len(res.Stats); i++ {
		assert.Greater(t, res.Stats[i].TimestampMs, res.Stats[i-1].TimestampMs)
	}
}

func TestRunLongOnlyFillsCarryLongTags(t *testing.T) {
	t.Parallel()
	cfg := testConfig(true, false)
	res := Run(buildTicks(900), cfg)

	for _, f := range res.Fills {
		assert.Contains(t, string(f.Tag), "long_", "long-only run should never emit a short-tagged fill")
	}
}

func TestRunWithBothSidesDisabledHasZeroedSummaryStats(t *testing.T) {
	t.Parallel()
	cfg := testConfig(false, false)
	res := Run(buildTicks(600), cfg)

	assert.Equal(t, 0.0, res.WinRate, "no fills means no closes, so win rate is zero rather than NaN")
	assert.GreaterOrEqual(t, res.MaxDrawdown, 0.0)
	assert.InDelta(t, res.Stats[len(res.Stats)-1].Equity/cfg.StartingBalance-1, res.TotalReturn, 1e-9)
}

func TestSummarizeTotalReturnTracksFinalEquity(t *testing.T) {
	t.Parallel()
	stats := []StatTick{{Equity: 1000}, {Equity: 1100}, {Equity: 1210}}

	totalReturn, _, _ := summarize(nil, stats, 1000)
	assert.InDelta(t, 0.21, totalReturn, 1e-9)
}

func TestSummarizeMaxDrawdownIsLargestPeakToTroughDecline(t *testing.T) {
	t.Parallel()
	// Peak 1200, trough 900 -> drawdown of 300/1200 = 0.25; the final
	// recovery to 1100 must not shrink the recorded maximum.
	stats := []StatTick{{Equity: 1000}, {Equity: 1200}, {Equity: 900}, {Equity: 1100}}

	_, maxDrawdown, _ := summarize(nil, stats, 1000)
	assert.InDelta(t, 0.25, maxDrawdown, 1e-9)
}

func TestSummarizeWinRateCountsOnlyCloseTagsAndStrictlyPositivePnl(t *testing.T) {
	t.Parallel()
	fills := []Fill{
		{Tag: "long_ientry", PnL: 50},  // entry: never counted, even though PnL > 0
		{Tag: "long_nclose", PnL: 10},  // winning close
		{Tag: "long_nclose", PnL: -5},  // losing close
		{Tag: "short_nclose", PnL: 0},  // breakeven close: not a win
		{Tag: "long_bankruptcy", PnL: 1}, // winning bankruptcy close
	}

	_, _, winRate := summarize(fills, nil, 1000)
	assert.InDelta(t, 2.0/4.0, winRate, 1e-9)
}

func TestSummarizeWithNoStatsOrClosesIsAllZero(t *testing.T) {
	t.Parallel()
	totalReturn, maxDrawdown, winRate := summarize(nil, nil, 1000)
	assert.Equal(t, 0.0, totalReturn)
	assert.Equal(t, 0.0, maxDrawdown)
	assert.Equal(t, 0.0, winRate)
}
