package gridmath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func scenarioSideConfig() SideConfig {
	cfg := defaultSideConfig()
	cfg.InitialQtyPct = 0.02
	cfg.WalletExposureLimit = 1.0
	return cfg
}

// No-position case: the approximator returns the full theoretical grid
// anchored at pprice.
func TestApproximateLongGridNoPositionReturnsWholeGrid(t *testing.T) {
	t.Parallel()
	m := defaultMarket()
	cfg := scenarioSideConfig()

	whole := CalcWholeLongEntryGrid(1000, 100, m, cfg)
	approx := ApproximateLongGrid(1000, 0, 100, m, cfg, true)

	assert.Equal(t, len(whole), len(approx))
	assert.InDelta(t, whole[0].Qty, approx[0].Qty, 1e-9)
}

// Seed scenario 6: partial initial fill re-approximation. Theoretical row 0
// qty is 0.2 at price 100; psize is 0.05 at pprice 100, so the approximator
// must return a grid whose row-0 qty is round(0.2-0.05, qty_step) = 0.15.
func TestApproximateLongGridPartialInitialFill(t *testing.T) {
	t.Parallel()
	m := defaultMarket()
	cfg := scenarioSideConfig()

	whole := CalcWholeLongEntryGrid(1000, 100, m, cfg)
	assert.InDelta(t, 0.2, whole[0].Qty, 1e-9)

	grid := ApproximateLongGrid(1000, 0.05, 100, m, cfg, false)
	assert.InDelta(t, 0.15, grid[0].Qty, 1e-9)
}

// Mirror of the partial-fill scenario on the short side.
func TestApproximateShortGridPartialInitialFill(t *testing.T) {
	t.Parallel()
	m := defaultMarket()
	cfg := scenarioSideConfig()

	whole := CalcWholeShortEntryGrid(1000, 100, m, cfg)
	assert.InDelta(t, -0.2, whole[0].Qty, 1e-9)

	grid := ApproximateShortGrid(1000, -0.05, 100, m, cfg, false)
	assert.InDelta(t, -0.15, grid[0].Qty, 1e-9)
}

// When the live position's cumulative size lands within 1% of the last
// rung, the matched-rung branch crops everything after it, leaving
// nothing still to place.
func TestApproximateLongGridMatchedAtLastRungCropsToEmpty(t *testing.T) {
	t.Parallel()
	m := defaultMarket()
	cfg := scenarioSideConfig()

	whole := CalcWholeLongEntryGrid(1000, 100, m, cfg)
	last := whole[len(whole)-1]

	grid := ApproximateLongGrid(1000, last.CumPSize, last.CumPPrice, m, cfg, true)
	assert.Empty(t, grid)
}

// A live position whose (psize, pprice) matches a grid rung within 1%
// relative error returns only the rows still to be filled after it.
func TestApproximateLongGridMatchedRungCropsFilledRows(t *testing.T) {
	t.Parallel()
	m := defaultMarket()
	cfg := scenarioSideConfig()

	whole := CalcWholeLongEntryGrid(1000, 100, m, cfg)
	matchRow := whole[2]

	grid := ApproximateLongGrid(1000, matchRow.CumPSize, matchRow.CumPPrice, m, cfg, true)
	for _, row := range grid {
		assert.Greater(t, row.CumPSize, matchRow.CumPSize*0.99)
	}
}

// ApproximateLongGrid panics on a position with nonzero size but zero
// price, since a real position can never be in that state (P7's inverse).
func TestApproximateLongGridPanicsOnZeroPriceWithSize(t *testing.T) {
	t.Parallel()
	m := defaultMarket()
	cfg := scenarioSideConfig()
	assert.Panics(t, func() {
		ApproximateLongGrid(1000, 0.1, 0, m, cfg, true)
	})
}
