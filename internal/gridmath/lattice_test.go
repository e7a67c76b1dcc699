package gridmath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundToStepDirections(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.25, RoundToStep(1.241, 0.05, RoundUp), 1e-9)
	assert.InDelta(t, 1.20, RoundToStep(1.241, 0.05, RoundDown), 1e-9)
	assert.InDelta(t, 1.25, RoundToStep(1.26, 0.05, RoundNearest), 1e-9)
}

func TestRoundToStepZeroStepIsIdentity(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 3.14159, RoundToStep(3.14159, 0, RoundNearest))
}

// P1 (lattice closure, applied to the rounding primitive directly): a value
// rounded onto a step lattice is an exact multiple of that step.
func TestRoundToStepLandsOnLattice(t *testing.T) {
	t.Parallel()
	step := 0.001
	for _, x := range []float64{0.1234567, 1.0000001, 99.9994999, 0.0005} {
		r := RoundToStep(x, step, RoundNearest)
		multiple := r / step
		assert.InDelta(t, multiple, math.Round(multiple), 1e-6, "rounded value %v should be a near-integer multiple of step %v", r, step)
	}
}

func TestCostQtyRoundTripLinear(t *testing.T) {
	t.Parallel()
	price := 27123.5
	qty := 0.412
	cost := QtyToCost(qty, price, false, 1)
	back := CostToQty(cost, price, false, 1)
	assert.InDelta(t, qty, back, 1e-9)
}

func TestCostQtyRoundTripInverse(t *testing.T) {
	t.Parallel()
	price := 50000.0
	qty := 120.0
	cMult := 100.0
	cost := QtyToCost(qty, price, true, cMult)
	back := CostToQty(cost, price, true, cMult)
	assert.InDelta(t, qty, back, 1e-6)
}

func TestCalcDiffSymmetricAroundEqualValues(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.0, CalcDiff(100, 100))
	assert.InDelta(t, 0.1, CalcDiff(110, 100), 1e-9)
}

// P8: long PnL at (entry, close) equals short PnL at (close, entry), same
// qty magnitude.
func TestPnlSymmetryLongShort(t *testing.T) {
	t.Parallel()
	entry, close, qty := 100.0, 110.0, 2.0

	longPnl := CalcLongPnl(entry, close, qty, false, 1)
	shortPnl := CalcShortPnl(close, entry, qty, false, 1)
	assert.InDelta(t, longPnl, shortPnl, 1e-9)

	longPnlInv := CalcLongPnl(entry, close, qty, true, 5)
	shortPnlInv := CalcShortPnl(close, entry, qty, true, 5)
	assert.InDelta(t, longPnlInv, shortPnlInv, 1e-9)
}

func TestCalcEquitySkipsZeroSides(t *testing.T) {
	t.Parallel()
	// Only a long position is open; short side must not contribute.
	equity := CalcEquity(1000, 1, 100, 0, 0, 110, false, 1)
	assert.InDelta(t, 1010, equity, 1e-9)

	equity = CalcEquity(1000, 0, 0, 0, 0, 110, false, 1)
	assert.Equal(t, 1000.0, equity)
}

func TestCalcEmaVecAdvancesEachSpanIndependently(t *testing.T) {
	t.Parallel()
	spans := EmaSpansMinutes(5, 20)
	alphas, oneMinus := EmaAlphas(spans)
	prev := []float64{100, 100, 100}

	next := CalcEmaVec(alphas, oneMinus, prev, 110)
	for i := range next {
		assert.Greater(t, next[i], 100.0)
		assert.Less(t, next[i], 110.0)
	}
	// The shortest span reacts fastest to the new sample.
	assert.Greater(t, next[0], next[2])
}
