package gridmath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMarket() MarketSpec {
	return MarketSpec{
		Inverse:   false,
		QtyStep:   0.001,
		PriceStep: 0.01,
		MinQty:    0.001,
		MinCost:   5,
		CMult:     1,
	}
}

func testLongSide() SideConfig {
	return SideConfig{
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
		EmaSpanMin:                      5,
		EmaSpanMax:                      20,
	}
}

// P1 + P2, flat-position initial entry: the emitted order sits on the price
// and qty lattice and clears the effective minimum at its price.
func TestCalcLongEntryGridInitialEntryRespectsLattice(t *testing.T) {
	t.Parallel()
	m := testMarket()
	cfg := testLongSide()

	orders := CalcLongEntryGrid(10000, 0, 0, 30000, 29500, true, m, cfg)
	require.Len(t, orders, 1)
	o := orders[0]

	assert.Greater(t, o.Qty, 0.0)
	assert.InDelta(t, o.Price/m.PriceStep, math.Round(o.Price/m.PriceStep), 1e-6)
	assert.InDelta(t, 0.0, math.Mod(o.Qty, m.QtyStep), 1e-6)

	minQty := CalcMinEntryQty(o.Price, m.Inverse, m.QtyStep, m.MinQty, m.MinCost)
	assert.GreaterOrEqual(t, o.Qty, minQty-1e-9)
	assert.Equal(t, tagLongIEntry, o.Tag)
}

func TestCalcShortEntryGridInitialEntryRespectsLattice(t *testing.T) {
	t.Parallel()
	m := testMarket()
	cfg := testLongSide()

	orders := CalcShortEntryGrid(10000, 0, 0, 30000, 30500, true, m, cfg)
	require.Len(t, orders, 1)
	o := orders[0]

	assert.Less(t, o.Qty, 0.0)
	assert.InDelta(t, o.Price/m.PriceStep, math.Round(o.Price/m.PriceStep), 1e-6)
	assert.InDelta(t, 0.0, math.Mod(math.Abs(o.Qty), m.QtyStep), 1e-6)
	assert.Equal(t, tagShortIEntry, o.Tag)
}

func TestCalcLongEntryGridReturnsNoneWhenWalletExposureAtLimit(t *testing.T) {
	t.Parallel()
	m := testMarket()
	cfg := testLongSide()
	// psize*pprice/balance already at the wallet exposure limit.
	orders := CalcLongEntryGrid(1000, 1000, 1, 1.5, 0.9, true, m, cfg)
	require.Len(t, orders, 1)
	assert.Equal(t, tagNone, orders[0].Tag)
	assert.Equal(t, 0.0, orders[0].Qty)
}

func TestCalcShortEntryGridReturnsNoneWhenWalletExposureAtLimit(t *testing.T) {
	t.Parallel()
	m := testMarket()
	cfg := testLongSide()
	orders := CalcShortEntryGrid(1000, -1000, 1, 0.9, 1.5, true, m, cfg)
	require.Len(t, orders, 1)
	assert.Equal(t, tagNone, orders[0].Tag)
	assert.Equal(t, 0.0, orders[0].Qty)
}
