package gridmath

// MarketSpec carries the lattice/contract facts needed by every grid
// computation: rounding quanta, minimum order size, and the linear/inverse
// cost model.
type MarketSpec struct {
	Inverse   bool
	QtyStep   float64
	PriceStep float64
	MinQty    float64
	MinCost   float64
	CMult     float64
}

// SideConfig is the 14-knob per-side grid configuration.
type SideConfig struct {
	GridSpan                        float64
	WalletExposureLimit             float64
	MaxNEntryOrders                 int
	InitialQtyPct                   float64
	InitialEpriceEmaDist            float64
	EpricePpriceDiff                float64
	EpriceExpBase                   float64
	SecondaryAllocation             float64
	SecondaryPpriceDiff             float64
	MinMarkup                       float64
	MarkupRange                     float64
	NCloseOrders                    int
	AutoUnstuckWalletExposureThresh float64
	AutoUnstuckEmaDist              float64
	EmaSpanMin                      float64
	EmaSpanMax                      float64
}

// GridRow is one rung of a computed entry grid: the fill at this rung and
// the cumulative position/wallet-exposure state after it.
type GridRow struct {
	Qty       float64
	Price     float64
	CumPSize  float64
	CumPPrice float64
	CumWE     float64
}
