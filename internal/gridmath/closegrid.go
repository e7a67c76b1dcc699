package gridmath

import "math"

// CloseOrder is one rung of a computed close ladder: a signed qty (negative
// reduces a long, positive reduces a short), its price, and the tag
// identifying why it exists.
type CloseOrder struct {
	Qty   float64
	Price float64
	Tag   Tag
}

// CalcLongCloseGrid lays out the take-profit ladder for an open long
// position between its markup floor and markup ceiling, collapsing to a
// single breakeven-or-better close when the position is too small to
// split, and preferring an auto-unstuck close priced off the upper EMA
// band when wallet exposure has breached its auto-unstuck threshold.
func CalcLongCloseGrid(balance, psize, pprice, lowestAsk, upperEmaBand float64, spot bool, m MarketSpec, cfg SideConfig) []CloseOrder {
	if psize == 0 {
		return []CloseOrder{{0, 0, tagNone}}
	}
	minm := pprice * (1 + cfg.MinMarkup)
	if spot && RoundToStep(psize, m.QtyStep, RoundDown) < CalcMinEntryQty(minm, m.Inverse, m.QtyStep, m.MinQty, m.MinCost) {
		return []CloseOrder{{0, 0, tagNone}}
	}
	if psize < CostToQty(balance, pprice, m.Inverse, m.CMult)*cfg.WalletExposureLimit*cfg.InitialQtyPct*0.5 {
		breakevenMarkup := 0.00041
		if spot {
			breakevenMarkup = 0.0021
		}
		closePrice := math.Max(lowestAsk, RoundToStep(pprice*(1+breakevenMarkup), m.PriceStep, RoundUp))
		return []CloseOrder{{-RoundToStep(psize, m.QtyStep, RoundNearest), closePrice, tagLongClose}}
	}

	var closePrices []float64
	for _, p := range Linspace(minm, pprice*(1+cfg.MinMarkup+cfg.MarkupRange), cfg.NCloseOrders) {
		rp := RoundToStep(p, m.PriceStep, RoundUp)
		if rp >= lowestAsk {
			closePrices = append(closePrices, rp)
		}
	}
	if len(closePrices) == 0 {
		return []CloseOrder{{-psize, lowestAsk, tagLongClose}}
	}
	if len(closePrices) == 1 {
		return []CloseOrder{{-psize, closePrices[0], tagLongClose}}
	}

	walletExposure := QtyToCost(psize, pprice, m.Inverse, m.CMult) / balance
	threshold := cfg.WalletExposureLimit * (1 - cfg.AutoUnstuckWalletExposureThresh) * 1.01
	if cfg.AutoUnstuckWalletExposureThresh != 0 && walletExposure > threshold {
		autoUnstuckPrice := math.Max(lowestAsk, RoundToStep(upperEmaBand*(1+cfg.AutoUnstuckEmaDist), m.PriceStep, RoundUp))
		if autoUnstuckPrice < closePrices[0] {
			qty := FindLongCloseQtyBringingWalletExposureToTarget(balance, psize, pprice, threshold, autoUnstuckPrice, m)
			if qty > CalcMinEntryQty(autoUnstuckPrice, m.Inverse, m.QtyStep, m.MinQty, m.MinCost) {
				return []CloseOrder{{-qty, autoUnstuckPrice, tagLongAutoUnstuckClose}}
			}
		}
	}

	minCloseQty := CalcMinEntryQty(closePrices[0], m.Inverse, m.QtyStep, m.MinQty, m.MinCost)
	defaultQty := RoundToStep(psize/float64(len(closePrices)), m.QtyStep, RoundDown)
	if defaultQty == 0 {
		return []CloseOrder{{-psize, closePrices[0], tagLongClose}}
	}
	defaultQty = maxF(minCloseQty, defaultQty)

	var closes []CloseOrder
	remaining := psize
	for _, price := range closePrices {
		floor := maxF(minCloseQty, maxF(CostToQty(balance, price, m.Inverse, m.CMult)*cfg.WalletExposureLimit*cfg.InitialQtyPct*0.5, defaultQty*0.5))
		if remaining < floor {
			break
		}
		closeQty := math.Min(remaining, maxF(defaultQty, minCloseQty))
		closes = append(closes, CloseOrder{-closeQty, price, tagLongClose})
		remaining = RoundToStep(remaining-closeQty, m.QtyStep, RoundNearest)
	}
	if remaining != 0 {
		if len(closes) > 0 {
			last := &closes[len(closes)-1]
			last.Qty = RoundToStep(last.Qty-remaining, m.QtyStep, RoundNearest)
		} else {
			closes = []CloseOrder{{-psize, closePrices[0], tagLongClose}}
		}
	}
	return closes
}

// CalcShortCloseGrid mirrors CalcLongCloseGrid for short positions.
func CalcShortCloseGrid(balance, psize, pprice, highestBid, lowerEmaBand float64, spot bool, m MarketSpec, cfg SideConfig) []CloseOrder {
	if psize == 0 {
		return []CloseOrder{{0, 0, tagNone}}
	}
	minm := pprice * (1 - cfg.MinMarkup)
	absPsize := absF(psize)
	if spot && RoundToStep(absPsize, m.QtyStep, RoundDown) < CalcMinEntryQty(minm, m.Inverse, m.QtyStep, m.MinQty, m.MinCost) {
		return []CloseOrder{{0, 0, tagNone}}
	}
	if absPsize < CostToQty(balance, pprice, m.Inverse, m.CMult)*cfg.WalletExposureLimit*cfg.InitialQtyPct*0.5 {
		breakevenMarkup := 0.00041
		if spot {
			breakevenMarkup = 0.0021
		}
		closePrice := math.Min(highestBid, RoundToStep(pprice*(1-breakevenMarkup), m.PriceStep, RoundDown))
		return []CloseOrder{{RoundToStep(absPsize, m.QtyStep, RoundNearest), closePrice, tagShortClose}}
	}

	var closePrices []float64
	for _, p := range Linspace(minm, pprice*(1-cfg.MinMarkup-cfg.MarkupRange), cfg.NCloseOrders) {
		rp := RoundToStep(p, m.PriceStep, RoundDown)
		if rp <= highestBid {
			closePrices = append(closePrices, rp)
		}
	}
	if len(closePrices) == 0 {
		return []CloseOrder{{RoundToStep(absPsize, m.QtyStep, RoundNearest), highestBid, tagShortClose}}
	}
	if len(closePrices) == 1 {
		return []CloseOrder{{RoundToStep(absPsize, m.QtyStep, RoundNearest), closePrices[0], tagShortClose}}
	}

	walletExposure := QtyToCost(psize, pprice, m.Inverse, m.CMult) / balance
	threshold := cfg.WalletExposureLimit * (1 - cfg.AutoUnstuckWalletExposureThresh) * 1.01
	if cfg.AutoUnstuckWalletExposureThresh != 0 && walletExposure > threshold {
		autoUnstuckPrice := math.Min(highestBid, RoundToStep(lowerEmaBand*(1-cfg.AutoUnstuckEmaDist), m.PriceStep, RoundDown))
		if autoUnstuckPrice > closePrices[0] {
			qty := FindShortCloseQtyBringingWalletExposureToTarget(balance, psize, pprice, threshold, autoUnstuckPrice, m)
			if qty > CalcMinEntryQty(autoUnstuckPrice, m.Inverse, m.QtyStep, m.MinQty, m.MinCost) {
				return []CloseOrder{{qty, autoUnstuckPrice, tagShortAutoUnstuckClose}}
			}
		}
	}

	minCloseQty := CalcMinEntryQty(closePrices[0], m.Inverse, m.QtyStep, m.MinQty, m.MinCost)
	defaultQty := RoundToStep(absPsize/float64(len(closePrices)), m.QtyStep, RoundDown)
	if defaultQty == 0 {
		return []CloseOrder{{RoundToStep(absPsize, m.QtyStep, RoundNearest), closePrices[0], tagShortClose}}
	}
	defaultQty = maxF(minCloseQty, defaultQty)

	var closes []CloseOrder
	remaining := RoundToStep(absPsize, m.QtyStep, RoundNearest)
	for _, price := range closePrices {
		floor := maxF(minCloseQty, maxF(CostToQty(balance, price, m.Inverse, m.CMult)*cfg.WalletExposureLimit*cfg.InitialQtyPct*0.5, defaultQty*0.5))
		if remaining < floor {
			break
		}
		closeQty := math.Min(remaining, maxF(defaultQty, minCloseQty))
		closes = append(closes, CloseOrder{closeQty, price, tagShortClose})
		remaining = RoundToStep(remaining-closeQty, m.QtyStep, RoundNearest)
	}
	if remaining != 0 {
		if len(closes) > 0 {
			last := &closes[len(closes)-1]
			last.Qty = RoundToStep(last.Qty+remaining, m.QtyStep, RoundNearest)
		} else {
			closes = []CloseOrder{{absPsize, closePrices[0], tagShortClose}}
		}
	}
	return closes
}
