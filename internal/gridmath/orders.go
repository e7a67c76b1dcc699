package gridmath

import "math"

// EntryOrder is one rung of a computed entry ladder: a signed qty
// (positive adds to a long, negative adds to a short), its price, and the
// tag identifying why it exists.
type EntryOrder struct {
	Qty   float64
	Price float64
	Tag   Tag
}

// CalcLongEntryGrid assembles the live set of entry orders a long side
// should currently have resting: an initial entry when flat, an
// auto-unstuck entry when wallet exposure has crossed its threshold, or
// the relevant slice of the approximated re-entry ladder clamped to the
// current best bid.
func CalcLongEntryGrid(balance, psize, pprice, highestBid, lowerEmaBand float64, doLong bool, m MarketSpec, cfg SideConfig) []EntryOrder {
	minEntryQty := CalcMinEntryQty(highestBid, m.Inverse, m.QtyStep, m.MinQty, m.MinCost)
	if !doLong && psize <= minEntryQty {
		return []EntryOrder{{0, 0, tagNone}}
	}

	if psize == 0 {
		entryPrice := math.Min(highestBid, RoundToStep(lowerEmaBand*(1-cfg.InitialEpriceEmaDist), m.PriceStep, RoundDown))
		entryQty := CalcInitialEntryQty(balance, entryPrice, m, cfg.WalletExposureLimit, cfg.InitialQtyPct)
		return []EntryOrder{{entryQty, entryPrice, tagLongIEntry}}
	}

	walletExposure := QtyToCost(psize, pprice, m.Inverse, m.CMult) / balance
	if walletExposure >= cfg.WalletExposureLimit {
		return []EntryOrder{{0, 0, tagNone}}
	}
	if cfg.AutoUnstuckWalletExposureThresh != 0 {
		threshold := cfg.WalletExposureLimit * (1 - cfg.AutoUnstuckWalletExposureThresh) * 0.99
		if walletExposure > threshold {
			autoUnstuckEntryPrice := math.Min(highestBid, RoundToStep(lowerEmaBand*(1-cfg.AutoUnstuckEmaDist), m.PriceStep, RoundDown))
			qty := FindQtyBringingWalletExposureToTarget(balance, psize, pprice, cfg.WalletExposureLimit, autoUnstuckEntryPrice, m)
			return []EntryOrder{{qty, autoUnstuckEntryPrice, tagLongAutoUnstuckEntry}}
		}
	}

	grid := ApproximateLongGrid(balance, psize, pprice, m, cfg, true)
	if len(grid) == 0 {
		return []EntryOrder{{0, 0, tagNone}}
	}

	if CalcDiff(grid[0].CumPPrice, grid[0].Price) < 0.00001 {
		entryPrice := highestBid
		minQty := CalcMinEntryQty(entryPrice, m.Inverse, m.QtyStep, m.MinQty, m.MinCost)
		maxQty := RoundToStep(CostToQty(balance*cfg.WalletExposureLimit*cfg.InitialQtyPct, entryPrice, m.Inverse, m.CMult), m.QtyStep, RoundNearest)
		entryQty := maxF(minQty, math.Min(maxQty, grid[0].Qty))
		return []EntryOrder{{entryQty, entryPrice, tagLongIEntry}}
	}

	var entries []EntryOrder
	for i, row := range grid {
		if row.CumPSize < psize*1.05 || row.Price > pprice*0.9995 {
			continue
		}
		if row.CumWE > cfg.WalletExposureLimit*1.01 {
			break
		}
		entryPrice := math.Min(highestBid, row.Price)
		minQty := CalcMinEntryQty(entryPrice, m.Inverse, m.QtyStep, m.MinQty, m.MinCost)
		qty := maxF(minQty, row.Qty)
		tag := tagLongPrimaryRentry
		if i == len(grid)-1 && cfg.SecondaryAllocation > 0.05 {
			tag = tagLongSecondaryRentry
		}
		if len(entries) == 0 || entries[len(entries)-1].Price != entryPrice {
			entries = append(entries, EntryOrder{qty, entryPrice, tag})
		}
	}
	if len(entries) == 0 {
		return []EntryOrder{{0, 0, tagNone}}
	}
	return entries
}

// CalcShortEntryGrid mirrors CalcLongEntryGrid for short positions.
func CalcShortEntryGrid(balance, psize, pprice, lowestAsk, upperEmaBand float64, doShort bool, m MarketSpec, cfg SideConfig) []EntryOrder {
	minEntryQty := CalcMinEntryQty(lowestAsk, m.Inverse, m.QtyStep, m.MinQty, m.MinCost)
	absPsize := absF(psize)
	if !doShort && absPsize <= minEntryQty {
		return []EntryOrder{{0, 0, tagNone}}
	}

	if psize == 0 {
		entryPrice := math.Max(lowestAsk, RoundToStep(upperEmaBand*(1+cfg.InitialEpriceEmaDist), m.PriceStep, RoundUp))
		entryQty := CalcInitialEntryQty(balance, entryPrice, m, cfg.WalletExposureLimit, cfg.InitialQtyPct)
		return []EntryOrder{{-entryQty, entryPrice, tagShortIEntry}}
	}

	walletExposure := QtyToCost(psize, pprice, m.Inverse, m.CMult) / balance
	if walletExposure >= cfg.WalletExposureLimit {
		return []EntryOrder{{0, 0, tagNone}}
	}
	if cfg.AutoUnstuckWalletExposureThresh != 0 {
		threshold := cfg.WalletExposureLimit * (1 - cfg.AutoUnstuckWalletExposureThresh) * 0.99
		if walletExposure > threshold {
			autoUnstuckEntryPrice := math.Max(lowestAsk, RoundToStep(upperEmaBand*(1+cfg.AutoUnstuckEmaDist), m.PriceStep, RoundUp))
			qty := FindQtyBringingWalletExposureToTarget(balance, psize, pprice, cfg.WalletExposureLimit, autoUnstuckEntryPrice, m)
			return []EntryOrder{{-qty, autoUnstuckEntryPrice, tagShortAutoUnstuckEntry}}
		}
	}

	grid := ApproximateShortGrid(balance, psize, pprice, m, cfg, true)
	if len(grid) == 0 {
		return []EntryOrder{{0, 0, tagNone}}
	}

	if CalcDiff(grid[0].CumPPrice, grid[0].Price) < 0.00001 {
		entryPrice := lowestAsk
		minQty := CalcMinEntryQty(entryPrice, m.Inverse, m.QtyStep, m.MinQty, m.MinCost)
		maxQty := RoundToStep(CostToQty(balance*cfg.WalletExposureLimit*cfg.InitialQtyPct, entryPrice, m.Inverse, m.CMult), m.QtyStep, RoundNearest)
		entryQty := -maxF(minQty, math.Min(maxQty, absF(grid[0].Qty)))
		return []EntryOrder{{entryQty, entryPrice, tagShortIEntry}}
	}

	var entries []EntryOrder
	for i, row := range grid {
		if row.CumPSize > psize*1.05 || row.Price < pprice*0.9995 {
			continue
		}
		entryPrice := math.Max(lowestAsk, row.Price)
		minQty := CalcMinEntryQty(entryPrice, m.Inverse, m.QtyStep, m.MinQty, m.MinCost)
		qty := -maxF(minQty, absF(row.Qty))
		tag := tagShortPrimaryRentry
		if i == len(grid)-1 && cfg.SecondaryAllocation > 0.05 {
			tag = tagShortSecondaryRentry
		}
		if len(entries) == 0 || entries[len(entries)-1].Price != entryPrice {
			entries = append(entries, EntryOrder{qty, entryPrice, tag})
		}
	}
	if len(entries) == 0 {
		return []EntryOrder{{0, 0, tagNone}}
	}
	return entries
}
