package gridmath

import "sort"

// ApproximateLongGrid reconstructs the remaining entry ladder for an
// existing long position by searching for the initial-entry-price guess
// whose theoretical whole grid reproduces (psize, pprice), then cropping
// off the rungs already filled. panics if pprice is zero: a position
// cannot exist without an average price.
func ApproximateLongGrid(balance, psize, pprice float64, m MarketSpec, cfg SideConfig, crop bool) []GridRow {
	evalAt := func(guess float64) ([]GridRow, float64, int) {
		guess = RoundToStep(guess, m.PriceStep, RoundNearest)
		grid := CalcWholeLongEntryGrid(balance, guess, m, cfg)
		diff, idx := closestNode(grid, psize)
		return grid, diff, idx
	}

	if pprice == 0 {
		panic("gridmath: cannot make grid without pprice")
	}
	if psize == 0 {
		return CalcWholeLongEntryGrid(balance, pprice, m, cfg)
	}

	grid, _, i := evalAt(pprice)
	grid, diff, i := evalAt(pprice * (pprice / grid[i].CumPPrice))
	if diff < 0.01 {
		grid, _, i = evalAt(grid[0].Price * (pprice / grid[i].CumPPrice))
		if crop {
			return grid[i+1:]
		}
		return grid
	}

	k := firstNodeAboveLong(grid, psize)
	if k == 0 {
		minIEntryQty := CalcMinEntryQty(grid[0].Price, m.Inverse, m.QtyStep, m.MinQty, m.MinCost)
		grid[0].Qty = maxF(minIEntryQty, RoundToStep(grid[0].Qty-psize, m.QtyStep, RoundNearest))
		grid[0].CumPSize = RoundToStep(psize+grid[0].Qty, m.QtyStep, RoundNearest)
		grid[0].CumWE = QtyToCost(grid[0].CumPSize, grid[0].Price, m.Inverse, m.CMult) / balance
		return grid
	}
	if k == len(grid) {
		return nil
	}

	for iter := 0; iter < 5; iter++ {
		remainingQty := RoundToStep(grid[k].CumPSize-psize, m.QtyStep, RoundNearest)
		_, npprice := CalcNewPSizePPrice(psize, pprice, remainingQty, grid[k].Price, m.QtyStep)
		grid, _, i = evalAt(npprice)
		if k >= len(grid) {
			k = len(grid) - 1
			continue
		}
		grid, _, _ = evalAt(npprice * (npprice / grid[k].CumPPrice))
		k = firstNodeAboveLong(grid, psize)
	}
	minEntryQty := CalcMinEntryQty(grid[k].Price, m.Inverse, m.QtyStep, m.MinQty, m.MinCost)
	grid[k].Qty = maxF(minEntryQty, RoundToStep(grid[k].CumPSize-psize, m.QtyStep, RoundNearest))
	if crop {
		return grid[k:]
	}
	return grid
}

// ApproximateShortGrid is the short-side mirror of ApproximateLongGrid.
func ApproximateShortGrid(balance, psize, pprice float64, m MarketSpec, cfg SideConfig, crop bool) []GridRow {
	absPsize := absF(psize)

	evalAt := func(guess float64) ([]GridRow, float64, int) {
		guess = RoundToStep(guess, m.PriceStep, RoundNearest)
		grid := CalcWholeShortEntryGrid(balance, guess, m, cfg)
		diff, idx := closestNodeAbs(grid, absPsize)
		return grid, diff, idx
	}

	if pprice == 0 {
		panic("gridmath: cannot make grid without pprice")
	}
	if psize == 0 {
		return CalcWholeShortEntryGrid(balance, pprice, m, cfg)
	}

	grid, _, i := evalAt(pprice)
	grid, diff, i := evalAt(pprice * (pprice / grid[i].CumPPrice))
	if diff < 0.01 {
		grid, _, i = evalAt(grid[0].Price * (pprice / grid[i].CumPPrice))
		if crop {
			return grid[i+1:]
		}
		return grid
	}

	k := firstNodeAboveShort(grid, absPsize)
	if k == 0 {
		minIEntryQty := CalcMinEntryQty(grid[0].Price, m.Inverse, m.QtyStep, m.MinQty, m.MinCost)
		grid[0].Qty = -maxF(minIEntryQty, RoundToStep(absF(grid[0].Qty)-absPsize, m.QtyStep, RoundNearest))
		grid[0].CumPSize = RoundToStep(psize+grid[0].Qty, m.QtyStep, RoundNearest)
		grid[0].CumWE = QtyToCost(grid[0].CumPSize, grid[0].Price, m.Inverse, m.CMult) / balance
		return grid
	}
	if k == len(grid) {
		return nil
	}

	for iter := 0; iter < 5; iter++ {
		remainingQty := RoundToStep(grid[k].CumPSize-psize, m.QtyStep, RoundNearest)
		npsize, npprice := CalcNewPSizePPrice(psize, pprice, remainingQty, grid[k].Price, m.QtyStep)
		grid, _, _ = evalAt(npprice)
		if k >= len(grid) {
			k = len(grid) - 1
			continue
		}
		grid, _, _ = evalAt(npprice * (npprice / grid[k].CumPPrice))
		k = firstNodeAboveShort(grid, absPsize)
		_ = npsize
	}
	minEntryQty := CalcMinEntryQty(grid[k].Price, m.Inverse, m.QtyStep, m.MinQty, m.MinCost)
	grid[k].Qty = -maxF(minEntryQty, RoundToStep(absF(grid[k].CumPSize)-absPsize, m.QtyStep, RoundNearest))
	if crop {
		return grid[k:]
	}
	return grid
}

// closestNode returns the relative distance and index of the grid row
// whose cumulative position size is nearest to target.
func closestNode(grid []GridRow, target float64) (float64, int) {
	type cand struct {
		diff float64
		idx  int
	}
	cands := make([]cand, len(grid))
	for i, row := range grid {
		cands[i] = cand{absF(row.CumPSize-target) / target, i}
	}
	sort.Slice(cands, func(a, b int) bool { return cands[a].diff < cands[b].diff })
	return cands[0].diff, cands[0].idx
}

func closestNodeAbs(grid []GridRow, absTarget float64) (float64, int) {
	type cand struct {
		diff float64
		idx  int
	}
	cands := make([]cand, len(grid))
	for i, row := range grid {
		cands[i] = cand{absF(absF(row.CumPSize)-absTarget) / absTarget, i}
	}
	sort.Slice(cands, func(a, b int) bool { return cands[a].diff < cands[b].diff })
	return cands[0].diff, cands[0].idx
}

func firstNodeAboveLong(grid []GridRow, psize float64) int {
	k := 0
	for k < len(grid)-1 && grid[k].CumPSize <= psize*0.99999 {
		k++
	}
	return k
}

func firstNodeAboveShort(grid []GridRow, absPsize float64) int {
	k := 0
	for k < len(grid)-1 && absF(grid[k].CumPSize) <= absPsize*0.99999 {
		k++
	}
	return k
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
