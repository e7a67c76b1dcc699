package gridmath

import "math"

// calcLongEntryQty solves the rung qty that, once filled, brings the
// cumulative position's entry-price gap from the rung price down to
// exactly epricePpriceDiff (fractional).
func calcLongEntryQty(psize, pprice, entryPrice, epricePpriceDiff float64) float64 {
	return -(psize * (entryPrice*epricePpriceDiff + entryPrice - pprice) / (entryPrice * epricePpriceDiff))
}

func calcShortEntryQty(psize, pprice, entryPrice, epricePpriceDiff float64) float64 {
	return -((psize * (entryPrice*(epricePpriceDiff-1) + pprice)) / (entryPrice * epricePpriceDiff))
}

// CalcInitialEntryQty is the size of the very first grid rung: the larger
// of the effective minimum and the qty that spends
// balance*wallet_exposure_limit*initial_qty_pct at initialEntryPrice.
func CalcInitialEntryQty(balance, initialEntryPrice float64, m MarketSpec, walletExposureLimit, initialQtyPct float64) float64 {
	min := CalcMinEntryQty(initialEntryPrice, m.Inverse, m.QtyStep, m.MinQty, m.MinCost)
	fromBudget := RoundToStep(CostToQty(balance*walletExposureLimit*initialQtyPct, initialEntryPrice, m.Inverse, m.CMult), m.QtyStep, RoundNearest)
	return math.Max(min, fromBudget)
}

// FindQtyBringingWalletExposureToTarget solves, by two-point interpolation,
// the additional entry qty at entryPrice whose fill brings wallet exposure
// up to walletExposureLimit. Returns 0 if already within 2% of the limit.
func FindQtyBringingWalletExposureToTarget(balance, psize, pprice, walletExposureLimit, entryPrice float64, m MarketSpec) float64 {
	we := QtyToCost(psize, pprice, m.Inverse, m.CMult) / balance
	if we >= walletExposureLimit*0.98 {
		return 0
	}
	guess1 := RoundToStep(CostToQty(balance*(walletExposureLimit-we), entryPrice, m.Inverse, m.CMult), m.QtyStep, RoundNearest)
	guess2 := RoundToStep(math.Max(guess1*1.2, guess1+m.QtyStep), m.QtyStep, RoundNearest)
	val1 := CalcWalletExposureIfFilled(balance, psize, pprice, guess1, entryPrice, m.Inverse, m.CMult, m.QtyStep)
	val2 := CalcWalletExposureIfFilled(balance, psize, pprice, guess2, entryPrice, m.Inverse, m.CMult, m.QtyStep)
	guess := RoundToStep(Interpolate(walletExposureLimit, []float64{val1, val2}, []float64{guess1, guess2}), m.QtyStep, RoundNearest)
	// debug trace intentionally omitted in production build: the source
	// prints a diagnostic when residual error exceeds 15%, we accept the
	// best guess regardless per the solver's documented tolerance.
	return guess
}

// FindLongCloseQtyBringingWalletExposureToTarget solves the close qty at
// closePrice whose fill (PnL credited to balance) brings long wallet
// exposure down to walletExposureTarget.
func FindLongCloseQtyBringingWalletExposureToTarget(balance, psize, pprice, walletExposureTarget, closePrice float64, m MarketSpec) float64 {
	we := QtyToCost(psize, pprice, m.Inverse, m.CMult) / balance
	if we <= walletExposureTarget {
		return 0
	}
	guess1 := RoundToStep(CostToQty(balance*(we-walletExposureTarget), closePrice, m.Inverse, m.CMult), m.QtyStep, RoundNearest)
	guess2 := RoundToStep(math.Max(guess1*1.2, guess1+m.QtyStep), m.QtyStep, RoundNearest)
	evalWE := func(g float64) float64 {
		return QtyToCost(absF(psize)-g, pprice, m.Inverse, m.CMult) /
			(balance + CalcLongPnl(pprice, closePrice, g, m.Inverse, m.CMult))
	}
	val1, val2 := evalWE(guess1), evalWE(guess2)
	guess := RoundToStep(Interpolate(walletExposureTarget, []float64{val1, val2}, []float64{guess1, guess2}), m.QtyStep, RoundNearest)
	val := evalWE(guess)
	if absF(val-walletExposureTarget)/walletExposureTarget > 0.15 {
		guess = RoundToStep(Interpolate(walletExposureTarget, []float64{val1, val}, []float64{guess1, guess}), m.QtyStep, RoundNearest)
	}
	return guess
}

// FindShortCloseQtyBringingWalletExposureToTarget mirrors
// FindLongCloseQtyBringingWalletExposureToTarget for short closes.
func FindShortCloseQtyBringingWalletExposureToTarget(balance, psize, pprice, walletExposureTarget, closePrice float64, m MarketSpec) float64 {
	we := QtyToCost(psize, pprice, m.Inverse, m.CMult) / balance
	if we <= walletExposureTarget {
		return 0
	}
	guess1 := RoundToStep(CostToQty(balance*(we-walletExposureTarget), closePrice, m.Inverse, m.CMult), m.QtyStep, RoundNearest)
	guess2 := RoundToStep(math.Max(guess1*1.2, guess1+m.QtyStep), m.QtyStep, RoundNearest)
	evalWE := func(g float64) float64 {
		return QtyToCost(absF(psize)-g, pprice, m.Inverse, m.CMult) /
			(balance + CalcShortPnl(pprice, closePrice, g, m.Inverse, m.CMult))
	}
	val1, val2 := evalWE(guess1), evalWE(guess2)
	guess := RoundToStep(Interpolate(walletExposureTarget, []float64{val1, val2}, []float64{guess1, guess2}), m.QtyStep, RoundNearest)
	val := evalWE(guess)
	if absF(val-walletExposureTarget)/walletExposureTarget > 0.15 {
		guess = RoundToStep(Interpolate(walletExposureTarget, []float64{val1, val}, []float64{guess1, guess}), m.QtyStep, RoundNearest)
	}
	return guess
}

// evalLongEntryGrid builds max_n_entry_orders rungs with given prices
// (computed from basespace unless eprices is supplied), row 0 sized per
// CalcInitialEntryQty and every later row solved algebraically from the
// weighting-adjusted eprice/pprice gap.
func evalLongEntryGrid(balance, initialEntryPrice float64, m MarketSpec, cfg SideConfig, epricePprice float64, weighting float64, eprices []float64, prevPPrice *float64) []GridRow {
	n := cfg.MaxNEntryOrders
	prices := eprices
	if prices == nil {
		prices = make([]float64, n)
		for i, p := range Basespace(initialEntryPrice, initialEntryPrice*(1-cfg.GridSpan), cfg.EpriceExpBase, n) {
			prices[i] = RoundToStep(p, m.PriceStep, RoundDown)
		}
	} else {
		n = len(prices)
	}

	grid := make([]GridRow, n)
	grid[0].Price = prices[0]
	grid[0].Qty = CalcInitialEntryQty(balance, initialEntryPrice, m, cfg.WalletExposureLimit, cfg.InitialQtyPct)
	psize := grid[0].Qty
	pprice := grid[0].Price
	if prevPPrice != nil {
		pprice = *prevPPrice
	}
	grid[0].CumPSize = psize
	grid[0].CumPPrice = pprice
	grid[0].CumWE = QtyToCost(psize, pprice, m.Inverse, m.CMult) / balance

	for i := 1; i < n; i++ {
		grid[i].Price = prices[i]
		adjDiff := epricePprice * (1 + grid[i-1].CumWE*weighting)
		qty := RoundToStep(calcLongEntryQty(psize, pprice, grid[i].Price, adjDiff), m.QtyStep, RoundNearest)
		if qty < CalcMinEntryQty(grid[i].Price, m.Inverse, m.QtyStep, m.MinQty, m.MinCost) {
			qty = 0
		}
		psize, pprice = CalcNewPSizePPrice(psize, pprice, qty, grid[i].Price, m.QtyStep)
		grid[i].Qty = qty
		grid[i].CumPSize = psize
		grid[i].CumPPrice = pprice
		grid[i].CumWE = QtyToCost(psize, pprice, m.Inverse, m.CMult) / balance
	}
	return grid
}

// evalShortEntryGrid mirrors evalLongEntryGrid with negative quantities and
// prices rising away from the initial entry.
func evalShortEntryGrid(balance, initialEntryPrice float64, m MarketSpec, cfg SideConfig, epricePprice float64, weighting float64, eprices []float64, prevPPrice *float64) []GridRow {
	n := cfg.MaxNEntryOrders
	prices := eprices
	if prices == nil {
		prices = make([]float64, n)
		for i, p := range Basespace(initialEntryPrice, initialEntryPrice*(1+cfg.GridSpan), cfg.EpriceExpBase, n) {
			prices[i] = RoundToStep(p, m.PriceStep, RoundUp)
		}
	} else {
		n = len(prices)
	}

	grid := make([]GridRow, n)
	grid[0].Price = prices[0]
	grid[0].Qty = -CalcInitialEntryQty(balance, initialEntryPrice, m, cfg.WalletExposureLimit, cfg.InitialQtyPct)
	psize := grid[0].Qty
	pprice := grid[0].Price
	if prevPPrice != nil {
		pprice = *prevPPrice
	}
	grid[0].CumPSize = psize
	grid[0].CumPPrice = pprice
	grid[0].CumWE = QtyToCost(psize, pprice, m.Inverse, m.CMult) / balance

	for i := 1; i < n; i++ {
		grid[i].Price = prices[i]
		adjDiff := epricePprice * (1 + grid[i-1].CumWE*weighting)
		qty := RoundToStep(calcShortEntryQty(psize, pprice, grid[i].Price, adjDiff), m.QtyStep, RoundNearest)
		if -qty < CalcMinEntryQty(grid[i].Price, m.Inverse, m.QtyStep, m.MinQty, m.MinCost) {
			qty = 0
		}
		psize, pprice = CalcNewPSizePPrice(psize, pprice, qty, grid[i].Price, m.QtyStep)
		grid[i].Qty = qty
		grid[i].CumPSize = psize
		grid[i].CumPPrice = pprice
		grid[i].CumWE = QtyToCost(psize, pprice, m.Inverse, m.CMult) / balance
	}
	return grid
}

// findEpricePpriceDiffWeighting solves for the weighting multiplier w such
// that the final rung's cumulative wallet exposure equals
// walletExposureLimit within 1% relative error. See spec section 4.3
// "Weighting solver" for the bracket/interpolate/iterate procedure.
func findEpricePpriceDiffWeighting(isLong bool, balance, initialEntryPrice float64, m MarketSpec, cfg SideConfig, eprices []float64, prevPPrice *float64) float64 {
	const maxIters = 20
	const errorTolerance = 0.01

	eval := func(w float64) float64 {
		var grid []GridRow
		if isLong {
			grid = evalLongEntryGrid(balance, initialEntryPrice, m, cfg, cfg.EpricePpriceDiff, w, eprices, prevPPrice)
		} else {
			grid = evalShortEntryGrid(balance, initialEntryPrice, m, cfg, cfg.EpricePpriceDiff, w, eprices, prevPPrice)
		}
		return grid[len(grid)-1].CumWE
	}

	guess := 0.0
	val := eval(guess)
	if val < cfg.WalletExposureLimit {
		return guess
	}
	tooLowGuess, tooLowVal := guess, val

	guess = 1000.0
	val = eval(guess)
	if val > cfg.WalletExposureLimit {
		guess = 10000.0
		val = eval(guess)
		if val > cfg.WalletExposureLimit {
			guess = 100000.0
			val = eval(guess)
			if val > cfg.WalletExposureLimit {
				return guess
			}
		}
	}
	tooHighGuess, tooHighVal := guess, val

	// vals/guesses are swapped here to mirror the source exactly: it
	// interpolates wallet-exposure-limit against (val, guess) pairs where
	// the "xs" array is actually the WE values and the "ys" array is the
	// candidate weights.
	guess = Interpolate(cfg.WalletExposureLimit, []float64{tooLowVal, tooHighVal}, []float64{tooLowGuess, tooHighGuess})
	val = eval(guess)
	if val < cfg.WalletExposureLimit {
		tooHighGuess, tooHighVal = guess, val
	} else {
		tooLowGuess, tooLowVal = guess, val
	}

	oldGuess := 0.0
	bestDiff := absF(val-cfg.WalletExposureLimit) / cfg.WalletExposureLimit
	bestGuess := guess
	for i := 1; ; i++ {
		diff := absF(val-cfg.WalletExposureLimit) / cfg.WalletExposureLimit
		if diff < bestDiff {
			bestDiff, bestGuess = diff, guess
		}
		if diff < errorTolerance {
			return bestGuess
		}
		if i >= maxIters || absF(oldGuess-guess)/guess < errorTolerance*0.1 {
			return bestGuess
		}
		oldGuess = guess
		guess = (tooHighGuess + tooLowGuess) / 2
		val = eval(guess)
		if val < cfg.WalletExposureLimit {
			tooHighGuess, tooHighVal = guess, val
		} else {
			tooLowGuess, tooLowVal = guess, val
		}
		_, _ = tooHighVal, tooLowVal
	}
}

// CalcWholeLongEntryGrid builds the theoretical full entry ladder for a
// long position starting fresh at initialEntryPrice, solving the weighting
// parameter so the final rung's cumulative wallet exposure equals
// wallet_exposure_limit, and appending one secondary rung if configured.
// Dead rows (qty==0, never filled because they were below the effective
// minimum) are dropped from the result.
func CalcWholeLongEntryGrid(balance, initialEntryPrice float64, m MarketSpec, cfg SideConfig) []GridRow {
	return calcWholeEntryGrid(true, balance, initialEntryPrice, m, cfg, nil, nil)
}

// CalcWholeShortEntryGrid is the short-side mirror of CalcWholeLongEntryGrid.
func CalcWholeShortEntryGrid(balance, initialEntryPrice float64, m MarketSpec, cfg SideConfig) []GridRow {
	return calcWholeEntryGrid(false, balance, initialEntryPrice, m, cfg, nil, nil)
}

func calcWholeEntryGrid(isLong bool, balance, initialEntryPrice float64, m MarketSpec, cfg SideConfig, eprices []float64, prevPPrice *float64) []GridRow {
	if cfg.SecondaryAllocation >= 1.0 {
		panic("gridmath: secondary_allocation cannot be >= 1.0")
	}
	secondary := cfg.SecondaryAllocation
	if secondary <= 0.05 {
		secondary = 0
	}
	primaryAlloc := 1 - secondary
	primaryCfg := cfg
	primaryCfg.WalletExposureLimit = cfg.WalletExposureLimit * primaryAlloc
	primaryCfg.InitialQtyPct = cfg.InitialQtyPct / primaryAlloc

	weighting := findEpricePpriceDiffWeighting(isLong, balance, initialEntryPrice, m, primaryCfg, eprices, prevPPrice)

	var grid []GridRow
	if isLong {
		grid = evalLongEntryGrid(balance, initialEntryPrice, m, primaryCfg, primaryCfg.EpricePpriceDiff, weighting, eprices, prevPPrice)
	} else {
		grid = evalShortEntryGrid(balance, initialEntryPrice, m, primaryCfg, primaryCfg.EpricePpriceDiff, weighting, eprices, prevPPrice)
	}

	if secondary > 0 {
		last := grid[len(grid)-1]
		var entryPrice, qty float64
		if isLong {
			entryPrice = math.Min(RoundToStep(last.CumPPrice*(1-cfg.SecondaryPpriceDiff), m.PriceStep, RoundDown), last.Price)
			qty = FindQtyBringingWalletExposureToTarget(balance, last.CumPSize, last.CumPPrice, cfg.WalletExposureLimit, entryPrice, m)
		} else {
			entryPrice = math.Max(RoundToStep(last.CumPPrice*(1+cfg.SecondaryPpriceDiff), m.PriceStep, RoundUp), last.Price)
			qty = -FindQtyBringingWalletExposureToTarget(balance, last.CumPSize, last.CumPPrice, cfg.WalletExposureLimit, entryPrice, m)
		}
		newPSize, newPPrice := CalcNewPSizePPrice(last.CumPSize, last.CumPPrice, qty, entryPrice, m.QtyStep)
		grid = append(grid, GridRow{
			Qty:       qty,
			Price:     entryPrice,
			CumPSize:  newPSize,
			CumPPrice: newPPrice,
			CumWE:     QtyToCost(newPSize, newPPrice, m.Inverse, m.CMult) / balance,
		})
	}

	out := grid[:0:0]
	for _, row := range grid {
		if isLong && row.Qty > 0 {
			out = append(out, row)
		} else if !isLong && row.Qty < 0 {
			out = append(out, row)
		}
	}
	return out
}
