package gridmath

// CalcNewPSizePPrice applies a fill of qty contracts at price to a position
// (psize, pprice), returning the updated weighted-average position. A
// zero-size result collapses to (0,0) — the position ceases to exist.
func CalcNewPSizePPrice(psize, pprice, qty, price, qtyStep float64) (float64, float64) {
	if qty == 0 {
		return psize, pprice
	}
	newPSize := RoundToStep(psize+qty, qtyStep, RoundNearest)
	if newPSize == 0 {
		return 0, 0
	}
	newPPrice := nanTo0(pprice)*(psize/newPSize) + price*(qty/newPSize)
	return newPSize, newPPrice
}

// CalcWalletExposureIfFilled returns the wallet exposure the position would
// have after filling qty contracts at price.
func CalcWalletExposureIfFilled(balance, psize, pprice, qty, price float64, inverse bool, cMult, qtyStep float64) float64 {
	psize = RoundToStep(absF(psize), qtyStep, RoundNearest)
	qty = RoundToStep(absF(qty), qtyStep, RoundNearest)
	newPSize, newPPrice := CalcNewPSizePPrice(psize, pprice, qty, price, qtyStep)
	return QtyToCost(newPSize, newPPrice, inverse, cMult) / balance
}

// CalcBankruptcyPrice returns the mark price at which combined equity from
// both sides' positions would reach zero given balance. Returns 0 when the
// position is perfectly hedged (zero denominator) or when the raw result
// would be negative.
func CalcBankruptcyPrice(balance, longPSize, longPPrice, shortPSize, shortPPrice float64, inverse bool, cMult float64) float64 {
	longPPrice = nanTo0(longPPrice)
	shortPPrice = nanTo0(shortPPrice)
	longPSize *= cMult
	absShortPSize := absF(shortPSize) * cMult

	var bkr float64
	if inverse {
		var shortCost, longCost float64
		if shortPPrice > 0 {
			shortCost = absShortPSize / shortPPrice
		}
		if longPPrice > 0 {
			longCost = longPSize / longPPrice
		}
		denom := shortCost - longCost - balance
		if denom == 0 {
			return 0
		}
		bkr = (absShortPSize - longPSize) / denom
	} else {
		denom := longPSize - absShortPSize
		if denom == 0 {
			return 0
		}
		bkr = (-balance + longPSize*longPPrice - absShortPSize*shortPPrice) / denom
	}
	if bkr < 0 {
		return 0
	}
	return bkr
}

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
