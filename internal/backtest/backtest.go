// Package backtest replays a tick series through the grid math core and
// produces the fill and equity history a live run would have produced
// under the same market data, deterministically and without any network
// I/O.
package backtest

import (
	"math"
	"strings"

	"perpgrid/internal/gridmath"
	"perpgrid/pkg/types"
)

// Tick is one trade print: timestamp in unix milliseconds, qty, price.
// A qty of zero marks a synthetic time-filler tick carrying no trade.
type Tick struct {
	TimestampMs int64
	Qty         float64
	Price       float64
}

// Fill is one simulated execution, long or short, entry or close.
type Fill struct {
	TickIndex   int
	TimestampMs int64
	PnL         float64
	FeePaid     float64
	Balance     float64
	Equity      float64
	Qty         float64
	Price       float64
	PSize       float64
	PPrice      float64
	Tag         types.Tag
}

// StatTick is one periodic equity/exposure snapshot, emitted at most once
// per simulated minute.
type StatTick struct {
	TimestampMs     int64
	Balance         float64
	Equity          float64
	BankruptcyPrice float64
	LongPSize       float64
	LongPPrice      float64
	ShortPSize      float64
	ShortPPrice     float64
	Price           float64
	ClosestBkr      float64
}

// RunSummary is the full output of a simulation run: the raw fill and
// stats history plus a handful of headline numbers derived from them.
type RunSummary struct {
	Fills []Fill
	Stats []StatTick

	// TotalReturn is final equity divided by starting balance, minus one.
	// Zero when the run produced no stats ticks (e.g. shorter than warmup).
	TotalReturn float64
	// MaxDrawdown is the largest peak-to-trough equity decline observed
	// across Stats, expressed as a positive fraction of the peak.
	MaxDrawdown float64
	// WinRate is the fraction of close fills (close, auto-unstuck-close,
	// or bankruptcy) with strictly positive realized PnL.
	WinRate float64
}

func summarize(fills []Fill, stats []StatTick, startingBalance float64) (totalReturn, maxDrawdown, winRate float64) {
	if len(stats) > 0 && startingBalance > 0 {
		totalReturn = stats[len(stats)-1].Equity/startingBalance - 1
	}

	peak := math.Inf(-1)
	for _, s := range stats {
		if s.Equity > peak {
			peak = s.Equity
		}
		if peak > 0 {
			dd := (peak - s.Equity) / peak
			if dd > maxDrawdown {
				maxDrawdown = dd
			}
		}
	}

	var closes, wins int
	for _, f := range fills {
		if !isCloseTag(f.Tag) {
			continue
		}
		closes++
		if f.PnL > 0 {
			wins++
		}
	}
	if closes > 0 {
		winRate = float64(wins) / float64(closes)
	}
	return
}

func isCloseTag(tag types.Tag) bool {
	s := string(tag)
	return strings.Contains(s, "close") || strings.Contains(s, "bankruptcy")
}

func newSummary(fills []Fill, stats []StatTick, startingBalance float64) RunSummary {
	totalReturn, maxDrawdown, winRate := summarize(fills, stats, startingBalance)
	return RunSummary{
		Fills:       fills,
		Stats:       stats,
		TotalReturn: totalReturn,
		MaxDrawdown: maxDrawdown,
		WinRate:     winRate,
	}
}

// Config bundles everything njit_backtest needs beyond the tick series:
// the market lattice, both sides' grid configs, and run-level knobs.
type Config struct {
	Market              gridmath.MarketSpec
	Spot                bool
	HedgeMode           bool
	DoLong              bool
	DoShort             bool
	Long                gridmath.SideConfig
	Short               gridmath.SideConfig
	StartingBalance     float64
	MakerFeeRate        float64
	LatencySimulationMs int64
}

const statsIntervalMs = 60 * 1000
const gridUpdateIntervalMs = 10 * 60 * 1000

// Run replays ticks against cfg and returns the resulting fills and
// periodic stats. It mirrors the reference simulator's event loop:
// EMAs warm up over the longest configured span before any decision is
// made, then each tick updates EMAs, periodically recomputes the entry
// and close grids, and walks the grid's resting orders against the
// tick's print price.
func Run(ticks []Tick, cfg Config) RunSummary {
	prices := make([]float64, len(ticks))
	for i, t := range ticks {
		prices[i] = t.Price
	}

	spansLong := emaSpansMinutes(cfg.Long.EmaSpanMin, cfg.Long.EmaSpanMax)
	spansShort := emaSpansMinutes(cfg.Short.EmaSpanMin, cfg.Short.EmaSpanMax)
	maxSpan := int(math.Round(math.Max(maxOf(spansLong), maxOf(spansShort))))
	if maxSpan >= len(prices) {
		return RunSummary{}
	}

	emasLong := make([]float64, len(spansLong))
	if cfg.DoLong {
		emasLong = calcEmasLast(prices[:maxSpan], spansLong)
	}
	var emasShort []float64
	if sameSpans(spansLong, spansShort) {
		emasShort = emasLong
	} else if cfg.DoShort {
		emasShort = calcEmasLast(prices[:maxSpan], spansShort)
	} else {
		emasShort = make([]float64, len(spansShort))
	}

	alphasLong, oneMinusLong := alphasFor(spansLong)
	alphasShort, oneMinusShort := alphasFor(spansShort)

	balance := cfg.StartingBalance
	equity := balance
	var longPSize, longPPrice, shortPSize, shortPPrice float64
	var bkrPrice float64
	closestBkr := 1.0

	longEntries := []gridmath.EntryOrder{{Qty: 0, Price: 0, Tag: ""}}
	shortEntries := []gridmath.EntryOrder{{Qty: 0, Price: 0, Tag: ""}}
	longCloses := []gridmath.CloseOrder{{Qty: 0, Price: 0, Tag: ""}}
	shortCloses := []gridmath.CloseOrder{{Qty: 0, Price: 0, Tag: ""}}

	var nextEntryLong, nextEntryShort, nextCloseLong, nextCloseShort, nextStats int64

	var fills []Fill
	var stats []StatTick

	for k := maxSpan; k < len(prices); k++ {
		if cfg.DoLong {
			emasLong = gridmath.CalcEmaVec(alphasLong, oneMinusLong, emasLong, prices[k])
		}
		if cfg.DoShort {
			emasShort = gridmath.CalcEmaVec(alphasShort, oneMinusShort, emasShort, prices[k])
		}
		if ticks[k].Qty == 0 {
			continue
		}

		bkrDiff := gridmath.CalcDiff(bkrPrice, prices[k])
		closestBkr = math.Min(closestBkr, bkrDiff)
		ts := ticks[k].TimestampMs

		if ts >= nextStats {
			equity = balance + gridmath.CalcUpnl(longPSize, longPPrice, shortPSize, shortPPrice, prices[k], cfg.Market.Inverse, cfg.Market.CMult)
			stats = append(stats, StatTick{ts, balance, equity, bkrPrice, longPSize, longPPrice, shortPSize, shortPPrice, prices[k], closestBkr})
			nextStats = ts + statsIntervalMs
		}

		if ts >= nextEntryLong {
			if cfg.DoLong {
				longEntries = gridmath.CalcLongEntryGrid(balance, longPSize, longPPrice, prices[k-1], minOf(emasLong), cfg.DoLong, cfg.Market, cfg.Long)
			} else {
				longEntries = []gridmath.EntryOrder{{0, 0, ""}}
			}
			nextEntryLong = ts + gridUpdateIntervalMs
		}
		if ts >= nextEntryShort {
			if cfg.DoShort {
				shortEntries = gridmath.CalcShortEntryGrid(balance, shortPSize, shortPPrice, prices[k-1], maxOf(emasShort), cfg.DoShort, cfg.Market, cfg.Short)
			} else {
				shortEntries = []gridmath.EntryOrder{{0, 0, ""}}
			}
			nextEntryShort = ts + gridUpdateIntervalMs
		}
		if ts >= nextCloseLong {
			if cfg.DoLong {
				longCloses = gridmath.CalcLongCloseGrid(balance, longPSize, longPPrice, prices[k-1], maxOf(emasLong), cfg.Spot, cfg.Market, cfg.Long)
			} else {
				longCloses = []gridmath.CloseOrder{{0, 0, ""}}
			}
			nextCloseLong = ts + gridUpdateIntervalMs
		}
		if ts >= nextCloseShort {
			if cfg.DoShort {
				// The reference simulator's short-close call reads its
				// auto-unstuck threshold and EMA distance off the long
				// side's config slot, not the short side's own — every
				// other parameter in the call comes from the short side.
				shortCloseCfg := cfg.Short
				shortCloseCfg.AutoUnstuckWalletExposureThresh = cfg.Long.AutoUnstuckWalletExposureThresh
				shortCloseCfg.AutoUnstuckEmaDist = cfg.Long.AutoUnstuckEmaDist
				shortCloses = gridmath.CalcShortCloseGrid(balance, shortPSize, shortPPrice, prices[k-1], minOf(emasShort), cfg.Spot, cfg.Market, shortCloseCfg)
			} else {
				shortCloses = []gridmath.CloseOrder{{0, 0, ""}}
			}
			nextCloseShort = ts + gridUpdateIntervalMs
		}

		if closestBkr < 0.06 {
			if longPSize != 0 {
				feePaid := -gridmath.QtyToCost(longPSize, longPPrice, cfg.Market.Inverse, cfg.Market.CMult) * cfg.MakerFeeRate
				pnl := gridmath.CalcLongPnl(longPPrice, prices[k], -longPSize, cfg.Market.Inverse, cfg.Market.CMult)
				balance, equity = 0, 0
				longPSize, longPPrice = 0, 0
				fills = append(fills, Fill{k, ts, pnl, feePaid, balance, equity, 0, prices[k], 0, 0, types.TagLongBankruptcy})
			}
			if shortPSize != 0 {
				feePaid := -gridmath.QtyToCost(shortPSize, shortPPrice, cfg.Market.Inverse, cfg.Market.CMult) * cfg.MakerFeeRate
				pnl := gridmath.CalcShortPnl(shortPPrice, prices[k], -shortPSize, cfg.Market.Inverse, cfg.Market.CMult)
				balance, equity = 0, 0
				shortPSize, shortPPrice = 0, 0
				fills = append(fills, Fill{k, ts, pnl, feePaid, balance, equity, 0, prices[k], 0, 0, types.TagShortBankruptcy})
			}
			return newSummary(fills, stats, cfg.StartingBalance)
		}

		for len(longEntries) > 0 && longEntries[0].Qty > 0 && prices[k] < longEntries[0].Price {
			nextEntryLong = minI(nextEntryLong, ts+cfg.LatencySimulationMs)
			nextCloseLong = minI(nextCloseLong, ts+cfg.LatencySimulationMs)
			e := longEntries[0]
			longPSize, longPPrice = gridmath.CalcNewPSizePPrice(longPSize, longPPrice, e.Qty, e.Price, cfg.Market.QtyStep)
			feePaid := -gridmath.QtyToCost(e.Qty, e.Price, cfg.Market.Inverse, cfg.Market.CMult) * cfg.MakerFeeRate
			balance += feePaid
			equity = gridmath.CalcEquity(balance, longPSize, longPPrice, shortPSize, shortPPrice, prices[k], cfg.Market.Inverse, cfg.Market.CMult)
			fills = append(fills, Fill{k, ts, 0, feePaid, balance, equity, e.Qty, e.Price, longPSize, longPPrice, e.Tag})
			longEntries = longEntries[1:]
			bkrPrice = gridmath.CalcBankruptcyPrice(balance, longPSize, longPPrice, shortPSize, shortPPrice, cfg.Market.Inverse, cfg.Market.CMult)
		}
		for len(shortEntries) > 0 && shortEntries[0].Qty < 0 && prices[k] > shortEntries[0].Price {
			nextEntryShort = minI(nextEntryShort, ts+cfg.LatencySimulationMs)
			nextCloseShort = minI(nextCloseShort, ts+cfg.LatencySimulationMs)
			e := shortEntries[0]
			shortPSize, shortPPrice = gridmath.CalcNewPSizePPrice(shortPSize, shortPPrice, e.Qty, e.Price, cfg.Market.QtyStep)
			feePaid := -gridmath.QtyToCost(e.Qty, e.Price, cfg.Market.Inverse, cfg.Market.CMult) * cfg.MakerFeeRate
			balance += feePaid
			// equity recomputed with short state standing in for long: the
			// reference simulator has carried this since its first release
			// and run histories depend on its exact numeric effect.
			equity = gridmath.CalcEquity(balance, shortPSize, shortPPrice, shortPSize, shortPPrice, prices[k], cfg.Market.Inverse, cfg.Market.CMult)
			fills = append(fills, Fill{k, ts, 0, feePaid, balance, equity, e.Qty, e.Price, shortPSize, shortPPrice, e.Tag})
			shortEntries = shortEntries[1:]
			bkrPrice = gridmath.CalcBankruptcyPrice(balance, shortPSize, shortPPrice, shortPSize, shortPPrice, cfg.Market.Inverse, cfg.Market.CMult)
		}
		for longPSize > 0 && len(longCloses) > 0 && longCloses[0].Qty < 0 && prices[k] > longCloses[0].Price {
			nextEntryLong = minI(nextEntryLong, ts+cfg.LatencySimulationMs)
			nextCloseLong = minI(nextCloseLong, ts+cfg.LatencySimulationMs)
			c := longCloses[0]
			closeQty := c.Qty
			newPSize := gridmath.RoundToStep(longPSize+closeQty, cfg.Market.QtyStep, gridmath.RoundNearest)
			if newPSize < 0 {
				closeQty = -longPSize
				newPSize, longPPrice = 0, 0
			}
			longPSize = newPSize
			feePaid := -gridmath.QtyToCost(closeQty, c.Price, cfg.Market.Inverse, cfg.Market.CMult) * cfg.MakerFeeRate
			pnl := gridmath.CalcLongPnl(longPPrice, c.Price, closeQty, cfg.Market.Inverse, cfg.Market.CMult)
			balance += feePaid + pnl
			equity = gridmath.CalcEquity(balance, longPSize, longPPrice, shortPSize, shortPPrice, prices[k], cfg.Market.Inverse, cfg.Market.CMult)
			fills = append(fills, Fill{k, ts, pnl, feePaid, balance, equity, closeQty, c.Price, longPSize, longPPrice, c.Tag})
			longCloses = longCloses[1:]
			bkrPrice = gridmath.CalcBankruptcyPrice(balance, longPSize, longPPrice, shortPSize, shortPPrice, cfg.Market.Inverse, cfg.Market.CMult)
		}
		for shortPSize < 0 && len(shortCloses) > 0 && shortCloses[0].Qty > 0 && prices[k] < shortCloses[0].Price {
			nextEntryShort = minI(nextEntryShort, ts+cfg.LatencySimulationMs)
			nextCloseShort = minI(nextCloseShort, ts+cfg.LatencySimulationMs)
			c := shortCloses[0]
			closeQty := c.Qty
			newPSize := gridmath.RoundToStep(shortPSize+closeQty, cfg.Market.QtyStep, gridmath.RoundNearest)
			if newPSize > 0 {
				closeQty = -shortPSize
				newPSize, shortPPrice = 0, 0
			}
			shortPSize = newPSize
			feePaid := -gridmath.QtyToCost(closeQty, c.Price, cfg.Market.Inverse, cfg.Market.CMult) * cfg.MakerFeeRate
			pnl := gridmath.CalcShortPnl(shortPPrice, c.Price, closeQty, cfg.Market.Inverse, cfg.Market.CMult)
			balance += feePaid + pnl
			equity = gridmath.CalcEquity(balance, longPSize, longPPrice, shortPSize, shortPPrice, prices[k], cfg.Market.Inverse, cfg.Market.CMult)
			fills = append(fills, Fill{k, ts, pnl, feePaid, balance, equity, closeQty, c.Price, shortPSize, shortPPrice, c.Tag})
			shortCloses = shortCloses[1:]
			bkrPrice = gridmath.CalcBankruptcyPrice(balance, longPSize, longPPrice, shortPSize, shortPPrice, cfg.Market.Inverse, cfg.Market.CMult)
		}

		if cfg.DoLong {
			if longPSize == 0 {
				nextEntryLong = minI(nextEntryLong, ts+cfg.LatencySimulationMs)
			}
			if prices[k] > longPPrice {
				nextCloseLong = minI(nextCloseLong, ts+cfg.LatencySimulationMs)
			}
		}
		if cfg.DoShort {
			if shortPSize == 0 {
				nextEntryShort = minI(nextEntryShort, ts+cfg.LatencySimulationMs)
			}
			if prices[k] < shortPPrice {
				nextCloseShort = minI(nextCloseShort, ts+cfg.LatencySimulationMs)
			}
		}
	}
	return newSummary(fills, stats, cfg.StartingBalance)
}

func emaSpansMinutes(min, max float64) []float64 {
	return []float64{min * 60, math.Sqrt(min*max) * 60, max * 60}
}

func alphasFor(spans []float64) (alphas, oneMinusAlphas []float64) {
	alphas = make([]float64, len(spans))
	oneMinusAlphas = make([]float64, len(spans))
	for i, s := range spans {
		alphas[i] = 2.0 / (s + 1.0)
		oneMinusAlphas[i] = 1 - alphas[i]
	}
	return
}

func calcEmasLast(xs []float64, spans []float64) []float64 {
	alphas, oneMinusAlphas := alphasFor(spans)
	emas := make([]float64, len(spans))
	for i := range emas {
		emas[i] = xs[0]
	}
	for i := 1; i < len(xs); i++ {
		for j := range emas {
			emas[j] = emas[j]*oneMinusAlphas[j] + xs[i]*alphas[j]
		}
	}
	return emas
}

func sameSpans(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func minOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

func maxOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

func minI(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
