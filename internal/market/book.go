// Package market provides local order book mirroring and symbol
// discovery for the exchange's linear perpetual futures.
//
// Book mirrors the exchange's order book for a single symbol. It is
// updated from two sources:
//   - REST snapshots via ApplyBookResponse (initial load)
//   - WebSocket events via ApplyBookEvent (full snapshots) and
//     ApplyDelta (incremental updates)
//
// The Book is concurrency-safe (RWMutex protected) and provides derived
// values like MidPrice and BestBidAsk that feed the grid math core's
// highest_bid/lowest_ask inputs.
package market

import (
	"sync"
	"time"
)

// PriceLevel is one (price, size) rung of the book.
type PriceLevel struct {
	Price float64
	Size  float64
}

// BookSnapshot is a full order book image for one symbol.
type BookSnapshot struct {
	Symbol    string
	Bids      []PriceLevel // descending by price
	Asks      []PriceLevel // ascending by price
	Sequence  int64
	Timestamp time.Time
}

// Delta is an incremental book update: replace or remove the level at
// Price on the given side. A Size of zero removes the level.
type Delta struct {
	Symbol   string
	Bids     []PriceLevel
	Asks     []PriceLevel
	Sequence int64
}

// Book maintains a local mirror of the order book for one symbol.
type Book struct {
	mu      sync.RWMutex
	symbol  string
	bids    []PriceLevel // descending by price
	asks    []PriceLevel // ascending by price
	seq     int64
	updated time.Time
}

// NewBook creates a new local order book for a symbol.
func NewBook(symbol string) *Book {
	return &Book{symbol: symbol}
}

// ApplyBookEvent replaces the book with a full snapshot, provided the
// snapshot's sequence is not older than what is already applied.
func (b *Book) ApplyBookEvent(snap BookSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if snap.Sequence != 0 && snap.Sequence < b.seq {
		return
	}
	b.bids = snap.Bids
	b.asks = snap.Asks
	b.seq = snap.Sequence
	b.updated = time.Now()
}

// ApplyBookResponse applies a REST API book response (same shape as a
// websocket snapshot).
func (b *Book) ApplyBookResponse(snap BookSnapshot) {
	b.ApplyBookEvent(snap)
}

// ApplyDelta merges an incremental update into the mirrored book,
// replacing each touched level and dropping any level whose new size is
// zero.
func (b *Book) ApplyDelta(d Delta) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if d.Sequence != 0 && d.Sequence < b.seq {
		return
	}
	b.bids = mergeLevels(b.bids, d.Bids, true)
	b.asks = mergeLevels(b.asks, d.Asks, false)
	if d.Sequence != 0 {
		b.seq = d.Sequence
	}
	b.updated = time.Now()
}

func mergeLevels(existing, changes []PriceLevel, descending bool) []PriceLevel {
	byPrice := make(map[float64]float64, len(existing))
	for _, l := range existing {
		byPrice[l.Price] = l.Size
	}
	for _, c := range changes {
		if c.Size == 0 {
			delete(byPrice, c.Price)
		} else {
			byPrice[c.Price] = c.Size
		}
	}
	out := make([]PriceLevel, 0, len(byPrice))
	for p, s := range byPrice {
		out = append(out, PriceLevel{Price: p, Size: s})
	}
	sortLevels(out, descending)
	return out
}

func sortLevels(levels []PriceLevel, descending bool) {
	for i := 1; i < len(levels); i++ {
		for j := i; j > 0; j-- {
			swap := levels[j-1].Price < levels[j].Price
			if descending {
				swap = levels[j-1].Price > levels[j].Price
			}
			if swap {
				break
			}
			levels[j-1], levels[j] = levels[j], levels[j-1]
		}
	}
}

// MidPrice returns (bestBid + bestAsk) / 2. Returns false if either side
// of the book is empty.
func (b *Book) MidPrice() (float64, bool) {
	bid, ask, ok := b.BestBidAsk()
	if !ok {
		return 0, false
	}
	return (bid + ask) / 2, true
}

// BestBidAsk returns the best bid and ask for the symbol.
func (b *Book) BestBidAsk() (bid, ask float64, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.bids) == 0 || len(b.asks) == 0 {
		return 0, 0, false
	}
	return b.bids[0].Price, b.asks[0].Price, true
}

// IsStale returns true if the book hasn't been updated within maxAge.
func (b *Book) IsStale(maxAge time.Duration) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.updated.IsZero() {
		return true
	}
	return time.Since(b.updated) > maxAge
}

// LastUpdated returns the timestamp of the last book update.
func (b *Book) LastUpdated() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updated
}
