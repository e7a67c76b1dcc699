package market

import (
	"testing"
	"time"
)

const testSymbol = "BTCUSDT"

func newTestBook() *Book {
	return NewBook(testSymbol)
}

func TestApplyBookResponse(t *testing.T) {
	t.Parallel()
	b := newTestBook()

	b.ApplyBookResponse(BookSnapshot{
		Symbol: testSymbol,
		Bids:   []PriceLevel{{Price: 0.55, Size: 100}, {Price: 0.54, Size: 200}},
		Asks:   []PriceLevel{{Price: 0.57, Size: 150}},
	})

	bid, ask, ok := b.BestBidAsk()
	if !ok {
		t.Fatal("BestBidAsk returned ok=false after applying snapshot")
	}
	if bid != 0.55 {
		t.Errorf("bid = %v, want 0.55", bid)
	}
	if ask != 0.57 {
		t.Errorf("ask = %v, want 0.57", ask)
	}
}

func TestApplyBookEvent(t *testing.T) {
	t.Parallel()
	b := newTestBook()

	b.ApplyBookEvent(BookSnapshot{
		Symbol: testSymbol,
		Bids:   []PriceLevel{{Price: 0.60, Size: 50}},
		Asks:   []PriceLevel{{Price: 0.62, Size: 75}},
	})

	bid, ask, ok := b.BestBidAsk()
	if !ok {
		t.Fatal("BestBidAsk returned ok=false")
	}
	if bid != 0.60 {
		t.Errorf("bid = %v, want 0.60", bid)
	}
	if ask != 0.62 {
		t.Errorf("ask = %v, want 0.62", ask)
	}
}

func TestApplyDeltaMergesLevels(t *testing.T) {
	t.Parallel()
	b := newTestBook()

	b.ApplyBookEvent(BookSnapshot{
		Symbol: testSymbol,
		Bids:   []PriceLevel{{Price: 100, Size: 1}, {Price: 99, Size: 2}},
		Asks:   []PriceLevel{{Price: 101, Size: 1}},
	})

	b.ApplyDelta(Delta{
		Symbol: testSymbol,
		Bids:   []PriceLevel{{Price: 100, Size: 0}, {Price: 99.5, Size: 3}},
	})

	bid, ask, ok := b.BestBidAsk()
	if !ok {
		t.Fatal("BestBidAsk returned ok=false")
	}
	if bid != 99.5 {
		t.Errorf("bid = %v, want 99.5 (100 removed, 99.5 inserted)", bid)
	}
	if ask != 101 {
		t.Errorf("ask = %v, want 101", ask)
	}
}

func TestMidPrice(t *testing.T) {
	t.Parallel()
	b := newTestBook()

	mid, ok := b.MidPrice()
	if ok {
		t.Error("MidPrice should return false for empty book")
	}
	if mid != 0 {
		t.Errorf("mid = %v, want 0 for empty book", mid)
	}

	b.ApplyBookResponse(BookSnapshot{
		Symbol: testSymbol,
		Bids:   []PriceLevel{{Price: 0.50, Size: 100}},
		Asks:   []PriceLevel{{Price: 0.60, Size: 100}},
	})

	mid, ok = b.MidPrice()
	if !ok {
		t.Fatal("MidPrice returned false for populated book")
	}
	if mid != 0.55 {
		t.Errorf("mid = %v, want 0.55", mid)
	}
}

func TestBestBidAskEmpty(t *testing.T) {
	t.Parallel()
	b := newTestBook()

	_, _, ok := b.BestBidAsk()
	if ok {
		t.Error("BestBidAsk should return ok=false for empty book")
	}
}

func TestBestBidAskOneSided(t *testing.T) {
	t.Parallel()
	b := newTestBook()

	b.ApplyBookResponse(BookSnapshot{
		Symbol: testSymbol,
		Bids:   []PriceLevel{{Price: 0.50, Size: 100}},
	})

	_, _, ok := b.BestBidAsk()
	if ok {
		t.Error("BestBidAsk should return ok=false with only bids")
	}
}

func TestIsStale(t *testing.T) {
	t.Parallel()
	b := newTestBook()

	if !b.IsStale(time.Second) {
		t.Error("new book should be stale")
	}

	b.ApplyBookResponse(BookSnapshot{
		Symbol: testSymbol,
		Bids:   []PriceLevel{{Price: 0.50, Size: 100}},
		Asks:   []PriceLevel{{Price: 0.60, Size: 100}},
	})

	if b.IsStale(time.Second) {
		t.Error("just-updated book should not be stale")
	}

	time.Sleep(50 * time.Millisecond)
	if !b.IsStale(10 * time.Millisecond) {
		t.Error("book should be stale after maxAge")
	}
}
