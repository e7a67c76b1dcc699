package exchange

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"perpgrid/internal/config"
	"perpgrid/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(baseURL string, dryRun bool) *Client {
	cfg := config.Config{
		DryRun: dryRun,
		Exchange: config.ExchangeConfig{
			BaseURL: baseURL,
			Key:     "test-key",
			Secret:  "test-secret",
		},
	}
	auth := NewAuth(cfg)
	return NewClient(cfg, auth, testLogger())
}

func TestGetOrderBook(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v5/market/orderbook" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		resp := types.BookResponse{
			Symbol: "BTCUSDT",
			Bids:   []types.PriceLevelWire{{Price: 27000, Size: 1.5}},
			Asks:   []types.PriceLevelWire{{Price: 27001, Size: 2.0}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := newTestClient(server.URL, false)
	book, err := c.GetOrderBook(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("GetOrderBook() error = %v", err)
	}
	if book.Symbol != "BTCUSDT" {
		t.Errorf("Symbol = %q", book.Symbol)
	}
	if len(book.Bids) != 1 || book.Bids[0].Price != 27000 {
		t.Errorf("Bids = %+v", book.Bids)
	}
}

func TestPlaceOrderDryRun(t *testing.T) {
	t.Parallel()
	c := newTestClient("http://unused.invalid", true)

	resp, err := c.PlaceOrder(context.Background(), types.OrderRequest{
		Symbol: "BTCUSDT",
		Side:   types.Buy,
		Qty:    0.01,
		Price:  27000,
	})
	if err != nil {
		t.Fatalf("PlaceOrder() error = %v", err)
	}
	if !resp.Success {
		t.Error("dry-run order should report success")
	}
	if resp.OrderID != "dry-run" {
		t.Errorf("OrderID = %q", resp.OrderID)
	}
}

func TestPlaceOrderSignsRequest(t *testing.T) {
	t.Parallel()

	var gotSig string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-BAPI-SIGN")
		json.NewEncoder(w).Encode(types.OrderResponse{OrderID: "ord-1"})
	}))
	defer server.Close()

	c := newTestClient(server.URL, false)
	resp, err := c.PlaceOrder(context.Background(), types.OrderRequest{
		Symbol: "BTCUSDT",
		Side:   types.Buy,
		Qty:    0.01,
		Price:  27000,
	})
	if err != nil {
		t.Fatalf("PlaceOrder() error = %v", err)
	}
	if gotSig == "" {
		t.Error("request should carry a signature header")
	}
	if resp.OrderID != "ord-1" {
		t.Errorf("OrderID = %q", resp.OrderID)
	}
	if !resp.Success {
		t.Error("order with no reject reason should report success")
	}
}

func TestPlaceBatchOrdersRejectsOversizedBatch(t *testing.T) {
	t.Parallel()
	c := newTestClient("http://unused.invalid", false)

	orders := make([]types.OrderRequest, 11)
	_, err := c.PlaceBatchOrders(context.Background(), orders)
	if err == nil {
		t.Error("expected error for batch > 10 orders")
	}
}

func TestCancelAllOrdersDryRun(t *testing.T) {
	t.Parallel()
	c := newTestClient("http://unused.invalid", true)

	resp, err := c.CancelAllOrders(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("CancelAllOrders() error = %v", err)
	}
	if resp == nil {
		t.Fatal("expected non-nil response")
	}
}

func TestGetPositionSplitsLongShort(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"side":"Buy","size":"1.5","avgPrice":"27000"},
			{"side":"Sell","size":"0.5","avgPrice":"27500"}
		]`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, false)
	long, short, err := c.GetPosition(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("GetPosition() error = %v", err)
	}
	if long.Size != 1.5 || long.Price != 27000 {
		t.Errorf("long = %+v", long)
	}
	if short.Size != 0.5 || short.Price != 27500 {
		t.Errorf("short = %+v", short)
	}
}
