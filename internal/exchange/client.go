// Package exchange implements the linear-perpetual exchange's REST and
// WebSocket clients.
//
// The REST client (Client) handles order management:
//   - GetOrderBook:      GET  /v5/market/orderbook     — fetch L2 book for a symbol
//   - PlaceOrder:        POST /v5/order/create         — place a single order
//   - PlaceBatchOrders:  POST /v5/order/create-batch   — place up to 10 orders
//   - CancelOrder:       POST /v5/order/cancel         — cancel one order by ID
//   - CancelAllOrders:   POST /v5/order/cancel-all     — cancel all orders for a symbol
//   - GetOpenOrders:     GET  /v5/order/realtime       — list resting orders
//   - GetPosition:       GET  /v5/position/list        — fetch live position state
//
// Every request is rate-limited via per-category TokenBuckets and
// automatically retried on 5xx errors; all but the public GetOrderBook are
// signed with HMAC headers.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"perpgrid/internal/config"
	"perpgrid/pkg/types"
)

// Client is the exchange's REST API client. It wraps a resty HTTP client
// with rate limiting, retry, and request signing.
type Client struct {
	http   *resty.Client
	auth   *Auth
	rl     *RateLimiter
	dryRun bool
	logger *slog.Logger
}

// NewClient creates a REST client with rate limiting and retry.
func NewClient(cfg config.Config, auth *Auth, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.Exchange.BaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpClient,
		auth:   auth,
		rl:     NewRateLimiter(),
		dryRun: cfg.DryRun,
		logger: logger.With("component", "exchange_client"),
	}
}

// GetOrderBook fetches the order book for a single symbol.
func (c *Client) GetOrderBook(ctx context.Context, symbol string) (*types.BookResponse, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}

	var result types.BookResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"category": "linear", "symbol": symbol, "limit": "50"}).
		SetResult(&result).
		Get("/v5/market/orderbook")
	if err != nil {
		return nil, fmt.Errorf("get order book: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get order book: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// PlaceBatchOrders places up to 10 orders in a batch.
func (c *Client) PlaceBatchOrders(ctx context.Context, orders []types.OrderRequest) ([]types.OrderResponse, error) {
	if len(orders) == 0 {
		return nil, nil
	}
	if len(orders) > 10 {
		return nil, fmt.Errorf("batch limit is 10 orders, got %d", len(orders))
	}
	if c.dryRun {
		c.logger.Info("DRY-RUN: would place orders", "count", len(orders))
		results := make([]types.OrderResponse, len(orders))
		for i, o := range orders {
			results[i] = types.OrderResponse{Success: true, OrderID: fmt.Sprintf("dry-run-%d", i), OrderLinkID: o.OrderLinkID}
		}
		return results, nil
	}
	if err := c.rl.Order.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(struct {
		Category string              `json:"category"`
		Request  []types.OrderRequest `json:"request"`
	}{Category: "linear", Request: orders})
	if err != nil {
		return nil, fmt.Errorf("marshal batch order request: %w", err)
	}

	var results []types.OrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.auth.RESTHeaders(string(body))).
		SetBody(json.RawMessage(body)).
		SetResult(&results).
		Post("/v5/order/create-batch")
	if err != nil {
		return nil, fmt.Errorf("place batch orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("place batch orders: status %d: %s", resp.StatusCode(), resp.String())
	}
	for i := range results {
		results[i].Success = results[i].RejectReason == ""
	}

	return results, nil
}

// PlaceOrder places a single order.
func (c *Client) PlaceOrder(ctx context.Context, order types.OrderRequest) (*types.OrderResponse, error) {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would place order", "symbol", order.Symbol, "side", order.Side, "qty", order.Qty, "price", order.Price)
		return &types.OrderResponse{Success: true, OrderID: "dry-run", OrderLinkID: order.OrderLinkID}, nil
	}
	if err := c.rl.Order.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := withCategory(order)
	if err != nil {
		return nil, fmt.Errorf("marshal order request: %w", err)
	}

	var result types.OrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.auth.RESTHeaders(string(body))).
		SetBody(json.RawMessage(body)).
		SetResult(&result).
		Post("/v5/order/create")
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("place order: status %d: %s", resp.StatusCode(), resp.String())
	}
	result.Success = result.RejectReason == ""

	return &result, nil
}

// withCategory merges the "category" field into an order's marshaled JSON.
// order.MarshalJSON already renders qty/price as decimal strings; a plain
// embedded-struct merge would bypass that (encoding/json doesn't flatten
// an anonymous field whose type implements Marshaler), so it's merged at
// the map level instead.
func withCategory(order types.OrderRequest) ([]byte, error) {
	orderBytes, err := json.Marshal(order)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(orderBytes, &fields); err != nil {
		return nil, err
	}
	fields["category"] = json.RawMessage(`"linear"`)
	return json.Marshal(fields)
}

// CancelOrder cancels a single order by ID.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would cancel order", "symbol", symbol, "order_id", orderID)
		return nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(struct {
		Category string `json:"category"`
		Symbol   string `json:"symbol"`
		OrderID  string `json:"orderId"`
	}{Category: "linear", Symbol: symbol, OrderID: orderID})
	if err != nil {
		return fmt.Errorf("marshal cancel request: %w", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.auth.RESTHeaders(string(body))).
		SetBody(json.RawMessage(body)).
		Post("/v5/order/cancel")
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("cancel order: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// CancelAllOrders cancels every open order for a symbol.
func (c *Client) CancelAllOrders(ctx context.Context, symbol string) (*types.CancelResponse, error) {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would cancel all orders", "symbol", symbol)
		return &types.CancelResponse{}, nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(struct {
		Category string `json:"category"`
		Symbol   string `json:"symbol"`
	}{Category: "linear", Symbol: symbol})
	if err != nil {
		return nil, fmt.Errorf("marshal cancel-all request: %w", err)
	}

	var result types.CancelResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.auth.RESTHeaders(string(body))).
		SetBody(json.RawMessage(body)).
		SetResult(&result).
		Post("/v5/order/cancel-all")
	if err != nil {
		return nil, fmt.Errorf("cancel all orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("cancel all orders: status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Warn("all orders cancelled", "symbol", symbol, "count", len(result.Cancelled))
	return &result, nil
}

// GetOpenOrders lists currently resting orders for a symbol.
func (c *Client) GetOpenOrders(ctx context.Context, symbol string) ([]types.OpenOrder, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("category=linear&symbol=%s", symbol)

	var result []types.OpenOrder
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.auth.RESTHeaders(query)).
		SetQueryParams(map[string]string{"category": "linear", "symbol": symbol}).
		SetResult(&result).
		Get("/v5/order/realtime")
	if err != nil {
		return nil, fmt.Errorf("get open orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get open orders: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}

// GetPosition fetches the live long and short position state for a symbol
// (hedge-mode accounts hold both sides simultaneously).
func (c *Client) GetPosition(ctx context.Context, symbol string) (long, short types.Position, err error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return types.Position{}, types.Position{}, err
	}

	query := fmt.Sprintf("category=linear&symbol=%s", symbol)

	var result []struct {
		Side  string  `json:"side"` // "Buy" (long) or "Sell" (short)
		Size  float64 `json:"size,string"`
		Price float64 `json:"avgPrice,string"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.auth.RESTHeaders(query)).
		SetQueryParams(map[string]string{"category": "linear", "symbol": symbol}).
		SetResult(&result).
		Get("/v5/position/list")
	if err != nil {
		return types.Position{}, types.Position{}, fmt.Errorf("get position: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.Position{}, types.Position{}, fmt.Errorf("get position: status %d: %s", resp.StatusCode(), resp.String())
	}

	for _, p := range result {
		switch p.Side {
		case "Buy":
			long = types.Position{Size: p.Size, Price: p.Price}
		case "Sell":
			short = types.Position{Size: p.Size, Price: p.Price}
		}
	}
	return long, short, nil
}
