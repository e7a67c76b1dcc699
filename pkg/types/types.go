// Package types defines shared data structures used across all packages.
//
// This is the common vocabulary for the bot — market metadata, order
// intents, and exchange wire shapes. It has no dependencies on internal
// packages, so it can be imported by any layer.
package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Side represents a position or order direction.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// Tag is a stable, externally-visible order intent label. Every order the
// core emits carries one of these; live drivers and dashboards key off the
// string value, never a derived enum, so the value must never change.
type Tag string

const (
	TagNone Tag = ""

	TagLongInitialEntry    Tag = "long_ientry"
	TagLongPrimaryRentry   Tag = "long_primary_rentry"
	TagLongSecondaryRentry Tag = "long_secondary_rentry"
	TagLongClose           Tag = "long_nclose"
	TagLongAutoUnstuckEntry Tag = "long_auto_unstuck_entry"
	TagLongAutoUnstuckClose Tag = "long_auto_unstuck_close"
	TagLongBankruptcy      Tag = "long_bankruptcy"

	TagShortInitialEntry     Tag = "short_ientry"
	TagShortPrimaryRentry    Tag = "short_primary_rentry"
	TagShortSecondaryRentry  Tag = "short_secondary_rentry"
	TagShortClose            Tag = "short_nclose"
	TagShortAutoUnstuckEntry Tag = "short_auto_unstuck_entry"
	TagShortAutoUnstuckClose Tag = "short_auto_unstuck_close"
	TagShortBankruptcy       Tag = "short_bankruptcy"
)

// MarketInfo describes one exchange-listed linear perpetual symbol, the way
// an adapter's fetch_markets would report it.
type MarketInfo struct {
	Symbol    string // normalized "COIN/USDT:USDT"
	ID        string // exchange-native market id
	Type      string // must be "swap" to be tradeable
	Linear    bool
	Active    bool
	PriceStep float64
	QtyStep   float64
	MinQty    float64
	MinCost   float64
	CMult     float64
}

// Position mirrors one side's live exchange position.
type Position struct {
	Size  float64
	Price float64
}

// OpenOrder is a resting order as reported by fetch_open_orders.
type OpenOrder struct {
	ID    string
	Side  Side
	Qty   float64
	Price float64
	Tag   Tag
}

// Ticker is the latest best bid/ask/last for a symbol.
type Ticker struct {
	Bid  float64
	Ask  float64
	Last float64
}

// ClosedPnL is one realized-PnL record as returned by an exchange's
// closed-pnl history endpoint.
type ClosedPnL struct {
	OrderID     string
	Symbol      string
	PnL         float64
	UpdatedTime time.Time
}

// OrderSide is the wire-level buy/sell direction for a REST order request,
// distinct from Side (which is long/short position direction).
type OrderSide string

const (
	Buy  OrderSide = "Buy"
	Sell OrderSide = "Sell"
)

// OrderRequest is what the REST client sends to place one order.
type OrderRequest struct {
	Symbol      string    `json:"symbol"`
	Side        OrderSide `json:"side"`
	Qty         float64   `json:"qty,string"`
	Price       float64   `json:"price,string"`
	OrderLinkID string    `json:"orderLinkId"` // client-assigned idempotency key, carries the Tag
	ReduceOnly  bool      `json:"reduceOnly"`
}

// MarshalJSON renders qty and price through shopspring/decimal rather than
// strconv's float formatting: the exchange rejects scientific notation and
// long trailing-digit artifacts that float64 string conversion can produce
// for values like 0.1+0.2.
func (o OrderRequest) MarshalJSON() ([]byte, error) {
	type wire struct {
		Symbol      string    `json:"symbol"`
		Side        OrderSide `json:"side"`
		Qty         string    `json:"qty"`
		Price       string    `json:"price"`
		OrderLinkID string    `json:"orderLinkId"`
		ReduceOnly  bool      `json:"reduceOnly"`
	}
	return json.Marshal(wire{
		Symbol:      o.Symbol,
		Side:        o.Side,
		Qty:         decimal.NewFromFloatWithExponent(o.Qty, -10).String(),
		Price:       decimal.NewFromFloatWithExponent(o.Price, -10).String(),
		OrderLinkID: o.OrderLinkID,
		ReduceOnly:  o.ReduceOnly,
	})
}

// OrderResponse is the exchange's acknowledgement of an order request.
type OrderResponse struct {
	OrderID      string `json:"orderId"`
	OrderLinkID  string `json:"orderLinkId"`
	Success      bool   `json:"-"`
	RejectReason string `json:"rejectReason"`
}

// CancelResponse reports which order IDs were cancelled.
type CancelResponse struct {
	Cancelled []string `json:"cancelled"`
}

// PriceLevelWire is a [price, size] pair as REST/WS book payloads encode it:
// a two-element JSON array of decimal strings, e.g. ["27123.5", "0.412"].
type PriceLevelWire struct {
	Price float64
	Size  float64
}

func (p *PriceLevelWire) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("unmarshal price level: %w", err)
	}
	price, err := strconv.ParseFloat(pair[0], 64)
	if err != nil {
		return fmt.Errorf("parse price level price: %w", err)
	}
	size, err := strconv.ParseFloat(pair[1], 64)
	if err != nil {
		return fmt.Errorf("parse price level size: %w", err)
	}
	p.Price = price
	p.Size = size
	return nil
}

func (p PriceLevelWire) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{
		strconv.FormatFloat(p.Price, 'f', -1, 64),
		strconv.FormatFloat(p.Size, 'f', -1, 64),
	})
}

// BookResponse is the REST order book snapshot shape.
type BookResponse struct {
	Symbol    string           `json:"s"`
	Bids      []PriceLevelWire `json:"b"`
	Asks      []PriceLevelWire `json:"a"`
	Sequence  int64            `json:"u"`
	Timestamp int64            `json:"ts"` // unix ms
}

// WSBookEvent is a full order book snapshot delivered over the public feed.
type WSBookEvent struct {
	Symbol    string           `json:"s"`
	Bids      []PriceLevelWire `json:"b"`
	Asks      []PriceLevelWire `json:"a"`
	Sequence  int64            `json:"u"`
	Timestamp int64            `json:"ts"`
}

// WSDeltaEvent is an incremental order book update delivered over the
// public feed. A level with Size == 0 has been removed.
type WSDeltaEvent struct {
	Symbol    string           `json:"s"`
	Bids      []PriceLevelWire `json:"b"`
	Asks      []PriceLevelWire `json:"a"`
	Sequence  int64            `json:"u"`
	Timestamp int64            `json:"ts"`
}

// WSExecutionEvent reports a fill on the authenticated user feed.
type WSExecutionEvent struct {
	Symbol      string    `json:"symbol"`
	OrderID     string    `json:"orderId"`
	OrderLinkID string    `json:"orderLinkId"`
	Side        OrderSide `json:"side"`
	ExecQty     float64   `json:"execQty,string"`
	ExecPrice   float64   `json:"execPrice,string"`
	ExecTime    int64     `json:"execTime,string"` // unix ms
	IsMaker     bool      `json:"isMaker"`
}

// WSOrderEvent reports an order lifecycle transition on the authenticated
// user feed (New, PartiallyFilled, Filled, Cancelled, Rejected).
type WSOrderEvent struct {
	Symbol      string  `json:"symbol"`
	OrderID     string  `json:"orderId"`
	OrderLinkID string  `json:"orderLinkId"`
	Status      string  `json:"orderStatus"`
	LeavesQty   float64 `json:"leavesQty,string"`
	Price       float64 `json:"price,string"`
	UpdateTime  int64   `json:"updatedTime,string"`
}

// WSAuthArgs is the signed payload sent to authenticate the private feed.
type WSAuthArgs struct {
	APIKey    string
	Expires   int64
	Signature string
}

// OrderIntent is a desired order the core wants resting on the book.
// Qty sign encodes side: positive buys (long entry / short close),
// negative sells (short entry / long close). A zero-magnitude sentinel
// OrderIntent{0, 0, TagNone} means "no order wanted this cycle".
type OrderIntent struct {
	Qty   float64
	Price float64
	Tag   Tag
}

// IsSentinel reports whether this is the "no order" placeholder.
func (o OrderIntent) IsSentinel() bool {
	return o.Qty == 0 && o.Price == 0 && o.Tag == TagNone
}
