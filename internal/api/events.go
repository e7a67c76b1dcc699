package api

import (
	"time"

	"perpgrid/pkg/types"
)

// DashboardEvent is the wrapper for all events sent to the dashboard.
type DashboardEvent struct {
	Type      string      `json:"type"` // "snapshot", "fill", "order", "position", "kill"
	Timestamp time.Time   `json:"timestamp"`
	Symbol    string      `json:"symbol"` // empty for global events
	Data      interface{} `json:"data"`
}

// FillEvent represents a trade fill notification.
type FillEvent struct {
	OrderID       string  `json:"order_id"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Tag           string  `json:"tag"`
	Price         float64 `json:"price"`
	Qty           float64 `json:"qty"`
	Balance       float64 `json:"balance"`
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// OrderEvent represents order placement/cancellation.
type OrderEvent struct {
	OrderID string  `json:"order_id"`
	Symbol  string  `json:"symbol"`
	Status  string  `json:"status"` // "New", "Cancelled", "Filled", "Rejected"
	Side    string  `json:"side"`
	Price   float64 `json:"price"`
	Qty     float64 `json:"qty"`
}

// PositionEvent is emitted when a symbol's position changes.
type PositionEvent struct {
	Symbol        string  `json:"symbol"`
	LongPSize     float64 `json:"long_psize"`
	LongPPrice    float64 `json:"long_pprice"`
	ShortPSize    float64 `json:"short_psize"`
	ShortPPrice   float64 `json:"short_pprice"`
	Balance       float64 `json:"balance"`
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	MidPrice      float64 `json:"mid_price"`
}

// KillEvent is emitted when the kill switch activates.
type KillEvent struct {
	Reason  string    `json:"reason"`
	Details string    `json:"details"`
	Until   time.Time `json:"until"`
	Symbol  string    `json:"symbol,omitempty"` // empty for a global kill
}

// NewFillEvent creates a fill event from an execution and the resulting state.
func NewFillEvent(exec types.WSExecutionEvent, balance, realized, unrealized float64) FillEvent {
	return FillEvent{
		OrderID:       exec.OrderID,
		Symbol:        exec.Symbol,
		Side:          string(exec.Side),
		Tag:           exec.OrderLinkID,
		Price:         exec.ExecPrice,
		Qty:           exec.ExecQty,
		Balance:       balance,
		RealizedPnL:   realized,
		UnrealizedPnL: unrealized,
	}
}

// NewOrderEvent creates an order event.
func NewOrderEvent(order types.WSOrderEvent) OrderEvent {
	return OrderEvent{
		OrderID: order.OrderID,
		Symbol:  order.Symbol,
		Status:  order.Status,
		Price:   order.Price,
		Qty:     order.LeavesQty,
	}
}

// NewPositionEvent creates a position event.
func NewPositionEvent(status SymbolStatus) PositionEvent {
	return PositionEvent{
		Symbol:        status.Symbol,
		LongPSize:     status.LongPSize,
		LongPPrice:    status.LongPPrice,
		ShortPSize:    status.ShortPSize,
		ShortPPrice:   status.ShortPPrice,
		Balance:       status.Balance,
		RealizedPnL:   status.RealizedPnL,
		UnrealizedPnL: status.UnrealizedPnL,
		MidPrice:      status.MidPrice,
	}
}

// NewKillEvent creates a kill switch event.
func NewKillEvent(reason, details string, until time.Time, symbol string) KillEvent {
	return KillEvent{
		Reason:  reason,
		Details: details,
		Until:   until,
		Symbol:  symbol,
	}
}
