// ws.go implements WebSocket feeds for real-time exchange data.
//
// Two independent feeds run concurrently:
//
//   - Market feed (public): subscribes by symbol, receives order book
//     snapshots and incremental delta updates.
//
//   - User feed (authenticated): subscribes by symbol, receives execution
//     (fill) events and order lifecycle events.
//
// Both feeds auto-reconnect with exponential backoff (1s -> 30s max) and
// re-subscribe to all tracked symbols on reconnection. A read deadline (20s)
// ensures silent server failures are detected within a couple of missed pings.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"perpgrid/pkg/types"
)

const (
	pingInterval     = 20 * time.Second // how often we send ping to keep alive
	readTimeout      = 20 * time.Second // missed pong triggers reconnect
	maxReconnectWait = 30 * time.Second // cap on exponential backoff
	writeTimeout     = 10 * time.Second // deadline for outgoing messages
	readBufferSize   = 256              // buffer for book/delta events
	tradeBufferSize  = 64               // buffer for execution/order events
)

// WSFeed manages a single WebSocket connection (market or user channel).
// It handles connection lifecycle, subscription tracking, message routing,
// and automatic reconnection with exponential backoff.
type WSFeed struct {
	url         string
	conn        *websocket.Conn
	connMu      sync.Mutex // protects conn reads/writes
	auth        *Auth      // nil for market channel, set for user channel
	channelType string     // "market" or "user"

	// Track subscriptions for automatic re-subscribe on reconnect.
	subscribedMu sync.RWMutex
	subscribed   map[string]bool // symbols

	// Typed event channels — consumers read from these via accessor methods.
	bookCh      chan types.WSBookEvent
	deltaCh     chan types.WSDeltaEvent
	executionCh chan types.WSExecutionEvent
	orderCh     chan types.WSOrderEvent

	logger *slog.Logger
}

// NewMarketFeed creates a WebSocket feed for the public market channel.
func NewMarketFeed(wsURL string, logger *slog.Logger) *WSFeed {
	return &WSFeed{
		url:         wsURL,
		channelType: "market",
		subscribed:  make(map[string]bool),
		bookCh:      make(chan types.WSBookEvent, readBufferSize),
		deltaCh:     make(chan types.WSDeltaEvent, readBufferSize),
		executionCh: make(chan types.WSExecutionEvent, tradeBufferSize),
		orderCh:     make(chan types.WSOrderEvent, tradeBufferSize),
		logger:      logger.With("component", "ws_market"),
	}
}

// NewUserFeed creates a WebSocket feed for the authenticated user channel.
func NewUserFeed(wsURL string, auth *Auth, logger *slog.Logger) *WSFeed {
	return &WSFeed{
		url:         wsURL,
		auth:        auth,
		channelType: "user",
		subscribed:  make(map[string]bool),
		bookCh:      make(chan types.WSBookEvent, readBufferSize),
		deltaCh:     make(chan types.WSDeltaEvent, readBufferSize),
		executionCh: make(chan types.WSExecutionEvent, tradeBufferSize),
		orderCh:     make(chan types.WSOrderEvent, tradeBufferSize),
		logger:      logger.With("component", "ws_user"),
	}
}

// BookEvents returns a read-only channel of book snapshot events.
func (f *WSFeed) BookEvents() <-chan types.WSBookEvent { return f.bookCh }

// DeltaEvents returns a read-only channel of incremental book updates.
func (f *WSFeed) DeltaEvents() <-chan types.WSDeltaEvent { return f.deltaCh }

// ExecutionEvents returns a read-only channel of fill events (user channel).
func (f *WSFeed) ExecutionEvents() <-chan types.WSExecutionEvent { return f.executionCh }

// OrderEvents returns a read-only channel of order events (user channel).
func (f *WSFeed) OrderEvents() <-chan types.WSOrderEvent { return f.orderCh }

// Run connects and maintains the WebSocket connection with auto-reconnect.
// Blocks until ctx is cancelled.
func (f *WSFeed) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("websocket disconnected, reconnecting",
			"error", err,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

// Subscribe adds symbols to the subscription set.
func (f *WSFeed) Subscribe(ctx context.Context, symbols []string) error {
	f.subscribedMu.Lock()
	for _, s := range symbols {
		f.subscribed[s] = true
	}
	f.subscribedMu.Unlock()

	return f.writeJSON(subscribeMsg("subscribe", f.channelType, symbols))
}

// Unsubscribe removes symbols from the subscription set.
func (f *WSFeed) Unsubscribe(ctx context.Context, symbols []string) error {
	f.subscribedMu.Lock()
	for _, s := range symbols {
		delete(f.subscribed, s)
	}
	f.subscribedMu.Unlock()

	return f.writeJSON(subscribeMsg("unsubscribe", f.channelType, symbols))
}

// Close gracefully closes the connection.
func (f *WSFeed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *WSFeed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	if f.channelType == "user" {
		if err := f.sendAuth(); err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
	}
	if err := f.sendInitialSubscription(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info("websocket connected", "channel", f.channelType)

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go f.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		f.dispatchMessage(msg)
	}
}

func (f *WSFeed) sendAuth() error {
	args := f.auth.WSAuthArgs()
	msg := struct {
		Op   string        `json:"op"`
		Args []interface{} `json:"args"`
	}{
		Op:   "auth",
		Args: []interface{}{args.APIKey, args.Expires, args.Signature},
	}
	return f.writeJSON(msg)
}

func (f *WSFeed) sendInitialSubscription() error {
	f.subscribedMu.RLock()
	symbols := make([]string, 0, len(f.subscribed))
	for s := range f.subscribed {
		symbols = append(symbols, s)
	}
	f.subscribedMu.RUnlock()

	if len(symbols) == 0 {
		return nil
	}
	return f.writeJSON(subscribeMsg("subscribe", f.channelType, symbols))
}

func subscribeMsg(op, channelType string, symbols []string) interface{} {
	topics := make([]string, 0, 2*len(symbols))
	for _, s := range symbols {
		if channelType == "market" {
			topics = append(topics, "orderbook.50."+s)
		} else {
			topics = append(topics, "execution."+s, "order."+s)
		}
	}
	return struct {
		Op   string   `json:"op"`
		Args []string `json:"args"`
	}{Op: op, Args: topics}
}

func (f *WSFeed) dispatchMessage(data []byte) {
	var envelope struct {
		Topic string `json:"topic"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		f.logger.Debug("ignoring non-json ws message", "data", string(data))
		return
	}

	switch {
	case hasPrefix(envelope.Topic, "orderbook.50.") && isSnapshot(data):
		var evt types.WSBookEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal book event", "error", err)
			return
		}
		select {
		case f.bookCh <- evt:
		default:
			f.logger.Warn("book channel full, dropping event", "symbol", evt.Symbol)
		}

	case hasPrefix(envelope.Topic, "orderbook.50."):
		var evt types.WSDeltaEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal delta event", "error", err)
			return
		}
		select {
		case f.deltaCh <- evt:
		default:
			f.logger.Warn("delta channel full, dropping event", "symbol", evt.Symbol)
		}

	case hasPrefix(envelope.Topic, "execution."):
		var evt types.WSExecutionEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal execution event", "error", err)
			return
		}
		select {
		case f.executionCh <- evt:
		default:
			f.logger.Warn("execution channel full, dropping event", "order_id", evt.OrderID)
		}

	case hasPrefix(envelope.Topic, "order."):
		var evt types.WSOrderEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal order event", "error", err)
			return
		}
		select {
		case f.orderCh <- evt:
		default:
			f.logger.Warn("order channel full, dropping event", "order_id", evt.OrderID)
		}

	default:
		f.logger.Debug("ignoring event", "topic", envelope.Topic)
	}
}

// isSnapshot distinguishes a full book snapshot from an incremental delta.
// Both ride the same orderbook topic; the exchange tags the message type.
func isSnapshot(data []byte) bool {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return false
	}
	return envelope.Type == "snapshot"
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func (f *WSFeed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeJSON(struct {
				Op string `json:"op"`
			}{Op: "ping"}); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (f *WSFeed) writeJSON(v interface{}) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}
