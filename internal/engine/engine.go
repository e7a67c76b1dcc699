// Package engine is the central orchestrator of the grid trading bot.
//
// It wires together all subsystems:
//
//  1. Scanner validates which configured symbols are currently tradeable
//     (swap, linear, active) on the exchange.
//  2. Engine starts/stops a symbol goroutine per tradeable symbol (reconcileSymbols).
//  3. Each symbol gets: a Book (order book mirror) and live long/short position state.
//  4. Two WebSocket feeds (market data + user fills) dispatch events to the correct symbol slot.
//  5. Risk manager monitors all symbols and can trigger a kill switch.
//
// Lifecycle: New() -> Start() -> [runs until SIGINT] -> Stop()
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"perpgrid/internal/api"
	"perpgrid/internal/config"
	"perpgrid/internal/exchange"
	"perpgrid/internal/gridmath"
	"perpgrid/internal/market"
	"perpgrid/internal/risk"
	"perpgrid/internal/store"
	"perpgrid/pkg/types"
)

const gridRecomputeInterval = 10 * time.Minute

// symbolSlot represents one actively-traded symbol. Each slot runs a
// dedicated goroutine (runSymbol) with its own book and position state.
type symbolSlot struct {
	info   types.MarketInfo
	cfg    config.MarketConfig
	spec   gridmath.MarketSpec
	book   *market.Book
	cancel context.CancelFunc

	executionCh chan types.WSExecutionEvent
	orderCh     chan types.WSOrderEvent

	mu         sync.Mutex
	balance    float64
	longPSize  float64
	longPPrice float64
	shortPSize float64
	shortPPrice float64
	openOrders []types.OpenOrder

	emaLong   []float64
	emaShort  []float64
	emaSeeded bool
}

// Engine orchestrates all components of the grid trading system. It owns
// the lifecycle of all goroutines and manages symbol start/stop transitions.
type Engine struct {
	cfg     config.Config
	client  *exchange.Client
	auth    *exchange.Auth
	mktFeed *exchange.WSFeed
	usrFeed *exchange.WSFeed
	scanner *market.Scanner
	riskMgr *risk.Manager
	store   *store.Store
	logger  *slog.Logger

	marketCfgBySymbol map[string]config.MarketConfig

	// slots maps symbol -> running engine. Protected by slotsMu.
	slots   map[string]*symbolSlot
	slotsMu sync.RWMutex

	// dashboardEvents is an optional channel for sending events to the
	// dashboard. Nil if the dashboard is disabled.
	dashboardEvents chan api.DashboardEvent

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and wires all engine components.
func New(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	auth := exchange.NewAuth(cfg)
	client := exchange.NewClient(cfg, auth, logger)

	mktFeed := exchange.NewMarketFeed(cfg.Exchange.WSPublicURL, logger)
	usrFeed := exchange.NewUserFeed(cfg.Exchange.WSPrivateURL, auth, logger)
	scanner := market.NewScanner(cfg, logger)
	riskMgr := risk.NewManager(cfg.Risk, logger)

	st, err := store.Open(cfg.Store.DataDir)
	if err != nil {
		return nil, err
	}

	marketCfgBySymbol := make(map[string]config.MarketConfig, len(cfg.Markets))
	for _, m := range cfg.Markets {
		marketCfgBySymbol[m.Symbol] = m
	}

	ctx, cancel := context.WithCancel(context.Background())

	var dashEvents chan api.DashboardEvent
	if cfg.Dashboard.Enabled {
		dashEvents = make(chan api.DashboardEvent, 100)
	}

	return &Engine{
		cfg:               cfg,
		client:            client,
		auth:              auth,
		mktFeed:           mktFeed,
		usrFeed:           usrFeed,
		scanner:           scanner,
		riskMgr:           riskMgr,
		store:             st,
		logger:            logger.With("component", "engine"),
		marketCfgBySymbol: marketCfgBySymbol,
		slots:             make(map[string]*symbolSlot),
		dashboardEvents:   dashEvents,
		ctx:               ctx,
		cancel:            cancel,
	}, nil
}

// Start launches all background goroutines: WS feeds, scanner, risk
// manager, event dispatchers, and the main symbol management loop.
func (e *Engine) Start() error {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.mktFeed.Run(e.ctx); err != nil && e.ctx.Err() == nil {
			e.logger.Error("market feed error", "error", err)
		}
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.usrFeed.Run(e.ctx); err != nil && e.ctx.Err() == nil {
			e.logger.Error("user feed error", "error", err)
		}
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.scanner.Run(e.ctx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.riskMgr.Run(e.ctx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.dispatchUserEvents()
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.dispatchMarketEvents()
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.manageSymbols()
	}()

	return nil
}

// Stop gracefully shuts down: cancels all contexts, cancels orders on the
// exchange as a safety net, persists final positions, waits for goroutines,
// and closes resources.
func (e *Engine) Stop() {
	e.logger.Info("shutting down...")

	e.cancel()

	e.slotsMu.RLock()
	for symbol, slot := range e.slots {
		cancelCtx, cancelCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := e.client.CancelAllOrders(cancelCtx, symbol); err != nil {
			e.logger.Error("failed to cancel orders on shutdown", "symbol", symbol, "error", err)
		}
		cancelCancel()

		if err := e.store.SaveState(symbol, slot.snapshot()); err != nil {
			e.logger.Error("failed to save state", "symbol", symbol, "error", err)
		}
	}
	e.slotsMu.RUnlock()

	e.wg.Wait()

	e.mktFeed.Close()
	e.usrFeed.Close()
	e.store.Close()

	e.logger.Info("shutdown complete")
}

func (slot *symbolSlot) snapshot() store.SymbolState {
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return store.SymbolState{
		Symbol:      slot.info.Symbol,
		Balance:     slot.balance,
		LongPSize:   slot.longPSize,
		LongPPrice:  slot.longPPrice,
		ShortPSize:  slot.shortPSize,
		ShortPPrice: slot.shortPPrice,
		OpenOrders:  append([]types.OpenOrder(nil), slot.openOrders...),
	}
}

// manageSymbols is the main engine loop. It reacts to two events:
//   - Scanner results: start/stop symbols to match the latest tradeable set.
//   - Kill signals from the risk manager: cancel resting orders of the
//     affected symbol (every running symbol for a global kill).
func (e *Engine) manageSymbols() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case result := <-e.scanner.Results():
			e.reconcileSymbols(result)
		case kill := <-e.riskMgr.KillCh():
			e.handleKillSignal(kill)
		}
	}
}

// reconcileSymbols diffs the configured+tradeable symbol set against
// currently running symbols. Stops symbols no longer tradeable or
// configured, starts newly eligible ones.
func (e *Engine) reconcileSymbols(result market.ScanResult) {
	desired := make(map[string]types.MarketInfo)
	for _, info := range result.Symbols {
		if _, ok := e.marketCfgBySymbol[info.Symbol]; ok {
			desired[info.Symbol] = info
		}
	}

	e.slotsMu.Lock()
	defer e.slotsMu.Unlock()

	for symbol := range e.slots {
		if _, ok := desired[symbol]; !ok {
			e.stopSymbolLocked(symbol)
		}
	}

	for symbol, info := range desired {
		if _, ok := e.slots[symbol]; !ok {
			if !e.riskMgr.CanAddSymbol(symbol) {
				e.logger.Warn("skipping symbol, risk manager at capacity", "symbol", symbol)
				continue
			}
			e.startSymbolLocked(info)
		}
	}
}

func (e *Engine) startSymbolLocked(info types.MarketInfo) {
	mcfg := e.marketCfgBySymbol[info.Symbol]
	spec := mcfg.Market()
	book := market.NewBook(info.Symbol)

	slot := &symbolSlot{
		info:    info,
		cfg:     mcfg,
		spec:    spec,
		book:    book,
		balance: mcfg.StartingBalance,

		executionCh: make(chan types.WSExecutionEvent, 64),
		orderCh:     make(chan types.WSOrderEvent, 64),
	}

	if state, err := e.store.LoadState(info.Symbol); err == nil && state != nil {
		slot.balance = state.Balance
		slot.longPSize = state.LongPSize
		slot.longPPrice = state.LongPPrice
		slot.shortPSize = state.ShortPSize
		slot.shortPPrice = state.ShortPPrice
		slot.openOrders = state.OpenOrders
	}

	ctx, cancel := context.WithCancel(e.ctx)
	slot.cancel = cancel
	e.slots[info.Symbol] = slot

	e.mktFeed.Subscribe(ctx, []string{info.Symbol})
	e.usrFeed.Subscribe(ctx, []string{info.Symbol})

	if resp, err := e.client.GetOrderBook(ctx, info.Symbol); err != nil {
		e.logger.Error("failed to get initial book", "symbol", info.Symbol, "error", err)
	} else {
		book.ApplyBookResponse(market.BookSnapshot{
			Symbol:   resp.Symbol,
			Bids:     toPriceLevels(resp.Bids),
			Asks:     toPriceLevels(resp.Asks),
			Sequence: resp.Sequence,
		})
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runSymbol(ctx, slot)
	}()

	e.logger.Info("symbol started", "symbol", info.Symbol)
}

func (e *Engine) stopSymbolLocked(symbol string) {
	slot, ok := e.slots[symbol]
	if !ok {
		return
	}

	slot.cancel()

	if err := e.store.SaveState(symbol, slot.snapshot()); err != nil {
		e.logger.Error("failed to save state on stop", "symbol", symbol, "error", err)
	}

	e.mktFeed.Unsubscribe(e.ctx, []string{symbol})
	e.usrFeed.Unsubscribe(e.ctx, []string{symbol})
	e.riskMgr.RemoveSymbol(symbol)

	delete(e.slots, symbol)

	e.logger.Info("symbol stopped", "symbol", symbol)
}

func (e *Engine) handleKillSignal(kill risk.KillSignal) {
	e.logger.Error("KILL SIGNAL received", "symbol", kill.Symbol, "reason", kill.Reason)

	e.slotsMu.Lock()
	defer e.slotsMu.Unlock()

	if kill.Symbol == "" {
		for symbol := range e.slots {
			cancelCtx, cancelCancel := context.WithTimeout(context.Background(), 10*time.Second)
			if _, err := e.client.CancelAllOrders(cancelCtx, symbol); err != nil {
				e.logger.Error("failed to cancel all orders", "symbol", symbol, "error", err)
			}
			cancelCancel()
		}
		return
	}

	cancelCtx, cancelCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelCancel()
	if _, err := e.client.CancelAllOrders(cancelCtx, kill.Symbol); err != nil {
		e.logger.Error("failed to cancel symbol orders", "symbol", kill.Symbol, "error", err)
	}
}

// runSymbol is the per-symbol trading loop: it recomputes the entry/close
// grid every gridRecomputeInterval and drains fill/order events as they
// arrive in between.
func (e *Engine) runSymbol(ctx context.Context, slot *symbolSlot) {
	ticker := time.NewTicker(gridRecomputeInterval)
	defer ticker.Stop()

	e.recomputeGrid(ctx, slot)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.recomputeGrid(ctx, slot)
		case exec := <-slot.executionCh:
			e.applyExecution(slot, exec)
		case order := <-slot.orderCh:
			e.applyOrderUpdate(slot, order)
		}
	}
}

// recomputeGrid pulls the current EMA bands and best bid/ask, runs the
// grid math core to decide the desired entry and close orders, cancels
// everything resting, and places the new set.
func (e *Engine) recomputeGrid(ctx context.Context, slot *symbolSlot) {
	bid, ask, ok := slot.book.BestBidAsk()
	if !ok || slot.book.IsStale(30 * time.Second) {
		e.logger.Debug("skipping grid recompute, book not ready", "symbol", slot.info.Symbol)
		return
	}
	mid, _ := slot.book.MidPrice()
	e.updateEma(slot, mid)

	slot.mu.Lock()
	balance := slot.balance
	longPSize, longPPrice := slot.longPSize, slot.longPPrice
	shortPSize, shortPPrice := slot.shortPSize, slot.shortPPrice
	slot.mu.Unlock()

	lowerBandLong := minF(slot.emaLong)
	upperBandLong := maxF(slot.emaLong)
	lowerBandShort := minF(slot.emaShort)
	upperBandShort := maxF(slot.emaShort)

	longCfg := slot.cfg.Long.ToGridmath()
	shortCfg := slot.cfg.Short.ToGridmath()

	longEntries := gridmath.CalcLongEntryGrid(balance, longPSize, longPPrice, bid, lowerBandLong, slot.cfg.DoLong, slot.spec, longCfg)
	shortEntries := gridmath.CalcShortEntryGrid(balance, shortPSize, shortPPrice, ask, upperBandShort, slot.cfg.DoShort, slot.spec, shortCfg)
	if e.riskMgr.IsKillSwitchActive() {
		longEntries, shortEntries = nil, nil
	}
	longCloses := gridmath.CalcLongCloseGrid(balance, longPSize, longPPrice, ask, upperBandLong, slot.cfg.Spot, slot.spec, longCfg)
	shortCloses := gridmath.CalcShortCloseGrid(balance, shortPSize, shortPPrice, bid, lowerBandShort, slot.cfg.Spot, slot.spec, shortCfg)

	var requests []types.OrderRequest
	for _, o := range longEntries {
		if req, ok := entryOrderRequest(slot.info.Symbol, o, true); ok {
			requests = append(requests, req)
		}
	}
	for _, o := range shortEntries {
		if req, ok := entryOrderRequest(slot.info.Symbol, o, false); ok {
			requests = append(requests, req)
		}
	}
	for _, o := range longCloses {
		if req, ok := closeOrderRequest(slot.info.Symbol, o, true); ok {
			requests = append(requests, req)
		}
	}
	for _, o := range shortCloses {
		if req, ok := closeOrderRequest(slot.info.Symbol, o, false); ok {
			requests = append(requests, req)
		}
	}

	if _, err := e.client.CancelAllOrders(ctx, slot.info.Symbol); err != nil {
		e.logger.Error("failed to cancel resting orders before recompute", "symbol", slot.info.Symbol, "error", err)
	}

	for i := 0; i < len(requests); i += 10 {
		end := i + 10
		if end > len(requests) {
			end = len(requests)
		}
		if _, err := e.client.PlaceBatchOrders(ctx, requests[i:end]); err != nil {
			e.logger.Error("failed to place orders", "symbol", slot.info.Symbol, "error", err)
		}
	}

	e.reportExposure(slot, balance, longPSize, longPPrice, shortPSize, shortPPrice, mid)
}

func entryOrderRequest(symbol string, o gridmath.EntryOrder, long bool) (types.OrderRequest, bool) {
	if o.Qty == 0 || o.Tag == types.TagNone {
		return types.OrderRequest{}, false
	}
	side := types.Buy
	if !long {
		side = types.Sell
	}
	return types.OrderRequest{
		Symbol:      symbol,
		Side:        side,
		Qty:         absF(o.Qty),
		Price:       o.Price,
		OrderLinkID: string(o.Tag),
	}, true
}

func closeOrderRequest(symbol string, o gridmath.CloseOrder, long bool) (types.OrderRequest, bool) {
	if o.Qty == 0 || o.Tag == types.TagNone {
		return types.OrderRequest{}, false
	}
	side := types.Sell
	if !long {
		side = types.Buy
	}
	return types.OrderRequest{
		Symbol:      symbol,
		Side:        side,
		Qty:         absF(o.Qty),
		Price:       o.Price,
		OrderLinkID: string(o.Tag),
		ReduceOnly:  true,
	}, true
}

// applyExecution folds a fill into the symbol's position state and balance,
// the way the backtest simulator's fill-walking loop does.
func (e *Engine) applyExecution(slot *symbolSlot, exec types.WSExecutionEvent) {
	slot.mu.Lock()
	defer slot.mu.Unlock()

	tag := types.Tag(exec.OrderLinkID)
	fee := gridmath.QtyToCost(exec.ExecQty, exec.ExecPrice, slot.spec.Inverse, slot.spec.CMult) * slot.cfg.MakerFeeRate
	slot.balance -= fee

	switch {
	case exec.Side == types.Buy && isLongTag(tag):
		newPSize, newPPrice := gridmath.CalcNewPSizePPrice(slot.longPSize, slot.longPPrice, exec.ExecQty, exec.ExecPrice, slot.spec.QtyStep)
		slot.longPSize, slot.longPPrice = newPSize, newPPrice
	case exec.Side == types.Sell && isLongTag(tag):
		pnl := gridmath.CalcLongPnl(slot.longPPrice, exec.ExecPrice, exec.ExecQty, slot.spec.Inverse, slot.spec.CMult)
		slot.balance += pnl
		slot.longPSize -= exec.ExecQty
		if slot.longPSize <= slot.spec.QtyStep/2 {
			slot.longPSize, slot.longPPrice = 0, 0
		}
	case exec.Side == types.Sell && isShortTag(tag):
		newPSize, newPPrice := gridmath.CalcNewPSizePPrice(slot.shortPSize, slot.shortPPrice, -exec.ExecQty, exec.ExecPrice, slot.spec.QtyStep)
		slot.shortPSize, slot.shortPPrice = newPSize, newPPrice
	case exec.Side == types.Buy && isShortTag(tag):
		pnl := gridmath.CalcShortPnl(slot.shortPPrice, exec.ExecPrice, exec.ExecQty, slot.spec.Inverse, slot.spec.CMult)
		slot.balance += pnl
		slot.shortPSize += exec.ExecQty
		if absF(slot.shortPSize) <= slot.spec.QtyStep/2 {
			slot.shortPSize, slot.shortPPrice = 0, 0
		}
	}
}

func isLongTag(tag types.Tag) bool {
	switch tag {
	case types.TagLongInitialEntry, types.TagLongPrimaryRentry, types.TagLongSecondaryRentry,
		types.TagLongClose, types.TagLongAutoUnstuckEntry, types.TagLongAutoUnstuckClose, types.TagLongBankruptcy:
		return true
	}
	return false
}

func isShortTag(tag types.Tag) bool {
	switch tag {
	case types.TagShortInitialEntry, types.TagShortPrimaryRentry, types.TagShortSecondaryRentry,
		types.TagShortClose, types.TagShortAutoUnstuckEntry, types.TagShortAutoUnstuckClose, types.TagShortBankruptcy:
		return true
	}
	return false
}

func (e *Engine) applyOrderUpdate(slot *symbolSlot, order types.WSOrderEvent) {
	slot.mu.Lock()
	defer slot.mu.Unlock()

	for i, o := range slot.openOrders {
		if o.ID == order.OrderID {
			if order.Status == "Cancelled" || order.Status == "Filled" || order.Status == "Rejected" {
				slot.openOrders = append(slot.openOrders[:i], slot.openOrders[i+1:]...)
			} else {
				slot.openOrders[i].Qty = order.LeavesQty
				slot.openOrders[i].Price = order.Price
			}
			return
		}
	}
	if order.Status == "New" {
		slot.openOrders = append(slot.openOrders, types.OpenOrder{
			ID:    order.OrderID,
			Qty:   order.LeavesQty,
			Price: order.Price,
			Tag:   types.Tag(order.OrderLinkID),
		})
	}
}

func (e *Engine) updateEma(slot *symbolSlot, price float64) {
	if price <= 0 {
		return
	}

	spansLong := gridmath.EmaSpansMinutes(slot.cfg.Long.EmaSpanMin, slot.cfg.Long.EmaSpanMax)
	spansShort := gridmath.EmaSpansMinutes(slot.cfg.Short.EmaSpanMin, slot.cfg.Short.EmaSpanMax)

	if !slot.emaSeeded {
		slot.emaLong = []float64{price, price, price}
		slot.emaShort = []float64{price, price, price}
		slot.emaSeeded = true
		return
	}

	alphasLong, oneMinusLong := gridmath.EmaAlphas(spansLong)
	alphasShort, oneMinusShort := gridmath.EmaAlphas(spansShort)
	slot.emaLong = gridmath.CalcEmaVec(alphasLong, oneMinusLong, slot.emaLong, price)
	slot.emaShort = gridmath.CalcEmaVec(alphasShort, oneMinusShort, slot.emaShort, price)
}

func (e *Engine) reportExposure(slot *symbolSlot, balance, longPSize, longPPrice, shortPSize, shortPPrice, mark float64) {
	longWE := gridmath.QtyToCost(longPSize, longPPrice, slot.spec.Inverse, slot.spec.CMult) / balance
	shortWE := gridmath.QtyToCost(shortPSize, shortPPrice, slot.spec.Inverse, slot.spec.CMult) / balance
	unrealized := gridmath.CalcUpnl(longPSize, longPPrice, shortPSize, shortPPrice, mark, slot.spec.Inverse, slot.spec.CMult)

	e.riskMgr.Report(risk.ExposureReport{
		Symbol:              slot.info.Symbol,
		LongWalletExposure:  longWE,
		ShortWalletExposure: shortWE,
		MarkPrice:           mark,
		UnrealizedPnL:       unrealized,
		RealizedPnL:         balance - slot.cfg.StartingBalance,
		Timestamp:           time.Now(),
	})
}

// dispatchMarketEvents routes WS book snapshots and deltas into the
// matching symbol's local book mirror.
func (e *Engine) dispatchMarketEvents() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case evt := <-e.mktFeed.BookEvents():
			e.routeBookEvent(evt)
		case evt := <-e.mktFeed.DeltaEvents():
			e.routeDelta(evt)
		}
	}
}

func (e *Engine) routeBookEvent(evt types.WSBookEvent) {
	e.slotsMu.RLock()
	slot, ok := e.slots[evt.Symbol]
	e.slotsMu.RUnlock()
	if !ok {
		return
	}
	slot.book.ApplyBookEvent(market.BookSnapshot{
		Symbol:   evt.Symbol,
		Bids:     toPriceLevels(evt.Bids),
		Asks:     toPriceLevels(evt.Asks),
		Sequence: evt.Sequence,
	})
}

func (e *Engine) routeDelta(evt types.WSDeltaEvent) {
	e.slotsMu.RLock()
	slot, ok := e.slots[evt.Symbol]
	e.slotsMu.RUnlock()
	if !ok {
		return
	}
	slot.book.ApplyDelta(market.Delta{
		Symbol:   evt.Symbol,
		Bids:     toPriceLevels(evt.Bids),
		Asks:     toPriceLevels(evt.Asks),
		Sequence: evt.Sequence,
	})
}

// dispatchUserEvents routes WS user events to the correct slot's channels.
func (e *Engine) dispatchUserEvents() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case exec := <-e.usrFeed.ExecutionEvents():
			e.routeExecution(exec)
		case order := <-e.usrFeed.OrderEvents():
			e.routeOrder(order)
		}
	}
}

func (e *Engine) routeExecution(exec types.WSExecutionEvent) {
	e.slotsMu.RLock()
	slot, ok := e.slots[exec.Symbol]
	e.slotsMu.RUnlock()
	if !ok {
		return
	}

	select {
	case slot.executionCh <- exec:
	default:
		e.logger.Warn("execution channel full", "symbol", exec.Symbol)
	}
}

func (e *Engine) routeOrder(order types.WSOrderEvent) {
	e.slotsMu.RLock()
	slot, ok := e.slots[order.Symbol]
	e.slotsMu.RUnlock()
	if !ok {
		return
	}

	select {
	case slot.orderCh <- order:
	default:
		e.logger.Warn("order channel full", "symbol", order.Symbol)
	}
}

// DashboardEvents returns the dashboard event channel (may be nil).
func (e *Engine) DashboardEvents() <-chan api.DashboardEvent {
	return e.dashboardEvents
}

// GetSymbolsSnapshot returns current state of all active symbols for the dashboard.
func (e *Engine) GetSymbolsSnapshot() []api.SymbolStatus {
	e.slotsMu.RLock()
	defer e.slotsMu.RUnlock()

	result := make([]api.SymbolStatus, 0, len(e.slots))
	for _, slot := range e.slots {
		mid, midOk := slot.book.MidPrice()
		bid, ask, bookOk := slot.book.BestBidAsk()

		var spread float64
		if bookOk {
			spread = ask - bid
		}

		slot.mu.Lock()
		balance := slot.balance
		longPSize, longPPrice := slot.longPSize, slot.longPPrice
		shortPSize, shortPPrice := slot.shortPSize, slot.shortPPrice
		openOrders := append([]types.OpenOrder(nil), slot.openOrders...)
		slot.mu.Unlock()

		var unrealized float64
		if midOk {
			unrealized = gridmath.CalcUpnl(longPSize, longPPrice, shortPSize, shortPPrice, mid, slot.spec.Inverse, slot.spec.CMult)
		}

		result = append(result, api.SymbolStatus{
			Symbol:        slot.info.Symbol,
			MidPrice:      mid,
			BestBid:       bid,
			BestAsk:       ask,
			Spread:        spread,
			LastUpdated:   slot.book.LastUpdated(),
			IsStale:       slot.book.IsStale(30 * time.Second),
			Balance:       balance,
			LongPSize:     longPSize,
			LongPPrice:    longPPrice,
			ShortPSize:    shortPSize,
			ShortPPrice:   shortPPrice,
			UnrealizedPnL: unrealized,
			RealizedPnL:   balance - slot.cfg.StartingBalance,
			OpenOrders:    len(openOrders),
		})
	}

	return result
}

// GetScanner returns the scanner for dashboard access.
func (e *Engine) GetScanner() *market.Scanner {
	return e.scanner
}

// GetRiskManager returns the risk manager for dashboard access.
func (e *Engine) GetRiskManager() *risk.Manager {
	return e.riskMgr
}

func toPriceLevels(wire []types.PriceLevelWire) []market.PriceLevel {
	out := make([]market.PriceLevel, len(wire))
	for i, w := range wire {
		out[i] = market.PriceLevel{Price: w.Price, Size: w.Size}
	}
	return out
}

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func minF(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

func maxF(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}
