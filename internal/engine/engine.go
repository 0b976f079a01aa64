package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"matchbook/internal/orderbook"
)

// TradeHandler receives every trade the engine produces. Handlers run after
// the owning book's lock has been released, so a slow consumer cannot stall
// matching on any symbol.
type TradeHandler func(orderbook.Trade)

// Engine routes incoming orders to per-symbol books and fans executed trades
// out to registered handlers. Submissions for different symbols never block
// each other; lock order is always registry first, then one book, so no two
// book locks are ever held together.
type Engine struct {
	registry *Registry
	lastID   atomic.Uint64

	mu       sync.RWMutex
	symbols  map[uint64]string // resting order id -> owning symbol
	handlers []TradeHandler
}

func New() *Engine {
	return &Engine{
		registry: NewRegistry(),
		symbols:  make(map[uint64]string),
	}
}

// OnTrade registers a handler for executed trades.
func (e *Engine) OnTrade(fn TradeHandler) {
	e.mu.Lock()
	e.handlers = append(e.handlers, fn)
	e.mu.Unlock()
}

// Submit places a limit order. It returns the trades produced by the
// crossing loop, in production order, along with the assigned order id.
func (e *Engine) Submit(side orderbook.Side, symbol string, quantity, price int64) ([]orderbook.Trade, uint64, error) {
	// Validate before resolving the book so a rejected submission for a
	// brand-new symbol leaves no trace at all.
	if quantity <= 0 {
		return nil, 0, orderbook.ErrInvalidQuantity
	}

	order := &orderbook.Order{
		ID:        e.lastID.Add(1),
		Symbol:    symbol,
		Side:      side,
		Price:     price,
		Quantity:  quantity,
		Timestamp: time.Now(),
	}

	book := e.registry.BookFor(symbol)

	// Index the id before the order can rest. Once it is on the book a
	// concurrent submission may consume it, and that submission's cleanup
	// must find the entry to reap it.
	e.mu.Lock()
	e.symbols[order.ID] = symbol
	e.mu.Unlock()

	trades, err := book.Submit(order)
	if err != nil {
		e.unindex(order.ID)
		return nil, 0, err
	}

	e.reindex(book, order.ID, quantity, trades)
	e.dispatch(trades)

	return trades, order.ID, nil
}

// reindex drops the taker's entry if the submission consumed it entirely,
// and entries for resting orders the submission fully consumed. The filled
// total comes from the trades alone; once the book lock is released other
// submissions may already be mutating the order itself.
func (e *Engine) reindex(book *orderbook.OrderBook, takerID uint64, quantity int64, trades []orderbook.Trade) {
	var filled int64
	for _, tr := range trades {
		filled += tr.Quantity
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if filled >= quantity {
		delete(e.symbols, takerID)
	}
	for _, tr := range trades {
		maker := tr.BuyOrderID
		if maker == takerID {
			maker = tr.SellOrderID
		}
		if _, resting := book.GetOrder(maker); !resting {
			delete(e.symbols, maker)
		}
	}
}

func (e *Engine) unindex(id uint64) {
	e.mu.Lock()
	delete(e.symbols, id)
	e.mu.Unlock()
}

// Cancel removes a resting order, wherever it lives. Cancelling an unknown,
// already-cancelled, or fully filled id reports ErrOrderNotFound.
func (e *Engine) Cancel(id uint64) error {
	e.mu.RLock()
	symbol, ok := e.symbols[id]
	e.mu.RUnlock()
	if !ok {
		return orderbook.ErrOrderNotFound
	}

	book, ok := e.registry.Lookup(symbol)
	if !ok {
		return orderbook.ErrOrderNotFound
	}
	err := book.Cancel(id)

	// The index entry is dead whether the cancel landed or the order had
	// already left the book.
	e.unindex(id)

	return err
}

// Snapshot returns a consistent view of one symbol's book. The second
// return is false if the symbol has never been seen.
func (e *Engine) Snapshot(symbol string) (orderbook.BookSnapshot, bool) {
	book, ok := e.registry.Lookup(symbol)
	if !ok {
		return orderbook.BookSnapshot{}, false
	}
	return book.Snapshot(), true
}

// Symbols lists every symbol with a book, sorted.
func (e *Engine) Symbols() []string {
	return e.registry.Symbols()
}

// OpenOrders reports how many orders are resting across all books.
func (e *Engine) OpenOrders() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.symbols)
}

func (e *Engine) dispatch(trades []orderbook.Trade) {
	if len(trades) == 0 {
		return
	}
	e.mu.RLock()
	handlers := make([]TradeHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	for _, tr := range trades {
		for _, fn := range handlers {
			fn(tr)
		}
	}
}
