package orderbook

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// OrderBook is an in-memory order book for a single symbol. All mutation
// happens under the book's own lock; a submission's entire crossing loop is
// atomic with respect to other operations on the same symbol.
type OrderBook struct {
	Symbol string

	mu     sync.RWMutex
	bids   *ladder // Best bid = Max
	asks   *ladder // Best ask = Min
	orders map[uint64]*Order
	seq    uint64
}

func New(symbol string) *OrderBook {
	return &OrderBook{
		Symbol: symbol,
		bids:   newLadder(),
		asks:   newLadder(),
		orders: make(map[uint64]*Order),
	}
}

// Submit runs the crossing loop for an incoming limit order and rests any
// unmatched remainder. Trades are returned in the order they were produced,
// each priced at the resting order's price.
func (ob *OrderBook) Submit(order *Order) ([]Trade, error) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	if order.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if order.Timestamp.IsZero() {
		order.Timestamp = time.Now()
	}
	order.Symbol = ob.Symbol
	ob.seq++
	order.Seq = ob.seq

	trades := ob.match(order)

	if !order.IsFilled() {
		ob.rest(order)
	}

	return trades, nil
}

// bestOpposing returns the top level the given side would match against:
// the lowest ask for a buy, the highest bid for a sell.
func (ob *OrderBook) bestOpposing(side Side) *PriceLevel {
	if side == Buy {
		return ob.asks.Min()
	}
	return ob.bids.Max()
}

func (ob *OrderBook) crosses(incoming *Order, best int64) bool {
	if incoming.Side == Buy {
		return incoming.Price >= best
	}
	return incoming.Price <= best
}

func (ob *OrderBook) match(incoming *Order) []Trade {
	var trades []Trade

	opposing := ob.asks
	if incoming.Side == Sell {
		opposing = ob.bids
	}

	// Always consume the best opposing price before a worse one; within a
	// level, strict FIFO.
	for !incoming.IsFilled() {
		level := ob.bestOpposing(incoming.Side)
		if level == nil || !ob.crosses(incoming, level.Price) {
			break
		}
		trades = append(trades, ob.matchAtLevel(incoming, level)...)
		if level.Empty() {
			opposing.Delete(level.Price)
		}
	}

	return trades
}

func (ob *OrderBook) matchAtLevel(incoming *Order, level *PriceLevel) []Trade {
	var trades []Trade

	for !incoming.IsFilled() {
		resting := level.Front()
		if resting == nil {
			break
		}

		qty := min(incoming.Remaining(), resting.Remaining())
		incoming.Filled += qty
		resting.Filled += qty

		buyID, sellID := incoming.ID, resting.ID
		if incoming.Side == Sell {
			buyID, sellID = resting.ID, incoming.ID
		}

		trades = append(trades, Trade{
			ID:          uuid.New().String(),
			Symbol:      ob.Symbol,
			Price:       level.Price, // Trade at resting order's price
			Quantity:    qty,
			BuyOrderID:  buyID,
			SellOrderID: sellID,
			Timestamp:   time.Now(),
		})

		if level.PopFrontIfFilled() {
			delete(ob.orders, resting.ID)
		}
	}

	return trades
}

func (ob *OrderBook) rest(order *Order) {
	ob.orders[order.ID] = order

	side := ob.bids
	if order.Side == Sell {
		side = ob.asks
	}
	side.Upsert(order.Price).Append(order)
}

// Cancel removes a resting order from the book. A second cancel of the same
// id, or a cancel of a fully filled order, reports ErrOrderNotFound.
func (ob *OrderBook) Cancel(id uint64) error {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	order, ok := ob.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	delete(ob.orders, id)
	order.Filled = order.Quantity

	side := ob.bids
	if order.Side == Sell {
		side = ob.asks
	}
	if level := side.Find(order.Price); level != nil {
		level.Remove(id)
		if level.Empty() {
			side.Delete(order.Price)
		}
	}

	return nil
}

// GetOrder returns a resting order by id.
func (ob *OrderBook) GetOrder(id uint64) (*Order, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	order, ok := ob.orders[id]
	return order, ok
}

// BookSnapshot is a consistent point-in-time view of the book.
type BookSnapshot struct {
	Symbol string          `json:"symbol"`
	Bids   []LevelSnapshot `json:"bids"` // Descending by price
	Asks   []LevelSnapshot `json:"asks"` // Ascending by price
}

type LevelSnapshot struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"`
}

func (ob *OrderBook) Snapshot() BookSnapshot {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	snap := BookSnapshot{
		Symbol: ob.Symbol,
		Bids:   make([]LevelSnapshot, 0, ob.bids.Len()),
		Asks:   make([]LevelSnapshot, 0, ob.asks.Len()),
	}

	ob.bids.Descend(func(level *PriceLevel) bool {
		snap.Bids = append(snap.Bids, LevelSnapshot{Price: level.Price, Quantity: level.TotalQuantity()})
		return true
	})
	ob.asks.Ascend(func(level *PriceLevel) bool {
		snap.Asks = append(snap.Asks, LevelSnapshot{Price: level.Price, Quantity: level.TotalQuantity()})
		return true
	})

	return snap
}

// BestBid returns the highest bid price, or 0 if no bids
func (ob *OrderBook) BestBid() int64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	if level := ob.bids.Max(); level != nil {
		return level.Price
	}
	return 0
}

// BestAsk returns the lowest ask price, or 0 if no asks
func (ob *OrderBook) BestAsk() int64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	if level := ob.asks.Min(); level != nil {
		return level.Price
	}
	return 0
}

// MidPrice returns the midpoint between best bid and ask
func (ob *OrderBook) MidPrice() int64 {
	bid := ob.BestBid()
	ask := ob.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return (bid + ask) / 2
}
