package orderbook

import (
	"errors"
	"time"
)

var (
	// ErrInvalidQuantity is returned when an order is submitted with a
	// non-positive quantity. The book is left untouched.
	ErrInvalidQuantity = errors.New("orderbook: quantity must be positive")

	// ErrOrderNotFound is returned when cancelling an id that is absent
	// or already fully filled.
	ErrOrderNotFound = errors.New("orderbook: order not found")
)

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Order is a resting or incoming limit order. Quantity never changes after
// submission; fills accumulate in Filled until Remaining reaches zero.
type Order struct {
	ID        uint64    `json:"id"`
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	Price     int64     `json:"price"` // Price in cents to avoid float issues
	Quantity  int64     `json:"quantity"`
	Filled    int64     `json:"filled"`
	Seq       uint64    `json:"seq"` // Arrival order within the book, for time priority
	Timestamp time.Time `json:"timestamp"`
}

func (o *Order) Remaining() int64 {
	return o.Quantity - o.Filled
}

func (o *Order) IsFilled() bool {
	return o.Filled >= o.Quantity
}

// Trade records one match event. Price is always the resting (maker)
// order's price. Immutable once produced.
type Trade struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Price       int64     `json:"price"`
	Quantity    int64     `json:"quantity"`
	BuyOrderID  uint64    `json:"buy_order_id"`
	SellOrderID uint64    `json:"sell_order_id"`
	Timestamp   time.Time `json:"timestamp"`
}
