package engine

import (
	"sort"
	"sync"

	"matchbook/internal/orderbook"
)

// Registry maps symbols to their order books. A book is created lazily on
// first reference and never removed; an empty book is a valid steady state.
type Registry struct {
	mu    sync.RWMutex
	books map[string]*orderbook.OrderBook
}

func NewRegistry() *Registry {
	return &Registry{books: make(map[string]*orderbook.OrderBook)}
}

// BookFor returns the book for symbol, creating it if this is the first
// reference. Creation is exactly-once under concurrent first access.
func (r *Registry) BookFor(symbol string) *orderbook.OrderBook {
	r.mu.RLock()
	book, ok := r.books[symbol]
	r.mu.RUnlock()
	if ok {
		return book
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if book, ok := r.books[symbol]; ok {
		return book
	}
	book = orderbook.New(symbol)
	r.books[symbol] = book
	return book
}

// Lookup returns an existing book without creating one.
func (r *Registry) Lookup(symbol string) (*orderbook.OrderBook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	book, ok := r.books[symbol]
	return book, ok
}

// Symbols returns all known symbols in sorted order.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	symbols := make([]string, 0, len(r.books))
	for s := range r.books {
		symbols = append(symbols, s)
	}
	r.mu.RUnlock()

	sort.Strings(symbols)
	return symbols
}
