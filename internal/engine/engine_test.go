package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbook/internal/orderbook"
)

func TestSubmitAssignsMonotonicIDs(t *testing.T) {
	e := New()

	_, first, err := e.Submit(orderbook.Buy, "AAPL", 10, 10000)
	require.NoError(t, err)
	_, second, err := e.Submit(orderbook.Buy, "GOOGL", 10, 20000)
	require.NoError(t, err)

	assert.Greater(t, second, first)
}

func TestSubmitInvalidQuantity(t *testing.T) {
	e := New()

	for _, qty := range []int64{0, -1} {
		trades, id, err := e.Submit(orderbook.Buy, "AAPL", qty, 10000)
		assert.ErrorIs(t, err, orderbook.ErrInvalidQuantity)
		assert.Empty(t, trades)
		assert.Zero(t, id)
	}

	// Rejected submissions must not even create the symbol's book
	_, ok := e.Snapshot("AAPL")
	assert.False(t, ok)
}

func TestSweepScenario(t *testing.T) {
	e := New()

	_, _, err := e.Submit(orderbook.Sell, "AAPL", 50, 10000)
	require.NoError(t, err)
	_, _, err = e.Submit(orderbook.Sell, "AAPL", 30, 10100)
	require.NoError(t, err)

	trades, _, err := e.Submit(orderbook.Buy, "AAPL", 60, 10100)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	assert.Equal(t, int64(50), trades[0].Quantity)
	assert.Equal(t, int64(10000), trades[0].Price)
	assert.Equal(t, int64(10), trades[1].Quantity)
	assert.Equal(t, int64(10100), trades[1].Price)

	snap, ok := e.Snapshot("AAPL")
	require.True(t, ok)
	require.Len(t, snap.Asks, 1)
	assert.Equal(t, orderbook.LevelSnapshot{Price: 10100, Quantity: 20}, snap.Asks[0])
	assert.Empty(t, snap.Bids)
}

func TestSymbolsAreIsolated(t *testing.T) {
	e := New()

	e.Submit(orderbook.Buy, "AAPL", 10, 10000)
	e.Submit(orderbook.Sell, "GOOGL", 5, 9000)

	// A crossing sell on GOOGL must not touch the AAPL bid
	trades, _, err := e.Submit(orderbook.Buy, "GOOGL", 5, 9000)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	snap, ok := e.Snapshot("AAPL")
	require.True(t, ok)
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, int64(10), snap.Bids[0].Quantity)
}

func TestCancel(t *testing.T) {
	e := New()

	_, id, err := e.Submit(orderbook.Buy, "AAPL", 10, 10000)
	require.NoError(t, err)

	require.NoError(t, e.Cancel(id))

	snap, _ := e.Snapshot("AAPL")
	assert.Empty(t, snap.Bids)

	// Second cancel of the same id reports not found
	assert.ErrorIs(t, e.Cancel(id), orderbook.ErrOrderNotFound)
}

func TestCancelUnknownID(t *testing.T) {
	e := New()
	assert.ErrorIs(t, e.Cancel(999), orderbook.ErrOrderNotFound)
}

func TestCancelFilledOrder(t *testing.T) {
	e := New()

	_, restingID, err := e.Submit(orderbook.Sell, "AAPL", 10, 10000)
	require.NoError(t, err)

	trades, _, err := e.Submit(orderbook.Buy, "AAPL", 10, 10000)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	assert.ErrorIs(t, e.Cancel(restingID), orderbook.ErrOrderNotFound)
}

func TestSnapshotUnknownSymbol(t *testing.T) {
	e := New()
	_, ok := e.Snapshot("TSLA")
	assert.False(t, ok)
}

func TestOnTradeHandler(t *testing.T) {
	e := New()

	var mu sync.Mutex
	var seen []orderbook.Trade
	e.OnTrade(func(tr orderbook.Trade) {
		mu.Lock()
		seen = append(seen, tr)
		mu.Unlock()
	})

	e.Submit(orderbook.Sell, "AAPL", 10, 10000)
	trades, _, err := e.Submit(orderbook.Buy, "AAPL", 10, 10000)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.Equal(t, trades[0].ID, seen[0].ID)
}

func TestOpenOrders(t *testing.T) {
	e := New()

	_, id, _ := e.Submit(orderbook.Buy, "AAPL", 10, 10000)
	e.Submit(orderbook.Buy, "GOOGL", 10, 10000)
	assert.Equal(t, 2, e.OpenOrders())

	e.Cancel(id)
	assert.Equal(t, 1, e.OpenOrders())
}

func TestFilledOrdersLeaveNoIndexEntry(t *testing.T) {
	e := New()

	_, makerID, err := e.Submit(orderbook.Sell, "AAPL", 10, 10000)
	require.NoError(t, err)
	assert.Equal(t, 1, e.OpenOrders())

	trades, takerID, err := e.Submit(orderbook.Buy, "AAPL", 10, 10000)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	// Both sides filled completely, so neither id may linger in the index
	assert.Zero(t, e.OpenOrders())
	assert.ErrorIs(t, e.Cancel(makerID), orderbook.ErrOrderNotFound)
	assert.ErrorIs(t, e.Cancel(takerID), orderbook.ErrOrderNotFound)
}

// Crossing orders racing onto one symbol: equal buy and sell counts at a
// single price must leave the book empty, and every consumed id must have
// been reaped from the open-order index no matter which submission's
// bookkeeping ran last.
func TestConcurrentCrossingSameSymbol(t *testing.T) {
	e := New()
	const pairs = 200

	var wg sync.WaitGroup
	for i := 0; i < pairs; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, _, err := e.Submit(orderbook.Buy, "AAPL", 1, 10000); err != nil {
				t.Errorf("buy: unexpected error: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, _, err := e.Submit(orderbook.Sell, "AAPL", 1, 10000); err != nil {
				t.Errorf("sell: unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	snap, ok := e.Snapshot("AAPL")
	require.True(t, ok)
	assert.Empty(t, snap.Bids)
	assert.Empty(t, snap.Asks)
	assert.Zero(t, e.OpenOrders())
}

func TestConcurrentSubmissionsAcrossSymbols(t *testing.T) {
	e := New()
	symbols := []string{"AAPL", "GOOGL", "MSFT", "AMZN"}

	var wg sync.WaitGroup
	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				side := orderbook.Buy
				price := int64(10000 - i%10)
				if i%2 == 1 {
					side = orderbook.Sell
					price = int64(10000 + i%10)
				}
				_, _, err := e.Submit(side, symbol, 5, price)
				if err != nil {
					t.Errorf("%s: unexpected error: %v", symbol, err)
					return
				}
			}
		}(symbol)
	}
	wg.Wait()

	// Every book must be uncrossed once all submissions have returned
	for _, symbol := range symbols {
		book, ok := e.registry.Lookup(symbol)
		require.True(t, ok)
		bid, ask := book.BestBid(), book.BestAsk()
		if bid != 0 && ask != 0 {
			assert.Less(t, bid, ask, "crossed book for %s", symbol)
		}
	}
}

func TestRegistryCreatesBookExactlyOnce(t *testing.T) {
	r := NewRegistry()

	const goroutines = 32
	books := make([]*orderbook.OrderBook, goroutines)

	var start sync.WaitGroup
	var done sync.WaitGroup
	start.Add(1)
	for i := 0; i < goroutines; i++ {
		done.Add(1)
		go func(i int) {
			defer done.Done()
			start.Wait()
			books[i] = r.BookFor("TSLA")
		}(i)
	}
	start.Done()
	done.Wait()

	for i := 1; i < goroutines; i++ {
		require.Same(t, books[0], books[i], "goroutine %d got a different book", i)
	}
	assert.Equal(t, []string{"TSLA"}, r.Symbols())
}
