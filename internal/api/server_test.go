package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"matchbook/internal/engine"
	"matchbook/internal/orderbook"
	"matchbook/internal/store"
)

func setupTestServer(t *testing.T) (*Server, *engine.Engine, func()) {
	t.Helper()

	f, err := os.CreateTemp("", "matchbook-api-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	dbPath := f.Name()
	f.Close()

	st, err := store.New(dbPath)
	if err != nil {
		os.Remove(dbPath)
		t.Fatalf("failed to create store: %v", err)
	}

	eng := engine.New()
	srv := NewServer(eng, st)

	cleanup := func() {
		srv.Shutdown()
		st.Close()
		os.Remove(dbPath)
	}
	return srv, eng, cleanup
}

func TestGetBook(t *testing.T) {
	srv, eng, cleanup := setupTestServer(t)
	defer cleanup()

	eng.Submit(orderbook.Buy, "AAPL", 10, 5000)

	req := httptest.NewRequest("GET", "/api/book/AAPL", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var snap orderbook.BookSnapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if snap.Symbol != "AAPL" {
		t.Errorf("expected symbol AAPL, got %s", snap.Symbol)
	}
	if len(snap.Bids) != 1 || snap.Bids[0].Quantity != 10 || snap.Bids[0].Price != 5000 {
		t.Errorf("unexpected bids: %+v", snap.Bids)
	}
	if len(snap.Asks) != 0 {
		t.Errorf("expected no asks, got %+v", snap.Asks)
	}
}

func TestGetBookUnknownSymbol(t *testing.T) {
	srv, _, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/api/book/NOPE", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestGetSymbols(t *testing.T) {
	srv, eng, cleanup := setupTestServer(t)
	defer cleanup()

	eng.Submit(orderbook.Buy, "MSFT", 1, 100)
	eng.Submit(orderbook.Buy, "AAPL", 1, 100)

	req := httptest.NewRequest("GET", "/api/symbols", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var symbols []string
	if err := json.NewDecoder(rec.Body).Decode(&symbols); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "AAPL" || symbols[1] != "MSFT" {
		t.Errorf("expected sorted [AAPL MSFT], got %v", symbols)
	}
}

func TestGetTrades(t *testing.T) {
	srv, _, cleanup := setupTestServer(t)
	defer cleanup()

	srv.store.RecordTrade(orderbook.Trade{
		ID: "t1", Symbol: "AAPL", Price: 10000, Quantity: 5,
		BuyOrderID: 2, SellOrderID: 1, Timestamp: time.Now().UTC(),
	})

	req := httptest.NewRequest("GET", "/api/trades?symbol=AAPL&limit=10", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var trades []orderbook.Trade
	if err := json.NewDecoder(rec.Body).Decode(&trades); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(trades) != 1 || trades[0].ID != "t1" {
		t.Errorf("unexpected trades: %+v", trades)
	}
}

func TestGetTradesEmptyIsJSONArray(t *testing.T) {
	srv, _, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/api/trades", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "[]\n" {
		t.Errorf("expected empty JSON array, got %q", body)
	}
}

func TestWebSocketFeed(t *testing.T) {
	srv, eng, cleanup := setupTestServer(t)
	defer cleanup()

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	eng.Submit(orderbook.Buy, "AAPL", 5, 10000)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// The handler attaches the subscriber after the handshake returns
	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.subscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never attached")
		}
		time.Sleep(5 * time.Millisecond)
	}

	srv.HandleTrade(orderbook.Trade{
		ID: "t1", Symbol: "AAPL", Price: 10000, Quantity: 5,
		BuyOrderID: 2, SellOrderID: 1, Timestamp: time.Now().UTC(),
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first FeedEvent
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("failed to read trade event: %v", err)
	}
	if first.Type != "trade" || first.Trade == nil || first.Trade.ID != "t1" {
		t.Errorf("unexpected trade event: %+v", first)
	}

	var second FeedEvent
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("failed to read book event: %v", err)
	}
	if second.Type != "book" || second.Book == nil || second.Book.Symbol != "AAPL" {
		t.Errorf("unexpected book event: %+v", second)
	}
}

func TestNoOrderSubmissionRoute(t *testing.T) {
	srv, _, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest("POST", "/api/orders", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code == http.StatusOK {
		t.Error("order submission over HTTP should not exist")
	}
}
