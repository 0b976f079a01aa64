package api

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"matchbook/internal/orderbook"
)

// FeedEvent is one message on the live feed: an executed trade, or the
// refreshed book snapshot for the symbol it traded on.
type FeedEvent struct {
	Type  string                  `json:"type"`
	Trade *orderbook.Trade        `json:"trade,omitempty"`
	Book  *orderbook.BookSnapshot `json:"book,omitempty"`
}

func tradeEvent(tr orderbook.Trade) FeedEvent {
	return FeedEvent{Type: "trade", Trade: &tr}
}

func bookEvent(snap orderbook.BookSnapshot) FeedEvent {
	return FeedEvent{Type: "book", Book: &snap}
}

// Hub fans feed events out to WebSocket subscribers. Events are encoded
// once per publish; a subscriber whose buffer is full misses the event
// rather than backing up the matching path.
type Hub struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

func (h *Hub) attach(sub *subscriber) {
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) detach(sub *subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.send)
	}
	h.mu.Unlock()
}

func (h *Hub) subscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish offers the event to every subscriber without blocking.
func (h *Hub) Publish(ev FeedEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		select {
		case sub.send <- data:
		default:
			// Subscriber buffer full, drop the event for them
		}
	}
}

// Stop disconnects every subscriber.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.send)
		sub.conn.Close()
	}
}

func (sub *subscriber) writeLoop(h *Hub) {
	defer func() {
		h.detach(sub)
		sub.conn.Close()
	}()

	for data := range sub.send {
		if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// readLoop drains incoming frames so close and control messages are
// processed. The feed itself is broadcast-only.
func (sub *subscriber) readLoop(h *Hub) {
	defer func() {
		h.detach(sub)
		sub.conn.Close()
	}()

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}
