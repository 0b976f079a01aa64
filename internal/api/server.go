package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"matchbook/internal/engine"
	"matchbook/internal/orderbook"
	"matchbook/internal/store"
)

// Server is the read-only reporting surface: book snapshots and the trade
// tape over HTTP, plus a live WebSocket feed. Order entry stays with the
// in-process driver; there is deliberately no submission route.
type Server struct {
	engine      *engine.Engine
	store       *store.Store
	hub         *Hub
	upgrader    websocket.Upgrader
	corsOrigins []string // Allowed CORS origins (empty = allow all)
}

func NewServer(eng *engine.Engine, st *store.Store) *Server {
	s := &Server{
		engine: eng,
		store:  st,
		hub:    NewHub(),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return s.checkCORSOrigin(r.Header.Get("Origin"))
		},
	}
	return s
}

// SetCORSOrigins restricts browser access to the given origins. An empty
// slice allows all origins (development default).
func (s *Server) SetCORSOrigins(origins []string) {
	s.corsOrigins = origins
}

func (s *Server) checkCORSOrigin(origin string) bool {
	if len(s.corsOrigins) == 0 {
		return true
	}
	if origin == "" {
		return true
	}
	for _, allowed := range s.corsOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	allowedOrigins := s.corsOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/symbols", s.getSymbols)
		r.Get("/book/{symbol}", s.getBook)
		r.Get("/trades", s.getTrades)
	})

	r.Get("/ws", s.handleWebSocket)

	return r
}

func (s *Server) getSymbols(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.engine.Symbols())
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	snap, ok := s.engine.Snapshot(symbol)
	if !ok {
		http.Error(w, "unknown symbol", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

func (s *Server) getTrades(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	trades, err := s.store.RecentTrades(symbol, limit)
	if err != nil {
		http.Error(w, "failed to load trades", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []orderbook.Trade{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trades)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	sub := &subscriber{
		conn: conn,
		send: make(chan []byte, 256),
	}
	s.hub.attach(sub)

	go sub.writeLoop(s.hub)
	go sub.readLoop(s.hub)
}

// HandleTrade publishes an executed trade and the updated book to all
// subscribers. Wired to the engine's trade stream; runs outside any book
// lock by construction.
func (s *Server) HandleTrade(trade orderbook.Trade) {
	s.hub.Publish(tradeEvent(trade))

	if snap, ok := s.engine.Snapshot(trade.Symbol); ok {
		s.hub.Publish(bookEvent(snap))
	}
}

// Shutdown disconnects all WebSocket subscribers.
func (s *Server) Shutdown() {
	s.hub.Stop()
}
