package store

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"matchbook/internal/orderbook"
)

// Store journals executed trades to SQLite. It is a downstream consumer of
// the engine's trade stream; the matching core itself keeps no history.
type Store struct {
	db *sql.DB
}

// New creates a new Store and initializes the schema
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		price INTEGER NOT NULL,  -- in cents
		quantity INTEGER NOT NULL,
		buy_order_id INTEGER NOT NULL,
		sell_order_id INTEGER NOT NULL,
		executed_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol, executed_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordTrade appends one executed trade to the journal.
func (s *Store) RecordTrade(tr orderbook.Trade) error {
	_, err := s.db.Exec(`
		INSERT INTO trades (id, symbol, price, quantity, buy_order_id, sell_order_id, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, tr.ID, tr.Symbol, tr.Price, tr.Quantity, tr.BuyOrderID, tr.SellOrderID, tr.Timestamp)
	return err
}

// RecentTrades returns the last n trades for a symbol, oldest first.
// An empty symbol returns the most recent trades across all symbols.
func (s *Store) RecentTrades(symbol string, n int) ([]orderbook.Trade, error) {
	query := `
		SELECT id, symbol, price, quantity, buy_order_id, sell_order_id, executed_at
		FROM trades
	`
	args := []any{}
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY executed_at DESC, id DESC LIMIT ?`
	args = append(args, n)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []orderbook.Trade
	for rows.Next() {
		var tr orderbook.Trade
		var ts time.Time
		if err := rows.Scan(&tr.ID, &tr.Symbol, &tr.Price, &tr.Quantity,
			&tr.BuyOrderID, &tr.SellOrderID, &ts); err != nil {
			return nil, err
		}
		tr.Timestamp = ts
		trades = append(trades, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Flip to chronological order
	for i, j := 0, len(trades)-1; i < j; i, j = i+1, j-1 {
		trades[i], trades[j] = trades[j], trades[i]
	}
	return trades, nil
}

// TradeCount returns the total number of journaled trades.
func (s *Store) TradeCount() (int64, error) {
	var count int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM trades`).Scan(&count)
	return count, err
}

// VolumeBySymbol sums traded quantity per symbol, for the end-of-run report.
func (s *Store) VolumeBySymbol() (map[string]int64, error) {
	rows, err := s.db.Query(`SELECT symbol, SUM(quantity) FROM trades GROUP BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	volumes := make(map[string]int64)
	for rows.Next() {
		var symbol string
		var qty int64
		if err := rows.Scan(&symbol, &qty); err != nil {
			return nil, err
		}
		volumes[symbol] = qty
	}
	return volumes, rows.Err()
}
