package execution

import (
	"database/sql"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"meanrev-traderv1/internal/model"
)

// Journal persists order placement attempts to SQLite for analysis and audit.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) a SQLite journal database.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol      TEXT NOT NULL,
		kind        TEXT NOT NULL,
		side        TEXT NOT NULL,
		qty         INTEGER NOT NULL,
		order_id    TEXT,
		status      TEXT,
		reason      TEXT,
		error       TEXT,
		placed_at   DATETIME NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);
	CREATE INDEX IF NOT EXISTS idx_orders_placed_at ON orders(placed_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[journal] opened order journal at %s", dbPath)
	return &Journal{db: db}, nil
}

// RecordOrder persists one placement attempt, successful or not.
func (j *Journal) RecordOrder(symbol string, d model.Decision, ack model.OrderAck, placeErr error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	errText := ""
	if placeErr != nil {
		errText = placeErr.Error()
	}

	_, err := j.db.Exec(
		`INSERT INTO orders (symbol, kind, side, qty, order_id, status, reason, error, placed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		symbol,
		string(d.Kind),
		string(d.Side),
		d.Quantity,
		ack.OrderID,
		ack.Status,
		d.Reason,
		errText,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// OrderRecord represents a row from the orders table.
type OrderRecord struct {
	ID       int64  `json:"id"`
	Symbol   string `json:"symbol"`
	Kind     string `json:"kind"`
	Side     string `json:"side"`
	Qty      int64  `json:"qty"`
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
	Reason   string `json:"reason"`
	Error    string `json:"error"`
	PlacedAt string `json:"placed_at"`
}

// GetOrders returns the last N order attempts, newest first.
func (j *Journal) GetOrders(limit int) ([]OrderRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, symbol, kind, side, qty, order_id, status, reason, error, placed_at
		 FROM orders ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []OrderRecord
	for rows.Next() {
		var o OrderRecord
		if err := rows.Scan(&o.ID, &o.Symbol, &o.Kind, &o.Side, &o.Qty,
			&o.OrderID, &o.Status, &o.Reason, &o.Error, &o.PlacedAt); err != nil {
			continue
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// DB returns the underlying sql.DB for health checks.
func (j *Journal) DB() *sql.DB { return j.db }

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
