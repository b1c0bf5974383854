package sqlite

import (
	"database/sql"
	"fmt"
	"log"

	"meanrev-traderv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to the bar archive for inspection
// and strategy warm-up after a restart.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadBars reads archived 1s bars for a symbol with interval_start > afterTS.
// Results are ordered by interval_start ascending for correct replay order.
func (r *Reader) ReadBars(symbol string, afterTS int64) ([]model.Bar, error) {
	rows, err := r.db.Query(`
		SELECT interval_start, open, high, low, close, volume
		FROM bars_1s
		WHERE symbol = ? AND interval_start > ?
		ORDER BY interval_start ASC
	`, symbol, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars_1s: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		if err := rows.Scan(&b.IntervalStart, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan bar: %w", err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// Close closes the read connection.
func (r *Reader) Close() error {
	return r.db.Close()
}
