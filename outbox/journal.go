package outbox

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// TradeRecord is one realized round trip: entry decision to exit decision,
// priced at the bars the engine evaluated.
type TradeRecord struct {
	TradeID    string
	Symbol     string
	Direction  string // "long" | "short"
	EntryPrice float64
	ExitPrice  float64
	EntryTime  time.Time
	ExitTime   time.Time
	RealizedPL float64
	Reason     string
}

// Journal records realized trades. Implementations: SQLite and CSV.
type Journal interface {
	RecordTrade(TradeRecord) error
	Close() error
}

// SQLiteJournal persists trade records to their own SQLite file.
type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if _, err := db.Exec(tradeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create trades schema: %w", err)
	}
	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, symbol, direction, entry_price, exit_price, entry_time, exit_time, realized_pl, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.Symbol, t.Direction, t.EntryPrice, t.ExitPrice,
		t.EntryTime, t.ExitTime, t.RealizedPL, t.Reason,
	)
	if err != nil {
		return fmt.Errorf("record trade: %w", err)
	}
	return nil
}

// ListTradesClosedBetween returns trades whose exit time falls in
// [start, end), oldest first.
func (j *SQLiteJournal) ListTradesClosedBetween(start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, symbol, direction, entry_price, exit_price, entry_time, exit_time, realized_pl, reason
		FROM trades
		WHERE exit_time >= ? AND exit_time < ?
		ORDER BY exit_time`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(&t.TradeID, &t.Symbol, &t.Direction, &t.EntryPrice, &t.ExitPrice,
			&t.EntryTime, &t.ExitTime, &t.RealizedPL, &t.Reason); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// NopJournal discards trade records; used when journaling is not
// configured.
type NopJournal struct{}

func (NopJournal) RecordTrade(TradeRecord) error { return nil }
func (NopJournal) Close() error                  { return nil }
