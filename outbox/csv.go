package outbox

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CSVJournal appends trade records to a CSV file, writing the header when
// the file is fresh. Each record is flushed before RecordTrade returns.
type CSVJournal struct {
	f *os.File
	w *csv.Writer
}

var csvHeader = []string{
	"trade_id", "symbol", "direction", "entry_price", "exit_price",
	"entry_time", "exit_time", "realized_pl", "reason",
}

func NewCSVJournal(path string) (*CSVJournal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open csv journal %s: %w", path, err)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat csv journal: %w", err)
	}

	j := &CSVJournal{f: f, w: csv.NewWriter(f)}
	if st.Size() == 0 {
		if err := j.w.Write(csvHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
		j.w.Flush()
	}
	return j, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	rec := []string{
		t.TradeID,
		t.Symbol,
		t.Direction,
		strconv.FormatFloat(t.EntryPrice, 'f', -1, 64),
		strconv.FormatFloat(t.ExitPrice, 'f', -1, 64),
		t.EntryTime.Format(time.RFC3339),
		t.ExitTime.Format(time.RFC3339),
		strconv.FormatFloat(t.RealizedPL, 'f', -1, 64),
		t.Reason,
	}
	if err := j.w.Write(rec); err != nil {
		return fmt.Errorf("write trade csv: %w", err)
	}
	j.w.Flush()
	return j.w.Error()
}

func (j *CSVJournal) Close() error {
	j.w.Flush()
	if err := j.w.Error(); err != nil {
		j.f.Close()
		return err
	}
	return j.f.Close()
}
