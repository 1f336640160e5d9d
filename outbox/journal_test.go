package outbox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrade() TradeRecord {
	return TradeRecord{
		TradeID:    "01J0TESTTRADE",
		Symbol:     "QQQ",
		Direction:  "long",
		EntryPrice: 101.5,
		ExitPrice:  102.8,
		EntryTime:  time.Date(2025, 5, 14, 10, 0, 0, 0, time.UTC),
		ExitTime:   time.Date(2025, 5, 14, 11, 30, 0, 0, time.UTC),
		RealizedPL: 1280.5,
		Reason:     "trailing-take-profit",
	}
}

func TestSQLiteJournalRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewSQLiteJournal(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	rec := sampleTrade()
	require.NoError(t, j.RecordTrade(rec))

	day := time.Date(2025, 5, 14, 0, 0, 0, 0, time.UTC)
	got, err := j.ListTradesClosedBetween(day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, rec.TradeID, got[0].TradeID)
	assert.Equal(t, rec.Direction, got[0].Direction)
	assert.InDelta(t, rec.RealizedPL, got[0].RealizedPL, 1e-9)
	assert.True(t, got[0].ExitTime.Equal(rec.ExitTime))

	// Outside the window.
	got, err = j.ListTradesClosedBetween(day.AddDate(0, 0, 1), day.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCSVJournalWritesHeaderOnce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")

	j, err := NewCSVJournal(path)
	require.NoError(t, err)
	require.NoError(t, j.RecordTrade(sampleTrade()))
	require.NoError(t, j.Close())

	// Reopen and append: no second header.
	j, err = NewCSVJournal(path)
	require.NoError(t, err)
	require.NoError(t, j.RecordTrade(sampleTrade()))
	require.NoError(t, j.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "trade_id,"))
	assert.Contains(t, lines[1], "QQQ")
	assert.Contains(t, lines[2], "trailing-take-profit")
}
