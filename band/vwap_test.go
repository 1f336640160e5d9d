package band

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/intraday/market"
)

func dayBar(day time.Time, minute int, close, volume float64) market.Bar {
	return market.Bar{
		Symbol:   "QQQ",
		Day:      day,
		Minute:   minute,
		Open:     close,
		High:     close,
		Low:      close,
		Close:    close,
		Volume:   volume,
		Turnover: close * volume,
	}
}

func TestVWAPCumulative(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 5, 14, 0, 0, 0, 0, time.UTC)
	bars := market.Series{
		dayBar(day, 570, 100, 1000),
		dayBar(day, 571, 102, 1000),
		dayBar(day, 572, 98, 2000),
	}

	vals := VWAP(bars)
	require.Len(t, vals, 3)
	assert.InDelta(t, 100.0, vals[0], 1e-9)
	assert.InDelta(t, 101.0, vals[1], 1e-9)
	// (100*1000 + 102*1000 + 98*2000) / 4000
	assert.InDelta(t, 99.5, vals[2], 1e-9)
}

func TestVWAPWithinDayRange(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 5, 14, 0, 0, 0, 0, time.UTC)
	closes := []float64{100, 103, 97, 101, 99.5, 102.25}
	bars := make(market.Series, 0, len(closes))
	for i, c := range closes {
		bars = append(bars, dayBar(day, 570+i, c, float64(500+i*100)))
	}

	vals := VWAP(bars)
	lo, hi := closes[0], closes[0]
	for i, c := range closes {
		if c < lo {
			lo = c
		}
		if c > hi {
			hi = c
		}
		assert.GreaterOrEqual(t, vals[i], lo)
		assert.LessOrEqual(t, vals[i], hi)
	}
}

func TestVWAPZeroVolumeFallsBackToClose(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 5, 14, 0, 0, 0, 0, time.UTC)
	bars := market.Series{
		dayBar(day, 570, 100, 0),
		dayBar(day, 571, 101, 0),
		dayBar(day, 572, 102, 1000),
	}

	vals := VWAP(bars)
	assert.Equal(t, 100.0, vals[0])
	assert.Equal(t, 101.0, vals[1])
	assert.InDelta(t, 102.0, vals[2], 1e-9)
}

func TestVWAPAt(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 5, 14, 0, 0, 0, 0, time.UTC)
	bars := market.Series{
		dayBar(day, 570, 100, 1000),
		dayBar(day, 571, 102, 1000),
	}

	v, ok := VWAPAt(bars, 571)
	require.True(t, ok)
	assert.InDelta(t, 101.0, v, 1e-9)

	v, ok = VWAPAt(bars, 570)
	require.True(t, ok)
	assert.InDelta(t, 100.0, v, 1e-9)

	_, ok = VWAPAt(bars, 500)
	assert.False(t, ok)
}
