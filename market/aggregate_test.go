package market

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eastern = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return loc
}()

type fakeFetcher struct {
	bars  []RawBar
	fails int // number of leading calls that fail
	calls int
	err   error
}

func (f *fakeFetcher) FetchHistoricalBars(ctx context.Context, symbol string, from, to time.Time) ([]RawBar, error) {
	f.calls++
	if f.calls <= f.fails {
		return nil, f.err
	}
	return f.bars, nil
}

func rawAt(t time.Time, close float64) RawBar {
	return RawBar{Time: t, Open: close, High: close, Low: close, Close: close, Volume: 100, Turnover: close * 100}
}

func fixedNow() time.Time {
	return time.Date(2025, 5, 15, 12, 0, 0, 0, eastern)
}

func newTestAggregator(src BarFetcher) *Aggregator {
	return &Aggregator{
		Source:       src,
		Loc:          eastern,
		Session:      USEquity,
		InitialDelay: time.Millisecond,
		Now:          fixedNow,
	}
}

func TestAggregatorNormalizes(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 5, 14, 0, 0, 0, 0, eastern)
	src := &fakeFetcher{bars: []RawBar{
		rawAt(day.Add(9*time.Hour+31*time.Minute), 101),
		rawAt(day.Add(9*time.Hour+30*time.Minute), 100),
		// Same minute delivered in UTC; duplicate of 09:31 ET.
		rawAt(time.Date(2025, 5, 14, 13, 31, 0, 0, time.UTC), 999),
		// Pre-market and after-hours are filtered out.
		rawAt(day.Add(8*time.Hour), 90),
		rawAt(day.Add(17*time.Hour), 90),
		// A bar dated after "now" is discarded.
		rawAt(fixedNow().AddDate(0, 0, 2), 90),
	}}

	agg := newTestAggregator(src)
	series, err := agg.Fetch(context.Background(), "QQQ", 5)
	require.NoError(t, err)

	require.Len(t, series, 2)
	assert.Equal(t, 9*60+30, series[0].Minute)
	assert.Equal(t, 9*60+31, series[1].Minute)
	assert.Equal(t, 100.0, series[0].Close)
	// Keep-first policy: the original 09:31 bar wins over the duplicate.
	assert.Equal(t, 101.0, series[1].Close)
	assert.Equal(t, "QQQ", series[0].Symbol)
	assert.True(t, series[0].Day.Equal(day))
}

func TestAggregatorRetriesTransient(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 5, 14, 0, 0, 0, 0, eastern)
	src := &fakeFetcher{
		bars:  []RawBar{rawAt(day.Add(10*time.Hour), 100)},
		fails: 2,
		err:   fmt.Errorf("quote api: %w", ErrTransient),
	}

	agg := newTestAggregator(src)
	series, err := agg.Fetch(context.Background(), "QQQ", 5)
	require.NoError(t, err)
	assert.Len(t, series, 1)
	assert.Equal(t, 3, src.calls)
}

func TestAggregatorExhaustsRetries(t *testing.T) {
	t.Parallel()

	src := &fakeFetcher{
		fails: 10,
		err:   fmt.Errorf("rate limited: %w", ErrTransient),
	}

	agg := newTestAggregator(src)
	_, err := agg.Fetch(context.Background(), "QQQ", 5)
	require.Error(t, err)

	var fatal *FatalDataError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, "QQQ", fatal.Symbol)
	// 1 initial try + 3 retries
	assert.Equal(t, 4, src.calls)
}

func TestAggregatorPermanentErrorNotRetried(t *testing.T) {
	t.Parallel()

	src := &fakeFetcher{fails: 10, err: errors.New("bad symbol")}

	agg := newTestAggregator(src)
	_, err := agg.Fetch(context.Background(), "NOPE", 5)
	require.Error(t, err)
	assert.Equal(t, 1, src.calls)
}

func TestSeriesHelpers(t *testing.T) {
	t.Parallel()

	d1 := time.Date(2025, 5, 13, 0, 0, 0, 0, eastern)
	d2 := time.Date(2025, 5, 14, 0, 0, 0, 0, eastern)
	s := Series{
		{Day: d1, Minute: 570, Close: 1},
		{Day: d1, Minute: 571, Close: 2},
		{Day: d2, Minute: 570, Close: 3},
	}

	days := s.Days()
	require.Len(t, days, 2)
	assert.True(t, days[0].Equal(d1))

	assert.Len(t, s.DayBars(d1), 2)

	b, ok := s.LastAtOrBefore(d1, 575)
	require.True(t, ok)
	assert.Equal(t, 571, b.Minute)

	_, ok = s.LastAtOrBefore(d2, 500)
	assert.False(t, ok)
}

func TestMinuteHelpers(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 5, 14, 9, 40, 12, 0, eastern)
	assert.Equal(t, 9*60+40, MinuteOfDay(ts))
	assert.Equal(t, "09:40", MinuteString(9*60+40))
	assert.Equal(t, 0, MinuteOfDay(DayOf(ts)))
}
