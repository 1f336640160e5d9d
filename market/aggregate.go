package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrTransient marks an upstream failure worth retrying (rate limiting,
// transient network errors). Fetchers wrap such errors with it; everything
// else is treated as permanent.
var ErrTransient = errors.New("transient data error")

// FatalDataError reports a fetch that failed for good: retries exhausted or
// a permanent upstream error. It aborts the current evaluation tick only.
type FatalDataError struct {
	Symbol string
	Err    error
}

func (e *FatalDataError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Symbol, e.Err)
}

func (e *FatalDataError) Unwrap() error { return e.Err }

// RawBar is an upstream candle before normalization: a timestamp in
// whatever zone the vendor uses, plus OHLCV and turnover.
type RawBar struct {
	Time     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Turnover float64
}

// BarFetcher is the slice of the brokerage surface the aggregator consumes.
type BarFetcher interface {
	FetchHistoricalBars(ctx context.Context, symbol string, from, to time.Time) ([]RawBar, error)
}

// Session is a regular-trading-hours window in minutes of day; bars with
// OpenMinute <= Minute <= CloseMinute are kept.
type Session struct {
	OpenMinute  int
	CloseMinute int
}

// USEquity is the regular session for US listings, 09:30-16:00.
var USEquity = Session{OpenMinute: 9*60 + 30, CloseMinute: 16 * 60}

var sessions = map[string]Session{
	"US": USEquity,
	"HK": {OpenMinute: 9*60 + 30, CloseMinute: 16 * 60},
}

// SessionFor returns the regular trading session for a calendar market
// code. ok is false for markets this system does not trade.
func SessionFor(mkt string) (Session, bool) {
	s, ok := sessions[mkt]
	return s, ok
}

func (s Session) contains(minute int) bool {
	return minute >= s.OpenMinute && minute <= s.CloseMinute
}

// Aggregator turns raw upstream candles into a clean per-day Series:
// timezone-normalized, filtered to the regular session, deduplicated by
// (day, minute) with a keep-first policy, with any bar dated after "now"
// discarded. Fetches retry transient errors with bounded exponential
// backoff before escalating to a FatalDataError.
type Aggregator struct {
	Source  BarFetcher
	Loc     *time.Location
	Session Session

	// Retry policy. Zero values fall back to 3 attempts starting at 1s.
	MaxRetries   uint64
	InitialDelay time.Duration

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func (a *Aggregator) now() time.Time {
	if a.Now != nil {
		return a.Now().In(a.Loc)
	}
	return time.Now().In(a.Loc)
}

// Fetch returns the normalized series for symbol covering daysBack calendar
// days up to and including today. Repeated calls for a closed historical
// range are idempotent barring upstream data corrections.
func (a *Aggregator) Fetch(ctx context.Context, symbol string, daysBack int) (Series, error) {
	now := a.now()
	to := now
	from := DayOf(now).AddDate(0, 0, -daysBack)

	raw, err := a.fetchWithRetry(ctx, symbol, from, to)
	if err != nil {
		return nil, &FatalDataError{Symbol: symbol, Err: err}
	}
	return a.normalize(symbol, raw, now), nil
}

func (a *Aggregator) fetchWithRetry(ctx context.Context, symbol string, from, to time.Time) ([]RawBar, error) {
	retries := a.MaxRetries
	if retries == 0 {
		retries = 3
	}
	delay := a.InitialDelay
	if delay == 0 {
		delay = time.Second
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = delay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	var bars []RawBar
	op := func() error {
		var err error
		bars, err = a.Source.FetchHistoricalBars(ctx, symbol, from, to)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrTransient) {
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, retries), ctx))
	if err != nil {
		return nil, err
	}
	return bars, nil
}

// normalize re-stamps each candle into the aggregator's location, drops
// bars outside the regular session or dated after now, and deduplicates by
// (day, minute) keeping the first occurrence.
func (a *Aggregator) normalize(symbol string, raw []RawBar, now time.Time) Series {
	today := DayOf(now)

	type slot struct {
		day    int64
		minute int
	}
	seen := make(map[slot]bool, len(raw))

	out := make(Series, 0, len(raw))
	for _, rb := range raw {
		t := rb.Time.In(a.Loc)
		day := DayOf(t)
		minute := MinuteOfDay(t)

		if day.After(today) {
			continue
		}
		if !a.Session.contains(minute) {
			continue
		}

		k := slot{day: day.Unix(), minute: minute}
		if seen[k] {
			continue
		}
		seen[k] = true

		out = append(out, Bar{
			Symbol:   symbol,
			Day:      day,
			Minute:   minute,
			Open:     rb.Open,
			High:     rb.High,
			Low:      rb.Low,
			Close:    rb.Close,
			Volume:   rb.Volume,
			Turnover: rb.Turnover,
		})
	}

	out.sort()
	return out
}
