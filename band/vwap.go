// Package band derives the per-day cumulative VWAP and the statistical
// noise band used to detect breakouts. Both are pure computations over a
// normalized bar series: identical input yields identical output.
package band

import "github.com/rustyeddy/intraday/market"

// VWAP returns the running volume-weighted average price for one day's bars
// in time order: cumulative turnover over cumulative volume. While the
// cumulative volume is zero the value falls back to the bar close. The
// accumulation starts fresh at the first bar of the day; callers must not
// mix days in one call.
func VWAP(bars market.Series) []float64 {
	out := make([]float64, len(bars))

	var cumVolume, cumTurnover float64
	for i, b := range bars {
		cumVolume += b.Volume
		cumTurnover += b.Turnover

		if cumVolume > 0 {
			out[i] = cumTurnover / cumVolume
		} else {
			out[i] = b.Close
		}
	}
	return out
}

// VWAPAt returns the cumulative VWAP for the day's bars up to and including
// minute. ok is false when the day has no bar at or before that minute.
func VWAPAt(dayBars market.Series, minute int) (float64, bool) {
	vals := VWAP(dayBars)
	idx := -1
	for i, b := range dayBars {
		if b.Minute <= minute {
			idx = i
		}
	}
	if idx < 0 {
		return 0, false
	}
	return vals[idx], true
}
