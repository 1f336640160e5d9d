package band

import (
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/intraday/market"
)

// epsilonSigma substitutes for a missing, zero or non-finite sigma so a
// band is always defined and bounded.
const epsilonSigma = 0.001

// InsufficientHistoryError means the series does not carry enough prior
// trading days to compute a noise band. This is a configuration-level
// failure: the engine must stop rather than guess.
type InsufficientHistoryError struct {
	Need int
	Have int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient lookback history: need %d prior trading days, have %d", e.Need, e.Have)
}

// Daily is the noise band for one trading day, immutable once computed.
// Bounds widen through the day as the per-minute sigma grows.
type Daily struct {
	Day      time.Time
	UpperRef float64
	LowerRef float64
	K1       float64
	K2       float64

	sigma map[int]float64 // minute of day -> mean abs relative move
}

// Compute derives the band for target from the trailing lookback days of
// the series (target excluded).
//
// For each prior day D', move(m) = |close(D', m) / open(D') - 1|; sigma(m)
// is the mean of move(m) over the lookback days that have a bar at minute
// m. The reference prices straddle the overnight gap:
//
//	upperRef = max(open(target, first bar), close(previous day, last bar))
//	lowerRef = min(...)
func Compute(series market.Series, target time.Time, lookbackDays int, k1, k2 float64) (*Daily, error) {
	if lookbackDays < 1 {
		return nil, fmt.Errorf("lookback_days must be >= 1, got %d", lookbackDays)
	}

	days := series.Days()

	// Prior trading days, oldest first, target and anything after excluded.
	var prior []time.Time
	for _, d := range days {
		if d.Before(target) {
			prior = append(prior, d)
		}
	}
	if len(prior) < lookbackDays {
		return nil, &InsufficientHistoryError{Need: lookbackDays, Have: len(prior)}
	}
	lookback := prior[len(prior)-lookbackDays:]

	targetBars := series.DayBars(target)
	if len(targetBars) == 0 {
		return nil, fmt.Errorf("no bars for target day %s", target.Format("2006-01-02"))
	}
	prevBars := series.DayBars(prior[len(prior)-1])
	prevClose := prevBars[len(prevBars)-1].Close
	dayOpen := targetBars[0].Open

	sigma := make(map[int]float64)
	counts := make(map[int]int)
	for _, d := range lookback {
		bars := series.DayBars(d)
		if len(bars) == 0 {
			continue
		}
		open := bars[0].Open
		if open == 0 {
			continue
		}
		for _, b := range bars {
			move := math.Abs(b.Close/open - 1)
			sigma[b.Minute] += move
			counts[b.Minute]++
		}
	}
	for m := range sigma {
		sigma[m] /= float64(counts[m])
	}

	return &Daily{
		Day:      target,
		UpperRef: math.Max(dayOpen, prevClose),
		LowerRef: math.Min(dayOpen, prevClose),
		K1:       k1,
		K2:       k2,
		sigma:    sigma,
	}, nil
}

// Sigma returns the mean absolute relative move for a minute of day,
// falling back to epsilon when the lookback window had no bar at that
// minute or produced a degenerate value.
func (d *Daily) Sigma(minute int) float64 {
	s, ok := d.sigma[minute]
	if !ok || s == 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return epsilonSigma
	}
	return s
}

// Upper returns the upper bound for a minute of day.
func (d *Daily) Upper(minute int) float64 {
	return d.UpperRef * (1 + d.K1*d.Sigma(minute))
}

// Lower returns the lower bound for a minute of day.
func (d *Daily) Lower(minute int) float64 {
	return d.LowerRef * (1 - d.K2*d.Sigma(minute))
}
