package market

import (
	"fmt"
	"sort"
	"time"
)

// Bar is one minute of trade data for a single instrument, normalized to the
// market's local time. Day is midnight of the trading day in that location
// and Minute is the minute of day the bar opened (9:30 -> 570).
type Bar struct {
	Symbol   string
	Day      time.Time
	Minute   int
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Turnover float64
}

// Time returns the bar's open time.
func (b Bar) Time() time.Time {
	return b.Day.Add(time.Duration(b.Minute) * time.Minute)
}

func (b Bar) String() string {
	return fmt.Sprintf("%s %s %s O=%.4f H=%.4f L=%.4f C=%.4f V=%.0f",
		b.Symbol, b.Day.Format("2006-01-02"), MinuteString(b.Minute),
		b.Open, b.High, b.Low, b.Close, b.Volume)
}

// MinuteOfDay converts a wall-clock time to its minute of day.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// MinuteString formats a minute of day as HH:MM.
func MinuteString(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// DayOf truncates t to midnight in its own location.
func DayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Series is an ordered run of bars for one symbol, possibly spanning
// several trading days. Bars are sorted by (Day, Minute) with exactly one
// bar per slot once aggregated.
type Series []Bar

// Days returns the distinct trading days present, in ascending order.
func (s Series) Days() []time.Time {
	seen := make(map[int64]bool)
	var days []time.Time
	for _, b := range s {
		k := b.Day.Unix()
		if !seen[k] {
			seen[k] = true
			days = append(days, b.Day)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// DayBars returns the bars of one trading day in time order.
func (s Series) DayBars(day time.Time) Series {
	var out Series
	for _, b := range s {
		if b.Day.Equal(day) {
			out = append(out, b)
		}
	}
	return out
}

// LastAtOrBefore returns the latest bar of day whose minute is <= minute.
// ok is false when the day has no bar at or before that minute.
func (s Series) LastAtOrBefore(day time.Time, minute int) (Bar, bool) {
	var best Bar
	found := false
	for _, b := range s {
		if !b.Day.Equal(day) || b.Minute > minute {
			continue
		}
		if !found || b.Minute > best.Minute {
			best = b
			found = true
		}
	}
	return best, found
}

func (s Series) sort() {
	sort.Slice(s, func(i, j int) bool {
		if !s[i].Day.Equal(s[j].Day) {
			return s[i].Day.Before(s[j].Day)
		}
		return s[i].Minute < s[j].Minute
	})
}
