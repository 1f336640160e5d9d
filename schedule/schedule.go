package schedule

import (
	"context"
	"fmt"
	"time"
)

// Schedule computes the evaluation ticks of a trading day: the grid
// Start, Start+Interval, ... plus a closing tick exactly at End. All
// minutes are minutes of day in Loc.
type Schedule struct {
	Loc      *time.Location
	Start    int // first evaluation tick, e.g. 9*60+40
	End      int // closing tick / forced liquidation, e.g. 15*60+45
	Interval time.Duration

	// MaxWait bounds out-of-session sleeps so the process stays responsive
	// to stop signals. Defaults to 30 minutes.
	MaxWait time.Duration
}

// Validate rejects impossible windows up front; trading with a broken
// schedule must never start.
func (s Schedule) Validate() error {
	if s.Loc == nil {
		return fmt.Errorf("schedule: location is required")
	}
	if s.Start < 0 || s.Start >= 24*60 || s.End < 0 || s.End >= 24*60 {
		return fmt.Errorf("schedule: start/end must be minutes of day")
	}
	if s.End <= s.Start {
		return fmt.Errorf("schedule: end %s must be after start %s",
			minuteString(s.End), minuteString(s.Start))
	}
	if s.Interval < time.Minute {
		return fmt.Errorf("schedule: interval %s must be at least one minute", s.Interval)
	}
	return nil
}

func minuteString(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

func (s Schedule) maxWait() time.Duration {
	if s.MaxWait > 0 {
		return s.MaxWait
	}
	return 30 * time.Minute
}

// at returns the instant of a minute of day on t's date in Loc.
func (s Schedule) at(t time.Time, minute int) time.Time {
	t = t.In(s.Loc)
	return time.Date(t.Year(), t.Month(), t.Day(), minute/60, minute%60, 0, 0, s.Loc)
}

// SessionStart is the first tick instant on t's date.
func (s Schedule) SessionStart(t time.Time) time.Time { return s.at(t, s.Start) }

// SessionEnd is the closing tick instant on t's date.
func (s Schedule) SessionEnd(t time.Time) time.Time { return s.at(t, s.End) }

// InSession reports whether t falls inside [Start, End] on its date.
func (s Schedule) InSession(t time.Time) bool {
	t = t.In(s.Loc)
	m := t.Hour()*60 + t.Minute()
	return m >= s.Start && m <= s.End
}

// IsClosingTick reports whether t lands on the End minute, when any open
// position is forcibly liquidated.
func (s Schedule) IsClosingTick(t time.Time) bool {
	t = t.In(s.Loc)
	return t.Hour()*60+t.Minute() == s.End
}

// BarMinute is the minute of day of the most recently fully closed bar at
// t: the current minute is still forming, so its predecessor is the latest
// bar safe to evaluate. This is the canonical tick/bar alignment for every
// component.
func BarMinute(t time.Time, loc *time.Location) int {
	t = t.In(loc)
	return t.Hour()*60 + t.Minute() - 1
}

// NextTick returns the next evaluation instant strictly after now: the next
// grid point of today's session, today's closing tick if the grid has run
// out, or the start of the next day's session once today is done. Callers
// re-derive "now" each wake-up; nothing here accumulates offsets.
func (s Schedule) NextTick(now time.Time) time.Time {
	now = now.In(s.Loc)
	start := s.SessionStart(now)
	end := s.SessionEnd(now)

	if now.Before(start) {
		return start
	}
	if !now.Before(end) {
		return s.SessionStart(now.AddDate(0, 0, 1))
	}

	elapsed := now.Sub(start)
	next := start.Add(elapsed.Truncate(s.Interval) + s.Interval)
	if next.After(end) {
		return end
	}
	return next
}

// Wait sleeps until target, re-deriving the remaining duration from the
// clock at every wake-up and never sleeping longer than MaxWait in one go.
func (s Schedule) Wait(ctx context.Context, c Clock, target time.Time) error {
	for {
		remaining := target.Sub(c.Now())
		if remaining <= 0 {
			return ctx.Err()
		}
		if remaining > s.maxWait() {
			remaining = s.maxWait()
		}
		if err := c.Sleep(ctx, remaining); err != nil {
			return err
		}
	}
}
