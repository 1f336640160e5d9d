package risk

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// QuoteFunc fetches the latest traded price for the monitored symbol.
type QuoteFunc func(ctx context.Context) (float64, error)

// Limits are the daily circuit breakers. A non-positive value disables that
// side.
type Limits struct {
	ProfitTarget float64
	MaxDailyLoss float64
	Capital      float64
	Leverage     float64
}

// Monitor watches total daily PnL (realized + mark-to-market) during the
// session and raises the shared force-close flag when a limit trips. It
// never enqueues signals or touches the position itself; the evaluation
// loop observes the flag at its next tick. Once a limit trips the monitor
// stops for the remainder of the day.
type Monitor struct {
	State    *State
	Quote    QuoteFunc
	Limits   Limits
	Interval time.Duration // defaults to 60s

	// InSession gates checks to trading hours.
	InSession func(time.Time) bool
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time

	Log *logrus.Entry
}

func (m *Monitor) interval() time.Duration {
	if m.Interval > 0 {
		return m.Interval
	}
	return time.Minute
}

func (m *Monitor) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Run loops until a limit trips or ctx is canceled. Call in its own
// goroutine, one per trading session.
func (m *Monitor) Run(ctx context.Context) {
	if m.Limits.ProfitTarget <= 0 && m.Limits.MaxDailyLoss <= 0 {
		m.Log.Debug("risk monitor disabled: no limits configured")
		return
	}

	m.Log.WithFields(logrus.Fields{
		"profit_target":  m.Limits.ProfitTarget,
		"max_daily_loss": m.Limits.MaxDailyLoss,
		"leverage":       m.Limits.Leverage,
	}).Info("risk monitor started")

	ticker := time.NewTicker(m.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Log.Info("risk monitor stopped")
			return
		case <-ticker.C:
		}

		if m.InSession != nil && !m.InSession(m.now()) {
			continue
		}
		if tripped := m.check(ctx); tripped {
			return
		}
	}
}

// check computes total daily PnL and trips a limit if one is crossed.
// Returns true when monitoring should stop for the day.
func (m *Monitor) check(ctx context.Context) bool {
	snap := m.State.Snapshot()
	if snap.DailyStopTriggered || snap.ProfitTargetTriggered {
		return true
	}

	total := snap.DailyRealized
	if snap.Direction != 0 && snap.EntryPrice > 0 {
		price, err := m.Quote(ctx)
		if err != nil {
			// Quote failures are not actionable here; fall back to
			// realized-only and try again next interval.
			m.Log.WithError(err).Warn("risk monitor: quote fetch failed")
		} else if price > 0 {
			unrealized, _ := PnL(m.Limits.Capital, m.Limits.Leverage, snap.EntryPrice, price, snap.Direction)
			total += unrealized
		}
	}

	if m.Limits.ProfitTarget > 0 && total >= m.Limits.ProfitTarget {
		m.Log.WithField("total_pnl", total).Warn("profit target reached, forcing close")
		m.State.Halt(HaltProfitTarget)
		return true
	}
	if m.Limits.MaxDailyLoss > 0 && total <= -m.Limits.MaxDailyLoss {
		m.Log.WithField("total_pnl", total).Warn("daily loss limit breached, forcing close")
		m.State.Halt(HaltDailyLoss)
		return true
	}

	m.Log.WithFields(logrus.Fields{
		"total_pnl": total,
		"direction": snap.Direction,
	}).Debug("risk monitor check")
	return false
}
