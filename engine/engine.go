// Package engine wires the evaluation loop together: scheduled ticks,
// bar aggregation, band computation, the breakout state machine, risk
// accounting and the durable signal outbox. One Engine instance serves
// one configuration profile.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/intraday/band"
	"github.com/rustyeddy/intraday/broker"
	"github.com/rustyeddy/intraday/config"
	"github.com/rustyeddy/intraday/internal/id"
	"github.com/rustyeddy/intraday/market"
	"github.com/rustyeddy/intraday/outbox"
	"github.com/rustyeddy/intraday/risk"
	"github.com/rustyeddy/intraday/schedule"
	"github.com/rustyeddy/intraday/signal"
)

// Engine runs the signal loop for one profile. The state machine and risk
// state are owned here; the risk monitor goroutine observes risk state
// through its mutex and never touches the machine directly.
type Engine struct {
	cfg     *config.Profile
	log     *logrus.Entry
	clock   schedule.Clock
	loc     *time.Location
	sched   schedule.Schedule
	client  broker.Client
	agg     *market.Aggregator
	machine *signal.Machine
	state   *risk.State
	out     *outbox.Outbox
	journal outbox.Journal

	lastDay time.Time
}

// New builds an engine from a validated profile. The outbox and journal
// are opened by the caller so the CLI can share them with its inspection
// commands.
func New(cfg *config.Profile, client broker.Client, out *outbox.Outbox, jnl outbox.Journal, clock schedule.Clock, log *logrus.Entry) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	interval, err := cfg.Interval()
	if err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	sched := schedule.Schedule{
		Loc:      loc,
		Start:    cfg.StartMinute(),
		End:      cfg.EndMinute(),
		Interval: interval,
	}
	if err := sched.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if jnl == nil {
		jnl = outbox.NopJournal{}
	}
	sess, ok := market.SessionFor(cfg.Trading.Market)
	if !ok {
		return nil, fmt.Errorf("engine config: unknown market %q", cfg.Trading.Market)
	}
	return &Engine{
		cfg:    cfg,
		log:    log.WithField("symbol", cfg.Trading.Symbol),
		clock:  clock,
		loc:    loc,
		sched:  sched,
		client: client,
		agg: &market.Aggregator{
			Source:  client,
			Loc:     loc,
			Session: sess,
			Now:     clock.Now,
		},
		machine: signal.NewMachine(signal.Config{
			TrailingTakeProfit: cfg.Risk.TrailingTakeProfit,
			ActivationPct:      cfg.Risk.ActivationPct,
			CallbackPct:        cfg.Risk.CallbackPct,
		}),
		state:   risk.NewState(),
		out:     out,
		journal: jnl,
	}, nil
}

// State exposes the shared risk state, read by the CLI status command.
func (e *Engine) State() *risk.State { return e.state }

// Run drives the loop until ctx is canceled or a fatal error surfaces.
// Transient and per-tick data failures are logged and skipped; history
// shortfalls and outbox write failures stop the process.
func (e *Engine) Run(ctx context.Context) error {
	if e.cfg.Debug.Once {
		return e.evalTick(ctx, e.clock.Now().In(e.loc))
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		now := e.clock.Now().In(e.loc)
		e.rollover(now)

		trading := e.isTradingDay(ctx, now)
		sessionStart := e.sched.SessionStart(now)
		sessionEnd := e.sched.SessionEnd(now)

		switch {
		case !trading, now.After(sessionEnd):
			if err := e.closeOutIfOpen(ctx, now); err != nil {
				return err
			}
			next := e.sched.SessionStart(now.AddDate(0, 0, 1))
			if err := e.sched.Wait(ctx, e.clock, next); err != nil {
				return nil
			}
		case now.Before(sessionStart):
			if err := e.sched.Wait(ctx, e.clock, sessionStart); err != nil {
				return nil
			}
		default:
			if err := e.runSession(ctx); err != nil {
				return err
			}
		}
	}
}

// runSession evaluates ticks from now until the closing tick, with the
// risk monitor running alongside for the duration of the session.
func (e *Engine) runSession(ctx context.Context) error {
	monCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	mon := &risk.Monitor{
		State: e.state,
		Quote: func(qctx context.Context) (float64, error) {
			q, err := e.client.FetchLiveQuote(qctx, e.cfg.Trading.Symbol)
			if err != nil {
				return 0, err
			}
			return q.Last, nil
		},
		Limits: risk.Limits{
			ProfitTarget: e.cfg.Risk.ProfitTarget,
			MaxDailyLoss: e.cfg.Risk.MaxDailyLoss,
			Capital:      e.cfg.Risk.Capital,
			Leverage:     e.cfg.Risk.Leverage,
		},
		InSession: e.sched.InSession,
		Now:       e.clock.Now,
		Log:       e.log,
	}
	go mon.Run(monCtx)

	for {
		now := e.clock.Now().In(e.loc)
		if now.After(e.sched.SessionEnd(now)) {
			return nil
		}
		if err := e.evalTick(ctx, now); err != nil {
			return err
		}
		if e.sched.IsClosingTick(now) {
			return nil
		}
		next := e.sched.NextTick(now)
		if !market.DayOf(next.In(e.loc)).Equal(market.DayOf(now)) {
			return nil
		}
		if err := e.sched.Wait(ctx, e.clock, next); err != nil {
			return nil
		}
	}
}

// evalTick runs one evaluation against the most recently fully closed bar.
func (e *Engine) evalTick(ctx context.Context, at time.Time) error {
	series, err := e.agg.Fetch(ctx, e.cfg.Trading.Symbol, e.fetchDaysBack())
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		var fatal *market.FatalDataError
		if errors.As(err, &fatal) {
			e.log.WithError(err).Error("bar fetch failed, skipping tick")
			return nil
		}
		return err
	}

	day := market.DayOf(at)
	bands, err := band.Compute(series, day, e.cfg.Band.LookbackDays, e.cfg.Band.K1, e.cfg.Band.K2)
	if err != nil {
		var short *band.InsufficientHistoryError
		if errors.As(err, &short) {
			return fmt.Errorf("noise band: %w", err)
		}
		e.log.WithError(err).Error("band computation failed, skipping tick")
		return nil
	}

	minute := schedule.BarMinute(at, e.loc)
	dayBars := series.DayBars(day)
	bar, ok := series.LastAtOrBefore(day, minute)
	if !ok {
		e.log.WithField("minute", market.MinuteString(minute)).Debug("no closed bar yet, skipping tick")
		return nil
	}

	vwap, hasVWAP := band.VWAPAt(dayBars, bar.Minute)
	tick := signal.Tick{
		Time:    at,
		Price:   bar.Close,
		High:    bar.High,
		Low:     bar.Low,
		VWAP:    vwap,
		Upper:   bands.Upper(bar.Minute),
		Lower:   bands.Lower(bar.Minute),
		HasBand: hasVWAP,
	}

	if e.state.ForceClosePending() && e.machine.Position().Direction != signal.Flat {
		return e.apply(e.machine.ForceClose(bar.Close, at, signal.ReasonRiskHalt))
	}

	if e.sched.IsClosingTick(at) {
		if e.machine.Position().Direction != signal.Flat {
			return e.apply(e.machine.ForceClose(bar.Close, at, signal.ReasonEndOfDay))
		}
		return nil
	}

	allow := e.state.EntryAllowed(e.cfg.Trading.MaxTradesPerDay) && e.volumeConfirmed(dayBars, bar)
	return e.apply(e.machine.Eval(tick, allow))
}

// volumeConfirmed gates entries on recent volume running above the day's
// baseline: mean volume of the last recent_n bars must exceed volume_ratio
// times the mean over the last window_n bars, both ending at the evaluated
// bar. With fewer bars than the window, the filter is inert.
func (e *Engine) volumeConfirmed(dayBars market.Series, bar market.Bar) bool {
	if !e.cfg.Band.VolumeConfirm {
		return true
	}
	var vols []float64
	for _, b := range dayBars {
		if b.Minute <= bar.Minute {
			vols = append(vols, b.Volume)
		}
	}
	window := e.cfg.Band.VolumeWindow
	if len(vols) < window {
		return true
	}
	mean := func(v []float64) float64 {
		var sum float64
		for _, x := range v {
			sum += x
		}
		return sum / float64(len(v))
	}
	recent := mean(vols[len(vols)-e.cfg.Band.VolumeRecent:])
	baseline := mean(vols[len(vols)-window:])
	return recent > e.cfg.Band.VolumeRatio*baseline
}

// apply records a decision: durable outbox write first, then risk state
// and the trade journal. A failed outbox write is fatal; the decision must
// not be treated as sent.
func (e *Engine) apply(d signal.Decision) error {
	if d.Action == signal.None {
		return nil
	}

	sigID, err := e.out.Append(d.Action.String())
	if err != nil {
		return fmt.Errorf("record signal: %w", err)
	}
	log := e.log.WithFields(logrus.Fields{
		"signal_id": sigID,
		"action":    d.Action.String(),
		"price":     d.Price,
		"reason":    d.Reason,
	})

	switch d.Action {
	case signal.Buy, signal.Sell:
		pos := e.machine.Position()
		e.state.NoteEntry()
		e.state.SetPosition(pos.Direction.Sign(), pos.EntryPrice)
		log.Info("entry signal")
	case signal.Close:
		pnl, pct := risk.PnL(e.cfg.Risk.Capital, e.cfg.Risk.Leverage,
			d.Closed.EntryPrice, d.Price, d.Closed.Direction.Sign())
		e.state.AddRealized(pnl)
		e.state.ClearPosition()
		log.WithFields(logrus.Fields{"pnl": pnl, "pnl_pct": pct}).Info("exit signal")

		rec := outbox.TradeRecord{
			TradeID:    id.New(),
			Symbol:     e.cfg.Trading.Symbol,
			Direction:  d.Closed.Direction.String(),
			EntryPrice: d.Closed.EntryPrice,
			ExitPrice:  d.Price,
			EntryTime:  d.Closed.EntryTime,
			ExitTime:   d.Time,
			RealizedPL: pnl,
			Reason:     d.Reason,
		}
		if err := e.journal.RecordTrade(rec); err != nil {
			// The journal is advisory. The durable record is the outbox.
			e.log.WithError(err).Error("trade journal write failed")
		}
	}
	return nil
}

// closeOutIfOpen liquidates a position found open outside the session,
// for example after a restart that missed the closing tick.
func (e *Engine) closeOutIfOpen(ctx context.Context, now time.Time) error {
	if e.machine.Position().Direction == signal.Flat {
		return nil
	}
	q, err := e.client.FetchLiveQuote(ctx, e.cfg.Trading.Symbol)
	if err != nil {
		e.log.WithError(err).Error("close-out quote failed, will retry")
		return nil
	}
	return e.apply(e.machine.ForceClose(q.Last, now, signal.ReasonOffHours))
}

// rollover resets daily risk counters when the calendar day changes,
// logging the summary of the day just finished.
func (e *Engine) rollover(now time.Time) {
	day := market.DayOf(now)
	if e.lastDay.IsZero() {
		e.lastDay = day
		return
	}
	if day.Equal(e.lastDay) {
		return
	}
	snap := e.state.Snapshot()
	e.log.WithFields(logrus.Fields{
		"day":            e.lastDay.Format("2006-01-02"),
		"daily_realized": snap.DailyRealized,
		"total_realized": snap.TotalRealized,
		"trades":         snap.TradesOpenedToday,
		"halted":         snap.DailyStopTriggered || snap.ProfitTargetTriggered,
	}).Info("day summary")
	e.state.ResetDay()
	e.lastDay = day
}

// isTradingDay asks the brokerage calendar, assuming a trading day when
// the calendar itself is unreachable. The session loop degrades to empty
// evaluations on a holiday, which is safe.
func (e *Engine) isTradingDay(ctx context.Context, now time.Time) bool {
	ok, err := e.client.IsTradingDay(ctx, e.cfg.Trading.Market, now)
	if err != nil {
		e.log.WithError(err).Warn("trading calendar unavailable, assuming trading day")
		return true
	}
	return ok
}

// fetchDaysBack converts the lookback in trading days to a calendar span
// wide enough to cover weekends and holidays.
func (e *Engine) fetchDaysBack() int {
	return e.cfg.Band.LookbackDays*2 + 5
}
