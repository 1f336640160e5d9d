// Package signal holds the breakout state machine: Flat, Long or Short per
// symbol, with a stop ratchet against the freshest band/VWAP values and an
// optional trailing take-profit.
package signal

import (
	"fmt"
	"time"
)

// Direction of the open position. Flat means none.
type Direction int

const (
	Flat Direction = iota
	Long
	Short
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "flat"
	}
}

// Sign returns +1 for Long, -1 for Short, 0 for Flat.
func (d Direction) Sign() int {
	switch d {
	case Long:
		return 1
	case Short:
		return -1
	default:
		return 0
	}
}

// Action is the decision a tick produced.
type Action int

const (
	None Action = iota
	Buy
	Sell
	Close
)

func (a Action) String() string {
	switch a {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	case Close:
		return "CLOSE"
	default:
		return "NONE"
	}
}

// Exit reasons carried on Close decisions.
const (
	ReasonStop       = "stop"
	ReasonTrailingTP = "trailing-take-profit"
	ReasonEndOfDay   = "end-of-day"
	ReasonRiskHalt   = "risk-halt"
	ReasonOffHours   = "out-of-session"
)

// Position is the single open position per symbol. MaxFavorable tracks the
// best price seen in the position's direction; StopLevel is the ratcheted
// stop recomputed from the latest band/VWAP each tick.
type Position struct {
	Direction     Direction
	EntryPrice    float64
	EntryTime     time.Time
	MaxFavorable  float64
	StopLevel     float64
	TrailingArmed bool
}

// Config controls the trailing take-profit exit.
type Config struct {
	TrailingTakeProfit bool
	ActivationPct      float64 // unrealized gain that arms the trail
	CallbackPct        float64 // fraction of the best gain locked in
}

// Tick is one evaluation input: the most recently fully closed bar plus the
// band and VWAP values for its minute. HasBand is false when the band or
// VWAP is undefined at this minute; exits then fall back to the prior stop.
type Tick struct {
	Time    time.Time
	Price   float64 // bar close
	High    float64
	Low     float64
	VWAP    float64
	Upper   float64
	Lower   float64
	HasBand bool
}

// Decision is the at-most-one transition an evaluation tick produced.
type Decision struct {
	Action Action
	Reason string
	Price  float64
	Time   time.Time
	// Closed carries the position that was just exited, valid when
	// Action == Close.
	Closed Position
}

func (d Decision) String() string {
	if d.Action == None {
		return "none"
	}
	return fmt.Sprintf("%s @ %.4f (%s)", d.Action, d.Price, d.Reason)
}

// Machine is the per-symbol state machine. It is not safe for concurrent
// use; the engine serializes access.
type Machine struct {
	cfg Config
	pos Position
}

func NewMachine(cfg Config) *Machine {
	return &Machine{cfg: cfg}
}

// Position returns a copy of the current position.
func (m *Machine) Position() Position { return m.pos }

// Eval advances the machine by one tick and returns the decision, if any.
// A tick produces at most one transition: a tick that exits does not
// re-enter until the next tick. allowEntry gates new entries (daily cap,
// risk halts, an already-open position elsewhere).
func (m *Machine) Eval(t Tick, allowEntry bool) Decision {
	if m.pos.Direction != Flat {
		return m.evalExit(t)
	}
	if !allowEntry || !t.HasBand {
		return Decision{Time: t.Time}
	}
	return m.evalEntry(t)
}

func (m *Machine) evalEntry(t Tick) Decision {
	switch {
	case t.Price > t.Upper && t.Price > t.VWAP:
		m.pos = Position{
			Direction:    Long,
			EntryPrice:   t.Price,
			EntryTime:    t.Time,
			MaxFavorable: t.Price,
			StopLevel:    max(t.Upper, t.VWAP),
		}
		return Decision{Action: Buy, Price: t.Price, Time: t.Time}

	case t.Price < t.Lower && t.Price < t.VWAP:
		m.pos = Position{
			Direction:    Short,
			EntryPrice:   t.Price,
			EntryTime:    t.Time,
			MaxFavorable: t.Price,
			StopLevel:    min(t.Lower, t.VWAP),
		}
		return Decision{Action: Sell, Price: t.Price, Time: t.Time}
	}
	return Decision{Time: t.Time}
}

func (m *Machine) evalExit(t Tick) Decision {
	long := m.pos.Direction == Long

	// Stop ratchet: always the most recent bound/VWAP, never a stale stop.
	// Without band values this tick, the previous stop stands.
	if t.HasBand {
		if long {
			m.pos.StopLevel = max(t.Upper, t.VWAP)
		} else {
			m.pos.StopLevel = min(t.Lower, t.VWAP)
		}
	}

	stopHit := false
	if m.pos.StopLevel != 0 || t.HasBand {
		if long {
			stopHit = t.Price < m.pos.StopLevel
		} else {
			stopHit = t.Price > m.pos.StopLevel
		}
	}

	trailHit := false
	if m.cfg.TrailingTakeProfit {
		if long {
			m.pos.MaxFavorable = max(m.pos.MaxFavorable, t.High)
			gain := (m.pos.MaxFavorable - m.pos.EntryPrice) / m.pos.EntryPrice
			if gain >= m.cfg.ActivationPct {
				m.pos.TrailingArmed = true
			}
			if m.pos.TrailingArmed {
				level := m.pos.EntryPrice + m.cfg.CallbackPct*(m.pos.MaxFavorable-m.pos.EntryPrice)
				trailHit = t.Price <= level
			}
		} else {
			m.pos.MaxFavorable = min(m.pos.MaxFavorable, t.Low)
			gain := (m.pos.EntryPrice - m.pos.MaxFavorable) / m.pos.EntryPrice
			if gain >= m.cfg.ActivationPct {
				m.pos.TrailingArmed = true
			}
			if m.pos.TrailingArmed {
				level := m.pos.EntryPrice - m.cfg.CallbackPct*(m.pos.EntryPrice-m.pos.MaxFavorable)
				trailHit = t.Price >= level
			}
		}
	}

	if !stopHit && !trailHit {
		return Decision{Time: t.Time}
	}

	reason := ReasonStop
	if trailHit && !stopHit {
		reason = ReasonTrailingTP
	}
	return m.close(t.Price, t.Time, reason)
}

// ForceClose exits any open position immediately (end-of-day liquidation or
// a risk-monitor halt). A no-op when flat.
func (m *Machine) ForceClose(price float64, at time.Time, reason string) Decision {
	if m.pos.Direction == Flat {
		return Decision{Time: at}
	}
	return m.close(price, at, reason)
}

func (m *Machine) close(price float64, at time.Time, reason string) Decision {
	closed := m.pos
	m.pos = Position{}
	return Decision{
		Action: Close,
		Reason: reason,
		Price:  price,
		Time:   at,
		Closed: closed,
	}
}
