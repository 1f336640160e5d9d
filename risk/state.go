// Package risk owns the daily PnL accounting shared between the evaluation
// loop and the concurrent monitor, plus the monitor itself. One mutex
// serializes every read and write of the shared state; nothing else in the
// process is shared between the two goroutines.
package risk

import "sync"

// HaltReason says which limit tripped the force-close flag.
type HaltReason int

const (
	HaltNone HaltReason = iota
	HaltDailyLoss
	HaltProfitTarget
)

func (r HaltReason) String() string {
	switch r {
	case HaltDailyLoss:
		return "daily-loss"
	case HaltProfitTarget:
		return "profit-target"
	default:
		return "none"
	}
}

// Snapshot is a consistent copy of the shared state.
type Snapshot struct {
	DailyRealized         float64
	TotalRealized         float64
	DailyStopTriggered    bool
	ProfitTargetTriggered bool
	TradesOpenedToday     int
	ForceClose            bool

	// Open position view for mark-to-market: +1 long, -1 short, 0 flat.
	Direction  int
	EntryPrice float64
}

// State is the mutex-guarded handle. The engine updates realized PnL, the
// trade counter and the position view; the monitor raises the halt flags.
type State struct {
	mu sync.Mutex
	s  Snapshot
}

func NewState() *State { return &State{} }

// Snapshot returns a copy of the current state.
func (st *State) Snapshot() Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s
}

// ResetDay clears the per-day fields at a trading-day boundary. The
// cumulative total and any open position view survive.
func (st *State) ResetDay() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.DailyRealized = 0
	st.s.TradesOpenedToday = 0
	st.s.DailyStopTriggered = false
	st.s.ProfitTargetTriggered = false
	st.s.ForceClose = false
}

// AddRealized books a realized fill into the daily and cumulative totals.
func (st *State) AddRealized(pnl float64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.DailyRealized += pnl
	st.s.TotalRealized += pnl
}

// NoteEntry records a new entry against the daily cap.
func (st *State) NoteEntry() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.TradesOpenedToday++
}

// SetPosition publishes the open position for the monitor's mark-to-market.
func (st *State) SetPosition(direction int, entryPrice float64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Direction = direction
	st.s.EntryPrice = entryPrice
}

// ClearPosition marks the symbol flat.
func (st *State) ClearPosition() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Direction = 0
	st.s.EntryPrice = 0
}

// Halt raises the force-close flag and the triggered flag for reason.
func (st *State) Halt(reason HaltReason) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.ForceClose = true
	switch reason {
	case HaltDailyLoss:
		st.s.DailyStopTriggered = true
	case HaltProfitTarget:
		st.s.ProfitTargetTriggered = true
	}
}

// ForceClosePending reports and clears the force-close flag. The triggered
// flags stay up for the remainder of the day.
func (st *State) ForceClosePending() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	p := st.s.ForceClose
	st.s.ForceClose = false
	return p
}

// EntryAllowed reports whether a new entry may open: under the daily cap,
// no halt triggered, and no position already open.
func (st *State) EntryAllowed(maxPerDay int) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	switch {
	case maxPerDay > 0 && st.s.TradesOpenedToday >= maxPerDay:
		return false
	case st.s.DailyStopTriggered || st.s.ProfitTargetTriggered:
		return false
	case st.s.Direction != 0:
		return false
	}
	return true
}
