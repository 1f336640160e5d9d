package risk

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateDayReset(t *testing.T) {
	t.Parallel()

	st := NewState()
	st.AddRealized(-120)
	st.NoteEntry()
	st.Halt(HaltDailyLoss)

	snap := st.Snapshot()
	assert.Equal(t, -120.0, snap.DailyRealized)
	assert.Equal(t, -120.0, snap.TotalRealized)
	assert.Equal(t, 1, snap.TradesOpenedToday)
	assert.True(t, snap.DailyStopTriggered)
	assert.True(t, snap.ForceClose)

	st.ResetDay()
	snap = st.Snapshot()
	assert.Zero(t, snap.DailyRealized)
	assert.Equal(t, -120.0, snap.TotalRealized)
	assert.Zero(t, snap.TradesOpenedToday)
	assert.False(t, snap.DailyStopTriggered)
	assert.False(t, snap.ForceClose)
}

func TestEntryAllowed(t *testing.T) {
	t.Parallel()

	st := NewState()
	assert.True(t, st.EntryAllowed(2))

	st.NoteEntry()
	st.NoteEntry()
	assert.False(t, st.EntryAllowed(2), "daily cap")
	assert.True(t, st.EntryAllowed(0), "cap disabled")

	st = NewState()
	st.Halt(HaltDailyLoss)
	assert.False(t, st.EntryAllowed(10), "daily stop triggered")

	st = NewState()
	st.Halt(HaltProfitTarget)
	assert.False(t, st.EntryAllowed(10), "profit target triggered")

	st = NewState()
	st.SetPosition(1, 100)
	assert.False(t, st.EntryAllowed(10), "position already open")
	st.ClearPosition()
	assert.True(t, st.EntryAllowed(10))
}

func TestForceClosePendingClears(t *testing.T) {
	t.Parallel()

	st := NewState()
	assert.False(t, st.ForceClosePending())

	st.Halt(HaltProfitTarget)
	assert.True(t, st.ForceClosePending())
	// The flag is one-shot; the triggered flag stays.
	assert.False(t, st.ForceClosePending())
	assert.True(t, st.Snapshot().ProfitTargetTriggered)
}

func TestStateConcurrentAccess(t *testing.T) {
	t.Parallel()

	st := NewState()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				st.AddRealized(1)
				st.Snapshot()
				st.EntryAllowed(10)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1600.0, st.Snapshot().TotalRealized)
}

func TestPnL(t *testing.T) {
	t.Parallel()

	pnl, pct := PnL(100000, 2, 100, 103, 1)
	assert.InDelta(t, 6000.0, pnl, 1e-9)
	assert.InDelta(t, 6.0, pct, 1e-9)

	pnl, pct = PnL(100000, 2, 100, 103, -1)
	assert.InDelta(t, -6000.0, pnl, 1e-9)
	assert.InDelta(t, -6.0, pct, 1e-9)

	pnl, pct = PnL(100000, 2, 0, 103, 1)
	assert.Zero(t, pnl)
	assert.Zero(t, pct)

	pnl, _ = PnL(100000, 1, 100, 100, 1)
	assert.Zero(t, pnl)
}
