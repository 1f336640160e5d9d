package outbox

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOutbox(t *testing.T, purge bool) (*Outbox, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "signals.db")
	o, err := Open(path, purge)
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	return o, path
}

func TestAppendOrderAndMonotonicIDs(t *testing.T) {
	t.Parallel()

	o, _ := newTestOutbox(t, false)

	id1, err := o.Append(ActionBuy)
	require.NoError(t, err)
	id2, err := o.Append(ActionClose)
	require.NoError(t, err)
	id3, err := o.Append(ActionSell)
	require.NoError(t, err)

	assert.Less(t, id1, id2)
	assert.Less(t, id2, id3)

	sigs, err := o.List()
	require.NoError(t, err)
	require.Len(t, sigs, 3)
	assert.Equal(t, []string{ActionBuy, ActionClose, ActionSell},
		[]string{sigs[0].Action, sigs[1].Action, sigs[2].Action})
	for _, s := range sigs {
		assert.False(t, s.Consumed)
		assert.False(t, s.CreatedAt.IsZero())
	}
}

func TestAppendSurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "signals.db")
	o, err := Open(path, false)
	require.NoError(t, err)

	_, err = o.Append(ActionBuy)
	require.NoError(t, err)
	// Simulate a crash: no graceful teardown beyond the committed insert.
	require.NoError(t, o.Close())

	o2, err := Open(path, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = o2.Close() })

	sigs, err := o2.List()
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, ActionBuy, sigs[0].Action)
}

func TestPurgeOnStart(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "signals.db")
	o, err := Open(path, false)
	require.NoError(t, err)
	_, err = o.Append(ActionBuy)
	require.NoError(t, err)
	require.NoError(t, o.Close())

	o2, err := Open(path, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = o2.Close() })

	sigs, err := o2.List()
	require.NoError(t, err)
	assert.Empty(t, sigs)

	// AUTOINCREMENT restarts with the recreated table.
	id, err := o2.Append(ActionSell)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestCountPendingRespectsConsumerFlag(t *testing.T) {
	t.Parallel()

	o, path := newTestOutbox(t, false)
	_, err := o.Append(ActionBuy)
	require.NoError(t, err)
	_, err = o.Append(ActionClose)
	require.NoError(t, err)

	// The external consumer owns the consumed flag; emulate it directly.
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`UPDATE signals SET consumed = 1 WHERE id = 1`)
	require.NoError(t, err)

	n, err := o.CountPending()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAppendFailureIsWriteError(t *testing.T) {
	t.Parallel()

	o, _ := newTestOutbox(t, false)
	require.NoError(t, o.Close())

	_, err := o.Append(ActionBuy)
	require.Error(t, err)

	var we *WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, "append", we.Op)
}
