package history

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counter is a tiny state machine: events are deltas added to a value.
type counter struct {
	value int
	log   *Log[int]
}

func (c *counter) add(d int) {
	c.value += d
	c.log.Record(d)
}

func (c *counter) replayer() Replayer[int] {
	return Replayer[int]{
		Apply:  func(d int) error { c.value += d; return nil },
		Revert: func(d int) error { c.value -= d; return nil },
	}
}

type manualClock struct{ now time.Time }

func (m *manualClock) Now() time.Time { return m.now }

func TestUndoRedo(t *testing.T) {
	c := &counter{log: New[int]()}
	c.add(1)
	c.add(2)
	assert.Equal(t, 3, c.value)
	assert.True(t, c.log.CanUndo())
	assert.False(t, c.log.CanRedo())

	ok, err := c.log.Undo(c.replayer())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, c.value)

	ok, err = c.log.Redo(c.replayer())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, c.value)

	_, _ = c.log.Undo(c.replayer())
	_, _ = c.log.Undo(c.replayer())
	assert.Equal(t, 0, c.value)
	ok, err = c.log.Undo(c.replayer())
	require.NoError(t, err)
	assert.False(t, ok, "nothing left to undo")
}

func TestTransactionsGroupEvents(t *testing.T) {
	c := &counter{log: New[int]()}
	c.log.Begin()
	c.add(1)
	c.log.Begin()
	c.add(10)
	require.NoError(t, c.log.End())
	c.add(100)
	assert.False(t, c.log.CanUndo(), "nothing committed while the outer transaction is open")
	require.NoError(t, c.log.End())

	undo, _ := c.log.Stacks()
	require.Len(t, undo, 1)
	assert.Equal(t, []int{1, 10, 100}, undo[0].Events)

	_, err := c.log.Undo(c.replayer())
	require.NoError(t, err)
	assert.Equal(t, 0, c.value)
}

func TestNewCommitClearsRedo(t *testing.T) {
	c := &counter{log: New[int]()}
	c.add(1)
	_, _ = c.log.Undo(c.replayer())
	assert.True(t, c.log.CanRedo())
	c.add(5)
	assert.False(t, c.log.CanRedo())
}

func TestAbortRevertsPendingEvents(t *testing.T) {
	c := &counter{log: New[int]()}
	c.log.Begin()
	c.add(1)
	c.log.Begin()
	c.add(2)
	c.add(3)
	require.NoError(t, c.log.Abort(c.replayer()))
	assert.Equal(t, 1, c.value, "only the inner transaction is reverted")
	require.NoError(t, c.log.End())

	undo, _ := c.log.Stacks()
	require.Len(t, undo, 1)
	assert.Equal(t, []int{1}, undo[0].Events)
}

func TestUnbalancedCalls(t *testing.T) {
	log := New[int]()
	assert.ErrorIs(t, log.End(), ErrNoTransaction)
	assert.ErrorIs(t, log.Abort(Replayer[int]{}), ErrNoTransaction)

	log.Begin()
	_, err := log.Undo(Replayer[int]{})
	assert.ErrorIs(t, err, ErrOpenTransaction)
}

func TestRecordDuringReplayIsIgnored(t *testing.T) {
	c := &counter{log: New[int]()}
	c.add(1)
	r := Replayer[int]{
		Apply: func(d int) error { c.add(d); return nil },
		Revert: func(d int) error {
			c.add(-d)
			return nil
		},
	}
	_, err := c.log.Undo(r)
	require.NoError(t, err)
	assert.Equal(t, 0, c.value)
	assert.False(t, c.log.CanUndo())
	assert.True(t, c.log.CanRedo())
}

func TestMaxTransactions(t *testing.T) {
	c := &counter{log: New[int](WithMaxTransactions(2))}
	c.add(1)
	c.add(2)
	c.add(3)
	undo, _ := c.log.Stacks()
	require.Len(t, undo, 2)
	assert.Equal(t, []int{2}, undo[0].Events)
	assert.Equal(t, []int{3}, undo[1].Events)
}

func TestCoalesceWindow(t *testing.T) {
	clock := &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := &counter{log: New[int](WithCoalesceWindow(time.Second), WithClock(clock))}

	c.add(1)
	clock.now = clock.now.Add(500 * time.Millisecond)
	c.add(2)
	clock.now = clock.now.Add(2 * time.Second)
	c.add(3)

	undo, _ := c.log.Stacks()
	require.Len(t, undo, 2)
	assert.Equal(t, []int{1, 2}, undo[0].Events)
	assert.Equal(t, []int{3}, undo[1].Events)

	_, _ = c.log.Undo(c.replayer())
	clock.now = clock.now.Add(100 * time.Millisecond)
	c.add(4)
	undo, _ = c.log.Stacks()
	require.Len(t, undo, 2, "undo seals the log")
}

func TestReplayErrorsAreWrapped(t *testing.T) {
	boom := errors.New("boom")
	c := &counter{log: New[int]()}
	c.add(1)
	_, err := c.log.Undo(Replayer[int]{Revert: func(int) error { return boom }})
	assert.ErrorIs(t, err, boom)
}

func TestRestore(t *testing.T) {
	log := New[int]()
	log.Restore([]Transaction[int]{{Events: []int{1}}}, []Transaction[int]{{Events: []int{2}}})
	assert.True(t, log.CanUndo())
	assert.True(t, log.CanRedo())
	log.Clear()
	assert.False(t, log.CanUndo())
	assert.False(t, log.CanRedo())
}
