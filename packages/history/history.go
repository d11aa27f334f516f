// Package history keeps a transactional undo/redo log of arbitrary events.
// Callers record events as they mutate state and hand the log a Replayer to
// apply or revert them later.
package history

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrOpenTransaction = errors.New("history: transaction still open")
	ErrNoTransaction   = errors.New("history: no open transaction")
)

// Clock is the time source for the coalescing window.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Transaction is the unit of undo: every event recorded between the
// outermost Begin and End.
type Transaction[E any] struct {
	Events []E
	At     time.Time
}

// Replayer applies events forward (redo) and backward (undo).
type Replayer[E any] struct {
	Apply  func(E) error
	Revert func(E) error
}

type options struct {
	maxTransactions int
	window          time.Duration
	clock           Clock
	logger          logrus.FieldLogger
}

// Option configures a Log.
type Option func(*options)

// WithMaxTransactions bounds the undo stack; the oldest transactions are
// dropped first. Zero means unbounded.
func WithMaxTransactions(n int) Option {
	return func(o *options) { o.maxTransactions = n }
}

// WithCoalesceWindow merges a commit into the previous transaction when it
// follows within d.
func WithCoalesceWindow(d time.Duration) Option {
	return func(o *options) { o.window = d }
}

func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.logger = l }
}

// Log is not safe for concurrent use.
type Log[E any] struct {
	opts options

	undo []Transaction[E]
	redo []Transaction[E]

	pending   []E
	marks     []int // len(pending) at each open Begin
	replaying bool
	sealed    bool // next commit starts a new transaction
}

// New returns an empty log.
func New[E any](opts ...Option) *Log[E] {
	o := options{clock: wallClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		o.logger = discard
	}
	return &Log[E]{opts: o, sealed: true}
}

// Begin opens a (possibly nested) transaction.
func (l *Log[E]) Begin() {
	l.marks = append(l.marks, len(l.pending))
}

// End closes the innermost transaction. Closing the outermost one commits
// everything recorded since its Begin.
func (l *Log[E]) End() error {
	if len(l.marks) == 0 {
		return ErrNoTransaction
	}
	l.marks = l.marks[:len(l.marks)-1]
	if len(l.marks) == 0 {
		l.commit()
	}
	return nil
}

// Abort closes the innermost transaction, reverting and discarding the
// events recorded since its Begin, newest first.
func (l *Log[E]) Abort(r Replayer[E]) error {
	if len(l.marks) == 0 {
		return ErrNoTransaction
	}
	mark := l.marks[len(l.marks)-1]
	l.marks = l.marks[:len(l.marks)-1]
	discarded := l.pending[mark:]
	l.pending = l.pending[:mark]

	l.replaying = true
	defer func() { l.replaying = false }()
	for i := len(discarded) - 1; i >= 0; i-- {
		if err := r.Revert(discarded[i]); err != nil {
			return fmt.Errorf("history: abort: %w", err)
		}
	}
	l.opts.logger.WithField("events", len(discarded)).Debug("transaction aborted")
	return nil
}

// InTransaction reports whether a Begin is still open.
func (l *Log[E]) InTransaction() bool { return len(l.marks) > 0 }

// Replaying reports whether the log is currently applying or reverting
// events.
func (l *Log[E]) Replaying() bool { return l.replaying }

// Record adds an event to the open transaction, or commits it on its own
// when none is open. Events recorded during replay are ignored.
func (l *Log[E]) Record(e E) {
	if l.replaying {
		return
	}
	l.pending = append(l.pending, e)
	if len(l.marks) == 0 {
		l.commit()
	}
}

func (l *Log[E]) commit() {
	if len(l.pending) == 0 {
		return
	}
	events := l.pending
	l.pending = nil
	l.redo = nil

	now := l.opts.clock.Now()
	if n := len(l.undo); n > 0 && !l.sealed && l.opts.window > 0 && now.Sub(l.undo[n-1].At) <= l.opts.window {
		l.undo[n-1].Events = append(l.undo[n-1].Events, events...)
		l.undo[n-1].At = now
		l.opts.logger.WithField("events", len(events)).Debug("coalesced into previous transaction")
		return
	}

	l.undo = append(l.undo, Transaction[E]{Events: events, At: now})
	if limit := l.opts.maxTransactions; limit > 0 && len(l.undo) > limit {
		l.undo = append([]Transaction[E](nil), l.undo[len(l.undo)-limit:]...)
	}
	l.sealed = false
	l.opts.logger.WithFields(logrus.Fields{
		"events": len(events),
		"depth":  len(l.undo),
	}).Debug("transaction committed")
}

// Seal makes the next commit start a new transaction regardless of the
// coalescing window.
func (l *Log[E]) Seal() { l.sealed = true }

func (l *Log[E]) CanUndo() bool { return len(l.undo) > 0 }
func (l *Log[E]) CanRedo() bool { return len(l.redo) > 0 }

// Undo reverts the newest transaction. It reports false when there is
// nothing to undo.
func (l *Log[E]) Undo(r Replayer[E]) (bool, error) {
	if l.InTransaction() {
		return false, ErrOpenTransaction
	}
	if len(l.undo) == 0 {
		return false, nil
	}
	tx := l.undo[len(l.undo)-1]
	l.undo = l.undo[:len(l.undo)-1]

	l.replaying = true
	defer func() { l.replaying = false }()
	for i := len(tx.Events) - 1; i >= 0; i-- {
		if err := r.Revert(tx.Events[i]); err != nil {
			return false, fmt.Errorf("history: undo: %w", err)
		}
	}
	l.redo = append(l.redo, tx)
	l.sealed = true
	l.opts.logger.WithField("events", len(tx.Events)).Debug("undo")
	return true, nil
}

// Redo re-applies the most recently undone transaction.
func (l *Log[E]) Redo(r Replayer[E]) (bool, error) {
	if l.InTransaction() {
		return false, ErrOpenTransaction
	}
	if len(l.redo) == 0 {
		return false, nil
	}
	tx := l.redo[len(l.redo)-1]
	l.redo = l.redo[:len(l.redo)-1]

	l.replaying = true
	defer func() { l.replaying = false }()
	for _, e := range tx.Events {
		if err := r.Apply(e); err != nil {
			return false, fmt.Errorf("history: redo: %w", err)
		}
	}
	l.undo = append(l.undo, tx)
	l.sealed = true
	l.opts.logger.WithField("events", len(tx.Events)).Debug("redo")
	return true, nil
}

// Clear drops both stacks.
func (l *Log[E]) Clear() {
	l.undo, l.redo = nil, nil
	l.sealed = true
}

// Stacks returns copies of the undo and redo stacks, oldest first.
func (l *Log[E]) Stacks() (undo, redo []Transaction[E]) {
	return append([]Transaction[E](nil), l.undo...), append([]Transaction[E](nil), l.redo...)
}

// Restore replaces both stacks, e.g. after loading a saved document.
func (l *Log[E]) Restore(undo, redo []Transaction[E]) {
	l.undo = append([]Transaction[E](nil), undo...)
	l.redo = append([]Transaction[E](nil), redo...)
	l.sealed = true
}
