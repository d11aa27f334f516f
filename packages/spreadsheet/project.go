// Package spreadsheet is a grid computation engine: named grids of cells
// whose formulas are kept up to date as cells, rows, columns and grids
// change, with undo and redo.
package spreadsheet

import (
	"errors"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/vogtb/go-spreadsheet/packages/config"
	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/history"
)

// Interpreter evaluates and rewrites formula programs. *formula.Interpreter
// implements it.
type Interpreter interface {
	Run(program string, env formula.Env) (formula.Primitive, error)
	UnresolvedIdentifiers(program string) (map[string]struct{}, error)
	Tokenize(program string) ([]formula.Token, error)
	Untokenize(tokens []formula.Token) string
	TransformIdentifiers(tokens []formula.Token, fn func(formula.Token) string) []formula.Token
	Apply(fn formula.Primitive, args []formula.Primitive, env formula.Env) formula.Primitive
	Volatile(program string) bool
}

const defaultGridName = "Sheet1"

// Project owns a set of grids, their aliases and the edit history. It is not
// safe for concurrent use.
type Project struct {
	name   string
	cfg    *config.Config
	logger logrus.FieldLogger
	interp Interpreter

	grids   *gridTable
	current int

	aliases    *aliasTable
	graph      *dependencyGraph
	resolving  map[CellAddress]struct{}
	formatters *formatterTable

	log     *history.Log[Event]
	depth   int  // nesting of mutate calls
	loading bool // building from a document; nothing is recorded

	listeners     map[int]func(Event)
	listenerOrder []int
	nextListener  int
}

type options struct {
	name   string
	cfg    *config.Config
	logger logrus.FieldLogger
	interp Interpreter
	clock  formula.Clock
}

// Option configures a Project built by New.
type Option func(*options)

// WithConfig sets grid shape, locale, history bounds and constants.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets the logger. Without it the project logs nothing.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.logger = l }
}

// WithInterpreter replaces the formula interpreter built from the config.
func WithInterpreter(in Interpreter) Option {
	return func(o *options) { o.interp = in }
}

// WithClock sets the time source of NOW and TODAY and of history
// timestamps.
func WithClock(c formula.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithName sets the project name.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// New creates a project holding one empty grid named Sheet1.
func New(opts ...Option) *Project {
	p := newProject(opts...)
	gc := p.cfg.Grid
	p.loading = true
	p.addGrid(newGrid(defaultGridName, gc.Rows, gc.Cols, gc.RowHeight, gc.ColWidth), 0)
	p.loading = false
	p.settle()
	return p
}

func newProject(opts ...Option) *Project {
	o := options{name: "Untitled"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cfg == nil {
		o.cfg = config.Default()
	}
	if o.logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		o.logger = discard
	}
	if o.interp == nil {
		fopts := []formula.Option{
			formula.WithLocale(o.cfg.Engine.Locale),
			formula.WithConstants(o.cfg.Constants),
		}
		if o.clock != nil {
			fopts = append(fopts, formula.WithClock(o.clock))
		}
		o.interp = formula.New(fopts...)
	}
	hopts := []history.Option{
		history.WithMaxTransactions(o.cfg.Engine.MaxTransactions),
		history.WithCoalesceWindow(o.cfg.Engine.CoalesceWindow),
		history.WithLogger(o.logger),
	}
	if o.clock != nil {
		hopts = append(hopts, history.WithClock(o.clock))
	}
	return &Project{
		name:       o.name,
		cfg:        o.cfg,
		logger:     o.logger,
		interp:     o.interp,
		grids:      newGridTable(),
		aliases:    newAliasTable(),
		graph:      newDependencyGraph(),
		resolving:  make(map[CellAddress]struct{}),
		formatters: newFormatterTable(),
		log:        history.New[Event](hopts...),
		listeners:  make(map[int]func(Event)),
	}
}

// Name returns the project name.
func (p *Project) Name() string { return p.name }

// Grid returns the named grid.
func (p *Project) Grid(name string) (*Grid, bool) {
	return p.grids.get(name)
}

// Grids returns every grid in display order.
func (p *Project) Grids() []*Grid {
	return append([]*Grid(nil), p.grids.order...)
}

// CurrentGrid is the grid unqualified references resolve against.
func (p *Project) CurrentGrid() *Grid {
	return p.grids.order[p.current]
}

// SetCurrentGrid makes the named grid the one unqualified references
// resolve against.
func (p *Project) SetCurrentGrid(name string) error {
	g, ok := p.grids.get(name)
	if !ok {
		return appErrorf(NotFound, nil, "grid %q does not exist", name)
	}
	p.current = p.grids.indexOf(g)
	return nil
}

func (p *Project) replayer() history.Replayer[Event] {
	return history.Replayer[Event]{Apply: p.redoEvent, Revert: p.undoEvent}
}

// mutate runs fn as one history transaction. A failing fn is rolled back.
// The outermost call settles the grids.
func (p *Project) mutate(fn func() error) error {
	p.log.Begin()
	p.depth++
	err := fn()
	p.depth--
	if err != nil {
		if abortErr := p.log.Abort(p.replayer()); abortErr != nil {
			p.logger.WithError(abortErr).Error("rollback failed")
			err = errors.Join(err, abortErr)
		}
	} else if endErr := p.log.End(); endErr != nil {
		err = appErrorf(Internal, endErr, "cannot commit")
	}
	if p.depth == 0 {
		p.settle()
	}
	if err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			err = appErrorf(Internal, err, "operation failed")
		}
	}
	return err
}

// Batch runs fn as a single undoable step with a single recomputation at
// the end. If fn returns an error every change it made is reverted.
func (p *Project) Batch(fn func() error) error {
	return p.mutate(fn)
}

// Undo reverts the newest transaction. It reports false when there is
// nothing to undo.
func (p *Project) Undo() (bool, error) {
	ok, err := p.log.Undo(p.replayer())
	if p.depth == 0 {
		p.settle()
	}
	return ok, p.historyError(err)
}

// Redo reapplies the last undone transaction. It reports false when
// there is nothing to redo.
func (p *Project) Redo() (bool, error) {
	ok, err := p.log.Redo(p.replayer())
	if p.depth == 0 {
		p.settle()
	}
	return ok, p.historyError(err)
}

func (p *Project) historyError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, history.ErrOpenTransaction):
		return appErrorf(FailedPrecondition, err, "cannot replay inside a batch")
	}
	p.logger.WithError(err).Error("history replay failed")
	return appErrorf(Internal, err, "history replay failed")
}

// CanUndo and CanRedo report whether the history has a transaction to replay.
func (p *Project) CanUndo() bool { return p.log.CanUndo() }
func (p *Project) CanRedo() bool { return p.log.CanRedo() }
