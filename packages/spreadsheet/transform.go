package spreadsheet

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/ref"
)

// Transformation is a structural edit that requires rewriting references.
// The set is closed: Move, RowInsert, ColInsert, RowDelete, ColDelete,
// GridRename and GridDelete.
type Transformation interface {
	// apply maps one grid-qualified reference. qualified tells whether the
	// reference was written with a grid prefix.
	apply(r ref.Reference, qualified bool) (out ref.Reference, deleted, changed bool)
	transformation()
}

// Move shifts references by a delta and optionally re-homes them on ToGrid.
// With a Source, only references entirely inside it are moved.
type Move struct {
	Source *ref.Range
	DRow   int
	DCol   int
	ToGrid string
}

type RowInsert struct {
	Grid  string
	At    int
	Count int
}

type ColInsert struct {
	Grid  string
	At    int
	Count int
}

type RowDelete struct {
	Grid  string
	At    int
	Count int
}

type ColDelete struct {
	Grid  string
	At    int
	Count int
}

type GridRename struct {
	Old string
	New string
}

type GridDelete struct {
	Name string
}

func (Move) transformation()       {}
func (RowInsert) transformation()  {}
func (ColInsert) transformation()  {}
func (RowDelete) transformation()  {}
func (ColDelete) transformation()  {}
func (GridRename) transformation() {}
func (GridDelete) transformation() {}

func (m Move) apply(r ref.Reference, _ bool) (ref.Reference, bool, bool) {
	if m.Source != nil && (r.GridName() != m.Source.Grid || !m.Source.ContainsRange(r.Bounds())) {
		return r, false, false
	}
	toGrid := m.ToGrid
	if toGrid == r.GridName() {
		toGrid = ""
	}
	out, err := r.Move(m.DRow, m.DCol, toGrid)
	if err != nil {
		return r, true, true
	}
	return out, false, !sameReference(out, r)
}

func (t RowInsert) apply(r ref.Reference, _ bool) (ref.Reference, bool, bool) {
	if r.GridName() != t.Grid {
		return r, false, false
	}
	out, err := ref.InsertRows(r, t.At, t.Count)
	if err != nil {
		return r, true, true
	}
	return out, false, !sameReference(out, r)
}

func (t ColInsert) apply(r ref.Reference, _ bool) (ref.Reference, bool, bool) {
	if r.GridName() != t.Grid {
		return r, false, false
	}
	out, err := ref.InsertCols(r, t.At, t.Count)
	if err != nil {
		return r, true, true
	}
	return out, false, !sameReference(out, r)
}

func (t RowDelete) apply(r ref.Reference, _ bool) (ref.Reference, bool, bool) {
	if r.GridName() != t.Grid {
		return r, false, false
	}
	out, deleted := ref.DeleteRows(r, t.At, t.Count)
	return out, deleted, deleted || !sameReference(out, r)
}

func (t ColDelete) apply(r ref.Reference, _ bool) (ref.Reference, bool, bool) {
	if r.GridName() != t.Grid {
		return r, false, false
	}
	out, deleted := ref.DeleteCols(r, t.At, t.Count)
	return out, deleted, deleted || !sameReference(out, r)
}

func (t GridRename) apply(r ref.Reference, qualified bool) (ref.Reference, bool, bool) {
	if !qualified || r.GridName() != t.Old {
		return r, false, false
	}
	return r.WithGrid(t.New), false, true
}

func (t GridDelete) apply(r ref.Reference, qualified bool) (ref.Reference, bool, bool) {
	if !qualified || r.GridName() != t.Name {
		return r, false, false
	}
	return r, true, true
}

// sameReference compares shape, grid, coordinates and absolute markers.
func sameReference(a, b ref.Reference) bool {
	return ref.Equal(a, b) && a.String() == b.String()
}

const deletedReference = "#REF!"

// rewriteReference applies t to one reference token. host is the grid the
// formula lives on while being rewritten and hostAfter the grid it will live
// on; they differ only for formulas carried by a cut-move. Unchanged
// references keep their exact text.
func rewriteReference(t Transformation, text, host, hostAfter string) string {
	r, ok := referenceOf(text)
	if !ok {
		return text
	}
	qualified := r.GridName() != ""
	if !qualified {
		r = r.WithGrid(host)
	}
	out, deleted, changed := t.apply(r, qualified)
	switch {
	case deleted:
		return deletedReference
	case !changed && (qualified || host == hostAfter):
		return text
	case !qualified:
		return out.Format(hostAfter)
	}
	return out.Format("")
}

// splitFormula separates the formula prefix from its program. Non-formula
// inputs have an empty prefix.
func splitFormula(input string) (prefix, program string) {
	switch {
	case strings.HasPrefix(input, ":="):
		return ":=", input[2:]
	case strings.HasPrefix(input, "="):
		return "=", input[1:]
	}
	return "", input
}

// rewriteFormula rewrites the reference tokens of a formula input. Inputs
// that are not formulas, or do not tokenize, are returned unchanged.
func (p *Project) rewriteFormula(input string, fn func(formula.Token) string) string {
	prefix, program := splitFormula(input)
	if prefix == "" {
		return input
	}
	tokens, err := p.interp.Tokenize(program)
	if err != nil {
		return input
	}
	return prefix + p.interp.Untokenize(p.interp.TransformIdentifiers(tokens, fn))
}

func (p *Project) transformFormula(input string, t Transformation, host, hostAfter string) string {
	return p.rewriteFormula(input, func(tok formula.Token) string {
		if tok.Type != formula.TokenRef {
			return tok.Text
		}
		return rewriteReference(t, tok.Text, host, hostAfter)
	})
}

// rewriteIdentifiers applies fn to every formula of every grid and records
// the inputs that changed.
func (p *Project) rewriteIdentifiers(fn func(formula.Token) string) int {
	changed := 0
	for _, g := range p.grids.order {
		g.all(func(row, col int, c *Cell) bool {
			if c.kind != inputFormula {
				return true
			}
			if next := p.rewriteFormula(c.input, fn); next != c.input {
				p.setAttr(g, row, col, AttrInput, next)
				changed++
			}
			return true
		})
	}
	return changed
}

// applyTransformation rewrites every formula and alias for t. skip excludes
// cells the caller rewrites itself.
func (p *Project) applyTransformation(t Transformation, skip func(g *Grid, row, col int) bool) {
	changed := 0
	for _, g := range p.grids.order {
		g.all(func(row, col int, c *Cell) bool {
			if c.kind != inputFormula || (skip != nil && skip(g, row, col)) {
				return true
			}
			if next := p.transformFormula(c.input, t, g.name, g.name); next != c.input {
				p.setAttr(g, row, col, AttrInput, next)
				changed++
			}
			return true
		})
	}
	deleted := p.transformAliases(t)
	p.coerceDeletedAliases(deleted)
	p.logger.WithFields(logrus.Fields{
		"transformation": describe(t),
		"rewritten":      changed,
		"aliasesDeleted": len(deleted),
	}).Debug("applied transformation")
}

func describe(t Transformation) string {
	switch x := t.(type) {
	case Move:
		return "move"
	case RowInsert:
		return "row insert on " + x.Grid
	case ColInsert:
		return "col insert on " + x.Grid
	case RowDelete:
		return "row delete on " + x.Grid
	case ColDelete:
		return "col delete on " + x.Grid
	case GridRename:
		return "grid rename " + x.Old + " to " + x.New
	case GridDelete:
		return "grid delete " + x.Name
	}
	return "unknown"
}

// TranslateFormula shifts the relative references of a formula input by a
// delta, as when pasting a copy onto toGrid (the current grid when empty).
// References pushed off the grid become #REF!. Other inputs are returned
// unchanged.
func (p *Project) TranslateFormula(input string, dRow, dCol int, toGrid string) string {
	host := toGrid
	if host == "" {
		host = p.CurrentGrid().name
	}
	return p.transformFormula(input, Move{DRow: dRow, DCol: dCol}, host, host)
}
