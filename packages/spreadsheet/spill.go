package spreadsheet

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/ref"
)

// spillRegistry maps each spilling source cell of a grid to its footprint.
// Footprints never overlap.
type spillRegistry struct {
	footprints map[spillSource]ref.Range
}

func newSpillRegistry() *spillRegistry {
	return &spillRegistry{footprints: make(map[spillSource]ref.Range)}
}

// Spill returns the footprint of the array spilled from row, col.
func (g *Grid) Spill(row, col int) (ref.Range, bool) {
	fp, ok := g.spills.footprints[spillSource{row, col}]
	return fp, ok
}

// spillConflict describes why a footprint cannot be claimed.
type spillConflict struct {
	reason   string
	blockers []CellAddress
}

// validateSpill checks that every non-anchor cell of fp is inside g, holds
// no input and is not covered by another source. Nothing is modified.
func validateSpill(g *Grid, src spillSource, rows, cols int) *spillConflict {
	if src.row+rows > g.Rows() || src.col+cols > g.Cols() {
		return &spillConflict{reason: fmt.Sprintf("a %dx%d array does not fit in the grid", rows, cols)}
	}
	var conflict *spillConflict
	for r := src.row; r < src.row+rows; r++ {
		for c := src.col; c < src.col+cols; c++ {
			if r == src.row && c == src.col {
				continue
			}
			cell := g.cells[r][c]
			foreign := cell.spillSource != nil && *cell.spillSource != src
			if cell.kind != inputEmpty || foreign {
				if conflict == nil {
					conflict = &spillConflict{reason: fmt.Sprintf("%s is not empty", ref.NewCell(g.name, r, c))}
				}
				conflict.blockers = append(conflict.blockers, g.address(r, c))
			}
		}
	}
	return conflict
}

// applySpill claims the footprint of arr for the source cell, releasing any
// cells of the previous footprint it no longer covers. A conflict releases
// the previous footprint entirely and returns a #SPILL! error for the
// source's output.
func (p *Project) applySpill(g *Grid, row, col int, arr formula.Array) formula.Primitive {
	src := spillSource{row, col}
	rows, cols := arr.Rows(), arr.Cols()
	if conflict := validateSpill(g, src, rows, cols); conflict != nil {
		p.releaseSpill(g, src)
		addr := g.address(row, col)
		for _, b := range conflict.blockers {
			p.graph.addCellDependency(addr, b)
		}
		p.logger.WithFields(logrus.Fields{
			"grid": g.name,
			"cell": ref.NewCell(g.name, row, col).Format(g.name),
		}).Warnf("spill blocked: %s", conflict.reason)
		return formula.NewError(formula.ErrorCodeSpill, conflict.reason)
	}

	fp := ref.NewRange(ref.NewCell(g.name, row, col), ref.NewCell(g.name, row+rows-1, col+cols-1))
	if old, ok := g.spills.footprints[src]; ok {
		for c := range old.Cells() {
			if !fp.Contains(c) {
				p.releaseCell(g, c.Row, c.Col)
			}
		}
	}
	g.spills.footprints[src] = fp
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if r == 0 && c == 0 {
				continue
			}
			cell := g.cells[row+r][col+c]
			v := arr.At(r, c)
			if cell.spillSource != nil && formula.ToString(cell.spillValue) == formula.ToString(v) &&
				valueTypeOf(cell.spillValue) == valueTypeOf(v) {
				continue
			}
			cell.spillSource = &src
			cell.spillValue = v
			p.graph.markDirty(g.address(row+r, col+c))
		}
	}
	return arr.At(0, 0)
}

// releaseSpill frees every cell covered by the source's footprint.
func (p *Project) releaseSpill(g *Grid, src spillSource) {
	fp, ok := g.spills.footprints[src]
	if !ok {
		return
	}
	delete(g.spills.footprints, src)
	for c := range fp.Cells() {
		if c.Row == src.row && c.Col == src.col {
			continue
		}
		p.releaseCell(g, c.Row, c.Col)
	}
}

func (p *Project) releaseCell(g *Grid, row, col int) {
	cell := g.Cell(row, col)
	if cell == nil || cell.spillSource == nil {
		return
	}
	cell.spillSource = nil
	cell.spillValue = nil
	p.graph.markDirty(g.address(row, col))
}

// releaseAllSpills frees every footprint of g. Structural edits call it
// before shifting cells; spills are claimed again on recompute.
func (p *Project) releaseAllSpills(g *Grid) {
	for src := range g.spills.footprints {
		p.releaseSpill(g, src)
	}
}

// splitsSpill reports whether inserting or deleting along an axis cuts a
// footprint. For inserts count is zero and at must not fall strictly inside
// a footprint; for deletes [at, at+count) must cover a footprint's span
// entirely or miss it.
func splitsSpill(g *Grid, rows bool, at, count int) bool {
	for _, fp := range g.spills.footprints {
		lo, hi := fp.Start.Col, fp.End.Col
		if rows {
			lo, hi = fp.Start.Row, fp.End.Row
		}
		if count == 0 {
			if at > lo && at <= hi {
				return true
			}
			continue
		}
		end := at + count - 1
		overlaps := at <= hi && end >= lo
		covers := at <= lo && end >= hi
		if overlaps && !covers {
			return true
		}
	}
	return false
}
