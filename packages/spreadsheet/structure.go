package spreadsheet

import (
	"fmt"
	"slices"

	"github.com/vogtb/go-spreadsheet/packages/ref"
)

// The lowercase operations below change the structure of a grid and record
// one event each. They neither validate nor rewrite formulas; the public
// operations do both, and replay calls the primitives directly.

func (p *Project) deleteRows(g *Grid, at, count int) {
	cells := snapshotBand(g, ref.NewRange(ref.NewCell(g.name, at, 0), ref.NewCell(g.name, at+count-1, g.Cols()-1)))
	sizes := slices.Clone(g.rowHeights[at : at+count])
	p.releaseAllSpills(g)
	g.deleteRows(at, count)
	p.structureChanged()
	p.record(Event{Type: EventRowsRemoved, Grid: g.name, Index: at, Count: count, Sizes: sizes, Cells: cells})
}

func (p *Project) deleteCols(g *Grid, at, count int) {
	cells := snapshotBand(g, ref.NewRange(ref.NewCell(g.name, 0, at), ref.NewCell(g.name, g.Rows()-1, at+count-1)))
	sizes := slices.Clone(g.colWidths[at : at+count])
	p.releaseAllSpills(g)
	g.deleteCols(at, count)
	p.structureChanged()
	p.record(Event{Type: EventColsRemoved, Grid: g.name, Index: at, Count: count, Sizes: sizes, Cells: cells})
}

func (p *Project) insertRows(g *Grid, at, count int, sizes []float64) {
	p.releaseAllSpills(g)
	g.insertRows(at, count, sizes)
	p.structureChanged()
	p.record(Event{Type: EventRowsInserted, Grid: g.name, Index: at, Count: count,
		Sizes: slices.Clone(g.rowHeights[at : at+count])})
}

func (p *Project) insertCols(g *Grid, at, count int, sizes []float64) {
	p.releaseAllSpills(g)
	g.insertCols(at, count, sizes)
	p.structureChanged()
	p.record(Event{Type: EventColsInserted, Grid: g.name, Index: at, Count: count,
		Sizes: slices.Clone(g.colWidths[at : at+count])})
}

// snapshotBand captures every non-default cell of r keyed by its local
// reference, e.g. "B3".
func snapshotBand(g *Grid, r ref.Range) map[string]CellDTO {
	var out map[string]CellDTO
	for c := range r.Cells() {
		cell := g.cells[c.Row][c.Col]
		if cell.isDefault() {
			continue
		}
		if out == nil {
			out = make(map[string]CellDTO)
		}
		out[c.Format(g.name)] = cellToDTO(cell)
	}
	return out
}

// restoreCells writes a snapshot taken by snapshotBand back into g.
func (p *Project) restoreCells(g *Grid, cells map[string]CellDTO) error {
	for key, dto := range cells {
		c, err := ref.ParseCell(key)
		if err != nil {
			return fmt.Errorf("snapshot cell %q: %w", key, err)
		}
		if !g.inBounds(c.Row, c.Col) {
			return fmt.Errorf("snapshot cell %s is outside grid %s", key, g.name)
		}
		if err := p.writeCell(g, c.Row, c.Col, dto); err != nil {
			return err
		}
	}
	return nil
}

// writeCell sets every attribute of a cell from dto; absent attributes are
// reset to their defaults.
func (p *Project) writeCell(g *Grid, row, col int, dto CellDTO) error {
	for _, av := range dto.attrs() {
		v, err := coerceAttr(av.attr, av.value)
		if err != nil {
			return err
		}
		p.setAttr(g, row, col, av.attr, v)
	}
	return nil
}

func (p *Project) setRowHeight(g *Grid, row int, size float64) error {
	if row < 0 || row >= g.Rows() {
		return fmt.Errorf("row %d is outside grid %s", row, g.name)
	}
	old := g.rowHeights[row]
	if old == size {
		return nil
	}
	g.rowHeights[row] = size
	p.record(Event{Type: EventRowResized, Grid: g.name, Row: row, Old: old, New: size})
	return nil
}

func (p *Project) setColWidth(g *Grid, col int, size float64) error {
	if col < 0 || col >= g.Cols() {
		return fmt.Errorf("column %d is outside grid %s", col, g.name)
	}
	old := g.colWidths[col]
	if old == size {
		return nil
	}
	g.colWidths[col] = size
	p.record(Event{Type: EventColResized, Grid: g.name, Col: col, Old: old, New: size})
	return nil
}

func (p *Project) renameGrid(oldName, newName string) {
	p.grids.rename(oldName, newName)
	p.graph.markGridDirty(newName)
	p.record(Event{Type: EventGridRenamed, Old: oldName, New: newName})
}

func (p *Project) addGrid(g *Grid, index int) {
	p.grids.insert(index, g)
	g.all(func(row, col int, _ *Cell) bool {
		p.graph.markDirty(g.address(row, col))
		return true
	})
	p.graph.markGridDirty(g.name)
	snap := gridToDTO(g)
	p.record(Event{Type: EventGridAdded, Index: p.grids.indexOf(g), Snapshot: &snap})
}

func (p *Project) removeGrid(name string) {
	g, _ := p.grids.get(name)
	snap := gridToDTO(g)
	current := p.current
	_, index := p.grids.remove(name)
	if p.current > index || p.current >= len(p.grids.order) {
		p.current = max(p.current-1, 0)
	}
	p.structureChanged()
	p.record(Event{Type: EventGridRemoved, Index: index, Snapshot: &snap, Current: current})
}

// gridNamed returns the named grid, or the current grid for "".
func (p *Project) gridNamed(name string) (*Grid, error) {
	if name == "" {
		return p.CurrentGrid(), nil
	}
	g, ok := p.grids.get(name)
	if !ok {
		return nil, appErrorf(NotFound, nil, "grid %q does not exist", name)
	}
	return g, nil
}

// InsertRowsBefore inserts count empty rows above row. Formulas and aliases
// pointing at or below row shift down.
func (p *Project) InsertRowsBefore(grid string, row, count int) error {
	return p.insertBand(grid, true, row, count)
}

// InsertRowsAfter inserts count empty rows below row.
func (p *Project) InsertRowsAfter(grid string, row, count int) error {
	return p.insertBand(grid, true, row+1, count)
}

func (p *Project) InsertColsBefore(grid string, col, count int) error {
	return p.insertBand(grid, false, col, count)
}

func (p *Project) InsertColsAfter(grid string, col, count int) error {
	return p.insertBand(grid, false, col+1, count)
}

func (p *Project) insertBand(grid string, rows bool, at, count int) error {
	g, err := p.gridNamed(grid)
	if err != nil {
		return err
	}
	size, limit, what := g.Cols(), ref.MaxCols, "columns"
	if rows {
		size, limit, what = g.Rows(), ref.MaxRows, "rows"
	}
	switch {
	case count < 1:
		return appErrorf(InvalidArgument, nil, "cannot insert %d %s", count, what)
	case at < 0 || at > size:
		return appErrorf(OutOfRange, nil, "cannot insert %s at %d in grid %s", what, at, g.name)
	case size+count > limit:
		return appErrorf(OutOfRange, nil, "grid %s cannot hold more than %d %s", g.name, limit, what)
	case splitsSpill(g, rows, at, 0):
		return appErrorf(FailedPrecondition, ErrSpillSplit, "cannot insert %s at %d", what, at)
	}
	return p.mutate(func() error {
		if rows {
			p.insertRows(g, at, count, nil)
			p.applyTransformation(RowInsert{Grid: g.name, At: at, Count: count}, nil)
		} else {
			p.insertCols(g, at, count, nil)
			p.applyTransformation(ColInsert{Grid: g.name, At: at, Count: count}, nil)
		}
		return nil
	})
}

// DeleteRows removes count rows starting at row. References entirely inside
// the removed rows become #REF!; ranges that overlap them shrink.
func (p *Project) DeleteRows(grid string, row, count int) error {
	return p.deleteBand(grid, true, row, count)
}

// DeleteCols is the column counterpart of DeleteRows.
func (p *Project) DeleteCols(grid string, col, count int) error {
	return p.deleteBand(grid, false, col, count)
}

func (p *Project) deleteBand(grid string, rows bool, at, count int) error {
	g, err := p.gridNamed(grid)
	if err != nil {
		return err
	}
	size, what := g.Cols(), "columns"
	if rows {
		size, what = g.Rows(), "rows"
	}
	switch {
	case count < 1:
		return appErrorf(InvalidArgument, nil, "cannot delete %d %s", count, what)
	case at < 0 || at+count > size:
		return appErrorf(OutOfRange, nil, "%s %d to %d are outside grid %s", what, at, at+count-1, g.name)
	case count >= size:
		return appErrorf(FailedPrecondition, ErrLastBand, "cannot delete %s of grid %s", what, g.name)
	case splitsSpill(g, rows, at, count):
		return appErrorf(FailedPrecondition, ErrSpillSplit, "cannot delete %s %d to %d", what, at, at+count-1)
	}
	return p.mutate(func() error {
		if rows {
			p.deleteRows(g, at, count)
			p.applyTransformation(RowDelete{Grid: g.name, At: at, Count: count}, nil)
		} else {
			p.deleteCols(g, at, count)
			p.applyTransformation(ColDelete{Grid: g.name, At: at, Count: count}, nil)
		}
		return nil
	})
}

// SetRowHeight sets the height of one row. Heights must not be negative.
func (p *Project) SetRowHeight(grid string, row int, height float64) error {
	g, err := p.gridNamed(grid)
	if err != nil {
		return err
	}
	if height < 0 {
		return appErrorf(InvalidArgument, nil, "negative row height %v", height)
	}
	if row < 0 || row >= g.Rows() {
		return appErrorf(OutOfRange, nil, "row %d is outside grid %s", row, g.name)
	}
	return p.mutate(func() error { return p.setRowHeight(g, row, height) })
}

func (p *Project) SetColWidth(grid string, col int, width float64) error {
	g, err := p.gridNamed(grid)
	if err != nil {
		return err
	}
	if width < 0 {
		return appErrorf(InvalidArgument, nil, "negative column width %v", width)
	}
	if col < 0 || col >= g.Cols() {
		return appErrorf(OutOfRange, nil, "column %d is outside grid %s", col, g.name)
	}
	return p.mutate(func() error { return p.setColWidth(g, col, width) })
}

func validateGridName(name string) error {
	if name == "" {
		return fmt.Errorf("grid name is empty")
	}
	if _, err := ref.Parse(ref.NewCell(name, 0, 0).String()); err != nil {
		return fmt.Errorf("grid name %q cannot be referenced: %w", name, err)
	}
	return nil
}

// AddGrid appends an empty grid shaped by the project configuration.
func (p *Project) AddGrid(name string) (*Grid, error) {
	if err := validateGridName(name); err != nil {
		return nil, appErrorf(InvalidArgument, err, "cannot add grid")
	}
	if _, exists := p.grids.get(name); exists {
		return nil, appErrorf(AlreadyExists, nil, "grid %q already exists", name)
	}
	gc := p.cfg.Grid
	g := newGrid(name, gc.Rows, gc.Cols, gc.RowHeight, gc.ColWidth)
	err := p.mutate(func() error {
		p.addGrid(g, len(p.grids.order))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// RemoveGrid deletes a grid. Qualified references to it become #REF!.
func (p *Project) RemoveGrid(name string) error {
	if _, ok := p.grids.get(name); !ok {
		return appErrorf(NotFound, nil, "grid %q does not exist", name)
	}
	if len(p.grids.order) == 1 {
		return appErrorf(FailedPrecondition, ErrLastGrid, "cannot remove grid %s", name)
	}
	return p.mutate(func() error {
		p.removeGrid(name)
		p.applyTransformation(GridDelete{Name: name}, nil)
		return nil
	})
}

// RenameGrid renames a grid and every qualified reference to it.
func (p *Project) RenameGrid(oldName, newName string) error {
	if _, ok := p.grids.get(oldName); !ok {
		return appErrorf(NotFound, nil, "grid %q does not exist", oldName)
	}
	if err := validateGridName(newName); err != nil {
		return appErrorf(InvalidArgument, err, "cannot rename grid %s", oldName)
	}
	if oldName == newName {
		return nil
	}
	if _, exists := p.grids.get(newName); exists {
		return appErrorf(AlreadyExists, nil, "grid %q already exists", newName)
	}
	return p.mutate(func() error {
		p.renameGrid(oldName, newName)
		p.applyTransformation(GridRename{Old: oldName, New: newName}, nil)
		return nil
	})
}

// placement is a source rectangle and where its top-left cell lands.
type placement struct {
	src, dst   *Grid
	from, to   ref.Range
	dRow, dCol int
	cells      []CellDTO // row-major over from
}

func (p *Project) place(src, target string) (*placement, error) {
	sg, from, err := p.rangeAt(src)
	if err != nil {
		return nil, err
	}
	dg, anchor, err := p.locate(target)
	if err != nil {
		return nil, err
	}
	end := ref.NewCell(dg.name, anchor.Row+from.Rows()-1, anchor.Col+from.Cols()-1)
	if !dg.inBounds(end.Row, end.Col) {
		return nil, appErrorf(OutOfRange, ref.ErrOutOfRange, "%s does not fit at %s", src, target)
	}
	pl := &placement{
		src:  sg,
		dst:  dg,
		from: from,
		to:   ref.NewRange(ref.NewCell(dg.name, anchor.Row, anchor.Col), end),
		dRow: anchor.Row - from.Start.Row,
		dCol: anchor.Col - from.Start.Col,
	}
	for c := range from.Cells() {
		pl.cells = append(pl.cells, cellToDTO(sg.cells[c.Row][c.Col]))
	}
	return pl, nil
}

// checkWritable rejects placements that would write input into a cell
// covered by a spill it is not itself moving.
func (pl *placement) checkWritable(moving bool) error {
	i := 0
	for c := range pl.to.Cells() {
		dto := pl.cells[i]
		i++
		cell := pl.dst.cells[c.Row][c.Col]
		if !cell.ReadOnly() || dto.Input == "" {
			continue
		}
		if moving && pl.dst == pl.src {
			src := ref.NewCell(pl.src.name, cell.spillSource.row, cell.spillSource.col)
			if pl.from.Contains(src) {
				continue
			}
		}
		return appErrorf(FailedPrecondition, ErrReadonlyCell, "cannot write %s", c.Format(""))
	}
	return nil
}

// MoveRange cuts the cells of src and pastes them with their top-left cell
// at target. Formulas elsewhere that point into src follow the cells;
// moved formulas keep pointing at what they pointed at before.
func (p *Project) MoveRange(src, target string) error {
	pl, err := p.place(src, target)
	if err != nil {
		return err
	}
	if pl.src == pl.dst && pl.dRow == 0 && pl.dCol == 0 {
		return nil
	}
	if err := pl.checkWritable(true); err != nil {
		return err
	}
	move := Move{Source: &pl.from, DRow: pl.dRow, DCol: pl.dCol, ToGrid: pl.dst.name}
	return p.mutate(func() error {
		for i := range pl.cells {
			pl.cells[i].Input = p.transformFormula(pl.cells[i].Input, move, pl.src.name, pl.dst.name)
		}
		p.applyTransformation(move, func(g *Grid, row, col int) bool {
			return g == pl.src && pl.from.Contains(ref.NewCell(g.name, row, col))
		})
		for c := range pl.from.Cells() {
			if err := p.writeCell(pl.src, c.Row, c.Col, CellDTO{}); err != nil {
				return err
			}
		}
		return p.writeAll(pl)
	})
}

// CopyRange pastes a copy of the cells of src with their top-left cell at
// target. Relative references in copied formulas shift by the distance
// moved.
func (p *Project) CopyRange(src, target string) error {
	pl, err := p.place(src, target)
	if err != nil {
		return err
	}
	if err := pl.checkWritable(false); err != nil {
		return err
	}
	move := Move{DRow: pl.dRow, DCol: pl.dCol}
	return p.mutate(func() error {
		for i := range pl.cells {
			pl.cells[i].Input = p.transformFormula(pl.cells[i].Input, move, pl.dst.name, pl.dst.name)
		}
		return p.writeAll(pl)
	})
}

func (p *Project) writeAll(pl *placement) error {
	i := 0
	for c := range pl.to.Cells() {
		dto := pl.cells[i]
		i++
		if err := p.writeCell(pl.dst, c.Row, c.Col, dto); err != nil {
			return err
		}
	}
	return nil
}
