package spreadsheet

import (
	"slices"

	"github.com/google/uuid"
	"github.com/vogtb/go-spreadsheet/packages/ref"
)

// Grid is a named, dense rows×cols store of cells with per-row heights and
// per-column widths. Grids are mutated through their Project.
type Grid struct {
	id         uuid.UUID
	name       string
	rowHeights []float64
	colWidths  []float64
	cells      [][]*Cell // [row][col]
	spills     *spillRegistry

	defaultRowHeight float64
	defaultColWidth  float64
}

func newGrid(name string, rows, cols int, rowHeight, colWidth float64) *Grid {
	g := &Grid{
		id:               uuid.New(),
		name:             name,
		spills:           newSpillRegistry(),
		defaultRowHeight: rowHeight,
		defaultColWidth:  colWidth,
	}
	g.rowHeights = filled(rows, rowHeight)
	g.colWidths = filled(cols, colWidth)
	g.cells = make([][]*Cell, rows)
	for r := range g.cells {
		g.cells[r] = newCellRow(cols)
	}
	return g
}

func filled(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func newCellRow(cols int) []*Cell {
	row := make([]*Cell, cols)
	for c := range row {
		row[c] = newCell()
	}
	return row
}

func (g *Grid) ID() uuid.UUID { return g.id }
func (g *Grid) Name() string  { return g.name }
func (g *Grid) Rows() int     { return len(g.rowHeights) }
func (g *Grid) Cols() int     { return len(g.colWidths) }

// Range is the rectangle covering every cell of the grid.
func (g *Grid) Range() ref.Range {
	return ref.NewRange(
		ref.NewCell(g.name, 0, 0),
		ref.NewCell(g.name, g.Rows()-1, g.Cols()-1),
	)
}

func (g *Grid) inBounds(row, col int) bool {
	return row >= 0 && row < g.Rows() && col >= 0 && col < g.Cols()
}

// Cell returns the cell at row, col, or nil outside the grid.
func (g *Grid) Cell(row, col int) *Cell {
	if !g.inBounds(row, col) {
		return nil
	}
	return g.cells[row][col]
}

func (g *Grid) RowHeight(row int) float64 {
	if row < 0 || row >= g.Rows() {
		return 0
	}
	return g.rowHeights[row]
}

func (g *Grid) ColWidth(col int) float64 {
	if col < 0 || col >= g.Cols() {
		return 0
	}
	return g.colWidths[col]
}

// IsEmpty reports whether the referenced cell holds nothing. Cells outside
// the grid count as empty. It is shaped for the page-wise stepping helpers
// in package ref.
func (g *Grid) IsEmpty(c ref.Cell) bool {
	cell := g.Cell(c.Row, c.Col)
	return cell == nil || cell.IsEmpty()
}

func (g *Grid) address(row, col int) CellAddress {
	return CellAddress{Grid: g.id, Row: row, Col: col}
}

// all yields every cell with its coordinates, row by row.
func (g *Grid) all(yield func(row, col int, c *Cell) bool) {
	for r, cells := range g.cells {
		for c, cell := range cells {
			if !yield(r, c, cell) {
				return
			}
		}
	}
}

func (g *Grid) insertRows(at, count int, heights []float64) {
	rows := make([][]*Cell, count)
	for i := range rows {
		rows[i] = newCellRow(g.Cols())
	}
	g.cells = slices.Insert(g.cells, at, rows...)
	g.rowHeights = slices.Insert(g.rowHeights, at, sizesOr(heights, count, g.defaultRowHeight)...)
}

func (g *Grid) deleteRows(at, count int) {
	g.cells = slices.Delete(g.cells, at, at+count)
	g.rowHeights = slices.Delete(g.rowHeights, at, at+count)
}

func (g *Grid) insertCols(at, count int, widths []float64) {
	for r := range g.cells {
		g.cells[r] = slices.Insert(g.cells[r], at, newCellRow(count)...)
	}
	g.colWidths = slices.Insert(g.colWidths, at, sizesOr(widths, count, g.defaultColWidth)...)
}

func (g *Grid) deleteCols(at, count int) {
	for r := range g.cells {
		g.cells[r] = slices.Delete(g.cells[r], at, at+count)
	}
	g.colWidths = slices.Delete(g.colWidths, at, at+count)
}

func sizesOr(sizes []float64, count int, def float64) []float64 {
	if len(sizes) == count {
		return slices.Clone(sizes)
	}
	return filled(count, def)
}

// gridTable keeps grids in display order with lookups by name and id.
type gridTable struct {
	order  []*Grid
	byName map[string]*Grid
	byID   map[uuid.UUID]*Grid
}

func newGridTable() *gridTable {
	return &gridTable{
		byName: make(map[string]*Grid),
		byID:   make(map[uuid.UUID]*Grid),
	}
}

func (gt *gridTable) insert(index int, g *Grid) {
	index = min(max(index, 0), len(gt.order))
	gt.order = slices.Insert(gt.order, index, g)
	gt.byName[g.name] = g
	gt.byID[g.id] = g
}

// remove drops the named grid and returns it with its former index.
func (gt *gridTable) remove(name string) (*Grid, int) {
	g, ok := gt.byName[name]
	if !ok {
		return nil, -1
	}
	index := gt.indexOf(g)
	gt.order = slices.Delete(gt.order, index, index+1)
	delete(gt.byName, name)
	delete(gt.byID, g.id)
	return g, index
}

func (gt *gridTable) rename(oldName, newName string) {
	g := gt.byName[oldName]
	delete(gt.byName, oldName)
	g.name = newName
	gt.byName[newName] = g
}

func (gt *gridTable) indexOf(g *Grid) int {
	return slices.Index(gt.order, g)
}

func (gt *gridTable) get(name string) (*Grid, bool) {
	g, ok := gt.byName[name]
	return g, ok
}

func (gt *gridTable) getByID(id uuid.UUID) (*Grid, bool) {
	g, ok := gt.byID[id]
	return g, ok
}
