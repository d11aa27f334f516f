package spreadsheet

import (
	"cmp"
	"slices"

	"github.com/sirupsen/logrus"
	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/ref"
)

// maxSettlePasses bounds how often settle re-scans the dirty set. Spills
// can dirty cells that were already computed in the same pass.
const maxSettlePasses = 64

var errCircular = formula.NewError(formula.ErrorCodeCirc, "circular reference")

// settle recomputes every dirty cell, in grid order then row-major order,
// until nothing is dirty.
func (p *Project) settle() {
	computed := 0
	for pass := 0; len(p.graph.dirtySet) > 0; pass++ {
		if pass == maxSettlePasses {
			p.logger.WithField("dirty", len(p.graph.dirtySet)).Warn("settle did not converge")
			return
		}
		for _, addr := range p.sortedDirty() {
			if !p.graph.isDirty(addr) {
				continue
			}
			g, ok := p.grids.getByID(addr.Grid)
			if !ok || !g.inBounds(addr.Row, addr.Col) {
				p.graph.clean(addr)
				continue
			}
			p.compute(g, addr.Row, addr.Col)
			computed++
		}
	}
	if computed > 0 {
		p.logger.WithField("computed", computed).Debug("settled")
	}
}

func (p *Project) sortedDirty() []CellAddress {
	order := make(map[CellAddress]int, len(p.graph.dirtySet))
	out := make([]CellAddress, 0, len(p.graph.dirtySet))
	for addr := range p.graph.dirtySet {
		index := -1
		if g, ok := p.grids.getByID(addr.Grid); ok {
			index = p.grids.indexOf(g)
		}
		order[addr] = index
		out = append(out, addr)
	}
	slices.SortFunc(out, func(a, b CellAddress) int {
		return cmp.Or(
			cmp.Compare(order[a], order[b]),
			cmp.Compare(a.Row, b.Row),
			cmp.Compare(a.Col, b.Col),
		)
	})
	return out
}

// ensure computes the cell at addr if it is dirty.
func (p *Project) ensure(g *Grid, row, col int) {
	if p.graph.isDirty(g.address(row, col)) {
		p.compute(g, row, col)
	}
}

// valueOf returns the value a formula sees when it reads a cell, computing
// the cell first when needed. Empty cells read as nil.
func (p *Project) valueOf(g *Grid, row, col int) formula.Primitive {
	c := g.cells[row][col]
	if src := c.spillSource; src != nil {
		if _, busy := p.resolving[g.address(src.row, src.col)]; busy {
			return errCircular
		}
		p.ensure(g, src.row, src.col)
		if c.spillSource != nil && c.kind == inputEmpty {
			return c.spillValue
		}
	}
	if _, busy := p.resolving[g.address(row, col)]; busy {
		return errCircular
	}
	p.ensure(g, row, col)
	if c.kind == inputEmpty && c.spillSource == nil {
		return nil
	}
	return c.output
}

// compute derives the output, value type and display of one cell.
func (p *Project) compute(g *Grid, row, col int) {
	addr := g.address(row, col)
	p.graph.clean(addr)
	p.graph.clearDependencies(addr)
	c := g.cells[row][col]

	if src := c.spillSource; src != nil {
		p.ensure(g, src.row, src.col)
	}

	var out formula.Primitive
	date := false
	switch {
	case c.spillSource != nil && c.kind == inputEmpty:
		out = c.spillValue
	case c.kind == inputEmpty:
		p.releaseSpill(g, spillSource{row, col})
	case c.kind == inputLiteral:
		p.releaseSpill(g, spillSource{row, col})
		out, date = c.literal, c.date
	default:
		out = p.evaluate(g, row, col, c)
	}

	vt := valueTypeOf(out)
	switch {
	case vt == ValueTypeEmpty:
		out = 0.0
	case date:
		vt = ValueTypeDate
	}
	vt, typeErr := checkDeclaredType(c.cellType, vt)
	if typeErr != nil {
		out = typeErr
	}
	c.output = out
	c.valueType = vt
	c.display = p.displayOf(addr, c)
}

// evaluate runs the cell's program with every free identifier resolved.
func (p *Project) evaluate(g *Grid, row, col int, c *Cell) formula.Primitive {
	addr := g.address(row, col)
	p.resolving[addr] = struct{}{}
	defer delete(p.resolving, addr)

	env, err := p.environment(g, addr, c.program)
	if err != nil {
		p.releaseSpill(g, spillSource{row, col})
		return formula.NewError(formula.ErrorCodeOther, err.Error())
	}
	v, err := p.interp.Run(c.program, env)
	if err != nil {
		p.releaseSpill(g, spillSource{row, col})
		return formula.NewError(formula.ErrorCodeOther, err.Error())
	}
	if p.interp.Volatile(c.program) {
		p.graph.markVolatile(addr)
	}

	arr, ok := v.(formula.Array)
	switch {
	case !ok || c.noSpill:
		p.releaseSpill(g, spillSource{row, col})
		if v == nil {
			return 0.0
		}
		return v
	case arr.Rows() == 0 || arr.Cols() == 0:
		p.releaseSpill(g, spillSource{row, col})
		return formula.NewError(formula.ErrorCodeValue, "empty array")
	}
	return p.applySpill(g, row, col, arr)
}

// environment binds every free identifier of program that names a cell, a
// range or an alias. Builtins and constants are left to the interpreter;
// names it cannot bind evaluate to #REF! or #NAME?.
func (p *Project) environment(g *Grid, addr CellAddress, program string) (formula.Env, error) {
	free, err := p.interp.UnresolvedIdentifiers(program)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(free))
	for id := range free {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	env := make(formula.Env, len(ids))
	for _, id := range ids {
		if target, ok := p.aliases.get(id); ok {
			p.graph.addAliasDependency(addr, id)
			if v, ok := p.resolveRef(g, addr, target); ok {
				env[id] = v
			}
			continue
		}
		if r, ok := referenceOf(id); ok {
			if v, ok := p.resolveRef(g, addr, r); ok {
				env[id] = v
			}
			continue
		}
		// may be defined later
		p.graph.addAliasDependency(addr, id)
	}
	return env, nil
}

// resolveRef reads a reference from the cell at addr on g. Cells yield their
// value; every other shape yields an array clamped to the target grid.
func (p *Project) resolveRef(g *Grid, addr CellAddress, r ref.Reference) (formula.Primitive, bool) {
	target := g
	if name := r.GridName(); name != "" {
		t, ok := p.grids.get(name)
		if !ok {
			p.graph.addGridDependency(addr, name)
			return nil, false
		}
		target = t
	}
	b := r.WithGrid(target.name).Bounds()
	if r.Kind() == ref.KindCell {
		if !target.inBounds(b.Start.Row, b.Start.Col) {
			return nil, false
		}
		p.graph.addCellDependency(addr, target.address(b.Start.Row, b.Start.Col))
		return p.valueOf(target, b.Start.Row, b.Start.Col), true
	}
	if b.Start.Row >= target.Rows() || b.Start.Col >= target.Cols() {
		return nil, false
	}
	b = b.ClampRange(target.Range())
	p.graph.addRangeDependency(addr, RangeAddress{
		Grid:     target.id,
		StartRow: b.Start.Row,
		StartCol: b.Start.Col,
		EndRow:   b.End.Row,
		EndCol:   b.End.Col,
	})
	arr := formula.NewArray(b.Rows(), b.Cols())
	for i := range arr {
		for j := range arr[i] {
			arr[i][j] = p.valueOf(target, b.Start.Row+i, b.Start.Col+j)
		}
	}
	return arr, true
}

// displayOf renders a computed output, through the cell's formatter when
// one applies.
func (p *Project) displayOf(addr CellAddress, c *Cell) string {
	switch c.valueType {
	case ValueTypeEmpty:
		p.formatters.release(addr)
		return ""
	case ValueTypeNumber:
		if c.numberFormatter != "" {
			return p.format(addr, c.numberFormatter, c.output)
		}
	case ValueTypeDate:
		if c.dateFormatter != "" {
			return p.format(addr, c.dateFormatter, c.output)
		}
		p.formatters.release(addr)
		serial, _ := formula.ToNumber(c.output)
		return defaultDateDisplay(serial)
	}
	p.formatters.release(addr)
	return formula.ToString(c.output)
}

// structureChanged drops the dependency graph and every cached formatter
// after cells moved, and marks every cell for recomputation.
func (p *Project) structureChanged() {
	p.graph.clear()
	p.formatters.clear()
	for _, g := range p.grids.order {
		g.all(func(row, col int, _ *Cell) bool {
			p.graph.dirtySet[g.address(row, col)] = struct{}{}
			return true
		})
	}
}

// Precedents returns every cell the given cell reads, directly or through
// other cells, in grid then row-major order.
func (p *Project) Precedents(cell string) ([]ref.Cell, error) {
	g, c, err := p.locate(cell)
	if err != nil {
		return nil, err
	}
	closure := p.graph.precedents(g.address(c.Row, c.Col))
	addrs := make([]CellAddress, 0, len(closure))
	for addr := range closure {
		if _, ok := p.grids.getByID(addr.Grid); ok {
			addrs = append(addrs, addr)
		}
	}
	slices.SortFunc(addrs, func(a, b CellAddress) int {
		ga, _ := p.grids.getByID(a.Grid)
		gb, _ := p.grids.getByID(b.Grid)
		return cmp.Or(
			cmp.Compare(p.grids.indexOf(ga), p.grids.indexOf(gb)),
			cmp.Compare(a.Row, b.Row),
			cmp.Compare(a.Col, b.Col),
		)
	})
	out := make([]ref.Cell, len(addrs))
	for i, addr := range addrs {
		owner, _ := p.grids.getByID(addr.Grid)
		out[i] = ref.NewCell(owner.name, addr.Row, addr.Col)
	}
	return out, nil
}

// Recalculate recomputes the cells whose formulas call volatile functions
// such as NOW and RAND.
func (p *Project) Recalculate() {
	p.graph.markAllVolatileDirty()
	p.logger.WithFields(logrus.Fields{"dirty": len(p.graph.dirtySet)}).Debug("recalculate")
	if p.depth == 0 {
		p.settle()
	}
}

// Output returns the computed value of a cell.
func (p *Project) Output(cell string) (formula.Primitive, error) {
	c, err := p.cellAt(cell)
	if err != nil {
		return nil, err
	}
	return c.output, nil
}

// Display returns the rendered text of a cell.
func (p *Project) Display(cell string) (string, error) {
	c, err := p.cellAt(cell)
	if err != nil {
		return "", err
	}
	return c.display, nil
}

// Input returns the raw text entered into cell.
func (p *Project) Input(cell string) (string, error) {
	c, err := p.cellAt(cell)
	if err != nil {
		return "", err
	}
	return c.input, nil
}

// Cell returns the cell at a reference for read access.
func (p *Project) Cell(cell string) (*Cell, error) {
	return p.cellAt(cell)
}
