package spreadsheet

import (
	"fmt"

	"github.com/vogtb/go-spreadsheet/packages/ref"
)

// Attr names a settable cell attribute. The names double as CellDTO keys.
type Attr string

const (
	AttrInput           Attr = "input"
	AttrCellType        Attr = "cellType"
	AttrNumberFormatter Attr = "numberFormatter"
	AttrDateFormatter   Attr = "dateFormatter"
	AttrFontSize        Attr = "fontSize"
	AttrFontFamily      Attr = "fontFamily"
	AttrBold            Attr = "bold"
	AttrItalic          Attr = "italic"
	AttrTextDecoration  Attr = "textDecoration"
	AttrJustify         Attr = "justify"
	AttrAlign           Attr = "align"
	AttrBackgroundColor Attr = "backgroundColor"
	AttrTextColor       Attr = "textColor"
)

// coerceAttr normalizes a value for attr. Booleans and font sizes keep their
// type; everything else is a string. nil is the attribute's default.
func coerceAttr(attr Attr, v any) (any, error) {
	switch attr {
	case AttrBold, AttrItalic:
		if v == nil {
			return false, nil
		}
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("attribute %s wants a bool, got %T", attr, v)
		}
		return b, nil
	case AttrFontSize:
		if v == nil {
			return 0.0, nil
		}
		f, ok := toFloat(v)
		if !ok || f < 0 {
			return nil, fmt.Errorf("attribute %s wants a non-negative number, got %v", attr, v)
		}
		return f, nil
	case AttrCellType:
		if v == nil {
			return CellTypeAuto.String(), nil
		}
		var s string
		switch x := v.(type) {
		case CellType:
			s = x.String()
		case string:
			s = x
		default:
			return nil, fmt.Errorf("attribute %s wants a cell type, got %T", attr, v)
		}
		t, err := ParseCellType(s)
		if err != nil {
			return nil, err
		}
		return t.String(), nil
	case AttrInput, AttrNumberFormatter, AttrDateFormatter, AttrFontFamily, AttrTextDecoration,
		AttrJustify, AttrAlign, AttrBackgroundColor, AttrTextColor:
		if v == nil {
			return "", nil
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("attribute %s wants a string, got %T", attr, v)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown attribute %q", attr)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	}
	return 0, false
}

// attr reads an attribute in its coerced form.
func (c *Cell) attr(attr Attr) any {
	switch attr {
	case AttrInput:
		return c.input
	case AttrCellType:
		return c.cellType.String()
	case AttrNumberFormatter:
		return c.numberFormatter
	case AttrDateFormatter:
		return c.dateFormatter
	case AttrFontSize:
		return c.style.FontSize
	case AttrFontFamily:
		return c.style.FontFamily
	case AttrBold:
		return c.style.Bold
	case AttrItalic:
		return c.style.Italic
	case AttrTextDecoration:
		return c.style.TextDecoration
	case AttrJustify:
		return c.style.Justify
	case AttrAlign:
		return c.style.Align
	case AttrBackgroundColor:
		return c.style.BackgroundColor
	case AttrTextColor:
		return c.style.TextColor
	}
	return nil
}

// setAttr writes an already coerced value, records the change and marks
// the cell dirty when its output may change.
func (p *Project) setAttr(g *Grid, row, col int, attr Attr, v any) {
	c := g.cells[row][col]
	old := c.attr(attr)
	if old == v {
		return
	}
	switch attr {
	case AttrInput:
		c.input = v.(string)
	case AttrCellType:
		c.cellType, _ = ParseCellType(v.(string))
	case AttrNumberFormatter:
		c.numberFormatter = v.(string)
	case AttrDateFormatter:
		c.dateFormatter = v.(string)
	case AttrFontSize:
		c.style.FontSize = v.(float64)
	case AttrFontFamily:
		c.style.FontFamily = v.(string)
	case AttrBold:
		c.style.Bold = v.(bool)
	case AttrItalic:
		c.style.Italic = v.(bool)
	case AttrTextDecoration:
		c.style.TextDecoration = v.(string)
	case AttrJustify:
		c.style.Justify = v.(string)
	case AttrAlign:
		c.style.Align = v.(string)
	case AttrBackgroundColor:
		c.style.BackgroundColor = v.(string)
	case AttrTextColor:
		c.style.TextColor = v.(string)
	}
	switch attr {
	case AttrInput, AttrCellType:
		c.classify()
		p.graph.markDirty(g.address(row, col))
		// replay can write into a covered cell; the source must re-claim
		if src := c.spillSource; src != nil && attr == AttrInput {
			p.graph.markDirty(g.address(src.row, src.col))
		}
	case AttrNumberFormatter, AttrDateFormatter:
		p.graph.markDirty(g.address(row, col))
	}
	p.record(Event{Type: EventAttribute, Grid: g.name, Row: row, Col: col, Attr: attr, Old: old, New: v})
}

// SetAttribute sets attr on a cell or on every cell of a range. Input can
// only be written to cells not covered by a spill.
func (p *Project) SetAttribute(target string, attr Attr, value any) error {
	v, err := coerceAttr(attr, value)
	if err != nil {
		return appErrorf(InvalidArgument, err, "cannot set %s on %s", attr, target)
	}
	g, r, err := p.rangeAt(target)
	if err != nil {
		return err
	}
	if attr == AttrInput {
		for c := range r.Cells() {
			if g.cells[c.Row][c.Col].ReadOnly() && v != "" {
				return appErrorf(FailedPrecondition, ErrReadonlyCell, "cannot write %s", c.Format(""))
			}
		}
	}
	return p.mutate(func() error {
		for c := range r.Cells() {
			if attr == AttrInput && g.cells[c.Row][c.Col].ReadOnly() {
				continue
			}
			p.setAttr(g, c.Row, c.Col, attr, v)
		}
		return nil
	})
}

// SetInput writes the raw input of one cell.
func (p *Project) SetInput(cell, input string) error {
	if _, err := p.cellAt(cell); err != nil {
		return err
	}
	return p.SetAttribute(cell, AttrInput, input)
}

// Clear empties the input of a cell or range. Cells covered by a spill are
// skipped.
func (p *Project) Clear(target string) error {
	return p.SetAttribute(target, AttrInput, "")
}

// SetCellType changes how target input is classified.
func (p *Project) SetCellType(target string, t CellType) error {
	return p.SetAttribute(target, AttrCellType, t.String())
}

// SetNumberFormatter sets the program applied to numeric outputs for
// display, e.g. "LAMBDA(x, FIXED(x, 2))".
func (p *Project) SetNumberFormatter(target, program string) error {
	return p.SetAttribute(target, AttrNumberFormatter, program)
}

// SetDateFormatter sets the program applied to date outputs for display.
func (p *Project) SetDateFormatter(target, program string) error {
	return p.SetAttribute(target, AttrDateFormatter, program)
}

func (p *Project) SetFontSize(target string, size float64) error {
	return p.SetAttribute(target, AttrFontSize, size)
}

func (p *Project) SetFontFamily(target, family string) error {
	return p.SetAttribute(target, AttrFontFamily, family)
}

func (p *Project) SetBold(target string, bold bool) error {
	return p.SetAttribute(target, AttrBold, bold)
}

func (p *Project) SetItalic(target string, italic bool) error {
	return p.SetAttribute(target, AttrItalic, italic)
}

func (p *Project) SetTextDecoration(target, decoration string) error {
	return p.SetAttribute(target, AttrTextDecoration, decoration)
}

func (p *Project) SetJustify(target, justify string) error {
	return p.SetAttribute(target, AttrJustify, justify)
}

func (p *Project) SetAlign(target, align string) error {
	return p.SetAttribute(target, AttrAlign, align)
}

func (p *Project) SetBackgroundColor(target, color string) error {
	return p.SetAttribute(target, AttrBackgroundColor, color)
}

func (p *Project) SetTextColor(target, color string) error {
	return p.SetAttribute(target, AttrTextColor, color)
}

// cellAt resolves a cell reference against the current grid.
func (p *Project) cellAt(s string) (*Cell, error) {
	g, c, err := p.locate(s)
	if err != nil {
		return nil, err
	}
	return g.cells[c.Row][c.Col], nil
}

func (p *Project) locate(s string) (*Grid, ref.Cell, error) {
	c, err := ref.ParseCell(s)
	if err != nil {
		return nil, ref.Cell{}, appErrorf(InvalidArgument, err, "invalid cell")
	}
	g, err := p.gridFor(c)
	if err != nil {
		return nil, ref.Cell{}, err
	}
	if !g.inBounds(c.Row, c.Col) {
		return nil, ref.Cell{}, appErrorf(OutOfRange, ref.ErrOutOfRange, "%s is outside grid %s", c.Format(""), g.name)
	}
	return g, c.WithGrid(g.name).(ref.Cell), nil
}

// rangeAt resolves any reference shape to its rectangle, clamped to the
// grid.
func (p *Project) rangeAt(s string) (*Grid, ref.Range, error) {
	r, err := ref.Parse(s)
	if err != nil {
		return nil, ref.Range{}, appErrorf(InvalidArgument, err, "invalid reference")
	}
	g, err := p.gridFor(r)
	if err != nil {
		return nil, ref.Range{}, err
	}
	b := r.WithGrid(g.name).Bounds()
	if b.Start.Row >= g.Rows() || b.Start.Col >= g.Cols() {
		return nil, ref.Range{}, appErrorf(OutOfRange, ref.ErrOutOfRange, "%s is outside grid %s", s, g.name)
	}
	return g, b.ClampRange(g.Range()), nil
}

func (p *Project) gridFor(r ref.Reference) (*Grid, error) {
	if r.GridName() == "" {
		return p.CurrentGrid(), nil
	}
	g, ok := p.grids.get(r.GridName())
	if !ok {
		return nil, appErrorf(NotFound, nil, "grid %q does not exist", r.GridName())
	}
	return g, nil
}
