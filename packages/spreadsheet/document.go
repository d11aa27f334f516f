package spreadsheet

import (
	"fmt"
	"strconv"
	"time"

	"github.com/vogtb/go-spreadsheet/packages/history"
	"github.com/vogtb/go-spreadsheet/packages/ref"
)

// Document is the serializable form of a project. Only non-default cell
// attributes and sizes are stored.
type Document struct {
	Name             string            `json:"name"`
	Grids            []GridDTO         `json:"grids"`
	CurrentGridIndex int               `json:"currentGridIndex"`
	Aliases          map[string]string `json:"aliases,omitempty"`
	History          *HistoryDTO       `json:"history,omitempty"`
}

type HistoryDTO struct {
	Undo []TransactionDTO `json:"undo,omitempty"`
	Redo []TransactionDTO `json:"redo,omitempty"`
}

type TransactionDTO struct {
	Events []Event   `json:"events"`
	At     time.Time `json:"at"`
}

// GridDTO keys cells by local reference ("B3") and sizes by zero-based
// index.
type GridDTO struct {
	Name       string             `json:"name"`
	NbrOfRows  int                `json:"nbrOfRows"`
	NbrOfCols  int                `json:"nbrOfCols"`
	Cells      map[string]CellDTO `json:"cells,omitempty"`
	RowHeights map[string]float64 `json:"rowHeights,omitempty"`
	ColWidths  map[string]float64 `json:"colWidths,omitempty"`
}

type CellDTO struct {
	Input           string  `json:"input,omitempty"`
	CellType        string  `json:"cellType,omitempty"`
	NumberFormatter string  `json:"numberFormatter,omitempty"`
	DateFormatter   string  `json:"dateFormatter,omitempty"`
	FontSize        float64 `json:"fontSize,omitempty"`
	FontFamily      string  `json:"fontFamily,omitempty"`
	Bold            bool    `json:"bold,omitempty"`
	Italic          bool    `json:"italic,omitempty"`
	TextDecoration  string  `json:"textDecoration,omitempty"`
	Justify         string  `json:"justify,omitempty"`
	Align           string  `json:"align,omitempty"`
	BackgroundColor string  `json:"backgroundColor,omitempty"`
	TextColor       string  `json:"textColor,omitempty"`
}

type attrValue struct {
	attr  Attr
	value any
}

// attrs lists every attribute of d, cell type first so input is classified
// against it.
func (d CellDTO) attrs() []attrValue {
	cellType := d.CellType
	if cellType == "" {
		cellType = CellTypeAuto.String()
	}
	return []attrValue{
		{AttrCellType, cellType},
		{AttrInput, d.Input},
		{AttrNumberFormatter, d.NumberFormatter},
		{AttrDateFormatter, d.DateFormatter},
		{AttrFontSize, d.FontSize},
		{AttrFontFamily, d.FontFamily},
		{AttrBold, d.Bold},
		{AttrItalic, d.Italic},
		{AttrTextDecoration, d.TextDecoration},
		{AttrJustify, d.Justify},
		{AttrAlign, d.Align},
		{AttrBackgroundColor, d.BackgroundColor},
		{AttrTextColor, d.TextColor},
	}
}

func cellToDTO(c *Cell) CellDTO {
	dto := CellDTO{
		Input:           c.input,
		NumberFormatter: c.numberFormatter,
		DateFormatter:   c.dateFormatter,
		FontSize:        c.style.FontSize,
		FontFamily:      c.style.FontFamily,
		Bold:            c.style.Bold,
		Italic:          c.style.Italic,
		TextDecoration:  c.style.TextDecoration,
		Justify:         c.style.Justify,
		Align:           c.style.Align,
		BackgroundColor: c.style.BackgroundColor,
		TextColor:       c.style.TextColor,
	}
	if c.cellType != CellTypeAuto {
		dto.CellType = c.cellType.String()
	}
	return dto
}

func gridToDTO(g *Grid) GridDTO {
	dto := GridDTO{
		Name:      g.name,
		NbrOfRows: g.Rows(),
		NbrOfCols: g.Cols(),
		Cells:     snapshotBand(g, g.Range()),
	}
	for i, h := range g.rowHeights {
		if h != g.defaultRowHeight {
			if dto.RowHeights == nil {
				dto.RowHeights = make(map[string]float64)
			}
			dto.RowHeights[strconv.Itoa(i)] = h
		}
	}
	for i, w := range g.colWidths {
		if w != g.defaultColWidth {
			if dto.ColWidths == nil {
				dto.ColWidths = make(map[string]float64)
			}
			dto.ColWidths[strconv.Itoa(i)] = w
		}
	}
	return dto
}

// gridFromDTO builds a detached grid. Nothing is recorded or computed until
// the grid is added to the project.
func (p *Project) gridFromDTO(dto GridDTO) (*Grid, error) {
	if err := validateGridName(dto.Name); err != nil {
		return nil, err
	}
	if dto.NbrOfRows < 1 || dto.NbrOfRows > ref.MaxRows || dto.NbrOfCols < 1 || dto.NbrOfCols > ref.MaxCols {
		return nil, fmt.Errorf("grid %s: invalid size %dx%d", dto.Name, dto.NbrOfRows, dto.NbrOfCols)
	}
	gc := p.cfg.Grid
	g := newGrid(dto.Name, dto.NbrOfRows, dto.NbrOfCols, gc.RowHeight, gc.ColWidth)
	if err := setSizes(g.rowHeights, dto.RowHeights); err != nil {
		return nil, fmt.Errorf("grid %s: row heights: %w", dto.Name, err)
	}
	if err := setSizes(g.colWidths, dto.ColWidths); err != nil {
		return nil, fmt.Errorf("grid %s: column widths: %w", dto.Name, err)
	}
	for key, cd := range dto.Cells {
		c, err := ref.ParseCell(key)
		if err != nil {
			return nil, fmt.Errorf("grid %s: %w", dto.Name, err)
		}
		cell := g.Cell(c.Row, c.Col)
		if cell == nil {
			return nil, fmt.Errorf("grid %s: cell %s is outside the grid", dto.Name, key)
		}
		if err := cell.load(cd); err != nil {
			return nil, fmt.Errorf("grid %s: cell %s: %w", dto.Name, key, err)
		}
	}
	return g, nil
}

func setSizes(sizes []float64, m map[string]float64) error {
	for key, v := range m {
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(sizes) {
			return fmt.Errorf("invalid index %q", key)
		}
		if v < 0 {
			return fmt.Errorf("negative size at %d", i)
		}
		sizes[i] = v
	}
	return nil
}

// load sets the attributes of a fresh cell directly.
func (c *Cell) load(d CellDTO) error {
	t, err := ParseCellType(d.CellType)
	if err != nil {
		return err
	}
	if d.FontSize < 0 {
		return fmt.Errorf("negative font size %v", d.FontSize)
	}
	c.input = d.Input
	c.cellType = t
	c.numberFormatter = d.NumberFormatter
	c.dateFormatter = d.DateFormatter
	c.style = Style{
		FontSize:        d.FontSize,
		FontFamily:      d.FontFamily,
		Bold:            d.Bold,
		Italic:          d.Italic,
		TextDecoration:  d.TextDecoration,
		Justify:         d.Justify,
		Align:           d.Align,
		BackgroundColor: d.BackgroundColor,
		TextColor:       d.TextColor,
	}
	c.classify()
	return nil
}

// Document snapshots the project, including its undo and redo stacks.
func (p *Project) Document() Document {
	doc := Document{
		Name:             p.name,
		CurrentGridIndex: p.current,
		Aliases:          p.Aliases(),
	}
	if len(doc.Aliases) == 0 {
		doc.Aliases = nil
	}
	for _, g := range p.grids.order {
		doc.Grids = append(doc.Grids, gridToDTO(g))
	}
	undo, redo := p.log.Stacks()
	if len(undo)+len(redo) > 0 {
		doc.History = &HistoryDTO{Undo: toTransactionDTOs(undo), Redo: toTransactionDTOs(redo)}
	}
	return doc
}

func toTransactionDTOs(txs []history.Transaction[Event]) []TransactionDTO {
	out := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		out[i] = TransactionDTO{Events: tx.Events, At: tx.At}
	}
	return out
}

func fromTransactionDTOs(txs []TransactionDTO) []history.Transaction[Event] {
	out := make([]history.Transaction[Event], len(txs))
	for i, tx := range txs {
		out[i] = history.Transaction[Event]{Events: tx.Events, At: tx.At}
	}
	return out
}

// FromDocument rebuilds a project from a document and computes every cell.
func FromDocument(doc Document, opts ...Option) (*Project, error) {
	p := newProject(opts...)
	if doc.Name != "" {
		p.name = doc.Name
	}
	if len(doc.Grids) == 0 {
		return nil, appErrorf(InvalidArgument, nil, "document %q has no grids", doc.Name)
	}
	p.loading = true
	defer func() { p.loading = false }()
	for _, gd := range doc.Grids {
		if _, exists := p.grids.get(gd.Name); exists {
			return nil, appErrorf(InvalidArgument, nil, "duplicate grid %q", gd.Name)
		}
		g, err := p.gridFromDTO(gd)
		if err != nil {
			return nil, appErrorf(InvalidArgument, err, "cannot load document")
		}
		p.addGrid(g, len(p.grids.order))
	}
	if doc.CurrentGridIndex < 0 || doc.CurrentGridIndex >= len(p.grids.order) {
		return nil, appErrorf(OutOfRange, nil, "current grid index %d is out of range", doc.CurrentGridIndex)
	}
	p.current = doc.CurrentGridIndex
	for name, target := range doc.Aliases {
		if err := validateAliasName(name); err != nil {
			return nil, appErrorf(InvalidArgument, err, "cannot load document")
		}
		if err := p.setAliasText(name, target); err != nil {
			return nil, appErrorf(InvalidArgument, err, "cannot load alias %s", name)
		}
	}
	if doc.History != nil {
		p.log.Restore(fromTransactionDTOs(doc.History.Undo), fromTransactionDTOs(doc.History.Redo))
	}
	p.settle()
	return p, nil
}
