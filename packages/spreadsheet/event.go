package spreadsheet

import (
	"fmt"

	"github.com/vogtb/go-spreadsheet/packages/ref"
)

type EventType string

const (
	EventAttribute    EventType = "attribute"
	EventRowResized   EventType = "rowResized"
	EventColResized   EventType = "colResized"
	EventRowsRemoved  EventType = "rowsRemoved"
	EventColsRemoved  EventType = "colsRemoved"
	EventRowsInserted EventType = "rowsInserted"
	EventColsInserted EventType = "colsInserted"
	EventGridRenamed  EventType = "gridRenamed"
	EventGridAdded    EventType = "gridAdded"
	EventGridRemoved  EventType = "gridRemoved"
	EventAliasChanged EventType = "aliasChanged"
)

// Event describes one mutation with enough information to invert it.
// Which fields are set depends on Type:
//
//	attribute           Grid, Row, Col, Attr, Old, New
//	rowResized          Grid, Row, Old, New
//	colResized          Grid, Col, Old, New
//	rowsRemoved         Grid, Index, Count, Sizes, Cells
//	colsRemoved         Grid, Index, Count, Sizes, Cells
//	rowsInserted        Grid, Index, Count, Sizes
//	colsInserted        Grid, Index, Count, Sizes
//	gridRenamed         Old, New
//	gridAdded           Index, Snapshot
//	gridRemoved         Index, Snapshot, Current
//	aliasChanged        Name, Old, New ("" when absent)
type Event struct {
	Type     EventType          `json:"type"`
	Grid     string             `json:"grid,omitempty"`
	Row      int                `json:"row,omitempty"`
	Col      int                `json:"col,omitempty"`
	Attr     Attr               `json:"attr,omitempty"`
	Name     string             `json:"name,omitempty"`
	Old      any                `json:"old,omitempty"`
	New      any                `json:"new,omitempty"`
	Index    int                `json:"index,omitempty"`
	Count    int                `json:"count,omitempty"`
	Sizes    []float64          `json:"sizes,omitempty"`
	Cells    map[string]CellDTO `json:"cells,omitempty"`
	Snapshot *GridDTO           `json:"snapshot,omitempty"`
	Current  int                `json:"current,omitempty"`
}

// record logs an event and notifies subscribers. Replayed events are
// neither logged nor published.
func (p *Project) record(e Event) {
	if p.log.Replaying() || p.loading {
		return
	}
	p.log.Record(e)
	for _, id := range p.listenerOrder {
		p.listeners[id](e)
	}
}

// Subscribe registers fn for every recorded event. The returned function
// removes the subscription.
func (p *Project) Subscribe(fn func(Event)) func() {
	id := p.nextListener
	p.nextListener++
	p.listeners[id] = fn
	p.listenerOrder = append(p.listenerOrder, id)
	return func() {
		delete(p.listeners, id)
		for i, v := range p.listenerOrder {
			if v == id {
				p.listenerOrder = append(p.listenerOrder[:i], p.listenerOrder[i+1:]...)
				break
			}
		}
	}
}

// redoEvent re-applies e literally. Transformations are not re-run: the
// rewrites they caused are events of their own.
func (p *Project) redoEvent(e Event) error {
	switch e.Type {
	case EventAttribute:
		return p.replayAttr(e, e.New)
	case EventRowResized, EventColResized:
		return p.replaySize(e, e.New)
	case EventRowsRemoved:
		return p.replayDelete(e, true)
	case EventColsRemoved:
		return p.replayDelete(e, false)
	case EventRowsInserted:
		return p.replayInsert(e, true, false)
	case EventColsInserted:
		return p.replayInsert(e, false, false)
	case EventGridRenamed:
		return p.replayRename(e.Old, e.New)
	case EventGridAdded:
		return p.replayAddGrid(e)
	case EventGridRemoved:
		return p.replayRemoveGrid(e)
	case EventAliasChanged:
		return p.setAliasText(e.Name, asString(e.New))
	}
	return fmt.Errorf("unknown event type %q", e.Type)
}

// undoEvent applies the inverse of e.
func (p *Project) undoEvent(e Event) error {
	switch e.Type {
	case EventAttribute:
		return p.replayAttr(e, e.Old)
	case EventRowResized, EventColResized:
		return p.replaySize(e, e.Old)
	case EventRowsRemoved:
		return p.replayInsert(e, true, true)
	case EventColsRemoved:
		return p.replayInsert(e, false, true)
	case EventRowsInserted:
		return p.replayDelete(e, true)
	case EventColsInserted:
		return p.replayDelete(e, false)
	case EventGridRenamed:
		return p.replayRename(e.New, e.Old)
	case EventGridAdded:
		return p.replayRemoveGrid(e)
	case EventGridRemoved:
		return p.replayAddGrid(e)
	case EventAliasChanged:
		return p.setAliasText(e.Name, asString(e.Old))
	}
	return fmt.Errorf("unknown event type %q", e.Type)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func (p *Project) replayGrid(name string) (*Grid, error) {
	g, ok := p.grids.get(name)
	if !ok {
		return nil, fmt.Errorf("grid %q does not exist", name)
	}
	return g, nil
}

func (p *Project) replayAttr(e Event, value any) error {
	g, err := p.replayGrid(e.Grid)
	if err != nil {
		return err
	}
	if !g.inBounds(e.Row, e.Col) {
		return fmt.Errorf("cell %s is outside grid %s", ref.NewCell(g.name, e.Row, e.Col), g.name)
	}
	v, err := coerceAttr(e.Attr, value)
	if err != nil {
		return err
	}
	p.setAttr(g, e.Row, e.Col, e.Attr, v)
	return nil
}

func (p *Project) replaySize(e Event, value any) error {
	g, err := p.replayGrid(e.Grid)
	if err != nil {
		return err
	}
	size, ok := toFloat(value)
	if !ok {
		return fmt.Errorf("invalid size %v", value)
	}
	if e.Type == EventRowResized {
		return p.setRowHeight(g, e.Row, size)
	}
	return p.setColWidth(g, e.Col, size)
}

func (p *Project) replayDelete(e Event, rows bool) error {
	g, err := p.replayGrid(e.Grid)
	if err != nil {
		return err
	}
	if rows {
		p.deleteRows(g, e.Index, e.Count)
	} else {
		p.deleteCols(g, e.Index, e.Count)
	}
	return nil
}

// replayInsert inserts a band; restore puts back the snapshot of a removal.
func (p *Project) replayInsert(e Event, rows, restore bool) error {
	g, err := p.replayGrid(e.Grid)
	if err != nil {
		return err
	}
	if rows {
		p.insertRows(g, e.Index, e.Count, e.Sizes)
	} else {
		p.insertCols(g, e.Index, e.Count, e.Sizes)
	}
	if restore {
		return p.restoreCells(g, e.Cells)
	}
	return nil
}

func (p *Project) replayRename(from, to any) error {
	oldName, newName := asString(from), asString(to)
	if _, err := p.replayGrid(oldName); err != nil {
		return err
	}
	p.renameGrid(oldName, newName)
	return nil
}

func (p *Project) replayAddGrid(e Event) error {
	if e.Snapshot == nil {
		return fmt.Errorf("%s event without snapshot", e.Type)
	}
	g, err := p.gridFromDTO(*e.Snapshot)
	if err != nil {
		return err
	}
	p.addGrid(g, e.Index)
	if e.Type == EventGridRemoved {
		p.current = min(max(e.Current, 0), len(p.grids.order)-1)
	}
	return nil
}

func (p *Project) replayRemoveGrid(e Event) error {
	if e.Snapshot == nil {
		return fmt.Errorf("%s event without snapshot", e.Type)
	}
	if _, err := p.replayGrid(e.Snapshot.Name); err != nil {
		return err
	}
	p.removeGrid(e.Snapshot.Name)
	return nil
}
