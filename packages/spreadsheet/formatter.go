package spreadsheet

import (
	"strings"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

// formatterKey is a formatter program normalized for deduplication: two
// programs differing only in surrounding space or a leading '=' share one
// entry.
type formatterKey string

func normalizeFormatter(program string) formatterKey {
	program = strings.TrimSpace(program)
	program = strings.TrimPrefix(program, "=")
	return formatterKey(strings.TrimSpace(program))
}

// formatterTable interns formatter programs. Each distinct program is
// evaluated once to a function value and shared by every cell using it; an
// entry is dropped when its last cell lets go.
type formatterTable struct {
	index     map[formatterKey]uint32      // normalized program -> formatter ID
	values    map[uint32]formula.Primitive // formatter ID -> evaluated program
	keys      map[uint32]formatterKey
	refCounts map[uint32]int
	atCell    map[CellAddress]uint32 // cell -> formatter ID (reverse index)

	nextID uint32
}

func newFormatterTable() *formatterTable {
	ft := &formatterTable{}
	ft.clear()
	return ft
}

// intern returns the evaluated formatter for program and tracks that cell
// uses it. eval runs only for programs not seen before.
func (ft *formatterTable) intern(cell CellAddress, program string, eval func(string) formula.Primitive) formula.Primitive {
	key := normalizeFormatter(program)
	id, exists := ft.index[key]
	if !exists {
		id = ft.nextID
		ft.nextID++
		ft.index[key] = id
		ft.keys[id] = key
		ft.values[id] = eval(string(key))
	}
	if prev, ok := ft.atCell[cell]; ok {
		if prev == id {
			return ft.values[id]
		}
		ft.release(cell)
	}
	ft.atCell[cell] = id
	ft.refCounts[id]++
	return ft.values[id]
}

// release stops tracking cell and drops its formatter if nothing else uses
// it. It reports whether an entry was dropped.
func (ft *formatterTable) release(cell CellAddress) bool {
	id, ok := ft.atCell[cell]
	if !ok {
		return false
	}
	delete(ft.atCell, cell)
	ft.refCounts[id]--
	if ft.refCounts[id] > 0 {
		return false
	}
	delete(ft.index, ft.keys[id])
	delete(ft.keys, id)
	delete(ft.values, id)
	delete(ft.refCounts, id)
	return true
}

// count returns the number of distinct programs held.
func (ft *formatterTable) count() int {
	return len(ft.index)
}

func (ft *formatterTable) clear() {
	ft.index = make(map[formatterKey]uint32)
	ft.values = make(map[uint32]formula.Primitive)
	ft.keys = make(map[uint32]formatterKey)
	ft.refCounts = make(map[uint32]int)
	ft.atCell = make(map[CellAddress]uint32)
	ft.nextID = 1
}

// format renders v through the formatter program of the cell at addr. A
// program that does not evaluate to a function yields its error marker.
func (p *Project) format(addr CellAddress, program string, v formula.Primitive) string {
	fn := p.formatters.intern(addr, program, func(src string) formula.Primitive {
		out, err := p.interp.Run(src, nil)
		if err != nil {
			return formula.NewError(formula.ErrorCodeOther, err.Error())
		}
		return out
	})
	if e, ok := fn.(*formula.Error); ok {
		return e.Marker()
	}
	return formula.ToString(p.interp.Apply(fn, []formula.Primitive{v}, nil))
}
