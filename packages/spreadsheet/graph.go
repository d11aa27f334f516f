package spreadsheet

import (
	"github.com/google/uuid"
)

// RangeAddress is a rectangle on one grid, already clamped to the grid.
type RangeAddress struct {
	Grid     uuid.UUID
	StartRow int
	StartCol int
	EndRow   int
	EndCol   int
}

func (r RangeAddress) contains(addr CellAddress) bool {
	return addr.Grid == r.Grid &&
		addr.Row >= r.StartRow && addr.Row <= r.EndRow &&
		addr.Col >= r.StartCol && addr.Col <= r.EndCol
}

// dependencyNode is a cell taking part in at least one dependency.
type dependencyNode struct {
	cellPrecedents  map[CellAddress]struct{} // cells this cell read
	cellDependents  map[CellAddress]struct{} // cells that read this cell
	rangePrecedents map[RangeAddress]struct{}
	aliasPrecedents map[string]struct{}
	gridPrecedents  map[string]struct{} // grid names that were missing when read
}

// dependencyGraph tracks which cells read which, as observed during
// evaluation, plus the dirty and volatile sets driving recomputation.
type dependencyGraph struct {
	nodes          map[CellAddress]*dependencyNode
	rangeObservers map[RangeAddress]map[CellAddress]struct{} // range -> cells that read it
	aliasObservers map[string]map[CellAddress]struct{}       // alias name -> cells that used it
	gridObservers  map[string]map[CellAddress]struct{}       // missing grid name -> cells
	dirtySet       map[CellAddress]struct{}
	volatileCells  map[CellAddress]struct{}

	closures map[CellAddress]map[CellAddress]struct{} // cached transitive precedents
}

func newDependencyGraph() *dependencyGraph {
	dg := &dependencyGraph{}
	dg.clear()
	return dg
}

func (dg *dependencyGraph) node(addr CellAddress) *dependencyNode {
	if n, ok := dg.nodes[addr]; ok {
		return n
	}
	n := &dependencyNode{
		cellPrecedents:  make(map[CellAddress]struct{}),
		cellDependents:  make(map[CellAddress]struct{}),
		rangePrecedents: make(map[RangeAddress]struct{}),
		aliasPrecedents: make(map[string]struct{}),
		gridPrecedents:  make(map[string]struct{}),
	}
	dg.nodes[addr] = n
	return n
}

// cleanupNodeIfEmpty removes a node once it has no edges left.
func (dg *dependencyGraph) cleanupNodeIfEmpty(addr CellAddress) {
	n, ok := dg.nodes[addr]
	if !ok {
		return
	}
	if len(n.cellPrecedents) > 0 || len(n.cellDependents) > 0 || len(n.rangePrecedents) > 0 ||
		len(n.aliasPrecedents) > 0 || len(n.gridPrecedents) > 0 {
		return
	}
	delete(dg.nodes, addr)
}

func addObserver[K comparable](m map[K]map[CellAddress]struct{}, key K, addr CellAddress) {
	observers, ok := m[key]
	if !ok {
		observers = make(map[CellAddress]struct{})
		m[key] = observers
	}
	observers[addr] = struct{}{}
}

func removeObserver[K comparable](m map[K]map[CellAddress]struct{}, key K, addr CellAddress) {
	if observers, ok := m[key]; ok {
		delete(observers, addr)
		if len(observers) == 0 {
			delete(m, key)
		}
	}
}

// addCellDependency records that from read to.
func (dg *dependencyGraph) addCellDependency(from, to CellAddress) {
	dg.node(from).cellPrecedents[to] = struct{}{}
	dg.node(to).cellDependents[from] = struct{}{}
	dg.closures = nil
}

func (dg *dependencyGraph) addRangeDependency(from CellAddress, r RangeAddress) {
	dg.node(from).rangePrecedents[r] = struct{}{}
	addObserver(dg.rangeObservers, r, from)
	dg.closures = nil
}

func (dg *dependencyGraph) addAliasDependency(from CellAddress, name string) {
	dg.node(from).aliasPrecedents[name] = struct{}{}
	addObserver(dg.aliasObservers, name, from)
}

func (dg *dependencyGraph) addGridDependency(from CellAddress, gridName string) {
	dg.node(from).gridPrecedents[gridName] = struct{}{}
	addObserver(dg.gridObservers, gridName, from)
}

// clearDependencies drops every precedent edge of addr before it is
// re-evaluated. Dependents are kept: other cells still read addr.
func (dg *dependencyGraph) clearDependencies(addr CellAddress) {
	n, ok := dg.nodes[addr]
	if !ok {
		return
	}
	for p := range n.cellPrecedents {
		if pn, ok := dg.nodes[p]; ok {
			delete(pn.cellDependents, addr)
			dg.cleanupNodeIfEmpty(p)
		}
	}
	for r := range n.rangePrecedents {
		removeObserver(dg.rangeObservers, r, addr)
	}
	for name := range n.aliasPrecedents {
		removeObserver(dg.aliasObservers, name, addr)
	}
	for name := range n.gridPrecedents {
		removeObserver(dg.gridObservers, name, addr)
	}
	clear(n.cellPrecedents)
	clear(n.rangePrecedents)
	clear(n.aliasPrecedents)
	clear(n.gridPrecedents)
	delete(dg.volatileCells, addr)
	dg.cleanupNodeIfEmpty(addr)
	dg.closures = nil
}

// markDirty marks addr and everything that transitively reads it.
func (dg *dependencyGraph) markDirty(addr CellAddress) {
	dg.dirtySet[addr] = struct{}{}
	for _, dep := range dg.allDependents(addr) {
		dg.dirtySet[dep] = struct{}{}
	}
}

func (dg *dependencyGraph) markAliasDirty(name string) {
	for addr := range dg.aliasObservers[name] {
		dg.markDirty(addr)
	}
}

func (dg *dependencyGraph) markGridDirty(gridName string) {
	for addr := range dg.gridObservers[gridName] {
		dg.markDirty(addr)
	}
}

func (dg *dependencyGraph) isDirty(addr CellAddress) bool {
	_, ok := dg.dirtySet[addr]
	return ok
}

func (dg *dependencyGraph) clean(addr CellAddress) {
	delete(dg.dirtySet, addr)
}

// allDependents walks direct readers and range observers breadth-first.
func (dg *dependencyGraph) allDependents(addr CellAddress) []CellAddress {
	visited := map[CellAddress]struct{}{addr: {}}
	var result []CellAddress
	queue := []CellAddress{addr}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		visit := func(dep CellAddress) {
			if _, seen := visited[dep]; seen {
				return
			}
			visited[dep] = struct{}{}
			result = append(result, dep)
			queue = append(queue, dep)
		}
		if n, ok := dg.nodes[cur]; ok {
			for dep := range n.cellDependents {
				visit(dep)
			}
		}
		for r, observers := range dg.rangeObservers {
			if r.contains(cur) {
				for dep := range observers {
					visit(dep)
				}
			}
		}
	}
	return result
}

// precedents returns the transitive closure of cells addr reads, cached
// until the next edge change.
func (dg *dependencyGraph) precedents(addr CellAddress) map[CellAddress]struct{} {
	if dg.closures == nil {
		dg.closures = make(map[CellAddress]map[CellAddress]struct{})
	}
	if c, ok := dg.closures[addr]; ok {
		return c
	}
	out := make(map[CellAddress]struct{})
	stack := []CellAddress{addr}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, ok := dg.nodes[cur]
		if !ok {
			continue
		}
		push := func(p CellAddress) {
			if _, seen := out[p]; !seen {
				out[p] = struct{}{}
				stack = append(stack, p)
			}
		}
		for p := range n.cellPrecedents {
			push(p)
		}
		for r := range n.rangePrecedents {
			for row := r.StartRow; row <= r.EndRow; row++ {
				for col := r.StartCol; col <= r.EndCol; col++ {
					push(CellAddress{Grid: r.Grid, Row: row, Col: col})
				}
			}
		}
	}
	dg.closures[addr] = out
	return out
}

func (dg *dependencyGraph) markVolatile(addr CellAddress) {
	dg.volatileCells[addr] = struct{}{}
}

// markAllVolatileDirty re-dirties cells calling NOW, TODAY or RAND.
func (dg *dependencyGraph) markAllVolatileDirty() {
	for addr := range dg.volatileCells {
		dg.markDirty(addr)
	}
}

// clear drops all edges. The dirty set survives so pending work is kept.
func (dg *dependencyGraph) clear() {
	dg.nodes = make(map[CellAddress]*dependencyNode)
	dg.rangeObservers = make(map[RangeAddress]map[CellAddress]struct{})
	dg.aliasObservers = make(map[string]map[CellAddress]struct{})
	dg.gridObservers = make(map[string]map[CellAddress]struct{})
	dg.volatileCells = make(map[CellAddress]struct{})
	if dg.dirtySet == nil {
		dg.dirtySet = make(map[CellAddress]struct{})
	}
	dg.closures = nil
}
