package ref

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func cellAt(t *testing.T, s string) Cell {
	t.Helper()
	c, err := ParseCell(s)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestStepping(t *testing.T) {
	bound := NewRange(Cell{}, Cell{Row: 2, Col: 2}) // A1:C3
	tests := []struct {
		name string
		got  Cell
		want string
	}{
		{"right", cellAt(t, "A1").Right(bound, false), "B1"},
		{"right edge", cellAt(t, "C1").Right(bound, false), "C1"},
		{"right wrap", cellAt(t, "C1").Right(bound, true), "A2"},
		{"right wrap corner", cellAt(t, "C3").Right(bound, true), "A1"},
		{"left wrap", cellAt(t, "A2").Left(bound, true), "C1"},
		{"left wrap corner", cellAt(t, "A1").Left(bound, true), "C3"},
		{"down wrap", cellAt(t, "A3").Down(bound, true), "B1"},
		{"down wrap corner", cellAt(t, "C3").Down(bound, true), "A1"},
		{"up wrap", cellAt(t, "B1").Up(bound, true), "A3"},
		{"up wrap corner", cellAt(t, "A1").Up(bound, true), "C3"},
		{"up edge", cellAt(t, "B1").Up(bound, false), "B1"},
		{"top", cellAt(t, "B3").Top(bound), "B1"},
		{"bottom", cellAt(t, "B1").Bottom(bound), "B3"},
		{"leftmost", cellAt(t, "C2").Leftmost(bound), "A2"},
		{"rightmost", cellAt(t, "A2").Rightmost(bound), "C2"},
		{"outside start is clamped", cellAt(t, "Z9").Left(bound, false), "B3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got.String())
		})
	}
}

func TestPageJumps(t *testing.T) {
	bound := NewRange(Cell{}, Cell{Row: 19, Col: 0}) // A1:A20
	filled := map[int]bool{0: true, 1: true, 2: true, 6: true, 7: true}
	isEmpty := func(c Cell) bool { return !filled[c.Row] }

	assert.Equal(t, "A3", cellAt(t, "A1").PageDown(bound, 0, isEmpty).String(), "stops at end of run")
	assert.Equal(t, "A7", cellAt(t, "A3").PageDown(bound, 0, isEmpty).String(), "crosses the gap")
	assert.Equal(t, "A20", cellAt(t, "A8").PageDown(bound, 0, isEmpty).String(), "runs to the edge")
	assert.Equal(t, "A5", cellAt(t, "A3").PageDown(bound, 2, isEmpty).String(), "page limit")
	assert.Equal(t, "A8", cellAt(t, "A20").PageUp(bound, 0, isEmpty).String())
	assert.Equal(t, "A3", cellAt(t, "A7").PageUp(bound, 0, isEmpty).String())
	assert.Equal(t, "A1", cellAt(t, "A2").PageUp(bound, 0, isEmpty).String())
}

func TestPageSideways(t *testing.T) {
	bound := NewRange(Cell{}, Cell{Row: 0, Col: 9}) // A1:J1
	isEmpty := func(c Cell) bool { return c.Col != 4 }
	assert.Equal(t, "E1", cellAt(t, "A1").PageRight(bound, 0, isEmpty).String())
	assert.Equal(t, "J1", cellAt(t, "E1").PageRight(bound, 0, isEmpty).String())
	assert.Equal(t, "E1", cellAt(t, "J1").PageLeft(bound, 0, isEmpty).String())
}
