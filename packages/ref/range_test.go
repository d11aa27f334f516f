package ref

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) Reference {
	t.Helper()
	r, err := Parse(s)
	require.NoError(t, err)
	return r
}

func TestClamp(t *testing.T) {
	bound := NewRange(Cell{}, Cell{Row: 9, Col: 9})
	tests := []struct{ in, want string }{
		{"Z100", "J10"},
		{"B2", "B2"},
		{"A5:Z20", "A5:J10"},
		{"B:C", "B:C"},
		{"A:A", "A:A"},
		{"B2:D", "B2:D10"},
	}
	for _, tt := range tests {
		got := mustParse(t, tt.in).Clamp(bound)
		assert.Equal(t, tt.want, got.String(), tt.in)
		assert.True(t, Equal(got, got.Clamp(bound)), "clamp is idempotent for %s", tt.in)
	}
}

func TestMove(t *testing.T) {
	tests := []struct {
		in         string
		dRow, dCol int
		toGrid     string
		want       string
	}{
		{"A1", 1, 1, "", "B2"},
		{"C3", 11, 11, "", "N14"},
		{"$A1", 1, 1, "", "$A2"},
		{"$A$1", 5, 5, "", "$A$1"},
		{"A1:B2", 2, 0, "", "A3:B4"},
		{"B2:D", 1, 1, "", "C3:E"},
		{"A:B", 3, 1, "", "B:C"},
		{"2:3", 1, 4, "", "3:4"},
		{"A1", 0, 0, "Other", "Other!A1"},
	}
	for _, tt := range tests {
		got, err := mustParse(t, tt.in).Move(tt.dRow, tt.dCol, tt.toGrid)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.String(), tt.in)
	}
}

func TestMoveOutOfRange(t *testing.T) {
	for _, s := range []string{"A1", "A1:B2", "A", "1"} {
		_, err := mustParse(t, s).Move(-1, -1, "")
		assert.ErrorIs(t, err, ErrOutOfRange, s)
	}
	_, err := mustParse(t, "XFD1").Move(0, 1, "")
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestRangeGeometry(t *testing.T) {
	a, err := ParseRange("B2:D4")
	require.NoError(t, err)
	b, err := ParseRange("D4:F6")
	require.NoError(t, err)
	c, err := ParseRange("E1:E2")
	require.NoError(t, err)

	assert.True(t, a.Intersects(b))
	assert.False(t, a.Intersects(c))
	assert.True(t, a.Contains(Cell{Row: 2, Col: 2}))
	assert.False(t, a.Contains(Cell{Row: 0, Col: 0}))
	assert.True(t, a.ContainsRange(NewRange(Cell{Row: 1, Col: 1}, Cell{Row: 2, Col: 2})))
	assert.Equal(t, 3, a.Rows())
	assert.Equal(t, 3, a.Cols())

	var seen []string
	for cell := range a.Cells() {
		seen = append(seen, cell.String())
	}
	assert.Equal(t, []string{"B2", "C2", "D2", "B3", "C3", "D3", "B4", "C4", "D4"}, seen)
}

func TestBoundsOfBands(t *testing.T) {
	rows := mustParse(t, "2:3").Bounds()
	assert.Equal(t, 1, rows.Start.Row)
	assert.Equal(t, MaxCols-1, rows.End.Col)
	assert.Equal(t, "2:3", rows.String())

	cols := mustParse(t, "Data!B").Bounds()
	assert.Equal(t, "Data", cols.Grid)
	assert.Equal(t, MaxRows-1, cols.End.Row)
}
