package ref

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteRows(t *testing.T) {
	tests := []struct {
		in        string
		at, count int
		want      string
		deleted   bool
	}{
		{"B1:B2", 0, 1, "B1:B1", false},
		{"B1", 0, 1, "", true},
		{"B3", 0, 1, "B2", false},
		{"B2", 5, 1, "B2", false},
		{"B5:B10", 6, 2, "B5:B8", false},
		{"B5:B10", 8, 5, "B5:B8", false},
		{"B5:B10", 2, 4, "B3:B6", false},
		{"B5:B10", 4, 6, "", true},
		{"A:A", 0, 3, "A:A", false},
		{"2:4", 1, 3, "", true},
		{"2:6", 1, 3, "2:3", false},
		{"B2:D", 0, 1, "B1:D", false},
		{"$B$3", 0, 1, "$B$2", false},
	}
	for _, tt := range tests {
		got, deleted := DeleteRows(mustParse(t, tt.in), tt.at, tt.count)
		require.Equal(t, tt.deleted, deleted, tt.in)
		if !deleted {
			assert.Equal(t, tt.want, got.String(), tt.in)
		}
	}
}

func TestDeleteCols(t *testing.T) {
	got, deleted := DeleteCols(mustParse(t, "A1:D1"), 1, 2)
	require.False(t, deleted)
	assert.Equal(t, "A1:B1", got.String())

	_, deleted = DeleteCols(mustParse(t, "C:C"), 2, 1)
	assert.True(t, deleted)

	got, deleted = DeleteCols(mustParse(t, "3:3"), 0, 5)
	require.False(t, deleted)
	assert.Equal(t, "3:3", got.String())
}

func TestInsert(t *testing.T) {
	got, err := InsertRows(mustParse(t, "B2"), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "B4", got.String())

	got, err = InsertRows(mustParse(t, "B2"), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, "B2", got.String())

	got, err = InsertRows(mustParse(t, "A1:A3"), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "A1:A4", got.String())

	got, err = InsertCols(mustParse(t, "Sheet1!B:C"), 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "Sheet1!C:D", got.String())

	got, err = InsertRows(mustParse(t, "B2:D"), 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "B3:D", got.String())

	_, err = InsertRows(mustParse(t, "A1048576"), 0, 1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestInsertThenDeleteRestores(t *testing.T) {
	for _, s := range []string{"A1", "B2:C9", "$C$3", "A:C", "4:7", "B2:D", "5:B2"} {
		for _, at := range []int{0, 1, 3, 8} {
			ins, err := InsertRows(mustParse(t, s), at, 2)
			require.NoError(t, err)
			back, deleted := DeleteRows(ins, at, 2)
			require.False(t, deleted)
			assert.Equal(t, mustParse(t, s).String(), back.String(), "%s at %d", s, at)

			ins, err = InsertCols(mustParse(t, s), at, 3)
			require.NoError(t, err)
			back, deleted = DeleteCols(ins, at, 3)
			require.False(t, deleted)
			assert.Equal(t, mustParse(t, s).String(), back.String(), "%s at %d", s, at)
		}
	}
}
