package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTable_PadsShortRows(t *testing.T) {
	tbl, err := NewTable([]string{"a", "b", "c"}, [][]string{
		{"1", "2", "3"},
		{"4"},
	})
	require.NoError(t, err)

	cell, ok := tbl.Cell(1, "c")
	require.True(t, ok)
	assert.Equal(t, "", cell)
}

func TestNewTable_RejectsBadHeaders(t *testing.T) {
	_, err := NewTable([]string{"a", ""}, nil)
	assert.Error(t, err)

	_, err = NewTable([]string{"a", "a"}, nil)
	assert.Error(t, err)

	_, err = NewTable([]string{"a"}, [][]string{{"1", "2"}})
	assert.Error(t, err)
}

func TestTable_ColumnLookup(t *testing.T) {
	tbl, err := NewTable([]string{"Q_NPS", "Q_REGION"}, [][]string{
		{" 9 ", "North"},
		{"6", " South"},
	})
	require.NoError(t, err)

	assert.True(t, tbl.HasColumn("Q_REGION"))
	assert.False(t, tbl.HasColumn("Q_MISSING"))

	col, ok := tbl.Column("Q_NPS")
	require.True(t, ok)
	assert.Equal(t, []string{"9", "6"}, col)

	_, ok = tbl.Column("Q_MISSING")
	assert.False(t, ok)

	cell, ok := tbl.Cell(1, "Q_REGION")
	require.True(t, ok)
	assert.Equal(t, "South", cell)
}

func TestSplitMulti(t *testing.T) {
	assert.Empty(t, SplitMulti(""))
	assert.Empty(t, SplitMulti("  "))
	assert.Equal(t, []string{"a"}, SplitMulti("a"))
	assert.Equal(t, []string{"a", "b", "c"}, SplitMulti("a| b |c"))
	assert.Equal(t, []string{"a", "b"}, SplitMulti("a||b|"))
}
