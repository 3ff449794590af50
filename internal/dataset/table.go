// Package dataset loads the survey question catalog, the response table,
// and the optional scope text, and provides the row-oriented Table the
// engine evaluates against.
package dataset

import (
	"fmt"
	"strconv"
	"strings"
)

// MultiValueDelimiter separates the answer codes a multi-choice cell holds.
const MultiValueDelimiter = "|"

// Table is a row-oriented response table. Column headers are question ids.
type Table struct {
	headers []string
	index   map[string]int
	rows    [][]string
}

// NewTable builds a table from a header row and data rows. Rows shorter
// than the header are padded with empty cells; longer rows are an error.
func NewTable(headers []string, rows [][]string) (*Table, error) {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			return nil, fmt.Errorf("column %d has an empty header", i)
		}
		if _, dup := index[h]; dup {
			return nil, fmt.Errorf("duplicate column header %q", h)
		}
		headers[i] = h
		index[h] = i
	}
	for n, row := range rows {
		if len(row) > len(headers) {
			return nil, fmt.Errorf("row %d has %d cells, header has %d", n+1, len(row), len(headers))
		}
		for len(row) < len(headers) {
			row = append(row, "")
		}
		rows[n] = row
	}
	return &Table{headers: headers, index: index, rows: rows}, nil
}

// Headers returns the column names in file order.
func (t *Table) Headers() []string { return t.headers }

// NumRows returns the number of data rows.
func (t *Table) NumRows() int { return len(t.rows) }

// HasColumn reports whether a column named id exists.
func (t *Table) HasColumn(id string) bool {
	_, ok := t.index[id]
	return ok
}

// Cell returns the trimmed cell at (row, column id). The second return is
// false when the column does not exist.
func (t *Table) Cell(row int, col string) (string, bool) {
	i, ok := t.index[col]
	if !ok {
		return "", false
	}
	return strings.TrimSpace(t.rows[row][i]), true
}

// Column returns all values of one column in row order.
func (t *Table) Column(col string) ([]string, bool) {
	i, ok := t.index[col]
	if !ok {
		return nil, false
	}
	out := make([]string, len(t.rows))
	for r, row := range t.rows {
		out[r] = strings.TrimSpace(row[i])
	}
	return out, true
}

// SplitMulti splits a multi-choice cell into its answer codes. Empty cells
// yield an empty set.
func SplitMulti(cell string) []string {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	parts := strings.Split(cell, MultiValueDelimiter)
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseNumeric parses a cell as a float. Blank cells report ok=false and
// are treated as missing, not as zero.
func ParseNumeric(cell string) (float64, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
