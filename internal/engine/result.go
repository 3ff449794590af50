package engine

import (
	"strings"
)

// ResultTable is the row-oriented outcome of one executed cut.
type ResultTable struct {
	CutID   string
	BaseN   int
	Columns []string
	Rows    [][]string
}

// Empty reports whether the table carries no data rows.
func (rt *ResultTable) Empty() bool { return len(rt.Rows) == 0 }

// Preview renders up to maxRows rows as aligned plain text for display.
func (rt *ResultTable) Preview(maxRows int) string {
	if rt.Empty() {
		return ""
	}
	rows := rt.Rows
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}

	widths := make([]int, len(rt.Columns))
	for i, c := range rt.Columns {
		widths[i] = len(c)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(cell)
			if i < len(cells)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-len(cell)))
			}
		}
		b.WriteByte('\n')
	}

	writeRow(rt.Columns)
	for _, row := range rows {
		writeRow(row)
	}
	return strings.TrimRight(b.String(), "\n")
}
