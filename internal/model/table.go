package model

import (
	"strconv"
	"strings"
	"time"
)

// CellKind discriminates the cell payload.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
	CellDate
)

// Cell is a single table value. Source extracts arrive mostly as text; dates
// and numbers are typed when a reader or a transform can prove the type.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
	Date   time.Time
}

// EmptyCell returns the zero value cell.
func EmptyCell() Cell {
	return Cell{Kind: CellEmpty}
}

// TextCell creates a text cell. Blank text collapses to an empty cell.
func TextCell(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return EmptyCell()
	}
	return Cell{Kind: CellText, Text: s}
}

// NumberCell creates a numeric cell.
func NumberCell(f float64) Cell {
	return Cell{Kind: CellNumber, Number: f}
}

// DateCell creates a date cell, truncated to the date component.
func DateCell(t time.Time) Cell {
	y, m, d := t.Date()
	return Cell{Kind: CellDate, Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// IsEmpty reports whether the cell carries no value.
func (c Cell) IsEmpty() bool {
	switch c.Kind {
	case CellEmpty:
		return true
	case CellText:
		return strings.TrimSpace(c.Text) == ""
	}
	return false
}

// String renders the cell the way it is written to a report.
func (c Cell) String() string {
	switch c.Kind {
	case CellText:
		return c.Text
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellDate:
		return c.Date.Format("2006-01-02")
	}
	return ""
}

// Table is a schema-aware row table: an ordered column list plus rows that
// always hold exactly one cell per column.
type Table struct {
	cols  []string
	index map[string]int
	rows  [][]Cell
}

// NewTable creates an empty table with the given column order. Duplicate
// column names keep their first position in the lookup index.
func NewTable(columns []string) *Table {
	t := &Table{
		cols:  append([]string(nil), columns...),
		index: make(map[string]int, len(columns)),
	}
	for i, name := range t.cols {
		if _, ok := t.index[name]; !ok {
			t.index[name] = i
		}
	}
	return t
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.cols...)
}

// ColumnIndex returns the position of a column by exact name.
func (t *Table) ColumnIndex(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// RowCount returns the number of data rows.
func (t *Table) RowCount() int {
	return len(t.rows)
}

// AppendRow adds a row, padding or truncating to the column count.
func (t *Table) AppendRow(cells []Cell) int {
	row := make([]Cell, len(t.cols))
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = EmptyCell()
		}
	}
	t.rows = append(t.rows, row)
	return len(t.rows) - 1
}

// AppendEmptyRow adds an all-empty row and returns its index.
func (t *Table) AppendEmptyRow() int {
	return t.AppendRow(nil)
}

// Cell returns the value at (row, column). Unknown columns and out-of-range
// rows read as empty.
func (t *Table) Cell(row int, column string) Cell {
	i, ok := t.index[column]
	if !ok || row < 0 || row >= len(t.rows) {
		return EmptyCell()
	}
	return t.rows[row][i]
}

// SetCell writes the value at (row, column). Writes to unknown columns are
// dropped.
func (t *Table) SetCell(row int, column string, c Cell) {
	i, ok := t.index[column]
	if !ok || row < 0 || row >= len(t.rows) {
		return
	}
	t.rows[row][i] = c
}

// Row returns the cells of one row in column order.
func (t *Table) Row(row int) []Cell {
	if row < 0 || row >= len(t.rows) {
		return nil
	}
	return append([]Cell(nil), t.rows[row]...)
}
