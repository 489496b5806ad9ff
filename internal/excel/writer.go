package excel

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/i-machine-things/JobDocs-sub000/internal/model"
)

// Output formatting constants, kept identical to what the surrounding
// application has always produced.
const (
	sheetName      = "Sheet1"
	highlightColor = "FFFF00"
	maxColWidth    = 50
	tableName      = "DataTable"
	tableStyle     = "TableStyleMedium2"
)

// WriteReport renders a canonical table to a formatted workbook: frozen
// header row, auto-sized columns capped at 50, a solid yellow fill on the
// Scheduled End Date cell of every highlighted row, and the full data range
// registered as a banded-row table. highlightRows holds zero-based data row
// indices. The file is written in one shot after the table is final; no
// partial artifact ever lands on disk.
func WriteReport(path string, t *model.Table, highlightRows map[int]bool) error {
	f := excelize.NewFile()
	defer f.Close()

	cols := t.Columns()
	for i, name := range cols {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for r := 0; r < t.RowCount(); r++ {
		for i, name := range cols {
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return fmt.Errorf("data cell: %w", err)
			}
			if err := setCell(f, cell, t.Cell(r, name)); err != nil {
				return fmt.Errorf("write row %d: %w", r+2, err)
			}
		}
	}

	if err := highlightScheduleCells(f, t, highlightRows); err != nil {
		return err
	}
	autoSizeColumns(f, t)

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if t.RowCount() > 0 {
		last, err := excelize.CoordinatesToCellName(len(cols), t.RowCount()+1)
		if err != nil {
			return fmt.Errorf("table range: %w", err)
		}
		showStripes := true
		if err := f.AddTable(sheetName, &excelize.Table{
			Range:          "A1:" + last,
			Name:           tableName,
			StyleName:      tableStyle,
			ShowRowStripes: &showStripes,
		}); err != nil {
			return fmt.Errorf("add table: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, cell string, c model.Cell) error {
	switch c.Kind {
	case model.CellEmpty:
		return nil
	case model.CellNumber:
		return f.SetCellValue(sheetName, cell, c.Number)
	default:
		return f.SetCellValue(sheetName, cell, c.String())
	}
}

func highlightScheduleCells(f *excelize.File, t *model.Table, rows map[int]bool) error {
	if len(rows) == 0 {
		return nil
	}
	col, ok := t.ColumnIndex(model.ColSchedEnd)
	if !ok {
		return nil
	}

	styleID, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{highlightColor}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("highlight style: %w", err)
	}

	for r := range rows {
		if r < 0 || r >= t.RowCount() {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(col+1, r+2)
		if err != nil {
			return fmt.Errorf("highlight cell: %w", err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, styleID); err != nil {
			return fmt.Errorf("apply highlight: %w", err)
		}
	}
	return nil
}

// autoSizeColumns widens each column to its longest rendered value plus
// padding, capped at maxColWidth.
func autoSizeColumns(f *excelize.File, t *model.Table) {
	for i, name := range t.Columns() {
		width := len(name)
		for r := 0; r < t.RowCount(); r++ {
			if l := len(t.Cell(r, name).String()); l > width {
				width = l
			}
		}
		width += 2
		if width > maxColWidth {
			width = maxColWidth
		}
		letter, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			continue
		}
		_ = f.SetColWidth(sheetName, letter, letter, float64(width))
	}
}
