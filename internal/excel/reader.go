// Package excel reads template and source workbooks into tables and writes
// the formatted per-customer report artifacts.
package excel

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/i-machine-things/JobDocs-sub000/internal/model"
)

// ReadTemplateColumns reads the header row of the template workbook. Only
// the header matters; data rows in a template are ignored.
func ReadTemplateColumns(path string) ([]string, error) {
	t, err := ReadSource(path)
	if err != nil {
		return nil, err
	}
	cols := t.Columns()
	if len(cols) == 0 {
		return nil, fmt.Errorf("template %s has no header row", filepath.Base(path))
	}
	return cols, nil
}

// ReadSource reads the first sheet of a source extract into a table. The
// shop-floor system emits legacy .xls; everything else is read as .xlsx.
func ReadSource(path string) (*model.Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xls") {
		return readXLS(path)
	}
	return readXLSX(path)
}

func readXLSX(path string) (*model.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s has no sheets", filepath.Base(path))
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return tableFromRows(rows, filepath.Base(path))
}

func readXLS(path string) (*model.Table, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("%s has no sheets", filepath.Base(path))
	}

	var rows [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol()+1)
		for j := row.FirstCol(); j <= row.LastCol(); j++ {
			cells[j] = row.Col(j)
		}
		rows = append(rows, cells)
	}
	return tableFromRows(rows, filepath.Base(path))
}

// tableFromRows builds a table from raw sheet rows: first row is the header,
// trailing blank header cells are trimmed, data cells come in as text.
func tableFromRows(rows [][]string, name string) (*model.Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s is empty", name)
	}

	header := rows[0]
	for len(header) > 0 && strings.TrimSpace(header[len(header)-1]) == "" {
		header = header[:len(header)-1]
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("%s has no header row", name)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	t := model.NewTable(header)
	for _, raw := range rows[1:] {
		if isBlankRow(raw) {
			continue
		}
		cells := make([]model.Cell, len(header))
		for i := range header {
			if i < len(raw) {
				cells[i] = model.TextCell(raw[i])
			} else {
				cells[i] = model.EmptyCell()
			}
		}
		t.AppendRow(cells)
	}
	return t, nil
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
