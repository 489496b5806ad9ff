package excel

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/i-machine-things/JobDocs-sub000/internal/model"
)

// FindPrevious locates the prior run's output for a customer. The fixed
// filename is tried first; legacy dated variants ("<customer>_jobRpt_*.xlsx")
// fall back to the most recently modified one.
func FindPrevious(reportsDir, customer, fixedName string) (string, bool) {
	fixed := filepath.Join(reportsDir, fixedName)
	if info, err := os.Stat(fixed); err == nil && !info.IsDir() {
		return fixed, true
	}

	pattern := filepath.Join(reportsDir, customer+"_jobRpt_*.xlsx")
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return "", false
	}

	newest := ""
	var newestMod int64
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest = m
			newestMod = mod
		}
	}
	return newest, newest != ""
}

// ReadPrevious loads a prior output workbook and recovers the job keys whose
// Scheduled End Date cell carries the highlight fill. This read-back is the
// legacy path; runs that persisted their Highlight Set explicitly do not
// need it.
func ReadPrevious(path string) (*model.Table, []string, error) {
	t, err := ReadSource(path)
	if err != nil {
		return nil, nil, err
	}

	keys, err := readHighlightKeys(path, t)
	if err != nil {
		// Formatting read-back failing is not fatal: the table itself is
		// still usable for completion reconciliation.
		return t, nil, nil
	}
	return t, keys, nil
}

func readHighlightKeys(path string, t *model.Table) ([]string, error) {
	col, ok := t.ColumnIndex(model.ColSchedEnd)
	if !ok {
		return nil, nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	sheet := sheets[0]

	var keys []string
	for r := 0; r < t.RowCount(); r++ {
		cell, err := excelize.CoordinatesToCellName(col+1, r+2)
		if err != nil {
			continue
		}
		styleID, err := f.GetCellStyle(sheet, cell)
		if err != nil {
			continue
		}
		style, err := f.GetStyle(styleID)
		if err != nil || style == nil {
			continue
		}
		if !isHighlightFill(style.Fill) {
			continue
		}
		if key, ok := model.KeyForRow(t, r); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func isHighlightFill(fill excelize.Fill) bool {
	if fill.Type != "pattern" {
		return false
	}
	for _, c := range fill.Color {
		c = strings.TrimPrefix(strings.ToUpper(c), "#")
		if strings.HasSuffix(c, highlightColor) {
			return true
		}
	}
	return false
}
