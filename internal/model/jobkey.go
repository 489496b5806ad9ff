package model

import (
	"strconv"
	"strings"
)

// NormalizeKeyPart collapses the spellings a spreadsheet produces for one
// identifier: 5, 5.0, "5" and "5.0" all come back as "5". Non-numeric text is
// trimmed and kept as-is.
func NormalizeKeyPart(c Cell) string {
	switch c.Kind {
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellText:
		s := strings.TrimSpace(c.Text)
		if s == "" {
			return ""
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return s
	case CellDate:
		return c.Date.Format("2006-01-02")
	}
	return ""
}

// POLineKey builds the "<po>|<line>" history key for a row. ok is false when
// the row has no usable PO number.
func POLineKey(t *Table, row int) (po, line, key string, ok bool) {
	po = NormalizeKeyPart(t.Cell(row, ColPONumber))
	if po == "" {
		return "", "", "", false
	}
	line = NormalizeKeyPart(t.Cell(row, ColLine))
	return po, line, po + "|" + line, true
}

// KeyForRow returns the job key used for reconciliation: the normalized
// Job ID when the row carries one, otherwise the "<po>|<line>" key.
func KeyForRow(t *Table, row int) (string, bool) {
	if id := NormalizeKeyPart(t.Cell(row, ColJobID)); id != "" {
		return id, true
	}
	_, _, key, ok := POLineKey(t, row)
	return key, ok
}

// HasJobKeyColumns reports whether a table can produce job keys at all.
func HasJobKeyColumns(t *Table) bool {
	return t.HasColumn(ColJobID) || t.HasColumn(ColPONumber)
}
