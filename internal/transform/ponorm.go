package transform

import (
	"time"

	"go.uber.org/zap"

	"github.com/i-machine-things/JobDocs-sub000/internal/model"
)

// NormalizePODates collapses every purchase order's Scheduled End Date to the
// latest parseable line date across the PO: a PO ships when its last line
// ships. Unparseable dates are excluded from the max; a PO whose dates are
// all unparseable keeps no date at all. Rows without a PO number are left
// untouched. Returns the number of distinct POs seen.
func NormalizePODates(t *model.Table, log *zap.Logger) int {
	if !t.HasColumn(model.ColPONumber) || !t.HasColumn(model.ColSchedEnd) {
		return 0
	}

	maxByPO := make(map[string]time.Time)
	rowsByPO := make(map[string][]int)

	for r := 0; r < t.RowCount(); r++ {
		po := model.NormalizeKeyPart(t.Cell(r, model.ColPONumber))
		if po == "" {
			continue
		}
		rowsByPO[po] = append(rowsByPO[po], r)
		if d, ok := model.ParseDate(t.Cell(r, model.ColSchedEnd)); ok {
			if cur, seen := maxByPO[po]; !seen || d.After(cur) {
				maxByPO[po] = d
			}
		}
	}

	for po, rows := range rowsByPO {
		max, ok := maxByPO[po]
		for _, r := range rows {
			if ok {
				t.SetCell(r, model.ColSchedEnd, model.DateCell(max))
			} else {
				// No parseable date anywhere on this PO: the column is wiped
				// rather than left carrying text that cannot be compared.
				t.SetCell(r, model.ColSchedEnd, model.EmptyCell())
			}
		}
	}

	log.Info("normalized scheduled end dates per PO", zap.Int("pos", len(rowsByPO)))
	return len(rowsByPO)
}
