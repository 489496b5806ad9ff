// Package reconcile diffs the current run against the previous output for a
// customer: jobs that left the extract are marked complete, already-completed
// jobs are carried forward, and human-entered notes survive the refresh.
package reconcile

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/i-machine-things/JobDocs-sub000/internal/model"
)

// Previous is the prior run's output for one customer.
type Previous struct {
	Table      *model.Table
	Highlights []string // job keys emphasized in that output
}

// Result summarizes what reconciliation did.
type Result struct {
	NewlyCompleted int
	CarriedForward int
	NotesMerged    int
	// Highlights is the new Highlight Set: rows flagged this run plus
	// previously highlighted keys still present in the combined table.
	Highlights map[string]bool
}

// Reconciler merges a previous output into the current canonical table.
type Reconciler struct {
	now func() time.Time
	log *zap.Logger
}

// New creates a reconciler.
func New(now func() time.Time, log *zap.Logger) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{now: now, log: log}
}

// Reconcile mutates current in place, appending completed and carried-forward
// rows from previous. flagged holds the job keys the change tracker
// highlighted this run. A nil previous, or tables that cannot produce job
// keys, make this a logged no-op.
func (rc *Reconciler) Reconcile(current *model.Table, previous *Previous, flagged map[string]bool) Result {
	res := Result{Highlights: copySet(flagged)}

	if previous == nil || previous.Table == nil {
		rc.log.Info("no previous output, completion reconciliation skipped")
		return res
	}
	if !model.HasJobKeyColumns(current) || !model.HasJobKeyColumns(previous.Table) {
		rc.log.Info("no job key columns, completion reconciliation skipped")
		return res
	}

	prev := previous.Table
	currentRows := make(map[string]int, current.RowCount())
	for r := 0; r < current.RowCount(); r++ {
		if key, ok := model.KeyForRow(current, r); ok {
			if _, seen := currentRows[key]; !seen {
				currentRows[key] = r
			}
		}
	}

	for r := 0; r < prev.RowCount(); r++ {
		key, ok := model.KeyForRow(prev, r)
		if !ok {
			continue
		}

		if cur, present := currentRows[key]; present {
			// Live extracts carry no notes field; copy the previous notes
			// onto the current row so human annotations survive.
			prevNotes := prev.Cell(r, model.ColNotes)
			if current.Cell(cur, model.ColNotes).IsEmpty() && !prevNotes.IsEmpty() {
				current.SetCell(cur, model.ColNotes, prevNotes)
				res.NotesMerged++
			}
			continue
		}

		if isComplete(prev.Cell(r, model.ColStatus)) {
			rc.appendRow(current, prev, r)
			res.CarriedForward++
		} else {
			row := rc.appendRow(current, prev, r)
			current.SetCell(row, model.ColStatus, model.TextCell(model.StatusComplete))
			current.SetCell(row, model.ColNotes, model.TextCell(rc.completionNote(current, row)))
			res.NewlyCompleted++
		}
	}

	// Carry previous emphasis for keys still present in the combined table.
	combined := make(map[string]bool, current.RowCount())
	for r := 0; r < current.RowCount(); r++ {
		if key, ok := model.KeyForRow(current, r); ok {
			combined[key] = true
		}
	}
	for _, key := range previous.Highlights {
		if combined[key] && !res.Highlights[key] {
			res.Highlights[key] = true
		}
	}

	if res.NewlyCompleted > 0 || res.CarriedForward > 0 || res.NotesMerged > 0 {
		rc.log.Info("reconciled against previous output",
			zap.Int("newlyCompleted", res.NewlyCompleted),
			zap.Int("carriedForward", res.CarriedForward),
			zap.Int("notesMerged", res.NotesMerged))
	}
	return res
}

// appendRow copies one previous row onto the end of current, by column name.
func (rc *Reconciler) appendRow(current, prev *model.Table, prevRow int) int {
	row := current.AppendEmptyRow()
	for _, col := range current.Columns() {
		if prev.HasColumn(col) {
			current.SetCell(row, col, prev.Cell(prevRow, col))
		}
	}
	return row
}

// completionNote appends "[MM/DD] Completed <date>" to whatever notes the row
// already carries. The completion date is the job's scheduled end date when
// one is known, otherwise today.
func (rc *Reconciler) completionNote(t *model.Table, row int) string {
	now := rc.now()
	date := t.Cell(row, model.ColSchedEnd).String()
	if date == "" {
		date = now.Format(model.HistoryDateLayout)
	}
	note := fmt.Sprintf("[%s] Completed %s", now.Format(model.NoteStampLayout), date)
	existing := t.Cell(row, model.ColNotes).String()
	if existing == "" {
		return note
	}
	return existing + "; " + note
}

func isComplete(c model.Cell) bool {
	return strings.EqualFold(strings.TrimSpace(c.String()), model.StatusComplete)
}

func copySet(src map[string]bool) map[string]bool {
	dst := make(map[string]bool, len(src))
	for k, v := range src {
		if v {
			dst[k] = true
		}
	}
	return dst
}
