// Package tracker detects per-job schedule movement between runs against the
// persisted schedule history.
package tracker

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/i-machine-things/JobDocs-sub000/internal/model"
	"github.com/i-machine-things/JobDocs-sub000/internal/store"
)

// Tracker annotates rows whose Scheduled End Date moved since the last run
// and advances the history. Track must run exactly once per run: the history
// is overwritten in place, so a second pass over the same table sees no
// changes.
type Tracker struct {
	history *store.HistoryStore
	now     func() time.Time
	log     *zap.Logger
}

// New creates a tracker over the given history store.
func New(history *store.HistoryStore, now func() time.Time, log *zap.Logger) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{history: history, now: now, log: log}
}

// Result reports the rows flagged for highlighting this run.
type Result struct {
	ChangedRows []int           // row indices whose date moved
	ChangedKeys map[string]bool // job keys of those rows
}

// Track walks the table once. For each row with a resolvable PO|Line key and
// a non-null date it compares against history, prepends a change note when
// the date moved, and unconditionally advances the history entry.
func (tr *Tracker) Track(t *model.Table) Result {
	res := Result{ChangedKeys: make(map[string]bool)}
	if !t.HasColumn(model.ColPONumber) || !t.HasColumn(model.ColSchedEnd) {
		return res
	}

	now := tr.now()
	stamp := now.Format(model.HistoryStampLayout)

	for r := 0; r < t.RowCount(); r++ {
		po, line, key, ok := model.POLineKey(t, r)
		if !ok {
			continue
		}
		date, ok := model.ParseDate(t.Cell(r, model.ColSchedEnd))
		if !ok {
			continue
		}
		current := date.Format(model.HistoryDateLayout)

		if prev, found := tr.history.Get(key); found {
			if prev.ScheduledEndDate != "" && prev.ScheduledEndDate != current {
				res.ChangedRows = append(res.ChangedRows, r)
				// Flag under the row's reconciliation key, which prefers the
				// Job ID over the PO|Line history key.
				if rowKey, ok := model.KeyForRow(t, r); ok {
					res.ChangedKeys[rowKey] = true
				}
				note := fmt.Sprintf("[%s] Moved from %s", now.Format(model.NoteStampLayout), prev.ScheduledEndDate)
				t.SetCell(r, model.ColNotes, model.TextCell(prependNote(note, t.Cell(r, model.ColNotes).String())))
			}
		}

		tr.history.Put(key, model.HistoryEntry{
			ScheduledEndDate: current,
			LastUpdated:      stamp,
			PO:               po,
			Line:             line,
		})
	}

	if len(res.ChangedRows) > 0 {
		tr.log.Info("schedule changes detected", zap.Int("changes", len(res.ChangedRows)))
	}
	return res
}

// prependNote joins a new change note ahead of whatever a human already
// wrote, semicolon-separated.
func prependNote(note, existing string) string {
	if existing == "" {
		return note
	}
	return note + "; " + existing
}
