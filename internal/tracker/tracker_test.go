package tracker

import (
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/i-machine-things/JobDocs-sub000/internal/model"
	"github.com/i-machine-things/JobDocs-sub000/internal/store"
)

var fixedNow = func() time.Time {
	return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
}

func newHistory(t *testing.T) *store.HistoryStore {
	t.Helper()
	return store.OpenHistory(filepath.Join(t.TempDir(), "schedule_history.json"), zap.NewNop())
}

func jobTable(rows [][3]string) *model.Table {
	t := model.NewTable([]string{model.ColPONumber, model.ColLine, model.ColSchedEnd, model.ColNotes})
	for _, r := range rows {
		t.AppendRow([]model.Cell{
			model.TextCell(r[0]), model.TextCell(r[1]), model.TextCell(r[2]), model.EmptyCell(),
		})
	}
	return t
}

func TestTrackFirstRunSeedsHistory(t *testing.T) {
	hist := newHistory(t)
	tr := New(hist, fixedNow, zap.NewNop())

	res := tr.Track(jobTable([][3]string{
		{"1001", "1", "2025-04-01"},
		{"1001", "2", "2025-04-15"},
	}))

	if len(res.ChangedRows) != 0 {
		t.Fatalf("first run flagged %d changes, want 0", len(res.ChangedRows))
	}
	entry, ok := hist.Get("1001|2")
	if !ok {
		t.Fatal("history not seeded")
	}
	if entry.ScheduledEndDate != "2025-04-15" || entry.PO != "1001" || entry.Line != "2" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.LastUpdated != "2025-03-14 09:30:00" {
		t.Fatalf("LastUpdated = %q", entry.LastUpdated)
	}
}

func TestTrackFlagsMovedDateAndPrependsNote(t *testing.T) {
	hist := newHistory(t)
	tr := New(hist, fixedNow, zap.NewNop())

	tr.Track(jobTable([][3]string{{"1001", "1", "2025-04-01"}}))

	tbl := jobTable([][3]string{{"1001", "1", "2025-04-20"}})
	tbl.SetCell(0, model.ColNotes, model.TextCell("expedite per Dave"))
	res := tr.Track(tbl)

	if len(res.ChangedRows) != 1 || res.ChangedRows[0] != 0 {
		t.Fatalf("changed rows = %v", res.ChangedRows)
	}
	if !res.ChangedKeys["1001|1"] {
		t.Fatalf("changed keys = %v", res.ChangedKeys)
	}
	want := "[03/14] Moved from 2025-04-01; expedite per Dave"
	if got := tbl.Cell(0, model.ColNotes).String(); got != want {
		t.Fatalf("note = %q, want %q", got, want)
	}
	entry, _ := hist.Get("1001|1")
	if entry.ScheduledEndDate != "2025-04-20" {
		t.Fatalf("history not advanced: %+v", entry)
	}
}

func TestTrackSecondPassSeesNoChanges(t *testing.T) {
	hist := newHistory(t)
	tr := New(hist, fixedNow, zap.NewNop())

	tr.Track(jobTable([][3]string{{"1001", "1", "2025-04-01"}}))
	tbl := jobTable([][3]string{{"1001", "1", "2025-04-20"}})
	tr.Track(tbl)

	// History already holds the new date; tracking the same table again must
	// be a no-op.
	res := tr.Track(tbl)
	if len(res.ChangedRows) != 0 {
		t.Fatalf("second pass flagged %d changes", len(res.ChangedRows))
	}
}

func TestTrackSkipsUnkeyedAndUndatedRows(t *testing.T) {
	hist := newHistory(t)
	tr := New(hist, fixedNow, zap.NewNop())

	res := tr.Track(jobTable([][3]string{
		{"", "1", "2025-04-01"}, // no PO
		{"1001", "1", "TBD"},    // no parseable date
	}))
	if len(res.ChangedRows) != 0 {
		t.Fatalf("changed rows = %v", res.ChangedRows)
	}
	if hist.Len() != 0 {
		t.Fatalf("history picked up %d entries, want 0", hist.Len())
	}
}

func TestTrackMatchesNumericKeySpellings(t *testing.T) {
	hist := newHistory(t)
	tr := New(hist, fixedNow, zap.NewNop())

	tr.Track(jobTable([][3]string{{"1001", "1.0", "2025-04-01"}}))

	tbl := model.NewTable([]string{model.ColPONumber, model.ColLine, model.ColSchedEnd, model.ColNotes})
	tbl.AppendRow([]model.Cell{
		model.NumberCell(1001), model.NumberCell(1), model.TextCell("2025-05-01"), model.EmptyCell(),
	})
	res := tr.Track(tbl)

	if len(res.ChangedRows) != 1 {
		t.Fatalf("numeric spelling missed the prior entry, changes = %v", res.ChangedRows)
	}
}
