package transform

import (
	"testing"

	"go.uber.org/zap"

	"github.com/i-machine-things/JobDocs-sub000/internal/model"
)

func scheduleTable(rows [][2]string) *model.Table {
	t := model.NewTable([]string{model.ColPONumber, model.ColSchedEnd})
	for _, r := range rows {
		t.AppendRow([]model.Cell{model.TextCell(r[0]), model.TextCell(r[1])})
	}
	return t
}

func TestNormalizePODatesUsesLatestDate(t *testing.T) {
	tbl := scheduleTable([][2]string{
		{"1001", "2025-03-01"},
		{"1001", "2025-03-15"},
		{"1001", "2025-02-20"},
		{"2002", "2025-04-01"},
	})

	pos := NormalizePODates(tbl, zap.NewNop())
	if pos != 2 {
		t.Fatalf("distinct POs = %d, want 2", pos)
	}
	for r := 0; r < 3; r++ {
		if got := tbl.Cell(r, model.ColSchedEnd).String(); got != "2025-03-15" {
			t.Fatalf("row %d = %q, want latest date for the PO", r, got)
		}
	}
	if got := tbl.Cell(3, model.ColSchedEnd).String(); got != "2025-04-01" {
		t.Fatalf("other PO disturbed: %q", got)
	}
}

func TestNormalizePODatesIgnoresUnparseableInMax(t *testing.T) {
	tbl := scheduleTable([][2]string{
		{"1001", "TBD"},
		{"1001", "2025-03-01"},
	})
	NormalizePODates(tbl, zap.NewNop())
	for r := 0; r < 2; r++ {
		if got := tbl.Cell(r, model.ColSchedEnd).String(); got != "2025-03-01" {
			t.Fatalf("row %d = %q, want the one parseable date", r, got)
		}
	}
}

func TestNormalizePODatesAllUnparseableWipes(t *testing.T) {
	tbl := scheduleTable([][2]string{
		{"1001", "TBD"},
		{"1001", "soon"},
	})
	NormalizePODates(tbl, zap.NewNop())
	for r := 0; r < 2; r++ {
		if !tbl.Cell(r, model.ColSchedEnd).IsEmpty() {
			t.Fatalf("row %d should carry no date", r)
		}
	}
}

func TestNormalizePODatesLeavesPOLessRows(t *testing.T) {
	tbl := scheduleTable([][2]string{
		{"", "2025-05-05"},
	})
	NormalizePODates(tbl, zap.NewNop())
	if got := tbl.Cell(0, model.ColSchedEnd).String(); got != "2025-05-05" {
		t.Fatalf("row without a PO was touched: %q", got)
	}
}

func TestNormalizePODatesGroupsNumericSpellings(t *testing.T) {
	tbl := model.NewTable([]string{model.ColPONumber, model.ColSchedEnd})
	tbl.AppendRow([]model.Cell{model.TextCell("1001"), model.TextCell("2025-03-01")})
	tbl.AppendRow([]model.Cell{model.NumberCell(1001), model.TextCell("2025-03-10")})
	tbl.AppendRow([]model.Cell{model.TextCell("1001.0"), model.TextCell("2025-02-01")})

	if pos := NormalizePODates(tbl, zap.NewNop()); pos != 1 {
		t.Fatalf("numeric spellings split into %d POs, want 1", pos)
	}
	for r := 0; r < 3; r++ {
		if got := tbl.Cell(r, model.ColSchedEnd).String(); got != "2025-03-10" {
			t.Fatalf("row %d = %q, want shared latest date", r, got)
		}
	}
}

func TestNormalizePODatesMissingColumnsNoOp(t *testing.T) {
	tbl := model.NewTable([]string{"Job ID"})
	tbl.AppendRow([]model.Cell{model.TextCell("J-1")})
	if pos := NormalizePODates(tbl, zap.NewNop()); pos != 0 {
		t.Fatalf("table without schedule columns processed %d POs", pos)
	}
}
