package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/i-machine-things/JobDocs-sub000/internal/excel"
	"github.com/i-machine-things/JobDocs-sub000/internal/model"
	"github.com/i-machine-things/JobDocs-sub000/internal/resolver"
	"github.com/i-machine-things/JobDocs-sub000/internal/store"
)

var fixedNow = func() time.Time {
	return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
}

var templateColumns = []string{
	model.ColJobID, model.ColPONumber, model.ColLine,
	model.ColSchedEnd, model.ColStatus, model.ColNotes,
}

type fixture struct {
	coord        *Coordinator
	dir          string
	templatePath string
	history      *store.HistoryStore
	highlights   *store.HighlightStore
	aliases      *store.AliasStore
	resolver     *resolver.Resolver
}

// newFixture builds a coordinator over a temp customer tree with the given
// folders, with dated outputs off so paths stay predictable.
func newFixture(t *testing.T, folders ...string) *fixture {
	t.Helper()
	dir := t.TempDir()
	for _, f := range folders {
		if err := os.MkdirAll(filepath.Join(dir, f), 0755); err != nil {
			t.Fatal(err)
		}
	}

	log := zap.NewNop()
	history := store.OpenHistory(filepath.Join(dir, "schedule_history.json"), log)
	highlights := store.OpenHighlights(filepath.Join(dir, "report_highlights.json"), log)
	aliases := store.OpenAliases(filepath.Join(dir, "customer_aliases.json"), log)
	res := resolver.New(folders, aliases, resolver.DefaultThreshold, log)

	templatePath := filepath.Join(dir, "template.xlsx")
	if err := excel.WriteReport(templatePath, model.NewTable(templateColumns), nil); err != nil {
		t.Fatalf("write template: %v", err)
	}

	return &fixture{
		coord:        New(res, history, highlights, aliases, dir, false, fixedNow, log),
		dir:          dir,
		templatePath: templatePath,
		history:      history,
		highlights:   highlights,
		aliases:      aliases,
		resolver:     res,
	}
}

// writeSource renders rows to a workbook under the fixture dir. Each row is
// customer, job id, po, line, scheduled end date.
func (fx *fixture) writeSource(t *testing.T, name string, rows [][5]string) string {
	t.Helper()
	tbl := model.NewTable([]string{
		"Customer", model.ColJobID, model.ColPONumber, model.ColLine, model.ColSchedEnd,
	})
	for _, r := range rows {
		cells := make([]model.Cell, len(r))
		for i, v := range r {
			cells[i] = model.TextCell(v)
		}
		tbl.AppendRow(cells)
	}
	path := filepath.Join(fx.dir, name)
	if err := excel.WriteReport(path, tbl, nil); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func TestRunSingleCustomer(t *testing.T) {
	fx := newFixture(t, "Acme Corp")
	source := fx.writeSource(t, "source.xlsx", [][5]string{
		{"Acme Corp", "J-1", "1001", "1", "2025-04-01"},
		{"Acme Corp", "J-2", "1001", "2", "2025-04-15"},
	})

	report, err := fx.coord.Run(context.Background(), Options{
		TemplatePath: fx.templatePath,
		SourcePath:   source,
		Customer:     "Acme Corp",
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Mode != "single" || report.Succeeded != 1 || report.Attempted != 1 {
		t.Fatalf("report = %+v", report)
	}

	outPath := filepath.Join(fx.dir, "Acme Corp", "reports", "Acme Corp_jobRpt.xlsx")
	out, err := excel.ReadSource(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if out.RowCount() != 2 {
		t.Fatalf("output rows = %d", out.RowCount())
	}
	// Per-PO normalization: both lines of PO 1001 share the latest date.
	for r := 0; r < 2; r++ {
		if got := out.Cell(r, model.ColSchedEnd).String(); got != "2025-04-15" {
			t.Fatalf("row %d schedule = %q", r, got)
		}
	}
	if fx.history.Len() != 2 {
		t.Fatalf("history entries = %d", fx.history.Len())
	}
}

func TestRunSecondRunCompletesDisappearedJobs(t *testing.T) {
	fx := newFixture(t, "Acme Corp")
	opts := Options{TemplatePath: fx.templatePath, Customer: "Acme Corp"}

	opts.SourcePath = fx.writeSource(t, "run1.xlsx", [][5]string{
		{"Acme Corp", "J-1", "1001", "1", "2025-04-01"},
		{"Acme Corp", "J-2", "2002", "1", "2025-04-15"},
	})
	if _, err := fx.coord.Run(context.Background(), opts); err != nil {
		t.Fatalf("run 1: %v", err)
	}

	// J-2 left the extract: it must come back as a completed row.
	opts.SourcePath = fx.writeSource(t, "run2.xlsx", [][5]string{
		{"Acme Corp", "J-1", "1001", "1", "2025-04-01"},
	})
	report, err := fx.coord.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("run 2: %v", err)
	}
	if got := report.Customers[0].NewlyCompleted; got != 1 {
		t.Fatalf("newly completed = %d", got)
	}

	out, err := excel.ReadSource(filepath.Join(fx.dir, "Acme Corp", "reports", "Acme Corp_jobRpt.xlsx"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if out.RowCount() != 2 {
		t.Fatalf("output rows = %d", out.RowCount())
	}
	if got := out.Cell(1, model.ColStatus).String(); got != model.StatusComplete {
		t.Fatalf("status = %q", got)
	}
}

func TestRunSecondRunFlagsScheduleChange(t *testing.T) {
	fx := newFixture(t, "Acme Corp")
	opts := Options{TemplatePath: fx.templatePath, Customer: "Acme Corp"}

	opts.SourcePath = fx.writeSource(t, "run1.xlsx", [][5]string{
		{"Acme Corp", "J-1", "1001", "1", "2025-04-01"},
	})
	if _, err := fx.coord.Run(context.Background(), opts); err != nil {
		t.Fatalf("run 1: %v", err)
	}

	opts.SourcePath = fx.writeSource(t, "run2.xlsx", [][5]string{
		{"Acme Corp", "J-1", "1001", "1", "2025-05-01"},
	})
	report, err := fx.coord.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("run 2: %v", err)
	}
	rep := report.Customers[0]
	if rep.ScheduleChanges != 1 || rep.Highlights != 1 {
		t.Fatalf("rep = %+v", rep)
	}

	out, err := excel.ReadSource(rep.OutputPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if got := out.Cell(0, model.ColNotes).String(); got != "[03/14] Moved from 2025-04-01" {
		t.Fatalf("note = %q", got)
	}
	// The highlight set persists for the next run's carry-over.
	if keys := fx.highlights.Get("Acme Corp"); len(keys) != 1 || keys[0] != "J-1" {
		t.Fatalf("persisted highlights = %v", keys)
	}
}

func TestRunAutoDetectSplitsByCustomer(t *testing.T) {
	fx := newFixture(t, "Acme Corp", "Retech Systems")
	source := fx.writeSource(t, "source.xlsx", [][5]string{
		{"ACME CORPORATION", "J-1", "1001", "1", "2025-04-01"},
		{"Retech Systems LLC", "J-2", "2002", "1", "2025-04-15"},
		{"Acme Corp", "J-3", "1001", "2", "2025-04-10"},
	})

	report, err := fx.coord.Run(context.Background(), Options{
		TemplatePath: fx.templatePath,
		SourcePath:   source,
		AutoDetect:   true,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Mode != "auto" || report.Attempted != 2 || report.Succeeded != 2 {
		t.Fatalf("report = %+v", report)
	}
	if len(report.Unmatched) != 0 {
		t.Fatalf("unmatched = %v", report.Unmatched)
	}

	acme, err := excel.ReadSource(filepath.Join(fx.dir, "Acme Corp", "reports", "Acme Corp_jobRpt.xlsx"))
	if err != nil {
		t.Fatalf("read acme output: %v", err)
	}
	if acme.RowCount() != 2 {
		t.Fatalf("acme rows = %d", acme.RowCount())
	}
	retech, err := excel.ReadSource(filepath.Join(fx.dir, "Retech Systems", "reports", "Retech Systems_jobRpt.xlsx"))
	if err != nil {
		t.Fatalf("read retech output: %v", err)
	}
	if retech.RowCount() != 1 {
		t.Fatalf("retech rows = %d", retech.RowCount())
	}
	// The customer column is not part of the template, so it never reaches
	// the output.
	if acme.HasColumn("Customer") {
		t.Fatal("customer column leaked into the output")
	}
}

func TestRunAutoDetectReportsUnmatched(t *testing.T) {
	fx := newFixture(t, "Acme Corp")
	source := fx.writeSource(t, "source.xlsx", [][5]string{
		{"Acme Corp", "J-1", "1001", "1", "2025-04-01"},
		{"Zebra Logistics", "J-2", "2002", "1", "2025-04-15"},
	})

	report, err := fx.coord.Run(context.Background(), Options{
		TemplatePath: fx.templatePath,
		SourcePath:   source,
		AutoDetect:   true,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Unmatched) != 1 || report.Unmatched[0] != "Zebra Logistics" {
		t.Fatalf("unmatched = %v", report.Unmatched)
	}
	if report.Succeeded != 1 {
		t.Fatalf("report = %+v", report)
	}
}

func TestRunAutoDetectConfirmDeclineCancels(t *testing.T) {
	fx := newFixture(t, "Acme Corp")
	source := fx.writeSource(t, "source.xlsx", [][5]string{
		{"Zebra Logistics", "J-1", "1001", "1", "2025-04-01"},
	})

	_, err := fx.coord.Run(context.Background(), Options{
		TemplatePath: fx.templatePath,
		SourcePath:   source,
		AutoDetect:   true,
		ConfirmDrop:  func([]string, int) bool { return false },
	})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
}

func TestRunCancelledBetweenCustomers(t *testing.T) {
	fx := newFixture(t, "Acme Corp", "Retech Systems")
	source := fx.writeSource(t, "source.xlsx", [][5]string{
		{"Acme Corp", "J-1", "1001", "1", "2025-04-01"},
		{"Retech Systems", "J-2", "2002", "1", "2025-04-15"},
	})

	// Customers run in sorted folder order. The clock hook cancels once the
	// first customer's workbook lands on disk, so the cancellation check
	// before the second customer trips deterministically.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	acmeOut := filepath.Join(fx.dir, "Acme Corp", "reports", "Acme Corp_jobRpt.xlsx")
	clock := func() time.Time {
		if _, err := os.Stat(acmeOut); err == nil {
			cancel()
		}
		return fixedNow()
	}
	coord := New(fx.resolver, fx.history, fx.highlights, fx.aliases, fx.dir, false, clock, zap.NewNop())

	report, err := coord.Run(ctx, Options{
		TemplatePath: fx.templatePath,
		SourcePath:   source,
		AutoDetect:   true,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if report.Attempted != 1 || report.Succeeded != 1 {
		t.Fatalf("report = %+v", report)
	}
	if _, err := os.Stat(acmeOut); err != nil {
		t.Fatalf("first customer's workbook missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(fx.dir, "Retech Systems", "reports")); !os.IsNotExist(err) {
		t.Fatal("second customer was attempted after cancellation")
	}
	// The deferred store flush still ran: tracking from before the cancel
	// survives on disk.
	reloaded := store.OpenHistory(filepath.Join(fx.dir, "schedule_history.json"), zap.NewNop())
	if reloaded.Len() != 1 {
		t.Fatalf("history entries after cancel = %d, want 1", reloaded.Len())
	}
}

func TestRunAutoDetectNoCustomerColumn(t *testing.T) {
	fx := newFixture(t, "Acme Corp")

	tbl := model.NewTable([]string{model.ColJobID, model.ColPONumber})
	tbl.AppendRow([]model.Cell{model.TextCell("J-1"), model.TextCell("1001")})
	source := filepath.Join(fx.dir, "nocust.xlsx")
	if err := excel.WriteReport(source, tbl, nil); err != nil {
		t.Fatal(err)
	}

	_, err := fx.coord.Run(context.Background(), Options{
		TemplatePath: fx.templatePath,
		SourcePath:   source,
		AutoDetect:   true,
	})
	if !errors.Is(err, ErrNoCustomerColumn) {
		t.Fatalf("err = %v, want ErrNoCustomerColumn", err)
	}
}

func TestRunMissingCustomerFolderFailsThatCustomer(t *testing.T) {
	fx := newFixture(t, "Acme Corp")
	source := fx.writeSource(t, "source.xlsx", [][5]string{
		{"Acme Corp", "J-1", "1001", "1", "2025-04-01"},
	})

	report, err := fx.coord.Run(context.Background(), Options{
		TemplatePath: fx.templatePath,
		SourcePath:   source,
		Customer:     "Nope Industries",
	})
	if err == nil {
		t.Fatal("expected an error for a missing customer folder")
	}
	if report.Succeeded != 0 || report.Customers[0].Error == "" {
		t.Fatalf("report = %+v", report)
	}
}

func TestStreamEmitsDoneEvent(t *testing.T) {
	fx := newFixture(t, "Acme Corp")
	source := fx.writeSource(t, "source.xlsx", [][5]string{
		{"Acme Corp", "J-1", "1001", "1", "2025-04-01"},
	})

	ch := fx.coord.Stream(context.Background(), Options{
		TemplatePath: fx.templatePath,
		SourcePath:   source,
		Customer:     "Acme Corp",
	})

	var last ProgressEvent
	for e := range ch {
		last = e
	}
	if last.Type != "done" {
		t.Fatalf("final event = %+v", last)
	}
}

func TestDetectCustomerColumn(t *testing.T) {
	cases := []struct {
		cols []string
		want string
		ok   bool
	}{
		{[]string{"Job ID", "Customer"}, "Customer", true},
		{[]string{"Job ID", "customer name"}, "customer name", true},
		{[]string{"Job ID", " Sold To "}, " Sold To ", true},
		{[]string{"Job ID", "Line"}, "", false},
	}
	for _, c := range cases {
		got, ok := DetectCustomerColumn(model.NewTable(c.cols))
		if got != c.want || ok != c.ok {
			t.Fatalf("DetectCustomerColumn(%v) = %q,%v", c.cols, got, ok)
		}
	}
}
