// Package batch drives the report pipeline per customer, in single-customer
// or auto-detect mode.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/i-machine-things/JobDocs-sub000/internal/excel"
	"github.com/i-machine-things/JobDocs-sub000/internal/model"
	"github.com/i-machine-things/JobDocs-sub000/internal/reconcile"
	"github.com/i-machine-things/JobDocs-sub000/internal/resolver"
	"github.com/i-machine-things/JobDocs-sub000/internal/store"
	"github.com/i-machine-things/JobDocs-sub000/internal/tracker"
	"github.com/i-machine-things/JobDocs-sub000/internal/transform"
)

// ErrNoCustomerColumn aborts an auto-detect batch whose source has no
// recognizable customer column.
var ErrNoCustomerColumn = errors.New("no customer column found in source")

// ErrCancelled is returned when the unmatched-names confirmation declines
// the batch.
var ErrCancelled = errors.New("batch cancelled")

// customerColumnAliases are the header names accepted as the customer
// column in auto-detect mode, matched case-insensitively.
var customerColumnAliases = []string{
	"Customer",
	"Customer Name",
	"Client",
	"Company",
	"Account",
	"Sold To",
	"Sold To Name",
	"Bill To",
}

// unmatchedSampleLimit caps how many unmatched names the confirmation step
// lists; the rest is a remainder count.
const unmatchedSampleLimit = 10

// Coordinator wires the pipeline stages together. All state lives in the
// injected stores; the coordinator itself processes customers strictly
// sequentially and is not safe for concurrent runs against the same stores.
type Coordinator struct {
	resolver         *resolver.Resolver
	history          *store.HistoryStore
	highlights       *store.HighlightStore
	aliases          *store.AliasStore
	customerFilesDir string
	datedOutputs     bool
	now              func() time.Time
	log              *zap.Logger
}

// New creates a coordinator.
func New(res *resolver.Resolver, history *store.HistoryStore, highlights *store.HighlightStore,
	aliases *store.AliasStore, customerFilesDir string, datedOutputs bool,
	now func() time.Time, log *zap.Logger) *Coordinator {
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		resolver:         res,
		history:          history,
		highlights:       highlights,
		aliases:          aliases,
		customerFilesDir: customerFilesDir,
		datedOutputs:     datedOutputs,
		now:              now,
		log:              log,
	}
}

// Options select the inputs for one run.
type Options struct {
	TemplatePath string
	SourcePath   string
	// Customer is the explicitly chosen folder for single-customer mode.
	// Empty with AutoDetect set runs the multi-customer pipeline.
	Customer   string
	AutoDetect bool
	// ConfirmDrop is called before unmatched customer names are dropped in
	// auto-detect mode, with a sample of at most ten names and the count of
	// the rest. Returning false cancels the batch. Nil proceeds without
	// asking.
	ConfirmDrop func(sample []string, remainder int) bool
}

// ProgressEvent is streamed to the UI while a run is in flight.
type ProgressEvent struct {
	Type      string    `json:"type"` // start/info/warning/customer_done/error/done
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Stream runs the pipeline on a background goroutine and returns its
// progress channel. The final event is "done" carrying the batch report, or
// "error".
func (c *Coordinator) Stream(ctx context.Context, opts Options) <-chan ProgressEvent {
	ch := make(chan ProgressEvent, 100)
	go func() {
		defer close(ch)
		emit := func(e ProgressEvent) {
			e.Timestamp = c.now()
			select {
			case ch <- e:
			default:
				// Channel full, drop the event.
			}
		}
		report, err := c.run(ctx, opts, emit)
		if err != nil {
			emit(ProgressEvent{Type: "error", Message: err.Error(), Data: report})
			return
		}
		emit(ProgressEvent{Type: "done", Message: "run complete", Data: report})
	}()
	return ch
}

// Run executes the pipeline synchronously.
func (c *Coordinator) Run(ctx context.Context, opts Options) (*model.BatchReport, error) {
	return c.run(ctx, opts, func(ProgressEvent) {})
}

func (c *Coordinator) run(ctx context.Context, opts Options, emit func(ProgressEvent)) (*model.BatchReport, error) {
	start := c.now()
	report := &model.BatchReport{
		RunID: uuid.NewString(),
		Mode:  "single",
	}
	if opts.AutoDetect {
		report.Mode = "auto"
	}

	// Whatever happens after this point, partial history/alias/highlight
	// state is flushed, so a failed run never loses tracking already done.
	defer c.saveStores()

	emit(ProgressEvent{Type: "start", Message: "starting report run", Data: map[string]string{
		"runId":  report.RunID,
		"mode":   report.Mode,
		"source": filepath.Base(opts.SourcePath),
	}})

	template, err := excel.ReadTemplateColumns(opts.TemplatePath)
	if err != nil {
		return report, fmt.Errorf("read template: %w", err)
	}
	source, err := excel.ReadSource(opts.SourcePath)
	if err != nil {
		return report, fmt.Errorf("read source: %w", err)
	}
	emit(ProgressEvent{Type: "info", Message: fmt.Sprintf("source loaded: %d rows x %d columns",
		source.RowCount(), len(source.Columns()))})

	if opts.AutoDetect {
		err = c.runAuto(ctx, template, source, opts, report, emit)
	} else {
		report.Attempted = 1
		rep := c.runCustomer(template, source, opts.Customer)
		report.Customers = append(report.Customers, rep)
		if rep.Error == "" {
			report.Succeeded = 1
		} else {
			err = errors.New(rep.Error)
		}
	}

	report.Duration = c.now().Sub(start)
	c.log.Info("run finished",
		zap.String("runId", report.RunID),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("attempted", report.Attempted))
	return report, err
}

// runAuto partitions the source by resolved customer and runs the pipeline
// independently per customer. One customer failing is logged and skipped;
// the batch continues.
func (c *Coordinator) runAuto(ctx context.Context, template []string, source *model.Table,
	opts Options, report *model.BatchReport, emit func(ProgressEvent)) error {

	column, ok := DetectCustomerColumn(source)
	if !ok {
		return fmt.Errorf("%w (looked for %v)", ErrNoCustomerColumn, customerColumnAliases)
	}
	emit(ProgressEvent{Type: "info", Message: fmt.Sprintf("customer column detected: %q", column)})

	groups, unmatched := c.partition(source, column)
	report.Unmatched = unmatched

	if len(unmatched) > 0 {
		sample := unmatched
		remainder := 0
		if len(sample) > unmatchedSampleLimit {
			remainder = len(sample) - unmatchedSampleLimit
			sample = sample[:unmatchedSampleLimit]
		}
		emit(ProgressEvent{Type: "warning",
			Message: fmt.Sprintf("%d customer name(s) could not be matched", len(unmatched)),
			Data:    map[string]any{"sample": sample, "remainder": remainder}})
		if opts.ConfirmDrop != nil && !opts.ConfirmDrop(sample, remainder) {
			return ErrCancelled
		}
		c.log.Warn("dropping rows for unmatched customers",
			zap.Strings("sample", sample), zap.Int("remainder", remainder))
	}

	folders := make([]string, 0, len(groups))
	for folder := range groups {
		folders = append(folders, folder)
	}
	sort.Strings(folders)

	for _, folder := range folders {
		// Cancellation point between customers: outputs already written
		// stay on disk.
		if err := ctx.Err(); err != nil {
			emit(ProgressEvent{Type: "warning", Message: "batch cancelled between customers"})
			return err
		}

		report.Attempted++
		sub := subset(source, groups[folder])
		rep := c.runCustomer(template, sub, folder)
		report.Customers = append(report.Customers, rep)
		if rep.Error == "" {
			report.Succeeded++
			emit(ProgressEvent{Type: "customer_done",
				Message: fmt.Sprintf("%s: %d rows written", folder, rep.Rows), Data: rep})
		} else {
			c.log.Error("customer pipeline failed, continuing batch",
				zap.String("customer", folder), zap.String("error", rep.Error))
			emit(ProgressEvent{Type: "warning",
				Message: fmt.Sprintf("%s failed: %s", folder, rep.Error), Data: rep})
		}
	}

	emit(ProgressEvent{Type: "info",
		Message: fmt.Sprintf("batch summary: %d/%d customers succeeded", report.Succeeded, report.Attempted)})
	return nil
}

// partition resolves every distinct value of the customer column and groups
// row indices by resolved folder. Values that resolve to nothing end up in
// the unmatched list.
func (c *Coordinator) partition(source *model.Table, column string) (map[string][]int, []string) {
	folderByName := make(map[string]string)
	var unmatched []string

	groups := make(map[string][]int)
	for r := 0; r < source.RowCount(); r++ {
		name := source.Cell(r, column).String()
		if name == "" {
			continue
		}
		folder, seen := folderByName[name]
		if !seen {
			res := c.resolver.Resolve(name)
			folder = res.Folder
			folderByName[name] = folder
			if folder == "" {
				unmatched = append(unmatched, name)
				c.log.Warn("customer name unmatched",
					zap.String("name", name), zap.Float64("bestScore", res.Score))
			} else {
				c.log.Debug("customer resolved",
					zap.String("name", name), zap.String("folder", folder),
					zap.Float64("score", res.Score), zap.String("source", string(res.Source)))
			}
		}
		if folder != "" {
			groups[folder] = append(groups[folder], r)
		}
	}
	sort.Strings(unmatched)
	return groups, unmatched
}

// runCustomer executes projection, normalization, change tracking,
// completion reconciliation and the formatted write for one customer.
func (c *Coordinator) runCustomer(template []string, source *model.Table, folder string) (rep model.CustomerRunReport) {
	start := c.now()
	rep.Customer = folder
	defer func() {
		rep.Duration = c.now().Sub(start)
		if r := recover(); r != nil {
			rep.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	log := c.log.With(zap.String("customer", folder))

	if folder == "" {
		rep.Error = "no customer selected"
		return rep
	}
	customerDir := filepath.Join(c.customerFilesDir, folder)
	if info, err := os.Stat(customerDir); err != nil || !info.IsDir() {
		rep.Error = fmt.Sprintf("customer folder not found: %s", customerDir)
		return rep
	}
	reportsDir := filepath.Join(customerDir, "reports")
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		rep.Error = fmt.Sprintf("create reports dir: %v", err)
		return rep
	}

	canonical, plan := transform.Project(template, source, log)
	rep.ColumnsKept = plan.Kept
	rep.ColumnsAdded = plan.Added
	rep.ColumnsDropped = plan.Dropped

	transform.NormalizePODates(canonical, log)

	trackRes := tracker.New(c.history, c.now, log).Track(canonical)
	rep.ScheduleChanges = len(trackRes.ChangedRows)

	fixedName := folder + "_jobRpt.xlsx"
	outName := fixedName
	if c.datedOutputs {
		outName = fmt.Sprintf("%s_jobRpt_%s.xlsx", folder, c.now().Format("20060102"))
	}

	prev := c.loadPrevious(reportsDir, folder, fixedName, log)
	recRes := reconcile.New(c.now, log).Reconcile(canonical, prev, trackRes.ChangedKeys)
	rep.NewlyCompleted = recRes.NewlyCompleted
	rep.CarriedForward = recRes.CarriedForward
	rep.Highlights = len(recRes.Highlights)
	rep.Rows = canonical.RowCount()

	highlightRows := make(map[int]bool)
	for r := 0; r < canonical.RowCount(); r++ {
		if key, ok := model.KeyForRow(canonical, r); ok && recRes.Highlights[key] {
			highlightRows[r] = true
		}
	}

	outPath := filepath.Join(reportsDir, outName)
	if err := excel.WriteReport(outPath, canonical, highlightRows); err != nil {
		rep.Error = fmt.Sprintf("write report: %v", err)
		return rep
	}
	rep.OutputPath = outPath

	c.highlights.Set(folder, recRes.Highlights)
	log.Info("report written", zap.String("path", outPath),
		zap.Int("rows", rep.Rows), zap.Int("highlights", rep.Highlights))
	return rep
}

// loadPrevious finds and reads the prior output for a customer. Any failure
// here only disables completion and highlight carry-over for this customer.
func (c *Coordinator) loadPrevious(reportsDir, folder, fixedName string, log *zap.Logger) *reconcile.Previous {
	path, ok := excel.FindPrevious(reportsDir, folder, fixedName)
	if !ok {
		return nil
	}
	tbl, fillKeys, err := excel.ReadPrevious(path)
	if err != nil {
		log.Info("previous output unreadable, completion carry-over disabled",
			zap.String("path", path), zap.Error(err))
		return nil
	}

	keys := fillKeys
	if c.highlights.Has(folder) {
		keys = c.highlights.Get(folder)
	}
	return &reconcile.Previous{Table: tbl, Highlights: keys}
}

// saveStores flushes all persistent state, logging rather than failing:
// partial results survive even when a later stage already failed.
func (c *Coordinator) saveStores() {
	if err := c.history.Save(); err != nil {
		c.log.Error("save schedule history", zap.Error(err))
	}
	if err := c.highlights.Save(); err != nil {
		c.log.Error("save highlight store", zap.Error(err))
	}
	if c.aliases != nil {
		if err := c.aliases.Save(); err != nil {
			c.log.Error("save customer aliases", zap.Error(err))
		}
	}
}

// DetectCustomerColumn finds the first source column whose header matches a
// known customer-column alias, case-insensitively.
func DetectCustomerColumn(source *model.Table) (string, bool) {
	for _, col := range source.Columns() {
		for _, alias := range customerColumnAliases {
			if strings.EqualFold(strings.TrimSpace(col), alias) {
				return col, true
			}
		}
	}
	return "", false
}

// subset builds a table with the same columns as src holding only the given
// rows.
func subset(src *model.Table, rows []int) *model.Table {
	out := model.NewTable(src.Columns())
	for _, r := range rows {
		out.AppendRow(src.Row(r))
	}
	return out
}
