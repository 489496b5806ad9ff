// Package transform shapes a raw extract into the canonical report table:
// projection onto the template schema, then per-PO schedule normalization.
package transform

import (
	"go.uber.org/zap"

	"github.com/i-machine-things/JobDocs-sub000/internal/model"
)

// ColumnAction describes what projection does with one column.
type ColumnAction string

const (
	ActionKeep ColumnAction = "keep" // template column present in the source
	ActionAdd  ColumnAction = "add"  // template column missing, filled empty
	ActionDrop ColumnAction = "drop" // source column absent from the template
)

// ColumnStatus is one row of the mapping preview the UI shows before a run.
type ColumnStatus struct {
	Name   string       `json:"name"`
	Action ColumnAction `json:"action"`
}

// Projection summarizes how a source table maps onto the template columns.
type Projection struct {
	Columns []ColumnStatus `json:"columns"`
	Kept    int            `json:"kept"`
	Added   int            `json:"added"`
	Dropped int            `json:"dropped"`
}

// Plan computes the projection mapping without touching any data. Column
// matching is exact and case-sensitive.
func Plan(template []string, source *model.Table) Projection {
	p := Projection{}
	for _, col := range template {
		if source.HasColumn(col) {
			p.Columns = append(p.Columns, ColumnStatus{Name: col, Action: ActionKeep})
			p.Kept++
		} else {
			p.Columns = append(p.Columns, ColumnStatus{Name: col, Action: ActionAdd})
			p.Added++
		}
	}
	tmpl := make(map[string]bool, len(template))
	for _, col := range template {
		tmpl[col] = true
	}
	for _, col := range source.Columns() {
		if !tmpl[col] {
			p.Columns = append(p.Columns, ColumnStatus{Name: col, Action: ActionDrop})
			p.Dropped++
		}
	}
	return p
}

// Project restricts a source table to exactly the template columns, in
// template order. Matched columns are copied, missing template columns come
// out empty, extra source columns are dropped. A zero-row source yields a
// header-only table.
func Project(template []string, source *model.Table, log *zap.Logger) (*model.Table, Projection) {
	plan := Plan(template, source)

	out := model.NewTable(template)
	for r := 0; r < source.RowCount(); r++ {
		row := out.AppendEmptyRow()
		for _, col := range template {
			if source.HasColumn(col) {
				out.SetCell(row, col, source.Cell(r, col))
			}
		}
	}

	log.Info("projected source onto template",
		zap.Int("kept", plan.Kept),
		zap.Int("added", plan.Added),
		zap.Int("dropped", plan.Dropped),
		zap.Int("rows", out.RowCount()))
	return out, plan
}
