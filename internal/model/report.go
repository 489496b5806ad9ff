package model

import "time"

// CustomerRunReport summarizes one customer's pass through the pipeline.
type CustomerRunReport struct {
	Customer        string        `json:"customer"`
	OutputPath      string        `json:"outputPath,omitempty"`
	Rows            int           `json:"rows"`
	ColumnsKept     int           `json:"columnsKept"`
	ColumnsAdded    int           `json:"columnsAdded"`
	ColumnsDropped  int           `json:"columnsDropped"`
	ScheduleChanges int           `json:"scheduleChanges"`
	NewlyCompleted  int           `json:"newlyCompleted"`
	CarriedForward  int           `json:"carriedForward"`
	Highlights      int           `json:"highlights"`
	Error           string        `json:"error,omitempty"`
	Duration        time.Duration `json:"duration"`
}

// BatchReport summarizes a whole orchestrator run.
type BatchReport struct {
	RunID     string              `json:"runId"`
	Mode      string              `json:"mode"` // "single" or "auto"
	Attempted int                 `json:"attempted"`
	Succeeded int                 `json:"succeeded"`
	Customers []CustomerRunReport `json:"customers"`
	Unmatched []string            `json:"unmatched,omitempty"`
	Duration  time.Duration       `json:"duration"`
}
