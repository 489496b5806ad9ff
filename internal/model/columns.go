package model

// Canonical column names the engine keys on. Matching is exact and
// case-sensitive, the same as the template projection.
const (
	ColJobID    = "Job ID"
	ColPONumber = "Customer PO Number"
	ColLine     = "Line"
	ColSchedEnd = "Scheduled End Date"
	ColNotes    = "Notes"
	ColStatus   = "Status"
	ColCustomer = "Customer"
)

// StatusComplete marks a job row as finished.
const StatusComplete = "Complete"
