package model

// HistoryEntry mirrors one record of schedule_history.json. The file format
// is shared with the surrounding application and hand-inspected by operators,
// so field names and layouts are fixed.
type HistoryEntry struct {
	ScheduledEndDate string `json:"scheduled_end_date"`
	LastUpdated      string `json:"last_updated"`
	PO               string `json:"po"`
	Line             string `json:"line"`
}

// Timestamp layouts used inside the history store.
const (
	HistoryDateLayout  = "2006-01-02"
	HistoryStampLayout = "2006-01-02 15:04:05"
	NoteStampLayout    = "01/02"
)
