// Package store holds the engine's persistent state: the per-job schedule
// history, the per-customer highlight sets, and the customer alias table.
// All three are flat JSON files constructed once per run and flushed at run
// end. The stores are additive; nothing is ever auto-deleted.
package store

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/i-machine-things/JobDocs-sub000/internal/model"
)

// HistoryStore persists the JobKey -> HistoryEntry map across runs.
//
// File format (schedule_history.json):
//
//	{ "<po>|<line>": {"scheduled_end_date": "...", "last_updated": "...", "po": "...", "line": "..."} }
type HistoryStore struct {
	path    string
	entries map[string]model.HistoryEntry
	log     *zap.Logger
}

// OpenHistory loads the history store. A missing file starts empty; an
// unreadable or corrupt file also starts empty but is logged loudly, since
// that silently resets change tracking.
func OpenHistory(path string, log *zap.Logger) *HistoryStore {
	s := &HistoryStore{
		path:    path,
		entries: make(map[string]model.HistoryEntry),
		log:     log,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("schedule history unreadable, starting with an empty store; change tracking is reset",
				zap.String("path", path), zap.Error(err))
		}
		return s
	}

	if err := json.Unmarshal(data, &s.entries); err != nil {
		log.Warn("schedule history corrupt, starting with an empty store; change tracking is reset",
			zap.String("path", path), zap.Error(err))
		s.entries = make(map[string]model.HistoryEntry)
	}
	return s
}

// Get returns the entry for a job key.
func (s *HistoryStore) Get(key string) (model.HistoryEntry, bool) {
	e, ok := s.entries[key]
	return e, ok
}

// Put overwrites the entry for a job key.
func (s *HistoryStore) Put(key string, e model.HistoryEntry) {
	s.entries[key] = e
}

// Len returns the number of tracked job keys.
func (s *HistoryStore) Len() int {
	return len(s.entries)
}

// Save writes the store back to disk.
func (s *HistoryStore) Save() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode schedule history: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write schedule history: %w", err)
	}
	s.log.Info("schedule history saved", zap.String("path", s.path), zap.Int("entries", len(s.entries)))
	return nil
}
