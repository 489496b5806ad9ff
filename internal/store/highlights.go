package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"
)

// HighlightStore persists each customer's Highlight Set between runs, so
// carried-over emphasis no longer has to be re-derived from cell formatting
// in the previous workbook.
//
// File format (report_highlights.json):
//
//	{ "<customer folder>": ["<job key>", ...] }
type HighlightStore struct {
	path string
	sets map[string][]string
	log  *zap.Logger
}

// OpenHighlights loads the highlight store, falling back to empty on a
// missing or unreadable file. Losing this file only degrades highlight
// carry-over, so the fallback is quiet compared to the history store.
func OpenHighlights(path string, log *zap.Logger) *HighlightStore {
	s := &HighlightStore{
		path: path,
		sets: make(map[string][]string),
		log:  log,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	if err := json.Unmarshal(data, &s.sets); err != nil {
		log.Warn("highlight store corrupt, starting empty", zap.String("path", path), zap.Error(err))
		s.sets = make(map[string][]string)
	}
	return s
}

// Get returns the persisted highlight keys for a customer.
func (s *HighlightStore) Get(customer string) []string {
	return append([]string(nil), s.sets[customer]...)
}

// Has reports whether any set was ever persisted for a customer. An empty
// recorded set is distinct from no record at all: only the latter triggers
// the formatting read-back fallback.
func (s *HighlightStore) Has(customer string) bool {
	_, ok := s.sets[customer]
	return ok
}

// Set replaces a customer's highlight keys.
func (s *HighlightStore) Set(customer string, keys map[string]bool) {
	list := make([]string, 0, len(keys))
	for k := range keys {
		list = append(list, k)
	}
	sort.Strings(list)
	s.sets[customer] = list
}

// Save writes the store back to disk.
func (s *HighlightStore) Save() error {
	data, err := json.MarshalIndent(s.sets, "", "  ")
	if err != nil {
		return fmt.Errorf("encode highlight store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write highlight store: %w", err)
	}
	return nil
}
