package store

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

// AliasStore persists manual customer-name corrections.
//
// File format (customer_aliases.json):
//
//	{ "<RAW NAME UPPERCASE>": "<canonical folder>" }
type AliasStore struct {
	path    string
	aliases map[string]string
	log     *zap.Logger
}

// OpenAliases loads the alias store, falling back to an empty table on a
// missing or unreadable file.
func OpenAliases(path string, log *zap.Logger) *AliasStore {
	s := &AliasStore{
		path:    path,
		aliases: make(map[string]string),
		log:     log,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("customer aliases unreadable, starting with an empty table",
				zap.String("path", path), zap.Error(err))
		}
		return s
	}

	if err := json.Unmarshal(data, &s.aliases); err != nil {
		log.Warn("customer aliases corrupt, starting with an empty table",
			zap.String("path", path), zap.Error(err))
		s.aliases = make(map[string]string)
	}
	return s
}

// Key normalizes a raw source name to its alias-table key.
func Key(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Lookup returns the canonical folder an exact raw name was manually mapped
// to, if any.
func (s *AliasStore) Lookup(raw string) (string, bool) {
	folder, ok := s.aliases[Key(raw)]
	return folder, ok
}

// Record stores a manual correction. Later resolutions of the same raw name
// return the folder deterministically.
func (s *AliasStore) Record(raw, folder string) {
	key := Key(raw)
	if key == "" || folder == "" {
		return
	}
	s.aliases[key] = folder
	s.log.Info("customer alias recorded", zap.String("name", key), zap.String("folder", folder))
}

// Len returns the number of recorded aliases.
func (s *AliasStore) Len() int {
	return len(s.aliases)
}

// Save writes the table back to disk.
func (s *AliasStore) Save() error {
	data, err := json.MarshalIndent(s.aliases, "", "  ")
	if err != nil {
		return fmt.Errorf("encode customer aliases: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write customer aliases: %w", err)
	}
	return nil
}
