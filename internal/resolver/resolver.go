// Package resolver maps free-text customer names from shop-floor extracts to
// canonical customer folder names.
package resolver

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"

	"github.com/i-machine-things/JobDocs-sub000/internal/store"
)

// DefaultThreshold is the minimum score a candidate must reach to count as a
// match.
const DefaultThreshold = 0.6

// containmentScore is assigned when one normalized name contains the other.
const containmentScore = 0.9

// Source identifies which resolution stage produced a match.
type Source string

const (
	SourceNone        Source = "none"
	SourceAlias       Source = "alias"
	SourceExact       Source = "exact"
	SourceContainment Source = "containment"
	SourceFuzzy       Source = "fuzzy"
)

// Resolution is the outcome of resolving one name. Folder is empty when no
// candidate reached the threshold; Score still reports the best score seen.
type Resolution struct {
	Folder string  `json:"folder"`
	Score  float64 `json:"score"`
	Source Source  `json:"source"`
}

// Resolver resolves names against a fixed candidate folder list, consulting
// the alias table first. Passing a nil alias store disables aliasing, which
// makes resolution fully deterministic for batch tests.
type Resolver struct {
	folders    []string
	normalized []string
	aliases    *store.AliasStore
	threshold  float64
	log        *zap.Logger
}

// New creates a resolver over the canonical folder list.
func New(folders []string, aliases *store.AliasStore, threshold float64, log *zap.Logger) *Resolver {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	r := &Resolver{
		folders:    append([]string(nil), folders...),
		normalized: make([]string, len(folders)),
		aliases:    aliases,
		threshold:  threshold,
		log:        log,
	}
	for i, f := range r.folders {
		r.normalized[i] = NormalizeName(f)
	}
	return r
}

// Resolve maps a raw name to a canonical folder. Order: alias lookup, exact
// normalized match, containment, fuzzy ratio; the first stage that produces
// an acceptable candidate wins.
func (r *Resolver) Resolve(name string) Resolution {
	raw := strings.TrimSpace(name)
	if raw == "" {
		return Resolution{Source: SourceNone}
	}

	// Stage 1: manual alias, honored only while its target folder exists.
	if r.aliases != nil {
		if folder, ok := r.aliases.Lookup(raw); ok {
			if r.hasFolder(folder) {
				return Resolution{Folder: folder, Score: 1.0, Source: SourceAlias}
			}
			r.log.Warn("stale customer alias ignored, target folder missing",
				zap.String("name", raw), zap.String("folder", folder))
		}
	}

	n := NormalizeName(raw)
	if n == "" {
		return Resolution{Source: SourceNone}
	}

	// Stage 2: exact match on normalized forms.
	if best, ok := r.pick(func(cand string) (float64, bool) {
		if cand == n {
			return 1.0, true
		}
		return 0, false
	}); ok {
		return Resolution{Folder: r.folders[best], Score: 1.0, Source: SourceExact}
	}

	// Stage 3: containment either way.
	if best, ok := r.pick(func(cand string) (float64, bool) {
		if cand != "" && (strings.Contains(cand, n) || strings.Contains(n, cand)) {
			return containmentScore, true
		}
		return 0, false
	}); ok {
		return Resolution{Folder: r.folders[best], Score: containmentScore, Source: SourceContainment}
	}

	// Stage 4: fuzzy similarity ratio.
	bestScore := 0.0
	best, ok := r.pick(func(cand string) (float64, bool) {
		score := similarity(n, cand)
		if score > bestScore {
			bestScore = score
		}
		return score, score > 0
	})
	if ok && bestScore >= r.threshold {
		return Resolution{Folder: r.folders[best], Score: bestScore, Source: SourceFuzzy}
	}
	return Resolution{Score: bestScore, Source: SourceNone}
}

// RecordCorrection persists a manual mapping from a raw name to a folder.
// Future resolutions of that exact string return the folder at score 1.0.
func (r *Resolver) RecordCorrection(name, folder string) {
	if r.aliases == nil {
		return
	}
	r.aliases.Record(name, folder)
}

// Folders returns the canonical folder list.
func (r *Resolver) Folders() []string {
	return append([]string(nil), r.folders...)
}

func (r *Resolver) hasFolder(folder string) bool {
	for _, f := range r.folders {
		if f == folder {
			return true
		}
	}
	return false
}

// pick scores every candidate and returns the index of the best one.
// Equal scores break to the shortest normalized name, then the
// lexicographically smallest folder, so results never depend on iteration
// order.
func (r *Resolver) pick(score func(cand string) (float64, bool)) (int, bool) {
	best := -1
	bestScore := 0.0
	for i, cand := range r.normalized {
		s, ok := score(cand)
		if !ok {
			continue
		}
		if best < 0 || s > bestScore || (s == bestScore && r.beats(i, best)) {
			best = i
			bestScore = s
		}
	}
	return best, best >= 0
}

func (r *Resolver) beats(i, j int) bool {
	if len(r.normalized[i]) != len(r.normalized[j]) {
		return len(r.normalized[i]) < len(r.normalized[j])
	}
	return r.folders[i] < r.folders[j]
}

// similarity is the Ratcliff/Obershelp ratio between two normalized names,
// the same measure the original matching logic used.
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}
