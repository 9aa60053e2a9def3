// Package schemamap resolves the per-dataset field rename rules.
//
// Rules come from a Provider (in production a workbook with one sheet per
// dataset). A dataset id matches a sheet when the two are equal under Unicode
// case folding. A dataset with no sheet gets an empty Mapping; that is not an
// error.
package schemamap

import (
	"log"
	"sync"

	"golang.org/x/text/cases"
)

// Pair renames the field Old to New.
type Pair struct {
	Old string
	New string
}

// Mapping is the ordered set of rename pairs for one dataset. Old names are
// unique within a Mapping.
type Mapping struct {
	Sheet string
	Pairs []Pair
}

// Empty reports whether the mapping has no pairs.
func (m Mapping) Empty() bool { return len(m.Pairs) == 0 }

// Provider exposes rename rules grouped by sheet name.
type Provider interface {
	SheetNames() ([]string, error)
	PairsFor(sheet string) ([]Pair, error)
}

// Mapper looks up Mappings by dataset id and caches them for the run.
// It is safe for concurrent use.
type Mapper struct {
	provider Provider
	logger   *log.Logger

	// folded sheet name -> original sheet name
	sheets map[string]string
	order  []string

	mu    sync.Mutex
	cache map[string]Mapping
}

// NewMapper reads the sheet list once. When the provider cannot be read the
// error is logged and the mapper behaves as if no sheets exist, so every
// dataset proceeds without renaming.
func NewMapper(p Provider, logger *log.Logger) *Mapper {
	m := &Mapper{
		provider: p,
		logger:   logger,
		sheets:   map[string]string{},
		cache:    map[string]Mapping{},
	}
	if p == nil {
		logger.Printf("schemamap: no mapping source configured; datasets load without renaming")
		return m
	}
	names, err := p.SheetNames()
	if err != nil {
		logger.Printf("ERROR schemamap: read sheet names: %v; continuing without rename mappings", err)
		return m
	}
	for _, n := range names {
		k := fold(n)
		if prev, dup := m.sheets[k]; dup {
			logger.Printf("WARN schemamap: sheets %q and %q differ only by case; using %q", prev, n, prev)
			continue
		}
		m.sheets[k] = n
		m.order = append(m.order, n)
	}
	logger.Printf("schemamap: loaded sheets=%d", len(m.order))
	return m
}

// SheetNames returns the available sheet names in provider order.
func (m *Mapper) SheetNames() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Lookup returns the Mapping for datasetID. No matching sheet, or a sheet
// whose pairs cannot be read, yields an empty Mapping.
func (m *Mapper) Lookup(datasetID string) Mapping {
	sheet, ok := m.sheets[fold(datasetID)]
	if !ok {
		return Mapping{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.cache[sheet]; ok {
		return cached
	}

	pairs, err := m.provider.PairsFor(sheet)
	if err != nil {
		m.logger.Printf("ERROR schemamap: read pairs for sheet %q: %v; dataset %q loads without renaming", sheet, err, datasetID)
		pairs = nil
	}
	mp := Mapping{Sheet: sheet, Pairs: dedupe(pairs)}
	m.cache[sheet] = mp
	return mp
}

// dedupe drops pairs with an empty name and keeps the first pair for each
// Old name.
func dedupe(pairs []Pair) []Pair {
	seen := make(map[string]struct{}, len(pairs))
	out := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if p.Old == "" || p.New == "" {
			continue
		}
		if _, ok := seen[p.Old]; ok {
			continue
		}
		seen[p.Old] = struct{}{}
		out = append(out, p)
	}
	return out
}

// fold returns the case-folded form of s. A new Caser is used per call
// because Casers are stateful.
func fold(s string) string {
	return cases.Fold().String(s)
}
