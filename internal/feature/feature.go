// Package feature holds the in-memory form of one vector dataset: an ordered
// list of features, each with named attributes and an optional geometry.
package feature

import (
	"github.com/paulmach/orb"

	"geoetl/internal/record"
)

// Attributes is an insertion-ordered set of uniquely named values. Order is
// kept only so table columns come out in a stable order; nothing downstream
// gives it meaning.
type Attributes struct {
	keys []string
	vals map[string]record.Value
}

// NewAttributes returns an empty attribute set with capacity for n keys.
func NewAttributes(n int) *Attributes {
	return &Attributes{
		keys: make([]string, 0, n),
		vals: make(map[string]record.Value, n),
	}
}

// Len returns the number of keys.
func (a *Attributes) Len() int { return len(a.keys) }

// Keys returns a copy of the keys in insertion order.
func (a *Attributes) Keys() []string {
	out := make([]string, len(a.keys))
	copy(out, a.keys)
	return out
}

// Has reports whether key is present (regardless of whether its value is Null).
func (a *Attributes) Has(key string) bool {
	_, ok := a.vals[key]
	return ok
}

// Get returns the value for key and whether it is present.
func (a *Attributes) Get(key string) (record.Value, bool) {
	v, ok := a.vals[key]
	return v, ok
}

// Set stores v under key, appending the key if it is new.
func (a *Attributes) Set(key string, v record.Value) {
	if _, ok := a.vals[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.vals[key] = v
}

// Delete removes key if present.
func (a *Attributes) Delete(key string) {
	if _, ok := a.vals[key]; !ok {
		return
	}
	delete(a.vals, key)
	for i, k := range a.keys {
		if k == key {
			a.keys = append(a.keys[:i], a.keys[i+1:]...)
			break
		}
	}
}

// Clone returns a deep copy.
func (a *Attributes) Clone() *Attributes {
	c := NewAttributes(len(a.keys))
	for _, k := range a.keys {
		c.Set(k, a.vals[k])
	}
	return c
}

// Feature is one spatial record. A nil Geometry means the record has no
// geometry. Geometry values are treated as immutable: transformations assign
// a new value instead of editing coordinates in place.
type Feature struct {
	Attrs    *Attributes
	Geometry orb.Geometry
}

// New returns a feature with empty attributes and the given geometry.
func New(g orb.Geometry) *Feature {
	return &Feature{Attrs: NewAttributes(8), Geometry: g}
}

// FeatureSet is the ordered collection of features read from one file.
type FeatureSet struct {
	// Name is the dataset identifier: the input file's base name without
	// extension.
	Name string
	// Path is the file the set was read from.
	Path string
	// SourceSRID is the declared EPSG code of the coordinates; 0 means the
	// file declared none.
	SourceSRID int
	// Fingerprint is a content hash of the input file.
	Fingerprint uint64
	Features    []*Feature
}

// Len returns the number of features.
func (fs *FeatureSet) Len() int { return len(fs.Features) }

// Schema returns the union of attribute keys across all features in
// first-seen order.
func (fs *FeatureSet) Schema() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, f := range fs.Features {
		for _, k := range f.Attrs.keys {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}

// HasField reports whether at least one feature carries key.
func (fs *FeatureSet) HasField(key string) bool {
	for _, f := range fs.Features {
		if f.Attrs.Has(key) {
			return true
		}
	}
	return false
}

// Flatten adds every schema key missing on a feature as Null so that all
// features share one key set. It returns the schema.
func (fs *FeatureSet) Flatten() []string {
	schema := fs.Schema()
	for _, f := range fs.Features {
		if f.Attrs.Len() == len(schema) {
			continue
		}
		for _, k := range schema {
			if !f.Attrs.Has(k) {
				f.Attrs.Set(k, record.NullValue())
			}
		}
	}
	return schema
}
