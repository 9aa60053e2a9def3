// Package transformer rewrites feature sets in place: derived attributes,
// field renames and schema flattening.
package transformer

import "geoetl/internal/feature"

// Transformer rewrites a feature set in place.
type Transformer interface {
	Apply(fs *feature.FeatureSet) error
}

// Func adapts a function to Transformer.
type Func func(fs *feature.FeatureSet) error

// Apply calls f(fs).
func (f Func) Apply(fs *feature.FeatureSet) error { return f(fs) }

// Chain is an ordered list of transformers. Apply stops at the first error.
type Chain []Transformer

func (c Chain) Apply(fs *feature.FeatureSet) error {
	for _, t := range c {
		if err := t.Apply(fs); err != nil {
			return err
		}
	}
	return nil
}
