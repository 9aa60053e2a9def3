package transformer

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"geoetl/internal/feature"
	"geoetl/internal/record"
	"geoetl/internal/schemamap"
)

// Field names read or written by Enrich.
const (
	FieldBlockID        = "blockid"
	FieldPUID           = "puid"
	FieldGeometryType   = "Geometry_Type"
	FieldGeometryStatus = "Geometry_Status"
	FieldCreatedDate    = "created_date"
	FieldLastEditedDate = "last_edited_date"
)

// Geometry_Status values. Unknown is also the Geometry_Type of a feature
// without geometry.
const (
	StatusNew     = "New"
	StatusUpdated = "Updated"
	StatusUnknown = "Unknown"
)

// Stats counts what Enrich did to one dataset.
type Stats struct {
	Features      int
	PUIDSet       int
	UnknownType   int
	StatusNew     int
	StatusUpdated int
	StatusUnknown int
	// Renamed is the number of per-feature key renames applied.
	Renamed int
	// RenamedFields lists the old names that matched at least once.
	RenamedFields []string
	// Overwritten counts renames that replaced an existing field.
	Overwritten int
	Columns     int
}

// Enrich derives puid, Geometry_Type and Geometry_Status, applies the rename
// mapping, and flattens the set so every feature has the same keys. Derived
// fields are computed before renaming, so a mapping may rename them.
//
// A failure (including a panic) on any feature aborts the whole set; the
// features may then be partly enriched and should be discarded.
func Enrich(fs *feature.FeatureSet, m schemamap.Mapping, logger *log.Logger) (st Stats, err error) {
	if fs == nil {
		return st, fmt.Errorf("enrich: nil feature set")
	}
	st.Features = fs.Len()

	cur := -1
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("enrich: dataset=%s feature=%d: panic: %v", fs.Name, cur, r)
		}
	}()

	for i, f := range fs.Features {
		if f == nil || f.Attrs == nil {
			return st, fmt.Errorf("enrich: dataset=%s feature=%d: missing attributes", fs.Name, i)
		}
	}

	steps := Chain{
		Func(func(fs *feature.FeatureSet) error {
			if !fs.HasField(FieldBlockID) {
				logger.Printf("enrich: dataset=%s step=puid skipped: no %s field", fs.Name, FieldBlockID)
				return nil
			}
			for i, f := range fs.Features {
				cur = i
				if v, ok := f.Attrs.Get(FieldBlockID); ok {
					f.Attrs.Set(FieldPUID, v)
					st.PUIDSet++
				}
			}
			logger.Printf("enrich: dataset=%s step=puid set=%d", fs.Name, st.PUIDSet)
			return nil
		}),
		Func(func(fs *feature.FeatureSet) error {
			for i, f := range fs.Features {
				cur = i
				f.Attrs.Set(FieldGeometryType, record.StringValue(geometryType(f)))
				if f.Geometry == nil {
					st.UnknownType++
				}
			}
			logger.Printf("enrich: dataset=%s step=geometry_type features=%d unknown=%d", fs.Name, st.Features, st.UnknownType)
			return nil
		}),
		Func(func(fs *feature.FeatureSet) error {
			datesInSchema := fs.HasField(FieldCreatedDate) && fs.HasField(FieldLastEditedDate)
			for i, f := range fs.Features {
				cur = i
				s := StatusUnknown
				if datesInSchema {
					s = geometryStatus(f.Attrs)
				}
				switch s {
				case StatusNew:
					st.StatusNew++
				case StatusUpdated:
					st.StatusUpdated++
				default:
					st.StatusUnknown++
				}
				f.Attrs.Set(FieldGeometryStatus, record.StringValue(s))
			}
			if !datesInSchema {
				logger.Printf("enrich: dataset=%s step=geometry_status fallback=%s: %s or %s not in schema",
					fs.Name, StatusUnknown, FieldCreatedDate, FieldLastEditedDate)
				return nil
			}
			logger.Printf("enrich: dataset=%s step=geometry_status new=%d updated=%d unknown=%d",
				fs.Name, st.StatusNew, st.StatusUpdated, st.StatusUnknown)
			return nil
		}),
		Func(func(fs *feature.FeatureSet) error {
			cur = -1
			renameAll(fs, m, &st, logger)
			return nil
		}),
		Func(func(fs *feature.FeatureSet) error {
			cur = -1
			st.Columns = len(fs.Flatten())
			logger.Printf("enrich: dataset=%s step=flatten columns=%d", fs.Name, st.Columns)
			return nil
		}),
	}
	if err := steps.Apply(fs); err != nil {
		return st, err
	}
	return st, nil
}

func geometryType(f *feature.Feature) string {
	if f.Geometry == nil {
		return StatusUnknown
	}
	return f.Geometry.GeoJSONType()
}

// geometryStatus compares the two date fields by their string form. Either
// one missing, Null or blank gives Unknown.
func geometryStatus(a *feature.Attributes) string {
	created, ok1 := a.Get(FieldCreatedDate)
	edited, ok2 := a.Get(FieldLastEditedDate)
	if !ok1 || !ok2 || created.IsBlank() || edited.IsBlank() {
		return StatusUnknown
	}
	if created.String() == edited.String() {
		return StatusNew
	}
	return StatusUpdated
}

func renameAll(fs *feature.FeatureSet, m schemamap.Mapping, st *Stats, logger *log.Logger) {
	if m.Empty() {
		logger.Printf("enrich: dataset=%s step=rename skipped: no mapping", fs.Name)
		return
	}

	matched := map[string]struct{}{}
	for _, f := range fs.Features {
		renamed, overwritten := renameFeature(f, m.Pairs, matched)
		st.Renamed += renamed
		st.Overwritten += overwritten
	}
	for k := range matched {
		st.RenamedFields = append(st.RenamedFields, k)
	}
	sort.Strings(st.RenamedFields)

	if st.Overwritten > 0 {
		logger.Printf("WARN enrich: dataset=%s step=rename overwrote existing fields %d times", fs.Name, st.Overwritten)
	}
	logger.Printf("enrich: dataset=%s step=rename sheet=%q pairs=%d renamed=%d fields=[%s]",
		fs.Name, m.Sheet, len(m.Pairs), st.Renamed, strings.Join(st.RenamedFields, ","))
}

// renameFeature applies every pair against the attributes as they were before
// the first rename, so a→b with b→a swaps the two values. A renamed key keeps
// its old position. When several keys end up under one name the last pair in
// mapping order wins and each discarded value counts as an overwrite.
func renameFeature(f *feature.Feature, pairs []schemamap.Pair, matched map[string]struct{}) (renamed, overwritten int) {
	target := make(map[string]string, len(pairs)) // old -> new
	winner := make(map[string]string, len(pairs)) // new -> old
	for _, p := range pairs {
		if !f.Attrs.Has(p.Old) {
			continue
		}
		target[p.Old] = p.New
		winner[p.New] = p.Old
		matched[p.Old] = struct{}{}
		renamed++
	}
	if renamed == 0 {
		return 0, 0
	}

	next := feature.NewAttributes(f.Attrs.Len())
	for _, k := range f.Attrs.Keys() {
		v, _ := f.Attrs.Get(k)
		if nk, ok := target[k]; ok {
			if winner[nk] != k {
				overwritten++
				continue
			}
			next.Set(nk, v)
			continue
		}
		if _, ok := winner[k]; ok {
			overwritten++
			continue
		}
		next.Set(k, v)
	}
	f.Attrs = next
	return renamed, overwritten
}
