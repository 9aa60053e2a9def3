package vector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb/geojson"

	"geoetl/internal/feature"
)

// EncodeGeoJSON renders fs as a FeatureCollection. Attributes named in omit
// are left out.
func EncodeGeoJSON(fs *feature.FeatureSet, omit ...string) ([]byte, error) {
	skip := make(map[string]struct{}, len(omit))
	for _, k := range omit {
		skip[k] = struct{}{}
	}

	fc := geojson.NewFeatureCollection()
	for _, f := range fs.Features {
		gf := geojson.NewFeature(f.Geometry)
		for _, k := range f.Attrs.Keys() {
			if _, ok := skip[k]; ok {
				continue
			}
			v, _ := f.Attrs.Get(k)
			gf.Properties[k] = v.Any()
		}
		fc.Append(gf)
	}
	return json.Marshal(fc)
}

// WriteGeoJSON writes fs to path, creating the parent directory if needed.
// The file is written to a temporary name first and renamed into place.
func WriteGeoJSON(path string, fs *feature.FeatureSet, omit ...string) error {
	data, err := EncodeGeoJSON(fs, omit...)
	if err != nil {
		return fmt.Errorf("vector: encode %s: %w", fs.Name, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("vector: create output dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("vector: write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("vector: write %s: %w", path, err)
	}
	return nil
}
