// Package vector reads geospatial vector files into feature sets and writes
// transformed sets back out as GeoJSON.
package vector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/xxh3"

	"geoetl/internal/feature"
)

// ErrUnsupportedFormat is returned by Open for extensions no reader handles.
var ErrUnsupportedFormat = errors.New("vector: unsupported file format")

// DefaultExtensions are the input extensions Open understands.
var DefaultExtensions = []string{".geojson", ".json", ".shp"}

// DatasetName returns the dataset identifier for path: the base name
// without its extension.
func DatasetName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Open reads the vector file at path. The reader is chosen by extension.
func Open(ctx context.Context, path string) (*feature.FeatureSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		fs  *feature.FeatureSet
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".geojson", ".json":
		fs, err = readGeoJSONFile(ctx, path)
	case ".shp":
		fs, err = readShapefile(ctx, path)
	default:
		return nil, fmt.Errorf("%w: %q (%s)", ErrUnsupportedFormat, ext, path)
	}
	if err != nil {
		return nil, err
	}
	fs.Name = DatasetName(path)
	fs.Path = path
	return fs, nil
}

// fingerprint hashes the file at path with xxh3.
func fingerprint(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}
