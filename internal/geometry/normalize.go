// Package geometry reprojects feature geometries to WGS 84 and encodes them
// as hex WKB for loading.
//
// Work is split into contiguous index ranges run on an errgroup. Every
// worker writes only to its own features, so results do not depend on
// scheduling.
package geometry

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log"
	"runtime"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/project"
	"golang.org/x/sync/errgroup"

	"geoetl/internal/feature"
	"geoetl/internal/record"
)

// Normalizer reprojects and encodes feature sets.
type Normalizer struct {
	// Workers bounds the goroutines used per call. Zero means GOMAXPROCS.
	Workers int
	Logger  *log.Logger
}

// New returns a Normalizer.
func New(workers int, logger *log.Logger) *Normalizer {
	return &Normalizer{Workers: workers, Logger: logger}
}

// Reproject converts every geometry in fs to target, which must be WGS 84.
// A set with no declared coordinate system is left as is and assumed to be
// WGS 84; that is logged as a warning. Geometries are replaced, never edited
// in place.
func (n *Normalizer) Reproject(ctx context.Context, fs *feature.FeatureSet, target int) error {
	if target != WGS84 {
		return fmt.Errorf("geometry: target EPSG:%d: %w", target, ErrUnsupportedSRID)
	}
	switch fs.SourceSRID {
	case 0:
		n.Logger.Printf("WARN geometry: dataset=%s declares no coordinate system; assuming EPSG:%d", fs.Name, target)
		return nil
	case target:
		return nil
	}

	proj, err := TransformFor(fs.SourceSRID)
	if err != nil {
		return fmt.Errorf("geometry: dataset=%s: %w", fs.Name, err)
	}
	err = n.forEach(ctx, fs.Len(), func(i int) error {
		f := fs.Features[i]
		if f.Geometry == nil {
			return nil
		}
		bad := false
		g := project.Geometry(orb.Clone(f.Geometry), func(p orb.Point) orb.Point {
			q := proj(p)
			if !finite(q) {
				bad = true
			}
			return q
		})
		if bad {
			return fmt.Errorf("feature %d: EPSG:%d coordinates outside the transform's domain", i, fs.SourceSRID)
		}
		f.Geometry = g
		return nil
	})
	if err != nil {
		return fmt.Errorf("geometry: reproject dataset=%s: %w", fs.Name, err)
	}
	n.Logger.Printf("geometry: dataset=%s reprojected features=%d from=EPSG:%d to=EPSG:%d", fs.Name, fs.Len(), fs.SourceSRID, target)
	fs.SourceSRID = target
	return nil
}

// Encode stores each feature's geometry as lowercase hex little-endian WKB
// in the attribute column. A feature without geometry gets Null.
func (n *Normalizer) Encode(ctx context.Context, fs *feature.FeatureSet, column string) error {
	err := n.forEach(ctx, fs.Len(), func(i int) error {
		f := fs.Features[i]
		if f.Geometry == nil {
			f.Attrs.Set(column, record.NullValue())
			return nil
		}
		s, err := wkb.MarshalToHex(f.Geometry, binary.LittleEndian)
		if err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
		f.Attrs.Set(column, record.StringValue(s))
		return nil
	})
	if err != nil {
		return fmt.Errorf("geometry: encode dataset=%s: %w", fs.Name, err)
	}
	return nil
}

// Decode parses a hex WKB string as produced by Encode.
func Decode(s string) (orb.Geometry, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("geometry: decode hex: %w", err)
	}
	g, err := wkb.Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("geometry: decode wkb: %w", err)
	}
	return g, nil
}

func (n *Normalizer) workers() int {
	if n.Workers > 0 {
		return n.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// forEach calls fn for every index in [0, count) on up to n.workers()
// goroutines, each owning one contiguous range. The first error cancels
// the rest.
func (n *Normalizer) forEach(ctx context.Context, count int, fn func(i int) error) error {
	if count == 0 {
		return ctx.Err()
	}
	w := n.workers()
	if w > count {
		w = count
	}
	chunk := (count + w - 1) / w

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < count; start += chunk {
		lo, hi := start, min(start+chunk, count)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := fn(i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
