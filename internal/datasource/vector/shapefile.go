package vector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"geoetl/internal/feature"
	"geoetl/internal/record"
)

func readShapefile(ctx context.Context, path string) (*feature.FeatureSet, error) {
	fp, err := fingerprint(path)
	if err != nil {
		return nil, fmt.Errorf("vector: open %s: %w", path, err)
	}
	srid, err := readPRJ(path)
	if err != nil {
		return nil, fmt.Errorf("vector: read projection for %s: %w", path, err)
	}

	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vector: open %s: %w", path, err)
	}
	defer r.Close()

	fields := r.Fields()
	fs := &feature.FeatureSet{SourceSRID: srid, Fingerprint: fp}
	for r.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, shape := r.Shape()
		g, err := shapeGeometry(shape)
		if err != nil {
			return nil, fmt.Errorf("vector: %s record %d: %w", path, row, err)
		}
		f := feature.New(g)
		for i, fld := range fields {
			v, err := dbfValue(fld, r.ReadAttribute(row, i))
			if err != nil {
				return nil, fmt.Errorf("vector: %s record %d field %s: %w", path, row, fld, err)
			}
			f.Attrs.Set(fld.String(), v)
		}
		fs.Features = append(fs.Features, f)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("vector: read %s: %w", path, err)
	}
	return fs, nil
}

// shapeGeometry converts a shape to its orb equivalent. Z and M values are
// dropped.
func shapeGeometry(s shp.Shape) (orb.Geometry, error) {
	switch v := s.(type) {
	case nil, *shp.Null:
		return nil, nil
	case *shp.Point:
		return orb.Point{v.X, v.Y}, nil
	case *shp.PointZ:
		return orb.Point{v.X, v.Y}, nil
	case *shp.PointM:
		return orb.Point{v.X, v.Y}, nil
	case *shp.MultiPoint:
		return multiPoint(v.Points), nil
	case *shp.MultiPointZ:
		return multiPoint(v.Points), nil
	case *shp.MultiPointM:
		return multiPoint(v.Points), nil
	case *shp.PolyLine:
		return lines(v.Parts, v.Points), nil
	case *shp.PolyLineZ:
		return lines(v.Parts, v.Points), nil
	case *shp.PolyLineM:
		return lines(v.Parts, v.Points), nil
	case *shp.Polygon:
		return polygons(v.Parts, v.Points), nil
	case *shp.PolygonZ:
		return polygons(v.Parts, v.Points), nil
	case *shp.PolygonM:
		return polygons(v.Parts, v.Points), nil
	default:
		return nil, fmt.Errorf("unsupported shape type %T", s)
	}
}

func multiPoint(pts []shp.Point) orb.Geometry {
	mp := make(orb.MultiPoint, len(pts))
	for i, p := range pts {
		mp[i] = orb.Point{p.X, p.Y}
	}
	return mp
}

// splitParts cuts points into the parts that start at each offset.
func splitParts(parts []int32, pts []shp.Point) [][]orb.Point {
	out := make([][]orb.Point, 0, len(parts))
	for i, start := range parts {
		end := int32(len(pts))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || int(end) > len(pts) {
			continue
		}
		seg := make([]orb.Point, 0, end-start)
		for _, p := range pts[start:end] {
			seg = append(seg, orb.Point{p.X, p.Y})
		}
		out = append(out, seg)
	}
	return out
}

func lines(parts []int32, pts []shp.Point) orb.Geometry {
	segs := splitParts(parts, pts)
	if len(segs) == 1 {
		return orb.LineString(segs[0])
	}
	mls := make(orb.MultiLineString, len(segs))
	for i, s := range segs {
		mls[i] = orb.LineString(s)
	}
	return mls
}

// polygons groups rings into polygons. Shapefile outer rings run clockwise
// and holes counter-clockwise; a hole belongs to the outer ring before it.
// The result is rewound to counter-clockwise exteriors by orient.
func polygons(parts []int32, pts []shp.Point) orb.Geometry {
	var mp orb.MultiPolygon
	for _, seg := range splitParts(parts, pts) {
		ring := orb.Ring(seg)
		if ring.Orientation() == orb.CCW && len(mp) > 0 {
			last := len(mp) - 1
			mp[last] = append(mp[last], ring)
			continue
		}
		mp = append(mp, orb.Polygon{ring})
	}
	switch len(mp) {
	case 0:
		return nil
	case 1:
		return orient(mp[0])
	}
	return orient(mp)
}

// dbfValue converts one DBF cell. Blank cells are Null.
func dbfValue(f shp.Field, raw string) (record.Value, error) {
	s := strings.TrimSpace(strings.Trim(raw, "\x00"))
	if s == "" {
		return record.NullValue(), nil
	}
	switch f.Fieldtype {
	case 'N':
		if f.Precision == 0 {
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return record.IntValue(i), nil
			}
		}
		fallthrough
	case 'F':
		x, err := strconv.ParseFloat(s, 64)
		if err != nil {
			if strings.Trim(s, "*") == "" {
				// numeric overflow marker
				return record.NullValue(), nil
			}
			return record.Value{}, err
		}
		return record.FloatValue(x), nil
	case 'L':
		switch s {
		case "T", "t", "Y", "y":
			return record.BoolValue(true), nil
		case "F", "f", "N", "n":
			return record.BoolValue(false), nil
		}
		return record.NullValue(), nil
	case 'D':
		if strings.Trim(s, "0") == "" {
			return record.NullValue(), nil
		}
		if t, err := time.Parse("20060102", s); err == nil {
			return record.TimeValue(t), nil
		}
		return record.StringValue(s), nil
	default:
		return record.StringValue(s), nil
	}
}
