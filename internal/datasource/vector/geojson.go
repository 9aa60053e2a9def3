package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/zeebo/xxh3"

	"geoetl/internal/datasource/file"
	"geoetl/internal/feature"
	"geoetl/internal/record"
)

// rawDocument is the subset of a GeoJSON document the reader needs.
// Properties are kept raw so their key order survives decoding.
type rawDocument struct {
	Type     string          `json:"type"`
	CRS      *rawCRS         `json:"crs"`
	Features []rawFeature    `json:"features"`
	Geometry json.RawMessage `json:"geometry"`
	Props    json.RawMessage `json:"properties"`
}

type rawFeature struct {
	Type     string          `json:"type"`
	Geometry json.RawMessage `json:"geometry"`
	Props    json.RawMessage `json:"properties"`
}

// rawCRS is the pre-RFC 7946 "crs" member.
type rawCRS struct {
	Type       string `json:"type"`
	Properties struct {
		Name string `json:"name"`
	} `json:"properties"`
}

func readGeoJSONFile(ctx context.Context, path string) (*feature.FeatureSet, error) {
	rc, err := file.NewLocal(path).Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("vector: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("vector: read %s: %w", path, err)
	}
	fs, err := DecodeGeoJSON(data)
	if err != nil {
		return nil, fmt.Errorf("vector: %s: %w", path, err)
	}
	fs.Fingerprint = xxh3.Hash(data)
	return fs, nil
}

// DecodeGeoJSON parses a FeatureCollection (or a single Feature) into a
// FeatureSet. Name and Path are left empty.
func DecodeGeoJSON(data []byte) (*feature.FeatureSet, error) {
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}

	var raws []rawFeature
	switch doc.Type {
	case "FeatureCollection":
		raws = doc.Features
	case "Feature":
		raws = []rawFeature{{Type: doc.Type, Geometry: doc.Geometry, Props: doc.Props}}
	default:
		return nil, fmt.Errorf("decode geojson: unsupported document type %q", doc.Type)
	}

	fs := &feature.FeatureSet{Features: make([]*feature.Feature, 0, len(raws))}
	if doc.CRS != nil {
		fs.SourceSRID = SRIDFromName(doc.CRS.Properties.Name)
	}

	for i, rf := range raws {
		if rf.Type != "Feature" {
			return nil, fmt.Errorf("decode geojson: feature %d: unexpected type %q", i, rf.Type)
		}
		g, err := decodeGeometry(rf.Geometry)
		if err != nil {
			return nil, fmt.Errorf("decode geojson: feature %d geometry: %w", i, err)
		}
		attrs, err := decodeProperties(rf.Props)
		if err != nil {
			return nil, fmt.Errorf("decode geojson: feature %d properties: %w", i, err)
		}
		fs.Features = append(fs.Features, &feature.Feature{Attrs: attrs, Geometry: g})
	}
	return fs, nil
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func decodeGeometry(raw json.RawMessage) (orb.Geometry, error) {
	if isNull(raw) {
		return nil, nil
	}
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, err
	}
	return orient(g.Geometry()), nil
}

// decodeProperties walks the properties object token by token so the
// attribute order matches the document.
func decodeProperties(raw json.RawMessage) (*feature.Attributes, error) {
	if isNull(raw) {
		return feature.NewAttributes(0), nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("properties must be an object")
	}

	attrs := feature.NewAttributes(16)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("property %q: %w", key, err)
		}
		val, err := jsonValue(v)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", key, err)
		}
		attrs.Set(key, val)
	}
	return attrs, nil
}

// jsonValue converts a decoded JSON value. Integral numbers become Int, other
// numbers Float. Strings holding a date and time of day become Time; plain
// dates stay strings. Nested objects and arrays are kept as compact JSON text.
func jsonValue(v any) (record.Value, error) {
	switch x := v.(type) {
	case nil:
		return record.NullValue(), nil
	case bool:
		return record.BoolValue(x), nil
	case string:
		if t, ok := record.ParseDateTime(x); ok {
			return record.TimeValue(t), nil
		}
		return record.StringValue(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return record.IntValue(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return record.Value{}, err
		}
		return record.FloatValue(f), nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return record.Value{}, err
		}
		return record.StringValue(string(b)), nil
	}
}
