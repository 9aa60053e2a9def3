package vector

import "github.com/paulmach/orb"

// orient rewinds polygon rings in place so exteriors run counter-clockwise
// and holes clockwise (the OGC and RFC 7946 order). Geography types in
// SQL Server read a clockwise exterior as the rest of the globe.
// Degenerate rings are left alone.
func orient(g orb.Geometry) orb.Geometry {
	switch v := g.(type) {
	case orb.Polygon:
		orientPolygon(v)
	case orb.MultiPolygon:
		for _, p := range v {
			orientPolygon(p)
		}
	case orb.Collection:
		for _, c := range v {
			orient(c)
		}
	}
	return g
}

func orientPolygon(p orb.Polygon) {
	for i, r := range p {
		want := orb.CW
		if i == 0 {
			want = orb.CCW
		}
		if o := r.Orientation(); o != 0 && o != want {
			r.Reverse()
		}
	}
}
