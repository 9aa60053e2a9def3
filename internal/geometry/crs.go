package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/wroge/wgs84"
)

// WGS84 is the EPSG code of the only output coordinate system.
const WGS84 = 4326

// ErrUnsupportedSRID is returned when no transform to WGS 84 is known.
var ErrUnsupportedSRID = errors.New("geometry: unsupported coordinate system")

// mercator maps the spellings of spherical Web Mercator to orb's inverse,
// which is exact for them.
var mercator = map[int]orb.Projection{
	3857:   project.Mercator.ToWGS84,
	900913: project.Mercator.ToWGS84,
	102100: project.Mercator.ToWGS84,
	102113: project.Mercator.ToWGS84,
}

// epsg resolves every other code: UTM zones, NAD83, ETRS89 and the
// national grids the registry knows.
var epsg = wgs84.EPSG()

// TransformFor returns the projection from srid to WGS 84. Points the
// transform cannot place come out as NaN; Reproject rejects them.
func TransformFor(srid int) (orb.Projection, error) {
	if p, ok := mercator[srid]; ok {
		return p, nil
	}
	if srid <= 0 {
		return nil, fmt.Errorf("%w: EPSG:%d", ErrUnsupportedSRID, srid)
	}
	fn, err := epsg.SafeTransform(srid, WGS84)
	if err != nil {
		return nil, fmt.Errorf("%w: EPSG:%d: %v", ErrUnsupportedSRID, srid, err)
	}
	return func(p orb.Point) orb.Point {
		lon, lat, _ := fn(p[0], p[1], 0)
		return orb.Point{lon, lat}
	}, nil
}

func finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}
