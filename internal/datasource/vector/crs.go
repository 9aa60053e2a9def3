package vector

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	epsgCodeRe  = regexp.MustCompile(`(?i)EPSG:(?:[0-9.]*:)?(\d+)\s*$`)
	authorityRe = regexp.MustCompile(`(?i)AUTHORITY\s*\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]\s*\]\s*$`)
	// utmRe matches ESRI ("WGS_1984_UTM_Zone_33N") and OGC
	// ("WGS 84 / UTM zone 33N") UTM names on upper-cased WKT.
	utmRe = regexp.MustCompile(`^PROJCS\[\s*"(WGS[ _]?(?:19)?84|NAD[ _]?(?:19)?83|ETRS[ _]?(?:19)?89)[ _/]*UTM[ _]ZONE[ _](\d{1,2})([NS])"`)
)

// utmBase is the EPSG code of zone 0 per datum and hemisphere.
var utmBase = map[string]int{
	"WGS84N":  32600,
	"WGS84S":  32700,
	"NAD83N":  26900,
	"ETRS89N": 25800,
}

// projectedNames maps PROJCS names without an AUTHORITY clause.
var projectedNames = []struct {
	name string
	srid int
}{
	{"BRITISH_NATIONAL_GRID", 27700},
	{"BRITISH NATIONAL GRID", 27700},
	{"RGF_1993_LAMBERT_93", 2154},
	{"LAMBERT-93", 2154},
}

// UnknownSRID marks a coordinate system that is declared but not
// recognized. It is never treated as WGS 84.
const UnknownSRID = -1

// SRIDFromName maps a GeoJSON "crs" name such as "EPSG:3857",
// "urn:ogc:def:crs:EPSG::3857" or "urn:ogc:def:crs:OGC:1.3:CRS84" to an
// EPSG code. An empty name yields 0 and an unrecognized one UnknownSRID.
func SRIDFromName(name string) int {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0
	}
	if strings.HasSuffix(strings.ToUpper(name), "CRS84") {
		return 4326
	}
	if m := epsgCodeRe.FindStringSubmatch(name); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return n
		}
	}
	return UnknownSRID
}

// SRIDFromWKT maps the WKT of a .prj file to an EPSG code. A trailing
// top-level AUTHORITY clause wins; otherwise UTM zone names, a few national
// grids and well-known geographic systems are recognized. Other coordinate
// systems yield UnknownSRID.
func SRIDFromWKT(wkt string) int {
	wkt = strings.TrimSpace(wkt)
	if wkt == "" {
		return 0
	}
	if m := authorityRe.FindStringSubmatch(wkt); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}

	upper := strings.ToUpper(wkt)
	switch {
	case strings.HasPrefix(upper, "PROJCS"):
		if srid, ok := utmSRID(upper); ok {
			return srid
		}
		head := upper
		if i := strings.Index(head, "GEOGCS"); i > 0 {
			head = head[:i]
		}
		for _, pn := range projectedNames {
			if strings.Contains(head, pn.name) {
				return pn.srid
			}
		}
		if strings.Contains(upper, "WEB_MERCATOR") ||
			strings.Contains(upper, "PSEUDO-MERCATOR") ||
			strings.Contains(upper, "PSEUDO_MERCATOR") ||
			strings.Contains(upper, "POPULAR VISUALISATION") {
			return 3857
		}
	case strings.HasPrefix(upper, "GEOGCS"):
		if strings.Contains(upper, "GCS_WGS_1984") || strings.Contains(upper, `"WGS 84"`) ||
			strings.Contains(upper, "WGS84") {
			return 4326
		}
		if strings.Contains(upper, "NORTH_AMERICAN_1983") || strings.Contains(upper, `"NAD83"`) {
			return 4269
		}
		if strings.Contains(upper, "GCS_ETRS_1989") || strings.Contains(upper, `"ETRS89"`) {
			return 4258
		}
	}
	return UnknownSRID
}

// utmSRID maps a UTM PROJCS name to its EPSG code. Zones outside 1..60 and
// datum/hemisphere pairs without an EPSG series are not matched.
func utmSRID(upperWKT string) (int, bool) {
	m := utmRe.FindStringSubmatch(upperWKT)
	if m == nil {
		return 0, false
	}
	datum := strings.NewReplacer("_", "", " ", "", "1984", "84", "1983", "83", "1989", "89").Replace(m[1])
	base, ok := utmBase[datum+m[3]]
	zone, err := strconv.Atoi(m[2])
	if !ok || err != nil || zone < 1 || zone > 60 {
		return 0, false
	}
	return base + zone, true
}

// readPRJ returns the SRID declared by the .prj file beside shpPath, or 0
// when there is none.
func readPRJ(shpPath string) (int, error) {
	base := strings.TrimSuffix(shpPath, filepath.Ext(shpPath))
	for _, ext := range []string{".prj", ".PRJ"} {
		data, err := os.ReadFile(base + ext)
		if err == nil {
			return SRIDFromWKT(string(data)), nil
		}
		if !os.IsNotExist(err) {
			return 0, err
		}
	}
	return 0, nil
}
