// Package crs resolves coordinate reference system strings (proj4, WKT or
// "EPSG:<code>") into transforms and linear units.
package crs

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ctessum/geom/proj"
	"github.com/rotisserie/eris"

	"github.com/sells-group/landsuit/internal/units"
)

// ErrGeographic is returned when a linear unit is requested for a CRS whose
// coordinates are angular.
var ErrGeographic = eris.New("crs: geographic coordinate system has no linear unit")

// epsgProj4 holds the EPSG codes the sample datasets and common US suitability
// workflows use.
var epsgProj4 = map[int]string{
	4326:  "+proj=longlat +datum=WGS84 +no_defs",
	4269:  "+proj=longlat +datum=NAD83 +no_defs",
	3857:  "+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 +x_0=0 +y_0=0 +k=1 +units=m +nadgrids=@null +no_defs",
	5070:  "+proj=aea +lat_0=23 +lon_0=-96 +lat_1=29.5 +lat_2=45.5 +x_0=0 +y_0=0 +datum=NAD83 +units=m +no_defs",
	3086:  "+proj=aea +lat_0=24 +lon_0=-84 +lat_1=24 +lat_2=31.5 +x_0=400000 +y_0=-4000000 +datum=NAD83 +units=m +no_defs",
	2236:  "+proj=tmerc +lat_0=24.3333333333333 +lon_0=-81 +k=0.999941177 +x_0=200000.0001016 +y_0=0 +datum=NAD83 +units=us-ft +no_defs",
	2238:  "+proj=lcc +lat_0=29 +lon_0=-84.5 +lat_1=30.75 +lat_2=29.5833333333333 +x_0=600000 +y_0=0 +datum=NAD83 +units=us-ft +no_defs",
	26917: "+proj=utm +zone=17 +datum=NAD83 +units=m +no_defs",
	26918: "+proj=utm +zone=18 +datum=NAD83 +units=m +no_defs",
	32617: "+proj=utm +zone=17 +datum=WGS84 +units=m +no_defs",
}

// FromEPSG returns the proj4 definition for a known EPSG code.
func FromEPSG(code int) (string, error) {
	def, ok := epsgProj4[code]
	if !ok {
		return "", eris.Errorf("crs: unsupported EPSG code %d", code)
	}
	return def, nil
}

// Resolve expands "EPSG:<code>" references and trims the definition.
func Resolve(def string) (string, error) {
	def = strings.TrimSpace(def)
	if def == "" {
		return "", eris.New("crs: empty definition")
	}
	if code, ok := strings.CutPrefix(strings.ToUpper(def), "EPSG:"); ok {
		n, err := strconv.Atoi(code)
		if err != nil {
			return "", eris.Wrapf(err, "crs: parse EPSG code %q", def)
		}
		return FromEPSG(n)
	}
	return def, nil
}

// Parse resolves and parses a CRS definition.
func Parse(def string) (*proj.SR, error) {
	resolved, err := Resolve(def)
	if err != nil {
		return nil, err
	}
	sr, err := proj.Parse(resolved)
	if err != nil {
		return nil, eris.Wrapf(err, "crs: parse %q", resolved)
	}
	return sr, nil
}

// Transformer builds a coordinate transform between two CRS definitions.
func Transformer(from, to string) (proj.Transformer, error) {
	src, err := Parse(from)
	if err != nil {
		return nil, err
	}
	dst, err := Parse(to)
	if err != nil {
		return nil, err
	}
	t, err := src.NewTransform(dst)
	if err != nil {
		return nil, eris.Wrap(err, "crs: new transform")
	}
	return t, nil
}

// Equal reports whether two definitions describe the same CRS. Proj4 strings
// are compared token-wise, ignoring order.
func Equal(a, b string) bool {
	ra, errA := Resolve(a)
	rb, errB := Resolve(b)
	if errA != nil || errB != nil {
		return strings.TrimSpace(a) == strings.TrimSpace(b)
	}
	return normalize(ra) == normalize(rb)
}

func normalize(def string) string {
	if !strings.HasPrefix(def, "+") {
		return strings.Join(strings.Fields(def), " ")
	}
	tokens := strings.Fields(def)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// geographicNames are the projection names proj.Parse reports for
// longitude/latitude systems.
var geographicNames = map[string]bool{"longlat": true, "latlong": true, "lonlat": true, "latlon": true}

// LinearUnit returns the linear unit of a projected CRS.
func LinearUnit(def string) (units.Unit, error) {
	sr, err := Parse(def)
	if err != nil {
		return units.Unit{}, err
	}
	if geographicNames[sr.Name] {
		return units.Unit{}, ErrGeographic
	}
	hasFactor := sr.ToMeter > 0 && !math.IsNaN(sr.ToMeter)
	// WKT unit names arrive lowercased with underscores, e.g. "foot_us".
	if sr.Units != "" {
		if u, err := units.Parse(strings.ReplaceAll(sr.Units, "_", " ")); err == nil && u.Dimension == units.Linear {
			if !hasFactor || sameFactor(u.BaseFactor(), sr.ToMeter) {
				return u, nil
			}
			// The name is ambiguous ("foot"); the conversion factor decides.
			if byFactor, err := unitByFactor(sr.ToMeter); err == nil {
				return byFactor, nil
			}
			return u, nil
		}
	}
	if !hasFactor {
		return units.Unit{}, eris.Errorf("crs: no linear unit in %q", def)
	}
	return unitByFactor(sr.ToMeter)
}

func sameFactor(a, b float64) bool {
	rel := (a - b) / b
	return rel < 1e-9 && rel > -1e-9
}

// unitByFactor finds the linear unit whose meter factor matches f.
func unitByFactor(f float64) (units.Unit, error) {
	codes := units.Codes()
	sort.Strings(codes)
	for _, code := range codes {
		u := units.Unit{Code: code, Dimension: units.Linear}
		if sameFactor(u.BaseFactor(), f) {
			return u, nil
		}
	}
	return units.Unit{}, eris.Errorf("crs: no unit with %g meters", f)
}
