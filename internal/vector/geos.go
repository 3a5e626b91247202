package vector

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geos"
)

// bufferQuadSegs is the number of segments per quarter circle used when
// buffering.
const bufferQuadSegs = 16

// geosCtx is shared by every operation in the package. GEOS contexts are not
// safe for concurrent use, so neither are the operations built on it.
var geosCtx = geos.NewContext()

func toGEOS(g geom.T) (*geos.Geom, error) {
	b, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "vector: encode WKB")
	}
	gg, err := geosCtx.NewGeomFromWKB(b)
	if err != nil {
		return nil, eris.Wrap(err, "vector: load geometry into GEOS")
	}
	return gg, nil
}

func fromGEOS(g *geos.Geom) (geom.T, error) {
	out, err := wkb.Unmarshal(g.ToWKB())
	if err != nil {
		return nil, eris.Wrap(err, "vector: decode GEOS geometry")
	}
	return out, nil
}

func toGEOSAll(fs *FeatureSet) ([]*geos.Geom, error) {
	out := make([]*geos.Geom, len(fs.Features))
	for i, f := range fs.Features {
		g, err := toGEOS(f.Geom)
		if err != nil {
			return nil, eris.Wrapf(err, "vector: feature %d", f.ID)
		}
		out[i] = g
	}
	return out, nil
}

// BufferGeom returns g grown by dist in its own units.
func BufferGeom(g geom.T, dist float64) (geom.T, error) {
	gg, err := toGEOS(g)
	if err != nil {
		return nil, err
	}
	return fromGEOS(gg.Buffer(dist, bufferQuadSegs))
}

// Buffer buffers every feature by dist, keeping IDs and attributes. A zero
// distance returns the original geometries.
func Buffer(fs *FeatureSet, dist float64) (*FeatureSet, error) {
	if dist == 0 {
		return fs.WithGeoms(fs.Geoms()), nil
	}
	geoms := make([]geom.T, len(fs.Features))
	for i, f := range fs.Features {
		g, err := BufferGeom(f.Geom, dist)
		if err != nil {
			return nil, eris.Wrapf(err, "vector: buffer feature %d", f.ID)
		}
		geoms[i] = g
	}
	return fs.WithGeoms(geoms), nil
}

// RepresentativePoint returns a point guaranteed to lie on the geometry.
func RepresentativePoint(g geom.T) (geom.Coord, error) {
	gg, err := toGEOS(g)
	if err != nil {
		return nil, err
	}
	p := gg.PointOnSurface()
	if p.IsEmpty() {
		return nil, eris.New("vector: representative point of empty geometry")
	}
	return geom.Coord{p.X(), p.Y()}, nil
}

// Union dissolves every geometry of the set into one.
func Union(fs *FeatureSet) (geom.T, error) {
	u, err := unionGEOS(fs)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, eris.New("vector: union of empty feature set")
	}
	return fromGEOS(u)
}

func unionGEOS(fs *FeatureSet) (*geos.Geom, error) {
	geoms, err := toGEOSAll(fs)
	if err != nil {
		return nil, err
	}
	var acc *geos.Geom
	for _, g := range geoms {
		if acc == nil {
			acc = g
			continue
		}
		acc = acc.Union(g)
	}
	if acc == nil {
		return nil, nil
	}
	return acc.UnaryUnion(), nil
}
