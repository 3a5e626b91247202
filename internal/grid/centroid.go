package grid

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/sells-group/landsuit/internal/vector"
)

// Coord is an (x, y) world coordinate.
type Coord = [2]float64

// Centroids returns one representative coordinate per feature, in input
// order. Points keep their location; lines use the length-weighted centroid;
// polygons use the area-weighted centroid when it lies inside the polygon and
// a GEOS point-on-surface otherwise.
func Centroids(fs *vector.FeatureSet) ([]Coord, error) {
	out := make([]Coord, fs.Len())
	for i, f := range fs.Features {
		c, err := centroid(f.Geom)
		if err != nil {
			return nil, eris.Wrapf(err, "grid: centroid of feature %d", f.ID)
		}
		out[i] = c
	}
	return out, nil
}

func centroid(g geom.T) (Coord, error) {
	if p, ok := g.(*geom.Point); ok {
		return Coord{p.X(), p.Y()}, nil
	}

	c, err := xy.Centroid(g)
	if err == nil && len(c) >= 2 && !math.IsNaN(c[0]) && !math.IsNaN(c[1]) {
		if vector.ClassOf(g) != vector.Polygon || polygonContains(g, c[0], c[1]) {
			return Coord{c[0], c[1]}, nil
		}
	}

	rp, err := vector.RepresentativePoint(g)
	if err != nil {
		return Coord{}, err
	}
	return Coord{rp.X(), rp.Y()}, nil
}

func polygonContains(g geom.T, x, y float64) bool {
	switch p := g.(type) {
	case *geom.Polygon:
		return containsPoint(p, x, y)
	case *geom.MultiPolygon:
		for i := 0; i < p.NumPolygons(); i++ {
			if containsPoint(p.Polygon(i), x, y) {
				return true
			}
		}
	}
	return false
}
