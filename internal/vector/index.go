package vector

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/twpayne/go-geom"
)

// minRectSide pads degenerate (point or axis-parallel) bounds so rtreego
// accepts them.
const minRectSide = 1e-9

type indexed struct {
	pos  int
	rect rtreego.Rect
}

func (it *indexed) Bounds() rtreego.Rect { return it.rect }

// bboxIndex is an R-tree over feature bounds used to prefilter predicate
// candidates before the exact GEOS test.
type bboxIndex struct {
	tree *rtreego.Rtree
}

func newBBoxIndex(fs *FeatureSet) *bboxIndex {
	tree := rtreego.NewTree(2, 25, 50)
	for i, f := range fs.Features {
		if f.Geom == nil {
			continue
		}
		tree.Insert(&indexed{pos: i, rect: rectOf(f.Geom.Bounds(), 0)})
	}
	return &bboxIndex{tree: tree}
}

// candidates returns the positions whose bounds intersect b grown by pad,
// in ascending order. rtreego treats rects that only share an edge as
// disjoint, so the query grows by a small tolerance and boxes that touch
// stay candidates for the exact GEOS test.
func (ix *bboxIndex) candidates(b *geom.Bounds, pad float64) []int {
	hits := ix.tree.SearchIntersect(rectOf(b, pad+touchTolerance(b)))
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.(*indexed).pos
	}
	sort.Ints(out)
	return out
}

// touchTolerance scales with the magnitude of b's coordinates.
func touchTolerance(b *geom.Bounds) float64 {
	m := 0.0
	for _, v := range []float64{b.Min(0), b.Min(1), b.Max(0), b.Max(1)} {
		m = math.Max(m, math.Abs(v))
	}
	return math.Max(minRectSide, 1e-12*m)
}

func rectOf(b *geom.Bounds, pad float64) rtreego.Rect {
	minX, minY := b.Min(0)-pad, b.Min(1)-pad
	w := b.Max(0) + pad - minX
	h := b.Max(1) + pad - minY
	if w < minRectSide {
		w = minRectSide
	}
	if h < minRectSide {
		h = minRectSide
	}
	r, err := rtreego.NewRect(rtreego.Point{minX, minY}, []float64{w, h})
	if err != nil {
		// Unreachable: both sides are positive.
		panic(err)
	}
	return r
}
