// Package proximity answers nearest and k-nearest neighbour queries over a
// fixed set of target coordinates with a k-d tree.
package proximity

import (
	"math"
	"sort"
)

// Coord is an (x, y) coordinate in any planar space: world units or grid
// indices.
type Coord = [2]float64

// DefaultLeafSize is the bucket size below which nodes are not split.
const DefaultLeafSize = 14

// Options configures Build.
type Options struct {
	LeafSize int
}

type node struct {
	lo, hi                 int
	minX, minY, maxX, maxY float64
	left, right            int
}

func (n *node) leaf() bool { return n.left < 0 }

// Index is an immutable k-d tree. Target IDs are positions in the slice
// given to Build.
type Index struct {
	points   []Coord
	perm     []int
	nodes    []node
	leafSize int
}

// Build indexes targets. The slice is copied.
func Build(targets []Coord, opts Options) *Index {
	leaf := opts.LeafSize
	if leaf <= 0 {
		leaf = DefaultLeafSize
	}
	ix := &Index{
		points:   append([]Coord(nil), targets...),
		perm:     make([]int, len(targets)),
		leafSize: leaf,
	}
	for i := range ix.perm {
		ix.perm[i] = i
	}
	if len(targets) > 0 {
		ix.build(0, len(targets))
	}
	return ix
}

// Len returns the number of targets.
func (ix *Index) Len() int { return len(ix.points) }

// Target returns the coordinate of target id.
func (ix *Index) Target(id int) Coord { return ix.points[id] }

func (ix *Index) build(lo, hi int) int {
	n := node{lo: lo, hi: hi, left: -1, right: -1,
		minX: math.Inf(1), minY: math.Inf(1), maxX: math.Inf(-1), maxY: math.Inf(-1)}
	for _, i := range ix.perm[lo:hi] {
		p := ix.points[i]
		n.minX, n.maxX = math.Min(n.minX, p[0]), math.Max(n.maxX, p[0])
		n.minY, n.maxY = math.Min(n.minY, p[1]), math.Max(n.maxY, p[1])
	}
	id := len(ix.nodes)
	ix.nodes = append(ix.nodes, n)

	w, h := n.maxX-n.minX, n.maxY-n.minY
	if hi-lo <= ix.leafSize || (w == 0 && h == 0) {
		return id
	}
	dim := 0
	if h > w {
		dim = 1
	}
	sub := ix.perm[lo:hi]
	sort.Slice(sub, func(a, b int) bool {
		pa, pb := ix.points[sub[a]][dim], ix.points[sub[b]][dim]
		if pa != pb {
			return pa < pb
		}
		return sub[a] < sub[b]
	})
	mid := lo + (hi-lo)/2
	left := ix.build(lo, mid)
	right := ix.build(mid, hi)
	ix.nodes[id].left, ix.nodes[id].right = left, right
	return id
}

// boxDistance is the metric distance from q to the node's bounding box.
func (n *node) boxDistance(q Coord, m Metric) float64 {
	dx := math.Max(0, math.Max(n.minX-q[0], q[0]-n.maxX))
	dy := math.Max(0, math.Max(n.minY-q[1], q[1]-n.maxY))
	return m.combine(dx, dy)
}

// neighbor is a candidate result; ordering is by distance then target ID.
type neighbor struct {
	dist float64
	id   int
}

func (a neighbor) less(b neighbor) bool {
	if a.dist != b.dist {
		return a.dist < b.dist
	}
	return a.id < b.id
}

// bestK keeps the k best neighbours as a max-heap on (dist, id).
type bestK struct {
	k     int
	items []neighbor
}

func (b *bestK) full() bool { return len(b.items) == b.k }

func (b *bestK) worst() neighbor { return b.items[0] }

func (b *bestK) offer(c neighbor) {
	if !b.full() {
		b.items = append(b.items, c)
		b.up(len(b.items) - 1)
		return
	}
	if !c.less(b.worst()) {
		return
	}
	b.items[0] = c
	b.down(0)
}

func (b *bestK) up(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !b.items[p].less(b.items[i]) {
			return
		}
		b.items[p], b.items[i] = b.items[i], b.items[p]
		i = p
	}
}

func (b *bestK) down(i int) {
	n := len(b.items)
	for {
		l, r, top := 2*i+1, 2*i+2, i
		if l < n && b.items[top].less(b.items[l]) {
			top = l
		}
		if r < n && b.items[top].less(b.items[r]) {
			top = r
		}
		if top == i {
			return
		}
		b.items[top], b.items[i] = b.items[i], b.items[top]
		i = top
	}
}

func (b *bestK) sorted() []neighbor {
	out := append([]neighbor(nil), b.items...)
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}

func (ix *Index) search(id int, q Coord, m Metric, bound float64, best *bestK) {
	n := &ix.nodes[id]
	limit := bound
	if best.full() {
		limit = math.Min(limit, best.worst().dist)
	}
	if n.boxDistance(q, m) > limit {
		return
	}
	if n.leaf() {
		for _, t := range ix.perm[n.lo:n.hi] {
			d := m.Distance(q, ix.points[t])
			if d > bound {
				continue
			}
			best.offer(neighbor{dist: d, id: t})
		}
		return
	}
	first, second := n.left, n.right
	if ix.nodes[second].boxDistance(q, m) < ix.nodes[first].boxDistance(q, m) {
		first, second = second, first
	}
	ix.search(first, q, m, bound, best)
	ix.search(second, q, m, bound, best)
}
