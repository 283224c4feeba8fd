package graph

import (
	"math"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/twpayne/go-geom"
)

// DefaultCellDegrees is the spatial grid resolution (roughly 500m).
const DefaultCellDegrees = 0.005

// Envelope is an axis-aligned bounding box in degrees.
type Envelope struct {
	MinX, MinY, MaxX, MaxY float64
}

// EnvelopeOf returns the bounding box of g.
func EnvelopeOf(g geom.T) Envelope {
	b := g.Bounds()
	return Envelope{MinX: b.Min(0), MinY: b.Min(1), MaxX: b.Max(0), MaxY: b.Max(1)}
}

// PointEnvelope returns a box of radiusMeters around (lon, lat).
func PointEnvelope(lon, lat, radiusMeters float64) Envelope {
	dLat := MetersToDegrees(radiusMeters)
	dLon := MetersToLonDegrees(radiusMeters, lat)
	return Envelope{MinX: lon - dLon, MinY: lat - dLat, MaxX: lon + dLon, MaxY: lat + dLat}
}

// Expand grows the envelope by d degrees on every side.
func (e Envelope) Expand(d float64) Envelope {
	return Envelope{MinX: e.MinX - d, MinY: e.MinY - d, MaxX: e.MaxX + d, MaxY: e.MaxY + d}
}

// Intersects reports whether the two boxes share at least one point.
func (e Envelope) Intersects(o Envelope) bool {
	return e.MinX <= o.MaxX && o.MinX <= e.MaxX && e.MinY <= o.MaxY && o.MinY <= e.MaxY
}

func (e Envelope) isValid() bool {
	return !math.IsNaN(e.MinX) && !math.IsNaN(e.MinY) && e.MinX <= e.MaxX && e.MinY <= e.MaxY
}

// InWorld reports whether the box is well formed and lies within WGS84
// bounds.
func (e Envelope) InWorld() bool {
	return e.isValid() && InWorld(e.MinX, e.MinY) && InWorld(e.MaxX, e.MaxY)
}

// InWorld reports whether (lon, lat) is a finite WGS84 position.
func InWorld(lon, lat float64) bool {
	return math.Abs(lon) <= 180 && math.Abs(lat) <= 90
}

// Candidate is an edge found near a query point.
type Candidate struct {
	Edge           *Edge
	DistanceMeters float64
}

type cellKey struct {
	x, y int32
}

// cellRange is an inclusive block of cells. Bounds are int64 so a walk up
// to math.MaxInt32 terminates.
type cellRange struct {
	x0, y0, x1, y1 int64
}

func (r cellRange) empty() bool { return r.x0 > r.x1 || r.y0 > r.y1 }

func (r cellRange) size() int64 {
	if r.empty() {
		return 0
	}
	return (r.x1 - r.x0 + 1) * (r.y1 - r.y0 + 1)
}

func (r cellRange) contains(k cellKey) bool {
	x, y := int64(k.x), int64(k.y)
	return x >= r.x0 && x <= r.x1 && y >= r.y0 && y <= r.y1
}

func (r cellRange) intersect(o cellRange) cellRange {
	return cellRange{
		x0: max(r.x0, o.x0), y0: max(r.y0, o.y0),
		x1: min(r.x1, o.x1), y1: min(r.y1, o.y1),
	}
}

func (r cellRange) walk(fn func(cellKey)) {
	for cx := r.x0; cx <= r.x1; cx++ {
		for cy := r.y0; cy <= r.y1; cy++ {
			fn(cellKey{x: int32(cx), y: int32(cy)})
		}
	}
}

// SpatialIndex is a uniform grid over edge envelopes. Each cell holds a
// roaring bitmap of the edge IDs whose envelope overlaps it, so envelope
// queries reduce to a bitmap union followed by an exact box test.
type SpatialIndex struct {
	mu       sync.RWMutex
	cell     float64
	cells    map[cellKey]*roaring.Bitmap
	edges    map[uint32]*Edge
	bounds   map[uint32]Envelope
	occupied cellRange // smallest block holding every non-empty cell
}

func NewSpatialIndex(cellDegrees float64) *SpatialIndex {
	if cellDegrees <= 0 {
		cellDegrees = DefaultCellDegrees
	}
	return &SpatialIndex{
		cell:     cellDegrees,
		cells:    make(map[cellKey]*roaring.Bitmap),
		edges:    make(map[uint32]*Edge),
		bounds:   make(map[uint32]Envelope),
		occupied: cellRange{x0: 1, x1: 0},
	}
}

// coord maps a degree value to a cell column or row, clamped to int32.
func (x *SpatialIndex) coord(v float64) int64 {
	f := math.Floor(v / x.cell)
	switch {
	case f < math.MinInt32:
		return math.MinInt32
	case f > math.MaxInt32:
		return math.MaxInt32
	}
	return int64(f)
}

func (x *SpatialIndex) rangeOf(env Envelope) cellRange {
	return cellRange{
		x0: x.coord(env.MinX), y0: x.coord(env.MinY),
		x1: x.coord(env.MaxX), y1: x.coord(env.MaxY),
	}
}

// occupiedCellsFor calls fn for every non-empty cell overlapping env. The
// walk never covers more cells than the index holds.
func (x *SpatialIndex) occupiedCellsFor(env Envelope, fn func(cellKey, *roaring.Bitmap)) {
	r := x.rangeOf(env).intersect(x.occupied)
	if r.empty() {
		return
	}
	if r.size() > int64(len(x.cells)) {
		for k, bm := range x.cells {
			if r.contains(k) {
				fn(k, bm)
			}
		}
		return
	}
	r.walk(func(k cellKey) {
		if bm, ok := x.cells[k]; ok {
			fn(k, bm)
		}
	})
}

// Insert indexes e by its geometry envelope. Temporary edges are ignored.
func (x *SpatialIndex) Insert(e *Edge) {
	if e == nil || e.Geometry == nil || e.IsTemporary() {
		return
	}
	env := EnvelopeOf(e.Geometry)
	if !env.InWorld() {
		return
	}
	id := uint32(e.ID)
	r := x.rangeOf(env)

	x.mu.Lock()
	defer x.mu.Unlock()
	x.edges[id] = e
	x.bounds[id] = env
	r.walk(func(k cellKey) {
		bm, ok := x.cells[k]
		if !ok {
			bm = roaring.New()
			x.cells[k] = bm
		}
		bm.Add(id)
	})
	if x.occupied.empty() {
		x.occupied = r
	} else {
		x.occupied = cellRange{
			x0: min(x.occupied.x0, r.x0), y0: min(x.occupied.y0, r.y0),
			x1: max(x.occupied.x1, r.x1), y1: max(x.occupied.y1, r.y1),
		}
	}
}

// Len returns the number of indexed edges.
func (x *SpatialIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.edges)
}

// EdgesForEnvelope returns the edges whose bounding box intersects env,
// ordered by edge ID.
func (x *SpatialIndex) EdgesForEnvelope(env Envelope) []*Edge {
	if !env.isValid() {
		return nil
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	var hits []*roaring.Bitmap
	x.occupiedCellsFor(env, func(_ cellKey, bm *roaring.Bitmap) {
		hits = append(hits, bm)
	})
	if len(hits) == 0 {
		return nil
	}
	union := roaring.FastOr(hits...)

	// Bitmap iteration is ascending, which gives the ID ordering for free.
	out := make([]*Edge, 0, union.GetCardinality())
	it := union.Iterator()
	for it.HasNext() {
		id := it.Next()
		if x.bounds[id].Intersects(env) {
			out = append(out, x.edges[id])
		}
	}
	return out
}

// ClosestEdges returns every edge allowed by reqs within radiusMeters of
// (lon, lat), nearest first. Equal distances keep edge ID order.
func (x *SpatialIndex) ClosestEdges(lon, lat float64, reqs TraversalRequirements, radiusMeters float64) []Candidate {
	var out []Candidate
	for _, e := range x.EdgesForEnvelope(PointEnvelope(lon, lat, radiusMeters)) {
		if !reqs.Allows(e) {
			continue
		}
		d := DistanceToLineString(lon, lat, e.Geometry)
		if d <= radiusMeters {
			out = append(out, Candidate{Edge: e, DistanceMeters: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceMeters < out[j].DistanceMeters
	})
	return out
}
