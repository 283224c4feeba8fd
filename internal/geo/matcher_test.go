package geo

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/agentic-research/livegraph/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func line(coords ...float64) *geom.LineString {
	return geom.NewLineStringFlat(geom.XY, coords)
}

// shuffledIndex returns its candidates in a caller-chosen order so tests
// can check that matching does not depend on index iteration order.
type shuffledIndex struct {
	candidates []graph.Candidate
}

func (s *shuffledIndex) EdgesForEnvelope(graph.Envelope) []*graph.Edge { return nil }
func (s *shuffledIndex) ClosestEdges(float64, float64, graph.TraversalRequirements, float64) []graph.Candidate {
	return s.candidates
}

var car = graph.TraversalRequirements{Modes: graph.ModeCar}

func TestMatchPoint_TieBreakIsDeterministic(t *testing.T) {
	a := &graph.Edge{ID: 10, Permission: graph.ModeCar}
	b := &graph.Edge{ID: 4, Permission: graph.ModeCar}

	orders := [][]graph.Candidate{
		{{Edge: a, DistanceMeters: 5}, {Edge: b, DistanceMeters: 5}},
		{{Edge: b, DistanceMeters: 5}, {Edge: a, DistanceMeters: 5}},
	}
	for _, order := range orders {
		m := NewMatcher(&shuffledIndex{candidates: order}, 0)
		for i := 0; i < 5; i++ {
			got := m.MatchPoint(Coordinate{Lon: 5.72, Lat: 45.18}, car)
			require.NotNil(t, got)
			assert.Equal(t, graph.EdgeID(4), got.ID)
		}
	}
}

func TestMatchPoint_EquidistantRealEdges(t *testing.T) {
	// Binary fractions keep both distances bit-identical.
	const d = 1.0 / 1024
	g := graph.New(graph.DefaultCellDegrees)
	require.NoError(t, g.AddEdge(&graph.Edge{ID: 2, Geometry: line(0, 0.5+d, 2*d, 0.5+d), Permission: graph.ModeCar}))
	require.NoError(t, g.AddEdge(&graph.Edge{ID: 1, Geometry: line(0, 0.5-d, 2*d, 0.5-d), Permission: graph.ModeCar}))

	m := NewMatcher(g.Index(), 200)
	for i := 0; i < 10; i++ {
		got := m.MatchPoint(Coordinate{Lon: d, Lat: 0.5}, car)
		require.NotNil(t, got)
		assert.Equal(t, graph.EdgeID(1), got.ID)
	}
}

func TestMatchPoint_PrefersFullyCompatible(t *testing.T) {
	both := graph.TraversalRequirements{Modes: graph.ModeCar | graph.ModeBicycle}
	partial := &graph.Edge{ID: 1, Permission: graph.ModeCar}
	full := &graph.Edge{ID: 2, Permission: graph.ModeCar | graph.ModeBicycle}
	m := NewMatcher(&shuffledIndex{candidates: []graph.Candidate{
		{Edge: partial, DistanceMeters: 3},
		{Edge: full, DistanceMeters: 8},
	}}, 0)
	assert.Equal(t, graph.EdgeID(2), m.MatchPoint(Coordinate{}, both).ID)
}

func TestMatchPoint_ResolvesTemporaryEdges(t *testing.T) {
	parent := &graph.Edge{ID: 7, Permission: graph.ModeCar, Geometry: line(0, 0, 1, 0)}
	partial := graph.NewPartialEdge(parent, line(0, 0, 0.5, 0))
	m := NewMatcher(&shuffledIndex{candidates: []graph.Candidate{{Edge: partial, DistanceMeters: 1}}}, 0)

	got := m.MatchPoint(Coordinate{}, car)
	require.NotNil(t, got)
	assert.Same(t, parent, got)
}

func TestMatchPoint_NoCandidates(t *testing.T) {
	g := graph.New(graph.DefaultCellDegrees)
	require.NoError(t, g.AddEdge(&graph.Edge{ID: 1, Geometry: line(5.72, 45.18, 5.721, 45.18), Permission: graph.ModeCar}))
	m := NewMatcher(g.Index(), 20)

	assert.Nil(t, m.MatchPoint(Coordinate{Lon: 6.5, Lat: 46.0}, car))
	assert.Nil(t, m.MatchPoint(Coordinate{Lon: 5.7205, Lat: 45.18}, graph.TraversalRequirements{Modes: graph.ModeWalk}),
		"edge is car-only")
}

func areaGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New(graph.DefaultCellDegrees)
	edges := []*graph.Edge{
		{ID: 1, Geometry: line(5.7200, 45.1800, 5.7210, 45.1800)},
		{ID: 2, Geometry: line(5.7200, 45.1810, 5.7210, 45.1810)},
		{ID: 3, Geometry: line(5.7300, 45.1900, 5.7310, 45.1900)},
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e))
	}
	return g
}

func ids(edges []*graph.Edge) []graph.EdgeID {
	out := make([]graph.EdgeID, len(edges))
	for i, e := range edges {
		out[i] = e.ID
	}
	return out
}

func TestMatchArea_LineWithinBuffer(t *testing.T) {
	m := NewMatcher(areaGraph(t).Index(), 0)
	// Runs ~1.1m south of edge 1.
	roadwork := line(5.7202, 45.17999, 5.7208, 45.17999)

	got, err := m.MatchArea(roadwork, 2)
	require.NoError(t, err)
	assert.Equal(t, []graph.EdgeID{1}, ids(got))

	got, err = m.MatchArea(roadwork, 0.5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMatchArea_EnvelopeHitButDisjoint(t *testing.T) {
	g := graph.New(graph.DefaultCellDegrees)
	require.NoError(t, g.AddEdge(&graph.Edge{ID: 4, Geometry: line(5.7200, 45.1800, 5.7210, 45.1810)}))
	m := NewMatcher(g.Index(), 0)

	// Inside the diagonal edge's bounding box, ~60m from the edge itself.
	got, err := m.MatchArea(geom.NewPointFlat(geom.XY, []float64{5.7209, 45.1801}), 2)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMatchArea_PolygonCoversEdges(t *testing.T) {
	m := NewMatcher(areaGraph(t).Index(), 0)
	zone := geom.NewPolygonFlat(geom.XY, []float64{
		5.7190, 45.1790, 5.7220, 45.1790, 5.7220, 45.1820, 5.7190, 45.1820, 5.7190, 45.1790,
	}, []int{10})

	got, err := m.MatchArea(zone, 2)
	require.NoError(t, err)
	assert.Equal(t, []graph.EdgeID{1, 2}, ids(got))
}

func TestMatchArea_PointAndCollection(t *testing.T) {
	m := NewMatcher(areaGraph(t).Index(), 0)
	gc := geom.NewGeometryCollection()
	require.NoError(t, gc.Push(
		geom.NewPointFlat(geom.XY, []float64{5.7305, 45.19001}),
		geom.NewPointFlat(geom.XY, []float64{5.7205, 45.1810}),
	))

	got, err := m.MatchArea(gc, 2)
	require.NoError(t, err)
	assert.Equal(t, []graph.EdgeID{2, 3}, ids(got))
}

func TestMatchArea_UnsupportedGeometry(t *testing.T) {
	m := NewMatcher(areaGraph(t).Index(), 0)
	ring := geom.NewLinearRingFlat(geom.XY, []float64{0, 0, 1, 0, 1, 1, 0, 0})
	_, err := m.MatchArea(ring, 2)
	assert.True(t, errors.Is(err, ErrUnsupportedGeometry))
}

// within fails the test if fn has not returned after a second.
func within(t *testing.T, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("match did not return")
	}
}

func TestMatch_OutOfWorldCoordinates(t *testing.T) {
	m := NewMatcher(areaGraph(t).Index(), 0)
	edgeLon := (math.MaxInt32 + 0.5) * graph.DefaultCellDegrees

	for _, c := range []Coordinate{
		{Lon: edgeLon, Lat: 45},
		{Lon: 5.72, Lat: 91},
		{Lon: math.NaN(), Lat: 45.18},
		{Lon: math.Inf(1), Lat: 45.18},
	} {
		within(t, func() {
			assert.Nil(t, m.MatchPoint(c, car), "%+v", c)
		})
		within(t, func() {
			_, err := m.MatchArea(geom.NewPointFlat(geom.XY, []float64{c.Lon, c.Lat}), 0)
			assert.ErrorIs(t, err, ErrInvalidCoordinate, "%+v", c)
		})
	}
	assert.True(t, Coordinate{Lon: -180, Lat: 90}.Valid())
}

func TestMatchArea_WorldSizedPolygon(t *testing.T) {
	m := NewMatcher(areaGraph(t).Index(), 0)
	world := geom.NewPolygonFlat(geom.XY, []float64{
		-180, -85, 180, -85, 180, 85, -180, 85, -180, -85,
	}, []int{10})

	within(t, func() {
		got, err := m.MatchArea(world, 2)
		require.NoError(t, err)
		assert.Equal(t, []graph.EdgeID{1, 2, 3}, ids(got))
	})
}
