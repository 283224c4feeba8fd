package graph

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpatialIndex_EnvelopeQuery(t *testing.T) {
	idx := NewSpatialIndex(0.001)
	near := &Edge{ID: 3, Geometry: line(5.7200, 45.1800, 5.7230, 45.1800)}
	far := &Edge{ID: 1, Geometry: line(6.0000, 46.0000, 6.0010, 46.0000)}
	spanning := &Edge{ID: 2, Geometry: line(5.7150, 45.1790, 5.7250, 45.1795)}
	idx.Insert(near)
	idx.Insert(far)
	idx.Insert(spanning)

	got := idx.EdgesForEnvelope(Envelope{MinX: 5.7210, MinY: 45.1790, MaxX: 5.7220, MaxY: 45.1810})
	require.Len(t, got, 2)
	assert.Equal(t, EdgeID(2), got[0].ID, "results are ordered by edge ID")
	assert.Equal(t, EdgeID(3), got[1].ID)
}

func TestSpatialIndex_IgnoresTemporaryEdges(t *testing.T) {
	idx := NewSpatialIndex(DefaultCellDegrees)
	parent := &Edge{ID: 1, Geometry: line(5.72, 45.18, 5.73, 45.18)}
	idx.Insert(NewPartialEdge(parent, line(5.72, 45.18, 5.725, 45.18)))
	assert.Equal(t, 0, idx.Len())
}

func TestSpatialIndex_IgnoresEdgesOutsideTheWorld(t *testing.T) {
	idx := NewSpatialIndex(DefaultCellDegrees)
	idx.Insert(&Edge{ID: 1, Geometry: line(179.9, 45, 181, 45)})
	assert.Equal(t, 0, idx.Len())
	assert.Empty(t, idx.cells)
}

func TestSpatialIndex_ExtremeEnvelopesTerminate(t *testing.T) {
	idx := NewSpatialIndex(DefaultCellDegrees)
	idx.Insert(&Edge{ID: 1, Geometry: line(5.7200, 45.1800, 5.7210, 45.1800)})
	idx.Insert(&Edge{ID: 2, Geometry: line(-73.99, 40.75, -73.98, 40.75)})

	done := make(chan []*Edge, 3)
	go func() {
		// One past the last int32 column.
		lon := (math.MaxInt32 + 0.5) * DefaultCellDegrees
		done <- idx.EdgesForEnvelope(Envelope{MinX: lon, MinY: 45, MaxX: lon, MaxY: 45})
		done <- idx.EdgesForEnvelope(Envelope{MinX: math.Inf(-1), MinY: -90, MaxX: math.Inf(1), MaxY: 90})
		done <- idx.EdgesForEnvelope(Envelope{MinX: -180, MinY: -85, MaxX: 180, MaxY: 85})
	}()

	for i, want := range []int{0, 2, 2} {
		select {
		case got := <-done:
			assert.Len(t, got, want, "query %d", i)
		case <-time.After(2 * time.Second):
			t.Fatalf("query %d did not return", i)
		}
	}
}

func TestSpatialIndex_ClosestEdges(t *testing.T) {
	idx := NewSpatialIndex(DefaultCellDegrees)
	// ~11m and ~22m north of the query point.
	a := &Edge{ID: 1, Geometry: line(5.7200, 45.1801, 5.7210, 45.1801), Permission: ModeCar}
	b := &Edge{ID: 2, Geometry: line(5.7200, 45.1802, 5.7210, 45.1802), Permission: ModeCar}
	walk := &Edge{ID: 3, Geometry: line(5.7200, 45.18001, 5.7210, 45.18001), Permission: ModeWalk}
	idx.Insert(a)
	idx.Insert(b)
	idx.Insert(walk)

	got := idx.ClosestEdges(5.7205, 45.1800, TraversalRequirements{Modes: ModeCar}, 50)
	require.Len(t, got, 2)
	assert.Equal(t, EdgeID(1), got[0].Edge.ID)
	assert.InDelta(t, 11.1, got[0].DistanceMeters, 0.5)
	assert.Equal(t, EdgeID(2), got[1].Edge.ID)

	assert.Empty(t, idx.ClosestEdges(5.7205, 45.1800, TraversalRequirements{Modes: ModeCar}, 5))
}

func TestDistanceToLineString(t *testing.T) {
	ls := line(5.7200, 45.1800, 5.7210, 45.1800)
	assert.InDelta(t, 0, DistanceToLineString(5.7205, 45.1800, ls), 1e-6)
	// 0.001 degrees of longitude along the 45.18 parallel.
	want := 0.001 * metersPerDegree * math.Cos(45.18*math.Pi/180)
	assert.InDelta(t, want, DistanceToLineString(5.7220, 45.1800, ls), 0.01)
	assert.InDelta(t, 111.2, DistanceToLineString(5.7205, 45.1810, line(5.7200, 45.1800, 5.7200, 45.1800, 5.7210, 45.1800)), 0.1, "repeated vertices")
	assert.True(t, math.IsInf(DistanceToLineString(0, 0, nil), 1))
}

func TestMetersToDegrees(t *testing.T) {
	assert.InDelta(t, 1.0, MetersToDegrees(metersPerDegree), 1e-12)
	assert.Greater(t, MetersToLonDegrees(100, 60), MetersToDegrees(100))
}
