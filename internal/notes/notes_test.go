package notes

import (
	"sync"
	"testing"
	"time"

	"github.com/agentic-research/livegraph/internal/graph"
	"github.com/agentic-research/livegraph/internal/patch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func edgeAt(id graph.EdgeID, lat float64) *graph.Edge {
	return &graph.Edge{
		ID:         id,
		Name:       "edge",
		Geometry:   geom.NewLineStringFlat(geom.XY, []float64{5.72, lat, 5.721, lat}),
		Permission: graph.ModeAll,
	}
}

func note(text string) *patch.Alert {
	return &patch.Alert{Header: patch.NewTranslatedString(text)}
}

func TestInterner_CollapsesEqualPairs(t *testing.T) {
	in := NewInterner()
	a := in.Intern(Always, note("works"))
	b := in.Intern(Always, note("works"))
	c := in.Intern(Driving, note("works"))
	d := in.Intern(Always, note("flood"))

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.NotSame(t, a, d)
	assert.Equal(t, 3, in.Len())
}

func TestBuilder_SharesInstancesAcrossEdges(t *testing.T) {
	b := NewBuilder()
	e1, e2 := edgeAt(1, 45.18), edgeAt(2, 45.19)
	for i := 0; i < 100; i++ {
		b.Add(e1, Always, note("works"))
		b.Add(e2, Always, note("works"))
	}
	assert.Equal(t, 1, b.interner.Len())

	s := b.Build()
	require.Len(t, s.Lookup(e1), 1)
	require.Len(t, s.Lookup(e2), 1)
	assert.Same(t, s.Lookup(e1)[0], s.Lookup(e2)[0])
}

func TestSnapshot_TemporaryEdgeUsesParent(t *testing.T) {
	parent := edgeAt(1, 45.18)
	partial := graph.NewPartialEdge(parent, geom.NewLineStringFlat(geom.XY, []float64{5.72, 45.18, 5.7205, 45.18}))

	b := NewBuilder()
	b.Add(partial, Always, note("works"))
	s := b.Build()

	assert.Len(t, s.Lookup(parent), 1)
	assert.Len(t, s.Lookup(partial), 1)
	assert.Equal(t, []*graph.Edge{parent}, s.Edges())
}

func TestIndex_ReplaceAndClear(t *testing.T) {
	idx := NewIndex()
	e := edgeAt(1, 45.18)
	assert.Empty(t, idx.Lookup(e))

	b := NewBuilder()
	b.Add(e, Always, note("works"))
	idx.Replace(b.Build())
	assert.Len(t, idx.Lookup(e), 1)

	updates := idx.Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, uint32(1), updates[0].EdgeID)
	assert.Contains(t, updates[0].Geom, "LINESTRING")
	assert.Equal(t, "works", updates[0].Alerts[0].Header.Text(""))

	idx.Replace(nil)
	assert.Empty(t, idx.Lookup(e))
	assert.Empty(t, idx.Updates())
}

// Each snapshot annotates exactly one of two edges, so a reader that
// mixed two snapshots would see both or neither.
func TestIndex_ReadersSeeWholeSnapshots(t *testing.T) {
	e1, e2 := edgeAt(1, 45.18), edgeAt(2, 45.19)
	build := func(e *graph.Edge) *Snapshot {
		b := NewBuilder()
		b.Add(e, Always, note("works"))
		return b.Build()
	}
	snaps := []*Snapshot{build(e1), build(e2)}

	idx := NewIndex()
	idx.Replace(snaps[0])

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				s := idx.Current()
				n1, n2 := len(s.Lookup(e1)), len(s.Lookup(e2))
				if n1+n2 != 1 {
					t.Errorf("torn read: e1=%d e2=%d", n1, n2)
					return
				}
			}
		}()
	}
	for i := 0; i < 1000; i++ {
		idx.Replace(snaps[i%2])
	}
	close(stop)
	wg.Wait()
}

func TestMatchers(t *testing.T) {
	car := State{Mode: graph.ModeCar}
	walk := State{Mode: graph.ModeWalk}

	assert.True(t, Always.Matches(walk))
	assert.True(t, Driving.Matches(car))
	assert.False(t, Driving.Matches(walk))
	assert.Equal(t, Driving.Key(), ForMode(graph.ModeCar).Key())

	night := Custom("night", func(s State) bool { return s.EvalTime%86400 < 6*3600 })
	assert.True(t, night.Matches(State{EvalTime: 3600}))
	assert.Equal(t, "custom:night", night.Key())

	m, err := ParseMatcher("driving")
	require.NoError(t, err)
	assert.Equal(t, Driving, m)
	_, err = ParseMatcher("teleport")
	assert.Error(t, err)
}

func TestService_FiltersByMatcherAndTime(t *testing.T) {
	e := edgeAt(1, 45.18)
	start := time.Date(2014, 3, 19, 0, 0, 0, 0, time.UTC)
	future := &patch.Alert{Header: patch.NewTranslatedString("later"), EffectiveStart: start.Add(24 * time.Hour)}
	shared := note("works")

	dynamic := NewIndex()
	b := NewBuilder()
	b.Add(e, Driving, note("car only"))
	b.Add(e, Always, future)
	b.Add(e, Always, shared)
	dynamic.Replace(b.Build())

	static := NewBuilder()
	static.Add(e, Always, shared)
	staticSnap := static.Build()

	svc := NewService()
	svc.AddSource(dynamic)
	svc.AddSource(staticSnap)

	walk := State{Mode: graph.ModeWalk, EvalTime: start.Unix(), StartTime: start.Unix()}
	got := svc.Notes(e, walk)
	require.Len(t, got, 1, "the shared alert is reported once")
	assert.Same(t, shared, got[0])

	car := walk
	car.Mode = graph.ModeCar
	assert.Len(t, svc.Notes(e, car), 2)

	svc.RemoveSource(dynamic)
	assert.Len(t, svc.Notes(e, car), 1)
}
