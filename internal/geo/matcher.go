// Package geo binds untrusted external locations to street edges.
//
// Point matching asks the spatial index for candidates near a location,
// scores them and keeps the best one. Area matching buffers a geometry and
// keeps every edge that is not disjoint from the buffered area. Both resolve
// temporary edges to their parent so results are stable however the graph
// happens to be split.
package geo

import (
	"errors"
	"fmt"
	"sort"

	"github.com/agentic-research/livegraph/internal/graph"
	"github.com/twpayne/go-geom"
)

// DefaultSearchRadiusMeters bounds the envelope used for point matching.
const DefaultSearchRadiusMeters = 100.0

// partialCompatibilityPenalty is added to the score of candidates that
// permit only some of the required modes.
const partialCompatibilityPenalty = 10.0

var (
	ErrUnsupportedGeometry = errors.New("unsupported geometry type")
	ErrInvalidCoordinate   = errors.New("coordinate outside WGS84 bounds")
)

// Index is the subset of the spatial index the matcher consumes.
type Index interface {
	EdgesForEnvelope(env graph.Envelope) []*graph.Edge
	ClosestEdges(lon, lat float64, reqs graph.TraversalRequirements, radiusMeters float64) []graph.Candidate
}

// Coordinate is a WGS84 position.
type Coordinate struct {
	Lon float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Valid reports whether c is a finite position with |lon| <= 180 and
// |lat| <= 90.
func (c Coordinate) Valid() bool { return graph.InWorld(c.Lon, c.Lat) }

// Matcher implements point and area matching against an Index.
type Matcher struct {
	index        Index
	searchRadius float64
}

func NewMatcher(index Index, searchRadiusMeters float64) *Matcher {
	if searchRadiusMeters <= 0 {
		searchRadiusMeters = DefaultSearchRadiusMeters
	}
	return &Matcher{index: index, searchRadius: searchRadiusMeters}
}

type scored struct {
	edge  *graph.Edge
	score float64
}

// MatchPoint returns the best edge near loc that satisfies reqs, or nil when
// nothing lies within the search envelope. A nil result is a miss, not an
// error. Invalid coordinates always miss.
func (m *Matcher) MatchPoint(loc Coordinate, reqs graph.TraversalRequirements) *graph.Edge {
	if !loc.Valid() {
		return nil
	}
	candidates := m.index.ClosestEdges(loc.Lon, loc.Lat, reqs, m.searchRadius)
	if len(candidates) == 0 {
		return nil
	}

	// Several temporary edges may share one parent; keep the best per parent.
	best := make(map[graph.EdgeID]scored, len(candidates))
	for _, c := range candidates {
		e := c.Edge.Canonical()
		s := c.DistanceMeters
		if !reqs.FullyAllows(e) {
			s += partialCompatibilityPenalty
		}
		if cur, ok := best[e.ID]; !ok || s < cur.score {
			best[e.ID] = scored{edge: e, score: s}
		}
	}

	ranked := make([]scored, 0, len(best))
	for _, s := range best {
		ranked = append(ranked, s)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score < ranked[j].score
		}
		return ranked[i].edge.ID < ranked[j].edge.ID
	})
	return ranked[0].edge
}

// MatchArea returns every edge within bufferMeters of g, ordered by ID.
//
// The envelope query is cheap and coarse; the exact distance test runs only
// on the edges it returns.
func (m *Matcher) MatchArea(g geom.T, bufferMeters float64) ([]*graph.Edge, error) {
	shape, err := newArea(g)
	if err != nil {
		return nil, err
	}
	if shape.empty() {
		return nil, nil
	}
	bounds := graph.EnvelopeOf(g)
	if !bounds.InWorld() {
		return nil, fmt.Errorf("%w: %+v", ErrInvalidCoordinate, bounds)
	}
	buffer := graph.MetersToDegrees(bufferMeters)
	env := bounds.Expand(buffer)

	seen := make(map[graph.EdgeID]bool)
	var out []*graph.Edge
	for _, candidate := range m.index.EdgesForEnvelope(env) {
		e := candidate.Canonical()
		if seen[e.ID] {
			continue
		}
		if shape.withinDistance(e.Geometry, buffer) {
			seen[e.ID] = true
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
