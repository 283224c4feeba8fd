package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrNotFound       = errors.New("edge not found")
	ErrEdgeNotInGraph = errors.New("edge not in graph")
	ErrDuplicateEdge  = errors.New("duplicate edge id")
)

// Attachment is the graph-visible side of a street patch. The search engine
// consults attachments for blocking and speed overrides; it never sees the
// patch store itself.
type Attachment interface {
	PatchID() string
	// ActiveDuring reports whether the attachment applies to a query
	// evaluated at evalTime that started at startTime (epoch seconds).
	ActiveDuring(evalTime, startTime int64) bool
	IsBlocking() bool
	// CarSpeedOverride returns the overridden car speed in m/s, if any.
	CarSpeedOverride() (float64, bool)
}

// Graph is the street network shared by the search engine and the updaters.
//
// Edges and the spatial index are populated once at load time. Per-edge
// attachments are the only mutable state and are written exclusively from
// the serialized writer; readers take the read lock and get copies.
type Graph struct {
	mu      sync.RWMutex
	edges   map[EdgeID]*Edge
	index   *SpatialIndex
	patches map[EdgeID][]Attachment
}

func New(cellDegrees float64) *Graph {
	return &Graph{
		edges:   make(map[EdgeID]*Edge),
		index:   NewSpatialIndex(cellDegrees),
		patches: make(map[EdgeID][]Attachment),
	}
}

// AddEdge registers e and indexes its geometry.
func (g *Graph) AddEdge(e *Edge) error {
	if e == nil || e.Geometry == nil {
		return fmt.Errorf("add edge: missing geometry")
	}
	if e.IsTemporary() {
		return fmt.Errorf("add edge %d: temporary edges are not stored", e.ID)
	}
	g.mu.Lock()
	if _, exists := g.edges[e.ID]; exists {
		g.mu.Unlock()
		return fmt.Errorf("add edge %d: %w", e.ID, ErrDuplicateEdge)
	}
	g.edges[e.ID] = e
	g.mu.Unlock()

	g.index.Insert(e)
	return nil
}

// Edge returns the edge with the given ID.
func (g *Graph) Edge(id EdgeID) (*Edge, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.edges[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// Edges returns all edges ordered by ID.
func (g *Graph) Edges() []*Edge {
	g.mu.RLock()
	out := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	g.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Index exposes the spatial index used for matching.
func (g *Graph) Index() *SpatialIndex { return g.index }

// contains must be called with g.mu held.
func (g *Graph) contains(e *Edge) bool {
	stored, ok := g.edges[e.ID]
	return ok && stored == e
}

// AttachPatch binds a to e (resolved to its parent). An attachment with the
// same patch ID already on the edge is replaced.
func (g *Graph) AttachPatch(e *Edge, a Attachment) error {
	e = e.Canonical()
	if e == nil {
		return ErrEdgeNotInGraph
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.contains(e) {
		return fmt.Errorf("attach %s to %s: %w", a.PatchID(), e, ErrEdgeNotInGraph)
	}
	list := g.patches[e.ID]
	next := make([]Attachment, 0, len(list)+1)
	for _, existing := range list {
		if existing.PatchID() != a.PatchID() {
			next = append(next, existing)
		}
	}
	// Readers may hold the old slice, so the bucket is replaced, never edited.
	g.patches[e.ID] = append(next, a)
	return nil
}

// DetachPatch removes the attachment with patchID from e. Detaching an
// absent patch is a no-op.
func (g *Graph) DetachPatch(e *Edge, patchID string) error {
	e = e.Canonical()
	if e == nil {
		return ErrEdgeNotInGraph
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.contains(e) {
		return fmt.Errorf("detach %s from %s: %w", patchID, e, ErrEdgeNotInGraph)
	}
	list := g.patches[e.ID]
	next := make([]Attachment, 0, len(list))
	for _, existing := range list {
		if existing.PatchID() != patchID {
			next = append(next, existing)
		}
	}
	if len(next) == 0 {
		delete(g.patches, e.ID)
	} else {
		g.patches[e.ID] = next
	}
	return nil
}

// Attachments returns the attachments currently bound to e.
func (g *Graph) Attachments(e *Edge) []Attachment {
	e = e.Canonical()
	if e == nil {
		return nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.patches[e.ID]
}

// Blocked reports whether an active blocking patch covers e.
func (g *Graph) Blocked(e *Edge, evalTime, startTime int64) bool {
	for _, a := range g.Attachments(e) {
		if a.IsBlocking() && a.ActiveDuring(evalTime, startTime) {
			return true
		}
	}
	return false
}

// CarSpeed returns the lowest active car speed override on e.
func (g *Graph) CarSpeed(e *Edge, evalTime, startTime int64) (float64, bool) {
	best, found := 0.0, false
	for _, a := range g.Attachments(e) {
		speed, ok := a.CarSpeedOverride()
		if !ok || !a.ActiveDuring(evalTime, startTime) {
			continue
		}
		if !found || speed < best {
			best, found = speed, true
		}
	}
	return best, found
}
