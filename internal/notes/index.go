package notes

import (
	"sync/atomic"

	"github.com/agentic-research/livegraph/internal/graph"
	"github.com/agentic-research/livegraph/internal/patch"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// Index holds the current snapshot and lets it be swapped while lookups
// are in flight.
type Index struct {
	current atomic.Pointer[Snapshot]
}

func NewIndex() *Index {
	idx := &Index{}
	idx.current.Store(Empty())
	return idx
}

// Replace installs s as the current snapshot. A nil s clears the index.
func (i *Index) Replace(s *Snapshot) {
	if s == nil {
		s = Empty()
	}
	i.current.Store(s)
}

// Current returns the installed snapshot. Callers that need several
// lookups to agree should read them all from one Current result.
func (i *Index) Current() *Snapshot { return i.current.Load() }

// Lookup delegates to the current snapshot.
func (i *Index) Lookup(e *graph.Edge) []*MatcherAndAlert {
	return i.current.Load().Lookup(e)
}

// EdgeNotes is the status dump of one annotated edge.
type EdgeNotes struct {
	EdgeID uint32         `json:"edgeId"`
	Name   string         `json:"name"`
	Geom   string         `json:"geom,omitempty"`
	Alerts []*patch.Alert `json:"alerts"`
}

// Updates dumps the current snapshot ordered by edge ID.
func (i *Index) Updates() []EdgeNotes {
	s := i.current.Load()
	edges := s.Edges()
	out := make([]EdgeNotes, 0, len(edges))
	for _, e := range edges {
		en := EdgeNotes{EdgeID: uint32(e.ID), Name: e.Name}
		if e.Geometry != nil {
			if g, err := wkt.Marshal(e.Geometry); err == nil {
				en.Geom = g
			}
		}
		for _, maa := range s.Lookup(e) {
			en.Alerts = append(en.Alerts, maa.Alert)
		}
		out = append(out, en)
	}
	return out
}
