package notes

import (
	"sort"

	"github.com/agentic-research/livegraph/internal/graph"
	"github.com/agentic-research/livegraph/internal/patch"
)

// MatcherAndAlert pairs a note with the traversals it applies to. Instances
// come from an Interner and are shared between edges.
type MatcherAndAlert struct {
	Matcher Matcher
	Alert   *patch.Alert
}

type internKey struct {
	matcher string
	alert   string
}

// Interner collapses structurally equal (matcher, alert) pairs to one
// shared instance. It lives for one snapshot build.
type Interner struct {
	pairs map[internKey]*MatcherAndAlert
}

func NewInterner() *Interner {
	return &Interner{pairs: make(map[internKey]*MatcherAndAlert)}
}

func (in *Interner) Intern(m Matcher, a *patch.Alert) *MatcherAndAlert {
	k := internKey{matcher: m.Key(), alert: a.Key()}
	if maa, ok := in.pairs[k]; ok {
		return maa
	}
	maa := &MatcherAndAlert{Matcher: m, Alert: a}
	in.pairs[k] = maa
	return maa
}

// Len returns the number of distinct pairs seen.
func (in *Interner) Len() int { return len(in.pairs) }

// Snapshot is an immutable edge → notes map.
type Snapshot struct {
	notes map[graph.EdgeID][]*MatcherAndAlert
	edges map[graph.EdgeID]*graph.Edge
}

var emptySnapshot = &Snapshot{}

// Empty returns a snapshot with no notes.
func Empty() *Snapshot { return emptySnapshot }

// Lookup returns the notes on e or, for a temporary edge, on its parent.
// The returned slice is shared and must not be modified.
func (s *Snapshot) Lookup(e *graph.Edge) []*MatcherAndAlert {
	e = e.Canonical()
	if s == nil || e == nil {
		return nil
	}
	return s.notes[e.ID]
}

// Len returns the number of annotated edges.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.notes)
}

// Edges returns the annotated edges ordered by ID.
func (s *Snapshot) Edges() []*graph.Edge {
	if s == nil {
		return nil
	}
	out := make([]*graph.Edge, 0, len(s.edges))
	for _, e := range s.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Builder accumulates notes for one snapshot. It is not safe for
// concurrent use.
type Builder struct {
	interner *Interner
	sets     map[graph.EdgeID]map[*MatcherAndAlert]struct{}
	edges    map[graph.EdgeID]*graph.Edge
}

func NewBuilder() *Builder {
	return &Builder{
		interner: NewInterner(),
		sets:     make(map[graph.EdgeID]map[*MatcherAndAlert]struct{}),
		edges:    make(map[graph.EdgeID]*graph.Edge),
	}
}

// Add records a note on e. Adding the same pair to an edge twice is a
// no-op.
func (b *Builder) Add(e *graph.Edge, m Matcher, a *patch.Alert) {
	e = e.Canonical()
	if e == nil || a == nil {
		return
	}
	if m == nil {
		m = Always
	}
	maa := b.interner.Intern(m, a)
	set, ok := b.sets[e.ID]
	if !ok {
		set = make(map[*MatcherAndAlert]struct{})
		b.sets[e.ID] = set
		b.edges[e.ID] = e
	}
	set[maa] = struct{}{}
}

// Build freezes the accumulated notes. The builder must not be used
// afterwards; its scratch interning table is released.
func (b *Builder) Build() *Snapshot {
	s := &Snapshot{
		notes: make(map[graph.EdgeID][]*MatcherAndAlert, len(b.sets)),
		edges: b.edges,
	}
	for id, set := range b.sets {
		list := make([]*MatcherAndAlert, 0, len(set))
		for maa := range set {
			list = append(list, maa)
		}
		sort.Slice(list, func(i, j int) bool {
			ki, kj := list[i].Alert.Key(), list[j].Alert.Key()
			if ki != kj {
				return ki < kj
			}
			return list[i].Matcher.Key() < list[j].Matcher.Key()
		})
		s.notes[id] = list
	}
	b.interner, b.sets, b.edges = nil, nil, nil
	return s
}
