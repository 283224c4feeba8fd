package notes

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentic-research/livegraph/internal/graph"
	"github.com/agentic-research/livegraph/internal/patch"
)

// Source supplies notes for an edge. *Index and *Snapshot implement it.
type Source interface {
	Lookup(e *graph.Edge) []*MatcherAndAlert
}

// Service aggregates note sources for the search engine. Sources are
// registered by updaters during setup; Notes never takes a lock.
type Service struct {
	mu      sync.Mutex
	sources atomic.Pointer[[]Source]
}

func NewService() *Service {
	s := &Service{}
	s.sources.Store(&[]Source{})
	return s
}

func (s *Service) AddSource(src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := *s.sources.Load()
	next := make([]Source, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, src)
	s.sources.Store(&next)
}

// RemoveSource unregisters src. Removing an unknown source is a no-op.
func (s *Service) RemoveSource(src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := *s.sources.Load()
	next := make([]Source, 0, len(cur))
	for _, existing := range cur {
		if existing != src {
			next = append(next, existing)
		}
	}
	s.sources.Store(&next)
}

// Notes returns the alerts on e whose matcher accepts st and that are in
// effect at st.EvalTime. Each alert appears once.
func (s *Service) Notes(e *graph.Edge, st State) []*patch.Alert {
	at := time.Unix(st.EvalTime, 0)
	var out []*patch.Alert
	seen := make(map[*patch.Alert]bool)
	for _, src := range *s.sources.Load() {
		for _, maa := range src.Lookup(e) {
			if seen[maa.Alert] || !maa.Matcher.Matches(st) || !maa.Alert.EffectiveAt(at) {
				continue
			}
			seen[maa.Alert] = true
			out = append(out, maa.Alert)
		}
	}
	return out
}

var (
	_ Source = (*Index)(nil)
	_ Source = (*Snapshot)(nil)
)
