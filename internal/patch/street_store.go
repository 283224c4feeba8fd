package patch

import (
	"fmt"
	"sync"

	"github.com/agentic-research/livegraph/internal/geo"
	"github.com/agentic-research/livegraph/internal/graph"
	"github.com/hashicorp/go-multierror"
)

// Attacher binds patches to graph edges. *graph.Graph implements it.
type Attacher interface {
	AttachPatch(e *graph.Edge, a graph.Attachment) error
	DetachPatch(e *graph.Edge, patchID string) error
}

// PointMatcher resolves a location to an edge. *geo.Matcher implements it.
type PointMatcher interface {
	MatchPoint(loc geo.Coordinate, reqs graph.TraversalRequirements) *graph.Edge
}

// streetRequirements are used for every street patch match.
var streetRequirements = graph.TraversalRequirements{Modes: graph.ModeCar}

// StreetStore is the id-keyed store of street patches with a per-edge index.
//
// Writes must come from the serialized graph writer. Reads are safe from
// any goroutine and see the state either before or after a write, never in
// between: both maps change under one lock and buckets are copy-on-write.
type StreetStore struct {
	mu       sync.RWMutex
	patches  *multimap[graph.EdgeID, *StreetPatch]
	attacher Attacher
	matcher  PointMatcher
}

func NewStreetStore(attacher Attacher, matcher PointMatcher) *StreetStore {
	return &StreetStore{
		patches: newMultimap(func(p *StreetPatch) (graph.EdgeID, bool) {
			if p.Edge == nil {
				return 0, false
			}
			return p.Edge.ID, true
		}),
		attacher: attacher,
		matcher:  matcher,
	}
}

// MatchToStreet binds p to the closest car-traversable edge near its
// location. It reports false when p has no location or nothing matched,
// leaving p untouched.
func (s *StreetStore) MatchToStreet(p *StreetPatch) bool {
	if p.Edge != nil {
		return true
	}
	if p.Location == nil || s.matcher == nil {
		return false
	}
	e := s.matcher.MatchPoint(*p.Location, streetRequirements)
	if e == nil {
		return false
	}
	p.Bind(e)
	return true
}

// Apply stores p, replacing any patch with the same id. The replaced patch
// is detached first. If attaching p to its edge fails p is not stored.
func (s *StreetStore) Apply(p *StreetPatch) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("apply street patch: missing id")
	}
	stored := *p
	stored.Edge = p.Edge.Canonical()

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.patches.get(stored.ID); ok {
		if err := s.expireLocked(old); err != nil {
			return fmt.Errorf("apply %s: replace: %w", stored.ID, err)
		}
	}
	if stored.Edge != nil && s.attacher != nil {
		if err := s.attacher.AttachPatch(stored.Edge, &stored); err != nil {
			return fmt.Errorf("apply %s: %w", stored.ID, err)
		}
	}
	s.patches.put(&stored)
	return nil
}

// expireLocked detaches p and removes it from both maps. A patch whose
// detach fails stays stored so the store never disagrees with the graph.
func (s *StreetStore) expireLocked(p *StreetPatch) error {
	if p.Edge != nil && s.attacher != nil {
		if err := s.attacher.DetachPatch(p.Edge, p.ID); err != nil {
			return fmt.Errorf("expire %s: %w", p.ID, err)
		}
	}
	s.patches.remove(p.ID)
	return nil
}

// Expire removes the patches with the given ids. Unknown ids are ignored.
func (s *StreetStore) Expire(ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result *multierror.Error
	for _, id := range ids {
		if p, ok := s.patches.get(id); ok {
			if err := s.expireLocked(p); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	return result.ErrorOrNil()
}

// ExpireAllExcept removes every patch whose id is not in retain and returns
// the removed ids in order.
func (s *StreetStore) ExpireAllExcept(retain map[string]struct{}) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []string
	var result *multierror.Error
	for _, id := range s.patches.ids() {
		if _, keep := retain[id]; keep {
			continue
		}
		p, _ := s.patches.get(id)
		if err := s.expireLocked(p); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		expired = append(expired, id)
	}
	return expired, result.ErrorOrNil()
}

// ExpireAll drains the store.
func (s *StreetStore) ExpireAll() error {
	_, err := s.ExpireAllExcept(nil)
	return err
}

// AllPatches returns every stored patch ordered by id.
func (s *StreetStore) AllPatches() []*StreetPatch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.patches.all()
}

// PatchesForEdge returns the patches bound to e or its parent. The returned
// slice must not be modified.
func (s *StreetStore) PatchesForEdge(e *graph.Edge) []*StreetPatch {
	e = e.Canonical()
	if e == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.patches.bucket(e.ID)
}

// Patch returns the patch stored under id.
func (s *StreetStore) Patch(id string) (*StreetPatch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.patches.get(id)
}

// Len returns the number of stored patches.
func (s *StreetStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.patches.len()
}

// EdgeCount returns the number of edges with at least one patch.
func (s *StreetStore) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.patches.keyCount()
}
