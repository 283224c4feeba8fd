package patch

import (
	"fmt"
	"sync"
)

// RouteStore is the id-keyed store of route alerts with a per-route index.
// It follows the same write discipline as StreetStore but never touches
// the street graph.
type RouteStore struct {
	mu      sync.RWMutex
	patches *multimap[RouteRef, *RoutePatch]
}

func NewRouteStore() *RouteStore {
	return &RouteStore{
		patches: newMultimap(func(p *RoutePatch) (RouteRef, bool) {
			return p.Route, p.Route != RouteRef{}
		}),
	}
}

// Apply stores p, replacing any patch with the same id.
func (s *RouteStore) Apply(p *RoutePatch) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("apply route patch: missing id")
	}
	stored := *p
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patches.remove(stored.ID)
	s.patches.put(&stored)
	return nil
}

// Expire removes the patches with the given ids. Unknown ids are ignored.
func (s *RouteStore) Expire(ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.patches.remove(id)
	}
	return nil
}

// ExpireAllExcept removes every patch whose id is not in retain.
func (s *RouteStore) ExpireAllExcept(retain map[string]struct{}) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []string
	for _, id := range s.patches.ids() {
		if _, keep := retain[id]; !keep {
			s.patches.remove(id)
			expired = append(expired, id)
		}
	}
	return expired, nil
}

func (s *RouteStore) ExpireAll() error {
	_, err := s.ExpireAllExcept(nil)
	return err
}

func (s *RouteStore) AllPatches() []*RoutePatch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.patches.all()
}

// AlertsForRoute returns the patches targeting the route. The returned
// slice must not be modified.
func (s *RouteStore) AlertsForRoute(agency, route string) []*RoutePatch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.patches.bucket(RouteRef{Agency: agency, Route: route})
}

func (s *RouteStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.patches.len()
}
