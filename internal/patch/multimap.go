package patch

import "sort"

// Identified is anything stored by patch id.
type Identified interface {
	PatchID() string
}

// multimap keeps an id map and a secondary key multimap in lockstep. It is
// not synchronized; the owning store holds its lock around every call.
//
// Buckets are never edited in place so slices handed to readers stay valid
// after the next write.
type multimap[K comparable, P Identified] struct {
	byID  map[string]P
	byKey map[K][]P
	keyOf func(P) (K, bool)
}

func newMultimap[K comparable, P Identified](keyOf func(P) (K, bool)) *multimap[K, P] {
	return &multimap[K, P]{
		byID:  make(map[string]P),
		byKey: make(map[K][]P),
		keyOf: keyOf,
	}
}

func (m *multimap[K, P]) get(id string) (P, bool) {
	p, ok := m.byID[id]
	return p, ok
}

func (m *multimap[K, P]) put(p P) {
	m.byID[p.PatchID()] = p
	if k, ok := m.keyOf(p); ok {
		bucket := m.byKey[k]
		next := make([]P, len(bucket), len(bucket)+1)
		copy(next, bucket)
		m.byKey[k] = append(next, p)
	}
}

func (m *multimap[K, P]) remove(id string) {
	p, ok := m.byID[id]
	if !ok {
		return
	}
	delete(m.byID, id)
	k, ok := m.keyOf(p)
	if !ok {
		return
	}
	bucket := m.byKey[k]
	next := make([]P, 0, len(bucket))
	for _, q := range bucket {
		if q.PatchID() != id {
			next = append(next, q)
		}
	}
	if len(next) == 0 {
		delete(m.byKey, k)
	} else {
		m.byKey[k] = next
	}
}

func (m *multimap[K, P]) bucket(k K) []P {
	return m.byKey[k]
}

func (m *multimap[K, P]) ids() []string {
	out := make([]string, 0, len(m.byID))
	for id := range m.byID {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (m *multimap[K, P]) all() []P {
	ids := m.ids()
	out := make([]P, len(ids))
	for i, id := range ids {
		out[i] = m.byID[id]
	}
	return out
}

func (m *multimap[K, P]) len() int { return len(m.byID) }

func (m *multimap[K, P]) keyCount() int { return len(m.byKey) }
