package patch

import (
	"github.com/hashicorp/go-multierror"
)

// Result describes one reconciliation.
type Result struct {
	Applied []string `json:"applied"`
	Expired []string `json:"expired"`
	Failed  int      `json:"failed"`
}

// Store is the write side shared by StreetStore and RouteStore.
type Store[P Identified] interface {
	Apply(p P) error
	ExpireAllExcept(retain map[string]struct{}) ([]string, error)
	ExpireAll() error
	AllPatches() []P
}

var (
	_ Store[*StreetPatch] = (*StreetStore)(nil)
	_ Store[*RoutePatch]  = (*RouteStore)(nil)
)

// Reconcile makes s hold exactly the patches of batch. Every patch in batch
// is applied, then everything not applied is expired, so an empty batch
// clears the store. A patch that fails to apply is counted and left out of
// the retained set; its siblings are kept. The returned error aggregates
// every apply and expire failure.
func Reconcile[P Identified](s Store[P], batch []P) (Result, error) {
	var res Result
	var errs *multierror.Error

	retain := make(map[string]struct{}, len(batch))
	for _, p := range batch {
		if err := s.Apply(p); err != nil {
			errs = multierror.Append(errs, err)
			res.Failed++
			continue
		}
		id := p.PatchID()
		if _, dup := retain[id]; !dup {
			res.Applied = append(res.Applied, id)
		}
		retain[id] = struct{}{}
	}

	expired, err := s.ExpireAllExcept(retain)
	res.Expired = expired
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	return res, errs.ErrorOrNil()
}
