package updater

import (
	"strconv"

	"github.com/agentic-research/livegraph/internal/notes"
	"github.com/agentic-research/livegraph/internal/patch"
)

// Outcome summarizes one commit.
type Outcome = patch.Result

// Commit is prepared off the writer and run on it.
type Commit func() (Outcome, error)

// Sink turns a cycle's bound records into the commit that installs them.
// Prepare must not touch shared state; only the returned Commit may.
type Sink[T any] interface {
	Prepare(batch []T) Commit
}

type streetSink struct {
	store *patch.StreetStore
}

func (s streetSink) Prepare(batch []*patch.StreetPatch) Commit {
	return func() (Outcome, error) {
		return patch.Reconcile[*patch.StreetPatch](s.store, batch)
	}
}

type routeSink struct {
	store *patch.RouteStore
}

func (s routeSink) Prepare(batch []*patch.RoutePatch) Commit {
	return func() (Outcome, error) {
		return patch.Reconcile[*patch.RoutePatch](s.store, batch)
	}
}

// notesSink builds the whole snapshot during Prepare, so the commit is a
// single pointer swap.
type notesSink struct {
	index   *notes.Index
	matcher notes.Matcher
}

func (s notesSink) Prepare(batch []noteHit) Commit {
	b := notes.NewBuilder()
	for _, hit := range batch {
		for _, e := range hit.Edges {
			b.Add(e, s.matcher, hit.Alert)
		}
	}
	snap := b.Build()
	return func() (Outcome, error) {
		before := s.index.Current()
		s.index.Replace(snap)
		return snapshotDiff(before, snap), nil
	}
}

// snapshotDiff reports annotated edges by ID.
func snapshotDiff(before, after *notes.Snapshot) Outcome {
	var out Outcome
	kept := make(map[string]bool)
	for _, e := range after.Edges() {
		id := strconv.FormatUint(uint64(e.ID), 10)
		kept[id] = true
		out.Applied = append(out.Applied, id)
	}
	for _, e := range before.Edges() {
		id := strconv.FormatUint(uint64(e.ID), 10)
		if !kept[id] {
			out.Expired = append(out.Expired, id)
		}
	}
	return out
}
