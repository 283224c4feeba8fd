// Package notes maintains per-edge traveler notes as immutable snapshots.
//
// An updater builds a complete Snapshot off to the side and installs it in
// an Index with one pointer swap. Lookups load the pointer and read the
// snapshot without locking, so they always see one whole snapshot.
package notes

import (
	"fmt"
	"strings"

	"github.com/agentic-research/livegraph/internal/graph"
)

// State is the part of a search state a note matcher inspects.
type State struct {
	// Mode is the mode used to traverse the edge.
	Mode graph.Mode
	// EvalTime and StartTime are epoch seconds.
	EvalTime  int64
	StartTime int64
}

// Matcher decides whether a note applies to a traversal.
//
// Key identifies the matcher for interning: two matchers with the same key
// must accept the same states.
type Matcher interface {
	Matches(s State) bool
	Key() string
}

type alwaysMatcher struct{}

func (alwaysMatcher) Matches(State) bool { return true }
func (alwaysMatcher) Key() string        { return "always" }
func (alwaysMatcher) String() string     { return "always" }

// Always matches every traversal.
var Always Matcher = alwaysMatcher{}

type modeMatcher struct {
	mode graph.Mode
}

func (m modeMatcher) Matches(s State) bool { return s.Mode&m.mode != 0 }
func (m modeMatcher) Key() string          { return "mode:" + m.mode.String() }
func (m modeMatcher) String() string       { return m.Key() }

// ForMode matches traversals made in any of the given modes.
func ForMode(mode graph.Mode) Matcher { return modeMatcher{mode: mode} }

// Driving matches car traversals only.
var Driving = ForMode(graph.ModeCar)

type customMatcher struct {
	name string
	fn   func(State) bool
}

func (c customMatcher) Matches(s State) bool { return c.fn(s) }
func (c customMatcher) Key() string          { return "custom:" + c.name }
func (c customMatcher) String() string       { return c.Key() }

// Custom wraps fn. Matchers built from different functions must use
// different names.
func Custom(name string, fn func(State) bool) Matcher {
	return customMatcher{name: name, fn: fn}
}

// ParseMatcher resolves a configured matcher name.
func ParseMatcher(name string) (Matcher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "always":
		return Always, nil
	case "driving", "car":
		return Driving, nil
	case "walking", "walk":
		return ForMode(graph.ModeWalk), nil
	case "bicycle", "bike":
		return ForMode(graph.ModeBicycle), nil
	}
	return nil, fmt.Errorf("unknown note matcher %q", name)
}
