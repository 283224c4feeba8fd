package graph

import (
	"fmt"
	"strings"

	"github.com/twpayne/go-geom"
)

// EdgeID identifies a street edge. It doubles as the bitmap member in the
// spatial index, so it stays within uint32.
type EdgeID uint32

// Mode is a bit set of traversal modes.
type Mode uint8

const (
	ModeWalk Mode = 1 << iota
	ModeBicycle
	ModeCar

	ModeNone Mode = 0
	ModeAll       = ModeWalk | ModeBicycle | ModeCar
)

var modeNames = []struct {
	mode Mode
	name string
}{
	{ModeWalk, "WALK"},
	{ModeBicycle, "BICYCLE"},
	{ModeCar, "CAR"},
}

// ParseModes reads a comma separated mode list such as "CAR,BICYCLE".
// "ALL" and "NONE" are accepted as shorthands.
func ParseModes(s string) (Mode, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	switch s {
	case "ALL":
		return ModeAll, nil
	case "", "NONE":
		return ModeNone, nil
	}
	var m Mode
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		found := false
		for _, mn := range modeNames {
			if mn.name == part {
				m |= mn.mode
				found = true
				break
			}
		}
		if !found {
			return ModeNone, fmt.Errorf("unknown traversal mode %q", part)
		}
	}
	return m, nil
}

func (m Mode) String() string {
	if m == ModeNone {
		return "NONE"
	}
	var parts []string
	for _, mn := range modeNames {
		if m&mn.mode != 0 {
			parts = append(parts, mn.name)
		}
	}
	return strings.Join(parts, ",")
}

// Edge is a street segment with a WGS84 geometry (x = lon, y = lat).
//
// Temporary edges are sub-segments of a parent edge created while splitting
// the graph for a single query. They are never stored in the graph; anything
// keyed by edge (patches, notes, matching) resolves them to their parent.
type Edge struct {
	ID         EdgeID
	Name       string
	Geometry   *geom.LineString
	Permission Mode

	parent *Edge
}

// NewPartialEdge returns a temporary edge covering part of parent.
func NewPartialEdge(parent *Edge, geometry *geom.LineString) *Edge {
	root := parent.Canonical()
	return &Edge{
		ID:         root.ID,
		Name:       root.Name,
		Geometry:   geometry,
		Permission: root.Permission,
		parent:     root,
	}
}

// Parent returns the parent of a temporary edge, or nil.
func (e *Edge) Parent() *Edge { return e.parent }

// IsTemporary reports whether e is a sub-segment created for one query.
func (e *Edge) IsTemporary() bool { return e.parent != nil }

// Canonical resolves a temporary edge to the graph edge it was split from.
func (e *Edge) Canonical() *Edge {
	if e == nil {
		return nil
	}
	if e.parent != nil {
		return e.parent
	}
	return e
}

func (e *Edge) String() string {
	if e.Name == "" {
		return fmt.Sprintf("edge#%d", e.ID)
	}
	return fmt.Sprintf("edge#%d(%s)", e.ID, e.Name)
}

// TraversalRequirements filters candidate edges during matching.
type TraversalRequirements struct {
	Modes Mode
}

// Allows reports whether e can be traversed in at least one required mode.
// An empty requirement set allows every edge.
func (r TraversalRequirements) Allows(e *Edge) bool {
	if r.Modes == ModeNone {
		return true
	}
	return e.Permission&r.Modes != 0
}

// FullyAllows reports whether e permits every required mode.
func (r TraversalRequirements) FullyAllows(e *Edge) bool {
	return e.Permission&r.Modes == r.Modes
}
