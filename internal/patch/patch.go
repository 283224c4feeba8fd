// Package patch holds dated, externally identified facts about the street
// network and the stores that reconcile them against each poll's results.
//
// A StreetPatch starts out carrying a location. Matching binds it to an edge
// and drops the location; from then on the edge is the patch's target. A
// RoutePatch targets an (agency, route) pair and is never geo-matched.
package patch

import (
	"encoding/json"

	"github.com/agentic-research/livegraph/internal/geo"
	"github.com/agentic-research/livegraph/internal/graph"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// StreetPatch is a fact about one street edge.
type StreetPatch struct {
	ID      string
	Alert   *Alert
	Periods Periods

	// Exactly one of Location and Edge is set.
	Location *geo.Coordinate
	Edge     *graph.Edge

	// CarSpeed overrides the car speed on the edge, in m/s.
	CarSpeed *float64
	Blocking bool
}

func (p *StreetPatch) PatchID() string { return p.ID }

func (p *StreetPatch) ActiveDuring(evalTime, startTime int64) bool {
	return p.Periods.Covers(evalTime, startTime)
}

func (p *StreetPatch) IsBlocking() bool { return p.Blocking }

func (p *StreetPatch) CarSpeedOverride() (float64, bool) {
	if p.CarSpeed == nil {
		return 0, false
	}
	return *p.CarSpeed, true
}

// Bind attaches the patch to e, replacing its location.
func (p *StreetPatch) Bind(e *graph.Edge) {
	p.Edge = e.Canonical()
	p.Location = nil
}

var _ graph.Attachment = (*StreetPatch)(nil)

type streetPatchJSON struct {
	ID       string       `json:"id"`
	Alert    *Alert       `json:"alert,omitempty"`
	Periods  []TimePeriod `json:"timePeriods"`
	EdgeID   *uint32      `json:"edgeId,omitempty"`
	EdgeName string       `json:"edgeName,omitempty"`
	Edge     string       `json:"edge,omitempty"`
	Lat      *float64     `json:"lat,omitempty"`
	Lng      *float64     `json:"lng,omitempty"`
	CarSpeed *float64     `json:"carSpeed,omitempty"`
	Blocking bool         `json:"blocking"`
}

// MarshalJSON renders the operational dump shown by the status endpoint.
// The bound edge's geometry is emitted as WKT.
func (p *StreetPatch) MarshalJSON() ([]byte, error) {
	out := streetPatchJSON{
		ID:       p.ID,
		Alert:    p.Alert,
		Periods:  p.Periods,
		CarSpeed: p.CarSpeed,
		Blocking: p.Blocking,
	}
	if out.Periods == nil {
		out.Periods = []TimePeriod{}
	}
	if p.Edge != nil {
		id := uint32(p.Edge.ID)
		out.EdgeID = &id
		out.EdgeName = p.Edge.Name
		if p.Edge.Geometry != nil {
			s, err := wkt.Marshal(p.Edge.Geometry)
			if err != nil {
				return nil, err
			}
			out.Edge = s
		}
	}
	if p.Location != nil {
		out.Lat, out.Lng = &p.Location.Lat, &p.Location.Lon
	}
	return json.Marshal(out)
}

// RouteRef names a transit route within an agency.
type RouteRef struct {
	Agency string `json:"agency"`
	Route  string `json:"route"`
}

// RoutePatch is a service alert for one route.
type RoutePatch struct {
	ID      string   `json:"id"`
	Alert   *Alert   `json:"alert,omitempty"`
	Periods Periods  `json:"timePeriods"`
	Route   RouteRef `json:"route"`
}

func (p *RoutePatch) PatchID() string { return p.ID }

// DisplayDuring reports whether the alert should be shown to a query
// evaluated at evalTime that started at startTime.
func (p *RoutePatch) DisplayDuring(evalTime, startTime int64) bool {
	return p.Periods.Covers(evalTime, startTime)
}
