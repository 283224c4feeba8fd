package updater

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agentic-research/livegraph/internal/geo"
	"github.com/agentic-research/livegraph/internal/graph"
	"github.com/agentic-research/livegraph/internal/patch"
	"github.com/twpayne/go-geom"
)

// errFiltered marks a record dropped by feed policy.
var errFiltered = errors.New("dropped by policy")

// Binder turns a record into a commit candidate, matching it to the graph
// where needed. ErrUnmatched and errFiltered drop the record quietly; any
// other error is a record-level skip.
type Binder[T any] interface {
	Bind(rec Record) (T, error)
}

// recordReader holds what every binder needs to read alerts and windows.
type recordReader struct {
	fields Fields
	dates  dateReader
	policy policy
}

func (r recordReader) id(rec Record) (string, error) {
	id, err := rec.Require(r.fields.Name(FieldID))
	if err != nil {
		return "", err
	}
	id = strings.TrimSpace(id)
	if r.policy.skipID(id) {
		return "", fmt.Errorf("%w: id %s", errFiltered, id)
	}
	return id, nil
}

func (r recordReader) alert(rec Record) (*patch.Alert, error) {
	header, err := rec.Require(r.fields.Name(FieldHeader))
	if err != nil {
		return nil, err
	}
	a := &patch.Alert{Header: patch.NewTranslatedString(strings.TrimSpace(header))}
	if desc, ok := rec.String(r.fields.Name(FieldDescription)); ok {
		a.Description = patch.NewTranslatedString(strings.TrimSpace(desc))
	}
	return a, nil
}

// period reads the start and optional end dates. A malformed end is an
// error; an absent, null or blank one leaves the window to the policy.
func (r recordReader) period(rec Record) (time.Time, patch.TimePeriod, error) {
	start, err := r.dates.read(rec, r.fields.Name(FieldStart))
	if err != nil {
		return time.Time{}, patch.TimePeriod{}, err
	}
	var end time.Time
	if name := r.fields.Name(FieldEnd); rec.Present(name) {
		if end, err = r.dates.read(rec, name); err != nil {
			return time.Time{}, patch.TimePeriod{}, err
		}
	}
	s, e := r.policy.window(start, end)
	return start, patch.TimePeriod{Start: s, End: e}, nil
}

func (r recordReader) location(rec Record) (*geo.Coordinate, error) {
	var c geo.Coordinate
	if rec.Geometry != nil {
		pt, ok := rec.Geometry.(*geom.Point)
		if !ok {
			return nil, fmt.Errorf("%w: %T", geo.ErrUnsupportedGeometry, rec.Geometry)
		}
		c = geo.Coordinate{Lon: pt.X(), Lat: pt.Y()}
	} else {
		lon, err := rec.Float(r.fields.Name(FieldLon))
		if err != nil {
			return nil, err
		}
		lat, err := rec.Float(r.fields.Name(FieldLat))
		if err != nil {
			return nil, err
		}
		c = geo.Coordinate{Lon: lon, Lat: lat}
	}
	if !c.Valid() {
		return nil, fmt.Errorf("%w: (%v, %v)", geo.ErrInvalidCoordinate, c.Lon, c.Lat)
	}
	return &c, nil
}

func parseFlag(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err == nil {
		return b
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "oui":
		return true
	}
	return false
}

// streetBinder builds street patches and binds them to the closest edge.
type streetBinder struct {
	recordReader
	speed bool
	store *patch.StreetStore
}

func (b *streetBinder) Bind(rec Record) (*patch.StreetPatch, error) {
	p, err := b.build(rec)
	if err != nil {
		return nil, err
	}
	if !b.store.MatchToStreet(p) {
		return p, ErrUnmatched
	}
	return p, nil
}

func (b *streetBinder) build(rec Record) (*patch.StreetPatch, error) {
	id, err := b.id(rec)
	if err != nil {
		return nil, err
	}
	p := &patch.StreetPatch{ID: id}

	if b.speed {
		v, err := rec.Float(b.fields.Name(FieldSpeed))
		if err != nil {
			return nil, err
		}
		if v < b.policy.minSpeed {
			return nil, fmt.Errorf("%w: speed %v", errFiltered, v)
		}
		p.CarSpeed = &v
	}
	if p.Location, err = b.location(rec); err != nil {
		return nil, err
	}
	if p.Alert, err = b.alert(rec); err != nil {
		return nil, err
	}
	start, period, err := b.period(rec)
	if err != nil {
		return nil, err
	}
	p.Alert.EffectiveStart = start
	p.Periods = patch.Periods{period}

	if flag, ok := rec.String(b.fields.Name(FieldBlocking)); ok {
		p.Blocking = parseFlag(flag)
	}
	return p, nil
}

// routeBinder builds route alerts. No geo matching is involved.
type routeBinder struct {
	recordReader
}

func (b *routeBinder) Bind(rec Record) (*patch.RoutePatch, error) {
	id, err := b.id(rec)
	if err != nil {
		return nil, err
	}
	code, err := rec.Require(b.fields.Name(FieldRoute))
	if err != nil {
		return nil, err
	}
	ref, err := splitRoute(code, b.fields.agencyLength())
	if err != nil {
		return nil, err
	}
	alert, err := b.alert(rec)
	if err != nil {
		return nil, err
	}
	start, period, err := b.period(rec)
	if err != nil {
		return nil, err
	}
	alert.EffectiveStart = start
	return &patch.RoutePatch{ID: id, Alert: alert, Periods: patch.Periods{period}, Route: ref}, nil
}

// splitRoute reads codes such as "SEM_C1": the first n characters name the
// agency and the route follows one separator character.
func splitRoute(code string, n int) (patch.RouteRef, error) {
	code = strings.TrimSpace(strings.ReplaceAll(code, "\n", " "))
	if len(code) < n+2 {
		return patch.RouteRef{}, fmt.Errorf("route code %q too short", code)
	}
	return patch.RouteRef{Agency: code[:n], Route: code[n+1:]}, nil
}

// noteHit is a note and the edges its geometry covers.
type noteHit struct {
	Alert *patch.Alert
	Edges []*graph.Edge
}

// AreaMatcher is the part of *geo.Matcher the notes binder uses.
type AreaMatcher interface {
	MatchArea(g geom.T, bufferMeters float64) ([]*graph.Edge, error)
}

type notesBinder struct {
	recordReader
	matcher AreaMatcher
	buffer  float64
}

func (b *notesBinder) Bind(rec Record) (noteHit, error) {
	if rec.Geometry == nil {
		return noteHit{}, fmt.Errorf("%w: geometry", errMissingField)
	}
	alert, err := b.alert(rec)
	if err != nil {
		return noteHit{}, err
	}
	if name := b.fields.Name(FieldStart); rec.Present(name) {
		start, err := b.dates.read(rec, name)
		if err != nil {
			return noteHit{}, err
		}
		alert.EffectiveStart = start
	}
	edges, err := b.matcher.MatchArea(rec.Geometry, b.buffer)
	if err != nil {
		return noteHit{}, err
	}
	hit := noteHit{Alert: alert, Edges: edges}
	if len(edges) == 0 {
		return hit, ErrUnmatched
	}
	return hit, nil
}
