package graph

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

type rawFeatureCollection struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

type rawEdgeFeature struct {
	Geometry   json.RawMessage `json:"geometry"`
	Properties struct {
		ID         *uint32 `json:"id"`
		Name       string  `json:"name"`
		Permission string  `json:"permission"`
	} `json:"properties"`
}

// LoadGeoJSON builds a graph from a FeatureCollection of LineString
// features. Each feature needs a numeric "id" property; "name" and
// "permission" (e.g. "CAR,BICYCLE", default "ALL") are optional.
func LoadGeoJSON(r io.Reader, cellDegrees float64) (*Graph, error) {
	var fc rawFeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode street network: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("decode street network: expected FeatureCollection, got %q", fc.Type)
	}

	g := New(cellDegrees)
	for i, raw := range fc.Features {
		var f rawEdgeFeature
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		if f.Properties.ID == nil {
			return nil, fmt.Errorf("feature %d: missing id property", i)
		}
		var t geom.T
		if err := geojson.Unmarshal(f.Geometry, &t); err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		ls, ok := t.(*geom.LineString)
		if !ok {
			return nil, fmt.Errorf("feature %d: expected LineString, got %T", i, t)
		}
		perm := ModeAll
		if f.Properties.Permission != "" {
			p, err := ParseModes(f.Properties.Permission)
			if err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
			perm = p
		}
		if err := g.AddEdge(&Edge{
			ID:         EdgeID(*f.Properties.ID),
			Name:       f.Properties.Name,
			Geometry:   ls,
			Permission: perm,
		}); err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
	}
	return g, nil
}
