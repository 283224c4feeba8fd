package updater

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// FeatureParser reads a GeoJSON FeatureCollection. Each feature becomes a
// record carrying its properties and decoded geometry.
type FeatureParser struct{}

type rawCollection struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

type rawFeature struct {
	ID         any             `json:"id"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

func (FeatureParser) Parse(data []byte) ([]Record, []error, error) {
	var fc rawCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, nil, fmt.Errorf("%w: type %q, want FeatureCollection", ErrMalformedEnvelope, fc.Type)
	}

	records := make([]Record, 0, len(fc.Features))
	var skipped []error
	for i, raw := range fc.Features {
		rec, err := decodeFeature(i, raw)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

func decodeFeature(i int, raw json.RawMessage) (Record, error) {
	var f rawFeature
	if err := json.Unmarshal(raw, &f); err != nil {
		return Record{}, fmt.Errorf("feature %d: %w", i, err)
	}
	rec := Record{Index: i, Props: f.Properties}
	if rec.Props == nil {
		rec.Props = map[string]any{}
	}
	if _, ok := rec.Props["id"]; !ok && f.ID != nil {
		rec.Props["id"] = f.ID
	}
	if len(f.Geometry) == 0 || bytes.Equal(bytes.TrimSpace(f.Geometry), []byte("null")) {
		return rec, nil
	}
	var g geom.T
	if err := geojson.Unmarshal(f.Geometry, &g); err != nil {
		return Record{}, fmt.Errorf("feature %d: geometry: %w", i, err)
	}
	rec.Geometry = g
	return rec, nil
}
