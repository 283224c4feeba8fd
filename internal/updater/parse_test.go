package updater

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

const evtXML = `<?xml version="1.0" encoding="ISO-8859-1"?>
<Evts>
  <Evt Code="E1">
    <Lon>5.7205</Lon>
    <Lat>45.1801</Lat>
    <Loc>Cours Berriat</Loc>
    <Comment>Travaux de voirie</Comment>
    <DDebut>19/03/2014 08:00:00</DDebut>
    <DFin>19/03/2014 18:00:00</DFin>
  </Evt>
  <Evt>
    <Code>E2</Code>
    <Loc>Rue Lesdiguières</Loc>
  </Evt>
  <Other><Code>ignored</Code></Other>
</Evts>`

func TestXMLParser_RecordsAtPath(t *testing.T) {
	p, err := NewXMLParser("/Evts/Evt")
	require.NoError(t, err)

	recs, skipped, err := p.Parse([]byte(evtXML))
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, recs, 2)

	assert.Equal(t, "E1", recs[0].Props["Code"], "attributes become properties")
	assert.Equal(t, "5.7205", recs[0].Props["Lon"])
	assert.Equal(t, "Travaux de voirie", recs[0].Props["Comment"])
	assert.Equal(t, "E2", recs[1].Props["Code"])
	assert.Equal(t, 1, recs[1].Index)

	lon, err := recs[0].Float("Lon")
	require.NoError(t, err)
	assert.InDelta(t, 5.7205, lon, 1e-9)
}

func TestXMLParser_Malformed(t *testing.T) {
	p, err := NewXMLParser("/Evts/Evt")
	require.NoError(t, err)

	_, _, err = p.Parse([]byte(`<Evts><Evt><Code>E1</Code>`))
	assert.ErrorIs(t, err, ErrMalformedEnvelope)

	_, err = NewXMLParser("/")
	assert.Error(t, err)
}

func TestJSONParser_SelectsObjects(t *testing.T) {
	p, err := NewJSONParser("$.events[*]")
	require.NoError(t, err)

	recs, skipped, err := p.Parse([]byte(`{"events": [
		{"Code": "A", "PertLigne": "SEM_C1"},
		"not a record",
		{"Code": "B", "PertLigne": "SEM_A"}
	]}`))
	require.NoError(t, err)
	assert.Len(t, skipped, 1)
	require.Len(t, recs, 2)
	assert.Equal(t, "A", recs[0].Props["Code"])
	assert.Equal(t, "B", recs[1].Props["Code"])

	_, _, err = p.Parse([]byte(`{"events": [`))
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestFeatureParser_SkipsBadFeatures(t *testing.T) {
	doc := `{"type": "FeatureCollection", "features": [
		{"type": "Feature", "id": "f1", "geometry": {"type": "Point", "coordinates": [5.7205, 45.1801]}, "properties": {"CODE": "X"}},
		{"type": "Feature", "geometry": {"type": "Point", "coordinates": "nope"}, "properties": {}},
		{"type": "Feature", "geometry": null, "properties": {"CODE": "Y"}},
		{"type": "Feature", "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]}}
	]}`
	recs, skipped, err := FeatureParser{}.Parse([]byte(doc))
	require.NoError(t, err)
	assert.Len(t, skipped, 1)
	require.Len(t, recs, 3)

	pt, ok := recs[0].Geometry.(*geom.Point)
	require.True(t, ok)
	assert.InDelta(t, 5.7205, pt.X(), 1e-9)
	assert.Equal(t, "f1", recs[0].Props["id"], "feature id is copied into properties")

	assert.Nil(t, recs[1].Geometry)
	assert.Equal(t, "Y", recs[1].Props["CODE"])

	_, ok = recs[2].Geometry.(*geom.Polygon)
	assert.True(t, ok)
	assert.NotNil(t, recs[2].Props)
}

func TestFeatureParser_MalformedEnvelope(t *testing.T) {
	for _, doc := range []string{
		`{"type": "FeatureCollection", "features": [`,
		`{"type": "Feature", "geometry": null}`,
		`[]`,
	} {
		_, _, err := FeatureParser{}.Parse([]byte(doc))
		assert.ErrorIs(t, err, ErrMalformedEnvelope, doc)
	}
}

func TestRecord_Accessors(t *testing.T) {
	r := Record{Props: map[string]any{"n": 12.5, "s": " 3 ", "blank": "  ", "null": nil, "b": true}}

	s, ok := r.String("n")
	assert.True(t, ok)
	assert.Equal(t, "12.5", s)

	_, ok = r.String("null")
	assert.False(t, ok)

	_, err := r.Require("blank")
	assert.ErrorIs(t, err, errMissingField)

	f, err := r.Float("s")
	require.NoError(t, err)
	assert.Equal(t, 3.0, f)

	_, err = r.Float("b")
	assert.Error(t, err)
}
