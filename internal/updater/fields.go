package updater

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/agentic-research/livegraph/api"
)

// Field mapping keys. Values name the record property to read.
const (
	FieldID           = "id"
	FieldHeader       = "header"
	FieldDescription  = "description"
	FieldStart        = "start"
	FieldEnd          = "end"
	FieldSpeed        = "speed"
	FieldLon          = "lon"
	FieldLat          = "lat"
	FieldRoute        = "route"
	FieldBlocking     = "blocking"
	FieldAgencyLength = "agency_length"
)

// defaultFields reproduce the layouts of the feeds livegraph was built
// against. Configuration overrides individual keys.
var defaultFields = map[string]map[string]string{
	api.TypeGeoJSONPoints: {
		FieldID:     "CODE",
		FieldHeader: "LIBELLE",
		FieldStart:  "H",
		FieldSpeed:  "V",
	},
	api.TypeRecords: {
		FieldID:           "Code",
		FieldLon:          "Lon",
		FieldLat:          "Lat",
		FieldHeader:       "Loc",
		FieldDescription:  "Comment",
		FieldStart:        "DDebut",
		FieldEnd:          "DFin",
		FieldRoute:        "PertLigne",
		FieldAgencyLength: "3",
	},
	api.TypeGeoJSONNotes: {
		FieldHeader:      "type",
		FieldDescription: "text",
		FieldStart:       "startDate",
	},
}

// Fields resolves mapping keys for one updater.
type Fields map[string]string

func resolveFields(u api.UpdaterConfig) Fields {
	f := Fields{}
	for k, v := range defaultFields[u.Type] {
		f[k] = v
	}
	for k, v := range u.Fields {
		f[k] = v
	}
	return f
}

// Name returns the property name mapped to key, or "" when unmapped.
func (f Fields) Name(key string) string { return f[key] }

func (f Fields) agencyLength() int {
	n, err := strconv.Atoi(f[FieldAgencyLength])
	if err != nil || n <= 0 {
		return 3
	}
	return n
}

// openEnd closes windows of records that carry no end time. Reconciliation
// expires them once the feed stops reporting them.
const openEnd = int64(math.MaxInt64)

// dateReader parses record dates. Strings use the configured layout;
// numbers are epoch milliseconds.
type dateReader struct {
	layout string
	loc    *time.Location
}

func (d dateReader) read(rec Record, prop string) (time.Time, error) {
	if prop == "" {
		return time.Time{}, fmt.Errorf("%w: date field not mapped", errMissingField)
	}
	v, ok := rec.Props[prop]
	if !ok || v == nil {
		return time.Time{}, fmt.Errorf("%w %q", errMissingField, prop)
	}
	switch t := v.(type) {
	case float64:
		return time.UnixMilli(int64(t)), nil
	case int64:
		return time.UnixMilli(t), nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, fmt.Errorf("%w %q", errMissingField, prop)
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms), nil
		}
		ts, err := time.ParseInLocation(d.layout, s, d.loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("field %q: %w", prop, err)
		}
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("field %q: not a date: %T", prop, v)
}

// policy applies feed-specific business rules.
type policy struct {
	skipPrefixes []string
	fixedWindow  time.Duration
	minSpeed     float64
}

func newPolicy(p *api.Policy) policy {
	if p == nil {
		return policy{}
	}
	out := policy{
		skipPrefixes: p.SkipIDPrefixes,
		fixedWindow:  time.Duration(p.FixedWindowMinutes) * time.Minute,
	}
	if p.SkipSpeedBelow != nil {
		out.minSpeed = *p.SkipSpeedBelow
	}
	return out
}

func (p policy) skipID(id string) bool {
	for _, prefix := range p.skipPrefixes {
		if prefix != "" && strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}

// window returns the activity period for a record starting at start. end
// is used when no fixed window applies; a zero end leaves the period open.
func (p policy) window(start, end time.Time) (int64, int64) {
	switch {
	case p.fixedWindow > 0:
		return start.Unix(), start.Add(p.fixedWindow).Unix()
	case end.IsZero():
		return start.Unix(), openEnd
	default:
		return start.Unix(), end.Unix()
	}
}
