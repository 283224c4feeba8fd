package updater

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
)

var ErrMalformedEnvelope = errors.New("malformed feed envelope")

// ErrUnmatched marks a record that matched no edge. It is not a failure.
var ErrUnmatched = errors.New("matched to nothing")

var errMissingField = errors.New("missing field")

// Record is one decoded feed entry: a property bag plus an optional
// geometry.
type Record struct {
	// Index is the record's position in the envelope.
	Index    int
	Props    map[string]any
	Geometry geom.T
}

// String returns the property as text. Numbers are formatted without
// exponent; a missing or null property reports false.
func (r Record) String(key string) (string, bool) {
	v, ok := r.Props[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return fmt.Sprint(t), true
	}
}

// Require is String that fails on a missing or blank property.
func (r Record) Require(key string) (string, error) {
	s, ok := r.String(key)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w %q", errMissingField, key)
	}
	return s, nil
}

// Present reports whether key holds a value other than null or blank text.
func (r Record) Present(key string) bool {
	s, ok := r.String(key)
	return ok && strings.TrimSpace(s) != ""
}

// Float reads a numeric property, accepting numeric strings.
func (r Record) Float(key string) (float64, error) {
	v, ok := r.Props[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w %q", errMissingField, key)
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", key, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("field %q: not a number: %T", key, v)
}

// Parser decodes a fetched document into records. A malformed envelope
// fails the whole document with ErrMalformedEnvelope; a record that cannot
// be decoded is reported in skipped and the rest are returned.
type Parser interface {
	Parse(data []byte) (records []Record, skipped []error, err error)
}
