package patch

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// TranslatedString maps a language tag to text. The empty tag holds the
// untranslated default.
type TranslatedString map[string]string

// NewTranslatedString returns a string with only a default translation.
func NewTranslatedString(text string) TranslatedString {
	if text == "" {
		return nil
	}
	return TranslatedString{"": text}
}

// Text returns the translation for lang, falling back to the default.
func (t TranslatedString) Text(lang string) string {
	if s, ok := t[lang]; ok {
		return s
	}
	return t[""]
}

func (t TranslatedString) writeKey(b *strings.Builder) {
	langs := make([]string, 0, len(t))
	for lang := range t {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	b.WriteByte('{')
	for _, lang := range langs {
		b.WriteString(strconv.Quote(lang))
		b.WriteByte(':')
		b.WriteString(strconv.Quote(t[lang]))
		b.WriteByte(',')
	}
	b.WriteByte('}')
}

// Alert is the traveler-facing note carried by a patch.
type Alert struct {
	Header      TranslatedString `json:"alertHeaderText,omitempty"`
	Description TranslatedString `json:"alertDescriptionText,omitempty"`
	URL         string           `json:"alertUrl,omitempty"`
	// EffectiveStart and EffectiveEnd bound the alert itself, independent of
	// the owning patch's windows. A zero EffectiveEnd is open-ended.
	EffectiveStart time.Time `json:"effectiveStartDate,omitzero"`
	EffectiveEnd   time.Time `json:"effectiveEndDate,omitzero"`
}

// Key returns a string that is identical for structurally equal alerts.
func (a *Alert) Key() string {
	if a == nil {
		return ""
	}
	var b strings.Builder
	a.Header.writeKey(&b)
	a.Description.writeKey(&b)
	b.WriteString(strconv.Quote(a.URL))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(a.EffectiveStart.UnixNano(), 10))
	b.WriteByte('|')
	if !a.EffectiveEnd.IsZero() {
		b.WriteString(strconv.FormatInt(a.EffectiveEnd.UnixNano(), 10))
	}
	return b.String()
}

// EffectiveAt reports whether t falls within the alert's own bounds.
func (a *Alert) EffectiveAt(t time.Time) bool {
	if !a.EffectiveStart.IsZero() && t.Before(a.EffectiveStart) {
		return false
	}
	return a.EffectiveEnd.IsZero() || t.Before(a.EffectiveEnd)
}

// TimePeriod is an activity window in epoch seconds, end exclusive.
type TimePeriod struct {
	Start int64 `json:"startTime"`
	End   int64 `json:"endTime"`
}

// Covers reports whether a query evaluated at evalTime that started at
// startTime falls inside the period. Both bounds are checked.
func (p TimePeriod) Covers(evalTime, startTime int64) bool {
	return evalTime >= p.Start && startTime < p.End
}

// Periods is an ordered list of activity windows.
type Periods []TimePeriod

// Covers reports whether any period covers the query times.
func (ps Periods) Covers(evalTime, startTime int64) bool {
	for _, p := range ps {
		if p.Covers(evalTime, startTime) {
			return true
		}
	}
	return false
}
