package api

// Config is the root configuration of a livegraph process.
// It lists the feeds to poll and where to report their status.
type Config struct {
	// Listen is the status server address. Empty disables the server.
	Listen string `hcl:"listen,optional" yaml:"listen" json:"listen,omitempty" validate:"omitempty,hostname_port"`
	// Journal is the SQLite commit journal path. Empty disables the journal.
	Journal string `hcl:"journal,optional" yaml:"journal" json:"journal,omitempty"`
	// Updaters in declaration order.
	Updaters []UpdaterConfig `hcl:"updater,block" yaml:"updaters" json:"updaters" validate:"unique=ID,dive"`
}

// Updater types.
const (
	TypeGeoJSONPoints = "geojson-points"
	TypeRecords       = "records"
	TypeGeoJSONNotes  = "geojson-notes"
)

// Update types select what a feed produces.
const (
	UpdateStreet = "street"
	UpdateRoute  = "route"
	UpdateSpeed  = "speed"
)

// Record envelope formats.
const (
	FormatXML  = "xml"
	FormatJSON = "json"
)

// UpdaterConfig describes one polled feed.
type UpdaterConfig struct {
	// ID names the updater in logs and the status API.
	ID   string `hcl:"id,label" yaml:"id" json:"id" validate:"required"`
	Type string `hcl:"type" yaml:"type" json:"type" validate:"required,oneof=geojson-points records geojson-notes"`
	URL  string `hcl:"url" yaml:"url" json:"url" validate:"required,url"`

	// FrequencySec is the poll period. Zero uses the default.
	FrequencySec int `hcl:"frequency_sec,optional" yaml:"frequency_sec" json:"frequency_sec,omitempty" validate:"gte=0"`
	// TimeoutSec bounds one fetch. Zero uses the default.
	TimeoutSec int `hcl:"timeout_sec,optional" yaml:"timeout_sec" json:"timeout_sec,omitempty" validate:"gte=0"`
	// Retries is the number of extra fetch attempts within one cycle.
	Retries int `hcl:"retries,optional" yaml:"retries" json:"retries,omitempty" validate:"gte=0,lte=10"`

	UpdateType string `hcl:"update_type,optional" yaml:"update_type" json:"update_type,omitempty" validate:"omitempty,oneof=street route speed"`
	Format     string `hcl:"format,optional" yaml:"format" json:"format,omitempty" validate:"omitempty,oneof=xml json"`
	// Path selects records inside the envelope: "/Evts/Evt" for XML or a
	// JSONPath such as "$.events[*]" for JSON.
	Path string `hcl:"path,optional" yaml:"path" json:"path,omitempty"`

	// Fields renames the record attributes the parser reads. Unset keys
	// keep the feed type's defaults.
	Fields map[string]string `hcl:"fields,optional" yaml:"fields" json:"fields,omitempty"`
	Policy *Policy           `hcl:"policy,block" yaml:"policy" json:"policy,omitempty"`

	// DateLayout is a Go time layout for record dates.
	DateLayout string `hcl:"date_layout,optional" yaml:"date_layout" json:"date_layout,omitempty"`
	// Timezone is the IANA zone record dates are read in.
	Timezone string `hcl:"timezone,optional" yaml:"timezone" json:"timezone,omitempty"`

	BufferMeters       float64 `hcl:"buffer_meters,optional" yaml:"buffer_meters" json:"buffer_meters,omitempty" validate:"gte=0"`
	SearchRadiusMeters float64 `hcl:"search_radius_meters,optional" yaml:"search_radius_meters" json:"search_radius_meters,omitempty" validate:"gte=0"`
	Matcher            string  `hcl:"matcher,optional" yaml:"matcher" json:"matcher,omitempty" validate:"omitempty,oneof=always driving walking bicycle"`
}

// Policy holds feed-specific business rules. The id and window rules are
// off unless set.
type Policy struct {
	// SkipIDPrefixes drops records whose id starts with any prefix.
	SkipIDPrefixes []string `hcl:"skip_id_prefixes,optional" yaml:"skip_id_prefixes" json:"skip_id_prefixes,omitempty"`
	// FixedWindowMinutes replaces the record's end time with start + N minutes.
	FixedWindowMinutes int `hcl:"fixed_window_minutes,optional" yaml:"fixed_window_minutes" json:"fixed_window_minutes,omitempty" validate:"gte=0"`
	// SkipSpeedBelow drops speed records reporting less than this value.
	// Unset means 0, which drops the feed's negative "no data" speeds.
	SkipSpeedBelow *float64 `hcl:"skip_speed_below,optional" yaml:"skip_speed_below" json:"skip_speed_below,omitempty"`
}
