// Package config loads and validates livegraph configuration files.
//
// HCL (.hcl) and HCL-flavoured JSON (.json) are decoded with hclsimple;
// YAML (.yaml, .yml) with yaml.v3. Both produce an api.Config which is
// then defaulted and validated.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/agentic-research/livegraph/api"
	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListen       = ":8080"
	DefaultFrequencySec = 60
	DefaultTimeoutSec   = 30
	DefaultBufferMeters = 2.0
	DefaultSearchRadius = 100.0
	DefaultDateLayout   = "02/01/2006 15:04:05"
)

var ErrInvalid = errors.New("invalid configuration")

var validate = validator.New()

// Load reads, defaults and validates the file at path.
func Load(path string) (*api.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, filepath.Base(path))
}

// Parse decodes data using the format implied by filename's extension.
func Parse(data []byte, filename string) (*api.Config, error) {
	cfg := &api.Config{}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".hcl", ".json":
		if err := hclsimple.Decode(filename, data, nil, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", filename, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", filename, err)
		}
	default:
		return nil, fmt.Errorf("decode %s: unsupported config format", filename)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero values with the package defaults.
func ApplyDefaults(cfg *api.Config) {
	for i := range cfg.Updaters {
		u := &cfg.Updaters[i]
		if u.FrequencySec == 0 {
			u.FrequencySec = DefaultFrequencySec
		}
		if u.TimeoutSec == 0 {
			u.TimeoutSec = DefaultTimeoutSec
		}
		if u.DateLayout == "" {
			u.DateLayout = DefaultDateLayout
		}
		switch u.Type {
		case api.TypeGeoJSONPoints:
			if u.UpdateType == "" {
				u.UpdateType = api.UpdateSpeed
			}
			if u.SearchRadiusMeters == 0 {
				u.SearchRadiusMeters = DefaultSearchRadius
			}
		case api.TypeRecords:
			if u.UpdateType == "" {
				u.UpdateType = api.UpdateStreet
			}
			if u.Format == "" {
				u.Format = api.FormatXML
			}
			if u.SearchRadiusMeters == 0 {
				u.SearchRadiusMeters = DefaultSearchRadius
			}
		case api.TypeGeoJSONNotes:
			if u.BufferMeters == 0 {
				u.BufferMeters = DefaultBufferMeters
			}
			if u.Matcher == "" {
				u.Matcher = "always"
			}
		}
	}
}

// Validate checks struct constraints and the rules that span fields.
func Validate(cfg *api.Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	for _, u := range cfg.Updaters {
		if u.Type == api.TypeRecords && u.Path == "" {
			return fmt.Errorf("%w: updater %q: records feeds need a path", ErrInvalid, u.ID)
		}
		if u.Type == api.TypeGeoJSONNotes && u.UpdateType != "" {
			return fmt.Errorf("%w: updater %q: update_type does not apply to notes feeds", ErrInvalid, u.ID)
		}
		if u.Type == api.TypeGeoJSONPoints && u.UpdateType == api.UpdateRoute {
			return fmt.Errorf("%w: updater %q: point feeds cannot produce route alerts", ErrInvalid, u.ID)
		}
		if u.Timezone != "" {
			if _, err := time.LoadLocation(u.Timezone); err != nil {
				return fmt.Errorf("%w: updater %q: %v", ErrInvalid, u.ID, err)
			}
		}
	}
	return nil
}

// Location returns the zone record dates are read in.
func Location(u api.UpdaterConfig) *time.Location {
	if u.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func Frequency(u api.UpdaterConfig) time.Duration {
	return time.Duration(u.FrequencySec) * time.Second
}

func Timeout(u api.UpdaterConfig) time.Duration {
	return time.Duration(u.TimeoutSec) * time.Second
}
