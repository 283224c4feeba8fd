// Package updater polls live feeds and installs what they report into the
// street graph. Each configured feed becomes an Updater running a Pipeline;
// all graph mutation goes through one shared Executor.
package updater

import (
	"context"
	"fmt"
	"time"

	"github.com/agentic-research/livegraph/api"
	"github.com/agentic-research/livegraph/internal/config"
	"github.com/agentic-research/livegraph/internal/geo"
	"github.com/agentic-research/livegraph/internal/graph"
	"github.com/agentic-research/livegraph/internal/notes"
	"github.com/agentic-research/livegraph/internal/patch"
	"github.com/sirupsen/logrus"
)

// Updater is one polled feed.
type Updater interface {
	ID() string
	// Description names the feed type and its source for status listings.
	Description() string
	Frequency() time.Duration
	// Setup runs once before the first cycle.
	Setup(ctx context.Context) error
	RunOnce(ctx context.Context) error
	// Teardown removes everything the updater installed.
	Teardown(ctx context.Context) error
	Status() Status
	// Updates is a JSON-ready dump of what the updater currently holds.
	Updates() any
}

// Deps are the collaborators shared by every updater.
type Deps struct {
	Graph   *graph.Graph
	Notes   *notes.Service
	Writer  *Executor
	Journal Journal
	Log     logrus.FieldLogger
	// Client overrides the fetch transport, mainly for tests.
	Client HTTPClient
}

// New builds the updater described by u. u is expected to have passed
// config.Validate with defaults applied.
func New(u api.UpdaterConfig, deps Deps) (Updater, error) {
	if deps.Graph == nil || deps.Writer == nil {
		return nil, fmt.Errorf("updater %s: graph and writer are required", u.ID)
	}
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	parser, err := newParser(u)
	if err != nil {
		return nil, fmt.Errorf("updater %s: %w", u.ID, err)
	}
	fetcher := NewFetcher(u.URL, config.Timeout(u), u.Retries)
	if deps.Client != nil {
		fetcher.Client = deps.Client
	}

	reader := recordReader{
		fields: resolveFields(u),
		dates:  dateReader{layout: u.DateLayout, loc: config.Location(u)},
		policy: newPolicy(u.Policy),
	}
	if reader.dates.layout == "" {
		reader.dates.layout = config.DefaultDateLayout
	}
	radius := u.SearchRadiusMeters
	if radius == 0 {
		radius = config.DefaultSearchRadius
	}
	matcher := geo.NewMatcher(deps.Graph.Index(), radius)

	b := base{
		cfg:   u,
		state: &runState{st: Status{ID: u.ID, Type: describe(u), URL: u.URL, Frequency: config.Frequency(u).String(), Stage: StageIdle}},
		log:   deps.Log.WithFields(logrus.Fields{"updater": u.ID, "type": u.Type}),
		deps:  deps,
	}

	switch {
	case u.Type == api.TypeGeoJSONNotes:
		m, err := notes.ParseMatcher(u.Matcher)
		if err != nil {
			return nil, fmt.Errorf("updater %s: %w", u.ID, err)
		}
		index := notes.NewIndex()
		nu := &notesUpdater{base: b, index: index}
		nu.pipe = &Pipeline[noteHit]{
			Source: fetcher,
			Parser: parser,
			Binder: &notesBinder{recordReader: reader, matcher: matcher, buffer: u.BufferMeters},
			Sink:   notesSink{index: index, matcher: m},
			Held:   func() int { return index.Current().Len() },
		}
		wire(b, nu.pipe)
		return nu, nil

	case u.UpdateType == api.UpdateRoute:
		store := patch.NewRouteStore()
		ru := &routeUpdater{base: b, store: store}
		ru.pipe = &Pipeline[*patch.RoutePatch]{
			Source: fetcher,
			Parser: parser,
			Binder: &routeBinder{recordReader: reader},
			Sink:   routeSink{store: store},
			Held:   store.Len,
		}
		wire(b, ru.pipe)
		return ru, nil

	default:
		store := patch.NewStreetStore(deps.Graph, matcher)
		su := &streetUpdater{base: b, store: store}
		su.pipe = &Pipeline[*patch.StreetPatch]{
			Source: fetcher,
			Parser: parser,
			Binder: &streetBinder{recordReader: reader, speed: u.UpdateType == api.UpdateSpeed, store: store},
			Sink:   streetSink{store: store},
			Held:   store.Len,
		}
		wire(b, su.pipe)
		return su, nil
	}
}

func newParser(u api.UpdaterConfig) (Parser, error) {
	switch u.Type {
	case api.TypeGeoJSONPoints, api.TypeGeoJSONNotes:
		return FeatureParser{}, nil
	case api.TypeRecords:
		if u.Format == api.FormatJSON {
			return NewJSONParser(u.Path)
		}
		return NewXMLParser(u.Path)
	}
	return nil, fmt.Errorf("unknown updater type %q", u.Type)
}

func describe(u api.UpdaterConfig) string {
	if u.UpdateType == "" {
		return u.Type
	}
	return u.Type + "/" + u.UpdateType
}

// base carries what every updater variant shares.
type base struct {
	cfg   api.UpdaterConfig
	state *runState
	log   logrus.FieldLogger
	deps  Deps
}

// wire fills the pipeline fields common to every variant.
func wire[T any](b base, p *Pipeline[T]) {
	p.ID = b.cfg.ID
	p.Writer = b.deps.Writer
	p.Journal = b.deps.Journal
	p.Log = b.log
	p.state = b.state
}

func (b base) ID() string               { return b.cfg.ID }
func (b base) Frequency() time.Duration { return config.Frequency(b.cfg) }
func (b base) Status() Status           { return b.state.snapshot() }

func (b base) Description() string {
	return fmt.Sprintf("%s from %s every %s", describe(b.cfg), b.cfg.URL, b.Frequency())
}

type streetUpdater struct {
	base
	store *patch.StreetStore
	pipe  *Pipeline[*patch.StreetPatch]
}

func (u *streetUpdater) Setup(context.Context) error {
	u.log.Info("street updater configured")
	return nil
}

func (u *streetUpdater) RunOnce(ctx context.Context) error { return u.pipe.RunOnce(ctx) }

func (u *streetUpdater) Teardown(ctx context.Context) error {
	err := u.deps.Writer.Execute(ctx, "teardown:"+u.cfg.ID, u.store.ExpireAll)
	patchesHeld.WithLabelValues(u.cfg.ID).Set(float64(u.store.Len()))
	return err
}

// Store exposes the patches for search integration.
func (u *streetUpdater) Store() *patch.StreetStore { return u.store }

func (u *streetUpdater) Updates() any {
	return map[string]any{"streetPatches": u.store.AllPatches()}
}

type routeUpdater struct {
	base
	store *patch.RouteStore
	pipe  *Pipeline[*patch.RoutePatch]
}

func (u *routeUpdater) Setup(context.Context) error {
	u.log.Info("route alert updater configured")
	return nil
}

func (u *routeUpdater) RunOnce(ctx context.Context) error { return u.pipe.RunOnce(ctx) }

func (u *routeUpdater) Teardown(ctx context.Context) error {
	err := u.deps.Writer.Execute(ctx, "teardown:"+u.cfg.ID, u.store.ExpireAll)
	patchesHeld.WithLabelValues(u.cfg.ID).Set(float64(u.store.Len()))
	return err
}

func (u *routeUpdater) Store() *patch.RouteStore { return u.store }

func (u *routeUpdater) Updates() any {
	return map[string]any{"alerts": u.store.AllPatches()}
}

type notesUpdater struct {
	base
	index *notes.Index
	pipe  *Pipeline[noteHit]
}

// Setup registers the updater's index with the notes service so search
// sees the notes it installs.
func (u *notesUpdater) Setup(ctx context.Context) error {
	if u.deps.Notes == nil {
		u.log.Warn("no notes service, notes will only be visible in status")
		return nil
	}
	return u.deps.Writer.Execute(ctx, "setup:"+u.cfg.ID, func() error {
		u.deps.Notes.AddSource(u.index)
		return nil
	})
}

func (u *notesUpdater) RunOnce(ctx context.Context) error { return u.pipe.RunOnce(ctx) }

func (u *notesUpdater) Teardown(ctx context.Context) error {
	err := u.deps.Writer.Execute(ctx, "teardown:"+u.cfg.ID, func() error {
		u.index.Replace(nil)
		if u.deps.Notes != nil {
			u.deps.Notes.RemoveSource(u.index)
		}
		return nil
	})
	patchesHeld.WithLabelValues(u.cfg.ID).Set(0)
	return err
}

func (u *notesUpdater) Index() *notes.Index { return u.index }

func (u *notesUpdater) Updates() any {
	return map[string]any{"notes": u.index.Updates()}
}

var (
	_ Updater = (*streetUpdater)(nil)
	_ Updater = (*routeUpdater)(nil)
	_ Updater = (*notesUpdater)(nil)
)
