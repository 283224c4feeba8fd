package updater

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agentic-research/livegraph/api"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var ErrDuplicateUpdater = errors.New("duplicate updater id")

// teardownTimeout bounds the removal of installed patches at shutdown.
const teardownTimeout = 30 * time.Second

// Manager schedules every configured updater, each on its own period.
type Manager struct {
	mu       sync.RWMutex
	updaters []Updater
	byID     map[string]Updater
	log      logrus.FieldLogger
}

func NewManager(log logrus.FieldLogger) *Manager {
	return &Manager{
		byID: make(map[string]Updater),
		log:  log.WithField("component", "updater_manager"),
	}
}

// FromConfig builds a manager holding one updater per configured feed.
func FromConfig(cfg *api.Config, deps Deps) (*Manager, error) {
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	m := NewManager(deps.Log)
	for _, uc := range cfg.Updaters {
		u, err := New(uc, deps)
		if err != nil {
			return nil, err
		}
		if err := m.Add(u); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Manager) Add(u Updater) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[u.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateUpdater, u.ID())
	}
	m.byID[u.ID()] = u
	m.updaters = append(m.updaters, u)
	return nil
}

// Updaters returns the updaters in the order they were added.
func (m *Manager) Updaters() []Updater {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Updater(nil), m.updaters...)
}

func (m *Manager) Updater(id string) (Updater, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	return u, ok
}

// Run sets up each updater, then runs its cycles until ctx ends: one
// immediately and one per period after that. Cycles of one updater never
// overlap; a tick that arrives mid-cycle is dropped. When ctx ends every
// set-up updater is torn down before Run returns.
func (m *Manager) Run(ctx context.Context) error {
	updaters := m.Updaters()
	if len(updaters) == 0 {
		m.log.Info("no updaters configured")
	}

	var running []Updater
	for _, u := range updaters {
		if err := u.Setup(ctx); err != nil {
			m.log.WithField("updater", u.ID()).WithError(err).Error("setup failed, updater disabled")
			continue
		}
		running = append(running, u)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, u := range running {
		g.Go(func() error {
			m.loop(gctx, u)
			return nil
		})
	}
	err := g.Wait()

	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
	defer cancel()
	for _, u := range running {
		if terr := u.Teardown(tctx); terr != nil {
			m.log.WithField("updater", u.ID()).WithError(terr).Error("teardown failed")
			err = errors.Join(err, terr)
		}
	}
	return err
}

func (m *Manager) loop(ctx context.Context, u Updater) {
	log := m.log.WithField("updater", u.ID())
	period := u.Frequency()
	if period <= 0 {
		log.Warn("no frequency, running once")
		_ = u.RunOnce(ctx)
		<-ctx.Done()
		return
	}
	log.WithField("frequency", period.String()).Info("polling")

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		// Failures are logged by the pipeline and retried next period.
		_ = u.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
