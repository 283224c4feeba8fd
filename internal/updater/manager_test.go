package updater

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentic-research/livegraph/api"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingUpdater records its lifecycle calls.
type countingUpdater struct {
	id        string
	period    time.Duration
	runs      atomic.Int32
	running   atomic.Int32
	overlap   atomic.Bool
	tornDown  atomic.Bool
	setupErr  error
	cycleTime time.Duration
}

func (u *countingUpdater) ID() string               { return u.id }
func (u *countingUpdater) Description() string      { return "counting" }
func (u *countingUpdater) Frequency() time.Duration { return u.period }
func (u *countingUpdater) Setup(context.Context) error {
	return u.setupErr
}
func (u *countingUpdater) RunOnce(context.Context) error {
	if u.running.Add(1) > 1 {
		u.overlap.Store(true)
	}
	time.Sleep(u.cycleTime)
	u.runs.Add(1)
	u.running.Add(-1)
	return nil
}
func (u *countingUpdater) Teardown(context.Context) error {
	u.tornDown.Store(true)
	return nil
}
func (u *countingUpdater) Status() Status { return Status{ID: u.id} }
func (u *countingUpdater) Updates() any   { return nil }

func TestManager_AddRejectsDuplicates(t *testing.T) {
	log, _ := test.NewNullLogger()
	m := NewManager(log)
	require.NoError(t, m.Add(&countingUpdater{id: "a"}))
	require.NoError(t, m.Add(&countingUpdater{id: "b"}))
	assert.ErrorIs(t, m.Add(&countingUpdater{id: "a"}), ErrDuplicateUpdater)

	ids := []string{}
	for _, u := range m.Updaters() {
		ids = append(ids, u.ID())
	}
	assert.Equal(t, []string{"a", "b"}, ids)

	_, ok := m.Updater("b")
	assert.True(t, ok)
	_, ok = m.Updater("c")
	assert.False(t, ok)
}

func TestManager_RunSchedulesAndTearsDown(t *testing.T) {
	log, _ := test.NewNullLogger()
	m := NewManager(log)
	fast := &countingUpdater{id: "fast", period: 5 * time.Millisecond, cycleTime: 12 * time.Millisecond}
	slow := &countingUpdater{id: "slow", period: time.Hour}
	broken := &countingUpdater{id: "broken", period: time.Millisecond, setupErr: assert.AnError}
	for _, u := range []*countingUpdater{fast, slow, broken} {
		require.NoError(t, m.Add(u))
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, m.Run(ctx))
	}()

	require.Eventually(t, func() bool { return fast.runs.Load() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()
	wg.Wait()

	assert.False(t, fast.overlap.Load(), "cycles of one updater never overlap")
	assert.Equal(t, int32(1), slow.runs.Load(), "first cycle runs immediately")
	assert.Zero(t, broken.runs.Load())
	assert.True(t, fast.tornDown.Load())
	assert.True(t, slow.tornDown.Load())
	assert.False(t, broken.tornDown.Load(), "never set up, never torn down")
}

func TestFromConfig(t *testing.T) {
	f := newFixture(t)
	log, _ := test.NewNullLogger()
	cfg := &api.Config{Updaters: []api.UpdaterConfig{
		{ID: "cars", Type: api.TypeGeoJSONPoints, URL: "http://feeds.invalid/cars", FrequencySec: 60},
		{ID: "evts", Type: api.TypeRecords, URL: "http://feeds.invalid/evts", Path: "/Evts/Evt", FrequencySec: 60},
		{ID: "roadworks", Type: api.TypeGeoJSONNotes, URL: "http://feeds.invalid/works", FrequencySec: 300},
	}}
	m, err := FromConfig(cfg, Deps{Graph: f.graph, Notes: f.notes, Writer: f.writer, Log: log})
	require.NoError(t, err)

	us := m.Updaters()
	require.Len(t, us, 3)
	assert.IsType(t, &streetUpdater{}, us[0])
	assert.IsType(t, &streetUpdater{}, us[1])
	assert.IsType(t, &notesUpdater{}, us[2])
	assert.Equal(t, 5*time.Minute, us[2].Frequency())
	assert.Contains(t, us[0].Description(), "http://feeds.invalid/cars")
	assert.Equal(t, StageIdle, us[1].Status().Stage)

	_, err = FromConfig(cfg, Deps{Log: log})
	assert.Error(t, err)
}

// every runs a real updater on a test-sized period.
type every struct {
	Updater
	period time.Duration
}

func (e every) Frequency() time.Duration { return e.period }

func TestManager_HungFeedDoesNotStarveOthers(t *testing.T) {
	f := newFixture(t)
	stuckSrv, _ := hungServer(t, "")
	okSrv := newFeedServer(t, closureFeed)

	stuck := f.updaterWithClient(t, api.UpdaterConfig{
		ID: "stuck", Type: api.TypeGeoJSONPoints, URL: stuckSrv.URL, UpdateType: api.UpdateStreet,
	}, &http.Client{Timeout: 5 * time.Second})
	healthy := f.updater(t, api.UpdaterConfig{
		ID: "healthy", Type: api.TypeGeoJSONPoints, URL: okSrv.URL, UpdateType: api.UpdateStreet, Timezone: "UTC",
	})

	log, _ := test.NewNullLogger()
	m := NewManager(log)
	require.NoError(t, m.Add(every{Updater: stuck, period: 5 * time.Millisecond}))
	require.NoError(t, m.Add(every{Updater: healthy, period: 5 * time.Millisecond}))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, m.Run(ctx))
	}()

	require.Eventually(t, func() bool { return healthy.Status().Runs >= 5 }, 3*time.Second, time.Millisecond)
	st := stuck.Status()
	assert.Equal(t, StageFetching, st.Stage, "first fetch is still pending")
	assert.Equal(t, 1, st.Runs)
	assert.Zero(t, healthy.Status().Failures)

	cancel()
	wg.Wait()
	assert.Equal(t, StageIdle, stuck.Status().Stage, "cancel ends the pending fetch")
}
