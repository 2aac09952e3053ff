package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilby125/seven-continents/config"
	"github.com/gilby125/seven-continents/db"
	"github.com/gilby125/seven-continents/pkg/cache"
	"github.com/gilby125/seven-continents/pkg/logger"
	"github.com/gilby125/seven-continents/pkg/worker_registry"
	"github.com/gilby125/seven-continents/planner"
	"github.com/gilby125/seven-continents/planner/plannertest"
)

// longRun is a search budget no test waits out.
const longRun = 1_000_000_000

type recordingHistory struct {
	mu     sync.Mutex
	runs   []db.SearchRun
	routes [][]db.SearchRunRoute
	err    error
}

func (h *recordingHistory) SaveRun(_ context.Context, run db.SearchRun, routes []db.SearchRunRoute) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return 0, h.err
	}
	h.runs = append(h.runs, run)
	h.routes = append(h.routes, routes)
	return int64(len(h.runs)), nil
}

func baseSession(t *testing.T) (*planner.Session, config.Config) {
	t.Helper()
	cfg := plannertest.Config(t)
	s := planner.NewSession(cfg, logger.Nop())
	require.NoError(t, s.Prepare(context.Background()))
	return s, cfg
}

func newCache(t *testing.T) *cache.CacheManager {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return cache.NewCacheManager(cache.NewRedisCache(rdb, "test"))
}

func waitFor(t *testing.T, m *Manager, id string) Run {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	run, err := m.Wait(ctx, id)
	require.NoError(t, err)
	return run
}

func TestManager_SubmitCompletes(t *testing.T) {
	base, cfg := baseSession(t)
	cm := newCache(t)
	history := &recordingHistory{}
	m := NewManager(base, cfg.WorkerConfig, nil, WithCache(cm, time.Hour), WithHistory(history))
	defer m.Stop()

	sc := cfg.SearchConfig
	sc.MaxSearches = 200
	id, err := m.Submit(sc)
	require.NoError(t, err)

	run := waitFor(t, m, id)
	assert.Equal(t, StatusCompleted, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, int64(200), run.Result.SearchCount)
	assert.NotEmpty(t, run.Result.Routes)
	assert.Equal(t, int64(200), run.Progress.Searches)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))

	latest, err := cm.LatestRunID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, latest)

	var cached Run
	require.NoError(t, cm.GetRun(context.Background(), id, &cached))
	assert.Equal(t, StatusCompleted, cached.Status)
	assert.Equal(t, run.Result.Routes[0].Codes, cached.Result.Routes[0].Codes)

	history.mu.Lock()
	require.Len(t, history.runs, 1)
	assert.Equal(t, id, history.runs[0].RunID.String())
	assert.Len(t, history.routes[0], len(run.Result.Routes))
	history.mu.Unlock()

	assert.Len(t, m.List(), 1)
}

func TestManager_SubmitInvalid(t *testing.T) {
	base, cfg := baseSession(t)
	m := NewManager(base, cfg.WorkerConfig, nil)
	defer m.Stop()

	sc := cfg.SearchConfig
	sc.StartAirportCodes = []string{"NOPE"}
	_, err := m.Submit(sc)
	assert.Error(t, err)

	sc = cfg.SearchConfig
	sc.NumBestRoutes = 0
	_, err = m.Submit(sc)
	assert.Error(t, err)
	assert.Empty(t, m.List())
}

func TestManager_CancelKeepsBestRoutes(t *testing.T) {
	base, cfg := baseSession(t)
	m := NewManager(base, cfg.WorkerConfig, nil)
	defer m.Stop()

	sc := cfg.SearchConfig
	sc.MaxSearches = longRun
	sc.ProgressInterval = 10 * time.Millisecond
	id, err := m.Submit(sc)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		run, err := m.Get(context.Background(), id)
		return err == nil && run.Progress.ValidRoutes > 0
	}, 10*time.Second, 10*time.Millisecond)
	require.NoError(t, m.Cancel(id))

	run := waitFor(t, m, id)
	assert.Equal(t, StatusCancelled, run.Status)
	require.NotNil(t, run.Result)
	assert.True(t, run.Result.Cancelled)
	assert.NotEmpty(t, run.Result.Routes)

	// Cancelling again is a no-op.
	assert.NoError(t, m.Cancel(id))
}

func TestManager_NotFound(t *testing.T) {
	base, cfg := baseSession(t)
	m := NewManager(base, cfg.WorkerConfig, nil, WithCache(newCache(t), time.Hour))
	defer m.Stop()

	_, err := m.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Cancel("missing"), ErrNotFound)
}

func TestManager_GetFallsBackToCache(t *testing.T) {
	base, cfg := baseSession(t)
	cm := newCache(t)

	stored := Run{ID: "earlier", Status: StatusCompleted, SubmittedAt: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, cm.SaveRun(context.Background(), stored.ID, stored, time.Hour))

	m := NewManager(base, cfg.WorkerConfig, nil, WithCache(cm, time.Hour))
	defer m.Stop()

	run, err := m.Get(context.Background(), "earlier")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.True(t, stored.SubmittedAt.Equal(run.SubmittedAt))
}

func TestManager_BoundedSlots(t *testing.T) {
	base, cfg := baseSession(t)
	wc := cfg.WorkerConfig
	wc.MaxConcurrentRuns = 1
	m := NewManager(base, wc, nil)
	defer m.Stop()
	assert.Equal(t, 1, m.Capacity())

	sc := cfg.SearchConfig
	sc.MaxSearches = longRun
	first, err := m.Submit(sc)
	require.NoError(t, err)
	second, err := m.Submit(sc)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		run, _ := m.Get(context.Background(), first)
		return run.Status == StatusRunning
	}, 10*time.Second, 5*time.Millisecond)

	run, err := m.Get(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, run.Status)
	assert.Equal(t, 1, m.Active())

	require.NoError(t, m.Cancel(second))
	assert.Equal(t, StatusCancelled, waitFor(t, m, second).Status)
	require.NoError(t, m.Cancel(first))
	assert.Equal(t, StatusCancelled, waitFor(t, m, first).Status)
}

func TestManager_StopCancelsRuns(t *testing.T) {
	base, cfg := baseSession(t)
	history := &recordingHistory{err: errors.New("database down")}
	m := NewManager(base, cfg.WorkerConfig, nil, WithHistory(history))

	sc := cfg.SearchConfig
	sc.MaxSearches = longRun
	id, err := m.Submit(sc)
	require.NoError(t, err)

	m.Stop()
	run, err := m.Get(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, run.Status.Done())

	_, err = m.Submit(sc)
	assert.ErrorIs(t, err, ErrStopped)
}

func TestManager_Heartbeat(t *testing.T) {
	base, cfg := baseSession(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	reg := worker_registry.New(rdb, "test")

	m := NewManager(base, cfg.WorkerConfig, nil, WithRegistry(reg, 20*time.Millisecond))

	var active []worker_registry.PlannerHeartbeat
	require.Eventually(t, func() bool {
		var err error
		active, err = reg.ListActive(context.Background(), time.Minute, 10)
		return err == nil && len(active) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 15, active[0].Airports)
	assert.Equal(t, cfg.WorkerConfig.MaxConcurrentRuns, active[0].MaxRuns)

	m.Stop()
	active, err := reg.ListActive(context.Background(), time.Minute, 10)
	require.NoError(t, err)
	assert.Empty(t, active)
}

type chanNotifier chan string

func (n chanNotifier) AlertRunFinished(_ context.Context, id, status string, res *planner.Result, errMsg string) error {
	n <- id + ":" + status
	return nil
}

func TestManager_Notifies(t *testing.T) {
	base, cfg := baseSession(t)
	n := make(chanNotifier, 1)
	m := NewManager(base, cfg.WorkerConfig, nil, WithNotifier(n))
	defer m.Stop()

	sc := cfg.SearchConfig
	sc.MaxSearches = 50
	id, err := m.Submit(sc)
	require.NoError(t, err)

	select {
	case got := <-n:
		assert.Equal(t, id+":completed", got)
	case <-time.After(30 * time.Second):
		t.Fatal("no notification")
	}
}

func TestManager_EvictsOldFinishedRuns(t *testing.T) {
	base, cfg := baseSession(t)
	cm := newCache(t)
	wc := cfg.WorkerConfig
	wc.RetainRuns = 1
	m := NewManager(base, wc, nil, WithCache(cm, time.Hour))
	defer m.Stop()

	sc := cfg.SearchConfig
	sc.MaxSearches = 20
	first, err := m.Submit(sc)
	require.NoError(t, err)
	waitFor(t, m, first)
	second, err := m.Submit(sc)
	require.NoError(t, err)
	waitFor(t, m, second)

	runs := m.List()
	require.Len(t, runs, 1)
	assert.Equal(t, second, runs[0].ID)

	// The evicted run is still served from the result cache.
	run, err := m.Get(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.ErrorIs(t, m.Cancel(first), ErrNotFound)
}
