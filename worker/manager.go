// Package worker runs planning sessions in the background for serve mode.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/gilby125/seven-continents/config"
	"github.com/gilby125/seven-continents/db"
	"github.com/gilby125/seven-continents/pkg/buildinfo"
	"github.com/gilby125/seven-continents/pkg/cache"
	"github.com/gilby125/seven-continents/pkg/logger"
	"github.com/gilby125/seven-continents/pkg/metrics"
	"github.com/gilby125/seven-continents/pkg/worker_registry"
	"github.com/gilby125/seven-continents/planner"
	"github.com/gilby125/seven-continents/search"
)

var (
	// ErrNotFound is returned for an unknown run id.
	ErrNotFound = errors.New("run not found")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("run manager stopped")
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Done reports whether s is terminal.
func (s Status) Done() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// Run is a snapshot of one background planning run.
type Run struct {
	ID          string          `json:"id" msgpack:"id"`
	Status      Status          `json:"status" msgpack:"status"`
	SubmittedAt time.Time       `json:"submitted_at" msgpack:"submitted_at"`
	StartedAt   time.Time       `json:"started_at,omitempty" msgpack:"started_at"`
	FinishedAt  time.Time       `json:"finished_at,omitempty" msgpack:"finished_at"`
	Progress    search.Progress `json:"progress" msgpack:"progress"`
	Result      *planner.Result `json:"result,omitempty" msgpack:"result,omitempty"`
	Error       string          `json:"error,omitempty" msgpack:"error,omitempty"`
}

// HistoryStore records finished runs.
type HistoryStore interface {
	SaveRun(ctx context.Context, run db.SearchRun, routes []db.SearchRunRoute) (int64, error)
}

// Notifier is told about every finished run.
type Notifier interface {
	AlertRunFinished(ctx context.Context, id, status string, res *planner.Result, errMsg string) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithCache saves finished runs to the result cache for ttl.
func WithCache(cm *cache.CacheManager, ttl time.Duration) Option {
	return func(m *Manager) {
		m.cache, m.cacheTTL = cm, ttl
	}
}

// WithHistory records finished runs in a history store.
func WithHistory(h HistoryStore) Option {
	return func(m *Manager) {
		m.history = h
	}
}

// WithNotifier sends an alert for every finished run.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithRegistry publishes a heartbeat every interval.
func WithRegistry(reg *worker_registry.Registry, interval time.Duration) Option {
	return func(m *Manager) {
		m.registry, m.heartbeatEvery = reg, interval
	}
}

const defaultRetainRuns = 100

type entry struct {
	run    Run
	cancel context.CancelFunc
}

// Manager runs forks of a prepared base session, at most
// WorkerConfig.MaxConcurrentRuns at a time. Queued runs wait for a slot.
type Manager struct {
	base *planner.Session
	cfg  config.WorkerConfig
	log  *logger.Logger
	sem  *semaphore.Weighted

	cache          *cache.CacheManager
	cacheTTL       time.Duration
	history        HistoryStore
	notifier       Notifier
	registry       *worker_registry.Registry
	heartbeatEvery time.Duration

	id        string
	startedAt time.Time

	ctx      context.Context
	stop     context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.RWMutex
	runs     map[string]*entry
	finished []string // terminal run ids, oldest first
	active   int
	done     int
}

// NewManager returns a manager over base, which must be prepared.
func NewManager(base *planner.Session, cfg config.WorkerConfig, log *logger.Logger, opts ...Option) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	slots := cfg.MaxConcurrentRuns
	if slots < 1 {
		slots = 1
	}
	ctx, stop := context.WithCancel(context.Background())
	m := &Manager{
		base:      base,
		cfg:       cfg,
		log:       log,
		sem:       semaphore.NewWeighted(int64(slots)),
		id:        uuid.NewString(),
		startedAt: time.Now().UTC(),
		ctx:       ctx,
		stop:      stop,
		runs:      make(map[string]*entry),
	}
	m.cfg.MaxConcurrentRuns = slots
	if m.cfg.RetainRuns < 1 {
		m.cfg.RetainRuns = defaultRetainRuns
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry != nil && m.heartbeatEvery > 0 {
		m.wg.Add(1)
		go m.heartbeat()
	}
	return m
}

// Base returns the session runs are forked from.
func (m *Manager) Base() *planner.Session {
	return m.base
}

// Submit validates sc against the base session and starts a run in the
// background. It returns the run id.
func (m *Manager) Submit(sc config.SearchConfig) (string, error) {
	if m.ctx.Err() != nil {
		return "", ErrStopped
	}
	session, err := m.base.Fork(sc)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if m.cfg.RunTimeout > 0 {
		ctx, cancel = context.WithTimeout(m.ctx, m.cfg.RunTimeout)
	} else {
		ctx, cancel = context.WithCancel(m.ctx)
	}

	m.mu.Lock()
	m.runs[id] = &entry{
		run:    Run{ID: id, Status: StatusQueued, SubmittedAt: time.Now().UTC()},
		cancel: cancel,
	}
	m.mu.Unlock()

	m.log.Info("Run submitted", "run_id", id, "max_searches", sc.MaxSearches)
	m.wg.Add(1)
	go m.execute(ctx, cancel, id, session)
	return id, nil
}

func (m *Manager) execute(ctx context.Context, cancel context.CancelFunc, id string, session *planner.Session) {
	defer m.wg.Done()
	defer cancel()

	if err := m.sem.Acquire(ctx, 1); err != nil {
		m.finish(ctx, id, &planner.Result{Cancelled: true}, nil)
		return
	}
	defer m.sem.Release(1)

	m.mu.Lock()
	m.runs[id].run.Status = StatusRunning
	m.runs[id].run.StartedAt = time.Now().UTC()
	m.active++
	m.mu.Unlock()

	session.OnProgress(func(p search.Progress) {
		m.update(id, func(r *Run) { r.Progress = p })
	})
	res, err := session.Run(ctx)

	m.mu.Lock()
	m.active--
	m.mu.Unlock()
	m.finish(ctx, id, res, err)
}

func (m *Manager) finish(ctx context.Context, id string, res *planner.Result, err error) {
	m.mu.RLock()
	snapshot := m.runs[id].run
	m.mu.RUnlock()

	snapshot.FinishedAt = time.Now().UTC()
	switch {
	case err != nil:
		snapshot.Status = StatusFailed
		snapshot.Error = err.Error()
	case res.Cancelled:
		snapshot.Status = StatusCancelled
		snapshot.Result = res
	default:
		snapshot.Status = StatusCompleted
		snapshot.Result = res
	}

	metrics.Runs.WithLabelValues(string(snapshot.Status)).Inc()
	m.log.Info("Run finished", "run_id", id, "status", snapshot.Status, "error", snapshot.Error)

	// Persist before publishing the terminal state, even when the run itself
	// was cancelled.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	m.persist(pctx, snapshot)

	m.mu.Lock()
	m.runs[id].run = snapshot
	m.done++
	m.finished = append(m.finished, id)
	for len(m.finished) > m.cfg.RetainRuns {
		delete(m.runs, m.finished[0])
		m.finished = m.finished[1:]
	}
	m.mu.Unlock()

	if m.notifier != nil {
		if err := m.notifier.AlertRunFinished(pctx, id, string(snapshot.Status), snapshot.Result, snapshot.Error); err != nil {
			m.log.Warn("Failed to send run notification", "run_id", id, "error", err)
		}
	}
}

func (m *Manager) persist(ctx context.Context, run Run) {
	if m.cache != nil {
		if err := m.cache.SaveRun(ctx, run.ID, run, m.cacheTTL); err != nil {
			m.log.Warn("Failed to cache run", "run_id", run.ID, "error", err)
		}
	}
	if m.history == nil || run.Result == nil {
		return
	}
	runID, err := uuid.Parse(run.ID)
	if err != nil {
		m.log.Warn("Run id is not a uuid", "run_id", run.ID)
		return
	}
	row, routes, err := db.NewSearchRun(runID, run.StartedAt, run.Result)
	if err != nil {
		m.log.Warn("Failed to encode run", "run_id", run.ID, "error", err)
		return
	}
	if _, err := m.history.SaveRun(ctx, row, routes); err != nil {
		m.log.Warn("Failed to record run history", "run_id", run.ID, "error", err)
	}
}

func (m *Manager) update(id string, fn func(*Run)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.runs[id]; ok {
		fn(&e.run)
	}
}

// Get returns a snapshot of run id. Runs no longer in memory are looked up
// in the result cache when one is configured.
func (m *Manager) Get(ctx context.Context, id string) (Run, error) {
	m.mu.RLock()
	e, ok := m.runs[id]
	var run Run
	if ok {
		run = e.run
	}
	m.mu.RUnlock()
	if ok {
		return run, nil
	}

	if m.cache != nil {
		err := m.cache.GetRun(ctx, id, &run)
		if err == nil {
			return run, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			return Run{}, fmt.Errorf("load run %s: %w", id, err)
		}
	}
	return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// List returns snapshots of the runs held in memory, newest first.
func (m *Manager) List() []Run {
	m.mu.RLock()
	runs := make([]Run, 0, len(m.runs))
	for _, e := range m.runs {
		runs = append(runs, e.run)
	}
	m.mu.RUnlock()
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].SubmittedAt.After(runs[j].SubmittedAt)
	})
	return runs
}

// Cancel stops run id. The routes found so far are kept in its result.
// Cancelling a finished run is a no-op.
func (m *Manager) Cancel(id string) error {
	m.mu.RLock()
	e, ok := m.runs[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.cancel()
	return nil
}

// Active returns the number of runs holding a slot.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Capacity returns the number of run slots.
func (m *Manager) Capacity() int {
	return m.cfg.MaxConcurrentRuns
}

// Wait blocks until run id finishes or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (Run, error) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		run, err := m.Get(ctx, id)
		if err != nil || run.Status.Done() {
			return run, err
		}
		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Stop cancels every run and waits up to WorkerConfig.ShutdownTimeout for
// them to be persisted.
func (m *Manager) Stop() {
	m.log.Info("Stopping run manager")
	m.stop()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	timeout := m.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	select {
	case <-done:
		m.log.Info("All runs stopped gracefully")
	case <-time.After(timeout):
		m.log.Warn("Run manager shutdown timed out")
	}

	if m.registry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.registry.Remove(ctx, m.id); err != nil {
			m.log.Warn("Failed to deregister planner", "error", err)
		}
	}
}

func (m *Manager) heartbeat() {
	defer m.wg.Done()
	hostname, _ := os.Hostname()
	ticker := time.NewTicker(m.heartbeatEvery)
	defer ticker.Stop()

	for {
		m.mu.RLock()
		hb := worker_registry.PlannerHeartbeat{
			ID:            m.id,
			Hostname:      hostname,
			Status:        "active",
			ActiveRuns:    m.active,
			CompletedRuns: m.done,
			MaxRuns:       m.cfg.MaxConcurrentRuns,
			StartedAt:     m.startedAt,
			Version:       buildinfo.Version,
		}
		m.mu.RUnlock()
		if m.base.Airports() != nil {
			hb.Airports = m.base.Airports().Len()
		}

		ctx, cancel := context.WithTimeout(m.ctx, 5*time.Second)
		if err := m.registry.Publish(ctx, hb, 3*m.heartbeatEvery); err != nil && m.ctx.Err() == nil {
			m.log.Warn("Failed to publish heartbeat", "error", err)
		}
		cancel()

		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
