// Package search generates seven continent routes by Monte Carlo sampling
// and keeps the best N by total flight time.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/gilby125/seven-continents/catalog"
	"github.com/gilby125/seven-continents/config"
	"github.com/gilby125/seven-continents/pkg/geo"
	"github.com/gilby125/seven-continents/pkg/logger"
	"github.com/gilby125/seven-continents/pkg/metrics"
	"github.com/gilby125/seven-continents/route"
)

// Continents is the number of distinct continents a complete route visits.
const Continents = 7

// Progress is a telemetry snapshot.
type Progress struct {
	Searches    int64
	ValidRoutes int64
	Rate        float64 // searches per second since the previous snapshot
	BestHrs     float64 // zero until a route is found
}

// Result is the outcome of one search.
type Result struct {
	Routes      []Candidate
	Searches    int64
	ValidRoutes int64
	Abandoned   int64
	Elapsed     time.Duration
	Cancelled   bool
}

// Engine runs the Monte Carlo search over a fixed airport set. The airport
// set, geo table, plane table and route model are read only during a run.
type Engine struct {
	cfg      config.SearchConfig
	model    *route.Model
	airports []*catalog.Airport
	table    geo.Table
	keys     []geo.BucketKey
	pinned   []*catalog.Airport
	log      *logger.Logger

	onProgress func(Progress)
}

// NewEngine prepares a search. table must have been built over set.All().
func NewEngine(cfg config.SearchConfig, model *route.Model, set *catalog.Set, table geo.Table, log *logger.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("search config: %w", err)
	}
	if model == nil || set == nil {
		return nil, errors.New("search engine needs a route model and an airport set")
	}
	pinned, err := set.ResolveIDs(cfg.StartAirportIDs)
	if err != nil {
		return nil, fmt.Errorf("pinned airports: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		cfg:      cfg,
		model:    model,
		airports: set.All(),
		table:    table,
		keys:     table.Keys(),
		pinned:   pinned,
		log:      log,
	}, nil
}

// OnProgress registers fn to receive each telemetry snapshot.
func (e *Engine) OnProgress(fn func(Progress)) {
	e.onProgress = fn
}

// counters are shared by all workers of a run.
type counters struct {
	searches  atomic.Int64
	valid     atomic.Int64
	abandoned atomic.Int64
	bestBits  atomic.Uint64
	stop      atomic.Bool
}

func (c *counters) offerBest(hrs float64) {
	bits := math.Float64bits(hrs)
	for {
		old := c.bestBits.Load()
		if old != 0 && math.Float64frombits(old) <= hrs {
			return
		}
		if c.bestBits.CompareAndSwap(old, bits) {
			metrics.SearchBestDuration.Set(hrs)
			return
		}
	}
}

func (c *counters) best() float64 {
	return math.Float64frombits(c.bestBits.Load())
}

// Run searches until the budget is spent, a fully pinned route is found, or
// ctx is cancelled. Routes found before cancellation are returned with
// Cancelled set and a nil error.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	workers := e.cfg.Workers
	if workers > e.cfg.MaxSearches && e.cfg.MaxSearches > 0 {
		workers = e.cfg.MaxSearches
	}
	if workers < 1 {
		workers = 1
	}

	seed := uint64(e.cfg.Seed)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	var c counters
	telemetry := &progressLog{
		sometimes: rate.Sometimes{Interval: e.cfg.ProgressInterval},
		log:       e.log,
		notify:    e.onProgress,
		last:      start,
	}

	e.log.Info("Running search",
		"max_searches", e.cfg.MaxSearches,
		"workers", workers,
		"airports", len(e.airports),
		"buckets", e.table.Len(),
		"pinned", len(e.pinned))

	lists := make([][]Candidate, workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		budget := e.cfg.MaxSearches / workers
		if w < e.cfg.MaxSearches%workers {
			budget++
		}
		rng := rand.New(rand.NewPCG(seed, uint64(w)))
		g.Go(func() error {
			lists[w] = e.work(gctx, rng, budget, &c, telemetry)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{
		Routes:      Merge(e.cfg.NumBestRoutes, lists...),
		Searches:    c.searches.Load(),
		ValidRoutes: c.valid.Load(),
		Abandoned:   c.abandoned.Load(),
		Elapsed:     time.Since(start),
		Cancelled:   ctx.Err() != nil,
	}
	telemetry.report(&c, true)

	e.log.Info("Finished search",
		"searches", res.Searches,
		"valid_routes", res.ValidRoutes,
		"abandoned", res.Abandoned,
		"kept", len(res.Routes),
		"elapsed", res.Elapsed,
		"cancelled", res.Cancelled)
	return res, nil
}

// work runs one worker's share of the budget and returns its best list.
func (e *Engine) work(ctx context.Context, rng *rand.Rand, budget int, c *counters, telemetry *progressLog) []Candidate {
	best := NewBestList(e.cfg.NumBestRoutes)
	ws := newWorkingSet(rng, e.airports, e.table, e.keys, e.pinned)
	interval := reshuffleInterval(budget, e.cfg.GeoHashShuffles)
	fullyPinned := len(e.pinned) == Continents

	b := builder{
		waypoints: make([]*catalog.Airport, 0, Continents+1),
		visited:   make(map[string]struct{}, Continents),
	}
	for i := 1; i <= budget; i++ {
		if ctx.Err() != nil || c.stop.Load() {
			break
		}

		r, ok := e.build(rng, ws, &b)
		c.searches.Add(1)
		metrics.SearchIterations.Inc()
		telemetry.report(c, false)

		if interval > 0 && i%interval == 0 {
			ws = newWorkingSet(rng, e.airports, e.table, e.keys, e.pinned)
			e.log.Debug("Reshuffled working set", "after", i, "airports", ws.size())
		}

		if !ok {
			c.abandoned.Add(1)
			metrics.SearchAbandoned.Inc()
			continue
		}
		c.valid.Add(1)
		metrics.SearchValidRoutes.Inc()

		hrs := e.model.TotalDuration(r)
		if best.Admits(hrs) {
			r = route.New(append([]*catalog.Airport(nil), r.Waypoints...)...)
			best.Insert(Candidate{Route: r, LengthMi: e.model.TotalLength(r), DurationHrs: hrs})
			c.offerBest(hrs)
		}

		if fullyPinned {
			c.stop.Store(true)
			break
		}
	}
	return best.Items()
}

// reshuffleInterval returns how many iterations pass between working set
// refreshes, or 0 for never.
func reshuffleInterval(budget, shuffles int) int {
	if shuffles <= 0 || budget <= 0 {
		return 0
	}
	return max(budget/shuffles, 1)
}

// builder holds per worker scratch space reused across iterations.
type builder struct {
	waypoints []*catalog.Airport
	visited   map[string]struct{}
	remaining []string
}

// build assembles one candidate route. The returned route aliases the
// builder's buffer and is only valid until the next call.
func (e *Engine) build(rng *rand.Rand, ws workingSet, b *builder) (route.Route, bool) {
	b.waypoints = b.waypoints[:0]
	clear(b.visited)

	for len(b.visited) < Continents {
		var next *catalog.Airport
		switch n := len(b.waypoints); {
		case n < len(e.pinned):
			next = e.pinned[n]
		case n < len(e.cfg.StartContinentCodes):
			next = e.pick(rng, b.waypoints, ws.byContinent[e.cfg.StartContinentCodes[n]])
		default:
			b.remaining = ws.remaining(b.remaining, b.visited)
			if len(b.remaining) == 0 {
				return route.Route{}, false
			}
			continent := b.remaining[rng.IntN(len(b.remaining))]
			next = e.pick(rng, b.waypoints, ws.byContinent[continent])
		}
		if next == nil {
			return route.Route{}, false
		}
		b.waypoints = append(b.waypoints, next)
		b.visited[next.Continent] = struct{}{}
	}
	return route.Route{Waypoints: b.waypoints}, true
}

// pick draws from candidates until one is reachable from the last waypoint,
// giving up after MaxPickAttempts draws.
func (e *Engine) pick(rng *rand.Rand, waypoints, candidates []*catalog.Airport) *catalog.Airport {
	if len(candidates) == 0 {
		return nil
	}
	for attempt := 0; attempt < e.cfg.MaxPickAttempts; attempt++ {
		a := candidates[rng.IntN(len(candidates))]
		if len(waypoints) == 0 {
			return a
		}
		plane := e.model.Plane(len(waypoints))
		if e.model.ValidSegment(plane, waypoints[len(waypoints)-1], a) {
			return a
		}
	}
	return nil
}

// progressLog throttles telemetry across workers. sometimes serializes the
// callback, which guards last and lastCount.
type progressLog struct {
	sometimes rate.Sometimes
	log       *logger.Logger
	notify    func(Progress)
	last      time.Time
	lastCount int64
}

func (p *progressLog) report(c *counters, final bool) {
	emit := func() {
		now := time.Now()
		searches := c.searches.Load()
		elapsed := now.Sub(p.last).Seconds()
		snapshot := Progress{
			Searches:    searches,
			ValidRoutes: c.valid.Load(),
			BestHrs:     c.best(),
		}
		if elapsed > 0 {
			snapshot.Rate = float64(searches-p.lastCount) / elapsed
		}
		p.last, p.lastCount = now, searches

		p.log.Info(fmt.Sprintf("Searched %d routes (%.0f/s) and found %d valid routes (best is %.2f hrs)",
			snapshot.Searches, snapshot.Rate, snapshot.ValidRoutes, snapshot.BestHrs))
		if p.notify != nil {
			p.notify(snapshot)
		}
	}
	if final {
		if p.notify != nil {
			p.notify(Progress{Searches: c.searches.Load(), ValidRoutes: c.valid.Load(), BestHrs: c.best()})
		}
		return
	}
	if p.sometimes.Interval <= 0 {
		return
	}
	p.sometimes.Do(emit)
}
