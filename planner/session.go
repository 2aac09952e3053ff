// Package planner wires the airport catalog, distance cache, search and
// optimizer into one planning session.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gilby125/seven-continents/catalog"
	"github.com/gilby125/seven-continents/config"
	"github.com/gilby125/seven-continents/distcache"
	"github.com/gilby125/seven-continents/optimize"
	"github.com/gilby125/seven-continents/pkg/geo"
	"github.com/gilby125/seven-continents/pkg/logger"
	"github.com/gilby125/seven-continents/planes"
	"github.com/gilby125/seven-continents/route"
	"github.com/gilby125/seven-continents/search"
)

// ErrNotPrepared is returned by Run on a session that has not been prepared.
var ErrNotPrepared = errors.New("session not prepared")

// Session owns everything one planning run reads: the filtered airports,
// their geo hash table, the distance cache and a route model whose segment
// memo lives exactly as long as the session.
type Session struct {
	cfg      config.Config
	log      *logger.Logger
	warnings *logger.Warnings

	planes   planes.Table
	airports *catalog.Set
	stats    catalog.Stats
	table    geo.Table
	dist     *distcache.Cache
	model    *route.Model

	onProgress func(search.Progress)
}

// NewSession returns an unprepared session.
func NewSession(cfg config.Config, log *logger.Logger) *Session {
	if log == nil {
		log = logger.Nop()
	}
	return &Session{cfg: cfg, log: log, warnings: logger.NewWarnings(log)}
}

// Config returns the session configuration, including pinned ids resolved
// from codes.
func (s *Session) Config() config.Config {
	return s.cfg
}

// Airports returns the filtered airport set.
func (s *Session) Airports() *catalog.Set {
	return s.airports
}

// Model returns the session's route model.
func (s *Session) Model() *route.Model {
	return s.model
}

// Warnings returns the warnings collected so far.
func (s *Session) Warnings() []logger.Warning {
	return s.warnings.List()
}

// OnProgress registers fn to receive search telemetry.
func (s *Session) OnProgress(fn func(search.Progress)) {
	s.onProgress = fn
}

// Prepare loads the data set from DataConfig.DataPath and readies the
// session.
func (s *Session) Prepare(ctx context.Context) error {
	start := time.Now()
	raw, err := catalog.LoadDir(s.cfg.DataConfig.DataPath)
	if err != nil {
		return fmt.Errorf("load airport data: %w", err)
	}
	s.log.Info("Loaded airport data",
		"airports", len(raw.Airports),
		"runways", len(raw.Runways),
		"countries", len(raw.Countries),
		"elapsed", time.Since(start))
	return s.PrepareFrom(ctx, raw)
}

// PrepareFrom readies the session from already loaded records: filter the
// airports, resolve pinned codes, bucket the airports and load or rebuild
// the distance cache.
func (s *Session) PrepareFrom(ctx context.Context, raw catalog.Raw) error {
	fleet := planes.Default()
	if path := s.cfg.DataConfig.PlanesFile; path != "" {
		t, err := planes.LoadYAML(path)
		if err != nil {
			return err
		}
		fleet = t
	}
	s.planes = fleet

	sc := s.cfg.SearchConfig
	set, stats := catalog.Filter(raw, catalog.FilterOptions{
		MinRunwayFt:         fleet.MinRunwayFt(),
		GeoOverridesEnabled: s.cfg.DataConfig.GeoOverridesEnabled,
		PinnedIDs:           sc.StartAirportIDs,
		PinnedCodes:         sc.StartAirportCodes,
	}, s.warnings)
	s.airports, s.stats = set, stats
	s.log.Info("Filtered airports",
		"runways", stats.Runways,
		"valid_runways", stats.ValidRunways,
		"min_runway_ft", fleet.MinRunwayFt(),
		"candidates", stats.Candidates,
		"airports", stats.Airports)

	if err := s.resolvePinned(); err != nil {
		return err
	}

	s.table = geo.BuildTable(s.cfg.SearchConfig.GeoHashResolutionDeg, set.All())
	s.log.Info("Built geo hash table",
		"resolution_deg", s.table.Resolution,
		"buckets", s.table.Len())

	dist, err := s.loadDistances(ctx)
	if err != nil {
		return err
	}
	s.dist = dist

	model, err := route.NewModel(s.cfg.SearchConfig, dist, fleet)
	if err != nil {
		return err
	}
	s.model = model
	return nil
}

// resolvePinned folds StartAirportCodes into StartAirportIDs, codes after ids.
func (s *Session) resolvePinned() error {
	sc := s.cfg.SearchConfig
	if len(sc.StartAirportCodes) == 0 {
		return sc.Validate()
	}
	ids, err := s.airports.ResolveCodes(sc.StartAirportCodes)
	if err != nil {
		return fmt.Errorf("pinned airports: %w", err)
	}
	sc = sc.WithStartAirportIDs(append(append([]int(nil), sc.StartAirportIDs...), ids...))
	sc.StartAirportCodes = nil
	if err := sc.Validate(); err != nil {
		return err
	}
	s.cfg.SearchConfig = sc
	return nil
}

// loadDistances loads the cache if it covers every airport. Otherwise it
// rebuilds when REBUILD_DIST_CACHE allows, and fails with
// distcache.ErrRebuildRequired when it does not.
func (s *Session) loadDistances(ctx context.Context) (*distcache.Cache, error) {
	path := s.cfg.DataConfig.DistCacheFile
	ids := s.airports.IDs()

	start := time.Now()
	cache, err := loadCovering(path, ids)
	if err == nil {
		s.log.Info("Loaded distance cache", "path", path, "entries", cache.Len(), "elapsed", time.Since(start))
		return cache, nil
	}
	if !s.cfg.DataConfig.RebuildDistCache {
		if errors.Is(err, distcache.ErrRebuildRequired) {
			return nil, fmt.Errorf("%w; set REBUILD_DIST_CACHE=true to rebuild", err)
		}
		return nil, fmt.Errorf("%w: %w", distcache.ErrRebuildRequired, err)
	}

	s.log.Warn("Rebuilding distance cache", "path", path, "airports", len(ids), "reason", err.Error())
	prev, loadErr := distcache.Load(path, nil)
	if loadErr != nil {
		prev = nil
	}
	start = time.Now()
	cache, err = distcache.Build(ctx, path, s.airports.All(), prev)
	if err != nil {
		return nil, fmt.Errorf("rebuild distance cache: %w", err)
	}
	s.log.Info("Rebuilt distance cache", "path", path, "entries", cache.Len(), "elapsed", time.Since(start))
	return cache, nil
}

func loadCovering(path string, ids []int) (*distcache.Cache, error) {
	if err := distcache.Check(path, len(ids)); err != nil {
		return nil, err
	}
	cache, err := distcache.Load(path, ids)
	if err != nil {
		return nil, err
	}
	if err := cache.Covers(ids); err != nil {
		return nil, err
	}
	return cache, nil
}

// Fork returns a prepared session that shares this session's airports, geo
// table and distance cache but searches with sc and owns a fresh segment
// memo. The geo hash resolution of the parent is kept. Pinned airports must
// exist in the parent's filtered set.
func (s *Session) Fork(sc config.SearchConfig) (*Session, error) {
	if s.model == nil {
		return nil, ErrNotPrepared
	}
	sc.GeoHashResolutionDeg = s.cfg.SearchConfig.GeoHashResolutionDeg

	child := &Session{
		cfg:      s.cfg,
		log:      s.log,
		warnings: logger.NewWarnings(s.log),
		planes:   s.planes,
		airports: s.airports,
		stats:    s.stats,
		table:    s.table,
		dist:     s.dist,
	}
	child.cfg.SearchConfig = sc
	if err := child.resolvePinned(); err != nil {
		return nil, err
	}
	if _, err := s.airports.ResolveIDs(child.cfg.SearchConfig.StartAirportIDs); err != nil {
		return nil, fmt.Errorf("pinned airports: %w", err)
	}
	model, err := route.NewModel(child.cfg.SearchConfig, s.dist, s.planes)
	if err != nil {
		return nil, err
	}
	child.model = model
	return child, nil
}

// Run searches, deduplicates, optionally optimizes and ranks. Cancelling ctx
// stops the search or optimization early; the routes found so far are
// returned with Cancelled set.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	if s.model == nil {
		return nil, ErrNotPrepared
	}
	start := time.Now()
	sc := s.cfg.SearchConfig

	engine, err := search.NewEngine(sc, s.model, s.airports, s.table, s.log)
	if err != nil {
		return nil, err
	}
	if s.onProgress != nil {
		engine.OnProgress(s.onProgress)
	}
	found, err := engine.Run(ctx)
	if err != nil {
		return nil, err
	}

	outcomes := make([]optimize.Outcome, len(found.Routes))
	for i, c := range found.Routes {
		outcomes[i] = optimize.Outcome{Original: c, Best: c}
	}
	cancelled := found.Cancelled
	optimizeCount := 0

	if sc.OptimizationEnabled && !cancelled && len(found.Routes) > 0 {
		s.log.Info("Finished initial search, optimizing", "elapsed", time.Since(start), "routes", len(found.Routes))
		o := optimize.New(sc, s.model, s.airports.All(), s.log)
		optimized, err := o.OptimizeAll(ctx, found.Routes)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			cancelled = true
		default:
			return nil, err
		}
		outcomes = optimized
		for _, out := range outcomes {
			optimizeCount += out.Evaluated
		}
	}

	res := &Result{
		SearchCount:     found.Searches,
		ValidRouteCount: found.ValidRoutes,
		OptimizeCount:   int64(optimizeCount),
		Cancelled:       cancelled,
		Airports:        s.airports.Len(),
		Buckets:         s.table.Len(),
		FilterStats:     s.stats,
		Config:          sc,
	}
	res.Routes = s.rank(outcomes)
	res.Elapsed = time.Since(start)
	res.Warnings = s.warnings.List()
	return res, nil
}

// rank orders optimized routes by duration, drops duplicates produced by
// optimization converging, and expands each into a RouteResult.
func (s *Session) rank(outcomes []optimize.Outcome) []RouteResult {
	byRoute := make(map[string]optimize.Outcome, len(outcomes))
	best := make([]search.Candidate, 0, len(outcomes))
	for _, out := range outcomes {
		key := out.Best.Route.Key()
		if _, dup := byRoute[key]; !dup {
			byRoute[key] = out
		}
		best = append(best, out.Best)
	}
	search.SortByDuration(best)
	best = search.Dedupe(best)

	routes := make([]RouteResult, 0, len(best))
	for i, c := range best {
		out := byRoute[c.Route.Key()]
		routes = append(routes, s.describe(i+1, out))
	}
	return routes
}
