package search

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilby125/seven-continents/catalog"
	"github.com/gilby125/seven-continents/config"
	"github.com/gilby125/seven-continents/distcache"
	"github.com/gilby125/seven-continents/pkg/geo"
	"github.com/gilby125/seven-continents/pkg/logger"
	"github.com/gilby125/seven-continents/planes"
	"github.com/gilby125/seven-continents/route"
)

func testWorld() []*catalog.Airport {
	coords := []struct {
		continent string
		lat, lon  float64
	}{
		{"NA", 40, -100}, {"NA", 35, -90}, {"NA", 45, -75},
		{"SA", -15, -60}, {"SA", -20, -55}, {"SA", -33, -70},
		{"EU", 48, 10}, {"EU", 45, 5}, {"EU", 52, 0},
		{"AF", 0, 20}, {"AF", 5, 25}, {"AF", -25, 28},
		{"AS", 30, 100}, {"AS", 35, 110}, {"AS", 20, 78},
		{"OC", -25, 135}, {"OC", -30, 140}, {"OC", -35, 150},
		{"AN", -70, 0}, {"AN", -75, 10}, {"AN", -62, -58},
	}
	airports := make([]*catalog.Airport, len(coords))
	for i, c := range coords {
		airports[i] = &catalog.Airport{
			ID:        i + 1,
			Code:      c.continent + string(rune('A'+i)),
			Continent: c.continent,
			Lat:       c.lat,
			Lon:       c.lon,
		}
	}
	return airports
}

func uniformTable(rangeMi float64) planes.Table {
	t := planes.Table{
		Profiles: map[string]planes.Profile{
			"test": {ID: "test", ShortName: "test", MaxRangeMi: rangeMi, AvgSpeedMph: 500},
		},
		Legs: map[int]string{},
	}
	for leg := 1; leg <= 6; leg++ {
		t.Legs[leg] = "test"
	}
	return t
}

func testConfig() config.SearchConfig {
	cfg := config.DefaultSearchConfig()
	cfg.MaxSearches = 2000
	cfg.Seed = 42
	cfg.ProgressInterval = 0
	cfg.NumBestRoutes = 5
	cfg.StartContinentCodes = nil
	return cfg
}

func newEngine(t *testing.T, cfg config.SearchConfig, airports []*catalog.Airport, rangeMi float64) *Engine {
	t.Helper()
	set := catalog.NewSet(airports)
	table := geo.BuildTable(cfg.GeoHashResolutionDeg, set.All())
	model, err := route.NewModel(cfg, distcache.New(), uniformTable(rangeMi))
	require.NoError(t, err)
	e, err := NewEngine(cfg, model, set, table, logger.Nop())
	require.NoError(t, err)
	return e
}

func assertRanked(t *testing.T, res Result, n int) {
	t.Helper()
	assert.LessOrEqual(t, len(res.Routes), n)
	seen := map[string]bool{}
	for i, c := range res.Routes {
		assert.Equal(t, Continents, c.Route.Continents(), "route %s", c.Route)
		assert.False(t, seen[c.Route.Key()], "duplicate route %s", c.Route)
		seen[c.Route.Key()] = true
		if i > 0 {
			assert.LessOrEqual(t, res.Routes[i-1].DurationHrs, c.DurationHrs)
		}
	}
}

func TestEngine_Run(t *testing.T) {
	cfg := testConfig()
	e := newEngine(t, cfg, testWorld(), 20000)

	res, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(cfg.MaxSearches), res.Searches)
	assert.Equal(t, res.Searches, res.ValidRoutes+res.Abandoned)
	assert.Positive(t, res.ValidRoutes)
	assert.False(t, res.Cancelled)
	require.NotEmpty(t, res.Routes)
	assertRanked(t, res, cfg.NumBestRoutes)

	for _, c := range res.Routes {
		assert.Equal(t, 7, c.Route.Len())
		assert.Greater(t, c.LengthMi, 0.0)
	}
}

func TestEngine_Deterministic(t *testing.T) {
	cfg := testConfig()

	run := func() []string {
		res, err := newEngine(t, cfg, testWorld(), 20000).Run(context.Background())
		require.NoError(t, err)
		var keys []string
		for _, c := range res.Routes {
			keys = append(keys, c.Route.Key())
		}
		return keys
	}
	assert.Equal(t, run(), run())
}

func TestEngine_ParallelWorkers(t *testing.T) {
	cfg := testConfig()
	cfg.Workers = 4
	cfg.MaxSearches = 1001

	res, err := newEngine(t, cfg, testWorld(), 20000).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1001), res.Searches)
	assertRanked(t, res, cfg.NumBestRoutes)
	assert.Len(t, res.Routes, cfg.NumBestRoutes)
}

func TestEngine_OutOfRangeAbandons(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSearches = 200

	res, err := newEngine(t, cfg, testWorld(), 10).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(200), res.Abandoned)
	assert.Zero(t, res.ValidRoutes)
	assert.Empty(t, res.Routes)
}

func TestEngine_TooFewContinents(t *testing.T) {
	var airports []*catalog.Airport
	for _, a := range testWorld() {
		if a.Continent != "AN" {
			airports = append(airports, a)
		}
	}
	cfg := testConfig()
	cfg.MaxSearches = 100

	res, err := newEngine(t, cfg, airports, 20000).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Abandoned)
	assert.Empty(t, res.Routes)
}

func TestEngine_PinnedContinentFirst(t *testing.T) {
	cfg := testConfig()
	cfg.StartContinentCodes = []string{"AN", "SA"}

	res, err := newEngine(t, cfg, testWorld(), 20000).Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, res.Routes)
	for _, c := range res.Routes {
		assert.Equal(t, "AN", c.Route.Waypoints[0].Continent)
		assert.Equal(t, "SA", c.Route.Waypoints[1].Continent)
	}
}

func TestEngine_PinnedContinentMissing(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSearches = 50
	cfg.StartContinentCodes = []string{"XX"}

	res, err := newEngine(t, cfg, testWorld(), 20000).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(50), res.Abandoned)
}

func TestEngine_PinnedAirports(t *testing.T) {
	cfg := testConfig()
	cfg.StartAirportIDs = []int{20, 5}

	res, err := newEngine(t, cfg, testWorld(), 20000).Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, res.Routes)
	for _, c := range res.Routes {
		assert.Equal(t, 20, c.Route.Waypoints[0].ID)
		assert.Equal(t, 5, c.Route.Waypoints[1].ID)
	}
}

func TestEngine_FullyPinnedStopsAfterFirst(t *testing.T) {
	cfg := testConfig()
	cfg.Workers = 3
	cfg.StartAirportIDs = []int{19, 4, 1, 7, 10, 13, 16}

	res, err := newEngine(t, cfg, testWorld(), 20000).Run(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, res.Searches, int64(cfg.Workers))
	require.Len(t, res.Routes, 1)
	assert.Equal(t, "19,4,1,7,10,13,16", res.Routes[0].Route.Key())
}

func TestNewEngine_UnknownPinned(t *testing.T) {
	cfg := testConfig()
	cfg.StartAirportIDs = []int{999}
	set := catalog.NewSet(testWorld())
	model, err := route.NewModel(cfg, distcache.New(), uniformTable(20000))
	require.NoError(t, err)

	_, err = NewEngine(cfg, model, set, geo.BuildTable(5, set.All()), nil)
	assert.ErrorIs(t, err, catalog.ErrUnknownAirport)
}

func TestEngine_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newEngine(t, testConfig(), testWorld(), 20000).Run(ctx)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Zero(t, res.Searches)
	assert.Empty(t, res.Routes)
}

func TestEngine_CancelPreservesBest(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSearches = 1 << 30
	cfg.ProgressInterval = 1

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := newEngine(t, cfg, testWorld(), 20000)
	var reports atomic.Int64
	e.OnProgress(func(p Progress) {
		reports.Add(1)
		cancel()
	})

	res, err := e.Run(ctx)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Less(t, res.Searches, int64(cfg.MaxSearches))
	assert.NotEmpty(t, res.Routes)
	assert.Positive(t, reports.Load())
	assertRanked(t, res, cfg.NumBestRoutes)
}

func TestWorkingSet(t *testing.T) {
	airports := testWorld()
	table := geo.BuildTable(5, airports)
	rng := rand.New(rand.NewPCG(1, 2))

	pinned := []*catalog.Airport{airports[0]}
	ws := newWorkingSet(rng, airports, table, table.Keys(), pinned)

	assert.Equal(t, table.Len()+1, ws.size())
	assert.Equal(t, []string{"AF", "AN", "AS", "EU", "NA", "OC", "SA"}, ws.continents)

	visited := map[string]struct{}{"AF": {}, "NA": {}}
	assert.Equal(t, []string{"AN", "AS", "EU", "OC", "SA"}, ws.remaining(nil, visited))
}

func TestWorkingSet_CoarseGridKeepsOnePerBucket(t *testing.T) {
	airports := testWorld()
	table := geo.BuildTable(360, airports)
	require.Equal(t, 1, table.Len())

	ws := newWorkingSet(rand.New(rand.NewPCG(1, 1)), airports, table, table.Keys(), nil)
	assert.Equal(t, 1, ws.size())
}

func TestReshuffleInterval(t *testing.T) {
	assert.Equal(t, 1000, reshuffleInterval(10000, 10))
	assert.Equal(t, 1, reshuffleInterval(5, 10))
	assert.Equal(t, 0, reshuffleInterval(10000, 0))
	assert.Equal(t, 0, reshuffleInterval(0, 10))
}
