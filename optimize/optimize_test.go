package optimize

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilby125/seven-continents/catalog"
	"github.com/gilby125/seven-continents/config"
	"github.com/gilby125/seven-continents/distcache"
	"github.com/gilby125/seven-continents/pkg/logger"
	"github.com/gilby125/seven-continents/planes"
	"github.com/gilby125/seven-continents/route"
	"github.com/gilby125/seven-continents/search"
)

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

// A three stop corridor along the equator. Each stop has a neighbour a
// little closer to the others, and one far away decoy on the same continent.
func corridor() (route.Route, []*catalog.Airport) {
	a := &catalog.Airport{ID: 1, Code: "A", Continent: "AF", Lat: 0, Lon: 0}
	a2 := &catalog.Airport{ID: 2, Code: "A2", Continent: "AF", Lat: 0, Lon: 1}
	b := &catalog.Airport{ID: 3, Code: "B", Continent: "AS", Lat: 0, Lon: 40}
	b2 := &catalog.Airport{ID: 4, Code: "B2", Continent: "AS", Lat: 0.5, Lon: 40}
	c := &catalog.Airport{ID: 5, Code: "C", Continent: "OC", Lat: 0, Lon: 80}
	c2 := &catalog.Airport{ID: 6, Code: "C2", Continent: "OC", Lat: 0, Lon: 79}
	decoy := &catalog.Airport{ID: 7, Code: "D", Continent: "AF", Lat: 30, Lon: 0}
	other := &catalog.Airport{ID: 8, Code: "E", Continent: "EU", Lat: 0, Lon: 0.5}
	return route.New(a, b, c), []*catalog.Airport{a, a2, b, b2, c, c2, decoy, other}
}

func newOptimizer(t *testing.T, mutate func(*config.SearchConfig), airports []*catalog.Airport, rangeMi float64) (*Optimizer, *route.Model) {
	t.Helper()
	cfg := config.DefaultSearchConfig()
	cfg.RoutingOverheadPct = 0
	cfg.WindCorrectionEnabled = false
	cfg.Seed = 3
	if mutate != nil {
		mutate(&cfg)
	}
	model, err := route.NewModel(cfg, distcache.New(), uniformTable(rangeMi))
	require.NoError(t, err)
	return New(cfg, model, airports, logger.Nop()), model
}

func scored(m *route.Model, r route.Route) search.Candidate {
	return search.Candidate{Route: r, LengthMi: m.TotalLength(r), DurationHrs: m.TotalDuration(r)}
}

func TestCandidates(t *testing.T) {
	r, airports := corridor()
	o, _ := newOptimizer(t, nil, airports, 20000)
	rng := rand.New(rand.NewPCG(1, 1))

	var codes []string
	for _, a := range o.Candidates(rng, r.Waypoints[0]) {
		codes = append(codes, a.Code)
	}
	assert.ElementsMatch(t, []string{"A", "A2"}, codes, "same continent, within radius")

	capped, _ := newOptimizer(t, func(c *config.SearchConfig) { c.OptimizationCandidates = 1 }, airports, 20000)
	assert.Len(t, capped.Candidates(rng, r.Waypoints[0]), 1)
}

func TestOptimize_FindsShorterRoute(t *testing.T) {
	r, airports := corridor()
	o, model := newOptimizer(t, nil, airports, 20000)
	orig := scored(model, r)

	out, err := o.Optimize(context.Background(), rand.New(rand.NewPCG(1, 1)), orig)
	require.NoError(t, err)

	assert.Equal(t, "A2,B,C2", out.Best.Route.Key())
	assert.Less(t, out.Best.DurationHrs, orig.DurationHrs)
	assert.Equal(t, 8, out.Evaluated, "2x2x2 product enumerated in full")
	assert.Greater(t, out.ImprovementPct, 0.0)
	assert.InDelta(t, (orig.DurationHrs-out.Best.DurationHrs)/orig.DurationHrs*100, out.ImprovementPct, 1e-9)
	assert.InDelta(t, model.TotalLength(out.Best.Route), out.Best.LengthMi, 1e-9)
}

func TestOptimize_PinnedPositionsFixed(t *testing.T) {
	r, airports := corridor()
	o, model := newOptimizer(t, func(c *config.SearchConfig) { c.StartAirportIDs = []int{1} }, airports, 20000)

	out, err := o.Optimize(context.Background(), rand.New(rand.NewPCG(1, 1)), scored(model, r))
	require.NoError(t, err)
	assert.Equal(t, "A", out.Best.Route.Waypoints[0].Code)
	assert.Equal(t, 4, out.Evaluated)
}

func TestOptimize_NoCandidatesKeepsWaypoint(t *testing.T) {
	r, airports := corridor()
	// Only B is known to the optimizer, so A and C have no candidates.
	o, model := newOptimizer(t, nil, []*catalog.Airport{airports[2]}, 20000)

	orig := scored(model, r)
	out, err := o.Optimize(context.Background(), rand.New(rand.NewPCG(1, 1)), orig)
	require.NoError(t, err)
	assert.Equal(t, r.Key(), out.Best.Route.Key())
	assert.Equal(t, orig.DurationHrs, out.Best.DurationHrs)
	assert.Zero(t, out.ImprovementPct)
}

func TestOptimize_RejectsOutOfRangeSubstitutes(t *testing.T) {
	r, airports := corridor()
	_, full := newOptimizer(t, nil, airports, 20000)
	// A to B is about 2763 mi, A2 to B about 2694 mi. A range between the
	// two makes the original leg invalid but allows A2.
	o, model := newOptimizer(t, nil, airports, full.SegmentLength(airports[0], airports[2])-1)

	orig := scored(model, r)
	out, err := o.Optimize(context.Background(), rand.New(rand.NewPCG(1, 1)), orig)
	require.NoError(t, err)
	assert.True(t, model.Valid(out.Best.Route))
	assert.Equal(t, "A2", out.Best.Route.Waypoints[0].Code)
}

func TestOptimize_BudgetBoundsEvaluations(t *testing.T) {
	r, airports := corridor()
	o, model := newOptimizer(t, func(c *config.SearchConfig) { c.OptimizationMaxSearches = 3 }, airports, 20000)

	out, err := o.Optimize(context.Background(), rand.New(rand.NewPCG(1, 1)), scored(model, r))
	require.NoError(t, err)
	assert.Equal(t, 3, out.Evaluated)
	assert.LessOrEqual(t, out.Best.DurationHrs, out.Original.DurationHrs)
}

func TestOptimize_Cancelled(t *testing.T) {
	r, airports := corridor()
	o, model := newOptimizer(t, nil, airports, 20000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orig := scored(model, r)
	out, err := o.Optimize(ctx, rand.New(rand.NewPCG(1, 1)), orig)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, orig.Route.Key(), out.Best.Route.Key())
}

func TestOptimizeAll(t *testing.T) {
	r, airports := corridor()
	o, model := newOptimizer(t, func(c *config.SearchConfig) { c.Workers = 2 }, airports, 20000)

	reversed := route.New(r.Waypoints[2], r.Waypoints[1], r.Waypoints[0])
	outcomes, err := o.OptimizeAll(context.Background(), []search.Candidate{scored(model, r), scored(model, reversed)})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "A2,B,C2", outcomes[0].Best.Route.Key())
	assert.Equal(t, "C2,B,A2", outcomes[1].Best.Route.Key())
}

func TestOptimizeAll_CancelledKeepsOriginals(t *testing.T) {
	r, airports := corridor()
	o, model := newOptimizer(t, nil, airports, 20000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orig := scored(model, r)
	outcomes, err := o.OptimizeAll(ctx, []search.Candidate{orig})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, outcomes, 1)
	assert.Equal(t, orig.Route.Key(), outcomes[0].Best.Route.Key())
}
