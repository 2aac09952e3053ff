// Package optimize refines routes by substituting nearby airports on the
// same continent for each waypoint.
package optimize

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gilby125/seven-continents/catalog"
	"github.com/gilby125/seven-continents/config"
	"github.com/gilby125/seven-continents/pkg/logger"
	"github.com/gilby125/seven-continents/pkg/metrics"
	"github.com/gilby125/seven-continents/route"
	"github.com/gilby125/seven-continents/search"
)

// Outcome is the result of optimizing one route.
type Outcome struct {
	Original       search.Candidate
	Best           search.Candidate
	Evaluated      int
	ImprovementPct float64
}

// Optimizer searches the neighbourhood of a route. Candidates are drawn from
// the whole filtered airport set, not only the search working set.
type Optimizer struct {
	cfg      config.SearchConfig
	model    *route.Model
	airports []*catalog.Airport
	log      *logger.Logger
}

// New returns an optimizer over airports.
func New(cfg config.SearchConfig, model *route.Model, airports []*catalog.Airport, log *logger.Logger) *Optimizer {
	if log == nil {
		log = logger.Nop()
	}
	return &Optimizer{cfg: cfg, model: model, airports: airports, log: log}
}

// Candidates returns the substitutes considered for waypoint: airports on the
// same continent strictly within the optimization radius (raw distance),
// randomly sampled down to OptimizationCandidates. The waypoint itself
// qualifies.
func (o *Optimizer) Candidates(rng *rand.Rand, waypoint *catalog.Airport) []*catalog.Airport {
	var out []*catalog.Airport
	for _, a := range o.airports {
		if a.Continent != waypoint.Continent {
			continue
		}
		if o.model.Distance(waypoint, a) < o.cfg.OptimizationRadiusMi {
			out = append(out, a)
		}
	}
	if limit := o.cfg.OptimizationCandidates; limit > 0 && len(out) > limit {
		rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		out = out[:limit]
	}
	return out
}

// Optimize samples substitute sequences around c and returns the lowest
// duration route found, or c itself if nothing beats it. Pinned positions
// are never substituted and a position without candidates keeps its
// waypoint. Substitutes must keep every leg within range. On cancellation
// the best route so far is returned with ctx's error.
func (o *Optimizer) Optimize(ctx context.Context, rng *rand.Rand, c search.Candidate) (Outcome, error) {
	waypoints := c.Route.Waypoints
	pinned := o.cfg.PinnedAirports()

	choices := make([][]*catalog.Airport, len(waypoints))
	sizes := make([]int, len(waypoints))
	for i, w := range waypoints {
		if i < pinned {
			choices[i] = []*catalog.Airport{w}
		} else if cands := o.Candidates(rng, w); len(cands) > 0 {
			choices[i] = cands
		} else {
			choices[i] = []*catalog.Airport{w}
		}
		sizes[i] = len(choices[i])
	}

	out := Outcome{Original: c, Best: c}
	product := NewProduct(sizes)
	buf := make([]*catalog.Airport, len(waypoints))

	var err error
	for idx := range product.Sample(rng, o.cfg.OptimizationMaxSearches) {
		if out.Evaluated%1024 == 0 {
			if err = ctx.Err(); err != nil {
				break
			}
		}
		out.Evaluated++
		for i, j := range idx {
			buf[i] = choices[i][j]
		}
		r := route.Route{Waypoints: buf}
		if !o.model.Valid(r) {
			continue
		}
		if hrs := o.model.TotalDuration(r); hrs < out.Best.DurationHrs {
			best := route.New(append([]*catalog.Airport(nil), buf...)...)
			out.Best = search.Candidate{Route: best, LengthMi: o.model.TotalLength(best), DurationHrs: hrs}
		}
	}
	metrics.OptimizerEvaluations.Add(float64(out.Evaluated))

	if c.DurationHrs > 0 {
		out.ImprovementPct = (c.DurationHrs - out.Best.DurationHrs) / c.DurationHrs * 100
	}
	return out, err
}

// OptimizeAll optimizes each candidate on up to cfg.Workers goroutines and
// returns outcomes in input order. Routes not reached before cancellation
// keep their original as best.
func (o *Optimizer) OptimizeAll(ctx context.Context, candidates []search.Candidate) ([]Outcome, error) {
	start := time.Now()
	outcomes := make([]Outcome, len(candidates))
	for i, c := range candidates {
		outcomes[i] = Outcome{Original: c, Best: c}
	}

	seed := uint64(o.cfg.Seed)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	var g errgroup.Group
	g.SetLimit(max(o.cfg.Workers, 1))
	for i, c := range candidates {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rng := rand.New(rand.NewPCG(seed, uint64(i)+1<<32))
			res, err := o.Optimize(ctx, rng, c)
			outcomes[i] = res
			o.log.Info("Optimized route",
				"route", c.Route.String(),
				"from_hrs", res.Original.DurationHrs,
				"to_hrs", res.Best.DurationHrs,
				"evaluated", res.Evaluated,
				"improvement_pct", res.ImprovementPct)
			return err
		})
	}
	err := g.Wait()

	o.log.Info("Finished optimization", "routes", len(candidates), "elapsed", time.Since(start))
	return outcomes, err
}
