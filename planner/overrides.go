package planner

import (
	"strings"

	"github.com/gilby125/seven-continents/config"
)

// Overrides are the search settings a caller may change per run. Nil fields
// keep the base configuration.
type Overrides struct {
	MaxSearches             *int     `json:"max_searches,omitempty"`
	StartAirportCodes       []string `json:"start_airport_codes,omitempty"`
	StartContinentCodes     []string `json:"start_continent_codes,omitempty"`
	RoutingOverheadPct      *float64 `json:"routing_overhead_pct,omitempty"`
	WindCorrectionEnabled   *bool    `json:"wind_correction_enabled,omitempty"`
	WindCorrectionMph       *float64 `json:"wind_correction_mph,omitempty"`
	OptimizationEnabled     *bool    `json:"optimization_enabled,omitempty"`
	OptimizationRadiusMi    *float64 `json:"optimization_radius_mi,omitempty"`
	OptimizationMaxSearches *int     `json:"optimization_max_searches,omitempty"`
	NumBestRoutes           *int     `json:"num_best_routes,omitempty"`
	Workers                 *int     `json:"workers,omitempty"`
	Seed                    *int64   `json:"seed,omitempty"`
}

// Apply returns sc with o applied. Pinned codes replace both the pinned ids
// and codes of sc. Validation happens when the session is forked.
func (o Overrides) Apply(sc config.SearchConfig) config.SearchConfig {
	set := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	setF := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}

	set(&sc.MaxSearches, o.MaxSearches)
	set(&sc.OptimizationMaxSearches, o.OptimizationMaxSearches)
	set(&sc.NumBestRoutes, o.NumBestRoutes)
	set(&sc.Workers, o.Workers)
	setF(&sc.RoutingOverheadPct, o.RoutingOverheadPct)
	setF(&sc.WindCorrectionMph, o.WindCorrectionMph)
	setF(&sc.OptimizationRadiusMi, o.OptimizationRadiusMi)
	if o.WindCorrectionEnabled != nil {
		sc.WindCorrectionEnabled = *o.WindCorrectionEnabled
	}
	if o.OptimizationEnabled != nil {
		sc.OptimizationEnabled = *o.OptimizationEnabled
	}
	if o.Seed != nil {
		sc.Seed = *o.Seed
	}
	if o.StartAirportCodes != nil {
		sc.StartAirportIDs = nil
		sc.StartAirportCodes = upper(o.StartAirportCodes)
	}
	if o.StartContinentCodes != nil {
		sc.StartContinentCodes = upper(o.StartContinentCodes)
	}
	return sc
}

func upper(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			out = append(out, c)
		}
	}
	return out
}
