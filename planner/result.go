package planner

import (
	"fmt"
	"time"

	"github.com/gilby125/seven-continents/catalog"
	"github.com/gilby125/seven-continents/config"
	"github.com/gilby125/seven-continents/optimize"
	"github.com/gilby125/seven-continents/pkg/logger"
	"github.com/gilby125/seven-continents/route"
)

// AlternateRadiusMi bounds the nearest alternate lookup.
const AlternateRadiusMi = 1000

// Result is the ranked outcome of a session run.
type Result struct {
	Routes          []RouteResult       `json:"routes" msgpack:"routes"`
	SearchCount     int64               `json:"search_count" msgpack:"search_count"`
	ValidRouteCount int64               `json:"valid_route_count" msgpack:"valid_route_count"`
	OptimizeCount   int64               `json:"optimize_count" msgpack:"optimize_count"`
	Elapsed         time.Duration       `json:"elapsed_ns" msgpack:"elapsed_ns"`
	Cancelled       bool                `json:"cancelled" msgpack:"cancelled"`
	Airports        int                 `json:"airports" msgpack:"airports"`
	Buckets         int                 `json:"buckets" msgpack:"buckets"`
	FilterStats     catalog.Stats       `json:"filter_stats" msgpack:"filter_stats"`
	Warnings        []logger.Warning    `json:"warnings,omitempty" msgpack:"warnings,omitempty"`
	Config          config.SearchConfig `json:"-" msgpack:"-"`
}

// Best returns the top ranked route.
func (r *Result) Best() (RouteResult, bool) {
	if r == nil || len(r.Routes) == 0 {
		return RouteResult{}, false
	}
	return r.Routes[0], true
}

// RouteResult is one ranked route with its per leg breakdown.
type RouteResult struct {
	Rank                int         `json:"rank" msgpack:"rank"`
	Codes               []string    `json:"codes" msgpack:"codes"`
	Stops               []Stop      `json:"stops" msgpack:"stops"`
	Legs                []route.Leg `json:"legs" msgpack:"legs"`
	TotalLengthMi       float64     `json:"total_length_mi" msgpack:"total_length_mi"`
	TotalDurationHrs    float64     `json:"total_duration_hrs" msgpack:"total_duration_hrs"`
	OriginalDurationHrs float64     `json:"original_duration_hrs" msgpack:"original_duration_hrs"`
	ImprovementPct      float64     `json:"improvement_pct" msgpack:"improvement_pct"`
	Evaluated           int         `json:"optimizer_evaluated" msgpack:"optimizer_evaluated"`
}

// Stop is one waypoint with the details a report needs.
type Stop struct {
	ID          int         `json:"id" msgpack:"id"`
	Code        string      `json:"code" msgpack:"code"`
	Name        string      `json:"name" msgpack:"name"`
	Type        string      `json:"type" msgpack:"type"`
	Continent   string      `json:"continent" msgpack:"continent"`
	Country     string      `json:"iso_country" msgpack:"iso_country"`
	CountryName string      `json:"country_name,omitempty" msgpack:"country_name,omitempty"`
	Lat         float64     `json:"lat" msgpack:"lat"`
	Lon         float64     `json:"lon" msgpack:"lon"`
	ElevationFt int         `json:"elevation_ft" msgpack:"elevation_ft"`
	Link        string      `json:"link" msgpack:"link"`
	Alternates  []Alternate `json:"alternates,omitempty" msgpack:"alternates,omitempty"`
}

// Alternate is the nearest airport of a larger class to a stop.
type Alternate struct {
	Kind       string  `json:"kind" msgpack:"kind"`
	Code       string  `json:"code" msgpack:"code"`
	Name       string  `json:"name" msgpack:"name"`
	Country    string  `json:"iso_country" msgpack:"iso_country"`
	DistanceMi float64 `json:"distance_mi" msgpack:"distance_mi"`
	Link       string  `json:"link" msgpack:"link"`
}

var alternateKinds = []string{"medium_airport", "large_airport"}

func (s *Session) describe(rank int, out optimize.Outcome) RouteResult {
	r := out.Best.Route
	rr := RouteResult{
		Rank:                rank,
		Codes:               r.Codes(),
		Legs:                s.model.Breakdown(r),
		TotalLengthMi:       out.Best.LengthMi,
		TotalDurationHrs:    out.Best.DurationHrs,
		OriginalDurationHrs: out.Original.DurationHrs,
		ImprovementPct:      out.ImprovementPct,
		Evaluated:           out.Evaluated,
	}
	for _, a := range r.Waypoints {
		rr.Stops = append(rr.Stops, s.stop(a))
	}
	return rr
}

// Airport describes the filtered airport with the given code.
func (s *Session) Airport(code string) (Stop, error) {
	if s.model == nil {
		return Stop{}, ErrNotPrepared
	}
	a, ok := s.airports.ByCode(code)
	if !ok {
		return Stop{}, fmt.Errorf("%w: code %q", catalog.ErrUnknownAirport, code)
	}
	return s.stop(a), nil
}

// stop adds nearest alternates for anything smaller than a large airport.
func (s *Session) stop(a *catalog.Airport) Stop {
	stop := newStop(a)
	if a.Type == "large_airport" {
		return stop
	}
	for _, kind := range alternateKinds {
		if alt, ok := s.NearestAlternate(a, kind, AlternateRadiusMi); ok {
			stop.Alternates = append(stop.Alternates, alt)
		}
	}
	return stop
}

func newStop(a *catalog.Airport) Stop {
	return Stop{
		ID:          a.ID,
		Code:        a.Code,
		Name:        a.Name,
		Type:        a.Type,
		Continent:   a.Continent,
		Country:     a.Country,
		CountryName: a.CountryName,
		Lat:         a.Lat,
		Lon:         a.Lon,
		ElevationFt: a.ElevationFt,
		Link:        a.Link(),
	}
}

// NearestAlternate finds the closest airport of kind within radius miles of
// a, for stops at small fields that lack services.
func (s *Session) NearestAlternate(a *catalog.Airport, kind string, radius float64) (Alternate, bool) {
	var best *catalog.Airport
	bestDist := radius
	for _, c := range s.airports.All() {
		if c.Code == a.Code || c.Type != kind {
			continue
		}
		if d := s.model.Distance(a, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	if best == nil {
		return Alternate{}, false
	}
	return Alternate{
		Kind:       kind,
		Code:       best.Code,
		Name:       best.Name,
		Country:    best.Country,
		DistanceMi: bestDist,
		Link:       best.Link(),
	}, true
}

// SegmentInfo describes a single leg between two airports.
type SegmentInfo struct {
	From        Stop    `json:"from"`
	To          Stop    `json:"to"`
	Leg         int     `json:"leg"`
	Plane       string  `json:"plane"`
	DistanceMi  float64 `json:"distance_mi"`
	LengthMi    float64 `json:"length_mi"`
	SpeedMph    float64 `json:"speed_mph"`
	DurationHrs float64 `json:"duration_hrs"`
	MaxRangeMi  float64 `json:"max_range_mi"`
	InRange     bool    `json:"in_range"`
}

// Segment prices the flight from one airport code to another as leg number
// leg of a route.
func (s *Session) Segment(from, to string, leg int) (SegmentInfo, error) {
	if s.model == nil {
		return SegmentInfo{}, ErrNotPrepared
	}
	a, ok := s.airports.ByCode(from)
	if !ok {
		return SegmentInfo{}, fmt.Errorf("%w: code %q", catalog.ErrUnknownAirport, from)
	}
	b, ok := s.airports.ByCode(to)
	if !ok {
		return SegmentInfo{}, fmt.Errorf("%w: code %q", catalog.ErrUnknownAirport, to)
	}
	p := s.model.Plane(leg)
	seg := s.model.SegmentDuration(p, a, b)
	return SegmentInfo{
		From:        newStop(a),
		To:          newStop(b),
		Leg:         max(leg, 1),
		Plane:       p.Name,
		DistanceMi:  s.model.Distance(a, b),
		LengthMi:    s.model.SegmentLength(a, b),
		SpeedMph:    seg.SpeedMph,
		DurationHrs: seg.DurationHrs,
		MaxRangeMi:  p.MaxRangeMi,
		InRange:     s.model.ValidSegment(p, a, b),
	}, nil
}
