package route

import (
	"errors"
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gilby125/seven-continents/catalog"
	"github.com/gilby125/seven-continents/config"
	"github.com/gilby125/seven-continents/pkg/geo"
	"github.com/gilby125/seven-continents/planes"
)

// Distancer returns the raw great-circle distance in miles between two
// airports. distcache.Cache implements it.
type Distancer interface {
	Get(src, dst *catalog.Airport) float64
}

// Segment is the effective cruise speed and flight time of one leg.
type Segment struct {
	SpeedMph    float64 `json:"speed_mph" msgpack:"speed_mph"`
	DurationHrs float64 `json:"duration_hrs" msgpack:"duration_hrs"`
}

type segmentKey struct {
	plane    string
	src, dst int
}

// Model prices routes. A Model belongs to one search session: its duration
// memo is never shared between sessions. It is safe for concurrent use.
type Model struct {
	cfg      config.SearchConfig
	dist     Distancer
	legs     []planes.Profile
	overhead float64
	memo     *lru.Cache[segmentKey, Segment]
}

// NewModel builds a model. The plane table must assign legs 1 through 6.
func NewModel(cfg config.SearchConfig, dist Distancer, table planes.Table) (*Model, error) {
	if dist == nil {
		return nil, errors.New("route model needs a distance source")
	}
	m := &Model{
		cfg:      cfg,
		dist:     dist,
		overhead: 1 + cfg.RoutingOverheadPct/100,
	}
	for leg := 1; leg <= 6; leg++ {
		p, err := table.ForLeg(leg)
		if err != nil {
			return nil, err
		}
		m.legs = append(m.legs, p)
	}
	for leg := 7; ; leg++ {
		p, err := table.ForLeg(leg)
		if err != nil {
			break
		}
		m.legs = append(m.legs, p)
	}
	if cfg.DuplicatePenaltyMi <= 0 {
		return nil, fmt.Errorf("duplicate waypoint penalty must be positive, got %g", cfg.DuplicatePenaltyMi)
	}
	for _, p := range m.legs {
		if p.AvgSpeedMph <= 0 {
			return nil, fmt.Errorf("plane %s: average speed must be positive", p.ID)
		}
		// A headwind at or above cruise speed would give zero or negative durations.
		if cfg.WindCorrectionEnabled && cfg.WindCorrectionMph >= p.AvgSpeedMph {
			return nil, fmt.Errorf("wind correction %g mph reaches plane %s speed of %g mph",
				cfg.WindCorrectionMph, p.ID, p.AvgSpeedMph)
		}
	}
	if cfg.SegmentMemoSize > 0 {
		memo, err := lru.New[segmentKey, Segment](cfg.SegmentMemoSize)
		if err != nil {
			return nil, fmt.Errorf("segment memo: %w", err)
		}
		m.memo = memo
	}
	return m, nil
}

// Plane returns the profile flying leg n, counted from 1. Legs past the last
// assignment are flown by the last assigned plane.
func (m *Model) Plane(n int) planes.Profile {
	if n < 1 {
		n = 1
	}
	if n > len(m.legs) {
		n = len(m.legs)
	}
	return m.legs[n-1]
}

// Distance returns the raw distance between two airports without overhead.
func (m *Model) Distance(a, b *catalog.Airport) float64 {
	return m.dist.Get(a, b)
}

// SegmentLength returns the distance flown between a and b including the
// routing overhead.
func (m *Model) SegmentLength(a, b *catalog.Airport) float64 {
	return m.dist.Get(a, b) * m.overhead
}

// ValidSegment reports whether p can fly from a to b. A segment exactly at
// the plane's range is out of range.
func (m *Model) ValidSegment(p planes.Profile, a, b *catalog.Airport) bool {
	return m.SegmentLength(a, b) < p.MaxRangeMi
}

// SegmentDuration returns the effective speed and duration for p flying a to
// b. A zero length segment (a repeated waypoint) is priced at the duplicate
// penalty distance instead.
func (m *Model) SegmentDuration(p planes.Profile, a, b *catalog.Airport) Segment {
	key := segmentKey{plane: p.ID, src: a.ID, dst: b.ID}
	if m.memo != nil {
		if s, ok := m.memo.Get(key); ok {
			return s
		}
	}

	dist := m.SegmentLength(a, b)
	if dist == 0 {
		dist = m.cfg.DuplicatePenaltyMi
	}
	speed := p.AvgSpeedMph
	if m.cfg.WindCorrectionEnabled {
		speed += m.windCorrection(a, b, dist)
	}
	s := Segment{SpeedMph: speed, DurationHrs: dist / speed}

	if m.memo != nil {
		m.memo.Add(key, s)
	}
	return s
}

// windCorrection estimates the jet stream effect on ground speed. The
// eastbound share of the segment is measured along the mean latitude; the
// correction is the configured speed scaled by the cosine of the angle
// between the segment and due east.
func (m *Model) windCorrection(a, b *catalog.Airport, dist float64) float64 {
	latAvg := (a.Lat + b.Lat) / 2
	lonDelta := b.Lon - a.Lon
	eastbound := geo.EastboundMiles(latAvg, lonDelta) * m.overhead
	// near the poles the parallel can be longer than the great circle
	if eastbound >= dist {
		eastbound = dist - 1
	}
	if lonDelta < 0 {
		eastbound = -eastbound
	}
	ratio := math.Max(-1, math.Min(1, eastbound/dist))
	angle := math.Acos(ratio)
	return m.cfg.WindCorrectionMph * math.Cos(angle)
}

// TotalLength sums segment lengths along r.
func (m *Model) TotalLength(r Route) float64 {
	total := 0.0
	for i := 1; i < len(r.Waypoints); i++ {
		total += m.SegmentLength(r.Waypoints[i-1], r.Waypoints[i])
	}
	return total
}

// TotalDuration sums segment durations along r, leg i flown by Plane(i).
func (m *Model) TotalDuration(r Route) float64 {
	total := 0.0
	for i := 1; i < len(r.Waypoints); i++ {
		total += m.SegmentDuration(m.Plane(i), r.Waypoints[i-1], r.Waypoints[i]).DurationHrs
	}
	return total
}

// Valid reports whether every leg of r is within range of its plane.
func (m *Model) Valid(r Route) bool {
	for i := 1; i < len(r.Waypoints); i++ {
		if !m.ValidSegment(m.Plane(i), r.Waypoints[i-1], r.Waypoints[i]) {
			return false
		}
	}
	return true
}

// Leg is the per segment breakdown used in results.
type Leg struct {
	Number      int     `json:"leg" msgpack:"leg"`
	From        string  `json:"from" msgpack:"from"`
	To          string  `json:"to" msgpack:"to"`
	Plane       string  `json:"plane" msgpack:"plane"`
	LengthMi    float64 `json:"length_mi" msgpack:"length_mi"`
	SpeedMph    float64 `json:"speed_mph" msgpack:"speed_mph"`
	DurationHrs float64 `json:"duration_hrs" msgpack:"duration_hrs"`
	InRange     bool    `json:"in_range" msgpack:"in_range"`
}

// Breakdown returns one Leg per segment of r.
func (m *Model) Breakdown(r Route) []Leg {
	legs := make([]Leg, 0, r.Legs())
	for i := 1; i < len(r.Waypoints); i++ {
		a, b := r.Waypoints[i-1], r.Waypoints[i]
		p := m.Plane(i)
		s := m.SegmentDuration(p, a, b)
		legs = append(legs, Leg{
			Number:      i,
			From:        a.Code,
			To:          b.Code,
			Plane:       p.ShortName,
			LengthMi:    m.SegmentLength(a, b),
			SpeedMph:    s.SpeedMph,
			DurationHrs: s.DurationHrs,
			InRange:     m.ValidSegment(p, a, b),
		})
	}
	return legs
}
