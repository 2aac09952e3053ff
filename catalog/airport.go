// Package catalog loads airport, runway and country records and reduces them
// to the set of airports a route may use.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gilby125/seven-continents/pkg/geo"
)

// ErrUnknownAirport is returned when an id or code is not in the set.
var ErrUnknownAirport = errors.New("unknown airport")

// Airport is one candidate waypoint. Records are shared read-only by every
// search worker once the set is built; only Continent (geo override) and
// Bucket (grid annotation) are written, and both before any search starts.
type Airport struct {
	ID            int           `json:"id" msgpack:"id"`
	Code          string        `json:"code" msgpack:"code"`
	Name          string        `json:"name" msgpack:"name"`
	Type          string        `json:"type" msgpack:"type"`
	Lat           float64       `json:"lat" msgpack:"lat"`
	Lon           float64       `json:"lon" msgpack:"lon"`
	ElevationFt   int           `json:"elevation_ft,omitempty" msgpack:"elevation_ft,omitempty"`
	Continent     string        `json:"continent" msgpack:"continent"`
	Country       string        `json:"iso_country" msgpack:"iso_country"`
	CountryName   string        `json:"country_name,omitempty" msgpack:"country_name,omitempty"`
	Region        string        `json:"iso_region,omitempty" msgpack:"iso_region,omitempty"`
	HomeLink      string        `json:"home_link,omitempty" msgpack:"home_link,omitempty"`
	WikipediaLink string        `json:"wikipedia_link,omitempty" msgpack:"wikipedia_link,omitempty"`
	Bucket        geo.BucketKey `json:"-" msgpack:"-"`
}

// Position implements geo.Bucketable.
func (a *Airport) Position() geo.Coordinates {
	return geo.Coordinates{Lat: a.Lat, Lon: a.Lon}
}

// SetBucket implements geo.Bucketable.
func (a *Airport) SetBucket(k geo.BucketKey) {
	a.Bucket = k
}

// Link returns the best web link for the airport.
func (a *Airport) Link() string {
	if a.HomeLink != "" {
		return a.HomeLink
	}
	if a.WikipediaLink != "" {
		return a.WikipediaLink
	}
	return fmt.Sprintf("https://www.google.com/search?q=%s+airport", a.Code)
}

func (a *Airport) String() string {
	return a.Code
}

// Set is an indexed, immutable collection of airports.
type Set struct {
	airports []*Airport
	byID     map[int]*Airport
	byCode   map[string]*Airport
}

// NewSet indexes airports. Later duplicates of an id or code are ignored.
func NewSet(airports []*Airport) *Set {
	s := &Set{
		byID:   make(map[int]*Airport, len(airports)),
		byCode: make(map[string]*Airport, len(airports)),
	}
	for _, a := range airports {
		if _, dup := s.byID[a.ID]; dup {
			continue
		}
		s.airports = append(s.airports, a)
		s.byID[a.ID] = a
		if _, ok := s.byCode[a.Code]; !ok {
			s.byCode[a.Code] = a
		}
	}
	return s
}

// All returns the airports in insertion order. Callers must not modify the slice.
func (s *Set) All() []*Airport {
	return s.airports
}

// Len returns the number of airports.
func (s *Set) Len() int {
	return len(s.airports)
}

// ByID looks an airport up by numeric id.
func (s *Set) ByID(id int) (*Airport, bool) {
	a, ok := s.byID[id]
	return a, ok
}

// ByCode looks an airport up by its ident code.
func (s *Set) ByCode(code string) (*Airport, bool) {
	a, ok := s.byCode[code]
	return a, ok
}

// IDs returns the airport ids in insertion order.
func (s *Set) IDs() []int {
	ids := make([]int, len(s.airports))
	for i, a := range s.airports {
		ids[i] = a.ID
	}
	return ids
}

// Continents returns the distinct continent codes in sorted order.
func (s *Set) Continents() []string {
	seen := map[string]bool{}
	var out []string
	for _, a := range s.airports {
		if !seen[a.Continent] {
			seen[a.Continent] = true
			out = append(out, a.Continent)
		}
	}
	sort.Strings(out)
	return out
}

// ResolveIDs maps ids to airports, failing on the first unknown id.
func (s *Set) ResolveIDs(ids []int) ([]*Airport, error) {
	out := make([]*Airport, 0, len(ids))
	for _, id := range ids {
		a, ok := s.byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: id %d", ErrUnknownAirport, id)
		}
		out = append(out, a)
	}
	return out, nil
}

// ResolveCodes maps codes to airport ids, failing on the first unknown code.
func (s *Set) ResolveCodes(codes []string) ([]int, error) {
	out := make([]int, 0, len(codes))
	for _, code := range codes {
		a, ok := s.byCode[code]
		if !ok {
			return nil, fmt.Errorf("%w: code %q", ErrUnknownAirport, code)
		}
		out = append(out, a.ID)
	}
	return out, nil
}
