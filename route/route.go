// Package route models an ordered sequence of airports and the cost of
// flying it: segment lengths with routing overhead, durations with an
// optional jet stream correction, and range validity per leg.
package route

import (
	"strconv"
	"strings"

	"github.com/gilby125/seven-continents/catalog"
)

// Route is an ordered waypoint sequence. Waypoints point into the shared
// airport set and are never modified through a Route.
type Route struct {
	Waypoints []*catalog.Airport
}

// New returns a route over waypoints.
func New(waypoints ...*catalog.Airport) Route {
	return Route{Waypoints: waypoints}
}

// Len returns the number of waypoints.
func (r Route) Len() int {
	return len(r.Waypoints)
}

// Legs returns the number of segments.
func (r Route) Legs() int {
	if len(r.Waypoints) < 2 {
		return 0
	}
	return len(r.Waypoints) - 1
}

// Key identifies the route by its waypoint ids, for deduplication.
func (r Route) Key() string {
	var b strings.Builder
	for i, a := range r.Waypoints {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(a.ID))
	}
	return b.String()
}

// Codes returns the waypoint codes in order.
func (r Route) Codes() []string {
	codes := make([]string, len(r.Waypoints))
	for i, a := range r.Waypoints {
		codes[i] = a.Code
	}
	return codes
}

// Continents returns the number of distinct continents visited.
func (r Route) Continents() int {
	seen := make(map[string]struct{}, 7)
	for _, a := range r.Waypoints {
		seen[a.Continent] = struct{}{}
	}
	return len(seen)
}

func (r Route) String() string {
	return "<Route " + strings.Join(r.Codes(), ",") + ">"
}
