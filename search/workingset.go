package search

import (
	"math/rand/v2"
	"sort"

	"github.com/gilby125/seven-continents/catalog"
	"github.com/gilby125/seven-continents/pkg/geo"
)

// workingSet is one random representative per geo hash bucket plus the
// pinned airports, grouped by continent.
type workingSet struct {
	byContinent map[string][]*catalog.Airport
	continents  []string
}

func newWorkingSet(rng *rand.Rand, airports []*catalog.Airport, table geo.Table, keys []geo.BucketKey, pinned []*catalog.Airport) workingSet {
	ws := workingSet{byContinent: make(map[string][]*catalog.Airport)}
	add := func(a *catalog.Airport) {
		if _, ok := ws.byContinent[a.Continent]; !ok {
			ws.continents = append(ws.continents, a.Continent)
		}
		ws.byContinent[a.Continent] = append(ws.byContinent[a.Continent], a)
	}
	for _, k := range keys {
		members := table.Buckets[k]
		if len(members) == 0 {
			continue
		}
		add(airports[members[rng.IntN(len(members))]])
	}
	for _, a := range pinned {
		add(a)
	}
	sort.Strings(ws.continents)
	return ws
}

// size returns the number of airports in the set.
func (ws workingSet) size() int {
	n := 0
	for _, members := range ws.byContinent {
		n += len(members)
	}
	return n
}

// remaining appends to buf the continents not yet visited.
func (ws workingSet) remaining(buf []string, visited map[string]struct{}) []string {
	buf = buf[:0]
	for _, c := range ws.continents {
		if _, ok := visited[c]; !ok {
			buf = append(buf, c)
		}
	}
	return buf
}
