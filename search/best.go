package search

import (
	"slices"
	"sort"

	"github.com/gilby125/seven-continents/route"
)

// Candidate is a complete route with its cost.
type Candidate struct {
	Route       route.Route
	LengthMi    float64
	DurationHrs float64
}

// BestList keeps the N lowest duration candidates, sorted ascending. Ties
// keep arrival order. Not safe for concurrent use; each worker owns one.
type BestList struct {
	n     int
	items []Candidate
}

// NewBestList returns an empty list bounded to n entries. n below 1 is
// treated as 1.
func NewBestList(n int) *BestList {
	if n < 1 {
		n = 1
	}
	return &BestList{n: n, items: make([]Candidate, 0, n+1)}
}

// Admits reports whether a candidate of duration d would be kept.
func (b *BestList) Admits(d float64) bool {
	return len(b.items) < b.n || d < b.items[len(b.items)-1].DurationHrs
}

// Insert adds c if it ranks within the best N. It reports whether c was kept.
func (b *BestList) Insert(c Candidate) bool {
	if !b.Admits(c.DurationHrs) {
		return false
	}
	i := sort.Search(len(b.items), func(i int) bool {
		return b.items[i].DurationHrs > c.DurationHrs
	})
	b.items = slices.Insert(b.items, i, c)
	if len(b.items) > b.n {
		b.items = b.items[:b.n]
	}
	return true
}

// Len returns the number of entries.
func (b *BestList) Len() int {
	return len(b.items)
}

// Cap returns the bound N.
func (b *BestList) Cap() int {
	return b.n
}

// Best returns the lowest duration candidate.
func (b *BestList) Best() (Candidate, bool) {
	if len(b.items) == 0 {
		return Candidate{}, false
	}
	return b.items[0], true
}

// Items returns a copy of the entries in rank order.
func (b *BestList) Items() []Candidate {
	return slices.Clone(b.items)
}

// Dedupe drops later candidates whose waypoint sequence repeats an earlier
// one, preserving order.
func Dedupe(items []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(items))
	out := make([]Candidate, 0, len(items))
	for _, c := range items {
		key := c.Route.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// SortByDuration orders items ascending by duration, keeping ties stable.
func SortByDuration(items []Candidate) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DurationHrs < items[j].DurationHrs
	})
}

// Merge combines per worker lists into one ranked, deduplicated list of at
// most n entries.
func Merge(n int, lists ...[]Candidate) []Candidate {
	var all []Candidate
	for _, l := range lists {
		all = append(all, l...)
	}
	SortByDuration(all)
	all = Dedupe(all)
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	return all
}
