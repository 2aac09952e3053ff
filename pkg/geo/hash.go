package geo

import (
	"fmt"
	"math"
	"sort"
)

// minResolution replaces a zero or negative resolution so every point
// lands in its own cell instead of dividing by zero.
const minResolution = 1e-8

// BucketKey identifies one cell of the lat/long grid.
type BucketKey struct {
	Lat int
	Lon int
}

// String renders the key as "lat:lon", the form used in logs and reports.
func (k BucketKey) String() string {
	return fmt.Sprintf("%d:%d", k.Lat, k.Lon)
}

// Hash returns the grid cell containing c for a grid of resolution degrees.
func Hash(resolution float64, c Coordinates) BucketKey {
	if resolution <= 0 {
		resolution = minResolution
	}
	return BucketKey{
		Lat: int(math.Floor((c.Lat + 90) / resolution)),
		Lon: int(math.Floor((c.Lon + 180) / resolution)),
	}
}

// Bucketable is anything with a position that can remember its cell.
type Bucketable interface {
	Position() Coordinates
	SetBucket(BucketKey)
}

// Table maps a grid cell to the indices of the items that fall in it.
type Table struct {
	Resolution float64
	Buckets    map[BucketKey][]int
}

// BuildTable groups items by grid cell and annotates each item with its key.
// Indices in the table refer to positions in items.
func BuildTable[T Bucketable](resolution float64, items []T) Table {
	t := Table{Resolution: resolution, Buckets: make(map[BucketKey][]int)}
	for i, item := range items {
		key := Hash(resolution, item.Position())
		t.Buckets[key] = append(t.Buckets[key], i)
		item.SetBucket(key)
	}
	return t
}

// Len returns the number of non-empty cells.
func (t Table) Len() int {
	return len(t.Buckets)
}

// Keys returns the cell keys in a stable order, so that seeded sampling over
// the table is reproducible.
func (t Table) Keys() []BucketKey {
	keys := make([]BucketKey, 0, len(t.Buckets))
	for k := range t.Buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Lat == keys[j].Lat {
			return keys[i].Lon < keys[j].Lon
		}
		return keys[i].Lat < keys[j].Lat
	})
	return keys
}
