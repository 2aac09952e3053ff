// Package distcache stores pairwise great-circle distances between airports
// in a compact binary file.
//
// File layout, little endian:
//
//	uint32 entry count
//	per entry:
//	    int32  source airport id
//	    uint32 destination count
//	    per destination: int32 airport id, float32 distance in miles
package distcache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gilby125/seven-continents/catalog"
	"github.com/gilby125/seven-continents/pkg/geo"
	"github.com/gilby125/seven-continents/pkg/metrics"
)

var (
	// ErrRebuildRequired means the cache file is missing or does not cover
	// the working airport set.
	ErrRebuildRequired = errors.New("distance cache rebuild required")
	// ErrCorrupt means the cache file is truncated or malformed.
	ErrCorrupt = errors.New("distance cache corrupt")
)

// Cache maps a source airport id to destination ids and distances. Distances
// are held at float32 precision so that an in-memory cache and one loaded
// from disk return identical values.
//
// Reads take a shared lock; misses computed by Get are inserted under the
// exclusive lock, so a Cache may be shared by concurrent search workers.
type Cache struct {
	mu   sync.RWMutex
	dist map[int]map[int]float32
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{dist: make(map[int]map[int]float32)}
}

// Len returns the number of source entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.dist)
}

// Has reports whether id has a source entry.
func (c *Cache) Has(id int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.dist[id]
	return ok
}

// Lookup returns the cached distance between two ids in either order.
func (c *Cache) Lookup(src, dst int) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lookupLocked(src, dst)
}

func (c *Cache) lookupLocked(src, dst int) (float64, bool) {
	if row, ok := c.dist[src]; ok {
		if d, ok := row[dst]; ok {
			return float64(d), true
		}
	}
	if row, ok := c.dist[dst]; ok {
		if d, ok := row[src]; ok {
			return float64(d), true
		}
	}
	return 0, false
}

// Get returns the distance in miles between two airports. A miss is computed
// with the great-circle primitive and remembered; it never fails.
func (c *Cache) Get(src, dst *catalog.Airport) float64 {
	if d, ok := c.Lookup(src.ID, dst.ID); ok {
		return d
	}
	metrics.DistanceCacheMisses.Inc()
	d := float32(geo.Haversine(src.Lat, src.Lon, dst.Lat, dst.Lon))

	c.mu.Lock()
	c.setLocked(src.ID, dst.ID, d)
	c.mu.Unlock()
	return float64(d)
}

// setLocked stores d in both directions.
func (c *Cache) setLocked(a, b int, d float32) {
	c.putLocked(a, b, d)
	c.putLocked(b, a, d)
}

func (c *Cache) putLocked(src, dst int, d float32) {
	row, ok := c.dist[src]
	if !ok {
		row = make(map[int]float32)
		c.dist[src] = row
	}
	row[dst] = d
}

// Covers returns ErrRebuildRequired when any of ids lacks a source entry.
func (c *Cache) Covers(ids []int) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	missing := 0
	for _, id := range ids {
		if _, ok := c.dist[id]; !ok {
			missing++
		}
	}
	if missing > 0 {
		return fmt.Errorf("%w: %d of %d airports missing", ErrRebuildRequired, missing, len(ids))
	}
	return nil
}
