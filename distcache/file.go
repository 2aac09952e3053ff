package distcache

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"slices"

	"github.com/gilby125/seven-continents/catalog"
	"github.com/gilby125/seven-continents/pkg/geo"
)

var byteOrder = binary.LittleEndian

// ReadHeader returns the entry count stored at the start of the file at path.
// A missing file yields ErrRebuildRequired.
func ReadHeader(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s does not exist", ErrRebuildRequired, path)
		}
		return 0, err
	}
	defer f.Close()

	var buf [4]byte
	if _, err := io.ReadFull(f, buf[:]); err != nil {
		return 0, fmt.Errorf("%w: %s: header: %v", ErrCorrupt, path, err)
	}
	return int(byteOrder.Uint32(buf[:])), nil
}

// Check decides whether the file at path can serve n airports without a
// rebuild: it must exist and hold at least n entries.
func Check(path string, n int) error {
	count, err := ReadHeader(path)
	if err != nil {
		return err
	}
	if count < n {
		return fmt.Errorf("%w: %s holds %d entries, need %d", ErrRebuildRequired, path, count, n)
	}
	return nil
}

// Load reads the file at path, keeping only entries whose source id is in
// ids. A nil ids keeps everything. A truncated file fails with ErrCorrupt and
// no partial cache is returned.
func Load(path string, ids []int) (*Cache, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrRebuildRequired, path)
		}
		return nil, fmt.Errorf("open distance cache: %w", err)
	}
	defer f.Close()

	var keep map[int]bool
	if ids != nil {
		keep = make(map[int]bool, len(ids))
		for _, id := range ids {
			keep[id] = true
		}
	}

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat distance cache: %w", err)
	}

	c := New()
	if err := c.read(bufio.NewReaderSize(f, 1<<20), info.Size(), keep); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return c, nil
}

// read decodes a cache body of size bytes. Counts are checked against the
// bytes left so a damaged count fails with ErrCorrupt instead of allocating.
func (c *Cache) read(r io.Reader, size int64, keep map[int]bool) error {
	var buf [8]byte
	remaining := size
	readFull := func(n int) error {
		if _, err := io.ReadFull(r, buf[:n]); err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		remaining -= int64(n)
		return nil
	}

	if err := readFull(4); err != nil {
		return err
	}
	entries := byteOrder.Uint32(buf[:4])
	if int64(entries)*8 > remaining {
		return fmt.Errorf("%w: %d entries cannot fit in %d bytes", ErrCorrupt, entries, remaining)
	}

	for i := uint32(0); i < entries; i++ {
		if err := readFull(8); err != nil {
			return fmt.Errorf("entry %d of %d: %w", i, entries, err)
		}
		src := int(int32(byteOrder.Uint32(buf[:4])))
		count := byteOrder.Uint32(buf[4:8])
		if int64(count)*8 > remaining {
			return fmt.Errorf("%w: entry %d: %d destinations cannot fit in %d bytes", ErrCorrupt, i, count, remaining)
		}

		wanted := keep == nil || keep[src]
		var row map[int]float32
		if wanted {
			row = make(map[int]float32, count)
		}
		for j := uint32(0); j < count; j++ {
			if err := readFull(8); err != nil {
				return fmt.Errorf("entry %d of %d, destination %d: %w", i, entries, j, err)
			}
			if !wanted {
				continue
			}
			dst := int(int32(byteOrder.Uint32(buf[:4])))
			row[dst] = math.Float32frombits(byteOrder.Uint32(buf[4:8]))
		}
		if wanted {
			c.dist[src] = row
		}
	}
	return nil
}

// Write stores the cache at path, replacing any existing file atomically.
// Entries are written in ascending id order.
func (c *Cache) Write(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache directory: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create distance cache: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriterSize(tmp, 1<<20)
	if err := c.write(w); err != nil {
		tmp.Close()
		return fmt.Errorf("write distance cache: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush distance cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close distance cache: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func (c *Cache) write(w io.Writer) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var buf [8]byte
	byteOrder.PutUint32(buf[:4], uint32(len(c.dist)))
	if _, err := w.Write(buf[:4]); err != nil {
		return err
	}

	srcs := sortedKeys(c.dist)
	for _, src := range srcs {
		row := c.dist[src]
		byteOrder.PutUint32(buf[:4], uint32(int32(src)))
		byteOrder.PutUint32(buf[4:8], uint32(len(row)))
		if _, err := w.Write(buf[:8]); err != nil {
			return err
		}
		for _, dst := range sortedKeys(row) {
			byteOrder.PutUint32(buf[:4], uint32(int32(dst)))
			byteOrder.PutUint32(buf[4:8], math.Float32bits(row[dst]))
			if _, err := w.Write(buf[:8]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Build computes every missing pairwise distance among airports, merges the
// result with prev (which may be nil) and writes the full set to path. Each
// unordered pair is computed once. Cancelling ctx aborts before anything is
// written.
func Build(ctx context.Context, path string, airports []*catalog.Airport, prev *Cache) (*Cache, error) {
	c := New()
	if prev != nil {
		prev.mu.RLock()
		for src, row := range prev.dist {
			c.dist[src] = make(map[int]float32, len(row))
			for dst, d := range row {
				c.dist[src][dst] = d
			}
		}
		prev.mu.RUnlock()
	}

	c.mu.Lock()
	for i, a := range airports {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				c.mu.Unlock()
				return nil, err
			}
		}
		for _, b := range airports[i:] {
			if _, ok := c.lookupLocked(a.ID, b.ID); ok {
				continue
			}
			d := float32(geo.Haversine(a.Lat, a.Lon, b.Lat, b.Lon))
			c.setLocked(a.ID, b.ID, d)
		}
	}
	c.mu.Unlock()

	if err := c.Write(path); err != nil {
		return nil, err
	}
	return c, nil
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
