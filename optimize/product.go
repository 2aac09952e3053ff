package optimize

import (
	"iter"
	"math"
	"math/bits"
	"math/rand/v2"
)

// Product is the Cartesian product of per position choice lists, described
// only by the list sizes. Index tuples are decoded from a single mixed radix
// index, so the product is never materialized.
type Product struct {
	sizes    []int
	total    uint64
	overflow bool
}

// NewProduct describes the product of lists with the given sizes.
func NewProduct(sizes []int) Product {
	p := Product{sizes: append([]int(nil), sizes...), total: 1}
	for _, s := range sizes {
		if s <= 0 {
			p.total = 0
			p.overflow = false
			return p
		}
		hi, lo := bits.Mul64(p.total, uint64(s))
		if hi != 0 {
			p.overflow = true
		}
		p.total = lo
	}
	return p
}

// Size returns the number of tuples. ok is false when the count exceeds
// uint64.
func (p Product) Size() (n uint64, ok bool) {
	if p.overflow {
		return math.MaxUint64, false
	}
	return p.total, true
}

// Decode writes the tuple at index idx into out, last position varying
// fastest.
func (p Product) Decode(idx uint64, out []int) {
	for i := len(p.sizes) - 1; i >= 0; i-- {
		s := uint64(p.sizes[i])
		out[i] = int(idx % s)
		idx /= s
	}
}

// Sample yields up to k index tuples. When the product holds at most k
// tuples every tuple is yielded in order; otherwise k distinct tuples are
// drawn at random. If the product is too large to index, positions are drawn
// independently and repeats are possible. The yielded slice is reused between
// iterations.
func (p Product) Sample(rng *rand.Rand, k int) iter.Seq[[]int] {
	return func(yield func([]int) bool) {
		if k <= 0 || len(p.sizes) == 0 || (!p.overflow && p.total == 0) {
			return
		}
		out := make([]int, len(p.sizes))

		if p.overflow {
			for n := 0; n < k; n++ {
				for i, s := range p.sizes {
					out[i] = rng.IntN(s)
				}
				if !yield(out) {
					return
				}
			}
			return
		}

		if p.total <= uint64(k) {
			for idx := uint64(0); idx < p.total; idx++ {
				p.Decode(idx, out)
				if !yield(out) {
					return
				}
			}
			return
		}

		seen := make(map[uint64]struct{}, k)
		for len(seen) < k {
			idx := rng.Uint64N(p.total)
			if _, dup := seen[idx]; dup {
				continue
			}
			seen[idx] = struct{}{}
			p.Decode(idx, out)
			if !yield(out) {
				return
			}
		}
	}
}
