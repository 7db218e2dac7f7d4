// Package index provides the nearest-neighbour search over passage
// embeddings. The index is built once from the persisted embedding rows and is
// read-only afterwards, so it is safe to share across requests.
//
// Invariant: vectors handed to Search must follow the same L2-normalization
// convention as the vectors the index was built from. With both sides
// normalized, squared L2 distance is 2-2*cos, so distance ranks exactly like
// cosine similarity. Mixing conventions degrades ranking silently.
package index

import (
	"fmt"
	"math"
)

// Flat is an exhaustive-scan index. Ids are positions in the passage corpus.
type Flat struct {
	vectors [][]float32
	dim     int
}

// NewFlat builds an index over the given vectors. All vectors must share one
// dimension.
func NewFlat(vectors [][]float32) (*Flat, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("index requires at least one vector")
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}
	return &Flat{vectors: vectors, dim: dim}, nil
}

// Size returns the number of indexed vectors.
func (f *Flat) Size() int {
	return len(f.vectors)
}

// Search returns the k nearest vectors by squared L2 distance, ascending.
// k larger than the index size returns everything. Ids are corpus positions.
func (f *Flat) Search(query []float32, k int) ([]float32, []int, error) {
	if len(query) != f.dim {
		return nil, nil, fmt.Errorf("query has dimension %d, index has %d", len(query), f.dim)
	}
	if k > len(f.vectors) {
		k = len(f.vectors)
	}
	if k <= 0 {
		return nil, nil, nil
	}

	distances := make([]float32, len(f.vectors))
	for i, v := range f.vectors {
		distances[i] = squaredL2(query, v)
	}

	// Selection over a small k keeps this allocation-light; ties resolve to
	// the lower corpus position.
	pickedDist := make([]float32, 0, k)
	pickedIDs := make([]int, 0, k)
	used := make([]bool, len(f.vectors))
	for n := 0; n < k; n++ {
		best := -1
		for i, d := range distances {
			if used[i] {
				continue
			}
			if best == -1 || d < distances[best] {
				best = i
			}
		}
		used[best] = true
		pickedDist = append(pickedDist, distances[best])
		pickedIDs = append(pickedIDs, best)
	}
	return pickedDist, pickedIDs, nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Normalize scales v to unit L2 length in place and returns it. A zero vector
// is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
