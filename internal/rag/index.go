package rag

import (
	"math"
	"sort"
)

// normEpsilon guards the normalization divide against zero vectors.
const normEpsilon = 1e-12

// vectorIndex performs exact nearest-neighbor search by inner product
// over L2-normalized vectors. With unit-length rows the inner product
// equals cosine similarity, so ranking is cosine ranking.
//
// The index is immutable after construction; rebuilds create a fresh
// index rather than mutating a live one.
type vectorIndex struct {
	vectors [][]float32
	dim     int
}

// newVectorIndex builds an index over already-normalized vectors.
func newVectorIndex(vectors [][]float32) *vectorIndex {
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	return &vectorIndex{vectors: vectors, dim: dim}
}

// size returns the number of indexed vectors.
func (ix *vectorIndex) size() int {
	return len(ix.vectors)
}

// search returns the indices and scores of the top-k rows by inner
// product with q, ordered best first. k larger than the index size is
// clamped. q must be normalized by the caller.
func (ix *vectorIndex) search(q []float32, k int) ([]int, []float32) {
	n := len(ix.vectors)
	if n == 0 || k <= 0 || len(q) != ix.dim {
		return nil, nil
	}
	if k > n {
		k = n
	}

	scores := make([]float32, n)
	for i, v := range ix.vectors {
		var dot float32
		for j := range v {
			dot += v[j] * q[j]
		}
		scores[i] = dot
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	idxs := make([]int, k)
	topScores := make([]float32, k)
	for i := 0; i < k; i++ {
		idxs[i] = order[i]
		topScores[i] = scores[order[i]]
	}
	return idxs, topScores
}

// normalize scales v to unit L2 norm in place. Zero vectors stay zero
// instead of producing NaNs.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm < normEpsilon {
		norm = normEpsilon
	}
	inv := float32(1 / norm)
	for i := range v {
		v[i] *= inv
	}
}
