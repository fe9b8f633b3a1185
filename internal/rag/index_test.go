package rag

import (
	"math"
	"testing"
)

func unitVectors(t *testing.T, raw [][]float32) [][]float32 {
	t.Helper()
	out := make([][]float32, len(raw))
	for i, v := range raw {
		row := make([]float32, len(v))
		copy(row, v)
		normalize(row)
		out[i] = row
	}
	return out
}

func TestVectorIndexSearch_Ranking(t *testing.T) {
	vectors := unitVectors(t, [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{1, 1, 0},
	})
	ix := newVectorIndex(vectors)

	q := []float32{1, 0, 0}
	normalize(q)

	idxs, scores := ix.search(q, 3)
	if len(idxs) != 3 {
		t.Fatalf("got %d results, want 3", len(idxs))
	}
	if idxs[0] != 0 {
		t.Errorf("best match = %d, want 0", idxs[0])
	}
	if idxs[1] != 2 {
		t.Errorf("second match = %d, want 2", idxs[1])
	}
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[i-1] {
			t.Errorf("scores not descending: %v", scores)
		}
	}
}

func TestVectorIndexSearch_ScoresAreCosine(t *testing.T) {
	vectors := unitVectors(t, [][]float32{
		{1, 0},
		{0, 1},
		{-1, 0},
		{1, 1},
	})
	ix := newVectorIndex(vectors)

	q := []float32{1, 0}
	normalize(q)

	_, scores := ix.search(q, 4)
	for i, s := range scores {
		if s < -1.0001 || s > 1.0001 {
			t.Errorf("score[%d] = %v outside [-1, 1]", i, s)
		}
	}
	// Unit vectors at 45 degrees score 1/sqrt(2).
	want := float32(1 / math.Sqrt2)
	if diff := scores[1] - want; diff > 1e-5 || diff < -1e-5 {
		t.Errorf("second score = %v, want %v", scores[1], want)
	}
}

func TestVectorIndexSearch_KClamped(t *testing.T) {
	vectors := unitVectors(t, [][]float32{{1, 0}, {0, 1}})
	ix := newVectorIndex(vectors)

	q := []float32{1, 0}
	idxs, scores := ix.search(q, 10)
	if len(idxs) != 2 || len(scores) != 2 {
		t.Fatalf("got %d results for k=10 over 2 vectors, want 2", len(idxs))
	}
}

func TestVectorIndexSearch_Degenerate(t *testing.T) {
	tests := []struct {
		name string
		ix   *vectorIndex
		q    []float32
		k    int
	}{
		{name: "empty index", ix: newVectorIndex(nil), q: []float32{1}, k: 3},
		{name: "zero k", ix: newVectorIndex([][]float32{{1, 0}}), q: []float32{1, 0}, k: 0},
		{name: "dimension mismatch", ix: newVectorIndex([][]float32{{1, 0}}), q: []float32{1, 0, 0}, k: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idxs, scores := tt.ix.search(tt.q, tt.k)
			if idxs != nil || scores != nil {
				t.Errorf("got (%v, %v), want nil results", idxs, scores)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	normalize(v)

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if diff := math.Abs(sum - 1); diff > 1e-6 {
		t.Errorf("norm^2 = %v, want 1", sum)
	}
}

func TestNormalize_ZeroVectorStaysFinite(t *testing.T) {
	v := []float32{0, 0, 0}
	normalize(v)
	for i, x := range v {
		if x != 0 {
			t.Errorf("v[%d] = %v, want 0", i, x)
		}
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			t.Errorf("v[%d] = %v, want finite", i, x)
		}
	}
}
