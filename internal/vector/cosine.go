// Package vector implements the in-process similarity primitive used by
// unstructured retrieval.
package vector

import (
	"fmt"
	"math"
)

// Cosine returns the cosine similarity of two equal-length vectors in
// [-1, 1]. A zero-norm input yields 0 rather than NaN.
func Cosine(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector length mismatch: %d != %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB))), nil
}

// Mean returns the arithmetic mean of the given scores, 0 for an empty
// slice.
func Mean(scores []float32) float32 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += float64(s)
	}
	return float32(sum / float64(len(scores)))
}
