package utils

import "math"

// CosineSimilarity returns the cosine of the angle between a and b in [-1, 1].
// Returns 0 when either vector has zero magnitude or lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NormalizedSimilarity maps cosine similarity into [0, 1], the scoring scale
// used across the vector index (1 = identical direction, 0 = opposite).
// Weaviate calls the same quantity "certainty".
func NormalizedSimilarity(a, b []float32) float64 {
	return (CosineSimilarity(a, b) + 1) / 2
}
