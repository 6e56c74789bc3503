package search

import (
	"math"
	"sort"

	"github.com/antoniostano/memorai/internal/memory"
)

const (
	// DefaultLimit applies when a search request carries no limit.
	DefaultLimit = 5
	// MaxLimit is the hard ceiling for a single search.
	MaxLimit = 50
)

// Result pairs a memory with its similarity to the query.
type Result struct {
	Memory memory.Memory
	Score  float32
}

// Cosine computes cosine similarity between two vectors. Mismatched lengths,
// empty inputs, and zero-norm vectors score 0.0 rather than failing, so a
// stale record degrades instead of breaking the whole ranking pass.
func Cosine(a, b []float32) float32 {
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
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Rank scores every candidate against the query vector and returns the top k
// by score descending. The sort is stable, so equal scores keep candidate
// order. The second return counts candidates whose embedding length differs
// from the query's; those still score 0.0, but callers can surface the
// mismatch as a sign of embedding-model drift. Callers clamp k beforehand.
func Rank(query []float32, candidates []memory.Memory, k int) ([]Result, int) {
	results := make([]Result, 0, len(candidates))
	mismatched := 0
	for _, m := range candidates {
		if len(m.Embedding) > 0 && len(m.Embedding) != len(query) {
			mismatched++
		}
		results = append(results, Result{Memory: m, Score: Cosine(query, m.Embedding)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k >= 0 && len(results) > k {
		results = results[:k]
	}
	return results, mismatched
}

// ClampLimit applies the default and ceiling for a requested result count.
func ClampLimit(k int) int {
	if k <= 0 {
		return DefaultLimit
	}
	if k > MaxLimit {
		return MaxLimit
	}
	return k
}
