// Package biometric holds the domain types shared across the face pipeline:
// embeddings, quality metrics, detections and validation errors.
package biometric

import (
	"fmt"
	"math"
)

// EmbeddingSize is the dimensionality of the recognition network output.
const EmbeddingSize = 512

// Embedding is an identity-feature vector. Stored and compared embeddings are
// always unit norm.
type Embedding []float32

// Norm returns the Euclidean norm of the embedding.
func (e Embedding) Norm() float64 {
	var sum float64
	for _, v := range e {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Normalized returns a unit-norm copy of the embedding. A zero-norm vector
// cannot be normalized and yields an error.
func (e Embedding) Normalized() (Embedding, error) {
	norm := e.Norm()
	if norm < 1e-10 {
		return nil, fmt.Errorf("cannot normalize zero-norm embedding (length %d)", len(e))
	}
	out := make(Embedding, len(e))
	for i, v := range e {
		out[i] = float32(float64(v) / norm)
	}
	return out, nil
}

// Valid reports whether the embedding has the expected dimensionality.
func (e Embedding) Valid() bool {
	return len(e) == EmbeddingSize
}

// CosineSimilarity computes the cosine similarity between two embeddings.
// Returns 0 for mismatched lengths or zero-norm inputs.
func CosineSimilarity(a, b Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
