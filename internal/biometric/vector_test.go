package biometric

import (
	"math"
	"testing"
)

func TestNormalized(t *testing.T) {
	e := Embedding{3, 4}
	n, err := e.Normalized()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(n.Norm()-1) > 1e-6 {
		t.Errorf("expected unit norm, got %f", n.Norm())
	}

	// Normalizing twice is a no-op.
	n2, err := n.Normalized()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range n {
		if math.Abs(float64(n[i]-n2[i])) > 1e-6 {
			t.Errorf("index %d changed after second normalization: %f vs %f", i, n[i], n2[i])
		}
	}
}

func TestNormalizedZeroVector(t *testing.T) {
	e := make(Embedding, EmbeddingSize)
	if _, err := e.Normalized(); err == nil {
		t.Error("expected error for zero-norm embedding")
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := Embedding{1, 0, 0}
	b := Embedding{0, 1, 0}

	if got := CosineSimilarity(a, a); math.Abs(got-1) > 1e-9 {
		t.Errorf("self similarity should be 1, got %f", got)
	}
	if got := CosineSimilarity(a, b); math.Abs(got) > 1e-9 {
		t.Errorf("orthogonal vectors should have similarity 0, got %f", got)
	}

	neg := Embedding{-1, 0, 0}
	if got := CosineSimilarity(a, neg); math.Abs(got+1) > 1e-9 {
		t.Errorf("opposite vectors should have similarity -1, got %f", got)
	}

	// Symmetric.
	c := Embedding{0.3, 0.8, 0.5}
	if CosineSimilarity(a, c) != CosineSimilarity(c, a) {
		t.Error("cosine similarity should be symmetric")
	}
}

func TestCosineSimilarityMismatchedLengths(t *testing.T) {
	if got := CosineSimilarity(Embedding{1, 2}, Embedding{1, 2, 3}); got != 0 {
		t.Errorf("mismatched lengths should yield 0, got %f", got)
	}
}

func TestCosineSimilarityBounded(t *testing.T) {
	a := Embedding{0.1, -0.7, 0.4, 0.2}
	b := Embedding{-0.3, 0.5, 0.9, -0.1}
	got := CosineSimilarity(a, b)
	if got < -1 || got > 1 {
		t.Errorf("cosine similarity out of [-1,1]: %f", got)
	}
}
