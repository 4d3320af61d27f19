package template

import (
	"errors"
	"math"
	"testing"

	"github.com/attendly/facegate/internal/biometric"
)

func basisVector(dim int) biometric.Embedding {
	v := make(biometric.Embedding, biometric.EmbeddingSize)
	v[dim] = 1
	return v
}

func metrics(score, sharpness, detection float64) *biometric.QualityMetrics {
	return &biometric.QualityMetrics{Score: score, Sharpness: sharpness, DetectionScore: detection}
}

func TestBuildSingleSample(t *testing.T) {
	v := basisVector(3)
	tpl, err := Build([]Sample{{Embedding: v, Metrics: metrics(0.9, 0.8, 0.95)}})
	if err != nil {
		t.Fatal(err)
	}
	if got := biometric.CosineSimilarity(tpl.Centroid, v); math.Abs(got-1) > 1e-6 {
		t.Errorf("single-sample centroid must equal the sample, similarity %f", got)
	}
	if tpl.SampleCount != 1 {
		t.Errorf("expected 1 sample, got %d", tpl.SampleCount)
	}
}

func TestBuildCentroidIsUnitLength(t *testing.T) {
	samples := []Sample{
		{Embedding: basisVector(0), Metrics: metrics(0.9, 0.9, 0.9)},
		{Embedding: basisVector(1), Metrics: metrics(0.9, 0.9, 0.9)},
		{Embedding: basisVector(2), Metrics: metrics(0.9, 0.9, 0.9)},
	}
	tpl, err := Build(samples)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(tpl.Centroid.Norm()-1) > 1e-5 {
		t.Errorf("centroid must be unit length, norm %f", tpl.Centroid.Norm())
	}
}

func TestBuildQualityWeighting(t *testing.T) {
	sharp := basisVector(0)
	blurry := basisVector(1)
	tpl, err := Build([]Sample{
		{Embedding: sharp, Metrics: metrics(0.95, 0.95, 0.95)},
		{Embedding: blurry, Metrics: metrics(0.2, 0.1, 0.5)},
	})
	if err != nil {
		t.Fatal(err)
	}

	toSharp := biometric.CosineSimilarity(tpl.Centroid, sharp)
	toBlurry := biometric.CosineSimilarity(tpl.Centroid, blurry)
	if toSharp <= toBlurry {
		t.Errorf("centroid should lean toward the high-quality sample: %f vs %f", toSharp, toBlurry)
	}
}

func TestSampleWeightBackfill(t *testing.T) {
	// A normalized legacy embedding without metrics gets the capped estimate.
	s := Sample{Embedding: basisVector(0)}
	if got := s.Weight(); math.Abs(got-0.9) > 1e-6 {
		t.Errorf("expected capped estimate 0.9, got %f", got)
	}

	weak := make(biometric.Embedding, biometric.EmbeddingSize)
	weak[0] = 0.1
	if got := (Sample{Embedding: weak}).Weight(); math.Abs(got-0.6) > 1e-6 {
		t.Errorf("expected floored estimate 0.6, got %f", got)
	}
}

func TestBuildCancellingSamplesFallBackToFirst(t *testing.T) {
	first := basisVector(0)
	opposite := make(biometric.Embedding, biometric.EmbeddingSize)
	opposite[0] = -1

	tpl, err := Build([]Sample{
		{Embedding: first, Metrics: metrics(0.9, 0.9, 0.9)},
		{Embedding: opposite, Metrics: metrics(0.9, 0.9, 0.9)},
	})
	if err != nil {
		t.Fatalf("cancelling samples must not fail aggregation: %v", err)
	}
	if got := biometric.CosineSimilarity(tpl.Centroid, first); math.Abs(got-1) > 1e-6 {
		t.Errorf("expected fallback to the first embedding, similarity %f", got)
	}
	if norm := tpl.Centroid.Norm(); math.Abs(norm-1) > 1e-6 {
		t.Errorf("fallback centroid must be unit norm, got %f", norm)
	}
	if tpl.SampleCount != 2 {
		t.Errorf("expected 2 samples, got %d", tpl.SampleCount)
	}
}

func TestBuildSkipsInvalidEmbeddings(t *testing.T) {
	tpl, err := Build([]Sample{
		{Embedding: basisVector(0), Metrics: metrics(0.9, 0.9, 0.9)},
		{Embedding: make(biometric.Embedding, 16)}, // wrong size
	})
	if err != nil {
		t.Fatal(err)
	}
	if tpl.SampleCount != 1 {
		t.Errorf("invalid embedding should be skipped, counted %d", tpl.SampleCount)
	}
}

func TestBuildNoSamples(t *testing.T) {
	if _, err := Build(nil); !errors.Is(err, ErrNoSamples) {
		t.Fatalf("expected ErrNoSamples, got %v", err)
	}
	if _, err := Centroid([]Sample{{Embedding: make(biometric.Embedding, 16)}}); !errors.Is(err, ErrNoSamples) {
		t.Fatalf("expected ErrNoSamples for all-invalid input, got %v", err)
	}
}
