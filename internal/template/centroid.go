// Package template aggregates enrollment embeddings into a single
// identity centroid, weighting each sample by its capture quality.
package template

import (
	"errors"

	"github.com/attendly/facegate/internal/biometric"
)

// Quality weight mix for one enrollment sample.
const (
	overallWeight   = 0.4
	sharpnessWeight = 0.3
	detectionWeight = 0.3
)

// Bounds for the quality estimate backfilled onto samples that were
// stored before metrics were captured.
const (
	estimateMin = 0.6
	estimateMax = 0.9
)

var ErrNoSamples = errors.New("template: no samples to aggregate")

// degenerateNorm is the weighted-sum norm below which the aggregate carries
// no direction (mutually cancelling samples).
const degenerateNorm = 0.001

// Sample is one enrollment embedding with its capture metrics.
// Metrics may be nil for samples stored by older clients.
type Sample struct {
	Embedding biometric.Embedding
	Metrics   *biometric.QualityMetrics
}

// Template is the aggregated identity representation.
type Template struct {
	Centroid    biometric.Embedding
	SampleCount int
	// MeanQuality is the average sample weight that went into the centroid.
	MeanQuality float64
}

// Weight scores how much a sample should pull the centroid. Samples
// without metrics get an estimate derived from their embedding norm,
// bounded so legacy data neither dominates nor vanishes.
func (s Sample) Weight() float64 {
	if s.Metrics != nil {
		return overallWeight*s.Metrics.Score +
			sharpnessWeight*s.Metrics.Sharpness +
			detectionWeight*s.Metrics.DetectionScore
	}
	est := s.Embedding.Norm()*0.9 + 0.1
	if est < estimateMin {
		est = estimateMin
	}
	if est > estimateMax {
		est = estimateMax
	}
	return est
}

// Build aggregates samples into a unit-length centroid. Invalid
// embeddings are skipped; if every usable weight is zero the centroid
// falls back to an unweighted mean.
func Build(samples []Sample) (*Template, error) {
	var usable []Sample
	for _, s := range samples {
		if s.Embedding.Valid() {
			usable = append(usable, s)
		}
	}
	if len(usable) == 0 {
		return nil, ErrNoSamples
	}

	sum := make([]float64, biometric.EmbeddingSize)
	var totalWeight, meanQuality float64
	for _, s := range usable {
		w := s.Weight()
		meanQuality += w
		normalized, err := s.Embedding.Normalized()
		if err != nil {
			continue
		}
		for i, v := range normalized {
			sum[i] += float64(v) * w
		}
		totalWeight += w
	}
	meanQuality /= float64(len(usable))

	if totalWeight <= 0 {
		// Degenerate weights: plain mean of normalized embeddings.
		for i := range sum {
			sum[i] = 0
		}
		for _, s := range usable {
			normalized, err := s.Embedding.Normalized()
			if err != nil {
				continue
			}
			for i, v := range normalized {
				sum[i] += float64(v)
			}
		}
	}

	centroid := make(biometric.Embedding, biometric.EmbeddingSize)
	for i, v := range sum {
		centroid[i] = float32(v)
	}
	if centroid.Norm() < degenerateNorm {
		// Mutually cancelling samples leave no aggregate direction; fall
		// back to the first sample that normalizes cleanly.
		for _, s := range usable {
			unit, err := s.Embedding.Normalized()
			if err != nil {
				continue
			}
			return &Template{
				Centroid:    unit,
				SampleCount: len(usable),
				MeanQuality: meanQuality,
			}, nil
		}
		return nil, ErrNoSamples
	}
	unit, err := centroid.Normalized()
	if err != nil {
		return nil, ErrNoSamples
	}

	return &Template{
		Centroid:    unit,
		SampleCount: len(usable),
		MeanQuality: meanQuality,
	}, nil
}

// Centroid is a convenience wrapper returning only the aggregated vector.
func Centroid(samples []Sample) (biometric.Embedding, error) {
	t, err := Build(samples)
	if err != nil {
		return nil, err
	}
	return t.Centroid, nil
}
