// Package device tracks per-device image quality history. Devices that
// consistently produce poor frames (old phones, budget cameras) are classified
// into a "low" tier, which the quality gate uses to pick a lenient blur floor.
// The tier never relaxes similarity thresholds.
package device

import (
	"time"

	"github.com/attendly/facegate/internal/biometric"
)

// Tier is the coarse quality classification of a device.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

const (
	// HistorySize bounds the ring buffer of retained quality samples.
	HistorySize = 30
	// MinSamplesForClassification is how many samples a device needs before
	// its tier is trusted; below this the device is treated as medium.
	MinSamplesForClassification = 5
)

// Sample is one quality observation recorded after a completed verification.
type Sample struct {
	BlurVariance float64   `json:"blur_variance"`
	ImageWidth   int       `json:"image_width"`
	ImageHeight  int       `json:"image_height"`
	Brightness   float64   `json:"brightness"`
	QualityScore float64   `json:"quality_score"`
	Timestamp    time.Time `json:"timestamp"`
}

// SampleFromMetrics extracts the tracked fields from a quality snapshot.
func SampleFromMetrics(m biometric.QualityMetrics, at time.Time) Sample {
	return Sample{
		BlurVariance: m.BlurVariance,
		ImageWidth:   m.ImageWidth,
		ImageHeight:  m.ImageHeight,
		Brightness:   m.Brightness,
		QualityScore: m.Sharpness,
		Timestamp:    at,
	}
}

// Averages holds the rolling averages over a profile's retained samples.
type Averages struct {
	BlurVariance float64 `json:"blur_variance"`
	ImageWidth   float64 `json:"image_width"`
	ImageHeight  float64 `json:"image_height"`
	Brightness   float64 `json:"brightness"`
	QualityScore float64 `json:"quality_score"`
}

// Profile is the rolling quality history of one device fingerprint.
type Profile struct {
	Fingerprint   string    `json:"fingerprint"`
	Samples       []Sample  `json:"samples"`
	TotalClockIns int       `json:"total_clock_ins"`
	FirstSeen     time.Time `json:"first_seen"`
	LastSeen      time.Time `json:"last_seen"`
}

// NewProfile creates an empty profile for a device fingerprint.
func NewProfile(fingerprint string, now time.Time) *Profile {
	return &Profile{
		Fingerprint: fingerprint,
		FirstSeen:   now,
		LastSeen:    now,
	}
}

// Record appends a quality sample, evicting the oldest once the ring buffer
// is full.
func (p *Profile) Record(s Sample) {
	p.Samples = append(p.Samples, s)
	if len(p.Samples) > HistorySize {
		p.Samples = p.Samples[len(p.Samples)-HistorySize:]
	}
	p.TotalClockIns++
	p.LastSeen = s.Timestamp
	if p.FirstSeen.IsZero() {
		p.FirstSeen = s.Timestamp
	}
}

// Averages computes rolling averages over the retained samples.
func (p *Profile) Averages() Averages {
	if len(p.Samples) == 0 {
		return Averages{Brightness: 0.5, QualityScore: 0.75}
	}

	var a Averages
	for _, s := range p.Samples {
		a.BlurVariance += s.BlurVariance
		a.ImageWidth += float64(s.ImageWidth)
		a.ImageHeight += float64(s.ImageHeight)
		a.Brightness += s.Brightness
		a.QualityScore += s.QualityScore
	}
	n := float64(len(p.Samples))
	a.BlurVariance /= n
	a.ImageWidth /= n
	a.ImageHeight /= n
	a.Brightness /= n
	a.QualityScore /= n
	return a
}

// Tier classifies the device from its rolling averages: low if any metric is
// poor, high only if all are good, otherwise medium.
func (p *Profile) Tier() Tier {
	a := p.Averages()

	if a.ImageWidth < 500 || a.BlurVariance < 60 || a.QualityScore < 0.65 {
		return TierLow
	}
	if a.ImageWidth >= 800 && a.BlurVariance >= 100 && a.QualityScore >= 0.85 {
		return TierHigh
	}
	return TierMedium
}

// TrustedTier returns the classification once enough samples exist, medium
// before that.
func (p *Profile) TrustedTier() Tier {
	if p == nil || p.TotalClockIns < MinSamplesForClassification {
		return TierMedium
	}
	return p.Tier()
}
