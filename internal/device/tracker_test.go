package device

import (
	"testing"
	"time"
)

func sampleAt(i int, blur float64, width int, score float64) Sample {
	return Sample{
		BlurVariance: blur,
		ImageWidth:   width,
		ImageHeight:  width * 3 / 4,
		Brightness:   0.5,
		QualityScore: score,
		Timestamp:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute),
	}
}

func TestRecordEvictsAtCapacity(t *testing.T) {
	p := NewProfile("dev-1", time.Now())
	for i := range HistorySize + 10 {
		p.Record(sampleAt(i, 100, 800, 0.9))
	}

	if len(p.Samples) != HistorySize {
		t.Errorf("expected %d retained samples, got %d", HistorySize, len(p.Samples))
	}
	if p.TotalClockIns != HistorySize+10 {
		t.Errorf("expected %d total clock-ins, got %d", HistorySize+10, p.TotalClockIns)
	}
	// Oldest samples must have been evicted.
	if p.Samples[0].Timestamp.Minute() != 10 {
		t.Errorf("expected oldest retained sample at minute 10, got %d", p.Samples[0].Timestamp.Minute())
	}
}

func TestTierClassification(t *testing.T) {
	tests := []struct {
		name  string
		blur  float64
		width int
		score float64
		want  Tier
	}{
		{"low on narrow images", 120, 400, 0.9, TierLow},
		{"low on blur variance", 40, 900, 0.9, TierLow},
		{"low on quality score", 120, 900, 0.6, TierLow},
		{"high when all good", 120, 900, 0.9, TierHigh},
		{"medium otherwise", 80, 700, 0.75, TierMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProfile("dev", time.Now())
			for i := range 10 {
				p.Record(sampleAt(i, tt.blur, tt.width, tt.score))
			}
			if got := p.Tier(); got != tt.want {
				t.Errorf("expected tier %s, got %s", tt.want, got)
			}
		})
	}
}

func TestTrustedTierRequiresSamples(t *testing.T) {
	p := NewProfile("dev", time.Now())
	for i := range MinSamplesForClassification - 1 {
		p.Record(sampleAt(i, 10, 300, 0.3))
	}

	if got := p.TrustedTier(); got != TierMedium {
		t.Errorf("expected medium before %d samples, got %s", MinSamplesForClassification, got)
	}

	p.Record(sampleAt(MinSamplesForClassification, 10, 300, 0.3))
	if got := p.TrustedTier(); got != TierLow {
		t.Errorf("expected low once classification is trusted, got %s", got)
	}
}

func TestTrustedTierNilProfile(t *testing.T) {
	var p *Profile
	if got := p.TrustedTier(); got != TierMedium {
		t.Errorf("nil profile should classify as medium, got %s", got)
	}
}
