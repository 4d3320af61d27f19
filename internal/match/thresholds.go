package match

import "fmt"

// Mode selects the verification context, which shifts how strict the
// acceptance threshold is.
type Mode int

const (
	// ModeDaily is a routine clock-in or clock-out.
	ModeDaily Mode = iota
	// ModeEnrollment verifies a probe against a freshly built template.
	ModeEnrollment
	// ModeSameDevice is a repeat verification from a device the person
	// recently used successfully.
	ModeSameDevice
)

func (m Mode) String() string {
	switch m {
	case ModeEnrollment:
		return "enrollment"
	case ModeSameDevice:
		return "same_device"
	default:
		return "daily"
	}
}

// ParseMode maps a wire-format mode string to a Mode. The empty string
// means a routine daily verification.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "daily":
		return ModeDaily, nil
	case "enrollment":
		return ModeEnrollment, nil
	case "same_device":
		return ModeSameDevice, nil
	default:
		return ModeDaily, fmt.Errorf("unknown verification mode %q", s)
	}
}

// QualityTier buckets a template by its mean enrollment quality.
type QualityTier int

const (
	TierMedium QualityTier = iota
	TierHigh
	TierLow
)

// Template quality boundaries.
const (
	highQualityCutoff = 0.85
	lowQualityCutoff  = 0.70
)

// TierForQuality classifies a template's mean enrollment quality.
func TierForQuality(meanQuality float64) QualityTier {
	switch {
	case meanQuality >= highQualityCutoff:
		return TierHigh
	case meanQuality < lowQualityCutoff:
		return TierLow
	default:
		return TierMedium
	}
}

// Acceptance thresholds by mode and query quality. Enrollment
// verification is strictest because the template was just captured; a
// high-quality query earns a small concession there since its
// similarity scores are trustworthy, while noisy low-quality queries
// keep the full bar. A trusted repeat device is slightly lenient, but
// the absolute floor clamps that back for all tiers.
const (
	enrollmentThreshold     = 0.75
	enrollmentThresholdHigh = 0.72
	dailyThreshold          = 0.70
	sameDeviceThreshold     = 0.68
	sameDeviceThresholdLow  = 0.70
)

// AbsoluteMinimum is the hard similarity floor. No acceptance path,
// rescue or concession goes below it.
const AbsoluteMinimum = 0.70

// Threshold returns the acceptance boundary for a mode and tier before
// the absolute floor clamp.
func Threshold(mode Mode, tier QualityTier) float64 {
	switch mode {
	case ModeEnrollment:
		if tier == TierHigh {
			return enrollmentThresholdHigh
		}
		return enrollmentThreshold
	case ModeSameDevice:
		if tier == TierLow {
			return sameDeviceThresholdLow
		}
		return sameDeviceThreshold
	default:
		return dailyThreshold
	}
}

// EffectiveThreshold is the table threshold clamped to the absolute
// minimum. This is what the decision engine compares against.
func EffectiveThreshold(mode Mode, tier QualityTier) float64 {
	t := Threshold(mode, tier)
	if t < AbsoluteMinimum {
		return AbsoluteMinimum
	}
	return t
}
