package match

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

// Auxiliary signal tuning.
const (
	temporalWindow  = 24 * time.Hour
	temporalMaxHits = 10
	// Temporal evidence is only trusted once the face itself is close.
	temporalMinBase = 0.75

	deviceWindow  = 7 * 24 * time.Hour
	deviceMaxHits = 5
)

// MatchEvent is one previously accepted verification.
type MatchEvent struct {
	MatchedAt  time.Time
	Confidence float64
}

// HistoryProvider supplies past accepted matches for signal scoring.
// Store backends implement it.
type HistoryProvider interface {
	// RecentMatches returns accepted matches for the identity since the
	// given time, newest first, at most limit entries.
	RecentMatches(ctx context.Context, identityID string, since time.Time, limit int) ([]MatchEvent, error)
	// DeviceMatchCount counts accepted matches for the identity from
	// the given device fingerprint since the given time.
	DeviceMatchCount(ctx context.Context, identityID, fingerprint string, since time.Time) (int, error)
}

// Signals are the auxiliary evidence scores in [0,1].
type Signals struct {
	Temporal float64 `json:"temporal"`
	Device   float64 `json:"device"`
	Location float64 `json:"location"`
}

// temporalSignal scores how consistent this verification is with the
// identity's recent accepted matches. Each prior match contributes its
// confidence scaled by a linear decay over the window.
func temporalSignal(now time.Time, events []MatchEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	if len(events) > temporalMaxHits {
		events = events[:temporalMaxHits]
	}

	var sum float64
	for _, e := range events {
		hoursAgo := now.Sub(e.MatchedAt).Hours()
		decay := math.Max(0, 1-hoursAgo/temporalWindow.Hours())
		sum += decay * e.Confidence
	}
	return clamp01(sum / float64(len(events)))
}

// deviceSignal scores device familiarity as the fraction of a full
// recent-use history.
func deviceSignal(count int) float64 {
	if count > deviceMaxHits {
		count = deviceMaxHits
	}
	return float64(count) / float64(deviceMaxHits)
}

// collectSignals queries history for the best candidate. A nil history
// provider or a base score below the trust floor yields zero auxiliary
// evidence rather than an error.
func (m *Matcher) collectSignals(ctx context.Context, input Input, identityID string, base float64) Signals {
	s := Signals{}
	if input.GeofenceValid {
		s.Location = 1
	}
	if m.history == nil {
		return s
	}

	if base >= temporalMinBase {
		events, err := m.history.RecentMatches(ctx, identityID, input.Timestamp.Add(-temporalWindow), temporalMaxHits)
		if err != nil {
			m.log.Warn("temporal signal lookup failed", zap.Error(err))
		} else {
			s.Temporal = temporalSignal(input.Timestamp, events)
		}
	}

	if input.DeviceFingerprint != "" {
		count, err := m.history.DeviceMatchCount(ctx, identityID, input.DeviceFingerprint, input.Timestamp.Add(-deviceWindow))
		if err != nil {
			m.log.Warn("device signal lookup failed", zap.Error(err))
		} else {
			s.Device = deviceSignal(count)
		}
	}
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
