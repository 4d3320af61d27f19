// Package match decides whether a probe embedding belongs to an
// enrolled identity. It combines face similarity with temporal, device
// and location evidence, applies mode- and quality-dependent
// thresholds and layered ambiguity safeguards, and scores the residual
// risk of every acceptance.
package match

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/attendly/facegate/internal/biometric"
)

// Gap comparison tolerances and the floor on a meaningful gap.
const (
	gapToleranceSmall = 0.002
	gapToleranceLarge = 0.005
	minMeaningfulGap  = 0.003
)

// Confidence tier boundaries on the final score.
const (
	veryHighConfidence = 0.90
	highConfidence     = 0.80
)

// Rejection reason classes recorded for offline tuning.
const (
	ReasonNoCandidates   = "no_candidates"
	ReasonBelowThreshold = "below_threshold"
	ReasonTooClose       = "too_close_high_confidence"
	ReasonGap            = "insufficient_gap"
	ReasonMargin         = "insufficient_margin"
)

// Candidate is one gallery identity offered to the matcher.
type Candidate struct {
	IdentityID string
	Name       string
	Centroid   biometric.Embedding
	Samples    []biometric.Embedding
	// Anchor is the embedding of an authoritative reference photo, if any.
	Anchor biometric.Embedding
}

// Input carries the probe and its verification context.
type Input struct {
	Probe    biometric.Embedding
	Quality  *biometric.QualityMetrics
	Liveness float64

	Mode              Mode
	DeviceFingerprint string
	GeofenceValid     bool
	Timestamp         time.Time
}

// Result is an accepted verification.
type Result struct {
	IdentityID string         `json:"identity_id"`
	Name       string         `json:"name"`
	Similarity float64        `json:"similarity"`
	Score      float64        `json:"score"`
	Confidence string         `json:"confidence"`
	Threshold  float64        `json:"threshold"`
	Signals    Signals        `json:"signals"`
	Risk       RiskAssessment `json:"risk"`
}

// Rejection explains a no-match verdict. It is a business outcome, not
// an error.
type Rejection struct {
	Reason         string  `json:"reason"`
	BestIdentityID string  `json:"best_identity_id,omitempty"`
	BestScore      float64 `json:"best_score"`
	Threshold      float64 `json:"threshold"`
	// NearMiss marks scores close enough below threshold that a retry
	// with a better frame would plausibly succeed.
	NearMiss bool `json:"near_miss"`
}

// Matcher is the decision engine. It is stateless apart from its
// injected collaborators and safe for concurrent use.
type Matcher struct {
	history HistoryProvider
	cfg     Config
	log     *zap.Logger
}

// New builds a matcher with the shipped calibration.
func New(history HistoryProvider, log *zap.Logger) *Matcher {
	return NewWithConfig(history, DefaultConfig(), log)
}

func NewWithConfig(history HistoryProvider, cfg Config, log *zap.Logger) *Matcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Matcher{history: history, cfg: cfg, log: log}
}

// scored is one candidate with its face evidence.
type scored struct {
	candidate *Candidate
	centroid  float64
	maxSample float64
	anchor    float64
	base      float64
	rescued   bool
}

// Match evaluates the probe against the gallery. It returns exactly one
// of: a Result (acceptance), a Rejection (no-match verdict), or an
// error (infrastructure fault).
func (m *Matcher) Match(ctx context.Context, input Input, gallery []Candidate) (*Result, *Rejection, error) {
	if !input.Probe.Valid() {
		return nil, nil, fmt.Errorf("probe embedding has %d dims, want %d", len(input.Probe), biometric.EmbeddingSize)
	}
	if input.Timestamp.IsZero() {
		input.Timestamp = time.Now()
	}

	tier := TierForQuality(queryQuality(input))
	threshold := EffectiveThreshold(input.Mode, tier)

	if len(gallery) == 0 {
		return nil, &Rejection{Reason: ReasonNoCandidates, Threshold: threshold}, nil
	}

	scores := make([]scored, len(gallery))
	for i := range gallery {
		scores[i] = scoreCandidate(m.cfg, input.Probe, &gallery[i], threshold)
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].base > scores[j].base })

	best := &scores[0]
	var second *scored
	if len(scores) > 1 {
		second = &scores[1]
	}

	// Two strong faces too close together: accepting either would be a
	// coin flip, so neither is accepted.
	if second != nil && best.base >= m.cfg.HighPairScore && second.base >= m.cfg.HighPairScore {
		if relativeGap(best.base, second.base) <= m.cfg.HighPairMaxGap {
			return nil, m.reject(best, Rejection{
				Reason:    ReasonTooClose,
				BestScore: best.base,
				Threshold: threshold,
			}), nil
		}
	}

	// When the top two face scores are nearly indistinguishable,
	// auxiliary evidence must not be allowed to pick the winner.
	faceGap := 1.0
	if second != nil {
		faceGap = relativeGap(best.base, second.base)
	}
	dropAux := second != nil && faceGap < m.cfg.AmbiguousFaceGap

	signals := m.collectSignals(ctx, input, best.candidate.IdentityID, best.base)

	final := best.base
	if !dropAux && (signals.Temporal > 0 || signals.Device > 0) {
		fused := m.cfg.FaceWeight*best.base +
			m.cfg.TemporalWeight*signals.Temporal +
			m.cfg.DeviceWeight*signals.Device +
			m.cfg.LocationWeight*signals.Location
		// Fusion may only rescue a borderline face, never drag down a
		// face that clears threshold on its own.
		if best.base >= threshold && fused < threshold*(1+m.cfg.FusedRescueWindow) {
			final = best.base
		} else {
			final = fused
		}
	}

	clears := 0
	nearMissExists := false
	for i := range scores {
		switch {
		case scores[i].base >= threshold:
			clears++
		case scores[i].base >= threshold*(1-m.cfg.NearMissWindow):
			nearMissExists = true
		}
	}

	gapChecked := false
	if second != nil && (clears > 1 || nearMissExists) {
		gapChecked = true
		required := requiredGap(m.cfg, best, second, scores, threshold)
		tolerance := gapToleranceLarge
		if required <= m.cfg.GapMedium {
			tolerance = gapToleranceSmall
		}
		if faceGap < required-tolerance {
			return nil, m.reject(best, Rejection{
				Reason:    ReasonGap,
				BestScore: best.base,
				Threshold: threshold,
			}), nil
		}
	}

	if best.base < AbsoluteMinimum || final < threshold {
		rej := Rejection{
			Reason:    ReasonBelowThreshold,
			BestScore: final,
			Threshold: threshold,
			NearMiss:  final >= threshold*(1-m.cfg.NearMissWindow),
		}
		return nil, m.reject(best, rej), nil
	}

	// A lone qualifying candidate never faced a gap check, so its win
	// must at least be comfortable.
	if !gapChecked {
		required := m.cfg.MarginRequired
		if signals.Temporal > 0 {
			required = m.cfg.MarginWithHistory
		}
		if (final-threshold)/threshold < required {
			return nil, m.reject(best, Rejection{
				Reason:    ReasonMargin,
				BestScore: final,
				Threshold: threshold,
			}), nil
		}
	}

	risk := assessRisk(m.cfg.Risk, riskInputs{
		face:     best.base,
		quality:  queryQuality(input),
		temporal: signals.Temporal,
		device:   signals.Device,
		location: signals.Location,
		liveness: input.Liveness,
	})

	return &Result{
		IdentityID: best.candidate.IdentityID,
		Name:       best.candidate.Name,
		Similarity: best.base,
		Score:      final,
		Confidence: confidenceTier(final),
		Threshold:  threshold,
		Signals:    signals,
		Risk:       risk,
	}, nil, nil
}

// reject annotates a rejection with the runner-up identity for audit.
func (m *Matcher) reject(best *scored, rej Rejection) *Rejection {
	rej.BestIdentityID = best.candidate.IdentityID
	m.log.Info("verification rejected",
		zap.String("reason", rej.Reason),
		zap.Float64("best_score", rej.BestScore),
		zap.Float64("threshold", rej.Threshold),
		zap.Bool("near_miss", rej.NearMiss))
	return &rej
}

// scoreCandidate computes the face evidence for one identity.
func scoreCandidate(cfg Config, probe biometric.Embedding, c *Candidate, threshold float64) scored {
	s := scored{candidate: c}

	s.centroid = biometric.CosineSimilarity(probe, c.Centroid)
	for _, sample := range c.Samples {
		if sim := biometric.CosineSimilarity(probe, sample); sim > s.maxSample {
			s.maxSample = sim
		}
	}

	selfie := cfg.CentroidWeight*s.centroid + cfg.MaxSampleWeight*s.maxSample
	// One genuinely strong enrolled sample outranks a centroid diluted
	// by varied capture conditions.
	if selfie < threshold && s.maxSample > selfie && s.maxSample >= threshold*cfg.MaxRescueFactor {
		selfie = s.maxSample
		s.rescued = true
	}

	s.base = selfie
	if c.Anchor.Valid() {
		s.anchor = biometric.CosineSimilarity(probe, c.Anchor)
		if s.anchor > s.base {
			s.base = s.anchor
		}
	}
	return s
}

// requiredGap sizes the separation demanded between the top two
// candidates, inversely to confidence and widened when the runner-up
// hovers just under the threshold.
func requiredGap(cfg Config, best, second *scored, scores []scored, threshold float64) float64 {
	var required float64
	switch {
	case best.base >= cfg.GapHighScore:
		required = cfg.GapHigh
	case best.base >= cfg.GapMediumScore:
		required = cfg.GapMedium
	default:
		if scoreRange(scores) < cfg.ClusterScoreRange {
			// A tight low-confidence cluster needs a decisive winner.
			required = cfg.GapLowCluster
		} else {
			required = cfg.GapLow
		}
	}

	if second.base < threshold {
		deficit := (threshold - second.base) / threshold
		switch {
		case deficit <= cfg.RunnerUpTightWindow:
			if required < cfg.RunnerUpTightGap {
				required = cfg.RunnerUpTightGap
			}
		case deficit <= cfg.RunnerUpCloseWindow:
			if required < cfg.RunnerUpCloseGap {
				required = cfg.RunnerUpCloseGap
			}
		}
	}

	if best.base >= veryHighConfidence && required < minMeaningfulGap {
		required = minMeaningfulGap
	}
	return required
}

func scoreRange(scores []scored) float64 {
	lo, hi := scores[0].base, scores[0].base
	for i := range scores {
		if scores[i].base < lo {
			lo = scores[i].base
		}
		if scores[i].base > hi {
			hi = scores[i].base
		}
	}
	return hi - lo
}

func relativeGap(top, runnerUp float64) float64 {
	if top <= 0 {
		return 0
	}
	return (top - runnerUp) / top
}

func confidenceTier(score float64) string {
	switch {
	case score >= veryHighConfidence:
		return "very_high"
	case score >= highConfidence:
		return "high"
	default:
		return "medium"
	}
}

// queryQuality extracts the probe quality score, defaulting to a
// neutral mid value when metrics were not captured.
func queryQuality(input Input) float64 {
	if input.Quality == nil {
		return 0.5
	}
	return input.Quality.Score
}
