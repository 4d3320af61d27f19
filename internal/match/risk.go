package match

// Signal floors below which a named factor is attached to the assessment.
const (
	faceFactorFloor     = 0.70
	qualityFactorFloor  = 0.70
	temporalFactorFloor = 0.10
	deviceFactorFloor   = 0.10
	livenessFactorFloor = 0.70
)

// RiskAssessment summarizes how much scrutiny this verification
// deserves downstream.
type RiskAssessment struct {
	Score   float64  `json:"score"`
	Level   string   `json:"level"`
	Factors []string `json:"factors,omitempty"`
}

// riskInputs are the signal values feeding the assessment, each in [0,1].
type riskInputs struct {
	face     float64
	quality  float64
	temporal float64
	device   float64
	location float64
	liveness float64
}

// assessRisk aggregates inverted signals into a weighted risk score.
// Strong signals contribute nothing; each weak signal adds its weight.
func assessRisk(cfg RiskConfig, in riskInputs) RiskAssessment {
	face := normalizeScore(in.face)
	quality := normalizeScore(in.quality)
	temporal := normalizeScore(in.temporal)
	device := normalizeScore(in.device)
	location := normalizeScore(in.location)
	liveness := normalizeScore(in.liveness)

	score := cfg.FaceWeight*(1-face) +
		cfg.QualityWeight*(1-quality) +
		cfg.TemporalWeight*(1-temporal) +
		cfg.DeviceWeight*(1-device) +
		cfg.LocationWeight*(1-location) +
		cfg.LivenessWeight*(1-liveness)

	a := RiskAssessment{Score: score, Level: riskLevel(cfg, score)}
	if face < faceFactorFloor {
		a.Factors = append(a.Factors, "low_face_similarity")
	}
	if quality < qualityFactorFloor {
		a.Factors = append(a.Factors, "poor_image_quality")
	}
	if temporal < temporalFactorFloor {
		a.Factors = append(a.Factors, "no_recent_attendance_pattern")
	}
	if device < deviceFactorFloor {
		a.Factors = append(a.Factors, "unfamiliar_device")
	}
	if location < 1 {
		a.Factors = append(a.Factors, "outside_geofence")
	}
	if liveness < livenessFactorFloor {
		a.Factors = append(a.Factors, "liveness_concern")
	}
	return a
}

func riskLevel(cfg RiskConfig, score float64) string {
	switch {
	case score < cfg.LowCutoff:
		return "low"
	case score < cfg.MediumCutoff:
		return "medium"
	case score < cfg.HighCutoff:
		return "high"
	default:
		return "critical"
	}
}

// normalizeScore accepts either a [0,1] fraction or a percentage and
// clamps the result. Callers occasionally hand percentages through
// from client payloads.
func normalizeScore(v float64) float64 {
	if v > 1 {
		v = v / 100
	}
	return clamp01(v)
}
