package match

// Config holds the decision-engine tuning. Gaps and margins are relative
// to the larger score unless noted.
type Config struct {
	// Fusion weights over face and auxiliary evidence.
	FaceWeight     float64
	TemporalWeight float64
	DeviceWeight   float64
	LocationWeight float64

	// Selfie score mix.
	CentroidWeight  float64
	MaxSampleWeight float64
	// A single enrolled sample at this fraction of threshold or better
	// may stand in for a weak centroid mix.
	MaxRescueFactor float64
	// Fusion that lands below, or within this fraction above, the
	// threshold falls back to the raw face score when the face alone
	// already clears it.
	FusedRescueWindow float64

	// Ambiguity safeguards.
	NearMissWindow   float64
	HighPairScore    float64
	HighPairMaxGap   float64
	AmbiguousFaceGap float64

	// Adaptive gap table.
	GapHighScore      float64
	GapHigh           float64
	GapMediumScore    float64
	GapMedium         float64
	GapLow            float64
	GapLowCluster     float64
	ClusterScoreRange float64

	// Gap widening when the runner-up hovers just under threshold.
	RunnerUpTightWindow float64
	RunnerUpTightGap    float64
	RunnerUpCloseWindow float64
	RunnerUpCloseGap    float64

	// Margin demanded of a lone qualifying candidate.
	MarginRequired    float64
	MarginWithHistory float64

	Risk RiskConfig
}

// RiskConfig weights the risk score per signal and places the level
// cutoffs. The face similarity dominates, location carries real weight
// because geofence violations are actionable, and liveness is a light
// touch because its score is already a gate.
type RiskConfig struct {
	FaceWeight     float64
	QualityWeight  float64
	TemporalWeight float64
	DeviceWeight   float64
	LocationWeight float64
	LivenessWeight float64

	LowCutoff    float64
	MediumCutoff float64
	HighCutoff   float64
}

func DefaultConfig() Config {
	return Config{
		FaceWeight:     0.80,
		TemporalWeight: 0.10,
		DeviceWeight:   0.05,
		LocationWeight: 0.05,

		CentroidWeight:    0.7,
		MaxSampleWeight:   0.3,
		MaxRescueFactor:   0.95,
		FusedRescueWindow: 0.05,

		NearMissWindow:   0.03,
		HighPairScore:    0.80,
		HighPairMaxGap:   0.02,
		AmbiguousFaceGap: 0.06,

		GapHighScore:      0.80,
		GapHigh:           0.01,
		GapMediumScore:    0.75,
		GapMedium:         0.02,
		GapLow:            0.04,
		GapLowCluster:     0.08,
		ClusterScoreRange: 0.10,

		RunnerUpTightWindow: 0.01,
		RunnerUpTightGap:    0.10,
		RunnerUpCloseWindow: 0.02,
		RunnerUpCloseGap:    0.07,

		MarginRequired:    0.08,
		MarginWithHistory: 0.04,

		Risk: RiskConfig{
			FaceWeight:     0.40,
			QualityWeight:  0.15,
			TemporalWeight: 0.10,
			DeviceWeight:   0.10,
			LocationWeight: 0.20,
			LivenessWeight: 0.05,

			LowCutoff:    0.3,
			MediumCutoff: 0.6,
			HighCutoff:   0.8,
		},
	}
}
