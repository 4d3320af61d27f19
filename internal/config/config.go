// Package config loads the service configuration: environment variables for
// deployment concerns, an embedded YAML file for the calibrated pipeline
// tuning constants.
package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/attendly/facegate/internal/detect"
	"github.com/attendly/facegate/internal/imaging"
	"github.com/attendly/facegate/internal/match"
)

//go:embed thresholds.yaml
var thresholdsYAML []byte

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Models     ModelsConfig
	Thresholds ThresholdsConfig
}

type ServerConfig struct {
	Host string // defaults to 0.0.0.0
	Port int    // defaults to 8080
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MariaDSN     string // MariaDB DSN used when no PostgreSQL URL is set
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type RedisConfig struct {
	Addr     string // Redis address for the audit queue; empty runs in-process
	Password string
}

type ModelsConfig struct {
	Dir         string // directory holding the ONNX model files (default "models")
	LibraryPath string // optional explicit path to the onnxruntime shared library
}

// ThresholdsConfig carries the pipeline tuning constants. Defaults live in
// the embedded thresholds.yaml.
type ThresholdsConfig struct {
	Gate   GateThresholds   `yaml:"gate"`
	Match  MatchThresholds  `yaml:"match"`
	Detect DetectThresholds `yaml:"detect"`
}

type GateThresholds struct {
	MinWidth                  int     `yaml:"min_width"`
	StrictMinWidth            int     `yaml:"strict_min_width"`
	MaxWidth                  int     `yaml:"max_width"`
	MinBrightness             float64 `yaml:"min_brightness"`
	MaxBrightness             float64 `yaml:"max_brightness"`
	BrightnessTarget          float64 `yaml:"brightness_target"`
	MaxBrightnessAdjustment   float64 `yaml:"max_brightness_adjustment"`
	BlurFloor                 float64 `yaml:"blur_floor"`
	EnhancedBlurFloor         float64 `yaml:"enhanced_blur_floor"`
	SmallImageBlurFloor       float64 `yaml:"small_image_blur_floor"`
	VeryLenientFloor          float64 `yaml:"very_lenient_floor"`
	VeryBlurryVariance        float64 `yaml:"very_blurry_variance"`
	EnhancementAggressiveness float64 `yaml:"enhancement_aggressiveness"`
	CanonicalSize             int     `yaml:"canonical_size"`
}

type MatchThresholds struct {
	FusionFaceWeight     float64        `yaml:"fusion_face_weight"`
	FusionTemporalWeight float64        `yaml:"fusion_temporal_weight"`
	FusionDeviceWeight   float64        `yaml:"fusion_device_weight"`
	FusionLocationWeight float64        `yaml:"fusion_location_weight"`
	CentroidWeight       float64        `yaml:"centroid_weight"`
	MaxSampleWeight      float64        `yaml:"max_sample_weight"`
	MaxRescueFactor      float64        `yaml:"max_rescue_factor"`
	FusedRescueWindow    float64        `yaml:"fused_rescue_window"`
	NearMissWindow       float64        `yaml:"near_miss_window"`
	HighPairScore        float64        `yaml:"high_pair_score"`
	HighPairMaxGap       float64        `yaml:"high_pair_max_gap"`
	AmbiguousFaceGap     float64        `yaml:"ambiguous_face_gap"`
	GapHighScore         float64        `yaml:"gap_high_score"`
	GapHigh              float64        `yaml:"gap_high"`
	GapMediumScore       float64        `yaml:"gap_medium_score"`
	GapMedium            float64        `yaml:"gap_medium"`
	GapLow               float64        `yaml:"gap_low"`
	GapLowCluster        float64        `yaml:"gap_low_cluster"`
	ClusterScoreRange    float64        `yaml:"cluster_score_range"`
	RunnerUpTightWindow  float64        `yaml:"runner_up_tight_window"`
	RunnerUpTightGap     float64        `yaml:"runner_up_tight_gap"`
	RunnerUpCloseWindow  float64        `yaml:"runner_up_close_window"`
	RunnerUpCloseGap     float64        `yaml:"runner_up_close_gap"`
	MarginRequired       float64        `yaml:"margin_required"`
	MarginWithHistory    float64        `yaml:"margin_with_history"`
	Risk                 RiskThresholds `yaml:"risk"`
}

type RiskThresholds struct {
	FaceWeight     float64 `yaml:"face_weight"`
	QualityWeight  float64 `yaml:"quality_weight"`
	TemporalWeight float64 `yaml:"temporal_weight"`
	DeviceWeight   float64 `yaml:"device_weight"`
	LocationWeight float64 `yaml:"location_weight"`
	LivenessWeight float64 `yaml:"liveness_weight"`
	LowCutoff      float64 `yaml:"low_cutoff"`
	MediumCutoff   float64 `yaml:"medium_cutoff"`
	HighCutoff     float64 `yaml:"high_cutoff"`
}

type DetectThresholds struct {
	ScoreThreshold       float64 `yaml:"score_threshold"`
	AnchorScoreThreshold float64 `yaml:"anchor_score_threshold"`
	NMSThreshold         float64 `yaml:"nms_threshold"`
	DuplicateIoU         float64 `yaml:"duplicate_iou"`
	DuplicateSizeRatio   float64 `yaml:"duplicate_size_ratio"`
	DuplicateCenterRatio float64 `yaml:"duplicate_center_ratio"`
	MinFaceSize          float64 `yaml:"min_face_size"`
	StrictMinFaceSize    float64 `yaml:"strict_min_face_size"`
	MaxFaceSize          float64 `yaml:"max_face_size"`
	MinEyeRatio          float64 `yaml:"min_eye_ratio"`
	MaxEyeRatio          float64 `yaml:"max_eye_ratio"`
	MinSymmetry          float64 `yaml:"min_symmetry"`
	MinLiveness          float64 `yaml:"min_liveness"`
}

// GateConfig maps the tuning constants onto the quality gate settings.
func (c *Config) GateConfig() imaging.Config {
	g := c.Thresholds.Gate
	return imaging.Config{
		MinWidth:                  g.MinWidth,
		StrictMinWidth:            g.StrictMinWidth,
		MaxWidth:                  g.MaxWidth,
		MinBrightness:             g.MinBrightness,
		MaxBrightness:             g.MaxBrightness,
		BrightnessTarget:          g.BrightnessTarget,
		MaxBrightnessAdjustment:   g.MaxBrightnessAdjustment,
		BlurFloor:                 g.BlurFloor,
		EnhancedBlurFloor:         g.EnhancedBlurFloor,
		SmallImageBlurFloor:       g.SmallImageBlurFloor,
		VeryLenientFloor:          g.VeryLenientFloor,
		VeryBlurryVariance:        g.VeryBlurryVariance,
		EnhancementAggressiveness: g.EnhancementAggressiveness,
		CanonicalSize:             g.CanonicalSize,
	}
}

// MatchConfig maps the tuning constants onto the decision engine settings.
func (c *Config) MatchConfig() match.Config {
	m := c.Thresholds.Match
	return match.Config{
		FaceWeight:     m.FusionFaceWeight,
		TemporalWeight: m.FusionTemporalWeight,
		DeviceWeight:   m.FusionDeviceWeight,
		LocationWeight: m.FusionLocationWeight,

		CentroidWeight:    m.CentroidWeight,
		MaxSampleWeight:   m.MaxSampleWeight,
		MaxRescueFactor:   m.MaxRescueFactor,
		FusedRescueWindow: m.FusedRescueWindow,

		NearMissWindow:   m.NearMissWindow,
		HighPairScore:    m.HighPairScore,
		HighPairMaxGap:   m.HighPairMaxGap,
		AmbiguousFaceGap: m.AmbiguousFaceGap,

		GapHighScore:      m.GapHighScore,
		GapHigh:           m.GapHigh,
		GapMediumScore:    m.GapMediumScore,
		GapMedium:         m.GapMedium,
		GapLow:            m.GapLow,
		GapLowCluster:     m.GapLowCluster,
		ClusterScoreRange: m.ClusterScoreRange,

		RunnerUpTightWindow: m.RunnerUpTightWindow,
		RunnerUpTightGap:    m.RunnerUpTightGap,
		RunnerUpCloseWindow: m.RunnerUpCloseWindow,
		RunnerUpCloseGap:    m.RunnerUpCloseGap,

		MarginRequired:    m.MarginRequired,
		MarginWithHistory: m.MarginWithHistory,

		Risk: match.RiskConfig{
			FaceWeight:     m.Risk.FaceWeight,
			QualityWeight:  m.Risk.QualityWeight,
			TemporalWeight: m.Risk.TemporalWeight,
			DeviceWeight:   m.Risk.DeviceWeight,
			LocationWeight: m.Risk.LocationWeight,
			LivenessWeight: m.Risk.LivenessWeight,
			LowCutoff:      m.Risk.LowCutoff,
			MediumCutoff:   m.Risk.MediumCutoff,
			HighCutoff:     m.Risk.HighCutoff,
		},
	}
}

// DetectConfig maps the tuning constants onto the detector settings.
func (c *Config) DetectConfig() detect.Config {
	d := c.Thresholds.Detect
	return detect.Config{
		ScoreThreshold:       d.ScoreThreshold,
		AnchorScoreThreshold: d.AnchorScoreThreshold,
		NMSThreshold:         d.NMSThreshold,
		DuplicateIoU:         d.DuplicateIoU,
		DuplicateSizeRatio:   d.DuplicateSizeRatio,
		DuplicateCenterRatio: d.DuplicateCenterRatio,
		MinFaceSize:          d.MinFaceSize,
		StrictMinFaceSize:    d.StrictMinFaceSize,
		MaxFaceSize:          d.MaxFaceSize,
		MinEyeRatio:          d.MinEyeRatio,
		MaxEyeRatio:          d.MaxEyeRatio,
		MinSymmetry:          d.MinSymmetry,
		MinLiveness:          d.MinLiveness,
	}
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var thresholds ThresholdsConfig
	if err := yaml.Unmarshal(thresholdsYAML, &thresholds); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded thresholds.yaml: " + err.Error())
	}

	// Deployment-sensitive gate settings are env-overridable; everything
	// else keeps the embedded calibration.
	thresholds.Gate.BlurFloor = envFloat("FACEGATE_BLUR_FLOOR", thresholds.Gate.BlurFloor)
	thresholds.Gate.MinWidth = envInt("FACEGATE_MIN_WIDTH", thresholds.Gate.MinWidth)
	thresholds.Detect.ScoreThreshold = envFloat("FACEGATE_DETECT_SCORE", thresholds.Detect.ScoreThreshold)
	thresholds.Detect.MinLiveness = envFloat("FACEGATE_MIN_LIVENESS", thresholds.Detect.MinLiveness)
	thresholds.Match.MarginRequired = envFloat("FACEGATE_MATCH_MARGIN", thresholds.Match.MarginRequired)
	thresholds.Match.AmbiguousFaceGap = envFloat("FACEGATE_MATCH_AMBIGUOUS_GAP", thresholds.Match.AmbiguousFaceGap)

	return &Config{
		Server: ServerConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MariaDSN:     os.Getenv("MARIADB_DSN"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Models: ModelsConfig{
			Dir:         envString("MODEL_DIR", "models"),
			LibraryPath: os.Getenv("ONNXRUNTIME_LIB"),
		},
		Thresholds: thresholds,
	}
}
