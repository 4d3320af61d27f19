package config

import (
	"os"
	"testing"

	"github.com/attendly/facegate/internal/match"
)

func TestLoad_EmbeddedThresholds(t *testing.T) {
	cfg := Load()

	if cfg.Thresholds.Gate.MinWidth != 400 {
		t.Errorf("expected gate min width 400, got %d", cfg.Thresholds.Gate.MinWidth)
	}
	if cfg.Thresholds.Gate.BlurFloor != 60 {
		t.Errorf("expected blur floor 60, got %v", cfg.Thresholds.Gate.BlurFloor)
	}
	if cfg.Thresholds.Detect.ScoreThreshold != 0.50 {
		t.Errorf("expected detect score threshold 0.50, got %v", cfg.Thresholds.Detect.ScoreThreshold)
	}
	if cfg.Thresholds.Detect.MinLiveness != 0.50 {
		t.Errorf("expected min liveness 0.50, got %v", cfg.Thresholds.Detect.MinLiveness)
	}
}

func TestLoad_ServerDefaults(t *testing.T) {
	os.Unsetenv("WEB_HOST")
	os.Unsetenv("WEB_PORT")

	cfg := Load()

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected default host 0.0.0.0, got %q", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
}

func TestLoad_EnvOverridesThresholds(t *testing.T) {
	t.Setenv("FACEGATE_BLUR_FLOOR", "45")
	t.Setenv("FACEGATE_DETECT_SCORE", "0.6")

	cfg := Load()

	if cfg.Thresholds.Gate.BlurFloor != 45 {
		t.Errorf("expected blur floor 45, got %v", cfg.Thresholds.Gate.BlurFloor)
	}
	if cfg.Thresholds.Detect.ScoreThreshold != 0.6 {
		t.Errorf("expected detect score 0.6, got %v", cfg.Thresholds.Detect.ScoreThreshold)
	}
}

func TestLoad_InvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("FACEGATE_BLUR_FLOOR", "not-a-number")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "-3")

	cfg := Load()

	if cfg.Thresholds.Gate.BlurFloor != 60 {
		t.Errorf("expected blur floor 60, got %v", cfg.Thresholds.Gate.BlurFloor)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected 25 max open conns, got %d", cfg.Database.MaxOpenConns)
	}
}

func TestGateConfig_MapsEveryField(t *testing.T) {
	cfg := Load()
	gate := cfg.GateConfig()

	if gate.MinWidth != cfg.Thresholds.Gate.MinWidth {
		t.Error("min width not mapped")
	}
	if gate.VeryLenientFloor != cfg.Thresholds.Gate.VeryLenientFloor {
		t.Error("very lenient floor not mapped")
	}
	if gate.CanonicalSize != cfg.Thresholds.Gate.CanonicalSize {
		t.Error("canonical size not mapped")
	}
}

func TestMatchConfig_MatchesShippedCalibration(t *testing.T) {
	cfg := Load()

	// The embedded yaml and the package defaults are the same calibration;
	// drift between them means one edit forgot the other.
	if got, want := cfg.MatchConfig(), match.DefaultConfig(); got != want {
		t.Errorf("embedded match calibration diverged:\n got %+v\nwant %+v", got, want)
	}
}

func TestMatchConfig_EnvOverride(t *testing.T) {
	t.Setenv("FACEGATE_MATCH_MARGIN", "0.12")
	t.Setenv("FACEGATE_MATCH_AMBIGUOUS_GAP", "0.09")

	m := Load().MatchConfig()

	if m.MarginRequired != 0.12 {
		t.Errorf("expected margin 0.12, got %v", m.MarginRequired)
	}
	if m.AmbiguousFaceGap != 0.09 {
		t.Errorf("expected ambiguous gap 0.09, got %v", m.AmbiguousFaceGap)
	}
}

func TestDetectConfig_MapsEveryField(t *testing.T) {
	cfg := Load()
	det := cfg.DetectConfig()

	if det.ScoreThreshold != cfg.Thresholds.Detect.ScoreThreshold {
		t.Error("score threshold not mapped")
	}
	if det.StrictMinFaceSize != cfg.Thresholds.Detect.StrictMinFaceSize {
		t.Error("strict min face size not mapped")
	}
	if det.MinLiveness != cfg.Thresholds.Detect.MinLiveness {
		t.Error("min liveness not mapped")
	}
}
