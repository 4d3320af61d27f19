package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/attendly/facegate/internal/biometric"
	"github.com/attendly/facegate/internal/device"
)

// uniformImage builds a single-color RGBA test image.
func uniformImage(width, height int, gray uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{gray, gray, gray, 255})
		}
	}
	return img
}

// noisyImage builds a deterministic high-frequency test image.
func noisyImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	seed := uint32(12345)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			seed = seed*1664525 + 1013904223
			v := uint8(seed >> 24)
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img *image.RGBA) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

func TestBrightness(t *testing.T) {
	if got := Brightness(uniformImage(10, 10, 255)); math.Abs(got-1) > 0.01 {
		t.Errorf("white image brightness should be ~1, got %f", got)
	}
	if got := Brightness(uniformImage(10, 10, 0)); got > 0.01 {
		t.Errorf("black image brightness should be ~0, got %f", got)
	}
	if got := Brightness(uniformImage(10, 10, 128)); math.Abs(got-0.5) > 0.01 {
		t.Errorf("mid-gray brightness should be ~0.5, got %f", got)
	}
}

func TestDetectBlur(t *testing.T) {
	flat := DetectBlur(uniformImage(50, 50, 128))
	if flat.Variance > 0.001 {
		t.Errorf("uniform image should have ~0 variance, got %f", flat.Variance)
	}

	noisy := DetectBlur(noisyImage(50, 50))
	if noisy.Variance <= flat.Variance {
		t.Errorf("noisy image should be sharper than flat: %f vs %f", noisy.Variance, flat.Variance)
	}
	if noisy.Score < 0 || noisy.Score > 1 {
		t.Errorf("sharpness score out of range: %f", noisy.Score)
	}
}

func TestCorrectBrightnessBounded(t *testing.T) {
	dark := uniformImage(10, 10, 10)
	corrected := CorrectBrightness(dark, Brightness(dark), 0.5, 0.3)

	got := Brightness(corrected)
	// Adjustment is capped at 0.3, so a very dark image cannot reach the target.
	if math.Abs(got-(Brightness(dark)+0.3)) > 0.02 {
		t.Errorf("expected brightness raised by the cap, got %f", got)
	}
}

func TestGateRejectsSmallImage(t *testing.T) {
	g := NewGate(DefaultConfig(), nil)
	_, err := g.Process(encodePNG(t, noisyImage(200, 200)), device.TierMedium)

	var verr *biometric.ValidationError
	if !errors.As(err, &verr) || verr.Code != biometric.IssueImageTooSmall {
		t.Fatalf("expected image_too_small rejection, got %v", err)
	}
}

func TestGateRejectsDarkImage(t *testing.T) {
	g := NewGate(DefaultConfig(), nil)
	_, err := g.Process(encodePNG(t, uniformImage(800, 600, 5)), device.TierMedium)

	var verr *biometric.ValidationError
	if !errors.As(err, &verr) || verr.Code != biometric.IssueLighting {
		t.Fatalf("expected lighting rejection, got %v", err)
	}
}

func TestGateRejectsFlatBlurryImage(t *testing.T) {
	g := NewGate(DefaultConfig(), nil)
	_, err := g.Process(encodePNG(t, uniformImage(800, 600, 128)), device.TierLow)

	// A perfectly flat frame has variance ~0, below even the very lenient floor.
	var verr *biometric.ValidationError
	if !errors.As(err, &verr) || verr.Code != biometric.IssueBlur {
		t.Fatalf("expected blur rejection, got %v", err)
	}
}

func TestGateAcceptsSharpImage(t *testing.T) {
	g := NewGate(DefaultConfig(), nil)
	res, err := g.Process(encodePNG(t, noisyImage(800, 600)), device.TierMedium)
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if res.Frame == nil || res.Frame.Width == 0 {
		t.Fatal("expected a canonical frame")
	}
	if res.Metrics.ImageWidth != 800 || res.Metrics.ImageHeight != 600 {
		t.Errorf("metrics should carry original dimensions, got %dx%d",
			res.Metrics.ImageWidth, res.Metrics.ImageHeight)
	}
}

func TestEffectiveBlurFloor(t *testing.T) {
	g := NewGate(DefaultConfig(), nil)

	tests := []struct {
		name     string
		lowTier  bool
		variance float64
		enhanced bool
		width    int
		want     float64
	}{
		{"low tier device gets very lenient floor", true, 15, true, 800, 10},
		{"very blurry frame gets very lenient floor", false, 15, true, 800, 10},
		{"enhancement attempted", false, 45, true, 800, 36},
		{"small image", false, 55, false, 500, 48},
		{"strict by default", false, 80, false, 800, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.effectiveBlurFloor(tt.lowTier, tt.variance, tt.enhanced, tt.width)
			if got != tt.want {
				t.Errorf("expected floor %f, got %f", tt.want, got)
			}
		})
	}
}

// A variance-15 frame from a known low-quality device passes the gate floor,
// where a medium device frame at variance 45 without enhancement would be held
// to a stricter one.
func TestLowTierDeviceLeniency(t *testing.T) {
	g := NewGate(DefaultConfig(), nil)

	floor := g.effectiveBlurFloor(true, 15, true, 480)
	if 15 < floor {
		t.Errorf("variance 15 from a low-tier device must pass, floor was %f", floor)
	}
}

func TestCanonicalizeDownscales(t *testing.T) {
	g := NewGate(DefaultConfig(), nil)
	frame := g.canonicalize(uniformImage(2000, 1500, 128), 2000, 1500)

	if frame.Width != 1120 || frame.Height != 840 {
		t.Errorf("expected 1120x840 canonical frame, got %dx%d", frame.Width, frame.Height)
	}
	if math.Abs(frame.Scale-0.56) > 0.001 {
		t.Errorf("expected scale 0.56, got %f", frame.Scale)
	}

	// Smaller frames are never upscaled.
	small := g.canonicalize(uniformImage(800, 600, 128), 800, 600)
	if small.Width != 800 || small.Scale != 1.0 {
		t.Errorf("small frame should be untouched, got %dx scale %f", small.Width, small.Scale)
	}
}

func TestCanonicalizeRespectsMaxWidth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CanonicalSize = 2000
	cfg.MaxWidth = 500
	g := NewGate(cfg, nil)

	// Within the canonical bound but over the width cap.
	frame := g.canonicalize(uniformImage(800, 600, 128), 800, 600)
	if frame.Width != 500 || frame.Height != 375 {
		t.Errorf("expected 500x375 frame, got %dx%d", frame.Width, frame.Height)
	}
	if math.Abs(frame.Scale-0.625) > 0.001 {
		t.Errorf("expected scale 0.625, got %f", frame.Scale)
	}
	if frame.OriginalWidth != 800 {
		t.Errorf("original width must survive for coordinate mapping, got %d", frame.OriginalWidth)
	}
}
