package imaging

import (
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/attendly/facegate/internal/biometric"
	"github.com/attendly/facegate/internal/device"
)

// Config holds the quality gate tuning constants.
type Config struct {
	// Width gates in original pixels.
	MinWidth       int
	StrictMinWidth int
	MaxWidth       int

	// Brightness acceptance band, normalized [0,1].
	MinBrightness           float64
	MaxBrightness           float64
	BrightnessTarget        float64
	MaxBrightnessAdjustment float64

	// Blur floors (Laplacian variance).
	BlurFloor           float64
	EnhancedBlurFloor   float64
	SmallImageBlurFloor float64
	VeryLenientFloor    float64
	VeryBlurryVariance  float64

	EnhancementAggressiveness float64

	// CanonicalSize is the longer-side target of the canonical frame.
	CanonicalSize int
}

// DefaultConfig returns the calibrated quality gate settings.
func DefaultConfig() Config {
	return Config{
		MinWidth:                  400,
		StrictMinWidth:            600,
		MaxWidth:                  1920,
		MinBrightness:             0.25,
		MaxBrightness:             0.95,
		BrightnessTarget:          0.5,
		MaxBrightnessAdjustment:   0.3,
		BlurFloor:                 60,
		EnhancedBlurFloor:         36,
		SmallImageBlurFloor:       48,
		VeryLenientFloor:          10,
		VeryBlurryVariance:        20,
		EnhancementAggressiveness: 1.2,
		CanonicalSize:             1120,
	}
}

// Frame is the size-normalized working image every later stage operates on.
type Frame struct {
	Img            *image.RGBA
	Width          int
	Height         int
	OriginalWidth  int
	OriginalHeight int
	// Scale maps original pixels to canonical pixels (canonical = original * Scale).
	Scale float64
}

// Result is the quality gate output for an accepted frame.
type Result struct {
	Frame    *Frame
	Metrics  biometric.QualityMetrics
	Warnings []string
	Enhanced bool
	// EffectiveBlurFloor is the floor the frame was accepted under.
	EffectiveBlurFloor float64
}

// Gate validates and repairs raw frames before detection runs.
type Gate struct {
	cfg Config
	log *zap.Logger
}

// NewGate creates a quality gate with the given settings.
func NewGate(cfg Config, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{cfg: cfg, log: log}
}

// Process runs the full quality gate: size and brightness validation,
// brightness correction, blur measurement with optional enhancement, the
// adaptive blur floor, and the canonical resize. The device tier only ever
// affects the blur floor.
func (g *Gate) Process(data []byte, tier device.Tier) (*Result, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, biometric.NewValidationError(biometric.IssueDecodeFailed,
			"Unable to read the image. Please try again.")
	}

	bounds := img.Bounds()
	origWidth := bounds.Dx()
	origHeight := bounds.Dy()
	var warnings []string

	if origWidth < g.cfg.MinWidth {
		return nil, biometric.NewValidationError(biometric.IssueImageTooSmall,
			fmt.Sprintf("Image too small: %dpx width (minimum: %dpx). Please use a better camera or move closer.",
				origWidth, g.cfg.MinWidth))
	}
	if origWidth < g.cfg.StrictMinWidth {
		warnings = append(warnings,
			fmt.Sprintf("Low resolution image (%dpx). Higher resolution cameras are recommended for better accuracy.", origWidth))
	}

	brightness := Brightness(img)
	if brightness < g.cfg.MinBrightness*0.8 || brightness > g.cfg.MaxBrightness*1.1 {
		return nil, biometric.NewValidationError(biometric.IssueLighting,
			fmt.Sprintf("Image brightness out of range: %.1f%% (required: %.0f-%.0f%%). Please adjust lighting.",
				brightness*100, g.cfg.MinBrightness*100, g.cfg.MaxBrightness*100))
	}
	if brightness < g.cfg.MinBrightness || brightness > g.cfg.MaxBrightness {
		warnings = append(warnings,
			fmt.Sprintf("Suboptimal brightness: %.1f%%. Auto-correcting.", brightness*100))
		img = CorrectBrightness(img, brightness, g.cfg.BrightnessTarget, g.cfg.MaxBrightnessAdjustment)
	}

	blur := DetectBlur(img)
	origVariance := blur.Variance
	lowTier := tier == device.TierLow
	veryBlurry := blur.Variance < g.cfg.VeryBlurryVariance
	enhancementAttempted := false
	enhancementImproved := false

	if blur.Variance < g.cfg.BlurFloor {
		enhancementAttempted = true
		aggressiveness := 1.0
		if lowTier || veryBlurry {
			aggressiveness = g.cfg.EnhancementAggressiveness
		}
		enhanced := Enhance(img, aggressiveness)
		enhancedBlur := DetectBlur(enhanced)
		if enhancedBlur.Variance > blur.Variance {
			enhancementImproved = true
			img = enhanced
			blur = enhancedBlur
			g.log.Debug("enhancement improved sharpness",
				zap.Float64("before", origVariance),
				zap.Float64("after", blur.Variance))
		}
	}

	floor := g.effectiveBlurFloor(lowTier, blur.Variance, enhancementAttempted, origWidth)
	if blur.Variance < floor {
		return nil, biometric.NewValidationError(biometric.IssueBlur,
			fmt.Sprintf("Image is too blurry (sharpness: %.1f%%, variance: %.1f, required: %.1f). Please hold the camera steady and ensure it is focused.",
				blur.Score*100, blur.Variance, floor))
	}
	if blur.Variance < g.cfg.BlurFloor {
		warnings = append(warnings,
			fmt.Sprintf("Image quality is marginal (variance: %.1f). Accuracy may be reduced.", blur.Variance))
	}

	frame := g.canonicalize(img, origWidth, origHeight)
	metrics := biometric.QualityMetrics{
		Sharpness:    blur.Score,
		BlurVariance: blur.Variance,
		Brightness:   brightness,
		ImageWidth:   origWidth,
		ImageHeight:  origHeight,
		ExtractedAt:  time.Now(),
	}

	return &Result{
		Frame:              frame,
		Metrics:            metrics,
		Warnings:           warnings,
		Enhanced:           enhancementImproved,
		EffectiveBlurFloor: floor,
	}, nil
}

// effectiveBlurFloor picks the blur floor for this frame. Known low-tier
// devices and still-very-blurry frames get the very lenient floor; frames
// that went through enhancement or came from a small image get moderate
// leniency; everything else is held to the strict floor.
func (g *Gate) effectiveBlurFloor(lowTier bool, variance float64, enhancementAttempted bool, origWidth int) float64 {
	switch {
	case lowTier || variance < g.cfg.VeryBlurryVariance:
		return g.cfg.VeryLenientFloor
	case enhancementAttempted:
		return g.cfg.EnhancedBlurFloor
	case origWidth < g.cfg.StrictMinWidth:
		return g.cfg.SmallImageBlurFloor
	default:
		return g.cfg.BlurFloor
	}
}

// canonicalize resizes the frame so its longer side is at most CanonicalSize
// and its width at most MaxWidth, preserving aspect ratio. Frames already
// within bounds are kept as-is; upscaling invents no detail.
func (g *Gate) canonicalize(img *image.RGBA, origWidth, origHeight int) *Frame {
	target := g.cfg.CanonicalSize
	longer := max(origWidth, origHeight)

	scale := 1.0
	if longer > target {
		scale = float64(target) / float64(longer)
	}
	if g.cfg.MaxWidth > 0 && float64(origWidth)*scale > float64(g.cfg.MaxWidth) {
		scale = float64(g.cfg.MaxWidth) / float64(origWidth)
	}

	width, height := origWidth, origHeight
	if scale < 1 {
		width = int(float64(origWidth) * scale)
		height = int(float64(origHeight) * scale)
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
		img = dst
	}

	return &Frame{
		Img:            img,
		Width:          width,
		Height:         height,
		OriginalWidth:  origWidth,
		OriginalHeight: origHeight,
		Scale:          scale,
	}
}
