// Package detect finds exactly one face in a canonical frame and gates
// it on size, geometry and liveness before it reaches the embedder.
package detect

import (
	"context"
	"fmt"
	"image"
	"math"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/attendly/facegate/internal/biometric"
	"github.com/attendly/facegate/internal/geometry"
	"github.com/attendly/facegate/internal/imaging"
	"github.com/attendly/facegate/internal/inference"
)

// Runner executes a loaded detection model.
type Runner interface {
	Run(ctx context.Context, input *inference.Tensor) ([]*inference.Tensor, error)
}

// Config holds the detector gates and suppression tuning.
type Config struct {
	// Minimum calibrated score for a candidate to survive decoding.
	ScoreThreshold float64
	// Relaxed score used when capturing anchor photos.
	AnchorScoreThreshold float64
	// Overlap above which suppression removes the weaker candidate.
	NMSThreshold float64

	// Duplicate heuristics applied to suppression survivors.
	DuplicateIoU         float64
	DuplicateSizeRatio   float64
	DuplicateCenterRatio float64

	// Face size gates in canonical pixels, on the smaller dimension.
	MinFaceSize       float64
	StrictMinFaceSize float64
	MaxFaceSize       float64

	// Landmark geometry gates.
	MinEyeRatio float64
	MaxEyeRatio float64
	MinSymmetry float64
	MinLiveness float64
}

func DefaultConfig() Config {
	return Config{
		ScoreThreshold:       0.50,
		AnchorScoreThreshold: 0.30,
		NMSThreshold:         0.20,
		DuplicateIoU:         0.05,
		DuplicateSizeRatio:   0.70,
		DuplicateCenterRatio: 1.20,
		MinFaceSize:          85,
		StrictMinFaceSize:    115,
		MaxFaceSize:          2000,
		MinEyeRatio:          0.20,
		MaxEyeRatio:          0.75,
		MinSymmetry:          0.23,
		MinLiveness:          0.50,
	}
}

// Options select per-call gate strictness.
type Options struct {
	// Strict raises the minimum face size to enrollment grade.
	Strict bool
	// Anchor lowers the score threshold for anchor photo capture.
	Anchor bool
}

// Detector runs the face detection model and resolves its output to a
// single validated face.
type Detector struct {
	runner Runner
	cfg    Config
	log    *zap.Logger
}

func New(runner Runner, cfg Config, log *zap.Logger) *Detector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Detector{runner: runner, cfg: cfg, log: log}
}

// Detect finds the single face in the frame. It returns a
// ValidationError when the frame has no acceptable face and a plain
// error for infrastructure faults.
func (d *Detector) Detect(ctx context.Context, frame *imaging.Frame, opts Options) (*biometric.Detection, error) {
	input, tf := preprocess(frame)

	outputs, err := d.runner.Run(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("detection inference: %w", err)
	}

	minScore := d.cfg.ScoreThreshold
	if opts.Anchor {
		minScore = d.cfg.AnchorScoreThreshold
	}

	faces, err := decodeOutputs(outputs, minScore)
	if err != nil {
		return nil, fmt.Errorf("decoding detector output: %w", err)
	}
	if len(faces) == 0 {
		return nil, biometric.NewValidationError(biometric.IssueNoFace,
			"no face found, look straight at the camera")
	}

	faces = nonMaxSuppression(faces, d.cfg.NMSThreshold)
	best := faces[0]
	if len(faces) > 1 {
		resolved, ok := resolveCluster(faces, d.cfg)
		if !ok {
			d.log.Debug("multiple distinct faces after suppression",
				zap.Int("count", len(faces)))
			return nil, biometric.NewValidationError(biometric.IssueMultipleFaces,
				"multiple people in frame, only one person may clock in")
		}
		best = resolved
	}

	return d.validate(frame, tf, best, opts)
}

func (d *Detector) validate(frame *imaging.Frame, tf geometry.Transform, face rawFace, opts Options) (*biometric.Detection, error) {
	fw := float64(frame.Width)
	fh := float64(frame.Height)

	box := tf.BoxToCanonical(face.box)
	box = clampCanonical(box, fw, fh)

	width := box.X2 - box.X1
	height := box.Y2 - box.Y1
	size := math.Min(width, height)

	minSize := d.cfg.MinFaceSize
	if opts.Strict {
		minSize = d.cfg.StrictMinFaceSize
	}
	if size < minSize {
		return nil, biometric.NewValidationError(biometric.IssueFaceTooSmall,
			"face too small, move closer to the camera")
	}
	if size > d.cfg.MaxFaceSize {
		return nil, biometric.NewValidationError(biometric.IssueFaceTooLarge,
			"face too close, move back from the camera")
	}

	det := &biometric.Detection{
		Box:        box.Normalize(fw, fh),
		Score:      face.score,
		FaceWidth:  width,
		FaceHeight: height,
		Liveness:   0.5,
	}

	if face.landmarks != nil {
		var lm [5]geometry.CanonicalPoint
		for i, p := range face.landmarks {
			lm[i] = tf.ToCanonical(p)
		}
		scores := scoreLandmarks(lm, width)

		if scores.eyeRatio < d.cfg.MinEyeRatio || scores.eyeRatio > d.cfg.MaxEyeRatio {
			return nil, biometric.NewValidationError(biometric.IssueLandmarks,
				"face geometry looks wrong, remove obstructions and face the camera")
		}
		if scores.symmetry < d.cfg.MinSymmetry {
			return nil, biometric.NewValidationError(biometric.IssueLandmarks,
				"face must be turned toward the camera")
		}
		if scores.liveness < d.cfg.MinLiveness {
			return nil, biometric.NewValidationError(biometric.IssueLiveness,
				"face check failed, try again in better light")
		}

		det.Liveness = scores.liveness
		det.Landmarks = &biometric.Landmarks{
			LeftEye:    lm[0].Normalize(fw, fh),
			RightEye:   lm[1].Normalize(fw, fh),
			Nose:       lm[2].Normalize(fw, fh),
			LeftMouth:  lm[3].Normalize(fw, fh),
			RightMouth: lm[4].Normalize(fw, fh),
		}
	}
	return det, nil
}

// preprocess scales and center-crops the canonical frame to cover the
// model input, then normalizes pixels into CHW planes.
func preprocess(frame *imaging.Frame) (*inference.Tensor, geometry.Transform) {
	w := float64(frame.Width)
	h := float64(frame.Height)
	scale := math.Max(inputSize/w, inputSize/h)

	srcW := inputSize / scale
	srcH := inputSize / scale
	srcX := (w - srcW) / 2
	srcY := (h - srcH) / 2

	tf := geometry.Transform{
		Scale:   scale,
		OffsetX: srcX * scale,
		OffsetY: srcY * scale,
	}

	dst := image.NewRGBA(image.Rect(0, 0, inputSize, inputSize))
	srcRect := image.Rect(
		int(math.Round(srcX)), int(math.Round(srcY)),
		int(math.Round(srcX+srcW)), int(math.Round(srcY+srcH)),
	)
	draw.BiLinear.Scale(dst, dst.Bounds(), frame.Img, srcRect, draw.Src, nil)

	// RGB planes normalized to roughly [-1,1].
	data := make([]float32, 3*inputSize*inputSize)
	plane := inputSize * inputSize
	for y := 0; y < inputSize; y++ {
		for x := 0; x < inputSize; x++ {
			o := dst.PixOffset(x, y)
			i := y*inputSize + x
			data[i] = (float32(dst.Pix[o]) - 127.5) / 128
			data[plane+i] = (float32(dst.Pix[o+1]) - 127.5) / 128
			data[2*plane+i] = (float32(dst.Pix[o+2]) - 127.5) / 128
		}
	}

	return &inference.Tensor{
		Data:  data,
		Shape: []int64{1, 3, inputSize, inputSize},
	}, tf
}

func clampCanonical(b geometry.CanonicalBox, width, height float64) geometry.CanonicalBox {
	return geometry.CanonicalBox{
		X1: math.Max(0, math.Min(b.X1, width)),
		Y1: math.Max(0, math.Min(b.Y1, height)),
		X2: math.Max(0, math.Min(b.X2, width)),
		Y2: math.Max(0, math.Min(b.Y2, height)),
	}
}
