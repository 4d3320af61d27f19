// Package embed turns a validated face detection into a normalized
// identity vector.
package embed

import (
	"context"
	"fmt"
	"image"
	"math"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/attendly/facegate/internal/biometric"
	"github.com/attendly/facegate/internal/imaging"
	"github.com/attendly/facegate/internal/inference"
)

// Runner executes a loaded embedding model.
type Runner interface {
	Run(ctx context.Context, input *inference.Tensor) ([]*inference.Tensor, error)
}

const (
	cropSize = 112
	// Margin added around the detection box before cropping, as a
	// fraction of the box dimension per side.
	cropMargin = 0.10
)

// Embedder crops, normalizes and embeds a detected face.
type Embedder struct {
	runner Runner
	log    *zap.Logger
}

func New(runner Runner, log *zap.Logger) *Embedder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Embedder{runner: runner, log: log}
}

// Embed produces a unit-length embedding for the detected face.
func (e *Embedder) Embed(ctx context.Context, frame *imaging.Frame, det *biometric.Detection) (biometric.Embedding, error) {
	input := e.preprocess(frame, det)

	outputs, err := e.runner.Run(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("embedding inference: %w", err)
	}
	if len(outputs) == 0 || len(outputs[0].Data) < biometric.EmbeddingSize {
		return nil, fmt.Errorf("embedding output too small: %d values", outputLen(outputs))
	}

	raw := make(biometric.Embedding, biometric.EmbeddingSize)
	for i := range raw {
		raw[i] = outputs[0].Data[i]
	}
	normalized, err := raw.Normalized()
	if err != nil {
		return nil, fmt.Errorf("normalizing embedding: %w", err)
	}
	return normalized, nil
}

func outputLen(outputs []*inference.Tensor) int {
	if len(outputs) == 0 {
		return 0
	}
	return len(outputs[0].Data)
}

// preprocess crops the face with margin, resizes it to the model input
// and packs it into normalized CHW planes.
func (e *Embedder) preprocess(frame *imaging.Frame, det *biometric.Detection) *inference.Tensor {
	fw := float64(frame.Width)
	fh := float64(frame.Height)
	box := det.Box.ToCanonical(fw, fh)

	marginX := (box.X2 - box.X1) * cropMargin
	marginY := (box.Y2 - box.Y1) * cropMargin
	x1 := int(math.Max(0, box.X1-marginX))
	y1 := int(math.Max(0, box.Y1-marginY))
	x2 := int(math.Min(fw, box.X2+marginX))
	y2 := int(math.Min(fh, box.Y2+marginY))

	dst := image.NewRGBA(image.Rect(0, 0, cropSize, cropSize))
	draw.BiLinear.Scale(dst, dst.Bounds(), frame.Img, image.Rect(x1, y1, x2, y2), draw.Src, nil)

	data := make([]float32, 3*cropSize*cropSize)
	plane := cropSize * cropSize
	for y := 0; y < cropSize; y++ {
		for x := 0; x < cropSize; x++ {
			o := dst.PixOffset(x, y)
			i := y*cropSize + x
			data[i] = (float32(dst.Pix[o]) - 127.5) / 128
			data[plane+i] = (float32(dst.Pix[o+1]) - 127.5) / 128
			data[2*plane+i] = (float32(dst.Pix[o+2]) - 127.5) / 128
		}
	}

	return &inference.Tensor{
		Data:  data,
		Shape: []int64{1, 3, cropSize, cropSize},
	}
}

// EstimatePose derives rough head angles from the five landmark
// points. Angles are in degrees; zero means a frontal, level face.
func EstimatePose(det *biometric.Detection) biometric.Pose {
	if det.Landmarks == nil {
		return biometric.Pose{}
	}
	lm := det.Landmarks

	roll := math.Atan2(lm.RightEye.Y-lm.LeftEye.Y, lm.RightEye.X-lm.LeftEye.X) * 180 / math.Pi

	eyeMidX := (lm.LeftEye.X + lm.RightEye.X) / 2
	eyeDist := lm.LeftEye.Dist(lm.RightEye)
	yaw := 0.0
	if eyeDist > 0 {
		yaw = (lm.Nose.X - eyeMidX) / (eyeDist / 2) * 45
	}

	// Nose height between the eye line and the mouth line sits near
	// the middle for a level head.
	eyeMidY := (lm.LeftEye.Y + lm.RightEye.Y) / 2
	mouthMidY := (lm.LeftMouth.Y + lm.RightMouth.Y) / 2
	pitch := 0.0
	if span := mouthMidY - eyeMidY; span > 0 {
		pitch = ((lm.Nose.Y-eyeMidY)/span - 0.5) * 90
	}

	return biometric.Pose{Yaw: yaw, Pitch: pitch, Roll: roll}
}
