package embed

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/attendly/facegate/internal/biometric"
	"github.com/attendly/facegate/internal/geometry"
	"github.com/attendly/facegate/internal/imaging"
	"github.com/attendly/facegate/internal/inference"
)

type fakeRunner struct {
	lastInput *inference.Tensor
	output    []float32
}

func (f *fakeRunner) Run(ctx context.Context, input *inference.Tensor) ([]*inference.Tensor, error) {
	f.lastInput = input
	return []*inference.Tensor{{Data: f.output, Shape: []int64{1, int64(len(f.output))}}}, nil
}

func testFrame() *imaging.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 1120, 840))
	for y := 0; y < 840; y++ {
		for x := 0; x < 1120; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 128, 255})
		}
	}
	return &imaging.Frame{Img: img, Width: 1120, Height: 840, OriginalWidth: 1120, OriginalHeight: 840, Scale: 1}
}

func centerDetection() *biometric.Detection {
	return &biometric.Detection{
		Box:        geometry.NormalizedBox{X: 0.3, Y: 0.25, Width: 0.375, Height: 0.5},
		Score:      0.9,
		FaceWidth:  420,
		FaceHeight: 420,
	}
}

func TestEmbedReturnsUnitVector(t *testing.T) {
	raw := make([]float32, biometric.EmbeddingSize)
	for i := range raw {
		raw[i] = float32(i%7) - 3
	}
	runner := &fakeRunner{output: raw}

	emb, err := New(runner, nil).Embed(context.Background(), testFrame(), centerDetection())
	if err != nil {
		t.Fatal(err)
	}
	if len(emb) != biometric.EmbeddingSize {
		t.Fatalf("expected %d dims, got %d", biometric.EmbeddingSize, len(emb))
	}
	if math.Abs(emb.Norm()-1) > 1e-5 {
		t.Errorf("embedding must be unit length, norm %f", emb.Norm())
	}

	shape := runner.lastInput.Shape
	if shape[0] != 1 || shape[1] != 3 || shape[2] != cropSize || shape[3] != cropSize {
		t.Errorf("unexpected input shape %v", shape)
	}
	for _, v := range runner.lastInput.Data {
		if v < -1.01 || v > 1.01 {
			t.Fatalf("input pixel out of normalized range: %f", v)
		}
	}
}

func TestEmbedRejectsShortOutput(t *testing.T) {
	runner := &fakeRunner{output: make([]float32, 128)}
	if _, err := New(runner, nil).Embed(context.Background(), testFrame(), centerDetection()); err == nil {
		t.Fatal("expected error for truncated model output")
	}
}

func TestEmbedRejectsZeroOutput(t *testing.T) {
	runner := &fakeRunner{output: make([]float32, biometric.EmbeddingSize)}
	if _, err := New(runner, nil).Embed(context.Background(), testFrame(), centerDetection()); err == nil {
		t.Fatal("expected error for a zero embedding")
	}
}

func TestEstimatePoseFrontal(t *testing.T) {
	det := centerDetection()
	det.Landmarks = &biometric.Landmarks{
		LeftEye:    geometry.NormalizedPoint{X: 0.40, Y: 0.40},
		RightEye:   geometry.NormalizedPoint{X: 0.60, Y: 0.40},
		Nose:       geometry.NormalizedPoint{X: 0.50, Y: 0.50},
		LeftMouth:  geometry.NormalizedPoint{X: 0.44, Y: 0.60},
		RightMouth: geometry.NormalizedPoint{X: 0.56, Y: 0.60},
	}

	pose := EstimatePose(det)
	if math.Abs(pose.Yaw) > 1 || math.Abs(pose.Pitch) > 1 || math.Abs(pose.Roll) > 1 {
		t.Errorf("frontal face should have near-zero pose, got %+v", pose)
	}
}

func TestEstimatePoseTurned(t *testing.T) {
	det := centerDetection()
	det.Landmarks = &biometric.Landmarks{
		LeftEye:    geometry.NormalizedPoint{X: 0.40, Y: 0.40},
		RightEye:   geometry.NormalizedPoint{X: 0.60, Y: 0.40},
		Nose:       geometry.NormalizedPoint{X: 0.57, Y: 0.50},
		LeftMouth:  geometry.NormalizedPoint{X: 0.44, Y: 0.60},
		RightMouth: geometry.NormalizedPoint{X: 0.56, Y: 0.60},
	}

	pose := EstimatePose(det)
	if pose.Yaw < 10 {
		t.Errorf("offset nose should read as a turned head, yaw %f", pose.Yaw)
	}
}

func TestEstimatePoseNoLandmarks(t *testing.T) {
	pose := EstimatePose(centerDetection())
	if pose.Yaw != 0 || pose.Pitch != 0 || pose.Roll != 0 {
		t.Errorf("expected zero pose without landmarks, got %+v", pose)
	}
}
