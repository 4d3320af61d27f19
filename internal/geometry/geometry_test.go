package geometry

import (
	"math"
	"testing"
)

func TestTransformRoundTrip(t *testing.T) {
	// Cover-crop of a 1120x840 canonical frame onto a 640x640 detection input.
	scale := math.Max(640.0/1120.0, 640.0/840.0)
	tr := Transform{
		Scale:   scale,
		OffsetX: (1120*scale - 640) / 2,
		OffsetY: (840*scale - 640) / 2,
	}

	orig := CanonicalBox{X1: 120, Y1: 80, X2: 560, Y2: 640}
	back := tr.BoxToCanonical(tr.BoxToDetection(orig))

	const tol = 1e-9
	if math.Abs(back.X1-orig.X1) > tol || math.Abs(back.Y1-orig.Y1) > tol ||
		math.Abs(back.X2-orig.X2) > tol || math.Abs(back.Y2-orig.Y2) > tol {
		t.Errorf("round trip mismatch: got %+v, want %+v", back, orig)
	}
}

func TestNormalizeRoundTrip(t *testing.T) {
	b := CanonicalBox{X1: 100, Y1: 200, X2: 400, Y2: 500}
	got := b.Normalize(1120, 840).ToCanonical(1120, 840)

	const tol = 1e-9
	if math.Abs(got.X1-b.X1) > tol || math.Abs(got.Y2-b.Y2) > tol {
		t.Errorf("normalize round trip mismatch: got %+v, want %+v", got, b)
	}
}

func TestDetectionBoxClamp(t *testing.T) {
	b := DetectionBox{X1: 700, Y1: -10, X2: 100, Y2: 50}
	c := b.Clamp(640, 640)

	if c.X1 != 100 || c.X2 != 640 {
		t.Errorf("expected x corners ordered and clamped, got %+v", c)
	}
	if c.Y1 != 0 {
		t.Errorf("expected y1 clamped to 0, got %f", c.Y1)
	}
}

func TestIoU(t *testing.T) {
	a := NormalizedBox{X: 0, Y: 0, Width: 0.5, Height: 0.5}

	if got := IoU(a, a); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical boxes should have IoU 1, got %f", got)
	}

	disjoint := NormalizedBox{X: 0.6, Y: 0.6, Width: 0.3, Height: 0.3}
	if got := IoU(a, disjoint); got != 0 {
		t.Errorf("disjoint boxes should have IoU 0, got %f", got)
	}

	// Half overlap: intersection 0.125, union 0.375.
	half := NormalizedBox{X: 0.25, Y: 0, Width: 0.5, Height: 0.5}
	if got := IoU(a, half); math.Abs(got-1.0/3.0) > 1e-9 {
		t.Errorf("expected IoU 1/3, got %f", got)
	}
}

func TestIoUSymmetric(t *testing.T) {
	a := NormalizedBox{X: 0.1, Y: 0.1, Width: 0.4, Height: 0.4}
	b := NormalizedBox{X: 0.3, Y: 0.3, Width: 0.4, Height: 0.4}

	if IoU(a, b) != IoU(b, a) {
		t.Error("IoU should be symmetric")
	}
}
