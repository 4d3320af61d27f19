// Package geometry defines the coordinate spaces the pipeline moves boxes and
// landmarks through: original image pixels, canonical working-frame pixels,
// detection-input pixels and normalized [0,1] coordinates. Each space gets its
// own type so accidental cross-space arithmetic does not compile; conversions
// always go through a recorded Transform.
package geometry

import "math"

// CanonicalPoint is a point in canonical-frame pixel coordinates.
type CanonicalPoint struct {
	X, Y float64
}

// DetectionPoint is a point in detection-input pixel coordinates.
type DetectionPoint struct {
	X, Y float64
}

// NormalizedPoint is a point in [0,1] coordinates relative to the canonical frame.
type NormalizedPoint struct {
	X, Y float64
}

// CanonicalBox is an axis-aligned box in canonical-frame pixels, corners ordered.
type CanonicalBox struct {
	X1, Y1, X2, Y2 float64
}

// DetectionBox is an axis-aligned box in detection-input pixels.
type DetectionBox struct {
	X1, Y1, X2, Y2 float64
}

// NormalizedBox is a top-left + size box in [0,1] coordinates.
type NormalizedBox struct {
	X, Y, Width, Height float64
}

// Transform records the scale and crop offset applied when mapping the
// canonical frame onto the detection input. detection = canonical*Scale - Offset.
type Transform struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

// ToDetection maps a canonical point into detection space.
func (t Transform) ToDetection(p CanonicalPoint) DetectionPoint {
	return DetectionPoint{
		X: p.X*t.Scale - t.OffsetX,
		Y: p.Y*t.Scale - t.OffsetY,
	}
}

// ToCanonical maps a detection point back into canonical space.
func (t Transform) ToCanonical(p DetectionPoint) CanonicalPoint {
	return CanonicalPoint{
		X: (p.X + t.OffsetX) / t.Scale,
		Y: (p.Y + t.OffsetY) / t.Scale,
	}
}

// BoxToCanonical maps a detection box back into canonical space.
func (t Transform) BoxToCanonical(b DetectionBox) CanonicalBox {
	p1 := t.ToCanonical(DetectionPoint{X: b.X1, Y: b.Y1})
	p2 := t.ToCanonical(DetectionPoint{X: b.X2, Y: b.Y2})
	return CanonicalBox{X1: p1.X, Y1: p1.Y, X2: p2.X, Y2: p2.Y}
}

// BoxToDetection maps a canonical box into detection space.
func (t Transform) BoxToDetection(b CanonicalBox) DetectionBox {
	p1 := t.ToDetection(CanonicalPoint{X: b.X1, Y: b.Y1})
	p2 := t.ToDetection(CanonicalPoint{X: b.X2, Y: b.Y2})
	return DetectionBox{X1: p1.X, Y1: p1.Y, X2: p2.X, Y2: p2.Y}
}

// Normalize converts a canonical box to [0,1] coordinates.
func (b CanonicalBox) Normalize(width, height float64) NormalizedBox {
	return NormalizedBox{
		X:      b.X1 / width,
		Y:      b.Y1 / height,
		Width:  (b.X2 - b.X1) / width,
		Height: (b.Y2 - b.Y1) / height,
	}
}

// Normalize converts a canonical point to [0,1] coordinates.
func (p CanonicalPoint) Normalize(width, height float64) NormalizedPoint {
	return NormalizedPoint{X: p.X / width, Y: p.Y / height}
}

// ToCanonical converts a normalized box back to canonical pixels.
func (b NormalizedBox) ToCanonical(width, height float64) CanonicalBox {
	return CanonicalBox{
		X1: b.X * width,
		Y1: b.Y * height,
		X2: (b.X + b.Width) * width,
		Y2: (b.Y + b.Height) * height,
	}
}

// Clamp restricts the box to [0, width] x [0, height] and orders its corners.
func (b DetectionBox) Clamp(width, height float64) DetectionBox {
	x1 := math.Min(b.X1, b.X2)
	x2 := math.Max(b.X1, b.X2)
	y1 := math.Min(b.Y1, b.Y2)
	y2 := math.Max(b.Y1, b.Y2)
	return DetectionBox{
		X1: math.Max(0, math.Min(x1, width)),
		Y1: math.Max(0, math.Min(y1, height)),
		X2: math.Max(0, math.Min(x2, width)),
		Y2: math.Max(0, math.Min(y2, height)),
	}
}

// Center returns the box center.
func (b NormalizedBox) Center() NormalizedPoint {
	return NormalizedPoint{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Area returns the box area.
func (b NormalizedBox) Area() float64 {
	return b.Width * b.Height
}

// Diagonal returns the box diagonal length.
func (b NormalizedBox) Diagonal() float64 {
	return math.Hypot(b.Width, b.Height)
}

// Dist returns the Euclidean distance between two normalized points.
func (p NormalizedPoint) Dist(q NormalizedPoint) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}
