package biometric

import "github.com/attendly/facegate/internal/geometry"

// Landmarks are the five facial reference points in normalized coordinates.
type Landmarks struct {
	LeftEye    geometry.NormalizedPoint `json:"left_eye"`
	RightEye   geometry.NormalizedPoint `json:"right_eye"`
	Nose       geometry.NormalizedPoint `json:"nose"`
	LeftMouth  geometry.NormalizedPoint `json:"left_mouth"`
	RightMouth geometry.NormalizedPoint `json:"right_mouth"`
}

// Detection is one candidate face produced by the detector. Box and landmarks
// are normalized to the canonical frame.
type Detection struct {
	Box       geometry.NormalizedBox `json:"box"`
	Score     float64                `json:"score"`
	Landmarks *Landmarks             `json:"landmarks,omitempty"`
	// Liveness is the landmark-geometry liveness score, 0.5 when the model
	// produced no landmarks to judge it from.
	Liveness float64 `json:"liveness"`
	// Face dimensions in canonical pixels, derived from Box.
	FaceWidth  float64 `json:"face_width"`
	FaceHeight float64 `json:"face_height"`
}

// FaceSize returns the smaller face dimension in canonical pixels. Size gates
// compare against this so narrow crops do not pass on height alone.
func (d Detection) FaceSize() float64 {
	return min(d.FaceWidth, d.FaceHeight)
}
