package biometric

import "time"

// Pose holds coarse head-pose angles in degrees, estimated from landmark geometry.
type Pose struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// QualityMetrics is the quality snapshot of one frame and its winning
// detection. It is persisted alongside each enrolled embedding and feeds the
// device quality tracker.
type QualityMetrics struct {
	// Score is the overall quality score, the detection confidence in [0,1].
	Score float64 `json:"score"`
	// Sharpness is min(1, blurVariance/500).
	Sharpness    float64 `json:"sharpness"`
	BlurVariance float64 `json:"blur_variance"`
	Brightness   float64 `json:"brightness"`
	// DetectionScore duplicates Score for stored records that predate it.
	DetectionScore float64 `json:"detection_score"`
	// Face dimensions in canonical pixels.
	FaceWidth  float64 `json:"face_width"`
	FaceHeight float64 `json:"face_height"`
	// Source frame dimensions in original pixels.
	ImageWidth  int  `json:"image_width"`
	ImageHeight int  `json:"image_height"`
	Pose        Pose `json:"pose"`

	ExtractedAt time.Time `json:"extracted_at,omitzero"`
}

// FaceArea returns the face size in square canonical pixels.
func (q QualityMetrics) FaceArea() float64 {
	return q.FaceWidth * q.FaceHeight
}
