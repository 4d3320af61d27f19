package pipeline

import (
	"context"
	"errors"
	"math"

	"github.com/attendly/facegate/internal/biometric"
	"github.com/attendly/facegate/internal/detect"
	"github.com/attendly/facegate/internal/embed"
	"github.com/attendly/facegate/internal/geometry"
	"github.com/attendly/facegate/internal/imaging"
)

// Framing thresholds for the live preview. The hard gates in the detector
// still decide acceptance; these only drive coaching feedback.
const (
	previewMinFaceArea  = 0.15
	previewMaxFaceArea  = 0.60
	previewMaxOffset    = 0.25
	previewMaxAngle     = 15.0
	previewReadyQuality = 70
)

// Additional issue codes emitted only by the preview framing checks.
const (
	IssueOffCenter  = "off_center"
	IssueFaceTilted = "face_tilted"
	IssueFaceTurned = "face_turned"
)

// Preview is the live-framing verdict for one frame. No embedding is
// generated on this path.
type Preview struct {
	Ready    bool     `json:"ready"`
	Quality  int      `json:"quality"`
	Issues   []string `json:"issues"`
	Feedback string   `json:"feedback"`

	Landmarks *biometric.Landmarks    `json:"landmarks,omitempty"`
	Box       *geometry.NormalizedBox `json:"box,omitempty"`
	FaceSize  float64                 `json:"face_size,omitempty"`
}

// Preview runs the quality gate and the detector on a frame and scores how
// capture-ready it is. Validation rejections become feedback, not errors.
func (p *Pipeline) Preview(ctx context.Context, image []byte, fingerprint string) (*Preview, error) {
	tier := p.deviceTier(ctx, fingerprint)

	res, err := p.gate.Process(image, tier)
	if err != nil {
		return previewRejection(err)
	}

	det, err := p.detector.Detect(ctx, res.Frame, detect.Options{})
	if err != nil {
		return previewRejection(err)
	}

	quality, issues := previewQuality(det, res.Frame)
	return &Preview{
		Ready:     quality >= previewReadyQuality && len(issues) == 0,
		Quality:   quality,
		Issues:    issues,
		Feedback:  previewFeedback(quality, issues),
		Landmarks: det.Landmarks,
		Box:       &det.Box,
		FaceSize:  det.FaceSize(),
	}, nil
}

// previewRejection converts a validation error into a not-ready preview,
// passing infrastructure faults through.
func previewRejection(err error) (*Preview, error) {
	var verr *biometric.ValidationError
	if !errors.As(err, &verr) {
		return nil, err
	}
	return &Preview{
		Issues:   []string{verr.Code},
		Feedback: verr.Message,
	}, nil
}

// previewQuality scores framing 0 to 100: face size and centering carry the
// most weight, then detection confidence and head pose.
func previewQuality(det *biometric.Detection, frame *imaging.Frame) (int, []string) {
	frameArea := float64(frame.Width) * float64(frame.Height)
	faceArea := det.FaceWidth * det.FaceHeight / frameArea

	centerX := det.Box.X + det.Box.Width/2
	centerY := det.Box.Y + det.Box.Height/2
	offsetX := math.Abs(centerX - 0.5)
	offsetY := math.Abs(centerY - 0.5)

	pose := embed.EstimatePose(det)

	var issues []string
	if faceArea < previewMinFaceArea {
		issues = append(issues, biometric.IssueFaceTooSmall)
	} else if faceArea > previewMaxFaceArea {
		issues = append(issues, biometric.IssueFaceTooLarge)
	}
	if offsetX > previewMaxOffset || offsetY > previewMaxOffset {
		issues = append(issues, IssueOffCenter)
	}
	if math.Abs(pose.Roll) > previewMaxAngle {
		issues = append(issues, IssueFaceTilted)
	}
	if math.Abs(pose.Yaw) > previewMaxAngle {
		issues = append(issues, IssueFaceTurned)
	}

	score := 100.0
	if faceArea < previewMinFaceArea {
		score -= (previewMinFaceArea - faceArea) * 300
	}
	if faceArea > previewMaxFaceArea {
		score -= (faceArea - previewMaxFaceArea) * 200
	}
	score -= offsetX * 150
	score -= offsetY * 150
	score -= (1 - det.Score) * 30
	score -= math.Abs(pose.Roll) * 2
	score -= math.Abs(pose.Yaw) * 2
	score -= math.Abs(pose.Pitch) * 2

	return int(math.Max(0, math.Min(100, score))), issues
}

func previewFeedback(quality int, issues []string) string {
	for _, issue := range issues {
		switch issue {
		case biometric.IssueFaceTooSmall:
			return "move closer to the camera"
		case biometric.IssueFaceTooLarge:
			return "move back from the camera"
		case IssueOffCenter:
			return "center your face in the frame"
		case IssueFaceTilted:
			return "keep your head straight"
		case IssueFaceTurned:
			return "face the camera directly"
		}
	}
	switch {
	case quality < 50:
		return "adjust lighting and hold the camera steady"
	case quality < previewReadyQuality:
		return "almost there, hold still"
	default:
		return "looking good, hold still"
	}
}
