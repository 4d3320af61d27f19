package biometric

// Issue codes surfaced to clients by the preview and verify endpoints.
const (
	IssueImageTooSmall  = "image_too_small"
	IssueLighting       = "lighting"
	IssueBlur           = "blur"
	IssueNoFace         = "no_face"
	IssueMultipleFaces  = "multiple_faces"
	IssueFaceTooSmall   = "face_too_small"
	IssueFaceTooLarge   = "face_too_large"
	IssueQualityTooLow  = "quality_too_low"
	IssueLandmarks      = "landmarks"
	IssueLiveness       = "liveness"
	IssueDecodeFailed   = "decode_failed"
	IssueInvalidRequest = "invalid_request"
)

// ValidationError is an expected business rejection from the quality gate or
// the detector: bad size, lighting, blur, face count, geometry or liveness.
// It carries a stable issue code and a user-actionable message. Infrastructure
// faults are plain errors, never ValidationError.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a validation rejection with the given issue code.
func NewValidationError(code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}
