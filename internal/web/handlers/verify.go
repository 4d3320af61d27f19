package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/attendly/facegate/internal/match"
	"github.com/attendly/facegate/internal/pipeline"
)

// VerifyHandler serves the preview and verification endpoints.
type VerifyHandler struct {
	pipeline *pipeline.Pipeline
	log      *zap.Logger
}

// NewVerifyHandler creates a verification handler.
func NewVerifyHandler(p *pipeline.Pipeline, log *zap.Logger) *VerifyHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &VerifyHandler{pipeline: p, log: log}
}

// Preview handles POST /api/v1/preview. Quality-gate and detector
// verdicts come back as feedback in a 200, never as errors.
func (h *VerifyHandler) Preview(w http.ResponseWriter, r *http.Request) {
	frame, req, err := readFrame(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	preview, err := h.pipeline.Preview(r.Context(), frame, req.DeviceFingerprint)
	if err != nil {
		h.log.Error("preview failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "preview failed, try again")
		return
	}
	respondJSON(w, http.StatusOK, preview)
}

// verifyResponse wraps the matcher verdict for the wire.
type verifyResponse struct {
	Matched bool `json:"matched"`

	*match.Result
	Reason   string `json:"reason,omitempty"`
	NearMiss bool   `json:"near_miss,omitempty"`
}

// Verify handles POST /api/v1/verify.
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	frame, req, err := readFrame(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	mode, err := match.ParseMode(req.Mode)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, rejection, err := h.pipeline.Verify(r.Context(), pipeline.VerifyRequest{
		Image:             frame,
		DeviceFingerprint: req.DeviceFingerprint,
		Mode:              mode,
		GeofenceValid:     req.GeofenceValid,
	})
	if err != nil {
		respondValidation(w, err)
		return
	}

	if result != nil {
		respondJSON(w, http.StatusOK, verifyResponse{Matched: true, Result: result})
		return
	}
	respondJSON(w, http.StatusOK, verifyResponse{
		Matched:  false,
		Reason:   rejection.Reason,
		NearMiss: rejection.NearMiss,
	})
}
