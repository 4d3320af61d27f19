package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/attendly/facegate/internal/pipeline"
	"github.com/attendly/facegate/internal/store"
)

// IdentityHandler serves enrollment and identity management.
type IdentityHandler struct {
	pipeline   *pipeline.Pipeline
	identities store.IdentityStore
	log        *zap.Logger
}

// NewIdentityHandler creates an identity handler.
func NewIdentityHandler(p *pipeline.Pipeline, identities store.IdentityStore, log *zap.Logger) *IdentityHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &IdentityHandler{pipeline: p, identities: identities, log: log}
}

type enrollRequest struct {
	Name              string   `json:"name"`
	Images            []string `json:"images"`
	DeviceFingerprint string   `json:"deviceFingerprint"`
}

// identityResponse is the wire form of an enrolled identity. Raw embedding
// vectors never leave the service.
type identityResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Samples     int     `json:"samples"`
	MeanQuality float64 `json:"mean_quality"`
	HasAnchor   bool    `json:"has_anchor"`
}

func toIdentityResponse(identity *store.Identity) identityResponse {
	return identityResponse{
		ID:          identity.ID,
		Name:        identity.Name,
		Samples:     len(identity.Embeddings),
		MeanQuality: identity.MeanQuality,
		HasAnchor:   identity.Anchor != nil,
	}
}

// Enroll handles POST /api/v1/identities. Frames arrive either as a
// multipart form with repeated "image" fields or as JSON base64 images.
func (h *IdentityHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	req, frames, err := readEnrollment(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	identity, err := h.pipeline.Enroll(r.Context(), pipeline.EnrollRequest{
		Name:              req.Name,
		Images:            frames,
		DeviceFingerprint: req.DeviceFingerprint,
	})
	if err != nil {
		respondValidation(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toIdentityResponse(identity))
}

// List handles GET /api/v1/identities.
func (h *IdentityHandler) List(w http.ResponseWriter, r *http.Request) {
	identities, err := h.identities.List(r.Context())
	if err != nil {
		h.log.Error("listing identities failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "listing identities failed")
		return
	}
	out := make([]identityResponse, 0, len(identities))
	for _, identity := range identities {
		out = append(out, toIdentityResponse(identity))
	}
	respondJSON(w, http.StatusOK, out)
}

// Get handles GET /api/v1/identities/{id}.
func (h *IdentityHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identities.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "identity not found")
			return
		}
		h.log.Error("loading identity failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "loading identity failed")
		return
	}
	respondJSON(w, http.StatusOK, toIdentityResponse(identity))
}

// Delete handles DELETE /api/v1/identities/{id}.
func (h *IdentityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.pipeline.DeleteIdentity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "identity not found")
			return
		}
		h.log.Error("deleting identity failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "deleting identity failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Anchor handles POST /api/v1/identities/{id}/anchor: attach a reference
// photo embedding.
func (h *IdentityHandler) Anchor(w http.ResponseWriter, r *http.Request) {
	frame, _, err := readFrame(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.pipeline.AttachAnchor(r.Context(), id, frame); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "identity not found")
			return
		}
		respondValidation(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "anchor_set"})
}

// readEnrollment extracts the name and every frame from an enrollment
// request.
func readEnrollment(r *http.Request) (enrollRequest, [][]byte, error) {
	var req enrollRequest

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxFrameBytes); err != nil {
			return req, nil, err
		}
		req.Name = r.FormValue("name")
		req.DeviceFingerprint = r.FormValue("deviceFingerprint")

		var frames [][]byte
		if r.MultipartForm != nil {
			for _, header := range r.MultipartForm.File["image"] {
				file, err := header.Open()
				if err != nil {
					return req, nil, err
				}
				data, err := io.ReadAll(io.LimitReader(file, maxFrameBytes))
				file.Close()
				if err != nil {
					return req, nil, err
				}
				frames = append(frames, data)
			}
		}
		return req, frames, nil
	}

	if err := json.NewDecoder(io.LimitReader(r.Body, maxFrameBytes)).Decode(&req); err != nil {
		return req, nil, err
	}
	frames := make([][]byte, 0, len(req.Images))
	for _, img := range req.Images {
		data, err := base64.StdEncoding.DecodeString(trimDataURL(img))
		if err != nil {
			return req, nil, err
		}
		frames = append(frames, data)
	}
	return req, frames, nil
}
