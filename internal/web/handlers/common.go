// Package handlers implements the HTTP endpoints of the verification
// service.
package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/attendly/facegate/internal/biometric"
	"github.com/attendly/facegate/internal/pipeline"
)

// maxFrameBytes bounds uploaded frames; a phone camera frame re-encoded as
// JPEG stays well under this.
const maxFrameBytes = 15 << 20

// errInvalidRequestBody is the shared message for undecodable request bodies.
const errInvalidRequestBody = "invalid request body"

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// HealthCheck serves the health endpoint. The HTTP layer answering at all
// is the liveness signal; the body reports whether the models are usable.
func HealthCheck(p *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loaded := p != nil && p.ModelsLoaded()
		status := "ok"
		if !loaded {
			status = "degraded"
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"status":        status,
			"models_loaded": loaded,
		})
	}
}

// respondValidation maps a validation rejection to 422 with its issue code,
// delegating everything else to a 500.
func respondValidation(w http.ResponseWriter, err error) {
	var verr *biometric.ValidationError
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": verr.Message,
			"code":  verr.Code,
		})
		return
	}
	respondError(w, http.StatusInternalServerError, "verification failed, try again")
}

// frameRequest is the JSON body shared by the frame-accepting endpoints.
// Frames may instead arrive as multipart uploads under the "image" field
// with the remaining fields as form values.
type frameRequest struct {
	Image             string `json:"image"`
	DeviceFingerprint string `json:"deviceFingerprint"`
	Mode              string `json:"mode"`
	GeofenceValid     bool   `json:"geofenceValid"`
}

// readFrame extracts the frame bytes and context fields from either a
// multipart upload or a JSON-base64 body.
func readFrame(r *http.Request) ([]byte, frameRequest, error) {
	var req frameRequest

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxFrameBytes); err != nil {
			return nil, req, fmt.Errorf("parsing multipart form: %w", err)
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			return nil, req, fmt.Errorf("missing image field: %w", err)
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxFrameBytes))
		if err != nil {
			return nil, req, fmt.Errorf("reading image: %w", err)
		}
		req.DeviceFingerprint = r.FormValue("deviceFingerprint")
		req.Mode = r.FormValue("mode")
		req.GeofenceValid = r.FormValue("geofenceValid") == "true"
		return data, req, nil
	}

	if err := json.NewDecoder(io.LimitReader(r.Body, maxFrameBytes)).Decode(&req); err != nil {
		return nil, req, fmt.Errorf("decoding request body: %w", err)
	}
	if req.Image == "" {
		return nil, req, errors.New("missing image field")
	}
	data, err := base64.StdEncoding.DecodeString(trimDataURL(req.Image))
	if err != nil {
		return nil, req, fmt.Errorf("decoding base64 image: %w", err)
	}
	return data, req, nil
}

// trimDataURL strips a data URL prefix ("data:image/jpeg;base64,...").
func trimDataURL(s string) string {
	if strings.HasPrefix(s, "data:") {
		if i := strings.IndexByte(s, ','); i >= 0 {
			return s[i+1:]
		}
	}
	return s
}
