package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/attendly/facegate/internal/biometric"
)

func TestHealthCheck_ReportsModelState(t *testing.T) {
	env := newTestEnv(t, &stubDetector{det: goodDetection()}, &stubEmbedder{embedding: axisVec(0)})
	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	recorder := httptest.NewRecorder()

	HealthCheck(env.pipeline)(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", recorder.Code)
	}
	var resp struct {
		Status       string `json:"status"`
		ModelsLoaded bool   `json:"models_loaded"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "ok" || !resp.ModelsLoaded {
		t.Errorf("expected ok with models loaded, got %+v", resp)
	}
}

func TestHealthCheck_DegradedWithoutModels(t *testing.T) {
	recorder := httptest.NewRecorder()

	HealthCheck(nil)(recorder, httptest.NewRequest("GET", "/api/v1/health", nil))

	if recorder.Code != http.StatusOK {
		t.Errorf("health must answer even when degraded, got %d", recorder.Code)
	}
	var resp struct {
		Status       string `json:"status"`
		ModelsLoaded bool   `json:"models_loaded"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "degraded" || resp.ModelsLoaded {
		t.Errorf("expected degraded without models, got %+v", resp)
	}
}

func TestRespondJSON_SetsContentType(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusOK, map[string]string{"status": "ok"})

	if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got %q", ct)
	}
}

func TestRespondValidation_MapsValidationErrorTo422(t *testing.T) {
	recorder := httptest.NewRecorder()
	err := biometric.NewValidationError(biometric.IssueBlur, "image too blurry, hold still")

	respondValidation(recorder, err)

	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", recorder.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["code"] != biometric.IssueBlur {
		t.Errorf("expected code %q, got %q", biometric.IssueBlur, resp["code"])
	}
}

func TestRespondValidation_MapsWrappedValidationError(t *testing.T) {
	recorder := httptest.NewRecorder()
	inner := biometric.NewValidationError(biometric.IssueNoFace, "no face found")

	respondValidation(recorder, errors.Join(errors.New("frame 1"), inner))

	if recorder.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422, got %d", recorder.Code)
	}
}

func TestRespondValidation_MapsInfrastructureErrorTo500(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondValidation(recorder, errors.New("connection refused"))

	if recorder.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", recorder.Code)
	}
}

func TestTrimDataURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain base64", "aGVsbG8=", "aGVsbG8="},
		{"jpeg data URL", "data:image/jpeg;base64,aGVsbG8=", "aGVsbG8="},
		{"png data URL", "data:image/png;base64,aGVsbG8=", "aGVsbG8="},
		{"data prefix without comma", "data:image/jpeg", "data:image/jpeg"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := trimDataURL(tc.input); got != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}
