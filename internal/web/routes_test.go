package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/attendly/facegate/internal/store/mock"
)

func TestRouteMounts(t *testing.T) {
	identities := mock.NewMockIdentityStore()
	devices := mock.NewMockDeviceStore()
	s := NewServer(nil, identities, devices, "127.0.0.1", 0, nil)

	// A mounted route answers something other than 404/405, even with an
	// unusable body.
	mounted := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/verify"},
		{http.MethodPost, "/api/v1/preview"},
		{http.MethodGet, "/api/v1/identities"},
		{http.MethodGet, "/api/v1/health"},
	}
	for _, tt := range mounted {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		if rec.Code == http.StatusNotFound || rec.Code == http.StatusMethodNotAllowed {
			t.Errorf("%s %s not mounted, got %d", tt.method, tt.path, rec.Code)
		}
	}

	// The old nested preview path is gone.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/verify/preview", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for nested preview path, got %d", rec.Code)
	}
}

func TestHealthRouteReportsDegradedPipeline(t *testing.T) {
	s := NewServer(nil, mock.NewMockIdentityStore(), mock.NewMockDeviceStore(), "127.0.0.1", 0, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Status       string `json:"status"`
		ModelsLoaded bool   `json:"models_loaded"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "degraded" || resp.ModelsLoaded {
		t.Errorf("nil pipeline should report degraded, got %+v", resp)
	}
}
