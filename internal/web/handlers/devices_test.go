package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/attendly/facegate/internal/device"
)

func TestDevices_GetReturnsProfileWithTier(t *testing.T) {
	env := newTestEnv(t, &stubDetector{det: goodDetection()}, &stubEmbedder{embedding: axisVec(0)})

	now := time.Now()
	profile := device.NewProfile("kiosk-1", now)
	for i := 0; i < 6; i++ {
		profile.Record(device.Sample{
			BlurVariance: 150,
			ImageWidth:   1280,
			ImageHeight:  720,
			Brightness:   0.5,
			QualityScore: 0.9,
			Timestamp:    now,
		})
	}
	if err := env.devices.Save(context.Background(), profile); err != nil {
		t.Fatalf("seeding profile: %v", err)
	}

	handler := NewDeviceHandler(env.devices, nil)
	recorder := httptest.NewRecorder()
	req := requestWithChiParams(httptest.NewRequest("GET", "/api/v1/devices/kiosk-1", nil), map[string]string{"fingerprint": "kiosk-1"})
	handler.Get(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var resp struct {
		Fingerprint   string      `json:"fingerprint"`
		Tier          device.Tier `json:"tier"`
		TotalClockIns int         `json:"total_clock_ins"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Fingerprint != "kiosk-1" {
		t.Errorf("expected fingerprint kiosk-1, got %q", resp.Fingerprint)
	}
	if resp.Tier != device.TierHigh {
		t.Errorf("expected high tier, got %q", resp.Tier)
	}
	if resp.TotalClockIns != 6 {
		t.Errorf("expected 6 clock-ins, got %d", resp.TotalClockIns)
	}
}

func TestDevices_GetUnknownReturns404(t *testing.T) {
	env := newTestEnv(t, &stubDetector{det: goodDetection()}, &stubEmbedder{embedding: axisVec(0)})

	handler := NewDeviceHandler(env.devices, nil)
	recorder := httptest.NewRecorder()
	req := requestWithChiParams(httptest.NewRequest("GET", "/api/v1/devices/ghost", nil), map[string]string{"fingerprint": "ghost"})
	handler.Get(recorder, req)

	if recorder.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", recorder.Code)
	}
}
