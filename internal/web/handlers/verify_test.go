package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
)

func verifyBody(t *testing.T, frame []byte, mode string) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"image":             base64.StdEncoding.EncodeToString(frame),
		"deviceFingerprint": "device-1",
		"mode":              mode,
		"geofenceValid":     true,
	})
	if err != nil {
		t.Fatalf("encoding request body: %v", err)
	}
	return bytes.NewBuffer(body)
}

func TestVerify_MatchesEnrolledIdentity(t *testing.T) {
	det := &stubDetector{det: goodDetection()}
	emb := &stubEmbedder{embedding: axisVec(0)}
	env := newTestEnv(t, det, emb)

	if err := env.identities.Create(context.Background(), enrolledIdentity("id-1", "Alice", 0)); err != nil {
		t.Fatalf("seeding identity: %v", err)
	}
	if err := env.pipeline.RebuildIndex(context.Background()); err != nil {
		t.Fatalf("rebuilding index: %v", err)
	}

	handler := NewVerifyHandler(env.pipeline, nil)
	req := httptest.NewRequest("POST", "/api/v1/verify", verifyBody(t, noisyPNG(t, 800, 600), "daily"))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()

	handler.Verify(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var resp struct {
		Matched    bool   `json:"matched"`
		IdentityID string `json:"identity_id"`
		Name       string `json:"name"`
		Confidence string `json:"confidence"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Matched {
		t.Fatalf("expected a match, got %s", recorder.Body.String())
	}
	if resp.IdentityID != "id-1" || resp.Name != "Alice" {
		t.Errorf("expected identity id-1/Alice, got %s/%s", resp.IdentityID, resp.Name)
	}
	if resp.Confidence == "" {
		t.Error("expected a confidence label")
	}
}

func TestVerify_RejectsStranger(t *testing.T) {
	det := &stubDetector{det: goodDetection()}
	emb := &stubEmbedder{embedding: axisVec(5)}
	env := newTestEnv(t, det, emb)

	if err := env.identities.Create(context.Background(), enrolledIdentity("id-1", "Alice", 0)); err != nil {
		t.Fatalf("seeding identity: %v", err)
	}
	if err := env.pipeline.RebuildIndex(context.Background()); err != nil {
		t.Fatalf("rebuilding index: %v", err)
	}

	handler := NewVerifyHandler(env.pipeline, nil)
	req := httptest.NewRequest("POST", "/api/v1/verify", verifyBody(t, noisyPNG(t, 800, 600), "daily"))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()

	handler.Verify(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	var resp struct {
		Matched bool   `json:"matched"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Matched {
		t.Fatal("expected no match")
	}
	if resp.Reason == "" {
		t.Error("expected a rejection reason")
	}
}

func TestVerify_InvalidModeReturns400(t *testing.T) {
	env := newTestEnv(t, &stubDetector{det: goodDetection()}, &stubEmbedder{embedding: axisVec(0)})

	handler := NewVerifyHandler(env.pipeline, nil)
	req := httptest.NewRequest("POST", "/api/v1/verify", verifyBody(t, noisyPNG(t, 800, 600), "weekly"))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()

	handler.Verify(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", recorder.Code)
	}
}

func TestVerify_UndecodableBodyReturns400(t *testing.T) {
	env := newTestEnv(t, &stubDetector{det: goodDetection()}, &stubEmbedder{embedding: axisVec(0)})

	handler := NewVerifyHandler(env.pipeline, nil)
	req := httptest.NewRequest("POST", "/api/v1/verify", bytes.NewBufferString("not json"))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()

	handler.Verify(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", recorder.Code)
	}
}

func TestVerify_GateRejectionReturns422(t *testing.T) {
	env := newTestEnv(t, &stubDetector{det: goodDetection()}, &stubEmbedder{embedding: axisVec(0)})

	handler := NewVerifyHandler(env.pipeline, nil)
	// Frame far below the minimum resolution.
	req := httptest.NewRequest("POST", "/api/v1/verify", verifyBody(t, noisyPNG(t, 200, 150), "daily"))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()

	handler.Verify(recorder, req)

	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["code"] == "" {
		t.Error("expected a machine-readable issue code")
	}
}

func TestVerify_AcceptsMultipartUpload(t *testing.T) {
	det := &stubDetector{det: goodDetection()}
	emb := &stubEmbedder{embedding: axisVec(0)}
	env := newTestEnv(t, det, emb)

	if err := env.identities.Create(context.Background(), enrolledIdentity("id-1", "Alice", 0)); err != nil {
		t.Fatalf("seeding identity: %v", err)
	}
	if err := env.pipeline.RebuildIndex(context.Background()); err != nil {
		t.Fatalf("rebuilding index: %v", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "frame.png")
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	if _, err := part.Write(noisyPNG(t, 800, 600)); err != nil {
		t.Fatalf("writing frame: %v", err)
	}
	writer.WriteField("deviceFingerprint", "device-1")
	writer.WriteField("mode", "daily")
	writer.WriteField("geofenceValid", "true")
	writer.Close()

	handler := NewVerifyHandler(env.pipeline, nil)
	req := httptest.NewRequest("POST", "/api/v1/verify", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	recorder := httptest.NewRecorder()

	handler.Verify(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var resp struct {
		Matched bool `json:"matched"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Matched {
		t.Fatalf("expected a match, got %s", recorder.Body.String())
	}
}

func TestPreview_ReadyOnGoodFrame(t *testing.T) {
	env := newTestEnv(t, &stubDetector{det: goodDetection()}, &stubEmbedder{embedding: axisVec(0)})

	handler := NewVerifyHandler(env.pipeline, nil)
	req := httptest.NewRequest("POST", "/api/v1/preview", verifyBody(t, noisyPNG(t, 800, 600), ""))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()

	handler.Preview(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var resp struct {
		Ready   bool `json:"ready"`
		Quality int  `json:"quality"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Ready {
		t.Errorf("expected ready frame, got %s", recorder.Body.String())
	}
	if resp.Quality < 70 {
		t.Errorf("expected quality >= 70, got %d", resp.Quality)
	}
}

func TestPreview_ReportsGateIssuesAsFeedback(t *testing.T) {
	env := newTestEnv(t, &stubDetector{det: goodDetection()}, &stubEmbedder{embedding: axisVec(0)})

	handler := NewVerifyHandler(env.pipeline, nil)
	// Tiny frame fails the gate; preview converts that to coaching, not an
	// error status.
	req := httptest.NewRequest("POST", "/api/v1/preview", verifyBody(t, noisyPNG(t, 200, 150), ""))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()

	handler.Preview(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	var resp struct {
		Ready    bool     `json:"ready"`
		Issues   []string `json:"issues"`
		Feedback string   `json:"feedback"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Ready {
		t.Error("expected not-ready preview")
	}
	if len(resp.Issues) == 0 {
		t.Error("expected at least one issue code")
	}
	if resp.Feedback == "" {
		t.Error("expected coaching feedback")
	}
}
