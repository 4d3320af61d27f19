package handlers

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/attendly/facegate/internal/biometric"
	"github.com/attendly/facegate/internal/detect"
	"github.com/attendly/facegate/internal/gallery"
	"github.com/attendly/facegate/internal/geometry"
	"github.com/attendly/facegate/internal/imaging"
	"github.com/attendly/facegate/internal/match"
	"github.com/attendly/facegate/internal/pipeline"
	"github.com/attendly/facegate/internal/store"
	"github.com/attendly/facegate/internal/store/mock"
)

// noisyPNG encodes a deterministic high-frequency frame that clears the
// quality gate at any tier.
func noisyPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	seed := uint32(98765)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			seed = seed*1664525 + 1013904223
			v := uint8(seed >> 24)
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test frame: %v", err)
	}
	return buf.Bytes()
}

type stubDetector struct {
	det *biometric.Detection
	err error
}

func (s *stubDetector) Detect(ctx context.Context, frame *imaging.Frame, opts detect.Options) (*biometric.Detection, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.det, nil
}

type stubEmbedder struct {
	embedding biometric.Embedding
}

func (s *stubEmbedder) Embed(ctx context.Context, frame *imaging.Frame, det *biometric.Detection) (biometric.Embedding, error) {
	return s.embedding, nil
}

func axisVec(axis int) biometric.Embedding {
	e := make(biometric.Embedding, biometric.EmbeddingSize)
	e[axis] = 1
	return e
}

// goodDetection is a centered, well-sized face on an 800x600 frame.
func goodDetection() *biometric.Detection {
	return &biometric.Detection{
		Box:        geometry.NormalizedBox{X: 0.2625, Y: 0.1875, Width: 0.475, Height: 0.625},
		Score:      0.95,
		FaceWidth:  380,
		FaceHeight: 375,
		Liveness:   0.9,
	}
}

func enrolledIdentity(id, name string, axis int) *store.Identity {
	vec := axisVec(axis)
	return &store.Identity{
		ID:          id,
		Name:        name,
		Centroid:    vec,
		MeanQuality: 0.8,
		Embeddings:  []store.EnrolledEmbedding{{Embedding: vec}},
	}
}

type testEnv struct {
	pipeline   *pipeline.Pipeline
	identities *mock.MockIdentityStore
	devices    *mock.MockDeviceStore
	history    *mock.MockHistoryStore
}

func newTestEnv(t *testing.T, det *stubDetector, emb *stubEmbedder) *testEnv {
	t.Helper()
	identities := mock.NewMockIdentityStore()
	devices := mock.NewMockDeviceStore()
	history := mock.NewMockHistoryStore()

	p := pipeline.New(pipeline.Deps{
		Gate:       imaging.NewGate(imaging.DefaultConfig(), zap.NewNop()),
		Detector:   det,
		Embedder:   emb,
		Matcher:    match.New(history, zap.NewNop()),
		Identities: identities,
		Devices:    devices,
		History:    history,
		Index:      gallery.NewIndex(),
		Log:        zap.NewNop(),
	})
	return &testEnv{pipeline: p, identities: identities, devices: devices, history: history}
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
