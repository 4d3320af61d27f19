package inference

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Model filenames tried in order. The first file that exists and loads
// wins; later entries are smaller fallback variants.
var (
	detectorCandidates = []string{
		"scrfd_10g_gnkps_fp32.onnx",
		"scrfd_500m_bnkps.onnx",
	}
	embedderCandidates = []string{
		"w600k_r50.onnx",
		"glint360k_r50.onnx",
	}
)

// Loader resolves and memoizes model sessions. Each model is loaded at
// most once; concurrent callers share the same session wrapped in a
// FIFO serializer so only one inference runs at a time per model.
type Loader struct {
	modelDir    string
	libraryPath string
	log         *zap.Logger

	mu       sync.Mutex
	detector *SerializedSession
	embedder *SerializedSession
}

func NewLoader(modelDir, libraryPath string, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{
		modelDir:    modelDir,
		libraryPath: libraryPath,
		log:         log,
	}
}

// Detector returns the shared face detection session, loading it on
// first use.
func (l *Loader) Detector() (*SerializedSession, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.detector != nil {
		return l.detector, nil
	}
	sess, err := l.load("detector", detectorCandidates)
	if err != nil {
		return nil, err
	}
	l.detector = sess
	return sess, nil
}

// Embedder returns the shared embedding session, loading it on first
// use.
func (l *Loader) Embedder() (*SerializedSession, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.embedder != nil {
		return l.embedder, nil
	}
	sess, err := l.load("embedder", embedderCandidates)
	if err != nil {
		return nil, err
	}
	l.embedder = sess
	return sess, nil
}

func (l *Loader) load(kind string, candidates []string) (*SerializedSession, error) {
	var lastErr error
	for _, name := range candidates {
		path := filepath.Join(l.modelDir, name)
		if _, err := os.Stat(path); err != nil {
			lastErr = err
			continue
		}
		sess, err := NewONNXSession(path, l.libraryPath)
		if err != nil {
			l.log.Warn("model failed to load, trying fallback",
				zap.String("model", name),
				zap.Error(err))
			lastErr = err
			continue
		}
		l.log.Info("model loaded",
			zap.String("kind", kind),
			zap.String("model", name))
		return NewSerializedSession(sess), nil
	}
	return nil, fmt.Errorf("no usable %s model in %s: %w", kind, l.modelDir, lastErr)
}

// Close releases any loaded sessions.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	if l.detector != nil {
		if err := l.detector.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		l.detector = nil
	}
	if l.embedder != nil {
		if err := l.embedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		l.embedder = nil
	}
	return firstErr
}
