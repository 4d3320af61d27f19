// Package pipeline wires the stages of a verification together: quality
// gate, detector, embedder and matcher, plus the stores and the audit
// dispatcher around them. Handlers and CLI commands talk to this package,
// never to the stages directly.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/attendly/facegate/internal/audit"
	"github.com/attendly/facegate/internal/biometric"
	"github.com/attendly/facegate/internal/detect"
	"github.com/attendly/facegate/internal/device"
	"github.com/attendly/facegate/internal/gallery"
	"github.com/attendly/facegate/internal/imaging"
	"github.com/attendly/facegate/internal/match"
	"github.com/attendly/facegate/internal/store"
)

// FaceDetector finds the single best face in a canonical frame.
type FaceDetector interface {
	Detect(ctx context.Context, frame *imaging.Frame, opts detect.Options) (*biometric.Detection, error)
}

// FaceEmbedder turns a detected face into an identity embedding.
type FaceEmbedder interface {
	Embed(ctx context.Context, frame *imaging.Frame, det *biometric.Detection) (biometric.Embedding, error)
}

// Deps are the collaborators a Pipeline is assembled from.
type Deps struct {
	Gate       *imaging.Gate
	Detector   FaceDetector
	Embedder   FaceEmbedder
	Matcher    *match.Matcher
	Identities store.IdentityStore
	Devices    store.DeviceStore
	History    store.HistoryStore
	Audits     audit.Dispatcher
	Index      *gallery.Index
	Log        *zap.Logger
}

// Pipeline orchestrates preview, verification and enrollment.
type Pipeline struct {
	gate       *imaging.Gate
	detector   FaceDetector
	embedder   FaceEmbedder
	matcher    *match.Matcher
	identities store.IdentityStore
	devices    store.DeviceStore
	history    store.HistoryStore
	audits     audit.Dispatcher
	index      *gallery.Index
	log        *zap.Logger
}

// New assembles a pipeline. Index and Audits may be nil; a nil index falls
// back to full gallery scans and a nil dispatcher drops audit events.
func New(deps Deps) *Pipeline {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		gate:       deps.Gate,
		detector:   deps.Detector,
		embedder:   deps.Embedder,
		matcher:    deps.Matcher,
		identities: deps.Identities,
		devices:    deps.Devices,
		history:    deps.History,
		audits:     deps.Audits,
		index:      deps.Index,
		log:        log,
	}
}

// ModelsLoaded reports whether both inference stages are wired, for the
// health endpoint.
func (p *Pipeline) ModelsLoaded() bool {
	return p.detector != nil && p.embedder != nil
}

// RebuildIndex reloads the candidate shortlist index from the identity
// store.
func (p *Pipeline) RebuildIndex(ctx context.Context) error {
	if p.index == nil {
		return nil
	}
	identities, err := p.identities.List(ctx)
	if err != nil {
		return err
	}
	p.index.Build(identities)
	return nil
}

// deviceTier resolves the quality tier of a device fingerprint. Unknown
// devices and store failures classify as medium.
func (p *Pipeline) deviceTier(ctx context.Context, fingerprint string) device.Tier {
	if fingerprint == "" || p.devices == nil {
		return device.TierMedium
	}
	profile, err := p.devices.Get(ctx, fingerprint)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.log.Warn("device profile lookup failed",
				zap.String("fingerprint", fingerprint), zap.Error(err))
		}
		return device.TierMedium
	}
	return profile.TrustedTier()
}

// candidates returns the gallery to score a probe against, through the
// shortlist index when one is loaded.
func (p *Pipeline) candidates(ctx context.Context, probe biometric.Embedding) ([]match.Candidate, error) {
	if p.index != nil && p.index.Count() > 0 {
		return p.index.Candidates(probe, 0), nil
	}
	identities, err := p.identities.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]match.Candidate, 0, len(identities))
	for _, identity := range identities {
		c := identity.Candidate()
		if len(c.Centroid) == 0 {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// RemoveDiacritics strips diacritical marks ("Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeName normalizes an identity name for storage and search
// (no diacritics, collapsed whitespace).
func NormalizeName(name string) string {
	name = RemoveDiacritics(name)
	return strings.Join(strings.Fields(name), " ")
}
