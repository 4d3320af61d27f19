package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/attendly/facegate/internal/biometric"
	"github.com/attendly/facegate/internal/detect"
	"github.com/attendly/facegate/internal/store"
	"github.com/attendly/facegate/internal/template"
)

// EnrollRequest registers one person from one or more frames.
type EnrollRequest struct {
	Name              string
	Images            [][]byte
	DeviceFingerprint string
}

// Enroll extracts an embedding from every frame under the strict detection
// gates, aggregates them into a template and persists the identity. All
// frames must pass; enrollment is the one moment quality can be demanded.
func (p *Pipeline) Enroll(ctx context.Context, req EnrollRequest) (*store.Identity, error) {
	name := NormalizeName(req.Name)
	if name == "" {
		return nil, biometric.NewValidationError(biometric.IssueInvalidRequest, "enrollment requires a name")
	}
	if len(req.Images) == 0 {
		return nil, biometric.NewValidationError(biometric.IssueInvalidRequest, "enrollment requires at least one frame")
	}

	tier := p.deviceTier(ctx, req.DeviceFingerprint)

	var samples []template.Sample
	var enrolled []store.EnrolledEmbedding
	for i, image := range req.Images {
		res, err := p.gate.Process(image, tier)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i+1, err)
		}
		det, err := p.detector.Detect(ctx, res.Frame, detect.Options{Strict: true})
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i+1, err)
		}
		embedding, err := p.embedder.Embed(ctx, res.Frame, det)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i+1, err)
		}

		metrics := completeMetrics(res.Metrics, det)
		samples = append(samples, template.Sample{Embedding: embedding, Metrics: &metrics})
		enrolled = append(enrolled, store.EnrolledEmbedding{
			Embedding: embedding,
			Quality:   &metrics,
			CreatedAt: time.Now(),
		})
	}

	tmpl, err := template.Build(samples)
	if err != nil {
		return nil, fmt.Errorf("aggregating enrollment template: %w", err)
	}

	identity := &store.Identity{
		ID:          uuid.NewString(),
		Name:        name,
		Centroid:    tmpl.Centroid,
		MeanQuality: tmpl.MeanQuality,
		Embeddings:  enrolled,
	}
	if err := p.identities.Create(ctx, identity); err != nil {
		return nil, fmt.Errorf("persisting identity: %w", err)
	}
	if p.index != nil {
		p.index.Upsert(identity)
	}

	p.log.Info("identity enrolled",
		zap.String("identity_id", identity.ID),
		zap.Int("samples", tmpl.SampleCount),
		zap.Float64("mean_quality", tmpl.MeanQuality))
	return identity, nil
}

// AttachAnchor extracts an anchor embedding from an authoritative reference
// photo and stores it on the identity. Anchor frames accept a lower
// detection score; reference photos are often scans.
func (p *Pipeline) AttachAnchor(ctx context.Context, identityID string, image []byte) error {
	res, err := p.gate.Process(image, p.deviceTier(ctx, ""))
	if err != nil {
		return err
	}
	det, err := p.detector.Detect(ctx, res.Frame, detect.Options{Anchor: true})
	if err != nil {
		return err
	}
	anchor, err := p.embedder.Embed(ctx, res.Frame, det)
	if err != nil {
		return err
	}

	if err := p.identities.SetAnchor(ctx, identityID, anchor); err != nil {
		return fmt.Errorf("storing anchor: %w", err)
	}
	if p.index != nil {
		identity, err := p.identities.Get(ctx, identityID)
		if err != nil {
			return fmt.Errorf("refreshing index entry: %w", err)
		}
		p.index.Upsert(identity)
	}
	return nil
}

// DeleteIdentity removes an identity and drops it from the shortlist index.
func (p *Pipeline) DeleteIdentity(ctx context.Context, identityID string) error {
	if err := p.identities.Delete(ctx, identityID); err != nil {
		return err
	}
	if p.index != nil {
		p.index.Remove(identityID)
	}
	p.log.Info("identity deleted", zap.String("identity_id", identityID))
	return nil
}

// BackfillTemplates recomputes every identity's centroid and mean quality
// from its stored samples. Samples without quality records weigh in through
// the norm-derived estimate, which is what makes this useful for identities
// enrolled before quality tracking existed.
func (p *Pipeline) BackfillTemplates(ctx context.Context) (int, error) {
	identities, err := p.identities.List(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, identity := range identities {
		samples := make([]template.Sample, 0, len(identity.Embeddings))
		for _, e := range identity.Embeddings {
			samples = append(samples, template.Sample{Embedding: e.Embedding, Metrics: e.Quality})
		}
		tmpl, err := template.Build(samples)
		if err != nil {
			p.log.Warn("skipping identity with no usable samples",
				zap.String("identity_id", identity.ID), zap.Error(err))
			continue
		}
		if err := p.identities.UpdateTemplate(ctx, identity.ID, tmpl.Centroid, tmpl.MeanQuality); err != nil {
			return updated, fmt.Errorf("updating template for %s: %w", identity.ID, err)
		}
		identity.Centroid = tmpl.Centroid
		identity.MeanQuality = tmpl.MeanQuality
		if p.index != nil {
			p.index.Upsert(identity)
		}
		updated++
	}
	return updated, nil
}
