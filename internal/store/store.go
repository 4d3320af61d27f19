// Package store defines the persistence interfaces of the attendance
// pipeline: enrolled identities, device quality profiles, accepted
// match history and the rejected-attempt audit log. Backends live in
// the postgres, mariadb and mock subpackages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/attendly/facegate/internal/biometric"
	"github.com/attendly/facegate/internal/device"
	"github.com/attendly/facegate/internal/match"
	"github.com/attendly/facegate/internal/template"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// EnrolledEmbedding is one stored sample of an identity.
type EnrolledEmbedding struct {
	Embedding biometric.Embedding
	// Quality may be nil for samples persisted by older clients.
	Quality   *biometric.QualityMetrics
	CreatedAt time.Time
}

// Identity is an enrolled person with their template.
type Identity struct {
	ID   string
	Name string
	// Centroid is the quality-weighted aggregate of all samples.
	Centroid biometric.Embedding
	// Anchor is an embedding from an authoritative reference photo,
	// nil when none was provided.
	Anchor      biometric.Embedding
	MeanQuality float64
	Embeddings  []EnrolledEmbedding
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EffectiveCentroid returns the stored centroid, or derives one from the
// raw embeddings when aggregation never ran (records written before a
// backfill, or imports that only carried samples). Nil when neither yields
// a usable vector.
func (i *Identity) EffectiveCentroid() biometric.Embedding {
	if len(i.Centroid) > 0 {
		return i.Centroid
	}
	samples := make([]template.Sample, 0, len(i.Embeddings))
	for _, e := range i.Embeddings {
		samples = append(samples, template.Sample{Embedding: e.Embedding, Metrics: e.Quality})
	}
	tpl, err := template.Build(samples)
	if err != nil {
		return nil
	}
	return tpl.Centroid
}

// Candidate converts the identity into the matcher's gallery form.
func (i *Identity) Candidate() match.Candidate {
	c := match.Candidate{
		IdentityID: i.ID,
		Name:       i.Name,
		Centroid:   i.EffectiveCentroid(),
		Anchor:     i.Anchor,
	}
	for _, e := range i.Embeddings {
		c.Samples = append(c.Samples, e.Embedding)
	}
	return c
}

// IdentityStore persists enrolled identities and their embeddings.
type IdentityStore interface {
	Create(ctx context.Context, identity *Identity) error
	// Get returns the identity with all embeddings, ErrNotFound if missing.
	Get(ctx context.Context, id string) (*Identity, error)
	// List returns the full gallery with embeddings loaded.
	List(ctx context.Context) ([]*Identity, error)
	AddEmbedding(ctx context.Context, identityID string, e EnrolledEmbedding) error
	// UpdateTemplate replaces the centroid and mean quality after
	// aggregation or backfill.
	UpdateTemplate(ctx context.Context, identityID string, centroid biometric.Embedding, meanQuality float64) error
	SetAnchor(ctx context.Context, identityID string, anchor biometric.Embedding) error
	Delete(ctx context.Context, id string) error
}

// DeviceStore persists device quality profiles by fingerprint.
type DeviceStore interface {
	// Get returns the profile, ErrNotFound for an unseen device.
	Get(ctx context.Context, fingerprint string) (*device.Profile, error)
	// List returns every profile ordered by last activity, newest first.
	List(ctx context.Context) ([]*device.Profile, error)
	Save(ctx context.Context, profile *device.Profile) error
}

// MatchRecord is one accepted verification.
type MatchRecord struct {
	ID                string
	IdentityID        string
	DeviceFingerprint string
	Similarity        float64
	Score             float64
	Confidence        string
	RiskLevel         string
	MatchedAt         time.Time
}

// HistoryStore persists accepted matches and serves the matcher's
// temporal and device signals. It satisfies match.HistoryProvider.
type HistoryStore interface {
	Record(ctx context.Context, rec MatchRecord) error
	RecentMatches(ctx context.Context, identityID string, since time.Time, limit int) ([]match.MatchEvent, error)
	DeviceMatchCount(ctx context.Context, identityID, fingerprint string, since time.Time) (int, error)
}

// RejectionRecord is one rejected attempt kept for offline threshold
// tuning.
type RejectionRecord struct {
	ID                string
	Reason            string
	BestIdentityID    string
	BestScore         float64
	Threshold         float64
	NearMiss          bool
	DeviceFingerprint string
	OccurredAt        time.Time
}

// AuditStore receives best-effort records of rejected attempts.
type AuditStore interface {
	RecordRejection(ctx context.Context, rec RejectionRecord) error
}

var _ match.HistoryProvider = (HistoryStore)(nil)
