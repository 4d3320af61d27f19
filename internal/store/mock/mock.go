// Package mock provides in-memory implementations of the store interfaces
// for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/attendly/facegate/internal/biometric"
	"github.com/attendly/facegate/internal/device"
	"github.com/attendly/facegate/internal/match"
	"github.com/attendly/facegate/internal/store"
)

// MockIdentityStore is an in-memory implementation of store.IdentityStore.
type MockIdentityStore struct {
	mu         sync.RWMutex
	identities map[string]*store.Identity

	// Error injection
	CreateError         error
	GetError            error
	ListError           error
	AddEmbeddingError   error
	UpdateTemplateError error
	SetAnchorError      error
	DeleteError         error
}

// NewMockIdentityStore creates a new mock identity store.
func NewMockIdentityStore() *MockIdentityStore {
	return &MockIdentityStore{
		identities: make(map[string]*store.Identity),
	}
}

// Create stores a new identity, assigning an ID when none is set.
func (m *MockIdentityStore) Create(ctx context.Context, identity *store.Identity) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	identity.CreatedAt = now
	identity.UpdatedAt = now
	cp := cloneIdentity(identity)
	m.identities[identity.ID] = cp
	return nil
}

// Get retrieves an identity by ID.
func (m *MockIdentityStore) Get(ctx context.Context, id string) (*store.Identity, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	identity, ok := m.identities[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneIdentity(identity), nil
}

// List returns all identities ordered by name.
func (m *MockIdentityStore) List(ctx context.Context) ([]*store.Identity, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*store.Identity, 0, len(m.identities))
	for _, identity := range m.identities {
		out = append(out, cloneIdentity(identity))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// AddEmbedding appends a sample to an existing identity.
func (m *MockIdentityStore) AddEmbedding(ctx context.Context, identityID string, e store.EnrolledEmbedding) error {
	if m.AddEmbeddingError != nil {
		return m.AddEmbeddingError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.identities[identityID]
	if !ok {
		return store.ErrNotFound
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	identity.Embeddings = append(identity.Embeddings, e)
	identity.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateTemplate replaces the stored centroid and mean quality.
func (m *MockIdentityStore) UpdateTemplate(ctx context.Context, identityID string, centroid biometric.Embedding, meanQuality float64) error {
	if m.UpdateTemplateError != nil {
		return m.UpdateTemplateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.identities[identityID]
	if !ok {
		return store.ErrNotFound
	}
	identity.Centroid = append(biometric.Embedding(nil), centroid...)
	identity.MeanQuality = meanQuality
	identity.UpdatedAt = time.Now().UTC()
	return nil
}

// SetAnchor stores the reference-photo embedding.
func (m *MockIdentityStore) SetAnchor(ctx context.Context, identityID string, anchor biometric.Embedding) error {
	if m.SetAnchorError != nil {
		return m.SetAnchorError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.identities[identityID]
	if !ok {
		return store.ErrNotFound
	}
	identity.Anchor = append(biometric.Embedding(nil), anchor...)
	identity.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes an identity.
func (m *MockIdentityStore) Delete(ctx context.Context, id string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.identities[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.identities, id)
	return nil
}

func cloneIdentity(in *store.Identity) *store.Identity {
	out := *in
	out.Centroid = append(biometric.Embedding(nil), in.Centroid...)
	if in.Anchor != nil {
		out.Anchor = append(biometric.Embedding(nil), in.Anchor...)
	}
	out.Embeddings = make([]store.EnrolledEmbedding, len(in.Embeddings))
	for i, e := range in.Embeddings {
		cp := e
		cp.Embedding = append(biometric.Embedding(nil), e.Embedding...)
		if e.Quality != nil {
			q := *e.Quality
			cp.Quality = &q
		}
		out.Embeddings[i] = cp
	}
	return &out
}

// MockDeviceStore is an in-memory implementation of store.DeviceStore.
type MockDeviceStore struct {
	mu       sync.RWMutex
	profiles map[string]*device.Profile

	// Error injection
	GetError  error
	ListError error
	SaveError error
}

// NewMockDeviceStore creates a new mock device store.
func NewMockDeviceStore() *MockDeviceStore {
	return &MockDeviceStore{
		profiles: make(map[string]*device.Profile),
	}
}

// Get retrieves a device profile by fingerprint.
func (m *MockDeviceStore) Get(ctx context.Context, fingerprint string) (*device.Profile, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	profile, ok := m.profiles[fingerprint]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *profile
	cp.Samples = append([]device.Sample(nil), profile.Samples...)
	return &cp, nil
}

// List returns every profile, newest activity first.
func (m *MockDeviceStore) List(ctx context.Context) ([]*device.Profile, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	profiles := make([]*device.Profile, 0, len(m.profiles))
	for _, profile := range m.profiles {
		cp := *profile
		cp.Samples = append([]device.Sample(nil), profile.Samples...)
		profiles = append(profiles, &cp)
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].LastSeen.After(profiles[j].LastSeen)
	})
	return profiles, nil
}

// Save stores a device profile.
func (m *MockDeviceStore) Save(ctx context.Context, profile *device.Profile) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *profile
	cp.Samples = append([]device.Sample(nil), profile.Samples...)
	m.profiles[profile.Fingerprint] = &cp
	return nil
}

// MockHistoryStore is an in-memory implementation of store.HistoryStore.
type MockHistoryStore struct {
	mu      sync.RWMutex
	records []store.MatchRecord

	// Error injection
	RecordError           error
	RecentMatchesError    error
	DeviceMatchCountError error
}

// NewMockHistoryStore creates a new mock history store.
func NewMockHistoryStore() *MockHistoryStore {
	return &MockHistoryStore{}
}

// Record stores an accepted match.
func (m *MockHistoryStore) Record(ctx context.Context, rec store.MatchRecord) error {
	if m.RecordError != nil {
		return m.RecordError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.MatchedAt.IsZero() {
		rec.MatchedAt = time.Now().UTC()
	}
	m.records = append(m.records, rec)
	return nil
}

// RecentMatches returns matches for an identity since the given time,
// newest first.
func (m *MockHistoryStore) RecentMatches(ctx context.Context, identityID string, since time.Time, limit int) ([]match.MatchEvent, error) {
	if m.RecentMatchesError != nil {
		return nil, m.RecentMatchesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var events []match.MatchEvent
	for _, rec := range m.records {
		if rec.IdentityID == identityID && rec.MatchedAt.After(since) {
			events = append(events, match.MatchEvent{MatchedAt: rec.MatchedAt, Confidence: rec.Score})
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].MatchedAt.After(events[j].MatchedAt) })
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// DeviceMatchCount counts matches for an identity on a device since the
// given time.
func (m *MockHistoryStore) DeviceMatchCount(ctx context.Context, identityID, fingerprint string, since time.Time) (int, error) {
	if m.DeviceMatchCountError != nil {
		return 0, m.DeviceMatchCountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, rec := range m.records {
		if rec.IdentityID == identityID && rec.DeviceFingerprint == fingerprint && rec.MatchedAt.After(since) {
			count++
		}
	}
	return count, nil
}

// Records returns a copy of all stored records.
func (m *MockHistoryStore) Records() []store.MatchRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]store.MatchRecord(nil), m.records...)
}

// MockAuditStore is an in-memory implementation of store.AuditStore.
type MockAuditStore struct {
	mu         sync.RWMutex
	rejections []store.RejectionRecord

	// Error injection
	RecordRejectionError error
}

// NewMockAuditStore creates a new mock audit store.
func NewMockAuditStore() *MockAuditStore {
	return &MockAuditStore{}
}

// RecordRejection stores a rejected attempt.
func (m *MockAuditStore) RecordRejection(ctx context.Context, rec store.RejectionRecord) error {
	if m.RecordRejectionError != nil {
		return m.RecordRejectionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}
	m.rejections = append(m.rejections, rec)
	return nil
}

// Rejections returns a copy of all stored rejections.
func (m *MockAuditStore) Rejections() []store.RejectionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]store.RejectionRecord(nil), m.rejections...)
}

var (
	_ store.IdentityStore = (*MockIdentityStore)(nil)
	_ store.DeviceStore   = (*MockDeviceStore)(nil)
	_ store.HistoryStore  = (*MockHistoryStore)(nil)
	_ store.AuditStore    = (*MockAuditStore)(nil)
)
