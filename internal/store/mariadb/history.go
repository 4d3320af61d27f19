package mariadb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/attendly/facegate/internal/match"
	"github.com/attendly/facegate/internal/store"
)

// HistoryRepo implements store.HistoryStore.
type HistoryRepo struct {
	pool *Pool
}

func NewHistoryRepo(pool *Pool) *HistoryRepo {
	return &HistoryRepo{pool: pool}
}

func (r *HistoryRepo) Record(ctx context.Context, rec store.MatchRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.MatchedAt.IsZero() {
		rec.MatchedAt = time.Now()
	}

	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO match_history
			(id, identity_id, device_fingerprint, similarity, score, confidence, risk_level, matched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.IdentityID, rec.DeviceFingerprint, rec.Similarity,
		rec.Score, rec.Confidence, rec.RiskLevel, rec.MatchedAt)
	if err != nil {
		return fmt.Errorf("record match: %w", err)
	}
	return nil
}

func (r *HistoryRepo) RecentMatches(ctx context.Context, identityID string, since time.Time, limit int) ([]match.MatchEvent, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT matched_at, score
		FROM match_history
		WHERE identity_id = ? AND matched_at >= ?
		ORDER BY matched_at DESC
		LIMIT ?`, identityID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("recent matches: %w", err)
	}
	defer rows.Close()

	var events []match.MatchEvent
	for rows.Next() {
		var e match.MatchEvent
		if err := rows.Scan(&e.MatchedAt, &e.Confidence); err != nil {
			return nil, fmt.Errorf("scan match event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *HistoryRepo) DeviceMatchCount(ctx context.Context, identityID, fingerprint string, since time.Time) (int, error) {
	var count int
	err := r.pool.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM match_history
		WHERE identity_id = ? AND device_fingerprint = ? AND matched_at >= ?`,
		identityID, fingerprint, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("device match count: %w", err)
	}
	return count, nil
}

// AuditRepo implements store.AuditStore.
type AuditRepo struct {
	pool *Pool
}

func NewAuditRepo(pool *Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) RecordRejection(ctx context.Context, rec store.RejectionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now()
	}

	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO rejected_attempts
			(id, reason, best_identity_id, best_score, threshold, near_miss, device_fingerprint, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Reason, rec.BestIdentityID, rec.BestScore,
		rec.Threshold, rec.NearMiss, rec.DeviceFingerprint, rec.OccurredAt)
	if err != nil {
		return fmt.Errorf("record rejection: %w", err)
	}
	return nil
}

var (
	_ store.IdentityStore = (*IdentityRepo)(nil)
	_ store.DeviceStore   = (*DeviceRepo)(nil)
	_ store.HistoryStore  = (*HistoryRepo)(nil)
	_ store.AuditStore    = (*AuditRepo)(nil)
)
