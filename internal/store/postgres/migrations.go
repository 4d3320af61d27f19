package postgres

import (
	"context"
	"fmt"

	"github.com/attendly/facegate/internal/biometric"
)

// Migrate creates the extension, tables and indexes. Statements are
// idempotent so startup can run them unconditionally.
func Migrate(ctx context.Context, pool *Pool) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS identities (
				id           UUID PRIMARY KEY,
				name         TEXT NOT NULL,
				centroid     vector(%d),
				anchor       vector(%d),
				mean_quality DOUBLE PRECISION NOT NULL DEFAULT 0,
				created_at   TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at   TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			)`, biometric.EmbeddingSize, biometric.EmbeddingSize),

		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS identity_embeddings (
				id          BIGSERIAL PRIMARY KEY,
				identity_id UUID NOT NULL REFERENCES identities(id) ON DELETE CASCADE,
				embedding   vector(%d) NOT NULL,
				quality     JSONB,
				created_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			)`, biometric.EmbeddingSize),
		`CREATE INDEX IF NOT EXISTS idx_identity_embeddings_identity
			ON identity_embeddings (identity_id)`,

		`CREATE TABLE IF NOT EXISTS device_profiles (
			fingerprint     TEXT PRIMARY KEY,
			samples         JSONB NOT NULL DEFAULT '[]',
			total_clock_ins INTEGER NOT NULL DEFAULT 0,
			first_seen      TIMESTAMP WITH TIME ZONE NOT NULL,
			last_seen       TIMESTAMP WITH TIME ZONE NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS match_history (
			id                 UUID PRIMARY KEY,
			identity_id        UUID NOT NULL,
			device_fingerprint TEXT NOT NULL DEFAULT '',
			similarity         DOUBLE PRECISION NOT NULL,
			score              DOUBLE PRECISION NOT NULL,
			confidence         TEXT NOT NULL,
			risk_level         TEXT NOT NULL,
			matched_at         TIMESTAMP WITH TIME ZONE NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_match_history_identity_time
			ON match_history (identity_id, matched_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_match_history_device
			ON match_history (identity_id, device_fingerprint, matched_at DESC)`,

		`CREATE TABLE IF NOT EXISTS rejected_attempts (
			id                 UUID PRIMARY KEY,
			reason             TEXT NOT NULL,
			best_identity_id   TEXT NOT NULL DEFAULT '',
			best_score         DOUBLE PRECISION NOT NULL,
			threshold          DOUBLE PRECISION NOT NULL,
			near_miss          BOOLEAN NOT NULL DEFAULT FALSE,
			device_fingerprint TEXT NOT NULL DEFAULT '',
			occurred_at        TIMESTAMP WITH TIME ZONE NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rejected_attempts_time
			ON rejected_attempts (occurred_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := pool.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
