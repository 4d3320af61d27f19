// Package mariadb implements the store interfaces on MariaDB/MySQL.
// Embeddings are stored as JSON arrays since the server has no native
// vector type, so gallery scans deserialize every row in Go.
package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new MariaDB connection pool.
func NewPool(dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

// DB exposes the underlying connection pool.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS identities (
		id CHAR(36) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		centroid LONGTEXT,
		anchor LONGTEXT,
		mean_quality DOUBLE NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS identity_embeddings (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		identity_id CHAR(36) NOT NULL,
		embedding LONGTEXT NOT NULL,
		quality LONGTEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_embedding_identity FOREIGN KEY (identity_id)
			REFERENCES identities(id) ON DELETE CASCADE,
		INDEX idx_embeddings_identity (identity_id)
	)`,
	`CREATE TABLE IF NOT EXISTS device_profiles (
		fingerprint VARCHAR(128) PRIMARY KEY,
		samples LONGTEXT NOT NULL,
		total_clock_ins INT NOT NULL DEFAULT 0,
		first_seen TIMESTAMP NOT NULL,
		last_seen TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS match_history (
		id CHAR(36) PRIMARY KEY,
		identity_id CHAR(36) NOT NULL,
		device_fingerprint VARCHAR(128) NOT NULL DEFAULT '',
		similarity DOUBLE NOT NULL,
		score DOUBLE NOT NULL,
		confidence VARCHAR(16) NOT NULL,
		risk_level VARCHAR(16) NOT NULL,
		matched_at TIMESTAMP NOT NULL,
		INDEX idx_history_identity_time (identity_id, matched_at),
		INDEX idx_history_device (identity_id, device_fingerprint, matched_at)
	)`,
	`CREATE TABLE IF NOT EXISTS rejected_attempts (
		id CHAR(36) PRIMARY KEY,
		reason VARCHAR(64) NOT NULL,
		best_identity_id CHAR(36),
		best_score DOUBLE NOT NULL,
		threshold DOUBLE NOT NULL,
		near_miss BOOLEAN NOT NULL DEFAULT FALSE,
		device_fingerprint VARCHAR(128) NOT NULL DEFAULT '',
		occurred_at TIMESTAMP NOT NULL,
		INDEX idx_rejections_time (occurred_at)
	)`,
}

// Migrate creates the schema. Statements are idempotent and safe to run
// on every start.
func Migrate(ctx context.Context, pool *Pool) error {
	for _, stmt := range migrations {
		if _, err := pool.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
