package mariadb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/attendly/facegate/internal/biometric"
	"github.com/attendly/facegate/internal/store"
)

// IdentityRepo implements store.IdentityStore.
type IdentityRepo struct {
	pool *Pool
}

func NewIdentityRepo(pool *Pool) *IdentityRepo {
	return &IdentityRepo{pool: pool}
}

func (r *IdentityRepo) Create(ctx context.Context, identity *store.Identity) error {
	now := time.Now()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	identity.UpdatedAt = now

	tx, err := r.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create identity: %w", err)
	}
	defer tx.Rollback()

	centroidJSON, err := encodeVector(identity.Centroid)
	if err != nil {
		return err
	}
	anchorJSON, err := encodeVector(identity.Anchor)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO identities (id, name, centroid, anchor, mean_quality, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		identity.ID, identity.Name, centroidJSON, anchorJSON,
		identity.MeanQuality, identity.CreatedAt, identity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}

	for _, e := range identity.Embeddings {
		if err := insertEmbedding(ctx, tx, identity.ID, e); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *IdentityRepo) Get(ctx context.Context, id string) (*store.Identity, error) {
	row := r.pool.db.QueryRowContext(ctx, `
		SELECT id, name, centroid, anchor, mean_quality, created_at, updated_at
		FROM identities WHERE id = ?`, id)

	identity, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadEmbeddings(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

func (r *IdentityRepo) List(ctx context.Context) ([]*store.Identity, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, name, centroid, anchor, mean_quality, created_at, updated_at
		FROM identities ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var identities []*store.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}

	for _, identity := range identities {
		if err := r.loadEmbeddings(ctx, identity); err != nil {
			return nil, err
		}
	}
	return identities, nil
}

func (r *IdentityRepo) AddEmbedding(ctx context.Context, identityID string, e store.EnrolledEmbedding) error {
	return insertEmbedding(ctx, r.pool.db, identityID, e)
}

func (r *IdentityRepo) UpdateTemplate(ctx context.Context, identityID string, centroid biometric.Embedding, meanQuality float64) error {
	centroidJSON, err := encodeVector(centroid)
	if err != nil {
		return err
	}
	res, err := r.pool.db.ExecContext(ctx, `
		UPDATE identities SET centroid = ?, mean_quality = ?, updated_at = NOW()
		WHERE id = ?`,
		centroidJSON, meanQuality, identityID)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return requireRow(res)
}

func (r *IdentityRepo) SetAnchor(ctx context.Context, identityID string, anchor biometric.Embedding) error {
	anchorJSON, err := encodeVector(anchor)
	if err != nil {
		return err
	}
	res, err := r.pool.db.ExecContext(ctx, `
		UPDATE identities SET anchor = ?, updated_at = NOW() WHERE id = ?`,
		anchorJSON, identityID)
	if err != nil {
		return fmt.Errorf("set anchor: %w", err)
	}
	return requireRow(res)
}

func (r *IdentityRepo) Delete(ctx context.Context, id string) error {
	res, err := r.pool.db.ExecContext(ctx, `DELETE FROM identities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	return requireRow(res)
}

func (r *IdentityRepo) loadEmbeddings(ctx context.Context, identity *store.Identity) error {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT embedding, quality, created_at
		FROM identity_embeddings WHERE identity_id = ? ORDER BY created_at`, identity.ID)
	if err != nil {
		return fmt.Errorf("load embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var vecJSON []byte
		var qualityJSON []byte
		var createdAt time.Time
		if err := rows.Scan(&vecJSON, &qualityJSON, &createdAt); err != nil {
			return fmt.Errorf("scan embedding: %w", err)
		}

		e := store.EnrolledEmbedding{CreatedAt: createdAt}
		vec, err := decodeVector(vecJSON)
		if err != nil {
			return err
		}
		e.Embedding = vec

		if len(qualityJSON) > 0 {
			var q biometric.QualityMetrics
			if err := json.Unmarshal(qualityJSON, &q); err != nil {
				return fmt.Errorf("decode quality metrics: %w", err)
			}
			e.Quality = &q
		}
		identity.Embeddings = append(identity.Embeddings, e)
	}
	return rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEmbedding(ctx context.Context, db execer, identityID string, e store.EnrolledEmbedding) error {
	vecJSON, err := encodeVector(e.Embedding)
	if err != nil {
		return err
	}
	var qualityJSON any
	if e.Quality != nil {
		data, err := json.Marshal(e.Quality)
		if err != nil {
			return fmt.Errorf("encode quality metrics: %w", err)
		}
		qualityJSON = data
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO identity_embeddings (identity_id, embedding, quality, created_at)
		VALUES (?, ?, ?, ?)`,
		identityID, vecJSON, qualityJSON, createdAt)
	if err != nil {
		return fmt.Errorf("insert embedding: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (*store.Identity, error) {
	var identity store.Identity
	var centroidJSON, anchorJSON sql.NullString
	if err := row.Scan(&identity.ID, &identity.Name, &centroidJSON, &anchorJSON,
		&identity.MeanQuality, &identity.CreatedAt, &identity.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan identity: %w", err)
	}

	if centroidJSON.Valid {
		vec, err := decodeVector([]byte(centroidJSON.String))
		if err != nil {
			return nil, err
		}
		identity.Centroid = vec
	}
	if anchorJSON.Valid {
		vec, err := decodeVector([]byte(anchorJSON.String))
		if err != nil {
			return nil, err
		}
		identity.Anchor = vec
	}
	return &identity, nil
}

// encodeVector serializes an embedding as a JSON array, nil maps to NULL.
func encodeVector(e biometric.Embedding) (any, error) {
	if e == nil {
		return nil, nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode embedding: %w", err)
	}
	return data, nil
}

func decodeVector(data []byte) (biometric.Embedding, error) {
	var vec biometric.Embedding
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	return vec, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
