package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/attendly/facegate/internal/device"
	"github.com/attendly/facegate/internal/store"
)

// DeviceRepo implements store.DeviceStore. Samples are kept as a JSON
// array since they are only ever read back as a whole ring buffer.
type DeviceRepo struct {
	pool *Pool
}

func NewDeviceRepo(pool *Pool) *DeviceRepo {
	return &DeviceRepo{pool: pool}
}

func (r *DeviceRepo) Get(ctx context.Context, fingerprint string) (*device.Profile, error) {
	var profile device.Profile
	var samplesJSON []byte

	err := r.pool.db.QueryRowContext(ctx, `
		SELECT fingerprint, samples, total_clock_ins, first_seen, last_seen
		FROM device_profiles WHERE fingerprint = $1`, fingerprint).
		Scan(&profile.Fingerprint, &samplesJSON, &profile.TotalClockIns,
			&profile.FirstSeen, &profile.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get device profile: %w", err)
	}

	if err := json.Unmarshal(samplesJSON, &profile.Samples); err != nil {
		return nil, fmt.Errorf("decode device samples: %w", err)
	}
	return &profile, nil
}

func (r *DeviceRepo) List(ctx context.Context) ([]*device.Profile, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT fingerprint, samples, total_clock_ins, first_seen, last_seen
		FROM device_profiles ORDER BY last_seen DESC`)
	if err != nil {
		return nil, fmt.Errorf("list device profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*device.Profile
	for rows.Next() {
		var profile device.Profile
		var samplesJSON []byte
		if err := rows.Scan(&profile.Fingerprint, &samplesJSON, &profile.TotalClockIns,
			&profile.FirstSeen, &profile.LastSeen); err != nil {
			return nil, fmt.Errorf("scan device profile: %w", err)
		}
		if err := json.Unmarshal(samplesJSON, &profile.Samples); err != nil {
			return nil, fmt.Errorf("decode device samples: %w", err)
		}
		profiles = append(profiles, &profile)
	}
	return profiles, rows.Err()
}

func (r *DeviceRepo) Save(ctx context.Context, profile *device.Profile) error {
	samplesJSON, err := json.Marshal(profile.Samples)
	if err != nil {
		return fmt.Errorf("encode device samples: %w", err)
	}

	_, err = r.pool.db.ExecContext(ctx, `
		INSERT INTO device_profiles (fingerprint, samples, total_clock_ins, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (fingerprint) DO UPDATE SET
			samples = EXCLUDED.samples,
			total_clock_ins = EXCLUDED.total_clock_ins,
			last_seen = EXCLUDED.last_seen`,
		profile.Fingerprint, samplesJSON, profile.TotalClockIns,
		profile.FirstSeen, profile.LastSeen)
	if err != nil {
		return fmt.Errorf("save device profile: %w", err)
	}
	return nil
}
