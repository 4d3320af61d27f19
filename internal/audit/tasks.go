// Package audit moves best-effort writes off the verification path:
// rejected-attempt records and device quality samples. Events go through a
// Redis-backed asynq queue when one is configured, otherwise a detached
// in-process writer. Either way the decision path never blocks on them.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/attendly/facegate/internal/device"
	"github.com/attendly/facegate/internal/store"
)

const (
	TaskRejection    = "audit:rejection"
	TaskDeviceSample = "device:sample"
)

// DeviceSamplePayload carries one quality observation for a device.
type DeviceSamplePayload struct {
	Fingerprint string        `json:"fingerprint"`
	Sample      device.Sample `json:"sample"`
}

func newRejectionTask(rec store.RejectionRecord) (*asynq.Task, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode rejection payload: %w", err)
	}
	return asynq.NewTask(TaskRejection, payload, asynq.MaxRetry(5), asynq.Timeout(30*time.Second)), nil
}

func newDeviceSampleTask(p DeviceSamplePayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode device sample payload: %w", err)
	}
	return asynq.NewTask(TaskDeviceSample, payload, asynq.MaxRetry(5), asynq.Timeout(30*time.Second)), nil
}

// applyDeviceSample folds one sample into the stored profile, creating the
// profile on first sight of the fingerprint.
func applyDeviceSample(ctx context.Context, devices store.DeviceStore, p DeviceSamplePayload) error {
	profile, err := devices.Get(ctx, p.Fingerprint)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("load device profile: %w", err)
		}
		at := p.Sample.Timestamp
		if at.IsZero() {
			at = time.Now().UTC()
		}
		profile = device.NewProfile(p.Fingerprint, at)
	}
	profile.Record(p.Sample)
	if err := devices.Save(ctx, profile); err != nil {
		return fmt.Errorf("save device profile: %w", err)
	}
	return nil
}
