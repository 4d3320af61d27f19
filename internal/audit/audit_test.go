package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/attendly/facegate/internal/device"
	"github.com/attendly/facegate/internal/store"
	"github.com/attendly/facegate/internal/store/mock"
)

func TestApplyDeviceSampleCreatesProfile(t *testing.T) {
	devices := mock.NewMockDeviceStore()
	now := time.Now().UTC()

	err := applyDeviceSample(context.Background(), devices, DeviceSamplePayload{
		Fingerprint: "fp-1",
		Sample:      device.Sample{BlurVariance: 120, ImageWidth: 800, QualityScore: 0.7, Timestamp: now},
	})
	if err != nil {
		t.Fatalf("apply sample: %v", err)
	}

	profile, err := devices.Get(context.Background(), "fp-1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile.TotalClockIns != 1 || len(profile.Samples) != 1 {
		t.Errorf("profile not initialized from first sample: %+v", profile)
	}
	if !profile.FirstSeen.Equal(now) {
		t.Errorf("first seen %v, want %v", profile.FirstSeen, now)
	}
}

func TestApplyDeviceSampleFoldsIntoExisting(t *testing.T) {
	devices := mock.NewMockDeviceStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := applyDeviceSample(ctx, devices, DeviceSamplePayload{
			Fingerprint: "fp-1",
			Sample:      device.Sample{BlurVariance: 100, Timestamp: time.Now().UTC()},
		})
		if err != nil {
			t.Fatalf("apply sample %d: %v", i, err)
		}
	}

	profile, err := devices.Get(ctx, "fp-1")
	if err != nil {
		t.Fatal(err)
	}
	if profile.TotalClockIns != 3 {
		t.Errorf("expected 3 clock-ins, got %d", profile.TotalClockIns)
	}
}

func TestApplyDeviceSamplePropagatesStoreError(t *testing.T) {
	devices := mock.NewMockDeviceStore()
	devices.GetError = errors.New("connection lost")

	err := applyDeviceSample(context.Background(), devices, DeviceSamplePayload{Fingerprint: "fp-1"})
	if err == nil {
		t.Fatal("expected store error to propagate")
	}
}

func TestWorkerHandleRejection(t *testing.T) {
	audits := mock.NewMockAuditStore()
	w := &Worker{auditStore: audits, log: zap.NewNop()}

	task, err := newRejectionTask(store.RejectionRecord{
		Reason:    "below_threshold",
		BestScore: 0.66,
		Threshold: 0.70,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.handleRejection(context.Background(), task); err != nil {
		t.Fatalf("handle rejection: %v", err)
	}

	got := audits.Rejections()
	if len(got) != 1 || got[0].Reason != "below_threshold" {
		t.Errorf("rejection not stored: %+v", got)
	}
}

func TestWorkerSkipsMalformedPayload(t *testing.T) {
	w := &Worker{auditStore: mock.NewMockAuditStore(), log: zap.NewNop()}

	err := w.handleRejection(context.Background(), asynq.NewTask(TaskRejection, []byte("{broken")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("malformed payload should not be retried, got %v", err)
	}
}

func TestWorkerHandleDeviceSample(t *testing.T) {
	devices := mock.NewMockDeviceStore()
	w := &Worker{deviceStore: devices, log: zap.NewNop()}

	task, err := newDeviceSampleTask(DeviceSamplePayload{
		Fingerprint: "fp-2",
		Sample:      device.Sample{BlurVariance: 80, Timestamp: time.Now().UTC()},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.handleDeviceSample(context.Background(), task); err != nil {
		t.Fatalf("handle device sample: %v", err)
	}
	if _, err := devices.Get(context.Background(), "fp-2"); err != nil {
		t.Fatalf("profile not written: %v", err)
	}
}

func TestInProcessDispatcherWritesRejection(t *testing.T) {
	audits := mock.NewMockAuditStore()
	d := NewInProcessDispatcher(audits, mock.NewMockDeviceStore(), zap.NewNop())

	d.DispatchRejection(context.Background(), store.RejectionRecord{Reason: "insufficient_gap"})

	deadline := time.After(2 * time.Second)
	for len(audits.Rejections()) == 0 {
		select {
		case <-deadline:
			t.Fatal("rejection never written")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestTaskPayloadRoundTrip(t *testing.T) {
	task, err := newDeviceSampleTask(DeviceSamplePayload{
		Fingerprint: "fp-3",
		Sample:      device.Sample{BlurVariance: 55.5, ImageWidth: 640},
	})
	if err != nil {
		t.Fatal(err)
	}
	var p DeviceSamplePayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		t.Fatal(err)
	}
	if p.Fingerprint != "fp-3" || p.Sample.BlurVariance != 55.5 {
		t.Errorf("payload round trip lost data: %+v", p)
	}
}
