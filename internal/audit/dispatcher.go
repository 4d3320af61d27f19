package audit

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/attendly/facegate/internal/store"
)

// Dispatcher hands off audit events without blocking the caller. Failures
// are logged, never returned; a lost audit record must not fail a clock-in.
type Dispatcher interface {
	DispatchRejection(ctx context.Context, rec store.RejectionRecord)
	DispatchDeviceSample(ctx context.Context, p DeviceSamplePayload)
	Close() error
}

// QueueDispatcher enqueues events into a Redis-backed asynq queue consumed
// by a Worker.
type QueueDispatcher struct {
	client *asynq.Client
	log    *zap.Logger
}

// NewQueueDispatcher connects an asynq client to the given Redis address.
func NewQueueDispatcher(redisAddr, redisPassword string, log *zap.Logger) *QueueDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: redisPassword,
	})
	return &QueueDispatcher{client: client, log: log}
}

func (d *QueueDispatcher) DispatchRejection(ctx context.Context, rec store.RejectionRecord) {
	task, err := newRejectionTask(rec)
	if err != nil {
		d.log.Warn("dropping rejection record", zap.Error(err))
		return
	}
	if _, err := d.client.EnqueueContext(ctx, task); err != nil {
		d.log.Warn("failed to enqueue rejection record",
			zap.String("reason", rec.Reason), zap.Error(err))
	}
}

func (d *QueueDispatcher) DispatchDeviceSample(ctx context.Context, p DeviceSamplePayload) {
	task, err := newDeviceSampleTask(p)
	if err != nil {
		d.log.Warn("dropping device sample", zap.Error(err))
		return
	}
	if _, err := d.client.EnqueueContext(ctx, task); err != nil {
		d.log.Warn("failed to enqueue device sample",
			zap.String("fingerprint", p.Fingerprint), zap.Error(err))
	}
}

func (d *QueueDispatcher) Close() error {
	return d.client.Close()
}

// InProcessDispatcher writes events through the stores from a detached
// goroutine. Used when no Redis address is configured.
type InProcessDispatcher struct {
	auditStore  store.AuditStore
	deviceStore store.DeviceStore
	log         *zap.Logger
	timeout     time.Duration
}

// NewInProcessDispatcher creates a dispatcher writing directly to the given
// stores.
func NewInProcessDispatcher(audits store.AuditStore, devices store.DeviceStore, log *zap.Logger) *InProcessDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &InProcessDispatcher{
		auditStore:  audits,
		deviceStore: devices,
		log:         log,
		timeout:     30 * time.Second,
	}
}

func (d *InProcessDispatcher) DispatchRejection(ctx context.Context, rec store.RejectionRecord) {
	go func() {
		// Detached from the request context so the write survives the
		// response being sent.
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.auditStore.RecordRejection(ctx, rec); err != nil {
			d.log.Warn("failed to record rejection",
				zap.String("reason", rec.Reason), zap.Error(err))
		}
	}()
}

func (d *InProcessDispatcher) DispatchDeviceSample(ctx context.Context, p DeviceSamplePayload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := applyDeviceSample(ctx, d.deviceStore, p); err != nil {
			d.log.Warn("failed to record device sample",
				zap.String("fingerprint", p.Fingerprint), zap.Error(err))
		}
	}()
}

func (d *InProcessDispatcher) Close() error { return nil }

var (
	_ Dispatcher = (*QueueDispatcher)(nil)
	_ Dispatcher = (*InProcessDispatcher)(nil)
)
