package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/attendly/facegate/internal/store"
)

// Worker consumes queued audit tasks and writes them through the stores.
type Worker struct {
	server      *asynq.Server
	auditStore  store.AuditStore
	deviceStore store.DeviceStore
	log         *zap.Logger
}

// NewWorker creates a worker bound to the given Redis address.
func NewWorker(redisAddr, redisPassword string, audits store.AuditStore, devices store.DeviceStore, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr, Password: redisPassword},
		asynq.Config{Concurrency: 4},
	)
	return &Worker{
		server:      server,
		auditStore:  audits,
		deviceStore: devices,
		log:         log,
	}
}

// Start runs the worker loop in the background until Shutdown.
func (w *Worker) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskRejection, w.handleRejection)
	mux.HandleFunc(TaskDeviceSample, w.handleDeviceSample)

	if err := w.server.Start(mux); err != nil {
		return fmt.Errorf("starting audit worker: %w", err)
	}
	return nil
}

// Shutdown stops the worker, waiting for in-flight tasks.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) handleRejection(ctx context.Context, t *asynq.Task) error {
	var rec store.RejectionRecord
	if err := json.Unmarshal(t.Payload(), &rec); err != nil {
		w.log.Error("malformed rejection payload", zap.Error(err))
		// Retrying cannot fix a malformed payload.
		return fmt.Errorf("decode rejection payload: %w: %w", err, asynq.SkipRetry)
	}
	if err := w.auditStore.RecordRejection(ctx, rec); err != nil {
		return fmt.Errorf("record rejection: %w", err)
	}
	return nil
}

func (w *Worker) handleDeviceSample(ctx context.Context, t *asynq.Task) error {
	var p DeviceSamplePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		w.log.Error("malformed device sample payload", zap.Error(err))
		return fmt.Errorf("decode device sample payload: %w: %w", err, asynq.SkipRetry)
	}
	return applyDeviceSample(ctx, w.deviceStore, p)
}
