package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/attendly/facegate/internal/audit"
	"github.com/attendly/facegate/internal/biometric"
	"github.com/attendly/facegate/internal/detect"
	"github.com/attendly/facegate/internal/device"
	"github.com/attendly/facegate/internal/embed"
	"github.com/attendly/facegate/internal/match"
	"github.com/attendly/facegate/internal/store"
)

// VerifyRequest is one clock-in attempt.
type VerifyRequest struct {
	Image             []byte
	DeviceFingerprint string
	Mode              match.Mode
	GeofenceValid     bool
}

// Verify runs the full decision pipeline on a frame. Exactly one of the
// result and the rejection is non-nil on success; validation failures
// (quality gate, detector) and infrastructure faults come back as errors.
func (p *Pipeline) Verify(ctx context.Context, req VerifyRequest) (*match.Result, *match.Rejection, error) {
	tier := p.deviceTier(ctx, req.DeviceFingerprint)

	res, err := p.gate.Process(req.Image, tier)
	if err != nil {
		return nil, nil, err
	}

	det, err := p.detector.Detect(ctx, res.Frame, detect.Options{})
	if err != nil {
		return nil, nil, err
	}

	probe, err := p.embedder.Embed(ctx, res.Frame, det)
	if err != nil {
		return nil, nil, err
	}

	metrics := completeMetrics(res.Metrics, det)
	p.recordDeviceSample(ctx, req.DeviceFingerprint, metrics)

	gallery, err := p.candidates(ctx, probe)
	if err != nil {
		return nil, nil, err
	}

	result, rejection, err := p.matcher.Match(ctx, match.Input{
		Probe:             probe,
		Quality:           &metrics,
		Liveness:          det.Liveness,
		Mode:              req.Mode,
		DeviceFingerprint: req.DeviceFingerprint,
		GeofenceValid:     req.GeofenceValid,
	}, gallery)
	if err != nil {
		return nil, nil, err
	}

	if result != nil {
		p.recordMatch(ctx, result, req.DeviceFingerprint)
	}
	if rejection != nil && p.audits != nil {
		p.audits.DispatchRejection(ctx, store.RejectionRecord{
			Reason:            rejection.Reason,
			BestIdentityID:    rejection.BestIdentityID,
			BestScore:         rejection.BestScore,
			Threshold:         rejection.Threshold,
			NearMiss:          rejection.NearMiss,
			DeviceFingerprint: req.DeviceFingerprint,
		})
	}
	return result, rejection, nil
}

// completeMetrics folds the detection into the gate's frame metrics.
func completeMetrics(m biometric.QualityMetrics, det *biometric.Detection) biometric.QualityMetrics {
	m.Score = det.Score
	m.DetectionScore = det.Score
	m.FaceWidth = det.FaceWidth
	m.FaceHeight = det.FaceHeight
	m.Pose = embed.EstimatePose(det)
	return m
}

// recordMatch persists the accepted verification. History failures are
// logged and swallowed; the accept already happened.
func (p *Pipeline) recordMatch(ctx context.Context, result *match.Result, fingerprint string) {
	if p.history == nil {
		return
	}
	err := p.history.Record(ctx, store.MatchRecord{
		IdentityID:        result.IdentityID,
		DeviceFingerprint: fingerprint,
		Similarity:        result.Similarity,
		Score:             result.Score,
		Confidence:        result.Confidence,
		RiskLevel:         result.Risk.Level,
		MatchedAt:         time.Now(),
	})
	if err != nil {
		p.log.Warn("failed to record accepted match",
			zap.String("identity_id", result.IdentityID), zap.Error(err))
	}
}

func (p *Pipeline) recordDeviceSample(ctx context.Context, fingerprint string, metrics biometric.QualityMetrics) {
	if fingerprint == "" || p.audits == nil {
		return
	}
	p.audits.DispatchDeviceSample(ctx, audit.DeviceSamplePayload{
		Fingerprint: fingerprint,
		Sample:      device.SampleFromMetrics(metrics, time.Now().UTC()),
	})
}
