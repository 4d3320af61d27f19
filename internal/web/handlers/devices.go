package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/attendly/facegate/internal/device"
	"github.com/attendly/facegate/internal/store"
)

// DeviceHandler serves device quality profiles.
type DeviceHandler struct {
	devices store.DeviceStore
	log     *zap.Logger
}

// NewDeviceHandler creates a device handler.
func NewDeviceHandler(devices store.DeviceStore, log *zap.Logger) *DeviceHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &DeviceHandler{devices: devices, log: log}
}

type deviceResponse struct {
	Fingerprint   string          `json:"fingerprint"`
	Tier          device.Tier     `json:"tier"`
	TotalClockIns int             `json:"total_clock_ins"`
	FirstSeen     time.Time       `json:"first_seen"`
	LastSeen      time.Time       `json:"last_seen"`
	Averages      device.Averages `json:"averages"`
}

// Get handles GET /api/v1/devices/{fingerprint}.
func (h *DeviceHandler) Get(w http.ResponseWriter, r *http.Request) {
	fingerprint := chi.URLParam(r, "fingerprint")
	profile, err := h.devices.Get(r.Context(), fingerprint)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "device not found")
			return
		}
		h.log.Error("loading device profile failed",
			zap.String("fingerprint", fingerprint),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "loading device profile failed")
		return
	}

	respondJSON(w, http.StatusOK, deviceResponse{
		Fingerprint:   profile.Fingerprint,
		Tier:          profile.TrustedTier(),
		TotalClockIns: profile.TotalClockIns,
		FirstSeen:     profile.FirstSeen,
		LastSeen:      profile.LastSeen,
		Averages:      profile.Averages(),
	})
}
