package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/qorlgns1/binbang-sub001/internal/heartbeat"
	"github.com/qorlgns1/binbang-sub001/internal/model"
	"github.com/qorlgns1/binbang-sub001/internal/settings"
)

// HeartbeatReader is the store slice the handler needs.
type HeartbeatReader interface {
	Heartbeat(ctx context.Context, workerID string) (*model.Heartbeat, error)
}

// HeartbeatHandler serves GET /admin/heartbeat: the persisted singleton
// record plus the monitor's classification of it.
type HeartbeatHandler struct {
	Store    HeartbeatReader
	Settings *settings.Resolver
	WorkerID string
}

type heartbeatResponse struct {
	Heartbeat *model.Heartbeat `json:"heartbeat"`
	Status    string           `json:"status"`
}

// Get handles GET /admin/heartbeat.
func (h *HeartbeatHandler) Get(w http.ResponseWriter, r *http.Request) {
	hb, err := h.Store.Heartbeat(r.Context(), h.WorkerID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if hb == nil {
		http.Error(w, "no heartbeat recorded", http.StatusNotFound)
		return
	}

	s := h.Settings.Current()
	status := heartbeat.Classify(*hb, time.Now(), heartbeat.Thresholds{
		Healthy:       s.HealthyThreshold,
		Degraded:      s.DegradedThreshold,
		MaxProcessing: s.MaxProcessingTime,
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(heartbeatResponse{Heartbeat: hb, Status: status})
}
