package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/qorlgns1/binbang-sub001/internal/extract"
	"github.com/qorlgns1/binbang-sub001/internal/model"
	"github.com/qorlgns1/binbang-sub001/internal/settings"
)

// AdminHandler exposes the administrative signals: extraction-rule cache
// bust and settings force reload. Both are consumed on demand, never
// polled.
type AdminHandler struct {
	Rules    *extract.Provider
	Settings *settings.Resolver
	Log      *zap.Logger
}

// ReloadRules handles POST /admin/rules/reload?platform=airbnb|agoda.
// An empty platform busts every platform's cache.
func (h *AdminHandler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	platform := model.Platform(r.URL.Query().Get("platform"))
	if platform != "" && !platform.Valid() {
		http.Error(w, "unknown platform", http.StatusBadRequest)
		return
	}
	h.Rules.Invalidate(platform)
	h.Log.Info("rule reload signal received", zap.String("platform", string(platform)))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "invalidated"})
}

// ReloadSettings handles POST /admin/settings/reload: a forced rebuild of
// the settings cache, bypassing the TTL window.
func (h *AdminHandler) ReloadSettings(w http.ResponseWriter, r *http.Request) {
	s := h.Settings.Load(r.Context(), true)
	h.Log.Info("settings force reload signal received")

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":            "reloaded",
		"check_cycle_cron":  s.CheckCycleCron,
		"check_concurrency": s.CheckConcurrency,
		"browser_pool_size": s.BrowserPoolSize,
	})
}
