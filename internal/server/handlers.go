package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/violation-lookup/internal/model"
)

func (h *Handler) lookupBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeValidation(w, err)
		return
	}
	targets, err := parseBatch(req, h.maxTargets)
	if err != nil {
		writeValidation(w, err)
		return
	}

	h.log.Info("batch lookup requested",
		zap.Int("plates", len(targets)),
		zap.String("request_id", RequestID(r.Context())),
	)
	outcomes := h.service.LookupBatch(r.Context(), targets)
	writeJSON(w, http.StatusOK, toBatchResponse(outcomes))
}

func (h *Handler) lookupSingle(w http.ResponseWriter, r *http.Request) {
	var item lookupItem
	if err := decodeBody(w, r, &item); err != nil {
		writeValidation(w, err)
		return
	}
	t, msgs := parseItem(item, "")
	if len(msgs) > 0 {
		writeValidation(w, &validationError{messages: msgs})
		return
	}

	h.log.Info("lookup requested",
		zap.String("plate", t.Normalized()),
		zap.String("vehicle_type", string(t.VehicleClass)),
		zap.String("request_id", RequestID(r.Context())),
	)
	writeJSON(w, http.StatusOK, toResult(h.service.LookupOne(r.Context(), t)))
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	sh := h.service.SessionHealth()
	now := h.nowFunc()

	resp := healthResponse{
		Status:    "ok",
		Timestamp: now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Uptime:    now.Sub(h.startedAt).Seconds(),
		Browser:   browserStatus{Status: "connected", Healthy: sh.Healthy, State: sh.State},
	}
	if !sh.Healthy {
		resp.Status = "degraded"
		resp.Browser.Status = "disconnected"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) browserHealth(w http.ResponseWriter, _ *http.Request) {
	if h.service.SessionHealth().Healthy {
		writeJSON(w, http.StatusOK, browserHealthResponse{
			Healthy: true,
			Status:  "connected",
			Message: "Browser đang hoạt động bình thường",
		})
		return
	}
	writeJSON(w, http.StatusOK, browserHealthResponse{
		Healthy: false,
		Status:  "disconnected",
		Message: "Browser không hoạt động",
	})
}

func (h *Handler) restartBrowser(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.RestartSession(r.Context()))
}

func (h *Handler) cacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.service.CacheInfo())
}

func (h *Handler) clearCache(w http.ResponseWriter, _ *http.Request) {
	n := h.service.ClearCache()
	writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

// evictCache drops one plate's cached result. vehicleType defaults to car.
func (h *Handler) evictCache(w http.ResponseWriter, r *http.Request) {
	class, err := model.ParseVehicleClass(r.URL.Query().Get("vehicleType"))
	if err != nil {
		writeError(w, http.StatusBadRequest, msgVehicleType)
		return
	}
	t := model.Target{PlateNumber: chi.URLParam(r, "plateNumber"), VehicleClass: class}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":     t.CacheKey(),
		"evicted": h.service.EvictCache(t),
	})
}
