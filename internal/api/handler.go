package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anupdhamala/taskfold/internal/config"
	"github.com/anupdhamala/taskfold/internal/engine"
	"github.com/anupdhamala/taskfold/internal/metrics"
)

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng    *engine.Engine
	loader *config.Loader
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(eng *engine.Engine, loader *config.Loader) http.Handler {
	h := &Handler{eng: eng, loader: loader, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/tasks", h.createTask)
	h.mux.HandleFunc("POST /v1/edges", h.addEdge)
	h.mux.HandleFunc("DELETE /v1/edges", h.removeEdge)
	h.mux.HandleFunc("POST /v1/tasks/{id}/invalidate", h.invalidateTask)
	h.mux.HandleFunc("GET /v1/tasks/{id}/stats", h.taskStats)
	h.mux.HandleFunc("POST /v1/config/reload", h.reloadConfig)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

// POST /v1/tasks — create a task.
func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID    string `json:"id"`
		Dirty bool   `json:"dirty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "task id is required")
		return
	}
	h.eng.AddTask(req.ID, req.Dirty)
	writeJSON(w, http.StatusCreated, map[string]any{"id": req.ID, "dirty": req.Dirty})
}

type edgeRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func decodeEdge(w http.ResponseWriter, r *http.Request) (edgeRequest, bool) {
	var req edgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return req, false
	}
	if req.From == "" || req.To == "" {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return req, false
	}
	return req, true
}

// POST /v1/edges — add a task graph edge.
func (h *Handler) addEdge(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEdge(w, r)
	if !ok {
		return
	}
	if err := h.eng.Connect(req.From, req.To); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// DELETE /v1/edges — remove a task graph edge.
func (h *Handler) removeEdge(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEdge(w, r)
	if !ok {
		return
	}
	if err := h.eng.Disconnect(req.From, req.To); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// POST /v1/tasks/{id}/invalidate — mark dirty and recompute. With
// ?wait=true the response carries the recompute result.
func (h *Handler) invalidateTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if r.URL.Query().Get("wait") == "true" {
		res, err := h.eng.InvalidateSync(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}
	runID, queued, err := h.eng.InvalidateAsync(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	status := http.StatusAccepted
	if !queued {
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, map[string]any{"run_id": runID, "queued": queued})
}

// GET /v1/tasks/{id}/stats — aggregated statistics for the subtree.
func (h *Handler) taskStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.eng.Aggregate(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// POST /v1/config/reload — hot-reload the declared tasks from disk.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := config.Validate(cfg); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.eng.ApplyConfig(cfg)
	writeJSON(w, http.StatusOK, map[string]any{
		"reloaded":    true,
		"tasks_count": len(cfg.Tasks),
	})
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 if the recompute queue is >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.eng.QueueUtilization()
	metrics.QueueUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ready",
		"queue_utilization": util,
	})
}
