package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"pdptw/internal/model"
	"pdptw/internal/opt"
	"pdptw/internal/store"
)

// SolveHandler handles POST /v1/solve
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
	var req model.SolveRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 32<<20))
	if err := dec.Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	run, err := s.Runs.Submit(r.Context(), req)
	if errors.Is(err, opt.ErrInvalidArgument) {
		writeProblemErrors(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path, validationErrors(err))
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Submit failed", err.Error(), r.URL.Path)
		return
	}
	w.Header().Set("Location", "/v1/runs/"+run.ID)
	writeJSON(w, http.StatusAccepted, model.SolveAccepted{RunID: run.ID, Status: run.Status})
}

// ListRunsHandler handles GET /v1/runs?status=&cursor=&limit=
func (s *Server) ListRunsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 100
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be a positive integer", r.URL.Path)
			return
		}
		limit = n
	}
	items, next, err := s.Store.ListRuns(r.Context(), q.Get("status"), q.Get("cursor"), limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List runs failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// GetRunHandler handles GET /v1/runs/{id}
func (s *Server) GetRunHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// CancelRunHandler handles DELETE /v1/runs/{id}
func (s *Server) CancelRunHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.Runs.Cancel(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Run not found", id, r.URL.Path)
	case errors.Is(err, errRunFinished), errors.Is(err, errRunNotLocal):
		writeProblem(w, http.StatusConflict, "Run cannot be cancelled", err.Error(), r.URL.Path)
	case err != nil:
		writeProblem(w, http.StatusInternalServerError, "Cancel failed", err.Error(), r.URL.Path)
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"runId": id, "status": "cancelling"})
	}
}

// SnapshotsHandler handles GET /v1/runs/{id}/snapshots
func (s *Server) SnapshotsHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	items, err := s.Store.ListSnapshots(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Run not found", id, r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List snapshots failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// RunMetricsHandler handles GET /v1/runs/{id}/metrics. Search metrics are
// kept in memory by the process that executed the run.
func (s *Server) RunMetricsHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	ms, found := opt.GetMetrics(run.ID)
	if !found {
		writeProblem(w, http.StatusNotFound, "Metrics not available", "run is still active or was executed elsewhere", r.URL.Path)
		return
	}
	items := make([]map[string]any, 0, len(ms))
	for i, m := range ms {
		items = append(items, map[string]any{
			"subProblem":     i,
			"iterations":     m.Iterations,
			"improvements":   m.Improvements,
			"acceptedWorse":  m.AcceptedWorse,
			"tabuRejected":   m.TabuRejected,
			"bestCost":       m.BestCost,
			"bestUnassigned": m.BestUnassigned,
			"finalCost":      m.FinalCost,
			"snapshots":      len(m.Snapshots),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"runId": run.ID, "items": items})
}

// WebhookDeliveriesHandler handles GET /v1/runs/{id}/webhooks?status=
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	ds, err := s.Store.ListWebhookDeliveries(r.Context(), run.ID, r.URL.Query().Get("status"))
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List deliveries failed", err.Error(), r.URL.Path)
		return
	}
	items := make([]map[string]any, 0, len(ds))
	for _, d := range ds {
		items = append(items, map[string]any{
			"id":           d.ID,
			"eventType":    d.EventType,
			"url":          d.URL,
			"status":       d.Status,
			"attempts":     d.Attempts,
			"lastError":    d.LastError,
			"responseCode": d.ResponseCode,
			"latencyMs":    d.LatencyMs,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// AlgorithmsHandler lists the strategy names of every family and the defaults.
func (s *Server) AlgorithmsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"generation":    opt.Names(opt.ValidGenerations),
		"removal":       opt.Names(opt.ValidRemovals),
		"insertion":     opt.Names(opt.ValidInsertions),
		"optimization":  opt.Names(opt.ValidOptimizations),
		"objective":     opt.Names(opt.ValidObjectives),
		"scheduler":     opt.Names(opt.ValidSchedulers),
		"decomposition": opt.Names(opt.ValidDecompositions),
		"defaults":      opt.DefaultAlgorithms,
		"search":        opt.WithDefaults(model.SearchParams{}),
	})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler reports whether the store (and Redis broker, if any) respond.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Ping(r.Context()); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Store not ready", err.Error(), r.URL.Path)
		return
	}
	if rb, ok := s.Broker.(*RedisBroker); ok {
		if err := rb.Ping(r.Context()); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Broker not ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) (model.Run, bool) {
	id := r.PathValue("id")
	run, err := s.Store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Run not found", id, r.URL.Path)
		return model.Run{}, false
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get run failed", err.Error(), r.URL.Path)
		return model.Run{}, false
	}
	return run, true
}
