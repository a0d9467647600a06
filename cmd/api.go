package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/udo-labs/udo-engine/internal/engine"
	"github.com/udo-labs/udo-engine/internal/model"
	"github.com/udo-labs/udo-engine/internal/notify"
)

func newRouter(e *env, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/projects/{projectID}", func(r chi.Router) {
		r.Get("/status", handleStatus(e))
		r.Put("/vector", handleUpdateVector(e))
		r.Post("/acknowledge", handleAcknowledge(e))
		r.Post("/analyze", handleAnalyze(e))
		r.Post("/overrun", handleOverrun(e))
		r.Post("/outcome", handleOutcome(e))
	})

	r.Method(http.MethodGet, "/ws", notify.NewWSHandler(e.Hub, nil))

	return r
}

func handleStatus(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := e.Engine.Status(r.Context(), chi.URLParam(r, "projectID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func handleUpdateVector(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var v model.Vector
		if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		st, err := e.Engine.UpdateVector(r.Context(), chi.URLParam(r, "projectID"), v)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func handleAcknowledge(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			MitigationID  string  `json:"mitigation_id"`
			AppliedImpact float64 `json:"applied_impact"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if req.MitigationID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "mitigation_id is required"})
			return
		}
		res, err := e.Engine.Acknowledge(r.Context(), chi.URLParam(r, "projectID"), req.MitigationID, req.AppliedImpact)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleAnalyze(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ac engine.AnalysisContext
		if err := json.NewDecoder(r.Body).Decode(&ac); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		st, err := e.Engine.Analyze(r.Context(), chi.URLParam(r, "projectID"), ac)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func handleOverrun(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Ratio float64 `json:"ratio"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if req.Ratio <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ratio must be positive"})
			return
		}
		st, err := e.Engine.OnTimeOverrun(r.Context(), chi.URLParam(r, "projectID"), req.Ratio)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func handleOutcome(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Verdict model.Verdict `json:"verdict"`
			Correct bool          `json:"correct"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if err := e.Engine.RecordOutcome(r.Context(), chi.URLParam(r, "projectID"), req.Verdict, req.Correct); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

// writeError maps the engine's error taxonomy onto HTTP statuses. An
// unavailable source carries a Retry-After hint in whole seconds.
func writeError(w http.ResponseWriter, err error) {
	if ue, ok := model.AsUnavailable(err); ok {
		secs := int(ue.RetryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "temporarily unavailable"})
		return
	}

	var status int
	switch {
	case model.IsNotFound(err):
		status = http.StatusNotFound
	case model.IsValidation(err):
		status = http.StatusBadRequest
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
