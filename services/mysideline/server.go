package mysideline

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// Handler exposes the operator API for the ingestion pipeline.
//
//	POST /v1/sync/trigger        start a run now
//	GET  /v1/sync/runs           recent run history (?limit=)
//	GET  /v1/sync/runs/{cid}     a single run by correlation id
//	GET  /v1/sync/stats          aggregate stats (?window_days=)
//	GET  /healthz
func (s *Service) Handler() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/sync/trigger", s.handleTrigger)
	mux.HandleFunc("/v1/sync/runs", s.handleListRuns)
	mux.HandleFunc("/v1/sync/runs/", s.handleGetRun)
	mux.HandleFunc("/v1/sync/stats", s.handleStats)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *Service) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	result, err := s.TriggerRunNow(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to trigger run", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to trigger run")
		return
	}
	status := http.StatusAccepted
	if !result.Accepted {
		status = http.StatusConflict
	}
	writeJson(w, status, result)
}

func (s *Service) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	runs, err := s.ListRecentRuns(r.Context(), limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list runs", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	writeJson(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Service) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	cid := strings.TrimPrefix(r.URL.Path, "/v1/sync/runs/")
	if cid == "" || strings.Contains(cid, "/") {
		writeError(w, http.StatusBadRequest, "invalid correlation id")
		return
	}
	run, found, err := s.GetRunStatus(r.Context(), cid)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to get run", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no run with that correlation id")
		return
	}
	writeJson(w, http.StatusOK, run)
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	windowDays := 30
	if raw := r.URL.Query().Get("window_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "window_days must be a positive integer")
			return
		}
		windowDays = parsed
	}
	stats, err := s.GetStats(r.Context(), windowDays)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to compute stats", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	writeJson(w, http.StatusOK, stats)
}

func writeJson(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJson(w, status, map[string]string{"error": message})
}
