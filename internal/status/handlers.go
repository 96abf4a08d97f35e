package status

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/flemzord/hostsync/internal/cron"
	"github.com/flemzord/hostsync/internal/history"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string `json:"status"` // "ok" or "degraded"
	State  string `json:"state"`
}

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	UptimeSeconds int64           `json:"uptime_seconds"`
	State         string          `json:"state"`
	NextRun       *time.Time      `json:"next_run,omitempty"`
	LastSuccess   *history.Record `json:"last_success,omitempty"`
}

// handleHealth returns 200 while the scheduler is running, 503 otherwise.
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		state := s.deps.Scheduler.State()
		resp := HealthResponse{Status: "ok", State: state.String()}
		code := http.StatusOK
		if state != cron.StateRunning {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}

func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
			State:         s.deps.Scheduler.State().String(),
		}
		if next := s.deps.Scheduler.Next(); !next.IsZero() {
			resp.NextRun = &next
		}
		if s.deps.History != nil {
			rec, ok, err := s.deps.History.LastSuccess(r.Context())
			if err != nil {
				s.logger.Error("status: reading last success", "error", err)
			} else if ok {
				resp.LastSuccess = &rec
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.History == nil {
			http.Error(w, "history disabled", http.StatusNotFound)
			return
		}

		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = min(n, maxHistoryLimit)
		}

		recs, err := s.deps.History.Recent(r.Context(), limit)
		if err != nil {
			s.logger.Error("status: reading history", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if recs == nil {
			recs = []history.Record{}
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
