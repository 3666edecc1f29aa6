package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "docpoller",
	})
}

// StatusResponse is returned by GET /api/status
type StatusResponse struct {
	Mode     string                 `json:"mode"`
	Uptime   float64                `json:"uptime_seconds"`
	Poller   interface{}            `json:"poller,omitempty"`
	Session  interface{}            `json:"session,omitempty"`
	Settings map[string]interface{} `json:"config,omitempty"`
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Mode:     s.cfg.Mode,
		Uptime:   time.Since(s.started).Seconds(),
		Settings: s.cfg.Settings,
	}
	if s.cfg.Poller != nil {
		resp.Poller = s.cfg.Poller.Snapshot()
	}
	if s.cfg.Session != nil {
		resp.Session = s.cfg.Session.Info()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleRunPoll handles POST /api/poll/run
func (s *Server) handleRunPoll(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Trigger == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "error",
			"message": "Poller not available",
		})
		return
	}

	message := "Poll cycle requested"
	if !s.cfg.Trigger.Trigger() {
		message = "Poll cycle already requested"
	}
	s.log.Info().Str("request_id", requestID(r)).Msg("Manual poll triggered")

	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"message": message,
	})
}

// handleEvents handles GET /api/events?limit=N
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Events == nil {
		s.writeJSON(w, http.StatusOK, []interface{}{})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{
				"status":  "error",
				"message": "limit must be a non-negative integer",
			})
			return
		}
		limit = n
	}

	s.writeJSON(w, http.StatusOK, s.cfg.Events.Recent(limit))
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
