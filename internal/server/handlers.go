package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/xfw5/Market-Research/internal/modules/execution"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// handleHealth reports healthy when every database answers
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.cfg.Databases))
	healthy := true
	for _, db := range s.cfg.Databases {
		if err := db.HealthCheck(r.Context()); err != nil {
			checks[db.Name()] = err.Error()
			healthy = false
			continue
		}
		checks[db.Name()] = "ok"
	}

	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":         state,
		"service":        "market-research-engine",
		"uptime_seconds": int64(time.Since(s.startupTime).Seconds()),
		"databases":      checks,
	})
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cfg.Engine.Status())
}

// handleLastCycle handles GET /api/cycle/last
func (s *Server) handleLastCycle(w http.ResponseWriter, r *http.Request) {
	report := s.cfg.Engine.LastReport()
	if report == nil {
		s.writeError(w, http.StatusNotFound, "no cycle has run yet")
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

// handleRunCycle handles POST /api/cycle/run
func (s *Server) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	report, err := s.cfg.Engine.RunCycle(r.Context())
	if errors.Is(err, execution.ErrCycleInProgress) {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("Manual cycle failed")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

// handleRegimeHistory handles GET /api/regime/history?limit=&changes=true
func (s *Server) handleRegimeHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	history := s.cfg.Engine.History()
	entries := history.Recent(limit)
	if changes, _ := strconv.ParseBool(r.URL.Query().Get("changes")); changes {
		entries = history.Changes(limit)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   history.Len(),
	})
}

// handleProfitMonitor handles GET /api/risk/profit-monitor
func (s *Server) handleProfitMonitor(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"statuses": s.cfg.Engine.Monitor().Snapshots(),
	})
}

// handleFills handles GET /api/paper/fills?limit=
func (s *Server) handleFills(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Fills == nil {
		s.writeError(w, http.StatusNotFound, "paper broker not configured")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fills, err := s.cfg.Fills.Fills(limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load fills")
		s.writeError(w, http.StatusInternalServerError, "failed to load fills")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"fills": fills})
}

// handleJobs handles GET /api/scheduler/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Jobs == nil {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": []interface{}{}})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": s.cfg.Jobs.Jobs()})
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
