package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/NhanHo/screepsmod-stats/internal/application/command"
	"github.com/NhanHo/screepsmod-stats/internal/application/query"
	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
	"github.com/NhanHo/screepsmod-stats/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":    "Stats Engine API",
		"version": "v1",
		"endpoints": map[string]string{
			"health":      "/healthz",
			"leaderboard": "/api/leaderboard/list",
			"seasons":     "/api/leaderboard/seasons",
			"user_stats":  "/api/user/stats",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"uptime": s.Uptime().String(),
	})
}

// handleLive handles the liveness probe endpoint.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleLeaderboardList handles GET /api/leaderboard/list.
func (s *Server) handleLeaderboardList(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetLeaderboard == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Leaderboard handler not configured")
		return
	}

	q := query.GetLeaderboardQuery{
		Mode:   getQueryParam(r, "mode", "world"),
		Season: r.URL.Query().Get("season"),
		Limit:  getQueryParamInt(r, "limit", 10),
		Offset: getQueryParamInt(r, "offset", 0),
	}

	result, err := s.deps.GetLeaderboard.Handle(r.Context(), q)
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleLeaderboardFind handles GET /api/leaderboard/find.
func (s *Server) handleLeaderboardFind(w http.ResponseWriter, r *http.Request) {
	if s.deps.FindLeaderboardEntry == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Leaderboard handler not configured")
		return
	}

	q := query.FindLeaderboardEntryQuery{
		Mode:   getQueryParam(r, "mode", "world"),
		User:   r.URL.Query().Get("user"),
		Season: r.URL.Query().Get("season"),
	}

	result, err := s.deps.FindLeaderboardEntry.Handle(r.Context(), q)
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleLeaderboardSeasons handles GET /api/leaderboard/seasons.
func (s *Server) handleLeaderboardSeasons(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListSeasons == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Seasons handler not configured")
		return
	}

	result, err := s.deps.ListSeasons.Handle(r.Context())
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// STATS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleUserStats handles GET /api/user/stats.
func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetUserStats == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "User stats handler not configured")
		return
	}

	q := query.GetUserStatsQuery{
		User:     r.URL.Query().Get("id"),
		Interval: getQueryParamInt(r, "interval", 8),
	}

	result, err := s.deps.GetUserStats.Handle(r.Context(), q)
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// roomOverviewRequest is the POST body of /api/game/room-overview.
type roomOverviewRequest struct {
	Room     string `json:"room"`
	Interval int    `json:"interval"`
}

// handleRoomOverview handles POST /api/game/room-overview.
func (s *Server) handleRoomOverview(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetRoomOverview == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Room overview handler not configured")
		return
	}

	var req roomOverviewRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Interval == 0 {
		req.Interval = 8
	}

	result, err := s.deps.GetRoomOverview.Handle(r.Context(), query.GetRoomOverviewQuery{
		Room:     req.Room,
		Interval: req.Interval,
	})
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// mapStatsRequest is the POST body of /api/game/map-stats.
type mapStatsRequest struct {
	Rooms    []string `json:"rooms"`
	StatName string   `json:"statName"`
}

// handleMapStats handles POST /api/game/map-stats.
func (s *Server) handleMapStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetMapStats == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Map stats handler not configured")
		return
	}

	var req mapStatsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.GetMapStats.Handle(r.Context(), query.GetMapStatsQuery{
		Rooms:    req.Rooms,
		StatName: req.StatName,
	})
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// recordStatsRequest is the POST body of /api/game/stats: one tick's
// worth of counter increments.
type recordStatsRequest struct {
	Increments []struct {
		Room   string `json:"room"`
		User   string `json:"user"`
		Metric string `json:"metric"`
		Amount int64  `json:"amount"`
	} `json:"increments"`
}

// handleRecordStats handles POST /api/game/stats.
func (s *Server) handleRecordStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.RecordMetrics == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Record handler not configured")
		return
	}

	var req recordStatsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	batch := command.RecordMetricBatchCommand{
		Increments: make([]command.RecordMetricCommand, len(req.Increments)),
	}
	for i, inc := range req.Increments {
		batch.Increments[i] = command.RecordMetricCommand{
			Room:   inc.Room,
			User:   inc.User,
			Metric: inc.Metric,
			Amount: inc.Amount,
		}
	}

	result := s.deps.RecordMetrics.HandleBatch(r.Context(), batch)
	writeJSON(w, http.StatusOK, map[string]int{
		"accepted": result.Accepted,
		"rejected": result.Rejected,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleAdminRotateSeason handles POST /api/admin/season/rotate.
func (s *Server) handleAdminRotateSeason(w http.ResponseWriter, r *http.Request) {
	if s.deps.RotateSeason == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Rotate handler not configured")
		return
	}

	result, err := s.deps.RotateSeason.Handle(r.Context(), command.RotateSeasonCommand{})
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"season":    result.Season.ID.String(),
		"name":      result.Season.Name,
		"created":   result.Created,
		"activated": result.Activated,
	})
}

// handleAdminResetSeason handles POST /api/admin/season/reset.
func (s *Server) handleAdminResetSeason(w http.ResponseWriter, r *http.Request) {
	if s.deps.ResetSeason == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Reset handler not configured")
		return
	}

	if err := s.deps.ResetSeason.Handle(r.Context()); err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// handleAdminRecompute handles POST /api/admin/recompute.
func (s *Server) handleAdminRecompute(w http.ResponseWriter, r *http.Request) {
	if s.deps.RecomputeStats == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Recompute handler not configured")
		return
	}

	if err := s.deps.RecomputeStats.Handle(r.Context()); err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "recompute triggered"})
}

// handleAdminFlush handles POST /api/admin/flush.
func (s *Server) handleAdminFlush(w http.ResponseWriter, r *http.Request) {
	if s.deps.FlushStats == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Flush handler not configured")
		return
	}

	result, err := s.deps.FlushStats.Handle(r.Context())
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"events_flushed": result.EventsFlushed})
}

// handleAdminClearStats handles POST /api/admin/clear-stats.
func (s *Server) handleAdminClearStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.ClearStats == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Clear handler not configured")
		return
	}

	result, err := s.deps.ClearStats.Handle(r.Context())
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"granularities_cleared": result.GranularitiesCleared,
	})
}

// jobStatusDTO is one background job in the admin jobs report.
type jobStatusDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schedule    string `json:"schedule"`
	LastRun     string `json:"last_run,omitempty"`
	NextRun     string `json:"next_run,omitempty"`
	RunCount    int64  `json:"run_count"`
	FailCount   int64  `json:"fail_count"`
	LastSuccess *bool  `json:"last_success,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}

// handleAdminJobs handles GET /api/admin/jobs.
func (s *Server) handleAdminJobs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Job status not configured")
		return
	}

	infos := s.deps.Jobs.ListJobs()
	jobs := make([]jobStatusDTO, len(infos))
	for i, info := range infos {
		dto := jobStatusDTO{
			Name:        info.Name,
			Description: info.Description,
			Schedule:    info.Schedule,
			RunCount:    info.RunCount,
			FailCount:   info.FailCount,
		}
		if !info.LastRun.IsZero() {
			dto.LastRun = info.LastRun.UTC().Format(time.RFC3339)
		}
		if !info.NextRun.IsZero() {
			dto.NextRun = info.NextRun.UTC().Format(time.RFC3339)
		}
		if info.LastResult != nil {
			success := info.LastResult.Success
			dto.LastSuccess = &success
			if info.LastResult.Error != nil {
				dto.LastError = info.LastResult.Error.Error()
			}
		}
		jobs[i] = dto
	}

	snap := s.deps.Jobs.MetricsSnapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs": jobs,
		"totals": map[string]interface{}{
			"executions": snap.TotalExecutions,
			"successes":  snap.TotalSuccesses,
			"failures":   snap.TotalFailures,
		},
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody decodes a JSON request body, writing a 400 on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Malformed JSON request body")
		return false
	}
	return true
}

// writeQueryError maps domain errors onto HTTP statuses.
func (s *Server) writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case shared.IsInvalidParams(err):
		writeJSONError(w, http.StatusBadRequest, "invalid_params", err.Error())
	case errors.Is(err, shared.ErrNoActiveSeason):
		writeJSONError(w, http.StatusNotFound, "no_active_season", "No active season")
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		s.logger.Error("request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
			logger.Err(err),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Request failed")
	}
}
