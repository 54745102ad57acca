package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/pixelcoders/roadmap-progress/internal/application/command"
	"github.com/pixelcoders/roadmap-progress/internal/application/query"
	"github.com/pixelcoders/roadmap-progress/internal/domain/gamification"
	"github.com/pixelcoders/roadmap-progress/internal/domain/progress"
	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
	"github.com/pixelcoders/roadmap-progress/internal/interface/http/handlers"
	"github.com/pixelcoders/roadmap-progress/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleLive handles the liveness probe endpoint.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// handleReady handles the readiness probe endpoint. A degraded cache still
// reports ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSON(w, r, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type completeNodeRequest struct {
	NodeID string `json:"node_id"`
}

type completeNodeResponse struct {
	progress.View
	Changed              bool                      `json:"changed"`
	XPGained             int                       `json:"xp_gained"`
	LeveledUp            bool                      `json:"leveled_up"`
	GameState            gamification.View         `json:"game_state"`
	UnlockedAchievements []gamification.UnlockView `json:"unlocked_achievements"`
}

// handleCompleteNode handles POST /api/v1/progress/{roadmapId}/complete-node
func (s *Server) handleCompleteNode(w http.ResponseWriter, r *http.Request) {
	var req completeNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "Request body is required")
			return
		}
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "Request body must be JSON with node_id")
		return
	}

	res, err := s.deps.CompleteNode.Handle(r.Context(), command.CompleteNodeCommand{
		UserID:        handlers.UserIDFrom(r.Context()),
		RoadmapID:     r.PathValue("roadmapId"),
		NodeID:        req.NodeID,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, completeNodeResponse{
		View:                 res.Progress,
		Changed:              res.Changed,
		XPGained:             res.XPGained,
		LeveledUp:            res.LeveledUp,
		GameState:            res.GameState,
		UnlockedAchievements: res.Unlocked,
	})
}

// handleListProgress handles GET /api/v1/progress
func (s *Server) handleListProgress(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Progress.Handle(r.Context(), query.GetProgressQuery{
		UserID: handlers.UserIDFrom(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res.Progress)
}

// handleGetRoadmapProgress handles GET /api/v1/progress/{roadmapId}
func (s *Server) handleGetRoadmapProgress(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Progress.HandleRoadmap(r.Context(), query.GetRoadmapProgressQuery{
		UserID:    handlers.UserIDFrom(r.Context()),
		RoadmapID: r.PathValue("roadmapId"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// GAMIFICATION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleUserAchievements handles GET /api/v1/user-achievements
func (s *Server) handleUserAchievements(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Achievements.HandleUser(r.Context(), query.GetUserAchievementsQuery{
		UserID: handlers.UserIDFrom(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res.Achievements)
}

// handleListAchievements handles GET /api/v1/achievements
func (s *Server) handleListAchievements(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.deps.Achievements.Definitions())
}

// handleGameState handles GET /api/v1/game-state
func (s *Server) handleGameState(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.GameState.Handle(r.Context(), query.GetGameStateQuery{
		UserID: handlers.UserIDFrom(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListRoadmaps handles GET /api/v1/roadmaps
func (s *Server) handleListRoadmaps(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Roadmaps.List(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, list)
}

// handleGetRoadmap handles GET /api/v1/roadmaps/{roadmapId}
func (s *Server) handleGetRoadmap(w http.ResponseWriter, r *http.Request) {
	g, err := s.deps.Roadmaps.Get(r.Context(), r.PathValue("roadmapId"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, g)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps error kinds to status codes. Unavailable errors
// are retryable and carry Retry-After.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case shared.IsInvalidNode(err):
		writeJSONError(w, r, http.StatusBadRequest, "invalid_node", err.Error())
	case shared.IsNotFound(err):
		writeJSONError(w, r, http.StatusNotFound, "not_found", err.Error())
	case shared.IsValidation(err):
		writeJSONError(w, r, http.StatusBadRequest, "validation_error", err.Error())
	case shared.IsUnavailable(err), shared.IsConflict(err),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, r, http.StatusServiceUnavailable, "unavailable", "The service is temporarily unavailable, please retry")
	default:
		logger.FromContext(r.Context()).Error("unhandled error", logger.Err(err), logger.String("path", r.URL.Path))
		writeJSONError(w, r, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
	}
}
