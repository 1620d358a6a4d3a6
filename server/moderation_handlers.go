package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"MSMA/logger"
	"MSMA/model"

	"github.com/gorilla/mux"
)

// ListPendingTracksHandler returns the tracks awaiting human review, oldest
// first.
func (h *APIHandler) ListPendingTracksHandler(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.trackRepo.ListByStatus(r.Context(), model.StatusReviewPending)
	if err != nil {
		logger.Error("failed to list pending tracks", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to list pending tracks")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tracks": tracks,
		"count":  len(tracks),
	})
}

type moderationRequest struct {
	Action string `json:"action"`
}

// ModerateTrackHandler applies a moderator decision to a REVIEW_PENDING
// track: publish or reject. The status check and the write are a single
// guarded update, so two moderators racing on the same track produce exactly
// one outcome.
func (h *APIHandler) ModerateTrackHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid track id")
		return
	}

	var req moderationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var target model.TrackStatus
	switch req.Action {
	case "publish":
		target = model.StatusPublished
	case "reject":
		target = model.StatusRejected
	default:
		respondError(w, http.StatusBadRequest, "action must be publish or reject")
		return
	}

	applied, err := h.trackRepo.Moderate(r.Context(), id, target)
	if err != nil {
		logger.Error("failed to moderate track",
			logger.Int64("trackId", id), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to moderate track")
		return
	}
	if !applied {
		respondError(w, http.StatusConflict, "track is not awaiting review")
		return
	}

	logger.Info("moderation decision applied",
		logger.Int64("trackId", id),
		logger.String("action", req.Action),
		logger.Int64("moderatorId", userIDFromContext(r.Context())))

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":     id,
		"status": target,
	})
}
