// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/davidtorcivia/song-voter/middleware"
	"github.com/davidtorcivia/song-voter/models"
	"github.com/davidtorcivia/song-voter/voting"
)

type VotingHandler struct {
	votes *voting.Service
}

func NewVotingHandler(votes *voting.Service) *VotingHandler {
	return &VotingHandler{votes: votes}
}

// SubmitVote handles POST /api/songs/{id}/vote
func (h *VotingHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	songID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req models.SubmitVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	stats, err := h.votes.Submit(r.Context(), songID, req, callerFrom(r))
	if err != nil {
		writeVoteError(w, err, songID)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.SubmitVoteResponse{
		Success: true,
		Stats:   stats,
	})
}

// writeVoteError maps a vote error to its response. Unexpected errors are
// logged and reported without detail.
func writeVoteError(w http.ResponseWriter, err error, songID int64) {
	var rateErr *voting.RateLimitedError
	if errors.As(err, &rateErr) {
		middleware.RateLimitResponse(w, rateErr.RetryAfter, rateErr.Error())
		return
	}

	status := voting.StatusCode(err)
	if status == http.StatusInternalServerError {
		slog.Error("failed to record vote", "error", err, "song_id", songID)
		middleware.ErrorResponse(w, status, "Failed to record vote")
		return
	}

	slog.Info("vote rejected", "song_id", songID, "reason", err.Error())
	middleware.ErrorResponse(w, status, err.Error())
}
