// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jonboulle/clockwork"

	"github.com/davidtorcivia/song-voter/library"
	"github.com/davidtorcivia/song-voter/middleware"
	"github.com/davidtorcivia/song-voter/models"
	"github.com/davidtorcivia/song-voter/settings"
	"github.com/davidtorcivia/song-voter/voting"
)

type ResultsHandler struct {
	stats    *voting.Aggregator
	blocks   *voting.BlockStore
	songs    *library.Store
	settings *settings.Store
}

func NewResultsHandler(db *sql.DB, clock clockwork.Clock) *ResultsHandler {
	return &ResultsHandler{
		stats:    voting.NewAggregator(db),
		blocks:   voting.NewBlockStore(db, clock),
		songs:    library.NewStore(db, clock),
		settings: settings.NewStore(db),
	}
}

// canViewResults writes a 403 unless results are public or the caller is
// an admin
func (h *ResultsHandler) canViewResults(w http.ResponseWriter, r *http.Request) bool {
	if middleware.IsAdmin(r) {
		return true
	}

	s, err := h.settings.Load(r.Context())
	if err != nil {
		slog.Error("failed to load settings", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return false
	}
	if !s.ResultsPublic {
		middleware.ErrorResponse(w, http.StatusForbidden, "Results are not public")
		return false
	}
	return true
}

// GetResults handles GET /api/results
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	if !h.canViewResults(w, r) {
		return
	}

	results, err := h.stats.AllResults(r.Context(), nil)
	if err != nil {
		slog.Error("failed to compute results", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to compute results")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ResultsResponse{Results: results})
}

// GetBlockResults handles GET /api/blocks/{slug}/results
func (h *ResultsHandler) GetBlockResults(w http.ResponseWriter, r *http.Request) {
	if !h.canViewResults(w, r) {
		return
	}

	block, err := h.blocks.GetBySlug(r.Context(), r.PathValue("slug"))
	if errors.Is(err, voting.ErrBlockNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Vote block not found")
		return
	}
	if err != nil {
		slog.Error("failed to load vote block", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	results, err := h.stats.AllResults(r.Context(), &block.ID)
	if err != nil {
		slog.Error("failed to compute block results", "error", err, "block_id", block.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to compute results")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ResultsResponse{Results: results})
}

// GetSongStats handles GET /api/songs/{id}/stats. It follows the same
// visibility rule as the full results.
func (h *ResultsHandler) GetSongStats(w http.ResponseWriter, r *http.Request) {
	if !h.canViewResults(w, r) {
		return
	}

	songID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.songs.Get(r.Context(), songID); err != nil {
		if errors.Is(err, library.ErrSongNotFound) {
			middleware.ErrorResponse(w, http.StatusNotFound, "Song not found")
			return
		}
		slog.Error("failed to load song", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	stats, err := h.stats.StatsFor(r.Context(), songID)
	if err != nil {
		slog.Error("failed to compute stats", "error", err, "song_id", songID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, stats)
}
