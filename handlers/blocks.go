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
	"github.com/davidtorcivia/song-voter/session"
	"github.com/davidtorcivia/song-voter/settings"
	"github.com/davidtorcivia/song-voter/voting"
)

type BlockHandler struct {
	blocks   *voting.BlockStore
	songs    *library.Store
	settings *settings.Store
	clock    clockwork.Clock
}

func NewBlockHandler(db *sql.DB, clock clockwork.Clock) *BlockHandler {
	return &BlockHandler{
		blocks:   voting.NewBlockStore(db, clock),
		songs:    library.NewStore(db, clock),
		settings: settings.NewStore(db),
		clock:    clock,
	}
}

// blockStatus maps block store validation errors to 400
func blockStatus(err error) int {
	switch {
	case errors.Is(err, voting.ErrBlockNotFound):
		return http.StatusNotFound
	case errors.Is(err, voting.ErrBlockNameRequired),
		errors.Is(err, voting.ErrBlockNoSongs),
		errors.Is(err, voting.ErrUnknownSong),
		errors.Is(err, settings.ErrInvalidRestriction),
		errors.Is(err, settings.ErrInvalidListenTime):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeBlockError(w http.ResponseWriter, err error, op string) {
	status := blockStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("vote block operation failed", "op", op, "error", err)
		middleware.ErrorResponse(w, status, "Failed to "+op+" vote block")
		return
	}
	if status == http.StatusNotFound {
		middleware.ErrorResponse(w, status, "Vote block not found")
		return
	}
	middleware.ErrorResponse(w, status, err.Error())
}

// ListBlocks handles GET /admin/blocks
func (h *BlockHandler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.blocks.List(r.Context())
	if err != nil {
		writeBlockError(w, err, "list")
		return
	}
	if blocks == nil {
		blocks = []*models.VoteBlock{}
	}
	middleware.JSONResponse(w, http.StatusOK, models.BlocksResponse{Blocks: blocks})
}

// CreateBlock handles POST /admin/blocks
func (h *BlockHandler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	var req models.CreateBlockRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	id, slug, err := h.blocks.Create(r.Context(), req, adminID(r))
	if err != nil {
		writeBlockError(w, err, "create")
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.CreateBlockResponse{
		Success: true,
		BlockID: id,
		Slug:    slug,
	})
}

// GetBlock handles GET /admin/blocks/{id}
func (h *BlockHandler) GetBlock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	block, err := h.blocks.Get(r.Context(), id)
	if err != nil {
		writeBlockError(w, err, "load")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, block)
}

// UpdateBlock handles PUT /admin/blocks/{id}
func (h *BlockHandler) UpdateBlock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req models.UpdateBlockRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := h.blocks.Update(r.Context(), id, req); err != nil {
		writeBlockError(w, err, "update")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.SuccessResponse{Success: true})
}

// DeleteBlock handles DELETE /admin/blocks/{id}
func (h *BlockHandler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.blocks.Delete(r.Context(), id); err != nil {
		writeBlockError(w, err, "delete")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.SuccessResponse{Success: true})
}

// ViewBlock handles GET /api/blocks/{slug}. Songs are withheld until the
// caller has passed the block password.
func (h *BlockHandler) ViewBlock(w http.ResponseWriter, r *http.Request) {
	block, err := h.blocks.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeBlockError(w, err, "load")
		return
	}

	s, err := h.settings.Load(r.Context())
	if err != nil {
		slog.Error("failed to load settings", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	sess := session.FromContext(r.Context())
	authorized := !block.HasPassword || middleware.IsAdmin(r) ||
		(sess != nil && sess.BlockAuthorized(block.ID))

	view := models.BlockView{
		ID:               block.ID,
		Name:             block.Name,
		Slug:             block.Slug,
		ExpiresAt:        block.ExpiresAt,
		Expired:          block.ExpiresAt != nil && h.clock.Now().After(*block.ExpiresAt),
		OneTimeUse:       block.OneTimeUse,
		PasswordRequired: block.HasPassword,
		Authorized:       authorized,
		DisableSkip:      s.DisableSkip,
		MinListenSeconds: s.MinListenSeconds,
		Songs:            []models.Song{},
	}
	if block.DisableSkip != nil {
		view.DisableSkip = *block.DisableSkip
	}
	if block.MinListenSeconds != nil {
		view.MinListenSeconds = *block.MinListenSeconds
	}

	if authorized {
		songs, err := h.songs.ListForBlock(r.Context(), block.ID)
		if err != nil {
			slog.Error("failed to list block songs", "error", err, "block_id", block.ID)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		view.Songs = songs
	}

	middleware.JSONResponse(w, http.StatusOK, view)
}

// Authenticate handles POST /api/blocks/{slug}/auth
func (h *BlockHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req models.BlockAuthRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	block, err := h.blocks.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeBlockError(w, err, "load")
		return
	}

	if block.ExpiresAt != nil && h.clock.Now().After(*block.ExpiresAt) {
		middleware.ErrorResponse(w, http.StatusForbidden, voting.ErrBlockExpired.Error())
		return
	}

	if !voting.CheckPassword(block, req.Password) {
		slog.Warn("vote block password rejected", "block_id", block.ID, "ip", middleware.GetClientIP(r))
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Incorrect password")
		return
	}

	sess := session.FromContext(r.Context())
	if sess == nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Session error")
		return
	}
	if err := sess.AuthorizeBlock(r.Context(), block.ID); err != nil {
		slog.Error("failed to authorize block", "error", err, "block_id", block.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Session error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.SuccessResponse{Success: true})
}
