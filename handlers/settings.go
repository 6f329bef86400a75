// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/davidtorcivia/song-voter/middleware"
	"github.com/davidtorcivia/song-voter/models"
	"github.com/davidtorcivia/song-voter/settings"
)

type SettingsHandler struct {
	settings *settings.Store
}

func NewSettingsHandler(db *sql.DB) *SettingsHandler {
	return &SettingsHandler{settings: settings.NewStore(db)}
}

// GetSettings handles GET /admin/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Load(r.Context())
	if err != nil {
		slog.Error("failed to load settings", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, s)
}

// UpdateSettings handles PUT /admin/settings and returns the saved settings
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateSettingsRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	err := h.settings.Update(r.Context(), req)
	switch {
	case errors.Is(err, settings.ErrInvalidRestriction),
		errors.Is(err, settings.ErrInvalidTime),
		errors.Is(err, settings.ErrInvalidListenTime),
		errors.Is(err, settings.ErrWindowOrder):
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("failed to update settings", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update settings")
		return
	}

	s, err := h.settings.Load(r.Context())
	if err != nil {
		slog.Error("failed to load settings", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	slog.Info("settings updated", "admin_id", *adminID(r))
	middleware.JSONResponse(w, http.StatusOK, s)
}
