// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/davidtorcivia/song-voter/auth"
	"github.com/davidtorcivia/song-voter/middleware"
	"github.com/davidtorcivia/song-voter/models"
	"github.com/davidtorcivia/song-voter/session"
)

type AdminHandler struct {
	db       *sql.DB
	sessions *session.Store
}

func NewAdminHandler(db *sql.DB, sessions *session.Store) *AdminHandler {
	return &AdminHandler{db: db, sessions: sessions}
}

func accountStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, auth.ErrEmailRequired),
		errors.Is(err, auth.ErrInvalidRole),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, auth.ErrEmptyPassword):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// login swaps the request session for a fresh one owned by admin
func (h *AdminHandler) login(w http.ResponseWriter, r *http.Request, admin models.Admin) bool {
	sess := session.FromContext(r.Context())
	if sess == nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Session error")
		return false
	}
	if _, err := h.sessions.Login(r.Context(), sess, admin.ID); err != nil {
		slog.Error("failed to start admin session", "error", err, "admin_id", admin.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Session error")
		return false
	}
	return true
}

// Setup handles POST /admin/setup. It only works while no admin exists and
// creates the owner account.
func (h *AdminHandler) Setup(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	id, err := auth.SetupOwner(r.Context(), h.db, req.Email, req.Password)
	if errors.Is(err, auth.ErrSetupDone) {
		middleware.ErrorResponse(w, http.StatusConflict, "Setup already completed")
		return
	}
	if err != nil {
		status := accountStatus(err)
		if status == http.StatusInternalServerError {
			slog.Error("failed to create owner", "error", err)
			middleware.ErrorResponse(w, status, "Failed to create admin")
			return
		}
		middleware.ErrorResponse(w, status, err.Error())
		return
	}

	admin, err := auth.GetAdmin(r.Context(), h.db, id)
	if err != nil {
		slog.Error("failed to load new owner", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !h.login(w, r, admin) {
		return
	}

	slog.Info("owner account created", "admin_id", id)
	middleware.JSONResponse(w, http.StatusCreated, models.AdminResponse{Admin: admin})
}

// Login handles POST /admin/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	admin, err := auth.Authenticate(r.Context(), h.db, req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		slog.Warn("admin login failed", "ip", middleware.GetClientIP(r))
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		slog.Error("failed to authenticate admin", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if !h.login(w, r, admin) {
		return
	}

	slog.Info("admin logged in", "admin_id", admin.ID)
	middleware.JSONResponse(w, http.StatusOK, models.AdminResponse{Admin: admin})
}

// Logout handles POST /admin/logout
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sess := session.FromContext(r.Context()); sess != nil {
		if err := h.sessions.Logout(r.Context(), sess); err != nil {
			slog.Error("failed to end session", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Session error")
			return
		}
	}
	middleware.JSONResponse(w, http.StatusOK, models.SuccessResponse{Success: true})
}

// Me handles GET /admin/me
func (h *AdminHandler) Me(w http.ResponseWriter, r *http.Request) {
	admin, err := auth.GetAdmin(r.Context(), h.db, *adminID(r))
	if errors.Is(err, auth.ErrAdminNotFound) {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Admin login required")
		return
	}
	if err != nil {
		slog.Error("failed to load admin", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.AdminResponse{Admin: admin})
}

// ListAdmins handles GET /admin/admins
func (h *AdminHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := auth.ListAdmins(r.Context(), h.db)
	if err != nil {
		slog.Error("failed to list admins", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if admins == nil {
		admins = []models.Admin{}
	}
	middleware.JSONResponse(w, http.StatusOK, models.AdminsResponse{Admins: admins})
}

// CreateAdmin handles POST /admin/admins. Role defaults to admin.
func (h *AdminHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAdminRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Role == "" {
		req.Role = models.RoleAdmin
	}

	id, err := auth.CreateAdmin(r.Context(), h.db, req.Email, req.Password, req.Role)
	if err != nil {
		status := accountStatus(err)
		if status == http.StatusInternalServerError {
			slog.Error("failed to create admin", "error", err)
			middleware.ErrorResponse(w, status, "Failed to create admin")
			return
		}
		middleware.ErrorResponse(w, status, err.Error())
		return
	}

	admin, err := auth.GetAdmin(r.Context(), h.db, id)
	if err != nil {
		slog.Error("failed to load new admin", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	slog.Info("admin account created", "admin_id", id, "role", admin.Role, "created_by", *adminID(r))
	middleware.JSONResponse(w, http.StatusCreated, models.AdminResponse{Admin: admin})
}

// DeleteAdmin handles DELETE /admin/admins/{id}
func (h *AdminHandler) DeleteAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if id == *adminID(r) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Cannot delete your own account")
		return
	}

	err := auth.DeleteAdmin(r.Context(), h.db, id)
	if errors.Is(err, auth.ErrAdminNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Admin not found")
		return
	}
	if err != nil {
		slog.Error("failed to delete admin", "error", err, "admin_id", id)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete admin")
		return
	}

	slog.Info("admin account deleted", "admin_id", id)
	middleware.JSONResponse(w, http.StatusOK, models.SuccessResponse{Success: true})
}
