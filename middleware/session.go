// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/davidtorcivia/song-voter/auth"
	"github.com/davidtorcivia/song-voter/models"
	"github.com/davidtorcivia/song-voter/session"
)

// WithSession loads the caller's session into the request context
func WithSession(store *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := store.Load(r.Context(), w, r)
			if err != nil {
				slog.Error("failed to load session", "error", err)
				ErrorResponse(w, http.StatusInternalServerError, "Session error")
				return
			}
			next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
		})
	}
}

// IsAdmin reports whether the request carries a logged-in admin session
func IsAdmin(r *http.Request) bool {
	sess := session.FromContext(r.Context())
	return sess != nil && sess.IsAdmin()
}

// RequireAdmin rejects requests without an admin session
func RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r) {
			ErrorResponse(w, http.StatusUnauthorized, "Admin login required")
			return
		}
		next(w, r)
	}
}

// RequireOwner rejects requests unless the session belongs to an owner
func RequireOwner(db *sql.DB, next http.HandlerFunc) http.HandlerFunc {
	return RequireAdmin(func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromContext(r.Context())
		admin, err := auth.GetAdmin(r.Context(), db, *sess.AdminID)
		if errors.Is(err, auth.ErrAdminNotFound) {
			ErrorResponse(w, http.StatusUnauthorized, "Admin login required")
			return
		}
		if err != nil {
			slog.Error("failed to load admin", "error", err)
			ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if admin.Role != models.RoleOwner {
			ErrorResponse(w, http.StatusForbidden, "Owner access required")
			return
		}
		next(w, r)
	})
}
