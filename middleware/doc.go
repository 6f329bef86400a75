// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

	mux.HandleFunc("GET /api/songs", middleware.WithLogging(handler))

Logs request start (method, path, remote) and completion (duration_ms).

# Chain

The router wraps the whole mux:

	h = middleware.WithSession(sessions)(h)
	h = middleware.CORS(cfg.AllowedOrigins)(h)
	h = middleware.SecurityHeaders(cfg.SecureCookies)(h)

CORS only answers origins on the allowlist and allows credentials for them.

# Admin Guards

	middleware.RequireAdmin(handler)      // 401 without an admin session
	middleware.RequireOwner(db, handler)  // 403 for non-owner admins

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")
	middleware.RateLimitResponse(w, retryAfter, "message")

# Client IP Extraction

	ip := middleware.GetClientIP(r)

Prefers the first X-Forwarded-For entry, then X-Real-IP, then the socket
address. Used for rate limiting and IP-mode voter identity.
*/
package middleware
