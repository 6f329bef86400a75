// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the song-voter API.

NewRouter builds every handler and wraps the mux in the middleware chain
(security headers, CORS, session loading):

	handler := router.NewRouter(db, cfg, clockwork.NewRealClock())

# Endpoints

Public:

	GET  /health
	GET  /api/songs[?base_name=]
	GET  /api/base-names
	GET  /api/songs/{id}/audio
	POST /api/songs/{id}/vote
	GET  /api/songs/{id}/stats
	GET  /api/blocks/{slug}
	POST /api/blocks/{slug}/auth

Results (admin, or anyone when results_public is set):

	GET /api/results
	GET /api/blocks/{slug}/results

Admin session:

	POST /admin/setup, /admin/login, /admin/logout
	GET  /admin/me
	POST /admin/scan, /admin/upload, /admin/clear
	DELETE /admin/songs/{id}
	GET/POST /admin/blocks, GET/PUT/DELETE /admin/blocks/{id}
	GET/PUT /admin/settings

Owner only:

	GET/POST /admin/admins, DELETE /admin/admins/{id}

The vote rate limiter is created here so its state lives as long as the
router.
*/
package router
