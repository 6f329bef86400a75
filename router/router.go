// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/jonboulle/clockwork"

	"github.com/davidtorcivia/song-voter/cliparse"
	"github.com/davidtorcivia/song-voter/handlers"
	"github.com/davidtorcivia/song-voter/middleware"
	"github.com/davidtorcivia/song-voter/ratelimit"
	"github.com/davidtorcivia/song-voter/session"
	"github.com/davidtorcivia/song-voter/voting"
)

func NewRouter(db *sql.DB, cfg cliparse.Config, clock clockwork.Clock) http.Handler {
	mux := http.NewServeMux()

	limiter := ratelimit.New(ratelimit.Config{
		Max:    cfg.RateLimitMax,
		Window: cfg.RateLimitWindow,
		MaxIPs: cfg.RateLimitMaxIPs,
	}, clock)
	sessions := session.NewStore(db, clock, cfg.SecureCookies)

	// Initialize handlers
	votingHandler := handlers.NewVotingHandler(voting.NewService(db, cfg.IPHashSalt, limiter, clock))
	resultsHandler := handlers.NewResultsHandler(db, clock)
	songHandler := handlers.NewSongHandler(db, cfg, clock)
	blockHandler := handlers.NewBlockHandler(db, clock)
	adminHandler := handlers.NewAdminHandler(db, sessions)
	settingsHandler := handlers.NewSettingsHandler(db)

	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.RequireAdmin(h))
	}
	owner := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.RequireOwner(db, h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Songs and voting (public)
	mux.HandleFunc("GET /api/songs", middleware.WithLogging(songHandler.ListSongs))
	mux.HandleFunc("GET /api/base-names", middleware.WithLogging(songHandler.GetBaseNames))
	mux.HandleFunc("GET /api/songs/{id}/audio", middleware.WithLogging(songHandler.StreamAudio))
	mux.HandleFunc("POST /api/songs/{id}/vote", middleware.WithLogging(votingHandler.SubmitVote))
	mux.HandleFunc("GET /api/songs/{id}/stats", middleware.WithLogging(resultsHandler.GetSongStats))

	// Results (admin, or anyone when results_public is set)
	mux.HandleFunc("GET /api/results", middleware.WithLogging(resultsHandler.GetResults))
	mux.HandleFunc("GET /api/blocks/{slug}/results", middleware.WithLogging(resultsHandler.GetBlockResults))

	// Vote blocks (public)
	mux.HandleFunc("GET /api/blocks/{slug}", middleware.WithLogging(blockHandler.ViewBlock))
	mux.HandleFunc("POST /api/blocks/{slug}/auth", middleware.WithLogging(blockHandler.Authenticate))

	// Admin accounts
	mux.HandleFunc("POST /admin/setup", middleware.WithLogging(adminHandler.Setup))
	mux.HandleFunc("POST /admin/login", middleware.WithLogging(adminHandler.Login))
	mux.HandleFunc("POST /admin/logout", middleware.WithLogging(adminHandler.Logout))
	mux.HandleFunc("GET /admin/me", admin(adminHandler.Me))
	mux.HandleFunc("GET /admin/admins", owner(adminHandler.ListAdmins))
	mux.HandleFunc("POST /admin/admins", owner(adminHandler.CreateAdmin))
	mux.HandleFunc("DELETE /admin/admins/{id}", owner(adminHandler.DeleteAdmin))

	// Song library management
	mux.HandleFunc("POST /admin/scan", admin(songHandler.Scan))
	mux.HandleFunc("POST /admin/upload", admin(songHandler.Upload))
	mux.HandleFunc("DELETE /admin/songs/{id}", admin(songHandler.DeleteSong))
	mux.HandleFunc("POST /admin/clear", admin(songHandler.ClearData))

	// Vote block management
	mux.HandleFunc("GET /admin/blocks", admin(blockHandler.ListBlocks))
	mux.HandleFunc("POST /admin/blocks", admin(blockHandler.CreateBlock))
	mux.HandleFunc("GET /admin/blocks/{id}", admin(blockHandler.GetBlock))
	mux.HandleFunc("PUT /admin/blocks/{id}", admin(blockHandler.UpdateBlock))
	mux.HandleFunc("DELETE /admin/blocks/{id}", admin(blockHandler.DeleteBlock))

	// Site settings
	mux.HandleFunc("GET /admin/settings", admin(settingsHandler.GetSettings))
	mux.HandleFunc("PUT /admin/settings", admin(settingsHandler.UpdateSettings))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("song-voter API v1"))
	})

	var h http.Handler = mux
	h = middleware.WithSession(sessions)(h)
	h = middleware.CORS(cfg.AllowedOrigins)(h)
	return middleware.SecurityHeaders(cfg.SecureCookies)(h)
}
