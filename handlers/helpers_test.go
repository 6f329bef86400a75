// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/davidtorcivia/song-voter/auth"
	"github.com/davidtorcivia/song-voter/ratelimit"
	"github.com/davidtorcivia/song-voter/session"
	"github.com/davidtorcivia/song-voter/settings"
	"github.com/davidtorcivia/song-voter/testutil"
	"github.com/davidtorcivia/song-voter/voting"
)

// withSession loads a fresh session for r and, when adminID is set, logs
// it in as that admin
func withSession(t *testing.T, db *sql.DB, w http.ResponseWriter, r *http.Request, adminID *int64) *http.Request {
	t.Helper()

	store := session.NewStore(db, clockwork.NewRealClock(), false)
	sess, err := store.Load(r.Context(), w, r)
	if err != nil {
		t.Fatalf("Failed to load session: %v", err)
	}
	if adminID != nil {
		sess, err = store.Login(r.Context(), sess, *adminID)
		if err != nil {
			t.Fatalf("Failed to log in: %v", err)
		}
	}
	return r.WithContext(session.WithSession(r.Context(), sess))
}

func createAdmin(t *testing.T, db *sql.DB, email, role string) int64 {
	t.Helper()
	id, err := auth.CreateAdmin(context.Background(), db, email, "correct-horse", role)
	if err != nil {
		t.Fatalf("Failed to create admin: %v", err)
	}
	return id
}

func setSetting(t *testing.T, db *sql.DB, key, value string) {
	t.Helper()
	if err := settings.NewStore(db).Set(context.Background(), key, value); err != nil {
		t.Fatalf("Failed to set %s: %v", key, err)
	}
}

func newVotingHandler(db *sql.DB, limit int) *VotingHandler {
	clock := clockwork.NewRealClock()
	limiter := ratelimit.New(ratelimit.Config{Max: limit, Window: 5 * time.Minute, MaxIPs: 100}, clock)
	return NewVotingHandler(voting.NewService(db, testutil.GetTestConfig().IPHashSalt, limiter, clock))
}

// vote sends one vote request from ip and returns the recorder
func vote(t *testing.T, db *sql.DB, h *VotingHandler, songID int64, ip string, body any) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()
	req := testutil.MakeRequest("POST", "/api/songs/x/vote", body, map[string]string{"X-Forwarded-For": ip})
	req.SetPathValue("id", strconv.FormatInt(songID, 10))
	req = withSession(t, db, w, req, nil)
	h.SubmitVote(w, req)
	return w
}
