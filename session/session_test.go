// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/davidtorcivia/song-voter/testutil"
)

// roundTrip loads the session a browser holding cookies would present
func roundTrip(t *testing.T, store *Store, cookies []*http.Cookie) (*Session, *httptest.ResponseRecorder) {
	t.Helper()

	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()

	sess, err := store.Load(context.Background(), w, req)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return sess, w
}

func TestNewSessionIsNotSaved(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	store := NewStore(conn, clockwork.NewFakeClock(), false)

	sess, w := roundTrip(t, store, nil)

	if sess.ID != "" {
		t.Errorf("Expected empty ID for unsaved session, got %q", sess.ID)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("Unsaved session should not set a cookie")
	}

	var n int
	conn.QueryRow(`SELECT COUNT(*) FROM web_session`).Scan(&n)
	if n != 0 {
		t.Errorf("Expected no session rows, got %d", n)
	}
}

func TestVoterTokenPersists(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	store := NewStore(conn, clockwork.NewFakeClock(), false)
	ctx := context.Background()

	sess, w := roundTrip(t, store, nil)
	token, err := sess.VoterToken(ctx)
	if err != nil {
		t.Fatalf("VoterToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("Expected non-empty voter token")
	}

	again, _ := sess.VoterToken(ctx)
	if again != token {
		t.Error("VoterToken() changed within one session")
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieName {
		t.Fatalf("Expected session cookie, got %v", cookies)
	}
	if !cookies[0].HttpOnly {
		t.Error("Session cookie should be HttpOnly")
	}

	// Same browser on the next request
	next, _ := roundTrip(t, store, cookies)
	reloaded, err := next.VoterToken(ctx)
	if err != nil {
		t.Fatalf("VoterToken() error = %v", err)
	}
	if reloaded != token {
		t.Errorf("Expected token %q after reload, got %q", token, reloaded)
	}

	// A different browser gets a different token
	other, _ := roundTrip(t, store, nil)
	otherToken, _ := other.VoterToken(ctx)
	if otherToken == token {
		t.Error("Different sessions share a voter token")
	}
}

func TestAuthorizeBlock(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	store := NewStore(conn, clockwork.NewFakeClock(), false)
	ctx := context.Background()

	songs := testutil.CreateTestSongs(t, conn, 1)
	blockID, _ := testutil.CreateTestBlock(t, conn, "Locked", songs, testutil.BlockOptions{Password: "abc123"})

	sess, w := roundTrip(t, store, nil)
	if sess.BlockAuthorized(blockID) {
		t.Fatal("New session should not be authorized")
	}

	if err := sess.AuthorizeBlock(ctx, blockID); err != nil {
		t.Fatalf("AuthorizeBlock() error = %v", err)
	}
	// Second call is a no-op
	if err := sess.AuthorizeBlock(ctx, blockID); err != nil {
		t.Fatalf("AuthorizeBlock() repeat error = %v", err)
	}

	next, _ := roundTrip(t, store, w.Result().Cookies())
	if !next.BlockAuthorized(blockID) {
		t.Error("Block authorization not restored from database")
	}
	if next.BlockAuthorized(blockID + 1) {
		t.Error("Authorization leaked to another block")
	}
}

func TestLoginRotatesSession(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	store := NewStore(conn, clockwork.NewFakeClock(), true)
	ctx := context.Background()

	var adminID int64
	err := conn.QueryRow(`
		INSERT INTO admin (email, password_hash, role) VALUES ('a@example.com', 'x', 'owner') RETURNING id
	`).Scan(&adminID)
	if err != nil {
		t.Fatalf("Failed to create admin: %v", err)
	}

	sess, _ := roundTrip(t, store, nil)
	oldToken, _ := sess.VoterToken(ctx)
	oldID := sess.ID

	loggedIn, err := store.Login(ctx, sess, adminID)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if loggedIn.ID == oldID {
		t.Error("Login() kept the pre-login session ID")
	}
	if !loggedIn.IsAdmin() || *loggedIn.AdminID != adminID {
		t.Error("Login() session is not owned by the admin")
	}

	newToken, _ := loggedIn.VoterToken(ctx)
	if newToken == oldToken {
		t.Error("Pre-login session state survived login")
	}

	var n int
	conn.QueryRow(`SELECT COUNT(*) FROM web_session WHERE id = $1`, oldID).Scan(&n)
	if n != 0 {
		t.Error("Old session row was not deleted")
	}

	if err := store.Logout(ctx, loggedIn); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if loggedIn.IsAdmin() {
		t.Error("Logout() left admin on session")
	}
	conn.QueryRow(`SELECT COUNT(*) FROM web_session`).Scan(&n)
	if n != 0 {
		t.Errorf("Expected no sessions after logout, got %d", n)
	}
}

func TestExpiredSessionIsDropped(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := NewStore(conn, clock, false)
	ctx := context.Background()

	sess, w := roundTrip(t, store, nil)
	token, _ := sess.VoterToken(ctx)

	clock.Advance(MaxAge + time.Hour)

	next, _ := roundTrip(t, store, w.Result().Cookies())
	if next.ID != "" {
		t.Error("Expired session was restored")
	}
	fresh, _ := next.VoterToken(ctx)
	if fresh == token {
		t.Error("Expired session token was reused")
	}
}

func TestContextRoundTrip(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Error("Expected nil session from empty context")
	}

	sess := &Session{ID: "abc"}
	ctx := WithSession(context.Background(), sess)
	if FromContext(ctx) != sess {
		t.Error("FromContext() did not return stored session")
	}
}
