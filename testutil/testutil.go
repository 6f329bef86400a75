// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/davidtorcivia/song-voter/auth"
	"github.com/davidtorcivia/song-voter/cliparse"
	"github.com/davidtorcivia/song-voter/db"
	_ "modernc.org/sqlite"
)

// SetupTestDB creates a fresh in-memory SQLite database with the full schema
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// Every connection to :memory: is a separate database
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		conn.Close()
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	if err := db.CreateSchema(conn, db.DialectSQLite); err != nil {
		conn.Close()
		t.Fatalf("Failed to create schema: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:            5000,
		DatabaseURL:     ":memory:",
		DatabaseType:    db.DialectSQLite,
		IPHashSalt:      "test-ip-salt",
		SongsDir:        "songs",
		UploadDir:       "uploads",
		MaxUploadMB:     10,
		RateLimitMax:    cliparse.DefaultRateLimitMax,
		RateLimitWindow: cliparse.DefaultRateLimitWindow,
		RateLimitMaxIPs: cliparse.DefaultRateLimitMaxIPs,
	}
}

// CreateTestSong inserts a song and returns its ID
func CreateTestSong(t *testing.T, conn *sql.DB, filename, baseName string) int64 {
	t.Helper()

	var id int64
	err := conn.QueryRow(`
		INSERT INTO song (filename, base_name, full_path, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, filename, baseName, "/fake/path/"+filename, time.Now().UTC()).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to create test song: %v", err)
	}

	return id
}

// CreateTestSongs inserts n songs named test_song_<i>.wav
func CreateTestSongs(t *testing.T, conn *sql.DB, n int) []int64 {
	t.Helper()

	ids := make([]int64, n)
	for i := range ids {
		ids[i] = CreateTestSong(t, conn, fmt.Sprintf("test_song_%d.wav", i), fmt.Sprintf("test_song_%d", i))
	}
	return ids
}

// BlockOptions configures CreateTestBlock
type BlockOptions struct {
	Password          string
	ExpiresAt         *time.Time
	OneTimeUse        bool
	VotingRestriction string
}

// CreateTestBlock inserts a vote block holding songIDs and returns its ID and slug
func CreateTestBlock(t *testing.T, conn *sql.DB, name string, songIDs []int64, opts BlockOptions) (int64, string) {
	t.Helper()

	slug, err := auth.GenerateBlockSlug(name)
	if err != nil {
		t.Fatalf("Failed to generate slug: %v", err)
	}

	var passwordHash *string
	if opts.Password != "" {
		h, err := auth.HashPassword(opts.Password)
		if err != nil {
			t.Fatalf("Failed to hash password: %v", err)
		}
		passwordHash = &h
	}

	var restriction *string
	if opts.VotingRestriction != "" {
		restriction = &opts.VotingRestriction
	}

	var id int64
	err = conn.QueryRow(`
		INSERT INTO vote_block (name, slug, password_hash, expires_at, one_time_use, voting_restriction, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, name, slug, passwordHash, opts.ExpiresAt, opts.OneTimeUse, restriction, time.Now().UTC()).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to create test block: %v", err)
	}

	for i, songID := range songIDs {
		_, err := conn.Exec(`
			INSERT INTO block_song (block_id, song_id, position) VALUES ($1, $2, $3)
		`, id, songID, i)
		if err != nil {
			t.Fatalf("Failed to add song to test block: %v", err)
		}
	}

	return id, slug
}

// AddTestVote inserts a vote row directly, bypassing every gate
func AddTestVote(t *testing.T, conn *sql.DB, songID int64, thumbsUp *bool, rating *int) {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO vote (song_id, thumbs_up, rating, created_at)
		VALUES ($1, $2, $3, $4)
	`, songID, thumbsUp, rating, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test vote: %v", err)
	}
}

// CountVotes returns the number of ledger rows for a song
func CountVotes(t *testing.T, conn *sql.DB, songID int64) int {
	t.Helper()

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM vote WHERE song_id = $1`, songID).Scan(&n); err != nil {
		t.Fatalf("Failed to count votes: %v", err)
	}
	return n
}

// Bool returns a pointer to b
func Bool(b bool) *bool { return &b }

// Int returns a pointer to n
func Int(n int) *int { return &n }

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
