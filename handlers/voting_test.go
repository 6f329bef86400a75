// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/davidtorcivia/song-voter/models"
	"github.com/davidtorcivia/song-voter/settings"
	"github.com/davidtorcivia/song-voter/testutil"
)

func TestSubmitVote_Success(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newVotingHandler(db, 30)
	songID := testutil.CreateTestSong(t, db, "anthem (2).wav", "anthem")

	w := vote(t, db, h, songID, "10.0.0.1", map[string]any{"thumbs_up": true, "rating": 8})
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.SubmitVoteResponse
	testutil.AssertJSON(t, w, &resp)
	if !resp.Success {
		t.Error("Expected success to be true")
	}
	if resp.Stats.VoteCount != 1 {
		t.Errorf("Expected vote_count 1, got %d", resp.Stats.VoteCount)
	}
	if resp.Stats.AvgRating == nil || *resp.Stats.AvgRating != 8 {
		t.Errorf("Expected avg_rating 8, got %v", resp.Stats.AvgRating)
	}
	if resp.Stats.ThumbsUpPct == nil || *resp.Stats.ThumbsUpPct != 100 {
		t.Errorf("Expected thumbs_up_pct 100, got %v", resp.Stats.ThumbsUpPct)
	}
}

func TestSubmitVote_BadRequests(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newVotingHandler(db, 30)
	songID := testutil.CreateTestSong(t, db, "anthem.wav", "anthem")

	tests := []struct {
		name string
		body any
	}{
		{"empty payload", map[string]any{}},
		{"rating too high", map[string]any{"rating": 11}},
		{"rating too low", map[string]any{"rating": 0}},
		{"fractional rating", map[string]any{"rating": 7.5}},
		{"null fields", map[string]any{"thumbs_up": nil, "rating": nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := vote(t, db, h, songID, "10.0.0.2", tt.body)
			testutil.AssertStatus(t, w, http.StatusBadRequest)
		})
	}

	if n := testutil.CountVotes(t, db, songID); n != 0 {
		t.Errorf("Expected no votes stored, got %d", n)
	}
}

func TestSubmitVote_InvalidInput(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newVotingHandler(db, 30)

	t.Run("malformed JSON", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/songs/1/vote", strings.NewReader("{not json"))
		req.SetPathValue("id", "1")
		req = withSession(t, db, w, req, nil)
		h.SubmitVote(w, req)
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})

	t.Run("non-numeric song id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := testutil.MakeRequest("POST", "/api/songs/abc/vote", map[string]any{"thumbs_up": true}, nil)
		req.SetPathValue("id", "abc")
		req = withSession(t, db, w, req, nil)
		h.SubmitVote(w, req)
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})

	t.Run("unknown song", func(t *testing.T) {
		w := vote(t, db, h, 999, "10.0.0.3", map[string]any{"thumbs_up": true})
		testutil.AssertStatus(t, w, http.StatusNotFound)
	})
}

func TestSubmitVote_IPRestriction(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newVotingHandler(db, 30)
	songID := testutil.CreateTestSong(t, db, "anthem.wav", "anthem")
	setSetting(t, db, settings.KeyVotingRestriction, models.RestrictionIP)

	w := vote(t, db, h, songID, "10.0.0.4", map[string]any{"rating": 5})
	testutil.AssertStatus(t, w, http.StatusOK)

	w = vote(t, db, h, songID, "10.0.0.4", map[string]any{"rating": 6})
	testutil.AssertStatus(t, w, http.StatusForbidden)

	var errResp models.ErrorResponse
	testutil.AssertJSON(t, w, &errResp)
	if errResp.Error != "already voted on this song" {
		t.Errorf("Expected duplicate vote message, got '%s'", errResp.Error)
	}

	w = vote(t, db, h, songID, "10.0.0.5", map[string]any{"rating": 6})
	testutil.AssertStatus(t, w, http.StatusOK)
}

func TestSubmitVote_RateLimited(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newVotingHandler(db, 2)
	songID := testutil.CreateTestSong(t, db, "anthem.wav", "anthem")

	for i := 0; i < 2; i++ {
		w := vote(t, db, h, songID, "10.0.0.6", map[string]any{"thumbs_up": true})
		testutil.AssertStatus(t, w, http.StatusOK)
	}

	w := vote(t, db, h, songID, "10.0.0.6", map[string]any{"thumbs_up": true})
	testutil.AssertStatus(t, w, http.StatusTooManyRequests)

	if w.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}
	var errResp models.ErrorResponse
	testutil.AssertJSON(t, w, &errResp)
	if errResp.RetryAfter <= 0 {
		t.Errorf("Expected positive retry_after, got %d", errResp.RetryAfter)
	}

	// Another client is unaffected
	w = vote(t, db, h, songID, "10.0.0.7", map[string]any{"thumbs_up": true})
	testutil.AssertStatus(t, w, http.StatusOK)
}

func TestSubmitVote_BlockRules(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newVotingHandler(db, 30)
	songs := testutil.CreateTestSongs(t, db, 2)
	lockedID, _ := testutil.CreateTestBlock(t, db, "Locked", songs[:1], testutil.BlockOptions{Password: "secret"})
	openID, _ := testutil.CreateTestBlock(t, db, "Open", songs[:1], testutil.BlockOptions{})

	t.Run("password required", func(t *testing.T) {
		w := vote(t, db, h, songs[0], "10.0.1.1", map[string]any{"thumbs_up": true, "block_id": lockedID})
		testutil.AssertStatus(t, w, http.StatusForbidden)
	})

	t.Run("song outside block", func(t *testing.T) {
		w := vote(t, db, h, songs[1], "10.0.1.2", map[string]any{"thumbs_up": true, "block_id": openID})
		testutil.AssertStatus(t, w, http.StatusNotFound)
	})

	t.Run("unknown block", func(t *testing.T) {
		w := vote(t, db, h, songs[0], "10.0.1.3", map[string]any{"thumbs_up": true, "block_id": 999})
		testutil.AssertStatus(t, w, http.StatusNotFound)
	})

	t.Run("open block", func(t *testing.T) {
		w := vote(t, db, h, songs[0], "10.0.1.4", map[string]any{"thumbs_up": true, "block_id": openID})
		testutil.AssertStatus(t, w, http.StatusOK)
	})
}
