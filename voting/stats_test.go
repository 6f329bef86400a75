// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"reflect"
	"testing"

	"github.com/davidtorcivia/song-voter/testutil"
)

func tallyOf(ratings []int, up, down int) Tally {
	t := Tally{ThumbsUp: up, ThumbsDown: down}
	for _, r := range ratings {
		t.Rated++
		t.RatingSum += int64(r)
		t.RatingSqSum += int64(r * r)
	}
	t.Votes = t.Rated
	if n := up + down; n > t.Votes {
		t.Votes = n
	}
	return t
}

func TestTally_PerfectAgreement(t *testing.T) {
	r := tallyOf([]int{5, 5, 5, 5, 5}, 0, 0).Result()

	if r.RatingStdev == nil || *r.RatingStdev != 0 {
		t.Errorf("Expected stdev 0, got %v", r.RatingStdev)
	}
	if r.AgreementScore == nil || *r.AgreementScore != 100 {
		t.Errorf("Expected agreement 100, got %v", r.AgreementScore)
	}
	if r.IsControversial {
		t.Error("Perfect agreement should not be controversial")
	}
}

func TestTally_Controversial(t *testing.T) {
	r := tallyOf([]int{1, 1, 10, 10, 1}, 3, 2).Result()

	if r.RatingStdev == nil || *r.RatingStdev <= 0 {
		t.Fatalf("Expected positive stdev, got %v", r.RatingStdev)
	}
	if *r.RatingStdev != 4.41 {
		t.Errorf("Expected stdev 4.41, got %v", *r.RatingStdev)
	}
	if r.AgreementScore == nil || *r.AgreementScore >= 50 {
		t.Errorf("Expected agreement < 50, got %v", r.AgreementScore)
	}
	if r.ThumbsUpPct == nil || *r.ThumbsUpPct != 60 {
		t.Errorf("Expected thumbs up 60%%, got %v", r.ThumbsUpPct)
	}
	if !r.IsControversial {
		t.Error("Expected controversial")
	}
}

func TestTally_ControversyNeedsEvenSplit(t *testing.T) {
	tests := []struct {
		name    string
		up      int
		down    int
		wantHit bool
	}{
		{"30 percent", 3, 7, true},
		{"70 percent", 7, 3, true},
		{"20 percent", 1, 4, false},
		{"80 percent", 4, 1, false},
		{"no thumbs", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tallyOf([]int{1, 10, 1, 10}, tt.up, tt.down).Result()
			if r.IsControversial != tt.wantHit {
				t.Errorf("Expected controversial=%v, got %v", tt.wantHit, r.IsControversial)
			}
		})
	}
}

func TestTally_Edges(t *testing.T) {
	t.Run("no votes", func(t *testing.T) {
		r := Tally{}.Result()
		if r.VoteCount != 0 || r.AvgRating != nil || r.ThumbsUpPct != nil || r.RatingStdev != nil || r.AgreementScore != nil {
			t.Errorf("Expected empty stats, got %+v", r)
		}
	})

	t.Run("single rating has no dispersion", func(t *testing.T) {
		r := tallyOf([]int{7}, 0, 0).Result()
		if r.AvgRating == nil || *r.AvgRating != 7 {
			t.Errorf("Expected avg 7, got %v", r.AvgRating)
		}
		if r.RatingStdev != nil || r.AgreementScore != nil {
			t.Error("Expected no stdev or agreement for one rating")
		}
	})

	t.Run("thumbs only", func(t *testing.T) {
		r := tallyOf(nil, 1, 2).Result()
		if r.AvgRating != nil {
			t.Errorf("Expected nil avg, got %v", *r.AvgRating)
		}
		if r.ThumbsUpPct == nil || *r.ThumbsUpPct != 33.3 {
			t.Errorf("Expected 33.3, got %v", r.ThumbsUpPct)
		}
	})

	t.Run("extremes give zero agreement", func(t *testing.T) {
		r := tallyOf([]int{1, 10}, 0, 0).Result()
		if *r.RatingStdev != 4.5 || *r.AgreementScore != 0 {
			t.Errorf("Expected stdev 4.5 and agreement 0, got %v and %v", *r.RatingStdev, *r.AgreementScore)
		}
	})

	t.Run("average rounds to two places", func(t *testing.T) {
		r := tallyOf([]int{7, 8, 8}, 0, 0).Stats()
		if *r.AvgRating != 7.67 {
			t.Errorf("Expected 7.67, got %v", *r.AvgRating)
		}
	})
}

func TestAggregator_StatsForIsIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	agg := NewAggregator(db)
	songID := testutil.CreateTestSong(t, db, "song.wav", "song")
	testutil.AddTestVote(t, db, songID, testutil.Bool(true), testutil.Int(8))
	testutil.AddTestVote(t, db, songID, testutil.Bool(false), nil)
	testutil.AddTestVote(t, db, songID, nil, testutil.Int(3))

	first, err := agg.StatsFor(context.Background(), songID)
	if err != nil {
		t.Fatalf("StatsFor failed: %v", err)
	}
	second, err := agg.StatsFor(context.Background(), songID)
	if err != nil {
		t.Fatalf("StatsFor failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical results, got %+v and %+v", first, second)
	}
	if first.VoteCount != 3 {
		t.Errorf("Expected 3 votes, got %d", first.VoteCount)
	}
	if *first.AvgRating != 5.5 {
		t.Errorf("Expected avg 5.5, got %v", *first.AvgRating)
	}
	if *first.ThumbsUpPct != 50 {
		t.Errorf("Expected 50%%, got %v", *first.ThumbsUpPct)
	}
}

func TestAggregator_AllResults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	agg := NewAggregator(db)
	b := testutil.CreateTestSong(t, db, "b.wav", "b")
	a2 := testutil.CreateTestSong(t, db, "a (2).wav", "a")
	a1 := testutil.CreateTestSong(t, db, "a.wav", "a")

	for _, r := range []int{5, 5, 5, 5, 5} {
		testutil.AddTestVote(t, db, a1, nil, testutil.Int(r))
	}

	results, err := agg.AllResults(context.Background(), nil)
	if err != nil {
		t.Fatalf("AllResults failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}

	wantOrder := []int64{a2, a1, b}
	for i, r := range results {
		if r.ID != wantOrder[i] {
			t.Errorf("Position %d: expected song %d, got %d", i, wantOrder[i], r.ID)
		}
	}

	if results[1].VoteCount != 5 || *results[1].AgreementScore != 100 {
		t.Errorf("Unexpected stats for voted song: %+v", results[1])
	}
	if results[0].VoteCount != 0 || results[0].AvgRating != nil {
		t.Errorf("Expected empty stats for unvoted song, got %+v", results[0])
	}
}

func TestAggregator_BlockResults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	agg := NewAggregator(db)
	songs := testutil.CreateTestSongs(t, db, 3)
	blockID, _ := testutil.CreateTestBlock(t, db, "Block", []int64{songs[2], songs[0]}, testutil.BlockOptions{})

	// A vote outside the block must not count
	testutil.AddTestVote(t, db, songs[0], testutil.Bool(true), nil)
	_, err := db.Exec(`
		INSERT INTO vote (song_id, rating, block_id, dedup_scope) VALUES ($1, $2, $3, $4)
	`, songs[2], 9, blockID, "b:1")
	if err != nil {
		t.Fatalf("Failed to insert block vote: %v", err)
	}

	results, err := agg.AllResults(context.Background(), &blockID)
	if err != nil {
		t.Fatalf("AllResults failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected the block's 2 songs, got %d", len(results))
	}

	if results[0].ID != songs[2] || results[0].VoteCount != 1 || *results[0].AvgRating != 9 {
		t.Errorf("Unexpected first result: %+v", results[0])
	}
	if results[1].ID != songs[0] || results[1].VoteCount != 0 || results[1].ThumbsUpPct != nil {
		t.Errorf("Expected zero-vote song with null stats, got %+v", results[1])
	}
}
