// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/davidtorcivia/song-voter/models"
)

// MaxRatingStdev is the largest possible standard deviation on a 1-10
// scale (votes split evenly between 1 and 10).
const MaxRatingStdev = 4.5

// Tally holds the per-song sums the statistics are derived from
type Tally struct {
	Votes       int
	Rated       int
	RatingSum   int64
	RatingSqSum int64
	ThumbsUp    int
	ThumbsDown  int
}

// Aggregator computes statistics from the vote ledger on every read
type Aggregator struct {
	db *sql.DB
}

func NewAggregator(db *sql.DB) *Aggregator {
	return &Aggregator{db: db}
}

const tallyColumns = `
	COUNT(v.id),
	COUNT(v.rating),
	COALESCE(SUM(v.rating), 0),
	COALESCE(SUM(v.rating * v.rating), 0),
	COALESCE(SUM(CASE WHEN v.thumbs_up = TRUE THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN v.thumbs_up = FALSE THEN 1 ELSE 0 END), 0)`

// StatsFor returns the summary for one song across all its votes
func (a *Aggregator) StatsFor(ctx context.Context, songID int64) (models.SongStats, error) {
	var t Tally
	err := a.db.QueryRowContext(ctx, `SELECT `+tallyColumns+` FROM vote v WHERE v.song_id = $1`, songID).
		Scan(&t.Votes, &t.Rated, &t.RatingSum, &t.RatingSqSum, &t.ThumbsUp, &t.ThumbsDown)
	if err != nil {
		return models.SongStats{}, fmt.Errorf("failed to aggregate votes: %w", err)
	}
	return t.Stats(), nil
}

// AllResults returns results for every song, or for the songs of one
// block counting only votes cast in that block. Songs without votes are
// included with null statistics.
func (a *Aggregator) AllResults(ctx context.Context, blockID *int64) ([]models.SongResult, error) {
	var rows *sql.Rows
	var err error
	if blockID == nil {
		rows, err = a.db.QueryContext(ctx, `
			SELECT s.id, s.base_name, s.filename, `+tallyColumns+`
			FROM song s
			LEFT JOIN vote v ON v.song_id = s.id
			GROUP BY s.id, s.base_name, s.filename
			ORDER BY s.base_name, s.filename
		`)
	} else {
		rows, err = a.db.QueryContext(ctx, `
			SELECT s.id, s.base_name, s.filename, `+tallyColumns+`
			FROM block_song bs
			JOIN song s ON s.id = bs.song_id
			LEFT JOIN vote v ON v.song_id = s.id AND v.block_id = $1
			WHERE bs.block_id = $2
			GROUP BY s.id, s.base_name, s.filename, bs.position
			ORDER BY bs.position, s.id
		`, *blockID, *blockID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	results := []models.SongResult{}
	for rows.Next() {
		var id int64
		var baseName, filename string
		var t Tally
		err := rows.Scan(&id, &baseName, &filename,
			&t.Votes, &t.Rated, &t.RatingSum, &t.RatingSqSum, &t.ThumbsUp, &t.ThumbsDown)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}

		r := t.Result()
		r.ID = id
		r.BaseName = baseName
		r.Filename = filename
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}

	return results, nil
}

// Stats returns the short summary
func (t Tally) Stats() models.SongStats {
	s := models.SongStats{VoteCount: t.Votes}
	if t.Rated > 0 {
		avg := round(float64(t.RatingSum)/float64(t.Rated), 2)
		s.AvgRating = &avg
	}
	if n := t.ThumbsUp + t.ThumbsDown; n > 0 {
		pct := round(float64(t.ThumbsUp)/float64(n)*100, 1)
		s.ThumbsUpPct = &pct
	}
	return s
}

// Result returns the full statistics, including dispersion and the
// controversy flag. Identity fields are left for the caller.
func (t Tally) Result() models.SongResult {
	s := t.Stats()
	r := models.SongResult{
		VoteCount:   s.VoteCount,
		AvgRating:   s.AvgRating,
		ThumbsUpPct: s.ThumbsUpPct,
	}

	if t.Rated < 2 {
		return r
	}

	n := float64(t.Rated)
	m := float64(t.RatingSum) / n
	variance := float64(t.RatingSqSum)/n - m*m
	if variance < 0 {
		variance = 0
	}
	stdev := math.Sqrt(variance)

	agreement := int(math.Round(math.Max(0, 1-stdev/MaxRatingStdev) * 100))
	roundedStdev := round(stdev, 2)
	r.RatingStdev = &roundedStdev
	r.AgreementScore = &agreement

	// Low rating consensus together with a near-even thumbs split
	if s.ThumbsUpPct != nil && agreement < 50 && *s.ThumbsUpPct >= 30 && *s.ThumbsUpPct <= 70 {
		r.IsControversial = true
	}

	return r
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
