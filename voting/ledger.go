// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/davidtorcivia/song-voter/db"
)

// Entry is one vote to append
type Entry struct {
	SongID   int64
	ThumbsUp *bool
	Rating   *int
	VoterID  *string
	BlockID  *int64
	// OneTimeUse claims the voter's single vote in BlockID
	OneTimeUse bool
}

// Ledger appends votes. There is no update or delete.
type Ledger struct {
	db    *sql.DB
	clock clockwork.Clock
}

func NewLedger(db *sql.DB, clock clockwork.Clock) *Ledger {
	return &Ledger{db: db, clock: clock}
}

// Record appends e and returns the new vote ID. Type and range are checked
// here, and a global vote is refused when the voter already voted on the
// song in any scope; other admission is the caller's job. A unique violation
// from a concurrent duplicate is reported as the matching duplicate error.
func (l *Ledger) Record(ctx context.Context, e Entry) (int64, error) {
	if e.ThumbsUp == nil && e.Rating == nil {
		return 0, ErrInvalidVote
	}
	if e.Rating != nil && (*e.Rating < 1 || *e.Rating > 10) {
		return 0, ErrRatingRange
	}

	scope := db.GlobalScope
	if e.BlockID != nil {
		scope = db.BlockScope(*e.BlockID)
	}
	now := l.clock.Now().UTC()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if e.OneTimeUse && e.BlockID != nil && e.VoterID != nil {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO block_voter (block_id, voter_id, created_at) VALUES ($1, $2, $3)
		`, *e.BlockID, *e.VoterID, now)
		if db.IsUniqueViolation(err) {
			return 0, ErrAlreadyVotedBlock
		}
		if err != nil {
			return 0, fmt.Errorf("failed to claim block vote: %w", err)
		}
	}

	// A global vote conflicts with any earlier vote on the song, including
	// block votes the unique index does not cover
	if e.BlockID == nil && e.VoterID != nil {
		var exists bool
		err := tx.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM vote WHERE song_id = $1 AND voter_id = $2)
		`, e.SongID, *e.VoterID).Scan(&exists)
		if err != nil {
			return 0, fmt.Errorf("failed to check existing votes: %w", err)
		}
		if exists {
			return 0, ErrAlreadyVotedSong
		}
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO vote (song_id, thumbs_up, rating, voter_id, block_id, dedup_scope, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, e.SongID, e.ThumbsUp, e.Rating, e.VoterID, e.BlockID, scope, now).Scan(&id)
	if db.IsUniqueViolation(err) {
		return 0, ErrAlreadyVotedSong
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert vote: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if db.IsUniqueViolation(err) {
			return 0, ErrAlreadyVotedSong
		}
		return 0, fmt.Errorf("failed to commit vote: %w", err)
	}

	return id, nil
}
