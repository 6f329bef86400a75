// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/davidtorcivia/song-voter/models"
)

// Guard rejects repeat votes from the same voter. The ledger's unique
// index backs it up against concurrent submissions.
type Guard struct {
	db *sql.DB
}

func NewGuard(db *sql.DB) *Guard {
	return &Guard{db: db}
}

// Check returns nil if voterID may vote on songID (within block, if set).
// A nil voterID is always allowed.
func (g *Guard) Check(ctx context.Context, songID int64, voterID *string, block *models.VoteBlock) error {
	if voterID == nil {
		return nil
	}

	// Block-wide limit comes first
	if block != nil && block.OneTimeUse {
		var voted bool
		err := g.db.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM vote WHERE block_id = $1 AND voter_id = $2)
				OR EXISTS(SELECT 1 FROM block_voter WHERE block_id = $3 AND voter_id = $4)
		`, block.ID, *voterID, block.ID, *voterID).Scan(&voted)
		if err != nil {
			return fmt.Errorf("failed to check block votes: %w", err)
		}
		if voted {
			return ErrAlreadyVotedBlock
		}
	}

	var voted bool
	var err error
	if block != nil {
		err = g.db.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM vote WHERE song_id = $1 AND voter_id = $2 AND block_id = $3)
		`, songID, *voterID, block.ID).Scan(&voted)
	} else {
		err = g.db.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM vote WHERE song_id = $1 AND voter_id = $2)
		`, songID, *voterID).Scan(&voted)
	}
	if err != nil {
		return fmt.Errorf("failed to check song votes: %w", err)
	}
	if voted {
		return ErrAlreadyVotedSong
	}

	return nil
}
