// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"math"

	"github.com/jonboulle/clockwork"

	"github.com/davidtorcivia/song-voter/library"
	"github.com/davidtorcivia/song-voter/models"
	"github.com/davidtorcivia/song-voter/ratelimit"
	"github.com/davidtorcivia/song-voter/settings"
)

// Service runs a vote submission through every admission check and
// records it
type Service struct {
	clock    clockwork.Clock
	limiter  *ratelimit.Limiter
	settings *settings.Store
	songs    *library.Store
	blocks   *BlockStore
	resolver Resolver
	gate     Gate
	guard    *Guard
	ledger   *Ledger
	stats    *Aggregator
}

func NewService(db *sql.DB, ipSalt string, limiter *ratelimit.Limiter, clock clockwork.Clock) *Service {
	return &Service{
		clock:    clock,
		limiter:  limiter,
		settings: settings.NewStore(db),
		songs:    library.NewStore(db, clock),
		blocks:   NewBlockStore(db, clock),
		resolver: NewResolver(ipSalt),
		gate:     NewGate(clock),
		guard:    NewGuard(db),
		ledger:   NewLedger(db, clock),
		stats:    NewAggregator(db),
	}
}

// ValidateVote checks the payload shape and returns the rating as an int
func ValidateVote(req models.SubmitVoteRequest) (*int, error) {
	if req.ThumbsUp == nil && req.Rating == nil {
		return nil, ErrInvalidVote
	}
	if req.Rating == nil {
		return nil, nil
	}

	r := *req.Rating
	if math.IsNaN(r) || r != math.Trunc(r) || r < 1 || r > 10 {
		return nil, ErrRatingRange
	}
	rating := int(r)
	return &rating, nil
}

// Submit records a vote on songID and returns the song's updated stats
func (s *Service) Submit(ctx context.Context, songID int64, req models.SubmitVoteRequest, c Caller) (models.SongStats, error) {
	rating, err := ValidateVote(req)
	if err != nil {
		return models.SongStats{}, err
	}

	if !c.IsAdmin {
		if ok, retry := s.limiter.Admit(c.IP); !ok {
			return models.SongStats{}, &RateLimitedError{RetryAfter: retry, Now: s.clock.Now()}
		}
	}

	if _, err := s.songs.Get(ctx, songID); err != nil {
		if errors.Is(err, library.ErrSongNotFound) {
			return models.SongStats{}, ErrSongNotFound
		}
		return models.SongStats{}, err
	}

	site, err := s.settings.Load(ctx)
	if err != nil {
		return models.SongStats{}, err
	}

	var block *models.VoteBlock
	if req.BlockID != nil {
		block, err = s.blocks.Get(ctx, *req.BlockID)
		if err != nil {
			return models.SongStats{}, err
		}
		if !Contains(block, songID) {
			return models.SongStats{}, ErrSongNotInBlock
		}
		if err := s.gate.CheckBlock(block, c); err != nil {
			return models.SongStats{}, err
		}
	} else if err := s.gate.CheckWindow(site, c); err != nil {
		return models.SongStats{}, err
	}

	mode := EffectiveRestriction(site.VotingRestriction, block)
	voterID, err := s.resolver.Resolve(ctx, mode, c)
	if err != nil {
		return models.SongStats{}, err
	}

	if err := s.guard.Check(ctx, songID, voterID, block); err != nil {
		return models.SongStats{}, err
	}

	entry := Entry{
		SongID:   songID,
		ThumbsUp: req.ThumbsUp,
		Rating:   rating,
		VoterID:  voterID,
		BlockID:  req.BlockID,
	}
	if block != nil {
		entry.OneTimeUse = block.OneTimeUse
	}
	voteID, err := s.ledger.Record(ctx, entry)
	if err != nil {
		return models.SongStats{}, err
	}

	var blockID int64
	if block != nil {
		blockID = block.ID
	}
	slog.Info("vote recorded", "vote_id", voteID, "song_id", songID, "block_id", blockID, "mode", mode)

	return s.stats.StatsFor(ctx, songID)
}
