// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"github.com/jonboulle/clockwork"

	"github.com/davidtorcivia/song-voter/models"
	"github.com/davidtorcivia/song-voter/settings"
)

// Gate enforces vote block expiry and passwords and the site voting window
type Gate struct {
	clock clockwork.Clock
}

func NewGate(clock clockwork.Clock) Gate {
	return Gate{clock: clock}
}

// CheckBlock admits a vote cast within block. Expiry is checked before
// the password so an expired block rejects even authorized callers.
func (g Gate) CheckBlock(block *models.VoteBlock, c Caller) error {
	if c.IsAdmin {
		return nil
	}
	if block.ExpiresAt != nil && g.clock.Now().After(*block.ExpiresAt) {
		return ErrBlockExpired
	}
	if block.HasPassword && (c.Session == nil || !c.Session.BlockAuthorized(block.ID)) {
		return ErrPasswordRequired
	}
	return nil
}

// CheckWindow admits a vote cast outside any block against the site's
// voting_start and voting_end. Unset bounds are open.
func (g Gate) CheckWindow(s settings.Settings, c Caller) error {
	if c.IsAdmin {
		return nil
	}
	now := g.clock.Now()
	if s.VotingStart != nil && now.Before(*s.VotingStart) {
		return ErrVotingNotStarted
	}
	if s.VotingEnd != nil && now.After(*s.VotingEnd) {
		return ErrVotingEnded
	}
	return nil
}
