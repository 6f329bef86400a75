// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"errors"
	"fmt"

	"github.com/davidtorcivia/song-voter/auth"
	"github.com/davidtorcivia/song-voter/models"
)

var errNoSession = errors.New("cookie restriction requires a session")

// Session is the per-browser state a vote needs: a persistent voter token
// and the set of blocks whose password was entered.
type Session interface {
	VoterToken(ctx context.Context) (string, error)
	BlockAuthorized(blockID int64) bool
}

// Caller describes who is submitting a vote
type Caller struct {
	IP      string // resolved client IP
	IsAdmin bool
	Session Session // may be nil
}

// Resolver derives voter identities
type Resolver struct {
	salt string
}

func NewResolver(salt string) Resolver {
	return Resolver{salt: salt}
}

// EffectiveRestriction returns the restriction mode that applies to a vote.
// A block override replaces the site mode; an unset override inherits it.
// One-time-use blocks need an identity, so "none" becomes "cookie" there.
func EffectiveRestriction(siteMode string, block *models.VoteBlock) string {
	mode := siteMode
	if block == nil {
		return mode
	}
	if block.VotingRestriction != nil {
		mode = *block.VotingRestriction
	}
	if block.OneTimeUse && mode == models.RestrictionNone {
		mode = models.RestrictionCookie
	}
	return mode
}

// Resolve returns the voter identity for mode, or nil when the mode does
// not track voters. Admins are never tracked.
func (r Resolver) Resolve(ctx context.Context, mode string, c Caller) (*string, error) {
	if c.IsAdmin {
		return nil, nil
	}

	switch mode {
	case models.RestrictionIP:
		id := "ip:" + auth.HashIP(c.IP, r.salt)
		return &id, nil
	case models.RestrictionCookie:
		if c.Session == nil {
			return nil, errNoSession
		}
		token, err := c.Session.VoterToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get voter token: %w", err)
		}
		id := "c:" + token
		return &id, nil
	default:
		return nil, nil
	}
}
