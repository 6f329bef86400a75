// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
)

// Validation errors (400)
var (
	ErrInvalidVote = errors.New("must provide thumbs_up or rating")
	ErrRatingRange = errors.New("rating must be a whole number between 1 and 10")
)

// Not found errors (404)
var (
	ErrSongNotFound   = errors.New("song not found")
	ErrBlockNotFound  = errors.New("vote block not found")
	ErrSongNotInBlock = errors.New("song is not part of this vote block")
)

// Forbidden errors (403)
var (
	ErrBlockExpired      = errors.New("this vote block has expired")
	ErrPasswordRequired  = errors.New("password required for this vote block")
	ErrVotingNotStarted  = errors.New("voting has not started yet")
	ErrVotingEnded       = errors.New("voting has ended")
	ErrAlreadyVotedBlock = errors.New("already voted in this block")
	ErrAlreadyVotedSong  = errors.New("already voted on this song")
)

// RateLimitedError is returned when a client exceeds the vote rate (429)
type RateLimitedError struct {
	RetryAfter int // seconds
	Now        time.Time
}

func (e *RateLimitedError) Error() string {
	resetAt := e.Now.Add(time.Duration(e.RetryAfter) * time.Second)
	return fmt.Sprintf("too many votes, try again %s", humanize.RelTime(resetAt, e.Now, "ago", "from now"))
}

// StatusCode maps a vote error to its HTTP status. Unknown errors are 500.
func StatusCode(err error) int {
	var rateErr *RateLimitedError
	switch {
	case errors.As(err, &rateErr):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrInvalidVote), errors.Is(err, ErrRatingRange):
		return http.StatusBadRequest
	case errors.Is(err, ErrSongNotFound), errors.Is(err, ErrBlockNotFound), errors.Is(err, ErrSongNotInBlock):
		return http.StatusNotFound
	case errors.Is(err, ErrBlockExpired), errors.Is(err, ErrPasswordRequired),
		errors.Is(err, ErrVotingNotStarted), errors.Is(err, ErrVotingEnded),
		errors.Is(err, ErrAlreadyVotedBlock), errors.Is(err, ErrAlreadyVotedSong):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
