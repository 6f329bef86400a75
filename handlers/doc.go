// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the song-voter API.

# Handler Types

  - VotingHandler: Vote submission through voting.Service
  - ResultsHandler: Aggregated results and per-song stats
  - SongHandler: Song listing, audio streaming, scan, upload, delete
  - BlockHandler: Vote block management and the public block view
  - AdminHandler: Setup, login, logout and admin accounts
  - SettingsHandler: Site settings

Handlers read the caller's session from the request context (see
middleware.WithSession). Errors are written as {"error": "..."}; a rate
limited vote also sets Retry-After and retry_after.

# Vote Errors

voting.StatusCode maps submission errors to statuses:

	400  invalid payload or rating
	403  block expired, password required, outside voting window, duplicate vote
	404  song or block not found, song not in block
	429  rate limited
*/
package handlers
