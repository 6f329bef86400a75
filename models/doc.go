// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types.

# Domain Types

  - Song: An audio file; versions share a BaseName
  - Vote: One immutable ledger row (thumbs and/or 1-10 rating)
  - VoteBlock: A named subset of songs with its own access rules
  - Admin: An administrator account

# Aggregates

SongStats is returned after every vote. SongResult adds dispersion
(RatingStdev), the 0-100 AgreementScore and the IsControversial flag.
Nil pointers serialize as null when a statistic has no input votes.

# Privacy

Voter identifiers, password hashes and server file paths are tagged
json:"-" and never leave the server.
*/
package models
