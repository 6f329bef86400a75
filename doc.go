// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the song-voter server.

song-voter lets listeners vote on song versions with a thumbs up/down and a
1-10 rating. Admins manage the song library, share curated vote blocks and
read aggregated results with a controversy flag.

# Starting the Server

The only required setting is the IP hash salt:

	IP_HASH_SALT=change-me go run .

Or with flags:

	go run . -p 5000 -ip-salt change-me -songs ./songs

# Configuration

Settings come from flags, then environment variables, then a .env file:

  - IP_HASH_SALT (-ip-salt): Secret mixed into stored IP hashes (required)
  - PORT (-p): Server port (default: 5000)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - DATABASE_URL (-d): SQLite path or PostgreSQL connection string
  - SONGS_DIR, UPLOAD_DIR, MAX_UPLOAD_MB: song library locations and limits
  - RATE_LIMIT_MAX, RATE_LIMIT_WINDOW: per-IP vote limit
  - CORS_ORIGINS: comma-separated origins allowed to call the API

Voting restriction, the voting window and results visibility are site
settings stored in the database and edited through /admin/settings.

# Architecture

  - handlers: HTTP request handlers (votes, results, songs, blocks, admin)
  - router: Route table and middleware chain
  - voting: Vote submission pipeline and aggregation
  - library: Song files and metadata
  - ratelimit: Sliding-window limiter
  - session: Cookie-backed server sessions
  - settings: Site settings
  - middleware: Logging, CORS, security headers, admin guards
  - models: Request/response types
  - auth: Tokens, hashing and admin accounts
  - db: Connection and schema
  - cliparse: Configuration parsing
*/
package main
