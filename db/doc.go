// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the database and creates its schema.

# Connections

Open supports SQLite (modernc.org/sqlite, the default) and PostgreSQL
(lib/pq):

	conn, err := db.Open(db.DialectSQLite, "data/song_voter.db")

# Schema Creation

	if err := db.CreateSchema(conn, db.DialectSQLite); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - admin: Admin accounts (owner or admin role)
  - settings: Site settings as string key/value pairs
  - song: Audio files grouped by base_name
  - vote_block: Named, optionally protected voting sessions
  - block_song: Songs assigned to a block
  - vote: Append-only vote ledger
  - block_voter: Voters who used up a one-time-use block
  - web_session: Server-side session state
  - session_block_auth: Blocks a session has unlocked with a password

# Relationships

	song 1──* vote
	vote_block *──* song (via block_song)
	vote_block 1──* vote (block_id cleared on block delete)
	vote_block 1──* block_voter
	web_session *──* vote_block (via session_block_auth)

# Duplicate Votes

The partial unique index uq_vote_voter_scope on (song_id, voter_id,
dedup_scope) closes the check-then-insert race for tracked voters.
IsUniqueViolation classifies the resulting driver errors.
*/
package db
