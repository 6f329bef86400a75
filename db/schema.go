// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB, dialect string) error {
	var schema string
	switch dialect {
	case DialectSQLite:
		schema = sqliteSchema
	case DialectPostgres:
		schema = postgresSchema
	default:
		return fmt.Errorf("unsupported database type %q", dialect)
	}

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Vote dedup scope values. A vote cast outside any block uses the global
// scope; block votes use "b:<block id>". The scope is fixed at insert time
// and survives block deletion, so the unique index below stays valid after
// vote.block_id is cleared.
const GlobalScope = "g"

// BlockScope returns the dedup scope for votes cast within a block.
func BlockScope(blockID int64) string {
	return fmt.Sprintf("b:%d", blockID)
}

const sqliteSchema = `
-- Admin accounts
CREATE TABLE IF NOT EXISTS admin (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'admin' CHECK (role IN ('owner', 'admin')),
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Site settings (string key/value)
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Songs
CREATE TABLE IF NOT EXISTS song (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    filename TEXT NOT NULL,
    base_name TEXT NOT NULL,
    full_path TEXT NOT NULL UNIQUE,
    title TEXT,
    artist TEXT,
    uploaded_by INTEGER REFERENCES admin(id) ON DELETE SET NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_song_base_name ON song(base_name);

-- Vote blocks
CREATE TABLE IF NOT EXISTS vote_block (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    slug TEXT NOT NULL UNIQUE,
    password_hash TEXT,
    expires_at TIMESTAMP,
    one_time_use BOOLEAN NOT NULL DEFAULT FALSE,
    voting_restriction TEXT CHECK (voting_restriction IN ('none', 'ip', 'cookie')),
    disable_skip BOOLEAN,
    min_listen_seconds INTEGER CHECK (min_listen_seconds >= 0),
    created_by INTEGER REFERENCES admin(id) ON DELETE SET NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS block_song (
    block_id INTEGER NOT NULL REFERENCES vote_block(id) ON DELETE CASCADE,
    song_id INTEGER NOT NULL REFERENCES song(id) ON DELETE CASCADE,
    position INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (block_id, song_id)
);

CREATE INDEX IF NOT EXISTS idx_block_song_song_id ON block_song(song_id);

-- Votes (append only)
CREATE TABLE IF NOT EXISTS vote (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    song_id INTEGER NOT NULL REFERENCES song(id) ON DELETE CASCADE,
    thumbs_up BOOLEAN,
    rating INTEGER CHECK (rating >= 1 AND rating <= 10),
    voter_id TEXT,
    block_id INTEGER REFERENCES vote_block(id) ON DELETE SET NULL,
    dedup_scope TEXT NOT NULL DEFAULT 'g',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    CHECK (thumbs_up IS NOT NULL OR rating IS NOT NULL)
);

CREATE INDEX IF NOT EXISTS idx_vote_song_id ON vote(song_id);
CREATE INDEX IF NOT EXISTS idx_vote_block_id ON vote(block_id);
CREATE UNIQUE INDEX IF NOT EXISTS uq_vote_voter_scope
    ON vote(song_id, voter_id, dedup_scope) WHERE voter_id IS NOT NULL;

-- One row per voter in a one-time-use block
CREATE TABLE IF NOT EXISTS block_voter (
    block_id INTEGER NOT NULL REFERENCES vote_block(id) ON DELETE CASCADE,
    voter_id TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (block_id, voter_id)
);

-- Server-side sessions
CREATE TABLE IF NOT EXISTS web_session (
    id TEXT PRIMARY KEY,
    voter_token TEXT,
    admin_id INTEGER REFERENCES admin(id) ON DELETE CASCADE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_seen_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS session_block_auth (
    session_id TEXT NOT NULL REFERENCES web_session(id) ON DELETE CASCADE,
    block_id INTEGER NOT NULL REFERENCES vote_block(id) ON DELETE CASCADE,
    PRIMARY KEY (session_id, block_id)
);
`

const postgresSchema = `
-- Admin accounts
CREATE TABLE IF NOT EXISTS admin (
    id BIGSERIAL PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'admin' CHECK (role IN ('owner', 'admin')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Site settings (string key/value)
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Songs
CREATE TABLE IF NOT EXISTS song (
    id BIGSERIAL PRIMARY KEY,
    filename TEXT NOT NULL,
    base_name TEXT NOT NULL,
    full_path TEXT NOT NULL UNIQUE,
    title TEXT,
    artist TEXT,
    uploaded_by BIGINT REFERENCES admin(id) ON DELETE SET NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_song_base_name ON song(base_name);

-- Vote blocks
CREATE TABLE IF NOT EXISTS vote_block (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    slug TEXT NOT NULL UNIQUE,
    password_hash TEXT,
    expires_at TIMESTAMPTZ,
    one_time_use BOOLEAN NOT NULL DEFAULT FALSE,
    voting_restriction TEXT CHECK (voting_restriction IN ('none', 'ip', 'cookie')),
    disable_skip BOOLEAN,
    min_listen_seconds INTEGER CHECK (min_listen_seconds >= 0),
    created_by BIGINT REFERENCES admin(id) ON DELETE SET NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS block_song (
    block_id BIGINT NOT NULL REFERENCES vote_block(id) ON DELETE CASCADE,
    song_id BIGINT NOT NULL REFERENCES song(id) ON DELETE CASCADE,
    position INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (block_id, song_id)
);

CREATE INDEX IF NOT EXISTS idx_block_song_song_id ON block_song(song_id);

-- Votes (append only)
CREATE TABLE IF NOT EXISTS vote (
    id BIGSERIAL PRIMARY KEY,
    song_id BIGINT NOT NULL REFERENCES song(id) ON DELETE CASCADE,
    thumbs_up BOOLEAN,
    rating INTEGER CHECK (rating >= 1 AND rating <= 10),
    voter_id TEXT,
    block_id BIGINT REFERENCES vote_block(id) ON DELETE SET NULL,
    dedup_scope TEXT NOT NULL DEFAULT 'g',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (thumbs_up IS NOT NULL OR rating IS NOT NULL)
);

CREATE INDEX IF NOT EXISTS idx_vote_song_id ON vote(song_id);
CREATE INDEX IF NOT EXISTS idx_vote_block_id ON vote(block_id);
CREATE UNIQUE INDEX IF NOT EXISTS uq_vote_voter_scope
    ON vote(song_id, voter_id, dedup_scope) WHERE voter_id IS NOT NULL;

-- One row per voter in a one-time-use block
CREATE TABLE IF NOT EXISTS block_voter (
    block_id BIGINT NOT NULL REFERENCES vote_block(id) ON DELETE CASCADE,
    voter_id TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (block_id, voter_id)
);

-- Server-side sessions
CREATE TABLE IF NOT EXISTS web_session (
    id TEXT PRIMARY KEY,
    voter_token TEXT,
    admin_id BIGINT REFERENCES admin(id) ON DELETE CASCADE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS session_block_auth (
    session_id TEXT NOT NULL REFERENCES web_session(id) ON DELETE CASCADE,
    block_id BIGINT NOT NULL REFERENCES vote_block(id) ON DELETE CASCADE,
    PRIMARY KEY (session_id, block_id)
);
`
