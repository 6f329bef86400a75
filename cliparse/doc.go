// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

A .env file in the working directory is loaded before flags are read.

# CLI Flags

	-p               Server port (default 5000)
	-d               Database URL or SQLite path
	-t               Database type: sqlite (default) or postgres
	-songs           Directory scanned for audio files
	-uploads         Directory for uploaded audio
	-max-upload-mb   Upload size cap
	-secure-cookies  Session cookies over HTTPS only
	-ip-salt         Salt for IP hashing
	-rate-max        Votes per IP per window (default 30)
	-rate-window     Window length (default 5m)
	-rate-max-ips    Tracked IP cap before eviction (default 10000)

# Environment Variables

Flags fall back to environment variables:

	PORT, DATABASE_URL (or DATABASE_PATH), DATABASE_TYPE, IP_HASH_SALT,
	SONGS_DIR, UPLOAD_DIR, MAX_UPLOAD_MB, SECURE_COOKIES,
	RATE_LIMIT_MAX, RATE_LIMIT_WINDOW, RATE_LIMIT_MAX_IPS

CLI flags take precedence over environment variables.

# Validation

IP_HASH_SALT must be provided. Postgres requires DATABASE_URL.

Site settings that change at runtime (voting restriction, voting window,
results visibility) are not part of Config; see package settings.
*/
package cliparse
