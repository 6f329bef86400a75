// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides token generation, hashing and admin accounts.

# Voter Tokens

Random 24-byte (192-bit) secrets, URL-safe base64 without padding:

	token, err := auth.GenerateVoterToken()

Used as session IDs.

# IP Hashing

	hash := auth.HashIP(ipAddress, salt)

Returns the first 8 bytes (16 hex chars) of HMAC-SHA256. Raw IPs are never
stored.

# Passwords

Admin and vote block passwords are bcrypt hashes:

	hash, err := auth.HashPassword(pw)
	err = auth.CheckPassword(hash, pw)

Admin passwords must be at least MinPasswordLength characters.

# Block Slugs

	slug, err := auth.GenerateBlockSlug("Friday Mixes") // friday-mixes-3kZ9aQ

# Admin Accounts

CreateAdmin, Authenticate, GetAdmin, ListAdmins, DeleteAdmin and
CountAdmins operate on the admin table. Authenticate compares against a
dummy hash for unknown emails so response time does not reveal which
emails exist.

SetupOwner creates the first owner. It claims a settings marker and checks
the admin count in the insert transaction, so concurrent first-run setups
produce one owner and ErrSetupDone for the rest.
*/
package auth
