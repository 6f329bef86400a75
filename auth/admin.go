// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/davidtorcivia/song-voter/db"
	"github.com/davidtorcivia/song-voter/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidRole        = errors.New("role must be owner or admin")
	ErrEmailRequired      = errors.New("email is required")
	ErrAdminNotFound      = errors.New("admin not found")
	ErrSetupDone          = errors.New("setup already completed")
)

// setupMarker is the settings key claimed by the first-run setup
const setupMarker = "setup_completed"

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dummyHash keeps login timing the same for unknown emails
var dummyHash, _ = HashPassword("song-voter-timing-guard")

// CountAdmins returns the number of admin accounts
func CountAdmins(ctx context.Context, conn *sql.DB) (int, error) {
	var n int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM admin`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return n, nil
}

// CreateAdmin validates and stores a new admin account
func CreateAdmin(ctx context.Context, conn *sql.DB, email, password, role string) (int64, error) {
	email, hash, err := prepareAdmin(email, password, role)
	if err != nil {
		return 0, err
	}
	return insertAdmin(ctx, conn, email, hash, role)
}

// SetupOwner creates the first owner account. The settings marker and the
// admin count are checked in the same transaction as the insert, so of two
// concurrent setups only one succeeds; the other gets ErrSetupDone.
func SetupOwner(ctx context.Context, conn *sql.DB, email, password string) (int64, error) {
	email, hash, err := prepareAdmin(email, password, models.RoleOwner)
	if err != nil {
		return 0, err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO settings (key, value) VALUES ($1, $2)`,
		setupMarker, time.Now().UTC().Format(time.RFC3339))
	if db.IsUniqueViolation(err) {
		return 0, ErrSetupDone
	}
	if err != nil {
		return 0, fmt.Errorf("failed to claim setup: %w", err)
	}

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM admin`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	if n > 0 {
		return 0, ErrSetupDone
	}

	id, err := insertAdmin(ctx, tx, email, hash, models.RoleOwner)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		if db.IsUniqueViolation(err) {
			return 0, ErrSetupDone
		}
		return 0, fmt.Errorf("failed to commit setup: %w", err)
	}
	return id, nil
}

func prepareAdmin(email, password, role string) (string, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", "", ErrEmailRequired
	}
	if role != models.RoleOwner && role != models.RoleAdmin {
		return "", "", ErrInvalidRole
	}
	if err := ValidateAdminPassword(password); err != nil {
		return "", "", err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return "", "", err
	}
	return email, hash, nil
}

func insertAdmin(ctx context.Context, q queryRower, email, hash, role string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO admin (email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, email, hash, role, time.Now().UTC()).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, ErrEmailTaken
		}
		return 0, fmt.Errorf("failed to insert admin: %w", err)
	}

	return id, nil
}

// Authenticate checks an email/password pair
func Authenticate(ctx context.Context, conn *sql.DB, email, password string) (models.Admin, error) {
	admin, err := findAdmin(ctx, conn, `WHERE email = $1`, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrAdminNotFound) {
		CheckPassword(dummyHash, password)
		return models.Admin{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.Admin{}, err
	}

	if err := CheckPassword(admin.PasswordHash, password); err != nil {
		return models.Admin{}, ErrInvalidCredentials
	}
	return admin, nil
}

// GetAdmin loads an admin by ID
func GetAdmin(ctx context.Context, conn *sql.DB, id int64) (models.Admin, error) {
	return findAdmin(ctx, conn, `WHERE id = $1`, id)
}

// ListAdmins returns all admins ordered by creation
func ListAdmins(ctx context.Context, conn *sql.DB) ([]models.Admin, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT id, email, password_hash, role, created_at
		FROM admin
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query admins: %w", err)
	}
	defer rows.Close()

	admins := []models.Admin{}
	for rows.Next() {
		var a models.Admin
		if err := rows.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan admin: %w", err)
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}

// DeleteAdmin removes an admin account
func DeleteAdmin(ctx context.Context, conn *sql.DB, id int64) error {
	res, err := conn.ExecContext(ctx, `DELETE FROM admin WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete admin: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAdminNotFound
	}
	return nil
}

func findAdmin(ctx context.Context, conn *sql.DB, where string, arg any) (models.Admin, error) {
	var a models.Admin
	err := conn.QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, created_at
		FROM admin `+where, arg).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Admin{}, ErrAdminNotFound
	}
	if err != nil {
		return models.Admin{}, fmt.Errorf("failed to query admin: %w", err)
	}
	return a, nil
}
