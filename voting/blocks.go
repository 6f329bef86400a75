// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/davidtorcivia/song-voter/auth"
	"github.com/davidtorcivia/song-voter/db"
	"github.com/davidtorcivia/song-voter/models"
	"github.com/davidtorcivia/song-voter/settings"
)

var (
	ErrBlockNameRequired = errors.New("name is required")
	ErrBlockNoSongs      = errors.New("at least one song is required")
	ErrUnknownSong       = errors.New("song_ids contains an unknown song")
)

// Slug collisions are retried this many times
const slugAttempts = 3

// BlockStore manages vote blocks and their song lists
type BlockStore struct {
	db    *sql.DB
	clock clockwork.Clock
}

func NewBlockStore(db *sql.DB, clock clockwork.Clock) *BlockStore {
	return &BlockStore{db: db, clock: clock}
}

const blockColumns = `id, name, slug, password_hash, expires_at, one_time_use,
	voting_restriction, disable_skip, min_listen_seconds, created_by, created_at`

func scanBlock(row interface{ Scan(...any) error }) (*models.VoteBlock, error) {
	var b models.VoteBlock
	var passwordHash, restriction sql.NullString
	var expiresAt sql.NullTime
	var disableSkip sql.NullBool
	var minListen, createdBy sql.NullInt64

	err := row.Scan(&b.ID, &b.Name, &b.Slug, &passwordHash, &expiresAt, &b.OneTimeUse,
		&restriction, &disableSkip, &minListen, &createdBy, &b.CreatedAt)
	if err != nil {
		return nil, err
	}

	if passwordHash.Valid && passwordHash.String != "" {
		b.PasswordHash = &passwordHash.String
		b.HasPassword = true
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		b.ExpiresAt = &t
	}
	if restriction.Valid {
		b.VotingRestriction = &restriction.String
	}
	if disableSkip.Valid {
		b.DisableSkip = &disableSkip.Bool
	}
	if minListen.Valid {
		n := int(minListen.Int64)
		b.MinListenSeconds = &n
	}
	if createdBy.Valid {
		b.CreatedBy = &createdBy.Int64
	}
	b.SongIDs = []int64{}
	return &b, nil
}

func (s *BlockStore) getOne(ctx context.Context, where string, arg any) (*models.VoteBlock, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM vote_block WHERE `+where+` = $1`, arg)
	b, err := scanBlock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query vote block: %w", err)
	}

	if b.SongIDs, err = s.songIDs(ctx, b.ID); err != nil {
		return nil, err
	}
	return b, nil
}

// Get returns a block by ID
func (s *BlockStore) Get(ctx context.Context, id int64) (*models.VoteBlock, error) {
	return s.getOne(ctx, "id", id)
}

// GetBySlug returns a block by its public slug
func (s *BlockStore) GetBySlug(ctx context.Context, slug string) (*models.VoteBlock, error) {
	return s.getOne(ctx, "slug", slug)
}

// List returns every block, newest first
func (s *BlockStore) List(ctx context.Context) ([]*models.VoteBlock, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+blockColumns+` FROM vote_block ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query vote blocks: %w", err)
	}

	blocks := []*models.VoteBlock{}
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan vote block: %w", err)
		}
		blocks = append(blocks, b)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read vote blocks: %w", err)
	}

	for _, b := range blocks {
		if b.SongIDs, err = s.songIDs(ctx, b.ID); err != nil {
			return nil, err
		}
	}
	return blocks, nil
}

func (s *BlockStore) songIDs(ctx context.Context, blockID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT song_id FROM block_song WHERE block_id = $1 ORDER BY position, song_id
	`, blockID)
	if err != nil {
		return nil, fmt.Errorf("failed to query block songs: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan block song: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Contains reports whether songID is part of block
func Contains(block *models.VoteBlock, songID int64) bool {
	for _, id := range block.SongIDs {
		if id == songID {
			return true
		}
	}
	return false
}

func validateRestriction(mode *string) error {
	if mode != nil && *mode != "" && !settings.ValidRestriction(*mode) {
		return settings.ErrInvalidRestriction
	}
	return nil
}

// restrictionValue maps an empty override to NULL (inherit)
func restrictionValue(mode *string) *string {
	if mode == nil || *mode == "" {
		return nil
	}
	return mode
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// checkSongs verifies every ID names an existing song
func (s *BlockStore) checkSongs(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		var exists bool
		err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM song WHERE id = $1)`, id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check song: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: %d", ErrUnknownSong, id)
		}
	}
	return nil
}

func replaceSongs(ctx context.Context, tx *sql.Tx, blockID int64, ids []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM block_song WHERE block_id = $1`, blockID); err != nil {
		return fmt.Errorf("failed to clear block songs: %w", err)
	}
	for i, songID := range ids {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO block_song (block_id, song_id, position) VALUES ($1, $2, $3)
		`, blockID, songID, i)
		if err != nil {
			return fmt.Errorf("failed to add block song: %w", err)
		}
	}
	return nil
}

// Create stores a new block and returns its ID and slug
func (s *BlockStore) Create(ctx context.Context, req models.CreateBlockRequest, createdBy *int64) (int64, string, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return 0, "", ErrBlockNameRequired
	}
	songIDs := dedupe(req.SongIDs)
	if len(songIDs) == 0 {
		return 0, "", ErrBlockNoSongs
	}
	if err := validateRestriction(req.VotingRestriction); err != nil {
		return 0, "", err
	}
	if req.MinListenSeconds != nil && *req.MinListenSeconds < 0 {
		return 0, "", settings.ErrInvalidListenTime
	}
	if err := s.checkSongs(ctx, songIDs); err != nil {
		return 0, "", err
	}

	var passwordHash *string
	if req.Password != nil && *req.Password != "" {
		h, err := auth.HashPassword(*req.Password)
		if err != nil {
			return 0, "", err
		}
		passwordHash = &h
	}

	var expiresAt *time.Time
	if req.ExpiresAt != nil {
		t := req.ExpiresAt.UTC()
		expiresAt = &t
	}

	for attempt := 1; ; attempt++ {
		slug, err := auth.GenerateBlockSlug(name)
		if err != nil {
			return 0, "", err
		}

		id, err := s.insert(ctx, name, slug, passwordHash, expiresAt, req, songIDs, createdBy)
		if db.IsUniqueViolation(err) && attempt < slugAttempts {
			slog.Warn("vote block slug collision, retrying", "slug", slug)
			continue
		}
		if err != nil {
			return 0, "", err
		}

		slog.Info("vote block created", "block_id", id, "slug", slug, "songs", len(songIDs))
		return id, slug, nil
	}
}

func (s *BlockStore) insert(ctx context.Context, name, slug string, passwordHash *string, expiresAt *time.Time,
	req models.CreateBlockRequest, songIDs []int64, createdBy *int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO vote_block (name, slug, password_hash, expires_at, one_time_use,
			voting_restriction, disable_skip, min_listen_seconds, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, name, slug, passwordHash, expiresAt, req.OneTimeUse, restrictionValue(req.VotingRestriction),
		req.DisableSkip, req.MinListenSeconds, createdBy, s.clock.Now().UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert vote block: %w", err)
	}

	if err := replaceSongs(ctx, tx, id, songIDs); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit vote block: %w", err)
	}
	return id, nil
}

// Update changes the fields present in req
func (s *BlockStore) Update(ctx context.Context, id int64, req models.UpdateBlockRequest) error {
	block, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	name := block.Name
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
		if name == "" {
			return ErrBlockNameRequired
		}
	}

	passwordHash := block.PasswordHash
	passwordChanged := false
	switch {
	case req.ClearPassword:
		passwordHash = nil
		passwordChanged = true
	case req.Password != nil && *req.Password != "":
		h, err := auth.HashPassword(*req.Password)
		if err != nil {
			return err
		}
		passwordHash = &h
		passwordChanged = true
	}

	expiresAt := block.ExpiresAt
	switch {
	case req.ClearExpiry:
		expiresAt = nil
	case req.ExpiresAt != nil:
		t := req.ExpiresAt.UTC()
		expiresAt = &t
	}

	oneTimeUse := block.OneTimeUse
	if req.OneTimeUse != nil {
		oneTimeUse = *req.OneTimeUse
	}

	restriction := block.VotingRestriction
	if req.VotingRestriction != nil {
		if err := validateRestriction(req.VotingRestriction); err != nil {
			return err
		}
		restriction = restrictionValue(req.VotingRestriction)
	}

	disableSkip := block.DisableSkip
	if req.DisableSkip != nil {
		disableSkip = req.DisableSkip
	}

	minListen := block.MinListenSeconds
	if req.MinListenSeconds != nil {
		if *req.MinListenSeconds < 0 {
			return settings.ErrInvalidListenTime
		}
		minListen = req.MinListenSeconds
	}

	var songIDs []int64
	if req.SongIDs != nil {
		songIDs = dedupe(req.SongIDs)
		if len(songIDs) == 0 {
			return ErrBlockNoSongs
		}
		if err := s.checkSongs(ctx, songIDs); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE vote_block
		SET name = $1, password_hash = $2, expires_at = $3, one_time_use = $4,
			voting_restriction = $5, disable_skip = $6, min_listen_seconds = $7
		WHERE id = $8
	`, name, passwordHash, expiresAt, oneTimeUse, restriction, disableSkip, minListen, id)
	if err != nil {
		return fmt.Errorf("failed to update vote block: %w", err)
	}

	if songIDs != nil {
		if err := replaceSongs(ctx, tx, id, songIDs); err != nil {
			return err
		}
	}

	// Sessions unlocked with the old password must unlock again
	if passwordChanged {
		if _, err := tx.ExecContext(ctx, `DELETE FROM session_block_auth WHERE block_id = $1`, id); err != nil {
			return fmt.Errorf("failed to revoke block access: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit vote block: %w", err)
	}

	slog.Info("vote block updated", "block_id", id, "password_changed", passwordChanged)
	return nil
}

// Delete removes a block and its song links. Votes cast in the block are
// kept with their block reference cleared.
func (s *BlockStore) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE vote SET block_id = NULL WHERE block_id = $1`, id); err != nil {
		return fmt.Errorf("failed to detach votes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM block_song WHERE block_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete block songs: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM vote_block WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete vote block: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to delete vote block: %w", err)
	} else if n == 0 {
		return ErrBlockNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit block delete: %w", err)
	}

	slog.Info("vote block deleted", "block_id", id)
	return nil
}

// CheckPassword reports whether password opens block. Blocks without a
// password accept anything.
func CheckPassword(block *models.VoteBlock, password string) bool {
	if !block.HasPassword {
		return true
	}
	return auth.CheckPassword(*block.PasswordHash, password) == nil
}
