// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/davidtorcivia/song-voter/models"
)

var (
	ErrSongNotFound    = errors.New("song not found")
	ErrSongsDirMissing = errors.New("songs directory not found")
	ErrInvalidFilename = errors.New("invalid filename")
	ErrUnsupportedType = errors.New("unsupported audio format")
	ErrFileExists      = errors.New("a file with that name already exists")
	ErrUploadTooLarge  = errors.New("upload exceeds size limit")
)

// Audio formats accepted by scan and upload
var supportedExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".flac": true,
	".ogg":  true,
	".m4a":  true,
}

// Trailing "(2)", "(10)" etc. marks another version of the same track
var versionSuffix = regexp.MustCompile(`\s*\(\d+\)\s*$`)

// ParseBaseName returns the version-stripped grouping key for a filename:
// "Song Title (2).wav" -> "Song Title".
func ParseBaseName(filename string) string {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	name = versionSuffix.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// IsSupported reports whether filename has a supported audio extension
func IsSupported(filename string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Metadata holds optional tag values read from an audio file
type Metadata struct {
	Title  string
	Artist string
}

// Store provides song lookups and mutations
type Store struct {
	db    *sql.DB
	clock clockwork.Clock
}

func NewStore(db *sql.DB, clock clockwork.Clock) *Store {
	return &Store{db: db, clock: clock}
}

const songColumns = `s.id, s.filename, s.base_name, s.full_path, s.title, s.artist, s.uploaded_by, s.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSong(row rowScanner) (models.Song, error) {
	var song models.Song
	var title, artist sql.NullString
	var uploadedBy sql.NullInt64

	err := row.Scan(&song.ID, &song.Filename, &song.BaseName, &song.FullPath,
		&title, &artist, &uploadedBy, &song.CreatedAt)
	if err != nil {
		return song, err
	}

	song.Title = title.String
	song.Artist = artist.String
	if uploadedBy.Valid {
		song.UploadedBy = &uploadedBy.Int64
	}
	return song, nil
}

func (s *Store) querySongs(ctx context.Context, query string, args ...any) ([]models.Song, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs: %w", err)
	}
	defer rows.Close()

	songs := []models.Song{}
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan song: %w", err)
		}
		songs = append(songs, song)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read songs: %w", err)
	}

	return songs, nil
}

// AddSong registers a song file. Adding the same full path twice returns
// the existing song ID.
func (s *Store) AddSong(ctx context.Context, filename, fullPath string, meta Metadata, uploadedBy *int64) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO song (filename, base_name, full_path, title, artist, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (full_path) DO NOTHING
	`, filename, ParseBaseName(filename), fullPath,
		nullString(meta.Title), nullString(meta.Artist), uploadedBy, s.clock.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert song: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `SELECT id FROM song WHERE full_path = $1`, fullPath).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to read song id: %w", err)
	}
	return id, nil
}

// Get returns one song
func (s *Store) Get(ctx context.Context, id int64) (models.Song, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+songColumns+` FROM song s WHERE s.id = $1`, id)
	song, err := scanSong(row)
	if errors.Is(err, sql.ErrNoRows) {
		return song, ErrSongNotFound
	}
	if err != nil {
		return song, fmt.Errorf("failed to query song: %w", err)
	}
	return song, nil
}

// List returns every song ordered by base name then filename
func (s *Store) List(ctx context.Context) ([]models.Song, error) {
	return s.querySongs(ctx, `SELECT `+songColumns+` FROM song s ORDER BY s.base_name, s.filename`)
}

// ListByBaseName returns all versions of one track
func (s *Store) ListByBaseName(ctx context.Context, baseName string) ([]models.Song, error) {
	return s.querySongs(ctx, `
		SELECT `+songColumns+` FROM song s
		WHERE s.base_name = $1
		ORDER BY s.filename
	`, baseName)
}

// ListForBlock returns the songs of a vote block in block order
func (s *Store) ListForBlock(ctx context.Context, blockID int64) ([]models.Song, error) {
	return s.querySongs(ctx, `
		SELECT `+songColumns+` FROM block_song bs
		JOIN song s ON s.id = bs.song_id
		WHERE bs.block_id = $1
		ORDER BY bs.position, s.id
	`, blockID)
}

// BaseNames returns the distinct base names, sorted
func (s *Store) BaseNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT base_name FROM song ORDER BY base_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query base names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan base name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Delete removes a song together with its votes and block memberships
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM song WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete song: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete song: %w", err)
	}
	if n == 0 {
		return ErrSongNotFound
	}
	return nil
}

// Clear removes every song and every vote. Vote blocks are kept but
// lose their songs.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM vote`,
		`DELETE FROM block_voter`,
		`DELETE FROM block_song`,
		`DELETE FROM song`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear data: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear: %w", err)
	}
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
