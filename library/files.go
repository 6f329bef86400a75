// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/dustin/go-humanize"

	"github.com/davidtorcivia/song-voter/models"
)

// ReadMetadata reads title and artist tags. Files without readable tags
// (plain WAV, for one) give empty metadata and no error.
func ReadMetadata(path string) Metadata {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		if !errors.Is(err, tag.ErrNoTagsFound) {
			slog.Debug("failed to read tags", "path", path, "error", err)
		}
		return Metadata{}
	}

	return Metadata{
		Title:  strings.TrimSpace(m.Title()),
		Artist: strings.TrimSpace(m.Artist()),
	}
}

// Scan registers every supported audio file directly inside dir and
// returns how many files were found.
func (s *Store) Scan(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("%w: %s", ErrSongsDirMissing, dir)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read songs directory: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() || !IsSupported(entry.Name()) {
			continue
		}

		fullPath, err := filepath.Abs(filepath.Join(dir, entry.Name()))
		if err != nil {
			return count, fmt.Errorf("failed to resolve path: %w", err)
		}

		if _, err := s.AddSong(ctx, entry.Name(), fullPath, ReadMetadata(fullPath), nil); err != nil {
			return count, err
		}
		count++
	}

	slog.Info("songs scanned", "dir", dir, "count", count)
	return count, nil
}

// InsideDirs reports whether path resolves to a location under one of
// dirs. Symlinks are followed when they exist so a link inside a songs
// folder cannot point elsewhere.
func InsideDirs(path string, dirs ...string) bool {
	target, err := resolve(path)
	if err != nil {
		return false
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		root, err := resolve(dir)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(root, target)
		if err != nil {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel) {
			return true
		}
	}
	return false
}

func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real, nil
	}
	// Missing file: resolve the directory it would live in
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		return filepath.Join(dir, filepath.Base(abs)), nil
	}
	return abs, nil
}

// SanitizeFilename validates an uploaded filename. Names with path
// components or unsupported extensions are rejected.
func SanitizeFilename(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "", ErrInvalidFilename
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) || filepath.Base(name) != name {
		return "", ErrInvalidFilename
	}
	if strings.HasPrefix(name, ".") {
		return "", ErrInvalidFilename
	}
	if !IsSupported(name) {
		return "", ErrUnsupportedType
	}
	return name, nil
}

// SaveUpload writes an uploaded file into dir and registers it. At most
// maxBytes are accepted; existing files are never overwritten.
func (s *Store) SaveUpload(ctx context.Context, dir, filename string, src io.Reader, maxBytes int64, uploadedBy *int64) (models.Song, error) {
	name, err := SanitizeFilename(filename)
	if err != nil {
		return models.Song{}, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return models.Song{}, fmt.Errorf("failed to create upload directory: %w", err)
	}

	fullPath, err := filepath.Abs(filepath.Join(dir, name))
	if err != nil {
		return models.Song{}, fmt.Errorf("failed to resolve path: %w", err)
	}

	f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return models.Song{}, ErrFileExists
	}
	if err != nil {
		return models.Song{}, fmt.Errorf("failed to create file: %w", err)
	}

	// Read one byte past the limit to detect oversized uploads
	written, err := io.Copy(f, io.LimitReader(src, maxBytes+1))
	closeErr := f.Close()
	if err == nil && written > maxBytes {
		err = ErrUploadTooLarge
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(fullPath)
		if errors.Is(err, ErrUploadTooLarge) {
			return models.Song{}, err
		}
		return models.Song{}, fmt.Errorf("failed to write upload: %w", err)
	}

	id, err := s.AddSong(ctx, name, fullPath, ReadMetadata(fullPath), uploadedBy)
	if err != nil {
		os.Remove(fullPath)
		return models.Song{}, err
	}

	slog.Info("song uploaded", "song_id", id, "filename", name, "size", humanize.IBytes(uint64(written)))
	return s.Get(ctx, id)
}
