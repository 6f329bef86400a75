// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"

	"github.com/davidtorcivia/song-voter/cliparse"
	"github.com/davidtorcivia/song-voter/library"
	"github.com/davidtorcivia/song-voter/middleware"
	"github.com/davidtorcivia/song-voter/models"
)

// Multipart parts beyond this are spooled to disk
const multipartMemory = 32 << 20

type SongHandler struct {
	songs *library.Store
	cfg   cliparse.Config
}

func NewSongHandler(db *sql.DB, cfg cliparse.Config, clock clockwork.Clock) *SongHandler {
	return &SongHandler{songs: library.NewStore(db, clock), cfg: cfg}
}

// ListSongs handles GET /api/songs[?base_name=]
func (h *SongHandler) ListSongs(w http.ResponseWriter, r *http.Request) {
	var songs []models.Song
	var err error
	if baseName := r.URL.Query().Get("base_name"); baseName != "" {
		songs, err = h.songs.ListByBaseName(r.Context(), baseName)
	} else {
		songs, err = h.songs.List(r.Context())
	}
	if err != nil {
		slog.Error("failed to list songs", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.SongsResponse{Songs: songs})
}

// GetBaseNames handles GET /api/base-names
func (h *SongHandler) GetBaseNames(w http.ResponseWriter, r *http.Request) {
	names, err := h.songs.BaseNames(r.Context())
	if err != nil {
		slog.Error("failed to list base names", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.BaseNamesResponse{BaseNames: names})
}

// StreamAudio handles GET /api/songs/{id}/audio with Range support
func (h *SongHandler) StreamAudio(w http.ResponseWriter, r *http.Request) {
	songID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	song, err := h.songs.Get(r.Context(), songID)
	if errors.Is(err, library.ErrSongNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Song not found")
		return
	}
	if err != nil {
		slog.Error("failed to load song", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if !library.InsideDirs(song.FullPath, h.cfg.SongsDir, h.cfg.UploadDir) {
		slog.Warn("audio path outside library directories", "song_id", songID)
		middleware.ErrorResponse(w, http.StatusForbidden, "Access denied")
		return
	}

	f, err := os.Open(song.FullPath)
	if err != nil {
		slog.Warn("audio file missing", "song_id", songID, "error", err)
		middleware.ErrorResponse(w, http.StatusNotFound, "Audio file not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		slog.Error("failed to stat audio file", "song_id", songID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to read audio")
		return
	}

	http.ServeContent(w, r, song.Filename, info.ModTime(), f)
}

// Scan handles POST /admin/scan
func (h *SongHandler) Scan(w http.ResponseWriter, r *http.Request) {
	count, err := h.songs.Scan(r.Context(), h.cfg.SongsDir)
	if errors.Is(err, library.ErrSongsDirMissing) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Songs directory not found")
		return
	}
	if err != nil {
		slog.Error("failed to scan songs", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to scan songs")
		return
	}

	songs, err := h.songs.List(r.Context())
	if err != nil {
		slog.Error("failed to list songs", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	names, err := h.songs.BaseNames(r.Context())
	if err != nil {
		slog.Error("failed to list base names", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ScanResponse{
		Success:   true,
		Count:     count,
		Songs:     songs,
		BaseNames: names,
	})
}

// Upload handles POST /admin/upload (multipart field "files")
func (h *SongHandler) Upload(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.cfg.MaxUploadMB << 20
	// Whole request cap; each file is also checked on its own
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes*4+multipartMemory)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid multipart upload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		files = r.MultipartForm.File["file"]
	}
	if len(files) == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "No files uploaded")
		return
	}

	// Reject the batch before writing anything if a file is known bad
	if fh, err := h.checkBatch(files, maxBytes); err != nil {
		status, msg := uploadError(err)
		middleware.ErrorResponse(w, status, fh.Filename+": "+msg)
		return
	}

	uploaded := []models.Song{}
	for _, fh := range files {
		song, err := h.saveOne(r, fh, maxBytes)
		if err != nil {
			status, msg := uploadError(err)
			if status == http.StatusInternalServerError {
				slog.Error("failed to save upload", "filename", fh.Filename, "error", err)
			}
			// Earlier files are kept; report them with the failure
			slog.Warn("upload batch partially saved", "saved", len(uploaded), "total", len(files))
			middleware.JSONResponse(w, status, models.UploadResponse{
				Songs: uploaded,
				Error: fh.Filename + ": " + msg,
			})
			return
		}
		uploaded = append(uploaded, song)
	}

	middleware.JSONResponse(w, http.StatusCreated, models.UploadResponse{Success: true, Songs: uploaded})
}

// checkBatch validates names and sizes of every file and returns the first
// offender. Names repeated within the batch or already on disk are rejected.
func (h *SongHandler) checkBatch(files []*multipart.FileHeader, maxBytes int64) (*multipart.FileHeader, error) {
	seen := make(map[string]bool, len(files))
	for _, fh := range files {
		name, err := library.SanitizeFilename(fh.Filename)
		if err != nil {
			return fh, err
		}
		if fh.Size > maxBytes {
			return fh, library.ErrUploadTooLarge
		}
		if seen[name] {
			return fh, library.ErrFileExists
		}
		seen[name] = true
		if _, err := os.Stat(filepath.Join(h.cfg.UploadDir, name)); err == nil {
			return fh, library.ErrFileExists
		}
	}
	return nil, nil
}

func (h *SongHandler) saveOne(r *http.Request, fh *multipart.FileHeader, maxBytes int64) (models.Song, error) {
	f, err := fh.Open()
	if err != nil {
		return models.Song{}, err
	}
	defer f.Close()
	return h.songs.SaveUpload(r.Context(), h.cfg.UploadDir, fh.Filename, f, maxBytes, adminID(r))
}

func uploadError(err error) (int, string) {
	switch {
	case errors.Is(err, library.ErrInvalidFilename), errors.Is(err, library.ErrUnsupportedType):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, library.ErrFileExists):
		return http.StatusConflict, err.Error()
	case errors.Is(err, library.ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	default:
		return http.StatusInternalServerError, "Failed to save upload"
	}
}

// DeleteSong handles DELETE /admin/songs/{id}
func (h *SongHandler) DeleteSong(w http.ResponseWriter, r *http.Request) {
	songID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	err := h.songs.Delete(r.Context(), songID)
	if errors.Is(err, library.ErrSongNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Song not found")
		return
	}
	if err != nil {
		slog.Error("failed to delete song", "error", err, "song_id", songID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete song")
		return
	}

	slog.Info("song deleted", "song_id", songID)
	middleware.JSONResponse(w, http.StatusOK, models.SuccessResponse{Success: true})
}

// ClearData handles POST /admin/clear
func (h *SongHandler) ClearData(w http.ResponseWriter, r *http.Request) {
	if err := h.songs.Clear(r.Context()); err != nil {
		slog.Error("failed to clear data", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to clear data")
		return
	}

	slog.Warn("all songs and votes cleared", "admin_id", *adminID(r))
	middleware.JSONResponse(w, http.StatusOK, models.SuccessResponse{Success: true})
}
