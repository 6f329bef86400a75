// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/davidtorcivia/song-voter/library"
	"github.com/davidtorcivia/song-voter/models"
	"github.com/davidtorcivia/song-voter/testutil"
)

func TestListSongs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := NewSongHandler(db, testutil.GetTestConfig(), clockwork.NewRealClock())
	testutil.CreateTestSong(t, db, "anthem.wav", "anthem")
	testutil.CreateTestSong(t, db, "anthem (2).wav", "anthem")
	testutil.CreateTestSong(t, db, "ballad.mp3", "ballad")

	list := func(path string) models.SongsResponse {
		w := httptest.NewRecorder()
		h.ListSongs(w, httptest.NewRequest("GET", path, nil))
		testutil.AssertStatus(t, w, http.StatusOK)
		var resp models.SongsResponse
		testutil.AssertJSON(t, w, &resp)
		return resp
	}

	if got := len(list("/api/songs").Songs); got != 3 {
		t.Errorf("Expected 3 songs, got %d", got)
	}
	if got := len(list("/api/songs?base_name=anthem").Songs); got != 2 {
		t.Errorf("Expected 2 anthem versions, got %d", got)
	}

	w := httptest.NewRecorder()
	h.GetBaseNames(w, httptest.NewRequest("GET", "/api/base-names", nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	var names models.BaseNamesResponse
	testutil.AssertJSON(t, w, &names)
	if len(names.BaseNames) != 2 || names.BaseNames[0] != "anthem" || names.BaseNames[1] != "ballad" {
		t.Errorf("Expected [anthem ballad], got %v", names.BaseNames)
	}
}

func TestStreamAudio(t *testing.T) {
	db := testutil.SetupTestDB(t)
	dir := t.TempDir()
	cfg := testutil.GetTestConfig()
	cfg.SongsDir = dir
	h := NewSongHandler(db, cfg, clockwork.NewRealClock())

	path := filepath.Join(dir, "anthem.wav")
	if err := os.WriteFile(path, []byte("RIFFdata-payload"), 0o644); err != nil {
		t.Fatalf("Failed to write audio file: %v", err)
	}
	store := library.NewStore(db, clockwork.NewRealClock())
	songID, err := store.AddSong(context.Background(), "anthem.wav", path, library.Metadata{}, nil)
	if err != nil {
		t.Fatalf("Failed to add song: %v", err)
	}
	missingID, err := store.AddSong(context.Background(), "gone.wav", filepath.Join(dir, "gone.wav"), library.Metadata{}, nil)
	if err != nil {
		t.Fatalf("Failed to add song: %v", err)
	}

	stream := func(id int64, rangeHeader string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/songs/x/audio", nil)
		req.SetPathValue("id", strconv.FormatInt(id, 10))
		if rangeHeader != "" {
			req.Header.Set("Range", rangeHeader)
		}
		h.StreamAudio(w, req)
		return w
	}

	w := stream(songID, "")
	testutil.AssertStatus(t, w, http.StatusOK)
	if w.Body.String() != "RIFFdata-payload" {
		t.Errorf("Unexpected body %q", w.Body.String())
	}

	w = stream(songID, "bytes=0-3")
	testutil.AssertStatus(t, w, http.StatusPartialContent)
	if w.Body.String() != "RIFF" {
		t.Errorf("Expected first 4 bytes, got %q", w.Body.String())
	}

	outside := filepath.Join(t.TempDir(), "secret.wav")
	if err := os.WriteFile(outside, []byte("private"), 0o644); err != nil {
		t.Fatalf("Failed to write outside file: %v", err)
	}
	outsideID, err := store.AddSong(context.Background(), "secret.wav", outside, library.Metadata{}, nil)
	if err != nil {
		t.Fatalf("Failed to add song: %v", err)
	}
	escapeID, err := store.AddSong(context.Background(), "escape.wav", filepath.Join(dir, "..", "escape.wav"), library.Metadata{}, nil)
	if err != nil {
		t.Fatalf("Failed to add song: %v", err)
	}

	w = stream(outsideID, "")
	testutil.AssertStatus(t, w, http.StatusForbidden)
	if strings.Contains(w.Body.String(), "private") {
		t.Error("Expected file outside the library to stay unread")
	}
	testutil.AssertStatus(t, stream(escapeID, ""), http.StatusForbidden)
	testutil.AssertStatus(t, stream(missingID, ""), http.StatusNotFound)
	testutil.AssertStatus(t, stream(999, ""), http.StatusNotFound)
}

type uploadFile struct {
	name    string
	content []byte
}

func multipartUpload(t *testing.T, files map[string][]byte) *http.Request {
	t.Helper()

	var ordered []uploadFile
	for name, content := range files {
		ordered = append(ordered, uploadFile{name, content})
	}
	return multipartFiles(t, ordered...)
}

func multipartFiles(t *testing.T, files ...uploadFile) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.name)
		if err != nil {
			t.Fatalf("Failed to create form file: %v", err)
		}
		if _, err := io.Copy(part, bytes.NewReader(f.content)); err != nil {
			t.Fatalf("Failed to write form file: %v", err)
		}
	}
	mw.Close()

	req := httptest.NewRequest("POST", "/admin/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	cfg.UploadDir = t.TempDir()
	cfg.MaxUploadMB = 1
	h := NewSongHandler(db, cfg, clockwork.NewRealClock())
	adminID := createAdmin(t, db, "admin@example.com", models.RoleAdmin)

	upload := func(files map[string][]byte) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.Upload(w, withSession(t, db, w, multipartUpload(t, files), &adminID))
		return w
	}

	w := upload(map[string][]byte{"demo (3).mp3": []byte("not really audio")})
	testutil.AssertStatus(t, w, http.StatusCreated)
	var resp models.UploadResponse
	testutil.AssertJSON(t, w, &resp)
	if len(resp.Songs) != 1 {
		t.Fatalf("Expected 1 uploaded song, got %d", len(resp.Songs))
	}
	if resp.Songs[0].BaseName != "demo" {
		t.Errorf("Expected base name demo, got %s", resp.Songs[0].BaseName)
	}
	if resp.Songs[0].UploadedBy == nil || *resp.Songs[0].UploadedBy != adminID {
		t.Errorf("Expected uploaded_by %d, got %v", adminID, resp.Songs[0].UploadedBy)
	}

	testutil.AssertStatus(t, upload(map[string][]byte{"demo (3).mp3": []byte("again")}), http.StatusConflict)
	testutil.AssertStatus(t, upload(map[string][]byte{"notes.txt": []byte("text")}), http.StatusBadRequest)
	testutil.AssertStatus(t, upload(map[string][]byte{"big.wav": bytes.Repeat([]byte{0}, 1<<20+1)}), http.StatusRequestEntityTooLarge)

	if _, err := os.Stat(filepath.Join(cfg.UploadDir, "big.wav")); !os.IsNotExist(err) {
		t.Error("Expected oversized upload to be removed")
	}
}

func TestUpload_Batch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	cfg.UploadDir = t.TempDir()
	h := NewSongHandler(db, cfg, clockwork.NewRealClock())
	adminID := createAdmin(t, db, "admin@example.com", models.RoleAdmin)

	upload := func(files ...uploadFile) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.Upload(w, withSession(t, db, w, multipartFiles(t, files...), &adminID))
		return w
	}
	onDisk := func(name string) bool {
		_, err := os.Stat(filepath.Join(cfg.UploadDir, name))
		return err == nil
	}

	t.Run("bad name rejects whole batch", func(t *testing.T) {
		w := upload(uploadFile{"good.wav", []byte("RIFF")}, uploadFile{"notes.txt", []byte("text")})
		testutil.AssertStatus(t, w, http.StatusBadRequest)
		if onDisk("good.wav") {
			t.Error("Expected no file written when the batch is rejected")
		}
	})

	t.Run("repeated name rejects whole batch", func(t *testing.T) {
		w := upload(uploadFile{"twice.wav", []byte("a")}, uploadFile{"twice.wav", []byte("b")})
		testutil.AssertStatus(t, w, http.StatusConflict)
		if onDisk("twice.wav") {
			t.Error("Expected no file written when the batch is rejected")
		}
	})

	t.Run("late failure reports saved files", func(t *testing.T) {
		// A dangling link passes the existence check but blocks the
		// exclusive create, so the second file fails after the first is stored
		if err := os.Symlink(filepath.Join(t.TempDir(), "gone"), filepath.Join(cfg.UploadDir, "taken.wav")); err != nil {
			t.Skipf("Symlinks unavailable: %v", err)
		}

		w := upload(uploadFile{"first.wav", []byte("RIFF")}, uploadFile{"taken.wav", []byte("RIFF")})
		testutil.AssertStatus(t, w, http.StatusConflict)
		var resp models.UploadResponse
		testutil.AssertJSON(t, w, &resp)
		if resp.Success {
			t.Error("Expected success=false")
		}
		if len(resp.Songs) != 1 || resp.Songs[0].Filename != "first.wav" {
			t.Errorf("Expected first.wav reported as saved, got %+v", resp.Songs)
		}
		if !strings.HasPrefix(resp.Error, "taken.wav: ") {
			t.Errorf("Expected error naming taken.wav, got %q", resp.Error)
		}
		if !onDisk("first.wav") {
			t.Error("Expected first.wav to stay on disk")
		}
	})
}

func TestScan_MissingDirectory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	cfg.SongsDir = filepath.Join(t.TempDir(), "nope")
	h := NewSongHandler(db, cfg, clockwork.NewRealClock())

	w := httptest.NewRecorder()
	h.Scan(w, httptest.NewRequest("POST", "/admin/scan", nil))
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestScan(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	cfg.SongsDir = t.TempDir()
	for _, name := range []string{"one.wav", "one (2).wav", "two.flac", "cover.jpg"} {
		if err := os.WriteFile(filepath.Join(cfg.SongsDir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	h := NewSongHandler(db, cfg, clockwork.NewRealClock())

	w := httptest.NewRecorder()
	h.Scan(w, httptest.NewRequest("POST", "/admin/scan", nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.ScanResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Count != 3 || len(resp.Songs) != 3 {
		t.Errorf("Expected 3 songs, got count=%d songs=%d", resp.Count, len(resp.Songs))
	}
	if len(resp.BaseNames) != 2 {
		t.Errorf("Expected 2 base names, got %v", resp.BaseNames)
	}
}

func TestDeleteAndClear(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := NewSongHandler(db, testutil.GetTestConfig(), clockwork.NewRealClock())
	adminID := createAdmin(t, db, "admin@example.com", models.RoleAdmin)
	songs := testutil.CreateTestSongs(t, db, 2)
	testutil.AddTestVote(t, db, songs[0], testutil.Bool(true), nil)

	del := func(id string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("DELETE", "/admin/songs/"+id, nil)
		req.SetPathValue("id", id)
		h.DeleteSong(w, withSession(t, db, w, req, &adminID))
		return w
	}

	testutil.AssertStatus(t, del(strconv.FormatInt(songs[0], 10)), http.StatusOK)
	testutil.AssertStatus(t, del(strconv.FormatInt(songs[0], 10)), http.StatusNotFound)
	if n := testutil.CountVotes(t, db, songs[0]); n != 0 {
		t.Errorf("Expected votes removed with song, got %d", n)
	}

	w := httptest.NewRecorder()
	h.ClearData(w, withSession(t, db, w, httptest.NewRequest("POST", "/admin/clear", nil), &adminID))
	testutil.AssertStatus(t, w, http.StatusOK)

	var count int
	db.QueryRow(`SELECT COUNT(*) FROM song`).Scan(&count)
	if count != 0 {
		t.Errorf("Expected empty library, got %d songs", count)
	}
}
