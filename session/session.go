// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/davidtorcivia/song-voter/auth"
)

// CookieName is the session cookie sent to browsers
const CookieName = "song_voter_session"

// MaxAge is how long an idle session stays valid
const MaxAge = 30 * 24 * time.Hour

// touchInterval limits last_seen_at writes to one per hour per session
const touchInterval = time.Hour

// Store keeps session state in the web_session table
type Store struct {
	db     *sql.DB
	clock  clockwork.Clock
	secure bool
}

func NewStore(db *sql.DB, clock clockwork.Clock, secureCookies bool) *Store {
	return &Store{db: db, clock: clock, secure: secureCookies}
}

// Session is the server-side state behind one browser cookie. A new
// session is not written to the database until something needs to be
// remembered (a voter token, a block password, an admin login).
type Session struct {
	ID      string
	AdminID *int64

	voterToken string
	blockAuth  map[int64]bool
	saved      bool

	store *Store
	w     http.ResponseWriter
}

// Load returns the session named by the request cookie, or a fresh unsaved
// session when the cookie is missing, unknown or expired. w receives the
// cookie if the session is saved later.
func (s *Store) Load(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Session, error) {
	sess := &Session{store: s, w: w, blockAuth: make(map[int64]bool)}

	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return sess, nil
	}

	var (
		voterToken sql.NullString
		adminID    sql.NullInt64
		lastSeen   time.Time
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT voter_token, admin_id, last_seen_at FROM web_session WHERE id = $1
	`, cookie.Value).Scan(&voterToken, &adminID, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return sess, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	now := s.clock.Now()
	if now.Sub(lastSeen) > MaxAge {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM web_session WHERE id = $1`, cookie.Value); err != nil {
			return nil, fmt.Errorf("failed to delete expired session: %w", err)
		}
		return sess, nil
	}

	sess.ID = cookie.Value
	sess.saved = true
	sess.voterToken = voterToken.String
	if adminID.Valid {
		id := adminID.Int64
		sess.AdminID = &id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT block_id FROM session_block_auth WHERE session_id = $1
	`, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load block authorizations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var blockID int64
		if err := rows.Scan(&blockID); err != nil {
			return nil, fmt.Errorf("failed to scan block authorization: %w", err)
		}
		sess.blockAuth[blockID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load block authorizations: %w", err)
	}

	if now.Sub(lastSeen) > touchInterval {
		if _, err := s.db.ExecContext(ctx, `
			UPDATE web_session SET last_seen_at = $1 WHERE id = $2
		`, now.UTC(), sess.ID); err != nil {
			return nil, fmt.Errorf("failed to touch session: %w", err)
		}
	}

	return sess, nil
}

// Login replaces sess with a new session owned by adminID. The old session
// row and all its state are discarded so a planted session ID cannot be
// carried into an admin login.
func (s *Store) Login(ctx context.Context, sess *Session, adminID int64) (*Session, error) {
	if sess.saved {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM web_session WHERE id = $1`, sess.ID); err != nil {
			return nil, fmt.Errorf("failed to drop old session: %w", err)
		}
	}

	fresh := &Session{store: s, w: sess.w, blockAuth: make(map[int64]bool), AdminID: &adminID}
	if err := fresh.ensure(ctx); err != nil {
		return nil, err
	}
	return fresh, nil
}

// Logout deletes the session and expires the cookie
func (s *Store) Logout(ctx context.Context, sess *Session) error {
	if sess.saved {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM web_session WHERE id = $1`, sess.ID); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
	}
	sess.saved = false
	sess.AdminID = nil
	sess.voterToken = ""
	sess.blockAuth = make(map[int64]bool)

	if sess.w != nil {
		http.SetCookie(sess.w, &http.Cookie{
			Name:     CookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   s.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return nil
}

// IsAdmin reports whether an admin is logged in on this session
func (sess *Session) IsAdmin() bool {
	return sess.AdminID != nil
}

// VoterToken returns the per-session voter token, creating and saving one
// on first use. The token is what cookie-mode duplicate checks key on.
func (sess *Session) VoterToken(ctx context.Context) (string, error) {
	if sess.voterToken != "" {
		return sess.voterToken, nil
	}
	if err := sess.ensure(ctx); err != nil {
		return "", err
	}

	token := uuid.NewString()
	if _, err := sess.store.db.ExecContext(ctx, `
		UPDATE web_session SET voter_token = $1 WHERE id = $2
	`, token, sess.ID); err != nil {
		return "", fmt.Errorf("failed to save voter token: %w", err)
	}
	sess.voterToken = token
	return token, nil
}

// BlockAuthorized reports whether this session unlocked the block's password
func (sess *Session) BlockAuthorized(blockID int64) bool {
	return sess.blockAuth[blockID]
}

// AuthorizeBlock records a successful password check for blockID
func (sess *Session) AuthorizeBlock(ctx context.Context, blockID int64) error {
	if sess.blockAuth[blockID] {
		return nil
	}
	if err := sess.ensure(ctx); err != nil {
		return err
	}

	if _, err := sess.store.db.ExecContext(ctx, `
		INSERT INTO session_block_auth (session_id, block_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, sess.ID, blockID); err != nil {
		return fmt.Errorf("failed to save block authorization: %w", err)
	}
	sess.blockAuth[blockID] = true
	return nil
}

// ensure writes a new session row and hands the cookie to the browser
func (sess *Session) ensure(ctx context.Context) error {
	if sess.saved {
		return nil
	}

	id, err := auth.GenerateVoterToken()
	if err != nil {
		return err
	}

	now := sess.store.clock.Now().UTC()
	if _, err := sess.store.db.ExecContext(ctx, `
		INSERT INTO web_session (id, admin_id, created_at, last_seen_at)
		VALUES ($1, $2, $3, $4)
	`, id, sess.AdminID, now, now); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	sess.ID = id
	sess.saved = true

	if sess.w != nil {
		http.SetCookie(sess.w, &http.Cookie{
			Name:     CookieName,
			Value:    id,
			Path:     "/",
			MaxAge:   int(MaxAge.Seconds()),
			HttpOnly: true,
			Secure:   sess.store.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return nil
}

type contextKey struct{}

// WithSession returns a copy of ctx carrying sess
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session stored by WithSession, or nil
func FromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(contextKey{}).(*Session)
	return sess
}
