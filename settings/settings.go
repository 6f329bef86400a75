package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/davidtorcivia/song-voter/models"
)

// Setting keys
const (
	KeyVotingRestriction = "voting_restriction"
	KeyVotingStart       = "voting_start"
	KeyVotingEnd         = "voting_end"
	KeyResultsPublic     = "results_public"
	KeyDisableSkip       = "disable_skip"
	KeyMinListenSeconds  = "min_listen_seconds"
)

var (
	ErrInvalidRestriction = errors.New("voting_restriction must be none, ip or cookie")
	ErrInvalidTime        = errors.New("time must be RFC 3339 or YYYY-MM-DDTHH:MM")
	ErrInvalidListenTime  = errors.New("min_listen_seconds cannot be negative")
	ErrWindowOrder        = errors.New("voting_end must be after voting_start")
)

// timeLayouts are tried in order; layouts without a zone are read as UTC
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	dateLayout,
}

const dateLayout = "2006-01-02"

// Settings is the typed view of the settings table
type Settings struct {
	VotingRestriction string     `json:"voting_restriction"`
	VotingStart       *time.Time `json:"voting_start"`
	VotingEnd         *time.Time `json:"voting_end"`
	ResultsPublic     bool       `json:"results_public"`
	DisableSkip       bool       `json:"disable_skip"`
	MinListenSeconds  int        `json:"min_listen_seconds"`
}

// Defaults returns the settings used for keys that were never set
func Defaults() Settings {
	return Settings{VotingRestriction: models.RestrictionNone}
}

// Store reads and writes site settings
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the raw value for key, or fallback if it is not set
func (s *Store) Get(ctx context.Context, key, fallback string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, nil
}

// Set stores a raw value, replacing any previous one
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// Load reads every setting in one query and parses it
func (s *Store) Load(ctx context.Context) (Settings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}
	defer rows.Close()

	raw := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Settings{}, fmt.Errorf("failed to scan setting: %w", err)
		}
		raw[k] = v
	}
	if err := rows.Err(); err != nil {
		return Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}

	return Parse(raw), nil
}

// Parse converts raw string settings into Settings. Malformed values fall
// back to their defaults: an unreadable voting window bound is treated as
// unset so that bad config never locks voters out.
func Parse(raw map[string]string) Settings {
	s := Defaults()

	if v := raw[KeyVotingRestriction]; ValidRestriction(v) {
		s.VotingRestriction = v
	}
	s.VotingStart = ParseTime(raw[KeyVotingStart])
	s.VotingEnd = ParseEndTime(raw[KeyVotingEnd])
	s.ResultsPublic = raw[KeyResultsPublic] == "true"
	s.DisableSkip = raw[KeyDisableSkip] == "true"
	if n, err := strconv.Atoi(raw[KeyMinListenSeconds]); err == nil && n > 0 {
		s.MinListenSeconds = n
	}

	return s
}

// Update validates the present fields of req and writes them
func (s *Store) Update(ctx context.Context, req models.UpdateSettingsRequest) error {
	values := make(map[string]string)

	if req.VotingRestriction != nil {
		if !ValidRestriction(*req.VotingRestriction) {
			return ErrInvalidRestriction
		}
		values[KeyVotingRestriction] = *req.VotingRestriction
	}

	for key, v := range map[string]*string{KeyVotingStart: req.VotingStart, KeyVotingEnd: req.VotingEnd} {
		if v == nil {
			continue
		}
		trimmed := strings.TrimSpace(*v)
		if trimmed != "" && ParseTime(trimmed) == nil {
			return fmt.Errorf("%s: %w", key, ErrInvalidTime)
		}
		values[key] = trimmed
	}

	if req.ResultsPublic != nil {
		values[KeyResultsPublic] = strconv.FormatBool(*req.ResultsPublic)
	}
	if req.DisableSkip != nil {
		values[KeyDisableSkip] = strconv.FormatBool(*req.DisableSkip)
	}
	if req.MinListenSeconds != nil {
		if *req.MinListenSeconds < 0 {
			return ErrInvalidListenTime
		}
		values[KeyMinListenSeconds] = strconv.Itoa(*req.MinListenSeconds)
	}

	current, err := s.Load(ctx)
	if err != nil {
		return err
	}
	start, end := current.VotingStart, current.VotingEnd
	if v, ok := values[KeyVotingStart]; ok {
		start = ParseTime(v)
	}
	if v, ok := values[KeyVotingEnd]; ok {
		end = ParseEndTime(v)
	}
	if start != nil && end != nil && !end.After(*start) {
		return ErrWindowOrder
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for k, v := range values {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = excluded.value
		`, k, v)
		if err != nil {
			return fmt.Errorf("failed to write setting %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settings: %w", err)
	}
	return nil
}

// ValidRestriction reports whether mode is a known restriction mode
func ValidRestriction(mode string) bool {
	switch mode {
	case models.RestrictionNone, models.RestrictionIP, models.RestrictionCookie:
		return true
	}
	return false
}

// ParseTime parses a settings timestamp; empty or malformed input gives nil
func ParseTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// ParseEndTime is ParseTime for the end of a window: a bare date covers the
// whole day, so it maps to the last instant of that day.
func ParseEndTime(value string) *time.Time {
	t := ParseTime(value)
	if t == nil {
		return nil
	}
	if _, err := time.Parse(dateLayout, strings.TrimSpace(value)); err == nil {
		end := t.Add(24*time.Hour - time.Nanosecond)
		return &end
	}
	return t
}
