package models

import "time"

// Voting restriction modes
const (
	RestrictionNone   = "none"
	RestrictionIP     = "ip"
	RestrictionCookie = "cookie"
)

// Admin roles
const (
	RoleOwner = "owner"
	RoleAdmin = "admin"
)

// Request types

// SubmitVoteRequest is the body of POST /api/songs/{id}/vote.
// Rating is a float so that non-integer ratings can be rejected explicitly.
type SubmitVoteRequest struct {
	ThumbsUp *bool    `json:"thumbs_up"`
	Rating   *float64 `json:"rating"`
	BlockID  *int64   `json:"block_id"`
}

type CreateBlockRequest struct {
	Name              string     `json:"name"`
	SongIDs           []int64    `json:"song_ids"`
	Password          *string    `json:"password"`
	ExpiresAt         *time.Time `json:"expires_at"`
	OneTimeUse        bool       `json:"one_time_use"`
	VotingRestriction *string    `json:"voting_restriction"`
	DisableSkip       *bool      `json:"disable_skip"`
	MinListenSeconds  *int       `json:"min_listen_seconds"`
}

// UpdateBlockRequest changes only the fields that are present.
// ClearPassword and ClearExpiry remove the password and expiry.
type UpdateBlockRequest struct {
	Name              *string    `json:"name"`
	SongIDs           []int64    `json:"song_ids"`
	Password          *string    `json:"password"`
	ClearPassword     bool       `json:"clear_password"`
	ExpiresAt         *time.Time `json:"expires_at"`
	ClearExpiry       bool       `json:"clear_expiry"`
	OneTimeUse        *bool      `json:"one_time_use"`
	VotingRestriction *string    `json:"voting_restriction"`
	DisableSkip       *bool      `json:"disable_skip"`
	MinListenSeconds  *int       `json:"min_listen_seconds"`
}

type BlockAuthRequest struct {
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateAdminRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// UpdateSettingsRequest changes only the fields that are present.
// Empty strings for VotingStart/VotingEnd clear the window bound.
type UpdateSettingsRequest struct {
	VotingRestriction *string `json:"voting_restriction"`
	VotingStart       *string `json:"voting_start"`
	VotingEnd         *string `json:"voting_end"`
	ResultsPublic     *bool   `json:"results_public"`
	DisableSkip       *bool   `json:"disable_skip"`
	MinListenSeconds  *int    `json:"min_listen_seconds"`
}

// Response types

type SubmitVoteResponse struct {
	Success bool      `json:"success"`
	Stats   SongStats `json:"stats"`
}

type ResultsResponse struct {
	Results []SongResult `json:"results"`
}

type SongsResponse struct {
	Songs []Song `json:"songs"`
}

type BaseNamesResponse struct {
	BaseNames []string `json:"base_names"`
}

type ScanResponse struct {
	Success   bool     `json:"success"`
	Count     int      `json:"count"`
	Songs     []Song   `json:"songs"`
	BaseNames []string `json:"base_names"`
}

type CreateBlockResponse struct {
	Success bool   `json:"success"`
	BlockID int64  `json:"block_id"`
	Slug    string `json:"slug"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type UploadResponse struct {
	Success bool   `json:"success"`
	Songs   []Song `json:"songs"`
	// Error names the file that stopped a partially saved batch
	Error string `json:"error,omitempty"`
}

type BlocksResponse struct {
	Blocks []*VoteBlock `json:"blocks"`
}

type AdminResponse struct {
	Admin Admin `json:"admin"`
}

type AdminsResponse struct {
	Admins []Admin `json:"admins"`
}

// BlockView is the public view of a vote block
type BlockView struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	Slug             string     `json:"slug"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	Expired          bool       `json:"expired"`
	OneTimeUse       bool       `json:"one_time_use"`
	PasswordRequired bool       `json:"password_required"`
	Authorized       bool       `json:"authorized"`
	DisableSkip      bool       `json:"disable_skip"`
	MinListenSeconds int        `json:"min_listen_seconds"`
	Songs            []Song     `json:"songs"`
}

// Domain types

type Song struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	BaseName   string    `json:"base_name"`
	FullPath   string    `json:"-"` // Never expose server paths
	Title      string    `json:"title,omitempty"`
	Artist     string    `json:"artist,omitempty"`
	UploadedBy *int64    `json:"uploaded_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type Vote struct {
	ID        int64     `json:"id"`
	SongID    int64     `json:"song_id"`
	ThumbsUp  *bool     `json:"thumbs_up"`
	Rating    *int      `json:"rating"`
	VoterID   *string   `json:"-"` // Never expose in JSON
	BlockID   *int64    `json:"block_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type VoteBlock struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	Slug              string     `json:"slug"`
	PasswordHash      *string    `json:"-"` // Never expose in JSON
	HasPassword       bool       `json:"has_password"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	OneTimeUse        bool       `json:"one_time_use"`
	VotingRestriction *string    `json:"voting_restriction,omitempty"`
	DisableSkip       *bool      `json:"disable_skip,omitempty"`
	MinListenSeconds  *int       `json:"min_listen_seconds,omitempty"`
	CreatedBy         *int64     `json:"created_by,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	SongIDs           []int64    `json:"song_ids"`
}

type Admin struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose in JSON
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Aggregate result types

// SongStats is the short summary returned after each vote
type SongStats struct {
	VoteCount   int      `json:"vote_count"`
	AvgRating   *float64 `json:"avg_rating"`
	ThumbsUpPct *float64 `json:"thumbs_up_pct"`
}

// SongResult is one row of the results listing
type SongResult struct {
	ID              int64    `json:"id"`
	BaseName        string   `json:"base_name"`
	Filename        string   `json:"filename"`
	VoteCount       int      `json:"vote_count"`
	AvgRating       *float64 `json:"avg_rating"`
	ThumbsUpPct     *float64 `json:"thumbs_up_pct"`
	RatingStdev     *float64 `json:"rating_stdev"`
	AgreementScore  *int     `json:"agreement_score"`
	IsControversial bool     `json:"is_controversial"`
}

// Error response

type ErrorResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after,omitempty"`
}
