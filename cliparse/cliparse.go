package cliparse

import (
	"errors"
	"flag"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          int
	DatabaseURL   string
	DatabaseType  string
	IPHashSalt    string
	SongsDir      string
	UploadDir     string
	MaxUploadMB   int64
	SecureCookies bool

	// Origins allowed to make credentialed cross-origin requests
	AllowedOrigins []string

	// Vote rate limiting (per client IP)
	RateLimitMax    int
	RateLimitWindow time.Duration
	RateLimitMaxIPs int
}

// Defaults used when neither a flag nor an env variable is set
const (
	DefaultPort            = 5000
	DefaultDatabaseType    = "sqlite"
	DefaultDatabaseURL     = "data/song_voter.db"
	DefaultSongsDir        = "songs"
	DefaultUploadDir       = "uploads"
	DefaultMaxUploadMB     = 200
	DefaultRateLimitMax    = 30
	DefaultRateLimitWindow = 300 * time.Second
	DefaultRateLimitMaxIPs = 10000
)

// ParseFlags validates flags and fills the rest from the environment.
// A .env file in the working directory is loaded first if present;
// variables already set in the environment win over the file.
func ParseFlags(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	var cfg Config

	fs := flag.NewFlagSet("song-voter", flag.ContinueOnError)

	// Network and storage
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL or SQLite path")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.SongsDir, "songs", "", "Directory scanned for audio files")
	fs.StringVar(&cfg.UploadDir, "uploads", "", "Directory for uploaded audio files")
	fs.Int64Var(&cfg.MaxUploadMB, "max-upload-mb", 0, "Maximum upload size in MB")
	fs.BoolVar(&cfg.SecureCookies, "secure-cookies", false, "Mark session cookies Secure (HTTPS only)")

	var origins string
	fs.StringVar(&origins, "cors-origins", "", "Comma-separated origins allowed for CORS")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.IPHashSalt, "ip-salt", "", "IP hash salt (prefer env)")

	// Rate limiting
	fs.IntVar(&cfg.RateLimitMax, "rate-max", 0, "Max votes per IP within the window")
	fs.DurationVar(&cfg.RateLimitWindow, "rate-window", 0, "Vote rate limit window")
	fs.IntVar(&cfg.RateLimitMaxIPs, "rate-max-ips", 0, "Max tracked IPs before eviction")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		port, err := envInt("PORT", DefaultPort)
		if err != nil {
			return Config{}, err
		}
		cfg.Port = port
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = envString("DATABASE_TYPE", DefaultDatabaseType)
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, errors.New("database type must be sqlite or postgres")
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		// DATABASE_PATH kept for existing SQLite deployments
		cfg.DatabaseURL = os.Getenv("DATABASE_PATH")
	}
	if cfg.DatabaseURL == "" {
		if cfg.DatabaseType == "postgres" {
			return Config{}, errors.New("database URL required for postgres (use -d or DATABASE_URL env)")
		}
		cfg.DatabaseURL = DefaultDatabaseURL
	}

	if cfg.SongsDir == "" {
		cfg.SongsDir = envString("SONGS_DIR", DefaultSongsDir)
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = envString("UPLOAD_DIR", DefaultUploadDir)
	}
	if cfg.MaxUploadMB == 0 {
		mb, err := envInt("MAX_UPLOAD_MB", DefaultMaxUploadMB)
		if err != nil {
			return Config{}, err
		}
		cfg.MaxUploadMB = int64(mb)
	}
	if !cfg.SecureCookies {
		cfg.SecureCookies = os.Getenv("SECURE_COOKIES") == "true"
	}

	if origins == "" {
		origins = os.Getenv("CORS_ORIGINS")
	}
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, strings.TrimRight(o, "/"))
		}
	}

	if cfg.RateLimitMax == 0 {
		n, err := envInt("RATE_LIMIT_MAX", DefaultRateLimitMax)
		if err != nil {
			return Config{}, err
		}
		cfg.RateLimitMax = n
	}
	if cfg.RateLimitWindow == 0 {
		cfg.RateLimitWindow = DefaultRateLimitWindow
		if s := os.Getenv("RATE_LIMIT_WINDOW"); s != "" {
			d, err := time.ParseDuration(s)
			if err != nil {
				return Config{}, errors.New("invalid RATE_LIMIT_WINDOW env variable")
			}
			cfg.RateLimitWindow = d
		}
	}
	if cfg.RateLimitMaxIPs == 0 {
		n, err := envInt("RATE_LIMIT_MAX_IPS", DefaultRateLimitMaxIPs)
		if err != nil {
			return Config{}, err
		}
		cfg.RateLimitMaxIPs = n
	}
	if cfg.RateLimitMax < 1 || cfg.RateLimitWindow <= 0 || cfg.RateLimitMaxIPs < 1 {
		return Config{}, errors.New("rate limit settings must be positive")
	}

	// Secrets - MUST be provided
	if cfg.IPHashSalt == "" {
		cfg.IPHashSalt = os.Getenv("IP_HASH_SALT")
	}
	if cfg.IPHashSalt == "" {
		return Config{}, errors.New("IP_HASH_SALT required")
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("invalid " + key + " env variable")
	}
	return n, nil
}
