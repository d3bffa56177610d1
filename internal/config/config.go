package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ErrMissingCredentials is returned when the account credentials are not
// configured. There is no point retrying anything without them.
var ErrMissingCredentials = errors.New("config: missing env vars HOTMART_EMAIL / HOTMART_PASSWORD")

var supportedQualities = []string{"best", "1080p", "720p", "480p", "360p"}

type Config struct {
	// Account
	Email    string
	Password string

	// Output
	OutputDir string
	Quality   string

	// Transport
	Timeout    time.Duration
	MaxRetries int

	// Download
	Workers        int // cross-module parallelism; keep small, the CDN rate-limits
	SegmentWorkers int

	// Browser
	Headless    bool
	BrowserPath string

	// External tools
	FFmpegPath string
	YtdlpPath  string

	// Token cache
	TokenCacheFile string

	// Optional SFTP mirror of finished artifacts
	MirrorHost string
	MirrorPort int
	MirrorUser string
	MirrorPass string
	MirrorDir  string
}

func Load() (Config, error) {
	cfg := Config{
		Email:    os.Getenv("HOTMART_EMAIL"),
		Password: os.Getenv("HOTMART_PASSWORD"),

		OutputDir: getenv("HOTMART_OUTPUT_DIR", "downloads"),
		Quality:   getenv("HOTMART_QUALITY", "best"),

		Timeout:    time.Duration(getenvInt("HOTMART_TIMEOUT", 30)) * time.Second,
		MaxRetries: getenvInt("HOTMART_MAX_RETRIES", 3),

		Workers:        getenvInt("HOTMART_WORKERS", 1),
		SegmentWorkers: getenvInt("HOTMART_SEGMENT_WORKERS", 4),

		Headless:    getenvBool("HOTMART_HEADLESS", false),
		BrowserPath: os.Getenv("HOTMART_BROWSER"),

		FFmpegPath: getenv("HOTMART_FFMPEG", "ffmpeg"),
		YtdlpPath:  getenv("HOTMART_YTDLP", "yt-dlp"),

		TokenCacheFile: getenv("HOTMART_TOKEN_CACHE", ".hotmart-token-cache.json"),

		MirrorHost: os.Getenv("HOTMART_MIRROR_HOST"),
		MirrorPort: getenvInt("HOTMART_MIRROR_PORT", 22),
		MirrorUser: os.Getenv("HOTMART_MIRROR_USER"),
		MirrorPass: os.Getenv("HOTMART_MIRROR_PASS"),
		MirrorDir:  getenv("HOTMART_MIRROR_DIR", "/"),
	}

	if cfg.Email == "" || cfg.Password == "" {
		return Config{}, ErrMissingCredentials
	}
	if !validQuality(cfg.Quality) {
		return Config{}, fmt.Errorf("config: invalid HOTMART_QUALITY %q (supported: best, 1080p, 720p, 480p, 360p)", cfg.Quality)
	}

	return cfg, nil
}

// MirrorEnabled reports whether the SFTP mirror is configured.
func (c Config) MirrorEnabled() bool {
	return c.MirrorHost != "" && c.MirrorUser != ""
}

func validQuality(q string) bool {
	for _, s := range supportedQualities {
		if q == s {
			return true
		}
	}
	return false
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
