package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Google's reverse image search endpoints.
const (
	DefaultUploadURL = "https://www.google.com/searchbyimage/upload"
	DefaultByURLURL  = "https://www.google.com/searchbyimage"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Browser BrowserConfig
	Search  SearchConfig
	Pool    PoolConfig
	Auth    AuthConfig
	Log     LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance backing each session.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL used by the browser.
	Proxy string

	// Stealth injects the go-rod/stealth evasions into every session page.
	Stealth bool // default: false

	// BlockedResourceTypes lists resource types the session never loads.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string

	// NavigationTimeout bounds a single navigate-and-wait-for-load.
	NavigationTimeout time.Duration // default: 30s
}

// SearchConfig controls the redirect submission and the results page parsing.
type SearchConfig struct {
	UploadURL string
	ByURLURL  string

	// SubmitTimeout bounds the redirect submission request.
	SubmitTimeout time.Duration // default: 15s

	// ResultsPerPage converts a page number into the engine's start offset.
	ResultsPerPage int // default: 10

	// ChromeTLS dials the engine with a Chrome TLS fingerprint (utls).
	ChromeTLS bool // default: true

	// ResultSelector matches one result container.
	ResultSelector string // default: ".g .rc"

	// ThumbSelector matches the thumbnail anchor inside a container.
	ThumbSelector string // default: ".s .th a"

	// MaxUploadBytes caps images uploaded to the HTTP API.
	MaxUploadBytes int64 // default: 20 MiB
}

// PoolConfig controls the browser session pool used by the HTTP service.
type PoolConfig struct {
	// MinSessions is the number of sessions kept open while idle.
	MinSessions int // default: 1

	// MaxSessions is the hard cap on open sessions (= concurrent searches).
	MaxSessions int // default: 4

	// MaxUses retires a session after this many searches.
	MaxUses int // default: 50

	// MaxAge retires a session once it is this old.
	MaxAge time.Duration // default: 50m
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("REVIMG_HOST", "0.0.0.0"),
			Port: envIntOr("REVIMG_PORT", 8080),
			Mode: envOr("REVIMG_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("REVIMG_HEADLESS", true),
			NoSandbox:  envBoolOr("REVIMG_NO_SANDBOX", false),
			BrowserBin: os.Getenv("REVIMG_BROWSER_BIN"),
			Proxy:      os.Getenv("REVIMG_PROXY"),
			Stealth:    envBoolOr("REVIMG_STEALTH", false),
			BlockedResourceTypes: envSliceOr("REVIMG_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
			NavigationTimeout: envDurationOr("REVIMG_NAV_TIMEOUT", 30*time.Second),
		},
		Search: SearchConfig{
			UploadURL:      envOr("REVIMG_UPLOAD_URL", DefaultUploadURL),
			ByURLURL:       envOr("REVIMG_BY_URL_URL", DefaultByURLURL),
			SubmitTimeout:  envDurationOr("REVIMG_SUBMIT_TIMEOUT", 15*time.Second),
			ResultsPerPage: envIntOr("REVIMG_RESULTS_PER_PAGE", 10),
			ChromeTLS:      envBoolOr("REVIMG_CHROME_TLS", true),
			ResultSelector: envOr("REVIMG_RESULT_SELECTOR", ".g .rc"),
			ThumbSelector:  envOr("REVIMG_THUMB_SELECTOR", ".s .th a"),
			MaxUploadBytes: int64(envIntOr("REVIMG_MAX_UPLOAD_BYTES", 20<<20)),
		},
		Pool: PoolConfig{
			MinSessions: envIntOr("REVIMG_MIN_SESSIONS", 1),
			MaxSessions: envIntOr("REVIMG_MAX_SESSIONS", 4),
			MaxUses:     envIntOr("REVIMG_SESSION_MAX_USES", 50),
			MaxAge:      envDurationOr("REVIMG_SESSION_MAX_AGE", 50*time.Minute),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("REVIMG_AUTH_ENABLED", true),
			APIKeys: envSliceOr("REVIMG_API_KEYS", nil),
		},
		Log: LogConfig{
			Level:  envOr("REVIMG_LOG_LEVEL", "info"),
			Format: envOr("REVIMG_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
