package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Upstream  UpstreamConfig
	Browser   BrowserConfig
	Intercept InterceptConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"

	// ShutdownTimeout bounds the graceful drain on SIGINT/SIGTERM.
	ShutdownTimeout time.Duration // default: 5s
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 20

	// Burst is the maximum burst size per API key.
	Burst int // default: 40
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// UpstreamConfig controls the transport used to reach the site's backend.
type UpstreamConfig struct {
	// BaseURL is where the reverse proxy forwards /youtubei/v1/ calls.
	BaseURL string // default: "https://www.youtube.com"

	// Proxy is an optional http://, https:// or socks5:// proxy URL.
	Proxy string

	// Fingerprint enables the Chrome-like TLS ClientHello.
	Fingerprint bool // default: true

	DialTimeout         time.Duration // default: 10s
	TLSHandshakeTimeout time.Duration // default: 10s
	IdleConnTimeout     time.Duration // default: 90s
	MaxIdleConnsPerHost int           // default: 16
}

// BrowserConfig controls the managed Rod browser session.
type BrowserConfig struct {
	// Enabled launches a browser at startup and installs the hijack router.
	Enabled bool // default: false

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// Proxy is handed to Chromium's --proxy-server flag.
	Proxy string

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// ControlURL attaches to an already running browser instead of launching one.
	ControlURL string

	// Stealth injects the stealth script before every document.
	Stealth bool // default: true

	// Language is sent as Accept-Language on every page request.
	Language string // default: "en-US,en;q=0.9"

	// HomeURL is the first page loaded once interception is installed.
	HomeURL string // default: "https://www.youtube.com"

	// NavigationTimeout caps a single Navigate call.
	NavigationTimeout time.Duration // default: 30s
}

// InterceptConfig seeds the interceptor's eligibility flags.
type InterceptConfig struct {
	// HideShorts enables short-form filtering of search results.
	HideShorts bool // default: true
}

// Load reads configuration from environment variables with sane defaults.
// Variables from a .env file (TUBESHIM_ENV_FILE, default ".env") are loaded
// first and never override the real environment.
func Load() *Config {
	loadDotEnv(envOr("TUBESHIM_ENV_FILE", ".env"))

	return &Config{
		Server: ServerConfig{
			Host:            envOr("TUBESHIM_HOST", "0.0.0.0"),
			Port:            envIntOr("TUBESHIM_PORT", 8080),
			Mode:            envOr("TUBESHIM_MODE", "release"),
			ShutdownTimeout: envDurationOr("TUBESHIM_SHUTDOWN_TIMEOUT", 5*time.Second),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("TUBESHIM_AUTH_ENABLED", false),
			APIKeys: envSliceOr("TUBESHIM_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("TUBESHIM_RATE_RPS", 20.0),
			Burst:             envIntOr("TUBESHIM_RATE_BURST", 40),
		},
		Log: LogConfig{
			Level:  envOr("TUBESHIM_LOG_LEVEL", "info"),
			Format: envOr("TUBESHIM_LOG_FORMAT", "json"),
		},
		Upstream: UpstreamConfig{
			BaseURL:             envOr("TUBESHIM_UPSTREAM_URL", "https://www.youtube.com"),
			Proxy:               os.Getenv("TUBESHIM_UPSTREAM_PROXY"),
			Fingerprint:         envBoolOr("TUBESHIM_TLS_FINGERPRINT", true),
			DialTimeout:         envDurationOr("TUBESHIM_DIAL_TIMEOUT", 10*time.Second),
			TLSHandshakeTimeout: envDurationOr("TUBESHIM_TLS_TIMEOUT", 10*time.Second),
			IdleConnTimeout:     envDurationOr("TUBESHIM_IDLE_TIMEOUT", 90*time.Second),
			MaxIdleConnsPerHost: envIntOr("TUBESHIM_MAX_IDLE_PER_HOST", 16),
		},
		Browser: BrowserConfig{
			Enabled:           envBoolOr("TUBESHIM_BROWSER", false),
			Headless:          envBoolOr("TUBESHIM_HEADLESS", true),
			NoSandbox:         envBoolOr("TUBESHIM_NO_SANDBOX", false),
			Proxy:             os.Getenv("TUBESHIM_BROWSER_PROXY"),
			BrowserBin:        os.Getenv("TUBESHIM_BROWSER_BIN"),
			ControlURL:        os.Getenv("TUBESHIM_CDP_URL"),
			Stealth:           envBoolOr("TUBESHIM_STEALTH", true),
			Language:          envOr("TUBESHIM_BROWSER_LANG", "en-US,en;q=0.9"),
			HomeURL:           envOr("TUBESHIM_HOME_URL", "https://www.youtube.com"),
			NavigationTimeout: envDurationOr("TUBESHIM_NAV_TIMEOUT", 30*time.Second),
		},
		Intercept: InterceptConfig{
			HideShorts: envBoolOr("TUBESHIM_HIDE_SHORTS", true),
		},
	}
}

func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("ignoring unreadable env file", "path", path, "error", err)
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

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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
