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
	Browser   BrowserConfig
	Snapshot  SnapshotConfig
	Capture   CaptureConfig
	Delivery  DeliveryConfig
	Settings  SettingsConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting of the API itself.
type RateLimitConfig struct {
	RequestsPerSecond float64 // default: 5
	Burst             int     // default: 10
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// BrowserConfig controls the Rod browser used for server-side snapshots.
type BrowserConfig struct {
	// Enabled starts a browser at boot. Without it, captures need posted HTML
	// or render=http.
	Enabled bool // default: true

	Headless   bool // default: true
	NoSandbox  bool // default: false
	BrowserBin string
	Proxy      string
}

// SnapshotConfig controls how server-side snapshots are taken.
type SnapshotConfig struct {
	// NavigationTimeout bounds page.Navigate plus load in the browser.
	NavigationTimeout time.Duration // default: 15s

	// FetchTimeout bounds the plain HTTP fetch.
	FetchTimeout time.Duration // default: 10s

	// DefaultViewportHeight is used when the client does not send one.
	DefaultViewportHeight int // default: 900
}

// CaptureConfig controls the per-context orchestrator.
type CaptureConfig struct {
	// Cooldown is the minimum gap between two accepted triggers.
	Cooldown time.Duration // default: 3s

	// AckTimeout bounds the wait for the delivery outcome.
	AckTimeout time.Duration // default: 60s

	// MinContentLength is the minimum rune count of a normalized body.
	MinContentLength int // default: 1

	// SettleDelay is the late-content wait adapters may request (capped at 1s).
	SettleDelay time.Duration // default: 1s

	// SessionTTL evicts page contexts idle for longer than this.
	SessionTTL time.Duration // default: 1h

	// MaxSessions caps the number of live page contexts.
	MaxSessions int // default: 1000
}

// DeliveryConfig controls the outbound sink client.
type DeliveryConfig struct {
	// BucketCapacity is the token bucket size.
	BucketCapacity int // default: 2

	// RefillInterval adds one token per interval.
	RefillInterval time.Duration // default: 1s

	// MaxAttempts is the retry ceiling, first attempt included.
	MaxAttempts int // default: 3

	// BackoffBase is multiplied by the attempt index between attempts.
	BackoffBase time.Duration // default: 1s

	// Timeout is the HTTP client timeout for one attempt.
	Timeout time.Duration // default: 10s

	// Secret enables HMAC-SHA256 signing of the body when set.
	Secret string
}

// SettingsConfig controls where the sink URL is read from.
type SettingsConfig struct {
	// SinkURL seeds the in-memory settings store.
	SinkURL string

	// File, when set, switches to a YAML settings file re-read on every send.
	File string
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is loaded first when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("config: could not load .env", "error", err)
	}

	return &Config{
		Server: ServerConfig{
			Host: envOr("PAGECLIP_HOST", "0.0.0.0"),
			Port: envIntOr("PAGECLIP_PORT", 8080),
			Mode: envOr("PAGECLIP_MODE", "release"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PAGECLIP_AUTH_ENABLED", true),
			APIKeys: envSliceOr("PAGECLIP_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PAGECLIP_RATE_RPS", 5.0),
			Burst:             envIntOr("PAGECLIP_RATE_BURST", 10),
		},
		Log: LogConfig{
			Level:  envOr("PAGECLIP_LOG_LEVEL", "info"),
			Format: envOr("PAGECLIP_LOG_FORMAT", "json"),
		},
		Browser: BrowserConfig{
			Enabled:    envBoolOr("PAGECLIP_BROWSER", true),
			Headless:   envBoolOr("PAGECLIP_HEADLESS", true),
			NoSandbox:  envBoolOr("PAGECLIP_NO_SANDBOX", false),
			BrowserBin: os.Getenv("PAGECLIP_BROWSER_BIN"),
			Proxy:      os.Getenv("PAGECLIP_PROXY"),
		},
		Snapshot: SnapshotConfig{
			NavigationTimeout:     envDurationOr("PAGECLIP_NAV_TIMEOUT", 15*time.Second),
			FetchTimeout:          envDurationOr("PAGECLIP_FETCH_TIMEOUT", 10*time.Second),
			DefaultViewportHeight: envIntOr("PAGECLIP_VIEWPORT_HEIGHT", 900),
		},
		Capture: CaptureConfig{
			Cooldown:         envDurationOr("PAGECLIP_COOLDOWN", 3*time.Second),
			AckTimeout:       envDurationOr("PAGECLIP_ACK_TIMEOUT", 60*time.Second),
			MinContentLength: envIntOr("PAGECLIP_MIN_CONTENT_LENGTH", 1),
			SettleDelay:      envDurationOr("PAGECLIP_SETTLE_DELAY", time.Second),
			SessionTTL:       envDurationOr("PAGECLIP_SESSION_TTL", time.Hour),
			MaxSessions:      envIntOr("PAGECLIP_MAX_SESSIONS", 1000),
		},
		Delivery: DeliveryConfig{
			BucketCapacity: envIntOr("PAGECLIP_BUCKET_CAPACITY", 2),
			RefillInterval: envDurationOr("PAGECLIP_REFILL_INTERVAL", time.Second),
			MaxAttempts:    envIntOr("PAGECLIP_MAX_ATTEMPTS", 3),
			BackoffBase:    envDurationOr("PAGECLIP_BACKOFF_BASE", time.Second),
			Timeout:        envDurationOr("PAGECLIP_SINK_TIMEOUT", 10*time.Second),
			Secret:         os.Getenv("PAGECLIP_SINK_SECRET"),
		},
		Settings: SettingsConfig{
			SinkURL: os.Getenv("PAGECLIP_SINK_URL"),
			File:    os.Getenv("PAGECLIP_SETTINGS_FILE"),
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
