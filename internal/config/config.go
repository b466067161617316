// Package config loads daemon configuration from environment variables and an
// optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the overlay daemon.
type Config struct {
	// Window system backend: fake, native, or browser.
	Backend string

	// CDP connection settings for the browser backend.
	CDPAddress   string
	CDPPort      int
	TabURLFilter string

	// Control API settings. When the preferred address is taken and
	// fallback is enabled, the candidates are tried in order.
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool

	// Overlay behavior.
	SurfaceBackend string
	RefreshRate    int
	PollInterval   time.Duration
	WindowAlpha    int
	Following      bool
	PriceMin       float64
	PriceMax       float64

	// Render settings overrides live in this file; changes apply without a
	// restart when the watcher is enabled.
	SettingsFile  string
	WatchSettings bool

	// Snapshot persistence.
	SnapshotDir string

	// Push notifications. Empty topic disables them.
	NtfyServer string
	NtfyTopic  string

	// Logging.
	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		Backend:          strings.ToLower(getEnvOrDefault("OVERLAY_BACKEND", "native")),
		CDPAddress:       getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:          getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9220),
		TabURLFilter:     getEnvOrDefault("OVERLAY_TAB_URL_FILTER", "tradingview.com"),
		BindAddr:         getEnvOrDefault("OVERLAY_BIND_ADDR", "127.0.0.1:8199"),
		PortCandidates:   splitNonEmpty(getEnvOrDefault("OVERLAY_PORT_CANDIDATES", "127.0.0.1:8200,127.0.0.1:8201")),
		PortAutoFallback: getEnvBoolOrDefault("OVERLAY_PORT_AUTO_FALLBACK", true),
		SurfaceBackend:   strings.ToLower(getEnvOrDefault("OVERLAY_SURFACE", "ebiten")),
		RefreshRate:      getEnvIntOrDefault("OVERLAY_REFRESH_RATE", 30),
		PollInterval:     time.Duration(getEnvIntOrDefault("OVERLAY_POLL_INTERVAL_MS", 100)) * time.Millisecond,
		WindowAlpha:      getEnvIntOrDefault("OVERLAY_WINDOW_ALPHA", 230),
		Following:        getEnvBoolOrDefault("OVERLAY_FOLLOWING", true),
		PriceMin:         getEnvFloatOrDefault("OVERLAY_PRICE_MIN", 1),
		PriceMax:         getEnvFloatOrDefault("OVERLAY_PRICE_MAX", 100),
		SettingsFile:     getEnvOrDefault("OVERLAY_SETTINGS_FILE", ""),
		WatchSettings:    getEnvBoolOrDefault("OVERLAY_WATCH_SETTINGS", true),
		SnapshotDir:      getEnvOrDefault("SNAPSHOT_DIR", "./snapshots"),
		NtfyServer:       getEnvOrDefault("NTFY_SERVER", "https://ntfy.sh"),
		NtfyTopic:        getEnvOrDefault("NTFY_TOPIC", ""),
		LogLevel:         strings.ToLower(getEnvOrDefault("OVERLAY_LOG_LEVEL", "info")),
		LogFile:          getEnvOrDefault("OVERLAY_LOG_FILE", "logs/overlayd.log"),
	}

	if cfg.RefreshRate < 1 || cfg.RefreshRate > 240 {
		return nil, fmt.Errorf("OVERLAY_REFRESH_RATE %d out of range 1-240", cfg.RefreshRate)
	}
	if cfg.WindowAlpha < 0 || cfg.WindowAlpha > 255 {
		return nil, fmt.Errorf("OVERLAY_WINDOW_ALPHA %d out of range 0-255", cfg.WindowAlpha)
	}
	if cfg.PollInterval < 10*time.Millisecond {
		cfg.PollInterval = 10 * time.Millisecond
	}
	switch cfg.Backend {
	case "fake", "native", "browser":
	default:
		return nil, fmt.Errorf("unknown OVERLAY_BACKEND %q", cfg.Backend)
	}

	return cfg, nil
}

// CDPURL returns the full CDP HTTP endpoint used by the chromedp remote
// allocator.
func (c *Config) CDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

func splitNonEmpty(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvFloatOrDefault(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
