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

// Config holds all configuration for the pagesnap daemon.
type Config struct {
	// CDP connection settings
	CDPAddress   string
	CDPPort      int
	TabURLFilter string
	EvalTimeout  time.Duration

	// Control API
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool

	// Capture behavior
	MaxPageHeight  float64
	SettleDelay    time.Duration
	RegionTimeout  time.Duration
	CaptureTimeout time.Duration

	// Editor and export
	HistoryCapacity int
	ExportDir       string
	NotifyTTL       time.Duration

	// Hotkeys
	Hotkeys    bool
	KeymapFile string

	// Browser launch
	LaunchBrowser     bool
	BrowserProfileDir string

	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CDPAddress:        getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:           getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9222),
		TabURLFilter:      getEnvOrDefault("PAGESNAP_TAB_URL_FILTER", ""),
		EvalTimeout:       getEnvMillisOrDefault("PAGESNAP_EVAL_TIMEOUT_MS", 10*time.Second),
		BindAddr:          getEnvOrDefault("PAGESNAP_BIND_ADDR", "127.0.0.1:8199"),
		PortCandidates:    getEnvListOrDefault("PAGESNAP_PORT_CANDIDATES", []string{"127.0.0.1:8200", "127.0.0.1:8201", "127.0.0.1:8202"}),
		PortAutoFallback:  getEnvBoolOrDefault("PAGESNAP_PORT_AUTO_FALLBACK", true),
		MaxPageHeight:     float64(getEnvIntOrDefault("PAGESNAP_MAX_PAGE_HEIGHT", 30000)),
		SettleDelay:       getEnvMillisOrDefault("PAGESNAP_SETTLE_DELAY_MS", 100*time.Millisecond),
		RegionTimeout:     getEnvMillisOrDefault("PAGESNAP_REGION_TIMEOUT_MS", 2*time.Minute),
		CaptureTimeout:    getEnvMillisOrDefault("PAGESNAP_CAPTURE_TIMEOUT_MS", 30*time.Second),
		HistoryCapacity:   getEnvIntOrDefault("PAGESNAP_HISTORY_CAPACITY", 20),
		ExportDir:         getEnvOrDefault("PAGESNAP_EXPORT_DIR", "./exports"),
		NotifyTTL:         getEnvMillisOrDefault("PAGESNAP_NOTIFY_TTL_MS", 4*time.Second),
		Hotkeys:           getEnvBoolOrDefault("PAGESNAP_HOTKEYS", false),
		KeymapFile:        getEnvOrDefault("PAGESNAP_KEYMAP_FILE", "./config/keymap.yaml"),
		LaunchBrowser:     getEnvBoolOrDefault("PAGESNAP_LAUNCH_BROWSER", false),
		BrowserProfileDir: getEnvOrDefault("PAGESNAP_BROWSER_PROFILE_DIR", "./browser_profile"),
		LogLevel:          strings.ToLower(getEnvOrDefault("PAGESNAP_LOG_LEVEL", "info")),
		LogFile:           getEnvOrDefault("PAGESNAP_LOG_FILE", "logs/pagesnapd.log"),
	}
	if cfg.EvalTimeout < time.Second {
		cfg.EvalTimeout = time.Second
	}
	if cfg.CaptureTimeout < time.Second {
		cfg.CaptureTimeout = time.Second
	}
	if cfg.MaxPageHeight <= 0 {
		return nil, fmt.Errorf("PAGESNAP_MAX_PAGE_HEIGHT must be positive, got %v", cfg.MaxPageHeight)
	}
	if cfg.HistoryCapacity < 1 {
		return nil, fmt.Errorf("PAGESNAP_HISTORY_CAPACITY must be at least 1, got %d", cfg.HistoryCapacity)
	}
	return cfg, nil
}

// CDPURL returns the CDP HTTP endpoint.
func (c *Config) CDPURL() string {
	return "http://" + c.CDPAddress + ":" + strconv.Itoa(c.CDPPort)
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

func getEnvMillisOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if ms, err := strconv.Atoi(val); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
