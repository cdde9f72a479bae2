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

// Config holds all configuration for the browser shell.
type Config struct {
	// CDP connection settings
	CDPAddress    string
	CDPPort       int
	LaunchBrowser bool
	BrowserBinary string
	ProfileDir    string

	// API settings
	BindAddr         string
	PortAutoFallback bool
	PortCandidates   []string

	// Storage
	DBPath string

	// Browsing behavior
	HomeURL       string
	SearchEngine  string
	BlocklistFile string

	// Credential bridge timing
	PollIntervalMS  int
	AutofillDelayMS int
	EvalTimeoutMS   int
	ConsentTimeoutS int

	// Logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CDPAddress:       getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:          getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9222),
		LaunchBrowser:    getEnvBoolOrDefault("SHELL_LAUNCH_BROWSER", false),
		BrowserBinary:    getEnvOrDefault("SHELL_BROWSER_BINARY", "chromium"),
		ProfileDir:       getEnvOrDefault("SHELL_PROFILE_DIR", "./profile"),
		BindAddr:         getEnvOrDefault("SHELL_BIND_ADDR", "127.0.0.1:8199"),
		PortAutoFallback: getEnvBoolOrDefault("SHELL_PORT_AUTO_FALLBACK", true),
		PortCandidates:   getEnvListOrDefault("SHELL_PORT_CANDIDATES", []string{"127.0.0.1:8200", "127.0.0.1:8201", "127.0.0.1:8202"}),
		DBPath:           getEnvOrDefault("SHELL_DB_PATH", "./shell.db"),
		HomeURL:          getEnvOrDefault("SHELL_HOME_URL", "https://www.google.com"),
		SearchEngine:     getEnvOrDefault("SHELL_SEARCH_ENGINE", "Google"),
		BlocklistFile:    getEnvOrDefault("SHELL_BLOCKLIST_FILE", ""),
		PollIntervalMS:   getEnvIntOrDefault("SHELL_POLL_INTERVAL_MS", 1000),
		AutofillDelayMS:  getEnvIntOrDefault("SHELL_AUTOFILL_DELAY_MS", 500),
		EvalTimeoutMS:    getEnvIntOrDefault("SHELL_EVAL_TIMEOUT_MS", 5000),
		ConsentTimeoutS:  getEnvIntOrDefault("SHELL_CONSENT_TIMEOUT_S", 120),
		LogLevel:         strings.ToLower(getEnvOrDefault("SHELL_LOG_LEVEL", "info")),
		LogFile:          getEnvOrDefault("SHELL_LOG_FILE", "logs/browse_shell.log"),
	}
	if cfg.PollIntervalMS < 100 {
		cfg.PollIntervalMS = 100
	}
	if cfg.EvalTimeoutMS < 1000 {
		cfg.EvalTimeoutMS = 1000
	}
	return cfg, nil
}

// CDPURL returns the CDP HTTP endpoint used by the chromedp remote allocator.
func (c *Config) CDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

func (c *Config) PollInterval() time.Duration  { return time.Duration(c.PollIntervalMS) * time.Millisecond }
func (c *Config) AutofillDelay() time.Duration { return time.Duration(c.AutofillDelayMS) * time.Millisecond }
func (c *Config) EvalTimeout() time.Duration   { return time.Duration(c.EvalTimeoutMS) * time.Millisecond }

// ConsentTimeout bounds how long an unanswered save prompt stays pending.
func (c *Config) ConsentTimeout() time.Duration { return time.Duration(c.ConsentTimeoutS) * time.Second }

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
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
