package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port int
	Host string
	Env  string // "development" or "production"

	// Data directory
	DataDir string

	// Database
	DatabasePath string

	// Session store backend: "memory" (default) or "sqlite". The sqlite
	// backend trades speed for surviving process restarts.
	SessionStore string

	// Session lifecycle timers
	InactiveSweepInterval time.Duration // how often the inactive sweep runs
	InactiveThreshold     time.Duration // idle time before a session is swept
	StaleSweepInterval    time.Duration // legacy stale sweep cadence
	StaleThreshold        time.Duration // legacy stale idle threshold
	MaxSessions           int

	// Reconnection
	ReconnectWindow        time.Duration // how long a dropped client may resume
	ReconnectSweepInterval time.Duration // expiry sweep cadence
	DisconnectDebounce     time.Duration // delay before hard cleanup after disconnect

	// Cleanup / tools
	CleanupTimeout time.Duration // graceful teardown budget
	ToolTimeout    time.Duration // default per-tool execution budget

	// Realtime AI provider
	RealtimeURL   string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	TTSVoice      string

	// Auth settings
	AuthMode   string // "none" or "token"
	AuthSecret string

	// Debug settings
	DBLogQueries bool
}

var (
	cfg  *Config
	once sync.Once
)

// Get returns the global configuration (singleton)
func Get() *Config {
	once.Do(func() {
		cfg = load()
	})
	return cfg
}

// load reads configuration from environment variables
func load() *Config {
	dataDir := getEnv("VOXFORM_DATA_DIR", "./data")

	return &Config{
		// Server
		Port: getEnvInt("PORT", 8700),
		Host: getEnv("HOST", "0.0.0.0"),
		Env:  getEnv("ENV", "development"),

		// Data
		DataDir:      dataDir,
		DatabasePath: filepath.Join(dataDir, "voxform.sqlite"),

		// Session lifecycle
		SessionStore:          getEnv("VOXFORM_SESSION_STORE", "memory"),
		InactiveSweepInterval: getEnvDuration("VOXFORM_INACTIVE_SWEEP_INTERVAL", time.Minute),
		InactiveThreshold:     getEnvDuration("VOXFORM_INACTIVE_THRESHOLD", 5*time.Minute),
		StaleSweepInterval:    getEnvDuration("VOXFORM_STALE_SWEEP_INTERVAL", time.Minute),
		StaleThreshold:        getEnvDuration("VOXFORM_STALE_THRESHOLD", 30*time.Minute),
		MaxSessions:           getEnvInt("VOXFORM_MAX_SESSIONS", 200),

		// Reconnection
		ReconnectWindow:        getEnvDuration("VOXFORM_RECONNECT_WINDOW", 60*time.Second),
		ReconnectSweepInterval: getEnvDuration("VOXFORM_RECONNECT_SWEEP_INTERVAL", 10*time.Second),
		DisconnectDebounce:     getEnvDuration("VOXFORM_DISCONNECT_DEBOUNCE", 2*time.Second),

		// Cleanup / tools
		CleanupTimeout: getEnvDuration("VOXFORM_CLEANUP_TIMEOUT", 4*time.Second),
		ToolTimeout:    getEnvDuration("VOXFORM_TOOL_TIMEOUT", 5*time.Second),

		// Realtime AI provider
		RealtimeURL:   getEnv("VOXFORM_REALTIME_URL", "wss://api.openai.com/v1/realtime"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		TTSVoice:      getEnv("VOXFORM_TTS_VOICE", "alloy"),

		// Auth
		AuthMode:   getEnv("VOXFORM_AUTH_MODE", "none"),
		AuthSecret: getEnv("VOXFORM_AUTH_SECRET", ""),

		// Debug
		DBLogQueries: getEnv("DB_LOG_QUERIES", "") == "1",
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env != "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
