package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration. Values come from TONEARM_*
// environment variables (optionally via a .env file) with working defaults,
// so a bare invocation plays audio without any setup.
type Config struct {
	DataDir string // base directory for the database and logs
	DBPath  string // SQLite database file

	LogPath    string // rotating log file; empty disables file logging
	LogLevel   string // debug, info, warn, error
	LogConsole bool   // also log to stderr

	Volume          float64       // output volume, 0.0 to 1.0
	DeviceTimeout   time.Duration // bound on opening the output device
	SpeakerBuffer   time.Duration // device buffer length
	StallTimeout    time.Duration // playing position frozen this long means device lost
	PlayedThreshold float64       // fraction of a track that counts as played on early stop; 0 disables

	ScanWorkers int // concurrent probe workers for library scans
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvFloat gets an environment variable as float64 or returns a default value.
func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration gets an environment variable as a duration ("5s", "250ms")
// or returns a default value.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// DefaultDataDir returns the platform data directory for tonearm,
// honoring XDG_DATA_HOME and falling back to ~/.local/share.
func DefaultDataDir() string {
	if dir := os.Getenv("TONEARM_DATA_DIR"); dir != "" {
		return dir
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "tonearm")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./tonearm-data"
	}
	return filepath.Join(home, ".local", "share", "tonearm")
}

// Load loads configuration from environment variables (via .env file when
// present) or defaults. godotenv never overrides variables already set.
func Load() *Config {
	_ = godotenv.Load()

	dataDir := DefaultDataDir()

	volume := getEnvFloat("TONEARM_VOLUME", 0.7)
	if volume < 0 {
		volume = 0
	} else if volume > 1 {
		volume = 1
	}

	threshold := getEnvFloat("TONEARM_PLAYED_THRESHOLD", 0)
	if threshold < 0 || threshold > 1 {
		threshold = 0
	}

	workers := getEnvInt("TONEARM_SCAN_WORKERS", 4)
	if workers <= 0 {
		workers = 1
	}

	return &Config{
		DataDir:         dataDir,
		DBPath:          getEnv("TONEARM_DB", filepath.Join(dataDir, "tonearm.db")),
		LogPath:         getEnv("TONEARM_LOG", filepath.Join(dataDir, "logs", "tonearm.log")),
		LogLevel:        getEnv("TONEARM_LOG_LEVEL", "info"),
		LogConsole:      getEnvBool("TONEARM_LOG_CONSOLE", false),
		Volume:          volume,
		DeviceTimeout:   getEnvDuration("TONEARM_DEVICE_TIMEOUT", 5*time.Second),
		SpeakerBuffer:   getEnvDuration("TONEARM_SPEAKER_BUFFER", 100*time.Millisecond),
		StallTimeout:    getEnvDuration("TONEARM_STALL_TIMEOUT", 3*time.Second),
		PlayedThreshold: threshold,
		ScanWorkers:     workers,
	}
}

// EnsureDataDir creates the data directory tree if missing.
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return err
	}
	if c.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(c.LogPath), 0o755); err != nil {
			return err
		}
	}
	return os.MkdirAll(filepath.Dir(c.DBPath), 0o755)
}
