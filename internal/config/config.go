package config

import (
	"log"
	"os"
	"time"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

type Config struct {
	Mode Mode

	Port string

	StorageBackend string // "memory", "sqlite" or "firestore"
	SQLitePath     string

	GCPProjectID string

	// ResumeWindow is how long an unfinished session stays resumable.
	// Past it, createOrResume abandons the old session and starts fresh.
	ResumeWindow time.Duration
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("%s: invalid duration %q: %v", key, v, err)
	}
	return d
}

// Load reads all env vars and builds the config
func Load() *Config {
	modeStr := getEnv("ONBOARD_MODE", "local")
	var mode Mode
	switch modeStr {
	case "gcp":
		mode = ModeGCP
	default:
		mode = ModeLocal
	}

	cfg := &Config{
		Mode: mode,

		Port: getEnv("ONBOARD_PORT", "8080"),

		StorageBackend: getEnv("ONBOARD_STORAGE_BACKEND", "memory"),
		SQLitePath:     getEnv("ONBOARD_SQLITE_PATH", "onboarding.db"),

		GCPProjectID: getEnv("ONBOARD_GCP_PROJECT", ""),

		ResumeWindow: getDurationEnv("ONBOARD_RESUME_WINDOW", 24*time.Hour),
	}

	// Minimal validation in GCP mode
	if cfg.Mode == ModeGCP && cfg.GCPProjectID == "" {
		log.Fatal("ONBOARD_GCP_PROJECT must be set in gcp mode")
	}

	return cfg
}
