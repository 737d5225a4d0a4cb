// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime configuration for the voicewire server.
type Config struct {
	ListenAddr string
	WebDir     string

	// Upstream transcription service.
	UpstreamAPIKey  string
	UpstreamBaseURL string
	RealtimeURL     string

	// Session defaults sent when minting upstream sessions.
	TranscriptionModel string
	DefaultLanguage    string
	NoiseReduction     string
	VADThreshold       float64
	VADPrefixMs        int
	VADSilenceMs       int

	// Relay slot lifecycle.
	SlotTTL       time.Duration
	SweepInterval time.Duration
}

// Load reads configuration from the environment, loading a .env file first
// when one is present. The upstream API key is required; everything else
// has a default.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		ListenAddr:         getEnv("VOICEWIRE_ADDR", ":8080"),
		WebDir:             getEnv("VOICEWIRE_WEB_DIR", "web"),
		UpstreamAPIKey:     os.Getenv("OPENAI_API_KEY"),
		UpstreamBaseURL:    getEnv("VOICEWIRE_UPSTREAM_URL", "https://api.openai.com"),
		RealtimeURL:        getEnv("VOICEWIRE_REALTIME_URL", "wss://api.openai.com/v1/realtime"),
		TranscriptionModel: getEnv("VOICEWIRE_MODEL", "gpt-4o-transcribe"),
		DefaultLanguage:    getEnv("VOICEWIRE_DEFAULT_LANGUAGE", "en"),
		NoiseReduction:     getEnv("VOICEWIRE_NOISE_REDUCTION", "near_field"),
		VADThreshold:       getEnvFloat("VOICEWIRE_VAD_THRESHOLD", 0.5),
		VADPrefixMs:        getEnvInt("VOICEWIRE_VAD_PREFIX_MS", 300),
		VADSilenceMs:       getEnvInt("VOICEWIRE_VAD_SILENCE_MS", 500),
		SlotTTL:            getEnvDuration("VOICEWIRE_SLOT_TTL", 30*time.Minute),
		SweepInterval:      getEnvDuration("VOICEWIRE_SWEEP_INTERVAL", 5*time.Minute),
	}

	if cfg.UpstreamAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
