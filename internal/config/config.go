// Package config provides centralized configuration for the inkgen server.
// All configurable values are loaded from environment variables with sensible defaults.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all server configuration values.
type Config struct {
	// Port is the HTTP server listen port.
	Port string

	// DBPath is the path to the SQLite database file.
	DBPath string

	// ImageProvider selects the generation backend: "openai", "stability", "stub".
	ImageProvider string

	// OpenAIKey is the API key for the OpenAI Images service.
	OpenAIKey string

	// OpenAIImageModel is the image model identifier for OpenAI.
	OpenAIImageModel string

	// StabilityKey is the API key for the Stability AI service.
	StabilityKey string

	// StabilityEngine is the engine identifier for Stability generations.
	StabilityEngine string

	// ImageDir is where locally stored generated images live.
	ImageDir string

	// HTTPTimeout bounds a single outbound provider call.
	HTTPTimeout time.Duration

	// CacheBackend selects the result cache: "memory" or "sqlite".
	CacheBackend string

	// CacheTTL is how long a generation result is served from cache.
	CacheTTL time.Duration

	// CacheWriteAsync defers cache population to the background queue
	// instead of writing before the response.
	CacheWriteAsync bool

	// QueueWorkers is the number of background persistence workers.
	QueueWorkers int

	// QueueSize is the capacity of the background persistence queue.
	QueueSize int

	// CORSOrigin is the allowed CORS origin. Defaults to "*".
	CORSOrigin string
}

// Load reads configuration from environment variables, applying defaults.
func Load() Config {
	return Config{
		Port:             envOr("PORT", "8000"),
		DBPath:           envOr("DB_PATH", "inkgen.db"),
		ImageProvider:    envOr("IMAGE_PROVIDER", "openai"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIImageModel: envOr("OPENAI_IMAGE_MODEL", "dall-e-3"),
		StabilityKey:     os.Getenv("STABILITY_API_KEY"),
		StabilityEngine:  envOr("STABILITY_ENGINE", "stable-diffusion-xl-1024-v1-0"),
		ImageDir:         envOr("IMAGE_DIR", "images"),
		HTTPTimeout:      envDuration("HTTP_TIMEOUT", 60*time.Second),
		CacheBackend:     envOr("CACHE_BACKEND", "memory"),
		CacheTTL:         envDuration("CACHE_TTL", 24*time.Hour),
		CacheWriteAsync:  envBool("CACHE_WRITE_ASYNC", false),
		QueueWorkers:     envInt("QUEUE_WORKERS", 2),
		QueueSize:        envInt("QUEUE_SIZE", 128),
		CORSOrigin:       envOr("CORS_ORIGIN", "*"),
	}
}

// UseStubs returns true when no API key is configured for the selected provider.
func (c Config) UseStubs() bool {
	switch c.ImageProvider {
	case "stability":
		return c.StabilityKey == ""
	case "stub":
		return true
	default:
		return c.OpenAIKey == ""
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
