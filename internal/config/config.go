// Package config loads pipeline settings from the environment, with a
// .env file honored when present.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all settings in correct types. Created once at startup
// and read-only thereafter.
type Config struct {
	ArchiveRoot   string
	StagingDir    string
	MirrorDir     string
	PublicBaseURL string

	Concurrency        int
	MaxRetries         int
	RequestTimeout     time.Duration
	DownloadsPerSecond float64

	FFmpegPath         string
	PreferredContainer string

	ServeAddr     string
	StagingMaxAge time.Duration
}

// Load reads configuration from the environment. A missing .env file
// is not an error.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		ArchiveRoot:        getEnv("ARCHIVE_ROOT", "media_storage"),
		StagingDir:         getEnv("STAGING_DIR", "staging"),
		MirrorDir:          getEnv("MIRROR_DIR", "scraped_data"),
		PublicBaseURL:      getEnv("MEDIA_BASE_URL", "http://localhost:8000/media"),
		Concurrency:        getEnvAsInt("MAX_CONCURRENT_TRANSFERS", 4),
		MaxRetries:         getEnvAsInt("FETCH_MAX_RETRIES", 3),
		RequestTimeout:     time.Duration(getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 60)) * time.Second,
		DownloadsPerSecond: getEnvAsFloat("DOWNLOADS_PER_SECOND", 0),
		FFmpegPath:         getEnv("FFMPEG_PATH", "ffmpeg"),
		PreferredContainer: getEnv("PREFERRED_CONTAINER", "mp4"),
		ServeAddr:          getEnv("MEDIA_SERVER_ADDR", ":8000"),
		StagingMaxAge:      time.Duration(getEnvAsInt("STAGING_MAX_AGE_MINUTES", 60)) * time.Minute,
	}

	validate(cfg)
	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return fallback
}

// validate keeps startup from proceeding with values the pipeline
// cannot run on.
func validate(cfg *Config) {
	if cfg.Concurrency < 1 {
		log.Printf("config: MAX_CONCURRENT_TRANSFERS must be at least 1, resetting to 4")
		cfg.Concurrency = 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.StagingMaxAge <= 0 {
		cfg.StagingMaxAge = time.Hour
	}
}
