// Package config reads viewer settings from an optional .env file and the environment.
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

// Config holds everything cmd/chronomap needs to wire the core.
type Config struct {
	APIURL      string
	Year        int
	Dimension   string
	MarkerLimit int
	HTTPTimeout time.Duration

	// ArchivePath is the SQLite file of archived area snapshots; empty disables it.
	ArchivePath   string
	// ProvincesPath is a local territory file used when the metadata
	// response does not bundle geometry.
	ProvincesPath string

	// Redis response cache, disabled when RedisAddr is empty.
	RedisAddr string
	RedisPass string
	RedisDB   int
	CacheTTL  time.Duration

	MetricsAddr string
	LogFile     string
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		APIURL:      "http://localhost:4040/v1",
		Year:        1000,
		Dimension:   "ruler",
		MarkerLimit: 2000,
		HTTPTimeout: 10 * time.Second,
		CacheTTL:    time.Hour,
	}
}

// Load reads the given .env files (".env" when none are given) without
// overriding variables already set, then builds the config from the environment.
// Missing files are not an error.
func Load(files ...string) Config {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("dotenv_load_failed", "err", err)
	}
	return FromEnv()
}

// FromEnv builds the config from environment variables over Defaults.
// Malformed numbers and durations keep their default and log a warning.
func FromEnv() Config {
	c := Defaults()
	if v := os.Getenv("CHRONOMAP_API_URL"); v != "" {
		c.APIURL = strings.TrimRight(v, "/")
	}
	c.Year = envInt("CHRONOMAP_YEAR", c.Year)
	if v := os.Getenv("CHRONOMAP_DIMENSION"); v != "" {
		c.Dimension = v
	}
	c.MarkerLimit = envInt("CHRONOMAP_MARKER_LIMIT", c.MarkerLimit)
	if c.MarkerLimit < 0 {
		c.MarkerLimit = 0
	}
	c.HTTPTimeout = envDuration("CHRONOMAP_HTTP_TIMEOUT", c.HTTPTimeout)
	c.ArchivePath = os.Getenv("CHRONOMAP_ARCHIVE")
	c.ProvincesPath = os.Getenv("CHRONOMAP_PROVINCES")

	if host := os.Getenv("REDIS_HOST"); host != "" {
		port := os.Getenv("REDIS_PORT")
		if port == "" {
			port = "6379"
		}
		c.RedisAddr = host + ":" + port
	}
	c.RedisPass = os.Getenv("REDIS_PASS")
	c.RedisDB = envInt("REDIS_DB", 0)
	if c.RedisDB < 0 {
		c.RedisDB = 0
	}
	c.CacheTTL = envDuration("CHRONOMAP_CACHE_TTL", c.CacheTTL)

	c.MetricsAddr = os.Getenv("METRICS_ADDR")
	c.LogFile = os.Getenv("CHRONOMAP_LOG_FILE")
	return c
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config_bad_int", "key", key, "value", v)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("config_bad_duration", "key", key, "value", v)
		return def
	}
	return d
}
