// Package config reads service settings from the environment (optionally
// seeded from a .env file) and search defaults from a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"fleetroute/internal/opt"
)

type Config struct {
	Port              string
	DatabaseURL       string
	Migrate           bool
	RedisURL          string
	RateRPS           float64
	RateBurst         int
	LogLevel          string
	MaxConcurrentRuns int
	SearchConfig      string
	Search            opt.Params

	// WebhookURL, when set, receives run.completed and run.failed events.
	WebhookURL         string
	WebhookSecret      string
	WebhookMaxAttempts int
}

// Load reads .env when present, then the environment. A missing .env is
// not an error.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	c := Config{
		Port:         getEnv("PORT", "8080"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		Migrate:      os.Getenv("DB_MIGRATE") != "false",
		RedisURL:     os.Getenv("REDIS_URL"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		SearchConfig: os.Getenv("SEARCH_CONFIG"),

		WebhookURL:    os.Getenv("WEBHOOK_URL"),
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
	}
	var err error
	if c.RateRPS, err = getFloat("RATE_RPS", 0); err != nil {
		return Config{}, err
	}
	if c.RateBurst, err = getInt("RATE_BURST", 20); err != nil {
		return Config{}, err
	}
	if c.MaxConcurrentRuns, err = getInt("MAX_CONCURRENT_RUNS", 4); err != nil {
		return Config{}, err
	}
	if c.WebhookMaxAttempts, err = getInt("WEBHOOK_MAX_ATTEMPTS", 5); err != nil {
		return Config{}, err
	}
	if c.MaxConcurrentRuns <= 0 {
		return Config{}, fmt.Errorf("MAX_CONCURRENT_RUNS must be positive, got %d", c.MaxConcurrentRuns)
	}
	c.Search = opt.DefaultParams()
	if c.SearchConfig != "" {
		if c.Search, err = LoadSearch(c.SearchConfig, c.Search); err != nil {
			return Config{}, err
		}
	}
	return c, nil
}

// LoadSearch overlays the YAML file at path onto base. Unknown keys are
// rejected so typos surface as errors.
func LoadSearch(path string, base opt.Params) (opt.Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return opt.Params{}, fmt.Errorf("reading search config: %w", err)
	}
	return ParseSearch(data, base)
}

func ParseSearch(data []byte, base opt.Params) (opt.Params, error) {
	p := base
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return opt.Params{}, fmt.Errorf("parsing search config: %w", err)
	}
	if err := p.Validate(); err != nil {
		return opt.Params{}, err
	}
	return p, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}
