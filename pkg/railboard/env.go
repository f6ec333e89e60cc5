package railboard

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv reads dir/.env and then lets dir/.env.local override it.
// Missing files are skipped.
func LoadDotEnv(dir string) error {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if err := godotenv.Overload(filepath.Join(dir, ".env.local")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env.local: %w", err)
	}
	return nil
}

// FromEnv builds a Config from the process environment on top of the defaults
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	cfg.BaseURL = os.Getenv("ODPT_BASE_URL")
	cfg.ChallengeBaseURL = os.Getenv("ODPT_CHALLENGE_BASE_URL")
	cfg.ConsumerKey = getEnv("ODPT_CONSUMER_KEY", os.Getenv("ODPT_COINSUMER_KEY"))
	cfg.ChallengeConsumerKey = os.Getenv("ODPT_CHALLENGE_CONSUMER_KEY")

	var err error
	if cfg.Mock, err = getEnvBool("USE_MOCK", cfg.Mock); err != nil {
		return cfg, err
	}
	if cfg.TimeWeighted, err = getEnvBool("TIME_WEIGHTED", cfg.TimeWeighted); err != nil {
		return cfg, err
	}
	if cfg.UpdateInterval, err = getEnvDuration("UPDATE_INTERVAL", cfg.UpdateInterval); err != nil {
		return cfg, err
	}
	if cfg.RotateInterval, err = getEnvDuration("ROTATE_INTERVAL", cfg.RotateInterval); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

// getEnvDuration accepts a Go duration or a plain number of seconds
func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
