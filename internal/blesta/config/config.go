// Package config loads Blesta API credentials from the environment,
// with optional .env file support.
package config

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvAPIURL  = "BLESTA_API_URL"
	EnvAPIUser = "BLESTA_API_USER"
	EnvAPIKey  = "BLESTA_API_KEY"
)

// ErrMissingCredentials is returned when any required value is unset.
var ErrMissingCredentials = errors.New(
	"missing API credentials: set BLESTA_API_URL, BLESTA_API_USER, and BLESTA_API_KEY")

// EnvGetter abstracts environment variable access for testing.
type EnvGetter interface {
	Getenv(key string) string
}

// osEnvGetter is the default implementation using os.Getenv.
type osEnvGetter struct{}

func (o *osEnvGetter) Getenv(key string) string {
	return os.Getenv(key)
}

// Config holds the API connection settings.
type Config struct {
	URL  string
	User string
	Key  string
}

// Load reads the configuration from OS environment variables.
func Load() (*Config, error) {
	return LoadWithEnv(&osEnvGetter{})
}

// LoadWithEnv loads the configuration using the provided EnvGetter.
func LoadWithEnv(env EnvGetter) (*Config, error) {
	cfg := &Config{
		URL:  env.Getenv(EnvAPIURL),
		User: env.Getenv(EnvAPIUser),
		Key:  env.Getenv(EnvAPIKey),
	}
	if cfg.URL == "" || cfg.User == "" || cfg.Key == "" {
		return nil, ErrMissingCredentials
	}
	return cfg, nil
}

// LoadDotenv loads variables from a .env file into the process
// environment. A missing file is not an error; existing environment
// variables are never overwritten.
func LoadDotenv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return godotenv.Load(path)
}
