package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the application configuration, populated from environment
// variables with the WB_ prefix (e.g. WB_DATABASE_URL).
type Config struct {
	DatabaseURL       string `split_words:"true" required:"true"`
	RedisURL          string `split_words:"true" required:"true"`
	BearerToken       string `split_words:"true" required:"true"`
	OpenWeatherAPIKey string `envconfig:"OPENWEATHER_API_KEY" required:"true"`
	YouTubeAPIKey     string `envconfig:"YOUTUBE_API_KEY" required:"true"`
	Port              string `default:"8080"`
	MigrationsDir     string `split_words:"true" default:"migrations"`
}

// LoadFromEnv loads the configuration from environment variables and an
// optional .env file.
func LoadFromEnv() (*Config, error) {
	// A .env file, if present, fills in anything not already exported.
	_ = godotenv.Load()

	cfg := new(Config)
	if err := envconfig.Process("wb", cfg); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}
	return cfg, nil
}
