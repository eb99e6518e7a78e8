package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port" env:"QUIZ_SERVER_PORT"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr" env:"QUIZ_REDIS_ADDR"`
		Password string `yaml:"password" env:"QUIZ_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"QUIZ_REDIS_DB"`
		TTL      string `yaml:"ttl" env:"QUIZ_REDIS_TTL"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" env:"QUIZ_POSTGRES_URL"`
	} `yaml:"postgres"`
	Quiz struct {
		// TTL bounds how long a saved question set stays cached.
		TTL             string `yaml:"ttl" env:"QUIZ_CACHE_TTL"`
		QuestionSeconds int    `yaml:"questionSeconds" env:"QUIZ_QUESTION_SECONDS"`
		FeedbackDelay   string `yaml:"feedbackDelay" env:"QUIZ_FEEDBACK_DELAY"`
		OptionOrder     string `yaml:"optionOrder" env:"QUIZ_OPTION_ORDER"`
		DefaultCount    int    `yaml:"defaultCount" env:"QUIZ_DEFAULT_COUNT"`
		MaxCount        int    `yaml:"maxCount" env:"QUIZ_MAX_COUNT"`
		SinkTimeout     string `yaml:"sinkTimeout" env:"QUIZ_SINK_TIMEOUT"`
	} `yaml:"quiz"`
	Trivia struct {
		BaseURL string `yaml:"baseURL" env:"QUIZ_TRIVIA_BASE_URL"`
		Timeout string `yaml:"timeout" env:"QUIZ_TRIVIA_TIMEOUT"`
	} `yaml:"trivia"`
}

// Load reads YAML config from path, then applies QUIZ_* environment overrides.
// A missing file is not an error; the environment alone can configure the service.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return cfg, err
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
