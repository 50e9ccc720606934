package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

type Config struct {
	// Server
	Port   string
	Env    string
	WebDir string

	// Logging
	LogLevel string

	// Provider
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	MaxTokens       int
	Temperature     float64
	ProviderTimeout time.Duration

	// Storage
	StoreDriver string
	SQLitePath  string
}

// Load reads configuration from the environment, after loading a .env file
// when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	maxTokens, err := getEnvAsIntOrDefault("OPENAI_MAX_TOKENS", 2000)
	if err != nil {
		return nil, err
	}
	temperature, err := getEnvAsFloatOrDefault("OPENAI_TEMPERATURE", 0.7)
	if err != nil {
		return nil, err
	}
	timeout, err := getEnvAsDurationOrDefault("PROVIDER_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:            getEnvOrDefault("PORT", "5000"),
		Env:             getEnvOrDefault("ENV", "production"),
		WebDir:          os.Getenv("WEB_DIR"),
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:   getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:     getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		MaxTokens:       maxTokens,
		Temperature:     temperature,
		ProviderTimeout: timeout,
		StoreDriver:     getEnvOrDefault("STORE_DRIVER", DriverMemory),
		SQLitePath:      getEnvOrDefault("SQLITE_PATH", "chat.db"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("required environment variable OPENAI_API_KEY is not set")
	}
	if c.StoreDriver != DriverMemory && c.StoreDriver != DriverSQLite {
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverMemory, DriverSQLite, c.StoreDriver)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("OPENAI_MAX_TOKENS must be positive, got %d", c.MaxTokens)
	}
	if c.ProviderTimeout < 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must not be negative, got %s", c.ProviderTimeout)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
