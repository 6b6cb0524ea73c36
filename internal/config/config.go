package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded from the environment.
type Config struct {
	MongoURL    string
	DBName      string
	Port        int
	UploadDir   string
	CORSOrigins []string

	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string
}

// Load reads configuration from a .env file (if present) and the environment.
func Load() (*Config, error) {
	// Missing .env is fine; real env vars win either way.
	_ = godotenv.Load()

	cfg := &Config{
		MongoURL:    os.Getenv("MONGO_URL"),
		DBName:      getEnv("DB_NAME", "lyricbeats"),
		UploadDir:   getEnv("UPLOAD_DIR", "uploads"),
		LLMAPIKey:   os.Getenv("LLM_API_KEY"),
		LLMBaseURL:  getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMModel:    getEnv("LLM_MODEL", "gpt-4o"),
		CORSOrigins: splitOrigins(getEnv("CORS_ORIGINS", "*")),
	}

	port, err := strconv.Atoi(getEnv("PORT", "8000"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	cfg.Port = port

	return cfg, nil
}

// Validate checks settings required to run the server.
func (c *Config) Validate() error {
	if c.MongoURL == "" {
		return fmt.Errorf("MONGO_URL is required")
	}
	if c.DBName == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitOrigins(s string) []string {
	parts := strings.Split(s, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}
