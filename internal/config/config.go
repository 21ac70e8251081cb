package config

import (
	"os"
	"strings"
)

// Config holds relay settings sourced from the environment. An empty
// DatabaseURL selects the in-memory stores.
type Config struct {
	Port           string
	DatabaseURL    string
	JWTSecret      string
	AllowedOrigins []string
	Environment    string
}

// Load reads configuration from environment variables.
func Load() *Config {
	allowedOrigins := []string{"*"}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		allowedOrigins = strings.Split(origins, ",")
		for i, origin := range allowedOrigins {
			allowedOrigins[i] = strings.TrimSpace(origin)
		}
	}

	return &Config{
		Port:           getEnv("PORT", "3000"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JWTSecret:      getEnv("JWT_SECRET", "dev-secret"),
		AllowedOrigins: allowedOrigins,
		Environment:    getEnv("ENVIRONMENT", "development"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// CORSOrigins returns the allowed origins as a comma-separated string.
func (c *Config) CORSOrigins() string {
	return strings.Join(c.AllowedOrigins, ",")
}

// IsProduction returns true if environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
