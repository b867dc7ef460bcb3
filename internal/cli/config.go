package cli

import (
	"os"
	"time"
)

// Config holds CLI configuration
type Config struct {
	// Addr is the line-protocol server address
	Addr string
	// APIURL is the admin HTTP base URL
	APIURL   string
	Username string
	Password string
	Output   string
	Timeout  time.Duration
}

// DefaultConfig returns a Config with values taken from the environment where set
func DefaultConfig() *Config {
	return &Config{
		Addr:     getEnvOrDefault("MMATCH_SERVER", "localhost:5555"),
		APIURL:   getEnvOrDefault("MMATCH_API", "http://localhost:8080"),
		Username: os.Getenv("MMATCH_USER"),
		Password: os.Getenv("MMATCH_PASSWORD"),
		Output:   "text",
		Timeout:  10 * time.Second,
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
