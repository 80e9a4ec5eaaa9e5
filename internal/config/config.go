// Package config loads runtime settings from the environment, with an
// optional .env file for local development. Flags in main override these.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config carries everything main needs to wire the program.
type Config struct {
	Endpoint string
	LogFile  string
	Debug    bool
}

// Load reads .env when present, then the environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Endpoint: getEnv("INKWELL_ENDPOINT", "http://127.0.0.1:5000"),
		LogFile:  getEnv("INKWELL_LOG_FILE", "inkwell.log"),
		Debug:    os.Getenv("INKWELL_DEBUG") != "",
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
