package config

import (
	"log/slog"

	"github.com/joho/godotenv"
)

// envFiles are tried in order; process environment always wins.
var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads KEY=VALUE pairs from the supported env files without
// overwriting variables already present in the environment.
func loadEnvFiles() {
	for _, name := range envFiles {
		if err := godotenv.Load(name); err == nil {
			slog.Debug("Loaded environment variables", "file", name)
		}
	}
}
