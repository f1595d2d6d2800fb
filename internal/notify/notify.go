// Package notify delivers monitoring results over email, Pushover, and
// Uptime Kuma push heartbeats.
//
// Credentials live outside the YAML config, in dotenv-style files holding
// environment variables (SMTP_SERVER, PUSHOVER_TOKEN, ...). Loading a file is
// optional: when the variables are already in the environment, pass an empty
// path.
package notify

import (
	"fmt"

	"github.com/joho/godotenv"
	"go-simpler.org/env"

	"github.com/backupwatch/backupwatch/internal/fsutil"
)

// loadEnv populates cfg from the environment, optionally loading a dotenv
// file first. File values override already-exported variables, matching the
// precedence backup hosts expect from per-service credential files.
func loadEnv(envFile string, cfg any) error {
	if envFile != "" {
		full, err := fsutil.ExpandPath(envFile)
		if err != nil {
			return fmt.Errorf("resolve env file %q: %w", envFile, err)
		}
		if err := godotenv.Overload(full); err != nil {
			return fmt.Errorf("load env file %q: %w", envFile, err)
		}
	}

	if err := env.Load(cfg, nil); err != nil {
		return fmt.Errorf("read credentials from environment: %w", err)
	}
	return nil
}
