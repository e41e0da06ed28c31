package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is read when no --env-file is given.
const DefaultEnvFile = ".env"

// LoadEnvFile seeds the process environment from a dotenv file. Variables that
// are already set are not overwritten. A missing file is only an error when the
// caller asked for it explicitly.
func LoadEnvFile(path string, explicit bool) (bool, error) {
	if path == "" {
		return false, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return false, nil
		}
		return false, fmt.Errorf("env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return false, fmt.Errorf("parse env file %s: %w", path, err)
	}
	return true, nil
}
