package shared

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

var dotenvLoadOnce sync.Once

// LoadDotEnv loads the nearest .env file once per process. It returns the
// path of the file that was loaded, or an empty string when none was found.
func LoadDotEnv() string {
	var loaded string
	dotenvLoadOnce.Do(func() {
		cwd, err := os.Getwd()
		if err != nil {
			return
		}
		if candidate := findDotEnv(cwd); candidate != "" {
			if LoadDotEnvFile(candidate) {
				loaded = candidate
			}
		}
	})
	return loaded
}

// findDotEnv returns the first .env at or above start.
func findDotEnv(start string) string {
	current := start
	for {
		candidate := filepath.Join(current, ".env")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		current = parent
	}
}

// LoadDotEnvFile applies the variables in the .env file at path to the
// process environment, leaving variables that are already set alone, and
// reports whether at least one variable was set. Keys that are not valid
// variable names are skipped.
func LoadDotEnvFile(path string) bool {
	values, err := godotenv.Read(path)
	if err != nil {
		return false
	}

	loadedAny := false
	for key, value := range values {
		if !IsValidEnvKey(key) {
			continue
		}
		if _, alreadySet := os.LookupEnv(key); alreadySet {
			continue
		}
		if setErr := os.Setenv(key, value); setErr == nil {
			loadedAny = true
		}
	}
	return loadedAny
}

// IsValidEnvKey reports whether key is a POSIX-style variable name.
func IsValidEnvKey(key string) bool {
	if key == "" {
		return false
	}
	for index, character := range key {
		if (character >= 'A' && character <= 'Z') ||
			(character >= 'a' && character <= 'z') ||
			(index > 0 && character >= '0' && character <= '9') ||
			character == '_' {
			continue
		}
		return false
	}
	return true
}

// FirstNonEmptyEnv returns the first trimmed, non-empty value among keys.
func FirstNonEmptyEnv(keys ...string) string {
	for _, key := range keys {
		value := strings.TrimSpace(os.Getenv(key))
		if value != "" {
			return value
		}
	}
	return ""
}
