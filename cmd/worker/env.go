package main

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// loadEnvFile loads the first .env found in the working directory or one of
// its two parents.
func loadEnvFile() (string, bool) {
	return loadEnvFrom(envCandidates())
}

func envCandidates() []string {
	dir, err := os.Getwd()
	if err != nil {
		return []string{".env"}
	}
	var out []string
	for i := 0; i < 3; i++ {
		out = append(out, filepath.Join(dir, ".env"))
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return out
}

func loadEnvFrom(paths []string) (string, bool) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err == nil {
			return path, true
		}
	}
	return "", false
}
