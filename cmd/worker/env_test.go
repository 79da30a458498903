package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvFrom_FirstExistingFileWins(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.env")
	second := filepath.Join(dir, "b.env")
	require.NoError(t, os.WriteFile(first, []byte("RENTAL_METER_ENV_TEST=first\n"), 0o600))
	require.NoError(t, os.WriteFile(second, []byte("RENTAL_METER_ENV_TEST=second\n"), 0o600))
	t.Setenv("RENTAL_METER_ENV_TEST", "")
	os.Unsetenv("RENTAL_METER_ENV_TEST")

	path, ok := loadEnvFrom([]string{filepath.Join(dir, "missing.env"), first, second})

	require.True(t, ok)
	assert.Equal(t, first, path)
	assert.Equal(t, "first", os.Getenv("RENTAL_METER_ENV_TEST"))
}

func TestLoadEnvFrom_NothingFound(t *testing.T) {
	_, ok := loadEnvFrom([]string{filepath.Join(t.TempDir(), ".env")})
	assert.False(t, ok)
}

func TestEnvCandidates_WalksUpFromWorkingDir(t *testing.T) {
	paths := envCandidates()
	require.NotEmpty(t, paths)

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, ".env"), paths[0])
	assert.LessOrEqual(t, len(paths), 3)
}
