package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	// Save current env and restore later
	origDir := os.Getenv("UPLOAD_DIR")
	defer os.Setenv("UPLOAD_DIR", origDir)

	os.Setenv("UPLOAD_DIR", "test-uploads")
	os.Setenv("UPLOAD_MAX_BYTES", "1024")
	os.Setenv("DETECTION_THRESHOLD", "0.8")
	os.Setenv("CACHE_ENABLED", "true")
	defer func() {
		os.Unsetenv("UPLOAD_MAX_BYTES")
		os.Unsetenv("DETECTION_THRESHOLD")
		os.Unsetenv("CACHE_ENABLED")
	}()

	cfg := Load()

	assert.Equal(t, "test-uploads", cfg.Upload.Dir)
	assert.Equal(t, int64(1024), cfg.Upload.MaxBytes)
	assert.Equal(t, 0.8, cfg.Vision.DetectionThreshold)
	assert.True(t, cfg.Cache.Enabled)
}

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("UPLOAD_DIR")
	os.Unsetenv("UPLOAD_MAX_BYTES")
	os.Unsetenv("DETECTION_THRESHOLD")
	os.Unsetenv("MAX_CAPTION_TOKENS")
	os.Unsetenv("STORAGE_BACKEND")

	cfg := Load()

	assert.Equal(t, "uploads", cfg.Upload.Dir)
	assert.Equal(t, int64(5*1024*1024), cfg.Upload.MaxBytes)
	assert.Equal(t, 0.6, cfg.Vision.DetectionThreshold)
	assert.Equal(t, 50, cfg.Vision.MaxCaptionTokens)
	assert.Equal(t, "local", cfg.Storage.Backend)
}

func TestGetEnv(t *testing.T) {
	key := "TEST_ENV_VAR"
	os.Setenv(key, "value")
	defer os.Unsetenv(key)

	assert.Equal(t, "value", getEnv(key, "default"))
	assert.Equal(t, "default", getEnv("NON_EXISTENT", "default"))
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_BOOL_VAR"

	os.Setenv(key, "true")
	assert.True(t, getEnvBool(key, false))

	os.Setenv(key, "false")
	assert.False(t, getEnvBool(key, true))

	os.Setenv(key, "invalid")
	assert.True(t, getEnvBool(key, true))

	os.Unsetenv(key)
	assert.True(t, getEnvBool(key, true))
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_INT_VAR"

	os.Setenv(key, "123")
	assert.Equal(t, 123, getEnvInt(key, 0))

	os.Setenv(key, "invalid")
	assert.Equal(t, 10, getEnvInt(key, 10))

	os.Unsetenv(key)
	assert.Equal(t, 10, getEnvInt(key, 10))
}

func TestGetEnvFloat(t *testing.T) {
	key := "TEST_FLOAT_VAR"

	os.Setenv(key, "0.75")
	assert.Equal(t, 0.75, getEnvFloat(key, 0))

	os.Setenv(key, "invalid")
	assert.Equal(t, 0.6, getEnvFloat(key, 0.6))

	os.Unsetenv(key)
	assert.Equal(t, 0.6, getEnvFloat(key, 0.6))
}
