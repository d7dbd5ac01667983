package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("THUMBNAIL_SIZE", "")
	t.Setenv("TASK_TIMEOUT", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test,,")
	t.Setenv("BASE_URL", "http://photos.test/")

	cfg := Load()

	assert.Equal(t, 128, cfg.ThumbnailSize)
	assert.Equal(t, time.Minute, cfg.TaskTimeout)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, "http://photos.test", cfg.BaseURL)
}

func TestMaxUploadBytes(t *testing.T) {
	cfg := &Config{MaxUploadMB: 2}
	assert.Equal(t, int64(2*1024*1024), cfg.MaxUploadBytes())
}

func TestParseHelpers(t *testing.T) {
	assert.True(t, parseBool("yes?", true))
	assert.False(t, parseBool("false", true))
	assert.Equal(t, 7, parseInt("7", 1))
	assert.Equal(t, 1, parseInt("x", 1))
	assert.Equal(t, 0.5, parseFloat("0.5", 2))
	assert.Nil(t, parseStringSlice(""))
}
