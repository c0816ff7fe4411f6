package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "", cfg.Database.DSN)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "tesseract", cfg.Recognize.Tesseract)
	assert.Equal(t, "vie+eng", cfg.Recognize.Lang)
	assert.Equal(t, "magick", cfg.Recognize.Magick)
	assert.Equal(t, "zbarimg", cfg.Recognize.Zbarimg)
	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.Equal(t, 2*time.Minute, cfg.Batch.Timeout)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DB_URL", "postgres://id:pw@localhost/cards")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("TESSERACT_PSM", "6")
	t.Setenv("BATCH_WORKERS", "8")
	t.Setenv("BATCH_ITEM_TIMEOUT", "45s")

	cfg := LoadConfig()

	assert.Equal(t, "postgres://id:pw@localhost/cards", cfg.Database.DSN)
	assert.Equal(t, ":9090", cfg.Server.HTTPAddr)
	assert.Equal(t, 6, cfg.Recognize.PSM)
	assert.Equal(t, 8, cfg.Batch.Workers)
	assert.Equal(t, 45*time.Second, cfg.Batch.Timeout)
}

func TestLoadConfigBadValuesFallBack(t *testing.T) {
	t.Setenv("BATCH_WORKERS", "lots")
	t.Setenv("BATCH_ITEM_TIMEOUT", "soon")

	cfg := LoadConfig()
	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.Equal(t, 2*time.Minute, cfg.Batch.Timeout)
}

func TestValidate(t *testing.T) {
	cfg := LoadConfig()
	cfg.Batch.Workers = 0
	err := cfg.Validate()
	require.Error(t, err)

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)
}
