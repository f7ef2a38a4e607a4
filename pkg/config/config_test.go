package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("storefront")
	require.NoError(t, err)

	assert.Equal(t, "storefront", cfg.DB.DBName)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "file", cfg.Provisioning.Generator)
	assert.Equal(t, int64(10<<20), cfg.Provisioning.MaxFileSize)
	assert.False(t, cfg.Provisioning.BorrowImages)
	assert.Equal(t, "/assets", cfg.Storage.PublicPrefix)
	assert.Equal(t, logger.Warn, cfg.DB.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ASSIGN_BORROW_IMAGES", "true")
	t.Setenv("ARTIFACT_HOOK_TIMEOUT", "30s")
	t.Setenv("DEDUP_MAX_FILES", "12")
	t.Setenv("DB_LOG_LEVEL", "silent")

	cfg, err := Load("storefront")
	require.NoError(t, err)

	assert.True(t, cfg.Provisioning.BorrowImages)
	assert.Equal(t, 30*time.Second, cfg.Provisioning.HookTimeout)
	assert.Equal(t, 12, cfg.Provisioning.DedupMaxFiles)
	assert.Equal(t, logger.Silent, cfg.DB.LogLevel)
}

func TestValidateGenerator(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("ARTIFACT_GENERATOR", "command")
	_, err := Load("storefront")
	assert.ErrorContains(t, err, "ARTIFACT_HOOK_COMMAND")

	t.Setenv("ARTIFACT_HOOK_COMMAND", "node hooks/postCreationHook.js")
	_, err = Load("storefront")
	assert.NoError(t, err)

	t.Setenv("ARTIFACT_GENERATOR", "template")
	_, err = Load("storefront")
	assert.ErrorContains(t, err, "unknown ARTIFACT_GENERATOR")
}
