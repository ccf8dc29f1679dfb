package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "docgpt.db", cfg.DatabaseURL)
	assert.Equal(t, "local", cfg.UploadStorage)
	assert.Equal(t, "gpt-4o-mini", cfg.AgentModel)
	assert.Equal(t, "OPENAI_API_KEY", cfg.ProviderKeyEnv)
	assert.Equal(t, 5, cfg.SiteAttempts)
	assert.Equal(t, 3*time.Second, cfg.SiteRetryDelay)
	assert.Equal(t, "pt", cfg.YoutubeLanguage)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigRejectsUnknownStorage(t *testing.T) {
	t.Setenv("SESSION_SECRET", "secret")
	t.Setenv("UPLOAD_STORAGE", "ftp")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestProviderKey(t *testing.T) {
	t.Setenv("DOCGPT_TEST_KEY", "")
	_, err := ProviderKey("DOCGPT_TEST_KEY")
	assert.ErrorIs(t, err, ErrMissingCredential)

	t.Setenv("DOCGPT_TEST_KEY", "  sk-123 ")
	key, err := ProviderKey("DOCGPT_TEST_KEY")
	require.NoError(t, err)
	assert.Equal(t, "sk-123", key)
}
