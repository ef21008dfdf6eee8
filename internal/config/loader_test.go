package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "maktaba.json")
		cfg, err := NewLoader(path).Load()
		require.NoError(t, err)

		assert.Equal(t, DefaultConfig().Session.HistoryCap, cfg.Session.HistoryCap)
		assert.NotEmpty(t, cfg.Logging.File)
		assert.NotEmpty(t, cfg.History.Path)
	})

	t.Run("reads json config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "maktaba.json")
		body := `{
			"telegram": {"bot_token": "` + testToken + `"},
			"catalog": {"base_path": "/srv/materials"},
			"session": {"history_cap": 5}
		}`
		require.NoError(t, os.WriteFile(path, []byte(body), 0600))

		cfg, err := NewLoader(path).Load()
		require.NoError(t, err)

		assert.Equal(t, testToken, cfg.Telegram.BotToken)
		assert.Equal(t, "/srv/materials", cfg.Catalog.BasePath)
		assert.Equal(t, 5, cfg.Session.HistoryCap)
		// Untouched settings keep their defaults.
		assert.Equal(t, 400, cfg.Delivery.InterFileDelayMs)
	})

	t.Run("env token override", func(t *testing.T) {
		t.Setenv("MAKTABA_BOT_TOKEN", testToken)

		path := filepath.Join(t.TempDir(), "maktaba.json")
		cfg, err := NewLoader(path).Load()
		require.NoError(t, err)

		assert.Equal(t, testToken, cfg.Telegram.BotToken)
	})

	t.Run("save and reload roundtrip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "maktaba.json")
		loader := NewLoader(path)

		cfg := DefaultConfig()
		cfg.Telegram.BotToken = testToken
		cfg.Catalog.BasePath = "/srv/materials"
		require.NoError(t, loader.Save(cfg))

		loaded, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, testToken, loaded.Telegram.BotToken)
		assert.Equal(t, "/srv/materials", loaded.Catalog.BasePath)
	})
}

func TestValidator(t *testing.T) {
	v := NewValidator()

	t.Run("catalog path", func(t *testing.T) {
		dir := t.TempDir()
		assert.NoError(t, v.ValidateCatalogPath(dir))
		assert.Error(t, v.ValidateCatalogPath(filepath.Join(dir, "missing")))

		file := filepath.Join(dir, "file.txt")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
		assert.Error(t, v.ValidateCatalogPath(file))
	})

	t.Run("log level", func(t *testing.T) {
		assert.NoError(t, v.ValidateLogLevel("debug"))
		assert.Error(t, v.ValidateLogLevel("verbose"))
	})
}
