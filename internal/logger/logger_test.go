package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("console only", func(t *testing.T) {
		log, err := New(Config{Level: "info", Console: true})
		require.NoError(t, err)
		defer log.Close()

		assert.NotNil(t, log)
		assert.Nil(t, log.rotator)
	})

	t.Run("file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "maktaba.log")
		log, err := New(Config{Level: "debug", File: path})
		require.NoError(t, err)
		defer log.Close()

		log.Info().Str("component", "test").Msg("hello")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "hello")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		log, err := New(Config{Level: "loud", Console: true})
		require.NoError(t, err)
		defer log.Close()

		assert.Equal(t, "info", log.GetZerolog().GetLevel().String())
	})
}

func TestRedactor(t *testing.T) {
	r := NewRedactor()

	t.Run("bot token", func(t *testing.T) {
		in := "sending via 123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw1"
		out := r.Redact(in)
		assert.NotContains(t, out, "AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw1")
		assert.Contains(t, out, "[REDACTED]")
	})

	t.Run("bot api url", func(t *testing.T) {
		in := "GET https://api.telegram.org/botsecret-token/getMe failed"
		out := r.Redact(in)
		assert.NotContains(t, out, "botsecret-token")
	})

	t.Run("plain text untouched", func(t *testing.T) {
		in := "delivered 3 of 3 files"
		assert.Equal(t, in, r.Redact(in))
	})

	t.Run("writer reports full length", func(t *testing.T) {
		var sb strings.Builder
		w := r.Wrap(&sb)
		in := "token: 123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw1"
		n, err := w.Write([]byte(in))
		require.NoError(t, err)
		assert.Equal(t, len(in), n)
	})
}

func TestRotatingWriter(t *testing.T) {
	t.Run("rotates at size limit", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "maktaba.log")

		rw, err := NewRotatingWriter(path, 1, 0, false)
		require.NoError(t, err)
		defer rw.Close()

		// Force rotation by faking a full file.
		rw.currentSize = rw.maxSize

		_, err = rw.Write([]byte("after rotation\n"))
		require.NoError(t, err)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(entries), 2)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "after rotation\n", string(data))
	})

	t.Run("append preserves existing content", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "maktaba.log")
		require.NoError(t, os.WriteFile(path, []byte("first\n"), 0644))

		rw, err := NewRotatingWriter(path, 1, 0, false)
		require.NoError(t, err)
		defer rw.Close()

		_, err = rw.Write([]byte("second\n"))
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "first\nsecond\n", string(data))
	})
}
