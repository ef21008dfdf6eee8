package daemon

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farid/maktaba/internal/delivery"
	"github.com/farid/maktaba/internal/history"
	"github.com/farid/maktaba/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error"})
	require.NoError(t, err)
	return log
}

func TestLaneFor(t *testing.T) {
	assert.Equal(t, "chat:42", laneFor(42))
	assert.Equal(t, "chat:-100123", laneFor(-100123))
}

func TestLifecyclePIDFile(t *testing.T) {
	dir := t.TempDir()
	l := NewLifecycleManager(dir, zerolog.Nop())

	require.NoError(t, l.Start())

	data, err := os.ReadFile(filepath.Join(dir, "maktaba.pid"))
	require.NoError(t, err)
	pid, err := strconv.Atoi(string(data))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	// Our own process is alive by definition.
	assert.True(t, l.IsRunning())

	require.NoError(t, l.Stop())
	_, err = os.Stat(l.PIDFile())
	assert.True(t, os.IsNotExist(err))
	assert.False(t, l.IsRunning())
}

func TestLifecycleStopWithoutStart(t *testing.T) {
	l := NewLifecycleManager(t.TempDir(), zerolog.Nop())
	assert.NoError(t, l.Stop())
}

func TestHistoryText(t *testing.T) {
	log := testLogger(t)

	t.Run("disabled", func(t *testing.T) {
		d := &Daemon{logger: log}
		assert.Equal(t, "History is not available.", d.historyText(context.Background(), 7))
	})

	t.Run("empty", func(t *testing.T) {
		store, err := history.New(filepath.Join(t.TempDir(), "h.db"), zerolog.Nop())
		require.NoError(t, err)
		defer store.Close()

		d := &Daemon{logger: log, history: store}
		assert.Contains(t, d.historyText(context.Background(), 7), "No deliveries yet")
	})

	t.Run("entries", func(t *testing.T) {
		store, err := history.New(filepath.Join(t.TempDir(), "h.db"), zerolog.Nop())
		require.NoError(t, err)
		defer store.Close()

		require.NoError(t, store.Record(context.Background(), delivery.Record{
			ID:       "run-1",
			ChatID:   7,
			Path:     "2023/fall/books/Calculus",
			Category: "books",
			Sent:     2,
			Total:    3,
			At:       time.Now(),
		}))
		require.NoError(t, store.Record(context.Background(), delivery.Record{
			ID:        "run-2",
			ChatID:    7,
			Path:      "2023/fall/videos/Algorithms",
			Category:  "videos",
			Sent:      0,
			Total:     4,
			Cancelled: true,
			At:        time.Now(),
		}))

		d := &Daemon{logger: log, history: store}
		text := d.historyText(context.Background(), 7)
		assert.Contains(t, text, "2023/fall/books/Calculus")
		assert.Contains(t, text, "2 of 3")
		assert.Contains(t, text, "cancelled")
	})
}
