package testutil

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogCapture(t *testing.T) {
	t.Run("records every level", func(t *testing.T) {
		logger, logs := CaptureLogs(t)

		logger.Debug("loading table")
		logger.Info("run completed", slog.String("path", "a.csv"))
		logger.Warn("run failed", slog.Int("status", 3))

		require.Equal(t, 3, logs.Len())
		assert.Len(t, logs.At(slog.LevelDebug), 1)
		assert.True(t, logs.HasMessage("completed"))
		assert.True(t, logs.HasAttr("status", int64(3)))
		assert.False(t, logs.HasAttr("status", 3))
	})

	t.Run("derived loggers share entries", func(t *testing.T) {
		logger, logs := CaptureLogs(t)

		engine := logger.With(slog.String("component", "engine"))
		engine.WithGroup("chunk").Info("chunk done", slog.Int("index", 2))
		logger.Info("plain")

		entries := logs.Entries()
		require.Len(t, entries, 2)
		assert.Equal(t, "engine", entries[0].Attrs["component"])
		assert.Equal(t, int64(2), entries[0].Attrs["chunk.index"])
		assert.NotContains(t, entries[1].Attrs, "component")
	})

	t.Run("inline groups are flattened", func(t *testing.T) {
		logger, logs := CaptureLogs(t)

		logger.Info("request", slog.Group("http", slog.String("method", "POST"), slog.Int("status", 200)))

		ExpectAttr(t, logs, "http.method", "POST")
		ExpectAttr(t, logs, "http.status", int64(200))
	})

	t.Run("reset", func(t *testing.T) {
		logger, logs := CaptureLogs(t)

		logger.Info("one")
		logger.Info("two")
		logs.Reset()
		assert.Zero(t, logs.Len())
	})

	t.Run("expectations pass on matching entries", func(t *testing.T) {
		logger, logs := CaptureLogs(t)

		logger.Info("run completed", slog.Int("chunks", 4))

		assert.True(t, ExpectLogged(t, logs, slog.LevelInfo, "completed"))
		assert.True(t, ExpectAttr(t, logs, "chunks", int64(4)))
		assert.True(t, ExpectNoErrors(t, logs))
	})

	t.Run("attribute lookups are exact", func(t *testing.T) {
		logger, logs := CaptureLogs(t)

		logger.Info("run failed", slog.String("path", "data.csv"))

		assert.False(t, logs.HasAttr("path", "data"))
		assert.False(t, logs.HasAttr("file", "data.csv"))
		assert.Empty(t, logs.At(slog.LevelError))
	})

	t.Run("concurrent writers", func(t *testing.T) {
		logger, logs := CaptureLogs(t)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				logger.With(slog.Int("worker", n)).Info("chunk done")
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 10, logs.Len())
	})
}
