package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, false)

	cl := l.GetLogger("task_service")
	cl.Info().Str("task_id", "abc").Msg("Created analysis task")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "task_service", entry["component"])
	assert.Equal(t, "abc", entry["task_id"])
	assert.Equal(t, "Created analysis task", entry["message"])
}

func TestDebugLevel(t *testing.T) {
	var buf bytes.Buffer

	l := NewLoggerWithWriter(&buf, false)
	cl := l.GetLogger("test")
	cl.Debug().Msg("hidden")
	assert.Empty(t, buf.String())

	l = NewLoggerWithWriter(&buf, true)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)
	cl = l.GetLogger("test")
	cl.Debug().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetLogOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")

	l := NewLoggerWithWriter(&bytes.Buffer{}, false)
	l.SetLogOutput(path)
	bl := l.Base()
	bl.Info().Msg("written to file")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "written to file")
}
