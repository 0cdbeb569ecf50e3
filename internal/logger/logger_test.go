package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "image-compress.log")

	cfg := DefaultConfig()
	cfg.Format = "json"
	cfg.FilePath = path
	cfg.Console = false

	log, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())

	WithFileOperation(log, "/app/source/a.png", "compress").Info("done")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"done"`)
	assert.Contains(t, string(data), `"file":"/app/source/a.png"`)
	assert.Contains(t, string(data), `"operation":"compress"`)
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "loud"

	_, err := NewLogger(cfg)
	assert.Error(t, err)
}

func TestFieldHelpers(t *testing.T) {
	log := Discard()

	assert.Equal(t, "x.png", WithFile(log, "x.png").Data["file"])
	assert.Equal(t, "watch", WithOperation(log, "watch").Data["operation"])
}
