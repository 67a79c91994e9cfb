// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/formpilot/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// The logger is a process-wide singleton, so these tests do not run in parallel.

func initBuffered(t *testing.T, cfg config.LoggerConfig) *bytes.Buffer {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)
	var buf bytes.Buffer
	Initialize(cfg, zapcore.AddSync(&buf))
	return &buf
}

func TestInitializeConsole(t *testing.T) {
	buf := initBuffered(t, config.LoggerConfig{
		Level:       "debug",
		Format:      "console",
		ServiceName: "formpilot",
		Colors:      config.ColorConfig{Info: "green"},
	})

	GetLogger().Named("engine").Info("scan complete", zap.Int("total", 3))

	out := buf.String()
	assert.Contains(t, out, colorMap["green"])
	assert.Contains(t, out, colorReset)
	assert.Contains(t, out, "formpilot.engine.")
	assert.Contains(t, out, "scan complete")
	assert.Contains(t, out, `"total": 3`)
}

func TestInitializeConsoleWithoutColor(t *testing.T) {
	buf := initBuffered(t, config.LoggerConfig{Level: "info", Format: "console"})

	GetLogger().Warn("plain")
	out := buf.String()
	assert.Contains(t, out, "WARN")
	assert.NotContains(t, out, colorReset)
}

func TestInitializeJSON(t *testing.T) {
	buf := initBuffered(t, config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"})

	logger := GetLogger()
	logger.Debug("filtered out")
	logger.Warn("field fill failed", zap.String("label", "Email"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry), "exactly one JSON line expected")
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "JSONTest", entry["logger"])
	assert.Equal(t, "field fill failed", entry["msg"])
	assert.Equal(t, "Email", entry["label"])
}

func TestInitializeWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "formpilot.log")
	initBuffered(t, config.LoggerConfig{Level: "debug", Format: "console", LogFile: path, MaxSize: 1})

	GetLogger().Error("This should go to the file.")
	Sync()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "This should go to the file.")
	assert.Contains(t, string(content), `"level":"ERROR"`)
}

func TestInitializeOnlyOnce(t *testing.T) {
	buf := initBuffered(t, config.LoggerConfig{Level: "info", Format: "json", ServiceName: "First"})
	first := GetLogger()

	var other bytes.Buffer
	Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "Second"}, zapcore.AddSync(&other))

	assert.Same(t, first, GetLogger())
	GetLogger().Info("test")
	assert.Contains(t, buf.String(), "First")
	assert.Zero(t, other.Len())
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	buf := initBuffered(t, config.LoggerConfig{Level: "loud", Format: "json"})

	GetLogger().Debug("hidden")
	GetLogger().Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)
	assert.NotNil(t, GetLogger())
	assert.NotPanics(t, Sync)
}
