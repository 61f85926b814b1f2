package observability

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xm4dn355x/webpilot/internal/config"
)

// syncBuffer adapts a byte buffer into a zapcore.WriteSyncer so tests can
// capture console output without touching stdout.
type syncBuffer struct {
	data []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *syncBuffer) Sync() error { return nil }

func (b *syncBuffer) String() string { return string(b.data) }

func TestInitializeConsoleLogger(t *testing.T) {
	ResetForTest()
	buf := &syncBuffer{}

	Initialize(config.LoggerConfig{
		Level:       "debug",
		Format:      "console",
		ServiceName: "TestService",
	}, buf)

	logger := GetLogger()
	logger.Info("This is a test message.")

	output := buf.String()
	assert.Contains(t, output, "INFO")
	assert.Contains(t, output, "This is a test message.")
	assert.Contains(t, output, "TestService.")
}

func TestInitializeJSONLogger(t *testing.T) {
	ResetForTest()
	buf := &syncBuffer{}

	Initialize(config.LoggerConfig{
		Level:       "info",
		Format:      "json",
		ServiceName: "JSONTest",
	}, buf)

	GetLogger().Warn("This is a JSON message.", zap.String("key", "value"))

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.data, &logEntry), "log output should be valid JSON")
	assert.Equal(t, "warn", logEntry["level"])
	assert.Equal(t, "JSONTest", logEntry["logger"])
	assert.Equal(t, "This is a JSON message.", logEntry["msg"])
	assert.Equal(t, "value", logEntry["key"])
}

func TestLogFileOutput(t *testing.T) {
	ResetForTest()
	logFile := filepath.Join(t.TempDir(), "webpilot-test.log")

	Initialize(config.LoggerConfig{
		Level:   "debug",
		Format:  "json",
		LogFile: logFile,
		MaxSize: 1,
	}, zapcore.AddSync(&syncBuffer{}))

	GetLogger().Error("This should go to the file.")
	Sync()

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "This should go to the file.")
}

func TestInitializeRunsOnce(t *testing.T) {
	ResetForTest()
	buf := &syncBuffer{}

	Initialize(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "First"}, buf)
	first := GetLogger()
	Initialize(config.LoggerConfig{Level: "debug", Format: "console", ServiceName: "Second"}, buf)
	second := GetLogger()

	assert.Same(t, first, second)
	second.Info("test")
	assert.Contains(t, buf.String(), "First")
	assert.NotContains(t, buf.String(), "Second")
}

func TestLevelParsing(t *testing.T) {
	ResetForTest()
	buf := &syncBuffer{}

	// An unknown level string falls back to info.
	Initialize(config.LoggerConfig{Level: "chatty", Format: "console", ServiceName: "LevelTest"}, buf)
	GetLogger().Debug("hidden")
	GetLogger().Info("visible")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible")
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	logger := GetLogger()
	require.NotNil(t, logger, "uninitialized access returns a usable fallback")
}
