package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_CreatesDirAndWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	log, err := NewLogger(Options{Dir: dir, Level: "debug"})
	require.NoError(t, err)

	log.Info("test_message_from_logging_test")
	_ = log.Sync()

	_, err = os.Stat(dir)
	require.NoError(t, err, "log dir missing")

	b, err := os.ReadFile(filepath.Join(dir, fileName))
	require.NoError(t, err)
	require.Contains(t, string(b), "test_message_from_logging_test")
	require.Contains(t, string(b), `"ts":`)
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	log, err := NewLogger(Options{Dir: t.TempDir(), Level: "chatty"})
	require.NoError(t, err)
	require.False(t, log.Core().Enabled(zapcore.DebugLevel), "debug should be disabled")
	require.True(t, log.Core().Enabled(zapcore.InfoLevel), "info should be enabled")
}
