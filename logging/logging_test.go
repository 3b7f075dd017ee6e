package logging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fenixedu/fenix-auth/logging"
)

func TestInit_Level(t *testing.T) {
	log, err := logging.Init("warn", "prod")
	require.NoError(t, err)
	defer log.Closer()

	assert.Equal(t, zapcore.WarnLevel, log.Level.Level())

	log, err = logging.Init("not-a-level", "dev")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, log.Level.Level())
}

func TestNamed_FormatsMessages(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := logging.FromZap(zap.New(core), zap.NewAtomicLevelAt(zapcore.DebugLevel))

	logger := log.Named("auth")
	logger.Debug("debug %d", 1)
	logger.Info("user %s registered", "a@b.ru")
	logger.Warn("warn")
	logger.Error("failed: %v", "boom")

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, "user a@b.ru registered", entries[1].Message)
	assert.Equal(t, "auth", entries[1].LoggerName)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	assert.Equal(t, "failed: boom", entries[3].Message)
}
