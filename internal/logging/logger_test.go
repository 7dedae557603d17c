package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"WARN", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"", zapcore.InfoLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestNewBuildsBothModes(t *testing.T) {
	for _, cfg := range []Config{DefaultConfig(), DevelopmentConfig()} {
		logger, err := New(cfg)
		require.NoError(t, err)
		assert.NotNil(t, logger.Logger)
	}
}

func TestFieldHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := &Logger{Logger: zap.New(core)}

	logger.Session("sess_1").Info("opened")
	logger.Request("req_1").Info("served")
	logger.Component("engine").Info("compiled")

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, "session", entries[0].LoggerName)
	assert.Equal(t, "sess_1", entries[0].ContextMap()["session_id"])
	assert.Equal(t, "http", entries[1].LoggerName)
	assert.Equal(t, "req_1", entries[1].ContextMap()["request_id"])
	assert.Equal(t, "engine", entries[2].LoggerName)
}

func TestNopLogger(t *testing.T) {
	logger := NewNop()
	assert.NotPanics(t, func() { logger.Session("x").Info("dropped") })
}
