package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{" WARN ", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.InfoLevel},
		{"bogus", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := New(Options{Level: tt.level, Service: "mutual-test", Output: &bytes.Buffer{}})
			assert.True(t, l.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, l.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestNew_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "info", Format: "json", Service: "mutual-test", Output: &buf})
	l.Info("signal processed")
	require.NoError(t, l.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "signal processed", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "mutual-test", entry["service_name"])
	assert.Contains(t, entry, "timestamp")
	assert.Contains(t, entry, "pid")
	assert.Contains(t, entry, "caller")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "debug", Format: "console", Output: &buf})
	l.Debug("starting")
	require.NoError(t, l.Sync())

	assert.Contains(t, buf.String(), "starting")
	assert.NotContains(t, buf.String(), "service_name")
}

func TestShortKey(t *testing.T) {
	assert.Equal(t, "abc", ShortKey("abc"))
	assert.Equal(t, "0123456789ab", ShortKey("0123456789abcdef"))
}
