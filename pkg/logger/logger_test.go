package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/xaenox/tea-bot/pkg/config"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := New(config.LogConfig{Level: tt.level})
			require.NoError(t, err)
			require.True(t, l.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				require.False(t, l.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestNewDevelopment(t *testing.T) {
	l, err := New(config.LogConfig{Level: "debug", Development: true})
	require.NoError(t, err)
	require.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"})
	require.Error(t, err)
}
