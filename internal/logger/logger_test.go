package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{
			name: "valid config with file",
			config: Config{
				Level:      "info",
				File:       filepath.Join(t.TempDir(), "hashbang.log"),
				MaxSize:    1,
				MaxBackups: 1,
				MaxAge:     1,
			},
		},
		{
			name:   "valid config with stdout only",
			config: Config{Level: "debug", EnableStdout: true},
		},
		{
			name:   "invalid log level defaults to info",
			config: Config{Level: "invalid"},
		},
		{
			name:   "no writers discards output",
			config: Config{Level: "info"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, InitLogger(tt.config))
			assert.NotNil(t, GetLogger())
		})
	}
}

func TestInitLogger_CreatesLogDirectory(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "nested", "logs")
	logFile := filepath.Join(tmpDir, "test.log")

	require.NoError(t, InitLogger(Config{Level: "info", File: logFile}))

	info, err := os.Stat(tmpDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestGetLogger_ReturnsSameInstance(t *testing.T) {
	assert.Same(t, GetLogger(), GetLogger())
}

func TestLogFunctions_WriteToOutput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitLogger(Config{Level: "info", Output: &buf}))

	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error message")

	output := buf.String()
	assert.Contains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
	assert.NotContains(t, output, "debug message")
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitLogger(Config{Level: "info", Output: &buf}))

	WithFields(logrus.Fields{"token": "poke", "target": "#chan"}).Info("command-dispatched")
	ForInstance("libera").Info("instance-started")

	output := buf.String()
	assert.Contains(t, output, "poke")
	assert.Contains(t, output, "#chan")
	assert.Contains(t, output, `"instance":"libera"`)
}

func TestLogLevelSetting(t *testing.T) {
	tests := []struct {
		level    string
		expected logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"invalid", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			require.NoError(t, InitLogger(Config{Level: tt.level}))
			assert.Equal(t, tt.expected, GetLogger().GetLevel())
		})
	}
}

func TestFormatterSetting(t *testing.T) {
	require.NoError(t, InitLogger(Config{Level: "debug"}))
	assert.IsType(t, &logrus.TextFormatter{}, GetLogger().Formatter)

	require.NoError(t, InitLogger(Config{Level: "info"}))
	assert.IsType(t, &logrus.JSONFormatter{}, GetLogger().Formatter)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret(""))
	assert.Equal(t, "***", MaskSecret("short"))
	assert.Equal(t, "abcd***wxyz", MaskSecret("abcdefghijklmnopqrstuvwxyz"))
}
