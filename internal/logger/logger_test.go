package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuildConfig(t *testing.T) {
	tests := []struct {
		name     string
		config   LoggerConfig
		encoding string
		level    zap.AtomicLevel
		wantErr  bool
	}{
		{name: "human", config: LoggerConfig{LogFormat: "human"}, encoding: "console", level: zap.NewAtomicLevelAt(zap.InfoLevel)},
		{name: "default format", config: LoggerConfig{}, encoding: "console", level: zap.NewAtomicLevelAt(zap.InfoLevel)},
		{name: "json debug", config: LoggerConfig{LogFormat: "json", Debug: true}, encoding: "json", level: zap.NewAtomicLevelAt(zap.DebugLevel)},
		{name: "unknown format", config: LoggerConfig{LogFormat: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := buildConfig(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.encoding, cfg.Encoding)
			assert.Equal(t, tt.level.Level(), cfg.Level.Level())
			assert.Equal(t, []string{"stderr"}, cfg.OutputPaths)
		})
	}
}

func TestBuildConfigLogFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "psdtool.log")
	cfg, err := buildConfig(LoggerConfig{LogFile: file})
	require.NoError(t, err)
	assert.Equal(t, []string{"stderr", file}, cfg.OutputPaths)
	assert.DirExists(t, filepath.Dir(file))
}

func TestFlattenFields(t *testing.T) {
	flat := flattenFields(map[string]interface{}{"width": 3, "height": 2})
	assert.Equal(t, []interface{}{"height", 2, "width", 3}, flat)
	assert.Empty(t, flattenFields(nil))
}
