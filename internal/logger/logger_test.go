package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type fakeConfig struct {
	level       string
	development bool
	components  map[string]string
}

func (f *fakeConfig) GetComponentLevel(component string) string { return f.components[component] }
func (f *fakeConfig) GetDefaultLevel() string { return f.level }
func (f *fakeConfig) IsDevelopment() bool { return f.development }
func (f *fakeConfig) IsNil() bool { return f == nil }

type fileFakeConfig struct {
	fakeConfig
	out *FileOutput
}

func (f *fileFakeConfig) GetFileOutput() *FileOutput { return f.out }

func TestNewLogger(t *testing.T) {
	for level := range ValidLogLevels {
		for _, development := range []bool{false, true} {
			l, err := NewLogger(level, development)
			require.NoError(t, err, level)
			require.Equal(t, level, l.GetLevel())
			require.Empty(t, l.GetComponent())
		}
	}

	_, err := NewLogger("verbose", false)
	require.Error(t, err)
}

func TestLevelFiltering(t *testing.T) {
	l, err := NewLogger("warn", false)
	require.NoError(t, err)

	core := l.Desugar().Core()
	require.False(t, core.Enabled(zapcore.DebugLevel))
	require.False(t, core.Enabled(zapcore.InfoLevel))
	require.True(t, core.Enabled(zapcore.WarnLevel))
	require.True(t, core.Enabled(zapcore.ErrorLevel))
}

func TestSetLevel_SharedWithChildren(t *testing.T) {
	root, err := NewLogger("info", false)
	require.NoError(t, err)

	follower := root.WithComponent("follower")
	tx := follower.WithIndex("txindex")
	require.Equal(t, "follower", follower.GetComponent())
	require.Equal(t, "follower", tx.GetComponent())

	require.NoError(t, tx.SetLevel("debug"))
	require.Equal(t, "debug", root.GetLevel())
	require.Equal(t, "debug", follower.GetLevel())
	require.True(t, root.Desugar().Core().Enabled(zapcore.DebugLevel))

	require.Error(t, root.SetLevel("loud"))
	require.Equal(t, "debug", tx.GetLevel())
}

func TestNewComponentLogger(t *testing.T) {
	l := NewComponentLogger("pruner", "error", true)
	require.Equal(t, "pruner", l.GetComponent())
	require.Equal(t, "error", l.GetLevel())

	require.Panics(t, func() { NewComponentLogger("pruner", "chatty", false) })
}

func TestNewComponentLoggerFromConfig(t *testing.T) {
	var typedNil *fakeConfig

	tests := []struct {
		name      string
		component string
		cfg       LoggingConfig
		want      string
	}{
		{
			name:      "component override",
			component: "follower",
			cfg:       &fakeConfig{level: "warn", components: map[string]string{"follower": "debug"}},
			want:      "debug",
		},
		{
			name:      "default level",
			component: "chainstate",
			cfg:       &fakeConfig{level: "error", components: map[string]string{"follower": "debug"}},
			want:      "error",
		},
		{
			name:      "empty config",
			component: "api",
			cfg:       &fakeConfig{development: true},
			want:      "info",
		},
		{
			name:      "nil config",
			component: "registry",
			want:      "info",
		},
		{
			name:      "typed nil config",
			component: "index",
			cfg:       typedNil,
			want:      "info",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewComponentLoggerFromConfig(tt.component, tt.cfg)
			require.Equal(t, tt.component, l.GetComponent())
			require.Equal(t, tt.want, l.GetLevel())
		})
	}
}

func TestNewNopLogger(t *testing.T) {
	l := NewNopLogger()
	require.Equal(t, "fatal", l.GetLevel())
	require.NotPanics(t, func() {
		l.Infof("block %d connected", 1)
		l.WithComponent("follower").WithIndex("txindex").Errorw("flush failed", "height", 2)
	})
	require.NoError(t, l.Close())
}

func TestDefaultLogger(t *testing.T) {
	prev := GetDefaultLogger()
	require.NotNil(t, prev)
	t.Cleanup(func() { SetDefaultLogger(prev) })

	nop := NewNopLogger()
	SetDefaultLogger(nop)
	require.Same(t, nop, GetDefaultLogger())
}

func TestNewLoggerWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "indexsync.log")

	cfg := &fileFakeConfig{
		fakeConfig: fakeConfig{level: "info"},
		out:        &FileOutput{Path: path, MaxSizeMB: 1},
	}
	follower := NewComponentLoggerFromConfig("follower", cfg)
	pruner := NewComponentLoggerFromConfig("pruner", cfg)

	follower.Infow("block connected", "height", 12)
	follower.Debug("filtered by level")
	pruner.Warn("prune lock held")
	// Console sync fails on pipes, the file writer is unbuffered.
	_ = follower.Sync()
	_ = pruner.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"block connected"`)
	require.Contains(t, string(data), `"component":"follower"`)
	require.Contains(t, string(data), `"height":12`)
	require.Contains(t, string(data), `"component":"pruner"`)
	require.NotContains(t, string(data), "filtered by level")

	l, err := NewLoggerWithFile("info", false, &FileOutput{})
	require.NoError(t, err)
	require.NotNil(t, l)

	_, err = NewLoggerWithFile("loud", false, &FileOutput{Path: path})
	require.Error(t, err)
}
