package log

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"":        LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"off":     LevelSilent,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewRejectsUnknownEncoding(t *testing.T) {
	_, err := New(Options{Encoding: "xml"})
	assert.Error(t, err)
}

func TestSetLevelPropagatesToDerivedLoggers(t *testing.T) {
	out := filepath.Join(t.TempDir(), "pipeline.log")
	logger, err := New(Options{Level: LevelInfo, Encoding: "json", OutputPaths: []string{out}})
	require.NoError(t, err)

	child := logger.With(String("component", "compositor"))
	assert.Equal(t, LevelInfo, child.GetLevel())

	logger.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, child.GetLevel())

	child.Debug("frame processed", Int("particles", 3), Error(errors.New("none")))
	_ = logger.Sync()
}

func TestNopLoggerIsSilent(t *testing.T) {
	logger := NewNop()
	assert.Equal(t, LevelSilent, logger.GetLevel())
	logger.Info("dropped", Float64("dt", 0.1))
	assert.NoError(t, logger.Sync())
}
