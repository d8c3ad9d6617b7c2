package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.Particles.GridStride)
	assert.Equal(t, 3.0, cfg.Particles.VelocityScale)
	assert.Equal(t, uint16(500), cfg.Particles.DepthMin)
	assert.Equal(t, uint16(2000), cfg.Particles.DepthMax)
	assert.Equal(t, 100*time.Millisecond, cfg.Physics.MaxStep())
}

func TestLoadOverridesDefaults(t *testing.T) {
	src := `
log:
  level: debug
  encoding: json
particles:
  radius: 0.05
  velocity_scale: 2.5
physics:
  box_count: 2
background:
  fill: [10, 20, 30]
render:
  terminal: true
`
	cfg, err := Load(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 0.05, cfg.Particles.Radius)
	assert.Equal(t, 2.5, cfg.Particles.VelocityScale)
	assert.Equal(t, 2, cfg.Physics.BoxCount)
	assert.Equal(t, [3]uint8{10, 20, 30}, cfg.Background.Fill)
	assert.True(t, cfg.Render.Terminal)
	// untouched sections keep their defaults
	assert.Equal(t, 5, cfg.Particles.GridStride)
	assert.Equal(t, 50.0, cfg.World.DepthScale)
}

func TestLoadEmptyDocumentYieldsDefaults(t *testing.T) {
	cfg, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(strings.NewReader("particles:\n  colour: red\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty depth band", func(c *Config) { c.Particles.DepthMin = 2000 }},
		{"zero stride", func(c *Config) { c.Particles.GridStride = 0 }},
		{"zero radius", func(c *Config) { c.Particles.Radius = 0 }},
		{"unknown source", func(c *Config) { c.Sensor.Source = "usb-webcam" }},
		{"zero tick rate", func(c *Config) { c.Sensor.TickRate = 0 }},
		{"zero cell size", func(c *Config) { c.Physics.CellSize = 0 }},
		{"zero max step", func(c *Config) { c.Physics.MaxTimestep = 0 }},
		{"bad log level", func(c *Config) { c.Log.Level = "chatty" }},
		{"zero flow window", func(c *Config) { c.Flow.Window = 0 }},
		{"no actor budget", func(c *Config) { c.Physics.MaxActors = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestLoadFile(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, "synthetic", cfg.Sensor.Source)

	path := filepath.Join(t.TempDir(), "proxyfield.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sensor:\n  tick_rate: 60\n"), 0o600))
	cfg, err = LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, time.Second/60, cfg.Sensor.TickInterval())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestShippedConfigMatchesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join("..", "..", "configs", "proxyfield.yaml"))
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Particles, cfg.Particles)
	assert.Equal(t, def.World, cfg.World)
	assert.Equal(t, def.Flow, cfg.Flow)
	assert.Equal(t, def.Background, cfg.Background)
	assert.Equal(t, def.Render, cfg.Render)
	assert.InDelta(t, def.Physics.NominalTimestep, cfg.Physics.NominalTimestep, 1e-6)
}
