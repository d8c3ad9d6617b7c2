package config

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/proxyfield/internal/core/observability/log"
)

// Config is the complete runtime configuration of the visualizer.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Sensor     SensorConfig     `yaml:"sensor"`
	Particles  ParticleConfig   `yaml:"particles"`
	World      WorldConfig      `yaml:"world"`
	Physics    PhysicsConfig    `yaml:"physics"`
	Flow       FlowConfig       `yaml:"flow"`
	Background BackgroundConfig `yaml:"background"`
	Render     RenderConfig     `yaml:"render"`
}

type LogConfig struct {
	Level    string   `yaml:"level"`
	Encoding string   `yaml:"encoding"`
	Outputs  []string `yaml:"outputs,omitempty"`
	Sampling bool     `yaml:"sampling"`
}

type SensorConfig struct {
	// Source selects the frame producer: "synthetic" or "external".
	Source string `yaml:"source"`
	// TickRate is the render loop frequency in Hz.
	TickRate float64 `yaml:"tick_rate"`
	// MapperOffsetX/Y shift the color to depth mapping in depth pixels.
	MapperOffsetX float64 `yaml:"mapper_offset_x"`
	MapperOffsetY float64 `yaml:"mapper_offset_y"`
}

type ParticleConfig struct {
	GridStride    int     `yaml:"grid_stride"`
	Radius        float64 `yaml:"radius"`
	Density       float64 `yaml:"density"`
	VelocityScale float64 `yaml:"velocity_scale"`
	// Depth samples are accepted when DepthMin < depth < DepthMax.
	DepthMin uint16 `yaml:"depth_min"`
	DepthMax uint16 `yaml:"depth_max"`
}

// WorldConfig holds the canonical screen/depth to world transform.
type WorldConfig struct {
	DepthOffset float64 `yaml:"depth_offset"`
	DepthScale  float64 `yaml:"depth_scale"`
	PixelScale  float64 `yaml:"pixel_scale"`
}

type PhysicsConfig struct {
	Gravity         float64 `yaml:"gravity"`
	CellSize        float64 `yaml:"cell_size"`
	BoxCount        int     `yaml:"box_count"`
	BoxHalfExtent   float64 `yaml:"box_half_extent"`
	BoxDensity      float64 `yaml:"box_density"`
	MaxActors       int     `yaml:"max_actors"`
	MaxTimestep     float64 `yaml:"max_timestep"`
	NominalTimestep float64 `yaml:"nominal_timestep"`
}

type FlowConfig struct {
	Window     int     `yaml:"window"`
	BlurRadius float64 `yaml:"blur_radius"`
	Workers    int     `yaml:"workers"`
	// MinEigen discards displacements on textureless windows.
	MinEigen float64 `yaml:"min_eigen"`
}

type BackgroundConfig struct {
	Path string   `yaml:"path,omitempty"`
	Fill [3]uint8 `yaml:"fill"`
}

type RenderConfig struct {
	WebSocketAddr string `yaml:"websocket_addr,omitempty"`
	Terminal      bool   `yaml:"terminal"`
}

// Default returns the reference configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
			Sampling: true,
		},
		Sensor: SensorConfig{
			Source:   "synthetic",
			TickRate: 30,
		},
		Particles: ParticleConfig{
			GridStride:    5,
			Radius:        0.04,
			Density:       1.0,
			VelocityScale: 3.0,
			DepthMin:      500,
			DepthMax:      2000,
		},
		World: WorldConfig{
			DepthOffset: 500,
			DepthScale:  50,
			PixelScale:  50,
		},
		Physics: PhysicsConfig{
			Gravity:         -9.81,
			CellSize:        1.0,
			BoxCount:        6,
			BoxHalfExtent:   0.5,
			BoxDensity:      2.0,
			MaxActors:       16384,
			MaxTimestep:     0.1,
			NominalTimestep: 1.0 / 30.0,
		},
		Flow: FlowConfig{
			Window:     5,
			BlurRadius: 1.0,
			Workers:    4,
			MinEigen:   1e-4,
		},
		Background: BackgroundConfig{
			Fill: [3]uint8{0, 0, 128},
		},
		Render: RenderConfig{
			WebSocketAddr: "127.0.0.1:8090",
		},
	}
}

// Load decodes YAML from r on top of the defaults and validates the result.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a YAML config file. An empty path yields the defaults.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch c.Sensor.Source {
	case "synthetic", "external":
	default:
		return fmt.Errorf("%w: unknown sensor source %q", ErrInvalidConfig, c.Sensor.Source)
	}
	if !positive(c.Sensor.TickRate) {
		return fmt.Errorf("%w: tick rate must be positive", ErrInvalidConfig)
	}
	if err := c.Particles.validate(); err != nil {
		return err
	}
	if !positive(c.World.DepthScale) || !positive(c.World.PixelScale) {
		return fmt.Errorf("%w: world scales must be positive", ErrInvalidConfig)
	}
	if err := c.Physics.validate(); err != nil {
		return err
	}
	if c.Flow.Window < 1 {
		return fmt.Errorf("%w: flow window must be at least 1", ErrInvalidConfig)
	}
	if c.Flow.Workers < 1 {
		return fmt.Errorf("%w: flow workers must be at least 1", ErrInvalidConfig)
	}
	if c.Flow.BlurRadius < 0 || c.Flow.MinEigen < 0 {
		return fmt.Errorf("%w: flow blur radius and min eigen must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (p ParticleConfig) validate() error {
	if p.GridStride < 1 {
		return fmt.Errorf("%w: grid stride must be at least 1", ErrInvalidConfig)
	}
	if !positive(p.Radius) || !positive(p.Density) {
		return fmt.Errorf("%w: particle radius and density must be positive", ErrInvalidConfig)
	}
	if math.IsNaN(p.VelocityScale) || math.IsInf(p.VelocityScale, 0) {
		return fmt.Errorf("%w: velocity scale must be finite", ErrInvalidConfig)
	}
	if p.DepthMin >= p.DepthMax {
		return fmt.Errorf("%w: depth band [%d, %d] is empty", ErrInvalidConfig, p.DepthMin, p.DepthMax)
	}
	return nil
}

func (p PhysicsConfig) validate() error {
	if math.IsNaN(p.Gravity) || math.IsInf(p.Gravity, 0) {
		return fmt.Errorf("%w: gravity must be finite", ErrInvalidConfig)
	}
	if !positive(p.CellSize) {
		return fmt.Errorf("%w: broadphase cell size must be positive", ErrInvalidConfig)
	}
	if p.BoxCount < 0 {
		return fmt.Errorf("%w: box count must not be negative", ErrInvalidConfig)
	}
	if p.BoxCount > 0 && (!positive(p.BoxHalfExtent) || !positive(p.BoxDensity)) {
		return fmt.Errorf("%w: box extent and density must be positive", ErrInvalidConfig)
	}
	if p.MaxActors < 1 {
		return fmt.Errorf("%w: max actors must be at least 1", ErrInvalidConfig)
	}
	if !positive(p.MaxTimestep) || !positive(p.NominalTimestep) {
		return fmt.Errorf("%w: timesteps must be positive", ErrInvalidConfig)
	}
	return nil
}

// TickInterval converts the tick rate into a ticker period.
func (s SensorConfig) TickInterval() time.Duration {
	return time.Duration(float64(time.Second) / s.TickRate)
}

// MaxStep returns the simulated time cap per physics step.
func (p PhysicsConfig) MaxStep() time.Duration {
	return time.Duration(p.MaxTimestep * float64(time.Second))
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
