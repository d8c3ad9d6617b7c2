package injector

import (
	"fmt"
	"image/color"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/golang/geo/r3"
	"github.com/google/wire"

	"github.com/zeusync/proxyfield/internal/compositor"
	"github.com/zeusync/proxyfield/internal/config"
	"github.com/zeusync/proxyfield/internal/core/events/bus"
	"github.com/zeusync/proxyfield/internal/core/observability/log"
	"github.com/zeusync/proxyfield/internal/engine"
	"github.com/zeusync/proxyfield/internal/flow"
	"github.com/zeusync/proxyfield/internal/mapping"
	"github.com/zeusync/proxyfield/internal/particle"
	"github.com/zeusync/proxyfield/internal/physics"
	"github.com/zeusync/proxyfield/internal/render"
	"github.com/zeusync/proxyfield/internal/sensor"
)

// ProviderSet builds the whole pipeline from a *config.Config.
var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideEventBus,
	ProvideWorld,
	ProvideParticles,
	ProvideMapper,
	ProvideFlow,
	ProvideBackground,
	ProvideCompositor,
	ProvideFrames,
	ProvideSynthetic,
	ProvideHub,
	ProvideTerminal,
	ProvideLoop,
)

// newScreen is replaced in tests with a simulation screen.
var newScreen = tcell.NewScreen

func ProvideLogger(cfg *config.Config) (log.Log, func(), error) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	logger, err := log.New(log.Options{
		Level:       level,
		Encoding:    cfg.Log.Encoding,
		OutputPaths: cfg.Log.Outputs,
		Sampling:    cfg.Log.Sampling,
	})
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = logger.Sync() }, nil
}

func ProvideEventBus() bus.EventBus {
	return bus.New()
}

// ProvideWorld creates the physics world with its ground plane and a row of
// dynamic boxes dropped in front of the player.
func ProvideWorld(cfg *config.Config, logger log.Log) (*physics.World, func(), error) {
	pc := cfg.Physics
	w, err := physics.NewWorld(physics.Config{
		Gravity:   pc.Gravity,
		CellSize:  pc.CellSize,
		MaxActors: pc.MaxActors,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = w.Close() }

	if _, err := w.AddGroundPlane(); err != nil {
		cleanup()
		return nil, nil, err
	}
	for _, pos := range boxLayout(cfg) {
		half := r3.Vector{X: pc.BoxHalfExtent, Y: pc.BoxHalfExtent, Z: pc.BoxHalfExtent}
		if _, err := w.CreateBox(pos, half, pc.BoxDensity); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("create box: %w", err)
		}
	}
	return w, cleanup, nil
}

// boxLayout spreads the boxes across the player depth, staggered in height
// so they settle one after another.
func boxLayout(cfg *config.Config) []r3.Vector {
	pc := cfg.Physics
	n := pc.BoxCount
	if n == 0 {
		return nil
	}
	// Middle of the accepted depth band in world units.
	mid := (float64(cfg.Particles.DepthMin)+float64(cfg.Particles.DepthMax))/2 - cfg.World.DepthOffset
	z := mid / cfg.World.DepthScale
	spacing := pc.BoxHalfExtent * 5
	left := -spacing * float64(n-1) / 2

	out := make([]r3.Vector, n)
	for i := range out {
		out[i] = r3.Vector{
			X: left + spacing*float64(i),
			Y: 6 + pc.BoxHalfExtent*float64(2*(i%3)),
			Z: z,
		}
	}
	return out
}

func ProvideParticles(cfg *config.Config, world *physics.World, logger log.Log, events bus.EventBus) (*particle.Manager, error) {
	pc := cfg.Particles
	return particle.NewManager(particle.Config{
		GridStride:    pc.GridStride,
		Radius:        pc.Radius,
		Density:       pc.Density,
		VelocityScale: float32(pc.VelocityScale),
		DepthMin:      pc.DepthMin,
		DepthMax:      pc.DepthMax,
		Transform: particle.Transform{
			DepthOffset: cfg.World.DepthOffset,
			DepthScale:  cfg.World.DepthScale,
			PixelScale:  cfg.World.PixelScale,
		},
	}, world, logger, particle.WithEventBus(events))
}

func ProvideMapper(cfg *config.Config) *mapping.Adapter {
	return mapping.NewAdapter(mapping.NewAffine(cfg.Sensor.MapperOffsetX, cfg.Sensor.MapperOffsetY))
}

func ProvideFlow(cfg *config.Config, logger log.Log) flow.Engine {
	return flow.NewLucasKanade(flow.Options{
		Window:   cfg.Flow.Window,
		MinEigen: float32(cfg.Flow.MinEigen),
		Workers:  cfg.Flow.Workers,
		Ratio:    flow.Ratio,
	}, logger)
}

func ProvideBackground(cfg *config.Config) (*compositor.Background, error) {
	if cfg.Background.Path != "" {
		return compositor.LoadBackground(cfg.Background.Path)
	}
	fill := cfg.Background.Fill
	return compositor.NewSolidBackground(color.RGBA{R: fill[0], G: fill[1], B: fill[2], A: 255}), nil
}

func ProvideCompositor(
	cfg *config.Config,
	mapper *mapping.Adapter,
	engine flow.Engine,
	particles *particle.Manager,
	world *physics.World,
	background *compositor.Background,
	logger log.Log,
) (*compositor.Compositor, error) {
	return compositor.New(compositor.Config{
		Workers:         cfg.Flow.Workers,
		GridStride:      cfg.Particles.GridStride,
		BlurRadius:      cfg.Flow.BlurRadius,
		MaxTimestep:     cfg.Physics.MaxTimestep,
		NominalTimestep: cfg.Physics.NominalTimestep,
	}, mapper, engine, particles, world, background, logger)
}

// ProvideFrames is the single-slot mailbox the render loop reads from.
func ProvideFrames() (*sensor.Latest, func()) {
	frames := sensor.NewLatest()
	return frames, frames.Close
}

// ProvideSynthetic returns nil unless the synthetic source is selected.
func ProvideSynthetic(cfg *config.Config) *sensor.Synthetic {
	if cfg.Sensor.Source != "synthetic" {
		return nil
	}
	return sensor.NewSynthetic(time.Now(), cfg.Sensor.TickInterval())
}

func ProvideHub(logger log.Log) (*render.Hub, func()) {
	hub := render.NewHub(logger)
	return hub, hub.Close
}

// ProvideTerminal returns nil when the terminal view is disabled.
func ProvideTerminal(cfg *config.Config, logger log.Log) (*render.Terminal, func(), error) {
	if !cfg.Render.Terminal {
		return nil, func() {}, nil
	}
	screen, err := newScreen()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", render.ErrNoScreen, err)
	}
	term, err := render.NewTerminal(screen, render.DefaultViewport(), logger)
	if err != nil {
		return nil, nil, err
	}
	return term, term.Close, nil
}

func ProvideLoop(
	cfg *config.Config,
	frames *sensor.Latest,
	comp *compositor.Compositor,
	world *physics.World,
	particles *particle.Manager,
	hub *render.Hub,
	term *render.Terminal,
	events bus.EventBus,
	logger log.Log,
) (*engine.Loop, error) {
	sinks := []render.Sink{hub}
	if term != nil {
		sinks = append(sinks, term)
	}
	return engine.NewLoop(frames, comp, world, particles, cfg.Sensor.TickInterval(), logger,
		engine.WithSinks(sinks...),
		engine.WithEventBus(events),
	)
}
