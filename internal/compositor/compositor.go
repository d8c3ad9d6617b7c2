package compositor

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/zeusync/proxyfield/internal/core/observability/log"
	"github.com/zeusync/proxyfield/internal/flow"
	"github.com/zeusync/proxyfield/internal/mapping"
	"github.com/zeusync/proxyfield/internal/particle"
	"github.com/zeusync/proxyfield/internal/sensor"
	"github.com/zeusync/proxyfield/pkg/concurrent"
	"github.com/zeusync/proxyfield/pkg/generic"
)

// Stepper advances the physics world and waits for the results.
type Stepper interface {
	Step(ctx context.Context, dt float64) error
}

// Config tunes the per-tick pipeline.
type Config struct {
	Workers    int
	GridStride int
	// BlurRadius smooths the gray frame before flow, 0 disables it.
	BlurRadius float64
	// MaxTimestep caps the simulated seconds per step.
	MaxTimestep float64
	// NominalTimestep is used when no previous tick was measured.
	NominalTimestep float64
}

// DefaultConfig returns four workers, grid stride 5 and a 0.1 s step cap.
func DefaultConfig() Config {
	return Config{
		Workers:         4,
		GridStride:      5,
		BlurRadius:      1,
		MaxTimestep:     0.1,
		NominalTimestep: 1.0 / 30.0,
	}
}

// Stage names reported in Result.Stages.
const (
	StageMap       = "map"
	StageComposite = "composite"
	StageFlow      = "flow"
	StageAdvect    = "advect"
	StageSpawn     = "spawn"
	StageStep      = "step"
)

type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// Result describes one processed tick. Composite and Player are reused by the
// next Process call.
type Result struct {
	Timestamp time.Time
	Composite *image.RGBA
	Player    *PlayerMask
	// Field is the flow computed this tick, nil on the first frame or when
	// flow failed. It is applied on the next tick.
	Field   *flow.Field
	Advect  particle.AdvectStats
	Spawned int
	Dt      float64
	Stages  []StageTiming
}

// Compositor runs the per-tick pipeline. It is not safe for concurrent use.
type Compositor struct {
	cfg        Config
	mapper     *mapping.Adapter
	engine     flow.Engine
	particles  *particle.Manager
	world      Stepper
	background *Background
	logger     log.Log
	now        func() time.Time

	coords    *generic.SlicePool[mapping.DepthSpacePoint]
	composite *image.RGBA
	player    *PlayerMask

	prevGray  *flow.Gray
	lastField *flow.Field
	lastTick  time.Time
}

// Option customizes a Compositor.
type Option func(*Compositor)

// WithClock replaces the wall clock used to measure the tick interval.
func WithClock(now func() time.Time) Option {
	return func(c *Compositor) {
		c.now = now
	}
}

// New wires the pipeline stages. A nil background falls back to a solid
// dark blue fill.
func New(
	cfg Config,
	mapper *mapping.Adapter,
	engine flow.Engine,
	particles *particle.Manager,
	world Stepper,
	background *Background,
	logger log.Log,
	opts ...Option,
) (*Compositor, error) {
	if mapper == nil || engine == nil || particles == nil || world == nil {
		return nil, ErrMissingStage
	}
	if background == nil {
		background = NewSolidBackground(defaultFill)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.NominalTimestep <= 0 {
		cfg.NominalTimestep = DefaultConfig().NominalTimestep
	}
	if cfg.MaxTimestep <= 0 {
		cfg.MaxTimestep = DefaultConfig().MaxTimestep
	}

	c := &Compositor{
		cfg:        cfg,
		mapper:     mapper,
		engine:     engine,
		particles:  particles,
		world:      world,
		background: background,
		logger:     logger.With(log.String("component", "compositor")),
		now:        time.Now,
		coords:     generic.NewHotSlicePool[mapping.DepthSpacePoint](sensor.ColorWidth*sensor.ColorHeight, 1),
		composite:  image.NewRGBA(image.Rect(0, 0, sensor.ColorWidth, sensor.ColorHeight)),
		player:     NewPlayerMask(cfg.GridStride),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Process runs one tick: map, composite, flow, advect with the previous
// field, spawn, then step physics. An error aborts the tick only; the
// compositor stays usable.
func (c *Compositor) Process(ctx context.Context, frame *sensor.Frame) (*Result, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	res := &Result{Timestamp: frame.Timestamp, Composite: c.composite, Player: c.player}
	mark := time.Now()
	stage := func(name string) {
		now := time.Now()
		res.Stages = append(res.Stages, StageTiming{Stage: name, Duration: now.Sub(mark)})
		mark = now
	}

	coords := c.coords.Get()
	defer c.coords.Put(coords)
	err := c.mapper.Map(frame.Depth, sensor.DepthWidth, sensor.DepthHeight, sensor.ColorWidth, sensor.ColorHeight, coords)
	if err != nil {
		return nil, fmt.Errorf("map color to depth: %w", err)
	}
	stage(StageMap)

	if err = c.compose(ctx, frame, coords); err != nil {
		return nil, fmt.Errorf("composite: %w", err)
	}
	stage(StageComposite)

	gray := flow.NewGrayFromImage(c.composite, flow.Width, flow.Height, c.cfg.BlurRadius)
	if c.prevGray != nil {
		res.Field, err = c.engine.Compute(ctx, c.prevGray, gray)
		if err != nil {
			c.logger.Warn("flow skipped", log.Error(err))
			res.Field = nil
		}
	}
	c.prevGray = gray
	stage(StageFlow)

	view := particle.FrameView{
		Depth:     frame.Depth,
		BodyIndex: frame.BodyIndex,
		Coords:    coords,
		Color:     frame.Color,
		Player:    c.player,
	}
	res.Advect = c.particles.Advect(c.lastField, view)
	c.lastField = res.Field
	stage(StageAdvect)

	res.Spawned = c.particles.Spawn(view)
	stage(StageSpawn)

	res.Dt = c.timestep()
	if err = c.world.Step(ctx, res.Dt); err != nil {
		return nil, fmt.Errorf("physics step: %w", err)
	}
	stage(StageStep)

	c.logger.Debug("frame processed",
		log.Int("spawned", res.Spawned),
		log.Int("removed", res.Advect.Removed()),
		log.Int("particles", c.particles.Len()),
		log.Float64("dt", res.Dt),
	)
	return res, nil
}

// compose writes the live color of tracked player pixels and the background
// elsewhere, marking player grid points as it goes.
func (c *Compositor) compose(ctx context.Context, frame *sensor.Frame, coords []mapping.DepthSpacePoint) error {
	c.player.Reset()
	bg := c.background.Image()
	stride := c.cfg.GridStride
	return concurrent.ForEachBand(ctx, sensor.ColorHeight, c.cfg.Workers, func(_ context.Context, b concurrent.Band) error {
		for y := b.Start; y < b.End; y++ {
			dst := c.composite.Pix[y*c.composite.Stride : y*c.composite.Stride+sensor.ColorWidth*4]
			live := frame.Color.Pix[y*frame.Color.Stride : y*frame.Color.Stride+sensor.ColorWidth*4]
			back := bg.Pix[y*bg.Stride : y*bg.Stride+sensor.ColorWidth*4]
			points := coords[y*sensor.ColorWidth : (y+1)*sensor.ColorWidth]
			onGridRow := y%stride == 0

			for x, p := range points {
				src := back
				if di, ok := p.Index(); ok && frame.BodyIndex[di] != sensor.BodyIndexNone {
					src = live
					if onGridRow && x%stride == 0 {
						c.player.Mark(x, y)
					}
				}
				copy(dst[x*4:x*4+4], src[x*4:x*4+4])
			}
		}
		return nil
	})
}

// timestep measures the wall clock since the previous tick, capped at
// MaxTimestep. The first tick uses NominalTimestep.
func (c *Compositor) timestep() float64 {
	now := c.now()
	dt := c.cfg.NominalTimestep
	if !c.lastTick.IsZero() {
		if elapsed := now.Sub(c.lastTick).Seconds(); elapsed > 0 {
			dt = elapsed
		}
	}
	c.lastTick = now
	return min(dt, c.cfg.MaxTimestep)
}

// Reset forgets the previous gray frame, the retained field and the tick clock.
func (c *Compositor) Reset() {
	c.prevGray = nil
	c.lastField = nil
	c.lastTick = time.Time{}
}
