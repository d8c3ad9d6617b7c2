package engine

import (
	"context"
	"errors"
	"time"

	"github.com/zeusync/proxyfield/internal/compositor"
	"github.com/zeusync/proxyfield/internal/core/events/bus"
	"github.com/zeusync/proxyfield/internal/core/observability/log"
	"github.com/zeusync/proxyfield/internal/render"
	"github.com/zeusync/proxyfield/internal/sensor"
)

// EventFrameSkipped is published when a tick is aborted after a frame was
// acquired.
const EventFrameSkipped = "frame.skipped"

// Stage names recorded next to the compositor stages.
const (
	StageTick   = "tick"
	StageRender = "render"
)

// Processor runs the per-frame pipeline.
type Processor interface {
	Process(ctx context.Context, frame *sensor.Frame) (*compositor.Result, error)
}

// Counter reports the live particle count.
type Counter interface {
	Len() int
}

// Loop is the render loop: on every tick it acquires the newest frame, runs
// the pipeline and hands the resulting scene to the sinks. Per-frame errors
// are logged and counted, never returned.
type Loop struct {
	source    sensor.Source
	processor Processor
	world     render.ActorSource
	particles Counter
	sinks     []render.Sink
	events    bus.EventBus
	metrics   *Metrics
	interval  time.Duration
	logger    log.Log

	frame uint64
}

type Option func(*Loop)

func WithSinks(sinks ...render.Sink) Option {
	return func(l *Loop) {
		l.sinks = append(l.sinks, sinks...)
	}
}

// WithEventBus publishes skipped frames on b and counts every event on b.
func WithEventBus(b bus.EventBus) Option {
	return func(l *Loop) {
		l.events = b
	}
}

func NewLoop(
	source sensor.Source,
	processor Processor,
	world render.ActorSource,
	particles Counter,
	interval time.Duration,
	logger log.Log,
	opts ...Option,
) (*Loop, error) {
	if source == nil || processor == nil || world == nil || particles == nil {
		return nil, ErrMissingDependency
	}
	if interval <= 0 {
		interval = time.Second / 30
	}
	l := &Loop{
		source:    source,
		processor: processor,
		world:     world,
		particles: particles,
		metrics:   NewMetrics(),
		interval:  interval,
		logger:    logger.With(log.String("component", "engine")),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.events != nil {
		l.events.AddObserver(l.metrics)
	}
	return l, nil
}

func (l *Loop) Metrics() *Metrics {
	return l.metrics
}

// Run ticks until ctx is done or the source closes.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	l.logger.Info("render loop started", log.Duration("interval", l.interval))
	defer func() {
		ticks, notReady, failed := l.metrics.Counters()
		l.logger.Info("render loop stopped",
			log.Uint64("ticks", ticks),
			log.Uint64("not_ready", notReady),
			log.Uint64("failed", failed),
		)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := l.Tick(ctx); errors.Is(err, sensor.ErrSourceClosed) {
				return nil
			}
		}
	}
}

// Tick runs one iteration. It only returns an error when the source closed;
// everything else is absorbed so the next tick can retry.
func (l *Loop) Tick(ctx context.Context) error {
	frame, err := l.source.AcquireFrame()
	switch {
	case errors.Is(err, sensor.ErrFrameNotReady):
		l.metrics.countTick(true, false)
		return nil
	case errors.Is(err, sensor.ErrSourceClosed):
		return err
	case err != nil:
		l.skip(err)
		return nil
	}

	start := time.Now()
	res, err := l.processor.Process(ctx, frame)
	l.metrics.Record(StageTick, time.Since(start), err)
	if err != nil {
		l.skip(err)
		return nil
	}
	for _, s := range res.Stages {
		l.metrics.Record(s.Stage, s.Duration, nil)
	}
	l.metrics.countTick(false, false)
	l.frame++

	if len(l.sinks) == 0 {
		return nil
	}
	renderStart := time.Now()
	scene := render.BuildScene(l.world, l.frame, res.Timestamp, render.Stats{
		Particles: l.particles.Len(),
		Spawned:   res.Spawned,
		Removed:   res.Advect.Removed(),
		Dt:        res.Dt,
	})
	var renderErr error
	for _, sink := range l.sinks {
		if err := sink.Render(ctx, scene); err != nil {
			renderErr = errors.Join(renderErr, err)
		}
	}
	l.metrics.Record(StageRender, time.Since(renderStart), renderErr)
	if renderErr != nil {
		l.logger.Warn("scene not delivered", log.Error(renderErr))
	}
	return nil
}

func (l *Loop) skip(err error) {
	l.metrics.countTick(false, true)
	l.logger.Warn("frame skipped", log.Error(err))
	if l.events != nil {
		_ = l.events.Publish(bus.NewEvent(EventFrameSkipped, "engine", err))
	}
}
