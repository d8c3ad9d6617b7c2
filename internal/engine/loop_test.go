package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/proxyfield/internal/compositor"
	"github.com/zeusync/proxyfield/internal/core/events/bus"
	"github.com/zeusync/proxyfield/internal/core/observability/log"
	"github.com/zeusync/proxyfield/internal/physics"
	"github.com/zeusync/proxyfield/internal/render"
	"github.com/zeusync/proxyfield/internal/sensor"
)

type scriptedSource struct {
	mu   sync.Mutex
	errs []error
}

func (s *scriptedSource) AcquireFrame() (*sensor.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) == 0 {
		return nil, sensor.ErrSourceClosed
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	if err != nil {
		return nil, err
	}
	return sensor.NewFrame(time.Unix(10, 0)), nil
}

type fakeProcessor struct {
	calls int
	err   error
}

func (p *fakeProcessor) Process(_ context.Context, f *sensor.Frame) (*compositor.Result, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &compositor.Result{
		Timestamp: f.Timestamp,
		Spawned:   4,
		Dt:        1.0 / 30,
		Stages: []compositor.StageTiming{
			{Stage: compositor.StageMap, Duration: time.Millisecond},
			{Stage: compositor.StageStep, Duration: 2 * time.Millisecond},
		},
	}, nil
}

type captureSink struct {
	scenes []*render.Scene
	err    error
}

func (s *captureSink) Render(_ context.Context, scene *render.Scene) error {
	s.scenes = append(s.scenes, scene)
	return s.err
}

type fixedCount int

func (c fixedCount) Len() int { return int(c) }

func newWorld(t *testing.T) *physics.World {
	t.Helper()
	w, err := physics.NewWorld(physics.DefaultConfig(), log.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	_, err = w.AddGroundPlane()
	require.NoError(t, err)
	return w
}

func TestTickDropsWhenFrameNotReady(t *testing.T) {
	src := &scriptedSource{errs: []error{sensor.ErrFrameNotReady}}
	proc := &fakeProcessor{}
	loop, err := NewLoop(src, proc, newWorld(t), fixedCount(0), time.Millisecond, log.NewNop())
	require.NoError(t, err)

	require.NoError(t, loop.Tick(context.Background()))
	assert.Zero(t, proc.calls)
	ticks, notReady, failed := loop.Metrics().Counters()
	assert.Equal(t, [3]uint64{0, 1, 0}, [3]uint64{ticks, notReady, failed})
}

func TestTickRendersScene(t *testing.T) {
	src := &scriptedSource{errs: []error{nil, nil}}
	sink := &captureSink{}
	loop, err := NewLoop(src, &fakeProcessor{}, newWorld(t), fixedCount(12), time.Millisecond, log.NewNop(),
		WithSinks(sink))
	require.NoError(t, err)

	require.NoError(t, loop.Tick(context.Background()))
	require.NoError(t, loop.Tick(context.Background()))

	require.Len(t, sink.scenes, 2)
	scene := sink.scenes[1]
	assert.Equal(t, uint64(2), scene.Frame)
	assert.Equal(t, time.Unix(10, 0), scene.Timestamp)
	assert.Equal(t, 12, scene.Stats.Particles)
	assert.Equal(t, 4, scene.Stats.Spawned)
	require.Len(t, scene.Primitives, 1)
	assert.Equal(t, "plane", scene.Primitives[0].Kind)

	step, ok := loop.Metrics().Stage(compositor.StageStep)
	require.True(t, ok)
	assert.Equal(t, uint64(2), step.ExecutionCount)
	assert.Equal(t, 2*time.Millisecond, step.AverageExecutionTime)
	assert.Contains(t, loop.Metrics().Stages(), StageRender)
	assert.Contains(t, loop.Metrics().Stages(), StageTick)
}

func TestFailedTickIsCountedAndPublished(t *testing.T) {
	b := bus.New()
	var skipped []error
	_, _ = b.Subscribe(EventFrameSkipped, func(e bus.Event) error {
		skipped = append(skipped, e.Data().(error))
		return nil
	})

	boom := errors.New("mapper unavailable")
	src := &scriptedSource{errs: []error{nil, errors.New("depth stream lost")}}
	loop, err := NewLoop(src, &fakeProcessor{err: boom}, newWorld(t), fixedCount(0), time.Millisecond, log.NewNop(),
		WithEventBus(b))
	require.NoError(t, err)

	require.NoError(t, loop.Tick(context.Background()))
	require.NoError(t, loop.Tick(context.Background()))

	_, _, failed := loop.Metrics().Counters()
	assert.Equal(t, uint64(2), failed)
	require.Len(t, skipped, 2)
	assert.ErrorIs(t, skipped[0], boom)
	assert.Equal(t, uint64(2), loop.Metrics().Events(EventFrameSkipped))

	tick, _ := loop.Metrics().Stage(StageTick)
	assert.Equal(t, uint64(1), tick.ErrorCount)
}

func TestSinkErrorsDoNotStopTheLoop(t *testing.T) {
	src := &scriptedSource{errs: []error{nil}}
	sink := &captureSink{err: render.ErrHubClosed}
	loop, err := NewLoop(src, &fakeProcessor{}, newWorld(t), fixedCount(0), time.Millisecond, log.NewNop(),
		WithSinks(sink))
	require.NoError(t, err)

	require.NoError(t, loop.Tick(context.Background()))
	r, _ := loop.Metrics().Stage(StageRender)
	assert.Equal(t, uint64(1), r.ErrorCount)
	ticks, _, _ := loop.Metrics().Counters()
	assert.Equal(t, uint64(1), ticks)
}

func TestRunStopsWhenSourceCloses(t *testing.T) {
	src := &scriptedSource{errs: []error{nil, sensor.ErrFrameNotReady}}
	loop, err := NewLoop(src, &fakeProcessor{}, newWorld(t), fixedCount(0), time.Millisecond, log.NewNop())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after the source closed")
	}
}

func TestRunStopsWithContext(t *testing.T) {
	src := sensor.NewLatest()
	loop, err := NewLoop(src, &fakeProcessor{}, newWorld(t), fixedCount(0), time.Millisecond, log.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.NoError(t, loop.Run(ctx))
	_, notReady, _ := loop.Metrics().Counters()
	assert.Positive(t, notReady)
}

func TestNewLoopRequiresDependencies(t *testing.T) {
	_, err := NewLoop(nil, nil, nil, nil, 0, log.NewNop())
	assert.ErrorIs(t, err, ErrMissingDependency)
}
