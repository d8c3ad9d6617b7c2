package compositor

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/proxyfield/internal/core/observability/log"
	"github.com/zeusync/proxyfield/internal/flow"
	"github.com/zeusync/proxyfield/internal/mapping"
	"github.com/zeusync/proxyfield/internal/particle"
	"github.com/zeusync/proxyfield/internal/physics"
	"github.com/zeusync/proxyfield/internal/sensor"
)

type recordingStepper struct {
	world *physics.World
	dts   []float64
}

func (s *recordingStepper) Step(ctx context.Context, dt float64) error {
	s.dts = append(s.dts, dt)
	return s.world.Step(ctx, dt)
}

type flakyService struct {
	fail  bool
	inner mapping.Service
}

func (s *flakyService) MapColorFrameToDepthSpace(depth []uint16, out []mapping.DepthSpacePoint) error {
	if s.fail {
		return errors.New("mapper session lost")
	}
	return s.inner.MapColorFrameToDepthSpace(depth, out)
}

type fixture struct {
	comp      *Compositor
	world     *physics.World
	particles *particle.Manager
	stepper   *recordingStepper
	mapper    *flakyService
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	logger := log.NewNop()
	world, err := physics.NewWorld(physics.DefaultConfig(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = world.Close() })

	particles, err := particle.NewManager(particle.DefaultConfig(), world, logger)
	require.NoError(t, err)

	svc := &flakyService{inner: mapping.NewAffine(0, 0)}
	stepper := &recordingStepper{world: world}
	comp, err := New(DefaultConfig(), mapping.NewAdapter(svc),
		flow.NewLucasKanade(flow.DefaultOptions(), logger), particles, stepper,
		NewSolidBackground(color.RGBA{B: 128, A: 255}), logger, opts...)
	require.NoError(t, err)
	return &fixture{comp: comp, world: world, particles: particles, stepper: stepper, mapper: svc}
}

func fakeClock(times ...time.Time) func() time.Time {
	i := 0
	return func() time.Time {
		t := times[min(i, len(times)-1)]
		i++
		return t
	}
}

func TestCompositeReplacesBackground(t *testing.T) {
	f := newFixture(t)
	frame := sensor.RenderSynthetic(time.Unix(0, 0), 0)

	res, err := f.comp.Process(context.Background(), frame)
	require.NoError(t, err)

	// the frame centre maps onto the player
	assert.Equal(t, frame.Color.RGBAAt(960, 540), res.Composite.RGBAAt(960, 540))
	assert.True(t, res.Player.Contains(960, 540))
	// the left edge has no depth mapping
	assert.Equal(t, color.RGBA{B: 128, A: 255}, res.Composite.RGBAAt(0, 540))
	assert.False(t, res.Player.Contains(0, 540))
	// the wall behind the player is mapped but untracked
	assert.Equal(t, color.RGBA{B: 128, A: 255}, res.Composite.RGBAAt(960, 10))
}

func TestFlowIsAppliedOneTickLate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.comp.Process(ctx, sensor.RenderSynthetic(time.Unix(0, 0), 0))
	require.NoError(t, err)
	assert.Nil(t, first.Field)
	assert.Zero(t, first.Advect.Moved)
	assert.Positive(t, first.Spawned)
	assert.Equal(t, f.particles.Len(), f.world.Count(physics.KindSphere))

	second, err := f.comp.Process(ctx, sensor.RenderSynthetic(time.Unix(0, 0), 1))
	require.NoError(t, err)
	assert.NotNil(t, second.Field)
	assert.Zero(t, second.Advect.Moved, "the first field is only used on the next tick")

	before := make(map[uuid.UUID][2]float32)
	for _, p := range f.particles.Particles() {
		before[p.ID] = [2]float32{p.X, p.Y}
	}
	third, err := f.comp.Process(ctx, sensor.RenderSynthetic(time.Unix(0, 0), 2))
	require.NoError(t, err)
	assert.Positive(t, third.Advect.Moved)
	displaced := 0
	for _, p := range f.particles.Particles() {
		if pos, ok := before[p.ID]; ok && pos != [2]float32{p.X, p.Y} {
			displaced++
		}
	}
	assert.Positive(t, displaced, "flow from the second tick moved no particle")
	assert.Equal(t, f.particles.Len(), f.world.Count(physics.KindSphere))

	names := make([]string, 0, len(third.Stages))
	for _, s := range third.Stages {
		names = append(names, s.Stage)
	}
	assert.Equal(t, []string{StageMap, StageComposite, StageFlow, StageAdvect, StageSpawn, StageStep}, names)
}

func TestTimestepIsMeasuredAndCapped(t *testing.T) {
	t0 := time.Unix(1000, 0)
	f := newFixture(t, WithClock(fakeClock(t0, t0.Add(20*time.Millisecond), t0.Add(520*time.Millisecond))))
	ctx := context.Background()
	for tick := 0; tick < 3; tick++ {
		_, err := f.comp.Process(ctx, sensor.RenderSynthetic(t0, tick))
		require.NoError(t, err)
	}
	require.Len(t, f.stepper.dts, 3)
	assert.InDelta(t, 1.0/30, f.stepper.dts[0], 1e-12)
	assert.InDelta(t, 0.02, f.stepper.dts[1], 1e-9)
	assert.Equal(t, 0.1, f.stepper.dts[2])
}

func TestMapperFailureSkipsTick(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mapper.fail = true

	_, err := f.comp.Process(ctx, sensor.RenderSynthetic(time.Unix(0, 0), 0))
	assert.ErrorIs(t, err, mapping.ErrMapperUnavailable)
	assert.Empty(t, f.stepper.dts, "no step on an aborted tick")
	assert.Zero(t, f.particles.Len())

	f.mapper.fail = false
	_, err = f.comp.Process(ctx, sensor.RenderSynthetic(time.Unix(0, 0), 0))
	require.NoError(t, err)
	assert.Len(t, f.stepper.dts, 1)
}

func TestIncompleteFrameIsRejected(t *testing.T) {
	f := newFixture(t)
	frame := sensor.NewFrame(time.Now())
	frame.BodyIndex = nil
	_, err := f.comp.Process(context.Background(), frame)
	assert.ErrorIs(t, err, sensor.ErrIncompleteFrame)
}

func TestNewRequiresStages(t *testing.T) {
	_, err := New(DefaultConfig(), nil, nil, nil, nil, nil, log.NewNop())
	assert.ErrorIs(t, err, ErrMissingStage)
}

func TestLoadBackground(t *testing.T) {
	_, err := LoadBackground(filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, ErrBackgroundLoad)

	small := image.NewRGBA(image.Rect(0, 0, 64, 36))
	for i := 0; i < len(small.Pix); i += 4 {
		small.Pix[i], small.Pix[i+3] = 200, 255
	}
	path := filepath.Join(t.TempDir(), "bg.png")
	out, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(out, small))
	require.NoError(t, out.Close())

	bg, err := LoadBackground(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, sensor.ColorWidth, sensor.ColorHeight), bg.Image().Bounds())
	assert.InDelta(t, 200, int(bg.Image().RGBAAt(960, 540).R), 1)
}

func TestPlayerMaskGrid(t *testing.T) {
	m := NewPlayerMask(5)
	m.Mark(10, 15)
	m.Mark(11, 15)
	assert.True(t, m.Contains(10, 15))
	assert.False(t, m.Contains(11, 15))
	assert.False(t, m.Contains(-5, 0))
	assert.Equal(t, 1, m.Count())
	m.Reset()
	assert.Zero(t, m.Count())
}
