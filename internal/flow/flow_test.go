package flow

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/proxyfield/internal/core/observability/log"
)

func texture(w, h int, shift float64) *Gray {
	const k = 2 * math.Pi / 16
	g := NewGray(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := 0.5 + 0.25*math.Sin(k*(float64(x)-shift)) + 0.25*math.Sin(k*float64(y))
			g.Pix[y*w+x] = float32(v)
		}
	}
	return g
}

func newEngine() *LucasKanade {
	opts := DefaultOptions()
	opts.MinEigen = 1e-6
	return NewLucasKanade(opts, log.NewNop())
}

func TestComputeRecoversHorizontalShift(t *testing.T) {
	const w, h = 96, 64
	prev := texture(w, h, 0)
	cur := texture(w, h, 1)

	field, err := newEngine().Compute(context.Background(), prev, cur)
	require.NoError(t, err)
	require.Equal(t, w, field.Width)
	require.Equal(t, h, field.Height)
	assert.Equal(t, Ratio, field.Scale())

	for y := 8; y < h-8; y += 3 {
		for x := 8; x < w-8; x += 3 {
			dx, dy, ok := field.At(x, y)
			require.True(t, ok)
			if math.Abs(float64(dx)-1) > 0.1 || math.Abs(float64(dy)) > 0.1 {
				t.Fatalf("flow at (%d,%d) = (%f,%f), want ~(1,0)", x, y, dx, dy)
			}
		}
	}
}

func TestComputeIdenticalFramesIsStill(t *testing.T) {
	g := texture(40, 30, 0)
	field, err := newEngine().Compute(context.Background(), g, g)
	require.NoError(t, err)
	for i := range field.DX {
		assert.Zero(t, field.DX[i])
		assert.Zero(t, field.DY[i])
	}
}

func TestComputeFlatFrameHasNoReliableMotion(t *testing.T) {
	prev := NewGray(20, 20)
	cur := NewGray(20, 20)
	for i := range cur.Pix {
		cur.Pix[i] = 0.5
	}
	field, err := NewLucasKanade(DefaultOptions(), log.NewNop()).Compute(context.Background(), prev, cur)
	require.NoError(t, err)
	dx, dy, _ := field.At(10, 10)
	assert.Zero(t, dx)
	assert.Zero(t, dy)
}

func TestComputeErrors(t *testing.T) {
	e := newEngine()
	_, err := e.Compute(context.Background(), nil, NewGray(4, 4))
	assert.ErrorIs(t, err, ErrNoPreviousFrame)

	_, err = e.Compute(context.Background(), NewGray(4, 4), NewGray(5, 4))
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = e.Compute(context.Background(), NewGray(4, 4), nil)
	assert.ErrorIs(t, err, ErrEmptyFrame)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Compute(ctx, texture(32, 32, 0), texture(32, 32, 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFieldBounds(t *testing.T) {
	f := NewField(Width, Height, Ratio)
	f.Set(100, 100, 5, -2)
	dx, dy, ok := f.At(100, 100)
	require.True(t, ok)
	assert.Equal(t, float32(5), dx)
	assert.Equal(t, float32(-2), dy)

	_, _, ok = f.At(Width, 0)
	assert.False(t, ok)
	_, _, ok = f.At(-1, 0)
	assert.False(t, ok)

	var missing *Field
	_, _, ok = missing.At(0, 0)
	assert.False(t, ok)
}

func TestNewGrayFromImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1920, 1080))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 255, 255, 255, 255
	}
	img.Set(0, 0, color.RGBA{A: 255})

	g := NewGrayFromImage(img, Width, Height, 1)
	require.Equal(t, Width, g.Width)
	require.Equal(t, Height, g.Height)
	assert.InDelta(t, 1.0, g.At(Width/2, Height/2), 0.01)
	assert.Less(t, g.At(0, 0), float32(1))
}
