package sensor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFrameIsComplete(t *testing.T) {
	f := NewFrame(time.Unix(0, 0))
	require.NoError(t, f.Validate())
	assert.Equal(t, BodyIndexNone, f.BodyIndex[0])

	_, ok := f.DepthAt(DepthWidth, 0)
	assert.False(t, ok)
}

func TestValidateReportsMissingComponents(t *testing.T) {
	f := NewFrame(time.Now())
	f.Depth = f.Depth[:10]
	assert.ErrorIs(t, f.Validate(), ErrIncompleteFrame)

	f = NewFrame(time.Now())
	f.Color = nil
	assert.ErrorIs(t, f.Validate(), ErrIncompleteFrame)

	var nilFrame *Frame
	assert.ErrorIs(t, nilFrame.Validate(), ErrIncompleteFrame)
}

func TestLatestKeepsOnlyNewestFrame(t *testing.T) {
	l := NewLatest()
	_, err := l.AcquireFrame()
	assert.ErrorIs(t, err, ErrFrameNotReady)

	first := NewFrame(time.Unix(1, 0))
	second := NewFrame(time.Unix(2, 0))
	require.True(t, l.Push(first))
	require.True(t, l.Push(second))

	got, err := l.AcquireFrame()
	require.NoError(t, err)
	assert.Same(t, second, got)
	assert.Equal(t, uint64(1), l.Dropped())

	_, err = l.AcquireFrame()
	assert.ErrorIs(t, err, ErrFrameNotReady)

	l.Close()
	assert.False(t, l.Push(first))
	_, err = l.AcquireFrame()
	assert.ErrorIs(t, err, ErrSourceClosed)
}

func TestSyntheticFrameHasPlayer(t *testing.T) {
	f := RenderSynthetic(time.Unix(0, 0), 0)
	require.NoError(t, f.Validate())

	cx, cy := PlayerCenter(0)
	i := int(cy)*DepthWidth + int(cx)
	assert.NotEqual(t, BodyIndexNone, f.BodyIndex[i])
	assert.Greater(t, f.Depth[i], uint16(500))
	assert.Less(t, f.Depth[i], uint16(2000))

	assert.Equal(t, BodyIndexNone, f.BodyIndex[0])
	assert.Equal(t, uint16(syntheticBackgroundDepth), f.Depth[0])
}

func TestSyntheticTimestampsAdvance(t *testing.T) {
	start := time.Unix(100, 0)
	s := NewSynthetic(start, 10*time.Millisecond)
	a, _ := s.AcquireFrame()
	b, _ := s.AcquireFrame()
	assert.Equal(t, start, a.Timestamp)
	assert.Equal(t, start.Add(10*time.Millisecond), b.Timestamp)
}

func TestSyntheticRunFeedsLatest(t *testing.T) {
	s := NewSynthetic(time.Now(), time.Millisecond)
	l := NewLatest()
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	var runErr error
	go func() {
		defer wg.Done()
		runErr = s.Run(ctx, l)
	}()

	require.Eventually(t, func() bool {
		_, err := l.AcquireFrame()
		return err == nil
	}, 2*time.Second, time.Millisecond)

	cancel()
	wg.Wait()
	assert.NoError(t, runErr)

	// drain, then the closed slot reports it
	for {
		if _, err := l.AcquireFrame(); err != nil {
			assert.True(t, errors.Is(err, ErrSourceClosed))
			break
		}
	}
}
