package concurrent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCoversAllRows(t *testing.T) {
	bands := Split(10, 3)
	require.Len(t, bands, 3)
	assert.Equal(t, Band{0, 4}, bands[0])
	assert.Equal(t, Band{4, 7}, bands[1])
	assert.Equal(t, Band{7, 10}, bands[2])

	assert.Len(t, Split(2, 8), 2)
	assert.Nil(t, Split(0, 4))
	assert.Equal(t, []Band{{0, 5}}, Split(5, 0))
}

func TestForEachBandVisitsEveryRowOnce(t *testing.T) {
	const rows = 360
	var visits [rows]int32
	err := ForEachBand(context.Background(), rows, 4, func(_ context.Context, b Band) error {
		for y := b.Start; y < b.End; y++ {
			atomic.AddInt32(&visits[y], 1)
		}
		return nil
	})
	require.NoError(t, err)
	for y, v := range visits {
		if v != 1 {
			t.Fatalf("row %d visited %d times", y, v)
		}
	}
}

func TestForEachBandReturnsFirstError(t *testing.T) {
	boom := errors.New("band failed")
	err := ForEachBand(context.Background(), 100, 4, func(_ context.Context, b Band) error {
		if b.Start == 0 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestForEachBandHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := ForEachBand(ctx, 1, 1, func(context.Context, Band) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
