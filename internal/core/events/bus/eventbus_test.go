package bus

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	mu        sync.Mutex
	delivered int
	lastErr   error
}

func (o *countingObserver) OnDelivered(_ string, handlers int, err error, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.delivered += handlers
	o.lastErr = err
}

func TestPublishReachesSubscribersOfType(t *testing.T) {
	b := New()
	var spawned, removed int
	_, err := b.Subscribe("particle.spawned", func(e Event) error {
		spawned++
		assert.Equal(t, "particles", e.Source())
		return nil
	})
	require.NoError(t, err)
	_, err = b.Subscribe("particle.removed", func(Event) error { removed++; return nil })
	require.NoError(t, err)

	require.NoError(t, b.Publish(NewEvent("particle.spawned", "particles", 1)))
	assert.Equal(t, 1, spawned)
	assert.Equal(t, 0, removed)
}

func TestHandlerErrorsAreJoined(t *testing.T) {
	b := New()
	first := errors.New("first")
	second := errors.New("second")
	_, _ = b.Subscribe("x", func(Event) error { return first })
	_, _ = b.Subscribe("x", func(Event) error { return second })

	err := b.Publish(NewEvent("x", "src", nil))
	if err == nil {
		t.Fatal("expected joined error")
	}
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New()
	calls := 0
	sub, err := b.Subscribe("x", func(Event) error { calls++; return nil })
	require.NoError(t, err)

	require.NoError(t, b.Unsubscribe(sub))
	require.NoError(t, sub.Cancel())
	assert.False(t, sub.IsActive())

	require.NoError(t, b.Publish(NewEvent("x", "src", nil)))
	assert.Equal(t, 0, calls)
	assert.NoError(t, b.Unsubscribe(nil))
}

func TestInvalidArguments(t *testing.T) {
	b := New()
	_, err := b.Subscribe("", func(Event) error { return nil })
	assert.ErrorIs(t, err, ErrEmptyEventType)
	_, err = b.Subscribe("x", nil)
	assert.ErrorIs(t, err, ErrNilHandler)
	assert.ErrorIs(t, b.Publish(nil), ErrNilEvent)
}

func TestMetricsOnlyWithObserver(t *testing.T) {
	b := New()
	_, _ = b.Subscribe("e", func(Event) error { return nil })
	_ = b.Publish(NewEvent("e", "s", nil))
	assert.Zero(t, b.Metrics().Published)

	obs := &countingObserver{}
	b.AddObserver(obs)
	_ = b.Publish(NewEvent("e", "s", nil))
	m := b.Metrics()
	assert.Equal(t, uint64(1), m.Published)
	assert.Equal(t, uint64(1), m.DeliveredHandlers)
	assert.Equal(t, uint64(1), m.SubscribersActive)
	assert.Equal(t, 1, obs.delivered)

	b.RemoveObserver(obs)
	_ = b.Publish(NewEvent("e", "s", nil))
	assert.Equal(t, 1, obs.delivered)
}
