package sensor

import (
	"sync"
)

// Source supplies frames on demand without blocking.
type Source interface {
	// AcquireFrame returns the newest unseen frame or ErrFrameNotReady.
	AcquireFrame() (*Frame, error)
}

// Latest is a single-slot mailbox between a producer goroutine and the render
// loop. Pushing over an unconsumed frame replaces it, so stale frames are never
// queued.
type Latest struct {
	mu      sync.Mutex
	frame   *Frame
	closed  bool
	dropped uint64
}

func NewLatest() *Latest {
	return &Latest{}
}

// Push stores f as the newest frame. It reports false once the slot is closed.
func (l *Latest) Push(f *Frame) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	if l.frame != nil {
		l.dropped++
	}
	l.frame = f
	return true
}

func (l *Latest) AcquireFrame() (*Frame, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.frame == nil {
		if l.closed {
			return nil, ErrSourceClosed
		}
		return nil, ErrFrameNotReady
	}
	f := l.frame
	l.frame = nil
	return f, nil
}

// Dropped counts frames overwritten before anyone acquired them.
func (l *Latest) Dropped() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Close rejects further pushes. A pending frame can still be acquired.
func (l *Latest) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}
