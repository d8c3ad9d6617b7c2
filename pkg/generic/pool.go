package generic

import "sync"

// SlicePool recycles fixed-length slices, typically per-frame scratch buffers
// sized to a sensor resolution.
type SlicePool[T any] struct {
	size int
	pool sync.Pool
}

func NewSlicePool[T any](size int) *SlicePool[T] {
	p := &SlicePool[T]{size: size}
	p.pool.New = func() any {
		s := make([]T, size)
		return &s
	}
	return p
}

// NewHotSlicePool pre-allocates hotSize slices so the first frames do not pay for allocation.
func NewHotSlicePool[T any](size, hotSize int) *SlicePool[T] {
	p := NewSlicePool[T](size)
	for i := 0; i < hotSize; i++ {
		s := make([]T, size)
		p.pool.Put(&s)
	}
	return p
}

// Get returns a slice of exactly Size elements. Contents are unspecified.
func (p *SlicePool[T]) Get() []T {
	return *(p.pool.Get().(*[]T))
}

// Put returns s to the pool. Slices of the wrong length are dropped.
func (p *SlicePool[T]) Put(s []T) {
	if len(s) != p.size {
		return
	}
	p.pool.Put(&s)
}

func (p *SlicePool[T]) Size() int {
	return p.size
}
