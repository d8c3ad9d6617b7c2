package particle

import "math"

// OccupancyMask is the sparse set of spawn grid points already holding a
// particle. A particle claims the grid point nearest to its position.
type OccupancyMask struct {
	stride float32
	cells  map[uint64]struct{}
}

func NewOccupancyMask(stride int) *OccupancyMask {
	if stride < 1 {
		stride = 1
	}
	return &OccupancyMask{stride: float32(stride), cells: make(map[uint64]struct{})}
}

func (m *OccupancyMask) key(x, y float32) uint64 {
	gx := int32(math.Floor(float64((x + m.stride/2) / m.stride)))
	gy := int32(math.Floor(float64((y + m.stride/2) / m.stride)))
	return uint64(uint32(gx))<<32 | uint64(uint32(gy))
}

func (m *OccupancyMask) Claim(x, y float32) {
	m.cells[m.key(x, y)] = struct{}{}
}

func (m *OccupancyMask) Claimed(x, y float32) bool {
	_, ok := m.cells[m.key(x, y)]
	return ok
}

func (m *OccupancyMask) Reset() {
	clear(m.cells)
}

func (m *OccupancyMask) Len() int {
	return len(m.cells)
}
