package compositor

import "github.com/zeusync/proxyfield/internal/sensor"

// PlayerMask records which spawn grid points of the color frame were
// attributed to a tracked player. Every grid point owns its own byte, so rows
// can be filled concurrently.
type PlayerMask struct {
	stride int
	cols   int
	rows   int
	cells  []bool
}

func NewPlayerMask(stride int) *PlayerMask {
	if stride < 1 {
		stride = 1
	}
	cols := (sensor.ColorWidth + stride - 1) / stride
	rows := (sensor.ColorHeight + stride - 1) / stride
	return &PlayerMask{stride: stride, cols: cols, rows: rows, cells: make([]bool, cols*rows)}
}

func (m *PlayerMask) index(x, y int) (int, bool) {
	if x < 0 || y < 0 || x%m.stride != 0 || y%m.stride != 0 {
		return 0, false
	}
	gx, gy := x/m.stride, y/m.stride
	if gx >= m.cols || gy >= m.rows {
		return 0, false
	}
	return gy*m.cols + gx, true
}

// Mark flags (x, y). Points off the grid are ignored.
func (m *PlayerMask) Mark(x, y int) {
	if i, ok := m.index(x, y); ok {
		m.cells[i] = true
	}
}

// Contains reports whether grid point (x, y) belongs to a player.
func (m *PlayerMask) Contains(x, y int) bool {
	i, ok := m.index(x, y)
	return ok && m.cells[i]
}

func (m *PlayerMask) Count() int {
	n := 0
	for _, c := range m.cells {
		if c {
			n++
		}
	}
	return n
}

func (m *PlayerMask) Reset() {
	clear(m.cells)
}
