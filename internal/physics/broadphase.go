package physics

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/geo/r3"
)

// grid is a uniform spatial hash. Cells are keyed by the xxhash of their
// integer coordinates; hash collisions only add candidates, the narrow phase
// filters them.
type grid struct {
	cellSize float64
	cells    map[uint64][]ActorID
	// cells occupied by each body, for removal
	owned map[ActorID][]uint64
}

func newGrid(cellSize float64) *grid {
	return &grid{
		cellSize: cellSize,
		cells:    make(map[uint64][]ActorID),
		owned:    make(map[ActorID][]uint64),
	}
}

func cellKey(x, y, z int32) uint64 {
	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(x))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(y))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(z))
	return xxhash.Sum64(buf[:])
}

func (g *grid) cellOf(v float64) int32 {
	return int32(math.Floor(v / g.cellSize))
}

// visit calls fn for every cell key overlapped by the box [lo, hi].
func (g *grid) visit(lo, hi r3.Vector, fn func(key uint64)) {
	x0, x1 := g.cellOf(lo.X), g.cellOf(hi.X)
	y0, y1 := g.cellOf(lo.Y), g.cellOf(hi.Y)
	z0, z1 := g.cellOf(lo.Z), g.cellOf(hi.Z)
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			for z := z0; z <= z1; z++ {
				fn(cellKey(x, y, z))
			}
		}
	}
}

func (g *grid) insert(b *body) {
	lo, hi := b.bounds()
	keys := g.owned[b.id][:0]
	g.visit(lo, hi, func(key uint64) {
		g.cells[key] = append(g.cells[key], b.id)
		keys = append(keys, key)
	})
	g.owned[b.id] = keys
}

func (g *grid) remove(id ActorID) {
	for _, key := range g.owned[id] {
		ids := g.cells[key]
		for i, other := range ids {
			if other == id {
				ids[i] = ids[len(ids)-1]
				ids = ids[:len(ids)-1]
				break
			}
		}
		if len(ids) == 0 {
			delete(g.cells, key)
		} else {
			g.cells[key] = ids
		}
	}
	delete(g.owned, id)
}

// candidates returns the distinct ids whose cells touch [lo, hi].
func (g *grid) candidates(lo, hi r3.Vector, seen map[ActorID]struct{}, out []ActorID) []ActorID {
	g.visit(lo, hi, func(key uint64) {
		for _, id := range g.cells[key] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	})
	return out
}

func (g *grid) reset() {
	clear(g.cells)
	clear(g.owned)
}
