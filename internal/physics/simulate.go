package physics

import (
	"image/color"
	"math"

	"github.com/golang/geo/r3"
)

var (
	defaultPlaneColor  = color.RGBA{R: 60, G: 60, B: 60, A: 255}
	defaultBoxColor    = color.RGBA{R: 200, G: 120, B: 40, A: 255}
	defaultSphereColor = color.RGBA{R: 230, G: 230, B: 230, A: 255}
)

// groundFriction is the fraction of horizontal box velocity lost per second
// of ground contact.
const groundFriction = 4.0

// integrate advances every body by dt. Caller holds mu.
func (w *World) integrate(dt float64) {
	gravity := r3.Vector{Y: w.cfg.Gravity}
	for _, id := range w.order {
		b := w.bodies[id]
		switch b.kind {
		case KindSphere:
			if !b.hasTarget {
				b.vel = r3.Vector{}
				continue
			}
			b.vel = b.target.Sub(b.pos).Mul(1 / dt)
			b.pos = b.target
			b.hasTarget = false
		case KindBox:
			b.vel = b.vel.Add(gravity.Mul(dt))
			b.pos = b.pos.Add(b.vel.Mul(dt))
		}
	}
	w.clampToGround(dt)
	w.rebuildGrid()
	w.resolveContacts()
	w.clampToGround(0)
	w.rebuildGrid()
}

func (w *World) rebuildGrid() {
	w.grid.reset()
	for _, id := range w.order {
		if b := w.bodies[id]; b.kind != KindPlane {
			w.grid.insert(b)
		}
	}
}

func (w *World) clampToGround(dt float64) {
	if !w.hasGround {
		return
	}
	floor := w.cfg.GroundHeight
	damp := math.Max(0, 1-groundFriction*dt)
	for _, id := range w.order {
		b := w.bodies[id]
		if b.kind != KindBox || b.pos.Y-b.half.Y >= floor {
			continue
		}
		b.pos.Y = floor + b.half.Y
		if b.vel.Y < 0 {
			b.vel.Y = 0
		}
		b.vel.X *= damp
		b.vel.Z *= damp
	}
}

// resolveContacts runs one separation pass: spheres push boxes out of
// themselves, overlapping boxes share the correction by mass.
func (w *World) resolveContacts() {
	seen := make(map[ActorID]struct{})
	var ids []ActorID
	for _, id := range w.order {
		a := w.bodies[id]
		if a.kind != KindBox {
			continue
		}
		lo, hi := a.bounds()
		clear(seen)
		ids = w.grid.candidates(lo, hi, seen, ids[:0])
		for _, otherID := range ids {
			if otherID == id {
				continue
			}
			other := w.bodies[otherID]
			switch other.kind {
			case KindSphere:
				pushBox(a, other)
			case KindBox:
				if otherID > id {
					separateBoxes(a, other)
				}
			}
		}
	}
}

// pushBox moves box out of kinematic sphere s and carries it along with the
// sphere's velocity.
func pushBox(box, s *body) {
	lo, hi := box.bounds()
	q := clampVec(s.pos, lo, hi)
	d := s.pos.Sub(q)
	dist := d.Norm()
	if dist >= s.radius {
		return
	}

	var push r3.Vector // direction the box moves
	var depth float64
	if dist > 1e-9 {
		push = d.Mul(-1 / dist)
		depth = s.radius - dist
	} else {
		push, depth = exitDirection(s.pos, lo, hi)
		depth += s.radius
	}
	box.pos = box.pos.Add(push.Mul(depth))

	boxSpeed := box.vel.Dot(push)
	sphereSpeed := s.vel.Dot(push)
	if boxSpeed < sphereSpeed {
		box.vel = box.vel.Add(push.Mul(sphereSpeed - boxSpeed))
	}
}

// exitDirection returns the unit axis along which the box must move for
// point c to leave it through the nearest face, and the distance to that face.
func exitDirection(c, lo, hi r3.Vector) (r3.Vector, float64) {
	best := math.Inf(1)
	var dir r3.Vector
	try := func(dist float64, d r3.Vector) {
		if dist < best {
			best, dir = dist, d
		}
	}
	// near the min face the box moves forward so c exits behind it
	try(c.X-lo.X, r3.Vector{X: 1})
	try(hi.X-c.X, r3.Vector{X: -1})
	try(c.Y-lo.Y, r3.Vector{Y: 1})
	try(hi.Y-c.Y, r3.Vector{Y: -1})
	try(c.Z-lo.Z, r3.Vector{Z: 1})
	try(hi.Z-c.Z, r3.Vector{Z: -1})
	return dir, best
}

func separateBoxes(a, b *body) {
	aLo, aHi := a.bounds()
	bLo, bHi := b.bounds()
	overlap := r3.Vector{
		X: math.Min(aHi.X, bHi.X) - math.Max(aLo.X, bLo.X),
		Y: math.Min(aHi.Y, bHi.Y) - math.Max(aLo.Y, bLo.Y),
		Z: math.Min(aHi.Z, bHi.Z) - math.Max(aLo.Z, bLo.Z),
	}
	if overlap.X <= 0 || overlap.Y <= 0 || overlap.Z <= 0 {
		return
	}

	var axis r3.Vector
	depth := overlap.X
	axis = r3.Vector{X: 1}
	if overlap.Y < depth {
		depth, axis = overlap.Y, r3.Vector{Y: 1}
	}
	if overlap.Z < depth {
		depth, axis = overlap.Z, r3.Vector{Z: 1}
	}
	if b.pos.Sub(a.pos).Dot(axis) < 0 {
		axis = axis.Mul(-1)
	}

	total := a.mass + b.mass
	a.pos = a.pos.Sub(axis.Mul(depth * b.mass / total))
	b.pos = b.pos.Add(axis.Mul(depth * a.mass / total))

	// perfectly inelastic along the contact axis
	va, vb := a.vel.Dot(axis), b.vel.Dot(axis)
	if va > vb {
		shared := (va*a.mass + vb*b.mass) / total
		a.vel = a.vel.Add(axis.Mul(shared - va))
		b.vel = b.vel.Add(axis.Mul(shared - vb))
	}
}

// sphereHits reports strict overlap of a query sphere with b.
func sphereHits(c r3.Vector, r float64, b *body) bool {
	switch b.kind {
	case KindSphere:
		reach := r + b.radius
		return c.Sub(b.pos).Norm2() < reach*reach
	case KindBox:
		lo, hi := b.bounds()
		return c.Sub(clampVec(c, lo, hi)).Norm2() < r*r
	default:
		return false
	}
}

func clampVec(v, lo, hi r3.Vector) r3.Vector {
	return r3.Vector{
		X: math.Max(lo.X, math.Min(hi.X, v.X)),
		Y: math.Max(lo.Y, math.Min(hi.Y, v.Y)),
		Z: math.Max(lo.Z, math.Min(hi.Z, v.Z)),
	}
}
