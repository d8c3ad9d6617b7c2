package physics

import (
	"image/color"

	"github.com/golang/geo/r3"
)

// ActorID identifies a body for the lifetime of the world. IDs are never reused.
type ActorID uint64

type Kind uint8

const (
	KindPlane Kind = iota + 1
	KindBox
	KindSphere
)

func (k Kind) String() string {
	switch k {
	case KindPlane:
		return "plane"
	case KindBox:
		return "box"
	case KindSphere:
		return "sphere"
	default:
		return "unknown"
	}
}

// Pose is a world-space placement. Bodies in this world do not rotate.
type Pose struct {
	Position r3.Vector
}

func PoseAt(x, y, z float64) Pose {
	return Pose{Position: r3.Vector{X: x, Y: y, Z: z}}
}

// Sphere is query geometry for overlap tests.
type Sphere struct {
	Radius float64
}

type QueryMode uint8

const (
	// QueryAnyHit stops at the first overlapping body.
	QueryAnyHit QueryMode = iota
	// QueryAllHits reports every overlapping body.
	QueryAllHits
)

// ActorSnapshot is a read-only copy of a body's state after the last step.
type ActorSnapshot struct {
	ID          ActorID
	Kind        Kind
	Position    r3.Vector
	Velocity    r3.Vector
	HalfExtents r3.Vector
	Radius      float64
	Kinematic   bool
	Color       color.RGBA
}

type actorOptions struct {
	color color.RGBA
}

type ActorOption func(*actorOptions)

// WithColor sets the render tint of a body.
func WithColor(c color.RGBA) ActorOption {
	return func(o *actorOptions) {
		o.color = c
	}
}

type Config struct {
	// Gravity is the acceleration along the world Y axis.
	Gravity   float64
	CellSize  float64
	MaxActors int
	// GroundHeight is the Y coordinate of the ground plane.
	GroundHeight float64
}

func DefaultConfig() Config {
	return Config{Gravity: -9.81, CellSize: 1, MaxActors: 16384}
}

type body struct {
	id        ActorID
	kind      Kind
	pos       r3.Vector
	vel       r3.Vector
	half      r3.Vector
	radius    float64
	mass      float64
	kinematic bool
	color     color.RGBA

	target    r3.Vector
	hasTarget bool
}

func (b *body) bounds() (lo, hi r3.Vector) {
	switch b.kind {
	case KindSphere:
		r := r3.Vector{X: b.radius, Y: b.radius, Z: b.radius}
		return b.pos.Sub(r), b.pos.Add(r)
	default:
		return b.pos.Sub(b.half), b.pos.Add(b.half)
	}
}

func (b *body) snapshot() ActorSnapshot {
	return ActorSnapshot{
		ID:          b.id,
		Kind:        b.kind,
		Position:    b.pos,
		Velocity:    b.vel,
		HalfExtents: b.half,
		Radius:      b.radius,
		Kinematic:   b.kinematic,
		Color:       b.color,
	}
}
