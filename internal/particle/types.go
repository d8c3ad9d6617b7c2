package particle

import (
	"image"
	"image/color"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"

	"github.com/zeusync/proxyfield/internal/mapping"
	"github.com/zeusync/proxyfield/internal/physics"
)

// World is the slice of the physics world the manager drives.
type World interface {
	OverlapsAny(geom physics.Sphere, pose physics.Pose) bool
	CreateKinematicSphere(pos r3.Vector, radius, density float64, opts ...physics.ActorOption) (physics.ActorID, error)
	SetKinematicTarget(id physics.ActorID, pose physics.Pose) error
	RemoveActor(id physics.ActorID) error
}

// Particle is one tracked point of the player surface. Positions are in color
// pixels, Depth in sensor millimetres.
type Particle struct {
	ID    uuid.UUID
	X, Y  float32
	Depth float32
	Actor physics.ActorID
	Tint  color.RGBA
	// Age counts the advection passes survived.
	Age int
}

// PlayerSampler tells whether a color pixel was attributed to a tracked player.
type PlayerSampler interface {
	Contains(x, y int) bool
}

// FrameView is what one tick exposes to the manager. Buffers belong to the
// caller and are only read during the call.
type FrameView struct {
	Depth     []uint16
	BodyIndex []uint8
	// Coords holds one depth-space point per color pixel.
	Coords []mapping.DepthSpacePoint
	// Color is used to tint new particles. Optional.
	Color *image.RGBA
	// Player restricts spawning to these pixels. Without it the body index at
	// the mapped depth pixel decides.
	Player PlayerSampler
}

type RemovalReason uint8

const (
	ReasonOutOfFrame RemovalReason = iota
	ReasonInvalidMapping
	ReasonUntracked
	ReasonDepthOutOfBand
	ReasonActorLost
	ReasonCleared
	reasonCount
)

func (r RemovalReason) String() string {
	switch r {
	case ReasonOutOfFrame:
		return "out_of_frame"
	case ReasonInvalidMapping:
		return "invalid_mapping"
	case ReasonUntracked:
		return "untracked"
	case ReasonDepthOutOfBand:
		return "depth_out_of_band"
	case ReasonActorLost:
		return "actor_lost"
	case ReasonCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// AdvectStats summarizes one advection pass.
type AdvectStats struct {
	// Moved counts particles displaced by a non-zero flow vector.
	Moved int
	Kept  int
	// Deferred counts failed particles kept because their actor could not
	// be released yet.
	Deferred int
	Removals [reasonCount]int
}

func (s AdvectStats) Removed() int {
	n := 0
	for _, c := range s.Removals {
		n += c
	}
	return n
}

// SpawnStats summarizes one spawn pass.
type SpawnStats struct {
	Candidates int
	Spawned    int
	Occupied   int
	OutOfBand  int
	Vetoed     int
	Failed     int
}

// Event types published on the bus.
const (
	EventSpawned = "particle.spawned"
	EventRemoved = "particle.removed"
)

type SpawnedEvent struct {
	Particle Particle
}

type RemovedEvent struct {
	Particle Particle
	Reason   RemovalReason
}
