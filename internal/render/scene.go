package render

import (
	"context"
	"time"

	"github.com/zeusync/proxyfield/internal/physics"
)

// Primitive is one drawable actor. Position is the world-space centre; Size
// holds half extents for boxes and the radius in every component for spheres.
type Primitive struct {
	ID       uint64     `json:"id"`
	Kind     string     `json:"kind"`
	Position [3]float64 `json:"position"`
	Size     [3]float64 `json:"size"`
	Color    [4]uint8   `json:"color"`
}

// Stats are the per-tick pipeline numbers shown next to the scene.
type Stats struct {
	Particles int     `json:"particles"`
	Spawned   int     `json:"spawned"`
	Removed   int     `json:"removed"`
	Dt        float64 `json:"dt"`
}

type Scene struct {
	Frame      uint64      `json:"frame"`
	Timestamp  time.Time   `json:"timestamp"`
	Stats      Stats       `json:"stats"`
	Primitives []Primitive `json:"primitives"`
}

// ActorSource enumerates the live physics actors.
type ActorSource interface {
	Actors() []physics.ActorSnapshot
}

// Sink consumes finished scenes. Render is called from the render loop and
// must not block on slow consumers.
type Sink interface {
	Render(ctx context.Context, scene *Scene) error
}

// BuildScene converts the current actor list into drawable primitives.
func BuildScene(world ActorSource, frame uint64, ts time.Time, stats Stats) *Scene {
	actors := world.Actors()
	scene := &Scene{
		Frame:      frame,
		Timestamp:  ts,
		Stats:      stats,
		Primitives: make([]Primitive, 0, len(actors)),
	}
	for _, a := range actors {
		p := Primitive{
			ID:       uint64(a.ID),
			Kind:     a.Kind.String(),
			Position: [3]float64{a.Position.X, a.Position.Y, a.Position.Z},
			Color:    [4]uint8{a.Color.R, a.Color.G, a.Color.B, a.Color.A},
		}
		switch a.Kind {
		case physics.KindBox:
			p.Size = [3]float64{a.HalfExtents.X, a.HalfExtents.Y, a.HalfExtents.Z}
		case physics.KindSphere:
			p.Size = [3]float64{a.Radius, a.Radius, a.Radius}
		}
		scene.Primitives = append(scene.Primitives, p)
	}
	return scene
}
