package physics

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/golang/geo/r3"

	"github.com/zeusync/proxyfield/internal/core/observability/log"
)

// World owns a small rigid-body simulation: a static ground plane, dynamic
// boxes and kinematic spheres. All methods are safe for concurrent use, but
// mutations are rejected while a step is in flight.
type World struct {
	mu     sync.Mutex
	cfg    Config
	logger log.Log

	nextID ActorID
	bodies map[ActorID]*body
	// creation order, for deterministic iteration
	order []ActorID
	grid  *grid

	ground    ActorID
	hasGround bool

	inFlight bool
	done     chan struct{}
	closed   bool
}

// NewWorld validates cfg and creates an empty world.
func NewWorld(cfg Config, logger log.Log) (*World, error) {
	if math.IsNaN(cfg.Gravity) || math.IsInf(cfg.Gravity, 0) {
		return nil, fmt.Errorf("%w: gravity %v", ErrInvalidWorldConfig, cfg.Gravity)
	}
	if !(cfg.CellSize > 0) || math.IsInf(cfg.CellSize, 1) {
		return nil, fmt.Errorf("%w: cell size %v", ErrInvalidWorldConfig, cfg.CellSize)
	}
	if cfg.MaxActors < 1 {
		return nil, fmt.Errorf("%w: max actors %d", ErrInvalidWorldConfig, cfg.MaxActors)
	}

	w := &World{
		cfg:    cfg,
		logger: logger.With(log.String("component", "physics")),
		bodies: make(map[ActorID]*body),
		grid:   newGrid(cfg.CellSize),
	}
	w.logger.Info("physics world created",
		log.Float64("gravity", cfg.Gravity),
		log.Float64("cell_size", cfg.CellSize),
		log.Int("max_actors", cfg.MaxActors),
	)
	return w, nil
}

// mutable must be called with mu held.
func (w *World) mutable() error {
	if w.closed {
		return ErrWorldClosed
	}
	if w.inFlight {
		return ErrStepInFlight
	}
	return nil
}

// AddGroundPlane adds the static ground at the configured height. Calling it
// again returns the existing plane.
func (w *World) AddGroundPlane() (ActorID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.mutable(); err != nil {
		return 0, err
	}
	if w.hasGround {
		return w.ground, nil
	}
	w.nextID++
	b := &body{
		id:    w.nextID,
		kind:  KindPlane,
		pos:   r3.Vector{Y: w.cfg.GroundHeight},
		color: defaultPlaneColor,
	}
	w.bodies[b.id] = b
	w.order = append(w.order, b.id)
	w.ground, w.hasGround = b.id, true
	return b.id, nil
}

// CreateBox adds a dynamic axis-aligned box driven by gravity.
func (w *World) CreateBox(pos, halfExtents r3.Vector, density float64, opts ...ActorOption) (ActorID, error) {
	if !(halfExtents.X > 0 && halfExtents.Y > 0 && halfExtents.Z > 0) || !(density > 0) || !finite(pos) {
		return 0, fmt.Errorf("%w: box at %v with half extents %v and density %v", ErrInvalidGeometry, pos, halfExtents, density)
	}
	o := actorOptions{color: defaultBoxColor}
	for _, opt := range opts {
		opt(&o)
	}
	return w.add(&body{
		kind:  KindBox,
		pos:   pos,
		half:  halfExtents,
		mass:  density * 8 * halfExtents.X * halfExtents.Y * halfExtents.Z,
		color: o.color,
	})
}

// CreateKinematicSphere adds a sphere that only moves to targets set with
// SetKinematicTarget. It pushes boxes but is never pushed itself.
func (w *World) CreateKinematicSphere(pos r3.Vector, radius, density float64, opts ...ActorOption) (ActorID, error) {
	if !(radius > 0) || !(density > 0) || !finite(pos) {
		return 0, fmt.Errorf("%w: sphere at %v with radius %v and density %v", ErrInvalidGeometry, pos, radius, density)
	}
	o := actorOptions{color: defaultSphereColor}
	for _, opt := range opts {
		opt(&o)
	}
	return w.add(&body{
		kind:      KindSphere,
		pos:       pos,
		radius:    radius,
		mass:      density * 4 / 3 * math.Pi * radius * radius * radius,
		kinematic: true,
		color:     o.color,
	})
}

func (w *World) add(b *body) (ActorID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.mutable(); err != nil {
		return 0, err
	}
	if len(w.bodies) >= w.cfg.MaxActors {
		return 0, fmt.Errorf("%w: %d actors", ErrActorLimit, len(w.bodies))
	}
	w.nextID++
	b.id = w.nextID
	w.bodies[b.id] = b
	w.order = append(w.order, b.id)
	w.grid.insert(b)
	return b.id, nil
}

// SetKinematicTarget records where a kinematic body should be after the next
// step. The body does not move until then.
func (w *World) SetKinematicTarget(id ActorID, pose Pose) error {
	if !finite(pose.Position) {
		return fmt.Errorf("%w: target %v", ErrInvalidGeometry, pose.Position)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.mutable(); err != nil {
		return err
	}
	b, ok := w.bodies[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrActorNotFound, id)
	}
	if !b.kinematic {
		return fmt.Errorf("%w: %d", ErrNotKinematic, id)
	}
	b.target, b.hasTarget = pose.Position, true
	return nil
}

// RemoveActor releases a body. Its id is unknown to the world afterwards.
func (w *World) RemoveActor(id ActorID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.mutable(); err != nil {
		return err
	}
	b, ok := w.bodies[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrActorNotFound, id)
	}
	delete(w.bodies, id)
	if b.kind == KindPlane {
		w.hasGround = false
	} else {
		w.grid.remove(id)
	}
	for i, other := range w.order {
		if other == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	return nil
}

// OverlapsAny reports whether a sphere at pose touches any box or sphere.
// Bodies that merely touch do not overlap. The ground plane is not queried.
func (w *World) OverlapsAny(geom Sphere, pose Pose) bool {
	return len(w.Overlaps(geom, pose, QueryAnyHit)) > 0
}

// Overlaps lists bodies intersecting a sphere at pose. With QueryAnyHit at
// most one id is returned.
func (w *World) Overlaps(geom Sphere, pose Pose, mode QueryMode) []ActorID {
	if !(geom.Radius > 0) || !finite(pose.Position) {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	r := r3.Vector{X: geom.Radius, Y: geom.Radius, Z: geom.Radius}
	ids := w.grid.candidates(pose.Position.Sub(r), pose.Position.Add(r), make(map[ActorID]struct{}), nil)

	var hits []ActorID
	for _, id := range ids {
		b := w.bodies[id]
		if b == nil || !sphereHits(pose.Position, geom.Radius, b) {
			continue
		}
		hits = append(hits, id)
		if mode == QueryAnyHit {
			break
		}
	}
	return hits
}

// Actor returns a snapshot of one body.
func (w *World) Actor(id ActorID) (ActorSnapshot, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.bodies[id]
	if !ok {
		return ActorSnapshot{}, false
	}
	return b.snapshot(), true
}

// Actors snapshots every live body in creation order.
func (w *World) Actors() []ActorSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]ActorSnapshot, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.bodies[id].snapshot())
	}
	return out
}

// Count returns the number of live bodies of kind k.
func (w *World) Count(k Kind) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, b := range w.bodies {
		if b.kind == k {
			n++
		}
	}
	return n
}

// Simulate starts advancing the world by dt seconds in the background.
func (w *World) Simulate(dt float64) error {
	if !(dt > 0) || math.IsInf(dt, 1) {
		return fmt.Errorf("%w: %v", ErrInvalidTimestep, dt)
	}
	w.mu.Lock()
	if err := w.mutable(); err != nil {
		w.mu.Unlock()
		return err
	}
	w.inFlight = true
	done := make(chan struct{})
	w.done = done
	w.mu.Unlock()

	go func() {
		defer close(done)
		w.mu.Lock()
		defer w.mu.Unlock()
		w.integrate(dt)
	}()
	return nil
}

// FetchResults completes the pending step. With block set it waits until the
// step finishes or ctx is done; otherwise it reports false if the step is still
// running. With no step pending it returns true at once.
func (w *World) FetchResults(ctx context.Context, block bool) (bool, error) {
	w.mu.Lock()
	if !w.inFlight {
		w.mu.Unlock()
		return true, nil
	}
	done := w.done
	w.mu.Unlock()

	if block {
		select {
		case <-done:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	} else {
		select {
		case <-done:
		default:
			return false, nil
		}
	}

	w.mu.Lock()
	w.inFlight = false
	w.done = nil
	w.mu.Unlock()
	return true, nil
}

// Step simulates dt seconds and waits for the results. It is the single
// synchronization point of a frame. If ctx ends first the step still
// completes before Step returns ctx's error, so the world stays usable.
func (w *World) Step(ctx context.Context, dt float64) error {
	if err := w.Simulate(dt); err != nil {
		return err
	}
	_, err := w.FetchResults(ctx, true)
	if err != nil {
		// integrate only waits on mu, so this returns promptly
		_, _ = w.FetchResults(context.Background(), true)
	}
	return err
}

// Close waits for any in-flight step and releases every body.
func (w *World) Close() error {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()
	if done != nil {
		<-done
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.inFlight = false
	w.done = nil
	clear(w.bodies)
	w.order = nil
	w.grid.reset()
	w.logger.Info("physics world closed")
	return nil
}

func finite(v r3.Vector) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
