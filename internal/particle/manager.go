package particle

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/zeusync/proxyfield/internal/core/events/bus"
	"github.com/zeusync/proxyfield/internal/core/observability/log"
	"github.com/zeusync/proxyfield/internal/flow"
	"github.com/zeusync/proxyfield/internal/physics"
	"github.com/zeusync/proxyfield/internal/sensor"
)

// Transform maps color pixels and depth samples into world units.
type Transform struct {
	DepthOffset float64
	DepthScale  float64
	PixelScale  float64
}

// Pose places a particle: x grows right from the frame centre, y grows up
// from the bottom edge, z is depth past the offset.
func (t Transform) Pose(x, y, depth float32) physics.Pose {
	return physics.PoseAt(
		(float64(x)-sensor.ColorWidth/2)/t.PixelScale,
		(sensor.ColorHeight-float64(y))/t.PixelScale,
		(float64(depth)-t.DepthOffset)/t.DepthScale,
	)
}

// Config tunes spawning and advection.
type Config struct {
	GridStride    int
	Radius        float64
	Density       float64
	VelocityScale float32
	// Depths are accepted when DepthMin < depth < DepthMax.
	DepthMin, DepthMax uint16
	Transform          Transform
}

// DefaultConfig returns the reference tuning: stride 5, velocity scale 3 and
// the 500 to 2000 mm band.
func DefaultConfig() Config {
	return Config{
		GridStride:    5,
		Radius:        0.04,
		Density:       1,
		VelocityScale: 3,
		DepthMin:      500,
		DepthMax:      2000,
		Transform:     Transform{DepthOffset: 500, DepthScale: 50, PixelScale: 50},
	}
}

func (c Config) validate() error {
	if c.GridStride < 1 {
		return fmt.Errorf("%w: grid stride %d", ErrInvalidConfig, c.GridStride)
	}
	if !(c.Radius > 0) || !(c.Density > 0) {
		return fmt.Errorf("%w: radius %v density %v", ErrInvalidConfig, c.Radius, c.Density)
	}
	if c.DepthMin >= c.DepthMax {
		return fmt.Errorf("%w: depth band (%d, %d)", ErrInvalidConfig, c.DepthMin, c.DepthMax)
	}
	if !(c.Transform.DepthScale > 0) || !(c.Transform.PixelScale > 0) {
		return fmt.Errorf("%w: transform scales must be positive", ErrInvalidConfig)
	}
	return nil
}

// InBand reports whether depth lies strictly inside the acceptance band.
func (c Config) InBand(depth uint16) bool {
	return depth > c.DepthMin && depth < c.DepthMax
}

// Manager owns the tracked particles. Each record carries its own physics
// actor handle, so a particle and its actor are created and released together.
// Spawn, Advect and Clear must be called from one goroutine, between physics
// steps; the read accessors are safe from any goroutine.
type Manager struct {
	cfg    Config
	world  World
	logger log.Log
	events bus.EventBus

	mu      sync.RWMutex
	records map[uuid.UUID]*Particle
	// spawn order; compacted in place on removal
	order []uuid.UUID
	mask  *OccupancyMask

	lastSpawn SpawnStats
	// events queued under mu, published after it is released
	pending []bus.Event
}

// Option customizes a Manager.
type Option func(*Manager)

// WithEventBus publishes spawn and removal events on b.
func WithEventBus(b bus.EventBus) Option {
	return func(m *Manager) {
		m.events = b
	}
}

// NewManager validates cfg and returns an empty manager driving world.
func NewManager(cfg Config, world World, logger log.Log, opts ...Option) (*Manager, error) {
	if world == nil {
		return nil, ErrNilWorld
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		cfg:     cfg,
		world:   world,
		logger:  logger.With(log.String("component", "particles")),
		records: make(map[uuid.UUID]*Particle),
		mask:    NewOccupancyMask(cfg.GridStride),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Spawn walks the color frame on the grid stride and creates a particle on
// every player pixel whose grid point is unclaimed, whose depth is in band and
// whose sphere would not overlap an existing body. It returns the number of
// particles created.
func (m *Manager) Spawn(view FrameView) int {
	m.mu.Lock()
	n := m.spawnLocked(view)
	pending := m.takePending()
	m.mu.Unlock()

	m.flush(pending)
	return n
}

func (m *Manager) spawnLocked(view FrameView) int {
	m.mask.Reset()
	for _, p := range m.records {
		m.mask.Claim(p.X, p.Y)
	}

	var stats SpawnStats
	stride := m.cfg.GridStride
	geom := physics.Sphere{Radius: m.cfg.Radius}
	for y := 0; y < sensor.ColorHeight; y += stride {
		for x := 0; x < sensor.ColorWidth; x += stride {
			fx, fy := float32(x), float32(y)
			if m.mask.Claimed(fx, fy) {
				stats.Occupied++
				continue
			}
			di, ok := view.depthIndex(x, y)
			if !ok {
				continue
			}
			if view.Player != nil {
				if !view.Player.Contains(x, y) {
					continue
				}
			} else if view.BodyIndex[di] == sensor.BodyIndexNone {
				continue
			}
			stats.Candidates++

			depth := view.Depth[di]
			if !m.cfg.InBand(depth) {
				stats.OutOfBand++
				continue
			}
			pose := m.cfg.Transform.Pose(fx, fy, float32(depth))
			if m.world.OverlapsAny(geom, pose) {
				stats.Vetoed++
				continue
			}

			tint := view.tint(x, y)
			actor, err := m.world.CreateKinematicSphere(pose.Position, m.cfg.Radius, m.cfg.Density, physics.WithColor(tint))
			if err != nil {
				stats.Failed++
				m.logger.Warn("particle actor creation failed",
					log.Int("x", x), log.Int("y", y), log.Error(err))
				continue
			}

			p := &Particle{ID: uuid.New(), X: fx, Y: fy, Depth: float32(depth), Actor: actor, Tint: tint}
			m.records[p.ID] = p
			m.order = append(m.order, p.ID)
			m.mask.Claim(fx, fy)
			stats.Spawned++
			m.publish(EventSpawned, SpawnedEvent{Particle: *p})
		}
	}

	m.lastSpawn = stats
	if stats.Failed > 0 || stats.Spawned > 0 {
		m.logger.Debug("spawn pass",
			log.Int("spawned", stats.Spawned),
			log.Int("vetoed", stats.Vetoed),
			log.Int("out_of_band", stats.OutOfBand),
			log.Int("failed", stats.Failed),
			log.Int("live", len(m.order)),
			log.Int("claimed_cells", m.mask.Len()),
		)
	}
	return stats.Spawned
}

// Advect moves every particle along field, then drops particles that left
// the frame, lost their depth mapping, stopped being tracked or left the depth
// band. Survivors push their new pose as kinematic target for the next step.
// A nil field moves nothing but still validates. A particle whose actor the
// world refuses to release stays tracked until a later pass succeeds.
func (m *Manager) Advect(field *flow.Field, view FrameView) AdvectStats {
	m.mu.Lock()
	stats := m.advectLocked(field, view)
	pending := m.takePending()
	m.mu.Unlock()

	m.flush(pending)
	return stats
}

func (m *Manager) advectLocked(field *flow.Field, view FrameView) AdvectStats {
	var stats AdvectStats
	ratio := 1
	if field != nil {
		ratio = field.Scale()
	}

	kept := 0
	for _, id := range m.order {
		p := m.records[id]

		if field != nil {
			gx, gy := int(p.X)/ratio, int(p.Y)/ratio
			if p.X >= 0 && p.Y >= 0 {
				if dx, dy, ok := field.At(gx, gy); ok && (dx != 0 || dy != 0) {
					p.X += m.cfg.VelocityScale * dx
					p.Y += m.cfg.VelocityScale * dy
					stats.Moved++
				}
			}
		}

		depth, reason, ok := m.validate(p, view)
		if ok {
			p.Depth = float32(depth)
			err := m.world.SetKinematicTarget(p.Actor, m.cfg.Transform.Pose(p.X, p.Y, p.Depth))
			if err != nil {
				m.logger.Warn("kinematic target rejected", log.Stringer("particle", p.ID), log.Error(err))
				reason, ok = ReasonActorLost, false
			}
		}
		if !ok {
			if m.removeLocked(p, reason) {
				stats.Removals[reason]++
				continue
			}
			// the world still holds the actor; retried on the next pass
			stats.Deferred++
		} else {
			p.Age++
			stats.Kept++
		}
		m.order[kept] = id
		kept++
	}
	clear(m.order[kept:])
	m.order = m.order[:kept]
	return stats
}

// validate checks p against the current frame and returns its depth sample.
// The mapping sentinel is checked before any buffer is indexed.
func (m *Manager) validate(p *Particle, view FrameView) (uint16, RemovalReason, bool) {
	if math.IsNaN(float64(p.X)) || math.IsNaN(float64(p.Y)) ||
		p.X < 0 || p.Y < 0 || p.X >= sensor.ColorWidth || p.Y >= sensor.ColorHeight {
		return 0, ReasonOutOfFrame, false
	}
	di, ok := view.depthIndex(int(p.X), int(p.Y))
	if !ok {
		return 0, ReasonInvalidMapping, false
	}
	if view.BodyIndex[di] == sensor.BodyIndexNone {
		return 0, ReasonUntracked, false
	}
	depth := view.Depth[di]
	if !m.cfg.InBand(depth) {
		return 0, ReasonDepthOutOfBand, false
	}
	return depth, 0, true
}

// removeLocked releases the actor and drops the record in one operation.
// When the world refuses the release the record is kept and false returned.
// An actor the world no longer knows counts as released.
func (m *Manager) removeLocked(p *Particle, reason RemovalReason) bool {
	if err := m.world.RemoveActor(p.Actor); err != nil && !errors.Is(err, physics.ErrActorNotFound) {
		m.logger.Warn("particle actor release failed",
			log.Stringer("particle", p.ID), log.Stringer("reason", reason), log.Error(err))
		return false
	}
	delete(m.records, p.ID)
	m.publish(EventRemoved, RemovedEvent{Particle: *p, Reason: reason})
	return true
}

// Clear removes every particle and its actor. Particles whose actor cannot be
// released right now stay tracked.
func (m *Manager) Clear() {
	m.mu.Lock()
	kept := m.order[:0]
	for _, id := range m.order {
		if !m.removeLocked(m.records[id], ReasonCleared) {
			kept = append(kept, id)
		}
	}
	clear(m.order[len(kept):])
	m.order = kept
	m.mask.Reset()
	pending := m.takePending()
	m.mu.Unlock()

	m.flush(pending)
}

// Len returns the number of live particles.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Get returns a copy of one particle.
func (m *Manager) Get(id uuid.UUID) (Particle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.records[id]
	if !ok {
		return Particle{}, false
	}
	return *p, true
}

// Particles copies the live particles in spawn order.
func (m *Manager) Particles() []Particle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Particle, len(m.order))
	for i, id := range m.order {
		out[i] = *m.records[id]
	}
	return out
}

// LastSpawn reports the statistics of the most recent Spawn.
func (m *Manager) LastSpawn() SpawnStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSpawn
}

func (m *Manager) publish(eventType string, data any) {
	if m.events == nil {
		return
	}
	m.pending = append(m.pending, bus.NewEvent(eventType, "particles", data))
}

func (m *Manager) takePending() []bus.Event {
	pending := m.pending
	m.pending = nil
	return pending
}

func (m *Manager) flush(pending []bus.Event) {
	for _, e := range pending {
		if err := m.events.Publish(e); err != nil {
			m.logger.Warn("event handler failed", log.String("event", e.Type()), log.Error(err))
		}
	}
}

func (v FrameView) depthIndex(x, y int) (int, bool) {
	i := y*sensor.ColorWidth + x
	if i < 0 || i >= len(v.Coords) {
		return 0, false
	}
	di, ok := v.Coords[i].Index()
	if !ok || di >= len(v.Depth) || di >= len(v.BodyIndex) {
		return 0, false
	}
	return di, true
}

func (v FrameView) tint(x, y int) color.RGBA {
	if v.Color == nil {
		return color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}
	return v.Color.RGBAAt(x, y)
}
