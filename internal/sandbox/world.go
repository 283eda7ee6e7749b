// Package sandbox is an in-memory game world implementing host.Host. It keeps
// actors on flat 2D planes, moves them along straight-line routes and runs a
// small behaviour tree as each mob's default AI.
package sandbox

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/google/uuid"
	bt "github.com/joeycumines/go-behaviortree"
)

const (
	defaultSpeedScale     = 4.0
	defaultWanderRadius   = 8.0
	defaultWanderCooldown = 40
	defaultArrival        = 0.25
	defaultSeed           = 1
)

// Vec is a point on a world plane.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec) sub(o Vec) Vec { return Vec{X: v.X - o.X, Y: v.Y - o.Y} }

func (v Vec) lenSq() float64 { return v.X*v.X + v.Y*v.Y }

// Config tunes movement and the default behaviours.
type Config struct {
	// SpeedScale converts movement speed × navigation speed into distance
	// per tick.
	SpeedScale          float64
	WanderRadius        float64
	WanderCooldownTicks int
	ArrivalDistance     float64
	Seed                int64
}

// DefaultConfig returns the sandbox defaults.
func DefaultConfig() Config {
	return Config{
		SpeedScale:          defaultSpeedScale,
		WanderRadius:        defaultWanderRadius,
		WanderCooldownTicks: defaultWanderCooldown,
		ArrivalDistance:     defaultArrival,
		Seed:                defaultSeed,
	}
}

func (cfg Config) normalized() Config {
	normalized := cfg
	if normalized.SpeedScale <= 0 {
		normalized.SpeedScale = defaultSpeedScale
	}
	if normalized.WanderRadius < 0 {
		normalized.WanderRadius = 0
	}
	if normalized.WanderCooldownTicks <= 0 {
		normalized.WanderCooldownTicks = defaultWanderCooldown
	}
	if normalized.ArrivalDistance <= 0 {
		normalized.ArrivalDistance = defaultArrival
	}
	return normalized
}

// Route is the straight-line path handed out by CreatePath.
type Route struct {
	Dest   Vec
	Target string
}

// CallCounts records how often each host capability was exercised for one
// actor.
type CallCounts struct {
	CreatePath      int `json:"createPath"`
	FollowPath      int `json:"followPath"`
	StopNavigation  int `json:"stopNavigation"`
	SetGoalTarget   int `json:"setGoalTarget"`
	SetLegacyTarget int `json:"setLegacyTarget"`
	LookAt          int `json:"lookAt"`
	ClearDefaults   int `json:"clearDefaults"`
	RestoreDefaults int `json:"restoreDefaults"`
	DefaultTicks    int `json:"defaultTicks"`
}

// Actor is a sandbox mob. All mutable state is guarded by the owning World.
type Actor struct {
	id        string
	archetype Archetype
	world     string
	pos       Vec
	stats     Component

	route *Route
	speed float64

	goalTarget   *Actor
	legacyTarget *Actor
	lookTarget   *Actor

	defaults        bt.Node
	defaultsCleared bool
	wanderCooldown  int

	calls CallCounts
}

// ActorID returns the actor's unique id.
func (a *Actor) ActorID() string {
	if a == nil {
		return ""
	}
	return a.id
}

// Archetype returns the kind of mob.
func (a *Actor) Archetype() Archetype {
	return a.archetype
}

// ActorSnapshot is a read-only view of an actor.
type ActorSnapshot struct {
	ID              string             `json:"id"`
	Archetype       string             `json:"archetype"`
	World           string             `json:"world"`
	Position        Vec                `json:"position"`
	Navigating      bool               `json:"navigating"`
	GoalTarget      string             `json:"goalTarget,omitempty"`
	LookTarget      string             `json:"lookTarget,omitempty"`
	DefaultsCleared bool               `json:"defaultsCleared"`
	Attributes      map[string]float64 `json:"attributes"`
}

// World owns every sandbox actor. Methods are safe for concurrent use; Step
// and the host capabilities are expected to run on the tick goroutine.
type World struct {
	mu     sync.Mutex
	cfg    Config
	rng    *rand.Rand
	actors map[string]*Actor
	order  []*Actor
	tick   uint64
}

// New constructs an empty world.
func New(cfg Config) *World {
	cfg = cfg.normalized()
	return &World{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		actors: make(map[string]*Actor),
	}
}

// Spawn adds an actor of archetype at (x, y) on the named world plane.
func (w *World) Spawn(archetype Archetype, world string, x, y float64) *Actor {
	a := &Actor{
		id:        uuid.NewString(),
		archetype: archetype,
		world:     world,
		pos:       Vec{X: x, Y: y},
		stats:     NewComponent(DefaultBase(archetype)),
	}
	if archetype != ArchetypeArmorStand {
		a.defaults = w.defaultBehaviors(a)
	}

	w.mu.Lock()
	a.wanderCooldown = w.rng.Intn(w.cfg.WanderCooldownTicks) + 1
	w.actors[a.id] = a
	w.order = append(w.order, a)
	w.mu.Unlock()
	return a
}

// Actor resolves an actor by id.
func (w *World) Actor(id string) (*Actor, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.actors[id]
	return a, ok
}

// Actors returns every actor in spawn order.
func (w *World) Actors() []*Actor {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*Actor, len(w.order))
	copy(out, w.order)
	return out
}

// Remove despawns the actor. Targets pointing at it are cleared.
func (w *World) Remove(a *Actor) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.actors[a.ActorID()]; !ok {
		return false
	}
	delete(w.actors, a.id)
	for i, candidate := range w.order {
		if candidate == a {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	for _, other := range w.order {
		if other.goalTarget == a {
			other.goalTarget = nil
		}
		if other.legacyTarget == a {
			other.legacyTarget = nil
		}
		if other.lookTarget == a {
			other.lookTarget = nil
		}
	}
	return true
}

// Teleport moves the actor to (x, y) on the named world plane and drops its
// current route.
func (w *World) Teleport(a *Actor, world string, x, y float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a.world = world
	a.pos = Vec{X: x, Y: y}
	a.route = nil
}

// Position reports the world plane and coordinates of the actor.
func (w *World) Position(a *Actor) (string, Vec) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return a.world, a.pos
}

// Calls returns the capability counters of the actor.
func (w *World) Calls(a *Actor) CallCounts {
	w.mu.Lock()
	defer w.mu.Unlock()
	return a.calls
}

// Tick returns the last stepped tick.
func (w *World) Tick() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tick
}

// Step advances the world one tick: default behaviours run for actors that
// still have them, then every actor moves along its route.
func (w *World) Step(tick uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tick = tick
	for _, a := range w.order {
		if a.defaults != nil && !a.defaultsCleared {
			a.calls.DefaultTicks++
			// Leaf failures are expected outcomes of a selector; errors are
			// never produced by the sandbox leaves.
			_, _ = a.defaults.Tick()
		}
		w.advanceLocked(a)
	}
}

func (w *World) advanceLocked(a *Actor) {
	if a.route == nil {
		return
	}
	step := w.cfg.SpeedScale * a.stats.Get(StatMovementSpeed) * a.speed
	delta := a.route.Dest.sub(a.pos)
	dist := math.Sqrt(delta.lenSq())
	if dist <= step || dist <= w.cfg.ArrivalDistance {
		a.pos = a.route.Dest
		a.route = nil
		return
	}
	if step <= 0 {
		return
	}
	a.pos.X += delta.X / dist * step
	a.pos.Y += delta.Y / dist * step
}

// Snapshot returns a view of every actor in spawn order.
func (w *World) Snapshot() []ActorSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]ActorSnapshot, 0, len(w.order))
	for _, a := range w.order {
		snap := ActorSnapshot{
			ID:              a.id,
			Archetype:       a.archetype.String(),
			World:           a.world,
			Position:        a.pos,
			Navigating:      a.route != nil,
			GoalTarget:      a.goalTarget.ActorID(),
			LookTarget:      a.lookTarget.ActorID(),
			DefaultsCleared: a.defaultsCleared,
			Attributes:      make(map[string]float64, StatCount),
		}
		for stat, value := range a.stats.Totals() {
			snap.Attributes[string(statNames[stat])] = value
		}
		out = append(out, snap)
	}
	return out
}

// Worlds lists the distinct world planes in use, sorted.
func (w *World) Worlds() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	seen := make(map[string]struct{})
	for _, a := range w.order {
		seen[a.world] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
