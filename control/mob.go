package control

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/mortu/Controllable-Mobs-API/action"
	"github.com/mortu/Controllable-Mobs-API/attributes"
	"github.com/mortu/Controllable-Mobs-API/goal"
	"github.com/mortu/Controllable-Mobs-API/host"
	"github.com/mortu/Controllable-Mobs-API/internal/telemetry"
	"github.com/mortu/Controllable-Mobs-API/logging"
	controllog "github.com/mortu/Controllable-Mobs-API/logging/control"
)

// Mob is the controller of a single actor. It owns one goal per action kind,
// the current action of each kind and the attribute overrides applied while
// the actor is under control.
type Mob struct {
	id    string
	actor host.Actor
	host  host.Host

	publisher logging.Publisher
	metrics   telemetry.Metrics

	mu       sync.Mutex
	actions  map[action.Kind]action.Action
	goals    map[action.Kind]*goal.Goal
	released bool
	// ticking is set while the selector runs. Selector changes requested by
	// goal callbacks (or other goroutines) during that window are queued in
	// deferred and applied once the pass returns.
	ticking  bool
	deferred []func()

	// states and activeMask mirror the selector after every pass so readers
	// never wait on a running tick.
	states     map[action.Kind]*atomic.Uint32
	activeMask atomic.Uint32

	// tickMu serialises access to the selector: ticks, custom goal
	// registration and release.
	tickMu          sync.Mutex
	selector        *goal.Selector
	custom          []*goal.Goal
	attrs           *attributes.Overrides[host.Actor]
	clearedDefaults bool
	followSpeed     float64

	// ctx and tick describe the tick being run; only touched under tickMu.
	ctx      context.Context
	tick     uint64
	lastTick atomic.Uint64
}

func newMob(h host.Host, actor host.Actor, cfg Config) *Mob {
	m := &Mob{
		id:          uuid.NewString(),
		actor:       actor,
		host:        h,
		publisher:   cfg.Publisher,
		metrics:     cfg.Metrics,
		actions:     make(map[action.Kind]action.Action),
		goals:       make(map[action.Kind]*goal.Goal),
		states:      make(map[action.Kind]*atomic.Uint32),
		attrs:       attributes.NewOverrides[host.Actor](h, actor),
		followSpeed: cfg.FollowSpeed,
		ctx:         context.Background(),
	}
	m.selector = goal.NewSelector(mobListener{m})
	for i, kind := range action.Kinds() {
		desc, _ := action.Describe(kind)
		if delay, ok := cfg.Cadence[kind]; ok && delay > 0 {
			desc.DelayTicks = delay
		}
		priority := i
		if p, ok := cfg.Priority[kind]; ok {
			priority = p
		}
		m.goals[kind] = m.selector.Add(behaviorFor(m, desc, priority))
		m.states[kind] = new(atomic.Uint32)
	}
	return m
}

// ID returns the controller's unique id. A re-assigned actor gets a new id.
func (m *Mob) ID() string {
	return m.id
}

// Actor returns the controlled actor.
func (m *Mob) Actor() host.Actor {
	return m.actor
}

func (m *Mob) ref() logging.EntityRef {
	return logging.EntityRef{ID: m.actor.ActorID(), Kind: logging.EntityKindActor}
}

// SetAction replaces the action of a.Kind(). The goal picks the change up on
// its next evaluation; nothing is restarted eagerly.
func (m *Mob) SetAction(a action.Action) error {
	if !a.Valid() {
		return action.ErrInvalidParameters
	}
	m.mu.Lock()
	if m.released {
		m.mu.Unlock()
		return ErrNotAssigned
	}
	m.actions[a.Kind()] = a
	m.mu.Unlock()

	var target *logging.EntityRef
	if a.HasTarget() {
		target = &logging.EntityRef{ID: a.Target().ActorID(), Kind: logging.EntityKindActor}
	}
	controllog.ActionSet(context.Background(), m.publisher, m.lastTick.Load(), m.ref(), target, controllog.ActionSetPayload{
		Kind:   a.Kind().String(),
		Action: a.String(),
	}, map[string]any{"controllerId": m.id})
	return nil
}

// ClearAction removes the action of kind. An active goal of that kind ends on
// its next continue check.
func (m *Mob) ClearAction(kind action.Kind) {
	m.mu.Lock()
	_, existed := m.actions[kind]
	delete(m.actions, kind)
	m.mu.Unlock()
	if !existed {
		return
	}
	controllog.ActionSet(context.Background(), m.publisher, m.lastTick.Load(), m.ref(), nil, controllog.ActionSetPayload{
		Kind:    kind.String(),
		Cleared: true,
	}, map[string]any{"controllerId": m.id})
}

// Action returns the current action of kind.
func (m *Mob) Action(kind action.Kind) (action.Action, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actions[kind]
	return a, ok
}

// Goal returns the built-in goal of kind, or nil once released. The goal is
// only safe to inspect from goal callbacks or between ticks.
func (m *Mob) Goal(kind action.Kind) *goal.Goal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.goals[kind]
}

// GoalState returns the lifecycle state of the goal of kind as of the last
// completed arbitration pass. It is safe to call from goal callbacks.
func (m *Mob) GoalState(kind action.Kind) goal.State {
	state, ok := m.states[kind]
	if !ok {
		return goal.StateIdle
	}
	return goal.State(state.Load())
}

// Attributes exposes override/restore operations on the actor's attributes.
func (m *Mob) Attributes() *attributes.Overrides[host.Actor] {
	return m.attrs
}

// AdjustMaximumNavigationDistance widens the follow range override so the
// host navigation accepts paths of at least distance. It never shrinks it.
func (m *Mob) AdjustMaximumNavigationDistance(distance float64) {
	current, err := m.attrs.Get(attributes.FollowRange)
	if err == nil {
		if distance <= current {
			return
		}
		err = m.attrs.Set(attributes.FollowRange, distance)
	}
	if err != nil {
		// The host binding does not expose a follow range.
		m.metrics.Add("control.attribute_errors", 1)
	}
}

// AddBehavior registers a custom goal alongside the built-in ones. It is
// removed when the actor is unassigned. Called from a goal callback, the goal
// joins arbitration from the next tick.
func (m *Mob) AddBehavior(b goal.Behavior) (*goal.Goal, error) {
	m.mu.Lock()
	if m.released {
		m.mu.Unlock()
		return nil, ErrNotAssigned
	}
	if m.ticking {
		g := goal.New(b)
		m.deferred = append(m.deferred, func() { m.attach(g) })
		m.mu.Unlock()
		return g, nil
	}
	m.mu.Unlock()

	m.tickMu.Lock()
	defer m.tickMu.Unlock()
	if m.isReleased() {
		return nil, ErrNotAssigned
	}
	g := goal.New(b)
	m.attach(g)
	return g, nil
}

func (m *Mob) attach(g *goal.Goal) {
	if m.isReleased() {
		return
	}
	m.selector.Attach(g)
	m.custom = append(m.custom, g)
}

// RemoveBehavior ends and unregisters a goal added with AddBehavior. Called
// from a goal callback, the removal runs once the current tick finishes and
// reports true.
func (m *Mob) RemoveBehavior(g *goal.Goal) bool {
	m.mu.Lock()
	if m.ticking {
		m.deferred = append(m.deferred, func() { m.detach(g) })
		m.mu.Unlock()
		return true
	}
	m.mu.Unlock()

	m.tickMu.Lock()
	defer m.tickMu.Unlock()
	removed := m.detach(g)
	m.publishView()
	return removed
}

func (m *Mob) detach(g *goal.Goal) bool {
	for i, candidate := range m.custom {
		if candidate != g {
			continue
		}
		m.custom = append(m.custom[:i], m.custom[i+1:]...)
		return m.selector.Remove(g, goal.EndForced)
	}
	return false
}

// ActiveMask returns the union of the mutex bits held by active goals as of
// the last completed arbitration pass.
func (m *Mob) ActiveMask() goal.Mask {
	return goal.Mask(m.activeMask.Load())
}

func (m *Mob) isReleased() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}

// publishView copies the selector state for lock-free readers. Callers hold
// tickMu.
func (m *Mob) publishView() {
	m.activeMask.Store(uint32(m.selector.Claimed()))
	m.mu.Lock()
	goals := m.goals
	m.mu.Unlock()
	for kind, state := range m.states {
		state.Store(uint32(goals[kind].State()))
	}
}

func (m *Mob) runTick(ctx context.Context, tick uint64) {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()
	m.mu.Lock()
	if m.released {
		m.mu.Unlock()
		return
	}
	m.ticking = true
	m.mu.Unlock()
	// Runs on panic too so queued releases are never lost.
	defer m.finishTick()

	m.ctx = ctx
	m.tick = tick
	m.lastTick.Store(tick)
	m.selector.Tick()
}

func (m *Mob) finishTick() {
	m.mu.Lock()
	m.ticking = false
	ops := m.deferred
	m.deferred = nil
	m.mu.Unlock()
	for _, op := range ops {
		op()
	}
	m.publishView()
}

// releaseFunc receives the outcome of a release: the number of goals whose
// end ran and the restored attribute names.
type releaseFunc func(ended int, restored []attributes.Name)

// release marks the controller released and then forcibly ends every goal,
// drops goals and actions, optionally restores attributes and resumes
// suspended host behaviours. When a tick is running the teardown is queued
// behind it; done is called once the teardown has run.
func (m *Mob) release(ctx context.Context, tick uint64, resetAttributes bool, done releaseFunc) {
	m.mu.Lock()
	m.released = true
	if m.ticking {
		m.deferred = append(m.deferred, func() { m.teardown(ctx, tick, resetAttributes, done) })
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.tickMu.Lock()
	defer m.tickMu.Unlock()
	m.teardown(ctx, tick, resetAttributes, done)
	m.publishView()
}

// teardown runs with tickMu held.
func (m *Mob) teardown(ctx context.Context, tick uint64, resetAttributes bool, done releaseFunc) {
	m.ctx = ctx
	m.tick = tick
	ended, faults := m.selector.Clear(goal.EndForced)
	for _, fault := range faults {
		m.metrics.Add("control.goal_faults", 1)
		controllog.GoalFault(ctx, m.publisher, tick, m.ref(), controllog.FaultPayload{
			ControllerID: m.id,
			Goal:         fault.Goal.Name(),
			Panic:        fmt.Sprint(fault.Panic),
		}, nil)
	}
	m.custom = nil

	m.mu.Lock()
	m.goals = make(map[action.Kind]*goal.Goal)
	m.actions = make(map[action.Kind]action.Action)
	m.mu.Unlock()

	var restored []attributes.Name
	if resetAttributes {
		restored = m.attrs.ResetAll()
	}
	if m.clearedDefaults {
		m.host.RestoreDefaultBehaviors(m.actor)
		m.clearedDefaults = false
	}
	if done != nil {
		done(ended, restored)
	}
}

// mobListener turns goal transitions into metrics and control events.
type mobListener struct {
	m *Mob
}

func (l mobListener) GoalStarted(g *goal.Goal) {
	m := l.m
	m.metrics.Add("control.goal_starts", 1)
	controllog.GoalStarted(m.ctx, m.publisher, m.tick, m.ref(), controllog.GoalPayload{
		Goal:  g.Name(),
		Mutex: g.Mutex().String(),
	}, map[string]any{"controllerId": m.id})
}

func (l mobListener) GoalEnded(g *goal.Goal, reason goal.EndReason) {
	m := l.m
	m.metrics.Add("control.goal_ends", 1)
	controllog.GoalEnded(m.ctx, m.publisher, m.tick, m.ref(), controllog.GoalPayload{
		Goal:   g.Name(),
		Mutex:  g.Mutex().String(),
		Reason: string(reason),
	}, map[string]any{"controllerId": m.id})
}
