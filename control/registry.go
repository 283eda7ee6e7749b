// Package control assigns controllers to host actors and runs their goals on
// the host tick.
package control

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mortu/Controllable-Mobs-API/action"
	"github.com/mortu/Controllable-Mobs-API/attributes"
	"github.com/mortu/Controllable-Mobs-API/host"
	"github.com/mortu/Controllable-Mobs-API/internal/telemetry"
	"github.com/mortu/Controllable-Mobs-API/logging"
	controllog "github.com/mortu/Controllable-Mobs-API/logging/control"
)

// DefaultFollowSpeed is the navigation speed multiplier used by FOLLOW.
const DefaultFollowSpeed = 1.0

// Config tunes the controllers created by a Registry.
type Config struct {
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	// Cadence overrides the requirement check delay of a built-in kind.
	Cadence map[action.Kind]int
	// Priority overrides the arbitration priority of a built-in kind. Kinds
	// without an entry use their position in action.Kinds().
	Priority    map[action.Kind]int
	FollowSpeed float64
}

// DefaultConfig returns a configuration that discards events and metrics.
func DefaultConfig() Config {
	return Config{}.normalized()
}

func (cfg Config) normalized() Config {
	if cfg.Publisher == nil {
		cfg.Publisher = logging.NopPublisher()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NopMetrics()
	}
	if cfg.FollowSpeed <= 0 {
		cfg.FollowSpeed = DefaultFollowSpeed
	}
	cadence := make(map[action.Kind]int, len(cfg.Cadence))
	for kind, delay := range cfg.Cadence {
		if delay > 0 {
			cadence[kind] = delay
		}
	}
	cfg.Cadence = cadence
	priority := make(map[action.Kind]int, len(cfg.Priority))
	for kind, p := range cfg.Priority {
		priority[kind] = p
	}
	cfg.Priority = priority
	return cfg
}

// Registry maps actors to their controllers. All methods are safe for
// concurrent use; goal evaluation happens only inside Tick.
type Registry struct {
	host host.Host
	cfg  Config

	mu    sync.RWMutex
	mobs  map[host.Actor]*Mob
	order []*Mob

	tick atomic.Uint64
}

// NewRegistry constructs an empty registry bound to h.
func NewRegistry(h host.Host, cfg Config) *Registry {
	return &Registry{
		host: h,
		cfg:  cfg.normalized(),
		mobs: make(map[host.Actor]*Mob),
	}
}

// IsAssigned reports whether actor currently has a controller.
func (r *Registry) IsAssigned(actor host.Actor) bool {
	if actor == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.mobs[actor]
	return ok
}

// Get returns the controller of actor.
func (r *Registry) Get(actor host.Actor) (*Mob, error) {
	if actor == nil {
		return nil, fmt.Errorf("get: %w", ErrInvalidActor)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mobs[actor]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", actor.ActorID(), ErrNotAssigned)
	}
	return m, nil
}

// Assign puts actor under control. When clearDefaultBehavior is set the
// host's own behaviours are suspended until the actor is unassigned.
func (r *Registry) Assign(actor host.Actor, clearDefaultBehavior bool) (*Mob, error) {
	if actor == nil {
		return nil, fmt.Errorf("assign: %w", ErrInvalidActor)
	}
	if !r.host.IsControllable(actor) {
		return nil, fmt.Errorf("assign %s: %w", actor.ActorID(), ErrInvalidActor)
	}

	r.mu.Lock()
	if _, ok := r.mobs[actor]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("assign %s: %w", actor.ActorID(), ErrAlreadyAssigned)
	}
	m := r.assignLocked(actor, clearDefaultBehavior)
	r.mu.Unlock()

	r.publishAssigned(m, clearDefaultBehavior)
	return m, nil
}

// GetOrAssign returns the existing controller of actor or assigns a new one.
// clearDefaultBehavior only applies to a fresh assignment.
func (r *Registry) GetOrAssign(actor host.Actor, clearDefaultBehavior bool) (*Mob, error) {
	if actor == nil {
		return nil, fmt.Errorf("assign: %w", ErrInvalidActor)
	}
	r.mu.RLock()
	m, ok := r.mobs[actor]
	r.mu.RUnlock()
	if ok {
		return m, nil
	}
	if !r.host.IsControllable(actor) {
		return nil, fmt.Errorf("assign %s: %w", actor.ActorID(), ErrInvalidActor)
	}

	r.mu.Lock()
	if existing, ok := r.mobs[actor]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	m = r.assignLocked(actor, clearDefaultBehavior)
	r.mu.Unlock()

	r.publishAssigned(m, clearDefaultBehavior)
	return m, nil
}

func (r *Registry) assignLocked(actor host.Actor, clearDefaultBehavior bool) *Mob {
	m := newMob(r.host, actor, r.cfg)
	m.lastTick.Store(r.tick.Load())
	if clearDefaultBehavior {
		r.host.ClearDefaultBehaviors(actor)
		m.clearedDefaults = true
	}
	r.mobs[actor] = m
	r.order = append(r.order, m)
	r.cfg.Metrics.Add("control.assigned", 1)
	r.cfg.Metrics.Store("control.mobs", uint64(len(r.order)))
	return m
}

func (r *Registry) publishAssigned(m *Mob, clearDefaultBehavior bool) {
	controllog.Assigned(context.Background(), r.cfg.Publisher, r.tick.Load(), m.ref(), controllog.AssignedPayload{
		ControllerID:         m.id,
		ClearDefaultBehavior: clearDefaultBehavior,
		HostVersion:          r.host.Version(),
	}, nil)
}

// Unassign releases the controller. Active goals end with reason forced,
// actions and custom goals are dropped, attribute overrides are cleared when
// resetAttributes is set and suspended host behaviours are restored. A stale
// or foreign handle returns ErrNotAssigned.
//
// The actor leaves the registry immediately. Called while the controller is
// ticking, for example from one of its own goal callbacks, the teardown runs
// as soon as that tick's arbitration pass returns.
func (r *Registry) Unassign(m *Mob, resetAttributes bool) error {
	return r.unassign(context.Background(), m, resetAttributes)
}

// UnassignActor releases the controller of actor, if any.
func (r *Registry) UnassignActor(actor host.Actor, resetAttributes bool) error {
	m, err := r.Get(actor)
	if err != nil {
		return fmt.Errorf("unassign: %w", err)
	}
	return r.unassign(context.Background(), m, resetAttributes)
}

func (r *Registry) unassign(ctx context.Context, m *Mob, resetAttributes bool) error {
	if m == nil {
		return fmt.Errorf("unassign: %w", ErrNotAssigned)
	}
	r.mu.Lock()
	current, ok := r.mobs[m.actor]
	if !ok || current != m {
		r.mu.Unlock()
		return fmt.Errorf("unassign %s: %w", m.actor.ActorID(), ErrNotAssigned)
	}
	delete(r.mobs, m.actor)
	for i, candidate := range r.order {
		if candidate == m {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	remaining := len(r.order)
	r.mu.Unlock()

	tick := r.tick.Load()
	m.release(ctx, tick, resetAttributes, func(ended int, restored []attributes.Name) {
		r.cfg.Metrics.Add("control.unassigned", 1)
		r.cfg.Metrics.Store("control.mobs", uint64(remaining))
		controllog.Unassigned(ctx, r.cfg.Publisher, tick, m.ref(), controllog.UnassignedPayload{
			ControllerID:       m.id,
			ResetAttributes:    resetAttributes,
			GoalsEnded:         ended,
			RestoredAttributes: attributeNames(restored),
		}, nil)
	})
	return nil
}

func attributeNames(names []attributes.Name) []string {
	if len(names) == 0 {
		return nil
	}
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = string(name)
	}
	return out
}

// Len reports the number of assigned actors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Mobs returns the controllers in assignment order.
func (r *Registry) Mobs() []*Mob {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Mob, len(r.order))
	copy(out, r.order)
	return out
}

// Tick runs one goal arbitration pass for every controller. A panic raised
// by one controller's goals is reported and does not stop the others.
func (r *Registry) Tick(ctx context.Context, tick uint64) {
	if ctx == nil {
		ctx = context.Background()
	}
	r.tick.Store(tick)
	for _, m := range r.Mobs() {
		r.tickMob(ctx, tick, m)
	}
	r.cfg.Metrics.Add("control.ticks", 1)
}

func (r *Registry) tickMob(ctx context.Context, tick uint64, m *Mob) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		r.cfg.Metrics.Add("control.goal_faults", 1)
		controllog.GoalFault(ctx, r.cfg.Publisher, tick, m.ref(), controllog.FaultPayload{
			ControllerID: m.id,
			Panic:        fmt.Sprint(recovered),
		}, nil)
	}()
	m.runTick(ctx, tick)
}

// Close unassigns every controller with attribute reset.
func (r *Registry) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for _, m := range r.Mobs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.unassign(ctx, m, true); err != nil && !errors.Is(err, ErrNotAssigned) {
			return err
		}
	}
	return nil
}
