package sandbox

import (
	"github.com/mortu/Controllable-Mobs-API/attributes"
	"github.com/mortu/Controllable-Mobs-API/host"
)

// Version names this host binding.
const Version = "sandbox/1"

// rangeEpsilon absorbs rounding when the follow range was derived from a
// squared distance.
const rangeEpsilon = 1e-6

var _ host.Host = (*World)(nil)

// asActor unwraps a host actor. Foreign or nil values yield nil.
func asActor(actor host.Actor) *Actor {
	a, ok := actor.(*Actor)
	if !ok || a == nil {
		return nil
	}
	return a
}

func (w *World) SquaredDistance(a, b host.Actor) float64 {
	pa, pb := asActor(a), asActor(b)
	if pa == nil || pb == nil {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return pa.pos.sub(pb.pos).lenSq()
}

// SameWorld also reports false once either actor has been removed, so goals
// aimed at a despawned actor end as blocked.
func (w *World) SameWorld(a, b host.Actor) bool {
	pa, pb := asActor(a), asActor(b)
	if pa == nil || pb == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.actors[pa.id] != pa || w.actors[pb.id] != pb {
		return false
	}
	return pa.world == pb.world
}

// CreatePath plans a straight route to the target's current position. Paths
// longer than the actor's follow range, or across world planes, are refused.
func (w *World) CreatePath(actor, target host.Actor) (host.Path, bool) {
	a, t := asActor(actor), asActor(target)
	if a == nil || t == nil {
		return nil, false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	a.calls.CreatePath++
	if a.world != t.world {
		return nil, false
	}
	rangeLimit := a.stats.Get(StatFollowRange)
	if a.pos.sub(t.pos).lenSq() > rangeLimit*rangeLimit+rangeEpsilon {
		return nil, false
	}
	return &Route{Dest: t.pos, Target: t.id}, true
}

func (w *World) FollowPath(actor host.Actor, path host.Path, speed float64) {
	a := asActor(actor)
	route, ok := path.(*Route)
	if a == nil || !ok || route == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	a.calls.FollowPath++
	copied := *route
	a.route = &copied
	a.speed = speed
}

func (w *World) StopNavigation(actor host.Actor) {
	a := asActor(actor)
	if a == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	a.calls.StopNavigation++
	a.route = nil
}

func (w *World) IsNavigating(actor host.Actor) bool {
	a := asActor(actor)
	if a == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return a.route != nil
}

func (w *World) SetGoalTarget(actor, target host.Actor) {
	a := asActor(actor)
	if a == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	a.calls.SetGoalTarget++
	a.goalTarget = asActor(target)
}

func (w *World) SetLegacyTarget(actor, target host.Actor) {
	a := asActor(actor)
	if a == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	a.calls.SetLegacyTarget++
	a.legacyTarget = asActor(target)
}

// GoalTarget returns the actor's current goal target, or nil.
func (w *World) GoalTarget(a *Actor) *Actor {
	w.mu.Lock()
	defer w.mu.Unlock()
	return a.goalTarget
}

func (w *World) LookAt(actor, target host.Actor) {
	a := asActor(actor)
	if a == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	a.calls.LookAt++
	a.lookTarget = asActor(target)
}

func (w *World) ClearDefaultBehaviors(actor host.Actor) {
	a := asActor(actor)
	if a == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	a.calls.ClearDefaults++
	a.defaultsCleared = true
}

func (w *World) RestoreDefaultBehaviors(actor host.Actor) {
	a := asActor(actor)
	if a == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	a.calls.RestoreDefaults++
	a.defaultsCleared = false
}

func (w *World) AttributeHandle(name attributes.Name) (attributes.Handle, bool) {
	stat, ok := statFor(name)
	if !ok {
		return nil, false
	}
	return statHandle{stat: stat}, true
}

func (w *World) ReadAttribute(actor host.Actor, handle attributes.Handle) float64 {
	a := asActor(actor)
	h, ok := handle.(statHandle)
	if a == nil || !ok {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return a.stats.Get(h.stat)
}

func (w *World) WriteAttributeOverride(actor host.Actor, handle attributes.Handle, value float64) {
	a := asActor(actor)
	h, ok := handle.(statHandle)
	if a == nil || !ok {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	a.stats.SetOverride(h.stat, value)
}

func (w *World) ClearAttributeOverride(actor host.Actor, handle attributes.Handle) {
	a := asActor(actor)
	h, ok := handle.(statHandle)
	if a == nil || !ok {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	a.stats.ClearOverride(h.stat)
}

// Overrides reports how many attribute overrides the actor carries.
func (w *World) Overrides(a *Actor) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return a.stats.Overridden()
}

// IsControllable accepts live actors that have default behaviours to
// replace.
func (w *World) IsControllable(actor host.Actor) bool {
	a := asActor(actor)
	if a == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.actors[a.id]; !ok {
		return false
	}
	return a.archetype != ArchetypeArmorStand
}

func (w *World) Version() string {
	return Version
}
