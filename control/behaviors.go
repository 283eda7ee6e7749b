package control

import (
	"math"

	"github.com/mortu/Controllable-Mobs-API/action"
	"github.com/mortu/Controllable-Mobs-API/goal"
	"github.com/mortu/Controllable-Mobs-API/host"
)

// behaviorFor binds the descriptor of a built-in kind to the mob's host.
func behaviorFor(m *Mob, desc action.Descriptor, priority int) goal.Behavior {
	b := goal.Behavior{
		Name:       desc.Name,
		DelayTicks: desc.DelayTicks,
		Mutex:      desc.Mutex,
		Priority:   priority,
	}
	switch desc.Kind {
	case action.KindFollow:
		bindFollow(m, &b)
	case action.KindLook:
		bindLook(m, &b)
	case action.KindTarget:
		bindTarget(m, &b)
	}
	return b
}

// targetOf returns the target of the current action of kind, or nil.
func (m *Mob) targetOf(kind action.Kind) (action.Action, host.Actor) {
	a, ok := m.Action(kind)
	if !ok {
		return action.Action{}, nil
	}
	return a, a.Target()
}

func (m *Mob) worldMismatch(kind action.Kind) bool {
	_, target := m.targetOf(kind)
	if target == nil {
		return false
	}
	return !m.host.SameWorld(m.actor, target)
}

// FOLLOW: navigate towards the target once it is farther than the maximum
// distance and stop once it is within the minimum distance.
func bindFollow(m *Mob, b *goal.Behavior) {
	var (
		path     host.Path
		followed host.Actor
	)
	b.Required = func() bool {
		a, target := m.targetOf(action.KindFollow)
		if target == nil {
			return false
		}
		return m.host.SquaredDistance(m.actor, target) > a.MaximumDistanceSquared()
	}
	b.Blocked = func() bool {
		return m.worldMismatch(action.KindFollow)
	}
	b.CanStart = func() bool {
		_, target := m.targetOf(action.KindFollow)
		if target == nil {
			return false
		}
		m.AdjustMaximumNavigationDistance(math.Sqrt(m.host.SquaredDistance(m.actor, target)))
		p, ok := m.host.CreatePath(m.actor, target)
		if !ok {
			return false
		}
		path = p
		followed = target
		return true
	}
	b.OnStart = func() {
		m.host.FollowPath(m.actor, path, m.followSpeed)
	}
	b.CanContinue = func() bool {
		a, target := m.targetOf(action.KindFollow)
		if target == nil || target != followed {
			return false
		}
		return m.host.IsNavigating(m.actor) && m.host.SquaredDistance(m.actor, target) > a.MinimumDistanceSquared()
	}
	b.OnEnd = func() {
		m.host.StopNavigation(m.actor)
		path = nil
		followed = nil
	}
}

// LOOK: keep the actor's aim on the target.
func bindLook(m *Mob, b *goal.Behavior) {
	var watched host.Actor
	b.Required = func() bool {
		_, target := m.targetOf(action.KindLook)
		return target != nil
	}
	b.Blocked = func() bool {
		return m.worldMismatch(action.KindLook)
	}
	b.OnStart = func() {
		_, watched = m.targetOf(action.KindLook)
		m.host.LookAt(m.actor, watched)
	}
	b.CanContinue = func() bool {
		_, target := m.targetOf(action.KindLook)
		return target != nil && target == watched
	}
	b.OnEnd = func() {
		m.host.LookAt(m.actor, nil)
		watched = nil
	}
}

// TARGET: hand the target to the host's own attack behaviours. A nil target
// ends the goal, which clears the host target.
func bindTarget(m *Mob, b *goal.Behavior) {
	var targeted host.Actor
	b.Required = func() bool {
		_, target := m.targetOf(action.KindTarget)
		return target != nil
	}
	b.Blocked = func() bool {
		return m.worldMismatch(action.KindTarget)
	}
	b.OnStart = func() {
		_, targeted = m.targetOf(action.KindTarget)
		if targeted == nil {
			return
		}
		m.AdjustMaximumNavigationDistance(math.Sqrt(m.host.SquaredDistance(m.actor, targeted) * 2))
		m.host.SetGoalTarget(m.actor, targeted)
		m.host.SetLegacyTarget(m.actor, targeted)
	}
	b.CanContinue = func() bool {
		_, target := m.targetOf(action.KindTarget)
		return target != nil && target == targeted
	}
	b.OnEnd = func() {
		m.host.SetGoalTarget(m.actor, nil)
		m.host.SetLegacyTarget(m.actor, nil)
		targeted = nil
	}
}
