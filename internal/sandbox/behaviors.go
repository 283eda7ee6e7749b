package sandbox

import (
	"math"

	bt "github.com/joeycumines/go-behaviortree"
)

// defaultBehaviors builds the mob's own AI: chase the goal target when one
// is set, otherwise wander around after a cooldown. The tree runs inside
// World.Step with the world lock held.
func (w *World) defaultBehaviors(a *Actor) bt.Node {
	return bt.New(
		bt.Selector,
		bt.New(
			bt.Sequence,
			bt.New(func([]bt.Node) (bt.Status, error) {
				if a.goalTarget == nil || a.goalTarget.world != a.world {
					return bt.Failure, nil
				}
				return bt.Success, nil
			}),
			bt.New(func([]bt.Node) (bt.Status, error) {
				return w.chaseLocked(a), nil
			}),
		),
		bt.New(
			bt.Sequence,
			bt.New(func([]bt.Node) (bt.Status, error) {
				if a.route != nil {
					return bt.Failure, nil
				}
				a.wanderCooldown--
				if a.wanderCooldown > 0 {
					return bt.Failure, nil
				}
				return bt.Success, nil
			}),
			bt.New(func([]bt.Node) (bt.Status, error) {
				return w.wanderLocked(a), nil
			}),
		),
	)
}

func (w *World) chaseLocked(a *Actor) bt.Status {
	target := a.goalTarget
	if a.pos.sub(target.pos).lenSq() <= w.cfg.ArrivalDistance*w.cfg.ArrivalDistance {
		return bt.Success
	}
	a.route = &Route{Dest: target.pos, Target: target.id}
	a.speed = 1
	return bt.Running
}

func (w *World) wanderLocked(a *Actor) bt.Status {
	a.wanderCooldown = w.cfg.WanderCooldownTicks
	if w.cfg.WanderRadius == 0 {
		return bt.Failure
	}
	angle := w.rng.Float64() * 2 * math.Pi
	distance := w.rng.Float64() * w.cfg.WanderRadius
	a.route = &Route{Dest: Vec{
		X: a.pos.X + math.Cos(angle)*distance,
		Y: a.pos.Y + math.Sin(angle)*distance,
	}}
	a.speed = 1
	return bt.Success
}
