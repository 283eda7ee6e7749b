package sim

import (
	"github.com/mortu/Controllable-Mobs-API/action"
	"github.com/mortu/Controllable-Mobs-API/control"
	"github.com/mortu/Controllable-Mobs-API/internal/sandbox"
)

// Snapshot is the read-only state exported after each step.
type Snapshot struct {
	Tick   uint64                  `json:"tick"`
	Worlds []string                `json:"worlds"`
	Actors []sandbox.ActorSnapshot `json:"actors"`
	Mobs   []MobSnapshot           `json:"mobs"`
}

// MobSnapshot describes one controller.
type MobSnapshot struct {
	ControllerID string            `json:"controllerId"`
	ActorID      string            `json:"actorId"`
	Goals        map[string]string `json:"goals"`
	Actions      map[string]string `json:"actions,omitempty"`
	Overrides    []string          `json:"overrides,omitempty"`
	ActiveMask   string            `json:"activeMask"`
}

func snapshotMob(mob *control.Mob) MobSnapshot {
	snap := MobSnapshot{
		ControllerID: mob.ID(),
		ActorID:      mob.Actor().ActorID(),
		Goals:        make(map[string]string, len(action.Kinds())),
		ActiveMask:   mob.ActiveMask().String(),
	}
	for _, kind := range action.Kinds() {
		snap.Goals[kind.String()] = mob.GoalState(kind).String()
		if a, ok := mob.Action(kind); ok {
			if snap.Actions == nil {
				snap.Actions = make(map[string]string)
			}
			snap.Actions[kind.String()] = a.String()
		}
	}
	for _, name := range mob.Attributes().Overridden() {
		snap.Overrides = append(snap.Overrides, string(name))
	}
	return snap
}

// Mob returns the snapshot of the controller bound to actorID.
func (s Snapshot) Mob(actorID string) (MobSnapshot, bool) {
	for _, mob := range s.Mobs {
		if mob.ActorID == actorID {
			return mob, true
		}
	}
	return MobSnapshot{}, false
}
