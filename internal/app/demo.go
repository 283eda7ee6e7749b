package app

import (
	"github.com/mortu/Controllable-Mobs-API/action"
	"github.com/mortu/Controllable-Mobs-API/attributes"
	"github.com/mortu/Controllable-Mobs-API/internal/sandbox"
	"github.com/mortu/Controllable-Mobs-API/internal/sim"
)

const (
	demoFollowMin = 4
	demoFollowMax = 36
)

// demoCommands scripts the first controllable actors: the leader follows the
// second actor and also asks to look at it, which loses arbitration to FOLLOW
// while the two are apart. A third actor targets the leader with its default
// AI still running.
func demoCommands(actors []*sandbox.Actor) []sim.Command {
	var controllable []*sandbox.Actor
	for _, actor := range actors {
		if actor.Archetype() != sandbox.ArchetypeArmorStand {
			controllable = append(controllable, actor)
		}
	}
	if len(controllable) < 2 {
		return nil
	}
	leader, followee := controllable[0].ActorID(), controllable[1].ActorID()

	cmds := []sim.Command{
		{ActorID: leader, Type: sim.CommandAssign, Assign: &sim.AssignCommand{ClearDefaultBehavior: true}},
		{ActorID: leader, Type: sim.CommandSetAttribute, Attribute: &sim.AttributeCommand{
			Name:  string(attributes.MovementSpeed),
			Value: 0.35,
		}},
		{ActorID: leader, Type: sim.CommandSetAction, Action: &sim.ActionCommand{
			Kind:               action.KindFollow.String(),
			TargetID:           followee,
			MinDistanceSquared: demoFollowMin,
			MaxDistanceSquared: demoFollowMax,
		}},
		{ActorID: leader, Type: sim.CommandSetAction, Action: &sim.ActionCommand{
			Kind:     action.KindLook.String(),
			TargetID: followee,
		}},
	}
	if len(controllable) > 2 {
		hunter := controllable[2].ActorID()
		cmds = append(cmds,
			sim.Command{ActorID: hunter, Type: sim.CommandAssign, Assign: &sim.AssignCommand{}},
			sim.Command{ActorID: hunter, Type: sim.CommandSetAction, Action: &sim.ActionCommand{
				Kind:     action.KindTarget.String(),
				TargetID: leader,
			}},
		)
	}
	return cmds
}
