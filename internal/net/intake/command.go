// Package intake validates controller messages and stages them on the loop.
package intake

import (
	"time"

	"github.com/mortu/Controllable-Mobs-API/internal/net/proto"
	"github.com/mortu/Controllable-Mobs-API/internal/sim"
)

const (
	// RejectInvalidCommand indicates the message does not map to a command.
	RejectInvalidCommand = "invalid_command"
	// RejectUnknownActor indicates the message names an actor the world does
	// not know.
	RejectUnknownActor = "unknown_actor"
)

// Queue stages commands for the next tick.
type Queue interface {
	Enqueue(sim.Command) (bool, string)
}

type CommandContext struct {
	Queue    Queue
	HasActor func(string) bool
	Tick     func() uint64
	Now      func() time.Time
}

// StageClientCommand converts msg into a command and stages it. It returns the
// staged command or the reject reason.
func StageClientCommand(ctx CommandContext, msg proto.ClientMessage) (sim.Command, bool, string) {
	var zero sim.Command

	command, ok := proto.ClientCommand(msg)
	if !ok || msg.ActorID == "" {
		return zero, false, RejectInvalidCommand
	}
	if ctx.HasActor != nil {
		if !ctx.HasActor(msg.ActorID) {
			return zero, false, RejectUnknownActor
		}
		if command.Action != nil && command.Action.TargetID != "" && !ctx.HasActor(command.Action.TargetID) {
			return zero, false, RejectUnknownActor
		}
	}

	command.ActorID = msg.ActorID
	if ctx.Tick != nil {
		command.OriginTick = ctx.Tick()
	}
	if ctx.Now != nil {
		command.IssuedAt = ctx.Now()
	} else {
		command.IssuedAt = time.Now()
	}

	if ctx.Queue == nil {
		return zero, false, sim.CommandRejectQueueFull
	}
	if ok, reason := ctx.Queue.Enqueue(command); !ok {
		return zero, false, reason
	}
	return command, true, ""
}

// Retryable reports whether a reject reason is transient.
func Retryable(reason string) bool {
	return reason == sim.CommandRejectQueueLimit || reason == sim.CommandRejectQueueFull
}
