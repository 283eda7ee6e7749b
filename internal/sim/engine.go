package sim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/mortu/Controllable-Mobs-API/action"
	"github.com/mortu/Controllable-Mobs-API/attributes"
	"github.com/mortu/Controllable-Mobs-API/control"
	"github.com/mortu/Controllable-Mobs-API/host"
	"github.com/mortu/Controllable-Mobs-API/internal/sandbox"
)

var (
	// ErrMissingWorld indicates NewEngine was invoked without a world instance.
	ErrMissingWorld = errors.New("sim: world is nil")
	// ErrMissingRegistry indicates NewEngine was invoked without a registry.
	ErrMissingRegistry = errors.New("sim: registry is nil")
	// ErrUnknownActor indicates a command referenced an actor id the world
	// does not know.
	ErrUnknownActor = errors.New("sim: unknown actor")
	// ErrMalformedCommand indicates a command is missing its payload or names
	// an unknown kind.
	ErrMalformedCommand = errors.New("sim: malformed command")
)

// EngineCore is the surface the loop drives once per tick.
type EngineCore interface {
	Deps() Deps
	Apply(ctx context.Context, cmds []Command) []CommandResult
	Step(ctx context.Context, tick uint64)
	Snapshot() Snapshot
}

// Engine applies controller commands to the registry and advances the
// registry and the sandbox world in lockstep.
type Engine struct {
	deps     Deps
	world    *sandbox.World
	registry *control.Registry
	tick     atomic.Uint64
}

// NewEngine binds a registry to the sandbox world it controls.
func NewEngine(world *sandbox.World, registry *control.Registry, deps Deps) (*Engine, error) {
	if world == nil {
		return nil, ErrMissingWorld
	}
	if registry == nil {
		return nil, ErrMissingRegistry
	}
	return &Engine{deps: deps.normalized(), world: world, registry: registry}, nil
}

// Deps returns the injected dependencies.
func (e *Engine) Deps() Deps {
	return e.deps
}

// World returns the controlled sandbox.
func (e *Engine) World() *sandbox.World {
	return e.world
}

// Registry returns the controller registry.
func (e *Engine) Registry() *control.Registry {
	return e.registry
}

// HasActor reports whether id resolves to a live actor.
func (e *Engine) HasActor(id string) bool {
	_, ok := e.world.Actor(id)
	return ok
}

// Tick returns the last stepped tick.
func (e *Engine) Tick() uint64 {
	return e.tick.Load()
}

// Apply executes cmds in order. A failing command does not stop the batch.
func (e *Engine) Apply(ctx context.Context, cmds []Command) []CommandResult {
	if len(cmds) == 0 {
		return nil
	}
	results := make([]CommandResult, 0, len(cmds))
	for _, cmd := range cmds {
		err := e.apply(ctx, cmd)
		if err != nil {
			e.deps.Logger.Printf("[sim] command %s for %s failed: %v", cmd.Type, cmd.ActorID, err)
		}
		results = append(results, CommandResult{Command: cmd, Err: err})
	}
	return results
}

func (e *Engine) apply(ctx context.Context, cmd Command) error {
	actor, ok := e.world.Actor(cmd.ActorID)
	if !ok {
		return fmt.Errorf("%s %q: %w", cmd.Type, cmd.ActorID, ErrUnknownActor)
	}

	switch cmd.Type {
	case CommandAssign:
		clearDefaults := cmd.Assign != nil && cmd.Assign.ClearDefaultBehavior
		_, err := e.registry.Assign(actor, clearDefaults)
		return err
	case CommandUnassign:
		reset := cmd.Unassign != nil && cmd.Unassign.ResetAttributes
		return e.registry.UnassignActor(actor, reset)
	}

	mob, err := e.registry.Get(actor)
	if err != nil {
		return err
	}

	switch cmd.Type {
	case CommandSetAction:
		a, err := e.buildAction(cmd.Action)
		if err != nil {
			return err
		}
		return mob.SetAction(a)
	case CommandClearAction:
		if cmd.Action == nil {
			return fmt.Errorf("%s: missing action: %w", cmd.Type, ErrMalformedCommand)
		}
		kind, ok := ParseKind(cmd.Action.Kind)
		if !ok {
			return fmt.Errorf("%s: kind %q: %w", cmd.Type, cmd.Action.Kind, ErrMalformedCommand)
		}
		mob.ClearAction(kind)
		return nil
	case CommandSetAttribute:
		if cmd.Attribute == nil {
			return fmt.Errorf("%s: missing attribute: %w", cmd.Type, ErrMalformedCommand)
		}
		return mob.Attributes().Set(attributes.Name(cmd.Attribute.Name), cmd.Attribute.Value)
	case CommandResetAttribute:
		if cmd.Attribute == nil || cmd.Attribute.Name == "" {
			mob.Attributes().ResetAll()
			return nil
		}
		return mob.Attributes().Reset(attributes.Name(cmd.Attribute.Name))
	default:
		return fmt.Errorf("type %q: %w", cmd.Type, ErrMalformedCommand)
	}
}

// ParseKind resolves an action kind name in any case.
func ParseKind(name string) (action.Kind, bool) {
	return action.ParseKind(strings.ToUpper(strings.TrimSpace(name)))
}

func (e *Engine) buildAction(payload *ActionCommand) (action.Action, error) {
	if payload == nil {
		return action.Action{}, fmt.Errorf("%s: missing action: %w", CommandSetAction, ErrMalformedCommand)
	}
	kind, ok := ParseKind(payload.Kind)
	if !ok {
		return action.Action{}, fmt.Errorf("%s: kind %q: %w", CommandSetAction, payload.Kind, ErrMalformedCommand)
	}

	// Keep target a nil interface when no id was given; a typed nil pointer
	// would read as a set target.
	var target host.Actor
	if payload.TargetID != "" {
		resolved, ok := e.world.Actor(payload.TargetID)
		if !ok {
			return action.Action{}, fmt.Errorf("target %q: %w", payload.TargetID, ErrUnknownActor)
		}
		target = resolved
	}

	switch kind {
	case action.KindFollow:
		return action.NewFollow(target, payload.MinDistanceSquared, payload.MaxDistanceSquared)
	case action.KindLook:
		return action.NewLook(target)
	default:
		return action.NewTarget(target)
	}
}

// Step runs the controllers for tick and then advances the world.
func (e *Engine) Step(ctx context.Context, tick uint64) {
	e.registry.Tick(ctx, tick)
	e.world.Step(tick)
	e.tick.Store(tick)
}

// Snapshot captures the world and every controller.
func (e *Engine) Snapshot() Snapshot {
	snapshot := Snapshot{
		Tick:   e.tick.Load(),
		Worlds: e.world.Worlds(),
		Actors: e.world.Snapshot(),
	}
	for _, mob := range e.registry.Mobs() {
		snapshot.Mobs = append(snapshot.Mobs, snapshotMob(mob))
	}
	return snapshot
}

var _ EngineCore = (*Engine)(nil)
