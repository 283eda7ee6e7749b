package sim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mortu/Controllable-Mobs-API/internal/sandbox"
	"github.com/mortu/Controllable-Mobs-API/internal/telemetry"
	"github.com/mortu/Controllable-Mobs-API/logging"
)

type recordingCore struct {
	mu      sync.Mutex
	deps    Deps
	applied [][]Command
	steps   []uint64
}

func (c *recordingCore) Deps() Deps { return c.deps }

func (c *recordingCore) Apply(_ context.Context, cmds []Command) []CommandResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applied = append(c.applied, cmds)
	results := make([]CommandResult, len(cmds))
	for i, cmd := range cmds {
		results[i] = CommandResult{Command: cmd}
	}
	return results
}

func (c *recordingCore) Step(_ context.Context, tick uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = append(c.steps, tick)
}

func (c *recordingCore) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	var tick uint64
	if len(c.steps) > 0 {
		tick = c.steps[len(c.steps)-1]
	}
	return Snapshot{Tick: tick}
}

func (c *recordingCore) stepCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.steps)
}

func TestLoopEnqueueEnforcesPerActorLimit(t *testing.T) {
	metrics := &logging.Metrics{}
	core := &recordingCore{deps: Deps{Metrics: telemetry.WrapMetrics(metrics)}}
	var drops []string
	loop := NewLoop(core, LoopConfig{CommandCapacity: 8, PerActorLimit: 2}, LoopHooks{
		OnCommandDrop: func(reason string, cmd Command) {
			drops = append(drops, reason+":"+cmd.ActorID)
		},
	})

	for i := 0; i < 3; i++ {
		ok, reason := loop.Enqueue(Command{ActorID: "zombie", Type: CommandSetAction})
		if i < 2 && !ok {
			t.Fatalf("expected command %d to be accepted, got %s", i, reason)
		}
		if i == 2 && (ok || reason != CommandRejectQueueLimit) {
			t.Fatalf("expected third command to hit the per-actor limit, got ok=%v reason=%q", ok, reason)
		}
	}
	if ok, _ := loop.Enqueue(Command{ActorID: "wolf", Type: CommandAssign}); !ok {
		t.Fatalf("expected other actors to be unaffected by the limit")
	}
	if len(drops) != 1 || drops[0] != CommandRejectQueueLimit+":zombie" {
		t.Fatalf("unexpected drop notifications: %v", drops)
	}
	if got := metrics.Snapshot()[loopDroppedMetricKey]; got != 1 {
		t.Fatalf("expected one dropped command metric, got %d", got)
	}

	result := loop.Advance(context.Background(), LoopTickContext{Tick: 1})
	if len(result.Commands) != 3 || len(result.Results) != 3 {
		t.Fatalf("expected three commands applied, got %d", len(result.Commands))
	}
	if loop.Pending() != 0 || loop.Tick() != 1 {
		t.Fatalf("unexpected loop state pending=%d tick=%d", loop.Pending(), loop.Tick())
	}
	if ok, _ := loop.Enqueue(Command{ActorID: "zombie"}); !ok {
		t.Fatalf("expected per-actor budget to reset after a tick")
	}
}

func TestLoopEnqueueReportsFullBuffer(t *testing.T) {
	core := &recordingCore{}
	var warnings []int
	loop := NewLoop(core, LoopConfig{CommandCapacity: 2, WarningStep: 2}, LoopHooks{
		OnQueueWarning: func(length int) { warnings = append(warnings, length) },
	})
	loop.Enqueue(Command{ActorID: "a"})
	loop.Enqueue(Command{ActorID: "b"})
	if ok, reason := loop.Enqueue(Command{ActorID: "c"}); ok || reason != CommandRejectQueueFull {
		t.Fatalf("expected queue_full, got ok=%v reason=%q", ok, reason)
	}
	if len(warnings) != 1 || warnings[0] != 2 {
		t.Fatalf("expected a single warning at length 2, got %v", warnings)
	}
	if drained := loop.DrainCommands(); len(drained) != 2 {
		t.Fatalf("expected two staged commands, got %d", len(drained))
	}
}

func TestLoopRunAdvancesUntilCancelled(t *testing.T) {
	core := &recordingCore{}
	var next uint64 = 100
	results := make(chan LoopStepResult, 16)
	loop := NewLoop(core, LoopConfig{TickRate: 200}, LoopHooks{
		NextTick: func() uint64 {
			next++
			return next
		},
		AfterStep: func(result LoopStepResult) {
			select {
			case results <- result:
			default:
			}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		select {
		case result := <-results:
			if result.Tick != uint64(101+i) {
				t.Fatalf("expected tick %d, got %d", 101+i, result.Tick)
			}
			if result.Budget != 5*time.Millisecond {
				t.Fatalf("unexpected budget %s", result.Budget)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for tick %d", i)
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("loop did not stop after cancellation")
	}
	if core.stepCount() < 3 {
		t.Fatalf("expected at least three steps, got %d", core.stepCount())
	}
}

func TestLoopDrivesEngine(t *testing.T) {
	engine, world := newTestEngine(t)
	zombie := world.Spawn(sandbox.ArchetypeZombie, "overworld", 0, 0)
	loop := NewLoop(engine, LoopConfig{}, LoopHooks{})
	if loop.TickRate() != defaultTickRate {
		t.Fatalf("expected default tick rate, got %d", loop.TickRate())
	}

	loop.Enqueue(Command{ActorID: zombie.ActorID(), Type: CommandAssign, Assign: &AssignCommand{ClearDefaultBehavior: true}})
	result := loop.Advance(context.Background(), LoopTickContext{Tick: 7})
	if result.Results[0].Err != nil {
		t.Fatalf("assign failed: %v", result.Results[0].Err)
	}
	if result.Snapshot.Tick != 7 || len(result.Snapshot.Mobs) != 1 {
		t.Fatalf("unexpected snapshot %+v", result.Snapshot)
	}
	if calls := world.Calls(zombie); calls.ClearDefaults != 1 || calls.DefaultTicks != 0 {
		t.Fatalf("unexpected host calls %+v", calls)
	}
}
