package sim

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mortu/Controllable-Mobs-API/internal/telemetry"
	"github.com/mortu/Controllable-Mobs-API/logging"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to per-actor
	// queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the global command buffer is saturated.
	CommandRejectQueueFull = "queue_full"

	defaultTickRate = 20

	loopTicksMetricKey   = "sim.loop.ticks"
	loopClampedMetricKey = "sim.loop.clamped"
	loopDroppedMetricKey = "sim.loop.commands_dropped"
)

// LoopConfig tunes the command buffer and tick loop orchestration.
type LoopConfig struct {
	TickRate        int
	CatchupMaxTicks int
	CommandCapacity int
	PerActorLimit   int
	WarningStep     int
}

// LoopTickContext describes the tick about to run.
type LoopTickContext struct {
	Tick  uint64
	Now   time.Time
	Delta float64
}

// LoopStepResult summarises a completed tick.
type LoopStepResult struct {
	Tick         uint64
	Now          time.Time
	Delta        float64
	Duration     time.Duration
	Budget       time.Duration
	ClampedDelta bool
	MaxDelta     float64
	Commands     []Command
	Results      []CommandResult
	Snapshot     Snapshot
}

// LoopHooks lets the caller observe and sequence the loop. Every hook is
// optional.
type LoopHooks struct {
	NextTick       func() uint64
	Prepare        func(LoopTickContext)
	AfterStep      func(LoopStepResult)
	OnCommandDrop  func(reason string, cmd Command)
	OnQueueWarning func(length int)
}

// Loop coordinates command ingestion and the fixed-timestep simulation runner.
type Loop struct {
	core    EngineCore
	buffer  *CommandBuffer
	hooks   LoopHooks
	config  LoopConfig
	logger  telemetry.Logger
	metrics telemetry.Metrics
	clock   logging.Clock
	tick    atomic.Uint64

	queueMu       sync.Mutex
	perActorCount map[string]int
	dropCounts    map[string]uint64
}

// NewLoop wraps the provided engine core with a ring-buffer queue and loop.
func NewLoop(core EngineCore, cfg LoopConfig, hooks LoopHooks) *Loop {
	if core == nil {
		return nil
	}
	deps := core.Deps().normalized()
	if cfg.TickRate <= 0 {
		cfg.TickRate = defaultTickRate
	}
	return &Loop{
		core:          core,
		buffer:        NewCommandBuffer(cfg.CommandCapacity, deps.Metrics),
		hooks:         hooks,
		config:        cfg,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		clock:         deps.Clock,
		perActorCount: make(map[string]int),
		dropCounts:    make(map[string]uint64),
	}
}

// TickRate returns the configured ticks per second.
func (l *Loop) TickRate() int {
	if l == nil {
		return 0
	}
	return l.config.TickRate
}

// Tick returns the last advanced tick.
func (l *Loop) Tick() uint64 {
	if l == nil {
		return 0
	}
	return l.tick.Load()
}

// Snapshot delegates to the underlying engine.
func (l *Loop) Snapshot() Snapshot {
	if l == nil {
		return Snapshot{}
	}
	return l.core.Snapshot()
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.buffer.Len()
}

// DrainCommands clears the staged command queue without advancing the engine.
func (l *Loop) DrainCommands() []Command {
	if l == nil {
		return nil
	}
	return l.drainCommands()
}

// Enqueue stages a command, enforcing per-actor throttling and capacity limits.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	if l == nil {
		return false, CommandRejectQueueFull
	}
	reason := ""
	var dropCount uint64
	l.queueMu.Lock()
	if l.config.PerActorLimit > 0 && cmd.ActorID != "" {
		count := l.perActorCount[cmd.ActorID]
		if count >= l.config.PerActorLimit {
			reason = CommandRejectQueueLimit
			dropCount = l.incrementDropLocked(cmd.ActorID)
		} else {
			l.perActorCount[cmd.ActorID] = count + 1
		}
	}
	if reason == "" {
		if !l.buffer.Push(cmd) {
			reason = CommandRejectQueueFull
			dropCount = l.incrementDropLocked(cmd.ActorID)
			if cmd.ActorID != "" && l.perActorCount[cmd.ActorID] > 0 {
				l.perActorCount[cmd.ActorID]--
			}
		} else if l.config.WarningStep > 0 {
			length := l.buffer.Len()
			if length >= l.config.WarningStep && length%l.config.WarningStep == 0 {
				l.queueMu.Unlock()
				l.warnQueue(length)
				return true, ""
			}
		}
	}
	l.queueMu.Unlock()
	if reason != "" {
		l.reportDrop(reason, cmd, dropCount)
		return false, reason
	}
	return true, ""
}

// Advance executes a single simulation step using the staged commands.
func (l *Loop) Advance(ctx context.Context, tick LoopTickContext) LoopStepResult {
	if l == nil {
		return LoopStepResult{}
	}
	commands := l.drainCommands()
	if l.hooks.Prepare != nil {
		l.hooks.Prepare(tick)
	}
	results := l.core.Apply(ctx, commands)
	l.core.Step(ctx, tick.Tick)
	l.tick.Store(tick.Tick)
	l.metrics.Add(loopTicksMetricKey, 1)
	return LoopStepResult{
		Tick:     tick.Tick,
		Now:      tick.Now,
		Delta:    tick.Delta,
		Snapshot: l.core.Snapshot(),
		Commands: commands,
		Results:  results,
	}
}

// Run drives the fixed-timestep loop until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	if l == nil {
		return
	}
	tickRate := l.config.TickRate
	budgetDuration := time.Second / time.Duration(tickRate)
	ticker := time.NewTicker(budgetDuration)
	defer ticker.Stop()

	last := l.clock.Now()
	budgetSeconds := 1.0 / float64(tickRate)
	maxDt := budgetSeconds
	if l.config.CatchupMaxTicks > 1 {
		maxDt = budgetSeconds * float64(l.config.CatchupMaxTicks)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := l.clock.Now()
			dt := now.Sub(last).Seconds()
			clamped := false
			if dt <= 0 {
				dt = budgetSeconds
			} else if dt > maxDt {
				dt = maxDt
				clamped = true
				l.metrics.Add(loopClampedMetricKey, 1)
			}
			last = now

			var tick uint64
			if l.hooks.NextTick != nil {
				tick = l.hooks.NextTick()
			} else {
				tick = l.tick.Load() + 1
			}

			start := l.clock.Now()
			result := l.Advance(ctx, LoopTickContext{Tick: tick, Now: now, Delta: dt})
			result.Duration = l.clock.Now().Sub(start)
			result.Budget = budgetDuration
			result.ClampedDelta = clamped
			result.MaxDelta = maxDt

			if result.Duration > budgetDuration {
				l.logger.Printf("[loop] tick %d took %s (budget %s)", tick, result.Duration, budgetDuration)
			}
			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		}
	}
}

func (l *Loop) drainCommands() []Command {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	commands := l.buffer.Drain()
	if len(l.perActorCount) > 0 {
		l.perActorCount = make(map[string]int)
	}
	return commands
}

func (l *Loop) incrementDropLocked(actorID string) uint64 {
	l.metrics.Add(loopDroppedMetricKey, 1)
	if actorID == "" {
		return 0
	}
	count := l.dropCounts[actorID] + 1
	l.dropCounts[actorID] = count
	return count
}

func (l *Loop) warnQueue(length int) {
	if l.hooks.OnQueueWarning != nil {
		l.hooks.OnQueueWarning(length)
	}
}

func (l *Loop) reportDrop(reason string, cmd Command, count uint64) {
	if l.hooks.OnCommandDrop != nil {
		l.hooks.OnCommandDrop(reason, cmd)
	}
	// Log on powers of two.
	if count > 0 && count&(count-1) == 0 {
		l.logger.Printf(
			"[backpressure] dropping command actor=%s type=%s reason=%s count=%d limit=%d",
			cmd.ActorID,
			cmd.Type,
			reason,
			count,
			l.config.PerActorLimit,
		)
	}
}
