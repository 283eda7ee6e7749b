// Package goal implements the delayed, mutex-arbitrated lifecycle that runs a
// controller's behaviours on top of the host tick loop.
//
// Every Goal cycles Idle -> Checking -> Active -> Idle. The requirement check
// is throttled to a per-goal cadence, the blocked check runs every tick, and a
// Selector arbitrates the mutex masks of all goals of one actor so no two
// active goals ever claim the same resource bit.
package goal

import "fmt"

// Mask is a bitset of exclusive resource categories.
type Mask uint32

const (
	MutexMovement Mask = 1 << iota
	MutexLook
	MutexTarget
)

// Overlaps reports whether the two masks share a bit.
func (m Mask) Overlaps(other Mask) bool {
	return m&other != 0
}

func (m Mask) String() string {
	if m == 0 {
		return "none"
	}
	out := ""
	appendName := func(bit Mask, name string) {
		if m&bit == 0 {
			return
		}
		if out != "" {
			out += "|"
		}
		out += name
	}
	appendName(MutexMovement, "movement")
	appendName(MutexLook, "look")
	appendName(MutexTarget, "target")
	if rest := m &^ (MutexMovement | MutexLook | MutexTarget); rest != 0 {
		appendName(rest, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return out
}

// State is the lifecycle position of a goal.
type State uint8

const (
	// Idle goals have no positive requirement verdict.
	StateIdle State = iota
	// Checking goals are required and waiting to win arbitration.
	StateChecking
	// Active goals have started and hold their mutex bits.
	StateActive
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChecking:
		return "checking"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// EndReason explains an Active -> Idle transition.
type EndReason string

const (
	EndFinished  EndReason = "finished"
	EndBlocked   EndReason = "blocked"
	EndPreempted EndReason = "preempted"
	EndForced    EndReason = "forced"
)

// Behavior is the descriptor record a Goal is parameterised with. Nil
// predicates default to "not required", "not blocked", "can start" and "can
// continue"; nil callbacks are skipped.
type Behavior struct {
	Name       string
	DelayTicks int
	Mutex      Mask
	// Priority orders arbitration, lower values first. Registration order
	// breaks ties.
	Priority int

	Required    func() bool
	Blocked     func() bool
	CanStart    func() bool
	OnStart     func()
	CanContinue func() bool
	OnEnd       func()
}

// Stats counts lifecycle transitions.
type Stats struct {
	Starts uint64
	Ends   uint64
	Checks uint64
}

// Goal is one behaviour's state machine.
type Goal struct {
	behavior Behavior
	seq      int

	state     State
	countdown int
	verdict   bool
	stats     Stats
}

// New constructs an idle goal. The first requirement check runs on the first
// tick.
func New(b Behavior) *Goal {
	if b.DelayTicks < 1 {
		b.DelayTicks = 1
	}
	return &Goal{behavior: b}
}

// Name returns the behaviour name.
func (g *Goal) Name() string {
	if g == nil {
		return ""
	}
	return g.behavior.Name
}

// Mutex returns the resource bits claimed while active.
func (g *Goal) Mutex() Mask {
	if g == nil {
		return 0
	}
	return g.behavior.Mutex
}

// Priority returns the arbitration priority.
func (g *Goal) Priority() int {
	if g == nil {
		return 0
	}
	return g.behavior.Priority
}

// DelayTicks returns the requirement check cadence.
func (g *Goal) DelayTicks() int {
	if g == nil {
		return 0
	}
	return g.behavior.DelayTicks
}

// State returns the current lifecycle state.
func (g *Goal) State() State {
	if g == nil {
		return StateIdle
	}
	return g.state
}

// Active reports whether the goal currently holds its mutex bits.
func (g *Goal) Active() bool {
	return g.State() == StateActive
}

// Stats returns the transition counters.
func (g *Goal) Stats() Stats {
	if g == nil {
		return Stats{}
	}
	return g.stats
}

func (g *Goal) required() bool {
	g.stats.Checks++
	if g.behavior.Required == nil {
		return false
	}
	return g.behavior.Required()
}

func (g *Goal) blocked() bool {
	if g.behavior.Blocked == nil {
		return false
	}
	return g.behavior.Blocked()
}

func (g *Goal) canStart() bool {
	if g.behavior.CanStart == nil {
		return true
	}
	return g.behavior.CanStart()
}

func (g *Goal) canContinue() bool {
	if g.behavior.CanContinue == nil {
		return true
	}
	return g.behavior.CanContinue()
}

// poll advances the requirement throttle and reports whether an inactive goal
// requests activation this tick.
func (g *Goal) poll() bool {
	g.countdown--
	if g.countdown <= 0 {
		g.verdict = g.required()
		g.countdown = g.behavior.DelayTicks
	}
	if !g.verdict {
		g.state = StateIdle
		return false
	}
	if g.blocked() {
		g.state = StateIdle
		return false
	}
	g.state = StateChecking
	return true
}

// reject drops the cached verdict after a failed start so the next attempt
// waits for a fresh requirement check.
func (g *Goal) reject() {
	g.verdict = false
	g.state = StateIdle
}

func (g *Goal) start() {
	g.state = StateActive
	g.stats.Starts++
	if g.behavior.OnStart != nil {
		g.behavior.OnStart()
	}
}

// end runs the end callback once and returns the goal to Idle. The next tick
// re-evaluates the requirement instead of reusing a stale verdict.
func (g *Goal) end() {
	g.state = StateIdle
	g.verdict = false
	g.countdown = 0
	g.stats.Ends++
	if g.behavior.OnEnd != nil {
		g.behavior.OnEnd()
	}
}

// ForceEnd ends an active goal immediately. Inactive goals are reset to Idle
// without invoking OnEnd. It reports whether OnEnd ran.
func (g *Goal) ForceEnd() bool {
	if g == nil {
		return false
	}
	if g.state != StateActive {
		g.state = StateIdle
		g.verdict = false
		g.countdown = 0
		return false
	}
	g.end()
	return true
}
