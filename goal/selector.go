package goal

import "sort"

// Listener observes lifecycle transitions. Callbacks run on the ticking
// goroutine after the goal's own OnStart/OnEnd.
type Listener interface {
	GoalStarted(g *Goal)
	GoalEnded(g *Goal, reason EndReason)
}

// ListenerFuncs adapts plain functions into a Listener.
type ListenerFuncs struct {
	Started func(g *Goal)
	Ended   func(g *Goal, reason EndReason)
}

func (l ListenerFuncs) GoalStarted(g *Goal) {
	if l.Started != nil {
		l.Started(g)
	}
}

func (l ListenerFuncs) GoalEnded(g *Goal, reason EndReason) {
	if l.Ended != nil {
		l.Ended(g, reason)
	}
}

// Selector owns the goals of a single actor and arbitrates them once per
// tick. It is not safe for concurrent use; the owning tick serialises access.
type Selector struct {
	goals    []*Goal
	nextSeq  int
	listener Listener

	ends   []pendingEnd
	starts []*Goal
}

type pendingEnd struct {
	goal   *Goal
	reason EndReason
}

// NewSelector constructs an empty selector. listener may be nil.
func NewSelector(listener Listener) *Selector {
	return &Selector{listener: listener}
}

// Add registers a behaviour and returns its goal.
func (s *Selector) Add(b Behavior) *Goal {
	g := New(b)
	s.Attach(g)
	return g
}

// Attach registers a goal built with New. It joins arbitration on the next
// Tick.
func (s *Selector) Attach(g *Goal) {
	g.seq = s.nextSeq
	s.nextSeq++
	s.goals = append(s.goals, g)
	sort.SliceStable(s.goals, func(i, j int) bool {
		if s.goals[i].behavior.Priority != s.goals[j].behavior.Priority {
			return s.goals[i].behavior.Priority < s.goals[j].behavior.Priority
		}
		return s.goals[i].seq < s.goals[j].seq
	})
}

// Goals returns the registered goals in arbitration order.
func (s *Selector) Goals() []*Goal {
	out := make([]*Goal, len(s.goals))
	copy(out, s.goals)
	return out
}

// Len reports the number of registered goals.
func (s *Selector) Len() int {
	return len(s.goals)
}

// Claimed returns the union of the masks of all active goals.
func (s *Selector) Claimed() Mask {
	var claimed Mask
	for _, g := range s.goals {
		if g.state == StateActive {
			claimed |= g.behavior.Mutex
		}
	}
	return claimed
}

// Remove ends the goal when active (reporting reason) and unregisters it.
func (s *Selector) Remove(g *Goal, reason EndReason) bool {
	for i, candidate := range s.goals {
		if candidate != g {
			continue
		}
		s.forceEnd(g, reason)
		s.goals = append(s.goals[:i], s.goals[i+1:]...)
		return true
	}
	return false
}

// Fault records a panic raised while a goal was being force-ended.
type Fault struct {
	Goal  *Goal
	Panic any
}

// Clear ends every active goal with reason and unregisters all goals. It
// returns the number of goals whose OnEnd ran. A panicking end callback does
// not stop the remaining goals from ending; it is returned as a Fault.
func (s *Selector) Clear(reason EndReason) (int, []Fault) {
	ended := 0
	var faults []Fault
	for _, g := range s.goals {
		ran, fault := s.safeForceEnd(g, reason)
		if ran {
			ended++
		}
		if fault != nil {
			faults = append(faults, *fault)
		}
	}
	s.goals = nil
	return ended, faults
}

func (s *Selector) safeForceEnd(g *Goal, reason EndReason) (ran bool, fault *Fault) {
	defer func() {
		if recovered := recover(); recovered != nil {
			// end() moves the goal to Idle before OnEnd, so it counts as ended.
			ran = true
			fault = &Fault{Goal: g, Panic: recovered}
		}
	}()
	return s.forceEnd(g, reason), nil
}

func (s *Selector) forceEnd(g *Goal, reason EndReason) bool {
	if !g.ForceEnd() {
		return false
	}
	if s.listener != nil {
		s.listener.GoalEnded(g, reason)
	}
	return true
}

// Tick runs one arbitration pass.
//
// Goals are visited in priority order. Active goals that became blocked or
// can no longer continue end; the remaining active goals and the goals whose
// throttled requirement verdict is positive compete for mutex bits, first come
// first served. All End callbacks run before any Start callback so a winner
// never has its resources released by the loser it displaced.
func (s *Selector) Tick() {
	s.ends = s.ends[:0]
	s.starts = s.starts[:0]
	var claimed Mask

	for _, g := range s.goals {
		mask := g.behavior.Mutex
		if g.state == StateActive {
			switch {
			case g.blocked():
				s.ends = append(s.ends, pendingEnd{goal: g, reason: EndBlocked})
			case !g.canContinue():
				s.ends = append(s.ends, pendingEnd{goal: g, reason: EndFinished})
			case mask.Overlaps(claimed):
				s.ends = append(s.ends, pendingEnd{goal: g, reason: EndPreempted})
			default:
				claimed |= mask
			}
			continue
		}

		if !g.poll() {
			continue
		}
		if mask.Overlaps(claimed) {
			// Lost arbitration: stays Checking and retries next tick.
			continue
		}
		if !g.canStart() {
			g.reject()
			continue
		}
		claimed |= mask
		s.starts = append(s.starts, g)
	}

	for _, pending := range s.ends {
		pending.goal.end()
		if s.listener != nil {
			s.listener.GoalEnded(pending.goal, pending.reason)
		}
	}
	for _, g := range s.starts {
		g.start()
		if s.listener != nil {
			s.listener.GoalStarted(g)
		}
	}
}
