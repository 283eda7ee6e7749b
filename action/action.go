// Package action defines the closed set of commands a controller can issue
// and the immutable values carrying their parameters.
package action

import (
	"errors"
	"fmt"
	"math"

	"github.com/mortu/Controllable-Mobs-API/goal"
	"github.com/mortu/Controllable-Mobs-API/host"
)

// Version identifies the revision of the action set. Bump it whenever a kind
// is added or a descriptor changes.
const Version = 1

// ErrInvalidParameters reports a malformed action construction.
var ErrInvalidParameters = errors.New("invalid action parameters")

// Kind enumerates the supported action kinds. The declaration order is the
// default arbitration priority.
type Kind uint8

const (
	KindFollow Kind = iota + 1
	KindLook
	KindTarget
)

var kinds = []Kind{KindFollow, KindLook, KindTarget}

// Kinds returns every kind in priority order.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// TargetRequirement describes whether an action carries a target actor.
type TargetRequirement uint8

const (
	TargetNone TargetRequirement = iota
	TargetOptional
	TargetRequired
)

// Descriptor holds the static properties of a kind.
type Descriptor struct {
	Kind       Kind
	Name       string
	Target     TargetRequirement
	DelayTicks int
	Mutex      goal.Mask
}

var descriptors = map[Kind]Descriptor{
	KindFollow: {
		Kind:       KindFollow,
		Name:       "FOLLOW",
		Target:     TargetRequired,
		DelayTicks: 1,
		Mutex:      goal.MutexMovement | goal.MutexLook,
	},
	KindLook: {
		Kind:       KindLook,
		Name:       "LOOK",
		Target:     TargetRequired,
		DelayTicks: 1,
		Mutex:      goal.MutexLook,
	},
	KindTarget: {
		Kind:       KindTarget,
		Name:       "TARGET",
		Target:     TargetOptional,
		DelayTicks: 2,
		Mutex:      goal.MutexTarget,
	},
}

// Describe returns the descriptor of kind.
func Describe(kind Kind) (Descriptor, bool) {
	d, ok := descriptors[kind]
	return d, ok
}

// ParseKind resolves a descriptor name such as "FOLLOW".
func ParseKind(name string) (Kind, bool) {
	for _, kind := range kinds {
		if descriptors[kind].Name == name {
			return kind, true
		}
	}
	return 0, false
}

func (k Kind) String() string {
	if d, ok := descriptors[k]; ok {
		return d.Name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Action is an immutable command. The zero value is not a valid action.
type Action struct {
	kind   Kind
	target host.Actor

	minDistSq float64
	maxDistSq float64
}

// NewFollow builds a FOLLOW action: navigate towards target once its squared
// distance exceeds maxDistSq and stop once it drops to minDistSq.
func NewFollow(target host.Actor, minDistSq, maxDistSq float64) (Action, error) {
	if target == nil {
		return Action{}, fmt.Errorf("%w: follow requires a target", ErrInvalidParameters)
	}
	if !validDistance(minDistSq) || !validDistance(maxDistSq) {
		return Action{}, fmt.Errorf("%w: follow distances must be finite and non-negative (min=%v max=%v)", ErrInvalidParameters, minDistSq, maxDistSq)
	}
	if minDistSq > maxDistSq {
		return Action{}, fmt.Errorf("%w: follow minimum %v exceeds maximum %v", ErrInvalidParameters, minDistSq, maxDistSq)
	}
	return Action{kind: KindFollow, target: target, minDistSq: minDistSq, maxDistSq: maxDistSq}, nil
}

// NewLook builds a LOOK action keeping the actor's aim on target.
func NewLook(target host.Actor) (Action, error) {
	if target == nil {
		return Action{}, fmt.Errorf("%w: look requires a target", ErrInvalidParameters)
	}
	return Action{kind: KindLook, target: target}, nil
}

// NewTarget builds a TARGET action. A nil target clears the current target.
func NewTarget(target host.Actor) (Action, error) {
	return Action{kind: KindTarget, target: target}, nil
}

func validDistance(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Kind returns the action kind.
func (a Action) Kind() Kind {
	return a.kind
}

// Target returns the target actor, or nil.
func (a Action) Target() host.Actor {
	return a.target
}

// HasTarget reports whether the action carries a target.
func (a Action) HasTarget() bool {
	return a.target != nil
}

// MinimumDistanceSquared is the FOLLOW stop threshold.
func (a Action) MinimumDistanceSquared() float64 {
	return a.minDistSq
}

// MaximumDistanceSquared is the FOLLOW start threshold.
func (a Action) MaximumDistanceSquared() float64 {
	return a.maxDistSq
}

// Valid reports whether the value was produced by a constructor.
func (a Action) Valid() bool {
	_, ok := descriptors[a.kind]
	return ok
}

func (a Action) String() string {
	target := "none"
	if a.target != nil {
		target = a.target.ActorID()
	}
	switch a.kind {
	case KindFollow:
		return fmt.Sprintf("%s(target=%s min²=%g max²=%g)", a.kind, target, a.minDistSq, a.maxDistSq)
	default:
		return fmt.Sprintf("%s(target=%s)", a.kind, target)
	}
}
