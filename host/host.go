// Package host declares the capabilities the controller core consumes from
// the embedding game engine. A binding implements Host once per engine
// version; the core never reaches past these interfaces.
package host

import "github.com/mortu/Controllable-Mobs-API/attributes"

// Actor is an opaque, identity-comparable handle to a host entity. Values are
// used as map keys, so implementations must be comparable (typically a
// pointer or a small struct of comparable fields).
type Actor interface {
	ActorID() string
}

// Path is an opaque navigation route produced by the host.
type Path interface{}

// Geometry answers spatial queries between actors.
type Geometry interface {
	SquaredDistance(a, b Actor) float64
	SameWorld(a, b Actor) bool
}

// Navigator exposes fire-and-forget navigation commands. CreatePath reports
// false when the target is unreachable.
type Navigator interface {
	CreatePath(actor, target Actor) (Path, bool)
	FollowPath(actor Actor, path Path, speed float64)
	StopNavigation(actor Actor)
	IsNavigating(actor Actor) bool
}

// Targeting sets the host's goal target. SetLegacyTarget mirrors the target
// into the older field external observers still read.
type Targeting interface {
	SetGoalTarget(actor, target Actor)
	SetLegacyTarget(actor, target Actor)
}

// Looker orients an actor's head/aim towards a target. A nil target releases
// the look control back to the host.
type Looker interface {
	LookAt(actor, target Actor)
}

// Behaviors toggles the host's default (non-controller) behaviours.
type Behaviors interface {
	ClearDefaultBehaviors(actor Actor)
	RestoreDefaultBehaviors(actor Actor)
}

// Host is the complete capability set required by the controller registry.
type Host interface {
	Geometry
	Navigator
	Targeting
	Looker
	Behaviors
	attributes.Binding[Actor]

	// IsControllable gates assignment; nil-like or unsupported actors
	// report false.
	IsControllable(actor Actor) bool
	// Version names the host binding, e.g. "sandbox/1".
	Version() string
}
