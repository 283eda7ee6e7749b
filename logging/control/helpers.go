// Package control publishes controller lifecycle events.
package control

import (
	"context"

	"github.com/mortu/Controllable-Mobs-API/logging"
)

const (
	// EventAssigned is emitted when an actor is put under control.
	EventAssigned logging.EventType = "control.assigned"
	// EventUnassigned is emitted when control over an actor is released.
	EventUnassigned logging.EventType = "control.unassigned"
	// EventActionSet is emitted when a controller replaces or clears an action.
	EventActionSet logging.EventType = "control.action_set"
	// EventGoalStarted is emitted when a goal transitions to active.
	EventGoalStarted logging.EventType = "control.goal_started"
	// EventGoalEnded is emitted when an active goal returns to idle.
	EventGoalEnded logging.EventType = "control.goal_ended"
	// EventGoalFault is emitted when a goal callback panics during a tick or
	// while a controller is being released.
	EventGoalFault logging.EventType = "control.goal_fault"
)

// AssignedPayload captures how an actor was put under control.
type AssignedPayload struct {
	ControllerID         string `json:"controllerId"`
	ClearDefaultBehavior bool   `json:"clearDefaultBehavior"`
	HostVersion          string `json:"hostVersion,omitempty"`
}

// UnassignedPayload captures what was undone on release.
type UnassignedPayload struct {
	ControllerID       string   `json:"controllerId"`
	ResetAttributes    bool     `json:"resetAttributes"`
	GoalsEnded         int      `json:"goalsEnded"`
	RestoredAttributes []string `json:"restoredAttributes,omitempty"`
}

// ActionSetPayload describes the new action of a kind.
type ActionSetPayload struct {
	Kind    string `json:"kind"`
	Action  string `json:"action,omitempty"`
	Cleared bool   `json:"cleared,omitempty"`
}

// GoalPayload describes a goal transition.
type GoalPayload struct {
	Goal   string `json:"goal"`
	Mutex  string `json:"mutex"`
	Reason string `json:"reason,omitempty"`
}

// FaultPayload carries the recovered panic value.
type FaultPayload struct {
	ControllerID string `json:"controllerId"`
	Goal         string `json:"goal,omitempty"`
	Panic        string `json:"panic"`
}

// Assigned publishes an assignment event.
func Assigned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload AssignedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventAssigned,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryControl,
		Payload:  payload,
		Extra:    extra,
	})
}

// Unassigned publishes a release event.
func Unassigned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload UnassignedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventUnassigned,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryControl,
		Payload:  payload,
		Extra:    extra,
	})
}

// ActionSet publishes an action replacement. target is optional.
func ActionSet(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target *logging.EntityRef, payload ActionSetPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventActionSet,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryControl,
		Payload:  payload,
		Extra:    extra,
	}
	if target != nil {
		event.Targets = []logging.EntityRef{*target}
	}
	pub.Publish(ctx, event)
}

// GoalStarted publishes a goal start.
func GoalStarted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload GoalPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventGoalStarted,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryControl,
		Payload:  payload,
		Extra:    extra,
	})
}

// GoalEnded publishes a goal end.
func GoalEnded(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload GoalPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventGoalEnded,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryControl,
		Payload:  payload,
		Extra:    extra,
	})
}

// GoalFault publishes a recovered goal panic.
func GoalFault(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload FaultPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventGoalFault,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityError,
		Category: logging.CategoryControl,
		Payload:  payload,
		Extra:    extra,
	})
}
