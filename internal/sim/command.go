package sim

import "time"

// CommandType enumerates the supported controller commands.
type CommandType string

const (
	CommandAssign         CommandType = "Assign"
	CommandUnassign       CommandType = "Unassign"
	CommandSetAction      CommandType = "SetAction"
	CommandClearAction    CommandType = "ClearAction"
	CommandSetAttribute   CommandType = "SetAttribute"
	CommandResetAttribute CommandType = "ResetAttribute"
)

// AssignCommand puts the actor under control.
type AssignCommand struct {
	ClearDefaultBehavior bool `json:"clearDefaultBehavior"`
}

// UnassignCommand releases the actor.
type UnassignCommand struct {
	ResetAttributes bool `json:"resetAttributes"`
}

// ActionCommand replaces or clears the action of one kind. Distances only
// apply to FOLLOW.
type ActionCommand struct {
	Kind               string  `json:"kind"`
	TargetID           string  `json:"targetId,omitempty"`
	MinDistanceSquared float64 `json:"minDistanceSquared,omitempty"`
	MaxDistanceSquared float64 `json:"maxDistanceSquared,omitempty"`
}

// AttributeCommand overrides or resets an attribute. An empty name on reset
// clears every override.
type AttributeCommand struct {
	Name  string  `json:"name,omitempty"`
	Value float64 `json:"value,omitempty"`
}

// Command represents an intent captured for processing on the next tick.
type Command struct {
	OriginTick uint64            `json:"originTick"`
	ActorID    string            `json:"actorId"`
	Type       CommandType       `json:"type"`
	IssuedAt   time.Time         `json:"issuedAt"`
	Assign     *AssignCommand    `json:"assign,omitempty"`
	Unassign   *UnassignCommand  `json:"unassign,omitempty"`
	Action     *ActionCommand    `json:"action,omitempty"`
	Attribute  *AttributeCommand `json:"attribute,omitempty"`
}

// CommandResult reports the outcome of one applied command.
type CommandResult struct {
	Command Command
	Err     error
}
