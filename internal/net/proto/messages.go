// Package proto defines the JSON frames exchanged with controller clients.
package proto

import (
	"encoding/json"
	"fmt"

	"github.com/mortu/Controllable-Mobs-API/internal/sim"
	"github.com/mortu/Controllable-Mobs-API/logging"
)

const (
	// Version tracks the wire-protocol revision expected by clients.
	Version = 1

	typeCommandAck    = "commandAck"
	typeCommandReject = "commandReject"
	typeEvent         = "event"
	typeSnapshot      = "snapshot"
)

// Client message type identifiers.
const (
	TypeAssign         = "assign"
	TypeUnassign       = "unassign"
	TypeSetAction      = "setAction"
	TypeClearAction    = "clearAction"
	TypeSetAttribute   = "setAttribute"
	TypeResetAttribute = "resetAttribute"
)

// Exported aliases for outbound message type identifiers.
const (
	TypeCommandAck    = typeCommandAck
	TypeCommandReject = typeCommandReject
	TypeEvent         = typeEvent
	TypeSnapshot      = typeSnapshot
)

// ClientMessage captures an inbound websocket message from a controller.
type ClientMessage struct {
	Ver        int     `json:"ver,omitempty"`
	Type       string  `json:"type"`
	ActorID    string  `json:"actorId"`
	CommandSeq *uint64 `json:"seq,omitempty"`

	ClearDefaultBehavior bool `json:"clearDefaultBehavior,omitempty"`
	ResetAttributes      bool `json:"resetAttributes,omitempty"`

	Kind               string  `json:"kind,omitempty"`
	TargetID           string  `json:"targetId,omitempty"`
	MinDistanceSquared float64 `json:"minDistanceSquared,omitempty"`
	MaxDistanceSquared float64 `json:"maxDistanceSquared,omitempty"`

	Attribute string  `json:"attribute,omitempty"`
	Value     float64 `json:"value,omitempty"`
}

// DecodeClientMessage converts raw websocket payloads into a structured message.
func DecodeClientMessage(payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	if msg.Ver == 0 {
		msg.Ver = Version
	}
	if msg.Ver != Version {
		return msg, fmt.Errorf("unsupported client protocol version %d", msg.Ver)
	}
	return msg, nil
}

// Seq returns the command sequence number, or zero when the client did not
// request an acknowledgement.
func (m ClientMessage) Seq() uint64 {
	if m.CommandSeq == nil {
		return 0
	}
	return *m.CommandSeq
}

// ClientCommand converts a message into a simulation command. Origin metadata
// is populated by intake when the command is accepted.
func ClientCommand(msg ClientMessage) (sim.Command, bool) {
	switch msg.Type {
	case TypeAssign:
		return sim.Command{
			Type:   sim.CommandAssign,
			Assign: &sim.AssignCommand{ClearDefaultBehavior: msg.ClearDefaultBehavior},
		}, true
	case TypeUnassign:
		return sim.Command{
			Type:     sim.CommandUnassign,
			Unassign: &sim.UnassignCommand{ResetAttributes: msg.ResetAttributes},
		}, true
	case TypeSetAction, TypeClearAction:
		if msg.Kind == "" {
			return sim.Command{}, false
		}
		cmdType := sim.CommandSetAction
		if msg.Type == TypeClearAction {
			cmdType = sim.CommandClearAction
		}
		return sim.Command{
			Type: cmdType,
			Action: &sim.ActionCommand{
				Kind:               msg.Kind,
				TargetID:           msg.TargetID,
				MinDistanceSquared: msg.MinDistanceSquared,
				MaxDistanceSquared: msg.MaxDistanceSquared,
			},
		}, true
	case TypeSetAttribute:
		if msg.Attribute == "" {
			return sim.Command{}, false
		}
		return sim.Command{
			Type:      sim.CommandSetAttribute,
			Attribute: &sim.AttributeCommand{Name: msg.Attribute, Value: msg.Value},
		}, true
	case TypeResetAttribute:
		return sim.Command{
			Type:      sim.CommandResetAttribute,
			Attribute: &sim.AttributeCommand{Name: msg.Attribute},
		}, true
	default:
		return sim.Command{}, false
	}
}

// CommandAck describes an acknowledgement of a staged command.
type CommandAck struct {
	Seq  uint64
	Tick uint64
}

// EncodeCommandAck renders a command acknowledgement response.
func EncodeCommandAck(msg CommandAck) ([]byte, error) {
	frame := struct {
		Ver  int    `json:"ver"`
		Type string `json:"type"`
		Seq  uint64 `json:"seq"`
		Tick uint64 `json:"tick,omitempty"`
	}{
		Ver:  Version,
		Type: typeCommandAck,
		Seq:  msg.Seq,
		Tick: msg.Tick,
	}
	return json.Marshal(frame)
}

// CommandReject notifies the client that a command was refused.
type CommandReject struct {
	Seq    uint64
	Reason string
	Retry  bool
}

// EncodeCommandReject renders a command rejection response.
func EncodeCommandReject(msg CommandReject) ([]byte, error) {
	frame := struct {
		Ver    int    `json:"ver"`
		Type   string `json:"type"`
		Seq    uint64 `json:"seq"`
		Reason string `json:"reason"`
		Retry  bool   `json:"retry,omitempty"`
	}{
		Ver:    Version,
		Type:   typeCommandReject,
		Seq:    msg.Seq,
		Reason: msg.Reason,
		Retry:  msg.Retry,
	}
	return json.Marshal(frame)
}

// EncodeEvent wraps a controller event for streaming.
func EncodeEvent(event logging.Event) ([]byte, error) {
	frame := struct {
		Ver   int           `json:"ver"`
		Type  string        `json:"type"`
		Event logging.Event `json:"event"`
	}{
		Ver:   Version,
		Type:  typeEvent,
		Event: event,
	}
	return json.Marshal(frame)
}

// EncodeSnapshot renders the world and controller state.
func EncodeSnapshot(snapshot sim.Snapshot) ([]byte, error) {
	frame := struct {
		Ver  int    `json:"ver"`
		Type string `json:"type"`
		sim.Snapshot
	}{
		Ver:      Version,
		Type:     typeSnapshot,
		Snapshot: snapshot,
	}
	return json.Marshal(frame)
}
