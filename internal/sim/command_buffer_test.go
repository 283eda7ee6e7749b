package sim

import (
	"testing"

	"github.com/mortu/Controllable-Mobs-API/internal/telemetry"
	"github.com/mortu/Controllable-Mobs-API/logging"
)

func TestCommandBufferWraparound(t *testing.T) {
	buffer := NewCommandBuffer(3, nil)
	cmds := []Command{
		{ActorID: "a", Type: CommandAssign},
		{ActorID: "b", Type: CommandSetAction},
		{ActorID: "c", Type: CommandUnassign},
	}
	for _, cmd := range cmds {
		if !buffer.Push(cmd) {
			t.Fatalf("expected push to succeed for %+v", cmd)
		}
	}
	if buffer.Push(Command{ActorID: "overflow"}) {
		t.Fatalf("expected push to fail when buffer full")
	}
	drained := buffer.Drain()
	if len(drained) != len(cmds) {
		t.Fatalf("expected %d commands, got %d", len(cmds), len(drained))
	}
	for i, cmd := range drained {
		if cmd.ActorID != cmds[i].ActorID || cmd.Type != cmds[i].Type {
			t.Fatalf("expected drain order %v, got %v", cmds[i].ActorID, cmd.ActorID)
		}
	}
	for _, cmd := range []Command{{ActorID: "d"}, {ActorID: "e"}} {
		if !buffer.Push(cmd) {
			t.Fatalf("expected push to succeed after drain for %+v", cmd)
		}
	}
	wrapped := buffer.Drain()
	if len(wrapped) != 2 {
		t.Fatalf("expected 2 commands after wraparound, got %d", len(wrapped))
	}
	if wrapped[0].ActorID != "d" || wrapped[1].ActorID != "e" {
		t.Fatalf("unexpected order after wraparound: %+v", wrapped)
	}
}

func TestCommandBufferOverflowMetrics(t *testing.T) {
	metrics := &logging.Metrics{}
	buffer := NewCommandBuffer(1, telemetry.WrapMetrics(metrics))
	if !buffer.Push(Command{ActorID: "one"}) {
		t.Fatalf("expected initial push to succeed")
	}
	if buffer.Push(Command{ActorID: "two"}) {
		t.Fatalf("expected push to fail when capacity exceeded")
	}
	snapshot := metrics.Snapshot()
	if snapshot[commandBufferOverflowMetricKey] != 1 {
		t.Fatalf("expected one overflow, got %d", snapshot[commandBufferOverflowMetricKey])
	}
	if snapshot[commandBufferOccupancyMetricKey] != 1 {
		t.Fatalf("expected occupancy 1, got %d", snapshot[commandBufferOccupancyMetricKey])
	}
	drained := buffer.Drain()
	if len(drained) != 1 || drained[0].ActorID != "one" {
		t.Fatalf("unexpected drained commands: %+v", drained)
	}
	if buffer.Len() != 0 || buffer.Capacity() != 1 {
		t.Fatalf("unexpected buffer state len=%d cap=%d", buffer.Len(), buffer.Capacity())
	}
}
