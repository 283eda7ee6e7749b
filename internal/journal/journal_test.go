package journal

import (
	"testing"
	"time"

	"github.com/mortu/Controllable-Mobs-API/internal/sim"
	"github.com/mortu/Controllable-Mobs-API/internal/telemetry"
	"github.com/mortu/Controllable-Mobs-API/logging"
)

func TestJournalRecordAssignsSequences(t *testing.T) {
	journal := New(4, 0)

	first := journal.Record(sim.Snapshot{Tick: 10})
	second := journal.Record(sim.Snapshot{Tick: 20})

	if first.NewestSequence != 1 || second.NewestSequence != 2 {
		t.Fatalf("expected sequences 1 and 2, got %d and %d", first.NewestSequence, second.NewestSequence)
	}
	frame, ok := journal.KeyframeBySequence(2)
	if !ok || frame.Tick != 20 || frame.Snapshot.Tick != 20 {
		t.Fatalf("expected keyframe 2 at tick 20, got %+v (ok=%v)", frame, ok)
	}
	if _, ok := journal.KeyframeBySequence(0); ok {
		t.Fatalf("sequence zero must never resolve")
	}
	latest, ok := journal.Latest()
	if !ok || latest.Sequence != 2 {
		t.Fatalf("expected latest keyframe 2, got %+v", latest)
	}
}

func TestJournalEvictsByCount(t *testing.T) {
	metrics := &logging.Metrics{}
	journal := New(2, 0)
	journal.AttachTelemetry(telemetry.WrapMetrics(metrics))

	for tick := uint64(1); tick <= 3; tick++ {
		journal.Record(sim.Snapshot{Tick: tick})
	}
	result := journal.Record(sim.Snapshot{Tick: 4})

	if result.Size != 2 || result.OldestSequence != 3 || result.NewestSequence != 4 {
		t.Fatalf("unexpected window %+v", result)
	}
	if len(result.Evicted) != 1 || result.Evicted[0].Reason != "count" || result.Evicted[0].Sequence != 2 {
		t.Fatalf("expected sequence 2 evicted by count, got %+v", result.Evicted)
	}

	snapshot := metrics.Snapshot()
	if snapshot[metricKeyframesRecorded] != 4 || snapshot[metricKeyframesEvicted] != 2 || snapshot[metricKeyframesSize] != 2 {
		t.Fatalf("unexpected journal metrics %v", snapshot)
	}
}

func TestJournalEvictsByAge(t *testing.T) {
	journal := New(8, time.Second)
	now := time.Unix(1000, 0)
	journal.now = func() time.Time { return now }

	journal.Record(sim.Snapshot{Tick: 1})
	now = now.Add(500 * time.Millisecond)
	journal.Record(sim.Snapshot{Tick: 2})
	now = now.Add(900 * time.Millisecond)
	result := journal.Record(sim.Snapshot{Tick: 3})

	if len(result.Evicted) != 1 || result.Evicted[0].Reason != "expired" || result.Evicted[0].Tick != 1 {
		t.Fatalf("expected tick 1 to expire, got %+v", result.Evicted)
	}
	size, oldest, newest := journal.KeyframeWindow()
	if size != 2 || oldest != 2 || newest != 3 {
		t.Fatalf("unexpected window size=%d oldest=%d newest=%d", size, oldest, newest)
	}
}

func TestJournalZeroCapacityKeepsNothing(t *testing.T) {
	journal := New(0, 0)
	if result := journal.Record(sim.Snapshot{Tick: 1}); result.Size != 0 {
		t.Fatalf("expected empty journal, got %+v", result)
	}
	if frames := journal.Keyframes(); frames != nil {
		t.Fatalf("expected no keyframes, got %d", len(frames))
	}
}

func TestJournalKeyframesReturnsCopy(t *testing.T) {
	journal := New(2, 0)
	journal.Record(sim.Snapshot{Tick: 5})

	frames := journal.Keyframes()
	frames[0].Tick = 99

	if frame, _ := journal.KeyframeBySequence(1); frame.Tick != 5 {
		t.Fatalf("expected buffer to be isolated from callers, got tick %d", frame.Tick)
	}
}
