// Package journal keeps a rolling buffer of simulation keyframes so observers
// that join late, or fall behind the event stream, can rehydrate state.
package journal

import (
	"sync"
	"time"

	"github.com/mortu/Controllable-Mobs-API/internal/sim"
	"github.com/mortu/Controllable-Mobs-API/internal/telemetry"
)

const (
	metricKeyframesRecorded = "journal.keyframes.recorded"
	metricKeyframesEvicted  = "journal.keyframes.evicted"
	metricKeyframesSize     = "journal.keyframes.size"
)

// Keyframe is a full snapshot captured at the end of a tick. Snapshots are
// built fresh by the engine and never mutated afterwards, so the journal
// stores them without copying.
type Keyframe struct {
	Tick       uint64       `json:"tick"`
	Sequence   uint64       `json:"sequence"`
	Snapshot   sim.Snapshot `json:"snapshot"`
	RecordedAt time.Time    `json:"recordedAt"`
}

type KeyframeEviction struct {
	Sequence uint64
	Tick     uint64
	Reason   string
}

type KeyframeRecordResult struct {
	Size           int
	OldestSequence uint64
	NewestSequence uint64
	Evicted        []KeyframeEviction
}

// Journal retains keyframes bounded by count and age.
type Journal struct {
	mu        sync.RWMutex
	keyframes []Keyframe
	maxFrames int
	maxAge    time.Duration
	sequence  uint64
	metrics   telemetry.Metrics
	now       func() time.Time
}

// New constructs a journal with storage for the configured number of
// keyframes and retention window. A zero maxAge disables age eviction.
func New(keyframeCapacity int, maxAge time.Duration) *Journal {
	if keyframeCapacity < 0 {
		keyframeCapacity = 0
	}
	if maxAge < 0 {
		maxAge = 0
	}
	return &Journal{
		keyframes: make([]Keyframe, 0, keyframeCapacity),
		maxFrames: keyframeCapacity,
		maxAge:    maxAge,
		metrics:   telemetry.NopMetrics(),
		now:       time.Now,
	}
}

func (j *Journal) AttachTelemetry(metrics telemetry.Metrics) {
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	j.mu.Lock()
	j.metrics = metrics
	j.mu.Unlock()
}

// Record stores snapshot under the next sequence number.
func (j *Journal) Record(snapshot sim.Snapshot) KeyframeRecordResult {
	j.mu.Lock()
	j.sequence++
	frame := Keyframe{Tick: snapshot.Tick, Sequence: j.sequence, Snapshot: snapshot}
	j.mu.Unlock()
	return j.RecordKeyframe(frame)
}

// RecordKeyframe stores a keyframe in the buffer enforcing retention limits
// by count and age.
func (j *Journal) RecordKeyframe(frame Keyframe) KeyframeRecordResult {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.maxFrames == 0 {
		j.keyframes = j.keyframes[:0]
		return KeyframeRecordResult{}
	}
	if frame.Sequence > j.sequence {
		j.sequence = frame.Sequence
	}

	frame.RecordedAt = j.now()
	j.keyframes = append(j.keyframes, frame)
	j.metrics.Add(metricKeyframesRecorded, 1)

	var evicted []KeyframeEviction
	if j.maxAge > 0 {
		cutoff := frame.RecordedAt.Add(-j.maxAge)
		idx := 0
		for idx < len(j.keyframes) && j.keyframes[idx].RecordedAt.Before(cutoff) {
			evicted = append(evicted, KeyframeEviction{
				Sequence: j.keyframes[idx].Sequence,
				Tick:     j.keyframes[idx].Tick,
				Reason:   "expired",
			})
			idx++
		}
		if idx > 0 {
			copy(j.keyframes, j.keyframes[idx:])
			j.keyframes = j.keyframes[:len(j.keyframes)-idx]
		}
	}

	if len(j.keyframes) > j.maxFrames {
		overflow := len(j.keyframes) - j.maxFrames
		for i := 0; i < overflow; i++ {
			evicted = append(evicted, KeyframeEviction{
				Sequence: j.keyframes[i].Sequence,
				Tick:     j.keyframes[i].Tick,
				Reason:   "count",
			})
		}
		copy(j.keyframes, j.keyframes[overflow:])
		j.keyframes = j.keyframes[:len(j.keyframes)-overflow]
	}

	if len(evicted) > 0 {
		j.metrics.Add(metricKeyframesEvicted, uint64(len(evicted)))
	}
	size := len(j.keyframes)
	j.metrics.Store(metricKeyframesSize, uint64(size))

	result := KeyframeRecordResult{Size: size, Evicted: evicted}
	if size > 0 {
		result.OldestSequence = j.keyframes[0].Sequence
		result.NewestSequence = j.keyframes[size-1].Sequence
	}
	return result
}

// Keyframes exposes the current buffer contents in chronological order.
func (j *Journal) Keyframes() []Keyframe {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.keyframes) == 0 {
		return nil
	}
	frames := make([]Keyframe, len(j.keyframes))
	copy(frames, j.keyframes)
	return frames
}

// KeyframeBySequence returns the keyframe matching the provided sequence.
func (j *Journal) KeyframeBySequence(sequence uint64) (Keyframe, bool) {
	if sequence == 0 {
		return Keyframe{}, false
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	for _, frame := range j.keyframes {
		if frame.Sequence == sequence {
			return frame, true
		}
	}
	return Keyframe{}, false
}

// Latest returns the newest keyframe.
func (j *Journal) Latest() (Keyframe, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.keyframes) == 0 {
		return Keyframe{}, false
	}
	return j.keyframes[len(j.keyframes)-1], true
}

// KeyframeWindow reports the current retention window.
func (j *Journal) KeyframeWindow() (size int, oldest, newest uint64) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	size = len(j.keyframes)
	if size == 0 {
		return size, 0, 0
	}
	return size, j.keyframes[0].Sequence, j.keyframes[size-1].Sequence
}
