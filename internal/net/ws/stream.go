package ws

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/mortu/Controllable-Mobs-API/internal/net/proto"
	"github.com/mortu/Controllable-Mobs-API/internal/telemetry"
	"github.com/mortu/Controllable-Mobs-API/logging"
)

const (
	defaultSubscriberBuffer = 256

	streamDroppedMetricKey     = "ws.stream.dropped"
	streamSubscribersMetricKey = "ws.stream.subscribers"
)

// Stream is a logging sink that fans encoded events out to websocket
// subscribers. A slow subscriber loses events instead of stalling the router.
type Stream struct {
	mu      sync.Mutex
	subs    map[uint64]chan []byte
	nextID  atomic.Uint64
	buffer  int
	metrics telemetry.Metrics
	closed  bool
}

// NewStream constructs a stream whose subscribers buffer up to buffer frames.
func NewStream(buffer int, metrics telemetry.Metrics) *Stream {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	return &Stream{subs: make(map[uint64]chan []byte), buffer: buffer, metrics: metrics}
}

// Subscribe registers a subscriber. The returned channel closes when the
// stream closes; cancel releases the subscription.
func (s *Stream) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, s.buffer)
	id := s.nextID.Add(1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subs[id] = ch
	s.metrics.Store(streamSubscribersMetricKey, uint64(len(s.subs)))
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if existing, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(existing)
				s.metrics.Store(streamSubscribersMetricKey, uint64(len(s.subs)))
			}
		})
	}
}

// Subscribers reports the number of live subscriptions.
func (s *Stream) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Write satisfies logging.Sink.
func (s *Stream) Write(event logging.Event) error {
	data, err := proto.EncodeEvent(event)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- data:
		default:
			s.metrics.Add(streamDroppedMetricKey, 1)
		}
	}
	return nil
}

// Close satisfies logging.Sink. Every subscriber channel is closed.
func (s *Stream) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	return nil
}

var _ logging.Sink = (*Stream)(nil)
