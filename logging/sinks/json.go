package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/mortu/Controllable-Mobs-API/logging"
)

// JSON emits newline-delimited structured events.
type JSON struct {
	mu        sync.Mutex
	writer    *bufio.Writer
	encoder   *json.Encoder
	autoFlush bool
	closers   []io.Closer
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewJSON constructs a JSON sink writing to the provided io.Writer.
func NewJSON(w io.Writer, flushInterval time.Duration) *JSON {
	if w == nil {
		w = io.Discard
	}
	buf := bufio.NewWriter(w)
	sink := &JSON{
		writer:    buf,
		encoder:   json.NewEncoder(buf),
		autoFlush: flushInterval <= 0,
		stop:      make(chan struct{}),
	}
	if flushInterval > 0 {
		go sink.periodicFlush(flushInterval)
	}
	return sink
}

// OpenJSONFile creates (or truncates) cfg.FilePath and returns a sink writing
// to it, zstd-compressed when cfg.Compress is set.
func OpenJSONFile(cfg logging.JSONConfig) (*JSON, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("json sink: empty file path")
	}
	file, err := os.Create(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("json sink: %w", err)
	}
	if !cfg.Compress {
		sink := NewJSON(file, cfg.FlushInterval)
		sink.closers = []io.Closer{file}
		return sink, nil
	}
	encoder, err := zstd.NewWriter(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("json sink: zstd: %w", err)
	}
	sink := NewJSON(encoder, cfg.FlushInterval)
	sink.closers = []io.Closer{encoder, file}
	return sink, nil
}

// Write satisfies logging.Sink.
func (s *JSON) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wire := map[string]any{
		"type":     event.Type,
		"tick":     event.Tick,
		"time":     event.Time.Format(time.RFC3339Nano),
		"severity": event.Severity.String(),
		"category": event.Category,
		"actor":    event.Actor,
		"targets":  event.Targets,
		"payload":  event.Payload,
		"extra":    event.Extra,
	}
	if err := s.encoder.Encode(wire); err != nil {
		return err
	}
	if s.autoFlush {
		return s.writer.Flush()
	}
	return nil
}

// Close flushes buffers and closes any owned file or compressor.
func (s *JSON) Close(context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.writer.Flush()
	for _, closer := range s.closers {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	s.closers = nil
	return err
}

func (s *JSON) periodicFlush(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.writer.Flush()
			s.mu.Unlock()
		}
	}
}
