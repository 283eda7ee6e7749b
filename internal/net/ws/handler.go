// Package ws serves controller sessions and the event stream over websockets.
package ws

import (
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mortu/Controllable-Mobs-API/internal/net/intake"
	"github.com/mortu/Controllable-Mobs-API/internal/net/proto"
	"github.com/mortu/Controllable-Mobs-API/internal/sim"
	"github.com/mortu/Controllable-Mobs-API/internal/telemetry"
)

const readWait = 60 * time.Second

type HandlerConfig struct {
	Logger   telemetry.Logger
	Intake   intake.CommandContext
	Stream   *Stream
	Snapshot func() sim.Snapshot
}

type Handler struct {
	cfg      HandlerConfig
	logger   telemetry.Logger
	upgrader websocket.Upgrader
}

func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	return &Handler{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
	}
}

// HandleCommands runs a controller session: the client sends command frames
// and receives acks or rejects. With ?events=1 the session also carries the
// event stream.
func (h *Handler) HandleCommands(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("[ws] upgrade failed: %v", err)
		return
	}
	sess := newSession(conn)
	defer conn.Close()

	if !h.sendSnapshot(sess) {
		return
	}
	if r.URL.Query().Get("events") == "1" && h.cfg.Stream != nil {
		events, cancel := h.cfg.Stream.Subscribe()
		defer cancel()
		go h.pump(sess, events)
	}

	for {
		conn.SetReadDeadline(time.Now().Add(readWait))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := proto.DecodeClientMessage(payload)
		if err != nil {
			h.logger.Printf("[ws] discarding malformed message: %v", err)
			continue
		}
		seq := msg.Seq()

		if seq > 0 {
			if last := sess.LastCommandSeq(); last > 0 && seq <= last {
				if !h.writeAck(sess, proto.CommandAck{Seq: seq}) {
					return
				}
				continue
			}
		}

		cmd, ok, reason := intake.StageClientCommand(h.cfg.Intake, msg)
		if seq == 0 {
			continue
		}
		if ok {
			if !h.writeAck(sess, proto.CommandAck{Seq: seq, Tick: cmd.OriginTick}) {
				return
			}
			sess.StoreLastCommandSeq(seq)
			continue
		}
		data, err := proto.EncodeCommandReject(proto.CommandReject{Seq: seq, Reason: reason, Retry: intake.Retryable(reason)})
		if err != nil {
			h.logger.Printf("[ws] failed to encode reject: %v", err)
			continue
		}
		if sess.WriteMessage(websocket.TextMessage, data) != nil {
			return
		}
	}
}

// HandleEvents streams controller events until the client disconnects.
func (h *Handler) HandleEvents(w nethttp.ResponseWriter, r *nethttp.Request) {
	if h.cfg.Stream == nil {
		nethttp.Error(w, "event stream disabled", nethttp.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("[ws] upgrade failed: %v", err)
		return
	}
	sess := newSession(conn)
	defer conn.Close()

	if !h.sendSnapshot(sess) {
		return
	}
	events, cancel := h.cfg.Stream.Subscribe()
	defer cancel()
	go h.pump(sess, events)

	// Drain inbound frames so close and ping control frames are processed.
	for {
		conn.SetReadDeadline(time.Now().Add(readWait))
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) pump(sess *session, events <-chan []byte) {
	for data := range events {
		if err := sess.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	sess.Close(websocket.CloseGoingAway, "stream closed")
}

func (h *Handler) sendSnapshot(sess *session) bool {
	if h.cfg.Snapshot == nil {
		return true
	}
	data, err := proto.EncodeSnapshot(h.cfg.Snapshot())
	if err != nil {
		h.logger.Printf("[ws] failed to encode snapshot: %v", err)
		return false
	}
	return sess.WriteMessage(websocket.TextMessage, data) == nil
}

func (h *Handler) writeAck(sess *session, ack proto.CommandAck) bool {
	data, err := proto.EncodeCommandAck(ack)
	if err != nil {
		h.logger.Printf("[ws] failed to encode ack: %v", err)
		return true
	}
	return sess.WriteMessage(websocket.TextMessage, data) == nil
}
