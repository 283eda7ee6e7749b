package net

import (
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"github.com/mortu/Controllable-Mobs-API/internal/journal"
	"github.com/mortu/Controllable-Mobs-API/internal/net/intake"
	"github.com/mortu/Controllable-Mobs-API/internal/net/proto"
	"github.com/mortu/Controllable-Mobs-API/internal/net/ws"
	"github.com/mortu/Controllable-Mobs-API/internal/observability"
	"github.com/mortu/Controllable-Mobs-API/internal/sim"
	"github.com/mortu/Controllable-Mobs-API/internal/telemetry"
	"github.com/mortu/Controllable-Mobs-API/logging"
)

const maxCommandBody = 64 << 10

type HTTPHandlerConfig struct {
	Loop          *sim.Loop
	Journal       *journal.Journal
	Router        *logging.Router
	Metrics       *logging.Metrics
	WS            *ws.Handler
	Intake        intake.CommandContext
	HostVersion   string
	Logger        telemetry.Logger
	Observability observability.Config
}

func NewHTTPHandler(cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		snapshot := cfg.Loop.Snapshot()
		payload := struct {
			Status      string            `json:"status"`
			ServerTime  int64             `json:"serverTime"`
			HostVersion string            `json:"hostVersion,omitempty"`
			Tick        uint64            `json:"tick"`
			TickRate    int               `json:"tickRate"`
			Pending     int               `json:"pendingCommands"`
			Actors      int               `json:"actors"`
			Controlled  int               `json:"controlled"`
			Events      any               `json:"events,omitempty"`
			Telemetry   map[string]uint64 `json:"telemetry,omitempty"`
		}{
			Status:      "ok",
			ServerTime:  time.Now().UnixMilli(),
			HostVersion: cfg.HostVersion,
			Tick:        cfg.Loop.Tick(),
			TickRate:    cfg.Loop.TickRate(),
			Pending:     cfg.Loop.Pending(),
			Actors:      len(snapshot.Actors),
			Controlled:  len(snapshot.Mobs),
		}
		if cfg.Router != nil {
			stats := cfg.Router.Stats()
			payload.Events = struct {
				Total   uint64 `json:"total"`
				Dropped uint64 `json:"dropped"`
			}{Total: stats.EventsTotal, Dropped: stats.DroppedTotal}
		}
		if cfg.Metrics != nil {
			payload.Telemetry = cfg.Metrics.Snapshot()
		}
		writeJSON(w, payload)
	})

	mux.HandleFunc("/snapshot", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		data, err := proto.EncodeSnapshot(cfg.Loop.Snapshot())
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	mux.HandleFunc("/commands", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		defer r.Body.Close()
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBody))
		if err != nil {
			httpError(w, "failed to read body", nethttp.StatusBadRequest)
			return
		}
		msg, err := proto.DecodeClientMessage(raw)
		if err != nil {
			httpError(w, "invalid payload", nethttp.StatusBadRequest)
			return
		}

		cmd, ok, reason := intake.StageClientCommand(cfg.Intake, msg)
		if !ok {
			data, err := proto.EncodeCommandReject(proto.CommandReject{Seq: msg.Seq(), Reason: reason, Retry: intake.Retryable(reason)})
			if err != nil {
				httpError(w, "failed to encode", nethttp.StatusInternalServerError)
				return
			}
			status := nethttp.StatusUnprocessableEntity
			if intake.Retryable(reason) {
				status = nethttp.StatusTooManyRequests
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			w.Write(data)
			return
		}

		data, err := proto.EncodeCommandAck(proto.CommandAck{Seq: msg.Seq(), Tick: cmd.OriginTick})
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(nethttp.StatusAccepted)
		w.Write(data)
	})

	mux.HandleFunc("/keyframes", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		if cfg.Journal == nil {
			httpError(w, "keyframes disabled", nethttp.StatusServiceUnavailable)
			return
		}
		raw := r.URL.Query().Get("seq")
		if raw == "" {
			size, oldest, newest := cfg.Journal.KeyframeWindow()
			payload := struct {
				Size   int    `json:"size"`
				Oldest uint64 `json:"oldest"`
				Newest uint64 `json:"newest"`
			}{Size: size, Oldest: oldest, Newest: newest}
			writeJSON(w, payload)
			return
		}
		sequence, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			httpError(w, "invalid seq", nethttp.StatusBadRequest)
			return
		}
		frame, ok := cfg.Journal.KeyframeBySequence(sequence)
		if !ok {
			httpError(w, "keyframe not retained", nethttp.StatusNotFound)
			return
		}
		writeJSON(w, frame)
	})

	if cfg.WS != nil {
		mux.HandleFunc("/ws", cfg.WS.HandleCommands)
		mux.HandleFunc("/events", cfg.WS.HandleEvents)
	}

	if cfg.Observability.EnablePprofTrace {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
		logger.Printf("[http] pprof endpoints mounted under /debug/pprof/")
	}

	return mux
}

func writeJSON(w nethttp.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
