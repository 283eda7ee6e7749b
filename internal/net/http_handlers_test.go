package net

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mortu/Controllable-Mobs-API/control"
	"github.com/mortu/Controllable-Mobs-API/internal/journal"
	"github.com/mortu/Controllable-Mobs-API/internal/net/intake"
	"github.com/mortu/Controllable-Mobs-API/internal/net/proto"
	"github.com/mortu/Controllable-Mobs-API/internal/observability"
	"github.com/mortu/Controllable-Mobs-API/internal/sandbox"
	"github.com/mortu/Controllable-Mobs-API/internal/sim"
	"github.com/mortu/Controllable-Mobs-API/logging"
)

type testServer struct {
	handler http.Handler
	loop    *sim.Loop
	zombie  *sandbox.Actor
}

func newTestServer(t *testing.T, obs observability.Config) testServer {
	t.Helper()
	cfg := sandbox.DefaultConfig()
	cfg.WanderRadius = 0
	world := sandbox.New(cfg)
	zombie := world.Spawn(sandbox.ArchetypeZombie, "overworld", 0, 0)
	world.Spawn(sandbox.ArchetypeVillager, "overworld", 10, 0)

	engine, err := sim.NewEngine(world, control.NewRegistry(world, control.DefaultConfig()), sim.Deps{})
	if err != nil {
		t.Fatalf("failed to construct engine: %v", err)
	}
	loop := sim.NewLoop(engine, sim.LoopConfig{CommandCapacity: 8, PerActorLimit: 4}, sim.LoopHooks{})
	metrics := &logging.Metrics{}
	metrics.TelemetryAdd("sim.loop.ticks", 3)

	handler := NewHTTPHandler(HTTPHandlerConfig{
		Loop:    loop,
		Metrics: metrics,
		Intake: intake.CommandContext{
			Queue:    loop,
			HasActor: engine.HasActor,
			Tick:     loop.Tick,
		},
		HostVersion:   sandbox.Version,
		Observability: obs,
	})
	return testServer{handler: handler, loop: loop, zombie: zombie}
}

func TestHTTPHealth(t *testing.T) {
	srv := newTestServer(t, observability.Config{})

	resp := httptest.NewRecorder()
	srv.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.Code != http.StatusOK || resp.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", resp.Code, resp.Body.String())
	}
}

func TestHTTPDiagnosticsReportsLoopAndTelemetry(t *testing.T) {
	srv := newTestServer(t, observability.Config{})

	resp := httptest.NewRecorder()
	srv.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/diagnostics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}

	var payload struct {
		Status      string            `json:"status"`
		HostVersion string            `json:"hostVersion"`
		TickRate    int               `json:"tickRate"`
		Actors      int               `json:"actors"`
		Controlled  int               `json:"controlled"`
		Telemetry   map[string]uint64 `json:"telemetry"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode diagnostics: %v", err)
	}
	if payload.Status != "ok" || payload.HostVersion != sandbox.Version {
		t.Fatalf("unexpected diagnostics header %+v", payload)
	}
	if payload.TickRate != 20 {
		t.Fatalf("expected default tick rate 20, got %d", payload.TickRate)
	}
	if payload.Actors != 2 || payload.Controlled != 0 {
		t.Fatalf("expected 2 actors and no controllers, got %d/%d", payload.Actors, payload.Controlled)
	}
	if payload.Telemetry["sim.loop.ticks"] != 3 {
		t.Fatalf("expected telemetry to be exported, got %v", payload.Telemetry)
	}
}

func TestHTTPCommandsStagesOnLoop(t *testing.T) {
	srv := newTestServer(t, observability.Config{})

	body := `{"type":"assign","actorId":"` + srv.zombie.ActorID() + `","seq":7,"clearDefaultBehavior":true}`
	resp := httptest.NewRecorder()
	srv.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/commands", strings.NewReader(body)))
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202 Accepted, got %d: %s", resp.Code, resp.Body.String())
	}

	var ack struct {
		Type string `json:"type"`
		Seq  uint64 `json:"seq"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &ack); err != nil {
		t.Fatalf("failed to decode ack: %v", err)
	}
	if ack.Type != proto.TypeCommandAck || ack.Seq != 7 {
		t.Fatalf("unexpected ack %+v", ack)
	}
	if srv.loop.Pending() != 1 {
		t.Fatalf("expected command to be staged, pending=%d", srv.loop.Pending())
	}
}

func TestHTTPCommandsRejects(t *testing.T) {
	srv := newTestServer(t, observability.Config{})

	cases := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{name: "method", method: http.MethodGet, status: http.StatusMethodNotAllowed},
		{name: "malformed", method: http.MethodPost, body: `{`, status: http.StatusBadRequest},
		{name: "version", method: http.MethodPost, body: `{"ver":9,"type":"assign","actorId":"x"}`, status: http.StatusBadRequest},
		{name: "unknown actor", method: http.MethodPost, body: `{"type":"assign","actorId":"ghost","seq":1}`, status: http.StatusUnprocessableEntity},
		{name: "unknown type", method: http.MethodPost, body: `{"type":"teleport","actorId":"ghost"}`, status: http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			srv.handler.ServeHTTP(resp, httptest.NewRequest(tc.method, "/commands", strings.NewReader(tc.body)))
			if resp.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, resp.Code, resp.Body.String())
			}
		})
	}
	if srv.loop.Pending() != 0 {
		t.Fatalf("expected nothing staged, pending=%d", srv.loop.Pending())
	}
}

func TestHTTPSnapshot(t *testing.T) {
	srv := newTestServer(t, observability.Config{})

	resp := httptest.NewRecorder()
	srv.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/snapshot", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}
	var payload struct {
		Type   string            `json:"type"`
		Actors []json.RawMessage `json:"actors"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if payload.Type != proto.TypeSnapshot || len(payload.Actors) != 2 {
		t.Fatalf("unexpected snapshot %s", resp.Body.String())
	}
}

func TestHTTPPprofIsOptIn(t *testing.T) {
	disabled := newTestServer(t, observability.Config{})
	resp := httptest.NewRecorder()
	disabled.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected pprof to be hidden by default, got %d", resp.Code)
	}

	enabled := newTestServer(t, observability.Config{EnablePprofTrace: true})
	resp = httptest.NewRecorder()
	enabled.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected pprof index, got %d", resp.Code)
	}
}

func TestHTTPKeyframes(t *testing.T) {
	keyframes := journal.New(2, 0)
	keyframes.Record(sim.Snapshot{Tick: 20})
	handler := NewHTTPHandler(HTTPHandlerConfig{Journal: keyframes})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/keyframes", nil))
	var window struct {
		Size   int    `json:"size"`
		Newest uint64 `json:"newest"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &window); err != nil {
		t.Fatalf("failed to decode window: %v", err)
	}
	if window.Size != 1 || window.Newest != 1 {
		t.Fatalf("unexpected keyframe window %+v", window)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/keyframes?seq=1", nil))
	var frame struct {
		Tick     uint64 `json:"tick"`
		Sequence uint64 `json:"sequence"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &frame); err != nil {
		t.Fatalf("failed to decode keyframe: %v", err)
	}
	if frame.Tick != 20 || frame.Sequence != 1 {
		t.Fatalf("unexpected keyframe %+v", frame)
	}

	for query, status := range map[string]int{"?seq=9": http.StatusNotFound, "?seq=x": http.StatusBadRequest} {
		resp = httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/keyframes"+query, nil))
		if resp.Code != status {
			t.Fatalf("expected %d for %s, got %d", status, query, resp.Code)
		}
	}
}
