package logging_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mortu/Controllable-Mobs-API/logging"
	logcontrol "github.com/mortu/Controllable-Mobs-API/logging/control"
	"github.com/mortu/Controllable-Mobs-API/logging/sinks"
)

func TestRouterDeliversFilteredEvents(t *testing.T) {
	fixed := time.Unix(1700000000, 0)
	memory := sinks.NewMemorySink()
	metrics := &logging.Metrics{}

	cfg := logging.DefaultConfig()
	cfg.Fields = map[string]any{"host": "sandbox/1"}
	router := logging.NewRouter(cfg, logging.RouterOptions{
		Clock:   logging.ClockFunc(func() time.Time { return fixed }),
		Metrics: metrics,
	}, []logging.NamedSink{{Name: "memory", Sink: memory}})

	ctx := context.Background()
	actor := logging.EntityRef{ID: "zombie", Kind: logging.EntityKindActor}
	logcontrol.Assigned(ctx, router, 3, actor, logcontrol.AssignedPayload{ControllerID: "c1", ClearDefaultBehavior: true}, nil)
	logcontrol.ActionSet(ctx, router, 3, actor, nil, logcontrol.ActionSetPayload{Kind: "FOLLOW"}, nil)
	router.Publish(ctx, logging.Event{})

	require.NoError(t, router.Close(ctx))

	events := memory.Events()
	require.Len(t, events, 1, "debug action events sit below the info threshold")
	assert.Equal(t, logcontrol.EventAssigned, events[0].Type)
	assert.Equal(t, fixed, events[0].Time)
	assert.Equal(t, "sandbox/1", events[0].Extra["host"])

	stats := router.Stats()
	assert.Equal(t, uint64(1), stats.EventsTotal)
	assert.Equal(t, uint64(1), metrics.Snapshot()["logging.events_total"])
}

func TestRouterIgnoresPublishAfterClose(t *testing.T) {
	memory := sinks.NewMemorySink()
	router := logging.NewRouter(logging.DefaultConfig(), logging.RouterOptions{}, []logging.NamedSink{{Name: "memory", Sink: memory}})
	require.NoError(t, router.Close(context.Background()))
	require.NoError(t, router.Close(context.Background()))

	router.Publish(context.Background(), logging.Event{Type: logcontrol.EventGoalFault, Severity: logging.SeverityError})
	assert.Empty(t, memory.Events())
	assert.Same(t, memory, router.Sink("memory"))
	assert.Nil(t, router.Sink("missing"))
}

func TestWithFieldsKeepsEventValues(t *testing.T) {
	memory := sinks.NewMemorySink()
	pub := logging.WithFields(logging.PublisherFunc(func(_ context.Context, event logging.Event) {
		memory.Write(event)
	}), map[string]any{"mob": "c1", "kind": "default"})

	pub.Publish(context.Background(), logging.Event{Type: "x"}.WithExtra("kind", "FOLLOW"))

	events := memory.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "c1", events[0].Extra["mob"])
	assert.Equal(t, "FOLLOW", events[0].Extra["kind"])
}

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, logging.SeverityDebug, logging.ParseSeverity("debug"))
	assert.Equal(t, logging.SeverityWarn, logging.ParseSeverity("warning"))
	assert.Equal(t, logging.SeverityInfo, logging.ParseSeverity("loud"))
	assert.Equal(t, "error", logging.SeverityError.String())
}
