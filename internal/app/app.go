package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mortu/Controllable-Mobs-API/control"
	"github.com/mortu/Controllable-Mobs-API/internal/journal"
	servernet "github.com/mortu/Controllable-Mobs-API/internal/net"
	"github.com/mortu/Controllable-Mobs-API/internal/net/intake"
	"github.com/mortu/Controllable-Mobs-API/internal/net/ws"
	"github.com/mortu/Controllable-Mobs-API/internal/observability"
	"github.com/mortu/Controllable-Mobs-API/internal/sandbox"
	"github.com/mortu/Controllable-Mobs-API/internal/sim"
	"github.com/mortu/Controllable-Mobs-API/internal/telemetry"
	"github.com/mortu/Controllable-Mobs-API/internal/tuning"
	"github.com/mortu/Controllable-Mobs-API/logging"
	loggingSinks "github.com/mortu/Controllable-Mobs-API/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	Logger        *logrus.Logger
	Observability observability.Config
	// TuningPath names a YAML tuning file. Empty uses the built-in defaults.
	TuningPath string
	// Demo stages a scripted set of controller commands after spawning.
	Demo bool
	// Console receives the console sink output. Defaults to os.Stdout.
	Console io.Writer
}

func Run(ctx context.Context, cfg Config) error {
	baseLogger := cfg.Logger
	if baseLogger == nil {
		baseLogger = logrus.StandardLogger()
	}
	telemetryLogger := telemetry.WrapLogger(baseLogger)

	tun := tuning.Default()
	if cfg.TuningPath != "" {
		loaded, err := tuning.Load(cfg.TuningPath)
		if err != nil {
			return fmt.Errorf("failed to load tuning: %w", err)
		}
		tun = loaded
	}
	tun, observabilityCfg := applyEnv(tun, cfg.Observability, baseLogger, telemetryLogger)

	metrics := &logging.Metrics{}
	telemetryMetrics := telemetry.WrapMetrics(metrics)

	console := cfg.Console
	if console == nil {
		console = os.Stdout
	}
	logConfig := tun.LoggingConfig()
	namedSinks, stream, err := buildSinks(logConfig, console, telemetryMetrics)
	if err != nil {
		return err
	}
	router := logging.NewRouter(logConfig, logging.RouterOptions{
		Clock:    logging.ClockFunc(time.Now),
		Fallback: baseLogger.WithField("component", "logging"),
		Metrics:  metrics,
	}, namedSinks)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	world := sandbox.New(tun.SandboxConfig())
	spawned := spawnAll(world, tun.Spawns)
	telemetryLogger.Printf("spawned %d actors across %v", len(spawned), world.Worlds())

	controlCfg := tun.ControlConfig()
	controlCfg.Publisher = router
	controlCfg.Metrics = telemetryMetrics
	registry := control.NewRegistry(world, controlCfg)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := registry.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to release controllers: %v", cerr)
		}
	}()

	engine, err := sim.NewEngine(world, registry, sim.Deps{
		Logger:  telemetryLogger,
		Metrics: telemetryMetrics,
		Clock:   logging.ClockFunc(time.Now),
	})
	if err != nil {
		return fmt.Errorf("failed to construct engine: %w", err)
	}
	keyframes := journal.New(tun.KeyframeCapacity, tun.KeyframeMaxAge())
	keyframes.AttachTelemetry(telemetryMetrics)
	keyframeEvery := uint64(tun.KeyframeIntervalTicks)
	loop := sim.NewLoop(engine, tun.LoopConfig(), sim.LoopHooks{
		AfterStep: func(result sim.LoopStepResult) {
			if result.Tick%keyframeEvery == 0 {
				keyframes.Record(result.Snapshot)
			}
		},
		OnQueueWarning: func(length int) {
			telemetryLogger.Printf("[loop] command queue at %d entries", length)
		},
	})

	if cfg.Demo {
		for _, cmd := range demoCommands(spawned) {
			if ok, reason := loop.Enqueue(cmd); !ok {
				telemetryLogger.Printf("demo command %s for %s dropped: %s", cmd.Type, cmd.ActorID, reason)
			}
		}
	}

	commandCtx := intake.CommandContext{
		Queue:    loop,
		HasActor: engine.HasActor,
		Tick:     loop.Tick,
		Now:      time.Now,
	}
	handler := servernet.NewHTTPHandler(servernet.HTTPHandlerConfig{
		Loop:    loop,
		Journal: keyframes,
		Router:  router,
		Metrics: metrics,
		WS: ws.NewHandler(ws.HandlerConfig{
			Logger:   telemetryLogger,
			Intake:   commandCtx,
			Stream:   stream,
			Snapshot: loop.Snapshot,
		}),
		Intake:        commandCtx,
		HostVersion:   sandbox.Version,
		Logger:        telemetryLogger,
		Observability: observabilityCfg,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(runCtx)
	}()
	defer func() {
		cancel()
		<-loopDone
	}()

	srv := &http.Server{Addr: tun.Listen, Handler: handler}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()
	telemetryLogger.Printf("server listening on %s (tick rate %d Hz)", srv.Addr, loop.TickRate())

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		telemetryLogger.Printf("server shutdown: %v", err)
	}
	return nil
}

// applyEnv layers environment overrides on top of the tuning file. Invalid
// values are logged and ignored.
func applyEnv(tun tuning.Tuning, obs observability.Config, base *logrus.Logger, logger telemetry.Logger) (tuning.Tuning, observability.Config) {
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if level, err := logrus.ParseLevel(raw); err == nil {
			base.SetLevel(level)
			tun.Logging.MinimumSeverity = strings.ToLower(raw)
		} else {
			logger.Printf("invalid LOG_LEVEL=%q: %v", raw, err)
		}
	}
	if raw := os.Getenv("LOG_FORMAT"); raw != "" {
		switch raw {
		case "json":
			base.SetFormatter(&logrus.JSONFormatter{})
			tun.Logging.ConsoleFormat = raw
		case "text":
			tun.Logging.ConsoleFormat = raw
		default:
			logger.Printf("invalid LOG_FORMAT=%q: expected text or json", raw)
		}
	}
	if raw := os.Getenv("TICK_RATE_HZ"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			tun.TickRateHz = value
		} else {
			logger.Printf("invalid TICK_RATE_HZ=%q", raw)
		}
	}
	if raw := os.Getenv("LISTEN_ADDR"); raw != "" {
		tun.Listen = raw
	}
	if raw := os.Getenv("ENABLE_PPROF_TRACE"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			obs.EnablePprofTrace = value
		} else {
			logger.Printf("invalid ENABLE_PPROF_TRACE=%q: %v", raw, err)
		}
	}
	return tun, obs
}

func buildSinks(cfg logging.Config, console io.Writer, metrics telemetry.Metrics) ([]logging.NamedSink, *ws.Stream, error) {
	var (
		named  []logging.NamedSink
		stream *ws.Stream
	)
	if cfg.HasSink(tuning.SinkConsole) {
		named = append(named, logging.NamedSink{Name: tuning.SinkConsole, Sink: loggingSinks.NewConsoleSink(console, cfg.Console)})
	}
	if cfg.HasSink(tuning.SinkJSON) {
		sink, err := loggingSinks.OpenJSONFile(cfg.JSON)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open json sink: %w", err)
		}
		named = append(named, logging.NamedSink{Name: tuning.SinkJSON, Sink: sink})
	}
	if cfg.HasSink(tuning.SinkStream) {
		stream = ws.NewStream(0, metrics)
		named = append(named, logging.NamedSink{Name: tuning.SinkStream, Sink: stream})
	}
	return named, stream, nil
}

func spawnAll(world *sandbox.World, spawns []tuning.Spawn) []*sandbox.Actor {
	var spawned []*sandbox.Actor
	for _, spawn := range spawns {
		archetype, ok := sandbox.ParseArchetype(spawn.Archetype)
		if !ok {
			continue
		}
		for i := 0; i < spawn.Count; i++ {
			spawned = append(spawned, world.Spawn(archetype, spawn.World, spawn.X+float64(i), spawn.Y))
		}
	}
	return spawned
}
