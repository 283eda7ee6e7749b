package tuning

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mortu/Controllable-Mobs-API/action"
	"github.com/mortu/Controllable-Mobs-API/logging"
)

const sample = `
tick_rate_hz: 10
follow_speed: 1.5
goals:
  follow:
    delay_ticks: 3
  TARGET:
    priority: -1
logging:
  sinks: [console, json]
  minimum_severity: debug
  json_path: events.jsonl.zst
  json_compress: true
  flush_interval_ms: 250
sandbox:
  wander_radius: -1
  seed: 42
spawns:
  - archetype: zombie
    x: 1
    y: 2
    count: 3
  - archetype: villager
    world: nether
`

func TestParseAppliesOverrides(t *testing.T) {
	tuning, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, 10, tuning.TickRateHz)
	assert.Equal(t, defaultCatchupMaxTicks, tuning.CatchupMaxTicks)
	assert.Equal(t, defaultListen, tuning.Listen)

	cfg := tuning.ControlConfig()
	assert.Equal(t, 1.5, cfg.FollowSpeed)
	assert.Equal(t, map[action.Kind]int{action.KindFollow: 3}, cfg.Cadence)
	assert.Equal(t, map[action.Kind]int{action.KindTarget: -1}, cfg.Priority)

	logCfg := tuning.LoggingConfig()
	assert.Equal(t, []string{SinkConsole, SinkJSON}, logCfg.EnabledSinks)
	assert.Equal(t, logging.SeverityDebug, logCfg.MinimumSeverity)
	assert.True(t, logCfg.JSON.Compress)
	assert.Equal(t, "events.jsonl.zst", logCfg.JSON.FilePath)
	assert.Equal(t, 250*time.Millisecond, logCfg.JSON.FlushInterval)

	sandboxCfg := tuning.SandboxConfig()
	assert.Equal(t, -1.0, sandboxCfg.WanderRadius)
	assert.Equal(t, int64(42), sandboxCfg.Seed)

	require.Len(t, tuning.Spawns, 2)
	assert.Equal(t, Spawn{Archetype: "zombie", World: DefaultWorld, X: 1, Y: 2, Count: 3}, tuning.Spawns[0])
	assert.Equal(t, Spawn{Archetype: "villager", World: "nether", Count: 1}, tuning.Spawns[1])

	loop := tuning.LoopConfig()
	assert.Equal(t, 10, loop.TickRate)
	assert.Equal(t, defaultCommandCapacity, loop.CommandCapacity)
}

func TestParseRejectsUnknownNames(t *testing.T) {
	cases := map[string]string{
		"kind":      "goals:\n  jump:\n    delay_ticks: 2\n",
		"archetype": "spawns:\n  - archetype: dragon\n",
		"sink":      "logging:\n  sinks: [syslog]\n",
		"count":     "spawns:\n  - archetype: wolf\n    count: -2\n",
		"syntax":    "tick_rate_hz: [",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "tuning.yaml")
		})
	}
}

func TestDefaultIsNormalized(t *testing.T) {
	tuning := Default()
	assert.Equal(t, defaultTickRate, tuning.TickRateHz)
	assert.Equal(t, []string{SinkConsole}, tuning.Logging.Sinks)
	assert.Equal(t, "info", tuning.Logging.MinimumSeverity)
	assert.Equal(t, "text", tuning.Logging.ConsoleFormat)
	assert.Equal(t, 8.0, tuning.Sandbox.WanderRadius)
	assert.Equal(t, defaultKeyframeEvery, tuning.KeyframeIntervalTicks)
	assert.Equal(t, defaultKeyframes, tuning.KeyframeCapacity)
	assert.Zero(t, tuning.KeyframeMaxAge())
	assert.Empty(t, tuning.ControlConfig().Cadence)
	assert.Equal(t, tuning, tuning.Normalized())
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: 127.0.0.1:9000\n"), 0o600))

	tuning, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", tuning.Listen)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestShippedTuningFileLoads(t *testing.T) {
	tun, err := Load(filepath.Join("..", "..", "config", "tuning.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 20, tun.TickRateHz)
	assert.Equal(t, []string{SinkConsole, SinkStream}, tun.Logging.Sinks)
	require.Len(t, tun.Spawns, 5)
	assert.Equal(t, "nether", tun.Spawns[3].World)
	assert.Equal(t, 2, tun.Spawns[3].Count)
	assert.Equal(t, DefaultWorld, tun.Spawns[4].World)
}
