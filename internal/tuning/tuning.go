// Package tuning loads the YAML runtime configuration of the mob simulator.
package tuning

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mortu/Controllable-Mobs-API/action"
	"github.com/mortu/Controllable-Mobs-API/control"
	"github.com/mortu/Controllable-Mobs-API/internal/sandbox"
	"github.com/mortu/Controllable-Mobs-API/internal/sim"
	"github.com/mortu/Controllable-Mobs-API/logging"
)

const (
	defaultTickRate        = 20
	defaultCatchupMaxTicks = 4
	defaultCommandCapacity = 256
	defaultPerActorLimit   = 16
	defaultListen          = ":8080"
	defaultKeyframeEvery   = 20
	defaultKeyframes       = 16
)

type Tuning struct {
	TickRateHz      int    `yaml:"tick_rate_hz" json:"tick_rate_hz,omitempty" jsonschema:"minimum=1,description=Fixed simulation rate"`
	CatchupMaxTicks int    `yaml:"catchup_max_ticks" json:"catchup_max_ticks,omitempty"`
	CommandCapacity int    `yaml:"command_capacity" json:"command_capacity,omitempty"`
	PerActorLimit   int    `yaml:"per_actor_limit" json:"per_actor_limit,omitempty"`
	Listen          string `yaml:"listen" json:"listen,omitempty" jsonschema:"description=HTTP listen address"`

	KeyframeIntervalTicks int `yaml:"keyframe_interval_ticks" json:"keyframe_interval_ticks,omitempty" jsonschema:"description=Ticks between journal keyframes"`
	KeyframeCapacity      int `yaml:"keyframe_capacity" json:"keyframe_capacity,omitempty"`
	KeyframeMaxAgeMs      int `yaml:"keyframe_max_age_ms" json:"keyframe_max_age_ms,omitempty" jsonschema:"description=Zero keeps keyframes until evicted by count"`

	FollowSpeed float64               `yaml:"follow_speed" json:"follow_speed,omitempty"`
	Goals       map[string]GoalTuning `yaml:"goals" json:"goals,omitempty" jsonschema:"description=Per action kind overrides keyed by follow/look/target"`

	Logging LoggingTuning `yaml:"logging" json:"logging,omitempty"`
	Sandbox SandboxTuning `yaml:"sandbox" json:"sandbox,omitempty"`
	Spawns  []Spawn       `yaml:"spawns" json:"spawns,omitempty"`
}

type GoalTuning struct {
	DelayTicks int  `yaml:"delay_ticks" json:"delay_ticks,omitempty"`
	Priority   *int `yaml:"priority" json:"priority,omitempty"`
}

type LoggingTuning struct {
	Sinks           []string `yaml:"sinks" json:"sinks,omitempty" jsonschema:"description=Enabled sinks: console json stream"`
	MinimumSeverity string   `yaml:"minimum_severity" json:"minimum_severity,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	BufferSize      int      `yaml:"buffer_size" json:"buffer_size,omitempty"`
	ConsoleFormat   string   `yaml:"console_format" json:"console_format,omitempty" jsonschema:"enum=text,enum=json"`
	ConsoleColor    bool     `yaml:"console_color" json:"console_color,omitempty"`
	JSONPath        string   `yaml:"json_path" json:"json_path,omitempty"`
	JSONCompress    bool     `yaml:"json_compress" json:"json_compress,omitempty"`
	FlushIntervalMs int      `yaml:"flush_interval_ms" json:"flush_interval_ms,omitempty"`
}

type SandboxTuning struct {
	SpeedScale          float64 `yaml:"speed_scale" json:"speed_scale,omitempty"`
	// WanderRadius disables wandering when negative.
	WanderRadius        float64 `yaml:"wander_radius" json:"wander_radius,omitempty"`
	WanderCooldownTicks int     `yaml:"wander_cooldown_ticks" json:"wander_cooldown_ticks,omitempty"`
	ArrivalDistance     float64 `yaml:"arrival_distance" json:"arrival_distance,omitempty"`
	Seed                int64   `yaml:"seed" json:"seed,omitempty"`
}

// Spawn places Count actors of Archetype at (X, Y) when the simulator boots.
type Spawn struct {
	Archetype string  `yaml:"archetype" json:"archetype" jsonschema:"enum=zombie,enum=skeleton,enum=wolf,enum=villager,enum=armor_stand"`
	World     string  `yaml:"world" json:"world,omitempty"`
	X         float64 `yaml:"x" json:"x"`
	Y         float64 `yaml:"y" json:"y"`
	Count     int     `yaml:"count" json:"count,omitempty"`
}

// Default returns the built-in configuration.
func Default() Tuning {
	return Tuning{}.Normalized()
}

// Load reads and validates the YAML file at path.
func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	return Parse(raw)
}

// Parse decodes YAML tuning and validates it.
func Parse(raw []byte) (Tuning, error) {
	var t Tuning
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t.Normalized(), nil
}

// Validate rejects names that do not resolve to a known kind or archetype.
func (t Tuning) Validate() error {
	for name := range t.Goals {
		if _, ok := parseKind(name); !ok {
			return fmt.Errorf("goals: unknown action kind %q", name)
		}
	}
	for i, spawn := range t.Spawns {
		if _, ok := sandbox.ParseArchetype(spawn.Archetype); !ok {
			return fmt.Errorf("spawns[%d]: unknown archetype %q", i, spawn.Archetype)
		}
		if spawn.Count < 0 {
			return fmt.Errorf("spawns[%d]: negative count %d", i, spawn.Count)
		}
	}
	for _, sink := range t.Logging.Sinks {
		switch sink {
		case SinkConsole, SinkJSON, SinkStream:
		default:
			return fmt.Errorf("logging: unknown sink %q", sink)
		}
	}
	return nil
}

// Sink names accepted in logging.sinks.
const (
	SinkConsole = "console"
	SinkJSON    = "json"
	SinkStream  = "stream"
)

// Normalized fills unset fields with defaults.
func (t Tuning) Normalized() Tuning {
	normalized := t
	if normalized.TickRateHz <= 0 {
		normalized.TickRateHz = defaultTickRate
	}
	if normalized.CatchupMaxTicks <= 0 {
		normalized.CatchupMaxTicks = defaultCatchupMaxTicks
	}
	if normalized.CommandCapacity <= 0 {
		normalized.CommandCapacity = defaultCommandCapacity
	}
	if normalized.PerActorLimit <= 0 {
		normalized.PerActorLimit = defaultPerActorLimit
	}
	if strings.TrimSpace(normalized.Listen) == "" {
		normalized.Listen = defaultListen
	}
	if normalized.KeyframeIntervalTicks <= 0 {
		normalized.KeyframeIntervalTicks = defaultKeyframeEvery
	}
	if normalized.KeyframeCapacity <= 0 {
		normalized.KeyframeCapacity = defaultKeyframes
	}
	if normalized.KeyframeMaxAgeMs < 0 {
		normalized.KeyframeMaxAgeMs = 0
	}
	if normalized.FollowSpeed <= 0 {
		normalized.FollowSpeed = control.DefaultFollowSpeed
	}

	logDefaults := logging.DefaultConfig()
	if len(normalized.Logging.Sinks) == 0 {
		normalized.Logging.Sinks = append([]string(nil), logDefaults.EnabledSinks...)
	}
	if normalized.Logging.MinimumSeverity == "" {
		normalized.Logging.MinimumSeverity = logDefaults.MinimumSeverity.String()
	}
	if normalized.Logging.BufferSize <= 0 {
		normalized.Logging.BufferSize = logDefaults.BufferSize
	}
	if normalized.Logging.ConsoleFormat == "" {
		normalized.Logging.ConsoleFormat = logDefaults.Console.Format
	}
	if normalized.Logging.FlushIntervalMs <= 0 {
		normalized.Logging.FlushIntervalMs = int(logDefaults.JSON.FlushInterval / time.Millisecond)
	}

	sandboxDefaults := sandbox.DefaultConfig()
	if normalized.Sandbox.SpeedScale <= 0 {
		normalized.Sandbox.SpeedScale = sandboxDefaults.SpeedScale
	}
	if normalized.Sandbox.WanderRadius == 0 {
		normalized.Sandbox.WanderRadius = sandboxDefaults.WanderRadius
	}
	if normalized.Sandbox.WanderCooldownTicks <= 0 {
		normalized.Sandbox.WanderCooldownTicks = sandboxDefaults.WanderCooldownTicks
	}
	if normalized.Sandbox.ArrivalDistance <= 0 {
		normalized.Sandbox.ArrivalDistance = sandboxDefaults.ArrivalDistance
	}
	if normalized.Sandbox.Seed == 0 {
		normalized.Sandbox.Seed = sandboxDefaults.Seed
	}

	if len(t.Spawns) > 0 {
		normalized.Spawns = make([]Spawn, len(t.Spawns))
		for i, spawn := range t.Spawns {
			if spawn.World == "" {
				spawn.World = DefaultWorld
			}
			if spawn.Count == 0 {
				spawn.Count = 1
			}
			normalized.Spawns[i] = spawn
		}
	}
	return normalized
}

// parseKind accepts kind names in any case ("follow", "FOLLOW").
func parseKind(name string) (action.Kind, bool) {
	return action.ParseKind(strings.ToUpper(strings.TrimSpace(name)))
}

// DefaultWorld names the world plane used by spawns that omit one.
const DefaultWorld = "overworld"

// ControlConfig builds the registry configuration. Unknown kind names are
// skipped; Validate reports them.
func (t Tuning) ControlConfig() control.Config {
	cfg := control.DefaultConfig()
	cfg.FollowSpeed = t.FollowSpeed
	for name, goal := range t.Goals {
		kind, ok := parseKind(name)
		if !ok {
			continue
		}
		if goal.DelayTicks > 0 {
			if cfg.Cadence == nil {
				cfg.Cadence = make(map[action.Kind]int)
			}
			cfg.Cadence[kind] = goal.DelayTicks
		}
		if goal.Priority != nil {
			if cfg.Priority == nil {
				cfg.Priority = make(map[action.Kind]int)
			}
			cfg.Priority[kind] = *goal.Priority
		}
	}
	return cfg
}

// LoggingConfig builds the event router configuration.
func (t Tuning) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = append([]string(nil), t.Logging.Sinks...)
	cfg.MinimumSeverity = logging.ParseSeverity(t.Logging.MinimumSeverity)
	if t.Logging.BufferSize > 0 {
		cfg.BufferSize = t.Logging.BufferSize
	}
	cfg.Console.Format = t.Logging.ConsoleFormat
	cfg.Console.UseColor = t.Logging.ConsoleColor
	cfg.JSON.FilePath = t.Logging.JSONPath
	cfg.JSON.Compress = t.Logging.JSONCompress
	if t.Logging.FlushIntervalMs > 0 {
		cfg.JSON.FlushInterval = time.Duration(t.Logging.FlushIntervalMs) * time.Millisecond
	}
	return cfg
}

// SandboxConfig builds the in-memory world configuration.
func (t Tuning) SandboxConfig() sandbox.Config {
	return sandbox.Config{
		SpeedScale:          t.Sandbox.SpeedScale,
		WanderRadius:        t.Sandbox.WanderRadius,
		WanderCooldownTicks: t.Sandbox.WanderCooldownTicks,
		ArrivalDistance:     t.Sandbox.ArrivalDistance,
		Seed:                t.Sandbox.Seed,
	}
}

// LoopConfig builds the tick loop configuration.
func (t Tuning) LoopConfig() sim.LoopConfig {
	return sim.LoopConfig{
		TickRate:        t.TickRateHz,
		CatchupMaxTicks: t.CatchupMaxTicks,
		CommandCapacity: t.CommandCapacity,
		PerActorLimit:   t.PerActorLimit,
		WarningStep:     t.CommandCapacity / 4,
	}
}

// KeyframeMaxAge converts the keyframe retention window.
func (t Tuning) KeyframeMaxAge() time.Duration {
	return time.Duration(t.KeyframeMaxAgeMs) * time.Millisecond
}
