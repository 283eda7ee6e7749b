package sandbox_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mortu/Controllable-Mobs-API/action"
	"github.com/mortu/Controllable-Mobs-API/attributes"
	"github.com/mortu/Controllable-Mobs-API/control"
	"github.com/mortu/Controllable-Mobs-API/goal"
	"github.com/mortu/Controllable-Mobs-API/internal/sandbox"
)

const overworld = "overworld"

func quietWorld() *sandbox.World {
	cfg := sandbox.DefaultConfig()
	cfg.WanderRadius = 0
	return sandbox.New(cfg)
}

func step(world *sandbox.World, registry *control.Registry, from uint64, n int) uint64 {
	tick := from
	for i := 0; i < n; i++ {
		tick++
		registry.Tick(context.Background(), tick)
		world.Step(tick)
	}
	return tick
}

func TestFollowWalksUntilMinimumDistance(t *testing.T) {
	world := quietWorld()
	registry := control.NewRegistry(world, control.DefaultConfig())
	zombie := world.Spawn(sandbox.ArchetypeZombie, overworld, 0, 0)
	villager := world.Spawn(sandbox.ArchetypeVillager, overworld, 20, 0)

	mob, err := registry.Assign(zombie, true)
	require.NoError(t, err)
	follow, err := action.NewFollow(villager, 4, 25)
	require.NoError(t, err)
	require.NoError(t, mob.SetAction(follow))

	step(world, registry, 0, 40)

	_, pos := world.Position(zombie)
	assert.InDelta(t, 18.4, pos.X, 1e-6)
	assert.Equal(t, goal.StateIdle, mob.GoalState(action.KindFollow))

	calls := world.Calls(zombie)
	assert.Equal(t, 1, calls.CreatePath)
	assert.Equal(t, 1, calls.FollowPath)
	assert.Equal(t, 1, calls.StopNavigation)
	assert.Equal(t, 1, calls.ClearDefaults)
	assert.Zero(t, calls.DefaultTicks)
}

func TestFollowWidensRangeAndUnassignRestores(t *testing.T) {
	world := quietWorld()
	registry := control.NewRegistry(world, control.DefaultConfig())
	skeleton := world.Spawn(sandbox.ArchetypeSkeleton, overworld, 0, 0)
	villager := world.Spawn(sandbox.ArchetypeVillager, overworld, 30, 0)

	mob, err := registry.Assign(skeleton, true)
	require.NoError(t, err)
	follow, err := action.NewFollow(villager, 4, 100)
	require.NoError(t, err)
	require.NoError(t, mob.SetAction(follow))

	step(world, registry, 0, 1)
	require.Equal(t, goal.StateActive, mob.GoalState(action.KindFollow))
	rangeValue, err := mob.Attributes().Get(attributes.FollowRange)
	require.NoError(t, err)
	assert.InDelta(t, 30.0, rangeValue, 1e-9)
	assert.Equal(t, 1, world.Overrides(skeleton))

	require.NoError(t, registry.Unassign(mob, true))
	assert.Zero(t, world.Overrides(skeleton))
	calls := world.Calls(skeleton)
	assert.Equal(t, 1, calls.StopNavigation)
	assert.Equal(t, 1, calls.RestoreDefaults)

	step(world, registry, 1, 1)
	assert.Equal(t, 1, world.Calls(skeleton).DefaultTicks)
}

func TestFollowAcrossWorldsIsBlocked(t *testing.T) {
	world := quietWorld()
	registry := control.NewRegistry(world, control.DefaultConfig())
	zombie := world.Spawn(sandbox.ArchetypeZombie, overworld, 0, 0)
	villager := world.Spawn(sandbox.ArchetypeVillager, "nether", 20, 0)

	mob, err := registry.Assign(zombie, true)
	require.NoError(t, err)
	follow, err := action.NewFollow(villager, 4, 25)
	require.NoError(t, err)
	require.NoError(t, mob.SetAction(follow))

	step(world, registry, 0, 5)
	assert.Zero(t, world.Calls(zombie).CreatePath)
	assert.Equal(t, goal.StateIdle, mob.GoalState(action.KindFollow))

	world.Teleport(villager, overworld, 20, 0)
	step(world, registry, 5, 1)
	assert.Equal(t, goal.StateActive, mob.GoalState(action.KindFollow))
}

func TestTargetDrivesDefaultChase(t *testing.T) {
	world := quietWorld()
	registry := control.NewRegistry(world, control.DefaultConfig())
	wolf := world.Spawn(sandbox.ArchetypeWolf, overworld, 0, 0)
	sheep := world.Spawn(sandbox.ArchetypeVillager, overworld, 10, 0)

	mob, err := registry.Assign(wolf, false)
	require.NoError(t, err)
	target, err := action.NewTarget(sheep)
	require.NoError(t, err)
	require.NoError(t, mob.SetAction(target))

	step(world, registry, 0, 5)
	assert.Same(t, sheep, world.GoalTarget(wolf))
	_, pos := world.Position(wolf)
	assert.Greater(t, pos.X, 0.0)
	assert.Positive(t, world.Calls(wolf).DefaultTicks)

	none, err := action.NewTarget(nil)
	require.NoError(t, err)
	require.NoError(t, mob.SetAction(none))
	step(world, registry, 5, 1)
	assert.Nil(t, world.GoalTarget(wolf))
}

func TestLookShowsInSnapshot(t *testing.T) {
	world := quietWorld()
	registry := control.NewRegistry(world, control.DefaultConfig())
	zombie := world.Spawn(sandbox.ArchetypeZombie, overworld, 0, 0)
	villager := world.Spawn(sandbox.ArchetypeVillager, overworld, 3, 4)

	mob, err := registry.Assign(zombie, true)
	require.NoError(t, err)
	look, err := action.NewLook(villager)
	require.NoError(t, err)
	require.NoError(t, mob.SetAction(look))
	step(world, registry, 0, 1)

	snapshot := world.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, villager.ActorID(), snapshot[0].LookTarget)
	assert.True(t, snapshot[0].DefaultsCleared)
	assert.Equal(t, "zombie", snapshot[0].Archetype)
	assert.Equal(t, 20.0, snapshot[0].Attributes[string(attributes.MaxHealth)])
	assert.Equal(t, 25.0, world.SquaredDistance(zombie, villager))
}

func TestRemovedTargetBlocksGoals(t *testing.T) {
	world := quietWorld()
	registry := control.NewRegistry(world, control.DefaultConfig())
	zombie := world.Spawn(sandbox.ArchetypeZombie, overworld, 0, 0)
	wolf := world.Spawn(sandbox.ArchetypeWolf, overworld, 0, 5)
	villager := world.Spawn(sandbox.ArchetypeVillager, overworld, 20, 0)

	follower, err := registry.Assign(zombie, true)
	require.NoError(t, err)
	follow, err := action.NewFollow(villager, 4, 25)
	require.NoError(t, err)
	require.NoError(t, follower.SetAction(follow))

	hunter, err := registry.Assign(wolf, false)
	require.NoError(t, err)
	target, err := action.NewTarget(villager)
	require.NoError(t, err)
	require.NoError(t, hunter.SetAction(target))

	tick := step(world, registry, 0, 1)
	require.Equal(t, goal.StateActive, follower.GoalState(action.KindFollow))
	require.Equal(t, goal.StateActive, hunter.GoalState(action.KindTarget))
	assert.True(t, world.SameWorld(zombie, wolf))

	require.True(t, world.Remove(villager))
	assert.False(t, world.SameWorld(zombie, villager))

	step(world, registry, tick, 1)
	assert.Equal(t, goal.StateIdle, follower.GoalState(action.KindFollow))
	assert.Equal(t, goal.StateIdle, hunter.GoalState(action.KindTarget))
	assert.Equal(t, 1, world.Calls(zombie).StopNavigation)
	assert.Nil(t, world.GoalTarget(wolf))
}

func TestControllability(t *testing.T) {
	world := quietWorld()
	registry := control.NewRegistry(world, control.DefaultConfig())
	stand := world.Spawn(sandbox.ArchetypeArmorStand, overworld, 0, 0)
	zombie := world.Spawn(sandbox.ArchetypeZombie, overworld, 0, 0)

	_, err := registry.Assign(stand, false)
	require.ErrorIs(t, err, control.ErrInvalidActor)

	require.True(t, world.Remove(zombie))
	require.False(t, world.Remove(zombie))
	_, err = registry.Assign(zombie, false)
	require.ErrorIs(t, err, control.ErrInvalidActor)
	assert.Equal(t, sandbox.Version, world.Version())
}

func TestWanderMovesIdleMobs(t *testing.T) {
	cfg := sandbox.DefaultConfig()
	cfg.WanderCooldownTicks = 1
	world := sandbox.New(cfg)
	villager := world.Spawn(sandbox.ArchetypeVillager, overworld, 0, 0)

	for tick := uint64(1); tick <= 10; tick++ {
		world.Step(tick)
	}
	_, pos := world.Position(villager)
	assert.NotEqual(t, sandbox.Vec{}, pos)
	assert.Equal(t, 10, world.Calls(villager).DefaultTicks)
	assert.Equal(t, uint64(10), world.Tick())
}

func TestParseArchetype(t *testing.T) {
	archetype, ok := sandbox.ParseArchetype("wolf")
	require.True(t, ok)
	assert.Equal(t, sandbox.ArchetypeWolf, archetype)
	_, ok = sandbox.ParseArchetype("dragon")
	assert.False(t, ok)
}
