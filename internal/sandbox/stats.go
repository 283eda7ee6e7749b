package sandbox

import "github.com/mortu/Controllable-Mobs-API/attributes"

// Stat enumerates the attribute slots tracked for every sandbox actor.
type Stat uint8

const (
	StatMaxHealth Stat = iota
	StatFollowRange
	StatKnockbackResistance
	StatMovementSpeed
	StatAttackDamage

	StatCount
)

var statNames = [StatCount]attributes.Name{
	StatMaxHealth:           attributes.MaxHealth,
	StatFollowRange:         attributes.FollowRange,
	StatKnockbackResistance: attributes.KnockbackResistance,
	StatMovementSpeed:       attributes.MovementSpeed,
	StatAttackDamage:        attributes.AttackDamage,
}

// statFor resolves the slot backing an attribute name.
func statFor(name attributes.Name) (Stat, bool) {
	for stat, candidate := range statNames {
		if candidate == name {
			return Stat(stat), true
		}
	}
	return 0, false
}

// statHandle is the opaque attribute token handed to the controller core.
type statHandle struct {
	stat Stat
}

func (h statHandle) AttributeName() attributes.Name {
	return statNames[h.stat]
}

// ValueSet stores a fixed vector of attribute values.
type ValueSet [StatCount]float64

// OverrideValue represents a controller override entry.
type OverrideValue struct {
	Active bool
	Value  float64
}

// OverrideSet stores per-slot override entries.
type OverrideSet [StatCount]OverrideValue

// Archetype identifies the kind of mob and its default attribute seed.
type Archetype uint8

const (
	ArchetypeZombie Archetype = iota
	ArchetypeSkeleton
	ArchetypeWolf
	ArchetypeVillager
	// ArchetypeArmorStand is a passive entity without goal selectors; it
	// cannot be put under control.
	ArchetypeArmorStand
)

var archetypeNames = map[Archetype]string{
	ArchetypeZombie:     "zombie",
	ArchetypeSkeleton:   "skeleton",
	ArchetypeWolf:       "wolf",
	ArchetypeVillager:   "villager",
	ArchetypeArmorStand: "armor_stand",
}

func (a Archetype) String() string {
	if name, ok := archetypeNames[a]; ok {
		return name
	}
	return "unknown"
}

// ParseArchetype resolves an archetype by its lower-case name.
func ParseArchetype(name string) (Archetype, bool) {
	for archetype, candidate := range archetypeNames {
		if candidate == name {
			return archetype, true
		}
	}
	return 0, false
}

var archetypeBase = map[Archetype]ValueSet{
	ArchetypeZombie: {
		StatMaxHealth:   20,
		StatFollowRange: 35,
		// Zombies are slow walkers.
		StatMovementSpeed: 0.23,
		StatAttackDamage:  3,
	},
	ArchetypeSkeleton: {
		StatMaxHealth:     20,
		StatFollowRange:   16,
		StatMovementSpeed: 0.25,
		StatAttackDamage:  2,
	},
	ArchetypeWolf: {
		StatMaxHealth:     8,
		StatFollowRange:   16,
		StatMovementSpeed: 0.3,
		StatAttackDamage:  4,
	},
	ArchetypeVillager: {
		StatMaxHealth:     20,
		StatFollowRange:   16,
		StatMovementSpeed: 0.5,
	},
	ArchetypeArmorStand: {
		StatMaxHealth:           20,
		StatKnockbackResistance: 1,
	},
}

// DefaultBase returns a copy of the base values for the archetype.
func DefaultBase(archetype Archetype) ValueSet {
	return archetypeBase[archetype]
}

// Component owns the attribute state of one actor: the archetype base values
// and the overrides layered on top by a controller.
type Component struct {
	base     ValueSet
	override OverrideSet
}

// NewComponent constructs a component seeded with base.
func NewComponent(base ValueSet) Component {
	return Component{base: base}
}

// Get returns the effective value of stat.
func (c *Component) Get(stat Stat) float64 {
	if c == nil || stat >= StatCount {
		return 0
	}
	if o := c.override[stat]; o.Active {
		return o.Value
	}
	return c.base[stat]
}

// Base returns the value of stat ignoring overrides.
func (c *Component) Base(stat Stat) float64 {
	if c == nil || stat >= StatCount {
		return 0
	}
	return c.base[stat]
}

// SetOverride replaces the effective value of stat.
func (c *Component) SetOverride(stat Stat, value float64) {
	if c == nil || stat >= StatCount {
		return
	}
	c.override[stat] = OverrideValue{Active: true, Value: value}
}

// ClearOverride restores the base value of stat.
func (c *Component) ClearOverride(stat Stat) {
	if c == nil || stat >= StatCount {
		return
	}
	c.override[stat] = OverrideValue{}
}

// Overridden reports how many slots currently carry an override.
func (c *Component) Overridden() int {
	if c == nil {
		return 0
	}
	count := 0
	for _, o := range c.override {
		if o.Active {
			count++
		}
	}
	return count
}

// Totals returns the effective values of every slot.
func (c *Component) Totals() ValueSet {
	var totals ValueSet
	for stat := Stat(0); stat < StatCount; stat++ {
		totals[stat] = c.Get(stat)
	}
	return totals
}
