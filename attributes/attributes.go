// Package attributes names the numeric capability handles a controller can
// read and override on a controlled actor, and tracks the overrides it applied
// so they can be reverted when control is released.
package attributes

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownAttribute is returned when the host binding does not expose the
// requested attribute.
var ErrUnknownAttribute = errors.New("unknown attribute")

// Name identifies an attribute independently of the host version.
type Name string

const (
	MaxHealth           Name = "generic.maxHealth"
	FollowRange         Name = "generic.followRange"
	KnockbackResistance Name = "generic.knockbackResistance"
	MovementSpeed       Name = "generic.movementSpeed"
	AttackDamage        Name = "generic.attackDamage"
)

var names = []Name{MaxHealth, FollowRange, KnockbackResistance, MovementSpeed, AttackDamage}

// Names returns every attribute the binding layer is expected to expose.
func Names() []Name {
	out := make([]Name, len(names))
	copy(out, names)
	return out
}

// Handle is an opaque token resolved by the host binding for a Name.
type Handle interface {
	AttributeName() Name
}

// Binding maps attribute names onto the host's attribute storage. Actor
// values are opaque to this package.
type Binding[A comparable] interface {
	AttributeHandle(name Name) (Handle, bool)
	ReadAttribute(actor A, handle Handle) float64
	WriteAttributeOverride(actor A, handle Handle, value float64)
	ClearAttributeOverride(actor A, handle Handle)
}

// Overrides records the attribute overrides applied to one actor.
type Overrides[A comparable] struct {
	mu      sync.Mutex
	actor   A
	binding Binding[A]
	applied map[Name]Handle
}

// NewOverrides constructs an empty override ledger for actor.
func NewOverrides[A comparable](binding Binding[A], actor A) *Overrides[A] {
	return &Overrides[A]{
		actor:   actor,
		binding: binding,
		applied: make(map[Name]Handle),
	}
}

func (o *Overrides[A]) handle(name Name) (Handle, error) {
	if o == nil || o.binding == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAttribute, name)
	}
	h, ok := o.binding.AttributeHandle(name)
	if !ok || h == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAttribute, name)
	}
	return h, nil
}

// Get reads the effective value of the attribute, including any override.
func (o *Overrides[A]) Get(name Name) (float64, error) {
	h, err := o.handle(name)
	if err != nil {
		return 0, err
	}
	return o.binding.ReadAttribute(o.actor, h), nil
}

// Set overrides the attribute and remembers it for later restoration.
func (o *Overrides[A]) Set(name Name, value float64) error {
	h, err := o.handle(name)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.applied[name] = h
	o.mu.Unlock()
	o.binding.WriteAttributeOverride(o.actor, h, value)
	return nil
}

// Reset clears a single override. Resetting an attribute that was never
// overridden is a no-op.
func (o *Overrides[A]) Reset(name Name) error {
	if _, err := o.handle(name); err != nil {
		return err
	}
	o.mu.Lock()
	h, ok := o.applied[name]
	delete(o.applied, name)
	o.mu.Unlock()
	if ok {
		o.binding.ClearAttributeOverride(o.actor, h)
	}
	return nil
}

// ResetAll clears every override applied through this ledger and returns the
// names that were restored.
func (o *Overrides[A]) ResetAll() []Name {
	if o == nil {
		return nil
	}
	o.mu.Lock()
	applied := o.applied
	o.applied = make(map[Name]Handle)
	o.mu.Unlock()

	restored := make([]Name, 0, len(applied))
	for name := range applied {
		restored = append(restored, name)
	}
	sort.Slice(restored, func(i, j int) bool { return restored[i] < restored[j] })
	for _, name := range restored {
		o.binding.ClearAttributeOverride(o.actor, applied[name])
	}
	return restored
}

// Overridden reports the names currently overridden, sorted.
func (o *Overrides[A]) Overridden() []Name {
	if o == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Name, 0, len(o.applied))
	for name := range o.applied {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
