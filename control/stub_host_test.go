package control

import (
	"fmt"
	"sync"

	"github.com/mortu/Controllable-Mobs-API/attributes"
	"github.com/mortu/Controllable-Mobs-API/host"
)

type stubActor struct {
	id           string
	world        string
	x, y         float64
	controllable bool
}

func (a *stubActor) ActorID() string { return a.id }

type stubHandle attributes.Name

func (h stubHandle) AttributeName() attributes.Name { return attributes.Name(h) }

// stubHost records every capability call made by the controller core.
type stubHost struct {
	mu sync.Mutex

	calls     []string
	counts    map[string]int
	navigates map[host.Actor]bool
	targets   map[host.Actor]host.Actor
	legacy    map[host.Actor]host.Actor
	looks     map[host.Actor]host.Actor
	cleared   map[host.Actor]bool

	base      map[attributes.Name]float64
	overrides map[host.Actor]map[attributes.Name]float64

	unreachable    bool
	defaultInvokes map[host.Actor]int
}

func newStubHost() *stubHost {
	return &stubHost{
		counts:    make(map[string]int),
		navigates: make(map[host.Actor]bool),
		targets:   make(map[host.Actor]host.Actor),
		legacy:    make(map[host.Actor]host.Actor),
		looks:     make(map[host.Actor]host.Actor),
		cleared:   make(map[host.Actor]bool),
		base: map[attributes.Name]float64{
			attributes.MaxHealth:           20,
			attributes.FollowRange:         16,
			attributes.KnockbackResistance: 0,
			attributes.MovementSpeed:       0.25,
			attributes.AttackDamage:        2,
		},
		overrides:      make(map[host.Actor]map[attributes.Name]float64),
		defaultInvokes: make(map[host.Actor]int),
	}
}

func newActor(id string, x, y float64) *stubActor {
	return &stubActor{id: id, world: "overworld", x: x, y: y, controllable: true}
}

func (h *stubHost) record(name string, actor host.Actor) {
	h.calls = append(h.calls, fmt.Sprintf("%s:%s", name, actor.ActorID()))
	h.counts[name]++
}

func (h *stubHost) count(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[name]
}

func (h *stubHost) callLog() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.calls))
	copy(out, h.calls)
	return out
}

// stepDefaults simulates the host running its own behaviours for actors
// that were not cleared.
func (h *stubHost) stepDefaults(actors ...host.Actor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, actor := range actors {
		if !h.cleared[actor] {
			h.defaultInvokes[actor]++
		}
	}
}

func (h *stubHost) SquaredDistance(a, b host.Actor) float64 {
	pa, pb := a.(*stubActor), b.(*stubActor)
	dx, dy := pa.x-pb.x, pa.y-pb.y
	return dx*dx + dy*dy
}

func (h *stubHost) SameWorld(a, b host.Actor) bool {
	return a.(*stubActor).world == b.(*stubActor).world
}

func (h *stubHost) CreatePath(actor, target host.Actor) (host.Path, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("createPath", actor)
	if h.unreachable {
		return nil, false
	}
	return target.ActorID(), true
}

func (h *stubHost) FollowPath(actor host.Actor, path host.Path, speed float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("followPath", actor)
	h.navigates[actor] = true
}

func (h *stubHost) StopNavigation(actor host.Actor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("stopNavigation", actor)
	h.navigates[actor] = false
}

func (h *stubHost) IsNavigating(actor host.Actor) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.navigates[actor]
}

func (h *stubHost) SetGoalTarget(actor, target host.Actor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("setGoalTarget", actor)
	h.targets[actor] = target
}

func (h *stubHost) SetLegacyTarget(actor, target host.Actor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("setLegacyTarget", actor)
	h.legacy[actor] = target
}

func (h *stubHost) goalTarget(actor host.Actor) host.Actor {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.targets[actor]
}

func (h *stubHost) LookAt(actor, target host.Actor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("lookAt", actor)
	h.looks[actor] = target
}

func (h *stubHost) ClearDefaultBehaviors(actor host.Actor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("clearDefaults", actor)
	h.cleared[actor] = true
}

func (h *stubHost) RestoreDefaultBehaviors(actor host.Actor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("restoreDefaults", actor)
	h.cleared[actor] = false
}

func (h *stubHost) defaultsCleared(actor host.Actor) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cleared[actor]
}

func (h *stubHost) AttributeHandle(name attributes.Name) (attributes.Handle, bool) {
	if _, ok := h.base[name]; !ok {
		return nil, false
	}
	return stubHandle(name), true
}

func (h *stubHost) ReadAttribute(actor host.Actor, handle attributes.Handle) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	name := handle.AttributeName()
	if v, ok := h.overrides[actor][name]; ok {
		return v
	}
	return h.base[name]
}

func (h *stubHost) WriteAttributeOverride(actor host.Actor, handle attributes.Handle, value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.overrides[actor] == nil {
		h.overrides[actor] = make(map[attributes.Name]float64)
	}
	h.overrides[actor][handle.AttributeName()] = value
}

func (h *stubHost) ClearAttributeOverride(actor host.Actor, handle attributes.Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.overrides[actor], handle.AttributeName())
}

func (h *stubHost) overrideCount(actor host.Actor) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.overrides[actor])
}

func (h *stubHost) IsControllable(actor host.Actor) bool {
	a, ok := actor.(*stubActor)
	return ok && a != nil && a.controllable
}

func (h *stubHost) Version() string { return "stub/1" }
