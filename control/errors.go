package control

import "errors"

var (
	// ErrInvalidActor is returned when assigning nil or an actor the host
	// cannot control.
	ErrInvalidActor = errors.New("invalid actor")
	// ErrAlreadyAssigned is returned when the actor already has a controller.
	ErrAlreadyAssigned = errors.New("actor already assigned")
	// ErrNotAssigned is returned when no controller exists for the actor or
	// the controller handle has already been released.
	ErrNotAssigned = errors.New("actor not assigned")
)
