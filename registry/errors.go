package registry

import (
	"errors"
	"fmt"

	"github.com/moffa90/go-dualboot/image"
)

// ErrNotInitialized is returned by setters called before a successful Init.
var ErrNotInitialized = errors.New("image registry not initialized")

// InvalidSlotError indicates a slot field outside {A, B, unknown}, or a
// setter called with a slot it cannot accept.
type InvalidSlotError struct {
	// Field names the registry field
	Field string

	// Slot is the offending value
	Slot image.Slot
}

func (e *InvalidSlotError) Error() string {
	return fmt.Sprintf("registry %s slot: invalid value %s", e.Field, e.Slot)
}

// InvalidStateError indicates an operational state above StateFailed.
type InvalidStateError struct {
	// Slot is the slot the state belongs to
	Slot image.Slot

	// State is the offending value
	State image.State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("registry slot %s: invalid operational state %s", e.Slot, e.State)
}
