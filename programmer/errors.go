package programmer

import (
	"errors"
	"fmt"

	"github.com/moffa90/go-dualboot/image"
)

// ErrNotCertified is returned when asked to program a slot the validator has
// not certified.
var ErrNotCertified = errors.New("slot not certified")

// RetriesExhaustedError indicates that every programming attempt failed.
type RetriesExhaustedError struct {
	// Slot is the slot being programmed
	Slot image.Slot

	// Attempts is the number of attempts made
	Attempts int

	// Err is the failure of the last attempt
	Err error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("programming slot %s failed after %d attempts: %v", e.Slot, e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Err
}

// RegionError indicates an internal application region the controller cannot
// be programmed with.
type RegionError struct {
	Start  uint32
	Size   uint32
	Reason string
}

func (e *RegionError) Error() string {
	return fmt.Sprintf("application region 0x%08X+0x%X: %s", e.Start, e.Size, e.Reason)
}
