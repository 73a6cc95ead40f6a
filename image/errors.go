package image

import "fmt"

// TypeMismatchError indicates that a slot does not hold an application image.
type TypeMismatchError struct {
	Slot     Slot
	Expected Type
	Actual   Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("slot %s: image type mismatch: expected %s, got %s", e.Slot, e.Expected, e.Actual)
}

// CRCMismatchError indicates that a slot's payload does not match its stored CRC.
type CRCMismatchError struct {
	Slot     Slot
	Expected uint16
	Actual   uint16
}

func (e *CRCMismatchError) Error() string {
	return fmt.Sprintf("slot %s: CRC mismatch: stored 0x%04X, computed 0x%04X", e.Slot, e.Expected, e.Actual)
}

// LengthError indicates that a header claims more payload than the slot holds.
type LengthError struct {
	Slot     Slot
	Length   uint32
	Capacity uint32
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("slot %s: image length %d exceeds slot capacity %d", e.Slot, e.Length, e.Capacity)
}
