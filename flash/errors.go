package flash

import (
	"errors"
	"fmt"
)

// Op names a flash primitive.
type Op string

// Flash primitives.
const (
	OpRead    Op = "read"
	OpWrite   Op = "write"
	OpErase   Op = "erase"
	OpProgram Op = "program"
	OpUnlock  Op = "unlock"
	OpLock    Op = "lock"
)

// ErrLocked is returned by erase and program calls made while the controller is locked.
var ErrLocked = errors.New("flash control is locked")

// IOError indicates that a flash primitive failed.
type IOError struct {
	// Op is the primitive that failed
	Op Op

	// Addr is the address of the access (or first page address for erase)
	Addr uint32

	// Len is the length of the access in bytes (0 when not applicable)
	Len int

	// Err is the underlying cause, if any
	Err error
}

func (e *IOError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("flash %s at 0x%08X (+%d) failed: %v", e.Op, e.Addr, e.Len, e.Err)
	}
	return fmt.Sprintf("flash %s at 0x%08X (+%d) failed", e.Op, e.Addr, e.Len)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsIOError returns true if err is or wraps an IOError.
func IsIOError(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}
