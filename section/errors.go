package section

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownSection is returned for a section type missing from the map
	ErrUnknownSection = errors.New("section not in map")

	// ErrRawSection is returned for record operations on an image area
	ErrRawSection = errors.New("section has no records")

	// ErrNotArray is returned for array operations on a single-record section
	ErrNotArray = errors.New("section is not an array")

	// ErrEmpty is returned when consuming from an array with no pending entries
	ErrEmpty = errors.New("section has no pending entries")
)

// ChecksumMismatchError indicates a corrupt section header or entry.
type ChecksumMismatchError struct {
	// Section is the section being read
	Section Type

	// Addr is the address of the corrupt record
	Addr uint32

	// Header is true when the header itself is corrupt
	Header bool
}

func (e *ChecksumMismatchError) Error() string {
	what := "entry"
	if e.Header {
		what = "header"
	}
	return fmt.Sprintf("section %s: %s checksum mismatch at 0x%08X", e.Section, what, e.Addr)
}

// HeaderError indicates a header that passed its checksum but does not
// describe the section it was read from.
type HeaderError struct {
	// Section is the section being read
	Section Type

	// Reason describes the inconsistency
	Reason string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("section %s: invalid header: %s", e.Section, e.Reason)
}

// IsCorrupt returns true if err reports a corrupt or inconsistent section.
func IsCorrupt(err error) bool {
	var cm *ChecksumMismatchError
	var he *HeaderError
	return errors.As(err, &cm) || errors.As(err, &he)
}
