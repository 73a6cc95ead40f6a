package image

import (
	"fmt"
	"strings"
)

// Slot identifies one of the two external-flash image slots.
type Slot uint8

// Slot values as stored in the image registry.
const (
	SlotUnknown Slot = 0x00
	SlotA       Slot = 0x01
	SlotB       Slot = 0x02
)

// Slots lists the real slots in preference order.
var Slots = []Slot{SlotA, SlotB}

// Valid reports whether s is one of the values the registry may hold.
func (s Slot) Valid() bool {
	return s == SlotUnknown || s == SlotA || s == SlotB
}

// Known reports whether s names a real slot.
func (s Slot) Known() bool {
	return s == SlotA || s == SlotB
}

// Sibling returns the other slot. The sibling of SlotUnknown is SlotUnknown.
func (s Slot) Sibling() Slot {
	switch s {
	case SlotA:
		return SlotB
	case SlotB:
		return SlotA
	default:
		return SlotUnknown
	}
}

func (s Slot) String() string {
	switch s {
	case SlotA:
		return "A"
	case SlotB:
		return "B"
	case SlotUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("invalid(0x%02X)", uint8(s))
	}
}

// ParseSlot parses "A" or "B" (case-insensitive).
func ParseSlot(s string) (Slot, error) {
	switch strings.ToUpper(s) {
	case "A":
		return SlotA, nil
	case "B":
		return SlotB, nil
	}
	return SlotUnknown, fmt.Errorf("invalid slot %q: want A or B", s)
}

// State is the registry-tracked outcome of a slot's most recent boot.
type State uint8

// Operational states.
const (
	StateUnknown State = 0x00
	StatePartial State = 0x01
	StateFull    State = 0x02
	StateFailed  State = 0x03
)

// States lists every operational state.
var States = []State{StateUnknown, StatePartial, StateFull, StateFailed}

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StatePartial:
		return "partial"
	case StateFull:
		return "full"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("invalid(0x%02X)", uint8(s))
	}
}

// ParseState parses an operational state name.
func ParseState(s string) (State, error) {
	for _, st := range States {
		if strings.EqualFold(s, st.String()) {
			return st, nil
		}
	}
	return StateUnknown, fmt.Errorf("invalid operational state %q", s)
}

// Version is a firmware version triple.
type Version struct {
	Major uint32
	Minor uint32
	Build uint32
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Build)
}

// ParseVersion parses "major.minor.build".
func ParseVersion(s string) (Version, error) {
	var v Version
	n, err := fmt.Sscanf(s, "%d.%d.%d", &v.Major, &v.Minor, &v.Build)
	if err != nil || n != 3 {
		return Version{}, fmt.Errorf("invalid version %q: want major.minor.build", s)
	}
	return v, nil
}
