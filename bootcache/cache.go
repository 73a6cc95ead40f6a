package bootcache

import (
	"fmt"
	"strings"

	"github.com/moffa90/go-dualboot/image"
)

// Magic is the reset key of a cache written by a previous boot pass.
const Magic uint32 = 0xB007CAFE

// Reason records why the last boot pass chose its slot.
type Reason uint8

// Boot reasons. The zero value is ReasonUnknown.
const (
	ReasonUnknown Reason = iota
	ReasonNominal
	ReasonUpgrade
	ReasonFallback
	ReasonOffNominal
	ReasonPanic
	ReasonManufacturing
)

// Reasons lists every boot reason.
var Reasons = []Reason{
	ReasonUnknown, ReasonNominal, ReasonUpgrade, ReasonFallback,
	ReasonOffNominal, ReasonPanic, ReasonManufacturing,
}

func (r Reason) String() string {
	switch r {
	case ReasonUnknown:
		return "unknown"
	case ReasonNominal:
		return "nominal"
	case ReasonUpgrade:
		return "upgrade"
	case ReasonFallback:
		return "fallback"
	case ReasonOffNominal:
		return "off-nominal"
	case ReasonPanic:
		return "panic"
	case ReasonManufacturing:
		return "manufacturing"
	default:
		return fmt.Sprintf("reason(%d)", uint8(r))
	}
}

// ParseReason parses a boot reason name.
func ParseReason(s string) (Reason, error) {
	for _, r := range Reasons {
		if strings.EqualFold(s, r.String()) {
			return r, nil
		}
	}
	return ReasonUnknown, fmt.Errorf("invalid boot reason %q", s)
}

// Cache is the reset-scoped boot state. It survives a warm reset and is lost
// on power loss.
//
// Lifecycle: the fields other than ResetKey are meaningful only between a
// Classify that left ResetKey == Magic and the next power loss. The decision
// engine is the only writer; the boot sequence saves it once per pass.
type Cache struct {
	// StartCount counts boot passes since the last slot switch
	StartCount uint32

	// LastReason is the reason recorded by the previous pass
	LastReason Reason

	// LastLoadedSlot is the slot the previous pass left in internal flash
	LastLoadedSlot image.Slot

	// ResetKey equals Magic when the cache was written by a previous pass
	ResetKey uint32
}

// Warm reports whether c carries state from a previous boot pass.
func (c Cache) Warm() bool {
	return c.ResetKey == Magic
}

// LoadedSlotSource is the registry view used to seed a cold cache.
type LoadedSlotSource interface {
	Valid() bool
	LoadedSlot() image.Slot
}

// Classify returns the cache to use for this boot pass and whether the boot
// is cold. A warm cache is returned unchanged. A cold cache is reset to the
// baseline: zero start count, unknown reason, and the registry's loaded slot
// when the registry is valid, else unknown.
func Classify(c Cache, reg LoadedSlotSource) (Cache, bool) {
	if c.Warm() {
		return c, false
	}
	baseline := Cache{
		LastReason:     ReasonUnknown,
		LastLoadedSlot: image.SlotUnknown,
		ResetKey:       Magic,
	}
	if reg != nil && reg.Valid() {
		baseline.LastLoadedSlot = reg.LoadedSlot()
	}
	return baseline, true
}

// Advance returns c with the start count of the next pass. Every boot pass
// advances the count by exactly one after its decision.
func (c Cache) Advance() Cache {
	c.StartCount++
	return c
}
