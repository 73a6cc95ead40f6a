package registry

import (
	"github.com/moffa90/go-dualboot/image"
	"github.com/moffa90/go-dualboot/logging"
	"github.com/moffa90/go-dualboot/section"
)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used by the registry.
func WithLogger(logger logging.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// Registry is the cached copy of the image registry record.
//
// Getters read the cached copy only. Until Init succeeds they return
// image.SlotUnknown and image.StateUnknown. Setters update the cached copy
// and overwrite the record on flash; when the write fails the cached copy is
// restored so it always matches flash.
type Registry struct {
	sections    *section.Manager
	logger      logging.Logger
	entry       Entry
	initialized bool
}

// New creates a registry stored in the image registry section of sections.
// The registry is invalid until Init succeeds.
func New(sections *section.Manager, opts ...Option) *Registry {
	if sections == nil {
		panic("section manager cannot be nil")
	}
	r := &Registry{sections: sections}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrNop(r.logger)
	return r
}

// Init reads the section header and the registry entry, verifies both
// checksums and the slot fields, and caches the entry. On any failure the
// registry stays invalid and the error says why.
func (r *Registry) Init() error {
	r.initialized = false
	r.entry = Entry{}

	payload, err := r.sections.ReadCurrent(section.TypeImageRegistry)
	if err != nil {
		r.logger.Error("Image registry unreadable", "error", err)
		return err
	}
	e, err := ParseEntry(payload)
	if err != nil {
		r.logger.Error("Image registry rejected", "error", err)
		return err
	}

	r.entry = e
	r.initialized = true
	r.logger.Debug("Image registry loaded",
		"primary", e.Primary, "loaded", e.Loaded,
		"stateA", e.A.State, "stateB", e.B.State)
	return nil
}

// Valid reports whether the last Init succeeded.
func (r *Registry) Valid() bool {
	return r.initialized
}

// Default rewrites the registry section with its canonical default record:
// both slots unknown with zero versions and no primary or loaded slot. The
// registry must be initialized again afterwards.
func (r *Registry) Default() error {
	r.initialized = false
	r.entry = Entry{}
	return r.sections.Default(section.TypeImageRegistry)
}

// Entry returns a copy of the cached record.
func (r *Registry) Entry() Entry {
	return r.entry
}

// PrimarySlot returns the slot preferred for boot.
func (r *Registry) PrimarySlot() image.Slot {
	if !r.initialized {
		return image.SlotUnknown
	}
	return r.entry.Primary
}

// LoadedSlot returns the slot whose image was last programmed into internal flash.
func (r *Registry) LoadedSlot() image.Slot {
	if !r.initialized {
		return image.SlotUnknown
	}
	return r.entry.Loaded
}

// SlotState returns the operational state of slot s.
func (r *Registry) SlotState(s image.Slot) image.State {
	rec := r.entry.Slot(s)
	if !r.initialized || rec == nil {
		return image.StateUnknown
	}
	return rec.State
}

// SlotVersion returns the recorded version of slot s.
func (r *Registry) SlotVersion(s image.Slot) image.Version {
	rec := r.entry.Slot(s)
	if !r.initialized || rec == nil {
		return image.Version{}
	}
	return rec.Version
}

// SetPrimarySlot records s as the slot preferred for boot.
func (r *Registry) SetPrimarySlot(s image.Slot) error {
	if !s.Valid() {
		return &InvalidSlotError{Field: "primary", Slot: s}
	}
	return r.update(func(e *Entry) { e.Primary = s })
}

// SetLoadedSlot records s as the slot now resident in internal flash.
func (r *Registry) SetLoadedSlot(s image.Slot) error {
	if !s.Valid() {
		return &InvalidSlotError{Field: "loaded", Slot: s}
	}
	return r.update(func(e *Entry) { e.Loaded = s })
}

// SetSlotOperationalState records the operational state of slot s.
func (r *Registry) SetSlotOperationalState(s image.Slot, st image.State) error {
	if !s.Known() {
		return &InvalidSlotError{Field: "state", Slot: s}
	}
	if st > image.StateFailed {
		return &InvalidStateError{Slot: s, State: st}
	}
	return r.update(func(e *Entry) { e.Slot(s).State = st })
}

// SetSlotVersion records the version of the image in slot s.
func (r *Registry) SetSlotVersion(s image.Slot, v image.Version) error {
	if !s.Known() {
		return &InvalidSlotError{Field: "version", Slot: s}
	}
	return r.update(func(e *Entry) { e.Slot(s).Version = v })
}

func (r *Registry) update(mutate func(*Entry)) error {
	if !r.initialized {
		return ErrNotInitialized
	}
	prev := r.entry
	mutate(&r.entry)
	if err := r.sections.Overwrite(section.TypeImageRegistry, r.entry.Bytes()); err != nil {
		r.entry = prev
		r.logger.Error("Image registry write failed", "error", err)
		return err
	}
	return nil
}
