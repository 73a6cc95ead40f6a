package manufacturing

import (
	"errors"
	"fmt"

	"github.com/moffa90/go-dualboot/flash"
	"github.com/moffa90/go-dualboot/image"
	"github.com/moffa90/go-dualboot/logging"
)

// ErrNoPackage is returned when no factory package is present.
var ErrNoPackage = errors.New("no factory package in internal flash")

// DefaultCopyBuffer is the size of the buffer used to copy the package.
const DefaultCopyBuffer = 256

// Locator finds the factory package.
type Locator interface {
	// Locate returns the package metadata when a valid package is present.
	Locate() (image.Metadata, bool)
}

// Registry is the part of the image registry the bootstrap writes.
// *registry.Registry implements it.
type Registry interface {
	Default() error
	Init() error
	SetPrimarySlot(s image.Slot) error
	SetSlotOperationalState(s image.Slot, st image.State) error
	SetSlotVersion(s image.Slot, v image.Version) error
}

// Resetter forces a full system reset. On hardware SystemReset does not return.
type Resetter interface {
	SystemReset()
}

// ResetFunc adapts a function to Resetter.
type ResetFunc func()

// SystemReset implements Resetter.
func (f ResetFunc) SystemReset() { f() }

// Option configures a Bootstrap.
type Option func(*Bootstrap)

// WithLogger sets the logger used by the bootstrap.
func WithLogger(logger logging.Logger) Option {
	return func(b *Bootstrap) {
		b.logger = logger
	}
}

// WithCopyBuffer sets the size of the copy buffer.
func WithCopyBuffer(size int) Option {
	return func(b *Bootstrap) {
		if size > 0 {
			b.bufSize = size
		}
	}
}

// Bootstrap installs the factory image on a device whose external flash has
// never been initialized.
type Bootstrap struct {
	locator Locator
	src     flash.Device
	srcAddr uint32
	ext     flash.Device
	slotA   image.Area
	reg     Registry
	reset   Resetter
	logger  logging.Logger
	bufSize int

	// located is the package found by the last Needed call, if any
	located *image.Metadata
}

// New creates a bootstrap that copies the package found by locator, stored
// at srcAddr of src, into slotA of ext.
func New(locator Locator, src flash.Device, srcAddr uint32, ext flash.Device, slotA image.Area, reg Registry, reset Resetter, opts ...Option) *Bootstrap {
	if locator == nil || src == nil || ext == nil || reg == nil || reset == nil {
		panic("bootstrap dependencies cannot be nil")
	}
	b := &Bootstrap{
		locator: locator,
		src:     src,
		srcAddr: srcAddr,
		ext:     ext,
		slotA:   slotA,
		reg:     reg,
		reset:   reset,
		bufSize: DefaultCopyBuffer,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.OrNop(b.logger)
	return b
}

// Needed reports whether the bootstrap must run: the boot is cold, a factory
// package is present and the external flash sentinel is not yet written.
//
// The package found here is reused by the next Run.
func (b *Bootstrap) Needed(cold bool) bool {
	b.located = nil
	if !cold || MagicWritten(b.ext) {
		return false
	}
	meta, ok := b.locator.Locate()
	if !ok {
		return false
	}
	b.located = &meta
	return true
}

// Run performs the bootstrap:
//  1. Copy the factory package into slot A
//  2. Re-default and re-initialize the image registry
//  3. Make A primary with unknown state and the package version
//  4. Write the external flash sentinel
//  5. Force a system reset
//
// If no package is found or any step fails, Run returns the error without
// resetting and the caller continues with the normal boot path.
func (b *Bootstrap) Run() error {
	meta, ok := b.locate()
	if !ok {
		return ErrNoPackage
	}
	size := uint32(image.HeaderSize) + meta.Length
	if size > b.slotA.Size {
		return &image.LengthError{Slot: image.SlotA, Length: meta.Length, Capacity: b.slotA.Capacity()}
	}

	b.logger.Info("Installing factory image", "version", meta.Version, "bytes", meta.Length)
	if err := b.copy(size); err != nil {
		return fmt.Errorf("copy factory package: %w", err)
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"default registry", b.reg.Default},
		{"init registry", b.reg.Init},
		{"set primary", func() error { return b.reg.SetPrimarySlot(image.SlotA) }},
		{"set state", func() error { return b.reg.SetSlotOperationalState(image.SlotA, image.StateUnknown) }},
		{"set version", func() error { return b.reg.SetSlotVersion(image.SlotA, meta.Version) }},
		{"write sentinel", func() error { return WriteMagic(b.ext) }},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			b.logger.Error("Factory bootstrap failed", "step", s.name, "error", err)
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}

	b.logger.Info("Factory image installed, resetting", "version", meta.Version)
	b.reset.SystemReset()
	return nil
}

// locate returns the package found by Needed, or looks for one.
func (b *Bootstrap) locate() (image.Metadata, bool) {
	if m := b.located; m != nil {
		b.located = nil
		return *m, true
	}
	return b.locator.Locate()
}

func (b *Bootstrap) copy(size uint32) error {
	buf := make([]byte, b.bufSize)
	for off := uint32(0); off < size; {
		n := uint32(len(buf))
		if size-off < n {
			n = size - off
		}
		if err := b.src.Read(b.srcAddr+off, buf[:n]); err != nil {
			return err
		}
		if err := b.ext.Write(b.slotA.Base+off, buf[:n]); err != nil {
			return err
		}
		off += n
	}
	return nil
}

// InternalLocator finds a factory package in internal flash by validating
// its metadata header and CRC.
type InternalLocator struct {
	v *image.Validator
}

var _ Locator = (*InternalLocator)(nil)

// NewInternalLocator looks for a package in area of the internal flash
// behind ctrl.
func NewInternalLocator(ctrl flash.Controller, area image.Area, opts ...image.ValidatorOption) *InternalLocator {
	layout := image.Layout{A: area}
	return &InternalLocator{v: image.NewValidator(flash.ReadOnly(ctrl), layout, opts...)}
}

// Locate implements Locator.
func (l *InternalLocator) Locate() (image.Metadata, bool) {
	if err := l.v.Validate(image.SlotA); err != nil {
		return image.Metadata{}, false
	}
	return l.v.Certified(image.SlotA)
}
