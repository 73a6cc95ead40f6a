package image

import (
	"fmt"

	"github.com/moffa90/go-dualboot/checksum"
	"github.com/moffa90/go-dualboot/flash"
	"github.com/moffa90/go-dualboot/logging"
)

// DefaultStagingSize is the default capacity of the validator's read buffer.
const DefaultStagingSize = 256

// Area is the external-flash range reserved for one slot: the metadata header
// at Base followed by the payload.
type Area struct {
	Base uint32
	Size uint32
}

// PayloadAddr returns the address of the first payload byte.
func (a Area) PayloadAddr() uint32 {
	return a.Base + HeaderSize
}

// Capacity returns the largest payload the area can hold.
func (a Area) Capacity() uint32 {
	if a.Size < HeaderSize {
		return 0
	}
	return a.Size - HeaderSize
}

// Layout maps each slot to its external-flash area.
type Layout struct {
	A Area
	B Area
}

// Area returns the area of slot s.
func (l Layout) Area(s Slot) (Area, error) {
	switch s {
	case SlotA:
		return l.A, nil
	case SlotB:
		return l.B, nil
	}
	return Area{}, fmt.Errorf("no image area for slot %s", s)
}

// Validator certifies the integrity of the images held in the slots.
type Validator struct {
	dev     flash.Device
	layout  Layout
	staging []byte
	logger  logging.Logger

	certified map[Slot]Metadata
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithStagingSize sets the capacity of the read buffer used to stream the
// payload through the CRC.
func WithStagingSize(size int) ValidatorOption {
	return func(v *Validator) {
		if size > 0 {
			v.staging = make([]byte, size)
		}
	}
}

// WithLogger sets a logger for validation results.
func WithLogger(logger logging.Logger) ValidatorOption {
	return func(v *Validator) {
		v.logger = logging.OrNop(logger)
	}
}

// NewValidator creates a validator reading slots from dev.
func NewValidator(dev flash.Device, layout Layout, opts ...ValidatorOption) *Validator {
	if dev == nil {
		panic("device cannot be nil")
	}

	v := &Validator{
		dev:       dev,
		layout:    layout,
		staging:   make([]byte, DefaultStagingSize),
		logger:    logging.Nop{},
		certified: make(map[Slot]Metadata),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks the image in slot s:
//  1. Read the metadata header
//  2. Reject anything that is not an application image
//  3. Stream Length payload bytes through CRC-16/CCITT-FALSE
//  4. Compare against the stored CRC
//
// It returns nil when the image is intact, and remembers its metadata for
// Certified. Any failure forgets a previous certification of s.
func (v *Validator) Validate(s Slot) error {
	delete(v.certified, s)

	m, err := v.check(s)
	if err != nil {
		v.logger.Info("slot rejected", "slot", s, "err", err)
		return err
	}

	v.certified[s] = m
	v.logger.Debug("slot certified",
		"slot", s,
		"length", m.Length,
		"version", m.Version,
		"crc", fmt.Sprintf("0x%04X", m.Checksum),
	)
	return nil
}

func (v *Validator) check(s Slot) (Metadata, error) {
	area, err := v.layout.Area(s)
	if err != nil {
		return Metadata{}, err
	}

	header := make([]byte, HeaderSize)
	if err := v.dev.Read(area.Base, header); err != nil {
		return Metadata{}, fmt.Errorf("read slot %s metadata: %w", s, err)
	}

	m, err := ParseMetadata(header)
	if err != nil {
		return Metadata{}, err
	}

	if m.Type != TypeAM {
		return Metadata{}, &TypeMismatchError{Slot: s, Expected: TypeAM, Actual: m.Type}
	}

	if m.Length > area.Capacity() {
		return Metadata{}, &LengthError{Slot: s, Length: m.Length, Capacity: area.Capacity()}
	}

	crc := checksum.NewCRC16().Update(header[CoveredOffset:])

	addr := area.PayloadAddr()
	remaining := m.Length
	for remaining > 0 {
		chunk := v.staging
		if uint32(len(chunk)) > remaining {
			chunk = chunk[:remaining]
		}
		if err := v.dev.Read(addr, chunk); err != nil {
			return Metadata{}, fmt.Errorf("read slot %s payload: %w", s, err)
		}
		crc = crc.Update(chunk)
		addr += uint32(len(chunk))
		remaining -= uint32(len(chunk))
	}

	if crc.Sum16() != m.Checksum {
		return Metadata{}, &CRCMismatchError{Slot: s, Expected: m.Checksum, Actual: crc.Sum16()}
	}

	return m, nil
}

// Certified returns the metadata recorded by the last successful Validate of s.
func (v *Validator) Certified(s Slot) (Metadata, bool) {
	m, ok := v.certified[s]
	return m, ok
}

// ReadMetadata returns the raw header of slot s without validating the image.
func (v *Validator) ReadMetadata(s Slot) (Metadata, error) {
	area, err := v.layout.Area(s)
	if err != nil {
		return Metadata{}, err
	}
	header := make([]byte, HeaderSize)
	if err := v.dev.Read(area.Base, header); err != nil {
		return Metadata{}, fmt.Errorf("read slot %s metadata: %w", s, err)
	}
	return ParseMetadata(header)
}
