package section

import (
	"fmt"

	"github.com/moffa90/go-dualboot/checksum"
	"github.com/moffa90/go-dualboot/flash"
	"github.com/moffa90/go-dualboot/logging"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for section operations.
func WithLogger(logger logging.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// Manager reads and writes record sections on an external flash device.
//
// All writes put entry bytes on flash before the header that references them,
// so a failed call leaves the previous header in charge.
type Manager struct {
	dev    flash.Device
	m      Map
	logger logging.Logger
}

// NewManager creates a section manager over dev using map m.
func NewManager(dev flash.Device, m Map, opts ...Option) *Manager {
	if dev == nil {
		panic("device cannot be nil")
	}
	mgr := &Manager{dev: dev, m: m}
	for _, opt := range opts {
		opt(mgr)
	}
	mgr.logger = logging.OrNop(mgr.logger)
	return mgr
}

// Map returns the section map.
func (m *Manager) Map() Map {
	return m.m
}

// Device returns the underlying flash device.
func (m *Manager) Device() flash.Device {
	return m.dev
}

func (m *Manager) lookup(t Type) (Section, error) {
	s, ok := m.m.Lookup(t)
	if !ok {
		return Section{}, fmt.Errorf("%w: %s", ErrUnknownSection, t)
	}
	if s.Raw {
		return Section{}, fmt.Errorf("%w: %s", ErrRawSection, t)
	}
	return s, nil
}

// ReadHeader reads and verifies the header of section t.
func (m *Manager) ReadHeader(t Type) (Header, error) {
	s, err := m.lookup(t)
	if err != nil {
		return Header{}, err
	}
	return m.readHeader(s)
}

func (m *Manager) readHeader(s Section) (Header, error) {
	buf := make([]byte, HeaderSize)
	if err := m.dev.Read(s.Start, buf); err != nil {
		return Header{}, err
	}
	if !checksum.VerifySum8(buf) {
		return Header{}, &ChecksumMismatchError{Section: s.Type, Addr: s.Start, Header: true}
	}
	h := ParseHeader(buf)
	switch {
	case h.Type != s.Type:
		return Header{}, &HeaderError{Section: s.Type, Reason: fmt.Sprintf("type is %s", h.Type)}
	case h.EntryLen != s.EntryLen:
		return Header{}, &HeaderError{Section: s.Type, Reason: fmt.Sprintf("entry length is %d, want %d", h.EntryLen, s.EntryLen)}
	}
	if !s.IsArray {
		if h.CurrentAddr != s.FirstEntry() {
			return Header{}, &HeaderError{Section: s.Type, Reason: fmt.Sprintf("current address 0x%08X outside section", h.CurrentAddr)}
		}
		return h, nil
	}
	if int(h.Head) >= s.Capacity() || int(h.Tail) >= s.Capacity() {
		return Header{}, &HeaderError{Section: s.Type, Reason: fmt.Sprintf("head %d or tail %d out of range", h.Head, h.Tail)}
	}
	if h.CurrentAddr != s.EntryAddr(int(h.Head)) {
		return Header{}, &HeaderError{Section: s.Type, Reason: fmt.Sprintf("current address 0x%08X does not follow head", h.CurrentAddr)}
	}
	return h, nil
}

func (m *Manager) writeHeader(s Section, h Header) error {
	h.Type = s.Type
	h.EntryLen = s.EntryLen
	return m.dev.Write(s.Start, h.Bytes())
}

func (m *Manager) readEntry(s Section, addr uint32) ([]byte, error) {
	entry := make([]byte, s.EntryLen)
	if err := m.dev.Read(addr, entry); err != nil {
		return nil, err
	}
	if !verifyEntry(entry) {
		return nil, &ChecksumMismatchError{Section: s.Type, Addr: addr}
	}
	return entry[:len(entry)-1], nil
}

func verifyEntry(entry []byte) bool {
	return checksum.VerifySum8(entry)
}

func (m *Manager) checkPayload(s Section, payload []byte) error {
	if len(payload) != int(s.EntryLen)-1 {
		return fmt.Errorf("section %s: payload is %d bytes, want %d", s.Type, len(payload), s.EntryLen-1)
	}
	return nil
}

// Default writes the canonical default entries of section t followed by a
// fresh header. For single-record sections head and tail are 1 and the
// current address is the entry. For arrays head and tail equal the default
// count and the current address points past the defaulted entries.
func (m *Manager) Default(t Type) error {
	s, err := m.lookup(t)
	if err != nil {
		return err
	}
	entry := encodeEntry(s.DefaultValues)
	for i := 0; i < int(s.DefaultNumEntries); i++ {
		if err := m.dev.Write(s.EntryAddr(i), entry); err != nil {
			return err
		}
	}

	count := s.DefaultNumEntries
	h := Header{Head: count, Tail: count, CurrentAddr: s.FirstEntry()}
	if s.IsArray {
		idx := int(count) % s.Capacity()
		h.Head, h.Tail = uint8(idx), uint8(idx)
		h.CurrentAddr = s.EntryAddr(idx)
	}
	if err := m.writeHeader(s, h); err != nil {
		return err
	}
	m.logger.Info("Section defaulted", "section", s.Type, "entries", count)
	return nil
}

// ReadCurrent returns the payload of the current entry of a single-record section.
func (m *Manager) ReadCurrent(t Type) ([]byte, error) {
	s, err := m.lookup(t)
	if err != nil {
		return nil, err
	}
	h, err := m.readHeader(s)
	if err != nil {
		return nil, err
	}
	if s.IsArray {
		return nil, fmt.Errorf("section %s: no current entry in an array", s.Type)
	}
	return m.readEntry(s, h.CurrentAddr)
}

// Overwrite replaces the current entry of a single-record section. The
// header is not rewritten.
func (m *Manager) Overwrite(t Type, payload []byte) error {
	s, err := m.lookup(t)
	if err != nil {
		return err
	}
	if s.IsArray {
		return fmt.Errorf("section %s: arrays are appended, not overwritten", s.Type)
	}
	if err := m.checkPayload(s, payload); err != nil {
		return err
	}
	h, err := m.readHeader(s)
	if err != nil {
		return err
	}
	return m.dev.Write(h.CurrentAddr, encodeEntry(payload))
}

// Append writes payload as the newest entry of array section t. When the
// array is full the oldest pending entry is dropped.
func (m *Manager) Append(t Type, payload []byte) error {
	s, h, err := m.array(t)
	if err != nil {
		return err
	}
	if err := m.checkPayload(s, payload); err != nil {
		return err
	}
	if err := m.dev.Write(s.EntryAddr(int(h.Head)), encodeEntry(payload)); err != nil {
		return err
	}
	capacity := s.Capacity()
	h.Head = uint8((int(h.Head) + 1) % capacity)
	if h.Head == h.Tail {
		h.Tail = uint8((int(h.Tail) + 1) % capacity)
		m.logger.Debug("Section full, oldest entry dropped", "section", s.Type)
	}
	h.CurrentAddr = s.EntryAddr(int(h.Head))
	return m.writeHeader(s, h)
}

// Pending returns the number of unconsumed entries of array section t.
func (m *Manager) Pending(t Type) (int, error) {
	s, h, err := m.array(t)
	if err != nil {
		return 0, err
	}
	return pending(s, h), nil
}

// Entry returns the i-th pending entry of array section t, oldest first.
func (m *Manager) Entry(t Type, i int) ([]byte, error) {
	s, h, err := m.array(t)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= pending(s, h) {
		return nil, fmt.Errorf("section %s: entry %d out of range (%d pending)", s.Type, i, pending(s, h))
	}
	idx := (int(h.Tail) + i) % s.Capacity()
	return m.readEntry(s, s.EntryAddr(idx))
}

// Consume returns the oldest pending entry of array section t and advances
// the tail past it.
func (m *Manager) Consume(t Type) ([]byte, error) {
	s, h, err := m.array(t)
	if err != nil {
		return nil, err
	}
	if pending(s, h) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, s.Type)
	}
	payload, err := m.readEntry(s, s.EntryAddr(int(h.Tail)))
	if err != nil {
		return nil, err
	}
	h.Tail = uint8((int(h.Tail) + 1) % s.Capacity())
	if err := m.writeHeader(s, h); err != nil {
		return nil, err
	}
	return payload, nil
}

func (m *Manager) array(t Type) (Section, Header, error) {
	s, err := m.lookup(t)
	if err != nil {
		return Section{}, Header{}, err
	}
	if !s.IsArray {
		return Section{}, Header{}, fmt.Errorf("%w: %s", ErrNotArray, s.Type)
	}
	h, err := m.readHeader(s)
	if err != nil {
		return Section{}, Header{}, err
	}
	return s, h, nil
}

func pending(s Section, h Header) int {
	capacity := s.Capacity()
	return (int(h.Head) - int(h.Tail) + capacity) % capacity
}
