package flash

import (
	"encoding/binary"
	"fmt"
)

// ErasedByte is the value of an erased flash byte.
const ErasedByte = 0xFF

// Memory is an in-memory Device. It starts fully erased.
type Memory struct {
	Faulter
	data []byte
}

var _ Device = (*Memory)(nil)

// NewMemory creates an erased memory device of size bytes.
func NewMemory(size int) *Memory {
	data := make([]byte, size)
	for i := range data {
		data[i] = ErasedByte
	}
	return &Memory{data: data}
}

// Read implements Device.
func (m *Memory) Read(addr uint32, buf []byte) error {
	if m.check(OpRead) {
		return &IOError{Op: OpRead, Addr: addr, Len: len(buf), Err: ErrInjected}
	}
	if err := m.bounds(OpRead, addr, len(buf)); err != nil {
		return err
	}
	copy(buf, m.data[addr:])
	return nil
}

// Write implements Device.
func (m *Memory) Write(addr uint32, buf []byte) error {
	if m.check(OpWrite) {
		return &IOError{Op: OpWrite, Addr: addr, Len: len(buf), Err: ErrInjected}
	}
	if err := m.bounds(OpWrite, addr, len(buf)); err != nil {
		return err
	}
	copy(m.data[addr:], buf)
	return nil
}

// Bytes returns the backing store. Mutating it simulates corruption.
func (m *Memory) Bytes() []byte {
	return m.data
}

func (m *Memory) bounds(op Op, addr uint32, n int) error {
	if uint64(addr)+uint64(n) > uint64(len(m.data)) {
		return &IOError{Op: op, Addr: addr, Len: n,
			Err: fmt.Errorf("access beyond device size 0x%X", len(m.data))}
	}
	return nil
}

// MemController is an in-memory internal flash controller with NOR semantics:
// erased bytes read 0xFF and a doubleword can only be programmed once per erase.
type MemController struct {
	Faulter
	geometry Geometry
	data     []byte
	locked   bool
}

var _ Controller = (*MemController)(nil)

// NewMemController creates an erased, locked internal flash with geometry g.
func NewMemController(g Geometry) *MemController {
	data := make([]byte, g.Size())
	for i := range data {
		data[i] = ErasedByte
	}
	return &MemController{geometry: g, data: data, locked: true}
}

// Geometry implements Controller.
func (c *MemController) Geometry() Geometry {
	return c.geometry
}

// Locked reports whether erase and program are disabled.
func (c *MemController) Locked() bool {
	return c.locked
}

// Unlock implements Controller.
func (c *MemController) Unlock() error {
	if c.check(OpUnlock) {
		return &IOError{Op: OpUnlock, Err: ErrInjected}
	}
	c.locked = false
	return nil
}

// Lock implements Controller.
func (c *MemController) Lock() error {
	if c.check(OpLock) {
		return &IOError{Op: OpLock, Err: ErrInjected}
	}
	c.locked = true
	return nil
}

// Erase implements Controller.
func (c *MemController) Erase(bank, firstPage, numPages int) error {
	g := c.geometry
	addr := g.Base + uint32(bank)*g.BankSize() + uint32(firstPage)*g.PageSize
	if c.check(OpErase) {
		return &IOError{Op: OpErase, Addr: addr, Err: ErrInjected}
	}
	if c.locked {
		return &IOError{Op: OpErase, Addr: addr, Err: ErrLocked}
	}
	if bank < 0 || uint32(bank) >= g.Banks || firstPage < 0 || numPages < 0 ||
		uint32(firstPage+numPages) > g.PagesPerBank {
		return &IOError{Op: OpErase, Addr: addr,
			Err: fmt.Errorf("invalid page range bank=%d first=%d n=%d", bank, firstPage, numPages)}
	}

	off := addr - g.Base
	end := off + uint32(numPages)*g.PageSize
	for i := off; i < end; i++ {
		c.data[i] = ErasedByte
	}
	return nil
}

// Program implements Controller.
func (c *MemController) Program(addr uint32, word uint64) error {
	if c.check(OpProgram) {
		return &IOError{Op: OpProgram, Addr: addr, Len: ProgramWidth, Err: ErrInjected}
	}
	if c.locked {
		return &IOError{Op: OpProgram, Addr: addr, Len: ProgramWidth, Err: ErrLocked}
	}
	if addr%ProgramWidth != 0 || !c.geometry.Contains(addr, ProgramWidth) {
		return &IOError{Op: OpProgram, Addr: addr, Len: ProgramWidth,
			Err: fmt.Errorf("unaligned or out of range address")}
	}

	off := addr - c.geometry.Base
	cell := c.data[off : off+ProgramWidth]
	if binary.LittleEndian.Uint64(cell) != ^uint64(0) {
		return &IOError{Op: OpProgram, Addr: addr, Len: ProgramWidth,
			Err: fmt.Errorf("doubleword not erased")}
	}
	binary.LittleEndian.PutUint64(cell, word)
	return nil
}

// Read implements Controller.
func (c *MemController) Read(addr uint32, buf []byte) error {
	if c.check(OpRead) {
		return &IOError{Op: OpRead, Addr: addr, Len: len(buf), Err: ErrInjected}
	}
	if !c.geometry.Contains(addr, uint32(len(buf))) {
		return &IOError{Op: OpRead, Addr: addr, Len: len(buf),
			Err: fmt.Errorf("access outside internal flash")}
	}
	copy(buf, c.data[addr-c.geometry.Base:])
	return nil
}

// Bytes returns the backing store of the whole internal flash.
func (c *MemController) Bytes() []byte {
	return c.data
}

// LoadMemController creates a locked controller whose contents are a copy of
// data. data must be exactly g.Size() bytes.
func LoadMemController(g Geometry, data []byte) (*MemController, error) {
	if uint32(len(data)) != g.Size() {
		return nil, fmt.Errorf("internal flash image is %d bytes, geometry needs %d", len(data), g.Size())
	}
	c := &MemController{geometry: g, data: make([]byte, len(data)), locked: true}
	copy(c.data, data)
	return c, nil
}
