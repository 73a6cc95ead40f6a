package flash

// Device is a byte-addressable flash part, typically the external SPI NOR that
// holds the image slots, the registry and the logs.
//
// Both calls are synchronous: they either complete or return an error.
type Device interface {
	// Read fills buf with the bytes starting at addr.
	Read(addr uint32, buf []byte) error

	// Write stores buf starting at addr.
	Write(addr uint32, buf []byte) error
}

// Controller is the internal flash controller of the microcontroller.
//
// Erase and Program are only accepted between Unlock and Lock. Program writes
// one word of Geometry.ProgramWidth bytes at a time into erased flash.
type Controller interface {
	// Geometry describes the internal flash layout.
	Geometry() Geometry

	// Unlock enables erase and program operations.
	Unlock() error

	// Lock disables erase and program operations.
	Lock() error

	// Erase erases numPages pages of bank starting at firstPage.
	Erase(bank, firstPage, numPages int) error

	// Program writes one doubleword at addr.
	Program(addr uint32, word uint64) error

	// Read copies memory-mapped internal flash starting at addr into buf.
	Read(addr uint32, buf []byte) error
}

// ProgramWidth is the minimum programming unit of the internal flash in bytes.
const ProgramWidth = 8

// Geometry describes an internal flash made of equally sized banks of pages.
type Geometry struct {
	// Base is the address of the first byte of bank 0
	Base uint32

	// PageSize is the erase granularity in bytes
	PageSize uint32

	// PagesPerBank is the number of pages in one bank
	PagesPerBank uint32

	// Banks is the number of physical banks
	Banks uint32
}

// BankSize returns the size of one bank in bytes.
func (g Geometry) BankSize() uint32 {
	return g.PageSize * g.PagesPerBank
}

// Size returns the total size of the internal flash in bytes.
func (g Geometry) Size() uint32 {
	return g.BankSize() * g.Banks
}

// Contains reports whether [addr, addr+n) lies inside the flash.
func (g Geometry) Contains(addr, n uint32) bool {
	if addr < g.Base {
		return false
	}
	off := uint64(addr-g.Base) + uint64(n)
	return off <= uint64(g.Size())
}

// BankOf returns the bank holding addr.
func (g Geometry) BankOf(addr uint32) int {
	return int((addr - g.Base) / g.BankSize())
}

// Region is a contiguous address range.
type Region struct {
	// Start is the first address of the region
	Start uint32

	// Size is the length of the region in bytes
	Size uint32
}

// End returns the first address past the region.
func (r Region) End() uint32 {
	return r.Start + r.Size
}

// BankSpan is the part of a region that falls inside one bank, in pages.
type BankSpan struct {
	Bank      int
	FirstPage int
	NumPages  int
}

// Spans splits a page-aligned region into per-bank page ranges.
func (g Geometry) Spans(r Region) []BankSpan {
	var spans []BankSpan
	for bank := uint32(0); bank < g.Banks; bank++ {
		bankStart := g.Base + bank*g.BankSize()
		bankEnd := bankStart + g.BankSize()

		start, end := r.Start, r.End()
		if start < bankStart {
			start = bankStart
		}
		if end > bankEnd {
			end = bankEnd
		}
		if start >= end {
			continue
		}

		spans = append(spans, BankSpan{
			Bank:      int(bank),
			FirstPage: int((start - bankStart) / g.PageSize),
			NumPages:  int((end - start + g.PageSize - 1) / g.PageSize),
		})
	}
	return spans
}
