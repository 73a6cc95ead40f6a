package section

import (
	"encoding/binary"

	"github.com/moffa90/go-dualboot/checksum"
)

// HeaderSize is the size of an encoded section header.
//
//	[TYPE(1)][HEAD(1)][TAIL(1)][ENTRY_LEN(2)][CURRENT_ADDR(4)][CHECKSUM(1)]
const HeaderSize = 10

// Header tracks the entries of a record section.
type Header struct {
	// Type must match the section type
	Type Type

	// Head is the index of the next entry to write
	Head uint8

	// Tail is the index of the oldest unconsumed entry
	Tail uint8

	// EntryLen must match the section entry length
	EntryLen uint16

	// CurrentAddr is the address of the current entry (single) or next write (array)
	CurrentAddr uint32

	// Checksum is the stored two's-complement checksum of the first nine bytes
	Checksum uint8
}

// Bytes encodes h, recomputing the checksum.
func (h Header) Bytes() []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = byte(h.Type)
	buf[1] = h.Head
	buf[2] = h.Tail
	binary.LittleEndian.PutUint16(buf[3:5], h.EntryLen)
	binary.LittleEndian.PutUint32(buf[5:9], h.CurrentAddr)
	buf[9] = checksum.Sum8(buf[:9])
	return buf
}

// ParseHeader decodes a header without verifying it.
func ParseHeader(buf []byte) Header {
	return Header{
		Type:        Type(buf[0]),
		Head:        buf[1],
		Tail:        buf[2],
		EntryLen:    binary.LittleEndian.Uint16(buf[3:5]),
		CurrentAddr: binary.LittleEndian.Uint32(buf[5:9]),
		Checksum:    buf[9],
	}
}

// encodeEntry appends the record checksum to payload.
func encodeEntry(payload []byte) []byte {
	entry := make([]byte, len(payload)+1)
	copy(entry, payload)
	entry[len(payload)] = checksum.Sum8(payload)
	return entry
}
