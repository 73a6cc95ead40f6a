package image

import (
	"encoding/binary"
	"fmt"

	"github.com/moffa90/go-dualboot/checksum"
)

// Type is the image type tag of the metadata header.
type Type uint8

// Image type tags.
const (
	// TypeAM marks an application image, the only type the bootloader loads
	TypeAM Type = 0x01

	// TypeSSM marks a subsystem image carried in the secondary areas
	TypeSSM Type = 0x02
)

func (t Type) String() string {
	switch t {
	case TypeAM:
		return "AM_IMAGE"
	case TypeSSM:
		return "SSM_IMAGE"
	default:
		return fmt.Sprintf("unknown(0x%02X)", uint8(t))
	}
}

// Metadata header layout.
const (
	// HeaderSize is the size of the on-flash metadata header in bytes
	HeaderSize = 19

	// checksumOffset is the offset of the u16 CRC
	checksumOffset = 0

	// typeOffset is the offset of the u8 type tag
	typeOffset = 2

	// lengthOffset is the offset of the byte-swapped u32 payload length
	lengthOffset = 3

	// versionOffset is the offset of the three u32 version fields
	versionOffset = 7

	// CoveredOffset is the first header byte covered by the image CRC
	CoveredOffset = typeOffset
)

// Metadata is the header stored at the base of each image slot.
//
// On flash (HeaderSize bytes):
//
//	[CRC(2)][TYPE(1)][LENGTH(4)][MAJOR(4)][MINOR(4)][BUILD(4)]
//
// Multi-byte fields are little-endian except CRC and LENGTH, which are stored
// byte-swapped (big-endian). The CRC covers header bytes 2..18 followed by
// Length payload bytes.
type Metadata struct {
	// Checksum is the stored CRC-16/CCITT-FALSE
	Checksum uint16

	// Type is the image type tag
	Type Type

	// Length is the payload length in bytes
	Length uint32

	// Version is the firmware version
	Version Version
}

// SwapUint16 reverses the byte order of v.
func SwapUint16(v uint16) uint16 {
	return v<<8 | v>>8
}

// SwapUint32 reverses the byte order of v.
func SwapUint32(v uint32) uint32 {
	return v<<24 | (v<<8)&0x00FF0000 | (v>>8)&0x0000FF00 | v>>24
}

// ParseMetadata decodes a metadata header.
func ParseMetadata(header []byte) (Metadata, error) {
	if len(header) != HeaderSize {
		return Metadata{}, fmt.Errorf("invalid metadata length: got %d bytes, expected %d", len(header), HeaderSize)
	}

	return Metadata{
		Checksum: SwapUint16(binary.LittleEndian.Uint16(header[checksumOffset:])),
		Type:     Type(header[typeOffset]),
		Length:   SwapUint32(binary.LittleEndian.Uint32(header[lengthOffset:])),
		Version: Version{
			Major: binary.LittleEndian.Uint32(header[versionOffset:]),
			Minor: binary.LittleEndian.Uint32(header[versionOffset+4:]),
			Build: binary.LittleEndian.Uint32(header[versionOffset+8:]),
		},
	}, nil
}

// Bytes encodes the header in its on-flash form.
func (m Metadata) Bytes() []byte {
	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint16(header[checksumOffset:], SwapUint16(m.Checksum))
	header[typeOffset] = byte(m.Type)
	binary.LittleEndian.PutUint32(header[lengthOffset:], SwapUint32(m.Length))
	binary.LittleEndian.PutUint32(header[versionOffset:], m.Version.Major)
	binary.LittleEndian.PutUint32(header[versionOffset+4:], m.Version.Minor)
	binary.LittleEndian.PutUint32(header[versionOffset+8:], m.Version.Build)
	return header
}

// Build returns a complete slot image (header followed by payload) with a
// correct CRC.
func Build(t Type, v Version, payload []byte) []byte {
	m := Metadata{Type: t, Length: uint32(len(payload)), Version: v}
	header := m.Bytes()

	crc := checksum.NewCRC16().Update(header[CoveredOffset:]).Update(payload)
	m.Checksum = crc.Sum16()

	out := make([]byte, 0, HeaderSize+len(payload))
	out = append(out, m.Bytes()...)
	return append(out, payload...)
}
