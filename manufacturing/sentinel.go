package manufacturing

import (
	"encoding/binary"

	"github.com/moffa90/go-dualboot/flash"
	"github.com/moffa90/go-dualboot/section"
)

// MagicWritten reports whether the external flash carries the "layout
// initialized" sentinel. A read failure counts as not written.
func MagicWritten(ext flash.Device) bool {
	buf := make([]byte, section.MagicSize)
	if err := ext.Read(section.MagicAddr, buf); err != nil {
		return false
	}
	return binary.LittleEndian.Uint32(buf) == section.MagicValue
}

// WriteMagic stores the sentinel.
func WriteMagic(ext flash.Device) error {
	buf := make([]byte, section.MagicSize)
	binary.LittleEndian.PutUint32(buf, section.MagicValue)
	return ext.Write(section.MagicAddr, buf)
}
