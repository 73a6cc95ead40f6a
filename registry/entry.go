package registry

import (
	"encoding/binary"
	"fmt"

	"github.com/moffa90/go-dualboot/image"
	"github.com/moffa90/go-dualboot/section"
)

// PayloadSize is the size of an encoded Entry without its checksum.
//
//	[PRIMARY(1)][LOADED(1)][A.STATE(1)][A.MAJOR(4)][A.MINOR(4)][A.BUILD(4)][B...(13)]
const PayloadSize = section.RegistryEntryLen - 1

const slotRecordSize = 13

// SlotRecord is the per-slot part of the registry.
type SlotRecord struct {
	State   image.State
	Version image.Version
}

// Entry is the decoded image registry record.
type Entry struct {
	Primary image.Slot
	Loaded  image.Slot
	A       SlotRecord
	B       SlotRecord
}

// Slot returns a pointer to the record of slot s, or nil for an unknown slot.
func (e *Entry) Slot(s image.Slot) *SlotRecord {
	switch s {
	case image.SlotA:
		return &e.A
	case image.SlotB:
		return &e.B
	default:
		return nil
	}
}

// Bytes encodes e. Versions are little-endian.
func (e Entry) Bytes() []byte {
	buf := make([]byte, PayloadSize)
	buf[0] = byte(e.Primary)
	buf[1] = byte(e.Loaded)
	putSlotRecord(buf[2:], e.A)
	putSlotRecord(buf[2+slotRecordSize:], e.B)
	return buf
}

func putSlotRecord(buf []byte, r SlotRecord) {
	buf[0] = byte(r.State)
	binary.LittleEndian.PutUint32(buf[1:5], r.Version.Major)
	binary.LittleEndian.PutUint32(buf[5:9], r.Version.Minor)
	binary.LittleEndian.PutUint32(buf[9:13], r.Version.Build)
}

func slotRecord(buf []byte) SlotRecord {
	return SlotRecord{
		State: image.State(buf[0]),
		Version: image.Version{
			Major: binary.LittleEndian.Uint32(buf[1:5]),
			Minor: binary.LittleEndian.Uint32(buf[5:9]),
			Build: binary.LittleEndian.Uint32(buf[9:13]),
		},
	}
}

// ParseEntry decodes a registry payload and checks that every enumerated
// field holds a defined value.
func ParseEntry(buf []byte) (Entry, error) {
	if len(buf) != PayloadSize {
		return Entry{}, fmt.Errorf("registry entry is %d bytes, want %d", len(buf), PayloadSize)
	}
	e := Entry{
		Primary: image.Slot(buf[0]),
		Loaded:  image.Slot(buf[1]),
		A:       slotRecord(buf[2:]),
		B:       slotRecord(buf[2+slotRecordSize:]),
	}
	if !e.Primary.Valid() {
		return Entry{}, &InvalidSlotError{Field: "primary", Slot: e.Primary}
	}
	if !e.Loaded.Valid() {
		return Entry{}, &InvalidSlotError{Field: "loaded", Slot: e.Loaded}
	}
	for _, s := range image.Slots {
		if st := e.Slot(s).State; st > image.StateFailed {
			return Entry{}, &InvalidStateError{Slot: s, State: st}
		}
	}
	return e, nil
}
