package section

import (
	"fmt"

	"github.com/moffa90/go-dualboot/image"
)

// Type identifies a persisted flash region.
type Type uint8

// Section types. The value is also the type tag stored in the section header.
const (
	TypeConfig        Type = 0x01
	TypeLog           Type = 0x02
	TypeImageRegistry Type = 0x03
	TypeAMImageA      Type = 0x04
	TypeAMImageB      Type = 0x05
	TypeSSMImageA     Type = 0x06
	TypeSSMImageB     Type = 0x07
)

func (t Type) String() string {
	switch t {
	case TypeConfig:
		return "config"
	case TypeLog:
		return "log"
	case TypeImageRegistry:
		return "image-registry"
	case TypeAMImageA:
		return "am-image-a"
	case TypeAMImageB:
		return "am-image-b"
	case TypeSSMImageA:
		return "ssm-image-a"
	case TypeSSMImageB:
		return "ssm-image-b"
	default:
		return fmt.Sprintf("section(0x%02X)", uint8(t))
	}
}

// Section describes one entry of the flash section map.
//
// Record sections (Raw false) start with a Header followed by their entries.
// Each entry is EntryLen bytes: EntryLen-1 bytes of payload and a trailing
// two's-complement checksum. Raw sections (image areas) have no header.
type Section struct {
	// Type identifies the section
	Type Type

	// Start is the first address of the section
	Start uint32

	// End is the first address past the section
	End uint32

	// IsArray selects append/wrap storage instead of a single overwritten record
	IsArray bool

	// Raw marks an area without header or entries
	Raw bool

	// EntryLen is the size of one entry including its checksum byte
	EntryLen uint16

	// DefaultNumEntries is how many default entries Default writes
	DefaultNumEntries uint8

	// DefaultValues is the payload of a default entry (EntryLen-1 bytes)
	DefaultValues []byte
}

// FirstEntry returns the address of entry 0.
func (s Section) FirstEntry() uint32 {
	return s.Start + HeaderSize
}

// Capacity returns the number of entries the section can hold. Indices are
// stored in a byte, so the capacity never exceeds 255.
func (s Section) Capacity() int {
	if s.Raw || s.EntryLen == 0 || s.End <= s.FirstEntry() {
		return 0
	}
	n := int((s.End - s.FirstEntry()) / uint32(s.EntryLen))
	if n > 255 {
		n = 255
	}
	return n
}

// EntryAddr returns the address of the entry slot with index i.
func (s Section) EntryAddr(i int) uint32 {
	return s.FirstEntry() + uint32(i)*uint32(s.EntryLen)
}

// Map is the static flash section map.
type Map []Section

// Lookup returns the section of type t.
func (m Map) Lookup(t Type) (Section, bool) {
	for _, s := range m {
		if s.Type == t {
			return s, true
		}
	}
	return Section{}, false
}

// ImageLayout returns the application image areas as slot areas.
func (m Map) ImageLayout() image.Layout {
	a, _ := m.Lookup(TypeAMImageA)
	b, _ := m.Lookup(TypeAMImageB)
	return image.Layout{
		A: image.Area{Base: a.Start, Size: a.End - a.Start},
		B: image.Area{Base: b.Start, Size: b.End - b.Start},
	}
}

// Validate checks that sections are well formed and do not overlap each
// other or the layout sentinel.
func (m Map) Validate() error {
	for i, s := range m {
		if s.End <= s.Start {
			return fmt.Errorf("section %s: empty range 0x%X-0x%X", s.Type, s.Start, s.End)
		}
		if s.Start < MagicAddr+MagicSize && MagicAddr < s.End {
			return fmt.Errorf("section %s overlaps the sentinel at 0x%X", s.Type, MagicAddr)
		}
		if !s.Raw {
			if s.EntryLen < 2 {
				return fmt.Errorf("section %s: entry length %d too small", s.Type, s.EntryLen)
			}
			if len(s.DefaultValues) != int(s.EntryLen)-1 {
				return fmt.Errorf("section %s: default values are %d bytes, want %d",
					s.Type, len(s.DefaultValues), s.EntryLen-1)
			}
			if s.Capacity() == 0 {
				return fmt.Errorf("section %s: no room for entries", s.Type)
			}
			if int(s.DefaultNumEntries) > s.Capacity() {
				return fmt.Errorf("section %s: %d default entries exceed capacity %d",
					s.Type, s.DefaultNumEntries, s.Capacity())
			}
			if !s.IsArray && s.DefaultNumEntries != 1 {
				return fmt.Errorf("section %s: single-record section needs exactly one default entry", s.Type)
			}
		}
		for _, o := range m[i+1:] {
			if s.Type == o.Type {
				return fmt.Errorf("section %s listed twice", s.Type)
			}
			if s.Start < o.End && o.Start < s.End {
				return fmt.Errorf("sections %s and %s overlap", s.Type, o.Type)
			}
		}
	}
	return nil
}
