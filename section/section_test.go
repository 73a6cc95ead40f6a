package section

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/moffa90/go-dualboot/flash"
)

// smallMap has a four-entry log so wrapping is easy to reach.
func smallMap() Map {
	return Map{
		{
			Type:              TypeImageRegistry,
			Start:             0x000,
			End:               0x040,
			EntryLen:          5,
			DefaultNumEntries: 1,
			DefaultValues:     []byte{1, 2, 3, 4},
		},
		{
			Type:              TypeLog,
			Start:             0x100,
			End:               0x100 + HeaderSize + 4*3,
			IsArray:           true,
			EntryLen:          3,
			DefaultNumEntries: 1,
			DefaultValues:     []byte{0xAA, 0xBB},
		},
		{Type: TypeAMImageA, Start: 0x200, End: 0x300, Raw: true},
		{Type: TypeAMImageB, Start: 0x300, End: 0x400, Raw: true},
	}
}

func newTestManager(t *testing.T) (*Manager, *flash.Memory) {
	t.Helper()
	m := smallMap()
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	dev := flash.NewMemory(0x400)
	return NewManager(dev, m), dev
}

func TestDefaultMap(t *testing.T) {
	m := DefaultMap()
	if err := m.Validate(); err != nil {
		t.Fatalf("DefaultMap().Validate() = %v", err)
	}
	layout := m.ImageLayout()
	if layout.A.Base != 0x100000 || layout.A.Size != 0x80000 {
		t.Errorf("layout A = %+v", layout.A)
	}
	if layout.B.Base != 0x180000 || layout.B.Size != 0x80000 {
		t.Errorf("layout B = %+v", layout.B)
	}
	for _, s := range m {
		if MagicAddr >= s.Start && MagicAddr < s.End {
			t.Errorf("magic address 0x%X inside section %s", MagicAddr, s.Type)
		}
	}
}

func TestMapValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(Map) Map
	}{
		{"overlap", func(m Map) Map { m[1].Start = 0x030; return m }},
		{"duplicate", func(m Map) Map { m[3].Type = TypeAMImageA; return m }},
		{"empty range", func(m Map) Map { m[2].End = m[2].Start; return m }},
		{"default length", func(m Map) Map { m[0].DefaultValues = []byte{1}; return m }},
		{"single with two defaults", func(m Map) Map { m[0].DefaultNumEntries = 2; return m }},
		{"defaults exceed capacity", func(m Map) Map { m[1].DefaultNumEntries = 9; return m }},
		{"covers sentinel", func(m Map) Map { m[3].End = MagicAddr + 1; return m }},
		{"starts inside sentinel", func(m Map) Map { m[3].Start, m[3].End = MagicAddr+MagicSize-1, MagicAddr+0x100; return m }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.mutate(smallMap()).Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestHeaderBytes(t *testing.T) {
	h := Header{Type: TypeLog, Head: 3, Tail: 1, EntryLen: 0x0110, CurrentAddr: 0x00012345}
	got := h.Bytes()
	want := []byte{0x02, 0x03, 0x01, 0x10, 0x01, 0x45, 0x23, 0x01, 0x00, 0x00}
	var sum byte
	for _, b := range want[:9] {
		sum += b
	}
	want[9] = -sum
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("Bytes() diff (-want +got):\n%s", d)
	}
	h.Checksum = want[9]
	if d := cmp.Diff(h, ParseHeader(got)); d != "" {
		t.Errorf("ParseHeader() diff (-want +got):\n%s", d)
	}
}

func TestSingleRecord(t *testing.T) {
	mgr, dev := newTestManager(t)

	if _, err := mgr.ReadCurrent(TypeImageRegistry); !IsCorrupt(err) {
		t.Fatalf("ReadCurrent() on erased flash = %v, want corrupt", err)
	}

	if err := mgr.Default(TypeImageRegistry); err != nil {
		t.Fatalf("Default() = %v", err)
	}
	h, err := mgr.ReadHeader(TypeImageRegistry)
	if err != nil {
		t.Fatalf("ReadHeader() = %v", err)
	}
	if h.Head != 1 || h.Tail != 1 || h.CurrentAddr != HeaderSize {
		t.Errorf("header = %+v, want head=tail=1 current=0x%X", h, HeaderSize)
	}
	got, err := mgr.ReadCurrent(TypeImageRegistry)
	if err != nil {
		t.Fatalf("ReadCurrent() = %v", err)
	}
	if d := cmp.Diff([]byte{1, 2, 3, 4}, got); d != "" {
		t.Errorf("default entry diff (-want +got):\n%s", d)
	}

	if err := mgr.Overwrite(TypeImageRegistry, []byte{9, 8, 7, 6}); err != nil {
		t.Fatalf("Overwrite() = %v", err)
	}
	got, err = mgr.ReadCurrent(TypeImageRegistry)
	if err != nil {
		t.Fatalf("ReadCurrent() = %v", err)
	}
	if d := cmp.Diff([]byte{9, 8, 7, 6}, got); d != "" {
		t.Errorf("overwritten entry diff (-want +got):\n%s", d)
	}
	if !bytes.Equal(dev.Bytes()[0:HeaderSize], h.Bytes()) {
		t.Error("Overwrite() rewrote the header")
	}

	if err := mgr.Overwrite(TypeImageRegistry, []byte{1}); err == nil {
		t.Error("Overwrite() with short payload = nil, want error")
	}
}

func TestCorruption(t *testing.T) {
	tests := []struct {
		name       string
		offset     int
		wantHeader bool
	}{
		{"header checksum", HeaderSize - 1, true},
		{"header type", 0, true},
		{"entry payload", HeaderSize + 1, false},
		{"entry checksum", HeaderSize + 4, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr, dev := newTestManager(t)
			if err := mgr.Default(TypeImageRegistry); err != nil {
				t.Fatal(err)
			}
			dev.Bytes()[tt.offset] ^= 0x01

			_, err := mgr.ReadCurrent(TypeImageRegistry)
			var cm *ChecksumMismatchError
			if !errors.As(err, &cm) {
				t.Fatalf("ReadCurrent() = %v, want ChecksumMismatchError", err)
			}
			if cm.Header != tt.wantHeader {
				t.Errorf("Header = %v, want %v", cm.Header, tt.wantHeader)
			}
		})
	}
}

func TestHeaderInconsistent(t *testing.T) {
	mgr, dev := newTestManager(t)
	// A checksum-valid header that belongs to another section.
	h := Header{Type: TypeLog, Head: 1, Tail: 1, EntryLen: 5, CurrentAddr: HeaderSize}
	copy(dev.Bytes(), h.Bytes())

	_, err := mgr.ReadHeader(TypeImageRegistry)
	var he *HeaderError
	if !errors.As(err, &he) {
		t.Fatalf("ReadHeader() = %v, want HeaderError", err)
	}
}

func TestArray(t *testing.T) {
	mgr, _ := newTestManager(t)
	if err := mgr.Default(TypeLog); err != nil {
		t.Fatalf("Default() = %v", err)
	}
	h, err := mgr.ReadHeader(TypeLog)
	if err != nil {
		t.Fatalf("ReadHeader() = %v", err)
	}
	s, _ := smallMap().Lookup(TypeLog)
	if h.Head != 1 || h.Tail != 1 || h.CurrentAddr != s.EntryAddr(1) {
		t.Errorf("defaulted header = %+v", h)
	}

	n, err := mgr.Pending(TypeLog)
	if err != nil || n != 0 {
		t.Fatalf("Pending() = %d, %v; want 0", n, err)
	}

	for i := byte(1); i <= 2; i++ {
		if err := mgr.Append(TypeLog, []byte{i, i}); err != nil {
			t.Fatalf("Append(%d) = %v", i, err)
		}
	}
	if n, _ := mgr.Pending(TypeLog); n != 2 {
		t.Fatalf("Pending() = %d, want 2", n)
	}
	for i := 0; i < 2; i++ {
		got, err := mgr.Entry(TypeLog, i)
		if err != nil {
			t.Fatalf("Entry(%d) = %v", i, err)
		}
		want := []byte{byte(i + 1), byte(i + 1)}
		if d := cmp.Diff(want, got); d != "" {
			t.Errorf("Entry(%d) diff (-want +got):\n%s", i, d)
		}
	}
	if _, err := mgr.Entry(TypeLog, 2); err == nil {
		t.Error("Entry(2) = nil error, want out of range")
	}

	got, err := mgr.Consume(TypeLog)
	if err != nil {
		t.Fatalf("Consume() = %v", err)
	}
	if d := cmp.Diff([]byte{1, 1}, got); d != "" {
		t.Errorf("Consume() diff (-want +got):\n%s", d)
	}
	if n, _ := mgr.Pending(TypeLog); n != 1 {
		t.Errorf("Pending() after Consume = %d, want 1", n)
	}
}

func TestArrayWrap(t *testing.T) {
	mgr, _ := newTestManager(t)
	if err := mgr.Default(TypeLog); err != nil {
		t.Fatal(err)
	}
	// Capacity is 4, so at most 3 entries are pending and the oldest drop out.
	for i := byte(1); i <= 6; i++ {
		if err := mgr.Append(TypeLog, []byte{i, 0}); err != nil {
			t.Fatalf("Append(%d) = %v", i, err)
		}
	}
	n, err := mgr.Pending(TypeLog)
	if err != nil || n != 3 {
		t.Fatalf("Pending() = %d, %v; want 3", n, err)
	}
	var got []byte
	for {
		p, err := mgr.Consume(TypeLog)
		if errors.Is(err, ErrEmpty) {
			break
		}
		if err != nil {
			t.Fatalf("Consume() = %v", err)
		}
		got = append(got, p[0])
	}
	if d := cmp.Diff([]byte{4, 5, 6}, got); d != "" {
		t.Errorf("consumed diff (-want +got):\n%s", d)
	}
}

func TestAppendWriteFailure(t *testing.T) {
	mgr, dev := newTestManager(t)
	if err := mgr.Default(TypeLog); err != nil {
		t.Fatal(err)
	}
	before, err := mgr.ReadHeader(TypeLog)
	if err != nil {
		t.Fatal(err)
	}

	dev.FailNext(flash.OpWrite, 1)
	err = mgr.Append(TypeLog, []byte{1, 2})
	if !flash.IsIOError(err) {
		t.Fatalf("Append() = %v, want IOError", err)
	}
	after, err := mgr.ReadHeader(TypeLog)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(before, after); d != "" {
		t.Errorf("header changed after failed append (-want +got):\n%s", d)
	}
}

func TestWrongSectionKind(t *testing.T) {
	mgr, _ := newTestManager(t)
	if err := mgr.Default(TypeAMImageA); !errors.Is(err, ErrRawSection) {
		t.Errorf("Default(raw) = %v, want ErrRawSection", err)
	}
	if err := mgr.Default(TypeSSMImageA); !errors.Is(err, ErrUnknownSection) {
		t.Errorf("Default(missing) = %v, want ErrUnknownSection", err)
	}
	if err := mgr.Default(TypeImageRegistry); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Append(TypeImageRegistry, []byte{1, 2, 3, 4}); !errors.Is(err, ErrNotArray) {
		t.Errorf("Append(single) = %v, want ErrNotArray", err)
	}
}
