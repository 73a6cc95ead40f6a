package manufacturing

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/moffa90/go-dualboot/flash"
	"github.com/moffa90/go-dualboot/image"
	"github.com/moffa90/go-dualboot/registry"
	"github.com/moffa90/go-dualboot/section"
)

var (
	testGeometry = flash.Geometry{Base: 0x08000000, PageSize: 0x800, PagesPerBank: 64, Banks: 2}
	factoryArea  = image.Area{Base: 0x08010000, Size: 0x10000}
	factoryVer   = image.Version{Major: 1, Minor: 4, Build: 77}
)

type fixture struct {
	ctrl    *flash.MemController
	ext     *flash.Memory
	reg     *registry.Registry
	blob    []byte
	resets  int
	locator *InternalLocator
}

func newFixture(t *testing.T, withPackage bool) *fixture {
	t.Helper()
	f := &fixture{ctrl: flash.NewMemController(testGeometry), ext: flash.NewMemory(0x300000)}
	if withPackage {
		payload := bytes.Repeat([]byte("factory!"), 123)
		f.blob = image.Build(image.TypeAM, factoryVer, payload)
		copy(f.ctrl.Bytes()[factoryArea.Base-testGeometry.Base:], f.blob)
	}
	f.reg = registry.New(section.NewManager(f.ext, section.DefaultMap()))
	f.locator = NewInternalLocator(f.ctrl, factoryArea)
	return f
}

func (f *fixture) bootstrap(reg Registry) *Bootstrap {
	if reg == nil {
		reg = f.reg
	}
	slotA := section.DefaultMap().ImageLayout().A
	return New(f.locator, flash.ReadOnly(f.ctrl), factoryArea.Base, f.ext, slotA, reg,
		ResetFunc(func() { f.resets++ }))
}

func TestNeeded(t *testing.T) {
	f := newFixture(t, true)
	b := f.bootstrap(nil)
	if b.Needed(false) {
		t.Error("Needed(warm) = true")
	}
	if !b.Needed(true) {
		t.Error("Needed(cold) = false with package and no sentinel")
	}
	if err := WriteMagic(f.ext); err != nil {
		t.Fatal(err)
	}
	if b.Needed(true) {
		t.Error("Needed(cold) = true after sentinel was written")
	}

	empty := newFixture(t, false)
	if empty.bootstrap(nil).Needed(true) {
		t.Error("Needed(cold) = true without package")
	}
}

func TestRun(t *testing.T) {
	f := newFixture(t, true)
	if err := f.bootstrap(nil).Run(); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	if f.resets != 1 {
		t.Errorf("resets = %d, want 1", f.resets)
	}
	if !MagicWritten(f.ext) {
		t.Error("sentinel not written")
	}
	slotA := section.DefaultMap().ImageLayout().A
	if got := f.ext.Bytes()[slotA.Base : slotA.Base+uint32(len(f.blob))]; !bytes.Equal(got, f.blob) {
		t.Error("slot A does not hold the factory package")
	}

	reopened := registry.New(section.NewManager(f.ext, section.DefaultMap()))
	if err := reopened.Init(); err != nil {
		t.Fatalf("registry Init() = %v", err)
	}
	want := registry.Entry{
		Primary: image.SlotA,
		Loaded:  image.SlotUnknown,
		A:       registry.SlotRecord{State: image.StateUnknown, Version: factoryVer},
	}
	if d := cmp.Diff(want, reopened.Entry()); d != "" {
		t.Errorf("registry diff (-want +got):\n%s", d)
	}

	v := image.NewValidator(f.ext, section.DefaultMap().ImageLayout())
	if err := v.Validate(image.SlotA); err != nil {
		t.Errorf("Validate(A) after bootstrap = %v", err)
	}
}

func TestRunNoPackage(t *testing.T) {
	f := newFixture(t, false)
	if err := f.bootstrap(nil).Run(); !errors.Is(err, ErrNoPackage) {
		t.Fatalf("Run() = %v, want ErrNoPackage", err)
	}
	if f.resets != 0 {
		t.Error("reset without a package")
	}
}

func TestRunCorruptPackage(t *testing.T) {
	f := newFixture(t, true)
	f.ctrl.Bytes()[factoryArea.Base-testGeometry.Base+image.HeaderSize+5] ^= 0x80
	if _, ok := f.locator.Locate(); ok {
		t.Fatal("Locate() found a corrupt package")
	}
	if err := f.bootstrap(nil).Run(); !errors.Is(err, ErrNoPackage) {
		t.Errorf("Run() = %v, want ErrNoPackage", err)
	}
}

func TestRunCopyFailure(t *testing.T) {
	f := newFixture(t, true)
	f.ext.FailNext(flash.OpWrite, 1)

	err := f.bootstrap(nil).Run()
	if !flash.IsIOError(err) {
		t.Fatalf("Run() = %v, want IOError", err)
	}
	if f.resets != 0 || MagicWritten(f.ext) {
		t.Error("failed copy still reset or wrote the sentinel")
	}
}

type failingRegistry struct {
	Registry
	err error
}

func (r failingRegistry) SetPrimarySlot(image.Slot) error { return r.err }

func TestRunRegistryFailure(t *testing.T) {
	f := newFixture(t, true)
	werr := errors.New("registry write failed")

	err := f.bootstrap(failingRegistry{Registry: f.reg, err: werr}).Run()
	if !errors.Is(err, werr) {
		t.Fatalf("Run() = %v, want %v", err, werr)
	}
	if f.resets != 0 || MagicWritten(f.ext) {
		t.Error("failed registry update still reset or wrote the sentinel")
	}
}

func TestReadOnlySource(t *testing.T) {
	f := newFixture(t, true)
	err := flash.ReadOnly(f.ctrl).Write(factoryArea.Base, []byte{0})
	if !errors.Is(err, flash.ErrReadOnly) {
		t.Errorf("Write() = %v, want ErrReadOnly", err)
	}
}

// countingLocator counts how often the package is validated.
type countingLocator struct {
	Locator
	calls int
}

func (c *countingLocator) Locate() (image.Metadata, bool) {
	c.calls++
	return c.Locator.Locate()
}

func TestRunReusesLocatedPackage(t *testing.T) {
	f := newFixture(t, true)
	loc := &countingLocator{Locator: f.locator}
	slotA := section.DefaultMap().ImageLayout().A
	b := New(loc, flash.ReadOnly(f.ctrl), factoryArea.Base, f.ext, slotA, f.reg,
		ResetFunc(func() { f.resets++ }))

	if !b.Needed(true) {
		t.Fatal("Needed(cold) = false with package and no sentinel")
	}
	if err := b.Run(); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if loc.calls != 1 {
		t.Errorf("package located %d times, want 1", loc.calls)
	}

	// A later Run without Needed looks the package up again.
	if err := b.Run(); err != nil {
		t.Fatalf("second Run() = %v", err)
	}
	if loc.calls != 2 {
		t.Errorf("package located %d times, want 2", loc.calls)
	}
}
