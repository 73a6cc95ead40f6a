package bootloader

import (
	"github.com/moffa90/go-dualboot/bootcache"
	"github.com/moffa90/go-dualboot/decision"
	"github.com/moffa90/go-dualboot/flash"
	"github.com/moffa90/go-dualboot/image"
	"github.com/moffa90/go-dualboot/logging"
	"github.com/moffa90/go-dualboot/manufacturing"
	"github.com/moffa90/go-dualboot/programmer"
	"github.com/moffa90/go-dualboot/registry"
	"github.com/moffa90/go-dualboot/section"
)

// Hardware bundles the collaborators the bootloader drives.
type Hardware struct {
	// Internal is the internal flash controller holding the application region
	Internal flash.Controller

	// External is the external flash holding sections and image slots
	External flash.Device

	// Store retains the boot cache across warm resets
	Store bootcache.Store

	// Resetter forces a full system reset after the factory bootstrap. It is
	// required when Layout.Factory has a non-zero Size.
	Resetter manufacturing.Resetter
}

// Layout places the bootloader's data in both flashes.
type Layout struct {
	// Sections is the external flash section map
	Sections section.Map

	// Region is the internal application region
	Region flash.Region

	// Factory is the internal flash area of the factory package. A zero
	// Size disables the factory bootstrap.
	Factory image.Area
}

// Verdict is the result of one boot pass.
type Verdict struct {
	// Jump reports whether it is safe to jump to the application
	Jump bool

	// Reset reports that the factory bootstrap ran and requested a reset
	Reset bool

	// Cold reports whether the pass started from a power-on
	Cold bool

	// Decision is the decision engine's verdict (zero when Reset)
	Decision decision.Decision

	// Cache is the boot cache retained for the next pass
	Cache bootcache.Cache
}

// Bootloader runs the boot sequence once per reset.
//
// Bootloader is not safe for concurrent use; it is meant to run exactly once
// per boot.
type Bootloader struct {
	hw        Hardware
	layout    Layout
	config    Config
	logger    logging.Logger
	sections  *section.Manager
	registry  *registry.Registry
	validator *image.Validator
	prog      *programmer.Programmer
	engine    *decision.Engine
	bootstrap *manufacturing.Bootstrap
	resetErr  error
}

// New wires the bootloader components over hw.
//
// Example:
//
//	bl := bootloader.New(hw, bootloader.Layout{
//	    Sections: section.DefaultMap(),
//	    Region:   flash.Region{Start: 0x08020000, Size: 0x60000},
//	})
//	v, err := bl.Run()
//	if err == nil && v.Jump {
//	    jumpToApplication()
//	}
func New(hw Hardware, layout Layout, opts ...Option) *Bootloader {
	if hw.Internal == nil || hw.External == nil || hw.Store == nil {
		panic("internal flash, external flash and cache store are required")
	}
	if layout.Factory.Size > 0 && hw.Resetter == nil {
		panic("a resetter is required when a factory package area is set")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := logging.OrNop(cfg.Logger)

	b := &Bootloader{hw: hw, layout: layout, config: cfg, logger: logger}
	b.sections = section.NewManager(hw.External, layout.Sections, section.WithLogger(logger))
	b.registry = registry.New(b.sections, registry.WithLogger(logger))

	slots := layout.Sections.ImageLayout()
	b.validator = image.NewValidator(hw.External, slots,
		image.WithStagingSize(cfg.StagingSize),
		image.WithLogger(logger),
	)
	b.prog = programmer.New(hw.Internal, hw.External, b.validator, slots, layout.Region,
		programmer.WithMaxAttempts(cfg.MaxAttempts),
		programmer.WithProgressCallback(cfg.ProgressCallback),
		programmer.WithLogger(logger),
	)

	engineOpts := []decision.Option{decision.WithLogger(logger)}
	if cfg.Recorder != nil {
		engineOpts = append(engineOpts, decision.WithRecorder(cfg.Recorder))
	}
	b.engine = decision.New(b.registry, b.validator, b.prog, engineOpts...)

	if layout.Factory.Size > 0 {
		locator := manufacturing.NewInternalLocator(hw.Internal, layout.Factory,
			image.WithStagingSize(cfg.StagingSize))
		b.bootstrap = manufacturing.New(locator, flash.ReadOnly(hw.Internal), layout.Factory.Base,
			hw.External, slots.A, b.registry, manufacturing.ResetFunc(b.manufacturingReset),
			manufacturing.WithLogger(logger))
	}
	return b
}

// Sections returns the external flash section manager.
func (b *Bootloader) Sections() *section.Manager {
	return b.sections
}

// Registry returns the image registry.
func (b *Bootloader) Registry() *registry.Registry {
	return b.registry
}

// Validator returns the slot validator.
func (b *Bootloader) Validator() *image.Validator {
	return b.validator
}

// Run performs one boot pass:
//  1. Load the boot cache and tell a cold boot from a warm one
//  2. On a cold boot with a factory package, run the bootstrap and reset
//  3. Initialize the image registry
//  4. Classify the cache against the registry
//  5. Let the decision engine choose and load a slot
//  6. Append a boot record to the log
//  7. Advance the start count and retain the cache
//
// The returned error only reports a failure to retain the cache; the
// verdict is valid either way.
func (b *Bootloader) Run() (Verdict, error) {
	prev, err := b.hw.Store.Load()
	if err != nil {
		b.logger.Error("Boot cache unreadable, treating as power-on", "error", err)
		prev = bootcache.Cache{}
	}

	if b.bootstrap != nil && b.bootstrap.Needed(!prev.Warm()) {
		err := b.bootstrap.Run()
		if err == nil {
			return Verdict{Reset: true, Cold: true, Cache: manufacturingCache()}, b.resetErr
		}
		b.logger.Error("Factory bootstrap failed, continuing normal boot", "error", err)
	}

	if err := b.registry.Init(); err != nil {
		b.logger.Info("Image registry invalid", "error", err)
	}

	cache, cold := bootcache.Classify(prev, b.registry)
	d := b.engine.Decide(cache)
	b.appendRecord(d, cold)

	next := d.Cache.Advance()
	v := Verdict{Jump: d.Jump, Cold: cold, Decision: d, Cache: next}
	if err := b.hw.Store.Save(next); err != nil {
		b.logger.Error("Retaining boot cache failed", "error", err)
		return v, err
	}
	return v, nil
}

// manufacturingCache is retained across the bootstrap reset so that an
// unreadable registry on the next pass still loads slot A.
func manufacturingCache() bootcache.Cache {
	return bootcache.Cache{
		LastReason:     bootcache.ReasonManufacturing,
		LastLoadedSlot: image.SlotUnknown,
		ResetKey:       bootcache.Magic,
	}
}

func (b *Bootloader) manufacturingReset() {
	b.resetErr = b.hw.Store.Save(manufacturingCache())
	if b.resetErr != nil {
		b.logger.Error("Retaining boot cache before reset failed", "error", b.resetErr)
	}
	b.hw.Resetter.SystemReset()
}

func (b *Bootloader) appendRecord(d decision.Decision, cold bool) {
	if _, ok := b.layout.Sections.Lookup(section.TypeLog); !ok {
		return
	}
	rec := Record{
		StartCount: d.Cache.StartCount,
		Branch:     d.Key.Branch,
		Reason:     d.Cache.LastReason,
		Slot:       d.Cache.LastLoadedSlot,
		Switched:   d.Switched,
		Jump:       d.Jump,
		Cold:       cold,
	}
	err := b.sections.Append(section.TypeLog, rec.Bytes())
	if section.IsCorrupt(err) {
		b.logger.Info("Boot log invalid, re-defaulting", "error", err)
		if err = b.sections.Default(section.TypeLog); err == nil {
			err = b.sections.Append(section.TypeLog, rec.Bytes())
		}
	}
	if err != nil {
		b.logger.Error("Appending boot record failed", "error", err)
		return
	}
	b.logger.Debug("Boot record appended", "record", rec)
}
