package decision

import (
	"fmt"

	"github.com/moffa90/go-dualboot/bootcache"
	"github.com/moffa90/go-dualboot/image"
	"github.com/moffa90/go-dualboot/logging"
)

// Validator certifies a slot. *image.Validator implements it.
type Validator interface {
	Validate(s image.Slot) error
}

// Programmer loads a certified slot into internal flash.
// *programmer.Programmer implements it.
type Programmer interface {
	Program(s image.Slot) error
}

// Registry is the image registry as seen by the engine.
// *registry.Registry implements it.
type Registry interface {
	RegistryView
	SetLoadedSlot(s image.Slot) error
}

// Recorder observes decisions, for example to export metrics.
type Recorder interface {
	// RecordDecision is called once per Decide.
	RecordDecision(d Decision)

	// RecordSwitch is called for every switch target tried; err is nil on success.
	RecordSwitch(s image.Slot, err error)
}

// Decision is the verdict of one boot pass.
type Decision struct {
	// Key is the transition table row that was applied
	Key Key

	// Cache is the boot cache to retain, before the start count increment
	Cache bootcache.Cache

	// Jump reports whether it is safe to jump to the application
	Jump bool

	// Switched is the slot that was programmed, or SlotUnknown
	Switched image.Slot

	// Outcome is the applied outcome when no switch happened
	Outcome Outcome
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used by the engine.
func WithLogger(logger logging.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRecorder sets a decision observer.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// Engine chooses which slot to run on each boot pass.
type Engine struct {
	registry   Registry
	validator  Validator
	programmer Programmer
	logger     logging.Logger
	recorder   Recorder
}

// New creates a decision engine.
func New(reg Registry, v Validator, p Programmer, opts ...Option) *Engine {
	if reg == nil || v == nil || p == nil {
		panic("registry, validator and programmer are required")
	}
	e := &Engine{registry: reg, validator: v, programmer: p}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.OrNop(e.logger)
	return e
}

// Decide applies the transition table to the classified cache c and returns
// the verdict with the updated cache. The registry is only written when a
// slot switch succeeds.
func (e *Engine) Decide(c bootcache.Cache) Decision {
	if !c.LastLoadedSlot.Valid() {
		c.LastLoadedSlot = image.SlotUnknown
	}

	key := KeyFor(c, e.registry)
	plan, ok := Lookup(key)
	if !ok {
		e.logger.Error("No transition for boot state", "key", key)
		plan = Plan{Else: unhandled}
	}
	e.logger.Debug("Boot state classified",
		"key", key,
		"start_count", c.StartCount,
		"last_reason", c.LastReason,
		"last_loaded", c.LastLoadedSlot,
	)

	d := Decision{Key: key, Switched: image.SlotUnknown}
	if slot, ok := e.trySwitch(plan.Switch); ok {
		d.Switched = slot
		d.Jump = true
		d.Cache = bootcache.Cache{
			StartCount:     0,
			LastReason:     plan.SwitchReason,
			LastLoadedSlot: slot,
			ResetKey:       c.ResetKey,
		}
	} else {
		d.Outcome = plan.Else
		d.Cache = c
		switch plan.Else.Kind {
		case OutcomeRestart:
			d.Jump = true
			d.Cache.LastReason = plan.Else.Reason
		case OutcomeFail:
			d.Jump = false
			d.Cache.LastReason = plan.Else.Reason
		case OutcomeUnhandled:
			d.Jump = true
		}
	}

	e.logger.Info("Boot decision",
		"key", key,
		"slot", d.Cache.LastLoadedSlot,
		"reason", d.Cache.LastReason,
		"switched", d.Switched,
		"jump", d.Jump,
	)
	if e.recorder != nil {
		e.recorder.RecordDecision(d)
	}
	return d
}

// trySwitch validates then programs each target in order and returns the
// first slot that was loaded. Slots the registry marks Failed are skipped.
func (e *Engine) trySwitch(targets []Target) (image.Slot, bool) {
	valid := e.registry.Valid()
	primary := e.registry.PrimarySlot()
	for _, t := range targets {
		slot := t.resolve(primary)
		if !slot.Known() {
			e.logger.Debug("Switch target has no slot", "target", t)
			continue
		}
		if valid && e.registry.SlotState(slot) == image.StateFailed {
			e.logger.Info("Skipping failed slot", "slot", slot)
			continue
		}
		if err := e.load(slot); err != nil {
			e.logger.Error("Slot switch failed", "slot", slot, "error", err)
			e.recordSwitch(slot, err)
			continue
		}
		e.recordSwitch(slot, nil)

		if valid {
			if err := e.registry.SetLoadedSlot(slot); err != nil {
				e.logger.Error("Recording loaded slot failed", "slot", slot, "error", err)
			}
		}
		return slot, true
	}
	return image.SlotUnknown, false
}

func (e *Engine) load(slot image.Slot) error {
	if err := e.validator.Validate(slot); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if err := e.programmer.Program(slot); err != nil {
		return fmt.Errorf("program: %w", err)
	}
	return nil
}

func (e *Engine) recordSwitch(slot image.Slot, err error) {
	if e.recorder != nil {
		e.recorder.RecordSwitch(slot, err)
	}
}
