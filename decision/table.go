package decision

import (
	"fmt"
	"sort"

	"github.com/moffa90/go-dualboot/bootcache"
	"github.com/moffa90/go-dualboot/image"
)

// StartLimit is the largest start count for which a slot is restarted in
// place without trying another one.
const StartLimit = 10

// Branch is the top-level dispatch of a boot pass.
type Branch uint8

// Branches.
const (
	BranchPanic Branch = iota
	BranchManufacturing
	BranchNominal
)

func (b Branch) String() string {
	switch b {
	case BranchPanic:
		return "panic"
	case BranchManufacturing:
		return "manufacturing"
	case BranchNominal:
		return "nominal"
	default:
		return fmt.Sprintf("branch(%d)", uint8(b))
	}
}

// Relation is how the cached loaded slot relates to the registry's primary.
type Relation uint8

// Relations. RelationNone is used outside the nominal branch.
const (
	RelationNone Relation = iota
	RelationPrimary
	RelationAlternate
	RelationUnrelated
)

func (r Relation) String() string {
	switch r {
	case RelationNone:
		return "-"
	case RelationPrimary:
		return "primary"
	case RelationAlternate:
		return "alternate"
	case RelationUnrelated:
		return "unrelated"
	default:
		return fmt.Sprintf("relation(%d)", uint8(r))
	}
}

// Bucket classifies the start count against StartLimit.
type Bucket uint8

// Buckets. BucketNone is used where the start count does not matter.
const (
	BucketNone Bucket = iota
	BucketWithinLimit
	BucketExhausted
)

func (b Bucket) String() string {
	switch b {
	case BucketNone:
		return "-"
	case BucketWithinLimit:
		return "within-limit"
	case BucketExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("bucket(%d)", uint8(b))
	}
}

func bucketOf(startCount uint32) Bucket {
	if startCount <= StartLimit {
		return BucketWithinLimit
	}
	return BucketExhausted
}

// Key selects one row of the transition table. Fields that do not matter for
// a row hold their zero value, so every input maps to exactly one key.
type Key struct {
	Branch Branch

	// Loaded is the cached loaded slot (panic branch)
	Loaded image.Slot

	// Relation of the cached loaded slot to the primary (nominal branch)
	Relation Relation

	// PrimaryState is the primary's operational state (primary path)
	PrimaryState image.State

	// AlternateFailed reports whether the alternate is Failed (alternate path)
	AlternateFailed bool

	// Bucket is the start count bucket, where it matters
	Bucket Bucket
}

func (k Key) String() string {
	switch k.Branch {
	case BranchPanic:
		return fmt.Sprintf("panic/loaded=%s/%s", k.Loaded, k.Bucket)
	case BranchNominal:
		switch k.Relation {
		case RelationPrimary:
			return fmt.Sprintf("nominal/primary/%s/%s", k.PrimaryState, k.Bucket)
		case RelationAlternate:
			return fmt.Sprintf("nominal/alternate/alternate-failed=%v", k.AlternateFailed)
		}
		return fmt.Sprintf("nominal/%s", k.Relation)
	}
	return k.Branch.String()
}

// Target names a slot either directly or by its role in the registry.
type Target uint8

// Targets.
const (
	TargetA Target = iota
	TargetB
	TargetPrimary
	TargetAlternate
)

func (t Target) String() string {
	switch t {
	case TargetA:
		return "A"
	case TargetB:
		return "B"
	case TargetPrimary:
		return "primary"
	case TargetAlternate:
		return "alternate"
	default:
		return fmt.Sprintf("target(%d)", uint8(t))
	}
}

// resolve returns the slot t names given the registry's primary slot.
func (t Target) resolve(primary image.Slot) image.Slot {
	switch t {
	case TargetA:
		return image.SlotA
	case TargetB:
		return image.SlotB
	case TargetPrimary:
		return primary
	case TargetAlternate:
		return primary.Sibling()
	}
	return image.SlotUnknown
}

// OutcomeKind is what a boot pass does when no slot switch happens.
type OutcomeKind uint8

// Outcome kinds.
const (
	// OutcomeRestart keeps the loaded slot, records the reason and jumps
	OutcomeRestart OutcomeKind = iota

	// OutcomeFail keeps the loaded slot, records the reason and does not jump
	OutcomeFail

	// OutcomeUnhandled leaves the cache untouched and jumps
	OutcomeUnhandled
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRestart:
		return "restart"
	case OutcomeFail:
		return "fail"
	case OutcomeUnhandled:
		return "unhandled"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(k))
	}
}

// Outcome is the result of a row without, or after a failed, slot switch.
type Outcome struct {
	Kind   OutcomeKind
	Reason bootcache.Reason
}

// Plan is one row of the transition table. Each Switch target is tried in
// order: a target is validated and, if valid, programmed. The first target
// that succeeds is loaded with reason SwitchReason and a zero start count.
// When Switch is empty, or no target succeeds, Else applies.
type Plan struct {
	Switch       []Target
	SwitchReason bootcache.Reason
	Else         Outcome
}

func restart(r bootcache.Reason) Outcome { return Outcome{Kind: OutcomeRestart, Reason: r} }
func fail(r bootcache.Reason) Outcome    { return Outcome{Kind: OutcomeFail, Reason: r} }

var unhandled = Outcome{Kind: OutcomeUnhandled}

// table is the complete transition table.
var table = map[Key]Plan{
	// Manufacturing: load slot A or give up.
	{Branch: BranchManufacturing}: {
		Switch: []Target{TargetA}, SwitchReason: bootcache.ReasonManufacturing,
		Else: fail(bootcache.ReasonManufacturing),
	},

	// Panic, nothing known about internal flash: first valid of A then B.
	{Branch: BranchPanic, Loaded: image.SlotUnknown}: {
		Switch: []Target{TargetA, TargetB}, SwitchReason: bootcache.ReasonPanic,
		Else: restart(bootcache.ReasonPanic),
	},
	{Branch: BranchPanic, Loaded: image.SlotA, Bucket: BucketWithinLimit}: {
		Else: restart(bootcache.ReasonPanic),
	},
	// No recourse is defined when B cannot take over from an exhausted A.
	{Branch: BranchPanic, Loaded: image.SlotA, Bucket: BucketExhausted}: {
		Switch: []Target{TargetB}, SwitchReason: bootcache.ReasonPanic,
		Else: unhandled,
	},
	{Branch: BranchPanic, Loaded: image.SlotB, Bucket: BucketWithinLimit}: {
		Else: restart(bootcache.ReasonPanic),
	},
	{Branch: BranchPanic, Loaded: image.SlotB, Bucket: BucketExhausted}: {
		Else: fail(bootcache.ReasonPanic),
	},

	// Nominal, primary loaded.
	{Branch: BranchNominal, Relation: RelationPrimary, PrimaryState: image.StateUnknown, Bucket: BucketWithinLimit}: {
		Else: restart(bootcache.ReasonUpgrade),
	},
	{Branch: BranchNominal, Relation: RelationPrimary, PrimaryState: image.StateUnknown, Bucket: BucketExhausted}: {
		Switch: []Target{TargetAlternate}, SwitchReason: bootcache.ReasonFallback,
		Else: fail(bootcache.ReasonPanic),
	},
	{Branch: BranchNominal, Relation: RelationPrimary, PrimaryState: image.StateFailed}: {
		Switch: []Target{TargetAlternate}, SwitchReason: bootcache.ReasonFallback,
		Else: fail(bootcache.ReasonPanic),
	},
	{Branch: BranchNominal, Relation: RelationPrimary, PrimaryState: image.StatePartial}: {
		Else: restart(bootcache.ReasonUpgrade),
	},
	{Branch: BranchNominal, Relation: RelationPrimary, PrimaryState: image.StateFull}: {
		Else: restart(bootcache.ReasonNominal),
	},

	// Nominal, alternate loaded: move back to the primary when possible.
	{Branch: BranchNominal, Relation: RelationAlternate, AlternateFailed: false}: {
		Switch: []Target{TargetPrimary}, SwitchReason: bootcache.ReasonUpgrade,
		Else: restart(bootcache.ReasonOffNominal),
	},
	{Branch: BranchNominal, Relation: RelationAlternate, AlternateFailed: true}: {
		Switch: []Target{TargetPrimary}, SwitchReason: bootcache.ReasonUpgrade,
		Else: fail(bootcache.ReasonPanic),
	},

	// Nominal with a loaded slot that is neither primary nor alternate.
	{Branch: BranchNominal, Relation: RelationUnrelated}: {
		Else: unhandled,
	},
}

// Lookup returns the plan for k. A key outside the table has no plan.
func Lookup(k Key) (Plan, bool) {
	p, ok := table[k]
	return p, ok
}

// Keys returns every key of the transition table in a stable order.
func Keys() []Key {
	keys := make([]Key, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// RegistryView is the read side of the image registry used for dispatch.
type RegistryView interface {
	Valid() bool
	PrimarySlot() image.Slot
	SlotState(s image.Slot) image.State
}

// KeyFor computes the table key for cache c and registry reg.
func KeyFor(c bootcache.Cache, reg RegistryView) Key {
	valid := reg.Valid()
	switch {
	case valid && c.LastLoadedSlot.Known():
		return nominalKey(c, reg)
	case !valid && c.LastReason == bootcache.ReasonManufacturing:
		return Key{Branch: BranchManufacturing}
	}

	k := Key{Branch: BranchPanic, Loaded: c.LastLoadedSlot}
	if !k.Loaded.Known() {
		k.Loaded = image.SlotUnknown
		return k
	}
	k.Bucket = bucketOf(c.StartCount)
	return k
}

func nominalKey(c bootcache.Cache, reg RegistryView) Key {
	k := Key{Branch: BranchNominal}
	primary := reg.PrimarySlot()
	alternate := primary.Sibling()

	switch {
	case primary.Known() && c.LastLoadedSlot == primary:
		k.Relation = RelationPrimary
		k.PrimaryState = reg.SlotState(primary)
		if k.PrimaryState == image.StateUnknown {
			k.Bucket = bucketOf(c.StartCount)
		}
	case alternate.Known() && c.LastLoadedSlot == alternate:
		k.Relation = RelationAlternate
		k.AlternateFailed = reg.SlotState(alternate) == image.StateFailed
	default:
		k.Relation = RelationUnrelated
	}
	return k
}
