package metrics

import (
	"errors"
	"strings"
	"testing"

	"github.com/moffa90/go-dualboot/bootcache"
	"github.com/moffa90/go-dualboot/decision"
	"github.com/moffa90/go-dualboot/flash"
	"github.com/moffa90/go-dualboot/image"
	"github.com/moffa90/go-dualboot/programmer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDecision(t *testing.T) {
	c := New(prometheus.NewRegistry())

	healthy := decision.Decision{
		Key:   decision.Key{Branch: decision.BranchNominal},
		Cache: bootcache.Cache{LastReason: bootcache.ReasonNominal},
		Jump:  true,
	}
	c.RecordDecision(healthy)
	c.RecordDecision(healthy)
	c.RecordDecision(decision.Decision{
		Key:   decision.Key{Branch: decision.BranchPanic},
		Cache: bootcache.Cache{LastReason: bootcache.ReasonPanic},
	})

	tests := []struct {
		branch, reason, jump string
		want                 float64
	}{
		{"nominal", "nominal", "true", 2},
		{"panic", "panic", "false", 1},
		{"panic", "panic", "true", 0},
	}
	for _, tt := range tests {
		got := testutil.ToFloat64(c.decisions.WithLabelValues(tt.branch, tt.reason, tt.jump))
		if got != tt.want {
			t.Errorf("decisions{%s,%s,%s} = %v, want %v", tt.branch, tt.reason, tt.jump, got, tt.want)
		}
	}
}

func TestRecordSwitch(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.RecordSwitch(image.SlotA, errors.New("crc mismatch"))
	c.RecordSwitch(image.SlotB, nil)

	want := `
# HELP dualboot_reprograms_total Slot switches attempted by the decision engine.
# TYPE dualboot_reprograms_total counter
dualboot_reprograms_total{result="failed",slot="A"} 1
dualboot_reprograms_total{result="ok",slot="B"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), ReprogramsTotal); err != nil {
		t.Error(err)
	}
}

func TestProgramAttempts(t *testing.T) {
	geometry := flash.Geometry{Base: 0x08000000, PageSize: 0x100, PagesPerBank: 8, Banks: 2}
	region := flash.Region{Start: 0x08000400, Size: 0x400}
	layout := image.Layout{
		A: image.Area{Base: 0x0, Size: 0x1000},
		B: image.Area{Base: 0x1000, Size: 0x1000},
	}

	ext := flash.NewMemory(0x2000)
	if err := ext.Write(layout.A.Base, image.Build(image.TypeAM, image.Version{Major: 1}, make([]byte, 100))); err != nil {
		t.Fatal(err)
	}
	v := image.NewValidator(ext, layout)
	if err := v.Validate(image.SlotA); err != nil {
		t.Fatal(err)
	}

	ctrl := flash.NewMemController(geometry)
	ctrl.FailNext(flash.OpProgram, 1)

	c := New(prometheus.NewRegistry())
	var phases []string
	p := programmer.New(ctrl, ext, v, layout, region,
		programmer.WithProgressCallback(c.Chain(func(p programmer.Progress) {
			phases = append(phases, p.Phase)
		})),
	)
	if err := p.Program(image.SlotA); err != nil {
		t.Fatalf("Program() = %v", err)
	}

	if got := testutil.ToFloat64(c.attempts); got != 2 {
		t.Errorf("attempts = %v, want 2", got)
	}
	if len(phases) == 0 || phases[len(phases)-1] != programmer.PhaseComplete {
		t.Errorf("chained callback saw phases %v, want them to end with %q", phases, programmer.PhaseComplete)
	}
}

func TestChainNil(t *testing.T) {
	c := New(prometheus.NewRegistry())
	cb := c.Chain(nil)
	cb(programmer.Progress{Phase: programmer.PhaseErasing})
	cb(programmer.Progress{Phase: programmer.PhaseProgramming})
	if got := testutil.ToFloat64(c.attempts); got != 1 {
		t.Errorf("attempts = %v, want 1", got)
	}
}
