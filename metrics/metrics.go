// Package metrics exports boot decisions and reprogramming activity as
// Prometheus counters.
package metrics

import (
	"strconv"

	"github.com/moffa90/go-dualboot/decision"
	"github.com/moffa90/go-dualboot/image"
	"github.com/moffa90/go-dualboot/programmer"
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	DecisionsTotal       = "dualboot_decisions_total"
	ReprogramsTotal      = "dualboot_reprograms_total"
	ProgramAttemptsTotal = "dualboot_program_attempts_total"
)

// Reprogram results.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Collector counts boot decisions, slot switches and programming attempts.
// It implements decision.Recorder; Progress is a programmer.ProgressCallback.
type Collector struct {
	decisions  *prometheus.CounterVec
	reprograms *prometheus.CounterVec
	attempts   prometheus.Counter
}

var _ decision.Recorder = (*Collector)(nil)

// New creates a collector and registers its counters with reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: DecisionsTotal,
			Help: "Boot decisions by branch, resulting reason and jump verdict.",
		}, []string{"branch", "reason", "jump"}),
		reprograms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: ReprogramsTotal,
			Help: "Slot switches attempted by the decision engine.",
		}, []string{"slot", "result"}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: ProgramAttemptsTotal,
			Help: "Internal flash programming attempts, retries included.",
		}),
	}
	reg.MustRegister(c.decisions, c.reprograms, c.attempts)
	return c
}

// RecordDecision implements decision.Recorder.
func (c *Collector) RecordDecision(d decision.Decision) {
	c.decisions.WithLabelValues(
		d.Key.Branch.String(),
		d.Cache.LastReason.String(),
		strconv.FormatBool(d.Jump),
	).Inc()
}

// RecordSwitch implements decision.Recorder.
func (c *Collector) RecordSwitch(slot image.Slot, err error) {
	result := ResultOK
	if err != nil {
		result = ResultFailed
	}
	c.reprograms.WithLabelValues(slot.String(), result).Inc()
}

// Progress counts one attempt each time an attempt starts erasing.
func (c *Collector) Progress(p programmer.Progress) {
	if p.Phase == programmer.PhaseErasing {
		c.attempts.Inc()
	}
}

// Chain returns a progress callback that feeds the collector and then next.
func (c *Collector) Chain(next programmer.ProgressCallback) programmer.ProgressCallback {
	return func(p programmer.Progress) {
		c.Progress(p)
		if next != nil {
			next(p)
		}
	}
}
