package programmer

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/moffa90/go-dualboot/flash"
	"github.com/moffa90/go-dualboot/image"
	"github.com/moffa90/go-dualboot/logging"
)

// Certifier reports the metadata of slots whose image passed validation.
// *image.Validator implements it.
type Certifier interface {
	Certified(s image.Slot) (image.Metadata, bool)
}

// Programmer copies a certified image from an external slot into the internal
// application region.
//
// Programmer is not safe for concurrent use.
type Programmer struct {
	ctrl   flash.Controller
	ext    flash.Device
	certs  Certifier
	layout image.Layout
	region flash.Region
	config Config
	logger logging.Logger
}

// New creates a Programmer that writes region of the internal flash behind
// ctrl with images read from ext.
//
// Example:
//
//	validator := image.NewValidator(ext, layout)
//	prog := programmer.New(ctrl, ext, validator, layout, region,
//	    programmer.WithMaxAttempts(3),
//	)
func New(ctrl flash.Controller, ext flash.Device, certs Certifier, layout image.Layout, region flash.Region, opts ...Option) *Programmer {
	if ctrl == nil {
		panic("flash controller cannot be nil")
	}
	if ext == nil {
		panic("external device cannot be nil")
	}
	if certs == nil {
		panic("certifier cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Programmer{
		ctrl:   ctrl,
		ext:    ext,
		certs:  certs,
		layout: layout,
		region: region,
		config: cfg,
		logger: logging.OrNop(cfg.Logger),
	}
}

// Region returns the internal application region.
func (p *Programmer) Region() flash.Region {
	return p.region
}

// Program performs the complete sequence for slot s:
//  1. Unlock internal flash control
//  2. Erase the application region, bank by bank
//  3. Copy the payload through a page-sized buffer, one word at a time
//  4. Program zero words up to the end of the region
//  5. Lock internal flash control
//
// Any failure aborts the attempt and the whole sequence starts again, up to
// the configured number of attempts. Flash control is locked again on every
// exit path.
func (p *Programmer) Program(s image.Slot) error {
	meta, ok := p.certs.Certified(s)
	if !ok {
		return fmt.Errorf("program slot %s: %w", s, ErrNotCertified)
	}
	area, err := p.layout.Area(s)
	if err != nil {
		return err
	}
	if err := p.checkRegion(); err != nil {
		return err
	}
	if meta.Length > p.region.Size {
		return &image.LengthError{Slot: s, Length: meta.Length, Capacity: p.region.Size}
	}

	attempts := 0
	op := func() error {
		attempts++
		return p.attempt(s, area, meta, attempts)
	}
	policy := backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(p.config.MaxAttempts-1))
	notify := func(err error, _ time.Duration) {
		p.logger.Error("Programming attempt failed", "slot", s, "attempt", attempts, "error", err)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		p.logger.Error("Programming failed", "slot", s, "attempts", attempts, "error", err)
		return &RetriesExhaustedError{Slot: s, Attempts: attempts, Err: err}
	}

	p.logger.Info("Programming complete",
		"slot", s,
		"bytes", meta.Length,
		"attempts", attempts,
	)
	return nil
}

// checkRegion verifies that the region lies inside internal flash and covers
// whole pages.
func (p *Programmer) checkRegion() error {
	g := p.ctrl.Geometry()
	r := p.region
	switch {
	case r.Size == 0:
		return &RegionError{Start: r.Start, Size: r.Size, Reason: "empty"}
	case !g.Contains(r.Start, r.Size):
		return &RegionError{Start: r.Start, Size: r.Size, Reason: "outside internal flash"}
	case (r.Start-g.Base)%g.PageSize != 0:
		return &RegionError{Start: r.Start, Size: r.Size, Reason: "not page aligned"}
	case r.Size%g.PageSize != 0:
		return &RegionError{Start: r.Start, Size: r.Size, Reason: "size not page aligned"}
	case r.Size%flash.ProgramWidth != 0:
		return &RegionError{Start: r.Start, Size: r.Size, Reason: "size not a multiple of the program width"}
	}
	return nil
}

// attempt runs one complete erase-program sequence.
func (p *Programmer) attempt(s image.Slot, area image.Area, meta image.Metadata, n int) (err error) {
	start := time.Now()
	total := int(p.region.Size)
	report := func(phase string, written int) {
		p.reportProgress(Progress{
			Phase:        phase,
			Slot:         s.String(),
			Attempt:      n,
			BytesWritten: written,
			TotalBytes:   total,
			Percentage:   float64(written) / float64(total) * 100,
			ElapsedTime:  time.Since(start),
		})
	}

	defer func() {
		if lerr := p.ctrl.Lock(); lerr != nil && err == nil {
			err = fmt.Errorf("lock: %w", lerr)
		}
	}()
	if err := p.ctrl.Unlock(); err != nil {
		return fmt.Errorf("unlock: %w", err)
	}

	report(PhaseErasing, 0)
	for _, span := range p.ctrl.Geometry().Spans(p.region) {
		p.logDebug("erasing", "bank", span.Bank, "first_page", span.FirstPage, "pages", span.NumPages)
		if err := p.ctrl.Erase(span.Bank, span.FirstPage, span.NumPages); err != nil {
			return fmt.Errorf("erase bank %d: %w", span.Bank, err)
		}
	}

	buf := make([]byte, p.bufferSize())
	src := area.PayloadAddr()
	dst := p.region.Start
	for remaining := meta.Length; remaining > 0; {
		chunk := uint32(len(buf))
		if remaining < chunk {
			chunk = remaining
		}
		if err := p.ext.Read(src, buf[:chunk]); err != nil {
			return fmt.Errorf("read slot %s at 0x%08X: %w", s, src, err)
		}
		words := roundUp(chunk)
		for i := chunk; i < words; i++ {
			buf[i] = 0
		}
		for off := uint32(0); off < words; off += flash.ProgramWidth {
			word := binary.LittleEndian.Uint64(buf[off : off+flash.ProgramWidth])
			if err := p.ctrl.Program(dst, word); err != nil {
				return fmt.Errorf("program: %w", err)
			}
			dst += flash.ProgramWidth
		}
		src += chunk
		remaining -= chunk
		report(PhaseProgramming, int(dst-p.region.Start))
	}

	report(PhasePadding, int(dst-p.region.Start))
	for ; dst < p.region.End(); dst += flash.ProgramWidth {
		if err := p.ctrl.Program(dst, 0); err != nil {
			return fmt.Errorf("pad: %w", err)
		}
	}

	report(PhaseComplete, total)
	return nil
}

// bufferSize returns the staging buffer size in bytes.
func (p *Programmer) bufferSize() int {
	if p.config.PageBuffer > 0 {
		return p.config.PageBuffer
	}
	return int(p.ctrl.Geometry().PageSize)
}

func roundUp(n uint32) uint32 {
	return (n + flash.ProgramWidth - 1) &^ (flash.ProgramWidth - 1)
}

// reportProgress calls the progress callback if configured.
func (p *Programmer) reportProgress(progress Progress) {
	if p.config.ProgressCallback != nil {
		p.config.ProgressCallback(progress)
	}
}

// logDebug logs a debug message if a logger is configured.
func (p *Programmer) logDebug(msg string, keysAndValues ...interface{}) {
	p.logger.Debug(msg, keysAndValues...)
}
