package bootloader

import (
	"github.com/moffa90/go-dualboot/decision"
	"github.com/moffa90/go-dualboot/image"
	"github.com/moffa90/go-dualboot/logging"
	"github.com/moffa90/go-dualboot/programmer"
)

// Config holds the bootloader configuration.
type Config struct {
	// ProgressCallback is called while a slot is programmed (optional)
	ProgressCallback programmer.ProgressCallback

	// Logger is used for logging operations (optional)
	Logger logging.Logger

	// Recorder observes every decision (optional)
	Recorder decision.Recorder

	// MaxAttempts is the number of complete programming sequences per slot
	MaxAttempts int

	// StagingSize is the validator read buffer size
	StagingSize int
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		MaxAttempts: programmer.DefaultMaxAttempts,
		StagingSize: image.DefaultStagingSize,
	}
}

// Option is a functional option for configuring the Bootloader.
type Option func(*Config)

// WithProgressCallback sets a callback function to track programming progress.
//
// Example:
//
//	bl := bootloader.New(hw, layout,
//	    bootloader.WithProgressCallback(func(p programmer.Progress) {
//	        fmt.Printf("[%s] %.1f%%\n", p.Phase, p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback programmer.ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for every bootloader component.
//
// Example:
//
//	bl := bootloader.New(hw, layout, bootloader.WithLogger(logging.Glog{}))
func WithLogger(logger logging.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithRecorder sets a decision observer, such as a metrics collector.
func WithRecorder(r decision.Recorder) Option {
	return func(c *Config) {
		c.Recorder = r
	}
}

// WithMaxAttempts sets the number of programming attempts per slot.
//
// Example:
//
//	bl := bootloader.New(hw, layout, bootloader.WithMaxAttempts(5))
func WithMaxAttempts(attempts int) Option {
	return func(c *Config) {
		if attempts >= 1 {
			c.MaxAttempts = attempts
		}
	}
}

// WithStagingSize sets the validator read buffer size.
func WithStagingSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.StagingSize = size
		}
	}
}
