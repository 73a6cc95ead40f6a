package programmer

import "github.com/moffa90/go-dualboot/logging"

// DefaultMaxAttempts is the number of complete erase-program sequences tried
// before giving up.
const DefaultMaxAttempts = 3

// Config holds the programmer configuration.
type Config struct {
	// ProgressCallback is called during programming to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger logging.Logger

	// MaxAttempts is the number of complete sequences tried before failing
	MaxAttempts int

	// PageBuffer is the staging buffer size. Zero means one internal flash page.
	PageBuffer int
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Option is a functional option for configuring the Programmer.
type Option func(*Config)

// WithProgressCallback sets a callback function to track programming progress.
//
// Example:
//
//	prog := programmer.New(ctrl, ext, validator, layout, region,
//	    programmer.WithProgressCallback(func(p programmer.Progress) {
//	        fmt.Printf("%.1f%% complete\n", p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for the programmer operations.
func WithLogger(logger logging.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithMaxAttempts sets how many complete sequences are tried.
// Values below 1 are ignored.
func WithMaxAttempts(attempts int) Option {
	return func(c *Config) {
		if attempts >= 1 {
			c.MaxAttempts = attempts
		}
	}
}

// WithPageBuffer overrides the staging buffer size. The size is rounded down
// to a multiple of the program width; values smaller than one word are ignored.
func WithPageBuffer(size int) Option {
	return func(c *Config) {
		if size >= 8 {
			c.PageBuffer = size &^ 7
		}
	}
}
