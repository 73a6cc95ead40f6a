package programmer

import "time"

// Programming phases reported through Progress.Phase.
const (
	PhaseErasing     = "erasing"
	PhaseProgramming = "programming"
	PhasePadding     = "padding"
	PhaseComplete    = "complete"
)

// Progress contains information about the programming progress.
// Passed to ProgressCallback during programming operations.
type Progress struct {
	// Phase describes the current operation phase:
	//   "erasing"     - Erasing the internal application region
	//   "programming" - Copying the image payload
	//   "padding"     - Zero-filling the rest of the region
	//   "complete"    - Operation completed successfully
	Phase string

	// Slot is the external slot being copied
	Slot string

	// Attempt is the 1-based attempt number
	Attempt int

	// BytesWritten is the number of region bytes written in this attempt
	BytesWritten int

	// TotalBytes is the size of the internal application region
	TotalBytes int

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	// ElapsedTime is the time elapsed since the attempt started
	ElapsedTime time.Duration
}

// ProgressCallback is called periodically during programming to report progress.
// Implementations should return quickly to avoid blocking the programming operation.
//
// Example:
//
//	prog := programmer.New(ctrl, ext, validator, layout, region,
//	    programmer.WithProgressCallback(func(p programmer.Progress) {
//	        fmt.Printf("[%s] attempt %d %.1f%%\n", p.Phase, p.Attempt, p.Percentage)
//	    }),
//	)
type ProgressCallback func(Progress)
