// Package programmer copies a validated image from an external-flash slot
// into the internal application region.
//
// # Overview
//
// One programming attempt:
//   - Unlocks internal flash control
//   - Erases the application region, one call per physical bank
//   - Streams the payload through a page-sized buffer in 8-byte words
//   - Writes zero words up to the end of the region
//   - Locks internal flash control again
//
// A failed step aborts the attempt and the whole sequence restarts, up to
// three attempts by default. Flash control is locked on every exit path.
//
// # Basic Usage
//
//	validator := image.NewValidator(ext, layout)
//	if err := validator.Validate(image.SlotA); err != nil {
//	    return err
//	}
//	prog := programmer.New(ctrl, ext, validator, layout, region)
//	if err := prog.Program(image.SlotA); err != nil {
//	    return err
//	}
//
// # Progress Tracking
//
//	prog := programmer.New(ctrl, ext, validator, layout, region,
//	    programmer.WithProgressCallback(func(p programmer.Progress) {
//	        fmt.Printf("[%s] attempt %d: %.1f%%\n", p.Phase, p.Attempt, p.Percentage)
//	    }),
//	)
//
// # Error Handling
//
//	err := prog.Program(image.SlotB)
//	var re *programmer.RetriesExhaustedError
//	if errors.As(err, &re) {
//	    log.Printf("gave up after %d attempts: %v", re.Attempts, re.Err)
//	}
package programmer
