// Package bootloader runs the fail-safe A/B boot sequence.
//
// # Overview
//
// One boot pass:
//   - Loads the boot cache and tells a warm reset from a power-on
//   - Installs the factory image on the very first power-on, then resets
//   - Reads the image registry from external flash
//   - Lets the decision engine pick a slot, validating and programming it
//     into internal flash when a switch is needed
//   - Appends a boot record to the external flash log
//   - Retains the updated boot cache for the next pass
//
// The verdict tells the caller whether it is safe to jump to the
// application.
//
// # Basic Usage
//
// The caller provides the flash primitives:
//
//	hw := bootloader.Hardware{
//	    Internal: myInternalFlash,   // flash.Controller
//	    External: mySPINor,          // flash.Device
//	    Store:    myRetainedRAM,     // bootcache.Store
//	    Resetter: mySystemReset,     // manufacturing.Resetter
//	}
//	bl := bootloader.New(hw, bootloader.Layout{
//	    Sections: section.DefaultMap(),
//	    Region:   flash.Region{Start: 0x08020000, Size: 0x60000},
//	    Factory:  image.Area{Base: 0x08020000, Size: 0x60000},
//	})
//	v, err := bl.Run()
//
// # Configuration Options
//
//	bl := bootloader.New(hw, layout,
//	    bootloader.WithLogger(logging.Glog{}),
//	    bootloader.WithMaxAttempts(3),
//	    bootloader.WithStagingSize(512),
//	    bootloader.WithRecorder(collector),
//	)
//
// # Total Failure
//
// When the verdict has Jump false no slot can be trusted. The documented
// policy is to enter low-power standby. Some callers still attempt the jump
// as a last resort; that choice is left to the caller.
//
// # Hardware Independence
//
// This package does NOT implement flash drivers. The flash package provides
// in-memory and file-backed implementations for tests and simulation.
package bootloader
