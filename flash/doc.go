// Package flash defines the flash primitives the bootloader is built on and
// provides in-memory and file-backed implementations of them.
//
// Two kinds of part are modelled:
//   - Device: the byte-addressable external flash (image slots, registry, logs)
//   - Controller: the internal flash, erased by page and programmed one
//     doubleword at a time while unlocked
//
// The in-memory implementations embed a Faulter so that any call can be made
// to fail:
//
//	ext := flash.NewMemory(1 << 20)
//	ext.FailAfter(flash.OpRead, 2, 1) // third read fails
package flash
