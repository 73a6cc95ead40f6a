// Package registry persists which image slot is primary, which slot is
// loaded in internal flash, and the operational state and version of each
// slot. The record lives in the image registry section of the external flash
// and is guarded by its own checksum.
package registry
