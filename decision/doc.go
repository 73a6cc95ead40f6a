// Package decision chooses, on every boot pass, which image slot runs and
// whether it is safe to jump to the application.
//
// The choice is an explicit transition table. KeyFor reduces the boot cache
// and the image registry to a Key; the Plan stored for that key lists the
// slots to switch to, in order, and the outcome when none can be loaded.
// Keys enumerates the whole table.
//
// Dispatch:
//
//	registry valid, cached loaded slot A or B              nominal
//	registry invalid, last reason manufacturing            manufacturing
//	anything else                                          panic
//
// A switch always validates a slot before programming it, and a slot the
// registry marks Failed is never switched to.
package decision
