// Package bootcache holds the reset-scoped boot state that tells a warm
// software reset from a cold power-on and carries the previous decision.
package bootcache
