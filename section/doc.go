// Package section manages the record sections of the external flash.
//
// The external flash is described by a static Map. Record sections begin
// with a Header and hold fixed-size entries, each followed by its 8-bit
// two's-complement checksum. Single-record sections keep one entry that is
// overwritten in place. Array sections append entries and wrap, with the
// header tracking head, tail and the next write address.
//
// Basic usage:
//
//	mgr := section.NewManager(dev, section.DefaultMap())
//	if err := mgr.Default(section.TypeLog); err != nil {
//	    return err
//	}
//	err := mgr.Append(section.TypeLog, record)
package section
