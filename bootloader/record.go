package bootloader

import (
	"encoding/binary"
	"fmt"

	"github.com/moffa90/go-dualboot/bootcache"
	"github.com/moffa90/go-dualboot/decision"
	"github.com/moffa90/go-dualboot/image"
	"github.com/moffa90/go-dualboot/section"
)

// recordSize is the payload size of a boot log entry.
//
//	[START_COUNT(4)][BRANCH(1)][REASON(1)][SLOT(1)][SWITCHED(1)][FLAGS(1)][RESERVED(6)]
const recordSize = section.LogEntryLen - 1

// Boot record flags.
const (
	flagJump = 1 << iota
	flagCold
)

// Record is one entry of the boot log.
type Record struct {
	StartCount uint32
	Branch     decision.Branch
	Reason     bootcache.Reason
	Slot       image.Slot
	Switched   image.Slot
	Jump       bool
	Cold       bool
}

func (r Record) String() string {
	return fmt.Sprintf("start=%d branch=%s reason=%s slot=%s switched=%s jump=%v cold=%v",
		r.StartCount, r.Branch, r.Reason, r.Slot, r.Switched, r.Jump, r.Cold)
}

// Bytes encodes r.
func (r Record) Bytes() []byte {
	buf := make([]byte, recordSize)
	binary.LittleEndian.PutUint32(buf[0:4], r.StartCount)
	buf[4] = byte(r.Branch)
	buf[5] = byte(r.Reason)
	buf[6] = byte(r.Slot)
	buf[7] = byte(r.Switched)
	if r.Jump {
		buf[8] |= flagJump
	}
	if r.Cold {
		buf[8] |= flagCold
	}
	return buf
}

// ParseRecord decodes a boot log entry.
func ParseRecord(buf []byte) (Record, error) {
	if len(buf) != recordSize {
		return Record{}, fmt.Errorf("boot record is %d bytes, want %d", len(buf), recordSize)
	}
	return Record{
		StartCount: binary.LittleEndian.Uint32(buf[0:4]),
		Branch:     decision.Branch(buf[4]),
		Reason:     bootcache.Reason(buf[5]),
		Slot:       image.Slot(buf[6]),
		Switched:   image.Slot(buf[7]),
		Jump:       buf[8]&flagJump != 0,
		Cold:       buf[8]&flagCold != 0,
	}, nil
}

// ReadLog returns the pending boot records, oldest first.
func ReadLog(sections *section.Manager) ([]Record, error) {
	n, err := sections.Pending(section.TypeLog)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		buf, err := sections.Entry(section.TypeLog, i)
		if err != nil {
			return nil, err
		}
		r, err := ParseRecord(buf)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}
