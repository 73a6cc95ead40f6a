package flash

import (
	"bytes"
	"fmt"
	"os"
)

// FileDevice is a Device that keeps its contents in a file, so a simulated
// part survives between runs.
type FileDevice struct {
	f    *os.File
	size int64
}

var _ Device = (*FileDevice)(nil)

// OpenFileDevice opens (or creates) the file at path as a device of size bytes.
// A new file, or the missing tail of a short one, is filled with erased bytes.
func OpenFileDevice(path string, size int64) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open flash file %q: %w", path, err)
	}

	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat flash file %q: %w", path, err)
	}

	if cur := stat.Size(); cur < size {
		fill := bytes.Repeat([]byte{ErasedByte}, int(size-cur))
		if _, err := f.WriteAt(fill, cur); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("erase flash file %q: %w", path, err)
		}
	}

	return &FileDevice{f: f, size: size}, nil
}

// Read implements Device.
func (d *FileDevice) Read(addr uint32, buf []byte) error {
	if int64(addr)+int64(len(buf)) > d.size {
		return &IOError{Op: OpRead, Addr: addr, Len: len(buf), Err: fmt.Errorf("access beyond device size 0x%X", d.size)}
	}
	if _, err := d.f.ReadAt(buf, int64(addr)); err != nil {
		return &IOError{Op: OpRead, Addr: addr, Len: len(buf), Err: err}
	}
	return nil
}

// Write implements Device.
func (d *FileDevice) Write(addr uint32, buf []byte) error {
	if int64(addr)+int64(len(buf)) > d.size {
		return &IOError{Op: OpWrite, Addr: addr, Len: len(buf), Err: fmt.Errorf("access beyond device size 0x%X", d.size)}
	}
	if _, err := d.f.WriteAt(buf, int64(addr)); err != nil {
		return &IOError{Op: OpWrite, Addr: addr, Len: len(buf), Err: err}
	}
	return nil
}

// Close flushes and closes the backing file.
func (d *FileDevice) Close() error {
	if err := d.f.Sync(); err != nil {
		_ = d.f.Close()
		return err
	}
	return d.f.Close()
}
