package flash

import "errors"

// ErrReadOnly is returned by writes to a read-only device view.
var ErrReadOnly = errors.New("device is read-only")

// controllerDevice exposes memory-mapped internal flash as a Device.
type controllerDevice struct {
	ctrl Controller
}

// ReadOnly returns a Device that reads the internal flash behind ctrl and
// rejects writes.
func ReadOnly(ctrl Controller) Device {
	return controllerDevice{ctrl: ctrl}
}

func (d controllerDevice) Read(addr uint32, buf []byte) error {
	return d.ctrl.Read(addr, buf)
}

func (d controllerDevice) Write(addr uint32, buf []byte) error {
	return &IOError{Op: OpWrite, Addr: addr, Len: len(buf), Err: ErrReadOnly}
}
