package photometer

import (
	"io"
	"time"
)

// Porter is the minimal interface the mux needs from a serial photometer
// port. The abstraction keeps unit tests free of real serial hardware.
type Porter interface {
	io.ReadWriter
	io.Closer
}

// TimeoutPorter extends Porter with a read timeout. Real ports implement
// it; mocks may not. The mux applies a read timeout through it during
// Initialize.
type TimeoutPorter interface {
	Porter
	SetReadTimeout(timeout time.Duration) error
}
