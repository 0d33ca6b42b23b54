//go:build !linux

// Package vadrv implements driver.Driver on top of the system VA-API
// library. VA-API only exists on Linux; on other platforms New always
// fails and the pipeline falls back to software decode.
package vadrv

import (
	"errors"

	"github.com/gogpu/hwdec/driver"
)

// ErrUnsupported is returned by New on platforms without VA-API.
var ErrUnsupported = errors.New("vadrv: VA-API is not available on this platform")

// Available reports whether the system VA-API library can be loaded.
func Available() bool { return false }

// New returns a Driver backed by the system VA-API library.
func New() (driver.Driver, error) { return nil, ErrUnsupported }

// ErrorString returns the description of a status code.
func ErrorString(st driver.Status) string { return st.String() }
