package hwdec

import (
	"errors"
	"fmt"

	"github.com/gogpu/hwdec/driver"
)

// Sentinel errors returned by device and config creation and by surface
// checkout. Test with errors.Is.
var (
	// ErrConnectionFailed indicates no connection method could open a
	// display for the driver.
	ErrConnectionFailed = errors.New("hwdec: could not open a display connection")

	// ErrNoSupportedFormat indicates the driver reports none of the image
	// formats this package can consume.
	ErrNoSupportedFormat = errors.New("hwdec: no supported image format")

	// ErrNoSupportedProfile indicates the stream's codec profile has no
	// match in the driver's decode profiles.
	ErrNoSupportedProfile = errors.New("hwdec: no supported decode profile")

	// ErrPoolExhausted indicates every surface in the pool is checked out.
	// This is backpressure, not corruption: the pool is sized for the
	// configured concurrency and never grows. The caller should release a
	// frame or treat it as a pipeline stall.
	ErrPoolExhausted = errors.New("hwdec: no free surfaces left")

	// ErrNoCurrentConfig indicates a checkout was requested before any
	// decode config was installed on the device.
	ErrNoCurrentConfig = errors.New("hwdec: no current decode config")

	// ErrNotHardwareFrame indicates image retrieval was asked to map a
	// frame that is not backed by a hardware surface.
	ErrNotHardwareFrame = errors.New("hwdec: frame is not backed by a hardware surface")
)

// Stage identifies which native call failed inside a multi-step operation.
type Stage int

// Stages, in the order the creation paths execute them.
const (
	StageInitialize Stage = iota
	StageQueryFormats
	StageQueryProfiles
	StageSurfaceCreate
	StageConfigCreate
	StageContextCreate
	StageImageCreate
	StageImageCopy
	StageImageMap
)

// String returns the stage name used in error messages and logs.
func (s Stage) String() string {
	switch s {
	case StageInitialize:
		return "driver initialize"
	case StageQueryFormats:
		return "query image formats"
	case StageQueryProfiles:
		return "query profiles"
	case StageSurfaceCreate:
		return "surface creation"
	case StageConfigCreate:
		return "config creation"
	case StageContextCreate:
		return "context creation"
	case StageImageCreate:
		return "image creation"
	case StageImageCopy:
		return "surface copy"
	case StageImageMap:
		return "image mapping"
	}
	return "unknown stage"
}

// DriverError reports a native driver call that returned a non-success
// status, tagged with the stage it happened at. Retrieve with errors.As.
type DriverError struct {
	Stage  Stage
	Status driver.Status
}

// Error implements the error interface.
func (e *DriverError) Error() string {
	return fmt.Sprintf("hwdec: %s failed: %s", e.Stage, e.Status)
}

// driverErr builds a *DriverError for a failed native call.
func driverErr(stage Stage, st driver.Status) error {
	return &DriverError{Stage: stage, Status: st}
}
