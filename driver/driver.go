// Package driver defines the boundary to the native video-acceleration
// library (VA-API or a compatible implementation).
//
// Everything behind the Driver interface is a synchronous native call that
// returns a Status code. Callers must check every status individually; there
// is no batching and no cancellation. The hwdec root package wraps
// non-success statuses into Go errors exactly once, at the call site.
//
// Handle types (Display, SurfaceID, ConfigID, ContextID, ImageID, BufferID)
// are opaque driver tokens. The zero-adjacent sentinel InvalidID marks a
// handle slot that was never created; teardown paths skip such slots.
package driver

import "io"

// Display is an opaque handle to an initialized driver display session.
type Display uintptr

// SurfaceID identifies one hardware-resident decoded-picture buffer.
type SurfaceID uint32

// ConfigID identifies a driver decode configuration object.
type ConfigID uint32

// ContextID identifies a driver decode context bound to a surface set.
type ContextID uint32

// ImageID identifies a driver-allocated CPU-mappable image.
type ImageID uint32

// BufferID identifies the data buffer backing an image.
type BufferID uint32

// InvalidID is the sentinel for a handle that was never created.
// It matches VA_INVALID_ID and is safe to pass to the Destroy* family,
// which must treat it as a no-op.
const InvalidID = 0xffffffff

// Status is the result code of a native driver call.
// Zero means success; any other value is driver-specific.
type Status int32

// StatusSuccess is the only status that indicates a completed call.
const StatusSuccess Status = 0

// Common non-success statuses; values mirror the native header. Real
// drivers may return codes outside this list; treat anything non-zero as
// failure.
const (
	StatusOperationFailed  Status = 0x01
	StatusAllocationFailed Status = 0x02
	StatusInvalidDisplay   Status = 0x03
	StatusInvalidConfig    Status = 0x04
	StatusInvalidContext   Status = 0x05
	StatusInvalidSurface   Status = 0x06
	StatusInvalidBuffer    Status = 0x07
	StatusInvalidImage     Status = 0x08
	StatusUnsupported      Status = 0x0c
)

// Ok reports whether the status indicates success.
func (s Status) Ok() bool { return s == StatusSuccess }

// String returns a short description of the status.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusOperationFailed:
		return "operation failed"
	case StatusAllocationFailed:
		return "allocation failed"
	case StatusInvalidDisplay:
		return "invalid display"
	case StatusInvalidSurface:
		return "invalid surface"
	case StatusInvalidConfig:
		return "invalid config"
	case StatusInvalidContext:
		return "invalid context"
	case StatusInvalidImage:
		return "invalid image"
	case StatusInvalidBuffer:
		return "invalid buffer"
	case StatusUnsupported:
		return "unsupported"
	}
	return "driver error"
}

// FourCC is a four-character pixel layout code as reported by the driver.
type FourCC uint32

// MakeFourCC packs four characters into a FourCC the way the native headers do.
func MakeFourCC(a, b, c, d byte) FourCC {
	return FourCC(a) | FourCC(b)<<8 | FourCC(c)<<16 | FourCC(d)<<24
}

// Known image layout codes.
var (
	FourCCYV12 = MakeFourCC('Y', 'V', '1', '2')
	FourCCNV12 = MakeFourCC('N', 'V', '1', '2')
	FourCCI420 = MakeFourCC('I', '4', '2', '0')
)

// String renders the code as its four characters.
func (f FourCC) String() string {
	return string([]byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)})
}

// ImageFormat describes one CPU-mappable image layout the driver supports.
type ImageFormat struct {
	FourCC       FourCC
	ByteOrder    uint32
	BitsPerPixel uint32
}

// Image is the descriptor of a driver-allocated image: where each color
// plane lives inside the mapped buffer. Offsets and Pitches are indexed by
// plane and only the first NumPlanes entries are meaningful.
type Image struct {
	ID     ImageID
	Buf    BufferID
	Format ImageFormat

	Width  int
	Height int

	DataSize  int
	NumPlanes int
	Offsets   [3]int
	Pitches   [3]int
}

// Profile identifies a codec profile the decode hardware may support.
type Profile int32

// Decode profiles. Values mirror the native enumeration.
const (
	ProfileNone         Profile = -1
	ProfileMPEG2Simple  Profile = 0
	ProfileMPEG2Main    Profile = 1
	ProfileH264Baseline Profile = 5
	ProfileH264Main     Profile = 6
	ProfileH264High     Profile = 7
	ProfileVC1Simple    Profile = 8
	ProfileVC1Main      Profile = 9
	ProfileVC1Advanced  Profile = 10
	ProfileHEVCMain     Profile = 17
	ProfileHEVCMain10   Profile = 18
	ProfileVP9Profile0  Profile = 19
	ProfileAV1Profile0  Profile = 32
)

// String returns the profile name.
func (p Profile) String() string {
	switch p {
	case ProfileMPEG2Simple:
		return "mpeg2-simple"
	case ProfileMPEG2Main:
		return "mpeg2-main"
	case ProfileH264Baseline:
		return "h264-baseline"
	case ProfileH264Main:
		return "h264-main"
	case ProfileH264High:
		return "h264-high"
	case ProfileVC1Simple:
		return "vc1-simple"
	case ProfileVC1Main:
		return "vc1-main"
	case ProfileVC1Advanced:
		return "vc1-advanced"
	case ProfileHEVCMain:
		return "hevc-main"
	case ProfileHEVCMain10:
		return "hevc-main10"
	case ProfileVP9Profile0:
		return "vp9-0"
	case ProfileAV1Profile0:
		return "av1-0"
	}
	return "unknown"
}

// Entrypoint selects the pipeline stage a decode config targets.
type Entrypoint int32

// EntrypointVLD is full-bitstream (variable-length) decoding, the only
// entrypoint this package uses.
const EntrypointVLD Entrypoint = 1

// RTFormat selects the render-target chroma format for surface allocation.
type RTFormat uint32

// RTFormatYUV420 is 4:2:0 subsampled YUV, the format every decode profile
// in scope renders to.
const RTFormatYUV420 RTFormat = 0x01

// Driver is the native video-acceleration library. Implementations wrap a
// real driver (driver/vadrv) or simulate one for tests (driver/drivertest).
//
// All methods are synchronous and non-cancelable. A hung native call stalls
// its caller; that is a contract assumption of the native library, not
// something implementations defend against.
type Driver interface {
	// Name identifies the implementation (e.g. "vaapi", "fake").
	Name() string

	// OpenDisplayDRM wraps an already-open DRM render-node file descriptor
	// into a display handle. The caller retains ownership of the fd and
	// must keep it open until Terminate.
	OpenDisplayDRM(fd uintptr) (Display, Status)

	// OpenDisplayX11 opens the named X11 display (empty means $DISPLAY)
	// and wraps it into a display handle. The returned closer tears down
	// the X connection and must be called after Terminate.
	OpenDisplayX11(name string) (Display, io.Closer, Status)

	// Initialize performs the one-time driver handshake and reports the
	// driver API version.
	Initialize(d Display) (major, minor int, st Status)

	// Terminate ends the driver session. The display handle is invalid
	// afterwards.
	Terminate(d Display) Status

	// VendorString returns the driver's vendor identification, for
	// diagnostics only.
	VendorString(d Display) string

	// QueryImageFormats enumerates the CPU-mappable image layouts the
	// driver can produce with GetImage.
	QueryImageFormats(d Display) ([]ImageFormat, Status)

	// QueryProfiles enumerates the codec profiles the hardware decodes.
	QueryProfiles(d Display) ([]Profile, Status)

	// CreateSurfaces allocates count hardware surfaces of the given
	// render-target format and coded dimensions in one call.
	CreateSurfaces(d Display, rt RTFormat, width, height, count int) ([]SurfaceID, Status)

	// DestroySurfaces releases surfaces allocated by CreateSurfaces.
	DestroySurfaces(d Display, surfaces []SurfaceID) Status

	// CreateConfig creates a decode configuration for a profile/entrypoint
	// pair.
	CreateConfig(d Display, p Profile, e Entrypoint) (ConfigID, Status)

	// DestroyConfig releases a decode configuration. InvalidID is a no-op.
	DestroyConfig(d Display, id ConfigID) Status

	// CreateContext creates a decode context bound to exactly the given
	// surfaces. The driver tracks the binding; the surfaces must outlive
	// the context.
	CreateContext(d Display, cfg ConfigID, width, height int, surfaces []SurfaceID) (ContextID, Status)

	// DestroyContext releases a decode context. InvalidID is a no-op.
	DestroyContext(d Display, id ContextID) Status

	// CreateImage allocates a CPU-mappable image of the given format and
	// dimensions and returns its descriptor.
	CreateImage(d Display, f ImageFormat, width, height int) (Image, Status)

	// GetImage copies a surface's contents into an image. This is the
	// copy path, not a zero-copy derive.
	GetImage(d Display, s SurfaceID, width, height int, img ImageID) Status

	// MapBuffer maps an image's data buffer into CPU address space. The
	// returned slice is valid until the paired UnmapBuffer.
	MapBuffer(d Display, b BufferID) ([]byte, Status)

	// UnmapBuffer releases a mapping created by MapBuffer.
	UnmapBuffer(d Display, b BufferID) Status

	// DestroyImage releases an image created by CreateImage. InvalidID is
	// a no-op.
	DestroyImage(d Display, id ImageID) Status
}
