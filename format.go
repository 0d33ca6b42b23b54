package hwdec

import "github.com/gogpu/hwdec/driver"

// PixelFormat is the logical layout of a frame as the pipeline sees it.
type PixelFormat int

// Pixel formats.
const (
	// PixelFormatUnknown is the zero value.
	PixelFormatUnknown PixelFormat = iota

	// PixelFormatHardware marks a frame whose pixels live in an opaque
	// hardware surface. The Surface field identifies it; the planes are
	// empty until RetrieveImage maps the surface into CPU memory.
	PixelFormatHardware

	// PixelFormatI420 is planar 4:2:0 YUV with Y, U, V plane order.
	PixelFormatI420

	// PixelFormatNV12 is 4:2:0 YUV with a full Y plane followed by one
	// interleaved UV plane.
	PixelFormatNV12
)

// String returns the format name.
func (p PixelFormat) String() string {
	switch p {
	case PixelFormatHardware:
		return "hardware"
	case PixelFormatI420:
		return "i420"
	case PixelFormatNV12:
		return "nv12"
	}
	return "unknown"
}

// PlaneCount returns the number of color planes in a mapped frame of this
// format, or zero for opaque formats.
func (p PixelFormat) PlaneCount() int {
	switch p {
	case PixelFormatI420:
		return 3
	case PixelFormatNV12:
		return 2
	}
	return 0
}

// formatMapping pairs a driver image layout with the logical pixel format
// it retrieves into. swapChroma marks layouts that store the chroma planes
// in the opposite order from the logical format: YV12 keeps V before U, so
// retrieving into I420 swaps the two chroma plane pointers after the copy.
type formatMapping struct {
	fourcc     driver.FourCC
	pix        PixelFormat
	swapChroma bool
}

// formatTable lists the image layouts this package can consume, in
// negotiation priority order. The first entry the driver also reports
// wins; the driver's own preference order is deliberately ignored.
var formatTable = []formatMapping{
	{driver.FourCCYV12, PixelFormatI420, true},
	{driver.FourCCNV12, PixelFormatNV12, false},
}

// pickFormat intersects the format table with the driver's reported image
// formats and returns the first match in table order.
func pickFormat(formats []driver.ImageFormat) (driver.ImageFormat, formatMapping, error) {
	for _, m := range formatTable {
		for _, f := range formats {
			if f.FourCC == m.fourcc {
				return f, m, nil
			}
		}
	}
	return driver.ImageFormat{}, formatMapping{}, ErrNoSupportedFormat
}
