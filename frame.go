package hwdec

import "github.com/gogpu/hwdec/driver"

// maxPlanes is the most color planes any supported format has.
const maxPlanes = 3

// Frame is one decoded picture. It starts life hardware-backed: the pixels
// live in the surface identified by Surface, the planes are empty, and the
// frame holds a reference that keeps its decode config's pool alive. After
// RetrieveImage the frame is CPU-backed: Planes and Stride address the
// mapped image memory and Surface is invalid.
//
// Frames are reference counted through their backing store. Retain shares
// the backing with a new handle; Release drops this handle's reference.
// The backing (pool slot or mapped image) is reclaimed when the last
// handle releases. Release is idempotent per handle.
//
// The exported fields describe the picture and may be adjusted by the
// pipeline (e.g. cropping Width/Height to display size before retrieval);
// they are per-handle and not shared.
type Frame struct {
	Width  int
	Height int

	// PixelFormat is PixelFormatHardware until retrieval.
	PixelFormat PixelFormat

	// Planes and Stride address the mapped pixel data of a CPU-backed
	// frame. Only the first PixelFormat.PlaneCount() entries are valid.
	Planes [maxPlanes][]byte
	Stride [maxPlanes]int

	// Surface identifies the hardware surface backing an unretrieved
	// frame. InvalidID once the frame is CPU-backed.
	Surface driver.SurfaceID

	// Stream metadata, carried across retrieval.
	PTS      int64
	Duration int64
	KeyFrame bool
	Opaque   any

	payload *payload
}

// payload is a frame's reference-counted backing store: a pool slot for a
// hardware frame, a mapped driver image for a retrieved one. The free
// callback runs exactly once, when the last reference drops.
type payload struct {
	refs refCount
	free func()
}

func newPayload(free func()) *payload {
	p := &payload{free: free}
	p.refs.init()
	return p
}

func (p *payload) ref()   { p.refs.ref() }
func (p *payload) unref() { p.refs.unref(p.free) }

// IsHardware reports whether the frame's pixels still live in a hardware
// surface.
func (f *Frame) IsHardware() bool {
	return f.PixelFormat == PixelFormatHardware
}

// Retain returns a new handle sharing this frame's backing store. The
// backing is reclaimed only after every handle has released.
func (f *Frame) Retain() *Frame {
	if f.payload != nil {
		f.payload.ref()
	}
	g := *f
	return &g
}

// Release drops this handle's reference to the backing store. For the last
// handle of a hardware frame that returns the pool slot; for a CPU frame
// it unmaps and destroys the driver image. Release on an already-released
// or zero frame is a no-op.
func (f *Frame) Release() {
	p := f.payload
	if p == nil {
		return
	}
	f.payload = nil
	f.Planes = [maxPlanes][]byte{}
	f.Stride = [maxPlanes]int{}
	f.Surface = driver.InvalidID
	f.PixelFormat = PixelFormatUnknown
	p.unref()
}

// copyMetadata copies the stream metadata from src.
func (f *Frame) copyMetadata(src *Frame) {
	f.PTS = src.PTS
	f.Duration = src.Duration
	f.KeyFrame = src.KeyFrame
	f.Opaque = src.Opaque
}
