package hwdec

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/hwdec/connect"
	"github.com/gogpu/hwdec/driver"
)

// DeviceContext owns one display/driver session and the format negotiated
// against it. It is created once per decoding stream and shared, via
// reference counting, by every decode config and every retrieved image
// created against it. The context holds one reference to itself; Close
// drops it. Destruction runs when the last reference is gone, so a device
// outlives any config or frame still in flight.
//
// Thread safety: the current-config pointer is mutex-protected and all
// reference counts are atomic. Teardown must not race with checkout or
// retrieval; quiescence is the caller's responsibility.
type DeviceContext struct {
	drv     driver.Driver
	display driver.Display
	conn    io.Closer

	imgFmt     driver.ImageFormat
	pixFmt     PixelFormat
	swapChroma bool

	// negLevel is the level negotiation and probe failures log at: Debug
	// when the device was chosen automatically (fallback is expected),
	// Error when it was requested explicitly.
	negLevel slog.Level

	// tmp is the scratch frame image retrieval stages into before moving
	// the result into the caller's frame.
	tmpMu sync.Mutex
	tmp   *Frame

	mu      sync.Mutex
	current *DecodeConfig

	refs   refCount
	closed atomic.Bool
}

// NewDevice opens a display connection for drv, performs the driver
// handshake, and negotiates an image format. Connection methods are tried
// in priority order (DRM render nodes, then X11); the first that yields a
// display wins. On any failure everything opened so far is torn down
// before the error is returned.
func NewDevice(drv driver.Driver, opts ...Option) (*DeviceContext, error) {
	o := defaultDeviceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := Logger()
	negLevel := slog.LevelError
	if o.auto {
		negLevel = slog.LevelDebug
	}

	display, conn, err := connect.Open(drv, o.hint)
	if err != nil {
		log.Log(context.Background(), negLevel, "could not open a display", "driver", drv.Name(), "err", err)
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	fail := func(err error) error {
		if st := drv.Terminate(display); !st.Ok() {
			log.Warn("terminate failed during rollback", "status", st)
		}
		if cerr := conn.Close(); cerr != nil {
			log.Warn("connection close failed during rollback", "err", cerr)
		}
		return err
	}

	major, minor, st := drv.Initialize(display)
	if !st.Ok() {
		log.Log(context.Background(), negLevel, "driver initialization refused", "status", st)
		return nil, fail(driverErr(StageInitialize, st))
	}

	formats, st := drv.QueryImageFormats(display)
	if !st.Ok() {
		return nil, fail(driverErr(StageQueryFormats, st))
	}
	imgFmt, mapping, err := pickFormat(formats)
	if err != nil {
		log.Log(context.Background(), negLevel, "no supported image format", "driver", drv.Name())
		return nil, fail(err)
	}

	d := &DeviceContext{
		drv:        drv,
		display:    display,
		conn:       conn,
		imgFmt:     imgFmt,
		pixFmt:     mapping.pix,
		swapChroma: mapping.swapChroma,
		negLevel:   negLevel,
		tmp:        &Frame{},
	}
	d.refs.init()

	log.Info("hardware decode device ready",
		"driver", drv.Name(),
		"version", fmt.Sprintf("%d.%d", major, minor),
		"vendor", drv.VendorString(display),
		"format", imgFmt.FourCC.String(),
		"pixfmt", mapping.pix.String())
	return d, nil
}

// Driver returns the driver this device was created with.
func (d *DeviceContext) Driver() driver.Driver { return d.drv }

// Display returns the driver display handle, for callers that need to
// issue their own driver calls (e.g. the decode pipeline binding picture
// parameters).
func (d *DeviceContext) Display() driver.Display { return d.display }

// PixelFormat returns the logical pixel format retrieval produces.
func (d *DeviceContext) PixelFormat() PixelFormat { return d.pixFmt }

// ImageFormat returns the negotiated driver image format.
func (d *DeviceContext) ImageFormat() driver.ImageFormat { return d.imgFmt }

// CurrentConfig returns the config new checkouts target, or nil.
func (d *DeviceContext) CurrentConfig() *DecodeConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// AcquireSurface checks a surface out of the current config's pool.
// See DecodeConfig.AcquireSurface.
func (d *DeviceContext) AcquireSurface() (*Frame, error) {
	d.mu.Lock()
	c := d.current
	d.mu.Unlock()
	if c == nil {
		return nil, ErrNoCurrentConfig
	}
	return c.AcquireSurface()
}

// installConfig makes c the target for new checkouts, superseding any
// previous current config. The superseded config stays alive while
// outstanding frames reference it and drains independently.
func (d *DeviceContext) installConfig(c *DecodeConfig) {
	d.mu.Lock()
	old := d.current
	d.current = c
	d.mu.Unlock()
	if old != nil {
		old.supersede()
	}
}

// Close drops the device's reference to its current config and its own
// self-reference. The native session is torn down when the last reference
// (configs still draining, frames, mapped images) is gone. Close is
// idempotent.
func (d *DeviceContext) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	d.mu.Lock()
	cur := d.current
	d.current = nil
	d.mu.Unlock()
	if cur != nil {
		cur.supersede()
	}
	d.unref()
	return nil
}

func (d *DeviceContext) ref() { d.refs.ref() }

func (d *DeviceContext) unref() { d.refs.unref(d.destroy) }

// destroy releases the native session. Runs exactly once, after the last
// reference drops: driver termination first, then the underlying
// connection, then the scratch frame.
func (d *DeviceContext) destroy() {
	if st := d.drv.Terminate(d.display); !st.Ok() {
		Logger().Warn("driver terminate failed", "status", st)
	}
	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			Logger().Warn("display connection close failed", "err", err)
		}
	}
	d.tmp = nil
}
