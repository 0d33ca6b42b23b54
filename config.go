package hwdec

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/hwdec/driver"
)

// basePoolSize is the number of surfaces every pool gets regardless of
// decoding parallelism. Sixteen covers the worst-case reference picture
// count of the supported codecs plus reordering depth.
const basePoolSize = 16

// ConfigState is a point in the decode config lifecycle.
type ConfigState int32

// Lifecycle states. Transitions only ever move forward:
// Uninitialized → Creating → Active → Superseded → Draining → Destroyed.
// A failure during Creating goes straight to Destroyed via rollback.
const (
	StateUninitialized ConfigState = iota
	StateCreating
	StateActive
	StateSuperseded
	StateDraining
	StateDestroyed
)

// String returns the state name.
func (s ConfigState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCreating:
		return "creating"
	case StateActive:
		return "active"
	case StateSuperseded:
		return "superseded"
	case StateDraining:
		return "draining"
	case StateDestroyed:
		return "destroyed"
	}
	return "invalid"
}

// DecodeConfig owns a fixed pool of hardware surfaces and the driver
// config/context pair bound to them, for one stream at one coded
// resolution. The device holds one reference while the config is current;
// every checked-out frame holds another, so a superseded config (after a
// resolution change) stays alive until its last frame releases.
//
// The pool never grows. Checkout claims a slot with a per-slot atomic
// compare-and-set, so concurrent decode workers never race for the same
// surface and no cross-slot lock is needed.
type DecodeConfig struct {
	dev     *DeviceContext
	profile driver.Profile

	codedWidth  int
	codedHeight int

	configID  driver.ConfigID
	contextID driver.ContextID

	// surfaces[i] and used[i] describe the same slot; the lengths are
	// equal and fixed at creation. The used flag is the sole arbiter of
	// surface availability.
	surfaces []driver.SurfaceID
	used     []atomic.Bool

	state atomic.Int32
	refs  refCount
}

// NewConfig creates a decode config for the given codec profile at the
// stream's coded (not display) resolution and installs it as the device's
// current config, superseding any previous one.
//
// The pool holds 16 surfaces, plus one per worker when WithFrameParallel
// is given. Every driver object is created in one pass; any failure rolls
// back all previously acquired handles in reverse order and releases the
// config's device reference before the error is returned.
func (d *DeviceContext) NewConfig(profile driver.Profile, codedWidth, codedHeight int, opts ...ConfigOption) (*DecodeConfig, error) {
	var o configOptions
	for _, opt := range opts {
		opt(&o)
	}

	c := &DecodeConfig{
		dev:         d,
		profile:     profile,
		codedWidth:  codedWidth,
		codedHeight: codedHeight,
		configID:    driver.InvalidID,
		contextID:   driver.InvalidID,
	}
	c.refs.init()
	c.state.Store(int32(StateCreating))
	d.ref()

	// fail rolls back through destroy: the InvalidID sentinels make it
	// safe at every stage.
	fail := func(err error) error {
		c.unref()
		return err
	}

	profiles, st := d.drv.QueryProfiles(d.display)
	if !st.Ok() {
		return nil, fail(driverErr(StageQueryProfiles, st))
	}
	if !hasProfile(profiles, profile) {
		return nil, fail(fmt.Errorf("%w: %s", ErrNoSupportedProfile, profile))
	}

	n := basePoolSize
	if o.frameParallel {
		n += o.workers
	}

	surfaces, st := d.drv.CreateSurfaces(d.display, driver.RTFormatYUV420, codedWidth, codedHeight, n)
	if !st.Ok() {
		return nil, fail(driverErr(StageSurfaceCreate, st))
	}
	c.surfaces = surfaces
	c.used = make([]atomic.Bool, n)

	configID, st := d.drv.CreateConfig(d.display, profile, driver.EntrypointVLD)
	if !st.Ok() {
		return nil, fail(driverErr(StageConfigCreate, st))
	}
	c.configID = configID

	contextID, st := d.drv.CreateContext(d.display, configID, codedWidth, codedHeight, surfaces)
	if !st.Ok() {
		return nil, fail(driverErr(StageContextCreate, st))
	}
	c.contextID = contextID

	c.state.Store(int32(StateActive))
	d.installConfig(c)

	Logger().Debug("decode config created",
		"profile", profile.String(),
		"coded", fmt.Sprintf("%dx%d", codedWidth, codedHeight),
		"surfaces", n)
	return c, nil
}

func hasProfile(have []driver.Profile, want driver.Profile) bool {
	for _, p := range have {
		if p == want {
			return true
		}
	}
	return false
}

// State returns the config's lifecycle state.
func (c *DecodeConfig) State() ConfigState {
	return ConfigState(c.state.Load())
}

// Profile returns the codec profile the config was created for.
func (c *DecodeConfig) Profile() driver.Profile { return c.profile }

// ConfigID returns the driver configuration handle, for the pipeline's
// own decode calls.
func (c *DecodeConfig) ConfigID() driver.ConfigID { return c.configID }

// ContextID returns the driver decode context handle.
func (c *DecodeConfig) ContextID() driver.ContextID { return c.contextID }

// PoolSize returns the fixed number of surfaces in the pool.
func (c *DecodeConfig) PoolSize() int { return len(c.surfaces) }

// InUse returns how many surfaces are currently checked out.
func (c *DecodeConfig) InUse() int {
	n := 0
	for i := range c.used {
		if c.used[i].Load() {
			n++
		}
	}
	return n
}

// AcquireSurface checks the first free surface out of the pool and returns
// a hardware-backed frame bound to it. The frame holds a strong reference
// to the config, so the pool survives even if the device has already moved
// on to a new config.
//
// When every slot is in use the call fails immediately with
// ErrPoolExhausted; it never blocks and the pool never grows.
func (c *DecodeConfig) AcquireSurface() (*Frame, error) {
	for i := range c.used {
		if !c.used[i].CompareAndSwap(false, true) {
			continue
		}
		c.ref()
		slot := i
		f := &Frame{
			Width:       c.codedWidth,
			Height:      c.codedHeight,
			PixelFormat: PixelFormatHardware,
			Surface:     c.surfaces[i],
		}
		f.payload = newPayload(func() {
			c.used[slot].Store(false)
			c.unref()
		})
		return f, nil
	}
	return nil, ErrPoolExhausted
}

// supersede is called when the device stops targeting this config for new
// checkouts (a newer config was installed, or the device is closing). It
// drops the device's strong reference; outstanding frames keep the config
// draining until the last one releases.
func (c *DecodeConfig) supersede() {
	c.state.CompareAndSwap(int32(StateActive), int32(StateSuperseded))
	if n := c.refs.unref(c.destroy); n > 0 {
		c.state.CompareAndSwap(int32(StateSuperseded), int32(StateDraining))
	}
}

func (c *DecodeConfig) ref() { c.refs.ref() }

func (c *DecodeConfig) unref() { c.refs.unref(c.destroy) }

// destroy releases the driver objects. Order matters: the context and
// config must go before the surfaces they are bound to, and the device
// reference is released last. InvalidID handles (partial creation) are
// skipped; surface destruction is one call for the whole array, mirroring
// allocation.
func (c *DecodeConfig) destroy() {
	d := c.dev
	if c.contextID != driver.InvalidID {
		if st := d.drv.DestroyContext(d.display, c.contextID); !st.Ok() {
			Logger().Warn("destroy context failed", "status", st)
		}
	}
	if c.configID != driver.InvalidID {
		if st := d.drv.DestroyConfig(d.display, c.configID); !st.Ok() {
			Logger().Warn("destroy config failed", "status", st)
		}
	}
	if len(c.surfaces) > 0 {
		if st := d.drv.DestroySurfaces(d.display, c.surfaces); !st.Ok() {
			Logger().Warn("destroy surfaces failed", "status", st)
		}
	}
	c.state.Store(int32(StateDestroyed))
	d.unref()
}
