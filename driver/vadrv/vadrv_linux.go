//go:build linux

// Package vadrv implements driver.Driver on top of the system VA-API
// library, loaded at runtime with purego. No cgo is involved; if libva is
// not installed, New reports that and the pipeline falls back to software
// decode.
package vadrv

import (
	"fmt"
	"io"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/gogpu/hwdec/driver"
)

// Shared library names, most specific first.
var (
	libvaNames    = []string{"libva.so.2", "libva.so"}
	libvaDRMNames = []string{"libva-drm.so.2", "libva-drm.so"}
	libvaX11Names = []string{"libva-x11.so.2", "libva-x11.so"}
	libX11Names   = []string{"libX11.so.6", "libX11.so"}
)

// vaImageFormat mirrors VAImageFormat. Layout must match the native
// header exactly.
type vaImageFormat struct {
	FourCC       uint32
	ByteOrder    uint32
	BitsPerPixel uint32
	Depth        uint32
	RedMask      uint32
	GreenMask    uint32
	BlueMask     uint32
	AlphaMask    uint32
	Reserved     [4]uint32
}

// vaImage mirrors VAImage.
type vaImage struct {
	ImageID           uint32
	Format            vaImageFormat
	Buf               uint32
	Width             uint16
	Height            uint16
	DataSize          uint32
	NumPlanes         uint32
	Pitches           [3]uint32
	Offsets           [3]uint32
	NumPaletteEntries int32
	EntryBytes        int32
	ComponentOrder    [4]int8
	Reserved          [4]uint32
}

// core libva entry points.
var (
	vaInitialize          func(d uintptr, major, minor *int32) int32
	vaTerminate           func(d uintptr) int32
	vaErrorStr            func(st int32) string
	vaQueryVendorString   func(d uintptr) string
	vaMaxNumImageFormats  func(d uintptr) int32
	vaQueryImageFormats   func(d uintptr, formats *vaImageFormat, num *int32) int32
	vaMaxNumProfiles      func(d uintptr) int32
	vaQueryConfigProfiles func(d uintptr, profiles *int32, num *int32) int32
	vaCreateSurfaces      func(d uintptr, format, width, height uint32, surfaces *uint32, num uint32, attribs uintptr, numAttribs uint32) int32
	vaDestroySurfaces     func(d uintptr, surfaces *uint32, num int32) int32
	vaCreateConfig        func(d uintptr, profile, entrypoint int32, attribs uintptr, num int32, cfg *uint32) int32
	vaDestroyConfig       func(d uintptr, cfg uint32) int32
	vaCreateContext       func(d uintptr, cfg uint32, w, h, flag int32, targets *uint32, num int32, ctx *uint32) int32
	vaDestroyContext      func(d uintptr, ctx uint32) int32
	vaCreateImage         func(d uintptr, format *vaImageFormat, w, h int32, img *vaImage) int32
	vaGetImage            func(d uintptr, s uint32, x, y int32, w, h uint32, img uint32) int32
	vaMapBuffer           func(d uintptr, buf uint32, pbuf *uintptr) int32
	vaUnmapBuffer         func(d uintptr, buf uint32) int32
	vaDestroyImage        func(d uintptr, img uint32) int32
)

// display-connection entry points, loaded on demand.
var (
	vaGetDisplayDRM func(fd int32) uintptr
	vaGetDisplay    func(dpy uintptr) uintptr
	xOpenDisplay    func(name string) uintptr
	xCloseDisplay   func(dpy uintptr) int32
)

var (
	loadOnce sync.Once
	loadErr  error

	drmOnce sync.Once
	drmErr  error
	x11Once sync.Once
	x11Err  error
)

func dlopenFirst(names []string) (uintptr, error) {
	var lastErr error
	for _, name := range names {
		h, err := purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			return h, nil
		}
		lastErr = err
	}
	return 0, lastErr
}

func load() error {
	loadOnce.Do(func() {
		lib, err := dlopenFirst(libvaNames)
		if err != nil {
			loadErr = fmt.Errorf("vadrv: libva not available: %w", err)
			return
		}
		purego.RegisterLibFunc(&vaInitialize, lib, "vaInitialize")
		purego.RegisterLibFunc(&vaTerminate, lib, "vaTerminate")
		purego.RegisterLibFunc(&vaErrorStr, lib, "vaErrorStr")
		purego.RegisterLibFunc(&vaQueryVendorString, lib, "vaQueryVendorString")
		purego.RegisterLibFunc(&vaMaxNumImageFormats, lib, "vaMaxNumImageFormats")
		purego.RegisterLibFunc(&vaQueryImageFormats, lib, "vaQueryImageFormats")
		purego.RegisterLibFunc(&vaMaxNumProfiles, lib, "vaMaxNumProfiles")
		purego.RegisterLibFunc(&vaQueryConfigProfiles, lib, "vaQueryConfigProfiles")
		purego.RegisterLibFunc(&vaCreateSurfaces, lib, "vaCreateSurfaces")
		purego.RegisterLibFunc(&vaDestroySurfaces, lib, "vaDestroySurfaces")
		purego.RegisterLibFunc(&vaCreateConfig, lib, "vaCreateConfig")
		purego.RegisterLibFunc(&vaDestroyConfig, lib, "vaDestroyConfig")
		purego.RegisterLibFunc(&vaCreateContext, lib, "vaCreateContext")
		purego.RegisterLibFunc(&vaDestroyContext, lib, "vaDestroyContext")
		purego.RegisterLibFunc(&vaCreateImage, lib, "vaCreateImage")
		purego.RegisterLibFunc(&vaGetImage, lib, "vaGetImage")
		purego.RegisterLibFunc(&vaMapBuffer, lib, "vaMapBuffer")
		purego.RegisterLibFunc(&vaUnmapBuffer, lib, "vaUnmapBuffer")
		purego.RegisterLibFunc(&vaDestroyImage, lib, "vaDestroyImage")
	})
	return loadErr
}

func loadDRM() error {
	drmOnce.Do(func() {
		lib, err := dlopenFirst(libvaDRMNames)
		if err != nil {
			drmErr = fmt.Errorf("vadrv: libva-drm not available: %w", err)
			return
		}
		purego.RegisterLibFunc(&vaGetDisplayDRM, lib, "vaGetDisplayDRM")
	})
	return drmErr
}

func loadX11() error {
	x11Once.Do(func() {
		lib, err := dlopenFirst(libvaX11Names)
		if err != nil {
			x11Err = fmt.Errorf("vadrv: libva-x11 not available: %w", err)
			return
		}
		xlib, err := dlopenFirst(libX11Names)
		if err != nil {
			x11Err = fmt.Errorf("vadrv: libX11 not available: %w", err)
			return
		}
		purego.RegisterLibFunc(&vaGetDisplay, lib, "vaGetDisplay")
		purego.RegisterLibFunc(&xOpenDisplay, xlib, "XOpenDisplay")
		purego.RegisterLibFunc(&xCloseDisplay, xlib, "XCloseDisplay")
	})
	return x11Err
}

// Available reports whether the system VA-API library can be loaded.
func Available() bool {
	return load() == nil
}

// New returns a Driver backed by the system VA-API library, loading it on
// first use.
func New() (driver.Driver, error) {
	if err := load(); err != nil {
		return nil, err
	}
	return &vaDriver{
		bufSizes: make(map[driver.BufferID]int),
		imageBuf: make(map[driver.ImageID]driver.BufferID),
	}, nil
}

// ErrorString returns the native description of a status code, or the
// generic Status description if libva is not loaded.
func ErrorString(st driver.Status) string {
	if load() == nil {
		return vaErrorStr(int32(st))
	}
	return st.String()
}

// vaDriver is the libva-backed driver.Driver.
//
// Thread safety: libva serializes internally; the only Go-side state is
// the buffer-size ledger used to build MapBuffer slices, protected by mu.
type vaDriver struct {
	mu       sync.Mutex
	bufSizes map[driver.BufferID]int
	imageBuf map[driver.ImageID]driver.BufferID
}

func (*vaDriver) Name() string { return "vaapi" }

func (*vaDriver) OpenDisplayDRM(fd uintptr) (driver.Display, driver.Status) {
	if err := loadDRM(); err != nil {
		return 0, driver.StatusInvalidDisplay
	}
	d := vaGetDisplayDRM(int32(fd))
	if d == 0 {
		return 0, driver.StatusInvalidDisplay
	}
	return driver.Display(d), driver.StatusSuccess
}

// x11Display owns the Xlib connection backing an X11 VA display.
type x11Display struct {
	dpy uintptr
}

func (x *x11Display) Close() error {
	if x.dpy != 0 {
		xCloseDisplay(x.dpy)
		x.dpy = 0
	}
	return nil
}

func (*vaDriver) OpenDisplayX11(name string) (driver.Display, io.Closer, driver.Status) {
	if err := loadX11(); err != nil {
		return 0, nil, driver.StatusInvalidDisplay
	}
	dpy := xOpenDisplay(name)
	if dpy == 0 {
		return 0, nil, driver.StatusInvalidDisplay
	}
	d := vaGetDisplay(dpy)
	if d == 0 {
		xCloseDisplay(dpy)
		return 0, nil, driver.StatusInvalidDisplay
	}
	return driver.Display(d), &x11Display{dpy: dpy}, driver.StatusSuccess
}

func (*vaDriver) Initialize(d driver.Display) (int, int, driver.Status) {
	var major, minor int32
	st := vaInitialize(uintptr(d), &major, &minor)
	return int(major), int(minor), driver.Status(st)
}

func (*vaDriver) Terminate(d driver.Display) driver.Status {
	return driver.Status(vaTerminate(uintptr(d)))
}

func (*vaDriver) VendorString(d driver.Display) string {
	return vaQueryVendorString(uintptr(d))
}

func (*vaDriver) QueryImageFormats(d driver.Display) ([]driver.ImageFormat, driver.Status) {
	max := vaMaxNumImageFormats(uintptr(d))
	if max <= 0 {
		return nil, driver.StatusOperationFailed
	}
	raw := make([]vaImageFormat, max)
	num := max
	if st := vaQueryImageFormats(uintptr(d), &raw[0], &num); st != 0 {
		return nil, driver.Status(st)
	}
	out := make([]driver.ImageFormat, num)
	for i := range out {
		out[i] = driver.ImageFormat{
			FourCC:       driver.FourCC(raw[i].FourCC),
			ByteOrder:    raw[i].ByteOrder,
			BitsPerPixel: raw[i].BitsPerPixel,
		}
	}
	return out, driver.StatusSuccess
}

func (*vaDriver) QueryProfiles(d driver.Display) ([]driver.Profile, driver.Status) {
	max := vaMaxNumProfiles(uintptr(d))
	if max <= 0 {
		return nil, driver.StatusOperationFailed
	}
	raw := make([]int32, max)
	num := max
	if st := vaQueryConfigProfiles(uintptr(d), &raw[0], &num); st != 0 {
		return nil, driver.Status(st)
	}
	out := make([]driver.Profile, num)
	for i := range out {
		out[i] = driver.Profile(raw[i])
	}
	return out, driver.StatusSuccess
}

func (*vaDriver) CreateSurfaces(d driver.Display, rt driver.RTFormat, width, height, count int) ([]driver.SurfaceID, driver.Status) {
	ids := make([]uint32, count)
	st := vaCreateSurfaces(uintptr(d), uint32(rt), uint32(width), uint32(height),
		&ids[0], uint32(count), 0, 0)
	if st != 0 {
		return nil, driver.Status(st)
	}
	out := make([]driver.SurfaceID, count)
	for i := range out {
		out[i] = driver.SurfaceID(ids[i])
	}
	return out, driver.StatusSuccess
}

func (*vaDriver) DestroySurfaces(d driver.Display, surfaces []driver.SurfaceID) driver.Status {
	if len(surfaces) == 0 {
		return driver.StatusSuccess
	}
	ids := make([]uint32, 0, len(surfaces))
	for _, s := range surfaces {
		if s != driver.InvalidID {
			ids = append(ids, uint32(s))
		}
	}
	if len(ids) == 0 {
		return driver.StatusSuccess
	}
	return driver.Status(vaDestroySurfaces(uintptr(d), &ids[0], int32(len(ids))))
}

func (*vaDriver) CreateConfig(d driver.Display, p driver.Profile, e driver.Entrypoint) (driver.ConfigID, driver.Status) {
	var id uint32
	st := vaCreateConfig(uintptr(d), int32(p), int32(e), 0, 0, &id)
	if st != 0 {
		return driver.InvalidID, driver.Status(st)
	}
	return driver.ConfigID(id), driver.StatusSuccess
}

func (*vaDriver) DestroyConfig(d driver.Display, id driver.ConfigID) driver.Status {
	if id == driver.InvalidID {
		return driver.StatusSuccess
	}
	return driver.Status(vaDestroyConfig(uintptr(d), uint32(id)))
}

func (*vaDriver) CreateContext(d driver.Display, cfg driver.ConfigID, width, height int, surfaces []driver.SurfaceID) (driver.ContextID, driver.Status) {
	ids := make([]uint32, len(surfaces))
	for i, s := range surfaces {
		ids[i] = uint32(s)
	}
	var id uint32
	st := vaCreateContext(uintptr(d), uint32(cfg), int32(width), int32(height), 0,
		&ids[0], int32(len(ids)), &id)
	if st != 0 {
		return driver.InvalidID, driver.Status(st)
	}
	return driver.ContextID(id), driver.StatusSuccess
}

func (*vaDriver) DestroyContext(d driver.Display, id driver.ContextID) driver.Status {
	if id == driver.InvalidID {
		return driver.StatusSuccess
	}
	return driver.Status(vaDestroyContext(uintptr(d), uint32(id)))
}

func (v *vaDriver) CreateImage(d driver.Display, f driver.ImageFormat, width, height int) (driver.Image, driver.Status) {
	format := vaImageFormat{
		FourCC:       uint32(f.FourCC),
		ByteOrder:    f.ByteOrder,
		BitsPerPixel: f.BitsPerPixel,
	}
	var img vaImage
	img.ImageID = driver.InvalidID
	img.Buf = driver.InvalidID
	st := vaCreateImage(uintptr(d), &format, int32(width), int32(height), &img)
	if st != 0 {
		return driver.Image{ID: driver.InvalidID, Buf: driver.InvalidID}, driver.Status(st)
	}
	out := driver.Image{
		ID:        driver.ImageID(img.ImageID),
		Buf:       driver.BufferID(img.Buf),
		Format:    f,
		Width:     int(img.Width),
		Height:    int(img.Height),
		DataSize:  int(img.DataSize),
		NumPlanes: int(img.NumPlanes),
	}
	for i := 0; i < 3; i++ {
		out.Offsets[i] = int(img.Offsets[i])
		out.Pitches[i] = int(img.Pitches[i])
	}
	v.mu.Lock()
	v.bufSizes[out.Buf] = out.DataSize
	v.imageBuf[out.ID] = out.Buf
	v.mu.Unlock()
	return out, driver.StatusSuccess
}

func (*vaDriver) GetImage(d driver.Display, s driver.SurfaceID, width, height int, img driver.ImageID) driver.Status {
	return driver.Status(vaGetImage(uintptr(d), uint32(s), 0, 0,
		uint32(width), uint32(height), uint32(img)))
}

func (v *vaDriver) MapBuffer(d driver.Display, b driver.BufferID) ([]byte, driver.Status) {
	v.mu.Lock()
	size, ok := v.bufSizes[b]
	v.mu.Unlock()
	if !ok {
		return nil, driver.StatusInvalidBuffer
	}
	var p uintptr
	if st := vaMapBuffer(uintptr(d), uint32(b), &p); st != 0 {
		return nil, driver.Status(st)
	}
	if p == 0 || size == 0 {
		vaUnmapBuffer(uintptr(d), uint32(b))
		return nil, driver.StatusOperationFailed
	}
	return unsafe.Slice((*byte)(*(*unsafe.Pointer)(unsafe.Pointer(&p))), size), driver.StatusSuccess
}

func (*vaDriver) UnmapBuffer(d driver.Display, b driver.BufferID) driver.Status {
	return driver.Status(vaUnmapBuffer(uintptr(d), uint32(b)))
}

func (v *vaDriver) DestroyImage(d driver.Display, id driver.ImageID) driver.Status {
	if id == driver.InvalidID {
		return driver.StatusSuccess
	}
	st := vaDestroyImage(uintptr(d), uint32(id))
	if st == 0 {
		// Destroying the image frees its buffer; drop the ledger entries.
		v.mu.Lock()
		if b, ok := v.imageBuf[id]; ok {
			delete(v.bufSizes, b)
			delete(v.imageBuf, id)
		}
		v.mu.Unlock()
	}
	return driver.Status(st)
}
