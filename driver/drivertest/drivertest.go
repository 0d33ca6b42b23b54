// Package drivertest provides a fake driver.Driver with full handle
// tracking and per-stage failure injection.
//
// The fake keeps a ledger of every handle it hands out and checks every
// destroy call against it. After a test tears everything down,
// LiveHandles must report zero; a non-zero count means a rollback path
// leaked a native handle.
package drivertest

import (
	"fmt"
	"io"
	"sync"

	"github.com/gogpu/hwdec/driver"
)

// Op names one fake driver call for failure injection.
type Op string

// Injectable operations.
const (
	OpOpenDisplay    Op = "open-display"
	OpInitialize     Op = "initialize"
	OpQueryFormats   Op = "query-formats"
	OpQueryProfiles  Op = "query-profiles"
	OpCreateSurfaces Op = "create-surfaces"
	OpCreateConfig   Op = "create-config"
	OpCreateContext  Op = "create-context"
	OpCreateImage    Op = "create-image"
	OpGetImage       Op = "get-image"
	OpMapBuffer      Op = "map-buffer"
)

// Fake is an in-memory driver.Driver. The zero value is not usable; call
// New.
//
// Thread safety: Fake is safe for concurrent use. All state is protected
// by a single mutex; the real driver serializes calls internally anyway.
type Fake struct {
	mu sync.Mutex

	// Formats and Profiles are what Query* report. Set before use.
	formats  []driver.ImageFormat
	profiles []driver.Profile

	fail map[Op]driver.Status

	nextID uint32

	displays  map[driver.Display]bool
	surfaces  map[driver.SurfaceID]bool
	configs   map[driver.ConfigID]bool
	contexts  map[driver.ContextID]*contextState
	images    map[driver.ImageID]*imageState
	mapped    map[driver.BufferID][]byte
	destroyed []string

	// SurfaceFill, when non-zero, is the byte the fake writes into every
	// plane on GetImage so tests can verify copy plumbing.
	SurfaceFill byte
}

type contextState struct {
	surfaces []driver.SurfaceID
}

type imageState struct {
	img driver.Image
}

// New returns a fake that reports the given image formats and decode
// profiles.
func New(formats []driver.ImageFormat, profiles []driver.Profile) *Fake {
	return &Fake{
		formats:  formats,
		profiles: profiles,
		fail:     make(map[Op]driver.Status),
		nextID:   1,
		displays: make(map[driver.Display]bool),
		surfaces: make(map[driver.SurfaceID]bool),
		configs:  make(map[driver.ConfigID]bool),
		contexts: make(map[driver.ContextID]*contextState),
		images:   make(map[driver.ImageID]*imageState),
		mapped:   make(map[driver.BufferID][]byte),
	}
}

// Default returns a fake advertising NV12+YV12 image formats and the H.264
// and HEVC main profiles, enough for most tests.
func Default() *Fake {
	return New(
		[]driver.ImageFormat{
			{FourCC: driver.FourCCNV12, BitsPerPixel: 12},
			{FourCC: driver.FourCCYV12, BitsPerPixel: 12},
		},
		[]driver.Profile{
			driver.ProfileH264Main,
			driver.ProfileH264High,
			driver.ProfileHEVCMain,
		},
	)
}

// FailWith makes the named operation return the given status until cleared.
func (f *Fake) FailWith(op Op, st driver.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = st
}

// ClearFailures removes all injected failures.
func (f *Fake) ClearFailures() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = make(map[Op]driver.Status)
}

func (f *Fake) injected(op Op) (driver.Status, bool) {
	st, ok := f.fail[op]
	return st, ok
}

// LiveHandles returns the number of driver handles currently outstanding:
// displays, surfaces, configs, contexts, images and mappings that were
// created but not destroyed.
func (f *Fake) LiveHandles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.displays) + len(f.surfaces) + len(f.configs) +
		len(f.contexts) + len(f.images) + len(f.mapped)
}

// LiveSurfaces returns the number of outstanding surfaces.
func (f *Fake) LiveSurfaces() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.surfaces)
}

// DestroyLog returns the destroy calls seen so far, in order, as
// "kind:id" strings. Tests use it to assert teardown ordering.
func (f *Fake) DestroyLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.destroyed))
	copy(out, f.destroyed)
	return out
}

func (f *Fake) id() uint32 {
	id := f.nextID
	f.nextID++
	return id
}

// Name implements driver.Driver.
func (f *Fake) Name() string { return "fake" }

// OpenDisplayDRM implements driver.Driver.
func (f *Fake) OpenDisplayDRM(fd uintptr) (driver.Display, driver.Status) {
	return f.openDisplay()
}

// OpenDisplayX11 implements driver.Driver.
func (f *Fake) OpenDisplayX11(name string) (driver.Display, io.Closer, driver.Status) {
	d, st := f.openDisplay()
	if !st.Ok() {
		return 0, nil, st
	}
	return d, nopCloser{}, st
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func (f *Fake) openDisplay() (driver.Display, driver.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.injected(OpOpenDisplay); ok {
		return 0, st
	}
	d := driver.Display(f.id())
	f.displays[d] = true
	return d, driver.StatusSuccess
}

// Initialize implements driver.Driver.
func (f *Fake) Initialize(d driver.Display) (int, int, driver.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.injected(OpInitialize); ok {
		return 0, 0, st
	}
	if !f.displays[d] {
		return 0, 0, driver.StatusInvalidDisplay
	}
	return 1, 22, driver.StatusSuccess
}

// Terminate implements driver.Driver.
func (f *Fake) Terminate(d driver.Display) driver.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.displays[d] {
		return driver.StatusInvalidDisplay
	}
	delete(f.displays, d)
	f.destroyed = append(f.destroyed, fmt.Sprintf("display:%d", d))
	return driver.StatusSuccess
}

// VendorString implements driver.Driver.
func (f *Fake) VendorString(d driver.Display) string { return "drivertest fake" }

// QueryImageFormats implements driver.Driver.
func (f *Fake) QueryImageFormats(d driver.Display) ([]driver.ImageFormat, driver.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.injected(OpQueryFormats); ok {
		return nil, st
	}
	out := make([]driver.ImageFormat, len(f.formats))
	copy(out, f.formats)
	return out, driver.StatusSuccess
}

// QueryProfiles implements driver.Driver.
func (f *Fake) QueryProfiles(d driver.Display) ([]driver.Profile, driver.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.injected(OpQueryProfiles); ok {
		return nil, st
	}
	out := make([]driver.Profile, len(f.profiles))
	copy(out, f.profiles)
	return out, driver.StatusSuccess
}

// CreateSurfaces implements driver.Driver.
func (f *Fake) CreateSurfaces(d driver.Display, rt driver.RTFormat, width, height, count int) ([]driver.SurfaceID, driver.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.injected(OpCreateSurfaces); ok {
		return nil, st
	}
	if width <= 0 || height <= 0 || count <= 0 {
		return nil, driver.StatusOperationFailed
	}
	ids := make([]driver.SurfaceID, count)
	for i := range ids {
		ids[i] = driver.SurfaceID(f.id())
		f.surfaces[ids[i]] = true
	}
	return ids, driver.StatusSuccess
}

// DestroySurfaces implements driver.Driver.
func (f *Fake) DestroySurfaces(d driver.Display, surfaces []driver.SurfaceID) driver.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range surfaces {
		if s == driver.InvalidID {
			continue
		}
		if !f.surfaces[s] {
			return driver.StatusInvalidSurface
		}
		delete(f.surfaces, s)
		f.destroyed = append(f.destroyed, fmt.Sprintf("surface:%d", s))
	}
	return driver.StatusSuccess
}

// CreateConfig implements driver.Driver.
func (f *Fake) CreateConfig(d driver.Display, p driver.Profile, e driver.Entrypoint) (driver.ConfigID, driver.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.injected(OpCreateConfig); ok {
		return driver.InvalidID, st
	}
	found := false
	for _, have := range f.profiles {
		if have == p {
			found = true
			break
		}
	}
	if !found {
		return driver.InvalidID, driver.StatusUnsupported
	}
	id := driver.ConfigID(f.id())
	f.configs[id] = true
	return id, driver.StatusSuccess
}

// DestroyConfig implements driver.Driver.
func (f *Fake) DestroyConfig(d driver.Display, id driver.ConfigID) driver.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == driver.InvalidID {
		return driver.StatusSuccess
	}
	if !f.configs[id] {
		return driver.StatusInvalidConfig
	}
	delete(f.configs, id)
	f.destroyed = append(f.destroyed, fmt.Sprintf("config:%d", id))
	return driver.StatusSuccess
}

// CreateContext implements driver.Driver.
func (f *Fake) CreateContext(d driver.Display, cfg driver.ConfigID, width, height int, surfaces []driver.SurfaceID) (driver.ContextID, driver.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.injected(OpCreateContext); ok {
		return driver.InvalidID, st
	}
	if !f.configs[cfg] {
		return driver.InvalidID, driver.StatusInvalidConfig
	}
	for _, s := range surfaces {
		if !f.surfaces[s] {
			return driver.InvalidID, driver.StatusInvalidSurface
		}
	}
	id := driver.ContextID(f.id())
	bound := make([]driver.SurfaceID, len(surfaces))
	copy(bound, surfaces)
	f.contexts[id] = &contextState{surfaces: bound}
	return id, driver.StatusSuccess
}

// DestroyContext implements driver.Driver.
func (f *Fake) DestroyContext(d driver.Display, id driver.ContextID) driver.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == driver.InvalidID {
		return driver.StatusSuccess
	}
	if _, ok := f.contexts[id]; !ok {
		return driver.StatusInvalidContext
	}
	delete(f.contexts, id)
	f.destroyed = append(f.destroyed, fmt.Sprintf("context:%d", id))
	return driver.StatusSuccess
}

// CreateImage implements driver.Driver.
func (f *Fake) CreateImage(d driver.Display, format driver.ImageFormat, width, height int) (driver.Image, driver.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.injected(OpCreateImage); ok {
		return driver.Image{ID: driver.InvalidID, Buf: driver.InvalidID}, st
	}
	img := layoutImage(format, width, height)
	img.ID = driver.ImageID(f.id())
	img.Buf = driver.BufferID(f.id())
	f.images[img.ID] = &imageState{img: img}
	return img, driver.StatusSuccess
}

// layoutImage computes a planar layout the way a real driver would:
// plane 0 full-resolution, chroma planes at half resolution for the 4:2:0
// layouts in scope.
func layoutImage(format driver.ImageFormat, width, height int) driver.Image {
	img := driver.Image{
		Format: format,
		Width:  width,
		Height: height,
	}
	cw, ch := (width+1)/2, (height+1)/2
	switch format.FourCC {
	case driver.FourCCNV12:
		img.NumPlanes = 2
		img.Pitches = [3]int{width, 2 * cw, 0}
		img.Offsets = [3]int{0, width * height, 0}
		img.DataSize = width*height + 2*cw*ch
	default: // YV12, I420 and other three-plane 4:2:0 layouts
		img.NumPlanes = 3
		img.Pitches = [3]int{width, cw, cw}
		img.Offsets = [3]int{0, width * height, width*height + cw*ch}
		img.DataSize = width*height + 2*cw*ch
	}
	return img
}

// GetImage implements driver.Driver.
func (f *Fake) GetImage(d driver.Display, s driver.SurfaceID, width, height int, id driver.ImageID) driver.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.injected(OpGetImage); ok {
		return st
	}
	if !f.surfaces[s] {
		return driver.StatusInvalidSurface
	}
	if _, ok := f.images[id]; !ok {
		return driver.StatusInvalidImage
	}
	return driver.StatusSuccess
}

// MapBuffer implements driver.Driver.
func (f *Fake) MapBuffer(d driver.Display, b driver.BufferID) ([]byte, driver.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.injected(OpMapBuffer); ok {
		return nil, st
	}
	var img *imageState
	for _, is := range f.images {
		if is.img.Buf == b {
			img = is
			break
		}
	}
	if img == nil {
		return nil, driver.StatusInvalidBuffer
	}
	data := make([]byte, img.img.DataSize)
	if f.SurfaceFill != 0 {
		for i := range data {
			data[i] = f.SurfaceFill
		}
	}
	f.mapped[b] = data
	return data, driver.StatusSuccess
}

// UnmapBuffer implements driver.Driver.
func (f *Fake) UnmapBuffer(d driver.Display, b driver.BufferID) driver.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.mapped[b]; !ok {
		return driver.StatusInvalidBuffer
	}
	delete(f.mapped, b)
	f.destroyed = append(f.destroyed, fmt.Sprintf("mapping:%d", b))
	return driver.StatusSuccess
}

// DestroyImage implements driver.Driver.
func (f *Fake) DestroyImage(d driver.Display, id driver.ImageID) driver.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == driver.InvalidID {
		return driver.StatusSuccess
	}
	if _, ok := f.images[id]; !ok {
		return driver.StatusInvalidImage
	}
	delete(f.images, id)
	f.destroyed = append(f.destroyed, fmt.Sprintf("image:%d", id))
	return driver.StatusSuccess
}
