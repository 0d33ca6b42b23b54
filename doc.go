// Package hwdec manages the lifecycle of hardware video-decode resources
// for a decoding pipeline: a display/driver session, per-stream decode
// configurations bound to fixed pools of hardware surfaces, and the
// mapping of decoded surfaces into CPU-addressable image memory.
//
// # Overview
//
// The pipeline creates one DeviceContext per stream, one DecodeConfig per
// stream format (re-created on resolution change), and checks one surface
// out of the config's pool per decoded picture. When the consumer needs
// pixel access, RetrieveImage copies the surface into a mapped driver
// image and republishes the frame on top of it.
//
//	drv, err := vadrv.New() // or any driver.Driver
//	if err != nil {
//		// no VA-API on this machine
//	}
//	dev, err := hwdec.NewDevice(drv, hwdec.WithDevice("auto"))
//	if err != nil {
//		// fall back to software decode
//	}
//	defer dev.Close()
//
//	cfg, err := dev.NewConfig(driver.ProfileH264High, 1920, 1088,
//		hwdec.WithFrameParallel(4))
//	if err != nil {
//		// no hardware support for this stream
//	}
//
//	frame, err := dev.AcquireSurface() // once per decoded picture
//	// ... driver decodes into frame.Surface ...
//	if err := dev.RetrieveImage(frame); err == nil {
//		// frame.Planes / frame.Stride now address CPU memory
//	}
//	frame.Release()
//
// # Ownership
//
// Every object is reference counted: the device is shared by its configs
// and by every retrieved image; a config is shared by every frame checked
// out of its pool. Superseding a config (new resolution) or closing the
// device only drops one reference; outstanding frames keep the old
// generation alive until they drain. Destruction of each object runs
// exactly once, when its last reference is gone.
//
// # Concurrency
//
// Checkout and release are safe from any number of decode workers: each
// pool slot is claimed with its own atomic compare-and-set and all
// reference counts are atomic. Pool exhaustion is an immediate
// ErrPoolExhausted, never a wait. Teardown requires caller-side
// quiescence: no checkout or retrieval may be in flight when the device
// is closed.
//
// # Architecture
//
// The library is organized into:
//   - Public API: DeviceContext, DecodeConfig, Frame, errors
//   - driver: the native-library boundary (status codes, opaque handles)
//   - driver/vadrv: the real VA-API binding, loaded at runtime
//   - driver/drivertest: a handle-tracking fake for tests
//   - connect: prioritized display connection strategies (DRM, X11)
package hwdec
