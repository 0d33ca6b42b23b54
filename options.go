package hwdec

// Option configures device creation.
type Option func(*deviceOptions)

// deviceOptions holds optional configuration for NewDevice.
type deviceOptions struct {
	hint string
	auto bool
}

func defaultDeviceOptions() deviceOptions {
	return deviceOptions{auto: true}
}

// WithDevice sets the connection hint: a DRM device node path
// (e.g. "/dev/dri/renderD128") or an X11 display name (e.g. ":0").
//
// The special value "auto" (or an empty string) lets every connection
// method probe its own defaults, and demotes negotiation-failure logging
// to debug level since falling back to software decode is expected.
func WithDevice(hint string) Option {
	return func(o *deviceOptions) {
		if hint == "auto" || hint == "" {
			o.hint = ""
			o.auto = true
			return
		}
		o.hint = hint
		o.auto = false
	}
}

// ConfigOption configures decode-config creation.
type ConfigOption func(*configOptions)

// configOptions holds optional configuration for NewConfig.
type configOptions struct {
	frameParallel bool
	workers       int
}

// WithFrameParallel declares that the pipeline decodes with frame-level
// parallelism across the given number of worker threads. The surface pool
// grows by one slot per worker so every in-flight picture can hold a
// surface; without this option the pool stays at the base size.
func WithFrameParallel(workers int) ConfigOption {
	return func(o *configOptions) {
		if workers <= 0 {
			return
		}
		o.frameParallel = true
		o.workers = workers
	}
}
