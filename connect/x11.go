//go:build linux || freebsd

package connect

import (
	"fmt"
	"io"
	"os"

	"github.com/jezek/xgb"

	"github.com/gogpu/hwdec/driver"
)

func init() {
	Register(&x11Connector{})
}

// x11Connector obtains a display handle through an X11 server. The server
// is probed over the X protocol first so that a headless machine fails
// fast here instead of inside the native library's Xlib path.
type x11Connector struct{}

func (*x11Connector) Name() string { return NameX11 }

func (*x11Connector) Connect(drv driver.Driver, hint string) (driver.Display, io.Closer, error) {
	name := hint
	if name == "" {
		name = os.Getenv("DISPLAY")
	}
	if name == "" {
		return 0, nil, fmt.Errorf("no X11 display name (hint empty, DISPLAY unset)")
	}

	// Reachability probe. The driver opens its own Xlib connection; this
	// one exists only to reject dead display names cheaply.
	probe, err := xgb.NewConnDisplay(name)
	if err != nil {
		return 0, nil, fmt.Errorf("X11 display %s unreachable: %w", name, err)
	}
	probe.Close()

	d, closer, st := drv.OpenDisplayX11(name)
	if !st.Ok() {
		return 0, nil, fmt.Errorf("driver rejected X11 display %s: %s", name, st)
	}
	return d, closer, nil
}
