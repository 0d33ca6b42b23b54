//go:build linux

package connect

import (
	"fmt"
	"io"

	"golang.org/x/sys/unix"

	"github.com/gogpu/hwdec/driver"
)

func init() {
	Register(&drmConnector{})
}

// defaultDRMNodes are the device nodes probed when no hint is given.
// Render nodes first: they need no DRM master and work headless.
var defaultDRMNodes = []string{
	"/dev/dri/renderD128",
	"/dev/dri/renderD129",
	"/dev/dri/card0",
	"/dev/dri/card1",
}

// drmConnector opens a DRM device node and wraps it into a driver display.
type drmConnector struct{}

func (*drmConnector) Name() string { return NameDRM }

func (*drmConnector) Connect(drv driver.Driver, hint string) (driver.Display, io.Closer, error) {
	nodes := defaultDRMNodes
	if hint != "" {
		nodes = []string{hint}
	}

	var lastErr error
	for _, node := range nodes {
		fd, err := openNode(node)
		if err != nil {
			lastErr = err
			continue
		}
		d, st := drv.OpenDisplayDRM(uintptr(fd))
		if !st.Ok() {
			unix.Close(fd)
			lastErr = fmt.Errorf("driver rejected DRM node %s: %s", node, st)
			continue
		}
		return d, &drmFD{fd: fd}, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no DRM device node found")
	}
	return 0, nil, lastErr
}

// openNode opens a DRM node read-write, falling back to read-only the way
// drmOpen callers traditionally do when the node is access-restricted.
func openNode(path string) (int, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err == nil {
		return fd, nil
	}
	fd, err2 := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err2 == nil {
		return fd, nil
	}
	return -1, fmt.Errorf("open %s: %w", path, err)
}

// drmFD owns the device node file descriptor for the lifetime of the
// display connection.
type drmFD struct {
	fd int
}

func (f *drmFD) Close() error {
	if f.fd < 0 {
		return nil
	}
	err := unix.Close(f.fd)
	f.fd = -1
	return err
}
