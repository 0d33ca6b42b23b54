// Package connect selects and opens a display connection for a video
// acceleration driver.
//
// Connection methods (DRM render nodes, X11) are registered as connectors
// and tried in a fixed priority order; the first one that yields a valid
// display handle wins and the rest are skipped. Connectors register
// themselves from init functions, so importing this package is enough to
// get the methods the platform supports.
package connect

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gogpu/hwdec/driver"
)

// ErrNoConnection is returned by Open when no registered connector could
// produce a display handle.
var ErrNoConnection = errors.New("connect: no display connection available")

// Connector names.
const (
	NameDRM = "drm"
	NameX11 = "x11"
)

// Connector is one way of obtaining a driver display handle. Implementations
// own whatever low-level connection (file descriptor, socket) backs the
// display and release it through the returned closer.
type Connector interface {
	// Name returns the connector identifier (e.g. "drm", "x11").
	Name() string

	// Connect opens the connection described by hint and wraps it into a
	// display handle using drv. An empty hint selects the connector's
	// default (first usable render node, $DISPLAY). The returned closer
	// must be called after driver termination.
	Connect(drv driver.Driver, hint string) (driver.Display, io.Closer, error)
}

var (
	registryMu sync.RWMutex
	connectors = make(map[string]Connector)
	// Priority order for connection selection (first success wins).
	// DRM is tried before X11: it works headless and carries no
	// round-trip to a display server.
	priority = []string{NameDRM, NameX11}
)

// Register registers a connector under its name, replacing any previous
// registration. Typically called from init functions.
func Register(c Connector) {
	registryMu.Lock()
	defer registryMu.Unlock()
	connectors[c.Name()] = c
}

// Unregister removes a connector. This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(connectors, name)
}

// Available returns the names of all registered connectors.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(connectors))
	for name := range connectors {
		names = append(names, name)
	}
	return names
}

// Open tries every registered connector in priority order and returns the
// first display handle obtained. Connectors that fail are skipped; their
// errors are collected and reported together if nothing succeeds.
func Open(drv driver.Driver, hint string) (driver.Display, io.Closer, error) {
	registryMu.RLock()
	ordered := make([]Connector, 0, len(connectors))
	for _, name := range priority {
		if c, ok := connectors[name]; ok {
			ordered = append(ordered, c)
		}
	}
	// Connectors registered outside the priority list (tests) go last.
	for name, c := range connectors {
		if !inPriority(name) {
			ordered = append(ordered, c)
		}
	}
	registryMu.RUnlock()

	if len(ordered) == 0 {
		return 0, nil, ErrNoConnection
	}

	var errs []error
	for _, c := range ordered {
		d, closer, err := c.Connect(drv, hint)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
			continue
		}
		return d, closer, nil
	}
	return 0, nil, fmt.Errorf("%w: %w", ErrNoConnection, errors.Join(errs...))
}

func inPriority(name string) bool {
	for _, p := range priority {
		if p == name {
			return true
		}
	}
	return false
}
