package hwdec

import (
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/gogpu/hwdec/connect"
	"github.com/gogpu/hwdec/driver"
	"github.com/gogpu/hwdec/driver/drivertest"
)

// testConnector routes connection requests straight to the driver under
// test, bypassing the platform connectors.
type testConnector struct{}

func (testConnector) Name() string { return "test" }

func (testConnector) Connect(drv driver.Driver, hint string) (driver.Display, io.Closer, error) {
	d, st := drv.OpenDisplayDRM(0)
	if !st.Ok() {
		return 0, nil, fmt.Errorf("open display: %s", st)
	}
	return d, nopConn{}, nil
}

type nopConn struct{}

func (nopConn) Close() error { return nil }

func TestMain(m *testing.M) {
	// The platform connectors would probe real device nodes; tests talk to
	// the fake driver only.
	connect.Unregister(connect.NameDRM)
	connect.Unregister(connect.NameX11)
	connect.Register(testConnector{})
	os.Exit(m.Run())
}

// newTestDevice creates a device against the fake driver, failing the test
// on error.
func newTestDevice(t *testing.T, fake *drivertest.Fake) *DeviceContext {
	t.Helper()
	d, err := NewDevice(fake)
	if err != nil {
		t.Fatalf("NewDevice() error = %v", err)
	}
	return d
}
