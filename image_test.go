package hwdec

import (
	"errors"
	"testing"

	"github.com/gogpu/hwdec/driver"
	"github.com/gogpu/hwdec/driver/drivertest"
)

// retrieveSetup creates a device+config against the fake and checks one
// frame out.
func retrieveSetup(t *testing.T, fake *drivertest.Fake) (*DeviceContext, *DecodeConfig, *Frame) {
	t.Helper()
	d := newTestDevice(t, fake)
	cfg, err := d.NewConfig(driver.ProfileH264Main, 1920, 1080)
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}
	f, err := cfg.AcquireSurface()
	if err != nil {
		t.Fatalf("AcquireSurface() error = %v", err)
	}
	return d, cfg, f
}

func TestRetrieveImageI420(t *testing.T) {
	fake := drivertest.Default() // negotiates YV12 → i420 with chroma swap
	d, cfg, f := retrieveSetup(t, fake)
	defer d.Close()

	f.PTS = 42
	f.Duration = 40
	f.KeyFrame = true

	if err := d.RetrieveImage(f); err != nil {
		t.Fatalf("RetrieveImage() error = %v", err)
	}

	if f.IsHardware() {
		t.Error("frame still hardware-backed after retrieval")
	}
	if got := f.PixelFormat; got != PixelFormatI420 {
		t.Errorf("PixelFormat = %v, want %v", got, PixelFormatI420)
	}
	for i := 0; i < f.PixelFormat.PlaneCount(); i++ {
		if f.Planes[i] == nil {
			t.Errorf("Planes[%d] = nil, want mapped data", i)
		}
	}
	if f.Stride[0] != 1920 || f.Stride[1] != 960 || f.Stride[2] != 960 {
		t.Errorf("Stride = %v, want [1920 960 960]", f.Stride)
	}

	// YV12 stores V before U: after the swap correction the U plane must
	// point deeper into the buffer than the V plane. The open-ended plane
	// slices make that visible as len(U) < len(V).
	if len(f.Planes[1]) >= len(f.Planes[2]) {
		t.Errorf("chroma planes not swapped: len(U)=%d, len(V)=%d", len(f.Planes[1]), len(f.Planes[2]))
	}

	// Metadata carries over.
	if f.PTS != 42 || f.Duration != 40 || !f.KeyFrame {
		t.Errorf("metadata = PTS %d Duration %d KeyFrame %v, want 42 40 true", f.PTS, f.Duration, f.KeyFrame)
	}

	// The pool slot was released by the retrieval.
	if got := cfg.InUse(); got != 0 {
		t.Errorf("InUse() = %d after retrieval, want 0", got)
	}

	f.Release()
}

func TestRetrieveImageNV12NoSwap(t *testing.T) {
	fake := drivertest.New(
		[]driver.ImageFormat{{FourCC: driver.FourCCNV12, BitsPerPixel: 12}},
		[]driver.Profile{driver.ProfileH264Main},
	)
	d, _, f := retrieveSetup(t, fake)
	defer d.Close()

	if err := d.RetrieveImage(f); err != nil {
		t.Fatalf("RetrieveImage() error = %v", err)
	}
	if got := f.PixelFormat; got != PixelFormatNV12 {
		t.Errorf("PixelFormat = %v, want %v", got, PixelFormatNV12)
	}
	if f.Planes[0] == nil || f.Planes[1] == nil {
		t.Error("expected two mapped planes")
	}
	// Plane order unchanged: the Y plane starts at the head of the buffer.
	if len(f.Planes[0]) <= len(f.Planes[1]) {
		t.Errorf("plane order wrong: len(Y)=%d, len(UV)=%d", len(f.Planes[0]), len(f.Planes[1]))
	}
	f.Release()
}

func TestRetrieveImageReleaseFreesDriverObjects(t *testing.T) {
	fake := drivertest.Default()
	d, _, f := retrieveSetup(t, fake)
	defer d.Close()

	before := fake.LiveHandles()
	if err := d.RetrieveImage(f); err != nil {
		t.Fatalf("RetrieveImage() error = %v", err)
	}
	// One image plus its mapping are now live.
	if got := fake.LiveHandles(); got != before+2 {
		t.Errorf("LiveHandles() = %d during retrieval, want %d", got, before+2)
	}
	f.Release()
	if got := fake.LiveHandles(); got != before {
		t.Errorf("LiveHandles() = %d after release, want %d", got, before)
	}
}

func TestRetrieveImageRollback(t *testing.T) {
	tests := []struct {
		op    drivertest.Op
		stage Stage
	}{
		{drivertest.OpCreateImage, StageImageCreate},
		{drivertest.OpGetImage, StageImageCopy},
		{drivertest.OpMapBuffer, StageImageMap},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			fake := drivertest.Default()
			d, cfg, f := retrieveSetup(t, fake)
			defer d.Close()

			before := fake.LiveHandles()
			surface := f.Surface
			fake.FailWith(tt.op, driver.StatusOperationFailed)

			err := d.RetrieveImage(f)
			var derr *DriverError
			if !errors.As(err, &derr) {
				t.Fatalf("RetrieveImage() error = %v, want *DriverError", err)
			}
			if derr.Stage != tt.stage {
				t.Errorf("Stage = %v, want %v", derr.Stage, tt.stage)
			}

			// The original frame is untouched and still owns its slot.
			if !f.IsHardware() {
				t.Error("frame no longer hardware-backed after failed retrieval")
			}
			if f.Surface != surface {
				t.Errorf("Surface = %d, want %d", f.Surface, surface)
			}
			if got := cfg.InUse(); got != 1 {
				t.Errorf("InUse() = %d, want 1", got)
			}
			// Nothing the partial retrieval created may survive.
			if got := fake.LiveHandles(); got != before {
				t.Errorf("LiveHandles() = %d after rollback, want %d", got, before)
			}

			// Steady-state: the same frame retrieves fine once the driver
			// recovers.
			fake.ClearFailures()
			if err := d.RetrieveImage(f); err != nil {
				t.Fatalf("RetrieveImage() after recovery error = %v", err)
			}
			f.Release()
		})
	}
}

func TestRetrieveImageNonHardwareFrame(t *testing.T) {
	fake := drivertest.Default()
	d, _, f := retrieveSetup(t, fake)
	defer d.Close()

	if err := d.RetrieveImage(f); err != nil {
		t.Fatalf("RetrieveImage() error = %v", err)
	}
	// A second retrieval must refuse: the frame is CPU-backed now.
	if err := d.RetrieveImage(f); !errors.Is(err, ErrNotHardwareFrame) {
		t.Errorf("RetrieveImage() on CPU frame error = %v, want ErrNotHardwareFrame", err)
	}
	f.Release()

	if err := d.RetrieveImage(nil); !errors.Is(err, ErrNotHardwareFrame) {
		t.Errorf("RetrieveImage(nil) error = %v, want ErrNotHardwareFrame", err)
	}
}

func TestMappedImageKeepsDeviceAlive(t *testing.T) {
	fake := drivertest.Default()
	d, _, f := retrieveSetup(t, fake)

	if err := d.RetrieveImage(f); err != nil {
		t.Fatalf("RetrieveImage() error = %v", err)
	}
	d.Close()

	// The CPU frame still references the mapped image and through it the
	// device session; nothing may be torn down yet.
	if n := fake.LiveHandles(); n == 0 {
		t.Fatal("device session destroyed while a mapped image is referenced")
	}
	f.Release()
	if n := fake.LiveHandles(); n != 0 {
		t.Errorf("LiveHandles() = %d after final release, want 0", n)
	}
}
