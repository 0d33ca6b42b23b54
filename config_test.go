package hwdec

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/hwdec/driver"
	"github.com/gogpu/hwdec/driver/drivertest"
)

func TestNewConfigPoolSize(t *testing.T) {
	tests := []struct {
		name string
		opts []ConfigOption
		want int
	}{
		{"serial decode", nil, 16},
		{"frame parallel 4 workers", []ConfigOption{WithFrameParallel(4)}, 20},
		{"frame parallel 1 worker", []ConfigOption{WithFrameParallel(1)}, 17},
		{"zero workers ignored", []ConfigOption{WithFrameParallel(0)}, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := drivertest.Default()
			d := newTestDevice(t, fake)
			defer d.Close()

			cfg, err := d.NewConfig(driver.ProfileH264Main, 1920, 1088, tt.opts...)
			if err != nil {
				t.Fatalf("NewConfig() error = %v", err)
			}
			if got := cfg.PoolSize(); got != tt.want {
				t.Errorf("PoolSize() = %d, want %d", got, tt.want)
			}
			if got := cfg.InUse(); got != 0 {
				t.Errorf("InUse() = %d on fresh pool, want 0", got)
			}
		})
	}
}

func TestNewConfigUnknownProfile(t *testing.T) {
	fake := drivertest.Default()
	d := newTestDevice(t, fake)
	defer d.Close()

	_, err := d.NewConfig(driver.ProfileAV1Profile0, 1920, 1088)
	if !errors.Is(err, ErrNoSupportedProfile) {
		t.Fatalf("NewConfig() error = %v, want ErrNoSupportedProfile", err)
	}
	// Only the display may remain.
	if n := fake.LiveHandles(); n != 1 {
		t.Errorf("LiveHandles() = %d after profile rejection, want 1", n)
	}
}

func TestNewConfigRollback(t *testing.T) {
	tests := []struct {
		op    drivertest.Op
		stage Stage
	}{
		{drivertest.OpCreateSurfaces, StageSurfaceCreate},
		{drivertest.OpCreateConfig, StageConfigCreate},
		{drivertest.OpCreateContext, StageContextCreate},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			fake := drivertest.Default()
			d := newTestDevice(t, fake)
			defer d.Close()

			fake.FailWith(tt.op, driver.StatusAllocationFailed)
			_, err := d.NewConfig(driver.ProfileH264Main, 1920, 1088)

			var derr *DriverError
			if !errors.As(err, &derr) {
				t.Fatalf("NewConfig() error = %v, want *DriverError", err)
			}
			if derr.Stage != tt.stage {
				t.Errorf("Stage = %v, want %v", derr.Stage, tt.stage)
			}
			if n := fake.LiveHandles(); n != 1 {
				t.Errorf("LiveHandles() = %d after rollback, want 1 (display)", n)
			}
			// The device must stay usable after a failed config.
			fake.ClearFailures()
			cfg, err := d.NewConfig(driver.ProfileH264Main, 1920, 1088)
			if err != nil {
				t.Fatalf("NewConfig() after rollback error = %v", err)
			}
			if cfg.State() != StateActive {
				t.Errorf("State() = %v, want %v", cfg.State(), StateActive)
			}
		})
	}
}

func TestConfigLifecycleStates(t *testing.T) {
	fake := drivertest.Default()
	d := newTestDevice(t, fake)
	defer d.Close()

	first, err := d.NewConfig(driver.ProfileH264Main, 1920, 1088)
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}
	if got := first.State(); got != StateActive {
		t.Fatalf("State() = %v, want %v", got, StateActive)
	}
	if d.CurrentConfig() != first {
		t.Fatal("CurrentConfig() != first config")
	}

	// A frame keeps the superseded config draining.
	frame, err := first.AcquireSurface()
	if err != nil {
		t.Fatalf("AcquireSurface() error = %v", err)
	}

	second, err := d.NewConfig(driver.ProfileH264Main, 1280, 720)
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}
	if d.CurrentConfig() != second {
		t.Fatal("CurrentConfig() != second config")
	}
	if got := first.State(); got != StateDraining {
		t.Errorf("superseded State() = %v with outstanding frame, want %v", got, StateDraining)
	}

	frame.Release()
	if got := first.State(); got != StateDestroyed {
		t.Errorf("State() = %v after last frame release, want %v", got, StateDestroyed)
	}
	if got := second.State(); got != StateActive {
		t.Errorf("second State() = %v, want %v", got, StateActive)
	}
}

func TestConfigSupersededWithoutFrames(t *testing.T) {
	fake := drivertest.Default()
	d := newTestDevice(t, fake)
	defer d.Close()

	first, err := d.NewConfig(driver.ProfileH264Main, 1920, 1088)
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}
	if _, err := d.NewConfig(driver.ProfileH264Main, 1280, 720); err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}
	if got := first.State(); got != StateDestroyed {
		t.Errorf("State() = %v, want %v (no frames to drain)", got, StateDestroyed)
	}
}

func TestConfigDestroyOrder(t *testing.T) {
	fake := drivertest.Default()
	d := newTestDevice(t, fake)

	if _, err := d.NewConfig(driver.ProfileH264Main, 1920, 1088); err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}
	d.Close()

	if n := fake.LiveHandles(); n != 0 {
		t.Fatalf("LiveHandles() = %d after Close, want 0", n)
	}

	// Context before config, config before surfaces, surfaces before the
	// display session.
	log := fake.DestroyLog()
	pos := func(prefix string) int {
		for i, e := range log {
			if strings.HasPrefix(e, prefix) {
				return i
			}
		}
		t.Fatalf("no %q entry in destroy log %v", prefix, log)
		return -1
	}
	ctx := pos("context:")
	cfg := pos("config:")
	surf := pos("surface:")
	disp := pos("display:")
	if !(ctx < cfg && cfg < surf && surf < disp) {
		t.Errorf("destroy order context=%d config=%d surface=%d display=%d, want ascending", ctx, cfg, surf, disp)
	}
}

func TestDeviceSurvivesUntilConfigDrains(t *testing.T) {
	fake := drivertest.Default()
	d := newTestDevice(t, fake)

	cfg, err := d.NewConfig(driver.ProfileH264Main, 1920, 1088)
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}
	frame, err := cfg.AcquireSurface()
	if err != nil {
		t.Fatalf("AcquireSurface() error = %v", err)
	}

	d.Close()
	// Frame → config → device chain must keep everything alive.
	if n := fake.LiveHandles(); n == 0 {
		t.Fatal("all handles destroyed while a frame is outstanding")
	}
	frame.Release()
	if n := fake.LiveHandles(); n != 0 {
		t.Errorf("LiveHandles() = %d after drain, want 0", n)
	}
}
