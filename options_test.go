package hwdec

import "testing"

func TestWithDevice(t *testing.T) {
	tests := []struct {
		hint     string
		wantHint string
		wantAuto bool
	}{
		{"auto", "", true},
		{"", "", true},
		{"/dev/dri/renderD128", "/dev/dri/renderD128", false},
		{":0", ":0", false},
	}
	for _, tt := range tests {
		o := defaultDeviceOptions()
		WithDevice(tt.hint)(&o)
		if o.hint != tt.wantHint || o.auto != tt.wantAuto {
			t.Errorf("WithDevice(%q) = hint %q auto %v, want %q %v",
				tt.hint, o.hint, o.auto, tt.wantHint, tt.wantAuto)
		}
	}
}

func TestWithFrameParallel(t *testing.T) {
	var o configOptions
	WithFrameParallel(4)(&o)
	if !o.frameParallel || o.workers != 4 {
		t.Errorf("WithFrameParallel(4) = %+v, want frameParallel with 4 workers", o)
	}

	o = configOptions{}
	WithFrameParallel(0)(&o)
	if o.frameParallel {
		t.Error("WithFrameParallel(0) enabled frame parallelism")
	}
	WithFrameParallel(-2)(&o)
	if o.frameParallel {
		t.Error("WithFrameParallel(-2) enabled frame parallelism")
	}
}
