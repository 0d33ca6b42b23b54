package driver

import "testing"

func TestMakeFourCC(t *testing.T) {
	tests := []struct {
		fourcc FourCC
		want   string
	}{
		{FourCCYV12, "YV12"},
		{FourCCNV12, "NV12"},
		{FourCCI420, "I420"},
	}
	for _, tt := range tests {
		if got := tt.fourcc.String(); got != tt.want {
			t.Errorf("FourCC.String() = %q, want %q", got, tt.want)
		}
	}
}

func TestStatusOk(t *testing.T) {
	if !StatusSuccess.Ok() {
		t.Error("StatusSuccess.Ok() = false")
	}
	if StatusOperationFailed.Ok() {
		t.Error("StatusOperationFailed.Ok() = true")
	}
	if Status(0x42).Ok() {
		t.Error("unknown status reported Ok")
	}
}

func TestStatusString(t *testing.T) {
	if got := StatusAllocationFailed.String(); got != "allocation failed" {
		t.Errorf("String() = %q, want %q", got, "allocation failed")
	}
	if got := Status(0x7fff).String(); got != "driver error" {
		t.Errorf("unknown status String() = %q, want %q", got, "driver error")
	}
}

func TestInvalidIDComparable(t *testing.T) {
	// The sentinel must compare against every handle type.
	if SurfaceID(InvalidID) != InvalidID || ConfigID(InvalidID) != InvalidID {
		t.Error("InvalidID does not round-trip through handle types")
	}
}
