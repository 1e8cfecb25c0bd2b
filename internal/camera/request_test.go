package camera

import (
	"errors"
	"fmt"
	"testing"
)

func TestApplyManualControls(t *testing.T) {
	t.Run("nil leaves request alone", func(t *testing.T) {
		req := NewRequest(PurposePreview)
		ApplyManualControls(req, nil)
		if len(req.Settings()) != 0 {
			t.Errorf("Settings() = %v, want empty", req.Settings())
		}
	})

	t.Run("disabled switches to auto only", func(t *testing.T) {
		req := NewRequest(PurposePreview)
		req.Set(KeySensorSensitivity, 400)
		ApplyManualControls(req, &ManualControls{Enabled: false, Sensitivity: 100})

		if mode, _ := req.Get(KeyControlMode); mode != ControlModeAuto {
			t.Errorf("control mode = %d, want auto", mode)
		}
		if v, _ := req.Get(KeySensorSensitivity); v != 400 {
			t.Errorf("sensitivity = %d, want untouched 400", v)
		}
	})

	t.Run("enabled sets sensor values", func(t *testing.T) {
		req := NewRequest(PurposeStillCapture)
		ApplyManualControls(req, &ManualControls{
			Enabled:       true,
			Sensitivity:   800,
			FrameDuration: 33_333_333,
			ExposureTime:  10_000_000,
		})

		want := map[Key]int64{
			KeyControlMode:         ControlModeOff,
			KeySensorSensitivity:   800,
			KeySensorFrameDuration: 33_333_333,
			KeySensorExposureTime:  10_000_000,
		}
		got := req.Settings()
		for k, v := range want {
			if got[k] != v {
				t.Errorf("%s = %d, want %d", k, got[k], v)
			}
		}
	})
}

func TestRequestTargets(t *testing.T) {
	a, b := &fakeTarget{name: "a"}, &fakeTarget{name: "b"}
	req := NewRequest(PurposeRecord)

	req.AddTarget(a)
	req.AddTarget(b)
	req.AddTarget(a)
	req.AddTarget(nil)
	if got := targetNames(req.Targets()); got != "[a,b]" {
		t.Errorf("Targets() = %s, want [a,b]", got)
	}

	req.RemoveTarget(a)
	if req.HasTarget(a) || !req.HasTarget(b) {
		t.Errorf("Targets() after remove = %s", targetNames(req.Targets()))
	}
}

func TestBuildRequest(t *testing.T) {
	device := &fakeDevice{id: "0", log: &callLog{}}
	a := &fakeTarget{name: "a"}

	req, err := BuildRequest(device, PurposePreview, a, a)
	if err != nil {
		t.Fatalf("BuildRequest() error = %v", err)
	}
	if req.Purpose != PurposePreview || targetNames(req.Targets()) != "[a]" {
		t.Errorf("BuildRequest() = %v %s", req.Purpose, targetNames(req.Targets()))
	}
	if req.ID == "" {
		t.Error("request has no ID")
	}
}

func TestOutputSet(t *testing.T) {
	a, b, c := &fakeTarget{name: "a"}, &fakeTarget{name: "b"}, &fakeTarget{name: "c"}
	set := NewOutputSet(a, nil, b, a)

	if set.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", set.Len())
	}
	set.Add(c)
	set.Remove(a)
	if got := targetNames(set.Targets()); got != "[b,c]" {
		t.Errorf("Targets() = %s, want [b,c]", got)
	}

	set.Reset()
	if set.Len() != 0 || set.Contains(b) {
		t.Error("Reset() left targets behind")
	}
}

func TestErrors(t *testing.T) {
	cause := errors.New("device gone")

	err := accessError("open_device", "open device 0", cause)
	if !IsKind(err, KindAccess) {
		t.Errorf("KindOf() = %q, want %q", KindOf(err), KindAccess)
	}
	if !errors.Is(err, cause) {
		t.Error("access error does not unwrap to its cause")
	}

	inner := newError(KindNoDevicesAvailable, "ensure_open", "no devices", nil)
	if got := accessError("start_preview", "open", inner); got != error(inner) {
		t.Errorf("accessError() rewrapped a classified error: %v", got)
	}

	wrapped := fmt.Errorf("api: %w", newError(KindNotReady, "op", "msg", nil))
	if KindOf(wrapped) != KindNotReady {
		t.Errorf("KindOf(wrapped) = %q", KindOf(wrapped))
	}
	if KindOf(cause) != "" {
		t.Errorf("KindOf(plain) = %q, want empty", KindOf(cause))
	}
}
