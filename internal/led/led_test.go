package led

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/camops/internal/events"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeController struct {
	mu    sync.Mutex
	calls []Pattern
}

func (f *fakeController) Set(_ string, pattern Pattern) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pattern)
	return nil
}

func (f *fakeController) Available() []string { return []string{"act", "pwr"} }

func (f *fakeController) last() Pattern {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

func waitPattern(t *testing.T, ind *Indicator, want Pattern) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for ind.Pattern() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Pattern() = %q, want %q", ind.Pattern(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestIndicatorFollowsEvents(t *testing.T) {
	ctrl := &fakeController{}
	bus := events.New()
	ind := NewIndicator(ctrl, "", bus, discard)
	if ind.Name() != "act" {
		t.Fatalf("Name() = %q, want first available LED", ind.Name())
	}

	ind.Start()
	defer ind.Stop()
	if ind.Pattern() != PatternOff {
		t.Fatalf("initial Pattern() = %q, want off", ind.Pattern())
	}

	bus.Publish(events.RecordingStartedEvent{SessionID: "s1"})
	waitPattern(t, ind, PatternSolid)

	bus.Publish(events.StatusChangedEvent{Status: "error", Previous: "ok"})
	waitPattern(t, ind, PatternBlink)

	bus.Publish(events.StatusChangedEvent{Status: "ok", Previous: "error"})
	waitPattern(t, ind, PatternSolid)

	bus.Publish(events.DeviceClosedEvent{DeviceID: "0"})
	waitPattern(t, ind, PatternOff)
}

func TestIndicatorStopTurnsOff(t *testing.T) {
	ctrl := &fakeController{}
	bus := events.New()
	ind := NewIndicator(ctrl, "pwr", bus, discard)
	ind.Start()

	bus.Publish(events.RecordingStartedEvent{SessionID: "s1"})
	waitPattern(t, ind, PatternSolid)

	ind.Stop()
	if ctrl.last() != PatternOff {
		t.Errorf("last pattern = %q, want off", ctrl.last())
	}
}

func TestIndicatorWithoutLED(t *testing.T) {
	ind := NewIndicator(noop{logger: discard}, "", events.New(), discard)
	ind.Start()
	ind.Stop()
	if ind.Name() != "" || ind.Pattern() != "" {
		t.Errorf("indicator without LED = %q/%q", ind.Name(), ind.Pattern())
	}
}

func TestSysfsSet(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "ACT"), 0o755); err != nil {
		t.Fatal(err)
	}
	ctrl := newSysfs(root, map[string]string{"act": "ACT"})

	tests := []struct {
		pattern        Pattern
		wantTrigger    string
		wantBrightness string
	}{
		{PatternSolid, "none", "1"},
		{PatternBlink, "heartbeat", "1"},
		{PatternOff, "none", "0"},
	}
	for _, tt := range tests {
		t.Run(string(tt.pattern), func(t *testing.T) {
			if err := ctrl.Set("act", tt.pattern); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			trigger, _ := os.ReadFile(filepath.Join(root, "ACT", "trigger"))
			brightness, _ := os.ReadFile(filepath.Join(root, "ACT", "brightness"))
			if string(trigger) != tt.wantTrigger || string(brightness) != tt.wantBrightness {
				t.Errorf("trigger=%q brightness=%q, want %q/%q", trigger, brightness, tt.wantTrigger, tt.wantBrightness)
			}
		})
	}

	if err := ctrl.Set("pwr", PatternSolid); err == nil {
		t.Error("Set() on unknown LED should fail")
	}
	if err := ctrl.Set("act", Pattern("disco")); err == nil {
		t.Error("Set() with unknown pattern should fail")
	}
}

func TestDetect(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "model")
	if err := os.WriteFile(model, []byte("Raspberry Pi 4 Model B Rev 1.4\x00"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctrl := detect(model, dir, discard)
	if got := ctrl.Available(); !slices.Equal(got, []string{"act"}) {
		t.Errorf("Available() = %v, want [act]", got)
	}

	ctrl = detect(filepath.Join(dir, "missing"), dir, discard)
	if _, ok := ctrl.(noop); !ok {
		t.Errorf("detect() on unknown board = %T, want noop", ctrl)
	}
	if got := ctrl.Available(); got == nil || len(got) != 0 {
		t.Errorf("noop Available() = %v, want empty", got)
	}
}
