package led

import (
	"sync"

	"github.com/smazurov/camops/internal/events"
	"github.com/smazurov/camops/internal/logging"
)

// Indicator mirrors controller state on one LED: solid while recording,
// blinking while the controller is in error, off otherwise.
type Indicator struct {
	ctrl   Controller
	name   string
	bus    *events.Bus
	logger logging.Logger

	mu        sync.Mutex
	failed    bool
	recording bool
	shown     Pattern
	unsubs    []func()
}

// NewIndicator drives the LED called name. An empty name picks the first
// LED the controller offers.
func NewIndicator(ctrl Controller, name string, bus *events.Bus, logger logging.Logger) *Indicator {
	if name == "" {
		if available := ctrl.Available(); len(available) > 0 {
			name = available[0]
		}
	}
	return &Indicator{ctrl: ctrl, name: name, bus: bus, logger: logger}
}

// Name returns the LED being driven, or "" when the board has none.
func (i *Indicator) Name() string {
	return i.name
}

// Start turns the LED off and follows controller events until Stop.
func (i *Indicator) Start() {
	if i.name == "" {
		i.logger.Info("No LED available for activity indicator")
		return
	}
	i.mu.Lock()
	i.apply()
	i.mu.Unlock()

	i.unsubs = append(i.unsubs,
		i.bus.Subscribe(func(e events.StatusChangedEvent) {
			i.update(func() { i.failed = e.Status == "error" })
		}),
		i.bus.Subscribe(func(events.RecordingStartedEvent) {
			i.update(func() { i.recording = true })
		}),
		i.bus.Subscribe(func(events.RecordingStoppedEvent) {
			i.update(func() { i.recording = false })
		}),
		i.bus.Subscribe(func(events.DeviceClosedEvent) {
			i.update(func() { i.recording = false })
		}),
	)
	i.logger.Info("Activity indicator started", "led", i.name)
}

// Stop unsubscribes and turns the LED off.
func (i *Indicator) Stop() {
	for _, unsub := range i.unsubs {
		unsub()
	}
	i.unsubs = nil
	if i.name == "" {
		return
	}
	i.update(func() {
		i.failed = false
		i.recording = false
	})
}

// Pattern returns what the LED currently shows.
func (i *Indicator) Pattern() Pattern {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.shown
}

func (i *Indicator) update(change func()) {
	i.mu.Lock()
	defer i.mu.Unlock()
	change()
	i.apply()
}

func (i *Indicator) apply() {
	want := PatternOff
	switch {
	case i.failed:
		want = PatternBlink
	case i.recording:
		want = PatternSolid
	}
	if want == i.shown {
		return
	}
	if err := i.ctrl.Set(i.name, want); err != nil {
		i.logger.Warn("Failed to set LED", "led", i.name, "pattern", string(want), "error", err)
		return
	}
	i.shown = want
	i.logger.Debug("LED updated", "led", i.name, "pattern", string(want))
}
