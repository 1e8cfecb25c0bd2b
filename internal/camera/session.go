package camera

import (
	"log/slog"
	"slices"
)

// transition describes one mode switch. The session runs its steps in a fixed
// order: stop repeating, wait idle, onIdle, configure outputs, build request,
// submit, afterSubmit. Nil hooks are skipped.
type transition struct {
	op string
	// onIdle runs once the device has drained, before outputs change.
	onIdle func() error
	// outputs is evaluated after onIdle so it may depend on work done there.
	outputs func() []Target
	build   func(device Device) (*Request, error)
	// repeating submits the request as a stream; otherwise it is captured once.
	repeating bool
	results   ResultListener
	// afterSubmit runs only after the device accepted the request.
	afterSubmit func() error
}

// session tracks what is configured on one open device.
type session struct {
	device     Device
	configured []Target
	active     *Request
	logger     *slog.Logger
}

func newSession(device Device, logger *slog.Logger) *session {
	return &session{device: device, logger: logger}
}

// Configured returns the targets of the last successful output configuration.
func (s *session) Configured() []Target {
	return slices.Clone(s.configured)
}

// Active returns the request currently repeating, if any.
func (s *session) Active() *Request {
	return s.active
}

// stop halts any repeating request and blocks until the device is idle.
func (s *session) stop(op string) error {
	if err := s.device.StopRepeating(); err != nil {
		return accessError(op, "stop repeating", err)
	}
	s.active = nil
	if err := s.device.WaitUntilIdle(); err != nil {
		return accessError(op, "wait until idle", err)
	}
	return nil
}

// configure replaces the device outputs.
func (s *session) configure(op string, targets []Target) error {
	if err := s.device.ConfigureOutputs(targets); err != nil {
		return accessError(op, "configure outputs", err)
	}
	s.configured = slices.Clone(targets)
	return nil
}

// run executes t. No step runs if an earlier one failed; state left behind by a
// failure is indeterminate and callers must start again from a fresh transition.
func (s *session) run(t transition) (*Request, error) {
	if err := s.stop(t.op); err != nil {
		return nil, err
	}

	if t.onIdle != nil {
		if err := t.onIdle(); err != nil {
			return nil, err
		}
	}

	var outputs []Target
	if t.outputs != nil {
		outputs = t.outputs()
	}
	if err := s.configure(t.op, outputs); err != nil {
		return nil, err
	}

	req, err := t.build(s.device)
	if err != nil {
		return nil, accessError(t.op, "build request", err)
	}
	if req == nil {
		s.logger.Debug("Session transition left device idle", "op", t.op, "outputs", len(outputs))
		return nil, nil
	}

	if t.repeating {
		if err := s.device.SubmitRepeating(req); err != nil {
			return nil, accessError(t.op, "submit repeating request", err)
		}
		s.active = req
	} else {
		if err := s.device.SubmitOnce(req, t.results); err != nil {
			return nil, accessError(t.op, "submit capture", err)
		}
	}

	s.logger.Debug("Session transition complete",
		"op", t.op,
		"purpose", req.Purpose.String(),
		"outputs", len(outputs),
		"repeating", t.repeating)

	if t.afterSubmit != nil {
		if err := t.afterSubmit(); err != nil {
			return req, err
		}
	}
	return req, nil
}

// resubmit replaces the repeating request without touching outputs. Used for
// live tweaks where the output set is unchanged.
func (s *session) resubmit(req *Request) error {
	if err := s.device.SubmitRepeating(req); err != nil {
		return err
	}
	s.active = req
	return nil
}
