package simcam

import (
	"errors"
	"fmt"
)

var errFrameDropped = errors.New("frame dropped by target")

// TargetError reports a request target missing from the configured outputs.
type TargetError struct {
	Target string
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnconfiguredTarget, e.Target)
}

// Unwrap makes errors.Is(err, ErrUnconfiguredTarget) hold.
func (e *TargetError) Unwrap() error {
	return ErrUnconfiguredTarget
}
