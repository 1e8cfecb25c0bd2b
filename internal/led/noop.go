package led

import "github.com/smazurov/camops/internal/logging"

// noop stands in on boards without a known LED.
type noop struct {
	logger logging.Logger
}

func (n noop) Set(name string, pattern Pattern) error {
	n.logger.Debug("LED control not available", "led", name, "pattern", string(pattern))
	return nil
}

func (noop) Available() []string {
	return []string{}
}
