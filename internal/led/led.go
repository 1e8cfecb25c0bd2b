// Package led drives a board status LED as a camera activity indicator.
package led

// Pattern is what an LED shows.
type Pattern string

// Patterns understood by every controller.
const (
	PatternOff   Pattern = "off"
	PatternSolid Pattern = "solid"
	PatternBlink Pattern = "blink"
)

// Controller sets board LEDs by logical name.
type Controller interface {
	Set(name string, pattern Pattern) error
	// Available returns the logical LED names, sorted.
	Available() []string
}
