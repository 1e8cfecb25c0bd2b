package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/camops/internal/camera"
	"gopkg.in/yaml.v3"
)

// ControlsFile is the on-disk form of a manual control preset:
//
//	[controls]
//	enabled = true
//	sensitivity = 400
//	frame_duration_ns = 33333333
//	exposure_time_ns = 10000000
//
// Files ending in .yaml or .yml hold the same keys under a "controls" mapping.
type ControlsFile struct {
	Controls *camera.ManualControls `toml:"controls" yaml:"controls"`
}

// ErrNoControls is returned when a preset file has no controls section.
var ErrNoControls = errors.New("no controls section")

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadControls reads a manual control preset.
func LoadControls(path string) (*camera.ManualControls, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read controls preset: %w", err)
	}

	var file ControlsFile
	unmarshal := toml.Unmarshal
	if isYAML(path) {
		unmarshal = yaml.Unmarshal
	}
	if err := unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse controls preset: %w", err)
	}
	if file.Controls == nil {
		return nil, fmt.Errorf("%s: %w", path, ErrNoControls)
	}
	if err := ValidateControls(file.Controls); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file.Controls, nil
}

// SaveControls writes controls as a preset, creating parent directories.
func SaveControls(path string, controls *camera.ManualControls) error {
	if controls == nil {
		return ErrNoControls
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create preset directory: %w", err)
	}

	marshal := toml.Marshal
	if isYAML(path) {
		marshal = yaml.Marshal
	}
	data, err := marshal(ControlsFile{Controls: controls})
	if err != nil {
		return fmt.Errorf("failed to marshal controls preset: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write controls preset: %w", err)
	}
	return nil
}

// ValidateControls rejects negative sensor values. Disabled controls are
// always valid since only the control mode is applied.
func ValidateControls(c *camera.ManualControls) error {
	if c == nil || !c.Enabled {
		return nil
	}
	switch {
	case c.Sensitivity < 0:
		return fmt.Errorf("sensitivity must not be negative, got %d", c.Sensitivity)
	case c.FrameDuration < 0:
		return fmt.Errorf("frame_duration_ns must not be negative, got %d", c.FrameDuration)
	case c.ExposureTime < 0:
		return fmt.Errorf("exposure_time_ns must not be negative, got %d", c.ExposureTime)
	}
	return nil
}
